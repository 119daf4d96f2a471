package app

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"media_transcode_service/internal/transcode/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func TestTranscodedName(t *testing.T) {
	assert.Equal(t, "movie_transcoded.mp4", TranscodedName("movie.mov"))
	assert.Equal(t, "movie_transcoded.mp4", TranscodedName("movie.mp4"))
	assert.Equal(t, "clip_transcoded.mp4", TranscodedName("clip"))
}

func TestTranscodeWorker_Run(t *testing.T) {
	ctx := context.Background()
	records := new(mockRecordRepo)
	cache := newFakeCache()
	sm := NewJobStateMachine(records, cache)
	records.On("SaveProgress", mock.Anything, mock.Anything).Return(nil)

	minio := new(mockMinioRepo)
	minio.On("DownloadFile", mock.Anything, "alice/movie.mov", mock.Anything).Return(nil)
	minio.On("UploadFile", mock.Anything, "alice/movie_transcoded.mp4", mock.Anything, "video/mp4").Return(nil)

	engine := &fakeEngine{percents: []int{25, 60, 100}}
	worker := NewTranscodeWorker(sm, minio, engine, &fakeActivity{}, t.TempDir())

	job := newTestJob("alice")
	assert.NoError(t, sm.Create(ctx, job))
	assert.NoError(t, worker.Run(ctx, job))

	p, ok := sm.Snapshot(job.JobID)
	assert.True(t, ok)
	assert.Equal(t, domain.JobCompleted, p.State)
	assert.Equal(t, 100, p.Percent)
	minio.AssertExpectations(t)
}

func TestTranscodeWorker_DownloadFailure(t *testing.T) {
	ctx := context.Background()
	records := new(mockRecordRepo)
	cache := newFakeCache()
	sm := NewJobStateMachine(records, cache)
	records.On("SaveProgress", mock.Anything, mock.Anything).Return(nil)

	minio := new(mockMinioRepo)
	minio.On("DownloadFile", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("minio down"))

	worker := NewTranscodeWorker(sm, minio, &fakeEngine{}, &fakeActivity{}, t.TempDir())

	job := newTestJob("alice")
	assert.NoError(t, sm.Create(ctx, job))
	assert.Error(t, worker.Run(ctx, job))

	// 還沒有任何進度，failed 時 percent 停在 0
	p, _ := sm.Snapshot(job.JobID)
	assert.Equal(t, domain.JobFailed, p.State)
	assert.Equal(t, 0, p.Percent)
}

// stuckEngine 模擬編碼卡死，只能被 context 取消
type stuckEngine struct{}

func (e *stuckEngine) Probe(_ context.Context, _ string) (float64, error) {
	return 60, nil
}

func (e *stuckEngine) Transcode(ctx context.Context, _, _ string, progress chan<- int) error {
	defer close(progress)
	<-ctx.Done()
	return ctx.Err()
}

func TestTranscodeWorker_JobTimeoutFailsJob(t *testing.T) {
	records := new(mockRecordRepo)
	cache := newFakeCache()
	sm := NewJobStateMachine(records, cache)
	records.On("SaveProgress", mock.Anything, mock.Anything).Return(nil)

	minio := new(mockMinioRepo)
	minio.On("DownloadFile", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	scratch := t.TempDir()
	worker := NewTranscodeWorker(sm, minio, &stuckEngine{}, &fakeActivity{}, scratch)

	job := newTestJob("alice")
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	assert.NoError(t, sm.Create(context.Background(), job))

	// 編碼超過 job budget：job 要收斂到 failed，不能掛在 transcoding
	assert.Error(t, worker.Run(ctx, job))
	p, _ := sm.Snapshot(job.JobID)
	assert.Equal(t, domain.JobFailed, p.State)

	// 暫存目錄也要清乾淨
	entries, err := os.ReadDir(scratch)
	assert.NoError(t, err)
	assert.Len(t, entries, 0)
}

func TestTranscodeWorker_EngineFailureKeepsProgress(t *testing.T) {
	ctx := context.Background()
	records := new(mockRecordRepo)
	cache := newFakeCache()
	sm := NewJobStateMachine(records, cache)
	records.On("SaveProgress", mock.Anything, mock.Anything).Return(nil)

	minio := new(mockMinioRepo)
	minio.On("DownloadFile", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	// 回報到 45% 之後編碼失敗
	engine := &fakeEngine{percents: []int{25, 45}, err: errors.New("encode failed")}
	worker := NewTranscodeWorker(sm, minio, engine, &fakeActivity{}, t.TempDir())

	job := newTestJob("alice")
	assert.NoError(t, sm.Create(ctx, job))
	assert.Error(t, worker.Run(ctx, job))

	p, _ := sm.Snapshot(job.JobID)
	assert.Equal(t, domain.JobFailed, p.State)
	assert.Equal(t, 45, p.Percent)
}
