package app

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"media_transcode_service/internal/transcode/domain"
	"media_transcode_service/pkg/logger"

	"github.com/stretchr/testify/mock"
)

func TestMain(m *testing.M) {
	logger.SetNewNop()
	os.Exit(m.Run())
}

// === 以下為假的 mock repository，用來做 TDD ===
type mockRecordRepo struct {
	mock.Mock
}

func (m *mockRecordRepo) SaveFileRecord(ctx context.Context, rec *domain.FileRecord) error {
	args := m.Called(ctx, rec)
	return args.Error(0)
}
func (m *mockRecordRepo) ListFileRecords(ctx context.Context, owner string) ([]domain.FileRecord, error) {
	args := m.Called(ctx, owner)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.FileRecord), args.Error(1)
}
func (m *mockRecordRepo) ListAllFileRecords(ctx context.Context) ([]domain.FileRecord, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.FileRecord), args.Error(1)
}
func (m *mockRecordRepo) DeleteFileRecord(ctx context.Context, owner, fileName string) error {
	args := m.Called(ctx, owner, fileName)
	return args.Error(0)
}
func (m *mockRecordRepo) SaveProgress(ctx context.Context, p *domain.JobProgress) error {
	args := m.Called(ctx, p)
	return args.Error(0)
}
func (m *mockRecordRepo) GetProgress(ctx context.Context, owner, jobID string) (*domain.JobProgress, error) {
	args := m.Called(ctx, owner, jobID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.JobProgress), args.Error(1)
}
func (m *mockRecordRepo) DeleteProgressByFile(ctx context.Context, owner, fileName string) error {
	args := m.Called(ctx, owner, fileName)
	return args.Error(0)
}

type mockMinioRepo struct {
	mock.Mock
}

func (m *mockMinioRepo) UploadFile(ctx context.Context, objectName, filePath, contentType string) error {
	args := m.Called(ctx, objectName, filePath, contentType)
	return args.Error(0)
}
func (m *mockMinioRepo) DownloadFile(ctx context.Context, objectName, destPath string) error {
	args := m.Called(ctx, objectName, destPath)
	return args.Error(0)
}
func (m *mockMinioRepo) RemoveFile(ctx context.Context, objectName string) error {
	args := m.Called(ctx, objectName)
	return args.Error(0)
}
func (m *mockMinioRepo) PresignGetURL(ctx context.Context, objectName string, expiry time.Duration) (string, error) {
	args := m.Called(ctx, objectName, expiry)
	return args.String(0), args.Error(1)
}
func (m *mockMinioRepo) PresignPutURL(ctx context.Context, objectName string, expiry time.Duration) (string, error) {
	args := m.Called(ctx, objectName, expiry)
	return args.String(0), args.Error(1)
}
func (m *mockMinioRepo) StatFile(ctx context.Context, objectName string) (int64, error) {
	args := m.Called(ctx, objectName)
	return args.Get(0).(int64), args.Error(1)
}

// fakeCache 記錄所有寫入的 in-memory cache，驗證 write-through 與 invalidate 行為
type fakeCache struct {
	mu        sync.Mutex
	progress  map[string]domain.JobProgress
	fileLists map[string][]domain.FileRecord

	progressSets        int
	fileListInvalidates int

	unavailable bool // 模擬 redis 掛掉，所有讀取都 miss
}

func newFakeCache() *fakeCache {
	return &fakeCache{
		progress:  make(map[string]domain.JobProgress),
		fileLists: make(map[string][]domain.FileRecord),
	}
}

func (c *fakeCache) GetProgress(_ context.Context, _, jobID string) (*domain.JobProgress, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.unavailable {
		return nil, false
	}
	p, ok := c.progress[jobID]
	if !ok {
		return nil, false
	}
	return &p, true
}

func (c *fakeCache) SetProgress(_ context.Context, p *domain.JobProgress) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.progressSets++
	if c.unavailable {
		return
	}
	c.progress[p.JobID] = *p
}

func (c *fakeCache) InvalidateProgress(_ context.Context, _, jobID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.progress, jobID)
}

func (c *fakeCache) GetFileList(_ context.Context, owner string) ([]domain.FileRecord, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.unavailable {
		return nil, false
	}
	files, ok := c.fileLists[owner]
	return files, ok
}

func (c *fakeCache) SetFileList(_ context.Context, owner string, files []domain.FileRecord) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.unavailable {
		return
	}
	c.fileLists[owner] = files
}

func (c *fakeCache) InvalidateFileList(_ context.Context, owner string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fileListInvalidates++
	delete(c.fileLists, owner)
}

func (c *fakeCache) snapshot(jobID string) (domain.JobProgress, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.progress[jobID]
	return p, ok
}

// fakeActivity 收集 activity 事件
type fakeActivity struct {
	mu     sync.Mutex
	events []string
}

func (a *fakeActivity) Record(_ context.Context, owner, activity string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.events = append(a.events, owner+": "+activity)
}

// fakeEngine 依序回報 percents 後結束，err 非 nil 時模擬轉碼失敗
type fakeEngine struct {
	percents []int
	err      error
}

func (e *fakeEngine) Probe(_ context.Context, _ string) (float64, error) {
	return 60, nil
}

func (e *fakeEngine) Transcode(_ context.Context, _, _ string, progress chan<- int) error {
	defer close(progress)
	for _, p := range e.percents {
		progress <- p
	}
	return e.err
}
