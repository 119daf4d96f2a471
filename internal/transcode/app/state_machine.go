package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"media_transcode_service/internal/transcode/domain"
	"media_transcode_service/internal/transcode/repository"
	"media_transcode_service/pkg/logger"

	"go.uber.org/zap"
)

// JobStateMachine 是 job 狀態的唯一寫入者。
// 每次成功的轉移都是 write-through：先寫持久層，成功後才更新 cache，
// 持久層寫入失敗時 cache 與記憶體中的狀態都保持原樣。
type JobStateMachine struct {
	records repository.RecordRepository
	cache   repository.ProgressCache

	mu   sync.Mutex
	jobs map[string]domain.JobProgress
}

// NewJobStateMachine create a JobStateMachine
func NewJobStateMachine(records repository.RecordRepository, cache repository.ProgressCache) *JobStateMachine {
	return &JobStateMachine{
		records: records,
		cache:   cache,
		jobs:    make(map[string]domain.JobProgress),
	}
}

// Create 建立一筆 Queued 的 progress row 並註冊到狀態機。
// 持久層寫入失敗時回傳 ErrStorage，不留下任何內存或 cache 狀態。
func (m *JobStateMachine) Create(ctx context.Context, job domain.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.jobs[job.JobID]; ok {
		return fmt.Errorf("%w: job %s already exists", domain.ErrInvalidTransition, job.JobID)
	}

	p := domain.JobProgress{
		JobID:       job.JobID,
		Owner:       job.Owner,
		FileName:    job.FileName,
		State:       domain.JobQueued,
		Percent:     0,
		LastUpdated: time.Now(),
	}

	if err := m.records.SaveProgress(ctx, &p); err != nil {
		return fmt.Errorf("%w: save initial progress: %v", domain.ErrStorage, err)
	}
	m.cache.SetProgress(ctx, &p)

	m.jobs[job.JobID] = p
	return nil
}

// Advance 執行一次狀態轉移。
//   - Queued → Transcoding：percent 歸零
//   - Transcoding → Transcoding：percent 單調遞增，亂序回報會被 clamp 到已記錄的值
//   - Transcoding → Completed：強制 percent = 100
//   - Transcoding/Queued → Failed：保留最後回報的 percent 以利診斷
//   - 終態之後的任何轉移回傳 ErrInvalidTransition 且不改變任何狀態
func (m *JobStateMachine) Advance(ctx context.Context, jobID string, newState domain.JobState, percent int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cur, ok := m.jobs[jobID]
	if !ok {
		// 重啟後內存是空的，fallback 到持久層補回狀態
		loaded, err := m.loadFromDurable(ctx, jobID)
		if err != nil {
			return err
		}
		cur = *loaded
	}

	if !domain.CanTransition(cur.State, newState) {
		logger.Log.Warn("rejected job state transition",
			zap.String("job_id", jobID),
			zap.String("from", string(cur.State)),
			zap.String("to", string(newState)),
		)
		return fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, cur.State, newState)
	}

	next := cur
	next.State = newState
	next.LastUpdated = time.Now()

	switch newState {
	case domain.JobTranscoding:
		if cur.State == domain.JobQueued {
			next.Percent = 0
		} else {
			next.Percent = clampPercent(cur.Percent, percent)
		}
	case domain.JobCompleted:
		next.Percent = 100
	case domain.JobFailed:
		// 保留最後已知進度
		next.Percent = cur.Percent
	}

	if err := m.records.SaveProgress(ctx, &next); err != nil {
		// write-through：持久層失敗時不碰 cache
		return fmt.Errorf("%w: save progress: %v", domain.ErrStorage, err)
	}
	m.cache.SetProgress(ctx, &next)

	m.jobs[jobID] = next
	return nil
}

// Snapshot 回傳狀態機目前記錄的 job 進度
func (m *JobStateMachine) Snapshot(jobID string) (domain.JobProgress, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.jobs[jobID]
	return p, ok
}

// loadFromDurable 以 job id 掃回持久層的 progress row，caller 需持有鎖。
// job id 格式為 {owner}_{millis}，owner 可直接切出來做 point lookup。
func (m *JobStateMachine) loadFromDurable(ctx context.Context, jobID string) (*domain.JobProgress, error) {
	owner := domain.OwnerFromJobID(jobID)
	if owner == "" {
		return nil, fmt.Errorf("%w: job %s", domain.ErrNotFound, jobID)
	}
	p, err := m.records.GetProgress(ctx, owner, jobID)
	if err != nil {
		return nil, err
	}
	m.jobs[jobID] = *p
	return p, nil
}

func clampPercent(prev, reported int) int {
	if reported < prev {
		return prev
	}
	if reported > 100 {
		return 100
	}
	return reported
}
