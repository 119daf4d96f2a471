package app

import (
	"context"
	"sync"
	"time"

	"media_transcode_service/internal/transcode/domain"
	"media_transcode_service/pkg/logger"

	"go.uber.org/zap"
)

// JobRunner 由 pool 以單一 owner 的身份執行一個 job
type JobRunner interface {
	Run(ctx context.Context, job domain.Job) error
}

// WorkerPool 固定數量的轉碼 worker 加上有界的 FIFO 佇列。
// slot 數 = maxConcurrent + queueDepth，slot 在 TryAdmit 取得、job 結束時歸還，
// 超出 slot 的提交直接被拒絕，不會無限制吃掉記憶體。
type WorkerPool struct {
	runner     JobRunner
	jobTimeout time.Duration

	slots chan struct{}
	queue chan domain.Job

	wg       sync.WaitGroup
	stopChan chan struct{}
	stopOnce sync.Once

	maxConcurrent int
}

// NewWorkerPool create a WorkerPool
func NewWorkerPool(runner JobRunner, maxConcurrent, queueDepth int, jobTimeout time.Duration) *WorkerPool {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	if queueDepth < 0 {
		queueDepth = 0
	}
	capacity := maxConcurrent + queueDepth
	return &WorkerPool{
		runner:        runner,
		jobTimeout:    jobTimeout,
		slots:         make(chan struct{}, capacity),
		queue:         make(chan domain.Job, capacity),
		stopChan:      make(chan struct{}),
		maxConcurrent: maxConcurrent,
	}
}

// Start 啟動固定數量的 worker goroutine
func (p *WorkerPool) Start(ctx context.Context) {
	logger.Log.Info("starting transcode worker pool",
		zap.Int("max_concurrent", p.maxConcurrent),
		zap.Int("slots", cap(p.slots)),
	)
	for i := 0; i < p.maxConcurrent; i++ {
		p.wg.Add(1)
		go p.workerLoop(ctx, i)
	}
}

// Stop 優雅停止，等所有 in-flight job 結束
func (p *WorkerPool) Stop() {
	p.stopOnce.Do(func() {
		close(p.stopChan)
	})
	p.wg.Wait()
	logger.Log.Info("transcode worker pool stopped")
}

// TryAdmit 嘗試取得一個 slot；pool 與佇列都滿時回傳 false。
// 呼叫端必須在 durable 寫入失敗時用 Release 歸還 slot。
func (p *WorkerPool) TryAdmit() bool {
	select {
	case p.slots <- struct{}{}:
		return true
	default:
		return false
	}
}

// Release 歸還一個 admit 成功但最後沒有 enqueue 的 slot
func (p *WorkerPool) Release() {
	select {
	case <-p.slots:
	default:
	}
}

// Enqueue 把已取得 slot 的 job 排入 FIFO 佇列。
// slot 數與佇列容量相同，這裡的寫入不會阻塞。
func (p *WorkerPool) Enqueue(job domain.Job) {
	p.queue <- job
}

func (p *WorkerPool) workerLoop(ctx context.Context, workerNum int) {
	defer p.wg.Done()

	for {
		select {
		case <-p.stopChan:
			return
		case <-ctx.Done():
			return
		case job := <-p.queue:
			p.runJob(ctx, workerNum, job)
		}
	}
}

// runJob 以 jobTimeout 為上限執行一個 job，結束時歸還 slot
func (p *WorkerPool) runJob(ctx context.Context, workerNum int, job domain.Job) {
	defer p.Release()

	runCtx := ctx
	if p.jobTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, p.jobTimeout)
		defer cancel()
	}

	logger.Log.Info("worker picked up job",
		zap.Int("worker", workerNum),
		zap.String("job_id", job.JobID),
		zap.String("file_name", job.FileName),
	)

	if err := p.runner.Run(runCtx, job); err != nil {
		// 失敗已經由 runner 寫進 job 的終態，這裡只記錄
		logger.Log.Errorf("job failed:", err, zap.String("job_id", job.JobID))
		return
	}

	logger.Log.Info("job completed", zap.Int("worker", workerNum), zap.String("job_id", job.JobID))
}
