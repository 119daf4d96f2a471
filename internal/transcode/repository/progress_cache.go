package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"media_transcode_service/internal/transcode/domain"
	"media_transcode_service/pkg/database"
	"media_transcode_service/pkg/logger"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// ProgressCache 進度與檔案清單的 cache-aside 層。
// Redis 故障一律降級為 miss：讀取時 fallthrough 到持久層，寫入時靜默跳過，
// cache 只是加速器，不能成為正確性的依賴。
type ProgressCache interface {
	GetProgress(ctx context.Context, owner, jobID string) (*domain.JobProgress, bool)
	SetProgress(ctx context.Context, p *domain.JobProgress)
	InvalidateProgress(ctx context.Context, owner, jobID string)

	GetFileList(ctx context.Context, owner string) ([]domain.FileRecord, bool)
	SetFileList(ctx context.Context, owner string, files []domain.FileRecord)
	InvalidateFileList(ctx context.Context, owner string)
}

type redisProgressCache struct {
	progressRepo database.RedisRepository[domain.JobProgress]
	fileListRepo database.RedisRepository[[]domain.FileRecord]

	progressTTL time.Duration
	fileListTTL time.Duration
}

// NewRedisProgressCache create a ProgressCache backed by redis
func NewRedisProgressCache(client *redis.Client, progressTTL, fileListTTL time.Duration) ProgressCache {
	if progressTTL <= 0 {
		progressTTL = 60 * time.Second
	}
	if fileListTTL <= 0 {
		fileListTTL = time.Hour
	}
	return &redisProgressCache{
		progressRepo: database.NewRedisRepositoryFromClient[domain.JobProgress](client),
		fileListRepo: database.NewRedisRepositoryFromClient[[]domain.FileRecord](client),
		progressTTL:  progressTTL,
		fileListTTL:  fileListTTL,
	}
}

// progressKey cache key = progress:{owner}:{jobId}
func progressKey(owner, jobID string) string {
	return fmt.Sprintf("progress:%s:%s", owner, jobID)
}

// fileListKey cache key = {owner}_files
func fileListKey(owner string) string {
	return fmt.Sprintf("%s_files", owner)
}

func (c *redisProgressCache) GetProgress(ctx context.Context, owner, jobID string) (*domain.JobProgress, bool) {
	p, err := c.progressRepo.Get(ctx, progressKey(owner, jobID))
	if errors.Is(err, database.ErrCacheMiss) {
		return nil, false
	}
	if err != nil {
		// cache 不可用，當作 miss，讓呼叫端改走持久層
		logger.Log.Warn("progress cache read degraded to miss", zap.String("job_id", jobID), zap.Error(err))
		return nil, false
	}
	return &p, true
}

func (c *redisProgressCache) SetProgress(ctx context.Context, p *domain.JobProgress) {
	if err := c.progressRepo.Set(ctx, progressKey(p.Owner, p.JobID), *p, c.progressTTL); err != nil {
		logger.Log.Warn("progress cache write skipped", zap.String("job_id", p.JobID), zap.Error(err))
	}
}

func (c *redisProgressCache) InvalidateProgress(ctx context.Context, owner, jobID string) {
	if err := c.progressRepo.Del(ctx, progressKey(owner, jobID)); err != nil {
		logger.Log.Warn("progress cache invalidate skipped", zap.String("job_id", jobID), zap.Error(err))
	}
}

func (c *redisProgressCache) GetFileList(ctx context.Context, owner string) ([]domain.FileRecord, bool) {
	files, err := c.fileListRepo.Get(ctx, fileListKey(owner))
	if errors.Is(err, database.ErrCacheMiss) {
		return nil, false
	}
	if err != nil {
		logger.Log.Warn("file list cache read degraded to miss", zap.String("owner", owner), zap.Error(err))
		return nil, false
	}
	return files, true
}

func (c *redisProgressCache) SetFileList(ctx context.Context, owner string, files []domain.FileRecord) {
	if err := c.fileListRepo.Set(ctx, fileListKey(owner), files, c.fileListTTL); err != nil {
		logger.Log.Warn("file list cache write skipped", zap.String("owner", owner), zap.Error(err))
	}
}

func (c *redisProgressCache) InvalidateFileList(ctx context.Context, owner string) {
	if err := c.fileListRepo.Del(ctx, fileListKey(owner)); err != nil {
		logger.Log.Warn("file list cache invalidate skipped", zap.String("owner", owner), zap.Error(err))
	}
}
