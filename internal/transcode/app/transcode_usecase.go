package app

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"media_transcode_service/internal/transcode/domain"
	"media_transcode_service/internal/transcode/repository"
	"media_transcode_service/pkg/database"
	"media_transcode_service/pkg/logger"
)

// PresignExpiry 上傳 / 下載連結的有效時間
const PresignExpiry = time.Hour

// TranscodeUseCase 轉碼服務對 handler 暴露的操作
type TranscodeUseCase interface {
	Submit(ctx context.Context, req domain.SubmitReq) (*domain.SubmitRes, error)
	GetProgress(ctx context.Context, owner, jobID string) (*domain.ProgressRes, error)
	ListFiles(ctx context.Context, owner string) ([]domain.FileWithProgress, error)
	DeleteFile(ctx context.Context, owner, fileName string) error
	UploadURL(ctx context.Context, owner, fileName string) (string, error)
	DownloadURL(ctx context.Context, owner, fileName string) (string, error)
	ListAllFiles(ctx context.Context) ([]domain.FileRecord, error)
}

type transcodeUseCase struct {
	records  repository.RecordRepository
	cache    repository.ProgressCache
	sm       *JobStateMachine
	pool     *WorkerPool
	minio    database.MinIOClientRepo
	activity repository.ActivityProducer
}

// NewTranscodeUseCase create transcode UseCase
func NewTranscodeUseCase(
	records repository.RecordRepository,
	cache repository.ProgressCache,
	sm *JobStateMachine,
	pool *WorkerPool,
	minio database.MinIOClientRepo,
	activity repository.ActivityProducer,
) TranscodeUseCase {
	return &transcodeUseCase{
		records:  records,
		cache:    cache,
		sm:       sm,
		pool:     pool,
		minio:    minio,
		activity: activity,
	}
}

// Submit 建立轉碼 job：先搶 slot 再落盤，落盤失敗就把 slot 還回去，
// 避免留下永遠不會被執行的 job
func (u *transcodeUseCase) Submit(ctx context.Context, req domain.SubmitReq) (*domain.SubmitRes, error) {
	if req.Owner == "" || req.FileName == "" {
		return nil, fmt.Errorf("%w: owner 與 file_name 不可為空", domain.ErrValidation)
	}
	if strings.Contains(req.FileName, "/") {
		return nil, fmt.Errorf("%w: file_name 不可包含路徑", domain.ErrValidation)
	}

	if !u.pool.TryAdmit() {
		return nil, fmt.Errorf("%w: 轉碼佇列已滿", domain.ErrOverloaded)
	}

	job := domain.Job{
		JobID:    domain.NewJobID(req.Owner, time.Now()),
		Owner:    req.Owner,
		FileName: req.FileName,
	}

	rec := &domain.FileRecord{
		Owner:      req.Owner,
		FileName:   req.FileName,
		Format:     strings.TrimPrefix(filepath.Ext(req.FileName), "."),
		UploadTime: time.Now(),
		JobID:      job.JobID,
		Status:     "uploaded",
	}
	// 檔案大小是盡力而為，物件可能還在上傳中
	if size, err := u.minio.StatFile(ctx, objectName(req.Owner, req.FileName)); err == nil {
		rec.SizeBytes = &size
	}

	if err := u.records.SaveFileRecord(ctx, rec); err != nil {
		u.pool.Release()
		return nil, fmt.Errorf("%w: 檔案紀錄寫入失敗: %v", domain.ErrStorage, err)
	}
	if err := u.sm.Create(ctx, job); err != nil {
		u.pool.Release()
		return nil, err
	}

	u.cache.InvalidateFileList(ctx, req.Owner)
	u.activity.Record(ctx, req.Owner, fmt.Sprintf("submit transcode %s", req.FileName))

	u.pool.Enqueue(job)
	logger.Log.Infof("job 已排入轉碼佇列", job.JobID)

	return &domain.SubmitRes{
		JobID:    job.JobID,
		FileName: req.FileName,
		State:    string(domain.JobQueued),
	}, nil
}

// GetProgress cache-aside 查詢進度，redis 失效時退回 mongo
func (u *transcodeUseCase) GetProgress(ctx context.Context, owner, jobID string) (*domain.ProgressRes, error) {
	if domain.OwnerFromJobID(jobID) != owner {
		return nil, fmt.Errorf("%w: job[%s]", domain.ErrNotFound, jobID)
	}

	if p, ok := u.cache.GetProgress(ctx, owner, jobID); ok {
		return progressRes(p), nil
	}

	p, err := u.records.GetProgress(ctx, owner, jobID)
	if err != nil {
		return nil, err
	}
	u.cache.SetProgress(ctx, p)
	return progressRes(p), nil
}

// ListFiles 檔案列表附上即時進度，沒有進度紀錄的舊檔視為已完成
func (u *transcodeUseCase) ListFiles(ctx context.Context, owner string) ([]domain.FileWithProgress, error) {
	files, ok := u.cache.GetFileList(ctx, owner)
	if !ok {
		var err error
		files, err = u.records.ListFileRecords(ctx, owner)
		if err != nil {
			return nil, fmt.Errorf("%w: 讀取檔案列表失敗: %v", domain.ErrStorage, err)
		}
		u.cache.SetFileList(ctx, owner, files)
	}

	result := make([]domain.FileWithProgress, 0, len(files))
	for _, f := range files {
		fp := domain.FileWithProgress{FileRecord: f, Progress: 100}
		if f.JobID != "" {
			if res, err := u.GetProgress(ctx, owner, f.JobID); err == nil {
				fp.Progress = res.Percent
			}
		}
		result = append(result, fp)
	}
	return result, nil
}

// DeleteFile 移除物件與所有相關紀錄，並讓快取失效
func (u *transcodeUseCase) DeleteFile(ctx context.Context, owner, fileName string) error {
	if owner == "" || fileName == "" {
		return fmt.Errorf("%w: owner 與 file_name 不可為空", domain.ErrValidation)
	}

	if err := u.minio.RemoveFile(ctx, objectName(owner, fileName)); err != nil {
		logger.Log.Warn(fmt.Sprintf("刪除物件 %s/%s 失敗: %v", owner, fileName, err))
	}

	// 連同快取裡的進度一起清掉，避免刪除後還查得到殘留進度
	if files, err := u.records.ListFileRecords(ctx, owner); err == nil {
		for _, f := range files {
			if f.FileName == fileName && f.JobID != "" {
				u.cache.InvalidateProgress(ctx, owner, f.JobID)
			}
		}
	}

	if err := u.records.DeleteFileRecord(ctx, owner, fileName); err != nil {
		return err
	}
	if err := u.records.DeleteProgressByFile(ctx, owner, fileName); err != nil {
		logger.Log.Warn(fmt.Sprintf("刪除 %s/%s 進度紀錄失敗: %v", owner, fileName, err))
	}

	u.cache.InvalidateFileList(ctx, owner)
	u.activity.Record(ctx, owner, fmt.Sprintf("delete file %s", fileName))
	return nil
}

// UploadURL 產生直傳用的 presigned URL
func (u *transcodeUseCase) UploadURL(ctx context.Context, owner, fileName string) (string, error) {
	if fileName == "" {
		return "", fmt.Errorf("%w: file_name 不可為空", domain.ErrValidation)
	}
	return u.minio.PresignPutURL(ctx, objectName(owner, fileName), PresignExpiry)
}

// DownloadURL 產生下載用的 presigned URL
func (u *transcodeUseCase) DownloadURL(ctx context.Context, owner, fileName string) (string, error) {
	if fileName == "" {
		return "", fmt.Errorf("%w: file_name 不可為空", domain.ErrValidation)
	}
	return u.minio.PresignGetURL(ctx, objectName(owner, fileName), PresignExpiry)
}

// ListAllFiles admin 專用，跨所有使用者
func (u *transcodeUseCase) ListAllFiles(ctx context.Context) ([]domain.FileRecord, error) {
	files, err := u.records.ListAllFileRecords(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: 讀取檔案列表失敗: %v", domain.ErrStorage, err)
	}
	return files, nil
}

func objectName(owner, fileName string) string {
	return fmt.Sprintf("%s/%s", owner, fileName)
}

func progressRes(p *domain.JobProgress) *domain.ProgressRes {
	return &domain.ProgressRes{
		JobID:   p.JobID,
		State:   string(p.State),
		Percent: p.Percent,
	}
}
