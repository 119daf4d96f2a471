package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"media_transcode_service/internal/transcode/domain"
	"media_transcode_service/internal/transcode/repository"
	"media_transcode_service/pkg/database"
	"media_transcode_service/pkg/logger"

	"github.com/google/uuid"
)

// TranscodeWorker 負責單一 job 的完整生命週期：下載原始檔、轉碼、回傳結果
type TranscodeWorker struct {
	sm       *JobStateMachine
	minio    database.MinIOClientRepo
	engine   Engine
	activity repository.ActivityProducer
	// scratch 暫存影片的根目錄，每個 job 用 uuid 建子目錄避免撞名
	scratchDir string
}

// NewTranscodeWorker create a TranscodeWorker
func NewTranscodeWorker(sm *JobStateMachine, minio database.MinIOClientRepo, engine Engine, activity repository.ActivityProducer, scratchDir string) *TranscodeWorker {
	if scratchDir == "" {
		scratchDir = os.TempDir()
	}
	return &TranscodeWorker{
		sm:         sm,
		minio:      minio,
		engine:     engine,
		activity:   activity,
		scratchDir: scratchDir,
	}
}

// Run execute transcode job, 任何一步失敗都會把 job 收斂到 failed
func (w *TranscodeWorker) Run(ctx context.Context, job domain.Job) error {
	if err := w.sm.Advance(ctx, job.JobID, domain.JobTranscoding, 0); err != nil {
		return fmt.Errorf("job[%s] 無法進入轉碼狀態: %w", job.JobID, err)
	}

	if err := w.run(ctx, job); err != nil {
		w.fail(job.JobID)
		w.activity.Record(context.Background(), job.Owner, fmt.Sprintf("transcode failed %s", job.FileName))
		return err
	}

	if err := w.sm.Advance(ctx, job.JobID, domain.JobCompleted, 100); err != nil {
		return fmt.Errorf("job[%s] 完成狀態寫入失敗: %w", job.JobID, err)
	}
	w.activity.Record(ctx, job.Owner, fmt.Sprintf("transcode completed %s", job.FileName))
	return nil
}

func (w *TranscodeWorker) run(ctx context.Context, job domain.Job) error {
	workDir := filepath.Join(w.scratchDir, uuid.New().String())
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return fmt.Errorf("job[%s] 建立暫存目錄失敗: %w", job.JobID, err)
	}
	defer os.RemoveAll(workDir)

	inputPath := filepath.Join(workDir, job.FileName)
	if err := w.minio.DownloadFile(ctx, objectName(job.Owner, job.FileName), inputPath); err != nil {
		return fmt.Errorf("job[%s] 下載原始檔失敗: %w", job.JobID, err)
	}

	outputName := TranscodedName(job.FileName)
	outputPath := filepath.Join(workDir, outputName)

	progress := make(chan int, 16)
	engineErr := make(chan error, 1)
	go func() {
		engineErr <- w.engine.Transcode(ctx, inputPath, outputPath, progress)
	}()

	// 進度回報是盡力而為，寫入失敗只記 log，不中斷轉碼
	for pct := range progress {
		if err := w.sm.Advance(ctx, job.JobID, domain.JobTranscoding, pct); err != nil {
			logger.Log.Warn(fmt.Sprintf("job[%s] 進度 %d%% 寫入失敗: %v", job.JobID, pct, err))
		}
	}
	if err := <-engineErr; err != nil {
		return fmt.Errorf("job[%s] 轉碼失敗: %w", job.JobID, err)
	}

	if err := w.minio.UploadFile(ctx, objectName(job.Owner, outputName), outputPath, "video/mp4"); err != nil {
		return fmt.Errorf("job[%s] 上傳轉碼結果失敗: %w", job.JobID, err)
	}
	return nil
}

// fail 收斂到 failed，保留最後一次回報的百分比
func (w *TranscodeWorker) fail(jobID string) {
	// 原本的 ctx 可能已經因 timeout 取消，收尾用獨立 context
	if err := w.sm.Advance(context.Background(), jobID, domain.JobFailed, 0); err != nil {
		logger.Log.Errorf(fmt.Sprintf("job[%s] 失敗狀態寫入失敗", jobID), err)
	}
}

// TranscodedName 輸出檔名規則：{name}_transcoded.mp4
func TranscodedName(fileName string) string {
	ext := filepath.Ext(fileName)
	return strings.TrimSuffix(fileName, ext) + "_transcoded.mp4"
}
