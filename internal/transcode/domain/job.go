package domain

import (
	"fmt"
	"strings"
	"time"
)

// JobState definition transcode job state
type JobState string

const (
	// JobQueued job accepted, waiting for a pool slot
	JobQueued JobState = "queued"
	// JobTranscoding job picked up by a worker, encode in flight
	JobTranscoding JobState = "transcoding"
	// JobCompleted terminal, artifact uploaded
	JobCompleted JobState = "completed"
	// JobFailed terminal, kept for diagnostics
	JobFailed JobState = "failed"
)

// IsTerminal 終態之後不允許任何轉移
func (s JobState) IsTerminal() bool {
	return s == JobCompleted || s == JobFailed
}

// CanTransition check job state transfer rule
func CanTransition(from, to JobState) bool {
	switch from {
	case JobQueued:
		return to == JobTranscoding || to == JobFailed
	case JobTranscoding:
		return to == JobTranscoding || to == JobCompleted || to == JobFailed
	default:
		return false
	}
}

// NewJobID 以 (owner, 提交時間) 產生唯一 job id
func NewJobID(owner string, submitted time.Time) string {
	return fmt.Sprintf("%s_%d", owner, submitted.UnixMilli())
}

// OwnerFromJobID 從 job id 切回 owner，格式不符時回傳空字串
func OwnerFromJobID(jobID string) string {
	i := strings.LastIndex(jobID, "_")
	if i <= 0 {
		return ""
	}
	return jobID[:i]
}

// Job 定義一次轉碼工作
type Job struct {
	JobID    string `json:"job_id"`
	Owner    string `json:"owner"`
	FileName string `json:"file_name"` // 原始檔在 MinIO 上的 object name（不含 owner 前綴）
}

// JobProgress durable progress row for one job
type JobProgress struct {
	JobID       string    `json:"job_id" bson:"job_id"`
	Owner       string    `json:"owner" bson:"owner"`
	FileName    string    `json:"file_name" bson:"file_name"`
	State       JobState  `json:"state" bson:"state"`
	Percent     int       `json:"percent" bson:"percent"`
	LastUpdated time.Time `json:"last_updated" bson:"last_updated"`
}

// FileRecord persisted metadata for a file owned by a user
type FileRecord struct {
	Owner      string    `json:"owner" bson:"owner"`
	FileName   string    `json:"file_name" bson:"file_name"`
	SizeBytes  *int64    `json:"size_bytes" bson:"size_bytes"` // 上傳當下未知，轉碼後補上
	Format     string    `json:"format" bson:"format"`
	UploadTime time.Time `json:"upload_time" bson:"upload_time"`
	JobID      string    `json:"job_id" bson:"job_id"`
	Status     string    `json:"status" bson:"status"`
}
