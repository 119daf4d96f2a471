package domain

// SubmitReq usecase submit transcode request
type SubmitReq struct {
	Owner    string
	FileName string
}

// SubmitRes usecase submit transcode response
type SubmitRes struct {
	JobID    string `json:"job_id"`
	FileName string `json:"file_name"`
	State    string `json:"state"`
}

// ProgressRes usecase get progress response
type ProgressRes struct {
	JobID   string `json:"job_id"`
	State   string `json:"state"`
	Percent int    `json:"progress_percent"`
}

// FileWithProgress file record with attached live progress
type FileWithProgress struct {
	FileRecord
	Progress int `json:"progress"`
}
