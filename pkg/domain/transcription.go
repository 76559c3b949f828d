package domain

type TranscriptionRequest struct {
	AudioURL string `json:"audioUrl" binding:"required"`
}

// Transcription is the output payload produced by the speech worker.
type Transcription struct {
	Text           string           `json:"text"`
	Segments       []map[string]any `json:"segments"`
	Language       string           `json:"language"`
	ProcessingTime float64          `json:"processing_time"`
}

type WarmupStatus string

const (
	WarmupSuccess     WarmupStatus = "success"
	WarmupFailed      WarmupStatus = "failed"
	WarmupMockSuccess WarmupStatus = "mock_success"
)

// WarmupResult reports a fire-and-forget submission; Error is set only when Status is failed.
type WarmupResult struct {
	Status  WarmupStatus `json:"status"`
	JobID   string       `json:"job_id,omitempty"`
	Message string       `json:"message,omitempty"`
	Error   string       `json:"error,omitempty"`
}
