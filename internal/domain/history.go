package domain

import "time"

// HistoryStatus represents the recorded outcome of a session.
type HistoryStatus string

const (
	HistoryActive    HistoryStatus = "active"
	HistoryCompleted HistoryStatus = "completed"
	HistoryFailed    HistoryStatus = "failed"
)

// HistoryRecord is the persisted trace of one download session.
type HistoryRecord struct {
	ID           string        `json:"id" gorm:"primaryKey"`
	VideoID      string        `json:"video_id" gorm:"not null"`
	Title        string        `json:"title"`
	Status       HistoryStatus `json:"status" gorm:"not null;index"`
	OutputPath   string        `json:"output_path,omitempty"`
	ErrorMessage string        `json:"error_message,omitempty"`
	CreatedAt    time.Time     `json:"created_at" gorm:"autoCreateTime"`
	CompletedAt  *time.Time    `json:"completed_at,omitempty"`
}

// NewHistoryRecord creates the record for a freshly accepted session.
func NewHistoryRecord(sessionID string, req DownloadRequest) *HistoryRecord {
	return &HistoryRecord{
		ID:        sessionID,
		VideoID:   req.VideoID,
		Title:     req.Title,
		Status:    HistoryActive,
		CreatedAt: time.Now(),
	}
}

// MarkCompleted records a successful session outcome.
func (h *HistoryRecord) MarkCompleted(outputPath string) {
	h.Status = HistoryCompleted
	h.OutputPath = outputPath
	now := time.Now()
	h.CompletedAt = &now
}

// MarkFailed records a failed session outcome.
func (h *HistoryRecord) MarkFailed(err error) {
	h.Status = HistoryFailed
	if err != nil {
		h.ErrorMessage = err.Error()
	}
	now := time.Now()
	h.CompletedAt = &now
}

// IsTerminal checks whether the record has reached a terminal status.
func (h *HistoryRecord) IsTerminal() bool {
	return h.Status == HistoryCompleted || h.Status == HistoryFailed
}
