package domain

// HistoryRepository defines the interface for session history persistence.
type HistoryRepository interface {
	// Create creates a new history record
	Create(record *HistoryRecord) error

	// Update updates an existing record
	Update(record *HistoryRecord) error

	// Delete deletes a record by ID
	Delete(id string) error

	// FindByID finds a record by ID
	FindByID(id string) (*HistoryRecord, error)

	// FindRecent returns the most recent records, newest first
	FindRecent(limit int) ([]*HistoryRecord, error)

	// GetStats returns history statistics
	GetStats() (*HistoryStats, error)
}

// HistoryStats represents session history statistics
type HistoryStats struct {
	Total     int64 `json:"total"`
	Completed int64 `json:"completed"`
	Failed    int64 `json:"failed"`
}
