package task

import (
	"time"

	"tagextract/internal/tags"
)

// Status is the lifecycle state of an extraction job. Completed and
// failed are terminal.
type Status string

const (
	StatusQueued     Status = "queued"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Rendering resolution bounds accepted at submission time.
const (
	MinDPI = 72
	MaxDPI = 600
)

const defaultMaxConcurrent = 3

// Document is one uploaded file queued for extraction.
type Document struct {
	Name string
	Data []byte
}

// Result is the aggregate outcome of a completed extraction job. Built
// once at completion, immutable afterwards.
type Result struct {
	TotalUniqueTags     int                 `json:"total_unique_tags"`
	TagsByDocument      map[string][]string `json:"tags_by_pdf"`
	CategorizedTags     tags.Categorized    `json:"categorized_tags"`
	TagFrequency        tags.Frequency      `json:"tag_frequency"`
	ProcessingTime      float64             `json:"processing_time"`
	TotalPagesProcessed int                 `json:"total_pages_processed"`
}

// Task is a job's lifecycle snapshot. Result is set iff the status is
// completed, Error iff failed; never both.
type Task struct {
	ID        string    `json:"task_id"`
	Status    Status    `json:"status"`
	Progress  string    `json:"progress,omitempty"`
	Result    *Result   `json:"result,omitempty"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Options configure a Manager.
type Options struct {
	TempDir            string
	MaxConcurrentTasks int
	MaxUploadBytes     int64
}
