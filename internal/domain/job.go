package domain

import "time"

// JobStatus enumerates job lifecycle states. Progression is strictly forward:
// pending -> processing -> enhancing -> completed | failed.
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusEnhancing  JobStatus = "enhancing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// Terminal reports whether no further transitions may occur.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// Job encapsulates one image-enhancement request and its lifecycle.
// The ID is the sole correlation key between the synchronous upload path and
// the asynchronous correction callback.
type Job struct {
	ID             string
	Status         JobStatus
	OriginalURL    string
	ResultURL      string
	Prompt         string
	IsCustomPrompt bool
	ErrorMessage   string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
