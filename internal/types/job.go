package types

import (
	"strings"
	"time"
)

// JobKind names a family of backend jobs; it is the first path segment of
// the job endpoints.
type JobKind string

const (
	JobKindGames   JobKind = "games"
	JobKindReviews JobKind = "reviews"
)

var JobKinds = []JobKind{JobKindGames, JobKindReviews}

func ParseJobKind(raw string) (JobKind, bool) {
	raw = strings.ToLower(strings.TrimSpace(raw))
	for _, kind := range JobKinds {
		if string(kind) == raw {
			return kind, true
		}
	}
	return "", false
}

type JobStatus string

const (
	JobStatusQueued    JobStatus = "queued"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusError     JobStatus = "error"
	JobStatusCancelled JobStatus = "cancelled"
)

func (s JobStatus) Terminal() bool {
	switch s {
	case JobStatusCompleted, JobStatusError, JobStatusCancelled:
		return true
	default:
		return false
	}
}

type JobRecord struct {
	ID             string     `json:"id"`
	Status         JobStatus  `json:"status"`
	Provider       string     `json:"provider,omitempty"`
	Model          string     `json:"model,omitempty"`
	ReasoningLevel string     `json:"reasoning_level,omitempty"`
	Processed      int        `json:"processed"`
	Total          int        `json:"total"`
	CurrentItem    string     `json:"current_item,omitempty"`
	Error          string     `json:"error,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
}

func (j JobRecord) Progress() Progress {
	return Progress{Scraped: j.Processed, Total: j.Total}
}

func FindJob(jobs []JobRecord, id string) (JobRecord, bool) {
	id = strings.TrimSpace(id)
	if id == "" {
		return JobRecord{}, false
	}
	for _, job := range jobs {
		if job.ID == id {
			return job, true
		}
	}
	return JobRecord{}, false
}

type StartJobResponse struct {
	JobID string `json:"job_id"`
}
