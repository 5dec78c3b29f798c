package models

import "time"

// RunningEntry is the time entry currently being timed
type RunningEntry struct {
	ID          int64     `json:"id"`
	ProjectID   int64     `json:"project_id"`
	Description string    `json:"description"`
	Start       time.Time `json:"start"`
	RetrievedAt time.Time `json:"retrieved_at"`
}

// RunningTime returns how long the entry has been running at the reference instant
func (e RunningEntry) RunningTime(at time.Time) time.Duration {
	return at.Sub(e.Start)
}

// Equal ignores RetrievedAt so refetching an unchanged entry is not a change
func (e *RunningEntry) Equal(other *RunningEntry) bool {
	if e == nil || other == nil {
		return e == other
	}
	return e.ID == other.ID &&
		e.ProjectID == other.ProjectID &&
		e.Description == other.Description &&
		e.Start.Equal(other.Start)
}
