package models

import (
	"time"

	"Mansoor88-6/time-targets-agent/internal/calendar"
)

// TimeTarget is the number of hours a user wants to work on a project per period,
// spread over the selected weekdays.
type TimeTarget struct {
	ProjectID    int64                     `json:"project_id"`
	HoursTarget  int                       `json:"hours_target"`
	WorkWeekdays calendar.WeekdaySelection `json:"work_weekdays"`
}

func (t TimeTarget) TargetTime() time.Duration {
	return time.Duration(t.HoursTarget) * time.Hour
}

// Less orders targets by hours
func (t TimeTarget) Less(other TimeTarget) bool {
	return t.HoursTarget < other.HoursTarget
}
