package models

import "time"

// MacroEvent is a scheduled economic release. Identity is (Time, Currency, Name, Source).
type MacroEvent struct {
	ID       int64     `json:"id" db:"id"`
	Time     time.Time `json:"time" db:"event_time"`
	Currency string    `json:"currency" db:"currency"`
	Impact   string    `json:"impact" db:"impact"`
	Name     string    `json:"name" db:"name"`
	Forecast string    `json:"forecast,omitempty" db:"forecast"`
	Previous string    `json:"previous,omitempty" db:"previous"`
	Actual   string    `json:"actual,omitempty" db:"actual"`
	Source   string    `json:"source" db:"source"`
}

// JobHealth is the last recorded outcome of a scheduled job.
type JobHealth struct {
	JobName string    `json:"job_name" db:"job_name"`
	LastRun time.Time `json:"last_run" db:"last_run"`
	Status  string    `json:"status" db:"status"`
	Error   string    `json:"error,omitempty" db:"error"`
	OK      bool      `json:"ok" db:"ok"`
}

// Job run statuses.
const (
	JobStatusSuccess = "success"
	JobStatusFailed  = "failed"
)
