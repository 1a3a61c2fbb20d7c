package models

import "time"

// RunStatus tracks the lifecycle of a realignment run.
type RunStatus string

const (
	RunStatusRunning   RunStatus = "RUNNING"
	RunStatusCompleted RunStatus = "COMPLETED"
	RunStatusFailed    RunStatus = "FAILED"
)

// ResultOutcome classifies a per-collection result.
type ResultOutcome string

const (
	OutcomeUpdated ResultOutcome = "UPDATED"
	OutcomeFailed  ResultOutcome = "FAILED"
	OutcomeSkipped ResultOutcome = "SKIPPED"
)

// RealignRun is one execution of the monthly window realignment.
type RealignRun struct {
	ID           string     `db:"id" json:"id"`
	SiteID       string     `db:"site_id" json:"site_id"`
	Pattern      string     `db:"pattern" json:"pattern"`
	Recipient    string     `db:"recipient" json:"recipient"`
	PatchTuesday time.Time  `db:"patch_tuesday" json:"patch_tuesday"`
	Status       RunStatus  `db:"status" json:"status"`
	Updated      int        `db:"updated_count" json:"updated_count"`
	Failed       int        `db:"failed_count" json:"failed_count"`
	Skipped      int        `db:"skipped_count" json:"skipped_count"`
	StartedAt    time.Time  `db:"started_at" json:"started_at"`
	FinishedAt   *time.Time `db:"finished_at" json:"finished_at,omitempty"`
}

// RealignResult records the outcome for one collection, in discovery order.
// Position preserves that order so the report reads as an audit trail.
type RealignResult struct {
	ID             string        `db:"id" json:"id"`
	RunID          string        `db:"run_id" json:"run_id"`
	Position       int           `db:"position" json:"position"`
	CollectionID   string        `db:"collection_id" json:"collection_id"`
	CollectionName string        `db:"collection_name" json:"collection_name"`
	WindowName     string        `db:"window_name" json:"window_name"`
	Outcome        ResultOutcome `db:"outcome" json:"outcome"`
	OldStart       *time.Time    `db:"old_start" json:"old_start,omitempty"`
	NewStart       *time.Time    `db:"new_start" json:"new_start,omitempty"`
	NewEnd         *time.Time    `db:"new_end" json:"new_end,omitempty"`
	Detail         string        `db:"detail" json:"detail,omitempty"`
}

// RunFilter describes query params for listing runs.
type RunFilter struct {
	SiteID   string
	Status   *RunStatus
	Page     int
	PageSize int
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
