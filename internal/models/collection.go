package models

import "time"

// Collection is a named group of managed endpoints in the systems-management
// platform. Only the fields the realignment logic needs are represented here;
// the platform's full object surface stays behind the platform client.
type Collection struct {
	ID     string `json:"id"`
	SiteID string `json:"site_id"`
	Name   string `json:"name"`
}

// MaintenanceWindow is the single existing window read from a collection.
// NextStart is the occurrence currently scheduled on the platform, reported
// back so the run report can show what the window moved from.
type MaintenanceWindow struct {
	Name            string       `json:"name"`
	StartDay        time.Weekday `json:"start_day"`
	StartHour       int          `json:"start_hour"`
	StartMinute     int          `json:"start_minute"`
	DurationMinutes int          `json:"duration_minutes"`
	Recurring       bool         `json:"recurring"`
	NextStart       *time.Time   `json:"next_start,omitempty"`
}

// ServiceWindow is the non-recurring occurrence written back to the platform.
type ServiceWindow struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}
