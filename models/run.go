package models

import "time"

type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusPartial   RunStatus = "partial"
	RunStatusFailed    RunStatus = "failed"
)

type ScrapeRun struct {
	ID               int64      `json:"id" db:"id"`
	AgentID          string     `json:"agent_id" db:"agent_id"`
	AgentName        string     `json:"agent_name" db:"agent_name"`
	StartedAt        time.Time  `json:"started_at" db:"started_at"`
	FinishedAt       *time.Time `json:"finished_at" db:"finished_at"`
	Status           RunStatus  `json:"status" db:"status"`
	LinksFound       int        `json:"links_found" db:"links_found"`
	DetailsExtracted int        `json:"details_extracted" db:"details_extracted"`
	DetailsFailed    int        `json:"details_failed" db:"details_failed"`
	ErrorMessage     string     `json:"error_message" db:"error_message"`
}

type AgentRunStats struct {
	AgentID           string     `json:"agent_id" db:"agent_id"`
	LastRunAt         *time.Time `json:"last_run_at" db:"last_run_at"`
	LastRunStatus     string     `json:"last_run_status" db:"last_run_status"`
	TotalLinks        int        `json:"total_links" db:"total_links"`
	TotalRecords      int        `json:"total_records" db:"total_records"`
	SuccessRate       float64    `json:"success_rate" db:"success_rate"`
	AvgRunDurationSec int        `json:"avg_run_duration_sec" db:"avg_run_duration_sec"`
}
