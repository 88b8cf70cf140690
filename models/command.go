package models

import (
	"encoding/json"
	"time"
)

type CommandType string

const (
	CmdScrapeNow   CommandType = "scrape_now"
	CmdScrapeAgent CommandType = "scrape_agent"
	CmdPause       CommandType = "pause"
	CmdResume      CommandType = "resume"
	CmdRunArchive  CommandType = "run_archive"
	CmdStatus      CommandType = "status"
)

type Command struct {
	ID          int64           `json:"id" db:"id"`
	Command     CommandType     `json:"command" db:"command"`
	Params      json.RawMessage `json:"params" db:"params"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
	ProcessedAt *time.Time      `json:"processed_at" db:"processed_at"`
}

type CommandParams struct {
	Agent string `json:"agent,omitempty"`
}
