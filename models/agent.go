package models

import "time"

// AgentIdentity is resolved once per run from the agent's listing index page.
// ID is the site's opaque external key; Name comes from the
// "Showing listings marketed by ..." header.
type AgentIdentity struct {
	ID   string `json:"id" db:"id"`
	Name string `json:"name" db:"name"`
}

// AgentRecord is the persisted form of an agent, with scrape bookkeeping.
type AgentRecord struct {
	ID            string     `json:"id" db:"id"`
	Name          string     `json:"name" db:"name"`
	FirstSeenAt   time.Time  `json:"first_seen_at" db:"first_seen_at"`
	LastScrapedAt *time.Time `json:"last_scraped_at" db:"last_scraped_at"`
}
