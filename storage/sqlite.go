package storage

import (
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"sir_scrooper/models"
)

// SQLiteStore is the operational database: runs, logs, commands, the
// per-agent link index, stored records, and the gallery archive queue.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}

	store := &SQLiteStore{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, err
	}

	return store, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS agents (
		id TEXT PRIMARY KEY,
		name TEXT,
		first_seen_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		last_scraped_at DATETIME
	);

	CREATE TABLE IF NOT EXISTS listing_links (
		id INTEGER PRIMARY KEY,
		agent_id TEXT NOT NULL,
		run_id INTEGER,
		position INTEGER,
		name TEXT,
		location TEXT,
		url TEXT NOT NULL,
		discovered_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		last_seen_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		is_active BOOLEAN DEFAULT TRUE,
		UNIQUE(agent_id, url)
	);

	CREATE TABLE IF NOT EXISTS property_records (
		id TEXT PRIMARY KEY,
		agent_id TEXT NOT NULL,
		run_id INTEGER,
		url TEXT,
		property_id TEXT,
		mls TEXT,
		price TEXT,
		bedrooms TEXT,
		full_baths TEXT,
		total_sqft TEXT,
		partial BOOLEAN DEFAULT FALSE,
		data JSON,
		scraped_at DATETIME,
		synced BOOLEAN DEFAULT FALSE
	);

	CREATE TABLE IF NOT EXISTS gallery_images (
		id INTEGER PRIMARY KEY,
		record_id TEXT NOT NULL,
		url TEXT NOT NULL,
		position INTEGER,
		status TEXT DEFAULT 'pending',
		attempts INTEGER DEFAULT 0,
		s3_key TEXT,
		content_hash TEXT,
		uploaded_at DATETIME,
		FOREIGN KEY (record_id) REFERENCES property_records(id)
	);

	CREATE TABLE IF NOT EXISTS scrape_runs (
		id INTEGER PRIMARY KEY,
		agent_id TEXT,
		agent_name TEXT,
		started_at DATETIME,
		finished_at DATETIME,
		status TEXT,
		links_found INTEGER,
		details_extracted INTEGER,
		details_failed INTEGER,
		error_message TEXT
	);

	CREATE TABLE IF NOT EXISTS scrape_logs (
		id INTEGER PRIMARY KEY,
		run_id INTEGER,
		timestamp DATETIME,
		level TEXT,
		message TEXT,
		agent_id TEXT
	);

	CREATE TABLE IF NOT EXISTS agent_stats (
		agent_id TEXT PRIMARY KEY,
		last_run_at DATETIME,
		last_run_status TEXT,
		total_links INTEGER,
		total_records INTEGER,
		success_rate REAL,
		avg_run_duration_sec INTEGER
	);

	CREATE TABLE IF NOT EXISTS commands (
		id INTEGER PRIMARY KEY,
		command TEXT,
		params JSON,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		processed_at DATETIME
	);

	CREATE INDEX IF NOT EXISTS idx_links_agent ON listing_links(agent_id, position);
	CREATE INDEX IF NOT EXISTS idx_links_active ON listing_links(is_active, last_seen_at);
	CREATE INDEX IF NOT EXISTS idx_records_agent ON property_records(agent_id, scraped_at);
	CREATE INDEX IF NOT EXISTS idx_images_pending ON gallery_images(status, attempts) WHERE status = 'pending';
	CREATE INDEX IF NOT EXISTS idx_commands_pending ON commands(processed_at) WHERE processed_at IS NULL;
	CREATE INDEX IF NOT EXISTS idx_logs_run ON scrape_logs(run_id, timestamp);
	CREATE INDEX IF NOT EXISTS idx_runs_agent ON scrape_runs(agent_id, started_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// Agents
// =============================================================================

func (s *SQLiteStore) UpsertAgent(agent *models.AgentIdentity) error {
	_, err := s.db.Exec(`
		INSERT INTO agents (id, name, first_seen_at, last_scraped_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			last_scraped_at = excluded.last_scraped_at`,
		agent.ID, agent.Name, time.Now(), time.Now())
	return err
}

func (s *SQLiteStore) GetAgent(id string) (*models.AgentRecord, error) {
	row := s.db.QueryRow(`
		SELECT id, name, first_seen_at, last_scraped_at FROM agents WHERE id = ?`, id)

	var a models.AgentRecord
	var last sql.NullTime
	err := row.Scan(&a.ID, &a.Name, &a.FirstSeenAt, &last)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if last.Valid {
		a.LastScrapedAt = &last.Time
	}
	return &a, nil
}

// =============================================================================
// Listing links
// =============================================================================

// ReplaceLinks upserts an agent's discovered links in discovery order and
// marks links absent from this run inactive.
func (s *SQLiteStore) ReplaceLinks(agentID string, runID int64, links []models.ListingLink) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`UPDATE listing_links SET is_active = FALSE WHERE agent_id = ?`, agentID); err != nil {
		return err
	}

	now := time.Now()
	for i, link := range links {
		_, err := tx.Exec(`
			INSERT INTO listing_links (agent_id, run_id, position, name, location, url, discovered_at, last_seen_at, is_active)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, TRUE)
			ON CONFLICT(agent_id, url) DO UPDATE SET
				run_id = excluded.run_id,
				position = excluded.position,
				name = excluded.name,
				location = excluded.location,
				last_seen_at = excluded.last_seen_at,
				is_active = TRUE`,
			agentID, runID, i, link.Name, link.Location, link.URL, now, now)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (s *SQLiteStore) GetLinks(agentID string) ([]models.ListingLink, error) {
	rows, err := s.db.Query(`
		SELECT name, location, url FROM listing_links
		WHERE agent_id = ? AND is_active = TRUE ORDER BY position`, agentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var links []models.ListingLink
	for rows.Next() {
		var l models.ListingLink
		var name, location sql.NullString
		if err := rows.Scan(&name, &location, &l.URL); err != nil {
			return nil, err
		}
		l.Name = name.String
		l.Location = location.String
		links = append(links, l)
	}
	return links, rows.Err()
}

// GetOldestActiveLink returns the active link with the stalest last_seen_at,
// for the healthcheck cycle. Nil when nothing qualifies.
func (s *SQLiteStore) GetOldestActiveLink(olderThan time.Duration) (int64, string, error) {
	row := s.db.QueryRow(`
		SELECT id, url FROM listing_links
		WHERE is_active = TRUE AND last_seen_at < ?
		ORDER BY last_seen_at ASC LIMIT 1`,
		time.Now().Add(-olderThan))

	var id int64
	var url string
	err := row.Scan(&id, &url)
	if err == sql.ErrNoRows {
		return 0, "", nil
	}
	if err != nil {
		return 0, "", err
	}
	return id, url, nil
}

func (s *SQLiteStore) TouchLink(id int64) error {
	_, err := s.db.Exec(`UPDATE listing_links SET last_seen_at = ? WHERE id = ?`, time.Now(), id)
	return err
}

func (s *SQLiteStore) MarkLinkInactive(id int64) error {
	_, err := s.db.Exec(`UPDATE listing_links SET is_active = FALSE WHERE id = ?`, id)
	return err
}

// =============================================================================
// Property records
// =============================================================================

func (s *SQLiteStore) SaveRecord(stored *models.StoredRecord) error {
	data, err := json.Marshal(stored.Record)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`
		INSERT INTO property_records (id, agent_id, run_id, url, property_id, mls,
			price, bedrooms, full_baths, total_sqft, partial, data, scraped_at, synced)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, FALSE)`,
		stored.ID, stored.AgentID, stored.RunID, stored.Record.URL,
		stored.Record.PropertyID, stored.Record.MLS, stored.Record.Price,
		stored.Record.Bedrooms, stored.Record.FullBaths, stored.Record.TotalSqft,
		stored.Record.Partial, data, stored.ScrapedAt)
	return err
}

func (s *SQLiteStore) GetRecordsForRun(runID int64) ([]models.StoredRecord, error) {
	rows, err := s.db.Query(`
		SELECT id, agent_id, run_id, data, scraped_at, synced
		FROM property_records WHERE run_id = ? ORDER BY scraped_at`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []models.StoredRecord
	for rows.Next() {
		var rec models.StoredRecord
		var data []byte
		if err := rows.Scan(&rec.ID, &rec.AgentID, &rec.RunID, &data, &rec.ScrapedAt, &rec.Synced); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(data, &rec.Record); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (s *SQLiteStore) MarkRecordSynced(id string) error {
	_, err := s.db.Exec(`UPDATE property_records SET synced = TRUE WHERE id = ?`, id)
	return err
}

// =============================================================================
// Gallery archive queue
// =============================================================================

func (s *SQLiteStore) EnqueueGalleryImages(recordID string, urls []string) error {
	if len(urls) == 0 {
		return nil
	}
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for i, u := range urls {
		if _, err := tx.Exec(`
			INSERT INTO gallery_images (record_id, url, position, status)
			VALUES (?, ?, ?, ?)`,
			recordID, u, i, models.ImageStatusPending); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) GetPendingImages(limit int) ([]models.GalleryImage, error) {
	rows, err := s.db.Query(`
		SELECT id, record_id, url, position, status, attempts,
			COALESCE(s3_key, ''), COALESCE(content_hash, '')
		FROM gallery_images
		WHERE status = ? AND attempts < 3
		ORDER BY id LIMIT ?`, models.ImageStatusPending, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var images []models.GalleryImage
	for rows.Next() {
		var img models.GalleryImage
		if err := rows.Scan(&img.ID, &img.RecordID, &img.URL, &img.Position,
			&img.Status, &img.Attempts, &img.S3Key, &img.ContentHash); err != nil {
			return nil, err
		}
		images = append(images, img)
	}
	return images, rows.Err()
}

func (s *SQLiteStore) UpdateImageStatus(id int64, status, s3Key, contentHash string, attempts int) error {
	var uploadedAt interface{}
	if status == models.ImageStatusUploaded {
		uploadedAt = time.Now()
	}
	_, err := s.db.Exec(`
		UPDATE gallery_images
		SET status = ?, s3_key = ?, content_hash = ?, attempts = ?, uploaded_at = ?
		WHERE id = ?`,
		status, s3Key, contentHash, attempts, uploadedAt, id)
	return err
}

// =============================================================================
// Runs, logs, stats
// =============================================================================

func (s *SQLiteStore) CreateRun(run *models.ScrapeRun) (int64, error) {
	result, err := s.db.Exec(`
		INSERT INTO scrape_runs (agent_id, agent_name, started_at, status,
			links_found, details_extracted, details_failed)
		VALUES (?, ?, ?, ?, 0, 0, 0)`,
		run.AgentID, run.AgentName, run.StartedAt, run.Status)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

func (s *SQLiteStore) UpdateRun(run *models.ScrapeRun) error {
	_, err := s.db.Exec(`
		UPDATE scrape_runs SET agent_name = ?, finished_at = ?, status = ?,
			links_found = ?, details_extracted = ?, details_failed = ?, error_message = ?
		WHERE id = ?`,
		run.AgentName, run.FinishedAt, run.Status, run.LinksFound,
		run.DetailsExtracted, run.DetailsFailed, run.ErrorMessage, run.ID)
	return err
}

func (s *SQLiteStore) GetLastRunTime(agentID string) (time.Time, error) {
	var t sql.NullTime
	err := s.db.QueryRow(`
		SELECT MAX(started_at) FROM scrape_runs WHERE agent_id = ?`, agentID).Scan(&t)
	if err != nil {
		return time.Time{}, err
	}
	return t.Time, nil
}

func (s *SQLiteStore) Log(runID *int64, level models.LogLevel, message, agentID string) error {
	_, err := s.db.Exec(`
		INSERT INTO scrape_logs (run_id, timestamp, level, message, agent_id)
		VALUES (?, ?, ?, ?, ?)`,
		runID, time.Now(), level, message, agentID)
	return err
}

func (s *SQLiteStore) UpdateAgentStats(agentID string) error {
	_, err := s.db.Exec(`
		INSERT INTO agent_stats (agent_id, last_run_at, last_run_status, total_links,
			total_records, success_rate, avg_run_duration_sec)
		SELECT
			?,
			(SELECT started_at FROM scrape_runs WHERE agent_id = ? ORDER BY started_at DESC LIMIT 1),
			(SELECT status FROM scrape_runs WHERE agent_id = ? ORDER BY started_at DESC LIMIT 1),
			(SELECT COUNT(*) FROM listing_links WHERE agent_id = ? AND is_active = TRUE),
			(SELECT COUNT(*) FROM property_records WHERE agent_id = ?),
			(SELECT CAST(SUM(CASE WHEN status IN ('completed', 'partial') THEN 1 ELSE 0 END) AS REAL) /
				NULLIF(COUNT(*), 0) FROM scrape_runs WHERE agent_id = ?),
			(SELECT AVG(CAST((julianday(finished_at) - julianday(started_at)) * 86400 AS INTEGER))
				FROM scrape_runs WHERE agent_id = ? AND finished_at IS NOT NULL)
		ON CONFLICT(agent_id) DO UPDATE SET
			last_run_at = excluded.last_run_at,
			last_run_status = excluded.last_run_status,
			total_links = excluded.total_links,
			total_records = excluded.total_records,
			success_rate = excluded.success_rate,
			avg_run_duration_sec = excluded.avg_run_duration_sec`,
		agentID, agentID, agentID, agentID, agentID, agentID, agentID)
	return err
}

// =============================================================================
// Commands
// =============================================================================

func (s *SQLiteStore) GetPendingCommands() ([]models.Command, error) {
	rows, err := s.db.Query(`
		SELECT id, command, params, created_at, processed_at
		FROM commands WHERE processed_at IS NULL ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cmds []models.Command
	for rows.Next() {
		var cmd models.Command
		var params sql.NullString
		if err := rows.Scan(&cmd.ID, &cmd.Command, &params, &cmd.CreatedAt, &cmd.ProcessedAt); err != nil {
			return nil, err
		}
		if params.Valid {
			cmd.Params = json.RawMessage(params.String)
		}
		cmds = append(cmds, cmd)
	}
	return cmds, rows.Err()
}

func (s *SQLiteStore) MarkCommandProcessed(id int64) error {
	_, err := s.db.Exec(`UPDATE commands SET processed_at = ? WHERE id = ?`, time.Now(), id)
	return err
}

func (s *SQLiteStore) ParseCommandParams(cmd *models.Command) (*models.CommandParams, error) {
	params := &models.CommandParams{}
	if len(cmd.Params) == 0 || strings.TrimSpace(string(cmd.Params)) == "" {
		return params, nil
	}
	if err := json.Unmarshal(cmd.Params, params); err != nil {
		return nil, err
	}
	return params, nil
}
