package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"sir_scrooper/models"
)

// PostgresStore is the optional domain database that aggregates properties
// across agents, keyed by content fingerprint.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, connString string) (*PostgresStore, error) {
	poolCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("parsing domain db config: %w", err)
	}

	poolCfg.MaxConns = 10
	poolCfg.MinConns = 2
	poolCfg.MaxConnLifetime = time.Hour
	poolCfg.MaxConnIdleTime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating domain db pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging domain db: %w", err)
	}

	store := &PostgresStore{pool: pool}
	if err := store.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return store, nil
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}

func (s *PostgresStore) migrate(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS properties (
		fingerprint TEXT PRIMARY KEY,
		agent_id TEXT NOT NULL,
		agent_name TEXT,
		name TEXT,
		url TEXT,
		property_id TEXT,
		mls TEXT,
		status TEXT,
		property_type TEXT,
		price TEXT,
		bedrooms TEXT,
		full_baths TEXT,
		total_sqft TEXT,
		latitude TEXT,
		longitude TEXT,
		description TEXT,
		image_urls TEXT,
		first_seen_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_properties_agent ON properties(agent_id);
	CREATE INDEX IF NOT EXISTS idx_properties_updated ON properties(updated_at);
	`
	_, err := s.pool.Exec(ctx, schema)
	if err != nil {
		return fmt.Errorf("migrating domain db: %w", err)
	}
	return nil
}

// UpsertProperty inserts or refreshes a property keyed by fingerprint. On
// conflict the row is updated in place so the domain database tracks the
// latest observed state.
func (s *PostgresStore) UpsertProperty(ctx context.Context, fingerprint, agentID string, rec *models.PropertyRecord) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO properties (fingerprint, agent_id, agent_name, name, url,
			property_id, mls, status, property_type, price, bedrooms, full_baths,
			total_sqft, latitude, longitude, description, image_urls, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, NOW())
		ON CONFLICT (fingerprint) DO UPDATE SET
			agent_id = EXCLUDED.agent_id,
			agent_name = EXCLUDED.agent_name,
			name = EXCLUDED.name,
			url = EXCLUDED.url,
			property_id = EXCLUDED.property_id,
			mls = EXCLUDED.mls,
			status = EXCLUDED.status,
			property_type = EXCLUDED.property_type,
			price = EXCLUDED.price,
			bedrooms = EXCLUDED.bedrooms,
			full_baths = EXCLUDED.full_baths,
			total_sqft = EXCLUDED.total_sqft,
			latitude = EXCLUDED.latitude,
			longitude = EXCLUDED.longitude,
			description = EXCLUDED.description,
			image_urls = EXCLUDED.image_urls,
			updated_at = NOW()`,
		fingerprint, agentID, rec.AgentName, rec.Name, rec.URL,
		rec.PropertyID, rec.MLS, rec.Status, rec.PropertyType, rec.Price,
		rec.Bedrooms, rec.FullBaths, rec.TotalSqft, rec.Latitude, rec.Longitude,
		rec.Description, strings.Join(rec.Images, "\n"))
	if err != nil {
		return fmt.Errorf("upserting property %s: %w", fingerprint, err)
	}
	return nil
}

// CountProperties reports the number of aggregated properties for an agent.
func (s *PostgresStore) CountProperties(ctx context.Context, agentID string) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM properties WHERE agent_id = $1`, agentID).Scan(&count)
	return count, err
}
