package versionrepo

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/yanqian/trip-planner/internal/domain/planner"
)

// PostgresRepository stores history in the itinerary_versions table.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository constructs the repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// Append inserts one version. The (session_id, version) primary key rejects duplicates.
func (r *PostgresRepository) Append(ctx context.Context, v planner.Version) error {
	if v.CreatedAt.IsZero() {
		v.CreatedAt = time.Now()
	}
	itineraryJSON, err := json.Marshal(v.Itinerary)
	if err != nil {
		return fmt.Errorf("encode itinerary: %w", err)
	}
	changesJSON, err := json.Marshal(v.Changes)
	if err != nil {
		return fmt.Errorf("encode changes: %w", err)
	}
	_, err = r.pool.Exec(ctx, `
		INSERT INTO itinerary_versions (session_id, version, itinerary, changes, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, v.SessionID, v.Version, itineraryJSON, changesJSON, v.CreatedAt)
	return err
}

// List returns the history in ascending version order.
func (r *PostgresRepository) List(ctx context.Context, sessionID string) ([]planner.Version, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT session_id, version, itinerary, changes, created_at
		FROM itinerary_versions
		WHERE session_id = $1
		ORDER BY version ASC
	`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]planner.Version, 0)
	for rows.Next() {
		var (
			v             planner.Version
			itineraryJSON []byte
			changesJSON   []byte
		)
		if err := rows.Scan(&v.SessionID, &v.Version, &itineraryJSON, &changesJSON, &v.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(itineraryJSON, &v.Itinerary); err != nil {
			return nil, fmt.Errorf("decode itinerary v%d: %w", v.Version, err)
		}
		if len(changesJSON) > 0 {
			if err := json.Unmarshal(changesJSON, &v.Changes); err != nil {
				return nil, fmt.Errorf("decode changes v%d: %w", v.Version, err)
			}
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

var _ planner.VersionRepository = (*PostgresRepository)(nil)
