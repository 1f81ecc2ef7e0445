package guiderepo

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"

	"github.com/yanqian/trip-planner/internal/domain/guide"
)

// PostgresRepository stores snippets in the guide_snippets table and searches them with pgvector.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository constructs the adapter.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// Insert implements guide.SnippetRepository.
func (r *PostgresRepository) Insert(ctx context.Context, s guide.Snippet) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO guide_snippets (id, city, source, section, content, embedding)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO NOTHING
	`, s.ID, s.City, s.Source, s.Section, s.Text, pgvector.NewVector(s.Embedding))
	return err
}

// Search ranks by cosine distance. Score is 1 minus the distance.
func (r *PostgresRepository) Search(ctx context.Context, city string, embedding []float32, limit int) ([]guide.Match, error) {
	if len(embedding) == 0 {
		return nil, nil
	}
	if limit <= 0 {
		limit = 4
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id, city, source, section, content, 1 - (embedding <=> $1) AS score
		FROM guide_snippets
		WHERE ($2 = '' OR city = '' OR lower(city) = lower($2))
		ORDER BY embedding <=> $1
		LIMIT $3
	`, pgvector.NewVector(embedding), city, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]guide.Match, 0, limit)
	for rows.Next() {
		var m guide.Match
		if err := rows.Scan(&m.Snippet.ID, &m.Snippet.City, &m.Snippet.Source, &m.Snippet.Section, &m.Snippet.Text, &m.Score); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

var _ guide.SnippetRepository = (*PostgresRepository)(nil)
