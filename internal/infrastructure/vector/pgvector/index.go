// Package pgvector implements the establishment vector index on PostgreSQL
// with the pgvector extension. It is selected over Qdrant with
// VECTOR_BACKEND=pgvector.
package pgvector

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/pgvector/pgvector-go"

	"github.com/fandbgo/travel-concierge/internal/core/domain"
	"github.com/fandbgo/travel-concierge/internal/core/ports"
)

type Index struct {
	db *sqlx.DB
}

func New(dsn string) (*Index, error) {
	db, err := sqlx.Connect("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)
	return &Index{db: db}, nil
}

// NewWithDB wraps an existing connection, mainly for tests.
func NewWithDB(db *sqlx.DB) *Index {
	return &Index{db: db}
}

var _ ports.EstablishmentIndex = (*Index)(nil)

func (i *Index) Close() error {
	return i.db.Close()
}

// EnsureSchema creates the extension and the vectors table. dimensions must
// match the embedding model.
func (i *Index) EnsureSchema(ctx context.Context, dimensions int) error {
	statements := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS establishment_vectors (
			establishment_id TEXT PRIMARY KEY,
			content          TEXT NOT NULL,
			metadata         JSONB NOT NULL DEFAULT '{}',
			embedding        vector(%d) NOT NULL,
			updated_at       TIMESTAMPTZ NOT NULL DEFAULT now()
		)`, dimensions),
	}
	for _, stmt := range statements {
		if _, err := i.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

func (i *Index) Upsert(ctx context.Context, doc domain.IndexDocument, vector []float32) error {
	if doc.EstablishmentID == "" {
		return fmt.Errorf("upsert: empty establishment id")
	}
	metadata, err := json.Marshal(doc.Metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}

	const query = `
		INSERT INTO establishment_vectors (establishment_id, content, metadata, embedding, updated_at)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (establishment_id)
		DO UPDATE SET content = EXCLUDED.content, metadata = EXCLUDED.metadata,
			embedding = EXCLUDED.embedding, updated_at = now()`
	if _, err := i.db.ExecContext(ctx, query, doc.EstablishmentID, doc.Content, metadata, pgvector.NewVector(vector)); err != nil {
		return fmt.Errorf("upsert establishment vector: %w", err)
	}
	return nil
}

func (i *Index) Delete(ctx context.Context, establishmentID string) error {
	const query = `DELETE FROM establishment_vectors WHERE establishment_id = $1`
	if _, err := i.db.ExecContext(ctx, query, establishmentID); err != nil {
		return fmt.Errorf("delete establishment vector: %w", err)
	}
	return nil
}

func (i *Index) Search(ctx context.Context, vector []float32, limit int, filter domain.SearchFilter) ([]domain.ScoredPoint, error) {
	where, args := buildWhere(filter)
	args = append(args, pgvector.NewVector(vector))
	vectorArg := len(args)
	args = append(args, limit)
	limitArg := len(args)

	query := fmt.Sprintf(`
		SELECT establishment_id, metadata, 1 - (embedding <=> $%d) AS score
		FROM establishment_vectors
		%s
		ORDER BY embedding <=> $%d
		LIMIT $%d`, vectorArg, where, vectorArg, limitArg)

	rows, err := i.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	defer rows.Close()

	var out []domain.ScoredPoint
	for rows.Next() {
		var (
			id      string
			rawMeta []byte
			score   float64
		)
		if err := rows.Scan(&id, &rawMeta, &score); err != nil {
			return nil, fmt.Errorf("scan search row: %w", err)
		}
		point := domain.ScoredPoint{EstablishmentID: id, Score: score}
		if len(rawMeta) > 0 {
			if err := json.Unmarshal(rawMeta, &point.Metadata); err != nil {
				return nil, fmt.Errorf("decode metadata: %w", err)
			}
		}
		out = append(out, point)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate search rows: %w", err)
	}
	return out, nil
}

func (i *Index) Fetch(ctx context.Context, establishmentID string) (*domain.ScoredPoint, error) {
	const query = `SELECT metadata FROM establishment_vectors WHERE establishment_id = $1`
	var rawMeta []byte
	err := i.db.QueryRowxContext(ctx, query, establishmentID).Scan(&rawMeta)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", domain.ErrEstablishmentNotFound, establishmentID)
	}
	if err != nil {
		return nil, fmt.Errorf("fetch establishment vector: %w", err)
	}

	point := &domain.ScoredPoint{EstablishmentID: establishmentID, Score: 1}
	if len(rawMeta) > 0 {
		if err := json.Unmarshal(rawMeta, &point.Metadata); err != nil {
			return nil, fmt.Errorf("decode metadata: %w", err)
		}
	}
	return point, nil
}

func (i *Index) Count(ctx context.Context) (int, error) {
	var count int
	if err := i.db.QueryRowxContext(ctx, `SELECT count(*) FROM establishment_vectors`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count establishment vectors: %w", err)
	}
	return count, nil
}

// buildWhere translates the search filter into SQL over the JSONB metadata
// column. The amenity list is an OR of substring matches, ANDed with the
// scalar fields: one listed amenity suffices.
func buildWhere(filter domain.SearchFilter) (string, []any) {
	var clauses []string
	var args []any

	add := func(clause string, arg any) {
		args = append(args, arg)
		clauses = append(clauses, fmt.Sprintf(clause, len(args)))
	}

	if filter.City != "" {
		add(`metadata->>'city' = $%d`, filter.City)
	}
	if filter.EstablishmentType != "" && filter.EstablishmentType != string(domain.CategoryAll) {
		add(`metadata->>'type' = $%d`, filter.EstablishmentType)
	}
	if filter.MaxPrice > 0 {
		add(`(metadata->>'price_range')::bigint <= $%d`, filter.MaxPrice)
	}
	if len(filter.Amenities) > 0 {
		ors := make([]string, 0, len(filter.Amenities))
		for _, amenity := range filter.Amenities {
			args = append(args, "%"+amenity+"%")
			ors = append(ors, fmt.Sprintf(`metadata->>'amenities' ILIKE $%d`, len(args)))
		}
		clauses = append(clauses, "("+strings.Join(ors, " OR ")+")")
	}
	if len(filter.ExcludeIDs) > 0 {
		add(`NOT (establishment_id = ANY($%d))`, filter.ExcludeIDs)
	}

	if len(clauses) == 0 {
		return "", nil
	}
	return "WHERE " + strings.Join(clauses, " AND "), args
}
