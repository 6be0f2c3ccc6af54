package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/fandbgo/travel-concierge/internal/core/domain"
	"github.com/fandbgo/travel-concierge/internal/core/ports"
)

type EstablishmentRepository struct {
	db *sql.DB
}

func NewEstablishmentRepository(db *sql.DB) *EstablishmentRepository {
	return &EstablishmentRepository{db: db}
}

var _ ports.EstablishmentStore = (*EstablishmentRepository)(nil)

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

func (r *EstablishmentRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across api/indexer startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026083101)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS establishments (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	type TEXT NOT NULL,
	city TEXT NOT NULL,
	address TEXT,
	description TEXT,
	amenities JSONB NOT NULL DEFAULT '[]'::jsonb,
	price_min BIGINT NOT NULL DEFAULT 0,
	price_max BIGINT NOT NULL DEFAULT 0,
	rating DOUBLE PRECISION NOT NULL DEFAULT 0,
	phone TEXT,
	email TEXT,
	website TEXT,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_establishments_city ON establishments(city);
CREATE INDEX IF NOT EXISTS idx_establishments_type ON establishments(type);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

func (r *EstablishmentRepository) Upsert(ctx context.Context, est domain.Establishment) error {
	amenitiesJSON, err := json.Marshal(est.Amenities)
	if err != nil {
		return fmt.Errorf("marshal amenities: %w", err)
	}

	now := time.Now().UTC()
	if est.CreatedAt.IsZero() {
		est.CreatedAt = now
	}

	_, err = r.db.ExecContext(ctx, `
INSERT INTO establishments (
	id, name, type, city, address, description, amenities, price_min, price_max, rating, phone, email, website, created_at, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
ON CONFLICT (id) DO UPDATE SET
	name = EXCLUDED.name, type = EXCLUDED.type, city = EXCLUDED.city,
	address = EXCLUDED.address, description = EXCLUDED.description,
	amenities = EXCLUDED.amenities, price_min = EXCLUDED.price_min,
	price_max = EXCLUDED.price_max, rating = EXCLUDED.rating,
	phone = EXCLUDED.phone, email = EXCLUDED.email, website = EXCLUDED.website,
	updated_at = EXCLUDED.updated_at
`,
		est.ID, est.Name, string(est.Type), est.City, est.Address, est.Description, amenitiesJSON,
		est.PriceMin, est.PriceMax, est.Rating, est.Phone, est.Email, est.Website, est.CreatedAt, now,
	)
	if err != nil {
		return fmt.Errorf("upsert establishment: %w", err)
	}
	return nil
}

func (r *EstablishmentRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM establishments WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete establishment: %w", err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return domain.WrapError(domain.ErrEstablishmentNotFound, "delete establishment", fmt.Errorf("id %s", id))
	}
	return nil
}

func (r *EstablishmentRepository) GetByID(ctx context.Context, id string) (*domain.Establishment, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, name, type, city, address, description, amenities, price_min, price_max, rating, phone, email, website, created_at, updated_at
FROM establishments
WHERE id = $1
`, id)

	var est domain.Establishment
	var estType string
	var amenitiesRaw []byte

	err := row.Scan(
		&est.ID, &est.Name, &estType, &est.City, &est.Address, &est.Description,
		&amenitiesRaw, &est.PriceMin, &est.PriceMax, &est.Rating,
		&est.Phone, &est.Email, &est.Website, &est.CreatedAt, &est.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrEstablishmentNotFound, "get establishment", fmt.Errorf("id %s", id))
		}
		return nil, fmt.Errorf("scan establishment: %w", err)
	}

	if err := json.Unmarshal(amenitiesRaw, &est.Amenities); err != nil {
		return nil, fmt.Errorf("unmarshal amenities: %w", err)
	}
	est.Type = domain.EstablishmentCategory(estType)
	return &est, nil
}

func (r *EstablishmentRepository) ListIDs(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id FROM establishments ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list establishment ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan establishment id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate establishment ids: %w", err)
	}
	return ids, nil
}
