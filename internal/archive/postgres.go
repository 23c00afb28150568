package archive

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/prospecthq/prospector/pkg/models"
)

// PostgresStore implements the Store interface using pgx/v5.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgresStore.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Ping checks database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *PostgresStore) SaveProfile(ctx context.Context, p *models.ArchivedProfile) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO profiles (id, subject_name, profile, validated, source_count, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		p.ID, p.SubjectName, p.Profile, p.Validated, p.SourceCount, p.CreatedAt)
	if err != nil {
		return fmt.Errorf("save profile: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetProfile(ctx context.Context, id uuid.UUID) (*models.ArchivedProfile, error) {
	var p models.ArchivedProfile
	err := s.pool.QueryRow(ctx,
		`SELECT id, subject_name, profile, validated, source_count, created_at
		 FROM profiles WHERE id = $1`, id,
	).Scan(&p.ID, &p.SubjectName, &p.Profile, &p.Validated, &p.SourceCount, &p.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}
	return &p, nil
}

func (s *PostgresStore) ListProfiles(ctx context.Context, filter ProfileFilter) ([]*models.ArchivedProfile, int, error) {
	where := `WHERE ($1 = '' OR subject_name ILIKE '%' || $1 || '%')
		AND ($2::timestamptz IS NULL OR created_at >= $2)`

	var since any
	if !filter.Since.IsZero() {
		since = filter.Since
	}

	var total int
	if err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM profiles `+where, filter.SubjectName, since,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count profiles: %w", err)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}

	rows, err := s.pool.Query(ctx,
		`SELECT id, subject_name, profile, validated, source_count, created_at
		 FROM profiles `+where+`
		 ORDER BY created_at DESC LIMIT $3 OFFSET $4`,
		filter.SubjectName, since, limit, (page-1)*limit)
	if err != nil {
		return nil, 0, fmt.Errorf("list profiles: %w", err)
	}
	defer rows.Close()

	var profiles []*models.ArchivedProfile
	for rows.Next() {
		var p models.ArchivedProfile
		if err := rows.Scan(&p.ID, &p.SubjectName, &p.Profile, &p.Validated, &p.SourceCount, &p.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("scan profile: %w", err)
		}
		profiles = append(profiles, &p)
	}
	return profiles, total, rows.Err()
}

// Compile-time check that PostgresStore implements Store.
var _ Store = (*PostgresStore)(nil)
