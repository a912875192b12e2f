package project

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/substratehq/substrate/pkg/pg"
)

// PgStore persists projects in Postgres.
type PgStore struct {
	pool *pgxpool.Pool
}

func NewPgStore(pool *pgxpool.Pool) *PgStore {
	return &PgStore{pool: pool}
}

func (s *PgStore) Create(ctx context.Context, p *Project) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO projects (id, owner_id, title, description, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		p.ID, p.OwnerID, p.Title, p.Description, p.Status, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert project: %w", err)
	}
	return nil
}

func (s *PgStore) ByID(ctx context.Context, ownerID, id uuid.UUID) (*Project, error) {
	var p Project
	err := s.pool.QueryRow(ctx, `
		SELECT id, owner_id, title, description, status, created_at, updated_at
		FROM projects
		WHERE id = $1 AND owner_id = $2`, id, ownerID).Scan(
		&p.ID, &p.OwnerID, &p.Title, &p.Description, &p.Status, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if pg.IsNotFound(err) {
			return nil, ErrProjectNotFound
		}
		return nil, fmt.Errorf("query project: %w", err)
	}
	return &p, nil
}

func (s *PgStore) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]Project, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, owner_id, title, description, status, created_at, updated_at
		FROM projects
		WHERE owner_id = $1
		ORDER BY created_at DESC`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("query projects: %w", err)
	}
	defer rows.Close()

	var out []Project
	for rows.Next() {
		var p Project
		if err := rows.Scan(&p.ID, &p.OwnerID, &p.Title, &p.Description, &p.Status,
			&p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *PgStore) Update(ctx context.Context, p *Project) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE projects
		SET title = $3, description = $4, status = $5, updated_at = $6
		WHERE id = $1 AND owner_id = $2`,
		p.ID, p.OwnerID, p.Title, p.Description, p.Status, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update project: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrProjectNotFound
	}
	return nil
}

func (s *PgStore) Delete(ctx context.Context, ownerID, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM projects WHERE id = $1 AND owner_id = $2`, id, ownerID)
	if err != nil {
		return fmt.Errorf("delete project: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrProjectNotFound
	}
	return nil
}

var _ Store = (*PgStore)(nil)
