package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Sayat07/hacklive-system/models"
)

var ErrEventNotFound = errors.New("event not found")

type EventRepository interface {
	GetBySlug(ctx context.Context, slug string) (*models.Event, error)
	SetActive(ctx context.Context, exec SQLExecutor, slug string, active bool) error
}

type postgresEventRepository struct {
	db *sql.DB
}

func NewPostgresEventRepository(db *sql.DB) EventRepository {
	return &postgresEventRepository{db: db}
}

func (r *postgresEventRepository) GetBySlug(ctx context.Context, slug string) (*models.Event, error) {
	query := `SELECT slug, name, starts_at, ends_at, is_active FROM events WHERE slug = $1`

	e := &models.Event{}
	err := r.db.QueryRowContext(ctx, query, slug).Scan(
		&e.Slug,
		&e.Name,
		&e.StartsAt,
		&e.EndsAt,
		&e.IsActive,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrEventNotFound
		}
		return nil, fmt.Errorf("failed to get event by slug: %w", err)
	}
	return e, nil
}

func (r *postgresEventRepository) SetActive(ctx context.Context, exec SQLExecutor, slug string, active bool) error {
	executor := SQLExecutor(r.db)
	if exec != nil {
		executor = exec
	}
	query := `UPDATE events SET is_active = $1 WHERE slug = $2`
	result, err := executor.ExecContext(ctx, query, active, slug)
	if err != nil {
		return fmt.Errorf("failed to update event visibility: %w", err)
	}
	return checkAffectedRows(result, ErrEventNotFound)
}
