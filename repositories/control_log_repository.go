package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Sayat07/hacklive-system/models"
	"github.com/google/uuid"
)

type ControlLogRepository interface {
	// Append пишет запись журнала. Принимает SQLExecutor, чтобы успешные
	// команды логировались атомарно с upsert'ом состояния.
	Append(ctx context.Context, exec SQLExecutor, entry *models.ControlLogEntry) error
	ListByEvent(ctx context.Context, eventSlug string, limit int) ([]*models.ControlLogEntry, error)
}

type postgresControlLogRepository struct {
	db *sql.DB
}

func NewPostgresControlLogRepository(db *sql.DB) ControlLogRepository {
	return &postgresControlLogRepository{db: db}
}

func (r *postgresControlLogRepository) Append(ctx context.Context, exec SQLExecutor, entry *models.ControlLogEntry) error {
	executor := SQLExecutor(r.db)
	if exec != nil {
		executor = exec
	}

	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	metadata := entry.Metadata
	if len(metadata) == 0 {
		metadata = []byte(`{}`)
	}

	query := `
		INSERT INTO control_log (id, event_slug, action, team_name, triggered_by, metadata)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at`

	err := executor.QueryRowContext(ctx, query,
		entry.ID,
		entry.EventSlug,
		entry.Action,
		entry.TeamName,
		entry.TriggeredBy,
		[]byte(metadata),
	).Scan(&entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to append control log entry: %w", err)
	}
	return nil
}

func (r *postgresControlLogRepository) ListByEvent(ctx context.Context, eventSlug string, limit int) ([]*models.ControlLogEntry, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	query := `
		SELECT id, event_slug, action, team_name, triggered_by, metadata, created_at
		FROM control_log
		WHERE event_slug = $1
		ORDER BY created_at DESC
		LIMIT $2`

	rows, err := r.db.QueryContext(ctx, query, eventSlug, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list control log entries: %w", err)
	}
	defer rows.Close()

	entries := make([]*models.ControlLogEntry, 0)
	for rows.Next() {
		var e models.ControlLogEntry
		var metadata []byte
		if err := rows.Scan(&e.ID, &e.EventSlug, &e.Action, &e.TeamName, &e.TriggeredBy, &metadata, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan control log row: %w", err)
		}
		e.Metadata = metadata
		entries = append(entries, &e)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating control log rows: %w", err)
	}
	return entries, nil
}
