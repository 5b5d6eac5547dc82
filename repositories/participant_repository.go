package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Sayat07/hacklive-system/models"
)

var ErrParticipantNotFound = errors.New("participant not found")

type ParticipantRepository interface {
	// ListByEvent возвращает участников мероприятия строго в порядке
	// registered_at ASC (при равенстве — user_id ASC для детерминизма).
	// Порядок — контракт: от него зависит вывод команд.
	ListByEvent(ctx context.Context, eventSlug string) ([]*models.Participant, error)
	FindByEventAndUser(ctx context.Context, eventSlug string, userID int) (*models.Participant, error)
	CountByEvent(ctx context.Context, eventSlug string) (int, error)
	IncrementPoints(ctx context.Context, eventSlug string, userID int, delta int) error
}

type postgresParticipantRepository struct {
	db *sql.DB
}

func NewPostgresParticipantRepository(db *sql.DB) ParticipantRepository {
	return &postgresParticipantRepository{db: db}
}

func (r *postgresParticipantRepository) scanParticipant(rowScanner interface {
	Scan(dest ...interface{}) error
}, p *models.Participant) error {
	return rowScanner.Scan(
		&p.EventSlug,
		&p.UserID,
		&p.RegisteredAt,
		&p.PrdsCreated,
		&p.Points,
	)
}

func (r *postgresParticipantRepository) ListByEvent(ctx context.Context, eventSlug string) ([]*models.Participant, error) {
	query := `
		SELECT event_slug, user_id, registered_at, prds_created, points
		FROM participants
		WHERE event_slug = $1
		ORDER BY registered_at ASC, user_id ASC`

	rows, err := r.db.QueryContext(ctx, query, eventSlug)
	if err != nil {
		return nil, fmt.Errorf("failed to list participants by event: %w", err)
	}
	defer rows.Close()

	participants := make([]*models.Participant, 0)
	for rows.Next() {
		var p models.Participant
		if err := r.scanParticipant(rows, &p); err != nil {
			return nil, fmt.Errorf("failed to scan participant row: %w", err)
		}
		participants = append(participants, &p)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating participant rows: %w", err)
	}
	return participants, nil
}

func (r *postgresParticipantRepository) FindByEventAndUser(ctx context.Context, eventSlug string, userID int) (*models.Participant, error) {
	query := `
		SELECT event_slug, user_id, registered_at, prds_created, points
		FROM participants
		WHERE event_slug = $1 AND user_id = $2`

	p := &models.Participant{}
	row := r.db.QueryRowContext(ctx, query, eventSlug, userID)
	if err := r.scanParticipant(row, p); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrParticipantNotFound
		}
		return nil, fmt.Errorf("failed to find participant: %w", err)
	}
	return p, nil
}

func (r *postgresParticipantRepository) CountByEvent(ctx context.Context, eventSlug string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM participants WHERE event_slug = $1`, eventSlug,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count participants: %w", err)
	}
	return count, nil
}

func (r *postgresParticipantRepository) IncrementPoints(ctx context.Context, eventSlug string, userID int, delta int) error {
	query := `UPDATE participants SET points = points + $1 WHERE event_slug = $2 AND user_id = $3`
	result, err := r.db.ExecContext(ctx, query, delta, eventSlug, userID)
	if err != nil {
		return fmt.Errorf("failed to increment participant points: %w", err)
	}
	return checkAffectedRows(result, ErrParticipantNotFound)
}
