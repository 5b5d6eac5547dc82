package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Sayat07/hacklive-system/models"
	"github.com/lib/pq"
)

var ErrBroadcastStateNotFound = errors.New("broadcast state not found")

type BroadcastStateRepository interface {
	GetBySlug(ctx context.Context, exec SQLExecutor, eventSlug string) (*models.BroadcastState, error)
	// GetBySlugForUpdate блокирует строку состояния (SELECT ... FOR UPDATE),
	// чтобы две конкурентные команды не прошли проверку одновременно.
	// Должен вызываться только внутри транзакции.
	GetBySlugForUpdate(ctx context.Context, exec SQLExecutor, eventSlug string) (*models.BroadcastState, error)
	Upsert(ctx context.Context, exec SQLExecutor, state *models.BroadcastState) error
	// ListExpiredVoting возвращает слаги мероприятий, у которых voting_open
	// пережил свой дедлайн. Используется только reaper'ом.
	ListExpiredVoting(ctx context.Context) ([]string, error)
}

type postgresBroadcastStateRepository struct {
	db *sql.DB
}

func NewPostgresBroadcastStateRepository(db *sql.DB) BroadcastStateRepository {
	return &postgresBroadcastStateRepository{db: db}
}

func (r *postgresBroadcastStateRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

const broadcastStateColumns = `event_slug, current_state, current_team_name, voting_closes_at, pitch_closes_at, teams_presented, updated_by, updated_at`

func (r *postgresBroadcastStateRepository) scanState(rowScanner interface {
	Scan(dest ...interface{}) error
}) (*models.BroadcastState, error) {
	var s models.BroadcastState
	var presented pq.StringArray
	err := rowScanner.Scan(
		&s.EventSlug,
		&s.CurrentState,
		&s.CurrentTeamName,
		&s.VotingClosesAt,
		&s.PitchClosesAt,
		&presented,
		&s.UpdatedBy,
		&s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrBroadcastStateNotFound
		}
		return nil, fmt.Errorf("failed to scan broadcast state: %w", err)
	}
	s.TeamsPresented = []string(presented)
	return &s, nil
}

func (r *postgresBroadcastStateRepository) GetBySlug(ctx context.Context, exec SQLExecutor, eventSlug string) (*models.BroadcastState, error) {
	executor := r.getExecutor(exec)
	query := `SELECT ` + broadcastStateColumns + ` FROM broadcast_states WHERE event_slug = $1`
	return r.scanState(executor.QueryRowContext(ctx, query, eventSlug))
}

func (r *postgresBroadcastStateRepository) GetBySlugForUpdate(ctx context.Context, exec SQLExecutor, eventSlug string) (*models.BroadcastState, error) {
	executor := r.getExecutor(exec)
	query := `SELECT ` + broadcastStateColumns + ` FROM broadcast_states WHERE event_slug = $1 FOR UPDATE`
	return r.scanState(executor.QueryRowContext(ctx, query, eventSlug))
}

func (r *postgresBroadcastStateRepository) Upsert(ctx context.Context, exec SQLExecutor, state *models.BroadcastState) error {
	executor := r.getExecutor(exec)
	query := `
		INSERT INTO broadcast_states
			(event_slug, current_state, current_team_name, voting_closes_at, pitch_closes_at, teams_presented, updated_by, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
		ON CONFLICT (event_slug) DO UPDATE SET
			current_state     = EXCLUDED.current_state,
			current_team_name = EXCLUDED.current_team_name,
			voting_closes_at  = EXCLUDED.voting_closes_at,
			pitch_closes_at   = EXCLUDED.pitch_closes_at,
			teams_presented   = EXCLUDED.teams_presented,
			updated_by        = EXCLUDED.updated_by,
			updated_at        = NOW()
		RETURNING updated_at`

	err := executor.QueryRowContext(ctx, query,
		state.EventSlug,
		state.CurrentState,
		state.CurrentTeamName,
		state.VotingClosesAt,
		state.PitchClosesAt,
		pq.StringArray(state.TeamsPresented),
		state.UpdatedBy,
	).Scan(&state.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert broadcast state: %w", err)
	}
	return nil
}

func (r *postgresBroadcastStateRepository) ListExpiredVoting(ctx context.Context) ([]string, error) {
	query := `
		SELECT event_slug FROM broadcast_states
		WHERE current_state = $1 AND voting_closes_at IS NOT NULL AND voting_closes_at < NOW()`

	rows, err := r.db.QueryContext(ctx, query, models.PhaseVotingOpen)
	if err != nil {
		return nil, fmt.Errorf("failed to list expired voting states: %w", err)
	}
	defer rows.Close()

	slugs := make([]string, 0)
	for rows.Next() {
		var slug string
		if err := rows.Scan(&slug); err != nil {
			return nil, fmt.Errorf("failed to scan expired voting slug: %w", err)
		}
		slugs = append(slugs, slug)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating expired voting rows: %w", err)
	}
	return slugs, nil
}
