package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Sayat07/hacklive-system/models"
)

var ErrVotingWeightsNotFound = errors.New("voting weights not found")

type VotingWeightsRepository interface {
	GetByEvent(ctx context.Context, eventSlug string) (*models.VotingWeights, error)
	// SeedIfAbsent вставляет веса только если их ещё нет (ON CONFLICT DO
	// NOTHING) — ленивое заполнение умолчаний не должно перетирать веса,
	// выставленные админом между чтением и записью.
	SeedIfAbsent(ctx context.Context, weights *models.VotingWeights) error
	Upsert(ctx context.Context, weights *models.VotingWeights) error
}

type postgresVotingWeightsRepository struct {
	db *sql.DB
}

func NewPostgresVotingWeightsRepository(db *sql.DB) VotingWeightsRepository {
	return &postgresVotingWeightsRepository{db: db}
}

func (r *postgresVotingWeightsRepository) GetByEvent(ctx context.Context, eventSlug string) (*models.VotingWeights, error) {
	query := `SELECT event_slug, viability, innovation, pitch, demo FROM voting_weights WHERE event_slug = $1`

	w := &models.VotingWeights{}
	err := r.db.QueryRowContext(ctx, query, eventSlug).Scan(
		&w.EventSlug,
		&w.Viability,
		&w.Innovation,
		&w.Pitch,
		&w.Demo,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrVotingWeightsNotFound
		}
		return nil, fmt.Errorf("failed to get voting weights: %w", err)
	}
	return w, nil
}

func (r *postgresVotingWeightsRepository) SeedIfAbsent(ctx context.Context, weights *models.VotingWeights) error {
	query := `
		INSERT INTO voting_weights (event_slug, viability, innovation, pitch, demo)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (event_slug) DO NOTHING`

	_, err := r.db.ExecContext(ctx, query,
		weights.EventSlug, weights.Viability, weights.Innovation, weights.Pitch, weights.Demo)
	if err != nil {
		return fmt.Errorf("failed to seed voting weights: %w", err)
	}
	return nil
}

func (r *postgresVotingWeightsRepository) Upsert(ctx context.Context, weights *models.VotingWeights) error {
	query := `
		INSERT INTO voting_weights (event_slug, viability, innovation, pitch, demo)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (event_slug) DO UPDATE SET
			viability  = EXCLUDED.viability,
			innovation = EXCLUDED.innovation,
			pitch      = EXCLUDED.pitch,
			demo       = EXCLUDED.demo`

	_, err := r.db.ExecContext(ctx, query,
		weights.EventSlug, weights.Viability, weights.Innovation, weights.Pitch, weights.Demo)
	if err != nil {
		return fmt.Errorf("failed to upsert voting weights: %w", err)
	}
	return nil
}
