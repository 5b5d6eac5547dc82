package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Sayat07/hacklive-system/models"
)

var ErrAggregateNotFound = errors.New("team score aggregate not found")

// TeamScoreAggregateRepository считает сводки напрямую из votes — отдельной
// таблицы агрегатов нет, поэтому данные не могут разойтись с леджером.
type TeamScoreAggregateRepository interface {
	GetByEventAndTeam(ctx context.Context, eventSlug, teamName string) (*models.TeamScoreAggregate, error)
	// ListByEvent возвращает сводки всех команд с хотя бы одним голосом,
	// без какого-либо порядка: ранжирование — дело сервиса.
	ListByEvent(ctx context.Context, eventSlug string) ([]*models.TeamScoreAggregate, error)
}

type postgresTeamScoreAggregateRepository struct {
	db *sql.DB
}

func NewPostgresTeamScoreAggregateRepository(db *sql.DB) TeamScoreAggregateRepository {
	return &postgresTeamScoreAggregateRepository{db: db}
}

const aggregateSelectSQL = `
	SELECT
		event_slug,
		team_name,
		COUNT(*)                 AS total_votes,
		AVG(score_viability)     AS avg_viability,
		AVG(score_innovation)    AS avg_innovation,
		AVG(score_pitch)         AS avg_pitch,
		AVG(score_demo)          AS avg_demo,
		AVG(weighted_score)      AS avg_weighted_score
	FROM votes`

func (r *postgresTeamScoreAggregateRepository) scanAggregate(rowScanner interface {
	Scan(dest ...interface{}) error
}) (*models.TeamScoreAggregate, error) {
	var a models.TeamScoreAggregate
	err := rowScanner.Scan(
		&a.EventSlug,
		&a.TeamName,
		&a.TotalVotes,
		&a.AvgViability,
		&a.AvgInnovation,
		&a.AvgPitch,
		&a.AvgDemo,
		&a.AvgWeightedScore,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAggregateNotFound
		}
		return nil, fmt.Errorf("failed to scan team score aggregate: %w", err)
	}
	return &a, nil
}

func (r *postgresTeamScoreAggregateRepository) GetByEventAndTeam(ctx context.Context, eventSlug, teamName string) (*models.TeamScoreAggregate, error) {
	query := aggregateSelectSQL + `
	WHERE event_slug = $1 AND team_name = $2
	GROUP BY event_slug, team_name`
	return r.scanAggregate(r.db.QueryRowContext(ctx, query, eventSlug, teamName))
}

func (r *postgresTeamScoreAggregateRepository) ListByEvent(ctx context.Context, eventSlug string) ([]*models.TeamScoreAggregate, error) {
	query := aggregateSelectSQL + `
	WHERE event_slug = $1
	GROUP BY event_slug, team_name`

	rows, err := r.db.QueryContext(ctx, query, eventSlug)
	if err != nil {
		return nil, fmt.Errorf("failed to list team score aggregates: %w", err)
	}
	defer rows.Close()

	aggregates := make([]*models.TeamScoreAggregate, 0)
	for rows.Next() {
		a, errScan := r.scanAggregate(rows)
		if errScan != nil {
			return nil, errScan
		}
		aggregates = append(aggregates, a)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating aggregate rows: %w", err)
	}
	return aggregates, nil
}
