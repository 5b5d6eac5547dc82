package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Sayat07/hacklive-system/models"
	"github.com/lib/pq"
)

var (
	ErrVoteNotFound = errors.New("vote not found")
	// ErrVoteDuplicate возвращается при нарушении уникальности
	// (event_slug, team_name, voter_user_id) — именно так, атомарно на уровне
	// БД, отлавливаются повторные голоса, в том числе при гонке.
	ErrVoteDuplicate = errors.New("vote duplicate: voter already voted for this team")
	// ErrVoteScoreViolation — нарушение CHECK-ограничения 0..10 в БД
	// (вторая линия обороны после валидации сервиса).
	ErrVoteScoreViolation = errors.New("vote score out of allowed range")
)

type VoteRepository interface {
	Create(ctx context.Context, vote *models.Vote) error
	FindByVoterAndTeam(ctx context.Context, eventSlug, teamName string, voterUserID int) (*models.Vote, error)
	ListByEventAndTeam(ctx context.Context, eventSlug, teamName string) ([]*models.Vote, error)
}

type postgresVoteRepository struct {
	db *sql.DB
}

func NewPostgresVoteRepository(db *sql.DB) VoteRepository {
	return &postgresVoteRepository{db: db}
}

func (r *postgresVoteRepository) Create(ctx context.Context, vote *models.Vote) error {
	query := `
		INSERT INTO votes
			(event_slug, team_name, voter_user_id, score_viability, score_innovation, score_pitch, score_demo, weighted_score)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at`

	err := r.db.QueryRowContext(ctx, query,
		vote.EventSlug,
		vote.TeamName,
		vote.VoterUserID,
		vote.ScoreViability,
		vote.ScoreInnovation,
		vote.ScorePitch,
		vote.ScoreDemo,
		vote.WeightedScore,
	).Scan(&vote.ID, &vote.CreatedAt)

	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok {
			switch pqErr.Code {
			case "23505": // unique_violation
				if pqErr.Constraint == "votes_event_slug_team_name_voter_user_id_key" {
					return ErrVoteDuplicate
				}
			case "23514": // check_violation
				return ErrVoteScoreViolation
			}
		}
		return fmt.Errorf("failed to create vote: %w", err)
	}
	return nil
}

func (r *postgresVoteRepository) scanVote(rowScanner interface {
	Scan(dest ...interface{}) error
}, v *models.Vote) error {
	return rowScanner.Scan(
		&v.ID,
		&v.EventSlug,
		&v.TeamName,
		&v.VoterUserID,
		&v.ScoreViability,
		&v.ScoreInnovation,
		&v.ScorePitch,
		&v.ScoreDemo,
		&v.WeightedScore,
		&v.CreatedAt,
	)
}

func (r *postgresVoteRepository) FindByVoterAndTeam(ctx context.Context, eventSlug, teamName string, voterUserID int) (*models.Vote, error) {
	query := `
		SELECT id, event_slug, team_name, voter_user_id, score_viability, score_innovation, score_pitch, score_demo, weighted_score, created_at
		FROM votes
		WHERE event_slug = $1 AND team_name = $2 AND voter_user_id = $3`

	v := &models.Vote{}
	row := r.db.QueryRowContext(ctx, query, eventSlug, teamName, voterUserID)
	if err := r.scanVote(row, v); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrVoteNotFound
		}
		return nil, fmt.Errorf("failed to find vote: %w", err)
	}
	return v, nil
}

func (r *postgresVoteRepository) ListByEventAndTeam(ctx context.Context, eventSlug, teamName string) ([]*models.Vote, error) {
	query := `
		SELECT id, event_slug, team_name, voter_user_id, score_viability, score_innovation, score_pitch, score_demo, weighted_score, created_at
		FROM votes
		WHERE event_slug = $1 AND team_name = $2
		ORDER BY created_at ASC`

	rows, err := r.db.QueryContext(ctx, query, eventSlug, teamName)
	if err != nil {
		return nil, fmt.Errorf("failed to list votes: %w", err)
	}
	defer rows.Close()

	votes := make([]*models.Vote, 0)
	for rows.Next() {
		var v models.Vote
		if err := r.scanVote(rows, &v); err != nil {
			return nil, fmt.Errorf("failed to scan vote row: %w", err)
		}
		votes = append(votes, &v)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating vote rows: %w", err)
	}
	return votes, nil
}
