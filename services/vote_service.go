package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Sayat07/hacklive-system/metrics"
	"github.com/Sayat07/hacklive-system/models"
	"github.com/Sayat07/hacklive-system/realtime"
	"github.com/Sayat07/hacklive-system/repositories"
)

// SubmitVoteInput — голос зарегистрированного участника за текущую команду.
type SubmitVoteInput struct {
	EventSlug string
	TeamName  string
	Scores    models.SubScores
}

type VoteService interface {
	SubmitVote(ctx context.Context, voterUserID int, input SubmitVoteInput) (*models.Vote, error)
	GetMyVote(ctx context.Context, voterUserID int, eventSlug, teamName string) (*models.Vote, error)
	// ListTeamVotes отдаёт полный леджер голосов за команду; только для
	// админского аудита, голосующим видны лишь агрегаты.
	ListTeamVotes(ctx context.Context, eventSlug, teamName string) ([]*models.Vote, error)
	GetWeights(ctx context.Context, eventSlug string) (*models.VotingWeights, error)
	SetWeights(ctx context.Context, eventSlug string, weights models.VotingWeights) (*models.VotingWeights, error)
}

type voteService struct {
	voteRepo        repositories.VoteRepository
	weightsRepo     repositories.VotingWeightsRepository
	participantRepo repositories.ParticipantRepository
	broadcastRepo   repositories.BroadcastStateRepository
	eventRepo       repositories.EventRepository
	aggregateRepo   repositories.TeamScoreAggregateRepository
	hub             *realtime.Hub
	metrics         *metrics.Metrics
	logger          *slog.Logger
}

func NewVoteService(
	voteRepo repositories.VoteRepository,
	weightsRepo repositories.VotingWeightsRepository,
	participantRepo repositories.ParticipantRepository,
	broadcastRepo repositories.BroadcastStateRepository,
	eventRepo repositories.EventRepository,
	aggregateRepo repositories.TeamScoreAggregateRepository,
	hub *realtime.Hub,
	m *metrics.Metrics,
	logger *slog.Logger,
) VoteService {
	return &voteService{
		voteRepo:        voteRepo,
		weightsRepo:     weightsRepo,
		participantRepo: participantRepo,
		broadcastRepo:   broadcastRepo,
		eventRepo:       eventRepo,
		aggregateRepo:   aggregateRepo,
		hub:             hub,
		metrics:         m,
		logger:          logger,
	}
}

// SubmitVote проводит голос через все проверки анти-чита и пишет его в леджер.
// Повторный голос отсекает уникальный индекс БД, а не чтение-перед-записью:
// только так дубликаты исключаются и при гонке двух запросов одного голосующего.
func (s *voteService) SubmitVote(ctx context.Context, voterUserID int, input SubmitVoteInput) (*models.Vote, error) {
	if input.TeamName == "" {
		return nil, s.reject("team_required", ErrTeamNameRequired)
	}
	if err := ValidateSubScores(input.Scores); err != nil {
		return nil, s.reject("score_out_of_range", err)
	}

	event, err := s.eventRepo.GetBySlug(ctx, input.EventSlug)
	if err != nil {
		return nil, mapEventRepoError(err)
	}
	// После reveal_results мероприятие снято с эфира, голоса не принимаются.
	if !event.IsActive {
		return nil, s.reject("event_ended", ErrEventNotActive)
	}

	// Свежий снапшот участников: из него же выводится команда голосующего.
	participants, err := s.participantRepo.ListByEvent(ctx, input.EventSlug)
	if err != nil {
		return nil, fmt.Errorf("failed to load participants for %q: %w", input.EventSlug, err)
	}
	voterTeam, err := ResolveTeamName(participants, voterUserID)
	if err != nil {
		return nil, s.reject("not_registered", err)
	}
	if voterTeam == input.TeamName {
		return nil, s.reject("self_vote", ErrSelfVoteForbidden)
	}

	// Серверная проверка окна; времени клиента не верим.
	state, err := s.broadcastRepo.GetBySlug(ctx, nil, input.EventSlug)
	if err != nil {
		if errors.Is(err, repositories.ErrBroadcastStateNotFound) {
			return nil, s.reject("voting_not_open", ErrVotingNotOpen)
		}
		return nil, fmt.Errorf("failed to load broadcast state for %q: %w", input.EventSlug, err)
	}
	if state.CurrentState != models.PhaseVotingOpen ||
		state.CurrentTeamName == nil || *state.CurrentTeamName != input.TeamName {
		return nil, s.reject("voting_not_open", ErrVotingNotOpen)
	}
	if state.VotingClosesAt == nil || !time.Now().Before(*state.VotingClosesAt) {
		return nil, s.reject("window_expired", ErrVotingWindowExpired)
	}

	weights, err := s.resolveWeights(ctx, input.EventSlug)
	if err != nil {
		return nil, err
	}

	vote := &models.Vote{
		EventSlug:       input.EventSlug,
		TeamName:        input.TeamName,
		VoterUserID:     voterUserID,
		ScoreViability:  input.Scores.Viability,
		ScoreInnovation: input.Scores.Innovation,
		ScorePitch:      input.Scores.Pitch,
		ScoreDemo:       input.Scores.Demo,
		WeightedScore:   WeightedScore(input.Scores, *weights),
	}

	if err := s.voteRepo.Create(ctx, vote); err != nil {
		if errors.Is(err, repositories.ErrVoteDuplicate) {
			return nil, s.reject("duplicate", ErrAlreadyVoted)
		}
		if errors.Is(err, repositories.ErrVoteScoreViolation) {
			return nil, s.reject("score_out_of_range", ErrScoreOutOfRange)
		}
		return nil, fmt.Errorf("failed to persist vote: %w", err)
	}

	if s.metrics != nil {
		s.metrics.VotesAccepted.Inc()
	}

	// Счётчик активности голосующего: по одному очку за каждое разосланное
	// VOTE_RECORDED. Побочный эффект, голос уже записан.
	if err := s.participantRepo.IncrementPoints(ctx, input.EventSlug, voterUserID, 1); err != nil {
		s.logger.Warn("failed to increment voter points",
			slog.String("event_slug", input.EventSlug),
			slog.Int("voter_user_id", voterUserID),
			slog.Any("error", err))
	}

	// Свежая сводка по команде уходит всем подписчикам вместе с фактом голоса.
	aggregate, aggErr := s.aggregateRepo.GetByEventAndTeam(ctx, input.EventSlug, input.TeamName)
	if aggErr != nil {
		s.logger.Error("failed to refresh team aggregate after vote",
			slog.String("event_slug", input.EventSlug),
			slog.String("team_name", input.TeamName),
			slog.Any("error", aggErr))
	} else {
		s.hub.BroadcastToEvent(input.EventSlug, realtime.MessageVoteRecorded, map[string]interface{}{
			"team_name": input.TeamName,
			"aggregate": aggregate,
		})
	}

	return vote, nil
}

func (s *voteService) GetMyVote(ctx context.Context, voterUserID int, eventSlug, teamName string) (*models.Vote, error) {
	if _, err := s.participantRepo.FindByEventAndUser(ctx, eventSlug, voterUserID); err != nil {
		if errors.Is(err, repositories.ErrParticipantNotFound) {
			return nil, ErrNotRegistered
		}
		return nil, fmt.Errorf("failed to check registration: %w", err)
	}
	vote, err := s.voteRepo.FindByVoterAndTeam(ctx, eventSlug, teamName, voterUserID)
	if err != nil {
		if errors.Is(err, repositories.ErrVoteNotFound) {
			return nil, nil // ещё не голосовал — не ошибка
		}
		return nil, fmt.Errorf("failed to load vote: %w", err)
	}
	return vote, nil
}

func (s *voteService) ListTeamVotes(ctx context.Context, eventSlug, teamName string) ([]*models.Vote, error) {
	if _, err := s.eventRepo.GetBySlug(ctx, eventSlug); err != nil {
		return nil, mapEventRepoError(err)
	}
	votes, err := s.voteRepo.ListByEventAndTeam(ctx, eventSlug, teamName)
	if err != nil {
		return nil, fmt.Errorf("failed to list team votes: %w", err)
	}
	return votes, nil
}

// GetWeights возвращает действующие веса мероприятия. Если админ их не
// настраивал, отдаётся шаблон по умолчанию — чтобы fallback был видим до
// первого голоса, а не обнаруживался по странным цифрам.
func (s *voteService) GetWeights(ctx context.Context, eventSlug string) (*models.VotingWeights, error) {
	if _, err := s.eventRepo.GetBySlug(ctx, eventSlug); err != nil {
		return nil, mapEventRepoError(err)
	}
	weights, err := s.weightsRepo.GetByEvent(ctx, eventSlug)
	if err != nil {
		if errors.Is(err, repositories.ErrVotingWeightsNotFound) {
			defaults := models.DefaultVotingWeights(eventSlug)
			return &defaults, nil
		}
		return nil, fmt.Errorf("failed to load voting weights: %w", err)
	}
	return weights, nil
}

func (s *voteService) SetWeights(ctx context.Context, eventSlug string, weights models.VotingWeights) (*models.VotingWeights, error) {
	if _, err := s.eventRepo.GetBySlug(ctx, eventSlug); err != nil {
		return nil, mapEventRepoError(err)
	}
	if err := ValidateWeights(weights); err != nil {
		return nil, err
	}
	weights.EventSlug = eventSlug
	if err := s.weightsRepo.Upsert(ctx, &weights); err != nil {
		return nil, fmt.Errorf("failed to save voting weights: %w", err)
	}
	return &weights, nil
}

// resolveWeights читает веса, при их отсутствии лениво сохраняет шаблон по
// умолчанию, чтобы все последующие голоса считались одинаково.
func (s *voteService) resolveWeights(ctx context.Context, eventSlug string) (*models.VotingWeights, error) {
	weights, err := s.weightsRepo.GetByEvent(ctx, eventSlug)
	if err == nil {
		return weights, nil
	}
	if !errors.Is(err, repositories.ErrVotingWeightsNotFound) {
		return nil, fmt.Errorf("failed to load voting weights: %w", err)
	}

	defaults := models.DefaultVotingWeights(eventSlug)
	if seedErr := s.weightsRepo.SeedIfAbsent(ctx, &defaults); seedErr != nil {
		return nil, fmt.Errorf("failed to seed default voting weights: %w", seedErr)
	}
	// Перечитываем: конкурентный голос или админ могли успеть записать своё.
	weights, err = s.weightsRepo.GetByEvent(ctx, eventSlug)
	if err != nil {
		return nil, fmt.Errorf("failed to reload voting weights after seeding: %w", err)
	}
	return weights, nil
}

func (s *voteService) reject(reason string, err error) error {
	if s.metrics != nil {
		s.metrics.VotesRejected.WithLabelValues(reason).Inc()
	}
	return err
}
