package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/Sayat07/hacklive-system/models"
	"github.com/Sayat07/hacklive-system/repositories"
	"github.com/Sayat07/hacklive-system/storage"
	"golang.org/x/sync/errgroup"
)

// EventStandings — текущее табло мероприятия: состояние трансляции плюс
// команды, ранжированные по среднему взвешенному баллу.
type EventStandings struct {
	EventSlug string                       `json:"event_slug"`
	State     *models.BroadcastState       `json:"state"`
	Rankings  []*models.TeamScoreAggregate `json:"rankings"`
}

type ResultsService interface {
	// GetStandings возвращает ранжированное табло. Команды без голосов
	// в выдачу не попадают.
	GetStandings(ctx context.Context, eventSlug string) (*EventStandings, error)
	ListTeams(ctx context.Context, eventSlug string) ([]models.Team, error)
	// ArchiveResults выгружает JSON-снапшот подиума в объектное хранилище
	// для публичного сайта. Вызывается после reveal_results.
	ArchiveResults(ctx context.Context, eventSlug string) error
}

type resultsService struct {
	aggregateRepo   repositories.TeamScoreAggregateRepository
	participantRepo repositories.ParticipantRepository
	broadcastRepo   repositories.BroadcastStateRepository
	eventRepo       repositories.EventRepository
	uploader        storage.FileUploader
	logger          *slog.Logger
}

func NewResultsService(
	aggregateRepo repositories.TeamScoreAggregateRepository,
	participantRepo repositories.ParticipantRepository,
	broadcastRepo repositories.BroadcastStateRepository,
	eventRepo repositories.EventRepository,
	uploader storage.FileUploader,
	logger *slog.Logger,
) ResultsService {
	return &resultsService{
		aggregateRepo:   aggregateRepo,
		participantRepo: participantRepo,
		broadcastRepo:   broadcastRepo,
		eventRepo:       eventRepo,
		uploader:        uploader,
		logger:          logger,
	}
}

func (s *resultsService) GetStandings(ctx context.Context, eventSlug string) (*EventStandings, error) {
	if _, err := s.eventRepo.GetBySlug(ctx, eventSlug); err != nil {
		return nil, mapEventRepoError(err)
	}

	var (
		aggregates []*models.TeamScoreAggregate
		state      *models.BroadcastState
	)

	// Сводки и состояние читаются параллельно: табло дёргают часто.
	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		aggregates, err = s.aggregateRepo.ListByEvent(gCtx, eventSlug)
		if err != nil {
			return fmt.Errorf("failed to list team aggregates for %q: %w", eventSlug, err)
		}
		return nil
	})
	g.Go(func() error {
		loaded, err := s.broadcastRepo.GetBySlug(gCtx, nil, eventSlug)
		if err != nil {
			if errors.Is(err, repositories.ErrBroadcastStateNotFound) {
				state = &models.BroadcastState{
					EventSlug:      eventSlug,
					CurrentState:   models.PhaseIdle,
					TeamsPresented: []string{},
				}
				return nil
			}
			return fmt.Errorf("failed to load broadcast state for %q: %w", eventSlug, err)
		}
		state = loaded
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	RankAggregates(aggregates)
	return &EventStandings{
		EventSlug: eventSlug,
		State:     state,
		Rankings:  aggregates,
	}, nil
}

// RankAggregates сортирует сводки по правилам табло: средний взвешенный балл
// по убыванию, затем количество голосов по убыванию (больше голосов — больше
// уверенности), затем имя команды по возрастанию для детерминизма.
func RankAggregates(aggregates []*models.TeamScoreAggregate) {
	sort.SliceStable(aggregates, func(i, j int) bool {
		a, b := aggregates[i], aggregates[j]
		if a.AvgWeightedScore != b.AvgWeightedScore {
			return a.AvgWeightedScore > b.AvgWeightedScore
		}
		if a.TotalVotes != b.TotalVotes {
			return a.TotalVotes > b.TotalVotes
		}
		return a.TeamName < b.TeamName
	})
}

func (s *resultsService) ListTeams(ctx context.Context, eventSlug string) ([]models.Team, error) {
	if _, err := s.eventRepo.GetBySlug(ctx, eventSlug); err != nil {
		return nil, mapEventRepoError(err)
	}

	participants, err := s.participantRepo.ListByEvent(ctx, eventSlug)
	if err != nil {
		return nil, fmt.Errorf("failed to load participants for %q: %w", eventSlug, err)
	}

	presented := []string{}
	state, err := s.broadcastRepo.GetBySlug(ctx, nil, eventSlug)
	if err == nil {
		presented = state.TeamsPresented
	} else if !errors.Is(err, repositories.ErrBroadcastStateNotFound) {
		return nil, fmt.Errorf("failed to load broadcast state for %q: %w", eventSlug, err)
	}

	return BuildTeams(participants, presented), nil
}

type resultsSnapshot struct {
	EventSlug   string                       `json:"event_slug"`
	GeneratedAt time.Time                    `json:"generated_at"`
	Rankings    []*models.TeamScoreAggregate `json:"rankings"`
}

func (s *resultsService) ArchiveResults(ctx context.Context, eventSlug string) error {
	if s.uploader == nil {
		return nil
	}

	standings, err := s.GetStandings(ctx, eventSlug)
	if err != nil {
		return err
	}

	snapshot := resultsSnapshot{
		EventSlug:   eventSlug,
		GeneratedAt: time.Now().UTC(),
		Rankings:    standings.Rankings,
	}
	payload, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to marshal results snapshot: %w", err)
	}

	key := fmt.Sprintf("results/%s.json", eventSlug)
	result, err := s.uploader.Upload(ctx, key, "application/json", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to upload results snapshot: %w", err)
	}

	s.logger.Info("results snapshot archived",
		slog.String("event_slug", eventSlug),
		slog.String("key", result.Key),
		slog.String("location", result.Location),
	)
	return nil
}
