package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/Sayat07/hacklive-system/metrics"
	"github.com/Sayat07/hacklive-system/models"
	"github.com/Sayat07/hacklive-system/realtime"
	"github.com/Sayat07/hacklive-system/repositories"
)

// BroadcastCommandInput — разобранная команда админа.
type BroadcastCommandInput struct {
	Action                models.BroadcastAction `json:"action"`
	TeamName              *string                `json:"team_name,omitempty"`
	VotingDurationSeconds *int                   `json:"voting_duration_seconds,omitempty"`
	PitchDurationSeconds  *int                   `json:"pitch_duration_seconds,omitempty"`
	RandomMode            bool                   `json:"random_mode,omitempty"`
}

// BroadcastConfig — серверные длительности по умолчанию; команда может их
// переопределить на один переход.
type BroadcastConfig struct {
	DefaultPitchDuration  time.Duration
	DefaultVotingDuration time.Duration
}

// ResultsArchiver — необязательный хук: после reveal_results снапшот подиума
// выгружается во внешнее хранилище. Ошибки не блокируют переход.
type ResultsArchiver interface {
	ArchiveResults(ctx context.Context, eventSlug string) error
}

type BroadcastService interface {
	// ExecuteCommand применяет команду админа к авторитетной строке состояния.
	// Проверка и запись выполняются под блокировкой строки (SELECT ... FOR
	// UPDATE), поэтому две конкурентные open_voting не пройдут обе.
	ExecuteCommand(ctx context.Context, eventSlug string, adminUserID int, input BroadcastCommandInput) (*models.BroadcastState, error)
	GetState(ctx context.Context, eventSlug string) (*models.BroadcastState, error)
	ListControlLog(ctx context.Context, eventSlug string, limit int) ([]*models.ControlLogEntry, error)
	// CloseExpired переводит просроченные voting_open в idle. Вызывается
	// только фоновым reaper'ом; использует ту же транзакционную дисциплину,
	// что и close_voting — второго гоночного пути записи нет. Корректность
	// движка от него не зависит: окно перепроверяется на каждом голосе.
	CloseExpired(ctx context.Context) (int, error)
}

type broadcastService struct {
	db              *sql.DB
	broadcastRepo   repositories.BroadcastStateRepository
	participantRepo repositories.ParticipantRepository
	controlLogRepo  repositories.ControlLogRepository
	eventRepo       repositories.EventRepository
	hub             *realtime.Hub
	announcer       Announcer
	archiver        ResultsArchiver
	metrics         *metrics.Metrics
	cfg             BroadcastConfig
	logger          *slog.Logger

	// pick выделен полем ради детерминированных тестов случайного выбора.
	pick func(n int) int
}

func NewBroadcastService(
	db *sql.DB,
	broadcastRepo repositories.BroadcastStateRepository,
	participantRepo repositories.ParticipantRepository,
	controlLogRepo repositories.ControlLogRepository,
	eventRepo repositories.EventRepository,
	hub *realtime.Hub,
	announcer Announcer,
	archiver ResultsArchiver,
	m *metrics.Metrics,
	cfg BroadcastConfig,
	logger *slog.Logger,
) BroadcastService {
	if cfg.DefaultPitchDuration <= 0 {
		cfg.DefaultPitchDuration = 5 * time.Minute
	}
	if cfg.DefaultVotingDuration <= 0 {
		cfg.DefaultVotingDuration = 2 * time.Minute
	}
	return &broadcastService{
		db:              db,
		broadcastRepo:   broadcastRepo,
		participantRepo: participantRepo,
		controlLogRepo:  controlLogRepo,
		eventRepo:       eventRepo,
		hub:             hub,
		announcer:       announcer,
		archiver:        archiver,
		metrics:         m,
		cfg:             cfg,
		logger:          logger,
		pick:            rand.Intn,
	}
}

func (s *broadcastService) GetState(ctx context.Context, eventSlug string) (*models.BroadcastState, error) {
	state, err := s.broadcastRepo.GetBySlug(ctx, nil, eventSlug)
	if err != nil {
		if errors.Is(err, repositories.ErrBroadcastStateNotFound) {
			// Мероприятие без единой команды — это валидный idle.
			if _, evErr := s.eventRepo.GetBySlug(ctx, eventSlug); evErr != nil {
				return nil, mapEventRepoError(evErr)
			}
			return &models.BroadcastState{
				EventSlug:      eventSlug,
				CurrentState:   models.PhaseIdle,
				TeamsPresented: []string{},
			}, nil
		}
		return nil, fmt.Errorf("failed to load broadcast state for %q: %w", eventSlug, err)
	}
	return state, nil
}

func (s *broadcastService) ListControlLog(ctx context.Context, eventSlug string, limit int) ([]*models.ControlLogEntry, error) {
	if _, err := s.eventRepo.GetBySlug(ctx, eventSlug); err != nil {
		return nil, mapEventRepoError(err)
	}
	entries, err := s.controlLogRepo.ListByEvent(ctx, eventSlug, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list control log for %q: %w", eventSlug, err)
	}
	return entries, nil
}

func (s *broadcastService) ExecuteCommand(ctx context.Context, eventSlug string, adminUserID int, input BroadcastCommandInput) (*models.BroadcastState, error) {
	// Команды несуществующих мероприятий в журнал не попадают: у control_log
	// внешний ключ на events, такая запись в любом случае не пройдёт.
	event, err := s.eventRepo.GetBySlug(ctx, eventSlug)
	if err != nil {
		return nil, mapEventRepoError(err)
	}

	if err := validateCommand(input); err != nil {
		s.logRejected(ctx, eventSlug, adminUserID, input, nil, err)
		return nil, err
	}

	// Снапшот ростера читается один раз на команду; и проверка имени команды,
	// и случайный выбор работают от него.
	participantCount := 0
	if input.Action == models.ActionStartPresentation || input.Action == models.ActionOpenVoting {
		participantCount, err = s.participantRepo.CountByEvent(ctx, eventSlug)
		if err != nil {
			return nil, fmt.Errorf("failed to count participants for %q: %w", eventSlug, err)
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}

	state, err := s.lockState(ctx, tx, eventSlug)
	if err != nil {
		_ = tx.Rollback()
		return nil, err
	}

	applied, cmdErr := s.applyCommand(state, input, adminUserID, participantCount, time.Now())
	if cmdErr != nil {
		_ = tx.Rollback()
		s.logRejected(ctx, eventSlug, adminUserID, input, state.CurrentTeamName, cmdErr)
		return nil, cmdErr
	}

	if err := s.broadcastRepo.Upsert(ctx, tx, applied); err != nil {
		_ = tx.Rollback()
		return nil, fmt.Errorf("failed to persist broadcast state for %q: %w", eventSlug, err)
	}
	if endsEventLifecycle(input.Action) {
		// Конец эфира снимает is_active атомарно с переходом: после подиума
		// мероприятие закрыто для голосующих.
		if err := s.eventRepo.SetActive(ctx, tx, eventSlug, false); err != nil {
			_ = tx.Rollback()
			return nil, fmt.Errorf("failed to deactivate event %q: %w", eventSlug, err)
		}
	}
	// Успешная команда логируется атомарно с upsert'ом состояния:
	// без записи в журнале переход не фиксируется.
	if err := s.appendLog(ctx, tx, eventSlug, adminUserID, input, applied.CurrentTeamName, "applied", ""); err != nil {
		_ = tx.Rollback()
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit broadcast transition: %w", err)
	}

	s.countTransition(input.Action, "applied")
	s.hub.BroadcastToEvent(eventSlug, realtime.MessageStateChanged, applied)
	s.announceTransition(event, applied)

	if input.Action == models.ActionRevealResults && s.archiver != nil {
		// Выгрузка снапшота — побочный эффект; переход уже зафиксирован.
		go func() {
			archiveCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if err := s.archiver.ArchiveResults(archiveCtx, eventSlug); err != nil {
				s.logger.Error("failed to archive results snapshot",
					slog.String("event_slug", eventSlug), slog.Any("error", err))
			}
		}()
	}

	return applied, nil
}

func (s *broadcastService) CloseExpired(ctx context.Context) (int, error) {
	slugs, err := s.broadcastRepo.ListExpiredVoting(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list expired voting sessions: %w", err)
	}

	closed := 0
	for _, slug := range slugs {
		if err := s.closeExpiredOne(ctx, slug); err != nil {
			s.logger.Error("reaper failed to close expired voting",
				slog.String("event_slug", slug), slog.Any("error", err))
			continue
		}
		closed++
	}
	return closed, nil
}

func (s *broadcastService) closeExpiredOne(ctx context.Context, eventSlug string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	state, err := s.lockState(ctx, tx, eventSlug)
	if err != nil {
		_ = tx.Rollback()
		return err
	}

	// Перепроверка под блокировкой: админ мог успеть закрыть сессию сам.
	if state.CurrentState != models.PhaseVotingOpen ||
		state.VotingClosesAt == nil || state.VotingClosesAt.After(time.Now()) {
		_ = tx.Rollback()
		return nil
	}

	state.CurrentState = models.PhaseIdle
	state.VotingClosesAt = nil

	if err := s.broadcastRepo.Upsert(ctx, tx, state); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("failed to persist reaped state: %w", err)
	}
	if err := s.appendLog(ctx, tx, eventSlug, 0, BroadcastCommandInput{Action: models.ActionCloseVoting},
		state.CurrentTeamName, "applied", "voting window expired"); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit reaped transition: %w", err)
	}

	s.countTransition(models.ActionCloseVoting, "reaped")
	s.hub.BroadcastToEvent(eventSlug, realtime.MessageStateChanged, state)
	return nil
}

// lockState загружает строку состояния под FOR UPDATE; отсутствующая строка
// означает первый запуск мероприятия и трактуется как idle.
func (s *broadcastService) lockState(ctx context.Context, tx *sql.Tx, eventSlug string) (*models.BroadcastState, error) {
	state, err := s.broadcastRepo.GetBySlugForUpdate(ctx, tx, eventSlug)
	if err != nil {
		if errors.Is(err, repositories.ErrBroadcastStateNotFound) {
			return &models.BroadcastState{
				EventSlug:      eventSlug,
				CurrentState:   models.PhaseIdle,
				TeamsPresented: []string{},
			}, nil
		}
		return nil, fmt.Errorf("failed to lock broadcast state for %q: %w", eventSlug, err)
	}
	return state, nil
}

// applyCommand валидирует переход и возвращает новое состояние.
// Чистая функция над снапшотом: вся конкурентность решается блокировкой выше.
func (s *broadcastService) applyCommand(state *models.BroadcastState, input BroadcastCommandInput, adminUserID, participantCount int, now time.Time) (*models.BroadcastState, error) {
	next := *state
	next.TeamsPresented = append([]string(nil), state.TeamsPresented...)
	next.UpdatedBy = adminUserID

	switch input.Action {
	case models.ActionStartPresentation:
		// Разрешён из idle и из results_revealed (следующий раунд после
		// показа подиума); при открытом голосовании сначала закрыть его.
		if state.CurrentState == models.PhaseVotingOpen {
			return nil, ErrVotingAlreadyOpen
		}
		if state.CurrentState == models.PhasePresentingTeam {
			return nil, ErrInvalidStateTransition
		}
		team, err := s.resolveTeam(input, state, participantCount, true)
		if err != nil {
			return nil, err
		}
		pitchCloses := now.Add(s.pitchDuration(input))
		next.CurrentState = models.PhasePresentingTeam
		next.CurrentTeamName = &team
		next.PitchClosesAt = &pitchCloses
		next.VotingClosesAt = nil

	case models.ActionOpenVoting:
		if state.CurrentState == models.PhaseVotingOpen {
			return nil, ErrVotingAlreadyOpen
		}
		if state.CurrentState != models.PhasePresentingTeam {
			return nil, ErrInvalidStateTransition
		}
		team, err := s.resolveTeam(input, state, participantCount, false)
		if err != nil {
			return nil, err
		}
		votingCloses := now.Add(s.votingDuration(input))
		next.CurrentState = models.PhaseVotingOpen
		next.CurrentTeamName = &team
		next.VotingClosesAt = &votingCloses
		next.PitchClosesAt = nil
		if !next.HasPresented(team) {
			next.TeamsPresented = append(next.TeamsPresented, team)
		}

	case models.ActionCloseVoting:
		if state.CurrentState != models.PhaseVotingOpen {
			return nil, ErrInvalidStateTransition
		}
		next.CurrentState = models.PhaseIdle
		next.VotingClosesAt = nil

	case models.ActionEndPresentation:
		if state.CurrentState != models.PhasePresentingTeam &&
			state.CurrentState != models.PhaseVotingOpen &&
			state.CurrentState != models.PhaseResultsReveal {
			return nil, ErrInvalidStateTransition
		}
		next.CurrentState = models.PhaseIdle
		next.CurrentTeamName = nil
		next.PitchClosesAt = nil
		next.VotingClosesAt = nil

	case models.ActionRevealResults:
		// Достижим из любой фазы: полный цикл idle→presenting→voting
		// не обязателен.
		next.CurrentState = models.PhaseResultsReveal
		next.PitchClosesAt = nil
		next.VotingClosesAt = nil

	default:
		return nil, ErrInvalidAction
	}

	return &next, nil
}

// resolveTeam определяет команду для команды админа: явное имя, случайный
// выбор без повторов или текущая команда трансляции.
func (s *broadcastService) resolveTeam(input BroadcastCommandInput, state *models.BroadcastState, participantCount int, requireExplicit bool) (string, error) {
	if input.RandomMode {
		remaining := remainingTeams(participantCount, state.TeamsPresented)
		if len(remaining) == 0 {
			return "", ErrNoTeamsAvailable
		}
		return remaining[s.pick(len(remaining))], nil
	}

	if input.TeamName != nil && *input.TeamName != "" {
		if !isRosterTeam(*input.TeamName, participantCount) {
			return "", ErrTeamNotFound
		}
		return *input.TeamName, nil
	}

	if !requireExplicit && state.CurrentTeamName != nil && *state.CurrentTeamName != "" {
		return *state.CurrentTeamName, nil
	}
	return "", ErrTeamNameRequired
}

func isRosterTeam(teamName string, participantCount int) bool {
	for _, name := range rosterTeamNames(participantCount) {
		if name == teamName {
			return true
		}
	}
	return false
}

func (s *broadcastService) pitchDuration(input BroadcastCommandInput) time.Duration {
	if input.PitchDurationSeconds != nil {
		return time.Duration(*input.PitchDurationSeconds) * time.Second
	}
	return s.cfg.DefaultPitchDuration
}

func (s *broadcastService) votingDuration(input BroadcastCommandInput) time.Duration {
	if input.VotingDurationSeconds != nil {
		return time.Duration(*input.VotingDurationSeconds) * time.Second
	}
	return s.cfg.DefaultVotingDuration
}

// appendLog пишет запись аудит-журнала. Внутри транзакции — для применённых
// команд, вне её — для отклонённых. Сбой журнала применённой команды откатит
// транзакцию вместе с переходом; сбой журнала отклонённой только логируется.
func (s *broadcastService) appendLog(ctx context.Context, exec repositories.SQLExecutor, eventSlug string, adminUserID int, input BroadcastCommandInput, teamName *string, outcome, reason string) error {
	meta := map[string]interface{}{
		"outcome":     outcome,
		"random_mode": input.RandomMode,
	}
	if input.VotingDurationSeconds != nil {
		meta["voting_duration_seconds"] = *input.VotingDurationSeconds
	}
	if input.PitchDurationSeconds != nil {
		meta["pitch_duration_seconds"] = *input.PitchDurationSeconds
	}
	if reason != "" {
		meta["reason"] = reason
	}
	metadata, err := json.Marshal(meta)
	if err != nil {
		metadata = []byte(`{}`)
	}

	entry := &models.ControlLogEntry{
		EventSlug:   eventSlug,
		Action:      input.Action,
		TeamName:    teamName,
		TriggeredBy: adminUserID,
		Metadata:    metadata,
	}
	if err := s.controlLogRepo.Append(ctx, exec, entry); err != nil {
		return fmt.Errorf("failed to append control log entry: %w", err)
	}
	return nil
}

func (s *broadcastService) announceTransition(event *models.Event, state *models.BroadcastState) {
	if s.announcer == nil {
		return
	}
	// Fire-and-forget: доставка уведомлений — внешняя забота.
	go func() {
		announceCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.announcer.AnnounceTransition(announceCtx, event, state); err != nil {
			s.logger.Warn("failed to dispatch transition announcement",
				slog.String("event_slug", event.Slug), slog.Any("error", err))
		}
	}()
}

func (s *broadcastService) countTransition(action models.BroadcastAction, outcome string) {
	if s.metrics == nil {
		return
	}
	s.metrics.BroadcastTransitions.WithLabelValues(string(action), outcome).Inc()
}

// logRejected фиксирует отклонённую команду отдельной записью журнала вне
// транзакции. Журнал пишется для каждой команды известного мероприятия
// независимо от исхода.
func (s *broadcastService) logRejected(ctx context.Context, eventSlug string, adminUserID int, input BroadcastCommandInput, teamName *string, cmdErr error) {
	if err := s.appendLog(ctx, nil, eventSlug, adminUserID, input, teamName, "rejected", cmdErr.Error()); err != nil {
		s.logger.Error("failed to append control log entry for rejected command",
			slog.String("event_slug", eventSlug), slog.Any("error", err))
	}
	action := input.Action
	if !isKnownAction(action) {
		// Произвольная строка команды не должна раздувать кардинальность метрики.
		action = "invalid"
	}
	s.countTransition(action, "rejected")
}

func validateCommand(input BroadcastCommandInput) error {
	if !isKnownAction(input.Action) {
		return ErrInvalidAction
	}
	return validateDurations(input)
}

// endsEventLifecycle: reveal_results закрывает эфир мероприятия, после него
// снимается флаг видимости is_active.
func endsEventLifecycle(action models.BroadcastAction) bool {
	return action == models.ActionRevealResults
}

func isKnownAction(action models.BroadcastAction) bool {
	switch action {
	case models.ActionStartPresentation, models.ActionOpenVoting,
		models.ActionCloseVoting, models.ActionEndPresentation, models.ActionRevealResults:
		return true
	}
	return false
}

func validateDurations(input BroadcastCommandInput) error {
	if input.VotingDurationSeconds != nil && *input.VotingDurationSeconds <= 0 {
		return ErrInvalidDuration
	}
	if input.PitchDurationSeconds != nil && *input.PitchDurationSeconds <= 0 {
		return ErrInvalidDuration
	}
	return nil
}

func mapEventRepoError(err error) error {
	if errors.Is(err, repositories.ErrEventNotFound) {
		return ErrEventNotFound
	}
	return fmt.Errorf("event lookup failed: %w", err)
}
