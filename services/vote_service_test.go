package services

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/Sayat07/hacklive-system/models"
	"github.com/Sayat07/hacklive-system/realtime"
	"github.com/Sayat07/hacklive-system/repositories"
)

type fakeEventRepo struct {
	events map[string]*models.Event
}

func (r *fakeEventRepo) GetBySlug(_ context.Context, slug string) (*models.Event, error) {
	if ev, ok := r.events[slug]; ok {
		return ev, nil
	}
	return nil, repositories.ErrEventNotFound
}

func (r *fakeEventRepo) SetActive(_ context.Context, _ repositories.SQLExecutor, slug string, active bool) error {
	if ev, ok := r.events[slug]; ok {
		ev.IsActive = active
		return nil
	}
	return repositories.ErrEventNotFound
}

type fakeParticipantRepo struct {
	mu           sync.Mutex
	participants []*models.Participant
	points       map[int]int
}

func (r *fakeParticipantRepo) ListByEvent(_ context.Context, _ string) ([]*models.Participant, error) {
	return r.participants, nil
}

func (r *fakeParticipantRepo) FindByEventAndUser(_ context.Context, _ string, userID int) (*models.Participant, error) {
	for _, p := range r.participants {
		if p.UserID == userID {
			return p, nil
		}
	}
	return nil, repositories.ErrParticipantNotFound
}

func (r *fakeParticipantRepo) CountByEvent(_ context.Context, _ string) (int, error) {
	return len(r.participants), nil
}

func (r *fakeParticipantRepo) IncrementPoints(_ context.Context, _ string, userID int, delta int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.points == nil {
		r.points = make(map[int]int)
	}
	r.points[userID] += delta
	return nil
}

func (r *fakeParticipantRepo) pointsFor(userID int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.points[userID]
}

type fakeBroadcastRepo struct {
	state *models.BroadcastState
}

func (r *fakeBroadcastRepo) GetBySlug(_ context.Context, _ repositories.SQLExecutor, _ string) (*models.BroadcastState, error) {
	if r.state == nil {
		return nil, repositories.ErrBroadcastStateNotFound
	}
	return r.state, nil
}

func (r *fakeBroadcastRepo) GetBySlugForUpdate(ctx context.Context, exec repositories.SQLExecutor, slug string) (*models.BroadcastState, error) {
	return r.GetBySlug(ctx, exec, slug)
}

func (r *fakeBroadcastRepo) Upsert(_ context.Context, _ repositories.SQLExecutor, state *models.BroadcastState) error {
	r.state = state
	return nil
}

func (r *fakeBroadcastRepo) ListExpiredVoting(_ context.Context) ([]string, error) {
	return nil, nil
}

type fakeVoteRepo struct {
	mu        sync.Mutex
	votes     []*models.Vote
	createErr error
}

// Create повторяет поведение уникального индекса БД: проверка и вставка
// атомарны относительно конкурентных вызовов.
func (r *fakeVoteRepo) Create(_ context.Context, vote *models.Vote) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return r.createErr
	}
	for _, v := range r.votes {
		if v.EventSlug == vote.EventSlug && v.TeamName == vote.TeamName && v.VoterUserID == vote.VoterUserID {
			return repositories.ErrVoteDuplicate
		}
	}
	vote.ID = len(r.votes) + 1
	vote.CreatedAt = time.Now()
	r.votes = append(r.votes, vote)
	return nil
}

func (r *fakeVoteRepo) FindByVoterAndTeam(_ context.Context, eventSlug, teamName string, voterUserID int) (*models.Vote, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, v := range r.votes {
		if v.EventSlug == eventSlug && v.TeamName == teamName && v.VoterUserID == voterUserID {
			return v, nil
		}
	}
	return nil, repositories.ErrVoteNotFound
}

func (r *fakeVoteRepo) ListByEventAndTeam(_ context.Context, eventSlug, teamName string) ([]*models.Vote, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*models.Vote, 0)
	for _, v := range r.votes {
		if v.EventSlug == eventSlug && v.TeamName == teamName {
			out = append(out, v)
		}
	}
	return out, nil
}

type fakeWeightsRepo struct {
	weights *models.VotingWeights
	seeded  bool
}

func (r *fakeWeightsRepo) GetByEvent(_ context.Context, _ string) (*models.VotingWeights, error) {
	if r.weights == nil {
		return nil, repositories.ErrVotingWeightsNotFound
	}
	return r.weights, nil
}

func (r *fakeWeightsRepo) SeedIfAbsent(_ context.Context, weights *models.VotingWeights) error {
	r.seeded = true
	if r.weights == nil {
		r.weights = weights
	}
	return nil
}

func (r *fakeWeightsRepo) Upsert(_ context.Context, weights *models.VotingWeights) error {
	r.weights = weights
	return nil
}

type fakeAggregateRepo struct {
	aggregates map[string]*models.TeamScoreAggregate
}

func (r *fakeAggregateRepo) GetByEventAndTeam(_ context.Context, _ string, teamName string) (*models.TeamScoreAggregate, error) {
	if agg, ok := r.aggregates[teamName]; ok {
		return agg, nil
	}
	return &models.TeamScoreAggregate{TeamName: teamName, TotalVotes: 1}, nil
}

func (r *fakeAggregateRepo) ListByEvent(_ context.Context, _ string) ([]*models.TeamScoreAggregate, error) {
	out := make([]*models.TeamScoreAggregate, 0, len(r.aggregates))
	for _, agg := range r.aggregates {
		out = append(out, agg)
	}
	return out, nil
}

type voteServiceFixture struct {
	svc          VoteService
	votes        *fakeVoteRepo
	weights      *fakeWeightsRepo
	broadcast    *fakeBroadcastRepo
	events       *fakeEventRepo
	participants *fakeParticipantRepo
}

// Дефолтная сцена: 9 участников (3 команды), голосование открыто за Team 2,
// окно закрывается через 2 минуты.
func newVoteServiceFixture(t *testing.T) *voteServiceFixture {
	t.Helper()

	closes := time.Now().Add(2 * time.Minute)
	fixture := &voteServiceFixture{
		votes:   &fakeVoteRepo{},
		weights: &fakeWeightsRepo{},
		broadcast: &fakeBroadcastRepo{
			state: &models.BroadcastState{
				EventSlug:       "demo-night",
				CurrentState:    models.PhaseVotingOpen,
				CurrentTeamName: strPtr("Team 2"),
				VotingClosesAt:  &closes,
				TeamsPresented:  []string{"Team 2"},
			},
		},
	}
	fixture.participants = &fakeParticipantRepo{participants: makeParticipants(1, 2, 3, 4, 5, 6, 7, 8, 9)}
	fixture.events = &fakeEventRepo{events: map[string]*models.Event{
		"demo-night": {Slug: "demo-night", Name: "Demo Night", IsActive: true},
	}}

	fixture.svc = NewVoteService(
		fixture.votes,
		fixture.weights,
		fixture.participants,
		fixture.broadcast,
		fixture.events,
		&fakeAggregateRepo{},
		realtime.NewHub(),
		nil,
		slog.New(slog.NewTextHandler(io.Discard, nil)),
	)
	return fixture
}

func validScores() models.SubScores {
	return models.SubScores{Viability: 8, Innovation: 6, Pitch: 9, Demo: 7}
}

func TestSubmitVote(t *testing.T) {
	t.Run("accepted vote carries weighted score", func(t *testing.T) {
		f := newVoteServiceFixture(t)

		// Участник 1 состоит в Team 1 и голосует за Team 2.
		vote, err := f.svc.SubmitVote(context.Background(), 1, SubmitVoteInput{
			EventSlug: "demo-night",
			TeamName:  "Team 2",
			Scores:    validScores(),
		})
		if err != nil {
			t.Fatalf("SubmitVote() error = %v", err)
		}
		if math.Abs(vote.WeightedScore-7.75) > 0.001 {
			t.Errorf("WeightedScore = %v, want 7.75", vote.WeightedScore)
		}
		if !f.weights.seeded {
			t.Error("default weights should be lazily seeded on first vote")
		}
		if got := f.participants.pointsFor(1); got != 1 {
			t.Errorf("voter points = %d, want 1", got)
		}
	})

	t.Run("ended event rejected", func(t *testing.T) {
		f := newVoteServiceFixture(t)
		f.events.events["demo-night"].IsActive = false

		_, err := f.svc.SubmitVote(context.Background(), 1, SubmitVoteInput{
			EventSlug: "demo-night",
			TeamName:  "Team 2",
			Scores:    validScores(),
		})
		if !errors.Is(err, ErrEventNotActive) {
			t.Errorf("SubmitVote() error = %v, want ErrEventNotActive", err)
		}
	})

	t.Run("self vote rejected", func(t *testing.T) {
		f := newVoteServiceFixture(t)

		// Участник 4 сам состоит в Team 2.
		_, err := f.svc.SubmitVote(context.Background(), 4, SubmitVoteInput{
			EventSlug: "demo-night",
			TeamName:  "Team 2",
			Scores:    validScores(),
		})
		if !errors.Is(err, ErrSelfVoteForbidden) {
			t.Errorf("SubmitVote() error = %v, want ErrSelfVoteForbidden", err)
		}
	})

	t.Run("score out of range rejected", func(t *testing.T) {
		f := newVoteServiceFixture(t)

		_, err := f.svc.SubmitVote(context.Background(), 1, SubmitVoteInput{
			EventSlug: "demo-night",
			TeamName:  "Team 2",
			Scores:    models.SubScores{Viability: 11, Innovation: 5, Pitch: 5, Demo: 5},
		})
		if !errors.Is(err, ErrScoreOutOfRange) {
			t.Errorf("SubmitVote() error = %v, want ErrScoreOutOfRange", err)
		}
	})

	t.Run("vote for team that is not on air rejected", func(t *testing.T) {
		f := newVoteServiceFixture(t)

		_, err := f.svc.SubmitVote(context.Background(), 1, SubmitVoteInput{
			EventSlug: "demo-night",
			TeamName:  "Team 3",
			Scores:    validScores(),
		})
		if !errors.Is(err, ErrVotingNotOpen) {
			t.Errorf("SubmitVote() error = %v, want ErrVotingNotOpen", err)
		}
	})

	t.Run("expired window rejected", func(t *testing.T) {
		f := newVoteServiceFixture(t)
		expired := time.Now().Add(-time.Second)
		f.broadcast.state.VotingClosesAt = &expired

		_, err := f.svc.SubmitVote(context.Background(), 1, SubmitVoteInput{
			EventSlug: "demo-night",
			TeamName:  "Team 2",
			Scores:    validScores(),
		})
		if !errors.Is(err, ErrVotingWindowExpired) {
			t.Errorf("SubmitVote() error = %v, want ErrVotingWindowExpired", err)
		}
	})

	t.Run("duplicate vote rejected", func(t *testing.T) {
		f := newVoteServiceFixture(t)

		input := SubmitVoteInput{EventSlug: "demo-night", TeamName: "Team 2", Scores: validScores()}
		if _, err := f.svc.SubmitVote(context.Background(), 1, input); err != nil {
			t.Fatalf("first SubmitVote() error = %v", err)
		}
		if _, err := f.svc.SubmitVote(context.Background(), 1, input); !errors.Is(err, ErrAlreadyVoted) {
			t.Errorf("second SubmitVote() error = %v, want ErrAlreadyVoted", err)
		}
	})

	t.Run("unregistered voter rejected", func(t *testing.T) {
		f := newVoteServiceFixture(t)

		_, err := f.svc.SubmitVote(context.Background(), 999, SubmitVoteInput{
			EventSlug: "demo-night",
			TeamName:  "Team 2",
			Scores:    validScores(),
		})
		if !errors.Is(err, ErrNotRegistered) {
			t.Errorf("SubmitVote() error = %v, want ErrNotRegistered", err)
		}
	})

	t.Run("unknown event", func(t *testing.T) {
		f := newVoteServiceFixture(t)

		_, err := f.svc.SubmitVote(context.Background(), 1, SubmitVoteInput{
			EventSlug: "missing",
			TeamName:  "Team 2",
			Scores:    validScores(),
		})
		if !errors.Is(err, ErrEventNotFound) {
			t.Errorf("SubmitVote() error = %v, want ErrEventNotFound", err)
		}
	})
}

// Гонка повторной отправки: сколько бы запросов одного голосующего ни пришло
// одновременно, в леджер попадает ровно один голос, остальные получают
// ErrAlreadyVoted.
func TestSubmitVoteConcurrentDuplicates(t *testing.T) {
	f := newVoteServiceFixture(t)

	const attempts = 8
	input := SubmitVoteInput{EventSlug: "demo-night", TeamName: "Team 2", Scores: validScores()}

	errs := make(chan error, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.SubmitVote(context.Background(), 1, input)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	accepted, duplicates := 0, 0
	for err := range errs {
		switch {
		case err == nil:
			accepted++
		case errors.Is(err, ErrAlreadyVoted):
			duplicates++
		default:
			t.Errorf("SubmitVote() unexpected error = %v", err)
		}
	}
	if accepted != 1 || duplicates != attempts-1 {
		t.Errorf("accepted = %d, duplicates = %d, want 1 and %d", accepted, duplicates, attempts-1)
	}
	if len(f.votes.votes) != 1 {
		t.Errorf("ledger holds %d votes, want 1", len(f.votes.votes))
	}
}

func TestGetMyVote(t *testing.T) {
	f := newVoteServiceFixture(t)

	t.Run("no vote yet returns nil", func(t *testing.T) {
		vote, err := f.svc.GetMyVote(context.Background(), 1, "demo-night", "Team 2")
		if err != nil {
			t.Fatalf("GetMyVote() error = %v", err)
		}
		if vote != nil {
			t.Errorf("GetMyVote() = %v, want nil", vote)
		}
	})

	t.Run("returns recorded vote", func(t *testing.T) {
		if _, err := f.svc.SubmitVote(context.Background(), 1, SubmitVoteInput{
			EventSlug: "demo-night", TeamName: "Team 2", Scores: validScores(),
		}); err != nil {
			t.Fatalf("SubmitVote() error = %v", err)
		}

		vote, err := f.svc.GetMyVote(context.Background(), 1, "demo-night", "Team 2")
		if err != nil {
			t.Fatalf("GetMyVote() error = %v", err)
		}
		if vote == nil || vote.VoterUserID != 1 {
			t.Errorf("GetMyVote() = %v, want vote by user 1", vote)
		}
	})

	t.Run("unregistered user rejected", func(t *testing.T) {
		_, err := f.svc.GetMyVote(context.Background(), 999, "demo-night", "Team 2")
		if !errors.Is(err, ErrNotRegistered) {
			t.Errorf("GetMyVote() error = %v, want ErrNotRegistered", err)
		}
	})
}

func TestListTeamVotes(t *testing.T) {
	f := newVoteServiceFixture(t)

	for _, voterID := range []int{1, 2, 7} {
		if _, err := f.svc.SubmitVote(context.Background(), voterID, SubmitVoteInput{
			EventSlug: "demo-night", TeamName: "Team 2", Scores: validScores(),
		}); err != nil {
			t.Fatalf("SubmitVote(%d) error = %v", voterID, err)
		}
	}

	votes, err := f.svc.ListTeamVotes(context.Background(), "demo-night", "Team 2")
	if err != nil {
		t.Fatalf("ListTeamVotes() error = %v", err)
	}
	if len(votes) != 3 {
		t.Errorf("ListTeamVotes() returned %d votes, want 3", len(votes))
	}

	if _, err := f.svc.ListTeamVotes(context.Background(), "missing", "Team 2"); !errors.Is(err, ErrEventNotFound) {
		t.Errorf("ListTeamVotes() error = %v, want ErrEventNotFound", err)
	}
}

func TestWeightsRoundTrip(t *testing.T) {
	f := newVoteServiceFixture(t)

	t.Run("defaults before any configuration", func(t *testing.T) {
		weights, err := f.svc.GetWeights(context.Background(), "demo-night")
		if err != nil {
			t.Fatalf("GetWeights() error = %v", err)
		}
		if weights.Viability != 0.35 || weights.Demo != 0.15 {
			t.Errorf("GetWeights() = %+v, want defaults", weights)
		}
	})

	t.Run("set and read back", func(t *testing.T) {
		_, err := f.svc.SetWeights(context.Background(), "demo-night", models.VotingWeights{
			Viability: 0.25, Innovation: 0.25, Pitch: 0.25, Demo: 0.25,
		})
		if err != nil {
			t.Fatalf("SetWeights() error = %v", err)
		}

		weights, err := f.svc.GetWeights(context.Background(), "demo-night")
		if err != nil {
			t.Fatalf("GetWeights() error = %v", err)
		}
		if weights.Viability != 0.25 {
			t.Errorf("GetWeights() = %+v, want even split", weights)
		}
	})

	t.Run("invalid sum rejected", func(t *testing.T) {
		_, err := f.svc.SetWeights(context.Background(), "demo-night", models.VotingWeights{
			Viability: 0.5, Innovation: 0.5, Pitch: 0.5, Demo: 0.5,
		})
		if !errors.Is(err, ErrWeightsInvalid) {
			t.Errorf("SetWeights() error = %v, want ErrWeightsInvalid", err)
		}
	})
}
