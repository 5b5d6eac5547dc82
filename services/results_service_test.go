package services

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/Sayat07/hacklive-system/models"
)

func TestRankAggregates(t *testing.T) {
	aggregates := []*models.TeamScoreAggregate{
		{TeamName: "Team 3", AvgWeightedScore: 6.50, TotalVotes: 4},
		{TeamName: "Team 1", AvgWeightedScore: 8.25, TotalVotes: 5},
		{TeamName: "Team 5", AvgWeightedScore: 6.50, TotalVotes: 7},
		{TeamName: "Team 2", AvgWeightedScore: 8.25, TotalVotes: 5},
	}

	RankAggregates(aggregates)

	want := []string{"Team 1", "Team 2", "Team 5", "Team 3"}
	for i, name := range want {
		if aggregates[i].TeamName != name {
			t.Errorf("rank %d = %s, want %s", i+1, aggregates[i].TeamName, name)
		}
	}
}

func TestRankAggregatesTieBreaks(t *testing.T) {
	tests := []struct {
		name string
		a, b *models.TeamScoreAggregate
		// true, если a должна стоять выше b
		aFirst bool
	}{
		{
			name:   "higher score wins",
			a:      &models.TeamScoreAggregate{TeamName: "Team 2", AvgWeightedScore: 9.0, TotalVotes: 1},
			b:      &models.TeamScoreAggregate{TeamName: "Team 1", AvgWeightedScore: 8.0, TotalVotes: 10},
			aFirst: true,
		},
		{
			name:   "equal score, more votes wins",
			a:      &models.TeamScoreAggregate{TeamName: "Team 2", AvgWeightedScore: 8.0, TotalVotes: 10},
			b:      &models.TeamScoreAggregate{TeamName: "Team 1", AvgWeightedScore: 8.0, TotalVotes: 3},
			aFirst: true,
		},
		{
			name:   "full tie falls back to name",
			a:      &models.TeamScoreAggregate{TeamName: "Team 1", AvgWeightedScore: 8.0, TotalVotes: 3},
			b:      &models.TeamScoreAggregate{TeamName: "Team 2", AvgWeightedScore: 8.0, TotalVotes: 3},
			aFirst: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			aggregates := []*models.TeamScoreAggregate{tt.b, tt.a}
			RankAggregates(aggregates)
			if (aggregates[0] == tt.a) != tt.aFirst {
				t.Errorf("ranking order wrong: got %s first", aggregates[0].TeamName)
			}
		})
	}
}

func newResultsServiceFixture(broadcast *fakeBroadcastRepo, aggregates map[string]*models.TeamScoreAggregate) ResultsService {
	return NewResultsService(
		&fakeAggregateRepo{aggregates: aggregates},
		&fakeParticipantRepo{participants: makeParticipants(1, 2, 3, 4, 5, 6, 7)},
		broadcast,
		&fakeEventRepo{events: map[string]*models.Event{
			"demo-night": {Slug: "demo-night", Name: "Demo Night", IsActive: true},
		}},
		nil,
		slog.New(slog.NewTextHandler(io.Discard, nil)),
	)
}

func TestGetStandings(t *testing.T) {
	svc := newResultsServiceFixture(
		&fakeBroadcastRepo{state: &models.BroadcastState{
			EventSlug:      "demo-night",
			CurrentState:   models.PhaseResultsReveal,
			TeamsPresented: []string{"Team 1", "Team 2"},
		}},
		map[string]*models.TeamScoreAggregate{
			"Team 1": {TeamName: "Team 1", AvgWeightedScore: 7.10, TotalVotes: 3},
			"Team 2": {TeamName: "Team 2", AvgWeightedScore: 8.40, TotalVotes: 3},
		},
	)

	standings, err := svc.GetStandings(context.Background(), "demo-night")
	if err != nil {
		t.Fatalf("GetStandings() error = %v", err)
	}
	if standings.State.CurrentState != models.PhaseResultsReveal {
		t.Errorf("state = %s, want results_revealed", standings.State.CurrentState)
	}
	if len(standings.Rankings) != 2 {
		t.Fatalf("rankings length = %d, want 2", len(standings.Rankings))
	}
	if standings.Rankings[0].TeamName != "Team 2" {
		t.Errorf("leader = %s, want Team 2", standings.Rankings[0].TeamName)
	}
}

func TestGetStandingsWithoutState(t *testing.T) {
	// До первой команды пульта строка состояния отсутствует, табло отдаёт idle.
	svc := newResultsServiceFixture(&fakeBroadcastRepo{}, nil)

	standings, err := svc.GetStandings(context.Background(), "demo-night")
	if err != nil {
		t.Fatalf("GetStandings() error = %v", err)
	}
	if standings.State.CurrentState != models.PhaseIdle {
		t.Errorf("state = %s, want idle", standings.State.CurrentState)
	}
	if len(standings.Rankings) != 0 {
		t.Errorf("rankings = %v, want empty", standings.Rankings)
	}
}

func TestListTeams(t *testing.T) {
	svc := newResultsServiceFixture(
		&fakeBroadcastRepo{state: &models.BroadcastState{
			EventSlug:      "demo-night",
			CurrentState:   models.PhaseIdle,
			TeamsPresented: []string{"Team 2"},
		}},
		nil,
	)

	teams, err := svc.ListTeams(context.Background(), "demo-night")
	if err != nil {
		t.Fatalf("ListTeams() error = %v", err)
	}
	// 7 участников складываются в 3 команды с людьми.
	if len(teams) != 3 {
		t.Fatalf("ListTeams() = %d teams, want 3", len(teams))
	}
	if !teams[1].Presented {
		t.Error("Team 2 should be marked presented")
	}
	if teams[0].Presented || teams[2].Presented {
		t.Error("only Team 2 should be marked presented")
	}
}
