package models

import "time"

// BroadcastPhase представляет фазы трансляции, соответствующие ENUM в БД.
type BroadcastPhase string

const (
	PhaseIdle           BroadcastPhase = "idle"
	PhasePresentingTeam BroadcastPhase = "presenting_team"
	PhaseVotingOpen     BroadcastPhase = "voting_open"
	PhaseResultsReveal  BroadcastPhase = "results_revealed"
)

// BroadcastAction — команды админа, управляющие фазами.
type BroadcastAction string

const (
	ActionStartPresentation BroadcastAction = "start_presentation"
	ActionOpenVoting        BroadcastAction = "open_voting"
	ActionCloseVoting       BroadcastAction = "close_voting"
	ActionEndPresentation   BroadcastAction = "end_presentation"
	ActionRevealResults     BroadcastAction = "reveal_results"
)

// BroadcastState — единственная авторитетная строка состояния на мероприятие
// (upsert по event_slug). Все дедлайны ставит сервер, клиент им только следует.
type BroadcastState struct {
	EventSlug       string         `json:"event_slug" db:"event_slug"`
	CurrentState    BroadcastPhase `json:"current_state" db:"current_state"`
	CurrentTeamName *string        `json:"current_team_name,omitempty" db:"current_team_name"`
	VotingClosesAt  *time.Time     `json:"voting_closes_at,omitempty" db:"voting_closes_at"`
	PitchClosesAt   *time.Time     `json:"pitch_closes_at,omitempty" db:"pitch_closes_at"`
	TeamsPresented  []string       `json:"teams_presented" db:"teams_presented"`
	UpdatedBy       int            `json:"updated_by" db:"updated_by"`
	UpdatedAt       time.Time      `json:"updated_at" db:"updated_at"`
}

// HasPresented reports whether teamName is already in the append-only history.
func (s *BroadcastState) HasPresented(teamName string) bool {
	for _, name := range s.TeamsPresented {
		if name == teamName {
			return true
		}
	}
	return false
}
