package models

import "time"

// SubScores — четыре оценки жюри по шкале 0..10.
type SubScores struct {
	Viability  int `json:"viability"`
	Innovation int `json:"innovation"`
	Pitch      int `json:"pitch"`
	Demo       int `json:"demo"`
}

// Vote — неизменяемая запись голоса. Уникальна по
// (event_slug, team_name, voter_user_id); weighted_score денормализован
// на момент записи для быстрой агрегации.
type Vote struct {
	ID              int       `json:"id" db:"id"`
	EventSlug       string    `json:"event_slug" db:"event_slug"`
	TeamName        string    `json:"team_name" db:"team_name"`
	VoterUserID     int       `json:"voter_user_id" db:"voter_user_id"`
	ScoreViability  int       `json:"score_viability" db:"score_viability"`
	ScoreInnovation int       `json:"score_innovation" db:"score_innovation"`
	ScorePitch      int       `json:"score_pitch" db:"score_pitch"`
	ScoreDemo       int       `json:"score_demo" db:"score_demo"`
	WeightedScore   float64   `json:"weighted_score" db:"weighted_score"`
	CreatedAt       time.Time `json:"created_at" db:"created_at"`
}

// Scores collects the vote's sub-scores back into one value.
func (v *Vote) Scores() SubScores {
	return SubScores{
		Viability:  v.ScoreViability,
		Innovation: v.ScoreInnovation,
		Pitch:      v.ScorePitch,
		Demo:       v.ScoreDemo,
	}
}
