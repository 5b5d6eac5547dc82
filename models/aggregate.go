package models

// TeamScoreAggregate — производная сводка по команде: количество голосов и
// средние по каждому критерию и по взвешенному баллу. Пересчитывается на
// каждый вставленный голос, отдельного пути мутации не имеет.
type TeamScoreAggregate struct {
	EventSlug        string  `json:"event_slug" db:"event_slug"`
	TeamName         string  `json:"team_name" db:"team_name"`
	TotalVotes       int     `json:"total_votes" db:"total_votes"`
	AvgViability     float64 `json:"avg_viability" db:"avg_viability"`
	AvgInnovation    float64 `json:"avg_innovation" db:"avg_innovation"`
	AvgPitch         float64 `json:"avg_pitch" db:"avg_pitch"`
	AvgDemo          float64 `json:"avg_demo" db:"avg_demo"`
	AvgWeightedScore float64 `json:"avg_weighted_score" db:"avg_weighted_score"`
}
