package models

// VotingWeights — веса четырёх критериев на мероприятие.
// Сумма подразумевается равной 1.0, численно не проверяется.
type VotingWeights struct {
	EventSlug  string  `json:"event_slug" db:"event_slug"`
	Viability  float64 `json:"viability" db:"viability"`
	Innovation float64 `json:"innovation" db:"innovation"`
	Pitch      float64 `json:"pitch" db:"pitch"`
	Demo       float64 `json:"demo" db:"demo"`
}

// DefaultVotingWeights возвращает шаблон весов по умолчанию.
// Используется и для ленивого заполнения при первом голосе.
func DefaultVotingWeights(eventSlug string) VotingWeights {
	return VotingWeights{
		EventSlug:  eventSlug,
		Viability:  0.35,
		Innovation: 0.20,
		Pitch:      0.30,
		Demo:       0.15,
	}
}
