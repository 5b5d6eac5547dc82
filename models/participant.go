package models

import "time"

// Participant — регистрация пользователя на мероприятие.
// Команда НЕ хранится: она выводится из порядка регистрации (registered_at ASC).
type Participant struct {
	EventSlug    string    `json:"event_slug" db:"event_slug"`
	UserID       int       `json:"user_id" db:"user_id"`
	RegisteredAt time.Time `json:"registered_at" db:"registered_at"`
	PrdsCreated  int       `json:"prds_created" db:"prds_created"`
	Points       int       `json:"points" db:"points"`
}

// Team is a derived grouping of participants, never persisted on its own.
type Team struct {
	Name    string `json:"name"`
	Index   int    `json:"index"`
	Members []int  `json:"members"`

	// Presented marks teams already added to teams_presented for the event.
	Presented bool `json:"presented"`
}
