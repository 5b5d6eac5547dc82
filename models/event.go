package models

import "time"

// Event представляет одно живое мероприятие (хакатон-вечер).
// Владеет им внешний сервис; движок читает его и меняет только is_active.
type Event struct {
	Slug     string    `json:"slug" db:"slug"`
	Name     string    `json:"name" db:"name"`
	StartsAt time.Time `json:"starts_at" db:"starts_at"`
	EndsAt   time.Time `json:"ends_at" db:"ends_at"`
	IsActive bool      `json:"is_active" db:"is_active"`
}
