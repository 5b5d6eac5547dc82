package models

import (
	"encoding/json"
	"time"
)

// ControlLogEntry — append-only журнал команд админа. Записывается для каждой
// команды независимо от исхода; движок его на лету не читает.
type ControlLogEntry struct {
	ID          string          `json:"id" db:"id"`
	EventSlug   string          `json:"event_slug" db:"event_slug"`
	Action      BroadcastAction `json:"action" db:"action"`
	TeamName    *string         `json:"team_name,omitempty" db:"team_name"`
	TriggeredBy int             `json:"triggered_by" db:"triggered_by"`
	Metadata    json.RawMessage `json:"metadata,omitempty" db:"metadata"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
}
