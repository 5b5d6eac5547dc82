package services

import "errors"

// Общие ошибки, используемые в разных сервисах и маппинге HTTP.
var (
	// Ресурсы
	ErrEventNotFound       = errors.New("event not found")
	ErrParticipantNotFound = errors.New("participant registration not found")
	ErrTeamNotFound        = errors.New("team not found for this event")

	// Ошибки валидации и бизнес-правил
	ErrScoreOutOfRange   = errors.New("each score must be an integer between 0 and 10")
	ErrTeamNameRequired  = errors.New("team name is required")
	ErrInvalidAction     = errors.New("unknown broadcast action")
	ErrInvalidDuration   = errors.New("duration must be a positive number of seconds")
	ErrWeightsInvalid    = errors.New("weights must be non-negative and sum close to 1.0")
	ErrEventNotActive    = errors.New("event is not active")
	ErrNotRegistered     = errors.New("user is not registered for this event")
	ErrSelfVoteForbidden = errors.New("cannot vote for your own team")

	// Ошибки конфликтов состояния (4xx, каждая со своим сообщением)
	ErrVotingAlreadyOpen      = errors.New("voting is already open for this event, close it first")
	ErrVotingNotOpen          = errors.New("voting is not open for this team")
	ErrVotingWindowExpired    = errors.New("voting window has expired")
	ErrAlreadyVoted           = errors.New("already voted for this team")
	ErrNoTeamsAvailable       = errors.New("no teams available: all teams have already presented")
	ErrInvalidStateTransition = errors.New("command is not allowed in the current broadcast state")

	// Ошибки авторизации
	ErrAdminRequired = errors.New("only an event admin can issue broadcast commands")
)
