package models

// UserRole — роль пользователя из JWT, выданного внешним сервисом авторизации.
type UserRole string

const (
	RoleAdmin       UserRole = "admin"
	RoleParticipant UserRole = "participant"
)
