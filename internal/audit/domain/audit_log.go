package domain

import "time"

// Auth event actions recorded by the identity service.
const (
	ActionLoginSuccess = "login_success"
	ActionLoginFailure = "login_failure"
	ActionLogout       = "logout"
	ActionRefresh      = "refresh"
	ActionRegister     = "register"
)

// AuditLog represents an audit event. UserID is empty when the actor is unknown (e.g. failed login).
type AuditLog struct {
	ID        string
	UserID    string
	Action    string
	Resource  string
	IP        string
	Metadata  string
	CreatedAt time.Time
}
