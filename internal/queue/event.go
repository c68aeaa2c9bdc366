// Package queue carries auth audit events over RabbitMQ: the publisher used
// by the HTTP handlers and the consumer that appends them to an audit log.
package queue

import (
	"fmt"
	"time"
)

// Event types published after a successful auth operation.
const (
	EventRegistered = "auth.registered"
	EventLogin      = "auth.login"
	EventRefreshed  = "auth.refreshed"
	EventLogout     = "auth.logout"
)

// AuthEvent is the message body published to the audit queue. It never
// carries credentials or tokens.
type AuthEvent struct {
	Type       string `json:"type"`
	UserID     string `json:"user_id"`
	Username   string `json:"username,omitempty"`
	Role       string `json:"role,omitempty"`
	RemoteIP   string `json:"remote_ip,omitempty"`
	RequestID  string `json:"request_id,omitempty"`
	OccurredAt string `json:"occurred_at"` // RFC3339, UTC
}

// NewAuthEvent stamps an event of type typ for userID at t.
func NewAuthEvent(typ, userID string, t time.Time) AuthEvent {
	return AuthEvent{Type: typ, UserID: userID, OccurredAt: t.UTC().Format(time.RFC3339)}
}

// Line renders ev as a single audit log line.
func (ev AuthEvent) Line() string {
	return fmt.Sprintf("[%s] %s | user_id=%s | username=%q | role=%s | ip=%s | request_id=%s\n",
		ev.OccurredAt, ev.Type, ev.UserID, ev.Username, orDash(ev.Role), orDash(ev.RemoteIP), orDash(ev.RequestID))
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
