package events

import (
	"time"

	"github.com/segmentio/ksuid"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventUserSignedUp      EventType = "user.signed_up"
	EventLoginSucceeded    EventType = "auth.login.success"
	EventLoginFailed       EventType = "auth.login.failure"
	EventPasswordChanged   EventType = "user.password.changed"
	EventPasswordReset     EventType = "user.password.reset"
	EventEmailChanged      EventType = "user.email.changed"
	EventUserDeactivated   EventType = "user.deactivated"
	EventUserReactivated   EventType = "user.reactivated"
	EventUserDeleted       EventType = "user.deleted"
	EventTokenRequested    EventType = "user.token.requested"
	EventNotificationError EventType = "notification.failed"
)

// AllEventTypes lists every type a subscriber may register for.
var AllEventTypes = []EventType{
	EventUserSignedUp,
	EventLoginSucceeded,
	EventLoginFailed,
	EventPasswordChanged,
	EventPasswordReset,
	EventEmailChanged,
	EventUserDeactivated,
	EventUserReactivated,
	EventUserDeleted,
	EventTokenRequested,
	EventNotificationError,
}

// Event represents account activity emitted by services. UserID is the public
// identifier; internal ids never leave the repository layer.
type Event struct {
	ID        string            `json:"id"`
	Type      EventType         `json:"type"`
	UserID    string            `json:"userId,omitempty"`
	IP        string            `json:"ip,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
	Attrs     map[string]string `json:"attrs,omitempty"`
}

// New stamps an event with an id and the current time.
func New(eventType EventType, userID string, attrs map[string]string) Event {
	return Event{
		ID:        ksuid.New().String(),
		Type:      eventType,
		UserID:    userID,
		Timestamp: time.Now().UTC(),
		Attrs:     attrs,
	}
}

// WithIP returns a copy of e carrying the caller address.
func (e Event) WithIP(ip string) Event {
	e.IP = ip
	return e
}
