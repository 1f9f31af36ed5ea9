// Package notify renders and delivers transactional email. Every message
// the service can send is one of the variants declared here.
package notify

import (
	"context"
	"time"
)

// Kind identifies a message variant in logs and metrics.
type Kind string

const (
	KindWelcome         Kind = "welcome"
	KindPasswordReset   Kind = "password_reset"
	KindPasswordChanged Kind = "password_changed"
	KindEmailChange     Kind = "email_change"
	KindEmailChanged    Kind = "email_changed"
	KindReactivation    Kind = "reactivation"
)

// Message is a closed set: only the types in this package implement it.
type Message interface {
	Kind() Kind
	Recipient() string
	sealed()
}

// Sink delivers a message.
type Sink interface {
	Send(ctx context.Context, msg Message) error
}

type WelcomeMessage struct {
	To        string
	FirstName string
	Role      string
	LoginURL  string
}

type PasswordResetMessage struct {
	To        string
	FirstName string
	ResetURL  string
	ExpiresAt time.Time
}

type PasswordChangedMessage struct {
	To        string
	FirstName string
}

// EmailChangeMessage goes to the new address and carries the confirm link.
type EmailChangeMessage struct {
	To         string
	FirstName  string
	ConfirmURL string
	ExpiresAt  time.Time
}

// EmailChangedMessage is sent to both the previous and the new address.
type EmailChangedMessage struct {
	To        string
	FirstName string
	OldEmail  string
	NewEmail  string
}

type ReactivationMessage struct {
	To            string
	FirstName     string
	ReactivateURL string
	ExpiresAt     time.Time
}

func (WelcomeMessage) Kind() Kind         { return KindWelcome }
func (PasswordResetMessage) Kind() Kind   { return KindPasswordReset }
func (PasswordChangedMessage) Kind() Kind { return KindPasswordChanged }
func (EmailChangeMessage) Kind() Kind     { return KindEmailChange }
func (EmailChangedMessage) Kind() Kind    { return KindEmailChanged }
func (ReactivationMessage) Kind() Kind    { return KindReactivation }

func (m WelcomeMessage) Recipient() string         { return m.To }
func (m PasswordResetMessage) Recipient() string   { return m.To }
func (m PasswordChangedMessage) Recipient() string { return m.To }
func (m EmailChangeMessage) Recipient() string     { return m.To }
func (m EmailChangedMessage) Recipient() string    { return m.To }
func (m ReactivationMessage) Recipient() string    { return m.To }

func (WelcomeMessage) sealed()         {}
func (PasswordResetMessage) sealed()   {}
func (PasswordChangedMessage) sealed() {}
func (EmailChangeMessage) sealed()     {}
func (EmailChangedMessage) sealed()    {}
func (ReactivationMessage) sealed()    {}
