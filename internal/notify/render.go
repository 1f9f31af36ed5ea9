package notify

import (
	"fmt"
	"net/url"
	"strings"
	"text/template"
	"time"
)

// Envelope is a rendered message ready for a transport.
type Envelope struct {
	To      string
	Subject string
	Body    string
}

var funcs = template.FuncMap{
	"until": func(t time.Time) string {
		d := time.Until(t).Round(time.Minute)
		if d < time.Minute {
			d = time.Minute
		}
		return strings.TrimSuffix(d.String(), "0s")
	},
	"greet": func(name string) string {
		if strings.TrimSpace(name) == "" {
			return "Hi there"
		}
		return "Hi " + name
	},
}

var templates = map[Kind]*template.Template{
	KindWelcome: parse(KindWelcome, `{{greet .FirstName}},

Welcome to Inkmarket! Your {{.Role}} account is ready.
Log in any time at {{.LoginURL}}.
`),
	KindPasswordReset: parse(KindPasswordReset, `{{greet .FirstName}},

Forgot your password? Set a new one here:
{{.ResetURL}}

The link is valid for {{until .ExpiresAt}}. If you didn't ask for this, ignore this email.
`),
	KindPasswordChanged: parse(KindPasswordChanged, `{{greet .FirstName}},

Your Inkmarket password was just changed. If this wasn't you, reset your password right away.
`),
	KindEmailChange: parse(KindEmailChange, `{{greet .FirstName}},

Confirm this address for your Inkmarket account:
{{.ConfirmURL}}

The link is valid for {{until .ExpiresAt}}.
`),
	KindEmailChanged: parse(KindEmailChanged, `{{greet .FirstName}},

The email on your Inkmarket account changed from {{.OldEmail}} to {{.NewEmail}}.
If you didn't make this change, contact support immediately.
`),
	KindReactivation: parse(KindReactivation, `{{greet .FirstName}},

Welcome back! Reactivate your Inkmarket account here:
{{.ReactivateURL}}

The link is valid for {{until .ExpiresAt}}.
`),
}

var subjects = map[Kind]string{
	KindWelcome:         "Welcome to Inkmarket",
	KindPasswordReset:   "Your password reset link",
	KindPasswordChanged: "Your password was changed",
	KindEmailChange:     "Confirm your new email address",
	KindEmailChanged:    "Your email address was changed",
	KindReactivation:    "Reactivate your account",
}

func parse(kind Kind, body string) *template.Template {
	return template.Must(template.New(string(kind)).Funcs(funcs).Parse(body))
}

// Render turns a message into an envelope.
func Render(msg Message) (Envelope, error) {
	if msg == nil {
		return Envelope{}, fmt.Errorf("nil message")
	}
	if strings.TrimSpace(msg.Recipient()) == "" {
		return Envelope{}, fmt.Errorf("%s: recipient is required", msg.Kind())
	}

	switch msg.(type) {
	case WelcomeMessage, PasswordResetMessage, PasswordChangedMessage,
		EmailChangeMessage, EmailChangedMessage, ReactivationMessage:
	default:
		return Envelope{}, fmt.Errorf("unsupported message %T", msg)
	}

	var body strings.Builder
	if err := templates[msg.Kind()].Execute(&body, msg); err != nil {
		return Envelope{}, fmt.Errorf("render %s: %w", msg.Kind(), err)
	}
	return Envelope{To: msg.Recipient(), Subject: subjects[msg.Kind()], Body: body.String()}, nil
}

// Links builds the frontend URLs embedded in messages.
type Links struct {
	BaseURL string
}

func (l Links) join(path string, query url.Values) string {
	base := strings.TrimRight(l.BaseURL, "/")
	if len(query) > 0 {
		return base + path + "?" + query.Encode()
	}
	return base + path
}

func (l Links) Login() string {
	return l.join("/login", nil)
}

func (l Links) ResetPassword(token string) string {
	return l.join("/reset-password", url.Values{"token": {token}})
}

func (l Links) ConfirmEmail(token string) string {
	return l.join("/confirm-email", url.Values{"token": {token}})
}

func (l Links) Reactivate(token string) string {
	return l.join("/reactivate/"+url.PathEscape(token), nil)
}
