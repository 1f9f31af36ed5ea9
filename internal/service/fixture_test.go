package service

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/inkmarket-service/internal/api/dto"
	"github.com/spec-kit/inkmarket-service/internal/auth"
	"github.com/spec-kit/inkmarket-service/internal/domain"
	"github.com/spec-kit/inkmarket-service/internal/events"
	"github.com/spec-kit/inkmarket-service/internal/notify"
	"github.com/spec-kit/inkmarket-service/internal/repository/memstore"
	apperrors "github.com/spec-kit/inkmarket-service/pkg/util/errorutil"
)

type recordingSink struct {
	mu   sync.Mutex
	sent []notify.Message
	err  error
}

func (s *recordingSink) Send(_ context.Context, msg notify.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, msg)
	return nil
}

func (s *recordingSink) fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

func (s *recordingSink) messages() []notify.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]notify.Message(nil), s.sent...)
}

func (s *recordingSink) last() notify.Message {
	msgs := s.messages()
	if len(msgs) == 0 {
		return nil
	}
	return msgs[len(msgs)-1]
}

type recordedEvents struct {
	mu    sync.Mutex
	types []events.EventType
}

func (r *recordedEvents) handler(_ context.Context, e events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.types = append(r.types, e.Type)
	return nil
}

func (r *recordedEvents) has(t events.EventType) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, got := range r.types {
		if got == t {
			return true
		}
	}
	return false
}

type fixture struct {
	store    *memstore.Store
	sink     *recordingSink
	events   *recordedEvents
	tokens   *auth.TokenManager
	auth     *AuthService
	accounts *AccountService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store := memstore.New()
	sink := &recordingSink{}
	recorded := &recordedEvents{}
	dispatcher := events.NewInMemoryDispatcher()
	for _, et := range events.AllEventTypes {
		dispatcher.Subscribe(et, recorded.handler)
	}

	logger := zap.NewNop()
	tokens := auth.NewTokenManager("test-secret", time.Hour)
	hasher := auth.NewPasswordHasher(10)
	notifier := NewNotificationService(sink, nil, notify.Links{BaseURL: "https://ink.test"}, dispatcher, logger)

	authSvc := NewAuthService(AuthDependencies{
		Store:    store,
		Tokens:   tokens,
		Hasher:   hasher,
		Notifier: notifier,
		Events:   dispatcher,
		Logger:   logger,
	})
	accounts := NewAccountService(AccountDependencies{
		Store:    store,
		Sessions: authSvc,
		Hasher:   hasher,
		Notifier: notifier,
		Limiter:  NewMemoryRequestLimiter(time.Minute, 100),
		Events:   dispatcher,
		Logger:   logger,
		TTLs: TokenTTLs{
			PasswordReset: 10 * time.Minute,
			EmailChange:   10 * time.Minute,
			Reactivation:  time.Hour,
		},
	})

	return &fixture{
		store:    store,
		sink:     sink,
		events:   recorded,
		tokens:   tokens,
		auth:     authSvc,
		accounts: accounts,
	}
}

func signupRequest(email, display string, role domain.Role) dto.SignupRequest {
	return dto.SignupRequest{
		Email:           email,
		Password:        "password123",
		PasswordConfirm: "password123",
		Role:            string(role),
		FirstName:       "Ann",
		LastName:        "Lee",
		DisplayName:     display,
		City:            "Austin",
		State:           "TX",
		Zipcode:         "78701",
		StylesOffered:   []string{"blackwork"},
	}
}

func (f *fixture) signup(t *testing.T, email string) *AuthResult {
	t.Helper()
	res, err := f.auth.Signup(context.Background(), signupRequest(email, strings.Split(email, "@")[0], domain.RoleUser), "::ffff:10.0.0.1")
	require.NoError(t, err)
	return res
}

func (f *fixture) userID(t *testing.T, email string) int64 {
	t.Helper()
	u, err := f.store.Users().GetByEmail(context.Background(), email)
	require.NoError(t, err)
	return u.ID
}

// tokenFrom pulls the cleartext token out of the link in msg.
func tokenFrom(t *testing.T, msg notify.Message) string {
	t.Helper()
	var link string
	switch m := msg.(type) {
	case notify.PasswordResetMessage:
		link = m.ResetURL
	case notify.EmailChangeMessage:
		link = m.ConfirmURL
	case notify.ReactivationMessage:
		link = m.ReactivateURL
	default:
		t.Fatalf("message %T carries no token", msg)
	}
	u, err := url.Parse(link)
	require.NoError(t, err)
	if tok := u.Query().Get("token"); tok != "" {
		return tok
	}
	parts := strings.Split(u.Path, "/")
	return parts[len(parts)-1]
}

func requireStatus(t *testing.T, err error, status int) *apperrors.DomainError {
	t.Helper()
	require.Error(t, err)
	var domainErr *apperrors.DomainError
	require.True(t, errors.As(err, &domainErr), "expected domain error, got %T: %v", err, err)
	require.Equal(t, status, domainErr.HTTPStatus, domainErr.Message)
	return domainErr
}
