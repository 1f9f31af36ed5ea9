package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	nethttp "net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/inkmarket-service/internal/api/http/handlers"
	"github.com/spec-kit/inkmarket-service/internal/auth"
	"github.com/spec-kit/inkmarket-service/internal/events"
	"github.com/spec-kit/inkmarket-service/internal/notify"
	"github.com/spec-kit/inkmarket-service/internal/observability"
	"github.com/spec-kit/inkmarket-service/internal/repository/memstore"
	"github.com/spec-kit/inkmarket-service/internal/service"
)

type captureSink struct {
	mu   sync.Mutex
	sent []notify.Message
}

func (s *captureSink) Send(_ context.Context, msg notify.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, msg)
	return nil
}

func (s *captureSink) last() notify.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.sent) == 0 {
		return nil
	}
	return s.sent[len(s.sent)-1]
}

type stubPinger struct {
	enabled bool
	err     error
}

func (p stubPinger) Enabled() bool              { return p.enabled }
func (p stubPinger) Ping(context.Context) error { return p.err }

type testServer struct {
	app  *fiber.App
	sink *captureSink
}

func newTestServer(t *testing.T, deps map[string]handlers.Pinger) *testServer {
	t.Helper()

	logger := zap.NewNop()
	metrics := observability.NewMetrics()
	store := memstore.New()
	sink := &captureSink{}
	dispatcher := events.NewInMemoryDispatcher()
	hasher := auth.NewPasswordHasher(10)
	notifier := service.NewNotificationService(sink, nil, notify.Links{BaseURL: "https://ink.test"}, dispatcher, logger)

	authSvc := service.NewAuthService(service.AuthDependencies{
		Store:    store,
		Tokens:   auth.NewTokenManager("router-secret", time.Hour),
		Hasher:   hasher,
		Notifier: notifier,
		Events:   dispatcher,
		Logger:   logger,
	})
	accounts := service.NewAccountService(service.AccountDependencies{
		Store:    store,
		Sessions: authSvc,
		Hasher:   hasher,
		Notifier: notifier,
		Limiter:  service.NewMemoryRequestLimiter(time.Minute, 100),
		Events:   dispatcher,
		Logger:   logger,
		TTLs: service.TokenTTLs{
			PasswordReset: 10 * time.Minute,
			EmailChange:   10 * time.Minute,
			Reactivation:  time.Hour,
		},
	})

	cookies := handlers.CookieSettings{TTL: time.Hour}
	app := fiber.New()
	RegisterMiddlewares(app, logger, metrics, 5*time.Second, false)
	RegisterRoutes(app, RouteConfig{
		Health:         handlers.NewHealthHandler("inkmarket", "test", deps, metrics),
		Users:          handlers.NewUsersHandler(authSvc, cookies),
		Accounts:       handlers.NewAccountHandler(accounts, cookies),
		AuthMiddleware: auth.NewAuthMiddleware(authSvc),
	})
	return &testServer{app: app, sink: sink}
}

func (s *testServer) do(t *testing.T, method, target string, body any, token string) (*nethttp.Response, map[string]any) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, target, reader)
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	}
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)

	payload := map[string]any{}
	if resp.StatusCode != nethttp.StatusNoContent {
		_ = json.NewDecoder(resp.Body).Decode(&payload)
	}
	return resp, payload
}

func (s *testServer) signup(t *testing.T, email, display string) string {
	t.Helper()
	resp, body := s.do(t, nethttp.MethodPost, "/api/v1/users/signup", map[string]any{
		"email":           email,
		"password":        "password123",
		"passwordConfirm": "password123",
		"firstName":       "Ann",
		"lastName":        "Lee",
		"role":            "user",
		"displayName":     display,
	}, "")
	require.Equal(t, nethttp.StatusCreated, resp.StatusCode, body)
	return body["token"].(string)
}

func sessionCookie(resp *nethttp.Response) *nethttp.Cookie {
	for _, c := range resp.Cookies() {
		if c.Name == auth.SessionCookie {
			return c
		}
	}
	return nil
}

func TestSignupSetsCookieAndHidesSecrets(t *testing.T) {
	srv := newTestServer(t, nil)

	resp, body := srv.do(t, nethttp.MethodPost, "/api/v1/users/signup", map[string]any{
		"email":           "Ink@Example.com",
		"password":        "password123",
		"passwordConfirm": "password123",
		"firstName":       "Ann",
		"lastName":        "Lee",
		"role":            "user",
		"displayName":     "annlee",
	}, "")
	require.Equal(t, nethttp.StatusCreated, resp.StatusCode, body)
	assert.Equal(t, "success", body["status"])
	require.NotEmpty(t, body["token"])

	cookie := sessionCookie(resp)
	require.NotNil(t, cookie)
	assert.Equal(t, body["token"], cookie.Value)
	assert.True(t, cookie.HttpOnly)

	user := body["data"].(map[string]any)["user"].(map[string]any)
	assert.Equal(t, "ink@example.com", user["email"])
	assert.NotContains(t, user, "password")
	assert.NotContains(t, user, "passwordHash")

	welcome, ok := srv.sink.last().(notify.WelcomeMessage)
	require.True(t, ok)
	assert.Equal(t, "ink@example.com", welcome.To)
}

func TestLoginFailureEnvelope(t *testing.T) {
	srv := newTestServer(t, nil)
	srv.signup(t, "ink@example.com", "ink")

	resp, body := srv.do(t, nethttp.MethodPost, "/api/v1/users/login", map[string]any{
		"email": "ink@example.com", "password": "wrong-password",
	}, "")
	assert.Equal(t, nethttp.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "fail", body["status"])
	assert.Equal(t, "Incorrect email or password", body["message"])

	resp, body = srv.do(t, nethttp.MethodPost, "/api/v1/users/login", map[string]any{
		"email": "ink@example.com", "password": "password123",
	}, "")
	assert.Equal(t, nethttp.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, body["token"])
}

func TestMeRequiresSession(t *testing.T) {
	srv := newTestServer(t, nil)

	resp, body := srv.do(t, nethttp.MethodGet, "/api/v1/users/me", nil, "")
	assert.Equal(t, nethttp.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "fail", body["status"])

	token := srv.signup(t, "ink@example.com", "ink")
	resp, body = srv.do(t, nethttp.MethodGet, "/api/v1/users/me", nil, token)
	require.Equal(t, nethttp.StatusOK, resp.StatusCode)
	user := body["data"].(map[string]any)["user"].(map[string]any)
	assert.Equal(t, "ink", user["displayName"])
}

func TestValidateTokenNeverFails(t *testing.T) {
	srv := newTestServer(t, nil)
	token := srv.signup(t, "ink@example.com", "ink")

	resp, body := srv.do(t, nethttp.MethodGet, "/api/v1/users/validate-token", nil, token)
	require.Equal(t, nethttp.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["data"].(map[string]any)["valid"])

	resp, body = srv.do(t, nethttp.MethodGet, "/api/v1/users/validate-token", nil, "garbage")
	require.Equal(t, nethttp.StatusOK, resp.StatusCode)
	assert.Equal(t, false, body["data"].(map[string]any)["valid"])
}

func TestUpdateMeRejectsPasswordFields(t *testing.T) {
	srv := newTestServer(t, nil)
	token := srv.signup(t, "ink@example.com", "ink")

	resp, body := srv.do(t, nethttp.MethodPatch, "/api/v1/users/update-me", map[string]any{
		"firstName": "Bea", "password": "newpassword1",
	}, token)
	assert.Equal(t, nethttp.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, body["message"], "/update-password")

	resp, body = srv.do(t, nethttp.MethodPatch, "/api/v1/users/update-me", map[string]any{"firstName": "Bea"}, token)
	require.Equal(t, nethttp.StatusOK, resp.StatusCode, body)
	user := body["data"].(map[string]any)["user"].(map[string]any)
	assert.Equal(t, "Bea", user["firstName"])
}

func TestPasswordResetOverHTTP(t *testing.T) {
	srv := newTestServer(t, nil)
	srv.signup(t, "ink@example.com", "ink")

	resp, body := srv.do(t, nethttp.MethodPost, "/api/v1/users/forgot-password", map[string]any{"email": "ink@example.com"}, "")
	require.Equal(t, nethttp.StatusOK, resp.StatusCode, body)

	msg, ok := srv.sink.last().(notify.PasswordResetMessage)
	require.True(t, ok)
	link, err := url.Parse(msg.ResetURL)
	require.NoError(t, err)
	target := "/api/v1/users/reset-password?token=" + link.Query().Get("token")

	payload := map[string]any{"password": "brand-new-pass", "passwordConfirm": "brand-new-pass"}
	resp, body = srv.do(t, nethttp.MethodPatch, target, payload, "")
	require.Equal(t, nethttp.StatusOK, resp.StatusCode, body)
	assert.NotNil(t, sessionCookie(resp))

	resp, body = srv.do(t, nethttp.MethodPatch, target, payload, "")
	assert.Equal(t, nethttp.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Token is invalid or has expired", body["message"])
}

func TestLogoutOverwritesCookie(t *testing.T) {
	srv := newTestServer(t, nil)

	resp, _ := srv.do(t, nethttp.MethodGet, "/api/v1/users/logout", nil, "")
	require.Equal(t, nethttp.StatusOK, resp.StatusCode)
	cookie := sessionCookie(resp)
	require.NotNil(t, cookie)
	assert.Equal(t, "loggedout", cookie.Value)
}

func TestDeactivateThenLogin(t *testing.T) {
	srv := newTestServer(t, nil)
	token := srv.signup(t, "ink@example.com", "ink")

	resp, _ := srv.do(t, nethttp.MethodDelete, "/api/v1/users/deactivate-me", nil, token)
	require.Equal(t, nethttp.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "loggedout", sessionCookie(resp).Value)

	resp, body := srv.do(t, nethttp.MethodPost, "/api/v1/users/login", map[string]any{
		"email": "ink@example.com", "password": "password123",
	}, "")
	assert.Equal(t, nethttp.StatusForbidden, resp.StatusCode)
	assert.Contains(t, body["message"], "deactivated")
}

func TestDeleteMe(t *testing.T) {
	srv := newTestServer(t, nil)
	token := srv.signup(t, "ink@example.com", "ink")

	resp, _ := srv.do(t, nethttp.MethodDelete, "/api/v1/users/delete-me", nil, token)
	require.Equal(t, nethttp.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "deleted", sessionCookie(resp).Value)

	resp, _ = srv.do(t, nethttp.MethodGet, "/api/v1/users/me", nil, token)
	assert.Equal(t, nethttp.StatusUnauthorized, resp.StatusCode)
}

func TestListUsersIsAdminOnly(t *testing.T) {
	srv := newTestServer(t, nil)
	token := srv.signup(t, "ink@example.com", "ink")

	resp, body := srv.do(t, nethttp.MethodGet, "/api/v1/users", nil, token)
	assert.Equal(t, nethttp.StatusForbidden, resp.StatusCode)
	assert.Equal(t, "fail", body["status"])
}

func TestUnknownRouteIsNotFound(t *testing.T) {
	srv := newTestServer(t, nil)

	resp, body := srv.do(t, nethttp.MethodGet, "/nowhere", nil, "")
	assert.Equal(t, nethttp.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "fail", body["status"])
}

func TestHealthReadiness(t *testing.T) {
	srv := newTestServer(t, map[string]handlers.Pinger{
		"postgres": stubPinger{enabled: true},
		"redis":    stubPinger{enabled: false},
	})
	resp, body := srv.do(t, nethttp.MethodGet, "/health/ready", nil, "")
	require.Equal(t, nethttp.StatusOK, resp.StatusCode)
	deps := body["dependencies"].(map[string]any)
	assert.Equal(t, "ok", deps["postgres"])
	assert.Equal(t, "disabled", deps["redis"])

	srv = newTestServer(t, map[string]handlers.Pinger{
		"postgres": stubPinger{enabled: true, err: errors.New("down")},
	})
	resp, body = srv.do(t, nethttp.MethodGet, "/health/ready", nil, "")
	assert.Equal(t, nethttp.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, "unreachable", body["dependencies"].(map[string]any)["postgres"])
}

func TestHealthMetricsCountsRequests(t *testing.T) {
	srv := newTestServer(t, nil)
	srv.do(t, nethttp.MethodGet, "/health/live", nil, "")

	resp, body := srv.do(t, nethttp.MethodGet, "/health/metrics", nil, "")
	require.Equal(t, nethttp.StatusOK, resp.StatusCode)
	data := body["data"].(map[string]any)
	assert.NotEmpty(t, data["requests"])
}
