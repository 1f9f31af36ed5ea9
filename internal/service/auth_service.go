package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/inkmarket-service/internal/api/dto"
	"github.com/spec-kit/inkmarket-service/internal/auth"
	"github.com/spec-kit/inkmarket-service/internal/domain"
	"github.com/spec-kit/inkmarket-service/internal/events"
	"github.com/spec-kit/inkmarket-service/internal/notify"
	"github.com/spec-kit/inkmarket-service/internal/repository"
	apperrors "github.com/spec-kit/inkmarket-service/pkg/util/errorutil"
)

// Caller-facing messages.
const (
	msgIncorrectCredentials = "Incorrect email or password"
	msgMissingCredentials   = "Please provide email and password!"
	msgDeactivated          = "This account has been deactivated. Request a reactivation link to restore it."
	msgPasswordMismatch     = "Passwords do not match"
	msgAdminSignup          = "Admin accounts cannot be registered via public signup."
	msgInvalidRole          = "Role must be either artist or user"
	msgDisplayNameRequired  = "Please provide a display name"
	msgArtistLocation       = "Artists must provide a city, state and zipcode"
	msgNotLoggedIn          = "You are not logged in! Please log in to get access."
	msgInvalidSession       = "Invalid token. Please log in again!"
	msgExpiredSession       = "Your token has expired! Please log in again."
	msgUserGone             = "The user belonging to this token no longer exists."
	msgPasswordChanged      = "User recently changed password! Please log in again."
	msgTokenValid           = "Token is valid"
)

// AuthResult is a freshly authenticated account.
type AuthResult struct {
	User    *domain.User
	Session domain.Session
}

// TokenValidation is the outcome of a validate-token probe.
type TokenValidation struct {
	Valid   bool   `json:"valid"`
	Message string `json:"message"`
}

// AuthService coordinates signup, login and session checks.
type AuthService struct {
	store    repository.Store
	tokens   *auth.TokenManager
	hasher   *auth.PasswordHasher
	notifier *NotificationService
	events   events.Dispatcher
	logger   *zap.Logger
	now      func() time.Time
}

// AuthDependencies encapsulates collaborators for the auth service.
type AuthDependencies struct {
	Store    repository.Store
	Tokens   *auth.TokenManager
	Hasher   *auth.PasswordHasher
	Notifier *NotificationService
	Events   events.Dispatcher
	Logger   *zap.Logger
}

// NewAuthService builds the service.
func NewAuthService(deps AuthDependencies) *AuthService {
	dispatcher := deps.Events
	if dispatcher == nil {
		dispatcher = events.Nop{}
	}
	return &AuthService{
		store:    deps.Store,
		tokens:   deps.Tokens,
		hasher:   deps.Hasher,
		notifier: deps.Notifier,
		events:   dispatcher,
		logger:   deps.Logger,
		now:      time.Now,
	}
}

var _ auth.SessionResolver = (*AuthService)(nil)

// Signup registers an account and everything created alongside it in one
// transaction. ip is the caller address recorded on the TOS agreement.
func (s *AuthService) Signup(ctx context.Context, req dto.SignupRequest, ip string) (*AuthResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if req.Password != req.PasswordConfirm {
		return nil, apperrors.NewValidationError(msgPasswordMismatch, nil)
	}
	role := domain.Role(strings.ToLower(strings.TrimSpace(req.Role)))
	if role == domain.RoleAdmin {
		return nil, apperrors.NewForbidden(msgAdminSignup)
	}
	if !role.SelfAssignable() {
		return nil, apperrors.NewValidationError(msgInvalidRole, nil)
	}
	displayName := strings.TrimSpace(req.DisplayName)
	if displayName == "" {
		return nil, apperrors.NewValidationError(msgDisplayNameRequired, nil)
	}
	if role == domain.RoleArtist && (blank(req.City) || blank(req.State) || blank(req.Zipcode)) {
		return nil, apperrors.NewValidationError(msgArtistLocation, map[string]any{
			"fields": []string{"city", "state", "zipcode"},
		})
	}

	hash, changedAt, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, apperrors.NewInternal("could not secure password", err)
	}

	user := &domain.User{
		PublicID:          uuid.New(),
		Email:             normalizeEmail(req.Email),
		DisplayName:       displayName,
		FirstName:         strings.TrimSpace(req.FirstName),
		LastName:          strings.TrimSpace(req.LastName),
		Role:              role,
		IsActive:          true,
		PasswordHash:      hash,
		PasswordChangedAt: &changedAt,
	}

	err = s.store.WithTx(ctx, func(tx repository.Store) error {
		if err := tx.Users().Create(ctx, user); err != nil {
			return err
		}
		if err := tx.Preferences().Create(ctx, domain.DefaultEmailPreferences(user.ID)); err != nil {
			return err
		}
		agreement := &domain.TOSAgreement{
			UserID:    user.ID,
			Version:   domain.CurrentTOSVersion,
			IPAddress: NormalizeIP(ip),
			AgreedAt:  s.now().UTC(),
		}
		if err := tx.Agreements().Create(ctx, agreement); err != nil {
			return err
		}
		if role != domain.RoleArtist {
			return nil
		}
		return tx.Artists().Create(ctx, &domain.ArtistDetails{
			UserID:        user.ID,
			City:          strings.TrimSpace(req.City),
			State:         strings.TrimSpace(req.State),
			Zipcode:       strings.TrimSpace(req.Zipcode),
			StylesOffered: req.StylesOffered,
		})
	})
	if err != nil {
		return nil, storeError(err)
	}

	s.publish(ctx, events.New(events.EventUserSignedUp, user.PublicID.String(), map[string]string{"role": string(role)}).WithIP(NormalizeIP(ip)))
	s.notifier.Dispatch(ctx, notify.WelcomeMessage{
		To:        user.Email,
		FirstName: user.FirstName,
		Role:      string(user.Role),
		LoginURL:  s.notifier.Links().Login(),
	})

	return s.IssueSession(user)
}

// Login checks credentials. Unknown emails and wrong passwords are
// indistinguishable to the caller.
func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	if blank(email) || password == "" {
		return nil, apperrors.NewValidationError(msgMissingCredentials, nil)
	}

	user, err := s.store.Users().GetByEmail(ctx, normalizeEmail(email))
	if err != nil && !repository.IsNotFound(err) {
		return nil, apperrors.NewInternalError(err)
	}
	if user == nil || !s.hasher.Compare(user.PasswordHash, password) {
		s.publish(ctx, events.New(events.EventLoginFailed, "", map[string]string{"email": normalizeEmail(email)}))
		return nil, apperrors.NewUnauthorized(msgIncorrectCredentials)
	}
	if !user.IsActive {
		return nil, apperrors.NewForbidden(msgDeactivated)
	}

	s.publish(ctx, events.New(events.EventLoginSucceeded, user.PublicID.String(), nil))
	return s.IssueSession(user)
}

// IssueSession signs a session token for user.
func (s *AuthService) IssueSession(user *domain.User) (*AuthResult, error) {
	token, exp, err := s.tokens.Issue(user.PublicID.String())
	if err != nil {
		return nil, apperrors.NewInternal("could not issue session", err)
	}
	return &AuthResult{
		User: user.Sanitized(),
		Session: domain.Session{
			Token:     token,
			IssuedAt:  exp.Add(-s.tokens.TTL()),
			ExpiresAt: exp,
		},
	}, nil
}

// ValidateToken reports whether token would pass Authenticate's codec
// checks. It never fails.
func (s *AuthService) ValidateToken(ctx context.Context, token string) TokenValidation {
	if strings.TrimSpace(token) == "" {
		return TokenValidation{Valid: false, Message: msgTokenInvalid}
	}
	if _, err := s.Authenticate(ctx, token); err != nil {
		return TokenValidation{Valid: false, Message: msgTokenInvalid}
	}
	return TokenValidation{Valid: true, Message: msgTokenValid}
}

// Authenticate resolves a session token to its account.
func (s *AuthService) Authenticate(ctx context.Context, token string) (*domain.User, error) {
	if strings.TrimSpace(token) == "" {
		return nil, apperrors.NewUnauthorized(msgNotLoggedIn)
	}

	result := s.tokens.Verify(token)
	switch result.Status {
	case auth.TokenExpired:
		return nil, apperrors.NewUnauthorized(msgExpiredSession)
	case auth.TokenOK:
	default:
		return nil, apperrors.NewUnauthorized(msgInvalidSession)
	}

	publicID, err := uuid.Parse(result.Claims.Subject)
	if err != nil {
		return nil, apperrors.NewUnauthorized(msgInvalidSession)
	}
	user, err := s.store.Users().GetByPublicID(ctx, publicID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, apperrors.NewUnauthorized(msgUserGone)
		}
		return nil, apperrors.NewInternalError(err)
	}
	if result.Claims.IssuedAt == nil || user.ChangedPasswordAfter(result.Claims.IssuedAt.Time) {
		return nil, apperrors.NewUnauthorized(msgPasswordChanged)
	}
	return user, nil
}

// Me returns the caller's own profile.
func (s *AuthService) Me(ctx context.Context, userID int64) (*domain.User, error) {
	user, err := s.store.Users().GetByID(ctx, userID)
	if err != nil {
		return nil, lookupError(err, "user")
	}
	return user.Sanitized(), nil
}

// UpdateProfile applies the whitelisted profile fields.
func (s *AuthService) UpdateProfile(ctx context.Context, userID int64, req dto.UpdateProfileRequest) (*domain.User, error) {
	if req.Empty() {
		return nil, apperrors.NewValidationError("No updatable fields provided. Use /update-password or /request-email-change for credentials.", nil)
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	user, err := s.store.Users().GetByID(ctx, userID)
	if err != nil {
		return nil, lookupError(err, "user")
	}
	if req.FirstName != nil {
		user.FirstName = strings.TrimSpace(*req.FirstName)
	}
	if req.LastName != nil {
		user.LastName = strings.TrimSpace(*req.LastName)
	}
	if req.DisplayName != nil {
		user.DisplayName = strings.TrimSpace(*req.DisplayName)
	}
	if err := s.store.Users().UpdateProfile(ctx, user); err != nil {
		return nil, storeError(err)
	}
	return user.Sanitized(), nil
}

// ListUsers pages through every account.
func (s *AuthService) ListUsers(ctx context.Context, limit, offset int) ([]*domain.User, error) {
	if limit <= 0 || limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	users, err := s.store.Users().List(ctx, limit, offset)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	out := make([]*domain.User, 0, len(users))
	for _, u := range users {
		out = append(out, u.Sanitized())
	}
	return out, nil
}

func (s *AuthService) publish(ctx context.Context, event events.Event) {
	if err := s.events.Publish(ctx, event); err != nil {
		s.logger.Warn("event handler failed", zap.String("event", string(event.Type)), zap.Error(err))
	}
}

// storeError translates store failures raised at a write boundary.
func storeError(err error) error {
	var dup *repository.DuplicateError
	if errors.As(err, &dup) {
		return apperrors.NewDuplicateField(dup.Field, dup.Value)
	}
	var invalid *repository.ValidationError
	if errors.As(err, &invalid) {
		return apperrors.NewInvalidInput(invalid.Messages)
	}
	var domainErr *apperrors.DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	return apperrors.NewInternalError(err)
}

func lookupError(err error, resource string) error {
	if repository.IsNotFound(err) {
		return apperrors.NewNotFound(resource, nil)
	}
	return apperrors.NewInternalError(err)
}

// NormalizeIP strips the IPv4-mapped IPv6 prefix.
func NormalizeIP(ip string) string {
	return strings.TrimPrefix(strings.TrimSpace(ip), "::ffff:")
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func blank(v string) bool {
	return strings.TrimSpace(v) == ""
}
