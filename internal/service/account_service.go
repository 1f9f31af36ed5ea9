package service

import (
	"context"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/inkmarket-service/internal/api/dto"
	"github.com/spec-kit/inkmarket-service/internal/auth"
	"github.com/spec-kit/inkmarket-service/internal/domain"
	"github.com/spec-kit/inkmarket-service/internal/events"
	"github.com/spec-kit/inkmarket-service/internal/notify"
	"github.com/spec-kit/inkmarket-service/internal/repository"
	apperrors "github.com/spec-kit/inkmarket-service/pkg/util/errorutil"
)

const (
	msgTokenInvalid        = "Token is invalid or has expired"
	msgSendFailed          = "There was an error sending the email. Try again later!"
	msgTooManyRequests     = "Too many requests, please try again later"
	msgNoUserWithEmail     = "There is no user with that email address."
	msgWrongPassword       = "Your current password is wrong."
	msgNewPasswordRequired = "Please provide a new password"
	msgSameEmail           = "New email must be different from your current email"
	msgAlreadyActive       = "This account is already active."
)

// TokenTTLs sets how long each single-use token stays redeemable.
type TokenTTLs struct {
	PasswordReset time.Duration
	EmailChange   time.Duration
	Reactivation  time.Duration
}

// secretFlow is the request-then-confirm lifecycle shared by password
// reset, email change and reactivation. Flows differ only in the token
// purpose, its lifetime and the message that carries the link.
type secretFlow struct {
	purpose domain.TokenPurpose
	ttl     time.Duration
	message func(user *domain.User, to string, issue auth.SecretIssue) notify.Message
}

// AccountService runs the account lifecycle: token flows, password and
// email changes, deactivation and deletion.
type AccountService struct {
	store    repository.Store
	sessions *AuthService
	hasher   *auth.PasswordHasher
	notifier *NotificationService
	limiter  RequestLimiter
	events   events.Dispatcher
	logger   *zap.Logger
	now      func() time.Time

	reset        secretFlow
	emailChange  secretFlow
	reactivation secretFlow
}

// AccountDependencies encapsulates collaborators for the account service.
type AccountDependencies struct {
	Store    repository.Store
	Sessions *AuthService
	Hasher   *auth.PasswordHasher
	Notifier *NotificationService
	Limiter  RequestLimiter
	Events   events.Dispatcher
	Logger   *zap.Logger
	TTLs     TokenTTLs
}

// NewAccountService builds the service.
func NewAccountService(deps AccountDependencies) *AccountService {
	dispatcher := deps.Events
	if dispatcher == nil {
		dispatcher = events.Nop{}
	}
	links := deps.Notifier.Links()

	return &AccountService{
		store:    deps.Store,
		sessions: deps.Sessions,
		hasher:   deps.Hasher,
		notifier: deps.Notifier,
		limiter:  deps.Limiter,
		events:   dispatcher,
		logger:   deps.Logger,
		now:      time.Now,
		reset: secretFlow{
			purpose: domain.PurposePasswordReset,
			ttl:     deps.TTLs.PasswordReset,
			message: func(u *domain.User, to string, issue auth.SecretIssue) notify.Message {
				return notify.PasswordResetMessage{
					To:        to,
					FirstName: u.FirstName,
					ResetURL:  links.ResetPassword(issue.Cleartext),
					ExpiresAt: issue.ExpiresAt,
				}
			},
		},
		emailChange: secretFlow{
			purpose: domain.PurposeEmailChange,
			ttl:     deps.TTLs.EmailChange,
			message: func(u *domain.User, to string, issue auth.SecretIssue) notify.Message {
				return notify.EmailChangeMessage{
					To:         to,
					FirstName:  u.FirstName,
					ConfirmURL: links.ConfirmEmail(issue.Cleartext),
					ExpiresAt:  issue.ExpiresAt,
				}
			},
		},
		reactivation: secretFlow{
			purpose: domain.PurposeReactivation,
			ttl:     deps.TTLs.Reactivation,
			message: func(u *domain.User, to string, issue auth.SecretIssue) notify.Message {
				return notify.ReactivationMessage{
					To:            to,
					FirstName:     u.FirstName,
					ReactivateURL: links.Reactivate(issue.Cleartext),
					ExpiresAt:     issue.ExpiresAt,
				}
			},
		},
	}
}

// request issues a token for user, stores its hash and mails the link to
// `to`. Any failure clears the token again so no dead link is outstanding.
func (s *AccountService) request(ctx context.Context, flow secretFlow, user *domain.User, to, pendingEmail string) error {
	if s.limiter != nil && !s.limiter.Allow(ctx, string(flow.purpose)+":"+to) {
		return apperrors.NewTooManyRequests(msgTooManyRequests)
	}

	issue, err := auth.IssueSecret(s.now(), flow.ttl)
	if err != nil {
		return apperrors.NewInternalError(err)
	}

	users := s.store.Users()
	if err := users.SetSecretToken(ctx, user.ID, flow.purpose, issue.Stored(), pendingEmail); err != nil {
		s.clearToken(ctx, flow, user)
		return apperrors.NewInternal(msgSendFailed, err)
	}
	if err := s.notifier.Send(ctx, flow.message(user, to, issue)); err != nil {
		s.clearToken(ctx, flow, user)
		return apperrors.NewInternal(msgSendFailed, err)
	}

	s.publish(ctx, events.New(events.EventTokenRequested, user.PublicID.String(), map[string]string{
		"purpose": string(flow.purpose),
	}))
	return nil
}

func (s *AccountService) clearToken(ctx context.Context, flow secretFlow, user *domain.User) {
	if err := s.store.Users().ClearSecretToken(context.WithoutCancel(ctx), user.ID, flow.purpose); err != nil && !repository.IsNotFound(err) {
		s.logger.Error("could not clear secret token",
			zap.String("purpose", string(flow.purpose)),
			zap.String("user_id", user.PublicID.String()),
			zap.Error(err),
		)
	}
}

// confirm redeems cleartext against user's outstanding token and applies
// mutate in the same transaction. Wrong, expired and already used tokens
// all produce the same error.
func (s *AccountService) confirm(ctx context.Context, flow secretFlow, user *domain.User, cleartext string, mutate func(tx repository.Store) error) error {
	if auth.VerifySecret(cleartext, user.Token(flow.purpose), s.now()) != auth.SecretValid {
		return apperrors.NewValidationError(msgTokenInvalid, nil)
	}

	hash := auth.HashSecret(cleartext)
	err := s.store.WithTx(ctx, func(tx repository.Store) error {
		consumed, err := tx.Users().ConsumeSecretToken(ctx, user.ID, flow.purpose, hash)
		if err != nil {
			return err
		}
		if !consumed {
			return apperrors.NewValidationError(msgTokenInvalid, nil)
		}
		return mutate(tx)
	})
	if err != nil {
		return storeError(err)
	}
	return nil
}

// userBySecret loads the account an anonymous token belongs to.
func (s *AccountService) userBySecret(ctx context.Context, flow secretFlow, cleartext string) (*domain.User, error) {
	if blank(cleartext) {
		return nil, apperrors.NewValidationError(msgTokenInvalid, nil)
	}
	user, err := s.store.Users().GetBySecretHash(ctx, flow.purpose, auth.HashSecret(cleartext))
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, apperrors.NewValidationError(msgTokenInvalid, nil)
		}
		return nil, apperrors.NewInternalError(err)
	}
	return user, nil
}

func (s *AccountService) userByEmail(ctx context.Context, email string) (*domain.User, error) {
	if err := (dto.EmailRequest{Email: email}).Validate(); err != nil {
		return nil, err
	}
	user, err := s.store.Users().GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, apperrors.NewDomainError("NOT_FOUND", msgNoUserWithEmail, http.StatusNotFound, nil)
		}
		return nil, apperrors.NewInternalError(err)
	}
	return user, nil
}

// RequestPasswordReset mails a reset link to a registered address.
func (s *AccountService) RequestPasswordReset(ctx context.Context, email string) error {
	user, err := s.userByEmail(ctx, email)
	if err != nil {
		return err
	}
	return s.request(ctx, s.reset, user, user.Email, "")
}

// ResetPassword redeems a reset link and signs the user in. Deactivated
// accounts get their new password and a 403.
func (s *AccountService) ResetPassword(ctx context.Context, token string, req dto.ResetPasswordRequest) (*AuthResult, error) {
	user, err := s.userBySecret(ctx, s.reset, token)
	if err != nil {
		return nil, err
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if req.Password != req.PasswordConfirm {
		return nil, apperrors.NewValidationError(msgPasswordMismatch, nil)
	}

	hash, changedAt, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	err = s.confirm(ctx, s.reset, user, token, func(tx repository.Store) error {
		return tx.Users().UpdatePassword(ctx, user.ID, hash, changedAt)
	})
	if err != nil {
		return nil, err
	}
	user.PasswordHash = hash
	user.PasswordChangedAt = &changedAt

	s.publish(ctx, events.New(events.EventPasswordReset, user.PublicID.String(), nil))
	s.notifier.Dispatch(ctx, notify.PasswordChangedMessage{To: user.Email, FirstName: user.FirstName})
	// The new password stands, but only reactivation signs a deactivated
	// account back in.
	if !user.IsActive {
		return nil, apperrors.NewForbidden(msgDeactivated)
	}
	return s.sessions.IssueSession(user)
}

// UpdatePassword changes a known password and re-issues the session so the
// caller stays signed in while older sessions go stale.
func (s *AccountService) UpdatePassword(ctx context.Context, userID int64, req dto.UpdatePasswordRequest) (*AuthResult, error) {
	user, err := s.store.Users().GetByID(ctx, userID)
	if err != nil {
		return nil, lookupError(err, "user")
	}
	if !s.hasher.Compare(user.PasswordHash, req.PasswordCurrent) {
		return nil, apperrors.NewUnauthorized(msgWrongPassword)
	}
	if req.Password == "" {
		return nil, apperrors.NewValidationError(msgNewPasswordRequired, nil)
	}
	if err := (dto.ResetPasswordRequest{Password: req.Password, PasswordConfirm: req.PasswordConfirm}).Validate(); err != nil {
		return nil, err
	}
	if req.Password != req.PasswordConfirm {
		return nil, apperrors.NewValidationError(msgPasswordMismatch, nil)
	}

	hash, changedAt, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	if err := s.store.Users().UpdatePassword(ctx, user.ID, hash, changedAt); err != nil {
		return nil, storeError(err)
	}
	user.PasswordHash = hash
	user.PasswordChangedAt = &changedAt

	s.publish(ctx, events.New(events.EventPasswordChanged, user.PublicID.String(), nil))
	s.notifier.Dispatch(ctx, notify.PasswordChangedMessage{To: user.Email, FirstName: user.FirstName})
	return s.sessions.IssueSession(user)
}

// RequestEmailChange mails a confirmation link to the new address.
func (s *AccountService) RequestEmailChange(ctx context.Context, userID int64, newEmail string) error {
	if err := (dto.EmailRequest{Email: newEmail}).Validate(); err != nil {
		return err
	}
	newEmail = normalizeEmail(newEmail)

	user, err := s.store.Users().GetByID(ctx, userID)
	if err != nil {
		return lookupError(err, "user")
	}
	if strings.EqualFold(user.Email, newEmail) {
		return apperrors.NewValidationError(msgSameEmail, nil)
	}
	if _, err := s.store.Users().GetByEmail(ctx, newEmail); err == nil {
		return apperrors.NewDuplicateField("email", newEmail)
	} else if !repository.IsNotFound(err) {
		return apperrors.NewInternalError(err)
	}

	return s.request(ctx, s.emailChange, user, newEmail, newEmail)
}

// ConfirmEmailChange swaps in the pending address and tells both the old
// and the new inbox.
func (s *AccountService) ConfirmEmailChange(ctx context.Context, userID int64, token string) (*domain.User, error) {
	user, err := s.store.Users().GetByID(ctx, userID)
	if err != nil {
		return nil, lookupError(err, "user")
	}
	pending := user.PendingEmail
	if pending == "" {
		return nil, apperrors.NewValidationError(msgTokenInvalid, nil)
	}

	err = s.confirm(ctx, s.emailChange, user, token, func(tx repository.Store) error {
		return tx.Users().UpdateEmail(ctx, user.ID, pending)
	})
	if err != nil {
		return nil, err
	}

	oldEmail := user.Email
	user.Email = pending
	user.SetToken(domain.PurposeEmailChange, nil)

	s.publish(ctx, events.New(events.EventEmailChanged, user.PublicID.String(), nil))
	for _, to := range []string{oldEmail, pending} {
		s.notifier.Dispatch(ctx, notify.EmailChangedMessage{
			To:        to,
			FirstName: user.FirstName,
			OldEmail:  oldEmail,
			NewEmail:  pending,
		})
	}
	return user.Sanitized(), nil
}

// RequestReactivation mails a reactivation link to a deactivated account.
func (s *AccountService) RequestReactivation(ctx context.Context, email string) error {
	user, err := s.userByEmail(ctx, email)
	if err != nil {
		return err
	}
	if user.IsActive {
		return apperrors.NewValidationError(msgAlreadyActive, nil)
	}
	return s.request(ctx, s.reactivation, user, user.Email, "")
}

// Reactivate redeems a reactivation link and signs the user in.
func (s *AccountService) Reactivate(ctx context.Context, token string) (*AuthResult, error) {
	user, err := s.userBySecret(ctx, s.reactivation, token)
	if err != nil {
		return nil, err
	}
	err = s.confirm(ctx, s.reactivation, user, token, func(tx repository.Store) error {
		return tx.Users().SetActive(ctx, user.ID, true)
	})
	if err != nil {
		return nil, err
	}
	user.IsActive = true

	s.publish(ctx, events.New(events.EventUserReactivated, user.PublicID.String(), nil))
	return s.sessions.IssueSession(user)
}

// DeactivateProfile soft deletes the account.
func (s *AccountService) DeactivateProfile(ctx context.Context, userID int64) error {
	user, err := s.store.Users().GetByID(ctx, userID)
	if err != nil {
		return lookupError(err, "user")
	}
	if err := s.store.Users().SetActive(ctx, userID, false); err != nil {
		return storeError(err)
	}
	s.publish(ctx, events.New(events.EventUserDeactivated, user.PublicID.String(), nil))
	return nil
}

// DeleteProfile removes the account and, through the store, everything
// that belongs to it.
func (s *AccountService) DeleteProfile(ctx context.Context, userID int64) error {
	user, err := s.store.Users().GetByID(ctx, userID)
	if err != nil {
		return lookupError(err, "user")
	}
	if err := s.store.Users().Delete(ctx, userID); err != nil {
		return storeError(err)
	}
	s.publish(ctx, events.New(events.EventUserDeleted, user.PublicID.String(), nil))
	return nil
}

func (s *AccountService) publish(ctx context.Context, event events.Event) {
	if err := s.events.Publish(ctx, event); err != nil {
		s.logger.Warn("event handler failed", zap.String("event", string(event.Type)), zap.Error(err))
	}
}
