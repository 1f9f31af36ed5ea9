package memstore

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/inkmarket-service/internal/domain"
	"github.com/spec-kit/inkmarket-service/internal/repository"
)

type userRepo struct {
	s *Store
}

func (r *userRepo) Create(_ context.Context, user *domain.User) error {
	r.s.lock()
	defer r.s.unlock()
	if err := r.s.fail(OpUserCreate); err != nil {
		return err
	}
	if err := r.checkUnique(0, user.Email, user.DisplayName); err != nil {
		return err
	}
	if user.Email == "" {
		return &repository.ValidationError{Messages: []string{"email is required"}}
	}

	st := r.s.state
	st.nextID++
	now := time.Now().UTC()
	user.ID = st.nextID
	if user.PublicID == uuid.Nil {
		user.PublicID = uuid.New()
	}
	user.CreatedAt = now
	user.UpdatedAt = now
	st.users[user.ID] = copyUser(user)
	return nil
}

func (r *userRepo) GetByID(_ context.Context, id int64) (*domain.User, error) {
	r.s.lock()
	defer r.s.unlock()
	return r.find(func(u *domain.User) bool { return u.ID == id })
}

func (r *userRepo) GetByPublicID(_ context.Context, publicID uuid.UUID) (*domain.User, error) {
	r.s.lock()
	defer r.s.unlock()
	return r.find(func(u *domain.User) bool { return u.PublicID == publicID })
}

func (r *userRepo) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	r.s.lock()
	defer r.s.unlock()
	return r.find(func(u *domain.User) bool { return u.Email == email })
}

func (r *userRepo) GetBySecretHash(_ context.Context, purpose domain.TokenPurpose, hash string) (*domain.User, error) {
	r.s.lock()
	defer r.s.unlock()
	if hash == "" {
		return nil, pgx.ErrNoRows
	}
	return r.find(func(u *domain.User) bool {
		tok := u.Token(purpose)
		return tok != nil && tok.Hash == hash
	})
}

func (r *userRepo) List(_ context.Context, limit, offset int) ([]*domain.User, error) {
	r.s.lock()
	defer r.s.unlock()
	if limit <= 0 {
		limit = 50
	}
	ids := make([]int64, 0, len(r.s.state.users))
	for id := range r.s.state.users {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var users []*domain.User
	for i := offset; i < len(ids) && len(users) < limit; i++ {
		if i < 0 {
			continue
		}
		users = append(users, copyUser(r.s.state.users[ids[i]]))
	}
	return users, nil
}

func (r *userRepo) UpdateProfile(_ context.Context, user *domain.User) error {
	return r.mutate(user.ID, func(u *domain.User) error {
		if err := r.checkUnique(u.ID, "", user.DisplayName); err != nil {
			return err
		}
		u.FirstName = user.FirstName
		u.LastName = user.LastName
		u.DisplayName = user.DisplayName
		user.UpdatedAt = time.Now().UTC()
		return nil
	})
}

func (r *userRepo) UpdatePassword(_ context.Context, id int64, hash string, changedAt time.Time) error {
	return r.mutate(id, func(u *domain.User) error {
		u.PasswordHash = hash
		u.PasswordChangedAt = &changedAt
		u.PasswordReset = nil
		return nil
	})
}

func (r *userRepo) UpdateEmail(_ context.Context, id int64, email string) error {
	return r.mutate(id, func(u *domain.User) error {
		if err := r.checkUnique(id, email, ""); err != nil {
			return err
		}
		u.Email = email
		return nil
	})
}

func (r *userRepo) SetActive(_ context.Context, id int64, active bool) error {
	return r.mutate(id, func(u *domain.User) error {
		u.IsActive = active
		return nil
	})
}

func (r *userRepo) SetSecretToken(_ context.Context, id int64, purpose domain.TokenPurpose, token *domain.SecretToken, pendingEmail string) error {
	if err := checkPurpose(purpose); err != nil {
		return err
	}
	return r.mutate(id, func(u *domain.User) error {
		if err := r.s.fail(OpUserSetToken); err != nil && token != nil {
			return err
		}
		var stored *domain.SecretToken
		if token != nil {
			cp := *token
			stored = &cp
		}
		u.SetToken(purpose, stored)
		if purpose == domain.PurposeEmailChange && token != nil {
			u.PendingEmail = pendingEmail
		}
		return nil
	})
}

func (r *userRepo) ConsumeSecretToken(_ context.Context, id int64, purpose domain.TokenPurpose, hash string) (bool, error) {
	if err := checkPurpose(purpose); err != nil {
		return false, err
	}
	consumed := false
	err := r.mutate(id, func(u *domain.User) error {
		tok := u.Token(purpose)
		if tok == nil || tok.Hash != hash || !tok.ExpiresAt.After(time.Now()) {
			return nil
		}
		u.SetToken(purpose, nil)
		consumed = true
		return nil
	})
	if err != nil && err != pgx.ErrNoRows {
		return false, err
	}
	return consumed, nil
}

func (r *userRepo) ClearSecretToken(_ context.Context, id int64, purpose domain.TokenPurpose) error {
	if err := checkPurpose(purpose); err != nil {
		return err
	}
	return r.mutate(id, func(u *domain.User) error {
		u.SetToken(purpose, nil)
		return nil
	})
}

// Delete removes the user and cascades to dependent rows.
func (r *userRepo) Delete(_ context.Context, id int64) error {
	r.s.lock()
	defer r.s.unlock()
	if err := r.s.fail(OpUserDelete); err != nil {
		return err
	}
	st := r.s.state
	if _, ok := st.users[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(st.users, id)
	delete(st.preferences, id)
	delete(st.agreements, id)
	delete(st.artists, id)
	return nil
}

func (r *userRepo) find(match func(*domain.User) bool) (*domain.User, error) {
	for _, u := range r.s.state.users {
		if match(u) {
			return copyUser(u), nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *userRepo) mutate(id int64, fn func(*domain.User) error) error {
	r.s.lock()
	defer r.s.unlock()
	if err := r.s.fail(OpUserUpdate); err != nil {
		return err
	}
	u, ok := r.s.state.users[id]
	if !ok {
		return pgx.ErrNoRows
	}
	updated := copyUser(u)
	if err := fn(updated); err != nil {
		return err
	}
	updated.UpdatedAt = time.Now().UTC()
	r.s.state.users[id] = updated
	return nil
}

func (r *userRepo) checkUnique(selfID int64, email, displayName string) error {
	for id, u := range r.s.state.users {
		if id == selfID {
			continue
		}
		if email != "" && normalize(u.Email) == normalize(email) {
			return &repository.DuplicateError{Field: "email", Value: email}
		}
		if displayName != "" && normalize(u.DisplayName) == normalize(displayName) {
			return &repository.DuplicateError{Field: "displayName", Value: displayName}
		}
	}
	return nil
}

func checkPurpose(purpose domain.TokenPurpose) error {
	switch purpose {
	case domain.PurposePasswordReset, domain.PurposeEmailChange, domain.PurposeReactivation:
		return nil
	}
	return fmt.Errorf("unknown token purpose %q", purpose)
}

type preferencesRepo struct {
	s *Store
}

func (r *preferencesRepo) Create(_ context.Context, prefs *domain.EmailPreferences) error {
	r.s.lock()
	defer r.s.unlock()
	if err := r.s.fail(OpPreferencesCreate); err != nil {
		return err
	}
	if _, ok := r.s.state.users[prefs.UserID]; !ok {
		return &repository.ValidationError{Messages: []string{"user_id references a missing user"}}
	}
	if _, exists := r.s.state.preferences[prefs.UserID]; exists {
		return &repository.DuplicateError{Field: "user_id", Value: fmt.Sprint(prefs.UserID)}
	}
	cp := *prefs
	r.s.state.preferences[prefs.UserID] = &cp
	return nil
}

func (r *preferencesRepo) GetByUserID(_ context.Context, userID int64) (*domain.EmailPreferences, error) {
	r.s.lock()
	defer r.s.unlock()
	p, ok := r.s.state.preferences[userID]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *p
	return &cp, nil
}

type agreementRepo struct {
	s *Store
}

func (r *agreementRepo) Create(_ context.Context, agreement *domain.TOSAgreement) error {
	r.s.lock()
	defer r.s.unlock()
	if err := r.s.fail(OpAgreementCreate); err != nil {
		return err
	}
	if _, ok := r.s.state.users[agreement.UserID]; !ok {
		return &repository.ValidationError{Messages: []string{"user_id references a missing user"}}
	}
	cp := *agreement
	r.s.state.agreements[agreement.UserID] = append(r.s.state.agreements[agreement.UserID], &cp)
	return nil
}

func (r *agreementRepo) ListByUserID(_ context.Context, userID int64) ([]*domain.TOSAgreement, error) {
	r.s.lock()
	defer r.s.unlock()
	var out []*domain.TOSAgreement
	for _, a := range r.s.state.agreements[userID] {
		cp := *a
		out = append(out, &cp)
	}
	return out, nil
}

type artistRepo struct {
	s *Store
}

func (r *artistRepo) Create(_ context.Context, details *domain.ArtistDetails) error {
	r.s.lock()
	defer r.s.unlock()
	if err := r.s.fail(OpArtistCreate); err != nil {
		return err
	}
	if _, ok := r.s.state.users[details.UserID]; !ok {
		return &repository.ValidationError{Messages: []string{"user_id references a missing user"}}
	}
	r.s.state.artists[details.UserID] = copyArtist(details)
	return nil
}

func (r *artistRepo) GetByUserID(_ context.Context, userID int64) (*domain.ArtistDetails, error) {
	r.s.lock()
	defer r.s.unlock()
	d, ok := r.s.state.artists[userID]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return copyArtist(d), nil
}

func copyUser(u *domain.User) *domain.User {
	cp := *u
	if u.PasswordChangedAt != nil {
		t := *u.PasswordChangedAt
		cp.PasswordChangedAt = &t
	}
	for _, tok := range []**domain.SecretToken{&cp.PasswordReset, &cp.EmailChange, &cp.Reactivation} {
		if *tok != nil {
			c := **tok
			*tok = &c
		}
	}
	return &cp
}

func copyArtist(d *domain.ArtistDetails) *domain.ArtistDetails {
	cp := *d
	cp.StylesOffered = append([]string(nil), d.StylesOffered...)
	return &cp
}
