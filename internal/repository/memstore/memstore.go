// Package memstore is an in-process credential store. It backs the service
// when no Postgres DSN is configured and serves as the fake store in tests.
package memstore

import (
	"context"
	"strings"
	"sync"

	"github.com/spec-kit/inkmarket-service/internal/domain"
	"github.com/spec-kit/inkmarket-service/internal/repository"
)

// Operation names accepted by FailOn.
const (
	OpUserCreate        = "users.create"
	OpUserUpdate        = "users.update"
	OpUserSetToken      = "users.set_token"
	OpUserDelete        = "users.delete"
	OpPreferencesCreate = "preferences.create"
	OpAgreementCreate   = "agreements.create"
	OpArtistCreate      = "artists.create"
)

type state struct {
	nextID      int64
	users       map[int64]*domain.User
	preferences map[int64]*domain.EmailPreferences
	agreements  map[int64][]*domain.TOSAgreement
	artists     map[int64]*domain.ArtistDetails
}

func newState() *state {
	return &state{
		users:       make(map[int64]*domain.User),
		preferences: make(map[int64]*domain.EmailPreferences),
		agreements:  make(map[int64][]*domain.TOSAgreement),
		artists:     make(map[int64]*domain.ArtistDetails),
	}
}

func (s *state) clone() *state {
	c := newState()
	c.nextID = s.nextID
	for id, u := range s.users {
		c.users[id] = copyUser(u)
	}
	for id, p := range s.preferences {
		cp := *p
		c.preferences[id] = &cp
	}
	for id, list := range s.agreements {
		for _, a := range list {
			ca := *a
			c.agreements[id] = append(c.agreements[id], &ca)
		}
	}
	for id, d := range s.artists {
		c.artists[id] = copyArtist(d)
	}
	return c
}

// Store is a repository.Store kept in memory.
type Store struct {
	mu       *sync.Mutex
	state    *state
	inTx     bool
	failures map[string]error
}

// New returns an empty store.
func New() *Store {
	return &Store{
		mu:       &sync.Mutex{},
		state:    newState(),
		failures: make(map[string]error),
	}
}

var _ repository.Store = (*Store)(nil)

// FailOn makes every subsequent call of op return err. A nil err clears it.
func (s *Store) FailOn(op string, err error) {
	s.lock()
	defer s.unlock()
	if err == nil {
		delete(s.failures, op)
		return
	}
	s.failures[op] = err
}

// Counts reports how many rows of each kind exist.
func (s *Store) Counts() (users, preferences, agreements, artists int) {
	s.lock()
	defer s.unlock()
	for _, list := range s.state.agreements {
		agreements += len(list)
	}
	return len(s.state.users), len(s.state.preferences), agreements, len(s.state.artists)
}

func (s *Store) Users() repository.UserRepository {
	return &userRepo{s: s}
}

func (s *Store) Preferences() repository.PreferencesRepository {
	return &preferencesRepo{s: s}
}

func (s *Store) Agreements() repository.AgreementRepository {
	return &agreementRepo{s: s}
}

func (s *Store) Artists() repository.ArtistRepository {
	return &artistRepo{s: s}
}

// WithTx runs fn against a private copy of the data that replaces the
// committed state only when fn succeeds. Transactions are serialised.
func (s *Store) WithTx(ctx context.Context, fn func(tx repository.Store) error) error {
	if s.inTx {
		return fn(s)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &Store{
		mu:       s.mu,
		state:    s.state.clone(),
		inTx:     true,
		failures: s.failures,
	}
	if err := fn(tx); err != nil {
		return err
	}
	s.state = tx.state
	return nil
}

func (s *Store) lock() {
	if !s.inTx {
		s.mu.Lock()
	}
}

func (s *Store) unlock() {
	if !s.inTx {
		s.mu.Unlock()
	}
}

func (s *Store) fail(op string) error {
	return s.failures[op]
}

func normalize(v string) string {
	return strings.ToLower(strings.TrimSpace(v))
}
