package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"taskify/internal/storage"
)

// Persisted keys.
const (
	// UserKey holds the serialized User or LogoutMarker.
	UserKey = "taskify-user"
	// TourKey is present once the onboarding tour has been seen.
	TourKey = "taskify-has-seen-tour"
	// LogoutMarker is stored under UserKey after an explicit logout.
	LogoutMarker = "logout"
)

var (
	// ErrNoCredentials is returned when nothing usable is persisted.
	ErrNoCredentials = errors.New("no stored credentials")

	// ErrMalformed is returned when the persisted user cannot be decoded.
	ErrMalformed = errors.New("stored session is malformed")
)

// Refresher validates stored credentials against the backend and leaves the
// outcome in the Store.
type Refresher interface {
	Refresh(ctx context.Context) (State, error)
}

// Store is the single owner of the session state.
type Store struct {
	kv  storage.KV
	log *zap.Logger

	mu    sync.RWMutex
	state State
}

// NewStore returns a Store in the Loading state.
func NewStore(kv storage.KV, log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{kv: kv, log: log.Named("session"), state: Loading()}
}

// Init resolves the startup state. Without stored credentials the session
// becomes LoggedOut and r is not called. Otherwise the session stays Loading
// while r validates the credentials.
func (s *Store) Init(ctx context.Context, r Refresher) (State, error) {
	_, err := s.StoredUser(ctx)
	switch {
	case errors.Is(err, ErrNoCredentials):
		s.mu.Lock()
		s.state = LoggedOut()
		s.mu.Unlock()
		return LoggedOut(), nil
	case err != nil:
		if errors.Is(err, ErrMalformed) {
			s.log.Warn("stored session is unreadable", zap.Error(err))
		}
		st := Unavailable(err)
		return st, s.Set(ctx, st)
	}

	s.mu.Lock()
	s.state = Loading()
	s.mu.Unlock()

	s.log.Debug("validating stored credentials")
	return r.Refresh(ctx)
}

// Current returns the current state.
func (s *Store) Current() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Set replaces the state. Authenticated and LoggedOut are persisted;
// entering LoggedOut also forgets the onboarding tour. The in-memory state
// is replaced even when persisting fails.
func (s *Store) Set(ctx context.Context, st State) error {
	s.mu.Lock()
	prev := s.state
	s.state = st
	s.mu.Unlock()

	if prev.Kind() != st.Kind() {
		s.log.Debug("session transition", zap.Stringer("from", prev.Kind()), zap.Stringer("to", st.Kind()))
	}

	switch st.Kind() {
	case KindAuthenticated:
		data, err := json.Marshal(st.user)
		if err != nil {
			return fmt.Errorf("encode session: %w", err)
		}
		if err := s.kv.Set(ctx, UserKey, string(data)); err != nil {
			return fmt.Errorf("save session: %w", err)
		}
	case KindLoggedOut:
		if err := s.kv.Set(ctx, UserKey, LogoutMarker); err != nil {
			return fmt.Errorf("save session: %w", err)
		}
		if err := s.kv.Delete(ctx, TourKey); err != nil {
			return fmt.Errorf("clear tour flag: %w", err)
		}
	}
	return nil
}

// StoredUser decodes the persisted user. It returns ErrNoCredentials when
// the key is absent, holds the logout marker, or has no refresh token.
func (s *Store) StoredUser(ctx context.Context) (User, error) {
	raw, err := s.kv.Get(ctx, UserKey)
	if errors.Is(err, storage.ErrNotFound) {
		return User{}, ErrNoCredentials
	}
	if err != nil {
		return User{}, fmt.Errorf("read session: %w", err)
	}
	if raw == "" || raw == LogoutMarker {
		return User{}, ErrNoCredentials
	}

	var u User
	if err := json.Unmarshal([]byte(raw), &u); err != nil {
		return User{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if u.RefreshToken == "" {
		return User{}, ErrNoCredentials
	}
	return u, nil
}

// TourSeen reports whether the onboarding tour has been completed.
func (s *Store) TourSeen(ctx context.Context) (bool, error) {
	_, err := s.kv.Get(ctx, TourKey)
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read tour flag: %w", err)
	}
	return true, nil
}

// MarkTourSeen records that the onboarding tour has been completed.
func (s *Store) MarkTourSeen(ctx context.Context) error {
	if err := s.kv.Set(ctx, TourKey, "true"); err != nil {
		return fmt.Errorf("save tour flag: %w", err)
	}
	return nil
}
