// Package session holds the authentication state of the client and persists
// it between invocations.
package session

import "fmt"

// Kind discriminates the session states.
type Kind int

const (
	// KindLoading is the state before persisted credentials have been checked.
	KindLoading Kind = iota
	// KindLoggedOut means there are no usable credentials.
	KindLoggedOut
	// KindUnavailable means the backend could not be reached to validate
	// stored credentials. The credentials are kept.
	KindUnavailable
	// KindAuthenticated carries a user with tokens.
	KindAuthenticated
)

func (k Kind) String() string {
	switch k {
	case KindLoading:
		return "loading"
	case KindLoggedOut:
		return "logged out"
	case KindUnavailable:
		return "unavailable"
	case KindAuthenticated:
		return "authenticated"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// User is the signed-in account as the backend returns it. The same JSON
// shape is what gets persisted.
type User struct {
	ID           string `json:"_id"`
	Name         string `json:"name,omitempty"`
	Email        string `json:"email"`
	ProfileURL   string `json:"profileURL,omitempty"`
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// State is a session value. Build one with Loading, LoggedOut, Unavailable
// or Authenticated.
type State struct {
	kind  Kind
	user  User
	cause error
}

// Loading returns the initial state.
func Loading() State { return State{kind: KindLoading} }

// LoggedOut returns the logged-out state.
func LoggedOut() State { return State{kind: KindLoggedOut} }

// Unavailable returns the unreachable-backend state. cause may be nil.
func Unavailable(cause error) State { return State{kind: KindUnavailable, cause: cause} }

// Authenticated returns a signed-in state for u.
func Authenticated(u User) State { return State{kind: KindAuthenticated, user: u} }

// Kind reports which state s is.
func (s State) Kind() Kind { return s.kind }

// IsAuthenticated reports whether s carries a user.
func (s State) IsAuthenticated() bool { return s.kind == KindAuthenticated }

// User returns the user of an authenticated state.
func (s State) User() (User, bool) {
	if s.kind != KindAuthenticated {
		return User{}, false
	}
	return s.user, true
}

// Cause returns why the session is unavailable, if known.
func (s State) Cause() error { return s.cause }

func (s State) String() string {
	if s.kind == KindAuthenticated {
		return fmt.Sprintf("authenticated as %s", s.user.Email)
	}
	if s.kind == KindUnavailable && s.cause != nil {
		return fmt.Sprintf("unavailable: %v", s.cause)
	}
	return s.kind.String()
}
