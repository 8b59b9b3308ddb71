// Package auth keeps the session's credentials fresh and implements the
// account flows (password login, magic links, email verification, password
// reset, Google sign-in, profile updates).
package auth

import (
	"context"
	"errors"
	"net/http"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"

	"taskify/internal/api"
	"taskify/internal/session"
)

// RefreshPath is the token exchange endpoint.
const RefreshPath = "/auth/refresh-token"

// Doer sends a single backend request.
type Doer interface {
	Do(ctx context.Context, req api.Request) (*api.Response, error)
}

// Refresher exchanges the persisted refresh token for a new access token.
// Concurrent callers share one in-flight exchange.
type Refresher struct {
	client Doer
	store  *session.Store
	log    *zap.Logger
	group  singleflight.Group
}

var (
	_ oauth2.TokenSource = (*Refresher)(nil)
	_ api.Authenticator  = (*Refresher)(nil)
	_ session.Refresher  = (*Refresher)(nil)
)

// NewRefresher returns a Refresher. client must send public requests; it
// is never asked to authenticate.
func NewRefresher(client Doer, store *session.Store, log *zap.Logger) *Refresher {
	if log == nil {
		log = zap.NewNop()
	}
	return &Refresher{client: client, store: store, log: log.Named("refresh")}
}

// Refresh runs (or joins) a token exchange and returns the resulting state,
// which is also stored. The error reports a failure to persist the state.
func (r *Refresher) Refresh(ctx context.Context) (session.State, error) {
	// The exchange is shared, so one caller's cancellation must not fail the others.
	shared := context.WithoutCancel(ctx)
	v, err, joined := r.group.Do("refresh", func() (any, error) {
		return r.refresh(shared)
	})
	if joined {
		r.log.Debug("joined in-flight refresh")
	}
	return v.(session.State), err
}

func (r *Refresher) refresh(ctx context.Context) (session.State, error) {
	u, err := r.store.StoredUser(ctx)
	if errors.Is(err, session.ErrNoCredentials) {
		return r.set(ctx, session.LoggedOut())
	}
	if err != nil {
		return r.set(ctx, session.Unavailable(err))
	}

	req, err := api.NewJSONRequest(http.MethodPost, RefreshPath, map[string]string{"refreshToken": u.RefreshToken})
	if err != nil {
		return r.set(ctx, session.Unavailable(err))
	}
	resp, err := r.client.Do(ctx, req)

	var verr *api.ValidationError
	switch {
	case errors.As(err, &verr):
		r.log.Info("refresh token rejected", zap.Int("status", verr.Status), zap.String("message", verr.Message))
		return r.set(ctx, session.LoggedOut())
	case err != nil:
		r.log.Debug("refresh failed", zap.Error(err))
		return r.set(ctx, session.Unavailable(err))
	}

	var body struct {
		AccessToken string `json:"accessToken"`
	}
	if err := resp.Decode(&body); err != nil {
		return r.set(ctx, session.Unavailable(err))
	}
	if body.AccessToken == "" {
		return r.set(ctx, session.Unavailable(&api.NetworkError{Op: "refresh session", Err: errors.New("no access token in response")}))
	}

	u.AccessToken = body.AccessToken
	return r.set(ctx, session.Authenticated(u))
}

func (r *Refresher) set(ctx context.Context, st session.State) (session.State, error) {
	return st, r.store.Set(ctx, st)
}

// TokenContext returns the session's access token, refreshing first when it
// is a JWT that has already expired.
func (r *Refresher) TokenContext(ctx context.Context) (*oauth2.Token, error) {
	u, ok := r.store.Current().User()
	if !ok {
		return nil, stateError(r.store.Current(), api.ErrNotLoggedIn)
	}
	tok := tokenFor(u)
	if tok.Valid() {
		return tok, nil
	}

	r.log.Debug("access token expired, refreshing early", zap.Time("expiry", tok.Expiry))
	st, err := r.Refresh(ctx)
	if err != nil {
		r.log.Warn("persisting refreshed session failed", zap.Error(err))
	}
	if u, ok = st.User(); !ok {
		return nil, stateError(st, api.ErrSessionExpired)
	}
	return tokenFor(u), nil
}

// Token implements oauth2.TokenSource.
func (r *Refresher) Token() (*oauth2.Token, error) {
	return r.TokenContext(context.Background())
}

func tokenFor(u session.User) *oauth2.Token {
	tok := &oauth2.Token{AccessToken: u.AccessToken, TokenType: "Bearer", RefreshToken: u.RefreshToken}
	if exp, ok := u.AccessExpiry(); ok {
		tok.Expiry = exp
	}
	return tok
}

func stateError(st session.State, loggedOut error) error {
	if st.Kind() == session.KindUnavailable {
		return &api.NetworkError{Op: "refresh session", Err: st.Cause()}
	}
	return loggedOut
}
