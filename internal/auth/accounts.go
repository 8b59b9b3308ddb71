package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"taskify/internal/api"
	"taskify/internal/session"
)

// Backend account endpoints.
const (
	LoginPath          = "/auth/login-user"
	LogoutPath         = "/auth/logout"
	RegisterPath       = "/auth/register-user"
	VerifyPath         = "/auth/verify/"
	MagicLinkPath      = "/auth/magiclink"
	ForgotPasswordPath = "/auth/forgot-password"
	UpdateUserPath     = "/auth/update-user"
	MePath             = "/auth/me"
	GooglePath         = "/auth/google"
)

// ErrNoUser is returned when a flow that should sign the user in gets a
// reply without credentials.
var ErrNoUser = errors.New("response has no user credentials")

// Registration is the sign-up form.
type Registration struct {
	Name     string
	Email    string
	Password string
	Photo    *api.FilePart
}

// ProfileUpdate changes one or more profile fields. Empty fields are left alone.
type ProfileUpdate struct {
	Email    string
	Password string
	Photo    *api.FilePart
}

// Accounts implements the account flows. Flows that return a user sign it in.
type Accounts struct {
	client Doer
	store  *session.Store
	log    *zap.Logger
}

// NewAccounts returns Accounts sending requests through client, which must
// handle authenticated requests for UpdateProfile and Me.
func NewAccounts(client Doer, store *session.Store, log *zap.Logger) *Accounts {
	if log == nil {
		log = zap.NewNop()
	}
	return &Accounts{client: client, store: store, log: log.Named("accounts")}
}

// envelope is the common {status, data, message} reply.
type envelope struct {
	Status  string       `json:"status"`
	Message string       `json:"message"`
	Data    session.User `json:"data"`
}

func (a *Accounts) call(ctx context.Context, req api.Request) (envelope, error) {
	resp, err := a.client.Do(ctx, req)
	if err != nil {
		return envelope{}, err
	}
	var env envelope
	if len(resp.Body) > 0 {
		if err := resp.Decode(&env); err != nil {
			return envelope{}, err
		}
	}
	if env.Status == "error" {
		msg := env.Message
		if msg == "" {
			msg = "request failed"
		}
		return envelope{}, &api.ValidationError{Status: resp.Status, Message: msg, RequestID: resp.RequestID}
	}
	return env, nil
}

// signIn stores u as the authenticated user.
func (a *Accounts) signIn(ctx context.Context, u session.User) (session.User, error) {
	if u.AccessToken == "" {
		return session.User{}, ErrNoUser
	}
	if err := a.store.Set(ctx, session.Authenticated(u)); err != nil {
		return session.User{}, err
	}
	a.log.Debug("signed in", zap.String("user_id", u.ID))
	return u, nil
}

// Login signs in with email and password.
func (a *Accounts) Login(ctx context.Context, email, password string) (session.User, error) {
	req, err := api.NewJSONRequest(http.MethodPost, LoginPath, map[string]string{"email": email, "password": password})
	if err != nil {
		return session.User{}, err
	}
	env, err := a.call(ctx, req)
	if err != nil {
		return session.User{}, err
	}
	return a.signIn(ctx, env.Data)
}

// Logout revokes the stored refresh token and logs the session out. When the
// backend refuses, the session is kept.
func (a *Accounts) Logout(ctx context.Context) error {
	u, err := a.store.StoredUser(ctx)
	if err != nil {
		return err
	}
	req, err := api.NewJSONRequest(http.MethodPost, LogoutPath, map[string]string{"refreshToken": u.RefreshToken})
	if err != nil {
		return err
	}
	if _, err := a.call(ctx, req); err != nil {
		return err
	}
	return a.Forget(ctx)
}

// Forget logs the session out locally without contacting the backend.
func (a *Accounts) Forget(ctx context.Context) error {
	return a.store.Set(ctx, session.LoggedOut())
}

// Register creates an account. The backend emails a verification link built
// from emailRedirect.
func (a *Accounts) Register(ctx context.Context, reg Registration, emailRedirect string) error {
	fields := map[string]string{
		"name":     reg.Name,
		"email":    reg.Email,
		"password": reg.Password,
	}
	var files []api.FilePart
	if reg.Photo != nil {
		files = append(files, *reg.Photo)
	}
	req, err := api.NewMultipartRequest(http.MethodPost, RegisterPath, fields, files...)
	if err != nil {
		return err
	}
	req.Query = redirectQuery(emailRedirect)
	_, err = a.call(ctx, req)
	return err
}

// VerifyEmail confirms an address with the emailed token and signs in.
func (a *Accounts) VerifyEmail(ctx context.Context, token string) (session.User, error) {
	env, err := a.call(ctx, api.Request{Method: http.MethodGet, Path: VerifyPath + url.PathEscape(token)})
	if err != nil {
		return session.User{}, err
	}
	return a.signIn(ctx, env.Data)
}

// RequestMagicLink emails a one-time sign-in link built from emailRedirect.
func (a *Accounts) RequestMagicLink(ctx context.Context, email, emailRedirect string) error {
	req, err := api.NewJSONRequest(http.MethodPost, MagicLinkPath, map[string]string{"email": email})
	if err != nil {
		return err
	}
	req.Query = redirectQuery(emailRedirect)
	_, err = a.call(ctx, req)
	return err
}

// ConsumeMagicLink signs in with a magic link token.
func (a *Accounts) ConsumeMagicLink(ctx context.Context, token string) (session.User, error) {
	env, err := a.call(ctx, api.Request{Method: http.MethodGet, Path: MagicLinkPath + "/" + url.PathEscape(token)})
	if err != nil {
		return session.User{}, err
	}
	return a.signIn(ctx, env.Data)
}

// ForgotPassword emails a password reset link built from emailRedirect.
func (a *Accounts) ForgotPassword(ctx context.Context, email, emailRedirect string) error {
	req, err := api.NewJSONRequest(http.MethodPost, ForgotPasswordPath, map[string]string{"email": email})
	if err != nil {
		return err
	}
	req.Query = redirectQuery(emailRedirect)
	_, err = a.call(ctx, req)
	return err
}

// ResetPassword sets a new password with the emailed token and signs in.
func (a *Accounts) ResetPassword(ctx context.Context, token, password string) (session.User, error) {
	req, err := api.NewJSONRequest(http.MethodPost, ForgotPasswordPath+"/"+url.PathEscape(token), map[string]string{"password": password})
	if err != nil {
		return session.User{}, err
	}
	env, err := a.call(ctx, req)
	if err != nil {
		return session.User{}, err
	}
	return a.signIn(ctx, env.Data)
}

// GoogleURL is where the browser starts Google sign-in; the backend sends
// it back to redirect with the access token in the "a" query parameter.
func GoogleURL(baseURL, redirect string) string {
	return baseURL + GooglePath + "?" + url.Values{"redirect": {redirect}}.Encode()
}

// CompleteGoogle signs in with the tokens delivered by the Google redirect.
func (a *Accounts) CompleteGoogle(ctx context.Context, accessToken, refreshToken string) (session.User, error) {
	if accessToken == "" {
		return session.User{}, ErrNoUser
	}
	env, err := a.call(ctx, api.Request{
		Method: http.MethodGet,
		Path:   MePath,
		Token:  &oauth2.Token{AccessToken: accessToken},
	})
	if err != nil {
		return session.User{}, err
	}
	u := env.Data
	if u.AccessToken == "" {
		u.AccessToken = accessToken
	}
	if u.RefreshToken == "" {
		u.RefreshToken = refreshToken
	}
	return a.signIn(ctx, u)
}

// Me fetches the signed-in user and merges it into the session.
func (a *Accounts) Me(ctx context.Context) (session.User, error) {
	env, err := a.call(ctx, api.Request{Method: http.MethodGet, Path: MePath, Auth: true})
	if err != nil {
		return session.User{}, err
	}
	return a.merge(ctx, env.Data)
}

// UpdateProfile changes email, password or photo and merges the reply into
// the session.
func (a *Accounts) UpdateProfile(ctx context.Context, upd ProfileUpdate) (session.User, error) {
	if upd.Email == "" && upd.Password == "" && upd.Photo == nil {
		return session.User{}, errors.New("nothing to update")
	}
	var files []api.FilePart
	if upd.Photo != nil {
		files = append(files, *upd.Photo)
	}
	req, err := api.NewMultipartRequest(http.MethodPut, UpdateUserPath,
		map[string]string{"email": upd.Email, "password": upd.Password}, files...)
	if err != nil {
		return session.User{}, err
	}
	req.Auth = true
	env, err := a.call(ctx, req)
	if err != nil {
		return session.User{}, err
	}
	return a.merge(ctx, env.Data)
}

// merge overlays the non-empty fields of patch on the current user.
func (a *Accounts) merge(ctx context.Context, patch session.User) (session.User, error) {
	u, ok := a.store.Current().User()
	if !ok {
		return session.User{}, api.ErrNotLoggedIn
	}
	for _, f := range []struct{ dst, src *string }{
		{&u.ID, &patch.ID},
		{&u.Name, &patch.Name},
		{&u.Email, &patch.Email},
		{&u.ProfileURL, &patch.ProfileURL},
		{&u.AccessToken, &patch.AccessToken},
		{&u.RefreshToken, &patch.RefreshToken},
	} {
		if *f.src != "" {
			*f.dst = *f.src
		}
	}
	if err := a.store.Set(ctx, session.Authenticated(u)); err != nil {
		return session.User{}, fmt.Errorf("save profile: %w", err)
	}
	return u, nil
}

func redirectQuery(emailRedirect string) url.Values {
	if emailRedirect == "" {
		return nil
	}
	return url.Values{"emailredirect": {emailRedirect}}
}
