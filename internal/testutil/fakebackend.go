package testutil

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"taskify/internal/service"
	"taskify/internal/session"
)

// Email is a message the fake backend "sent".
type Email struct {
	Kind  string // "verify", "magiclink" or "reset"
	To    string
	Token string
	Link  string
}

type fakeAccount struct {
	user     session.User
	password string
	verified bool
}

// FakeBackend is an in-process Taskify backend for tests.
type FakeBackend struct {
	*httptest.Server

	mu       sync.Mutex
	accounts map[string]*fakeAccount // email -> account
	access   map[string]string       // access token -> email
	refresh  map[string]string       // refresh token -> email
	links    map[string]Email        // token -> pending email link
	outbox   []Email
	tasks    []service.Task
	calls    map[string]int
	seq      int

	// RejectAccess answers 401 to every bearer, as if all access tokens expired.
	RejectAccess bool
	// RejectAccessOnce answers 401 to the next authenticated request only.
	RejectAccessOnce bool
	// RefreshStatus, when set, is returned by the refresh endpoint.
	RefreshStatus int
	// ListDelay holds listing responses for the given search term.
	ListDelay map[string]time.Duration
}

// NewFakeBackend starts a FakeBackend and stops it when the test ends.
func NewFakeBackend(t *testing.T) *FakeBackend {
	t.Helper()
	b := &FakeBackend{
		accounts:  make(map[string]*fakeAccount),
		access:    make(map[string]string),
		refresh:   make(map[string]string),
		links:     make(map[string]Email),
		calls:     make(map[string]int),
		ListDelay: make(map[string]time.Duration),
	}
	b.Server = httptest.NewServer(b.routes())
	t.Cleanup(b.Server.Close)
	return b
}

func (b *FakeBackend) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(b.count)

	r.Route("/auth", func(r chi.Router) {
		r.Post("/refresh-token", b.handleRefresh)
		r.Post("/login-user", b.handleLogin)
		r.Post("/logout", b.handleLogout)
		r.Post("/register-user", b.handleRegister)
		r.Get("/verify/{token}", b.handleConsume("verify"))
		r.Post("/magiclink", b.handleSendLink("magiclink"))
		r.Get("/magiclink/{token}", b.handleConsume("magiclink"))
		r.Post("/forgot-password", b.handleSendLink("reset"))
		r.Post("/forgot-password/{token}", b.handleReset)

		r.Group(func(r chi.Router) {
			r.Use(b.bearer)
			r.Get("/me", b.handleMe)
			r.Put("/update-user", b.handleUpdateUser)
		})
	})

	r.Route("/api/tasks", func(r chi.Router) {
		r.Use(b.bearer)
		r.Get("/", b.handleListTasks)
		r.Post("/", b.handleCreateTask)
		r.Put("/{id}", b.handleUpdateTask)
		r.Delete("/{id}", b.handleDeleteTask)
	})
	return r
}

func (b *FakeBackend) count(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		b.calls[r.Method+" "+r.URL.Path]++
		b.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

// Calls returns how often a route was hit, e.g. "POST /auth/refresh-token"
// or "PUT /api/tasks/t3".
func (b *FakeBackend) Calls(route string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls[route]
}

// AddUser creates a verified account and returns it with fresh tokens.
func (b *FakeBackend) AddUser(name, email, password string) session.User {
	b.mu.Lock()
	defer b.mu.Unlock()
	acc := &fakeAccount{
		user:     session.User{ID: b.nextID("u"), Name: name, Email: email},
		password: password,
		verified: true,
	}
	b.accounts[email] = acc
	return b.issueTokens(acc)
}

// RevokeAccess invalidates an access token.
func (b *FakeBackend) RevokeAccess(token string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.access, token)
}

// RevokeRefresh invalidates a refresh token.
func (b *FakeBackend) RevokeRefresh(token string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.refresh, token)
}

// Outbox returns the emails sent so far.
func (b *FakeBackend) Outbox() []Email {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Email(nil), b.outbox...)
}

// AddTask stores a task directly.
func (b *FakeBackend) AddTask(text string, date time.Time) service.Task {
	b.mu.Lock()
	defer b.mu.Unlock()
	task := service.Task{ID: b.nextID("t"), Text: text, Date: date.UTC()}
	b.tasks = append(b.tasks, task)
	return task
}

// Tasks returns the stored tasks in insertion order.
func (b *FakeBackend) Tasks() []service.Task {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]service.Task(nil), b.tasks...)
}

func (b *FakeBackend) nextID(prefix string) string {
	b.seq++
	return fmt.Sprintf("%s%d", prefix, b.seq)
}

func (b *FakeBackend) issueTokens(acc *fakeAccount) session.User {
	u := acc.user
	u.AccessToken = b.nextID("access-")
	u.RefreshToken = b.nextID("refresh-")
	b.access[u.AccessToken] = u.Email
	b.refresh[u.RefreshToken] = u.Email
	return u
}

type ctxKey struct{}

func (b *FakeBackend) bearer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tok := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		b.mu.Lock()
		email, ok := b.access[tok]
		if b.RejectAccess || b.RejectAccessOnce {
			ok = false
			b.RejectAccessOnce = false
		}
		b.mu.Unlock()
		if !ok {
			writeError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		next.ServeHTTP(w, r.WithContext(withEmail(r, email)))
	})
}

func (b *FakeBackend) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var body struct {
		RefreshToken string `json:"refreshToken"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid body")
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.RefreshStatus != 0 {
		writeError(w, b.RefreshStatus, "Refresh failed")
		return
	}
	email, ok := b.refresh[body.RefreshToken]
	if !ok {
		writeError(w, http.StatusUnauthorized, "Invalid refresh token")
		return
	}
	tok := b.nextID("access-")
	b.access[tok] = email
	writeJSON(w, http.StatusOK, map[string]string{"accessToken": tok})
}

func (b *FakeBackend) handleLogin(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid body")
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	acc, ok := b.accounts[body.Email]
	if !ok || acc.password != body.Password {
		writeError(w, http.StatusUnauthorized, "Invalid email or password")
		return
	}
	if !acc.verified {
		writeError(w, http.StatusForbidden, "Email not verified")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "success", "data": b.issueTokens(acc)})
}

func (b *FakeBackend) handleLogout(w http.ResponseWriter, r *http.Request) {
	var body struct {
		RefreshToken string `json:"refreshToken"`
	}
	json.NewDecoder(r.Body).Decode(&body)

	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.refresh[body.RefreshToken]; !ok {
		writeJSON(w, http.StatusOK, map[string]string{"status": "error", "message": "Invalid refresh token"})
		return
	}
	delete(b.refresh, body.RefreshToken)
	writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
}

func (b *FakeBackend) handleRegister(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(1 << 20); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid form")
		return
	}
	email := r.FormValue("email")
	if email == "" || r.FormValue("password") == "" {
		writeError(w, http.StatusBadRequest, "Email and password are required")
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if _, exists := b.accounts[email]; exists {
		writeError(w, http.StatusConflict, "User already exists")
		return
	}
	acc := &fakeAccount{
		user:     session.User{ID: b.nextID("u"), Name: r.FormValue("name"), Email: email},
		password: r.FormValue("password"),
	}
	if _, hdr, err := r.FormFile("photo"); err == nil {
		acc.user.ProfileURL = "/uploads/" + hdr.Filename
	}
	b.accounts[email] = acc
	b.send("verify", email, r.URL.Query().Get("emailredirect"))
	writeJSON(w, http.StatusCreated, map[string]string{"status": "success"})
}

// send queues an email link. Callers hold b.mu.
func (b *FakeBackend) send(kind, to, redirect string) {
	token := b.nextID(kind + "-")
	e := Email{Kind: kind, To: to, Token: token, Link: redirect + token}
	b.links[token] = e
	b.outbox = append(b.outbox, e)
}

func (b *FakeBackend) handleSendLink(kind string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Email string `json:"email"`
		}
		json.NewDecoder(r.Body).Decode(&body)

		b.mu.Lock()
		defer b.mu.Unlock()
		if _, ok := b.accounts[body.Email]; !ok {
			writeError(w, http.StatusNotFound, "User not found")
			return
		}
		b.send(kind, body.Email, r.URL.Query().Get("emailredirect"))
		writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
	}
}

// consume redeems an emailed token of the given kind. Callers hold b.mu.
func (b *FakeBackend) consume(kind, token string) (*fakeAccount, bool) {
	e, ok := b.links[token]
	if !ok || e.Kind != kind {
		return nil, false
	}
	delete(b.links, token)
	acc, ok := b.accounts[e.To]
	return acc, ok
}

func (b *FakeBackend) handleConsume(kind string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		defer b.mu.Unlock()
		acc, ok := b.consume(kind, chi.URLParam(r, "token"))
		if !ok {
			writeError(w, http.StatusBadRequest, "Invalid or expired link")
			return
		}
		acc.verified = true
		writeJSON(w, http.StatusOK, map[string]any{"status": "success", "data": b.issueTokens(acc)})
	}
}

func (b *FakeBackend) handleReset(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Password string `json:"password"`
	}
	json.NewDecoder(r.Body).Decode(&body)

	b.mu.Lock()
	defer b.mu.Unlock()
	if body.Password == "" {
		writeError(w, http.StatusBadRequest, "Password is required")
		return
	}
	acc, ok := b.consume("reset", chi.URLParam(r, "token"))
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid or expired link")
		return
	}
	acc.password = body.Password
	writeJSON(w, http.StatusOK, map[string]any{"status": "success", "data": b.issueTokens(acc)})
}

func (b *FakeBackend) handleMe(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	acc := b.accounts[emailFrom(r)]
	writeJSON(w, http.StatusOK, map[string]any{"status": "success", "data": acc.user})
}

func (b *FakeBackend) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(1 << 20); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid form")
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	acc := b.accounts[emailFrom(r)]
	if email := r.FormValue("email"); email != "" && email != acc.user.Email {
		if _, taken := b.accounts[email]; taken {
			writeError(w, http.StatusConflict, "Email already in use")
			return
		}
		delete(b.accounts, acc.user.Email)
		for tok, e := range b.access {
			if e == acc.user.Email {
				b.access[tok] = email
			}
		}
		for tok, e := range b.refresh {
			if e == acc.user.Email {
				b.refresh[tok] = email
			}
		}
		acc.user.Email = email
		b.accounts[email] = acc
	}
	if pw := r.FormValue("password"); pw != "" {
		acc.password = pw
	}
	if _, hdr, err := r.FormFile("photo"); err == nil {
		acc.user.ProfileURL = "/uploads/" + hdr.Filename
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "success", "data": acc.user})
}

func (b *FakeBackend) handleListTasks(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	search := q.Get("filter")

	b.mu.Lock()
	delay := b.ListDelay[search]
	b.mu.Unlock()
	if delay > 0 {
		time.Sleep(delay)
	}

	limit, err := strconv.Atoi(q.Get("limit"))
	if err != nil {
		limit = -1
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	page := window(b.tasks, service.Query{
		Limit:  limit,
		Sort:   q.Get("sort"),
		Order:  strings.ToUpper(q.Get("order")),
		Search: search,
	})
	writeJSON(w, http.StatusOK, map[string]any{"status": "success", "data": page})
}

func (b *FakeBackend) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Text string    `json:"text"`
		Date time.Time `json:"date"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid body")
		return
	}
	if strings.TrimSpace(body.Text) == "" {
		writeError(w, http.StatusBadRequest, "Task text is required")
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	task := service.Task{ID: b.nextID("t"), Text: body.Text, Date: body.Date.UTC()}
	b.tasks = append(b.tasks, task)
	writeJSON(w, http.StatusCreated, map[string]any{"status": "success", "data": task})
}

func (b *FakeBackend) handleUpdateTask(w http.ResponseWriter, r *http.Request) {
	var patch service.TaskPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid body")
		return
	}
	if patch.Text != nil && strings.TrimSpace(*patch.Text) == "" {
		writeError(w, http.StatusBadRequest, "Task text is required")
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	id := chi.URLParam(r, "id")
	for i, t := range b.tasks {
		if t.ID == id {
			b.tasks[i] = patch.Apply(t)
			writeJSON(w, http.StatusOK, map[string]any{"status": "success", "data": b.tasks[i]})
			return
		}
	}
	writeError(w, http.StatusNotFound, "Task not found")
}

func (b *FakeBackend) handleDeleteTask(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := chi.URLParam(r, "id")
	for i, t := range b.tasks {
		if t.ID == id {
			b.tasks = append(b.tasks[:i], b.tasks[i+1:]...)
			writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
			return
		}
	}
	writeError(w, http.StatusNotFound, "Task not found")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"error": map[string]string{"message": msg}})
}

func withEmail(r *http.Request, email string) context.Context {
	return context.WithValue(r.Context(), ctxKey{}, email)
}

func emailFrom(r *http.Request) string {
	email, _ := r.Context().Value(ctxKey{}).(string)
	return email
}
