// Package linkserver catches the browser redirects that finish sign-in flows:
// Google sign-in, magic links, email verification and password reset.
package linkserver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

const (
	// StartPort is the first port tried for the local server.
	StartPort = 8085

	// MaxPortAttempts is how many consecutive ports are tried.
	MaxPortAttempts = 5

	// DefaultWait bounds how long a flow waits for its link.
	DefaultWait = 5 * time.Minute
)

// Kind names the flow a link belongs to.
type Kind string

const (
	KindGoogle        Kind = "google"
	KindMagicLink     Kind = "magiclink"
	KindVerifyEmail   Kind = "verify-email"
	KindResetPassword Kind = "reset-password"
)

// Paths of each link kind, relative to the server's base URL. Emailed links
// are the path followed by the token.
var paths = map[Kind]string{
	KindGoogle:        "/auth/google/",
	KindMagicLink:     "/magiclink/",
	KindVerifyEmail:   "/verify-email/",
	KindResetPassword: "/auth/reset-password/",
}

// ErrTimeout is returned by Wait when no link arrives in time.
var ErrTimeout = errors.New("timed out waiting for link")

// Link is a captured redirect.
type Link struct {
	Kind Kind
	// Token is the emailed token, or the access token for Google sign-in.
	Token string
	// RefreshToken is set by Google sign-in when the backend sends one.
	RefreshToken string
}

// RedirectURL returns the URL prefix the backend should build links of kind
// on, given a base URL such as http://localhost:8085.
func RedirectURL(base string, kind Kind) string {
	return strings.TrimRight(base, "/") + paths[kind]
}

// Server is a one-shot local HTTP server.
type Server struct {
	nonce    string
	base     string
	links    chan Link
	log      *zap.Logger
	listener net.Listener
	srv      *http.Server
}

// New returns a Server that is not listening; use Start, or Handler in tests.
func New(log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{
		nonce: oauth2.GenerateVerifier(),
		links: make(chan Link, 1),
		log:   log.Named("linkserver"),
	}
}

// Start binds the first free port from StartPort and serves in the background.
func (s *Server) Start() error {
	port, listener, err := findAvailablePort()
	if err != nil {
		return err
	}
	s.listener = listener
	s.base = fmt.Sprintf("http://localhost:%d", port)
	s.srv = &http.Server{Handler: s.Handler(), ReadHeaderTimeout: 10 * time.Second}

	go func() {
		if err := s.srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Warn("link server stopped", zap.Error(err))
		}
	}()
	s.log.Debug("listening", zap.String("base", s.base))
	return nil
}

// BaseURL returns the server's URL, empty before Start.
func (s *Server) BaseURL() string { return s.base }

// GoogleRedirectURL is the redirect target for Google sign-in. It carries a
// per-run nonce so stale redirects are rejected.
func (s *Server) GoogleRedirectURL() string {
	return RedirectURL(s.base, KindGoogle) + s.nonce
}

// Handler returns the routes.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/auth/google/{nonce}", func(w http.ResponseWriter, r *http.Request) {
		if chi.URLParam(r, "nonce") != s.nonce {
			http.NotFound(w, r)
			return
		}
		q := r.URL.Query()
		if q.Get("a") == "" {
			http.Error(w, "No access token in redirect", http.StatusBadRequest)
			return
		}
		s.capture(w, Link{Kind: KindGoogle, Token: q.Get("a"), RefreshToken: q.Get("r")})
	})
	for _, kind := range []Kind{KindMagicLink, KindVerifyEmail, KindResetPassword} {
		r.Get(paths[kind]+"{token}", func(w http.ResponseWriter, r *http.Request) {
			s.capture(w, Link{Kind: kind, Token: chi.URLParam(r, "token")})
		})
	}
	return r
}

func (s *Server) capture(w http.ResponseWriter, link Link) {
	select {
	case s.links <- link:
		s.log.Debug("captured link", zap.String("kind", string(link.Kind)))
	default:
		// Only the first link is used.
	}
	w.Header().Set("Content-Type", "text/html")
	fmt.Fprint(w, "<html><body><h1>Link received</h1><p>You may close this window and return to the terminal.</p></body></html>")
}

// Wait blocks until a link arrives, the timeout passes or ctx is done.
func (s *Server) Wait(ctx context.Context, timeout time.Duration) (Link, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case link := <-s.links:
		return link, nil
	case <-timer.C:
		return Link{}, ErrTimeout
	case <-ctx.Done():
		return Link{}, ctx.Err()
	}
}

// Close shuts the server down.
func (s *Server) Close() error {
	if s.srv == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.srv.Shutdown(ctx)
}

// findAvailablePort tries to find an available port starting from StartPort.
func findAvailablePort() (int, net.Listener, error) {
	for i := 0; i < MaxPortAttempts; i++ {
		port := StartPort + i
		listener, err := net.Listen("tcp", fmt.Sprintf("localhost:%d", port))
		if err == nil {
			return port, listener, nil
		}
	}
	return 0, nil, fmt.Errorf("no available port in %d-%d", StartPort, StartPort+MaxPortAttempts-1)
}

// ParseLink accepts a pasted link (or bare token) for the expected kind.
// A bare token is taken as-is.
func ParseLink(raw string, want Kind) (Link, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Link{}, errors.New("link or token required")
	}
	if !strings.Contains(raw, "/") {
		return Link{Kind: want, Token: raw}, nil
	}

	u, err := url.Parse(raw)
	if err != nil {
		return Link{}, fmt.Errorf("invalid link: %w", err)
	}
	// Hash-routed links from the web client put the route in the fragment.
	path := u.Path
	if u.Fragment != "" {
		path = u.Fragment
	}
	prefix := paths[want]
	i := strings.Index(path, prefix)
	if i < 0 {
		return Link{}, fmt.Errorf("not a %s link: %s", want, raw)
	}
	token := strings.Trim(path[i+len(prefix):], "/")
	if token == "" || strings.Contains(token, "/") {
		return Link{}, fmt.Errorf("no token in link: %s", raw)
	}
	return Link{Kind: want, Token: token}, nil
}
