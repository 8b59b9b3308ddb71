// Package app wires the session, request and task layers for one CLI run.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"go.uber.org/zap"

	"taskify/internal/api"
	"taskify/internal/auth"
	"taskify/internal/backend/taskify"
	"taskify/internal/config"
	"taskify/internal/dashboard"
	"taskify/internal/logging"
	"taskify/internal/service"
	"taskify/internal/session"
	"taskify/internal/storage"
)

// App is the application root. It owns exactly one session store.
type App struct {
	Config    *config.Config
	Log       *zap.Logger
	KV        storage.KV
	Sessions  *session.Store
	Refresher *auth.Refresher
	Accounts  *auth.Accounts
	Tasks     service.Service
	Dashboard *dashboard.Controller

	closers []io.Closer
}

// New builds an App from cfg. Debug logs go to logOut.
func New(ctx context.Context, cfg *config.Config, logOut io.Writer) (*App, error) {
	log := logging.New(cfg.Debug, logOut)

	kv, closer, err := openState(ctx, cfg)
	if err != nil {
		return nil, err
	}

	a := &App{Config: cfg, Log: log, KV: kv}
	if closer != nil {
		a.closers = append(a.closers, closer)
	}

	a.Sessions = session.NewStore(kv, log)

	public := api.New(cfg.BackendURL,
		api.WithHTTPClient(&http.Client{Timeout: cfg.RequestTimeout}),
		api.WithLogger(log),
	)
	a.Refresher = auth.NewRefresher(public, a.Sessions, log)
	client := public.WithAuthenticator(a.Refresher)

	a.Accounts = auth.NewAccounts(client, a.Sessions, log)
	a.Tasks = taskify.New(client).WithTimeout(cfg.RequestTimeout)
	a.Dashboard = dashboard.New(a.Tasks, dashboard.Options{
		PageSize:    cfg.PageSize,
		SearchDelay: cfg.SearchDebounce,
		Logger:      log,
		State:       kv,
	})

	log.Debug("app ready",
		zap.String("backend", cfg.BackendURL),
		zap.String("state_backend", cfg.StateBackend))
	return a, nil
}

func openState(ctx context.Context, cfg *config.Config) (storage.KV, io.Closer, error) {
	switch cfg.StateBackend {
	case config.StateBackendRedis:
		kv, err := storage.DialRedis(ctx, cfg.RedisAddr, cfg.RedisDB)
		if err != nil {
			return nil, nil, fmt.Errorf("connect to redis at %s: %w", cfg.RedisAddr, err)
		}
		return kv, kv, nil
	default:
		if err := cfg.EnsureDir(); err != nil {
			return nil, nil, fmt.Errorf("failed to create config directory: %w", err)
		}
		return storage.NewFileKV(cfg.Dir), nil, nil
	}
}

// Start restores the persisted session, refreshing it against the backend
// when credentials are stored.
func (a *App) Start(ctx context.Context) (session.State, error) {
	return a.Sessions.Init(ctx, a.Refresher)
}

// Close stops pending searches and releases the state backend.
func (a *App) Close() error {
	a.Dashboard.Close()
	var errs []error
	for _, c := range a.closers {
		errs = append(errs, c.Close())
	}
	_ = a.Log.Sync()
	return errors.Join(errs...)
}
