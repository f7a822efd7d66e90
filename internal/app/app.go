package app

import (
	"fmt"
	"time"

	"libris/pkg/audit"
	"libris/pkg/store"
)

// Config holds runtime configuration for the core application.
type Config struct {
	DatabaseURL string
	JWTSecret   string
	SessionTTL  time.Duration
	Store       store.Store
	Sessions    store.SessionStore
	Audit       audit.Recorder
}

// App wires storage, sessions, and the audit trail behind the service
// operations.
type App struct {
	store    store.Store
	sessions store.SessionStore
	audit    audit.Recorder
}

// New constructs the application. Store and Sessions may be injected for
// tests; otherwise they are built from DatabaseURL and JWTSecret.
func New(cfg Config) (*App, error) {
	if cfg.SessionTTL == 0 {
		cfg.SessionTTL = 15 * time.Minute
	}

	dataStore := cfg.Store
	if dataStore == nil {
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("database URL required")
		}
		var err error
		dataStore, err = store.NewGormStore(cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("init postgres store: %w", err)
		}
	}

	sessionStore := cfg.Sessions
	if sessionStore == nil {
		var err error
		sessionStore, err = store.NewJWTSessionStore(cfg.JWTSecret, cfg.SessionTTL, store.JWTOptions{})
		if err != nil {
			return nil, fmt.Errorf("init jwt session store: %w", err)
		}
	}

	recorder := cfg.Audit
	if recorder == nil {
		recorder = audit.NopRecorder{}
	}

	return &App{
		store:    dataStore,
		sessions: sessionStore,
		audit:    recorder,
	}, nil
}
