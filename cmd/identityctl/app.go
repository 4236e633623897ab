package main

import (
	"context"
	"fmt"

	"github.com/goliatone/go-identity"
	"github.com/goliatone/go-identity/repository"
	"github.com/uptrace/bun"
	"go.uber.org/zap"
)

// app holds the wiring shared by every subcommand
type app struct {
	cfg     Config
	log     *zap.Logger
	db      *bun.DB
	manager *identity.Manager
}

func newApp(cfg Config) (*app, error) {
	log, err := newZapLogger(cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("invalid log configuration: %w", err)
	}

	db, err := repository.Open(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return nil, err
	}

	return &app{cfg: cfg, log: log, db: db}, nil
}

// Manager builds the identity manager on first use. It fails when no
// signing key is configured.
func (a *app) Manager() (*identity.Manager, error) {
	if a.manager != nil {
		return a.manager, nil
	}

	m, err := identity.NewManager(repository.NewAccountRepository(a.db), a.cfg.Options)
	if err != nil {
		if identity.IsKind(err, identity.ErrMissingSigningKey) {
			return nil, fmt.Errorf("%w: set signing_key in identity.yaml, IDENTITY_SIGNING_KEY or --signing-key", err)
		}
		return nil, err
	}

	a.manager = m.
		WithLogger(newLoggerAdapter(a.log)).
		WithActivitySink(activityLogger(a.log))

	return a.manager, nil
}

func (a *app) Migrate(ctx context.Context) error {
	return repository.CreateSchema(ctx, a.db)
}

func (a *app) Close() error {
	_ = a.log.Sync()
	return a.db.Close()
}
