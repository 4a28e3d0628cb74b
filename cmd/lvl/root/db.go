package root

import (
	"context"
	"database/sql"
	"strings"

	"go.uber.org/zap"

	"levelup/internal/config"
	"levelup/internal/engine"
	"levelup/internal/logging"
	"levelup/internal/storage"
)

// app carries the resolved config and logger shared by every subcommand.
type app struct {
	configPath string
	userFlag   string
	dbFlag     string

	cfg *config.Config
	log *zap.SugaredLogger
}

func (a *app) setup() error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if u := strings.TrimSpace(a.userFlag); u != "" {
		cfg.User = u
	}
	if p := strings.TrimSpace(a.dbFlag); p != "" {
		cfg.DBPath = p
	}
	log, err := logging.New(cfg.Log)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.log = log
	return nil
}

func (a *app) teardown() {
	if a.log != nil {
		_ = a.log.Sync()
	}
}

func (a *app) user() string {
	return a.cfg.User
}

func (a *app) openDB(ctx context.Context) (*sql.DB, func(), error) {
	db, err := storage.Open(ctx, a.cfg.DBPath)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		_ = db.Close()
	}
	return db, cleanup, nil
}

func (a *app) openService(ctx context.Context) (*engine.Service, func(), error) {
	db, cleanup, err := a.openDB(ctx)
	if err != nil {
		return nil, nil, err
	}
	svc := engine.NewService(db,
		engine.WithLogger(a.log.With("user", a.user())),
		engine.WithLocation(a.cfg.Location()),
	)
	return svc, cleanup, nil
}
