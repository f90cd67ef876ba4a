package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/guilherme-santos/calfed/calendar"
	"github.com/guilherme-santos/calfed/calendar/google"
	"github.com/guilherme-santos/calfed/internal"
	"github.com/guilherme-santos/calfed/internal/config"
	"github.com/guilherme-santos/calfed/internal/federation"
	"github.com/guilherme-santos/calfed/internal/freebusy"
	"github.com/guilherme-santos/calfed/internal/sqlite"
)

type environment struct {
	cfg     config.Runtime
	logger  *slog.Logger
	session internal.LocalSession
	out     io.Writer

	storage    *sqlite.Storage
	mux        *calendar.Mux
	google     *google.Client
	provider   *federation.Provider
	aggregator *freebusy.Aggregator
}

func newEnvironment(cfg config.Runtime, userID int, demo bool) (*environment, error) {
	logger, err := cfg.Logger(os.Stderr)
	if err != nil {
		return nil, err
	}

	env := &environment{
		cfg:     cfg,
		logger:  logger,
		session: internal.LocalSession{UserID: userID, ContextID: 1},
		out:     os.Stdout,
		mux:     calendar.NewMux(),
	}

	if cfg.GoogleCredentials != "" {
		credJSON, err := os.ReadFile(cfg.GoogleCredentials)
		if err != nil {
			return nil, fmt.Errorf("reading google credentials: %v", err)
		}
		env.google, err = google.NewClient(credJSON, logger)
		if err != nil {
			return nil, err
		}
		env.mux.Register(google.Host, env.google)
	}
	if demo {
		env.mux.Register(demoHost, newDemoTenant())
	}

	env.storage, err = sqlite.Open(cfg.DBPath)
	if err != nil {
		return nil, err
	}

	env.provider = federation.NewProvider(env.mux, env.storage, federation.Config{
		RetryAfter:              cfg.RetryAfter,
		AutoRemoveUnknownShares: cfg.AutoRemoveUnknownShares,
	}, logger)
	env.aggregator = freebusy.NewAggregator(env.provider, env.storage, env.mux, freebusy.Config{
		Workers:       cfg.FreeBusyWorkers,
		CapabilityTTL: cfg.CapabilityCacheTTL,
	}, logger)
	return env, nil
}

func (env *environment) Close() {
	if env.storage == nil {
		return
	}
	if err := env.storage.Close(); err != nil {
		env.logger.Debug("Unable to close storage", internal.ErrAttr(err))
	}
	env.storage = nil
}
