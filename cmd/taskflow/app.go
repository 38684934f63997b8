package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/baiirun/taskflow/internal/config"
	"github.com/baiirun/taskflow/internal/db"
	"github.com/baiirun/taskflow/internal/events"
	"github.com/baiirun/taskflow/internal/lifecycle"
)

// app holds the opened stack for one command invocation.
type app struct {
	opts      *rootOptions
	cfg       *config.Config
	db        *db.DB
	svc       *lifecycle.Service
	publisher events.Publisher
	logger    *slog.Logger
	out       io.Writer
}

func openApp(cmd *cobra.Command, opts *rootOptions) (*app, error) {
	cfg, err := config.Load(config.Options{File: opts.configFile})
	if err != nil {
		return nil, err
	}
	if opts.dbPath != "" {
		cfg.Database.Driver = string(db.DriverSQLite)
		cfg.Database.Path = opts.dbPath
	}

	logger := cfg.NewLogger(cmd.ErrOrStderr())

	store, err := db.OpenConfig(cfg.DB())
	if err != nil {
		return nil, err
	}
	if err := store.Init(); err != nil {
		store.Close()
		return nil, err
	}

	var publisher events.Publisher = events.Nop{}
	if cfg.NATS.URL != "" {
		nc, err := events.Connect(events.NATSConfig{URL: cfg.NATS.URL, SubjectPrefix: cfg.NATS.SubjectPrefix}, logger)
		if err != nil {
			store.Close()
			return nil, err
		}
		publisher = nc
	}

	svc := lifecycle.New(store,
		lifecycle.WithLogger(logger),
		lifecycle.WithPublisher(publisher),
	)

	return &app{
		opts:      opts,
		cfg:       cfg,
		db:        store,
		svc:       svc,
		publisher: publisher,
		logger:    logger,
		out:       cmd.OutOrStdout(),
	}, nil
}

func (a *app) Close() {
	if err := a.publisher.Close(); err != nil {
		a.logger.Warn("failed to close publisher", "error", err)
	}
	a.db.Close()
}

// actor resolves --as (or the configured actor) to a user id. An email is
// looked up; anything else is taken as an id.
func (a *app) actor(ctx context.Context) (string, error) {
	ref := a.opts.as
	if ref == "" {
		ref = a.cfg.Actor
	}
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", fmt.Errorf("acting user is required: pass --as or set actor in config")
	}
	return a.resolveUser(ctx, ref)
}

func (a *app) resolveUser(ctx context.Context, ref string) (string, error) {
	if !strings.Contains(ref, "@") {
		return ref, nil
	}
	u, err := a.db.FindUserByEmail(ctx, ref)
	if err != nil {
		return "", err
	}
	return u.ID, nil
}

// withApp opens the stack, runs fn and closes it.
func withApp(cmd *cobra.Command, opts *rootOptions, fn func(a *app) error) error {
	a, err := openApp(cmd, opts)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a)
}

func (a *app) printJSON(v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, string(b))
	return nil
}
