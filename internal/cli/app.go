package cli

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nhle/worklist/internal/action"
	"github.com/nhle/worklist/internal/credential"
	"github.com/nhle/worklist/internal/logging"
	"github.com/nhle/worklist/internal/model"
	"github.com/nhle/worklist/internal/snooze"
	"github.com/nhle/worklist/internal/source"
	"github.com/nhle/worklist/internal/source/devops"
	"github.com/nhle/worklist/internal/source/gmail"
	"github.com/nhle/worklist/internal/source/outlook"
	"github.com/nhle/worklist/internal/store"
	"github.com/nhle/worklist/internal/worklist"
)

// App holds the wired components a command runs against.
type App struct {
	Config      *model.AppConfig
	Logger      *slog.Logger
	Store       *store.SQLStore
	Credentials *credential.Store
	Engine      *worklist.Engine
	Dispatcher  *action.Dispatcher
	Policy      snooze.Policy
	Now         func() time.Time

	closeFn func() error
}

// OpenApp loads configuration from configPath and wires the store,
// credential store and enabled adapters.
func OpenApp(_ context.Context, configPath string) (*App, error) {
	cfg, err := model.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}
	logger := logging.New(cfg.LogLevel)

	creds, err := credential.Open()
	if err != nil {
		logger.Warn("keyring unavailable, reading tokens from environment only", "error", err)
		creds = credential.EnvOnly()
	}

	st, err := store.NewFromConfig(cfg.Store)
	if err != nil {
		return nil, err
	}

	sources := buildSources(cfg, creds.TokenProvider)
	app, err := NewApp(cfg, logger, st, creds, sources, time.Now)
	if err != nil {
		_ = st.Close()
		return nil, err
	}
	app.closeFn = st.Close
	return app, nil
}

// NewApp wires an App from already-built parts. The caller keeps
// ownership of st.
func NewApp(
	cfg *model.AppConfig,
	logger *slog.Logger,
	st *store.SQLStore,
	creds *credential.Store,
	sources []source.Source,
	now func() time.Time,
) (*App, error) {
	policy, err := snooze.NewPolicy(cfg.Location(), cfg.Snooze.MorningHour, cfg.Snooze.WeekStart)
	if err != nil {
		return nil, fmt.Errorf("snooze policy: %w", err)
	}

	engine := worklist.NewEngine(sources, st,
		worklist.WithLogger(logger),
		worklist.WithFetchTimeout(cfg.FetchTimeout()),
		worklist.WithClock(now),
	)
	dispatcher := action.NewDispatcher(sources, st,
		action.WithLogger(logger),
		action.WithPolicy(policy),
		action.WithClock(now),
	)

	return &App{
		Config:      cfg,
		Logger:      logger,
		Store:       st,
		Credentials: creds,
		Engine:      engine,
		Dispatcher:  dispatcher,
		Policy:      policy,
		Now:         now,
	}, nil
}

// Close releases resources opened by OpenApp.
func (a *App) Close() error {
	if a.closeFn == nil {
		return nil
	}
	return a.closeFn()
}

// buildSources creates an adapter for every enabled source, in the fixed
// order gmail, outlook, devops.
func buildSources(cfg *model.AppConfig, tokens func(model.SourceType) source.TokenProvider) []source.Source {
	var sources []source.Source

	if cfg.Gmail.Enabled {
		sources = append(sources, gmail.NewAdapter(gmail.Options{
			BaseURL:    cfg.Gmail.BaseURL,
			UserID:     cfg.Gmail.UserID,
			Query:      cfg.Gmail.Query,
			MaxResults: cfg.Gmail.MaxResults,
			Tokens:     tokens(model.SourceTypeGmail),
		}))
	}
	if cfg.Outlook.Enabled {
		sources = append(sources, outlook.NewAdapter(outlook.Options{
			BaseURL: cfg.Outlook.BaseURL,
			Top:     cfg.Outlook.Top,
			Tokens:  tokens(model.SourceTypeOutlook),
		}))
	}
	if cfg.DevOps.Enabled {
		sources = append(sources, devops.NewAdapter(devops.Options{
			BaseURL:      cfg.DevOps.BaseURL,
			Organization: cfg.DevOps.Organization,
			Project:      cfg.DevOps.Project,
			ClosedState:  cfg.DevOps.ClosedState,
			MaxResults:   cfg.DevOps.MaxResults,
			Tokens:       tokens(model.SourceTypeDevOps),
		}))
	}

	return sources
}
