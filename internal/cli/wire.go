package cli

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/soyeahso/concierge/internal/agent"
	"github.com/soyeahso/concierge/internal/channel"
	"github.com/soyeahso/concierge/internal/channel/irc"
	"github.com/soyeahso/concierge/internal/config"
	"github.com/soyeahso/concierge/internal/domain"
	"github.com/soyeahso/concierge/internal/hooks"
	"github.com/soyeahso/concierge/internal/llm"
	"github.com/soyeahso/concierge/internal/logging"
	"github.com/soyeahso/concierge/internal/metrics"
	"github.com/soyeahso/concierge/internal/notify"
	"github.com/soyeahso/concierge/internal/store"
)

// app is everything a command needs to run turns.
type app struct {
	cfg          config.Config
	reservations domain.ReservationStore
	sessions     domain.SessionStore
	runner       *agent.Runner
	channels     *channel.Registry
	hooks        *hooks.Manager
	metrics      *metrics.Metrics
	log          *logging.Logger

	dbs     map[string]*store.DB
	closers []func() error
}

// loadConfig reads and validates the config file. Validation issues are
// logged one per line and fail the command.
func loadConfig() (config.Config, error) {
	cfg, err := config.Load(paths.Config)
	if err != nil {
		return cfg, err
	}
	if issues := config.Validate(&cfg); len(issues) > 0 {
		for _, issue := range issues {
			log.Error().Str("path", issue.Path).Msg(issue.Message)
		}
		return cfg, fmt.Errorf("config validation failed with %d issue(s)", len(issues))
	}
	return cfg, nil
}

// buildApp opens the configured stores and assembles the turn runner.
// The caller must call Close.
func buildApp(ctx context.Context, cfg config.Config, log *logging.Logger) (_ *app, err error) {
	a := &app{cfg: cfg, log: log, dbs: map[string]*store.DB{}}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	if err := paths.EnsureDirs(); err != nil {
		return nil, fmt.Errorf("creating data directories: %w", err)
	}

	reservations, err := a.openReservations()
	if err != nil {
		return nil, err
	}
	a.reservations = store.WithReservationRetry(reservations, store.DefaultRetry, log)

	sessions, err := a.openSessions(ctx)
	if err != nil {
		return nil, err
	}
	a.sessions = store.WithSessionRetry(sessions, store.DefaultRetry, log)

	if !cfg.Metrics.Disabled {
		a.metrics = metrics.New()
	}

	a.hooks = hooks.NewManager(log)
	if n := hooks.RegisterConfig(a.hooks, cfg.Hooks); n > 0 {
		log.Info().Int("count", n).Msg("command hooks registered")
	}

	a.channels = channel.NewRegistry(log)
	if cfg.Channels.IRC != nil {
		a.channels.Register(irc.New(*cfg.Channels.IRC, log))
	}

	notifier, err := notify.New(cfg.Notifier.Mode, a.channels, log)
	if err != nil {
		return nil, err
	}

	registry, refs := llm.NewRegistryFromConfig(cfg.LLM, log)
	var client llm.Client
	if len(refs) > 0 {
		client = agent.NewFailoverClient(registry, refs, a.metrics, log)
		log.Info().Strs("providers", refs).Msg("text generation available")
	} else {
		log.Debug().Msg("no text generation provider; unmatched questions get the fallback answer")
	}

	responder := agent.NewResponder(agent.ResponderConfig{
		Hotel:       cfg.Hotel,
		Client:      client,
		MaxTokens:   cfg.LLM.MaxTokens,
		Temperature: cfg.LLM.Temperature,
	}, log)

	a.runner = agent.NewRunner(agent.RunnerConfig{
		Hotel:        cfg.Hotel,
		Reservations: a.reservations,
		Sessions:     a.sessions,
		Responder:    responder,
		Notifier:     notifier,
		Hooks:        a.hooks,
		Metrics:      a.metrics,
	}, log)

	return a, nil
}

// db opens each SQL database once, so reservations and sessions on the
// same driver share a connection pool and a migrations table.
func (a *app) db(driver, dsn string) (*store.DB, error) {
	key := driver + "|" + dsn
	if db, ok := a.dbs[key]; ok {
		return db, nil
	}
	db, err := store.Open(driver, dsn, a.log)
	if err != nil {
		return nil, fmt.Errorf("opening %s database: %w", driver, err)
	}
	a.dbs[key] = db
	a.closers = append(a.closers, db.Close)
	return db, nil
}

func (a *app) dsn(driver string) string {
	if a.cfg.Storage.Driver == driver && a.cfg.Storage.DSN != "" {
		return a.cfg.Storage.DSN
	}
	if driver == store.DriverSQLite {
		return paths.DatabasePath()
	}
	return a.cfg.Storage.DSN
}

func (a *app) fileDir() string {
	if a.cfg.Storage.Dir != "" {
		return a.cfg.Storage.Dir
	}
	return paths.Data
}

func (a *app) openReservations() (domain.ReservationStore, error) {
	driver := a.cfg.Storage.Driver
	switch driver {
	case store.DriverSQLite, store.DriverPostgres:
		db, err := a.db(driver, a.dsn(driver))
		if err != nil {
			return nil, err
		}
		a.log.Info().Str("driver", driver).Msg("using SQL reservation store")
		return store.NewSQLReservationStore(db), nil
	case "file":
		path := filepath.Join(a.fileDir(), "reservations.json")
		a.log.Info().Str("path", path).Msg("using file reservation store")
		return store.NewFileReservationStore(path, a.log), nil
	case "memory":
		a.log.Info().Msg("using in-memory reservation store")
		return store.NewMemoryReservationStore(), nil
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", driver)
	}
}

func (a *app) openSessions(ctx context.Context) (domain.SessionStore, error) {
	kind := a.cfg.Session.Store
	switch kind {
	case store.DriverSQLite, store.DriverPostgres:
		db, err := a.db(kind, a.dsn(kind))
		if err != nil {
			return nil, err
		}
		return store.NewSQLSessionStore(db), nil
	case "redis":
		rc := a.cfg.Session.Redis
		rs, err := store.NewRedisSessionStore(ctx, store.RedisOptions{
			Addr:     rc.Addr,
			Password: rc.Password,
			DB:       rc.DB,
			Prefix:   rc.KeyPrefix,
			TTL:      time.Duration(rc.TTLHours) * time.Hour,
		}, a.log)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, rs.Close)
		a.log.Info().Str("addr", rc.Addr).Msg("using Redis session store")
		return rs, nil
	case "file":
		return store.NewFileSessionStore(filepath.Join(a.fileDir(), "sessions.json"), a.log), nil
	case "memory":
		return store.NewMemorySessionStore(), nil
	default:
		return nil, fmt.Errorf("unsupported session store %q", kind)
	}
}

// Close lets pending hook handlers finish, then releases databases and
// connections in reverse open order.
func (a *app) Close() error {
	if a.hooks != nil {
		ctx, cancel := context.WithTimeout(context.Background(), hooks.DefaultCommandTimeout)
		if !a.hooks.Wait(ctx) {
			a.log.Warn().Msg("hook handlers still running at shutdown")
		}
		cancel()
	}

	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
