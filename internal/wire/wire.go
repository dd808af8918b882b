// Package wire provides dependency injection for the disputedesk application.
// It creates singleton services with lazy initialization.
package wire

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	cliadapter "github.com/example/disputedesk/internal/adapters/cli"
	"github.com/example/disputedesk/internal/adapters/identity"
	"github.com/example/disputedesk/internal/adapters/memory"
	"github.com/example/disputedesk/internal/adapters/notify"
	"github.com/example/disputedesk/internal/adapters/postgres"
	"github.com/example/disputedesk/internal/adapters/sqlite"
	"github.com/example/disputedesk/internal/app"
	"github.com/example/disputedesk/internal/config"
	"github.com/example/disputedesk/internal/db"
	"github.com/example/disputedesk/internal/obs"
	"github.com/example/disputedesk/internal/ports/primary"
	"github.com/example/disputedesk/internal/ports/secondary"
	"github.com/example/disputedesk/internal/telemetry"
	"github.com/example/disputedesk/internal/version"
)

var (
	cfg    = config.Default()
	logger = slog.Default()

	repo              secondary.IssueRepository
	metrics           *obs.Metrics
	directory         *identity.Directory
	issueService      primary.IssueService
	messageService    primary.MessageService
	escalationService primary.EscalationService
	closers           []func(context.Context) error

	once    sync.Once
	initErr error
)

// Configure sets the configuration and logger used by the singletons.
// It must be called before the first service is requested.
func Configure(c *config.Config, l *slog.Logger) {
	if c != nil {
		cfg = c
	}
	if l != nil {
		logger = l
	}
}

// Config returns the active configuration.
func Config() *config.Config { return cfg }

// Logger returns the process logger.
func Logger() *slog.Logger { return logger }

// Init builds all services. It runs once; later calls return the first result.
func Init() error {
	once.Do(func() { initErr = initServices() })
	return initErr
}

func mustInit() {
	if err := Init(); err != nil {
		log.Fatalf("failed to initialize services: %v", err)
	}
}

// IssueService returns the singleton IssueService instance.
func IssueService() primary.IssueService {
	mustInit()
	return issueService
}

// MessageService returns the singleton MessageService instance.
func MessageService() primary.MessageService {
	mustInit()
	return messageService
}

// EscalationService returns the singleton EscalationService instance.
func EscalationService() primary.EscalationService {
	mustInit()
	return escalationService
}

// Repository returns the (possibly instrumented) issue store.
func Repository() secondary.IssueRepository {
	mustInit()
	return repo
}

// Metrics returns the process metrics registry.
func Metrics() *obs.Metrics {
	mustInit()
	return metrics
}

// Directory returns the identity directory loaded from config.
func Directory() *identity.Directory {
	mustInit()
	return directory
}

// TokenService returns a token service for the configured secret.
func TokenService() (*identity.TokenService, error) {
	return identity.NewTokenService(cfg.Auth.Secret)
}

// initServices initializes all services and their dependencies.
// This is called once via sync.Once.
func initServices() error {
	ctx := context.Background()

	if err := telemetry.Init(ctx, telemetry.Options{
		Enabled:     cfg.Telemetry.Enabled,
		Stdout:      cfg.Telemetry.Stdout,
		ServiceName: "disputedesk",
		Version:     version.String(),
	}); err != nil {
		return err
	}
	closers = append(closers, func(ctx context.Context) error {
		telemetry.Shutdown(ctx)
		return nil
	})

	store, err := openRepository(ctx)
	if err != nil {
		return err
	}
	repo = telemetry.WrapRepository(store)

	metrics = obs.NewMetrics()
	metrics.SetBuildInfo(version.Version, version.ShortCommit())

	entries := make(map[string]identity.Entry, len(cfg.Directory))
	for _, a := range cfg.Directory {
		entries[a.ID] = identity.Entry{Role: a.Role, DisplayName: a.DisplayName}
	}
	directory = identity.NewDirectory(entries)

	// Create effect executor with the configured notification channels
	executor := app.NewEffectExecutor(newNotifier(), logger)

	wf := app.NewWorkflow(repo, directory, executor,
		app.WithObserver(metrics),
		app.WithLogger(logger),
	)

	// Create services (primary ports implementation)
	issueService = app.NewIssueService(wf)
	messageService = app.NewMessageService(wf)
	escalationService = app.NewEscalationService(wf)
	return nil
}

func openRepository(ctx context.Context) (secondary.IssueRepository, error) {
	switch cfg.Store.Driver {
	case config.DriverMemory:
		return memory.NewIssueRepository(), nil

	case config.DriverSQLite:
		var (
			conn *sql.DB
			err  error
		)
		if cfg.Store.DSN == "" {
			conn, err = db.GetDB()
		} else {
			conn, err = db.Open(cfg.Store.DSN)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to initialize database: %w", err)
		}
		closers = append(closers, func(context.Context) error { return conn.Close() })
		return sqlite.NewIssueRepository(conn), nil

	case config.DriverPostgres:
		pg, err := postgres.Open(cfg.Store.DSN)
		if err != nil {
			return nil, err
		}
		bo := backoff.NewExponentialBackOff()
		bo.MaxElapsedTime = 15 * time.Second
		if err := backoff.Retry(func() error { return pg.Ping(ctx) }, backoff.WithContext(bo, ctx)); err != nil {
			pg.Close()
			return nil, fmt.Errorf("failed to reach postgres: %w", err)
		}
		if err := pg.Migrate(ctx); err != nil {
			pg.Close()
			return nil, err
		}
		closers = append(closers, func(context.Context) error { return pg.Close() })
		return pg, nil
	}
	return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
}

// newNotifier always logs; with a webhook URL it also posts events,
// counting deliveries in the metrics registry.
func newNotifier() secondary.Notifier {
	logNotifier := notify.NewLogNotifier(logger)
	url := strings.TrimSpace(cfg.Notify.WebhookURL)
	if url == "" {
		return logNotifier
	}
	webhook := notify.NewWebhookNotifier(url,
		notify.WithLogger(logger),
		notify.WithQueueSize(cfg.Notify.QueueSize),
		notify.WithDeliveryObserver(metrics.ObserveDelivery),
	)
	closers = append(closers, webhook.Close)
	return notify.Multi{logNotifier, webhook}
}

// Shutdown releases everything Init opened, most recent first.
func Shutdown(ctx context.Context) {
	for i := len(closers) - 1; i >= 0; i-- {
		if err := closers[i](ctx); err != nil {
			logger.WarnContext(ctx, "shutdown step failed", "error", err)
		}
	}
	closers = nil
}

// IssueAdapter returns a new IssueAdapter writing to stdout.
// Each call creates a new adapter (adapters are stateless translators).
func IssueAdapter() *cliadapter.IssueAdapter {
	return IssueAdapterWithOutput(os.Stdout)
}

// IssueAdapterWithOutput returns a new IssueAdapter writing to the given output.
// This variant allows testing or alternate output destinations.
func IssueAdapterWithOutput(out io.Writer) *cliadapter.IssueAdapter {
	mustInit()
	return cliadapter.NewIssueAdapter(issueService, messageService, escalationService, out)
}
