package bootstrap

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	identity "opencast/contexts/identity-access/identity-service"
	"opencast/contexts/identity-access/identity-service/adapters/hash"
	identitymemory "opencast/contexts/identity-access/identity-service/adapters/memory"
	identitypostgres "opencast/contexts/identity-access/identity-service/adapters/postgres"
	"opencast/contexts/identity-access/identity-service/adapters/token"
	organizations "opencast/contexts/identity-access/organization-service"
	orgmemory "opencast/contexts/identity-access/organization-service/adapters/memory"
	orgpostgres "opencast/contexts/identity-access/organization-service/adapters/postgres"
	orgworkers "opencast/contexts/identity-access/organization-service/application/workers"
	"opencast/internal/platform/config"
	"opencast/internal/platform/db"
	"opencast/internal/platform/httpserver"
	"opencast/internal/platform/messaging"
	"opencast/internal/shared/events"

	"golang.org/x/crypto/bcrypt"
)

// Package bootstrap is the composition root.
// Keep construction/wiring here so module code stays framework-agnostic.
// The cross-service ports (identity directory, organization guard) are
// implemented here so the two services never import each other.

type APIApp struct {
	server   *httpserver.Server
	postgres *db.Postgres
	logger   *slog.Logger
}

type WorkerApp struct {
	postgres     *db.Postgres
	outboxRelay  orgworkers.OutboxRelay
	bus          *messaging.Bus
	auditTopic   string
	pollInterval time.Duration
	enableRelay  bool
	logger       *slog.Logger
}

func BuildAPI() (*APIApp, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger := slog.Default().With("service", cfg.ServiceName, "process", "api")
	if strings.TrimSpace(cfg.PostgresDSN) == "" {
		return nil, errors.New("POSTGRES_DSN is required")
	}

	pg, err := db.Connect(cfg.PostgresDSN)
	if err != nil {
		return nil, err
	}
	if err := identitypostgres.Migrate(pg.DB); err != nil {
		return nil, err
	}
	if err := orgpostgres.Migrate(pg.DB); err != nil {
		return nil, err
	}

	identityRepo := identitypostgres.NewRepository(pg.DB, logger)
	orgRepo := orgpostgres.NewRepository(pg.DB, logger)

	identityModule := identity.NewModule(identity.Dependencies{
		Repository: identityRepo,
		Hasher:     hash.BcryptHasher{Cost: bcrypt.DefaultCost},
		Tokens: token.JWTManager{
			Secret:     []byte(cfg.JWTSecret),
			Issuer:     cfg.ServiceName,
			AccessTTL:  cfg.AccessTokenTTL,
			RefreshTTL: cfg.RefreshTokenTTL,
			Clock:      identitypostgres.SystemClock{},
		},
		Guard:       organizationGuard{repo: orgRepo},
		Clock:       identitypostgres.SystemClock{},
		IDGenerator: identitypostgres.UUIDGenerator{},
		Logger:      logger,
	})

	orgModule := organizations.NewModule(organizations.Dependencies{
		Repository:  orgRepo,
		Outbox:      orgRepo,
		Directory:   identityDirectory{repo: identityRepo},
		Clock:       orgpostgres.SystemClock{},
		IDGenerator: orgpostgres.UUIDGenerator{},
		Logger:      logger,
	})

	server := httpserver.New(identityModule, orgModule, logger, normalizeAddr(cfg.HTTPPort))
	return &APIApp{
		server:   server,
		postgres: pg,
		logger:   logger,
	}, nil
}

func BuildWorker() (*WorkerApp, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger := slog.Default().With("service", cfg.ServiceName, "process", "worker")
	if strings.TrimSpace(cfg.PostgresDSN) == "" {
		return nil, errors.New("POSTGRES_DSN is required")
	}

	pg, err := db.Connect(cfg.PostgresDSN)
	if err != nil {
		return nil, err
	}
	if err := orgpostgres.Migrate(pg.DB); err != nil {
		return nil, err
	}

	bus := messaging.NewBus(logger)
	orgRepo := orgpostgres.NewRepository(pg.DB, logger)

	return &WorkerApp{
		postgres: pg,
		outboxRelay: orgworkers.OutboxRelay{
			Outbox:    orgRepo,
			Publisher: envelopePublisher{bus: bus, sourceService: cfg.ServiceName},
			Clock:     orgpostgres.SystemClock{},
			Topic:     cfg.OutboxTopic,
			BatchSize: cfg.OutboxBatchSize,
			Logger:    logger,
		},
		bus:          bus,
		auditTopic:   cfg.OutboxTopic,
		pollInterval: cfg.OutboxInterval,
		enableRelay:  cfg.EnableOutboxRelay,
		logger:       logger,
	}, nil
}

// BuildInMemory wires both modules against in-memory adapters, sharing the
// identity store through the directory port. Used by development runs and
// HTTP-surface tests.
func BuildInMemory(logger *slog.Logger) (identity.Module, organizations.Module) {
	identityStore := identitymemory.NewStore()
	orgStore := orgmemory.NewStore()

	identityModule := identity.NewModule(identity.Dependencies{
		Repository: identityStore,
		Hasher:     hash.BcryptHasher{Cost: bcrypt.MinCost},
		Tokens: token.JWTManager{
			Secret: []byte("dev-only-signing-secret"),
			Clock:  identityStore,
		},
		Guard:       organizationGuard{repo: orgStore},
		Clock:       identityStore,
		IDGenerator: identityStore,
		Logger:      logger,
	})
	identityModule.Store = identityStore

	orgModule := organizations.NewModule(organizations.Dependencies{
		Repository:  orgStore,
		Outbox:      orgStore,
		Directory:   identityDirectory{repo: identityStore},
		Clock:       orgStore,
		IDGenerator: orgStore,
		Logger:      logger,
	})
	orgModule.Store = orgStore
	return identityModule, orgModule
}

func (a *APIApp) Run(_ context.Context) error {
	if a.logger != nil {
		a.logger.Info("api app started",
			"event", "bootstrap_api_started",
			"module", "internal/app/bootstrap",
			"layer", "platform",
		)
	}
	return a.server.Start()
}

func (a *APIApp) Close() error {
	if a.postgres != nil {
		return a.postgres.Close()
	}
	return nil
}

func (w *WorkerApp) Run(ctx context.Context) error {
	if err := w.bus.Subscribe(ctx, w.auditTopic, "organization-audit", w.consumeAuditEvent); err != nil {
		return err
	}

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	w.logger.Info("worker app started",
		"event", "bootstrap_worker_started",
		"module", "internal/app/bootstrap",
		"layer", "platform",
		"poll_interval", w.pollInterval.String(),
		"relay_enabled", w.enableRelay,
	)

	for {
		if w.enableRelay {
			if err := w.outboxRelay.RunOnce(ctx); err != nil {
				return err
			}
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// consumeAuditEvent writes relayed organization events to the audit log.
func (w *WorkerApp) consumeAuditEvent(_ context.Context, event events.Envelope) error {
	w.logger.Info("organization event consumed",
		"event", "org_event_consumed",
		"module", "internal/app/bootstrap",
		"layer", "worker",
		"event_id", event.EventID,
		"event_type", event.EventType,
		"entity_id", event.EntityID,
	)
	return nil
}

func (w *WorkerApp) Close() error {
	if w.postgres != nil {
		return w.postgres.Close()
	}
	return nil
}

func normalizeAddr(port string) string {
	value := strings.TrimSpace(port)
	if value == "" {
		return ":8080"
	}
	if strings.HasPrefix(value, ":") {
		return value
	}
	return ":" + value
}
