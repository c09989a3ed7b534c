package organizations

import (
	"log/slog"

	httpadapter "opencast/contexts/identity-access/organization-service/adapters/http"
	"opencast/contexts/identity-access/organization-service/adapters/memory"
	"opencast/contexts/identity-access/organization-service/application"
	"opencast/contexts/identity-access/organization-service/ports"
)

// Module is the organization-service composition root exposed to runtime wiring.
type Module struct {
	Handler httpadapter.Handler
	Service application.Service
	Outbox  ports.OutboxRepository
	Store   *memory.Store
}

// Dependencies captures all runtime ports required by NewModule.
type Dependencies struct {
	Repository  ports.Repository
	Outbox      ports.OutboxRepository
	Directory   ports.IdentityDirectory
	Clock       ports.Clock
	IDGenerator ports.IDGenerator
	Logger      *slog.Logger
}

// NewModule wires the organization core and its transport handler using
// explicit ports.
func NewModule(deps Dependencies) Module {
	service := application.Service{
		Repo:      deps.Repository,
		Directory: deps.Directory,
		Clock:     deps.Clock,
		IDGen:     deps.IDGenerator,
		Logger:    deps.Logger,
	}
	return Module{
		Handler: httpadapter.Handler{
			Service: service,
			Logger:  deps.Logger,
		},
		Service: service,
		Outbox:  deps.Outbox,
	}
}

// NewInMemoryModule builds a development/testing module with in-memory adapters.
func NewInMemoryModule(logger *slog.Logger) Module {
	store := memory.NewStore()
	module := NewModule(Dependencies{
		Repository:  store,
		Outbox:      store,
		Directory:   store,
		Clock:       store,
		IDGenerator: store,
		Logger:      logger,
	})
	module.Store = store
	return module
}
