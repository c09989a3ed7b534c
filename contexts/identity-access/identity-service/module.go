package identity

import (
	"log/slog"
	"time"

	"opencast/contexts/identity-access/identity-service/adapters/hash"
	httpadapter "opencast/contexts/identity-access/identity-service/adapters/http"
	"opencast/contexts/identity-access/identity-service/adapters/memory"
	"opencast/contexts/identity-access/identity-service/adapters/token"
	"opencast/contexts/identity-access/identity-service/application"
	"opencast/contexts/identity-access/identity-service/ports"

	"golang.org/x/crypto/bcrypt"
)

// Module is the identity-service composition root exposed to runtime wiring.
type Module struct {
	Handler httpadapter.Handler
	Service application.Service
	Store   *memory.Store
}

// Dependencies captures all runtime ports required by NewModule.
type Dependencies struct {
	Repository  ports.Repository
	Hasher      ports.PasswordHasher
	Tokens      ports.TokenManager
	Guard       ports.OrganizationGuard
	Clock       ports.Clock
	IDGenerator ports.IDGenerator
	Logger      *slog.Logger
}

// NewModule wires the account store and its transport handler using
// explicit ports.
func NewModule(deps Dependencies) Module {
	service := application.Service{
		Repo:   deps.Repository,
		Hasher: deps.Hasher,
		Tokens: deps.Tokens,
		Guard:  deps.Guard,
		Clock:  deps.Clock,
		IDGen:  deps.IDGenerator,
		Logger: deps.Logger,
	}
	return Module{
		Handler: httpadapter.Handler{
			Service: service,
			Logger:  deps.Logger,
		},
		Service: service,
	}
}

// NewInMemoryModule builds a development/testing module with in-memory
// adapters, a static signing secret and cheap hashing.
func NewInMemoryModule(logger *slog.Logger) Module {
	store := memory.NewStore()
	module := NewModule(Dependencies{
		Repository: store,
		Hasher:     hash.BcryptHasher{Cost: bcrypt.MinCost},
		Tokens: token.JWTManager{
			Secret:     []byte("dev-only-signing-secret"),
			AccessTTL:  15 * time.Minute,
			RefreshTTL: 7 * 24 * time.Hour,
			Clock:      store,
		},
		Clock:       store,
		IDGenerator: store,
		Logger:      logger,
	})
	module.Store = store
	return module
}
