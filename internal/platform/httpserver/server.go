package httpserver

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	identity "opencast/contexts/identity-access/identity-service"
	identityentities "opencast/contexts/identity-access/identity-service/domain/entities"
	organizations "opencast/contexts/identity-access/organization-service"
	orgentities "opencast/contexts/identity-access/organization-service/domain/entities"

	httpSwagger "github.com/swaggo/http-swagger"
	_ "opencast/internal/platform/httpserver/docs"
)

type Server struct {
	mux           *http.ServeMux
	logger        *slog.Logger
	addr          string
	identity      identity.Module
	organizations organizations.Module
}

func New(
	identityModule identity.Module,
	organizationsModule organizations.Module,
	logger *slog.Logger,
	addr string,
) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if addr == "" {
		addr = ":8080"
	}

	s := &Server{
		mux:           http.NewServeMux(),
		logger:        logger,
		addr:          addr,
		identity:      identityModule,
		organizations: organizationsModule,
	}
	s.registerRoutes()
	return s
}

func (s *Server) Start() error {
	s.logger.Info("http server starting",
		"event", "http_server_starting",
		"module", "internal/platform/httpserver",
		"layer", "platform",
		"addr", s.addr,
	)
	return http.ListenAndServe(s.addr, s.mux)
}

// Handler exposes the mux for httptest-based suites.
func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) registerRoutes() {
	s.mux.Handle("/swagger/", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	s.mux.HandleFunc("POST /api/auth/register", s.handleRegister)
	s.mux.HandleFunc("POST /api/auth/login", s.handleLogin)
	s.mux.HandleFunc("POST /api/auth/refresh", s.handleRefresh)
	s.mux.HandleFunc("POST /api/auth/logout", s.handleLogout)

	s.mux.HandleFunc("GET /api/users", s.handleListUsers)
	s.mux.HandleFunc("GET /api/users/me", s.handleProfile)
	s.mux.HandleFunc("PATCH /api/users/me", s.handleUpdateProfile)
	s.mux.HandleFunc("POST /api/users/change-password", s.handleChangePassword)
	s.mux.HandleFunc("GET /api/users/{user_id}", s.handleGetUser)
	s.mux.HandleFunc("DELETE /api/users/{user_id}", s.handleDeactivateUser)

	s.mux.HandleFunc("GET /api/roles", s.handleListRoles)

	s.mux.HandleFunc("GET /api/orgs", s.handleListOrganizations)
	s.mux.HandleFunc("POST /api/orgs", s.handleCreateOrganization)
	s.mux.HandleFunc("GET /api/orgs/all", s.handleListAllOrganizations)
	s.mux.HandleFunc("GET /api/orgs/{org_id}", s.handleGetOrganization)
	s.mux.HandleFunc("PATCH /api/orgs/{org_id}", s.handleUpdateOrganization)
	s.mux.HandleFunc("DELETE /api/orgs/{org_id}", s.handleDeactivateOrganization)

	s.mux.HandleFunc("GET /api/orgs/{org_id}/members", s.handleListMembers)
	s.mux.HandleFunc("POST /api/orgs/{org_id}/members", s.handleAddMember)
	s.mux.HandleFunc("DELETE /api/orgs/{org_id}/members/{user_id}", s.handleRemoveMember)

	s.mux.HandleFunc("GET /api/memberships", s.handleListUserMemberships)
	s.mux.HandleFunc("PATCH /api/memberships/{membership_id}", s.handleUpdateMemberRole)
}

// resolvePrincipal validates the bearer token once per request. All
// downstream services receive the resolved principal, never the token.
func (s *Server) resolvePrincipal(r *http.Request) (identityentities.Principal, bool) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return identityentities.Principal{}, false
	}
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return identityentities.Principal{}, false
	}
	principal, err := s.identity.Service.ResolvePrincipal(r.Context(), strings.TrimSpace(token))
	if err != nil {
		return identityentities.Principal{}, false
	}
	return principal, true
}

func orgPrincipal(principal identityentities.Principal) orgentities.Principal {
	return orgentities.Principal{
		UserID:      principal.UserID,
		IsSuperuser: principal.IsSuperuser,
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
