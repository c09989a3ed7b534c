package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"

	orgerrors "opencast/contexts/identity-access/organization-service/domain/errors"
	orghttp "opencast/contexts/identity-access/organization-service/transport/http"
)

func (s *Server) handleListRoles(w http.ResponseWriter, r *http.Request) {
	resp, err := s.organizations.Handler.ListRolesHandler(r.Context())
	if err != nil {
		writeOrganizationDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCreateOrganization(w http.ResponseWriter, r *http.Request) {
	principal, ok := s.resolvePrincipal(r)
	if !ok {
		writeOrganizationError(w, http.StatusUnauthorized, "unauthorized", "a valid bearer token is required")
		return
	}
	var req orghttp.CreateOrganizationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeOrganizationError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}
	resp, err := s.organizations.Handler.CreateOrganizationHandler(r.Context(), orgPrincipal(principal), req)
	if err != nil {
		writeOrganizationDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleGetOrganization(w http.ResponseWriter, r *http.Request) {
	principal, ok := s.resolvePrincipal(r)
	if !ok {
		writeOrganizationError(w, http.StatusUnauthorized, "unauthorized", "a valid bearer token is required")
		return
	}
	resp, err := s.organizations.Handler.GetOrganizationHandler(r.Context(), orgPrincipal(principal), r.PathValue("org_id"))
	if err != nil {
		writeOrganizationDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListOrganizations(w http.ResponseWriter, r *http.Request) {
	principal, ok := s.resolvePrincipal(r)
	if !ok {
		writeOrganizationError(w, http.StatusUnauthorized, "unauthorized", "a valid bearer token is required")
		return
	}
	resp, err := s.organizations.Handler.ListOrganizationsHandler(r.Context(), orgPrincipal(principal))
	if err != nil {
		writeOrganizationDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListAllOrganizations(w http.ResponseWriter, r *http.Request) {
	principal, ok := s.resolvePrincipal(r)
	if !ok {
		writeOrganizationError(w, http.StatusUnauthorized, "unauthorized", "a valid bearer token is required")
		return
	}
	resp, err := s.organizations.Handler.ListAllOrganizationsHandler(r.Context(), orgPrincipal(principal))
	if err != nil {
		writeOrganizationDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleUpdateOrganization(w http.ResponseWriter, r *http.Request) {
	principal, ok := s.resolvePrincipal(r)
	if !ok {
		writeOrganizationError(w, http.StatusUnauthorized, "unauthorized", "a valid bearer token is required")
		return
	}
	var req orghttp.UpdateOrganizationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeOrganizationError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}
	resp, err := s.organizations.Handler.UpdateOrganizationHandler(r.Context(), orgPrincipal(principal), r.PathValue("org_id"), req)
	if err != nil {
		writeOrganizationDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleDeactivateOrganization(w http.ResponseWriter, r *http.Request) {
	principal, ok := s.resolvePrincipal(r)
	if !ok {
		writeOrganizationError(w, http.StatusUnauthorized, "unauthorized", "a valid bearer token is required")
		return
	}
	if err := s.organizations.Handler.DeactivateOrganizationHandler(r.Context(), orgPrincipal(principal), r.PathValue("org_id")); err != nil {
		writeOrganizationDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListMembers(w http.ResponseWriter, r *http.Request) {
	principal, ok := s.resolvePrincipal(r)
	if !ok {
		writeOrganizationError(w, http.StatusUnauthorized, "unauthorized", "a valid bearer token is required")
		return
	}
	resp, err := s.organizations.Handler.ListMembersHandler(r.Context(), orgPrincipal(principal), r.PathValue("org_id"))
	if err != nil {
		writeOrganizationDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleAddMember(w http.ResponseWriter, r *http.Request) {
	principal, ok := s.resolvePrincipal(r)
	if !ok {
		writeOrganizationError(w, http.StatusUnauthorized, "unauthorized", "a valid bearer token is required")
		return
	}
	var req orghttp.AddMemberRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeOrganizationError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}
	resp, err := s.organizations.Handler.AddMemberHandler(r.Context(), orgPrincipal(principal), r.PathValue("org_id"), req)
	if err != nil {
		writeOrganizationDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleRemoveMember(w http.ResponseWriter, r *http.Request) {
	principal, ok := s.resolvePrincipal(r)
	if !ok {
		writeOrganizationError(w, http.StatusUnauthorized, "unauthorized", "a valid bearer token is required")
		return
	}
	if err := s.organizations.Handler.RemoveMemberHandler(r.Context(), orgPrincipal(principal), r.PathValue("org_id"), r.PathValue("user_id")); err != nil {
		writeOrganizationDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleUpdateMemberRole(w http.ResponseWriter, r *http.Request) {
	principal, ok := s.resolvePrincipal(r)
	if !ok {
		writeOrganizationError(w, http.StatusUnauthorized, "unauthorized", "a valid bearer token is required")
		return
	}
	var req orghttp.UpdateMemberRoleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeOrganizationError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}
	resp, err := s.organizations.Handler.UpdateMemberRoleHandler(r.Context(), orgPrincipal(principal), r.PathValue("membership_id"), req)
	if err != nil {
		writeOrganizationDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListUserMemberships(w http.ResponseWriter, r *http.Request) {
	principal, ok := s.resolvePrincipal(r)
	if !ok {
		writeOrganizationError(w, http.StatusUnauthorized, "unauthorized", "a valid bearer token is required")
		return
	}
	resp, err := s.organizations.Handler.ListUserMembershipsHandler(r.Context(), orgPrincipal(principal))
	if err != nil {
		writeOrganizationDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeOrganizationDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, orgerrors.ErrInvalidOrganizationInput),
		errors.Is(err, orgerrors.ErrInvalidMembershipInput),
		errors.Is(err, orgerrors.ErrMemberEmailUnknown),
		errors.Is(err, orgerrors.ErrRoleNotFound):
		writeOrganizationError(w, http.StatusBadRequest, "validation_failed", err.Error())
	case errors.Is(err, orgerrors.ErrOrganizationNotFound):
		writeOrganizationError(w, http.StatusNotFound, "organization_not_found", err.Error())
	case errors.Is(err, orgerrors.ErrMembershipNotFound):
		writeOrganizationError(w, http.StatusNotFound, "membership_not_found", err.Error())
	case errors.Is(err, orgerrors.ErrSlugTaken):
		writeOrganizationError(w, http.StatusConflict, "slug_taken", err.Error())
	case errors.Is(err, orgerrors.ErrMembershipExists):
		writeOrganizationError(w, http.StatusConflict, "membership_exists", err.Error())
	case errors.Is(err, orgerrors.ErrLastOwner):
		writeOrganizationError(w, http.StatusConflict, "last_owner_protection", err.Error())
	case errors.Is(err, orgerrors.ErrForbidden):
		writeOrganizationError(w, http.StatusForbidden, "forbidden", err.Error())
	default:
		writeOrganizationError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func writeOrganizationError(w http.ResponseWriter, status int, code string, message string) {
	writeJSON(w, status, orghttp.ErrorResponse{
		Code:    code,
		Message: message,
	})
}
