package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"

	identityerrors "opencast/contexts/identity-access/identity-service/domain/errors"
	identityhttp "opencast/contexts/identity-access/identity-service/transport/http"
)

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req identityhttp.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeIdentityError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}
	resp, err := s.identity.Handler.RegisterHandler(r.Context(), req)
	if err != nil {
		writeIdentityDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req identityhttp.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeIdentityError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}
	resp, err := s.identity.Handler.LoginHandler(r.Context(), req)
	if err != nil {
		writeIdentityDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req identityhttp.RefreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeIdentityError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}
	resp, err := s.identity.Handler.RefreshHandler(r.Context(), req)
	if err != nil {
		writeIdentityDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleLogout is stateless: tokens are short-lived and the client discards
// them. The endpoint exists so clients have a uniform sign-out call.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.resolvePrincipal(r); !ok {
		writeIdentityError(w, http.StatusUnauthorized, "unauthorized", "a valid bearer token is required")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	principal, ok := s.resolvePrincipal(r)
	if !ok {
		writeIdentityError(w, http.StatusUnauthorized, "unauthorized", "a valid bearer token is required")
		return
	}
	resp, err := s.identity.Handler.ProfileHandler(r.Context(), principal)
	if err != nil {
		writeIdentityDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	principal, ok := s.resolvePrincipal(r)
	if !ok {
		writeIdentityError(w, http.StatusUnauthorized, "unauthorized", "a valid bearer token is required")
		return
	}
	var req identityhttp.UpdateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeIdentityError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}
	resp, err := s.identity.Handler.UpdateProfileHandler(r.Context(), principal, req)
	if err != nil {
		writeIdentityDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	principal, ok := s.resolvePrincipal(r)
	if !ok {
		writeIdentityError(w, http.StatusUnauthorized, "unauthorized", "a valid bearer token is required")
		return
	}
	var req identityhttp.ChangePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeIdentityError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}
	if err := s.identity.Handler.ChangePasswordHandler(r.Context(), principal, req); err != nil {
		writeIdentityDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	principal, ok := s.resolvePrincipal(r)
	if !ok {
		writeIdentityError(w, http.StatusUnauthorized, "unauthorized", "a valid bearer token is required")
		return
	}
	resp, err := s.identity.Handler.GetUserHandler(r.Context(), principal, r.PathValue("user_id"))
	if err != nil {
		writeIdentityDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	principal, ok := s.resolvePrincipal(r)
	if !ok {
		writeIdentityError(w, http.StatusUnauthorized, "unauthorized", "a valid bearer token is required")
		return
	}
	resp, err := s.identity.Handler.ListUsersHandler(r.Context(), principal)
	if err != nil {
		writeIdentityDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleDeactivateUser(w http.ResponseWriter, r *http.Request) {
	principal, ok := s.resolvePrincipal(r)
	if !ok {
		writeIdentityError(w, http.StatusUnauthorized, "unauthorized", "a valid bearer token is required")
		return
	}
	if err := s.identity.Handler.DeactivateUserHandler(r.Context(), principal, r.PathValue("user_id")); err != nil {
		writeIdentityDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeIdentityDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, identityerrors.ErrEmailInvalid),
		errors.Is(err, identityerrors.ErrUsernameRequired),
		errors.Is(err, identityerrors.ErrPasswordTooWeak),
		errors.Is(err, identityerrors.ErrInvalidUserInput):
		writeIdentityError(w, http.StatusBadRequest, "validation_failed", err.Error())
	case errors.Is(err, identityerrors.ErrEmailTaken):
		writeIdentityError(w, http.StatusConflict, "email_taken", err.Error())
	case errors.Is(err, identityerrors.ErrInvalidCredentials):
		writeIdentityError(w, http.StatusUnauthorized, "invalid_credentials", err.Error())
	case errors.Is(err, identityerrors.ErrInvalidToken):
		writeIdentityError(w, http.StatusUnauthorized, "invalid_token", err.Error())
	case errors.Is(err, identityerrors.ErrUserNotFound):
		writeIdentityError(w, http.StatusNotFound, "user_not_found", err.Error())
	case errors.Is(err, identityerrors.ErrUserProtected):
		writeIdentityError(w, http.StatusConflict, "user_protected", err.Error())
	case errors.Is(err, identityerrors.ErrForbidden):
		writeIdentityError(w, http.StatusForbidden, "forbidden", err.Error())
	default:
		writeIdentityError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func writeIdentityError(w http.ResponseWriter, status int, code string, message string) {
	writeJSON(w, status, identityhttp.ErrorResponse{
		Code:    code,
		Message: message,
	})
}
