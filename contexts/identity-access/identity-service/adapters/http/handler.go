package httpadapter

import (
	"context"
	"log/slog"

	"opencast/contexts/identity-access/identity-service/application"
	"opencast/contexts/identity-access/identity-service/domain/entities"
	"opencast/contexts/identity-access/identity-service/ports"
	httptransport "opencast/contexts/identity-access/identity-service/transport/http"
)

// Handler maps HTTP DTOs to application service calls.
type Handler struct {
	Service application.Service
	Logger  *slog.Logger
}

func (h Handler) RegisterHandler(
	ctx context.Context,
	request httptransport.RegisterRequest,
) (httptransport.AuthResponse, error) {
	logger := application.ResolveLogger(h.Logger)
	logger.Debug("http register received",
		"event", "identity_http_register_received",
		"module", "identity-access/identity-service",
		"layer", "transport",
		"username", request.Username,
	)

	user, pair, err := h.Service.Register(ctx, request.Email, request.Username, request.Password, request.FirstName, request.LastName)
	if err != nil {
		logger.Error("http register failed",
			"event", "identity_http_register_failed",
			"module", "identity-access/identity-service",
			"layer", "transport",
			"username", request.Username,
			"error", err.Error(),
		)
		return httptransport.AuthResponse{}, err
	}
	return authResponse(user, pair), nil
}

func (h Handler) LoginHandler(
	ctx context.Context,
	request httptransport.LoginRequest,
) (httptransport.AuthResponse, error) {
	logger := application.ResolveLogger(h.Logger)
	user, pair, err := h.Service.Authenticate(ctx, request.Email, request.Password)
	if err != nil {
		logger.Info("http login rejected",
			"event", "identity_http_login_rejected",
			"module", "identity-access/identity-service",
			"layer", "transport",
			"error", err.Error(),
		)
		return httptransport.AuthResponse{}, err
	}
	return authResponse(user, pair), nil
}

func (h Handler) RefreshHandler(
	ctx context.Context,
	request httptransport.RefreshRequest,
) (httptransport.TokenPairResponse, error) {
	pair, err := h.Service.Refresh(ctx, request.RefreshToken)
	if err != nil {
		return httptransport.TokenPairResponse{}, err
	}
	return tokenPairResponse(pair), nil
}

func (h Handler) ProfileHandler(
	ctx context.Context,
	principal entities.Principal,
) (httptransport.UserResponse, error) {
	user, err := h.Service.Profile(ctx, principal)
	if err != nil {
		return httptransport.UserResponse{}, err
	}
	return userResponse(user), nil
}

func (h Handler) UpdateProfileHandler(
	ctx context.Context,
	principal entities.Principal,
	request httptransport.UpdateProfileRequest,
) (httptransport.UserResponse, error) {
	user, err := h.Service.UpdateProfile(ctx, principal, ports.UserPatch{
		Username:  request.Username,
		FirstName: request.FirstName,
		LastName:  request.LastName,
	})
	if err != nil {
		return httptransport.UserResponse{}, err
	}
	return userResponse(user), nil
}

func (h Handler) ChangePasswordHandler(
	ctx context.Context,
	principal entities.Principal,
	request httptransport.ChangePasswordRequest,
) error {
	return h.Service.ChangePassword(ctx, principal, request.OldPassword, request.NewPassword)
}

func (h Handler) GetUserHandler(
	ctx context.Context,
	principal entities.Principal,
	userID string,
) (httptransport.UserResponse, error) {
	user, err := h.Service.GetUser(ctx, principal, userID)
	if err != nil {
		return httptransport.UserResponse{}, err
	}
	return userResponse(user), nil
}

func (h Handler) ListUsersHandler(
	ctx context.Context,
	principal entities.Principal,
) (httptransport.ListUsersResponse, error) {
	users, err := h.Service.ListUsers(ctx, principal)
	if err != nil {
		return httptransport.ListUsersResponse{}, err
	}
	items := make([]httptransport.UserResponse, 0, len(users))
	for _, user := range users {
		items = append(items, userResponse(user))
	}
	return httptransport.ListUsersResponse{Users: items}, nil
}

func (h Handler) DeactivateUserHandler(
	ctx context.Context,
	principal entities.Principal,
	userID string,
) error {
	logger := application.ResolveLogger(h.Logger)
	if err := h.Service.DeactivateUser(ctx, principal, userID); err != nil {
		logger.Error("http deactivate user failed",
			"event", "identity_http_deactivate_failed",
			"module", "identity-access/identity-service",
			"layer", "transport",
			"actor_id", principal.UserID,
			"user_id", userID,
			"error", err.Error(),
		)
		return err
	}
	return nil
}

func userResponse(user entities.User) httptransport.UserResponse {
	return httptransport.UserResponse{
		UserID:      user.UserID,
		Email:       user.Email,
		Username:    user.Username,
		FirstName:   user.FirstName,
		LastName:    user.LastName,
		FullName:    user.FullName(),
		IsActive:    user.IsActive,
		IsSuperuser: user.IsSuperuser,
		DateJoined:  user.DateJoined,
		UpdatedAt:   user.UpdatedAt,
	}
}

func tokenPairResponse(pair entities.TokenPair) httptransport.TokenPairResponse {
	return httptransport.TokenPairResponse{
		AccessToken:      pair.AccessToken,
		RefreshToken:     pair.RefreshToken,
		AccessExpiresAt:  pair.AccessExpiresAt,
		RefreshExpiresAt: pair.RefreshExpiresAt,
	}
}

func authResponse(user entities.User, pair entities.TokenPair) httptransport.AuthResponse {
	return httptransport.AuthResponse{
		User:   userResponse(user),
		Tokens: tokenPairResponse(pair),
	}
}
