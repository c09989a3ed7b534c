package application

import (
	"context"
	"errors"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"opencast/contexts/identity-access/identity-service/domain/entities"
	domainerrors "opencast/contexts/identity-access/identity-service/domain/errors"
	"opencast/contexts/identity-access/identity-service/ports"
)

const minPasswordLength = 8

// Service is the account store and authentication core. Passwords are
// hashed before they reach storage and never read back out; authentication
// failures collapse to one error so callers cannot probe which accounts exist.
type Service struct {
	Repo   ports.Repository
	Hasher ports.PasswordHasher
	Tokens ports.TokenManager
	Guard  ports.OrganizationGuard
	Clock  ports.Clock
	IDGen  ports.IDGenerator
	Logger *slog.Logger
}

// Register creates an account and signs it in. Duplicate email is surfaced
// as a conflict regardless of whether the check or the storage constraint
// catches it first.
func (s Service) Register(
	ctx context.Context,
	email string,
	username string,
	password string,
	firstName string,
	lastName string,
) (entities.User, entities.TokenPair, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	username = strings.TrimSpace(username)
	if _, err := mail.ParseAddress(email); err != nil {
		return entities.User{}, entities.TokenPair{}, domainerrors.ErrEmailInvalid
	}
	if username == "" {
		return entities.User{}, entities.TokenPair{}, domainerrors.ErrUsernameRequired
	}
	if len(password) < minPasswordLength {
		return entities.User{}, entities.TokenPair{}, domainerrors.ErrPasswordTooWeak
	}

	hash, err := s.Hasher.Hash(password)
	if err != nil {
		return entities.User{}, entities.TokenPair{}, err
	}
	userID, err := s.IDGen.NewID(ctx)
	if err != nil {
		return entities.User{}, entities.TokenPair{}, err
	}

	user, err := s.Repo.CreateUser(ctx, ports.CreateUserInput{
		UserID:       userID,
		Email:        email,
		Username:     username,
		FirstName:    strings.TrimSpace(firstName),
		LastName:     strings.TrimSpace(lastName),
		PasswordHash: hash,
		DateJoined:   s.now(),
	})
	if err != nil {
		return entities.User{}, entities.TokenPair{}, err
	}

	pair, err := s.Tokens.IssuePair(ctx, user)
	if err != nil {
		return entities.User{}, entities.TokenPair{}, err
	}

	ResolveLogger(s.Logger).Info("user registered",
		"event", "user_registered",
		"module", "identity-access/identity-service",
		"layer", "application",
		"user_id", user.UserID,
		"username", user.Username,
	)
	return user, pair, nil
}

// Authenticate verifies credentials and issues a token pair. Unknown email,
// wrong password and deactivated account are indistinguishable to the caller.
func (s Service) Authenticate(
	ctx context.Context,
	email string,
	password string,
) (entities.User, entities.TokenPair, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	user, err := s.Repo.FindUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domainerrors.ErrUserNotFound) {
			return entities.User{}, entities.TokenPair{}, domainerrors.ErrInvalidCredentials
		}
		return entities.User{}, entities.TokenPair{}, err
	}
	if !user.IsActive {
		return entities.User{}, entities.TokenPair{}, domainerrors.ErrInvalidCredentials
	}
	if err := s.Hasher.Compare(user.PasswordHash, password); err != nil {
		return entities.User{}, entities.TokenPair{}, domainerrors.ErrInvalidCredentials
	}

	pair, err := s.Tokens.IssuePair(ctx, user)
	if err != nil {
		return entities.User{}, entities.TokenPair{}, err
	}

	ResolveLogger(s.Logger).Info("user authenticated",
		"event", "user_authenticated",
		"module", "identity-access/identity-service",
		"layer", "application",
		"user_id", user.UserID,
	)
	return user, pair, nil
}

// Refresh exchanges a valid refresh token for a fresh pair. The user is
// reloaded so a deactivation since issuance invalidates the token.
func (s Service) Refresh(ctx context.Context, refreshToken string) (entities.TokenPair, error) {
	claims, err := s.Tokens.VerifyRefresh(ctx, refreshToken)
	if err != nil {
		return entities.TokenPair{}, domainerrors.ErrInvalidToken
	}
	user, err := s.Repo.GetUser(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, domainerrors.ErrUserNotFound) {
			return entities.TokenPair{}, domainerrors.ErrInvalidToken
		}
		return entities.TokenPair{}, err
	}
	if !user.IsActive {
		return entities.TokenPair{}, domainerrors.ErrInvalidToken
	}
	return s.Tokens.IssuePair(ctx, user)
}

// ResolvePrincipal validates an access token and returns the caller
// identity. This is the only identity contract other layers depend on.
func (s Service) ResolvePrincipal(ctx context.Context, accessToken string) (entities.Principal, error) {
	claims, err := s.Tokens.VerifyAccess(ctx, accessToken)
	if err != nil {
		return entities.Principal{}, domainerrors.ErrInvalidToken
	}
	user, err := s.Repo.GetUser(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, domainerrors.ErrUserNotFound) {
			return entities.Principal{}, domainerrors.ErrInvalidToken
		}
		return entities.Principal{}, err
	}
	if !user.IsActive {
		return entities.Principal{}, domainerrors.ErrInvalidToken
	}
	return entities.Principal{UserID: user.UserID, IsSuperuser: user.IsSuperuser}, nil
}

// GetUser hides existence: only the user themself or a superuser may read a
// record, everyone else gets NotFound.
func (s Service) GetUser(ctx context.Context, principal entities.Principal, userID string) (entities.User, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return entities.User{}, domainerrors.ErrUserNotFound
	}
	if !principal.IsSuperuser && principal.UserID != userID {
		return entities.User{}, domainerrors.ErrUserNotFound
	}
	return s.Repo.GetUser(ctx, userID)
}

// Profile returns the caller's own record.
func (s Service) Profile(ctx context.Context, principal entities.Principal) (entities.User, error) {
	return s.Repo.GetUser(ctx, principal.UserID)
}

// UpdateProfile edits the caller's own username and name fields.
func (s Service) UpdateProfile(
	ctx context.Context,
	principal entities.Principal,
	patch ports.UserPatch,
) (entities.User, error) {
	if patch.Username != nil && strings.TrimSpace(*patch.Username) == "" {
		return entities.User{}, domainerrors.ErrUsernameRequired
	}
	user, err := s.Repo.UpdateUser(ctx, principal.UserID, patch, s.now())
	if err != nil {
		return entities.User{}, err
	}
	ResolveLogger(s.Logger).Info("user profile updated",
		"event", "user_profile_updated",
		"module", "identity-access/identity-service",
		"layer", "application",
		"user_id", user.UserID,
	)
	return user, nil
}

// ChangePassword requires the current password to verify before the new
// hash is stored.
func (s Service) ChangePassword(
	ctx context.Context,
	principal entities.Principal,
	oldPassword string,
	newPassword string,
) error {
	user, err := s.Repo.GetUser(ctx, principal.UserID)
	if err != nil {
		return err
	}
	if err := s.Hasher.Compare(user.PasswordHash, oldPassword); err != nil {
		return domainerrors.ErrInvalidCredentials
	}
	if len(newPassword) < minPasswordLength {
		return domainerrors.ErrPasswordTooWeak
	}
	hash, err := s.Hasher.Hash(newPassword)
	if err != nil {
		return err
	}
	if err := s.Repo.UpdatePasswordHash(ctx, user.UserID, hash, s.now()); err != nil {
		return err
	}
	ResolveLogger(s.Logger).Info("user password changed",
		"event", "user_password_changed",
		"module", "identity-access/identity-service",
		"layer", "application",
		"user_id", user.UserID,
	)
	return nil
}

// ListUsers is the superuser-only directory listing.
func (s Service) ListUsers(ctx context.Context, principal entities.Principal) ([]entities.User, error) {
	if !principal.IsSuperuser {
		return nil, domainerrors.ErrForbidden
	}
	return s.Repo.ListUsers(ctx)
}

// DeactivateUser retires an account (self or superuser). A user who still
// owns organization records as their creator is protected from deactivation
// so the reference never dangles.
func (s Service) DeactivateUser(ctx context.Context, principal entities.Principal, userID string) error {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return domainerrors.ErrUserNotFound
	}
	if !principal.IsSuperuser && principal.UserID != userID {
		return domainerrors.ErrUserNotFound
	}
	user, err := s.Repo.GetUser(ctx, userID)
	if err != nil {
		return err
	}
	if s.Guard != nil {
		count, err := s.Guard.CountOrganizationsCreatedBy(ctx, user.UserID)
		if err != nil {
			return err
		}
		if count > 0 {
			return domainerrors.ErrUserProtected
		}
	}
	if _, err := s.Repo.DeactivateUser(ctx, user.UserID, s.now()); err != nil {
		return err
	}
	ResolveLogger(s.Logger).Info("user deactivated",
		"event", "user_deactivated",
		"module", "identity-access/identity-service",
		"layer", "application",
		"user_id", user.UserID,
		"actor_id", principal.UserID,
	)
	return nil
}

func (s Service) now() time.Time {
	if s.Clock == nil {
		return time.Now().UTC()
	}
	return s.Clock.Now().UTC()
}
