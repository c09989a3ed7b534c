package ports

import (
	"context"
	"time"

	"opencast/contexts/identity-access/identity-service/domain/entities"
)

// Clock abstracts current time for deterministic tests.
type Clock interface {
	Now() time.Time
}

// IDGenerator abstracts UUID generation for user rows.
type IDGenerator interface {
	NewID(ctx context.Context) (string, error)
}

// PasswordHasher hides the hashing scheme from the application layer.
type PasswordHasher interface {
	Hash(password string) (string, error)
	// Compare returns a non-nil error when the password does not match.
	Compare(hash string, password string) error
}

// TokenClaims is the verified content of an access or refresh token.
type TokenClaims struct {
	UserID      string
	IsSuperuser bool
}

// TokenManager issues and verifies the access/refresh token pair. Access
// and refresh tokens are distinct audiences; one never verifies as the other.
type TokenManager interface {
	IssuePair(ctx context.Context, user entities.User) (entities.TokenPair, error)
	VerifyAccess(ctx context.Context, token string) (TokenClaims, error)
	VerifyRefresh(ctx context.Context, token string) (TokenClaims, error)
}

// OrganizationGuard answers whether a user is still referenced as an
// organization creator. Implemented at the composition root to keep the two
// identity-access services import-independent.
type OrganizationGuard interface {
	CountOrganizationsCreatedBy(ctx context.Context, userID string) (int64, error)
}

// CreateUserInput is a fully prepared user row; the password is already
// hashed when it reaches the repository.
type CreateUserInput struct {
	UserID       string
	Email        string
	Username     string
	FirstName    string
	LastName     string
	PasswordHash string
	IsSuperuser  bool
	DateJoined   time.Time
}

// UserPatch carries the profile fields a user may change. Nil means "leave
// unchanged"; email and flags are not user-editable.
type UserPatch struct {
	Username  *string
	FirstName *string
	LastName  *string
}

// Repository is the storage boundary of the account store. Email uniqueness
// is a storage constraint so concurrent registrations resolve to one winner.
type Repository interface {
	CreateUser(ctx context.Context, input CreateUserInput) (entities.User, error)
	GetUser(ctx context.Context, userID string) (entities.User, error)
	FindUserByEmail(ctx context.Context, email string) (entities.User, error)
	ListUsers(ctx context.Context) ([]entities.User, error)
	UpdateUser(ctx context.Context, userID string, patch UserPatch, now time.Time) (entities.User, error)
	UpdatePasswordHash(ctx context.Context, userID string, passwordHash string, now time.Time) error
	// DeactivateUser flips is_active off; the row is never deleted.
	DeactivateUser(ctx context.Context, userID string, now time.Time) (entities.User, error)
}
