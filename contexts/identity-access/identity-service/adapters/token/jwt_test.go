package token

import (
	"context"
	"errors"
	"testing"
	"time"

	"opencast/contexts/identity-access/identity-service/domain/entities"
	domainerrors "opencast/contexts/identity-access/identity-service/domain/errors"
)

type fixedClock struct {
	now time.Time
}

func (c *fixedClock) Now() time.Time { return c.now }

func newManager(clock *fixedClock) JWTManager {
	return JWTManager{
		Secret:     []byte("test-signing-secret"),
		AccessTTL:  15 * time.Minute,
		RefreshTTL: 24 * time.Hour,
		Clock:      clock,
	}
}

func testUser() entities.User {
	return entities.User{UserID: "user_000001", IsSuperuser: true}
}

func TestIssuePairRoundTrip(t *testing.T) {
	clock := &fixedClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	manager := newManager(clock)

	pair, err := manager.IssuePair(context.Background(), testUser())
	if err != nil {
		t.Fatalf("issue pair failed: %v", err)
	}
	if !pair.AccessExpiresAt.Equal(clock.now.Add(15 * time.Minute)) {
		t.Fatalf("unexpected access expiry %v", pair.AccessExpiresAt)
	}

	claims, err := manager.VerifyAccess(context.Background(), pair.AccessToken)
	if err != nil {
		t.Fatalf("verify access failed: %v", err)
	}
	if claims.UserID != "user_000001" || !claims.IsSuperuser {
		t.Fatalf("unexpected claims %+v", claims)
	}
	if _, err := manager.VerifyRefresh(context.Background(), pair.RefreshToken); err != nil {
		t.Fatalf("verify refresh failed: %v", err)
	}
}

func TestTokenTypesAreNotInterchangeable(t *testing.T) {
	manager := newManager(&fixedClock{now: time.Now().UTC()})
	pair, err := manager.IssuePair(context.Background(), testUser())
	if err != nil {
		t.Fatalf("issue pair failed: %v", err)
	}

	if _, err := manager.VerifyAccess(context.Background(), pair.RefreshToken); !errors.Is(err, domainerrors.ErrInvalidToken) {
		t.Fatalf("refresh token must not verify as access, got %v", err)
	}
	if _, err := manager.VerifyRefresh(context.Background(), pair.AccessToken); !errors.Is(err, domainerrors.ErrInvalidToken) {
		t.Fatalf("access token must not verify as refresh, got %v", err)
	}
}

func TestExpiredAccessTokenRejected(t *testing.T) {
	clock := &fixedClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	manager := newManager(clock)
	pair, err := manager.IssuePair(context.Background(), testUser())
	if err != nil {
		t.Fatalf("issue pair failed: %v", err)
	}

	clock.now = clock.now.Add(16 * time.Minute)
	if _, err := manager.VerifyAccess(context.Background(), pair.AccessToken); !errors.Is(err, domainerrors.ErrInvalidToken) {
		t.Fatalf("expired access token must be rejected, got %v", err)
	}
	// The refresh token is still inside its window.
	if _, err := manager.VerifyRefresh(context.Background(), pair.RefreshToken); err != nil {
		t.Fatalf("refresh token should still verify: %v", err)
	}
}

func TestForeignSecretRejected(t *testing.T) {
	clock := &fixedClock{now: time.Now().UTC()}
	manager := newManager(clock)
	other := manager
	other.Secret = []byte("different-secret")

	pair, err := other.IssuePair(context.Background(), testUser())
	if err != nil {
		t.Fatalf("issue pair failed: %v", err)
	}
	if _, err := manager.VerifyAccess(context.Background(), pair.AccessToken); !errors.Is(err, domainerrors.ErrInvalidToken) {
		t.Fatalf("token signed with another secret must be rejected, got %v", err)
	}
}
