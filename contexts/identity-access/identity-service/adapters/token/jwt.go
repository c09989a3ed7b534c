package token

import (
	"context"
	"errors"
	"time"

	"opencast/contexts/identity-access/identity-service/domain/entities"
	domainerrors "opencast/contexts/identity-access/identity-service/domain/errors"
	"opencast/contexts/identity-access/identity-service/ports"

	"github.com/golang-jwt/jwt/v5"
)

const (
	tokenTypeAccess  = "access"
	tokenTypeRefresh = "refresh"
)

type claims struct {
	TokenType   string `json:"token_type"`
	IsSuperuser bool   `json:"is_superuser"`
	jwt.RegisteredClaims
}

// JWTManager implements ports.TokenManager with HMAC-signed JWTs. Access
// and refresh tokens carry a token_type claim so one cannot stand in for
// the other.
type JWTManager struct {
	Secret     []byte
	Issuer     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	Clock      ports.Clock
}

func (m JWTManager) IssuePair(_ context.Context, user entities.User) (entities.TokenPair, error) {
	now := m.now()
	accessExpiry := now.Add(m.accessTTL())
	refreshExpiry := now.Add(m.refreshTTL())

	access, err := m.sign(user, tokenTypeAccess, now, accessExpiry)
	if err != nil {
		return entities.TokenPair{}, err
	}
	refresh, err := m.sign(user, tokenTypeRefresh, now, refreshExpiry)
	if err != nil {
		return entities.TokenPair{}, err
	}
	return entities.TokenPair{
		AccessToken:      access,
		RefreshToken:     refresh,
		AccessExpiresAt:  accessExpiry,
		RefreshExpiresAt: refreshExpiry,
	}, nil
}

func (m JWTManager) VerifyAccess(_ context.Context, token string) (ports.TokenClaims, error) {
	return m.verify(token, tokenTypeAccess)
}

func (m JWTManager) VerifyRefresh(_ context.Context, token string) (ports.TokenClaims, error) {
	return m.verify(token, tokenTypeRefresh)
}

func (m JWTManager) sign(user entities.User, tokenType string, issuedAt, expiresAt time.Time) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		TokenType:   tokenType,
		IsSuperuser: user.IsSuperuser,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.issuer(),
			Subject:   user.UserID,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	})
	return token.SignedString(m.Secret)
}

func (m JWTManager) verify(raw string, wantType string) (ports.TokenClaims, error) {
	parsed, err := jwt.ParseWithClaims(raw, &claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return m.Secret, nil
	},
		jwt.WithIssuer(m.issuer()),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil || !parsed.Valid {
		return ports.TokenClaims{}, domainerrors.ErrInvalidToken
	}
	payload, ok := parsed.Claims.(*claims)
	if !ok || payload.TokenType != wantType || payload.Subject == "" {
		return ports.TokenClaims{}, domainerrors.ErrInvalidToken
	}
	return ports.TokenClaims{
		UserID:      payload.Subject,
		IsSuperuser: payload.IsSuperuser,
	}, nil
}

func (m JWTManager) now() time.Time {
	if m.Clock == nil {
		return time.Now().UTC()
	}
	return m.Clock.Now().UTC()
}

func (m JWTManager) issuer() string {
	if m.Issuer == "" {
		return "opencast"
	}
	return m.Issuer
}

func (m JWTManager) accessTTL() time.Duration {
	if m.AccessTTL <= 0 {
		return 15 * time.Minute
	}
	return m.AccessTTL
}

func (m JWTManager) refreshTTL() time.Duration {
	if m.RefreshTTL <= 0 {
		return 7 * 24 * time.Hour
	}
	return m.RefreshTTL
}
