package auth

import (
	"fmt"
	"strings"
	"time"

	"signalserver/internal/domain"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenVerifier is the boundary to the account system: it turns a bearer
// token into a user id. Token issuance and session lifecycle live with the
// account service; here we only validate HMAC-signed tokens it minted.
type TokenVerifier struct {
	secret []byte
	issuer string
}

func NewTokenVerifier(secret, issuer string) *TokenVerifier {
	return &TokenVerifier{secret: []byte(secret), issuer: issuer}
}

// Resolve validates the Authorization header value and returns the user id
// from the token subject.
func (v *TokenVerifier) Resolve(authorization string) (uuid.UUID, error) {
	if !strings.HasPrefix(strings.ToLower(authorization), "bearer ") {
		return uuid.Nil, domain.ErrNotAuthenticated
	}
	raw := strings.TrimSpace(authorization[len("Bearer "):])

	token, err := jwt.Parse(raw, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %T", token.Method)
		}
		return v.secret, nil
	}, jwt.WithIssuer(v.issuer), jwt.WithExpirationRequired())
	if err != nil || !token.Valid {
		return uuid.Nil, domain.ErrNotAuthenticated
	}

	sub, err := token.Claims.GetSubject()
	if err != nil {
		return uuid.Nil, domain.ErrNotAuthenticated
	}
	userID, err := uuid.Parse(sub)
	if err != nil {
		return uuid.Nil, domain.ErrNotAuthenticated
	}
	return userID, nil
}

// Mint issues a token for userID. Used by serverctl and tests; in production
// the account service is the issuer.
func (v *TokenVerifier) Mint(userID uuid.UUID, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Issuer:    v.issuer,
		Subject:   userID.String(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}
