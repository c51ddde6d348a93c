package service

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/sinc-labs/janitor/internal/domain"
)

// RoleOperator is the only role allowed to drive the janitor over HTTP.
const RoleOperator = "operator"

const tokenIssuer = "janitor"

// OperatorClaims are the claims carried by operator bearer tokens.
type OperatorClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// OperatorAuth issues and validates HS256 operator tokens.
type OperatorAuth struct {
	secret []byte
}

// NewOperatorAuth returns nil when secret is empty; callers treat a nil
// OperatorAuth as "operator endpoints disabled".
func NewOperatorAuth(secret string) *OperatorAuth {
	if secret == "" {
		return nil
	}
	return &OperatorAuth{secret: []byte(secret)}
}

// Issue signs a token for subject valid for ttl.
func (a *OperatorAuth) Issue(subject string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := OperatorClaims{
		Role: RoleOperator,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    tokenIssuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

// Validate parses tokenString and requires role=operator.
func (a *OperatorAuth) Validate(tokenString string) (*OperatorClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &OperatorClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return a.secret, nil
	}, jwt.WithIssuer(tokenIssuer), jwt.WithExpirationRequired())
	if err != nil {
		return nil, &domain.ErrUnauthorized{Message: "invalid or expired token"}
	}

	claims, ok := token.Claims.(*OperatorClaims)
	if !ok || !token.Valid {
		return nil, &domain.ErrUnauthorized{Message: "invalid token"}
	}
	if claims.Role != RoleOperator {
		return nil, &domain.ErrUnauthorized{Message: "operator role required"}
	}
	return claims, nil
}
