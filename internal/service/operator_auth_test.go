package service

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/sinc-labs/janitor/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOperatorAuth_RoundTrip(t *testing.T) {
	auth := NewOperatorAuth("s3cret")
	token, err := auth.Issue("oncall", time.Minute)
	require.NoError(t, err)

	claims, err := auth.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, "oncall", claims.Subject)
	assert.Equal(t, RoleOperator, claims.Role)
}

func TestOperatorAuth_Rejects(t *testing.T) {
	auth := NewOperatorAuth("s3cret")
	expired, _ := auth.Issue("oncall", -time.Minute)
	otherKey, _ := NewOperatorAuth("other").Issue("oncall", time.Minute)

	viewer := jwt.NewWithClaims(jwt.SigningMethodHS256, OperatorClaims{
		Role: "viewer",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
		},
	})
	wrongRole, _ := viewer.SignedString([]byte("s3cret"))

	for name, tok := range map[string]string{
		"expired":    expired,
		"other key":  otherKey,
		"wrong role": wrongRole,
		"garbage":    "not.a.jwt",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := auth.Validate(tok)
			var unauthorized *domain.ErrUnauthorized
			assert.ErrorAs(t, err, &unauthorized)
		})
	}
}

func TestNewOperatorAuth_EmptySecretDisables(t *testing.T) {
	assert.Nil(t, NewOperatorAuth(""))
}
