package auth

import (
	"testing"
	"time"

	apperrors "careerlink/errors"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func signedToken(t *testing.T, claims CustomClaims, secret string) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func TestIdentity_UserIDFromToken_Valid(t *testing.T) {
	req := require.New(t)
	identity := NewIdentity(testSecret)

	token := signedToken(t, CustomClaims{
		UserID: "user-42",
		Roles:  []string{"member"},
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}, testSecret)

	userID, err := identity.UserIDFromToken(token)
	req.NoError(err)
	req.Equal("user-42", userID)
}

func TestIdentity_UserIDFromToken_Wrong_Secret(t *testing.T) {
	req := require.New(t)
	identity := NewIdentity(testSecret)

	token := signedToken(t, CustomClaims{UserID: "user-42"}, "other-secret")

	_, err := identity.UserIDFromToken(token)
	req.True(apperrors.IsValidation(err))
}

func TestIdentity_UserIDFromToken_Expired(t *testing.T) {
	req := require.New(t)
	identity := NewIdentity(testSecret)

	token := signedToken(t, CustomClaims{
		UserID: "user-42",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
		},
	}, testSecret)

	_, err := identity.UserIDFromToken(token)
	req.True(apperrors.IsValidation(err))
}

func TestIdentity_UserIDFromToken_Missing_User(t *testing.T) {
	req := require.New(t)
	identity := NewIdentity(testSecret)

	token := signedToken(t, CustomClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}, testSecret)

	_, err := identity.UserIDFromToken(token)
	req.True(apperrors.IsValidation(err))
}

func TestIdentity_UserIDFromToken_Garbage(t *testing.T) {
	req := require.New(t)
	identity := NewIdentity(testSecret)

	_, err := identity.UserIDFromToken("not.a.token")
	req.True(apperrors.IsValidation(err))
}
