// Package auth supplies the identity collaborator: it resolves the current
// user ID from the token presented at handshake time. Credential issuing
// and permission checks live elsewhere; the realtime core trusts the
// identity it is handed.
package auth

import (
	"fmt"

	apperrors "careerlink/errors"

	"github.com/golang-jwt/jwt/v5"
)

// CustomClaims defines the data stored inside the JWT.
type CustomClaims struct {
	UserID string   `json:"user_id"`
	Roles  []string `json:"roles"`
	jwt.RegisteredClaims
}

type Identity struct {
	secret []byte
}

func NewIdentity(secret string) Identity {
	return Identity{secret: []byte(secret)}
}

// UserIDFromToken validates the signature and expiration of the handshake
// token and extracts the acting user.
func (i Identity) UserIDFromToken(tokenString string) (string, error) {
	token, err := jwt.ParseWithClaims(tokenString, &CustomClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return i.secret, nil
	})
	if err != nil {
		return "", apperrors.NewValidation("invalid handshake token: %v", err)
	}

	claims, ok := token.Claims.(*CustomClaims)
	if !ok || !token.Valid || claims.UserID == "" {
		return "", apperrors.NewValidation("handshake token carries no user identity")
	}
	return claims.UserID, nil
}
