package remote

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/dmitrijs2005/feedvault/internal/common"
)

// Claims carries the user identity inside the bearer token.
type Claims struct {
	jwt.RegisteredClaims
	UserID string `json:"user_id"`
}

// UserIDFromToken extracts the user identity from a bearer JWT. The remote
// store enforces the signature server-side on every request; locally we only
// need the identity and a sanity check on the expiry.
func UserIDFromToken(tokenString string) (string, error) {
	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tokenString, claims); err != nil {
		return "", fmt.Errorf("%w: %v", common.ErrInvalidToken, err)
	}
	if claims.ExpiresAt != nil && claims.ExpiresAt.Before(time.Now()) {
		return "", common.ErrTokenExpired
	}
	if claims.UserID == "" {
		return "", fmt.Errorf("%w: missing user_id claim", common.ErrInvalidToken)
	}
	return claims.UserID, nil
}
