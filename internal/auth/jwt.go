package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

// SessionDuration is how long a dashboard login stays valid.
const SessionDuration = 24 * time.Hour

// SessionClaims identify the dashboard user and organization a token
// was issued for.
type SessionClaims struct {
	UserID         string
	OrganizationID string
	Role           string
}

// GenerateSessionToken creates a signed session token for a dashboard
// user.
func GenerateSessionToken(claims SessionClaims, secret []byte, now time.Time) (string, int64, error) {
	expiresAt := now.Add(SessionDuration).Unix()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  claims.UserID,
		"org":  claims.OrganizationID,
		"role": claims.Role,
		"exp":  expiresAt,
		"iat":  now.Unix(),
	})

	signed, err := token.SignedString(secret)
	if err != nil {
		return "", 0, err
	}
	return signed, expiresAt, nil
}

// ParseSessionToken verifies a session token and extracts its claims.
func ParseSessionToken(tokenString string, secret []byte) (*SessionClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return secret, nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token")
	}

	userID, _ := claims["sub"].(string)
	orgID, _ := claims["org"].(string)
	role, _ := claims["role"].(string)
	if userID == "" || orgID == "" {
		return nil, errors.New("invalid token claims")
	}
	return &SessionClaims{UserID: userID, OrganizationID: orgID, Role: role}, nil
}
