package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"commissionflow/internal/domain/workflow"
)

var ErrInvalidToken = errors.New("invalid token")

// Claims are issued by the external auth service. Role is the raw role string;
// IsManager is the legacy flag some accounts carry instead of a manager role.
type Claims struct {
	UserID    string `json:"uid"`
	Username  string `json:"username,omitempty"`
	Role      string `json:"role"`
	IsManager bool   `json:"is_manager,omitempty"`
	jwt.RegisteredClaims
}

// UserContext is the authenticated caller with its role already normalized.
type UserContext struct {
	UserID   string
	Username string
	Role     workflow.Role
	Token    string
}

func GenerateToken(secret string, claims Claims, ttl time.Duration) (string, error) {
	now := time.Now()
	claims.RegisteredClaims = jwt.RegisteredClaims{
		Subject:   claims.UserID,
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		IssuedAt:  jwt.NewNumericDate(now),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

func ParseToken(secret, tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.UserID == "" {
		claims.UserID = claims.Subject
	}
	return claims, nil
}

// Authenticate parses tokenString and normalizes its role. This is the only
// place a raw session role becomes a workflow.Role.
func Authenticate(secret, tokenString string) (UserContext, error) {
	claims, err := ParseToken(secret, tokenString)
	if err != nil {
		return UserContext{}, err
	}
	role, err := workflow.NormalizeRole(claims.Role, claims.IsManager)
	if err != nil {
		return UserContext{}, fmt.Errorf("token for %s: %w", claims.UserID, err)
	}
	return UserContext{UserID: claims.UserID, Username: claims.Username, Role: role, Token: tokenString}, nil
}
