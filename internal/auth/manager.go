package auth

import (
	"crypto/subtle"
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"github.com/audiodrop/audiodrop/internal/config"
)

// Manager handles the two-level password gate and session tokens
type Manager interface {
	// Login checks a password against the configured view and edit
	// passwords and returns a signed session token plus the granted
	// privilege. Unknown passwords fail with ErrInvalidCredentials.
	Login(password string) (string, Privilege, error)

	// Verify parses a session token and returns the privilege it
	// carries. Expired tokens fail with ErrTokenExpired.
	Verify(token string) (Privilege, error)
}

type sessionClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

type authManager struct {
	cfg config.AuthConfig
}

// NewManager creates an auth manager from configuration
func NewManager(cfg config.AuthConfig) Manager {
	return &authManager{cfg: cfg}
}

func (am *authManager) Login(password string) (string, Privilege, error) {
	var priv Privilege
	switch {
	case matchPassword(password, am.cfg.EditPassword):
		priv = PrivilegeEditor
	case matchPassword(password, am.cfg.ViewPassword):
		priv = PrivilegeViewer
	default:
		return "", PrivilegeNone, ErrInvalidCredentials
	}

	now := time.Now().UTC()
	claims := sessionClaims{
		Role: priv.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    "audiodrop",
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Duration(am.cfg.SessionTTLHours) * time.Hour)),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(am.cfg.JWTSecret))
	if err != nil {
		return "", PrivilegeNone, err
	}

	logrus.WithField("role", priv.String()).Info("Session opened")
	return token, priv, nil
}

func (am *authManager) Verify(tokenString string) (Privilege, error) {
	if tokenString == "" {
		return PrivilegeNone, ErrInvalidToken
	}

	var claims sessionClaims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return []byte(am.cfg.JWTSecret), nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return PrivilegeNone, ErrTokenExpired
		}
		return PrivilegeNone, ErrInvalidToken
	}
	if !token.Valid {
		return PrivilegeNone, ErrInvalidToken
	}

	return ParsePrivilege(claims.Role), nil
}

// matchPassword compares a candidate against a configured secret. The
// secret may be stored as a bcrypt hash; anything else is compared in
// constant time.
func matchPassword(candidate, secret string) bool {
	if secret == "" {
		return false
	}
	if strings.HasPrefix(secret, "$2a$") || strings.HasPrefix(secret, "$2b$") || strings.HasPrefix(secret, "$2y$") {
		return bcrypt.CompareHashAndPassword([]byte(secret), []byte(candidate)) == nil
	}
	return subtle.ConstantTimeCompare([]byte(candidate), []byte(secret)) == 1
}
