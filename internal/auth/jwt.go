package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const defaultTokenTTL = 24 * time.Hour

// Claims carried by a session token. ClientID is the stable identifier the
// hub uses for the websocket session.
type Claims struct {
	ClientID string `json:"client_id"`
	Name     string `json:"name,omitempty"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// Authenticator signs and validates session tokens with a shared secret
type Authenticator struct {
	secret   []byte
	tokenTTL time.Duration
}

// NewAuthenticator creates an authenticator. The secret comes from
// configuration and must not be empty.
func NewAuthenticator(secret string, tokenTTL time.Duration) (*Authenticator, error) {
	if secret == "" {
		return nil, fmt.Errorf("jwt secret is required")
	}
	if tokenTTL == 0 {
		tokenTTL = defaultTokenTTL
	}

	return &Authenticator{
		secret:   []byte(secret),
		tokenTTL: tokenTTL,
	}, nil
}

// TokenTTL reports how long issued tokens stay valid
func (a *Authenticator) TokenTTL() time.Duration {
	return a.tokenTTL
}

// GenerateClientToken generates a session token for a browser client
func (a *Authenticator) GenerateClientToken(clientID, name string) (string, error) {
	claims := &Claims{
		ClientID: clientID,
		Name:     name,
		Role:     "client",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(a.tokenTTL)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(a.secret)
}

// ValidateToken validates a session token and returns its claims
func (a *Authenticator) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{"HS256"}))

	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims, nil
	}

	return nil, jwt.ErrInvalidKey
}
