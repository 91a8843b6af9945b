package gateway

import (
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

// FunctionKeyHeader carries the shared function key, matching the header the
// original function host used.
const FunctionKeyHeader = "x-functions-key"

// Auth gates mutating routes. Two credentials are accepted: the shared
// function key (checked against a bcrypt hash) and an HS256 bearer JWT.
// With neither configured the middleware is a pass-through (dev mode).
type Auth struct {
	functionKeyHash []byte
	jwtSecret       []byte
}

// NewAuth creates the auth gate. Empty strings disable the respective
// credential.
func NewAuth(functionKeyHash, jwtSecret string) *Auth {
	a := &Auth{}
	if functionKeyHash != "" {
		a.functionKeyHash = []byte(functionKeyHash)
	}
	if jwtSecret != "" {
		a.jwtSecret = []byte(jwtSecret)
	}
	return a
}

// Enabled reports whether any credential is configured.
func (a *Auth) Enabled() bool {
	return len(a.functionKeyHash) > 0 || len(a.jwtSecret) > 0
}

// Require returns middleware that rejects requests without a valid
// credential.
func (a *Auth) Require() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !a.Enabled() {
			return c.Next()
		}

		if len(a.functionKeyHash) > 0 {
			if key := c.Get(FunctionKeyHeader); key != "" {
				if bcrypt.CompareHashAndPassword(a.functionKeyHash, []byte(key)) == nil {
					return c.Next()
				}
			}
		}

		if len(a.jwtSecret) > 0 {
			if token := bearerToken(c); token != "" && a.validJWT(token) {
				return c.Next()
			}
		}

		return ErrUnauthorized()
	}
}

func bearerToken(c *fiber.Ctx) string {
	authz := c.Get(fiber.HeaderAuthorization)
	if strings.HasPrefix(authz, "Bearer ") {
		return strings.TrimPrefix(authz, "Bearer ")
	}
	return ""
}

func (a *Auth) validJWT(raw string) bool {
	token, err := jwt.Parse(raw, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return a.jwtSecret, nil
	})
	return err == nil && token.Valid
}
