// Package auth identifies the caller of mutation endpoints from an HS256
// bearer token.
package auth

import (
	"errors"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/PhilipLykov/SyslogCollectorAI-sub000/common/httputil"
)

var ErrInvalidToken = errors.New("invalid token")

// Claims are the token claims the service reads.
type Claims struct {
	PreferredUsername string `json:"preferred_username,omitempty"`
	jwt.RegisteredClaims
}

// Actor returns the name recorded in audit entries.
func (c *Claims) Actor() string {
	if c.PreferredUsername != "" {
		return c.PreferredUsername
	}
	return c.Subject
}

// Validator checks bearer tokens signed with a shared secret.
type Validator struct {
	secret []byte
}

// NewValidator creates a Validator for secret.
func NewValidator(secret string) *Validator {
	return &Validator{secret: []byte(secret)}
}

// Validate parses and verifies tokenString.
func (v *Validator) Validate(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return v.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.Actor() == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// Middleware attaches a RequestContext to every request. With a validator it
// requires a valid bearer token and records its subject as the actor;
// without one every caller is anonymous.
func Middleware(v *Validator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rc := httputil.NewRequestContext(r)

			if v != nil {
				authHeader := r.Header.Get("Authorization")
				if authHeader == "" {
					httputil.WriteError(w, http.StatusUnauthorized, "missing authorization header")
					return
				}
				scheme, token, ok := strings.Cut(authHeader, " ")
				if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
					httputil.WriteError(w, http.StatusUnauthorized, "invalid authorization header")
					return
				}
				claims, err := v.Validate(strings.TrimSpace(token))
				if err != nil {
					httputil.WriteError(w, http.StatusUnauthorized, "invalid or expired token")
					return
				}
				rc.Actor = claims.Actor()
			}

			next.ServeHTTP(w, r.WithContext(httputil.WithRequestContext(r.Context(), rc)))
		})
	}
}
