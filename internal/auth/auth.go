// Package auth verifies staff bearer tokens. Patients never authenticate;
// every admin route requires a token carrying the admin role.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type contextKey string

const (
	claimsKey    contextKey = "auth_claims"
	authErrorKey contextKey = "auth_error"
)

const RoleAdmin = "admin"

var (
	ErrMissingToken = errors.New("missing bearer token")
	ErrInvalidToken = errors.New("invalid token")

	errBadFormat = errors.New("invalid authorization format")
)

type Claims struct {
	jwt.RegisteredClaims
	Roles []string `json:"roles"`
}

func (c *Claims) HasRole(role string) bool {
	return c != nil && slices.Contains(c.Roles, role)
}

type Config struct {
	Secret []byte
	Issuer string
	TTL    time.Duration
}

type Authenticator struct {
	cfg Config
}

func New(cfg Config) *Authenticator {
	if cfg.TTL <= 0 {
		cfg.TTL = 12 * time.Hour
	}
	return &Authenticator{cfg: cfg}
}

// Sign issues an HS256 token for subject.
func (a *Authenticator) Sign(subject string, roles []string, now time.Time) (string, error) {
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    a.cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.cfg.TTL)),
		},
		Roles: roles,
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.cfg.Secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return token, nil
}

func (a *Authenticator) Parse(tokenStr string) (*Claims, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if a.cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.cfg.Issuer))
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		return a.cfg.Secret, nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// Middleware attaches claims from a valid bearer token. Every route stays
// reachable without credentials: a missing, malformed or expired token leaves
// the request anonymous, and RequireAdmin decides what to reject.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" {
			next.ServeHTTP(w, r)
			return
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
			next.ServeHTTP(w, r.WithContext(withAuthError(r.Context(), errBadFormat)))
			return
		}

		claims, err := a.Parse(parts[1])
		if err != nil {
			next.ServeHTTP(w, r.WithContext(withAuthError(r.Context(), err)))
			return
		}

		next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
	})
}

// RequireAdmin rejects requests without valid claims (401) and callers the
// role provider does not recognise as staff (403).
func RequireAdmin(roles RoleProvider) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := ClaimsFrom(r.Context()); !ok {
				deny(w, http.StatusUnauthorized, "unauthorized", authFailure(r.Context()))
				return
			}
			if !roles.IsAdmin(r.Context()) {
				deny(w, http.StatusForbidden, "forbidden", "admin role required")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func WithClaims(ctx context.Context, c *Claims) context.Context {
	return context.WithValue(ctx, claimsKey, c)
}

func ClaimsFrom(ctx context.Context) (*Claims, bool) {
	c, ok := ctx.Value(claimsKey).(*Claims)
	return c, ok && c != nil
}

func withAuthError(ctx context.Context, err error) context.Context {
	return context.WithValue(ctx, authErrorKey, err)
}

// authFailure explains why a request carries no claims.
func authFailure(ctx context.Context) string {
	err, _ := ctx.Value(authErrorKey).(error)
	switch {
	case err == nil:
		return ErrMissingToken.Error()
	case errors.Is(err, errBadFormat):
		return err.Error()
	default:
		return "invalid or expired token"
	}
}

// RoleProvider answers whether the caller is clinic staff.
type RoleProvider interface {
	IsAdmin(ctx context.Context) bool
}

// ContextRoles reads roles from claims placed by Middleware.
type ContextRoles struct{}

func (ContextRoles) IsAdmin(ctx context.Context) bool {
	c, ok := ClaimsFrom(ctx)
	return ok && c.HasRole(RoleAdmin)
}

func deny(w http.ResponseWriter, status int, code, details string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": code, "details": details})
}
