package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"

	"dnsmanager/internal/failure"
	"dnsmanager/internal/model"
)

type contextKey string

const ctxClaims contextKey = "claims"

// RevocationList answers whether a token id was logged out.
type RevocationList interface {
	IsTokenRevoked(jti string) (bool, error)
}

type Middleware struct {
	tokens  *TokenManager
	revoked RevocationList
	log     *logrus.Entry
}

func NewMiddleware(tokens *TokenManager, revoked RevocationList, log *logrus.Entry) *Middleware {
	return &Middleware{tokens: tokens, revoked: revoked, log: log.WithField("component", "auth")}
}

// BearerToken extracts the token from an "Authorization: Bearer" header.
func BearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	parts := strings.SplitN(h, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", false
	}
	return strings.TrimSpace(parts[1]), true
}

func (m *Middleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") == "" {
			writeError(w, http.StatusUnauthorized, "Authentication token is missing")
			return
		}
		token, ok := BearerToken(r)
		if !ok {
			writeError(w, http.StatusUnauthorized, "Invalid authorization header format")
			return
		}

		claims, err := m.tokens.Parse(token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, err.Error())
			return
		}

		revoked, err := m.revoked.IsTokenRevoked(claims.ID)
		if err != nil {
			m.log.WithError(err).Error("revocation lookup failed")
			writeError(w, http.StatusInternalServerError, "Internal server error")
			return
		}
		if revoked {
			writeError(w, http.StatusUnauthorized, ErrTokenInvalid.Error())
			return
		}

		next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
	})
}

// RequireAdmin authenticates the request, then requires the admin role.
func (m *Middleware) RequireAdmin(next http.Handler) http.Handler {
	return m.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, _ := ClaimsFrom(r.Context())
		if claims == nil || claims.Role != model.RoleAdmin {
			writeError(w, http.StatusForbidden, failure.MsgAdminOnly)
			return
		}
		next.ServeHTTP(w, r)
	}))
}

func WithClaims(ctx context.Context, c *Claims) context.Context {
	return context.WithValue(ctx, ctxClaims, c)
}

func ClaimsFrom(ctx context.Context) (*Claims, bool) {
	c, ok := ctx.Value(ctxClaims).(*Claims)
	return c, ok && c != nil
}

// CurrentUser returns the authenticated identity of the request.
func CurrentUser(ctx context.Context) (model.Identity, error) {
	c, ok := ClaimsFrom(ctx)
	if !ok {
		return model.Identity{}, errors.New("no authenticated user in context")
	}
	return c.Identity(), nil
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"success": false, "error": msg})
}
