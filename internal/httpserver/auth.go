package httpserver

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/skillcoder/sandboxd/internal/infra/metrics"
	"github.com/skillcoder/sandboxd/internal/logic/principal"
)

type contextKey int

const principalKey contextKey = iota

// withAuth asserts the caller's bearer token and stores the decoded principal
// in the request context. The subsystem treats the (owner, role) pair as
// given; the token issuer is the identity provider, not this service.
func (s *Server) withAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, err := s.parsePrincipal(r)
		if err != nil {
			metrics.RecordAuthFailure()
			s.logger.DebugContext(r.Context(), "rejected token", "reason", err)
			writeError(w, http.StatusUnauthorized, "invalid or missing token")

			return
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), principalKey, p)))
	})
}

// requireMaintenance gates the admin endpoints on the maintenance capability.
func (s *Server) requireMaintenance(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p := principalFrom(r.Context())
		if !p.Role.Can(principal.CapMaintenance) {
			writeError(w, http.StatusForbidden, "access denied")

			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) parsePrincipal(r *http.Request) (principal.Principal, error) {
	header := r.Header.Get("Authorization")

	raw, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || raw == "" {
		return principal.Principal{}, fmt.Errorf("missing bearer token")
	}

	claims := jwt.MapClaims{}

	_, err := jwt.ParseWithClaims(raw, claims, func(_ *jwt.Token) (any, error) {
		return []byte(s.jwtSecret), nil
	}, jwt.WithValidMethods([]string{"HS256"}), jwt.WithExpirationRequired())
	if err != nil {
		return principal.Principal{}, fmt.Errorf("parse token: %w", err)
	}

	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return principal.Principal{}, fmt.Errorf("token has no subject")
	}

	handle, _ := claims["handle"].(string)
	if handle == "" {
		return principal.Principal{}, fmt.Errorf("token has no handle claim")
	}

	rawRole, _ := claims["role"].(string)

	role, err := principal.ParseRole(rawRole)
	if err != nil {
		return principal.Principal{}, fmt.Errorf("token role: %w", err)
	}

	return principal.Principal{
		Owner: principal.Owner{ID: sub, Handle: handle},
		Role:  role,
	}, nil
}

func principalFrom(ctx context.Context) principal.Principal {
	p, _ := ctx.Value(principalKey).(principal.Principal)

	return p
}
