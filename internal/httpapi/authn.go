package httpapi

import (
	"context"
	"errors"
	"net/http"
	"slices"
	"strings"

	"sesamum.org/internal/auth"
)

const (
	authHeader    = "Authorization"
	bearer        = "Bearer "
	devRoleHeader = "X-User-Role"
)

var publicPaths = []string{
	"/metrics",
	"/healthz",
	"/readyz",
	"/v1/info",
}

type devRoleKey struct{}

// withAuth resolves the actor of every non-public request. A bearer token
// must verify against the agent secret. In dev mode a request without a
// token runs as the stored session identity and X-User-Role overrides the
// role.
func (a *API) withAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions || isPublicPath(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		ctx := r.Context()
		var actor *auth.Actor
		header := r.Header.Get(authHeader)
		switch {
		case strings.TrimSpace(header) != "":
			token, err := extractBearerToken(header)
			if err != nil {
				unauthorized(w, r, err.Error())
				return
			}
			claims, err := auth.ParseClaims(token, a.secret)
			if err != nil {
				unauthorized(w, r, "invalid token")
				return
			}
			actor = claims.Actor()
			ctx = auth.ContextWithToken(ctx, token)
		case a.devMode && a.session != nil:
			actor = a.session.Actor(ctx)
		}
		if actor == nil {
			unauthorized(w, r, "missing bearer token")
			return
		}

		if a.devMode {
			override := a.storedDevRole(ctx)
			if raw := strings.TrimSpace(r.Header.Get(devRoleHeader)); raw != "" {
				role, err := auth.ParseRole(raw)
				if err != nil {
					writeError(w, r, http.StatusBadRequest, err.Error())
					return
				}
				override = role
			}
			if override != "" {
				actor.Role = auth.ResolveRole(actor.Role, override)
				ctx = context.WithValue(ctx, devRoleKey{}, override)
			}
		}

		ctx = auth.ContextWithActor(ctx, actor)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (a *API) storedDevRole(ctx context.Context) auth.Role {
	if a.session == nil {
		return ""
	}
	return a.session.DevRole(ctx)
}

// devRoleFromContext returns the override applied to the request, if any.
func devRoleFromContext(ctx context.Context) auth.Role {
	r, _ := ctx.Value(devRoleKey{}).(auth.Role)
	return r
}

// RequireRole rejects requests whose actor has none of roles.
func RequireRole(roles ...auth.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor, ok := auth.ActorFromContext(r.Context())
			if !ok {
				unauthorized(w, r, "authentication required")
				return
			}
			if !slices.Contains(roles, actor.Role) {
				w.Header().Set("WWW-Authenticate", `Bearer error="insufficient_scope"`)
				writeError(w, r, http.StatusForbidden, "forbidden")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func unauthorized(w http.ResponseWriter, r *http.Request, msg string) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="sesamum"`)
	writeError(w, r, http.StatusUnauthorized, msg)
}

func extractBearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", errors.New("missing bearer token")
	}
	if !strings.HasPrefix(strings.ToLower(header), strings.ToLower(bearer)) {
		return "", errors.New("invalid authorization scheme")
	}
	token := strings.TrimSpace(header[len(bearer):])
	if token == "" {
		return "", errors.New("missing bearer token")
	}
	return token, nil
}

func isPublicPath(path string) bool {
	return slices.Contains(publicPaths, path)
}
