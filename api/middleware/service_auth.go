package middleware

import (
	"net/http"
	"strings"

	"github.com/angelmondragon/warehouse-flow/api/responses"
	pkgauth "github.com/angelmondragon/warehouse-flow/pkg/auth"
	"github.com/angelmondragon/warehouse-flow/pkg/config"
	pkgerrors "github.com/angelmondragon/warehouse-flow/pkg/errors"
	"github.com/angelmondragon/warehouse-flow/pkg/logger"
)

// ServiceAuth admits requests carrying a service token minted by one of the
// allowed callers. Internal routes are only reachable this way.
func ServiceAuth(cfg config.JWTConfig, logg *logger.Logger, allowed ...string) func(http.Handler) http.Handler {
	allowSet := make(map[string]struct{}, len(allowed))
	for _, caller := range allowed {
		allowSet[strings.ToLower(caller)] = struct{}{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}

			claims, err := pkgauth.ParseServiceToken(cfg, token)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid service token"))
				return
			}
			if len(allowSet) > 0 {
				if _, ok := allowSet[claims.Service]; !ok {
					responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "caller not allowed").
						WithDetail(pkgerrors.DetailService, claims.Service))
					return
				}
			}

			ctx := WithCaller(r.Context(), claims.Service)
			if logg != nil {
				ctx = logg.WithCaller(ctx, claims.Service)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Actor copies the X-Actor header into the request context.
func Actor(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor := strings.TrimSpace(r.Header.Get(HeaderActor))
			if len(actor) > 100 {
				actor = actor[:100]
			}
			if actor == "" {
				next.ServeHTTP(w, r)
				return
			}
			ctx := WithActor(r.Context(), actor)
			if logg != nil {
				ctx = logg.WithField(ctx, "actor", actor)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) string {
	raw := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(raw) > 7 && strings.EqualFold(raw[:7], "bearer ") {
		return strings.TrimSpace(raw[7:])
	}
	return ""
}
