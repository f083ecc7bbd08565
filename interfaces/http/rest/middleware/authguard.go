// Package middleware holds the Node Service's HTTP middleware: request
// logging and the Auth Guard.
package middleware

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"net/http"
	"strings"

	"nodetree/application/ports"
	"nodetree/domain/path"
	apperrors "nodetree/pkg/errors"
	"nodetree/pkg/ratelimit"
)

type principalContextKey struct{}

// Principal is the authenticated caller attached to the request context.
type Principal struct {
	User string
}

// GetPrincipal extracts the authenticated principal from ctx, if any.
func GetPrincipal(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalContextKey{}).(Principal)
	return p, ok
}

// AuthGuardConfig carries the admin credentials from [server:main].
// An empty AdminUser disables auth entirely (§4.E).
type AuthGuardConfig struct {
	AdminUser string
	AdminPass string

	// Limiter throttles requests per authenticated principal. Nil disables
	// throttling entirely.
	Limiter ratelimit.Limiter
}

const metaNamespace = "_meta"

// AuthGuard enforces per-principal namespace grants looked up from the
// reserved _meta.users collection. It resolves the target
// namespace/collection itself through targetPath, since the grant check
// needs them before the node handler runs.
func AuthGuard(cfg AuthGuardConfig, storage ports.StorageAdapter, targetPath func(*http.Request) (path.Path, bool)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if cfg.AdminUser == "" {
				next.ServeHTTP(w, r)
				return
			}

			user, pass, ok := r.BasicAuth()
			if !ok {
				writeAuthFailure(w, apperrors.NewAuthFailure("missing credentials"))
				return
			}

			if cfg.Limiter != nil && !cfg.Limiter.Allow(r.Context(), user) {
				writeAuthFailure(w, apperrors.NewAuthFailure("rate limit exceeded for "+user))
				return
			}

			target, havePath := targetPath(r)

			if user == cfg.AdminUser && pass == cfg.AdminPass {
				ctx := context.WithValue(r.Context(), principalContextKey{}, Principal{User: user})
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}

			if havePath && target.Namespace == metaNamespace {
				writeAuthFailure(w, apperrors.NewAuthFailure("_meta is accessible to the admin only"))
				return
			}

			digest := md5.Sum([]byte(pass))
			secretDigest := hex.EncodeToString(digest[:])

			principalPath, err := path.Parse(metaNamespace + ".users." + user)
			if err != nil {
				writeAuthFailure(w, apperrors.NewAuthFailure("invalid principal"))
				return
			}

			record, err := storage.SelectNode(r.Context(), principalPath)
			if err != nil {
				writeAuthFailure(w, apperrors.NewAuthFailure("unknown principal"))
				return
			}

			if record["password"] != secretDigest {
				writeAuthFailure(w, apperrors.NewAuthFailure("wrong secret"))
				return
			}

			if havePath && !grantsNamespace(record["ns"], target) {
				writeAuthFailure(w, apperrors.NewAuthFailure("namespace not granted: "+target.Namespace))
				return
			}

			ctx := context.WithValue(r.Context(), principalContextKey{}, Principal{User: user})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// grantsNamespace checks whether the comma-separated ns field grants the
// target's namespace (or namespace.collection for depth-2 requests).
func grantsNamespace(ns string, target path.Path) bool {
	for _, grant := range strings.Split(ns, ",") {
		grant = strings.TrimSpace(grant)
		if grant == "" {
			continue
		}
		if grant == target.Namespace || grant == target.Namespace+"."+target.Collection {
			return true
		}
	}
	return false
}

func writeAuthFailure(w http.ResponseWriter, err *apperrors.AppError) {
	w.Header().Set("Content-Type", "application/json; charset=UTF-8")
	w.WriteHeader(http.StatusForbidden)
	w.Write([]byte(`{"error":"forbidden","message":"` + err.Message + `","instance":"AuthFailure"}` + "\n"))
}
