package httpapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/plugboard/plugboard/pkg/access"
	"github.com/plugboard/plugboard/pkg/contextkeys"
	"github.com/plugboard/plugboard/pkg/identity"
	"github.com/plugboard/plugboard/pkg/observability"
	"github.com/plugboard/plugboard/pkg/plugin"
)

// AuthMiddleware resolves a bearer token to an identity and attaches it
// to the request context. Requests without credentials pass through
// anonymously; denying them is the authorization middleware's call.
type AuthMiddleware struct {
	tokens   *TokenManager
	resolver *identity.Resolver
	log      *logrus.Logger
}

// NewAuthMiddleware creates the authentication middleware.
func NewAuthMiddleware(tokens *TokenManager, resolver *identity.Resolver, log *logrus.Logger) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens, resolver: resolver, log: log}
}

// Handler wraps an HTTP handler with authentication.
func (m *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			next.ServeHTTP(w, r)
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			writeError(w, http.StatusUnauthorized, "invalid authorization header format")
			return
		}

		userID, err := m.tokens.Resolve(r.Context(), parts[1])
		if err != nil {
			if errors.Is(err, ErrInvalidToken) {
				writeError(w, http.StatusUnauthorized, "invalid or revoked token")
				return
			}
			m.log.Errorf("Token resolution failed: %v", err)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}

		user, err := m.resolver.UserByID(r.Context(), userID)
		if err != nil {
			m.log.Errorf("Identity lookup failed for token: %v", err)
			writeError(w, http.StatusUnauthorized, "unknown identity")
			return
		}

		ctx := contextkeys.WithIdentity(r.Context(), user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// IdentityFromRequest returns the authenticated user, or nil for
// anonymous requests.
func IdentityFromRequest(r *http.Request) *identity.User {
	v := r.Context().Value(contextkeys.IdentityKey)
	if v == nil {
		return nil
	}
	user, ok := v.(*identity.User)
	if !ok {
		return nil
	}
	return user
}

// AuthzMiddleware applies the composed permission tree to every
// request. It reads the engine from the registry's current snapshot,
// so a recomposition takes effect without restarting the middleware
// chain.
type AuthzMiddleware struct {
	registry *plugin.Registry
	metrics  *observability.Metrics
}

// NewAuthzMiddleware creates the authorization middleware.
func NewAuthzMiddleware(registry *plugin.Registry, metrics *observability.Metrics) *AuthzMiddleware {
	return &AuthzMiddleware{registry: registry, metrics: metrics}
}

// Handler wraps an HTTP handler with an authorization decision.
func (m *AuthzMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		engine := m.registry.Current().Engine
		user := IdentityFromRequest(r)

		result := engine.Authorize(access.Request{
			Method: r.Method,
			Path:   r.URL.Path,
		}, user.AccessIdentity())

		if m.metrics != nil {
			m.metrics.ObserveDecision(decisionLabel(result.Decision))
		}

		switch result.Decision {
		case access.Grant:
			next.ServeHTTP(w, r)
		case access.DenyUnauthorized:
			writeError(w, http.StatusUnauthorized, "authentication required")
		default:
			writeError(w, http.StatusForbidden, "insufficient permissions")
		}
	})
}

func decisionLabel(d access.Decision) string {
	switch d {
	case access.Grant:
		return "grant"
	case access.DenyUnauthorized:
		return "unauthorized"
	default:
		return "forbidden"
	}
}

// RequestIDMiddleware tags every request with a UUID for log and trace
// correlation.
func RequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", requestID)
		ctx := contextkeys.WithRequestID(r.Context(), requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// MetricsMiddleware records request counts and latencies per route.
func MetricsMiddleware(metrics *observability.Metrics) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(recorder, r)

			path := r.URL.Path
			if route := mux.CurrentRoute(r); route != nil {
				if tpl, err := route.GetPathTemplate(); err == nil {
					path = tpl
				}
			}
			metrics.ObserveRequest(r.Method, path, recorder.status, time.Since(start))
		})
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
