package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/plugboard/plugboard/pkg/identity"
	"github.com/plugboard/plugboard/pkg/observability"
	"github.com/plugboard/plugboard/pkg/plugin"
	"github.com/plugboard/plugboard/pkg/sso"
)

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// Handlers bundles the administrative and authentication endpoints.
type Handlers struct {
	registry   *plugin.Registry
	resolver   *identity.Resolver
	notifier   *identity.Notifier
	tokens     *TokenManager
	strategies map[string]sso.Strategy
	metrics    *observability.Metrics
	log        *logrus.Logger
}

// NewHandlers creates the endpoint set. metrics may be nil.
func NewHandlers(registry *plugin.Registry, resolver *identity.Resolver, notifier *identity.Notifier, tokens *TokenManager, strategies map[string]sso.Strategy, metrics *observability.Metrics, log *logrus.Logger) *Handlers {
	if strategies == nil {
		strategies = map[string]sso.Strategy{}
	}
	return &Handlers{
		registry:   registry,
		resolver:   resolver,
		notifier:   notifier,
		tokens:     tokens,
		strategies: strategies,
		metrics:    metrics,
		log:        log,
	}
}

func (h *Handlers) countLogin(origin, outcome string) {
	if h.metrics != nil {
		h.metrics.ObserveLogin(origin, outcome)
	}
}

// ListPermissions returns the composed permission tree verbatim, for
// administrative UI rendering.
func (h *Handlers) ListPermissions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.registry.Current().Tree)
}

// ListScopes returns the flat web-service scope list.
func (h *Handlers) ListScopes(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.registry.Current().Scopes)
}

// ListPlugins returns the loaded extension descriptors.
func (h *Handlers) ListPlugins(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.registry.Current().Descriptors)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string         `json:"token"`
	User  *identity.User `json:"user"`
}

// Login authenticates a local account and issues a bearer token.
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "email and password are required")
		return
	}

	user, err := h.resolver.VerifyByCredentials(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, identity.ErrInvalidCredentials) {
			h.countLogin(identity.OriginLocal, "failure")
			writeError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		h.log.Errorf("Credential verification failed: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	token, err := h.tokens.Issue(r.Context(), user.ID)
	if err != nil {
		h.log.Errorf("Token issue failed: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	h.countLogin(identity.OriginLocal, "success")
	writeJSON(w, http.StatusOK, loginResponse{Token: token, User: user})
}

// SSOLogin redirects to the identity provider of the named strategy.
func (h *Handlers) SSOLogin(w http.ResponseWriter, r *http.Request) {
	strategy, ok := h.strategies[mux.Vars(r)["strategy"]]
	if !ok {
		writeError(w, http.StatusNotFound, "unknown strategy")
		return
	}
	state := newLoginState(w)
	if err := strategy.InitiateLogin(w, r, state); err != nil {
		h.log.Errorf("SSO initiation failed: %v", err)
		writeError(w, http.StatusBadGateway, "failed to initiate login")
	}
}

// SSOCallback verifies the provider response, resolves the identity,
// and issues a bearer token.
func (h *Handlers) SSOCallback(w http.ResponseWriter, r *http.Request) {
	strategy, ok := h.strategies[mux.Vars(r)["strategy"]]
	if !ok {
		writeError(w, http.StatusNotFound, "unknown strategy")
		return
	}
	if !verifyLoginState(r) {
		writeError(w, http.StatusBadRequest, "state mismatch")
		return
	}

	claims, err := strategy.HandleCallback(r)
	if err != nil {
		h.log.Warnf("SSO callback rejected: %v", err)
		h.countLogin(strategy.ID(), "failure")
		writeError(w, http.StatusUnauthorized, "authentication failed")
		return
	}

	user, err := h.resolver.VerifyByClaims(r.Context(), claims, strategy.ID())
	if err != nil {
		h.log.Errorf("Claim resolution failed: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	token, err := h.tokens.Issue(r.Context(), user.ID)
	if err != nil {
		h.log.Errorf("Token issue failed: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	h.countLogin(strategy.ID(), "success")
	writeJSON(w, http.StatusOK, loginResponse{Token: token, User: user})
}

// DeleteUser removes an account and emits the deletion notification so
// session holders can invalidate live sessions.
func (h *Handlers) DeleteUser(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	n, err := h.resolver.DeleteUsers(r.Context(), h.notifier, []string{id})
	if err != nil {
		h.log.Errorf("User deletion failed: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if n == 0 {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"deleted": []string{id}})
}
