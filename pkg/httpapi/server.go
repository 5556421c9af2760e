package httpapi

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/plugboard/plugboard/pkg/config"
	"github.com/plugboard/plugboard/pkg/observability"
)

// ServerDeps carries everything the HTTP server needs wired in.
type ServerDeps struct {
	Handlers *Handlers
	Auth     *AuthMiddleware
	Authz    *AuthzMiddleware
	Metrics  *observability.Metrics
	Health   *observability.HealthChecker
	Log      *logrus.Logger
}

// NewServer builds the router and the http.Server around it.
//
// Route layout: health and metrics are open; /auth handles logins;
// everything else runs through authentication and the permission
// engine, including the administrative endpoints, whose leaves core
// declares like any other extension.
func NewServer(cfg config.ServerConfig, deps ServerDeps) *http.Server {
	router := mux.NewRouter()
	router.Use(RequestIDMiddleware)
	if deps.Metrics != nil {
		router.Use(MetricsMiddleware(deps.Metrics))
	}

	if deps.Health != nil {
		observability.RegisterHealthRoutes(router, deps.Health)
	}
	if deps.Metrics != nil {
		router.Handle("/metrics", deps.Metrics.Handler()).Methods(http.MethodGet)
	}

	auth := router.PathPrefix("/auth").Subrouter()
	auth.HandleFunc("/login", deps.Handlers.Login).Methods(http.MethodPost)
	auth.HandleFunc("/sso/{strategy}", deps.Handlers.SSOLogin).Methods(http.MethodGet)
	auth.HandleFunc("/sso/{strategy}/callback", deps.Handlers.SSOCallback).
		Methods(http.MethodGet, http.MethodPost)

	protected := router.PathPrefix("").Subrouter()
	protected.Use(deps.Auth.Handler, deps.Authz.Handler)
	protected.HandleFunc("/permissions", deps.Handlers.ListPermissions).Methods(http.MethodGet)
	protected.HandleFunc("/web-service-scopes", deps.Handlers.ListScopes).Methods(http.MethodGet)
	protected.HandleFunc("/plugins", deps.Handlers.ListPlugins).Methods(http.MethodGet)
	protected.HandleFunc("/users/{id}", deps.Handlers.DeleteUser).Methods(http.MethodDelete)

	handler := otelhttp.NewHandler(router, "plugboard")

	return &http.Server{
		Addr:         cfg.Host + ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
}
