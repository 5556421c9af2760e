package sso

import (
	"context"
	"fmt"
	"net/http"
)

// Strategy is one way of authenticating against a third-party identity
// provider. A strategy's job ends at producing a verified claim set;
// turning claims into a user is the identity resolver's job.
type Strategy interface {
	// ID returns the strategy id, used as the origin of provisioned users.
	ID() string

	// InitiateLogin redirects the browser to the identity provider.
	InitiateLogin(w http.ResponseWriter, r *http.Request, state string) error

	// HandleCallback verifies the provider's response and returns the
	// claims it asserts about the subject.
	HandleCallback(r *http.Request) (map[string]interface{}, error)
}

func errRequired(what string) error {
	return fmt.Errorf("%s is required", what)
}

// NewStrategy builds a strategy from its configuration. baseURL is the
// externally visible address of this host, used for SAML service
// provider metadata.
func NewStrategy(ctx context.Context, cfg *StrategyConfig, baseURL string) (Strategy, error) {
	if !cfg.Enabled {
		return nil, fmt.Errorf("strategy %s is disabled", cfg.ID)
	}

	switch cfg.Type {
	case StrategyTypeOIDC:
		if cfg.OIDC == nil {
			return nil, fmt.Errorf("strategy %s: oidc settings are required", cfg.ID)
		}
		if err := cfg.OIDC.Validate(); err != nil {
			return nil, fmt.Errorf("strategy %s: %w", cfg.ID, err)
		}
		return NewOIDCStrategy(ctx, cfg)

	case StrategyTypeSAML:
		if cfg.SAML == nil {
			return nil, fmt.Errorf("strategy %s: saml settings are required", cfg.ID)
		}
		if err := cfg.SAML.Validate(); err != nil {
			return nil, fmt.Errorf("strategy %s: %w", cfg.ID, err)
		}
		return NewSAMLStrategy(cfg, baseURL)

	default:
		return nil, fmt.Errorf("strategy %s: unsupported type %q", cfg.ID, cfg.Type)
	}
}
