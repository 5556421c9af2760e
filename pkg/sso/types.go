package sso

import "github.com/plugboard/plugboard/pkg/identity"

// StrategyType identifies the protocol a strategy speaks.
type StrategyType string

const (
	StrategyTypeOIDC StrategyType = "oidc"
	StrategyTypeSAML StrategyType = "saml"
)

// StrategyConfig configures one identity-provider strategy. ID doubles
// as the user origin recorded on provisioned accounts and as the key
// of the strategy's group-to-role setting ("core-<id>").
type StrategyConfig struct {
	ID         string                `json:"id" yaml:"id"`
	Type       StrategyType          `json:"type" yaml:"type"`
	Enabled    bool                  `json:"enabled" yaml:"enabled"`
	Attributes identity.AttributeMap `json:"attributes" yaml:"attributes"`
	OIDC       *OIDCConfig           `json:"oidc,omitempty" yaml:"oidc,omitempty"`
	SAML       *SAMLConfig           `json:"saml,omitempty" yaml:"saml,omitempty"`
}

// OIDCConfig holds OpenID Connect settings for one strategy.
type OIDCConfig struct {
	ClientID     string   `json:"clientId" yaml:"clientId"`
	ClientSecret string   `json:"-" yaml:"clientSecret"`
	IssuerURL    string   `json:"issuerUrl" yaml:"issuerUrl"`
	RedirectURL  string   `json:"redirectUrl" yaml:"redirectUrl"`
	Scopes       []string `json:"scopes" yaml:"scopes"`
}

// Validate checks an OIDC configuration for completeness.
func (c *OIDCConfig) Validate() error {
	if c.ClientID == "" {
		return errRequired("clientId")
	}
	if c.ClientSecret == "" {
		return errRequired("clientSecret")
	}
	if c.IssuerURL == "" {
		return errRequired("issuerUrl")
	}
	if c.RedirectURL == "" {
		return errRequired("redirectUrl")
	}
	hasOpenID := false
	for _, scope := range c.Scopes {
		if scope == "openid" {
			hasOpenID = true
			break
		}
	}
	if !hasOpenID {
		return errRequired("the openid scope")
	}
	return nil
}

// SAMLConfig holds SAML 2.0 settings for one strategy. Certificate and
// PrivateKey are PEM encoded.
type SAMLConfig struct {
	EntityID     string `json:"entityId" yaml:"entityId"`
	SSOURL       string `json:"ssoUrl" yaml:"ssoUrl"`
	Certificate  string `json:"certificate" yaml:"certificate"`
	PrivateKey   string `json:"-" yaml:"privateKey"`
	SignRequests bool   `json:"signRequests" yaml:"signRequests"`
	NameIDFormat string `json:"nameIdFormat,omitempty" yaml:"nameIdFormat,omitempty"`
}

// Validate checks a SAML configuration for completeness.
func (c *SAMLConfig) Validate() error {
	if c.EntityID == "" {
		return errRequired("entityId")
	}
	if c.SSOURL == "" {
		return errRequired("ssoUrl")
	}
	if c.Certificate == "" {
		return errRequired("certificate")
	}
	return nil
}
