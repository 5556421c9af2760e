package sso

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"net/http"

	saml2 "github.com/russellhaering/gosaml2"
	dsig "github.com/russellhaering/goxmldsig"
)

// SAMLStrategy authenticates against a SAML 2.0 identity provider. The
// claims returned from HandleCallback are the assertion's attribute
// statement plus "nameId" and "sessionIndex".
type SAMLStrategy struct {
	id string
	sp *saml2.SAMLServiceProvider
}

// NewSAMLStrategy parses the IdP certificate and optional SP signing
// key, and builds the service provider.
func NewSAMLStrategy(cfg *StrategyConfig, baseURL string) (*SAMLStrategy, error) {
	certBlock, _ := pem.Decode([]byte(cfg.SAML.Certificate))
	if certBlock == nil {
		return nil, fmt.Errorf("failed to decode IdP certificate PEM")
	}
	cert, err := x509.ParseCertificate(certBlock.Bytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse IdP certificate: %w", err)
	}

	var keyStore dsig.X509KeyStore
	if cfg.SAML.PrivateKey != "" {
		keyStore, err = parseKeyStore(cfg.SAML)
		if err != nil {
			return nil, err
		}
	}

	sp := &saml2.SAMLServiceProvider{
		IdentityProviderSSOURL:      cfg.SAML.SSOURL,
		IdentityProviderIssuer:      cfg.SAML.EntityID,
		ServiceProviderIssuer:       baseURL + "/sso/metadata",
		AssertionConsumerServiceURL: fmt.Sprintf("%s/auth/sso/%s/callback", baseURL, cfg.ID),
		SignAuthnRequests:           cfg.SAML.SignRequests,
		AudienceURI:                 baseURL,
		IDPCertificateStore: &dsig.MemoryX509CertificateStore{
			Roots: []*x509.Certificate{cert},
		},
		SPKeyStore: keyStore,
	}
	if cfg.SAML.NameIDFormat != "" {
		sp.NameIdFormat = cfg.SAML.NameIDFormat
	}

	return &SAMLStrategy{id: cfg.ID, sp: sp}, nil
}

func parseKeyStore(cfg *SAMLConfig) (dsig.X509KeyStore, error) {
	keyBlock, _ := pem.Decode([]byte(cfg.PrivateKey))
	if keyBlock == nil {
		return nil, fmt.Errorf("failed to decode private key PEM")
	}
	privateKey, err := x509.ParsePKCS1PrivateKey(keyBlock.Bytes)
	if err != nil {
		pkcs8Key, err := x509.ParsePKCS8PrivateKey(keyBlock.Bytes)
		if err != nil {
			return nil, fmt.Errorf("failed to parse private key: %w", err)
		}
		rsaKey, ok := pkcs8Key.(*rsa.PrivateKey)
		if !ok {
			return nil, fmt.Errorf("private key is not RSA")
		}
		privateKey = rsaKey
	}
	return &dsig.TLSCertKeyStore{
		PrivateKey:  privateKey,
		Certificate: [][]byte{[]byte(cfg.Certificate)},
	}, nil
}

func (s *SAMLStrategy) ID() string { return s.id }

// InitiateLogin redirects to the IdP with an AuthnRequest.
func (s *SAMLStrategy) InitiateLogin(w http.ResponseWriter, r *http.Request, state string) error {
	authURL, err := s.sp.BuildAuthURL(state)
	if err != nil {
		return fmt.Errorf("failed to build auth URL: %w", err)
	}
	http.Redirect(w, r, authURL, http.StatusFound)
	return nil
}

// HandleCallback validates the posted SAMLResponse and flattens the
// assertion into a claims document.
func (s *SAMLStrategy) HandleCallback(r *http.Request) (map[string]interface{}, error) {
	if err := r.ParseForm(); err != nil {
		return nil, fmt.Errorf("failed to parse callback form: %w", err)
	}
	encoded := r.FormValue("SAMLResponse")
	if encoded == "" {
		return nil, fmt.Errorf("missing SAMLResponse")
	}

	info, err := s.sp.RetrieveAssertionInfo(encoded)
	if err != nil {
		return nil, fmt.Errorf("failed to validate assertion: %w", err)
	}
	if info.WarningInfo.InvalidTime {
		return nil, fmt.Errorf("assertion is expired or not yet valid")
	}
	if info.WarningInfo.NotInAudience {
		return nil, fmt.Errorf("assertion audience mismatch")
	}

	return assertionClaims(info), nil
}

// assertionClaims converts assertion attributes to the generic claims
// shape the resolver consumes. Single-valued attributes become strings,
// multi-valued ones string lists.
func assertionClaims(info *saml2.AssertionInfo) map[string]interface{} {
	claims := map[string]interface{}{
		"nameId":       info.NameID,
		"sessionIndex": info.SessionIndex,
	}
	for name, attr := range info.Values {
		switch len(attr.Values) {
		case 0:
		case 1:
			claims[name] = attr.Values[0].Value
		default:
			values := make([]interface{}, 0, len(attr.Values))
			for _, v := range attr.Values {
				values = append(values, v.Value)
			}
			claims[name] = values
		}
	}
	return claims
}
