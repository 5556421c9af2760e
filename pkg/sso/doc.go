// Package sso implements identity-provider strategies: OpenID Connect
// and SAML 2.0. A strategy redirects the browser to the provider,
// verifies the provider's response, and hands the asserted claims to
// the identity resolver, which owns provisioning and role mapping.
package sso
