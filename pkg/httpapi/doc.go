// Package httpapi is the host's HTTP surface: bearer-token
// authentication, the authorization middleware applying the composed
// permission tree to every request, local and SSO login endpoints, and
// the administrative endpoints exposing the tree, the scopes, and user
// deletion.
package httpapi
