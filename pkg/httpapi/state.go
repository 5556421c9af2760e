package httpapi

import (
	"crypto/rand"
	"encoding/hex"
	"net/http"
)

const stateCookie = "plugboard_login_state"

// newLoginState generates a random state value and pins it in a
// short-lived cookie, so the callback can reject forged responses.
func newLoginState(w http.ResponseWriter) string {
	buf := make([]byte, 16)
	_, _ = rand.Read(buf)
	state := hex.EncodeToString(buf)

	http.SetCookie(w, &http.Cookie{
		Name:     stateCookie,
		Value:    state,
		Path:     "/",
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   600,
	})
	return state
}

// verifyLoginState compares the state echoed by the provider against
// the cookie. SAML posts it as RelayState, OIDC as the state query
// parameter.
func verifyLoginState(r *http.Request) bool {
	cookie, err := r.Cookie(stateCookie)
	if err != nil || cookie.Value == "" {
		return false
	}
	echoed := r.URL.Query().Get("state")
	if echoed == "" {
		echoed = r.FormValue("RelayState")
	}
	return echoed == cookie.Value
}
