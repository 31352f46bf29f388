// internal/handlers/session.go
package handlers

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/openbid/auctionroom/internal/auth"
)

// extractCookieToken extracts a named cookie value from the Cookie
// header, or returns empty if not found.
func extractCookieToken(cookieHeader, cookieName string) string {
	parts := strings.Split(cookieHeader, cookieName+"=")
	if len(parts) < 2 {
		return ""
	}
	token := parts[1]
	if idx := strings.Index(token, ";"); idx != -1 {
		token = token[:idx]
	}
	return token
}

// EnsureEphemeralIdentity resolves the connecting client's identity from
// its auth_token cookie, minting a fresh identity when the cookie is
// missing or invalid. The token is opaque to the client; a page reload
// presents the same identity it was issued, which is what makes
// reconnect work without any account system.
func EnsureEphemeralIdentity(w http.ResponseWriter, r *http.Request) (uuid.UUID, error) {
	cookieHeader := r.Header.Get("Cookie")
	if strings.Contains(cookieHeader, "auth_token=") {
		token := extractCookieToken(cookieHeader, "auth_token")
		if sub, err := auth.VerifyToken(token); err == nil {
			if id, parseErr := uuid.Parse(sub); parseErr == nil {
				return id, nil
			}
		}
		// Invalid or stale cookie: fall through and issue a new one.
	}

	id := uuid.New()
	newToken, err := auth.CreateToken(id.String())
	if err != nil {
		return uuid.Nil, err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     "auth_token",
		Value:    newToken,
		HttpOnly: true,
		Path:     "/",
	})
	return id, nil
}
