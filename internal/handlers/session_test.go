// internal/handlers/session_test.go
package handlers

import (
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openbid/auctionroom/internal/auth"
)

func TestEnsureEphemeralIdentityMintsAndReplays(t *testing.T) {
	require.NoError(t, auth.Init())

	// First contact: no cookie, identity is minted and set.
	req := httptest.NewRequest("GET", "/ws", nil)
	w := httptest.NewRecorder()
	id, err := EnsureEphemeralIdentity(w, req)
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, id)

	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "auth_token", cookies[0].Name)

	// Replaying the cookie yields the same identity.
	req2 := httptest.NewRequest("GET", "/ws", nil)
	req2.Header.Set("Cookie", "auth_token="+cookies[0].Value)
	w2 := httptest.NewRecorder()
	id2, err := EnsureEphemeralIdentity(w2, req2)
	require.NoError(t, err)
	assert.Equal(t, id, id2)
	assert.Empty(t, w2.Result().Cookies(), "valid cookie is not reissued")
}

func TestEnsureEphemeralIdentityReplacesInvalidCookie(t *testing.T) {
	require.NoError(t, auth.Init())

	req := httptest.NewRequest("GET", "/ws", nil)
	req.Header.Set("Cookie", "auth_token=broken")
	w := httptest.NewRecorder()
	id, err := EnsureEphemeralIdentity(w, req)
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, id)
	require.Len(t, w.Result().Cookies(), 1, "invalid cookie is replaced")
}

func TestExtractCookieToken(t *testing.T) {
	assert.Equal(t, "abc", extractCookieToken("auth_token=abc", "auth_token"))
	assert.Equal(t, "abc", extractCookieToken("other=1; auth_token=abc; x=2", "auth_token"))
	assert.Equal(t, "", extractCookieToken("other=1", "auth_token"))
}
