package security

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Netcracker/qubership-bid-evaluation-service/secctx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func whoAmI(w http.ResponseWriter, r *http.Request) {
	w.Write([]byte(secctx.GetUserId(secctx.MakeUserContext(r))))
}

func TestProtectWithoutAuth(t *testing.T) {
	require.NoError(t, SetupGoGuardian(nil, nil))
	assert.False(t, IsAuthEnabled())

	rec := httptest.NewRecorder()
	Protect(whoAmI)(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "anonymous", rec.Body.String())
}

func TestProtectWithApiKeysAndUsers(t *testing.T) {
	require.NoError(t, SetupGoGuardian(map[string]string{"ci": "secret-key"}, map[string]string{"reviewer": "pa55"}))
	defer SetupGoGuardian(nil, nil)
	assert.True(t, IsAuthEnabled())
	handler := Protect(whoAmI)

	cases := []struct {
		name   string
		setup  func(r *http.Request)
		status int
		user   string
	}{
		{"no credentials", func(r *http.Request) {}, http.StatusUnauthorized, ""},
		{"api key header", func(r *http.Request) { r.Header.Set(ApiKeyHeader, "secret-key") }, http.StatusOK, "ci"},
		{"bearer", func(r *http.Request) { r.Header.Set("Authorization", "Bearer secret-key") }, http.StatusOK, "ci"},
		{"wrong key", func(r *http.Request) { r.Header.Set(ApiKeyHeader, "other") }, http.StatusUnauthorized, ""},
		{"basic", func(r *http.Request) { r.SetBasicAuth("reviewer", "pa55") }, http.StatusOK, "reviewer"},
		{"basic wrong password", func(r *http.Request) { r.SetBasicAuth("reviewer", "nope") }, http.StatusUnauthorized, ""},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			c.setup(req)
			rec := httptest.NewRecorder()
			handler(rec, req)
			assert.Equal(t, c.status, rec.Code)
			if c.user != "" {
				assert.Equal(t, c.user, rec.Body.String())
			}
		})
	}
}

func TestNoSecureRecoversPanic(t *testing.T) {
	rec := httptest.NewRecorder()
	NoSecure(func(w http.ResponseWriter, r *http.Request) { panic("boom") })(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "boom")
}
