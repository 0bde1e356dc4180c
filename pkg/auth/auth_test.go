package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newVerifier(t *testing.T, token string) Verifier {
	t.Helper()

	log, _ := test.NewNullLogger()

	hash := ""

	if token != "" {
		var err error

		hash, err = HashToken(token, bcrypt.MinCost)
		require.NoError(t, err)
	}

	v, err := NewVerifier(log, hash)
	require.NoError(t, err)

	return v
}

func TestVerify(t *testing.T) {
	v := newVerifier(t, "s3cret")
	require.True(t, v.Enabled())

	assert.NoError(t, v.Verify("s3cret"))
	assert.NoError(t, v.Verify("s3cret"), "cached token is accepted again")
	assert.ErrorIs(t, v.Verify("wrong"), ErrInvalidToken)
	assert.ErrorIs(t, v.Verify(""), ErrInvalidToken)
}

func TestDisabledVerifierAcceptsAnything(t *testing.T) {
	v := newVerifier(t, "")

	assert.False(t, v.Enabled())
	assert.NoError(t, v.Verify(""))
}

func TestNewVerifierRejectsMalformedHash(t *testing.T) {
	log, _ := test.NewNullLogger()

	_, err := NewVerifier(log, "not-a-bcrypt-hash")
	require.Error(t, err)
}

func TestGenerateToken(t *testing.T) {
	a, err := GenerateToken()
	require.NoError(t, err)

	b, err := GenerateToken()
	require.NoError(t, err)

	assert.Len(t, a, 44)
	assert.NotEqual(t, a, b)
}

func TestMiddleware(t *testing.T) {
	v := newVerifier(t, "s3cret")

	h := Middleware(v, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	tests := []struct {
		header string
		want   int
	}{
		{"", http.StatusUnauthorized},
		{"Bearer wrong", http.StatusUnauthorized},
		{"Bearer s3cret", http.StatusNoContent},
		{"s3cret", http.StatusNoContent},
	}

	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodPost, "/upload", nil)
		if tt.header != "" {
			req.Header.Set("Authorization", tt.header)
		}

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		assert.Equal(t, tt.want, rec.Code, tt.header)

		if tt.want == http.StatusUnauthorized {
			assert.Contains(t, rec.Header().Get("WWW-Authenticate"), "Bearer")
		}
	}
}
