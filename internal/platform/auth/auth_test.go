package auth

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "luftscan/pkg/domain-errors"
	"luftscan/pkg/requestcontext"
)

func TestTokenRoundTrip(t *testing.T) {
	svc, err := NewTokenService("secret")
	require.NoError(t, err)

	token, err := svc.Issue("analyst", "scan", time.Hour)
	require.NoError(t, err)

	claims, err := svc.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, "analyst", claims.Subject)
	assert.Equal(t, "scan", claims.Scope)
	assert.NotEmpty(t, claims.ID)
}

func TestValidateRejects(t *testing.T) {
	svc, _ := NewTokenService("secret")
	other, _ := NewTokenService("other")

	foreign, err := other.Issue("analyst", "", time.Hour)
	require.NoError(t, err)
	_, err = svc.Validate(foreign)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))

	_, err = svc.Validate("not-a-token")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))

	past := time.Now().Add(-2 * time.Hour)
	svc.now = func() time.Time { return past }
	expired, err := svc.Issue("analyst", "", time.Hour)
	require.NoError(t, err)
	svc.now = time.Now
	_, err = svc.Validate(expired)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expired")
}

func TestIssueValidation(t *testing.T) {
	_, err := NewTokenService(" ")
	assert.Error(t, err)

	svc, _ := NewTokenService("secret")
	_, err = svc.Issue("", "", time.Hour)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	_, err = svc.Issue("analyst", "", 0)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
}

func TestRequireAuth(t *testing.T) {
	svc, _ := NewTokenService("secret")
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	var seen string
	protected := RequireAuth(svc, logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = requestcontext.Subject(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	t.Run("missing header", func(t *testing.T) {
		rec := httptest.NewRecorder()
		protected.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/scans", nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("invalid token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/scans", nil)
		req.Header.Set("Authorization", "Bearer junk")
		rec := httptest.NewRecorder()
		protected.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("valid token", func(t *testing.T) {
		token, err := svc.Issue("analyst", "", time.Minute)
		require.NoError(t, err)
		req := httptest.NewRequest(http.MethodGet, "/scans", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		protected.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Equal(t, "analyst", seen)
	})
}
