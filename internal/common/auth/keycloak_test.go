// internal/common/auth/keycloak_test.go
package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"msad-registration/internal/common/errors"
	httpclient "msad-registration/internal/common/http"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newIntrospectionServer(t *testing.T, calls *int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(calls, 1)

		assert.Equal(t, "/realms/msad/protocol/openid-connect/token/introspect", r.URL.Path)
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "registration-api", user)
		assert.Equal(t, "secret", pass)
		assert.NoError(t, r.ParseForm())

		w.Header().Set("Content-Type", "application/json")
		switch r.PostForm.Get("token") {
		case "good":
			_, _ = w.Write([]byte(`{"active":true,"sub":"3f1e-user","email":"thandi@example.co.za"}`))
		case "expired":
			_, _ = w.Write([]byte(`{"active":false}`))
		case "boom":
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`upstream down`))
		default:
			w.WriteHeader(http.StatusUnauthorized)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestIdentify_ActiveToken(t *testing.T) {
	var calls int32
	srv := newIntrospectionServer(t, &calls)
	k := NewKeycloakClient(srv.URL+"/", "msad", "registration-api", "secret")

	sub, err := k.Identify(context.Background(), "Bearer good")
	require.NoError(t, err)
	require.NotNil(t, sub)
	assert.Equal(t, "3f1e-user", *sub)

	// served from cache
	_, err = k.Identify(context.Background(), "bearer good")
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestIdentify_CacheExpires(t *testing.T) {
	var calls int32
	srv := newIntrospectionServer(t, &calls)
	k := NewKeycloakClient(srv.URL, "msad", "registration-api", "secret")
	now := time.Now()
	k.now = func() time.Time { return now }

	_, err := k.Identify(context.Background(), "good")
	require.NoError(t, err)

	now = now.Add(2 * time.Minute)
	_, err = k.Identify(context.Background(), "good")
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestIdentify_NoToken(t *testing.T) {
	k := NewKeycloakClient("http://unused", "msad", "c", "s")

	sub, err := k.Identify(context.Background(), "")
	assert.NoError(t, err)
	assert.Nil(t, sub)

	sub, err = k.Identify(context.Background(), "Bearer   ")
	assert.NoError(t, err)
	assert.Nil(t, sub)
}

func TestIdentify_InactiveToken(t *testing.T) {
	var calls int32
	srv := newIntrospectionServer(t, &calls)
	k := NewKeycloakClient(srv.URL, "msad", "registration-api", "secret")

	sub, err := k.Identify(context.Background(), "Bearer expired")
	assert.Nil(t, sub)
	stdErr, ok := errors.AsStandardError(err)
	require.True(t, ok)
	assert.Equal(t, errors.ErrCodeInvalidToken, stdErr.Code)

	// inactive results are not cached
	_, _ = k.Identify(context.Background(), "Bearer expired")
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestIntrospect_UpstreamErrors(t *testing.T) {
	var calls int32
	srv := newIntrospectionServer(t, &calls)
	k := NewKeycloakClient(srv.URL, "msad", "registration-api", "secret")

	_, err := k.Introspect(context.Background(), "boom")
	stdErr, ok := errors.AsStandardError(err)
	require.True(t, ok)
	assert.Equal(t, errors.ErrCodeAuthentication, stdErr.Code)
	assert.True(t, stdErr.Retryable)
	assert.Contains(t, stdErr.Details, "upstream down")

	_, err = k.Introspect(context.Background(), "unknown")
	stdErr, ok = errors.AsStandardError(err)
	require.True(t, ok)
	assert.False(t, stdErr.Retryable)
}

func TestIntrospect_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	k := NewKeycloakClient(url, "msad", "c", "s")
	_, err := k.Introspect(context.Background(), "good")
	stdErr, ok := errors.AsStandardError(err)
	require.True(t, ok)
	assert.Equal(t, errors.ErrCodeExternalService, stdErr.Code)
	assert.True(t, stdErr.Retryable)
}

func TestIntrospect_SlowServerIsRetryable(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	t.Cleanup(srv.Close)
	t.Cleanup(func() { close(release) })

	k := NewKeycloakClient(srv.URL, "msad", "c", "s").WithHTTPClient(httpclient.NewClient(50 * time.Millisecond))
	_, err := k.Introspect(context.Background(), "good")
	stdErr, ok := errors.AsStandardError(err)
	require.True(t, ok)
	assert.True(t, stdErr.Retryable)
}

func TestBearerToken(t *testing.T) {
	assert.Equal(t, "abc", BearerToken("Bearer abc"))
	assert.Equal(t, "abc", BearerToken("BEARER  abc "))
	assert.Equal(t, "abc", BearerToken("abc"))
	assert.Equal(t, "", BearerToken("  "))
}
