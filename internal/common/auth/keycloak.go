// internal/common/auth/keycloak.go
package auth

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"msad-registration/internal/common/config"
	"msad-registration/internal/common/errors"
	httpclient "msad-registration/internal/common/http"
)

const maxCacheTTL = time.Minute

// KeycloakClient resolves applicant identities by introspecting bearer
// tokens against a Keycloak realm.
type KeycloakClient struct {
	baseURL      string
	realm        string
	clientID     string
	clientSecret string
	httpClient   *httpclient.Client
	now          func() time.Time

	mu    sync.Mutex
	cache map[string]cachedIdentity
}

type cachedIdentity struct {
	info    *TokenInfo
	expires time.Time
}

// TokenInfo is the subset of the introspection response the service uses.
type TokenInfo struct {
	Active            bool   `json:"active"`
	Subject           string `json:"sub"`
	Email             string `json:"email,omitempty"`
	PreferredUsername string `json:"preferred_username,omitempty"`
	ExpiresAt         int64  `json:"exp,omitempty"`
	ClientID          string `json:"client_id,omitempty"`
}

// NewKeycloakClient creates a new instance of KeycloakClient.
func NewKeycloakClient(baseURL, realm, clientID, clientSecret string) *KeycloakClient {
	return &KeycloakClient{
		baseURL:      strings.TrimSuffix(baseURL, "/"),
		realm:        realm,
		clientID:     clientID,
		clientSecret: clientSecret,
		httpClient:   httpclient.NewClient(10 * time.Second),
		now:          time.Now,
		cache:        make(map[string]cachedIdentity),
	}
}

// NewKeycloakClientFromConfig builds a client from the auth.keycloak section.
func NewKeycloakClientFromConfig(cfg config.KeycloakConfig) *KeycloakClient {
	return NewKeycloakClient(cfg.URL, cfg.Realm, cfg.ClientID, cfg.ClientSecret)
}

// WithHTTPClient replaces the transport, for tests.
func (k *KeycloakClient) WithHTTPClient(c *httpclient.Client) *KeycloakClient {
	k.httpClient = c
	return k
}

func (k *KeycloakClient) introspectURL() string {
	return fmt.Sprintf("%s/realms/%s/protocol/openid-connect/token/introspect", k.baseURL, k.realm)
}

// Introspect asks Keycloak whether token is active. Active results are cached
// until the token expires, at most one minute.
func (k *KeycloakClient) Introspect(ctx context.Context, token string) (*TokenInfo, error) {
	if info, ok := k.cached(token); ok {
		return info, nil
	}

	form := url.Values{}
	form.Set("token", token)
	form.Set("token_type_hint", "access_token")

	resp, err := k.httpClient.PostForm(ctx, k.introspectURL(), form, k.clientID, k.clientSecret)
	if err != nil {
		if stderrors.Is(err, context.DeadlineExceeded) {
			return nil, errors.NewTimeoutError("keycloak", err)
		}
		return nil, &errors.StandardError{
			Code:      errors.ErrCodeExternalService,
			Message:   "Failed to send request to Keycloak",
			Details:   err.Error(),
			Retryable: true,
			Timestamp: time.Now().UTC(),
		}
	}

	if resp.StatusCode != 200 {
		return nil, &errors.StandardError{
			Code:      errors.ErrCodeAuthentication,
			Message:   "Keycloak introspection failed",
			Details:   fmt.Sprintf("status %d: %s", resp.StatusCode, string(resp.Body)),
			Retryable: httpclient.IsTransientStatus(resp.StatusCode),
			Timestamp: time.Now().UTC(),
		}
	}

	var info TokenInfo
	if err := json.Unmarshal(resp.Body, &info); err != nil {
		return nil, &errors.StandardError{
			Code:      errors.ErrCodeExternalService,
			Message:   "Failed to decode Keycloak response",
			Details:   err.Error(),
			Timestamp: time.Now().UTC(),
		}
	}

	if info.Active {
		k.store(token, &info)
	}
	return &info, nil
}

// Identify returns the subject of an active bearer token, nil when no token
// was presented, and INVALID_TOKEN for inactive tokens.
func (k *KeycloakClient) Identify(ctx context.Context, bearer string) (*string, error) {
	token := BearerToken(bearer)
	if token == "" {
		return nil, nil
	}

	info, err := k.Introspect(ctx, token)
	if err != nil {
		return nil, err
	}
	if !info.Active || info.Subject == "" {
		return nil, errors.NewInvalidTokenError("token is not active")
	}
	sub := info.Subject
	return &sub, nil
}

// BearerToken strips an optional "Bearer " scheme from an Authorization value.
func BearerToken(header string) string {
	header = strings.TrimSpace(header)
	if len(header) >= 7 && strings.EqualFold(header[:7], "bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return header
}

func (k *KeycloakClient) cached(token string) (*TokenInfo, bool) {
	k.mu.Lock()
	defer k.mu.Unlock()
	c, ok := k.cache[token]
	if !ok {
		return nil, false
	}
	if !k.now().Before(c.expires) {
		delete(k.cache, token)
		return nil, false
	}
	return c.info, true
}

func (k *KeycloakClient) store(token string, info *TokenInfo) {
	expires := k.now().Add(maxCacheTTL)
	if info.ExpiresAt > 0 {
		if exp := time.Unix(info.ExpiresAt, 0); exp.Before(expires) {
			expires = exp
		}
	}

	k.mu.Lock()
	defer k.mu.Unlock()
	for t, c := range k.cache {
		if !k.now().Before(c.expires) {
			delete(k.cache, t)
		}
	}
	k.cache[token] = cachedIdentity{info: info, expires: expires}
}
