package fetcher

import (
	"context"
	"crypto/rsa"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// AuthMode identifies how requests to GitHub are authenticated.
type AuthMode string

const (
	// AuthModeApp authenticates as a GitHub App installation.
	AuthModeApp AuthMode = "app"
	// AuthModeToken authenticates with a personal access token.
	AuthModeToken AuthMode = "token"
	// AuthModeNone sends unauthenticated requests (60 requests/hour).
	AuthModeNone AuthMode = "none"
)

// Credentials holds every credential the server may be configured with.
// Mode applies the static precedence: app identity, then token, then anonymous.
type Credentials struct {
	Token          string
	AppID          string
	PrivateKey     string
	InstallationID string
}

// Mode returns the authentication mode these credentials resolve to.
func (c Credentials) Mode() AuthMode {
	if c.AppID != "" && c.PrivateKey != "" && c.InstallationID != "" {
		return AuthModeApp
	}
	if c.Token != "" {
		return AuthModeToken
	}
	return AuthModeNone
}

// Authenticator yields the Authorization header value for a request.
// An empty value means the request goes out unauthenticated.
type Authenticator interface {
	Authorization(ctx context.Context) (string, error)
	Mode() AuthMode
}

// NewAuthenticator builds the authenticator selected by creds.Mode().
// The HTTP client and API base URL are only used for GitHub App token exchange.
func NewAuthenticator(creds Credentials, client *HTTPClient, apiBaseURL string) (Authenticator, error) {
	switch creds.Mode() {
	case AuthModeApp:
		return NewAppAuthenticator(client, apiBaseURL, creds.AppID, creds.PrivateKey, creds.InstallationID)
	case AuthModeToken:
		return TokenAuthenticator(creds.Token), nil
	default:
		return AnonymousAuthenticator{}, nil
	}
}

// AnonymousAuthenticator sends no credentials.
type AnonymousAuthenticator struct{}

func (AnonymousAuthenticator) Authorization(context.Context) (string, error) { return "", nil }
func (AnonymousAuthenticator) Mode() AuthMode                                { return AuthModeNone }

// TokenAuthenticator sends a personal access token as a bearer token.
type TokenAuthenticator string

func (t TokenAuthenticator) Authorization(context.Context) (string, error) {
	return "Bearer " + string(t), nil
}
func (t TokenAuthenticator) Mode() AuthMode { return AuthModeToken }

// AppAuthenticator exchanges a signed app JWT for an installation access token
// and caches it until shortly before it expires.
type AppAuthenticator struct {
	client         *HTTPClient
	baseURL        string
	appID          string
	installationID string
	key            *rsa.PrivateKey
	now            func() time.Time

	mu        sync.Mutex
	token     string
	expiresAt time.Time
}

// tokenRefreshMargin is how long before expiry a cached installation token is replaced.
const tokenRefreshMargin = time.Minute

// NewAppAuthenticator parses the PEM-encoded private key and returns an authenticator
// for the given app installation.
func NewAppAuthenticator(client *HTTPClient, apiBaseURL, appID, privateKeyPEM, installationID string) (*AppAuthenticator, error) {
	if client == nil {
		return nil, fmt.Errorf("http client cannot be nil")
	}
	// Keys passed through env vars usually carry literal "\n" sequences.
	pem := strings.ReplaceAll(privateKeyPEM, `\n`, "\n")
	key, err := jwt.ParseRSAPrivateKeyFromPEM([]byte(pem))
	if err != nil {
		return nil, fmt.Errorf("failed to parse GitHub App private key: %w", err)
	}

	return &AppAuthenticator{
		client:         client,
		baseURL:        strings.TrimSuffix(apiBaseURL, "/"),
		appID:          appID,
		installationID: installationID,
		key:            key,
		now:            time.Now,
	}, nil
}

// Mode returns AuthModeApp.
func (a *AppAuthenticator) Mode() AuthMode { return AuthModeApp }

// Authorization returns a bearer header with a valid installation token.
func (a *AppAuthenticator) Authorization(ctx context.Context) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.token != "" && a.now().Add(tokenRefreshMargin).Before(a.expiresAt) {
		return "Bearer " + a.token, nil
	}

	signed, err := a.signJWT()
	if err != nil {
		return "", err
	}

	header := http.Header{}
	header.Set("Authorization", "Bearer "+signed)
	header.Set("Accept", "application/vnd.github+json")

	url := fmt.Sprintf("%s/app/installations/%s/access_tokens", a.baseURL, a.installationID)
	body, err := a.client.Do(ctx, http.MethodPost, url, header, []byte{})
	if err != nil {
		return "", fmt.Errorf("failed to create installation token: %w", err)
	}

	var resp struct {
		Token     string    `json:"token"`
		ExpiresAt time.Time `json:"expires_at"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("failed to parse installation token response: %w", err)
	}
	if resp.Token == "" {
		return "", fmt.Errorf("installation token response did not contain a token")
	}

	a.token = resp.Token
	a.expiresAt = resp.ExpiresAt
	return "Bearer " + a.token, nil
}

// signJWT issues the short-lived JWT GitHub requires for app-level endpoints.
// iat is backdated a minute to tolerate clock drift.
func (a *AppAuthenticator) signJWT() (string, error) {
	now := a.now()
	claims := jwt.RegisteredClaims{
		Issuer:    a.appID,
		IssuedAt:  jwt.NewNumericDate(now.Add(-60 * time.Second)),
		ExpiresAt: jwt.NewNumericDate(now.Add(9 * time.Minute)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(a.key)
	if err != nil {
		return "", fmt.Errorf("failed to sign GitHub App JWT: %w", err)
	}
	return signed, nil
}
