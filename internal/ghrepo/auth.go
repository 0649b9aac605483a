package ghrepo

import (
	"context"
	"crypto/rsa"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
	gogithub "github.com/google/go-github/v60/github"
	"github.com/rs/zerolog"

	"github.com/mtnmerc/buildbox-agent/internal/credcache"
)

const (
	installationTokenKey = "github_installation_token"
	tokenTTL             = 55 * time.Minute // tokens last 1 hour, refresh at 55 min
)

// appAuth authenticates as a GitHub App installation. Installation tokens
// are minted just in time and cached until shortly before expiry.
type appAuth struct {
	appID          int64
	installationID int64
	privateKey     *rsa.PrivateKey
	tokenCache     credcache.Store
	httpClient     *http.Client
	logger         zerolog.Logger
}

func newAppAuth(appID, installationID int64, privateKeyPath string, cache credcache.Store, logger zerolog.Logger) (*appAuth, error) {
	keyData, err := os.ReadFile(privateKeyPath)
	if err != nil {
		return nil, fmt.Errorf("reading private key: %w", err)
	}
	return newAppAuthFromKeyBytes(appID, installationID, keyData, cache, logger)
}

func newAppAuthFromKeyBytes(appID, installationID int64, keyData []byte, cache credcache.Store, logger zerolog.Logger) (*appAuth, error) {
	key, err := jwt.ParseRSAPrivateKeyFromPEM(keyData)
	if err != nil {
		return nil, fmt.Errorf("parsing private key: %w", err)
	}
	return &appAuth{
		appID:          appID,
		installationID: installationID,
		privateKey:     key,
		tokenCache:     cache,
		httpClient:     &http.Client{Timeout: 30 * time.Second},
		logger:         logger,
	}, nil
}

// generateJWT creates a short-lived JWT for GitHub App authentication.
func (a *appAuth) generateJWT() (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		IssuedAt:  jwt.NewNumericDate(now.Add(-60 * time.Second)),
		ExpiresAt: jwt.NewNumericDate(now.Add(10 * time.Minute)),
		Issuer:    fmt.Sprintf("%d", a.appID),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	signed, err := token.SignedString(a.privateKey)
	if err != nil {
		return "", fmt.Errorf("signing JWT: %w", err)
	}
	return signed, nil
}

type installationTokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// installationToken returns a cached or freshly minted installation token.
func (a *appAuth) installationToken(ctx context.Context) (string, error) {
	tok, err := a.tokenCache.Get(ctx, installationTokenKey)
	if err == nil {
		a.logger.Debug().Msg("using cached installation token")
		return tok.Value, nil
	}

	a.logger.Info().Msg("generating new installation token")
	jwtToken, err := a.generateJWT()
	if err != nil {
		return "", fmt.Errorf("generating JWT: %w", err)
	}

	url := fmt.Sprintf("https://api.github.com/app/installations/%d/access_tokens", a.installationID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, nil)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+jwtToken)
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("requesting installation token: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("installation token request failed (status %d): %s", resp.StatusCode, body)
	}

	var tokenResp installationTokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tokenResp); err != nil {
		return "", fmt.Errorf("decoding token response: %w", err)
	}

	if err := a.tokenCache.Set(ctx, installationTokenKey, tokenResp.Token, tokenTTL); err != nil {
		a.logger.Warn().Err(err).Msg("failed to cache installation token")
	}
	return tokenResp.Token, nil
}

// client returns a go-github client authenticated with an installation token.
func (a *appAuth) client(ctx context.Context) (*gogithub.Client, error) {
	token, err := a.installationToken(ctx)
	if err != nil {
		return nil, err
	}
	return gogithub.NewClient(&http.Client{
		Transport: &tokenTransport{token: token, base: http.DefaultTransport},
		Timeout:   30 * time.Second,
	}), nil
}

type tokenTransport struct {
	token string
	base  http.RoundTripper
}

func (t *tokenTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req2 := req.Clone(req.Context())
	req2.Header.Set("Authorization", "token "+t.token)
	return t.base.RoundTrip(req2)
}
