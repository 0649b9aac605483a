// Package ghrepo talks to GitHub: it pulls repository snapshots into a
// session working copy and pushes modified files back as a single commit.
// All traffic here is retried on transient failures, unlike completion calls.
package ghrepo

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	gogithub "github.com/google/go-github/v60/github"
	"github.com/rs/zerolog"

	"github.com/mtnmerc/buildbox-agent/internal/config"
	"github.com/mtnmerc/buildbox-agent/internal/credcache"
	berrors "github.com/mtnmerc/buildbox-agent/internal/errors"
	"github.com/mtnmerc/buildbox-agent/internal/metrics"
	"github.com/mtnmerc/buildbox-agent/internal/retry"
)

const serviceName = "repository"

// Client fetches and pushes repository contents.
type Client struct {
	api          func(ctx context.Context) (*gogithub.Client, error)
	maxFileBytes int64
	maxFiles     int
	retryCfg     retry.Config
	metrics      *metrics.Metrics
	logger       zerolog.Logger
}

// New builds a Client from configuration. App credentials win over a
// personal access token when both are present.
func New(cfg *config.Config, m *metrics.Metrics, logger zerolog.Logger) (*Client, error) {
	c := &Client{
		maxFileBytes: cfg.MaxFileBytes,
		maxFiles:     cfg.MaxRepoFiles,
		retryCfg:     retry.DefaultConfig(),
		metrics:      m,
		logger:       logger.With().Str("component", "ghrepo").Logger(),
	}

	switch {
	case cfg.GitHubAppEnabled():
		auth, err := newAppAuth(cfg.GitHubAppID, cfg.GitHubInstallationID, cfg.GitHubPrivateKeyPath,
			credcache.NewMemoryStore(), c.logger)
		if err != nil {
			return nil, err
		}
		c.api = auth.client
	case cfg.GitHubToken != "":
		static := gogithub.NewClient(&http.Client{
			Transport: &tokenTransport{token: cfg.GitHubToken, base: http.DefaultTransport},
			Timeout:   30 * time.Second,
		})
		c.api = func(context.Context) (*gogithub.Client, error) { return static, nil }
	default:
		return nil, fmt.Errorf("no GitHub credentials configured")
	}
	return c, nil
}

// do runs one GitHub call with retry on transient failures.
func (c *Client) do(ctx context.Context, fn func(ctx context.Context) error) error {
	return retry.Do(ctx, c.retryCfg, fn)
}

// wrapErr normalizes go-github errors into ServiceErrors so retry and the
// API layer can classify them.
func wrapErr(err error) error {
	if err == nil {
		return nil
	}
	var ghErr *gogithub.ErrorResponse
	if errors.As(err, &ghErr) && ghErr.Response != nil {
		return berrors.NewServiceError(serviceName, ghErr.Response.StatusCode, ghErr.Message)
	}
	var rateErr *gogithub.RateLimitError
	if errors.As(err, &rateErr) {
		return berrors.NewServiceError(serviceName, http.StatusTooManyRequests, rateErr.Message)
	}
	return berrors.WrapService(serviceName, err)
}
