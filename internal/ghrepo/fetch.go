package ghrepo

import (
	"context"
	"fmt"
	"unicode/utf8"

	gogithub "github.com/google/go-github/v60/github"

	"github.com/mtnmerc/buildbox-agent/internal/workspace"
)

// Fetch pulls a snapshot of owner/repo at branch into workspace records.
// Oversized blobs and binary content are skipped with a log line; the fetch
// stops quietly once the file cap is reached.
func (c *Client) Fetch(ctx context.Context, owner, repo, branch string) ([]workspace.FileRecord, string, error) {
	api, err := c.api(ctx)
	if err != nil {
		return nil, "", wrapErr(err)
	}

	var ref *gogithub.Reference
	if err := c.do(ctx, func(ctx context.Context) error {
		var err error
		ref, _, err = api.Git.GetRef(ctx, owner, repo, "refs/heads/"+branch)
		return wrapErr(err)
	}); err != nil {
		return nil, "", err
	}
	headSHA := ref.GetObject().GetSHA()

	var tree *gogithub.Tree
	if err := c.do(ctx, func(ctx context.Context) error {
		var err error
		tree, _, err = api.Git.GetTree(ctx, owner, repo, headSHA, true)
		return wrapErr(err)
	}); err != nil {
		return nil, "", err
	}
	if tree.GetTruncated() {
		c.logger.Warn().Str("repo", owner+"/"+repo).Msg("repository tree truncated by the API")
	}

	var (
		files   []workspace.FileRecord
		skipped int
	)
	for _, entry := range tree.Entries {
		if entry.GetType() != "blob" {
			continue
		}
		if len(files) >= c.maxFiles {
			c.logger.Warn().Int("limit", c.maxFiles).Msg("file cap reached, remaining files skipped")
			break
		}
		if int64(entry.GetSize()) > c.maxFileBytes {
			skipped++
			c.logger.Debug().Str("path", entry.GetPath()).Int("size", entry.GetSize()).Msg("skipping oversized file")
			continue
		}

		content, err := c.fetchBlob(ctx, api, owner, repo, entry.GetSHA())
		if err != nil {
			return nil, "", fmt.Errorf("fetching %s: %w", entry.GetPath(), err)
		}
		if !utf8.ValidString(content) {
			skipped++
			c.logger.Debug().Str("path", entry.GetPath()).Msg("skipping binary file")
			continue
		}
		files = append(files, workspace.NewRecord(entry.GetPath(), content))
	}

	c.logger.Info().
		Str("repo", owner+"/"+repo).
		Str("branch", branch).
		Int("files", len(files)).
		Int("skipped", skipped).
		Msg("repository fetched")
	return files, headSHA, nil
}

func (c *Client) fetchBlob(ctx context.Context, api *gogithub.Client, owner, repo, sha string) (string, error) {
	var blob *gogithub.Blob
	if err := c.do(ctx, func(ctx context.Context) error {
		var err error
		blob, _, err = api.Git.GetBlob(ctx, owner, repo, sha)
		return wrapErr(err)
	}); err != nil {
		return "", err
	}

	if blob.GetEncoding() != "base64" {
		return blob.GetContent(), nil
	}
	decoded, err := decodeBase64(blob.GetContent())
	if err != nil {
		return "", fmt.Errorf("decoding blob %s: %w", sha, err)
	}
	return decoded, nil
}
