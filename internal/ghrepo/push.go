package ghrepo

import (
	"context"
	"encoding/base64"
	"strconv"
	"strings"

	gogithub "github.com/google/go-github/v60/github"

	berrors "github.com/mtnmerc/buildbox-agent/internal/errors"
	"github.com/mtnmerc/buildbox-agent/internal/workspace"
)

// Push commits the given files to owner/repo at branch in a single commit
// and returns the new commit SHA. Files not in the list are left as they are
// upstream. An empty list is rejected before any traffic.
func (c *Client) Push(ctx context.Context, owner, repo, branch, message string, files []workspace.FileRecord) (string, error) {
	if len(files) == 0 {
		return "", berrors.NewServiceError(serviceName, 0, "nothing to push")
	}

	api, err := c.api(ctx)
	if err != nil {
		c.metrics.RecordPush("error")
		return "", wrapErr(err)
	}

	sha, err := c.push(ctx, api, owner, repo, branch, message, files)
	if err != nil {
		c.metrics.RecordPush("error")
		return "", err
	}
	c.metrics.RecordPush("success")
	return sha, nil
}

func (c *Client) push(ctx context.Context, api *gogithub.Client, owner, repo, branch, message string, files []workspace.FileRecord) (string, error) {
	refName := "refs/heads/" + branch

	var ref *gogithub.Reference
	if err := c.do(ctx, func(ctx context.Context) error {
		var err error
		ref, _, err = api.Git.GetRef(ctx, owner, repo, refName)
		return wrapErr(err)
	}); err != nil {
		return "", err
	}
	baseSHA := ref.GetObject().GetSHA()

	var baseCommit *gogithub.Commit
	if err := c.do(ctx, func(ctx context.Context) error {
		var err error
		baseCommit, _, err = api.Git.GetCommit(ctx, owner, repo, baseSHA)
		return wrapErr(err)
	}); err != nil {
		return "", err
	}

	entries := make([]*gogithub.TreeEntry, 0, len(files))
	for _, f := range files {
		f := f
		var blob *gogithub.Blob
		if err := c.do(ctx, func(ctx context.Context) error {
			var err error
			blob, _, err = api.Git.CreateBlob(ctx, owner, repo, &gogithub.Blob{
				Content:  gogithub.String(f.Content),
				Encoding: gogithub.String("utf-8"),
			})
			return wrapErr(err)
		}); err != nil {
			return "", err
		}
		entries = append(entries, &gogithub.TreeEntry{
			Path: gogithub.String(f.Path),
			Mode: gogithub.String("100644"),
			Type: gogithub.String("blob"),
			SHA:  blob.SHA,
		})
	}

	var tree *gogithub.Tree
	if err := c.do(ctx, func(ctx context.Context) error {
		var err error
		tree, _, err = api.Git.CreateTree(ctx, owner, repo, baseCommit.GetTree().GetSHA(), entries)
		return wrapErr(err)
	}); err != nil {
		return "", err
	}

	if message == "" {
		message = defaultCommitMessage(files)
	}

	var commit *gogithub.Commit
	if err := c.do(ctx, func(ctx context.Context) error {
		var err error
		commit, _, err = api.Git.CreateCommit(ctx, owner, repo, &gogithub.Commit{
			Message: gogithub.String(message),
			Tree:    tree,
			Parents: []*gogithub.Commit{{SHA: gogithub.String(baseSHA)}},
		}, nil)
		return wrapErr(err)
	}); err != nil {
		return "", err
	}

	if err := c.do(ctx, func(ctx context.Context) error {
		_, _, err := api.Git.UpdateRef(ctx, owner, repo, &gogithub.Reference{
			Ref:    gogithub.String(refName),
			Object: &gogithub.GitObject{SHA: commit.SHA},
		}, false)
		return wrapErr(err)
	}); err != nil {
		return "", err
	}

	c.logger.Info().
		Str("repo", owner+"/"+repo).
		Str("branch", branch).
		Int("files", len(files)).
		Str("commit", commit.GetSHA()).
		Msg("changes pushed")
	return commit.GetSHA(), nil
}

// defaultCommitMessage summarizes the pushed paths when no message is given.
func defaultCommitMessage(files []workspace.FileRecord) string {
	paths := make([]string, 0, len(files))
	for _, f := range files {
		paths = append(paths, f.Path)
	}
	const maxListed = 3
	if len(paths) <= maxListed {
		return "Update " + strings.Join(paths, ", ")
	}
	return "Update " + strings.Join(paths[:maxListed], ", ") +
		" and " + strconv.Itoa(len(paths)-maxListed) + " more files"
}

func decodeBase64(s string) (string, error) {
	decoded, err := base64.StdEncoding.DecodeString(strings.ReplaceAll(s, "\n", ""))
	if err != nil {
		return "", err
	}
	return string(decoded), nil
}
