// internal/github/client.go
package github

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/google/go-github/v62/github"
	"golang.org/x/oauth2"

	custom_errors "github.com/kylediaz/github-chat/internal/errors"
	"github.com/kylediaz/github-chat/internal/model"
)

// Client is a wrapper around the go-github client.
type Client struct {
	gh     *github.Client
	logger *slog.Logger
}

// NewClient creates and configures a new Client instance.
// The provided token is used to create an authenticated http.Client. A
// non-empty baseURL points the client at a GitHub Enterprise or test
// endpoint instead of public GitHub.
func NewClient(token, baseURL string, logger *slog.Logger) (*Client, error) {
	ctx := context.Background()
	ts := oauth2.StaticTokenSource(
		&oauth2.Token{AccessToken: token},
	)
	tc := oauth2.NewClient(ctx, ts)

	gh := github.NewClient(tc)
	if baseURL != "" {
		var err error
		gh, err = gh.WithEnterpriseURLs(baseURL, baseURL)
		if err != nil {
			return nil, fmt.Errorf("configure github base url: %w", err)
		}
	}

	return &Client{
		gh:     gh,
		logger: logger,
	}, nil
}

// GetRepository fetches repository details and translates them to our internal model.
func (c *Client) GetRepository(ctx context.Context, owner, name string) (*model.RepositoryMetadata, error) {
	repo, _, err := c.gh.Repositories.Get(ctx, owner, name)
	if err != nil {
		return nil, normalizeError("get repository", err)
	}
	return toInternalRepository(repo), nil
}

// GetBranchHead fetches the commit at the tip of the given branch.
func (c *Client) GetBranchHead(ctx context.Context, owner, name, branch string) (*model.BranchHead, error) {
	br, _, err := c.gh.Repositories.GetBranch(ctx, owner, name, branch, 1)
	if err != nil {
		return nil, normalizeError("get branch", err)
	}
	return toInternalBranchHead(br), nil
}

// GetTree fetches the full recursive file listing for a tree SHA. Truncated
// listings are returned as-is; the API caps recursive results at 100k
// entries, which is plenty for a browsing sidebar.
func (c *Client) GetTree(ctx context.Context, owner, name, treeSHA string) ([]model.TreeEntry, error) {
	tree, _, err := c.gh.Git.GetTree(ctx, owner, name, treeSHA, true)
	if err != nil {
		return nil, normalizeError("get tree", err)
	}
	if tree.GetTruncated() {
		c.logger.Warn("Tree listing truncated by API", "owner", owner, "repo", name, "tree_sha", treeSHA)
	}

	entries := make([]model.TreeEntry, 0, len(tree.Entries))
	for _, e := range tree.Entries {
		entries = append(entries, model.TreeEntry{
			Path: e.GetPath(),
			Type: e.GetType(),
			Size: int64(e.GetSize()),
		})
	}
	return entries, nil
}

// normalizeError maps go-github failures onto the fetch error classes.
// Rate limits are transient, not access failures, even though GitHub
// reports them as 403s.
func normalizeError(op string, err error) error {
	var rateErr *github.RateLimitError
	var abuseErr *github.AbuseRateLimitError
	if errors.As(err, &rateErr) || errors.As(err, &abuseErr) {
		return fmt.Errorf("%s: rate limited: %w", op, err)
	}

	var ghErr *github.ErrorResponse
	if errors.As(err, &ghErr) && ghErr.Response != nil {
		switch ghErr.Response.StatusCode {
		case http.StatusNotFound, http.StatusGone:
			return fmt.Errorf("%s: %w", op, custom_errors.ErrNotFound)
		case http.StatusUnauthorized, http.StatusForbidden, http.StatusUnavailableForLegalReasons:
			return fmt.Errorf("%s: %w", op, custom_errors.ErrInaccessible)
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}

// toInternalRepository translates a github.Repository object to our internal model.
func toInternalRepository(r *github.Repository) *model.RepositoryMetadata {
	var license *string
	if l := r.GetLicense(); l != nil {
		name := l.GetName()
		license = &name
	}
	return &model.RepositoryMetadata{
		Owner:           r.GetOwner().GetLogin(),
		Name:            r.GetName(),
		Description:     r.Description,
		DefaultBranch:   r.GetDefaultBranch(),
		StarsCount:      r.GetStargazersCount(),
		ForksCount:      r.GetForksCount(),
		OpenIssuesCount: r.GetOpenIssuesCount(),
		License:         license,
		Private:         r.GetPrivate(),
	}
}

// toInternalBranchHead translates a github.Branch object to our internal model.
func toInternalBranchHead(b *github.Branch) *model.BranchHead {
	commit := b.GetCommit()
	return &model.BranchHead{
		SHA:        commit.GetSHA(),
		TreeSHA:    commit.GetCommit().GetTree().GetSHA(),
		Message:    commit.GetCommit().GetMessage(),
		AuthorName: commit.GetCommit().GetAuthor().GetName(),
		HTMLURL:    commit.GetHTMLURL(),
	}
}
