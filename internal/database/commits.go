// internal/database/commits.go
package database

import (
	"context"
	"time"
)

const createRepositoryStatePlaceholder = `
INSERT INTO repository_state (repo_full_name)
VALUES ($1)
ON CONFLICT (repo_full_name) DO NOTHING
`

func (q *Queries) CreateRepositoryStatePlaceholder(ctx context.Context, repoFullName string) error {
	_, err := q.db.Exec(ctx, createRepositoryStatePlaceholder, repoFullName)
	return err
}

const claimRepositoryStateForRefresh = `
SELECT repo_full_name, latest_commit_sha, latest_processed_commit_sha, fetched_at
FROM repository_state
WHERE repo_full_name = $1
  AND (fetched_at IS NULL OR $2 OR fetched_at < $3)
FOR UPDATE SKIP LOCKED
`

type ClaimRepositoryStateForRefreshParams struct {
	RepoFullName string
	Force        bool
	Cutoff       time.Time
}

// ClaimRepositoryStateForRefresh locks the state row for a branch-head
// lookup. pgx.ErrNoRows means fresh or already claimed elsewhere.
func (q *Queries) ClaimRepositoryStateForRefresh(ctx context.Context, arg ClaimRepositoryStateForRefreshParams) (RepositoryState, error) {
	row := q.db.QueryRow(ctx, claimRepositoryStateForRefresh, arg.RepoFullName, arg.Force, arg.Cutoff)
	var s RepositoryState
	err := row.Scan(&s.RepoFullName, &s.LatestCommitSHA, &s.LatestProcessedCommitSHA, &s.FetchedAt)
	return s, err
}

const upsertCommit = `
INSERT INTO commits (sha, repo_full_name, tree_sha, message, author_name, html_url, fetched_at)
VALUES ($1, $2, $3, $4, $5, $6, now())
ON CONFLICT (sha) DO UPDATE SET fetched_at = EXCLUDED.fetched_at
`

type UpsertCommitParams struct {
	SHA          string
	RepoFullName string
	TreeSHA      string
	Message      string
	AuthorName   string
	HTMLURL      string
}

// UpsertCommit stores a commit record. Commits are content-addressed, so a
// conflicting insert only re-confirms the fetch time.
func (q *Queries) UpsertCommit(ctx context.Context, arg UpsertCommitParams) error {
	_, err := q.db.Exec(ctx, upsertCommit,
		arg.SHA,
		arg.RepoFullName,
		arg.TreeSHA,
		arg.Message,
		arg.AuthorName,
		arg.HTMLURL,
	)
	return err
}

const setLatestCommit = `
UPDATE repository_state
SET latest_commit_sha = $2, fetched_at = now()
WHERE repo_full_name = $1
`

type SetLatestCommitParams struct {
	RepoFullName    string
	LatestCommitSHA string
}

func (q *Queries) SetLatestCommit(ctx context.Context, arg SetLatestCommitParams) error {
	_, err := q.db.Exec(ctx, setLatestCommit, arg.RepoFullName, arg.LatestCommitSHA)
	return err
}

const touchRepositoryState = `
UPDATE repository_state
SET fetched_at = now()
WHERE repo_full_name = $1
`

// TouchRepositoryState records a branch-head lookup that confirmed nothing
// new, keeping the stored head unchanged.
func (q *Queries) TouchRepositoryState(ctx context.Context, repoFullName string) error {
	_, err := q.db.Exec(ctx, touchRepositoryState, repoFullName)
	return err
}

const getRepositoryState = `
SELECT repo_full_name, latest_commit_sha, latest_processed_commit_sha, fetched_at
FROM repository_state
WHERE repo_full_name = $1
`

func (q *Queries) GetRepositoryState(ctx context.Context, repoFullName string) (RepositoryState, error) {
	row := q.db.QueryRow(ctx, getRepositoryState, repoFullName)
	var s RepositoryState
	err := row.Scan(&s.RepoFullName, &s.LatestCommitSHA, &s.LatestProcessedCommitSHA, &s.FetchedAt)
	return s, err
}

const getCommit = `
SELECT sha, repo_full_name, tree_sha, message, author_name, html_url, fetched_at
FROM commits
WHERE sha = $1
`

func (q *Queries) GetCommit(ctx context.Context, sha string) (Commit, error) {
	row := q.db.QueryRow(ctx, getCommit, sha)
	var c Commit
	err := row.Scan(&c.SHA, &c.RepoFullName, &c.TreeSHA, &c.Message, &c.AuthorName, &c.HTMLURL, &c.FetchedAt)
	return c, err
}
