// internal/database/repositories.go
package database

import (
	"context"
	"time"
)

const createRepositoryPlaceholder = `
INSERT INTO repositories (full_name)
VALUES ($1)
ON CONFLICT (full_name) DO NOTHING
`

// CreateRepositoryPlaceholder inserts the row a refresh claim will lock.
// Racing inserts collapse into one row; losing the insert race is not an
// error.
func (q *Queries) CreateRepositoryPlaceholder(ctx context.Context, fullName string) error {
	_, err := q.db.Exec(ctx, createRepositoryPlaceholder, fullName)
	return err
}

const claimRepositoryForRefresh = `
SELECT full_name, available, fetched_at
FROM repositories
WHERE full_name = $1
  AND (fetched_at IS NULL OR $2 OR fetched_at < $3)
FOR UPDATE SKIP LOCKED
`

type ClaimRepositoryForRefreshParams struct {
	FullName string
	Force    bool
	Cutoff   time.Time
}

// ClaimRepositoryForRefresh locks the repository row for a refresh if it is
// stale and nobody else holds it. Returns pgx.ErrNoRows both when the row
// is fresh and when another transaction already claimed it; callers treat
// the two identically.
func (q *Queries) ClaimRepositoryForRefresh(ctx context.Context, arg ClaimRepositoryForRefreshParams) (Repository, error) {
	row := q.db.QueryRow(ctx, claimRepositoryForRefresh, arg.FullName, arg.Force, arg.Cutoff)
	var r Repository
	err := row.Scan(&r.FullName, &r.Available, &r.FetchedAt)
	return r, err
}

const setRepositoryFetched = `
UPDATE repositories
SET available = $2, fetched_at = now()
WHERE full_name = $1
`

type SetRepositoryFetchedParams struct {
	FullName  string
	Available bool
}

func (q *Queries) SetRepositoryFetched(ctx context.Context, arg SetRepositoryFetchedParams) error {
	_, err := q.db.Exec(ctx, setRepositoryFetched, arg.FullName, arg.Available)
	return err
}

const upsertRepositoryDetails = `
INSERT INTO repository_details (repo_full_name, description, default_branch, stars_count, forks_count, open_issues_count, license, private)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (repo_full_name) DO UPDATE SET
    description       = EXCLUDED.description,
    default_branch    = EXCLUDED.default_branch,
    stars_count       = EXCLUDED.stars_count,
    forks_count       = EXCLUDED.forks_count,
    open_issues_count = EXCLUDED.open_issues_count,
    license           = EXCLUDED.license,
    private           = EXCLUDED.private
`

type UpsertRepositoryDetailsParams struct {
	RepoFullName    string
	Description     *string
	DefaultBranch   string
	StarsCount      int32
	ForksCount      int32
	OpenIssuesCount int32
	License         *string
	Private         bool
}

func (q *Queries) UpsertRepositoryDetails(ctx context.Context, arg UpsertRepositoryDetailsParams) error {
	_, err := q.db.Exec(ctx, upsertRepositoryDetails,
		arg.RepoFullName,
		arg.Description,
		arg.DefaultBranch,
		arg.StarsCount,
		arg.ForksCount,
		arg.OpenIssuesCount,
		arg.License,
		arg.Private,
	)
	return err
}

const deleteRepositoryDetails = `
DELETE FROM repository_details
WHERE repo_full_name = $1
`

// DeleteRepositoryDetails removes the metadata snapshot when a repository
// turns out to be missing or unreadable.
func (q *Queries) DeleteRepositoryDetails(ctx context.Context, repoFullName string) error {
	_, err := q.db.Exec(ctx, deleteRepositoryDetails, repoFullName)
	return err
}

const getRepository = `
SELECT full_name, available, fetched_at
FROM repositories
WHERE full_name = $1
`

func (q *Queries) GetRepository(ctx context.Context, fullName string) (Repository, error) {
	row := q.db.QueryRow(ctx, getRepository, fullName)
	var r Repository
	err := row.Scan(&r.FullName, &r.Available, &r.FetchedAt)
	return r, err
}

const getRepositoryDetails = `
SELECT repo_full_name, description, default_branch, stars_count, forks_count, open_issues_count, license, private
FROM repository_details
WHERE repo_full_name = $1
`

func (q *Queries) GetRepositoryDetails(ctx context.Context, repoFullName string) (RepositoryDetails, error) {
	row := q.db.QueryRow(ctx, getRepositoryDetails, repoFullName)
	var d RepositoryDetails
	err := row.Scan(
		&d.RepoFullName,
		&d.Description,
		&d.DefaultBranch,
		&d.StarsCount,
		&d.ForksCount,
		&d.OpenIssuesCount,
		&d.License,
		&d.Private,
	)
	return d, err
}
