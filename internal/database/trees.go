// internal/database/trees.go
package database

import (
	"context"
	"time"
)

const createTreePlaceholder = `
INSERT INTO trees (sha, repo_full_name)
VALUES ($1, $2)
ON CONFLICT (sha) DO NOTHING
`

type CreateTreePlaceholderParams struct {
	SHA          string
	RepoFullName string
}

func (q *Queries) CreateTreePlaceholder(ctx context.Context, arg CreateTreePlaceholderParams) error {
	_, err := q.db.Exec(ctx, createTreePlaceholder, arg.SHA, arg.RepoFullName)
	return err
}

const claimTreeForRefresh = `
SELECT sha, repo_full_name, entries, fetched_at
FROM trees
WHERE sha = $1
  AND entries IS NULL
  AND (fetched_at IS NULL OR $2 OR fetched_at < $3)
FOR UPDATE SKIP LOCKED
`

type ClaimTreeForRefreshParams struct {
	SHA    string
	Force  bool
	Cutoff time.Time
}

// ClaimTreeForRefresh locks a tree row whose listing is still missing.
// Trees are content-addressed, so a row with entries already stored is
// never eligible again.
func (q *Queries) ClaimTreeForRefresh(ctx context.Context, arg ClaimTreeForRefreshParams) (Tree, error) {
	row := q.db.QueryRow(ctx, claimTreeForRefresh, arg.SHA, arg.Force, arg.Cutoff)
	var t Tree
	err := row.Scan(&t.SHA, &t.RepoFullName, &t.Entries, &t.FetchedAt)
	return t, err
}

const setTreeEntries = `
UPDATE trees
SET entries = $2, fetched_at = now()
WHERE sha = $1
`

type SetTreeEntriesParams struct {
	SHA     string
	Entries []byte
}

func (q *Queries) SetTreeEntries(ctx context.Context, arg SetTreeEntriesParams) error {
	_, err := q.db.Exec(ctx, setTreeEntries, arg.SHA, arg.Entries)
	return err
}

const touchTree = `
UPDATE trees
SET fetched_at = now()
WHERE sha = $1
`

// TouchTree records a lookup that confirmed the tree is unavailable
// upstream, leaving entries null.
func (q *Queries) TouchTree(ctx context.Context, sha string) error {
	_, err := q.db.Exec(ctx, touchTree, sha)
	return err
}

const getTree = `
SELECT sha, repo_full_name, entries, fetched_at
FROM trees
WHERE sha = $1
`

func (q *Queries) GetTree(ctx context.Context, sha string) (Tree, error) {
	row := q.db.QueryRow(ctx, getTree, sha)
	var t Tree
	err := row.Scan(&t.SHA, &t.RepoFullName, &t.Entries, &t.FetchedAt)
	return t, err
}
