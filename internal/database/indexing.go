// internal/database/indexing.go
package database

import (
	"context"
	"time"

	"github.com/kylediaz/github-chat/internal/model"
)

const createIndexSourcePlaceholder = `
INSERT INTO index_sources (id, repo_full_name)
VALUES ($1, $2)
ON CONFLICT (repo_full_name) DO NOTHING
`

type CreateIndexSourcePlaceholderParams struct {
	ID           string
	RepoFullName string
}

// CreateIndexSourcePlaceholder inserts the local registration row. The
// unique constraint on repo_full_name collapses racing inserts; the losing
// insert simply leaves the winner's row in place.
func (q *Queries) CreateIndexSourcePlaceholder(ctx context.Context, arg CreateIndexSourcePlaceholderParams) error {
	_, err := q.db.Exec(ctx, createIndexSourcePlaceholder, arg.ID, arg.RepoFullName)
	return err
}

const claimIndexSourceForRegistration = `
SELECT id, repo_full_name, external_id, created_at
FROM index_sources
WHERE repo_full_name = $1
  AND external_id IS NULL
FOR UPDATE SKIP LOCKED
`

// ClaimIndexSourceForRegistration locks the source row while its remote
// registration is still outstanding. Once external_id is set the row is
// never eligible again.
func (q *Queries) ClaimIndexSourceForRegistration(ctx context.Context, repoFullName string) (IndexSource, error) {
	row := q.db.QueryRow(ctx, claimIndexSourceForRegistration, repoFullName)
	var s IndexSource
	err := row.Scan(&s.ID, &s.RepoFullName, &s.ExternalID, &s.CreatedAt)
	return s, err
}

const setIndexSourceExternalID = `
UPDATE index_sources
SET external_id = $2
WHERE id = $1
`

type SetIndexSourceExternalIDParams struct {
	ID         string
	ExternalID string
}

func (q *Queries) SetIndexSourceExternalID(ctx context.Context, arg SetIndexSourceExternalIDParams) error {
	_, err := q.db.Exec(ctx, setIndexSourceExternalID, arg.ID, arg.ExternalID)
	return err
}

const getIndexSource = `
SELECT id, repo_full_name, external_id, created_at
FROM index_sources
WHERE repo_full_name = $1
`

func (q *Queries) GetIndexSource(ctx context.Context, repoFullName string) (IndexSource, error) {
	row := q.db.QueryRow(ctx, getIndexSource, repoFullName)
	var s IndexSource
	err := row.Scan(&s.ID, &s.RepoFullName, &s.ExternalID, &s.CreatedAt)
	return s, err
}

const createInvocationPlaceholder = `
INSERT INTO index_invocations (id, source_id, ref, collection_name)
VALUES ($1, $2, $3, $4)
ON CONFLICT (source_id, ref) DO NOTHING
`

type CreateInvocationPlaceholderParams struct {
	ID             string
	SourceID       string
	Ref            string
	CollectionName string
}

func (q *Queries) CreateInvocationPlaceholder(ctx context.Context, arg CreateInvocationPlaceholderParams) error {
	_, err := q.db.Exec(ctx, createInvocationPlaceholder, arg.ID, arg.SourceID, arg.Ref, arg.CollectionName)
	return err
}

const claimInvocationForRegistration = `
SELECT id, source_id, ref, collection_name, external_id, status, status_detail, created_at, status_fetched_at
FROM index_invocations
WHERE source_id = $1
  AND ref = $2
  AND external_id IS NULL
FOR UPDATE SKIP LOCKED
`

type ClaimInvocationForRegistrationParams struct {
	SourceID string
	Ref      string
}

func (q *Queries) ClaimInvocationForRegistration(ctx context.Context, arg ClaimInvocationForRegistrationParams) (IndexInvocation, error) {
	row := q.db.QueryRow(ctx, claimInvocationForRegistration, arg.SourceID, arg.Ref)
	return scanInvocation(row)
}

const setInvocationExternalID = `
UPDATE index_invocations
SET external_id = $2, status = $3, status_fetched_at = now()
WHERE id = $1
`

type SetInvocationExternalIDParams struct {
	ID         string
	ExternalID string
	Status     model.InvocationStatus
}

func (q *Queries) SetInvocationExternalID(ctx context.Context, arg SetInvocationExternalIDParams) error {
	_, err := q.db.Exec(ctx, setInvocationExternalID, arg.ID, arg.ExternalID, arg.Status)
	return err
}

const getInvocation = `
SELECT id, source_id, ref, collection_name, external_id, status, status_detail, created_at, status_fetched_at
FROM index_invocations
WHERE id = $1
`

func (q *Queries) GetInvocation(ctx context.Context, id string) (IndexInvocation, error) {
	row := q.db.QueryRow(ctx, getInvocation, id)
	return scanInvocation(row)
}

const getInvocationBySourceAndRef = `
SELECT id, source_id, ref, collection_name, external_id, status, status_detail, created_at, status_fetched_at
FROM index_invocations
WHERE source_id = $1 AND ref = $2
`

type GetInvocationBySourceAndRefParams struct {
	SourceID string
	Ref      string
}

func (q *Queries) GetInvocationBySourceAndRef(ctx context.Context, arg GetInvocationBySourceAndRefParams) (IndexInvocation, error) {
	row := q.db.QueryRow(ctx, getInvocationBySourceAndRef, arg.SourceID, arg.Ref)
	return scanInvocation(row)
}

const claimInvocationForStatusRefresh = `
SELECT id, source_id, ref, collection_name, external_id, status, status_detail, created_at, status_fetched_at
FROM index_invocations
WHERE id = $1
  AND external_id IS NOT NULL
  AND status NOT IN ('completed', 'failed', 'cancelled')
  AND (status_fetched_at IS NULL OR $2 OR status_fetched_at < $3)
FOR UPDATE SKIP LOCKED
`

type ClaimInvocationForStatusRefreshParams struct {
	ID     string
	Force  bool
	Cutoff time.Time
}

// ClaimInvocationForStatusRefresh locks a registered, non-terminal
// invocation whose last status report has gone stale. Terminal rows never
// match, which is what makes terminal statuses absorbing.
func (q *Queries) ClaimInvocationForStatusRefresh(ctx context.Context, arg ClaimInvocationForStatusRefreshParams) (IndexInvocation, error) {
	row := q.db.QueryRow(ctx, claimInvocationForStatusRefresh, arg.ID, arg.Force, arg.Cutoff)
	return scanInvocation(row)
}

const setInvocationStatus = `
UPDATE index_invocations
SET status = $2, status_detail = $3, status_fetched_at = now()
WHERE id = $1
`

type SetInvocationStatusParams struct {
	ID           string
	Status       model.InvocationStatus
	StatusDetail *string
}

func (q *Queries) SetInvocationStatus(ctx context.Context, arg SetInvocationStatusParams) error {
	_, err := q.db.Exec(ctx, setInvocationStatus, arg.ID, arg.Status, arg.StatusDetail)
	return err
}

const advanceProcessedCommit = `
UPDATE repository_state rs
SET latest_processed_commit_sha = $2
FROM index_sources s
WHERE s.id = $1
  AND rs.repo_full_name = s.repo_full_name
`

type AdvanceProcessedCommitParams struct {
	SourceID string
	Ref      string
}

// AdvanceProcessedCommit moves the indexing high-water mark to ref. Runs in
// the same transaction as the completed-status write so the two can never
// be observed apart.
func (q *Queries) AdvanceProcessedCommit(ctx context.Context, arg AdvanceProcessedCommitParams) error {
	_, err := q.db.Exec(ctx, advanceProcessedCommit, arg.SourceID, arg.Ref)
	return err
}

const getLatestCompletedInvocation = `
SELECT i.collection_name, i.ref
FROM index_invocations i
JOIN index_sources s ON s.id = i.source_id
WHERE s.repo_full_name = $1
  AND i.status = 'completed'
ORDER BY i.created_at DESC
LIMIT 1
`

type GetLatestCompletedInvocationRow struct {
	CollectionName string
	Ref            string
}

func (q *Queries) GetLatestCompletedInvocation(ctx context.Context, repoFullName string) (GetLatestCompletedInvocationRow, error) {
	row := q.db.QueryRow(ctx, getLatestCompletedInvocation, repoFullName)
	var r GetLatestCompletedInvocationRow
	err := row.Scan(&r.CollectionName, &r.Ref)
	return r, err
}

const listPendingInvocations = `
SELECT id, source_id, ref, collection_name, external_id, status, status_detail, created_at, status_fetched_at
FROM index_invocations
WHERE external_id IS NOT NULL
  AND status NOT IN ('completed', 'failed', 'cancelled')
ORDER BY created_at ASC
LIMIT $1
`

// ListPendingInvocations returns registered invocations still awaiting a
// terminal status, oldest first.
func (q *Queries) ListPendingInvocations(ctx context.Context, limit int32) ([]IndexInvocation, error) {
	rows, err := q.db.Query(ctx, listPendingInvocations, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []IndexInvocation
	for rows.Next() {
		var i IndexInvocation
		if err := rows.Scan(
			&i.ID,
			&i.SourceID,
			&i.Ref,
			&i.CollectionName,
			&i.ExternalID,
			&i.Status,
			&i.StatusDetail,
			&i.CreatedAt,
			&i.StatusFetchedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

func scanInvocation(row interface{ Scan(dest ...any) error }) (IndexInvocation, error) {
	var i IndexInvocation
	err := row.Scan(
		&i.ID,
		&i.SourceID,
		&i.Ref,
		&i.CollectionName,
		&i.ExternalID,
		&i.Status,
		&i.StatusDetail,
		&i.CreatedAt,
		&i.StatusFetchedAt,
	)
	return i, err
}
