// internal/database/overview.go
package database

import (
	"context"
	"time"

	"github.com/kylediaz/github-chat/internal/model"
)

const getRepositoryOverview = `
SELECT
    r.full_name, r.available, r.fetched_at,
    d.description, d.default_branch, d.stars_count, d.forks_count, d.open_issues_count, d.license, d.private,
    rs.latest_commit_sha, rs.latest_processed_commit_sha, rs.fetched_at,
    c.tree_sha, c.message, c.author_name, c.html_url,
    t.entries, t.fetched_at,
    s.id, s.external_id,
    i.id, i.collection_name, i.external_id, i.status, i.status_fetched_at
FROM repositories r
LEFT JOIN repository_details d ON d.repo_full_name = r.full_name
LEFT JOIN repository_state rs ON rs.repo_full_name = r.full_name
LEFT JOIN commits c ON c.sha = rs.latest_commit_sha
LEFT JOIN trees t ON t.sha = c.tree_sha
LEFT JOIN index_sources s ON s.repo_full_name = r.full_name
LEFT JOIN index_invocations i ON i.source_id = s.id AND i.ref = rs.latest_commit_sha
WHERE r.full_name = $1
`

// GetRepositoryOverviewRow carries everything known about a repository in
// one read. Every column past the repositories table comes from a left
// join, so the corresponding fields are nil when that part of the record
// does not exist yet. The joined invocation is the one targeting the
// latest known commit.
type GetRepositoryOverviewRow struct {
	FullName  string
	Available bool
	FetchedAt *time.Time

	DetailDescription     *string
	DetailDefaultBranch   *string
	DetailStarsCount      *int32
	DetailForksCount      *int32
	DetailOpenIssuesCount *int32
	DetailLicense         *string
	DetailPrivate         *bool

	LatestCommitSHA          *string
	LatestProcessedCommitSHA *string
	StateFetchedAt           *time.Time

	CommitTreeSHA    *string
	CommitMessage    *string
	CommitAuthorName *string
	CommitHTMLURL    *string

	TreeEntries   []byte
	TreeFetchedAt *time.Time

	SourceID         *string
	SourceExternalID *string

	InvocationID              *string
	InvocationCollectionName  *string
	InvocationExternalID      *string
	InvocationStatus          *model.InvocationStatus
	InvocationStatusFetchedAt *time.Time
}

func (q *Queries) GetRepositoryOverview(ctx context.Context, fullName string) (GetRepositoryOverviewRow, error) {
	row := q.db.QueryRow(ctx, getRepositoryOverview, fullName)
	var o GetRepositoryOverviewRow
	err := row.Scan(
		&o.FullName,
		&o.Available,
		&o.FetchedAt,
		&o.DetailDescription,
		&o.DetailDefaultBranch,
		&o.DetailStarsCount,
		&o.DetailForksCount,
		&o.DetailOpenIssuesCount,
		&o.DetailLicense,
		&o.DetailPrivate,
		&o.LatestCommitSHA,
		&o.LatestProcessedCommitSHA,
		&o.StateFetchedAt,
		&o.CommitTreeSHA,
		&o.CommitMessage,
		&o.CommitAuthorName,
		&o.CommitHTMLURL,
		&o.TreeEntries,
		&o.TreeFetchedAt,
		&o.SourceID,
		&o.SourceExternalID,
		&o.InvocationID,
		&o.InvocationCollectionName,
		&o.InvocationExternalID,
		&o.InvocationStatus,
		&o.InvocationStatusFetchedAt,
	)
	return o, err
}
