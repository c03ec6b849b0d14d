// internal/model/models.go
package model

import "time"

// RepositoryMetadata is the normalized form of a repository record fetched
// from the source-control API.
type RepositoryMetadata struct {
	Owner           string  `json:"owner"`
	Name            string  `json:"name"`
	Description     *string `json:"description,omitempty"`
	DefaultBranch   string  `json:"default_branch"`
	StarsCount      int     `json:"stars_count"`
	ForksCount      int     `json:"forks_count"`
	OpenIssuesCount int     `json:"open_issues_count"`
	License         *string `json:"license,omitempty"`
	Private         bool    `json:"private"`
}

// BranchHead is the commit currently at the tip of a branch.
type BranchHead struct {
	SHA        string
	TreeSHA    string
	Message    string
	AuthorName string
	HTMLURL    string
}

// TreeEntry is a single file or directory in a repository snapshot.
type TreeEntry struct {
	Path string `json:"path"`
	Type string `json:"type"` // "blob" or "tree"
	Size int64  `json:"size,omitempty"`
}

// InvocationStatus is the lifecycle status of an indexing invocation.
// Completed, failed and cancelled are absorbing: once stored, the status
// is never refreshed or overwritten again.
type InvocationStatus string

const (
	InvocationStatusPending    InvocationStatus = "pending"
	InvocationStatusProcessing InvocationStatus = "processing"
	InvocationStatusCancelled  InvocationStatus = "cancelled"
	InvocationStatusCompleted  InvocationStatus = "completed"
	InvocationStatusFailed     InvocationStatus = "failed"
)

// IsTerminal returns true if the status can never change again.
func (s InvocationStatus) IsTerminal() bool {
	switch s {
	case InvocationStatusCompleted, InvocationStatusFailed, InvocationStatusCancelled:
		return true
	}
	return false
}

// InvocationState is the normalized form of an invocation status report
// from the indexing service.
type InvocationState struct {
	Status InvocationStatus
	Detail *string
}

// Availability reports what is known about a repository's existence.
type Availability string

const (
	AvailabilityUnknown   Availability = "unknown"   // never fetched yet
	AvailabilityAvailable Availability = "available" // confirmed to exist and be readable
	AvailabilityNotFound  Availability = "not_found" // confirmed missing or inaccessible
)

// Readiness reports how far indexing has progressed for a repository.
type Readiness string

const (
	ReadinessProcessing Readiness = "processing"  // no commit fully indexed yet
	ReadinessUpToDate   Readiness = "up_to_date"  // latest known commit is indexed
	ReadinessOutOfDate  Readiness = "out_of_date" // an older commit is indexed, a newer one is known
)

// RepoStatus is the aggregated view of everything known about a repository.
type RepoStatus struct {
	FullName         string              `json:"full_name"`
	Availability     Availability        `json:"availability"`
	Readiness        Readiness           `json:"readiness"`
	Repository       *RepositoryMetadata `json:"repository,omitempty"`
	LatestCommit     *CommitInfo         `json:"latest_commit,omitempty"`
	LatestIndexedSHA *string             `json:"latest_indexed_sha,omitempty"`
	Tree             []TreeEntry         `json:"tree,omitempty"`
	CheckedAt        time.Time           `json:"checked_at"`
}

// CommitInfo is the commit slice of a RepoStatus view.
type CommitInfo struct {
	SHA        string `json:"sha"`
	Message    string `json:"message"`
	AuthorName string `json:"author_name"`
	HTMLURL    string `json:"html_url"`
}

// IndexSnapshot identifies the collection holding the most recent fully
// indexed snapshot of a repository.
type IndexSnapshot struct {
	CollectionName string `json:"collection_name"`
	Ref            string `json:"ref"`
}
