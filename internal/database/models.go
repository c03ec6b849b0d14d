// internal/database/models.go
package database

import (
	"time"

	"github.com/kylediaz/github-chat/internal/model"
)

// Repository is the existence record for a tracked repository. A nil
// FetchedAt means no fetch attempt has completed yet; Available is only
// meaningful once FetchedAt is set.
type Repository struct {
	FullName  string
	Available bool
	FetchedAt *time.Time
}

// RepositoryDetails holds the metadata snapshot of an available repository.
// The row exists only while the repository's availability is affirmative.
type RepositoryDetails struct {
	RepoFullName    string
	Description     *string
	DefaultBranch   string
	StarsCount      int32
	ForksCount      int32
	OpenIssuesCount int32
	License         *string
	Private         bool
}

// RepositoryState tracks the moving branch head and indexing progress of a
// repository. FetchedAt covers the branch-head lookup, not the row itself.
type RepositoryState struct {
	RepoFullName             string
	LatestCommitSHA          *string
	LatestProcessedCommitSHA *string
	FetchedAt                *time.Time
}

// Commit is an immutable, content-addressed commit record.
type Commit struct {
	SHA          string
	RepoFullName string
	TreeSHA      string
	Message      string
	AuthorName   string
	HTMLURL      string
	FetchedAt    time.Time
}

// Tree is a content-addressed file listing. Entries holds the raw JSON
// array of tree entries and stays nil until a fetch succeeds; a set
// FetchedAt with nil Entries records a confirmed-missing tree.
type Tree struct {
	SHA          string
	RepoFullName string
	Entries      []byte
	FetchedAt    *time.Time
}

// IndexSource is the one-per-repository registration with the indexing
// service. ExternalID is nil until the remote create succeeds, and never
// changes once set.
type IndexSource struct {
	ID           string
	RepoFullName string
	ExternalID   *string
	CreatedAt    time.Time
}

// IndexInvocation is one indexing run over a specific commit. At most one
// exists per (source, ref). Status moves through the invocation_status
// enum and freezes at a terminal value.
type IndexInvocation struct {
	ID              string
	SourceID        string
	Ref             string
	CollectionName  string
	ExternalID      *string
	Status          model.InvocationStatus
	StatusDetail    *string
	CreatedAt       time.Time
	StatusFetchedAt *time.Time
}
