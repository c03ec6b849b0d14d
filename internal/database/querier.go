// internal/database/querier.go
package database

import "context"

// Querier is the full query surface, satisfied by *Queries. Components
// depend on this interface so tests can substitute a mock.
type Querier interface {
	CreateRepositoryPlaceholder(ctx context.Context, fullName string) error
	ClaimRepositoryForRefresh(ctx context.Context, arg ClaimRepositoryForRefreshParams) (Repository, error)
	SetRepositoryFetched(ctx context.Context, arg SetRepositoryFetchedParams) error
	UpsertRepositoryDetails(ctx context.Context, arg UpsertRepositoryDetailsParams) error
	DeleteRepositoryDetails(ctx context.Context, repoFullName string) error
	GetRepository(ctx context.Context, fullName string) (Repository, error)
	GetRepositoryDetails(ctx context.Context, repoFullName string) (RepositoryDetails, error)

	CreateRepositoryStatePlaceholder(ctx context.Context, repoFullName string) error
	ClaimRepositoryStateForRefresh(ctx context.Context, arg ClaimRepositoryStateForRefreshParams) (RepositoryState, error)
	UpsertCommit(ctx context.Context, arg UpsertCommitParams) error
	SetLatestCommit(ctx context.Context, arg SetLatestCommitParams) error
	TouchRepositoryState(ctx context.Context, repoFullName string) error
	GetRepositoryState(ctx context.Context, repoFullName string) (RepositoryState, error)
	GetCommit(ctx context.Context, sha string) (Commit, error)

	CreateTreePlaceholder(ctx context.Context, arg CreateTreePlaceholderParams) error
	ClaimTreeForRefresh(ctx context.Context, arg ClaimTreeForRefreshParams) (Tree, error)
	SetTreeEntries(ctx context.Context, arg SetTreeEntriesParams) error
	TouchTree(ctx context.Context, sha string) error
	GetTree(ctx context.Context, sha string) (Tree, error)

	CreateIndexSourcePlaceholder(ctx context.Context, arg CreateIndexSourcePlaceholderParams) error
	ClaimIndexSourceForRegistration(ctx context.Context, repoFullName string) (IndexSource, error)
	SetIndexSourceExternalID(ctx context.Context, arg SetIndexSourceExternalIDParams) error
	GetIndexSource(ctx context.Context, repoFullName string) (IndexSource, error)
	CreateInvocationPlaceholder(ctx context.Context, arg CreateInvocationPlaceholderParams) error
	ClaimInvocationForRegistration(ctx context.Context, arg ClaimInvocationForRegistrationParams) (IndexInvocation, error)
	SetInvocationExternalID(ctx context.Context, arg SetInvocationExternalIDParams) error
	GetInvocation(ctx context.Context, id string) (IndexInvocation, error)
	GetInvocationBySourceAndRef(ctx context.Context, arg GetInvocationBySourceAndRefParams) (IndexInvocation, error)
	ClaimInvocationForStatusRefresh(ctx context.Context, arg ClaimInvocationForStatusRefreshParams) (IndexInvocation, error)
	SetInvocationStatus(ctx context.Context, arg SetInvocationStatusParams) error
	AdvanceProcessedCommit(ctx context.Context, arg AdvanceProcessedCommitParams) error
	GetLatestCompletedInvocation(ctx context.Context, repoFullName string) (GetLatestCompletedInvocationRow, error)
	ListPendingInvocations(ctx context.Context, limit int32) ([]IndexInvocation, error)

	GetRepositoryOverview(ctx context.Context, fullName string) (GetRepositoryOverviewRow, error)
}

var _ Querier = (*Queries)(nil)
