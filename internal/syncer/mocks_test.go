// internal/syncer/mocks_test.go
package syncer

import (
	"context"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/mock"

	"github.com/kylediaz/github-chat/internal/database"
	"github.com/kylediaz/github-chat/internal/index"
	"github.com/kylediaz/github-chat/internal/model"
)

// fakeTx satisfies pgx.Tx for flows that only begin, commit and roll back.
type fakeTx struct {
	mu         sync.Mutex
	committed  bool
	rolledBack bool
	commitErr  error
}

func (t *fakeTx) Begin(ctx context.Context) (pgx.Tx, error) { return t, nil }

func (t *fakeTx) Commit(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.commitErr != nil {
		return t.commitErr
	}
	t.committed = true
	return nil
}

func (t *fakeTx) Rollback(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.committed {
		t.rolledBack = true
	}
	return nil
}

func (t *fakeTx) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	return 0, nil
}
func (t *fakeTx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults { return nil }
func (t *fakeTx) LargeObjects() pgx.LargeObjects                               { return pgx.LargeObjects{} }
func (t *fakeTx) Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error) {
	return nil, nil
}
func (t *fakeTx) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, nil
}
func (t *fakeTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, nil
}
func (t *fakeTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row { return nil }
func (t *fakeTx) Conn() *pgx.Conn                                               { return nil }

// fakeDB hands out fakeTx transactions and remembers them.
type fakeDB struct {
	mu        sync.Mutex
	txs       []*fakeTx
	beginErr  error
	commitErr error
}

func (d *fakeDB) Begin(ctx context.Context) (pgx.Tx, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.beginErr != nil {
		return nil, d.beginErr
	}
	tx := &fakeTx{commitErr: d.commitErr}
	d.txs = append(d.txs, tx)
	return tx, nil
}

func (d *fakeDB) lastTx() *fakeTx {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.txs) == 0 {
		return nil
	}
	return d.txs[len(d.txs)-1]
}

// MockQuerier is a mock of the database.Querier interface.
type MockQuerier struct {
	mock.Mock
}

func (m *MockQuerier) CreateRepositoryPlaceholder(ctx context.Context, fullName string) error {
	args := m.Called(ctx, fullName)
	return args.Error(0)
}
func (m *MockQuerier) ClaimRepositoryForRefresh(ctx context.Context, arg database.ClaimRepositoryForRefreshParams) (database.Repository, error) {
	args := m.Called(ctx, arg)
	return args.Get(0).(database.Repository), args.Error(1)
}
func (m *MockQuerier) SetRepositoryFetched(ctx context.Context, arg database.SetRepositoryFetchedParams) error {
	args := m.Called(ctx, arg)
	return args.Error(0)
}
func (m *MockQuerier) UpsertRepositoryDetails(ctx context.Context, arg database.UpsertRepositoryDetailsParams) error {
	args := m.Called(ctx, arg)
	return args.Error(0)
}
func (m *MockQuerier) DeleteRepositoryDetails(ctx context.Context, repoFullName string) error {
	args := m.Called(ctx, repoFullName)
	return args.Error(0)
}
func (m *MockQuerier) GetRepository(ctx context.Context, fullName string) (database.Repository, error) {
	args := m.Called(ctx, fullName)
	return args.Get(0).(database.Repository), args.Error(1)
}
func (m *MockQuerier) GetRepositoryDetails(ctx context.Context, repoFullName string) (database.RepositoryDetails, error) {
	args := m.Called(ctx, repoFullName)
	return args.Get(0).(database.RepositoryDetails), args.Error(1)
}
func (m *MockQuerier) CreateRepositoryStatePlaceholder(ctx context.Context, repoFullName string) error {
	args := m.Called(ctx, repoFullName)
	return args.Error(0)
}
func (m *MockQuerier) ClaimRepositoryStateForRefresh(ctx context.Context, arg database.ClaimRepositoryStateForRefreshParams) (database.RepositoryState, error) {
	args := m.Called(ctx, arg)
	return args.Get(0).(database.RepositoryState), args.Error(1)
}
func (m *MockQuerier) UpsertCommit(ctx context.Context, arg database.UpsertCommitParams) error {
	args := m.Called(ctx, arg)
	return args.Error(0)
}
func (m *MockQuerier) SetLatestCommit(ctx context.Context, arg database.SetLatestCommitParams) error {
	args := m.Called(ctx, arg)
	return args.Error(0)
}
func (m *MockQuerier) TouchRepositoryState(ctx context.Context, repoFullName string) error {
	args := m.Called(ctx, repoFullName)
	return args.Error(0)
}
func (m *MockQuerier) GetRepositoryState(ctx context.Context, repoFullName string) (database.RepositoryState, error) {
	args := m.Called(ctx, repoFullName)
	return args.Get(0).(database.RepositoryState), args.Error(1)
}
func (m *MockQuerier) GetCommit(ctx context.Context, sha string) (database.Commit, error) {
	args := m.Called(ctx, sha)
	return args.Get(0).(database.Commit), args.Error(1)
}
func (m *MockQuerier) CreateTreePlaceholder(ctx context.Context, arg database.CreateTreePlaceholderParams) error {
	args := m.Called(ctx, arg)
	return args.Error(0)
}
func (m *MockQuerier) ClaimTreeForRefresh(ctx context.Context, arg database.ClaimTreeForRefreshParams) (database.Tree, error) {
	args := m.Called(ctx, arg)
	return args.Get(0).(database.Tree), args.Error(1)
}
func (m *MockQuerier) SetTreeEntries(ctx context.Context, arg database.SetTreeEntriesParams) error {
	args := m.Called(ctx, arg)
	return args.Error(0)
}
func (m *MockQuerier) TouchTree(ctx context.Context, sha string) error {
	args := m.Called(ctx, sha)
	return args.Error(0)
}
func (m *MockQuerier) GetTree(ctx context.Context, sha string) (database.Tree, error) {
	args := m.Called(ctx, sha)
	return args.Get(0).(database.Tree), args.Error(1)
}
func (m *MockQuerier) CreateIndexSourcePlaceholder(ctx context.Context, arg database.CreateIndexSourcePlaceholderParams) error {
	args := m.Called(ctx, arg)
	return args.Error(0)
}
func (m *MockQuerier) ClaimIndexSourceForRegistration(ctx context.Context, repoFullName string) (database.IndexSource, error) {
	args := m.Called(ctx, repoFullName)
	return args.Get(0).(database.IndexSource), args.Error(1)
}
func (m *MockQuerier) SetIndexSourceExternalID(ctx context.Context, arg database.SetIndexSourceExternalIDParams) error {
	args := m.Called(ctx, arg)
	return args.Error(0)
}
func (m *MockQuerier) GetIndexSource(ctx context.Context, repoFullName string) (database.IndexSource, error) {
	args := m.Called(ctx, repoFullName)
	return args.Get(0).(database.IndexSource), args.Error(1)
}
func (m *MockQuerier) CreateInvocationPlaceholder(ctx context.Context, arg database.CreateInvocationPlaceholderParams) error {
	args := m.Called(ctx, arg)
	return args.Error(0)
}
func (m *MockQuerier) ClaimInvocationForRegistration(ctx context.Context, arg database.ClaimInvocationForRegistrationParams) (database.IndexInvocation, error) {
	args := m.Called(ctx, arg)
	return args.Get(0).(database.IndexInvocation), args.Error(1)
}
func (m *MockQuerier) SetInvocationExternalID(ctx context.Context, arg database.SetInvocationExternalIDParams) error {
	args := m.Called(ctx, arg)
	return args.Error(0)
}
func (m *MockQuerier) GetInvocation(ctx context.Context, id string) (database.IndexInvocation, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(database.IndexInvocation), args.Error(1)
}
func (m *MockQuerier) GetInvocationBySourceAndRef(ctx context.Context, arg database.GetInvocationBySourceAndRefParams) (database.IndexInvocation, error) {
	args := m.Called(ctx, arg)
	return args.Get(0).(database.IndexInvocation), args.Error(1)
}
func (m *MockQuerier) ClaimInvocationForStatusRefresh(ctx context.Context, arg database.ClaimInvocationForStatusRefreshParams) (database.IndexInvocation, error) {
	args := m.Called(ctx, arg)
	return args.Get(0).(database.IndexInvocation), args.Error(1)
}
func (m *MockQuerier) SetInvocationStatus(ctx context.Context, arg database.SetInvocationStatusParams) error {
	args := m.Called(ctx, arg)
	return args.Error(0)
}
func (m *MockQuerier) AdvanceProcessedCommit(ctx context.Context, arg database.AdvanceProcessedCommitParams) error {
	args := m.Called(ctx, arg)
	return args.Error(0)
}
func (m *MockQuerier) GetLatestCompletedInvocation(ctx context.Context, repoFullName string) (database.GetLatestCompletedInvocationRow, error) {
	args := m.Called(ctx, repoFullName)
	return args.Get(0).(database.GetLatestCompletedInvocationRow), args.Error(1)
}
func (m *MockQuerier) ListPendingInvocations(ctx context.Context, limit int32) ([]database.IndexInvocation, error) {
	args := m.Called(ctx, limit)
	return args.Get(0).([]database.IndexInvocation), args.Error(1)
}
func (m *MockQuerier) GetRepositoryOverview(ctx context.Context, fullName string) (database.GetRepositoryOverviewRow, error) {
	args := m.Called(ctx, fullName)
	return args.Get(0).(database.GetRepositoryOverviewRow), args.Error(1)
}

// MockGitHub is a mock of the GitHubAPI interface.
type MockGitHub struct {
	mock.Mock
}

func (m *MockGitHub) GetRepository(ctx context.Context, owner, name string) (*model.RepositoryMetadata, error) {
	args := m.Called(ctx, owner, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.RepositoryMetadata), args.Error(1)
}
func (m *MockGitHub) GetBranchHead(ctx context.Context, owner, name, branch string) (*model.BranchHead, error) {
	args := m.Called(ctx, owner, name, branch)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.BranchHead), args.Error(1)
}
func (m *MockGitHub) GetTree(ctx context.Context, owner, name, treeSHA string) ([]model.TreeEntry, error) {
	args := m.Called(ctx, owner, name, treeSHA)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.TreeEntry), args.Error(1)
}

// MockIndex is a mock of the IndexAPI interface.
type MockIndex struct {
	mock.Mock
}

func (m *MockIndex) CreateSource(ctx context.Context, owner, name string) (string, error) {
	args := m.Called(ctx, owner, name)
	return args.String(0), args.Error(1)
}
func (m *MockIndex) CreateInvocation(ctx context.Context, sourceExternalID, ref, collectionName string) (*index.CreateInvocationResult, error) {
	args := m.Called(ctx, sourceExternalID, ref, collectionName)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*index.CreateInvocationResult), args.Error(1)
}
func (m *MockIndex) GetInvocationStatus(ctx context.Context, externalID string) (*model.InvocationState, error) {
	args := m.Called(ctx, externalID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.InvocationState), args.Error(1)
}

// MockRefresher is a mock of the resourceRefresher interface.
type MockRefresher struct {
	mock.Mock
}

func (m *MockRefresher) RefreshRepository(ctx context.Context, id RepoIdentifier, force bool) (repoRecord, error) {
	args := m.Called(ctx, id, force)
	return args.Get(0).(repoRecord), args.Error(1)
}
func (m *MockRefresher) RefreshBranchHead(ctx context.Context, id RepoIdentifier, branch string, force bool) (stateRecord, error) {
	args := m.Called(ctx, id, branch, force)
	return args.Get(0).(stateRecord), args.Error(1)
}
func (m *MockRefresher) RefreshTree(ctx context.Context, id RepoIdentifier, treeSHA string, force bool) (database.Tree, error) {
	args := m.Called(ctx, id, treeSHA, force)
	return args.Get(0).(database.Tree), args.Error(1)
}
func (m *MockRefresher) EnsureSource(ctx context.Context, id RepoIdentifier) (database.IndexSource, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(database.IndexSource), args.Error(1)
}
func (m *MockRefresher) EnsureInvocation(ctx context.Context, sourceID, sourceExternalID, ref, collectionName string) (database.IndexInvocation, error) {
	args := m.Called(ctx, sourceID, sourceExternalID, ref, collectionName)
	return args.Get(0).(database.IndexInvocation), args.Error(1)
}
func (m *MockRefresher) RefreshInvocationStatus(ctx context.Context, invocationID string, force bool) (database.IndexInvocation, error) {
	args := m.Called(ctx, invocationID, force)
	return args.Get(0).(database.IndexInvocation), args.Error(1)
}
