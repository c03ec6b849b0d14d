// internal/syncer/resources.go
package syncer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kylediaz/github-chat/internal/database"
	custom_errors "github.com/kylediaz/github-chat/internal/errors"
	"github.com/kylediaz/github-chat/internal/index"
	"github.com/kylediaz/github-chat/internal/model"
)

// GitHubAPI is the slice of the source-control client the refreshers use.
type GitHubAPI interface {
	GetRepository(ctx context.Context, owner, name string) (*model.RepositoryMetadata, error)
	GetBranchHead(ctx context.Context, owner, name, branch string) (*model.BranchHead, error)
	GetTree(ctx context.Context, owner, name, treeSHA string) ([]model.TreeEntry, error)
}

// IndexAPI is the slice of the indexing-service client the refreshers use.
type IndexAPI interface {
	CreateSource(ctx context.Context, owner, name string) (string, error)
	CreateInvocation(ctx context.Context, sourceExternalID, ref, collectionName string) (*index.CreateInvocationResult, error)
	GetInvocationStatus(ctx context.Context, externalID string) (*model.InvocationState, error)
}

// TTLs sets how long each resource kind stays fresh after a fetch.
// Registrations have no TTL: they become permanently fresh once their
// external id is recorded.
type TTLs struct {
	Repository       time.Duration
	BranchHead       time.Duration
	Tree             time.Duration
	InvocationStatus time.Duration
}

// Refresher owns the per-resource refresh operations. Each one instantiates
// the shared claim-fetch-save flow for one record kind; all coordination
// between concurrent callers and replicas happens through the row locks,
// never in process memory.
type Refresher struct {
	db     txBeginner
	q      database.Querier
	newQ   func(tx pgx.Tx) database.Querier
	gh     GitHubAPI
	idx    IndexAPI
	ttls   TTLs
	logger *slog.Logger
}

// NewRefresher creates a Refresher backed by the given pool and clients.
func NewRefresher(dbpool *pgxpool.Pool, gh GitHubAPI, idx IndexAPI, ttls TTLs, logger *slog.Logger) *Refresher {
	return &Refresher{
		db:     dbpool,
		q:      database.New(dbpool),
		newQ:   func(tx pgx.Tx) database.Querier { return database.New(tx) },
		gh:     gh,
		idx:    idx,
		ttls:   ttls,
		logger: logger,
	}
}

// repoRecord pairs the repository row with its metadata snapshot. Details
// is nil while the repository is unfetched or confirmed unavailable.
type repoRecord struct {
	Repo    database.Repository
	Details *database.RepositoryDetails
}

// RefreshRepository brings the repository record up to date. A confirmed
// missing or unreadable repository is stored as a negative answer, so
// repeated lookups of a bad name cost one row read until the TTL expires.
func (r *Refresher) RefreshRepository(ctx context.Context, id RepoIdentifier, force bool) (repoRecord, error) {
	full := id.FullName()
	logger := r.logger.With("owner", id.Owner, "repo", id.Name)

	res := resource[repoRecord]{
		ensure: func(ctx context.Context) error {
			return r.q.CreateRepositoryPlaceholder(ctx, full)
		},
		claim: func(ctx context.Context, q database.Querier) (repoRecord, error) {
			repo, err := q.ClaimRepositoryForRefresh(ctx, database.ClaimRepositoryForRefreshParams{
				FullName: full,
				Force:    force,
				Cutoff:   time.Now().Add(-r.ttls.Repository),
			})
			return repoRecord{Repo: repo}, err
		},
		fetch: func(ctx context.Context, claimed repoRecord) (repoRecord, error) {
			meta, err := r.gh.GetRepository(ctx, id.Owner, id.Name)
			if custom_errors.IsAbsence(err) {
				logger.Info("Repository confirmed unavailable", "reason", err)
				return repoRecord{Repo: database.Repository{FullName: full, Available: false}}, nil
			}
			if err != nil {
				return repoRecord{}, err
			}
			return repoRecord{
				Repo: database.Repository{FullName: full, Available: true},
				Details: &database.RepositoryDetails{
					RepoFullName:    full,
					Description:     meta.Description,
					DefaultBranch:   meta.DefaultBranch,
					StarsCount:      int32(meta.StarsCount),
					ForksCount:      int32(meta.ForksCount),
					OpenIssuesCount: int32(meta.OpenIssuesCount),
					License:         meta.License,
					Private:         meta.Private,
				},
			}, nil
		},
		save: func(ctx context.Context, q database.Querier, next repoRecord) error {
			if err := q.SetRepositoryFetched(ctx, database.SetRepositoryFetchedParams{
				FullName:  full,
				Available: next.Repo.Available,
			}); err != nil {
				return err
			}
			if next.Details == nil {
				return q.DeleteRepositoryDetails(ctx, full)
			}
			return q.UpsertRepositoryDetails(ctx, database.UpsertRepositoryDetailsParams{
				RepoFullName:    next.Details.RepoFullName,
				Description:     next.Details.Description,
				DefaultBranch:   next.Details.DefaultBranch,
				StarsCount:      next.Details.StarsCount,
				ForksCount:      next.Details.ForksCount,
				OpenIssuesCount: next.Details.OpenIssuesCount,
				License:         next.Details.License,
				Private:         next.Details.Private,
			})
		},
		current: func(ctx context.Context) (repoRecord, error) {
			repo, err := r.q.GetRepository(ctx, full)
			if err != nil {
				return repoRecord{}, err
			}
			rec := repoRecord{Repo: repo}
			if repo.Available {
				details, err := r.q.GetRepositoryDetails(ctx, full)
				if err == nil {
					rec.Details = &details
				}
			}
			return rec, nil
		},
	}
	return refresh(ctx, r.db, r.newQ, res)
}

// stateRecord pairs the state row with the branch head that produced it.
// Head is nil when the refresh served a stored row or the branch turned
// out to be missing.
type stateRecord struct {
	State database.RepositoryState
	Head  *model.BranchHead
}

// RefreshBranchHead looks up the tip of the repository's default branch and
// records it as the latest known commit. The commit row is written in the
// same transaction as the pointer, so a set latest_commit_sha always has
// its commit on hand. A missing branch only re-stamps the lookup time.
func (r *Refresher) RefreshBranchHead(ctx context.Context, id RepoIdentifier, branch string, force bool) (stateRecord, error) {
	full := id.FullName()
	logger := r.logger.With("owner", id.Owner, "repo", id.Name, "branch", branch)

	res := resource[stateRecord]{
		ensure: func(ctx context.Context) error {
			return r.q.CreateRepositoryStatePlaceholder(ctx, full)
		},
		claim: func(ctx context.Context, q database.Querier) (stateRecord, error) {
			state, err := q.ClaimRepositoryStateForRefresh(ctx, database.ClaimRepositoryStateForRefreshParams{
				RepoFullName: full,
				Force:        force,
				Cutoff:       time.Now().Add(-r.ttls.BranchHead),
			})
			return stateRecord{State: state}, err
		},
		fetch: func(ctx context.Context, claimed stateRecord) (stateRecord, error) {
			head, err := r.gh.GetBranchHead(ctx, id.Owner, id.Name, branch)
			if custom_errors.IsAbsence(err) {
				logger.Info("Branch confirmed unavailable", "reason", err)
				return claimed, nil
			}
			if err != nil {
				return stateRecord{}, err
			}
			next := claimed
			next.State.LatestCommitSHA = &head.SHA
			next.Head = head
			return next, nil
		},
		save: func(ctx context.Context, q database.Querier, next stateRecord) error {
			if next.Head == nil {
				return q.TouchRepositoryState(ctx, full)
			}
			if err := q.UpsertCommit(ctx, database.UpsertCommitParams{
				SHA:          next.Head.SHA,
				RepoFullName: full,
				TreeSHA:      next.Head.TreeSHA,
				Message:      next.Head.Message,
				AuthorName:   next.Head.AuthorName,
				HTMLURL:      next.Head.HTMLURL,
			}); err != nil {
				return err
			}
			return q.SetLatestCommit(ctx, database.SetLatestCommitParams{
				RepoFullName:    full,
				LatestCommitSHA: next.Head.SHA,
			})
		},
		current: func(ctx context.Context) (stateRecord, error) {
			state, err := r.q.GetRepositoryState(ctx, full)
			return stateRecord{State: state}, err
		},
	}
	return refresh(ctx, r.db, r.newQ, res)
}

// RefreshTree fetches the file listing for a commit's tree. Trees are
// content-addressed: once entries are stored the row is never eligible
// again, and only a confirmed-missing tree is retried after its TTL.
func (r *Refresher) RefreshTree(ctx context.Context, id RepoIdentifier, treeSHA string, force bool) (database.Tree, error) {
	full := id.FullName()
	logger := r.logger.With("owner", id.Owner, "repo", id.Name, "tree_sha", treeSHA)

	res := resource[database.Tree]{
		ensure: func(ctx context.Context) error {
			return r.q.CreateTreePlaceholder(ctx, database.CreateTreePlaceholderParams{
				SHA:          treeSHA,
				RepoFullName: full,
			})
		},
		claim: func(ctx context.Context, q database.Querier) (database.Tree, error) {
			return q.ClaimTreeForRefresh(ctx, database.ClaimTreeForRefreshParams{
				SHA:    treeSHA,
				Force:  force,
				Cutoff: time.Now().Add(-r.ttls.Tree),
			})
		},
		fetch: func(ctx context.Context, claimed database.Tree) (database.Tree, error) {
			entries, err := r.gh.GetTree(ctx, id.Owner, id.Name, treeSHA)
			if custom_errors.IsAbsence(err) {
				logger.Info("Tree confirmed unavailable", "reason", err)
				claimed.Entries = nil
				return claimed, nil
			}
			if err != nil {
				return database.Tree{}, err
			}
			raw, err := json.Marshal(entries)
			if err != nil {
				return database.Tree{}, fmt.Errorf("encode tree entries: %w", err)
			}
			claimed.Entries = raw
			return claimed, nil
		},
		save: func(ctx context.Context, q database.Querier, next database.Tree) error {
			if next.Entries == nil {
				return q.TouchTree(ctx, treeSHA)
			}
			return q.SetTreeEntries(ctx, database.SetTreeEntriesParams{
				SHA:     treeSHA,
				Entries: next.Entries,
			})
		},
		current: func(ctx context.Context) (database.Tree, error) {
			return r.q.GetTree(ctx, treeSHA)
		},
	}
	return refresh(ctx, r.db, r.newQ, res)
}

// EnsureSource registers the repository with the indexing service exactly
// once. The local row is created first; whoever claims it while external_id
// is still null performs the remote create and records the id. A crash
// between the remote create and the commit leaves an orphaned remote
// source, which is accepted: the next claimer simply creates another.
func (r *Refresher) EnsureSource(ctx context.Context, id RepoIdentifier) (database.IndexSource, error) {
	full := id.FullName()
	logger := r.logger.With("owner", id.Owner, "repo", id.Name)

	res := resource[database.IndexSource]{
		ensure: func(ctx context.Context) error {
			return r.q.CreateIndexSourcePlaceholder(ctx, database.CreateIndexSourcePlaceholderParams{
				ID:           uuid.New().String(),
				RepoFullName: full,
			})
		},
		claim: func(ctx context.Context, q database.Querier) (database.IndexSource, error) {
			return q.ClaimIndexSourceForRegistration(ctx, full)
		},
		fetch: func(ctx context.Context, claimed database.IndexSource) (database.IndexSource, error) {
			externalID, err := r.idx.CreateSource(ctx, id.Owner, id.Name)
			if err != nil {
				return database.IndexSource{}, err
			}
			logger.Info("Registered repository with indexing service", "external_id", externalID)
			claimed.ExternalID = &externalID
			return claimed, nil
		},
		save: func(ctx context.Context, q database.Querier, next database.IndexSource) error {
			return q.SetIndexSourceExternalID(ctx, database.SetIndexSourceExternalIDParams{
				ID:         next.ID,
				ExternalID: *next.ExternalID,
			})
		},
		current: func(ctx context.Context) (database.IndexSource, error) {
			return r.q.GetIndexSource(ctx, full)
		},
	}
	return refresh(ctx, r.db, r.newQ, res)
}

// EnsureInvocation starts indexing of one commit exactly once per
// (source, ref). Same shape as EnsureSource: the unique placeholder row is
// the idempotency key, the null external_id is the claim gate.
func (r *Refresher) EnsureInvocation(ctx context.Context, sourceID, sourceExternalID, ref, collectionName string) (database.IndexInvocation, error) {
	logger := r.logger.With("source_id", sourceID, "ref", ref)

	res := resource[database.IndexInvocation]{
		ensure: func(ctx context.Context) error {
			return r.q.CreateInvocationPlaceholder(ctx, database.CreateInvocationPlaceholderParams{
				ID:             uuid.New().String(),
				SourceID:       sourceID,
				Ref:            ref,
				CollectionName: collectionName,
			})
		},
		claim: func(ctx context.Context, q database.Querier) (database.IndexInvocation, error) {
			return q.ClaimInvocationForRegistration(ctx, database.ClaimInvocationForRegistrationParams{
				SourceID: sourceID,
				Ref:      ref,
			})
		},
		fetch: func(ctx context.Context, claimed database.IndexInvocation) (database.IndexInvocation, error) {
			result, err := r.idx.CreateInvocation(ctx, sourceExternalID, ref, claimed.CollectionName)
			if err != nil {
				return database.IndexInvocation{}, err
			}
			logger.Info("Created indexing invocation", "external_id", result.ExternalID, "status", result.Status)
			claimed.ExternalID = &result.ExternalID
			claimed.Status = result.Status
			return claimed, nil
		},
		save: func(ctx context.Context, q database.Querier, next database.IndexInvocation) error {
			return q.SetInvocationExternalID(ctx, database.SetInvocationExternalIDParams{
				ID:         next.ID,
				ExternalID: *next.ExternalID,
				Status:     next.Status,
			})
		},
		current: func(ctx context.Context) (database.IndexInvocation, error) {
			return r.q.GetInvocationBySourceAndRef(ctx, database.GetInvocationBySourceAndRefParams{
				SourceID: sourceID,
				Ref:      ref,
			})
		},
	}
	return refresh(ctx, r.db, r.newQ, res)
}

// RefreshInvocationStatus polls the indexing service for a non-terminal
// invocation. A terminal stored status short-circuits before any claim is
// attempted. When the poll observes completed, the repository's processed
// pointer advances in the same transaction as the status write.
func (r *Refresher) RefreshInvocationStatus(ctx context.Context, invocationID string, force bool) (database.IndexInvocation, error) {
	stored, err := r.q.GetInvocation(ctx, invocationID)
	if err != nil {
		return database.IndexInvocation{}, err
	}
	if stored.Status.IsTerminal() {
		return stored, nil
	}
	logger := r.logger.With("invocation_id", invocationID)

	res := resource[database.IndexInvocation]{
		ensure: func(ctx context.Context) error {
			return nil // the row is known to exist
		},
		claim: func(ctx context.Context, q database.Querier) (database.IndexInvocation, error) {
			return q.ClaimInvocationForStatusRefresh(ctx, database.ClaimInvocationForStatusRefreshParams{
				ID:     invocationID,
				Force:  force,
				Cutoff: time.Now().Add(-r.ttls.InvocationStatus),
			})
		},
		fetch: func(ctx context.Context, claimed database.IndexInvocation) (database.IndexInvocation, error) {
			state, err := r.idx.GetInvocationStatus(ctx, *claimed.ExternalID)
			if custom_errors.IsAbsence(err) {
				// The service no longer knows the invocation; that run
				// will never complete.
				logger.Warn("Invocation vanished upstream, marking failed")
				detail := "invocation no longer exists upstream"
				claimed.Status = model.InvocationStatusFailed
				claimed.StatusDetail = &detail
				return claimed, nil
			}
			if err != nil {
				return database.IndexInvocation{}, err
			}
			claimed.Status = state.Status
			claimed.StatusDetail = state.Detail
			return claimed, nil
		},
		save: func(ctx context.Context, q database.Querier, next database.IndexInvocation) error {
			if err := q.SetInvocationStatus(ctx, database.SetInvocationStatusParams{
				ID:           next.ID,
				Status:       next.Status,
				StatusDetail: next.StatusDetail,
			}); err != nil {
				return err
			}
			if next.Status == model.InvocationStatusCompleted {
				logger.Info("Invocation completed, advancing processed commit", "ref", next.Ref)
				return q.AdvanceProcessedCommit(ctx, database.AdvanceProcessedCommitParams{
					SourceID: next.SourceID,
					Ref:      next.Ref,
				})
			}
			return nil
		},
		current: func(ctx context.Context) (database.IndexInvocation, error) {
			return r.q.GetInvocation(ctx, invocationID)
		},
	}
	return refresh(ctx, r.db, r.newQ, res)
}

// CollectionName derives the collection identifier for one commit
// snapshot. It must be stable across retries, unique per commit, and safe
// for the indexing service's naming rules.
func CollectionName(id RepoIdentifier, sha string) string {
	short := sha
	if len(short) > 12 {
		short = short[:12]
	}
	raw := strings.ToLower(id.Owner + "-" + id.Name + "-" + short)
	return strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' {
			return r
		}
		return '-'
	}, raw)
}
