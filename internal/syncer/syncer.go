// internal/syncer/syncer.go
package syncer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"golang.org/x/sync/errgroup"

	"github.com/kylediaz/github-chat/internal/database"
	custom_errors "github.com/kylediaz/github-chat/internal/errors"
	"github.com/kylediaz/github-chat/internal/model"
)

// How long a detached refresh chain may keep running after the request
// that spawned it has been answered.
const defaultBackgroundTimeout = 60 * time.Second

// RepoIdentifier holds the owner and name of a repository.
type RepoIdentifier struct {
	Owner string
	Name  string
}

// NewRepoIdentifier validates the two halves of an 'owner/name' pair.
func NewRepoIdentifier(owner, name string) (RepoIdentifier, error) {
	if owner == "" || name == "" || strings.Contains(owner, "/") || strings.Contains(name, "/") {
		return RepoIdentifier{}, &custom_errors.ErrInvalidRepoFormat{Repo: owner + "/" + name}
	}
	return RepoIdentifier{Owner: owner, Name: name}, nil
}

// FullName returns the canonical 'owner/name' key.
func (r RepoIdentifier) FullName() string {
	return r.Owner + "/" + r.Name
}

// resourceRefresher is the per-resource refresh surface the aggregator
// drives. *Refresher implements it.
type resourceRefresher interface {
	RefreshRepository(ctx context.Context, id RepoIdentifier, force bool) (repoRecord, error)
	RefreshBranchHead(ctx context.Context, id RepoIdentifier, branch string, force bool) (stateRecord, error)
	RefreshTree(ctx context.Context, id RepoIdentifier, treeSHA string, force bool) (database.Tree, error)
	EnsureSource(ctx context.Context, id RepoIdentifier) (database.IndexSource, error)
	EnsureInvocation(ctx context.Context, sourceID, sourceExternalID, ref, collectionName string) (database.IndexInvocation, error)
	RefreshInvocationStatus(ctx context.Context, invocationID string, force bool) (database.IndexInvocation, error)
}

var _ resourceRefresher = (*Refresher)(nil)

// Syncer answers status questions about repositories and triggers whatever
// refreshes the answer reveals to be due. It blocks a caller only for the
// very first repository fetch; everything else is served from the store
// while detached tasks pull the record forward.
type Syncer struct {
	q         database.Querier
	refresher resourceRefresher
	logger    *slog.Logger
	bgTimeout time.Duration
}

// NewSyncer creates a new Syncer instance.
func NewSyncer(q database.Querier, refresher resourceRefresher, logger *slog.Logger) *Syncer {
	return &Syncer{
		q:         q,
		refresher: refresher,
		logger:    logger,
		bgTimeout: defaultBackgroundTimeout,
	}
}

// Status reports everything known about a repository and advances its
// synchronization as a side effect. force widens every refresh's staleness
// gate, but never bypasses the claim locks: a forced caller that loses a
// claim still gets the stored answer immediately.
func (s *Syncer) Status(ctx context.Context, id RepoIdentifier, force bool) (*model.RepoStatus, error) {
	full := id.FullName()
	logger := s.logger.With("owner", id.Owner, "repo", id.Name)

	ov, err := s.q.GetRepositoryOverview(ctx, full)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}

	if errors.Is(err, pgx.ErrNoRows) || ov.FetchedAt == nil {
		// First sighting. The repository fetch is the one call worth
		// blocking on: nothing useful can be answered without it, and a
		// transient failure here is the caller's problem to retry.
		logger.Info("Repository not seen before, fetching")
		if _, err := s.refresher.RefreshRepository(ctx, id, force); err != nil {
			return nil, fmt.Errorf("initial repository fetch: %w", err)
		}
		if ov, err = s.q.GetRepositoryOverview(ctx, full); err != nil {
			return nil, err
		}
	}

	if ov.FetchedAt == nil {
		// Another worker holds the first-fetch claim and has not committed
		// yet. Answer with what little is known rather than wait for it.
		return &model.RepoStatus{
			FullName:     full,
			Availability: model.AvailabilityUnknown,
			Readiness:    model.ReadinessProcessing,
			CheckedAt:    time.Now(),
		}, nil
	}

	if !ov.Available {
		return &model.RepoStatus{
			FullName:     full,
			Availability: model.AvailabilityNotFound,
			Readiness:    model.ReadinessProcessing,
			CheckedAt:    time.Now(),
		}, nil
	}

	// The status poll for the latest commit's invocation is awaited: it is
	// cheap, TTL-gated, and its answer directly changes readiness.
	if ov.InvocationID != nil && ov.InvocationStatus != nil && !ov.InvocationStatus.IsTerminal() {
		inv, err := s.refresher.RefreshInvocationStatus(ctx, *ov.InvocationID, force)
		switch {
		case err != nil:
			logger.Warn("Invocation status refresh failed", "error", err)
		case inv.Status.IsTerminal():
			// The processed pointer may have just moved; re-read so the
			// caller sees the transition it caused.
			if refreshed, err := s.q.GetRepositoryOverview(ctx, full); err == nil {
				ov = refreshed
			}
		}
	}

	s.spawnAdvance(ctx, id, force)

	return buildStatus(ov), nil
}

// Snapshot returns the collection holding the most recent completed index
// of the repository. Callers use it to aim chat retrieval at a consistent
// commit.
func (s *Syncer) Snapshot(ctx context.Context, id RepoIdentifier) (*model.IndexSnapshot, error) {
	full := id.FullName()

	repo, err := s.q.GetRepository(ctx, full)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, custom_errors.ErrIncompleteSync
	}
	if err != nil {
		return nil, err
	}
	if repo.FetchedAt != nil && !repo.Available {
		return nil, custom_errors.ErrNotFound
	}

	row, err := s.q.GetLatestCompletedInvocation(ctx, full)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, custom_errors.ErrIncompleteSync
	}
	if err != nil {
		return nil, err
	}
	return &model.IndexSnapshot{CollectionName: row.CollectionName, Ref: row.Ref}, nil
}

// spawnAdvance starts the detached refresh chain for a repository. The
// task keeps the request's values for logging but not its cancellation,
// and runs under its own deadline.
func (s *Syncer) spawnAdvance(ctx context.Context, id RepoIdentifier, force bool) {
	bgCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.bgTimeout)
	go func() {
		defer cancel()
		s.advance(bgCtx, id, force)
	}()
}

// advance walks the refresh chain: repository metadata, branch head, then
// in parallel the head commit's tree and the indexing registrations. Every
// step claims before it fetches, so overlapping chains collapse onto one
// external call per resource, and a failed or lost step is simply picked
// up by a later pass. Errors are logged, never surfaced: the chain only
// improves future answers.
func (s *Syncer) advance(ctx context.Context, id RepoIdentifier, force bool) {
	logger := s.logger.With("owner", id.Owner, "repo", id.Name)

	rec, err := s.refresher.RefreshRepository(ctx, id, force)
	if err != nil {
		logger.Warn("Repository refresh failed", "error", err)
		return
	}
	if !rec.Repo.Available || rec.Details == nil {
		return
	}

	state, err := s.refresher.RefreshBranchHead(ctx, id, rec.Details.DefaultBranch, force)
	if err != nil {
		logger.Warn("Branch head refresh failed", "error", err)
		return
	}
	if state.State.LatestCommitSHA == nil {
		return
	}
	sha := *state.State.LatestCommitSHA

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		commit, err := s.q.GetCommit(gctx, sha)
		if err != nil {
			return fmt.Errorf("load commit %s: %w", sha, err)
		}
		if _, err := s.refresher.RefreshTree(gctx, id, commit.TreeSHA, force); err != nil {
			return fmt.Errorf("tree refresh: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		src, err := s.refresher.EnsureSource(gctx, id)
		if err != nil {
			return fmt.Errorf("source registration: %w", err)
		}
		if src.ExternalID == nil {
			// Registration is in flight elsewhere; its winner will finish.
			return nil
		}
		if _, err := s.refresher.EnsureInvocation(gctx, src.ID, *src.ExternalID, sha, CollectionName(id, sha)); err != nil {
			return fmt.Errorf("invocation registration: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Warn("Refresh chain incomplete", "error", err)
	}
}

// buildStatus derives the outward view from one overview row.
func buildStatus(ov database.GetRepositoryOverviewRow) *model.RepoStatus {
	st := &model.RepoStatus{
		FullName:         ov.FullName,
		Availability:     model.AvailabilityAvailable,
		Readiness:        readinessOf(ov),
		LatestIndexedSHA: ov.LatestProcessedCommitSHA,
		CheckedAt:        time.Now(),
	}

	if ov.DetailDefaultBranch != nil {
		owner, name, _ := strings.Cut(ov.FullName, "/")
		st.Repository = &model.RepositoryMetadata{
			Owner:           owner,
			Name:            name,
			Description:     ov.DetailDescription,
			DefaultBranch:   *ov.DetailDefaultBranch,
			StarsCount:      int(derefInt32(ov.DetailStarsCount)),
			ForksCount:      int(derefInt32(ov.DetailForksCount)),
			OpenIssuesCount: int(derefInt32(ov.DetailOpenIssuesCount)),
			License:         ov.DetailLicense,
			Private:         ov.DetailPrivate != nil && *ov.DetailPrivate,
		}
	}

	if ov.LatestCommitSHA != nil {
		st.LatestCommit = &model.CommitInfo{
			SHA:        *ov.LatestCommitSHA,
			Message:    deref(ov.CommitMessage),
			AuthorName: deref(ov.CommitAuthorName),
			HTMLURL:    deref(ov.CommitHTMLURL),
		}
	}

	if len(ov.TreeEntries) > 0 {
		var entries []model.TreeEntry
		if err := json.Unmarshal(ov.TreeEntries, &entries); err == nil {
			st.Tree = entries
		}
	}
	return st
}

// readinessOf compares the moving branch head with the indexing
// high-water mark.
func readinessOf(ov database.GetRepositoryOverviewRow) model.Readiness {
	switch {
	case ov.LatestProcessedCommitSHA == nil:
		return model.ReadinessProcessing
	case ov.LatestCommitSHA != nil && *ov.LatestCommitSHA == *ov.LatestProcessedCommitSHA:
		return model.ReadinessUpToDate
	default:
		return model.ReadinessOutOfDate
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func derefInt32(n *int32) int32 {
	if n == nil {
		return 0
	}
	return *n
}
