package jobs

import (
	"context"
	"errors"
	"fmt"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"

	"github.com/codebay/backend/internal/domain"
	"github.com/codebay/backend/internal/infrastructure/gitengine"
	"github.com/codebay/backend/internal/infrastructure/logger"
)

// PullOperation runs a combined fetch and merge. The fetch phase shares the
// per-ref outcome reduction with FetchOperation; a non-clean fetch result is
// returned directly and the merge is never inspected.
type PullOperation struct {
	Engine  *gitengine.Engine
	Creds   *domain.Credentials
	Path    string
	RelPath string
	Remote  string
	Branch  string
	Force   bool
	Log     *logger.Logger
}

func (op *PullOperation) Name() string { return "Error pulling git repository" }

func (op *PullOperation) Execute(ctx context.Context, sink *ProgressSink) (*Result, error) {
	handle, err := op.Engine.Open(op.Path)
	if err != nil {
		return nil, err
	}
	defer handle.Close()

	remoteURL, err := handle.RemoteURL(op.Remote)
	if err != nil {
		return nil, err
	}
	if op.Creds == nil {
		op.Creds = &domain.Credentials{}
	}
	if op.Creds.URI() == nil {
		if err := op.Creds.BindURI(remoteURL); err != nil {
			return nil, err
		}
	}
	auth, err := gitengine.AuthFor(ctx, remoteURL, op.Creds)
	if err != nil {
		return nil, err
	}

	worktree, err := handle.Repo.Worktree()
	if err != nil {
		return nil, err
	}

	before, err := snapshotRemoteRefs(handle.Repo, op.Remote)
	if err != nil {
		return nil, err
	}

	opts := &gogit.PullOptions{
		RemoteName: op.Remote,
		Auth:       auth,
		Progress:   sink.Writer(),
		Force:      op.Force,
	}
	if op.Branch != "" {
		opts.ReferenceName = plumbing.NewBranchReferenceName(op.Branch)
	}

	sink.Start(2)
	sink.BeginSubtask(fmt.Sprintf("Pulling %s", op.Remote), UnknownTotal)
	pullErr := worktree.PullContext(ctx, opts)
	sink.EndSubtask()

	if sink.IsCancelled() {
		return nil, ctx.Err()
	}

	location := domain.JSONB{"Location": repoLocation(op.RelPath)}

	switch {
	case pullErr == nil:
	case errors.Is(pullErr, gogit.NoErrAlreadyUpToDate):
		return &Result{Severity: SeverityOK, Message: "Already up to date", JsonData: location}, nil
	case errors.Is(pullErr, gogit.ErrNonFastForwardUpdate):
		// Merge status was not successful; the result is named after it.
		return &Result{Severity: SeverityError, Message: "NON_FAST_FORWARD", JsonData: location}, nil
	case errors.Is(pullErr, gogit.ErrUnstagedChanges):
		return &Result{Severity: SeverityError, Message: "FAILED", JsonData: location}, nil
	default:
		return nil, pullErr
	}

	after, err := snapshotRemoteRefs(handle.Repo, op.Remote)
	if err != nil {
		return nil, err
	}
	fetchResult := ReduceRefUpdates(diffRemoteRefs(handle.Repo, before, after))
	if fetchResult.Severity != SeverityOK {
		fetchResult.JsonData = location
		return fetchResult, nil
	}

	return &Result{Severity: SeverityOK, Message: "OK", JsonData: location}, nil
}
