package jobs

import (
	"context"
	"errors"
	"fmt"

	gogit "github.com/go-git/go-git/v5"
	gitconfig "github.com/go-git/go-git/v5/config"

	"github.com/codebay/backend/internal/domain"
	"github.com/codebay/backend/internal/infrastructure/gitengine"
	"github.com/codebay/backend/internal/infrastructure/logger"
)

// FetchOperation fetches one branch or all refs of a remote.
type FetchOperation struct {
	Engine  *gitengine.Engine
	Creds   *domain.Credentials
	Path    string
	RelPath string
	Remote  string
	// Branch restricts the fetch to a single branch; empty fetches all refs.
	Branch string
	// Force allows non-fast-forward remote-tracking updates.
	Force bool
	Log   *logger.Logger
}

func (op *FetchOperation) Name() string { return "Error fetching git remote" }

func (op *FetchOperation) Execute(ctx context.Context, sink *ProgressSink) (*Result, error) {
	handle, err := op.Engine.Open(op.Path)
	if err != nil {
		return nil, err
	}
	defer handle.Close()

	// The target URI is only known once the named remote resolves.
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

	var refSpecs []gitconfig.RefSpec
	if op.Branch != "" {
		refSpecs = []gitconfig.RefSpec{branchFetchRefSpec(op.Remote, op.Branch, op.Force)}
	}

	before, err := snapshotRemoteRefs(handle.Repo, op.Remote)
	if err != nil {
		return nil, err
	}

	sink.Start(1)
	sink.BeginSubtask(fmt.Sprintf("Fetching %s", op.Remote), UnknownTotal)
	fetchErr := handle.Repo.FetchContext(ctx, &gogit.FetchOptions{
		RemoteName: op.Remote,
		RefSpecs:   refSpecs,
		Auth:       auth,
		Progress:   sink.Writer(),
		Force:      op.Force,
	})
	sink.EndSubtask()

	if sink.IsCancelled() {
		return nil, ctx.Err()
	}

	switch {
	case fetchErr == nil:
	case errors.Is(fetchErr, gogit.NoErrAlreadyUpToDate):
		// Nothing moved; every tracked ref is a NO_CHANGE.
	case errors.Is(fetchErr, gogit.ErrForceNeeded):
		rejected := fmt.Sprintf("refs/remotes/%s/%s", op.Remote, op.Branch)
		result := ReduceRefUpdates([]RefUpdate{{Ref: rejected, Outcome: OutcomeRejected}})
		result.JsonData = domain.JSONB{"Location": repoLocation(op.RelPath)}
		return result, nil
	default:
		return nil, fetchErr
	}

	after, err := snapshotRemoteRefs(handle.Repo, op.Remote)
	if err != nil {
		return nil, err
	}

	result := ReduceRefUpdates(diffRemoteRefs(handle.Repo, before, after))
	result.JsonData = domain.JSONB{"Location": repoLocation(op.RelPath)}
	return result, nil
}

// branchFetchRefSpec builds refs/heads/{b}:refs/remotes/{r}/{b}; the force
// flag controls whether non-fast-forward updates are allowed.
func branchFetchRefSpec(remote, branch string, force bool) gitconfig.RefSpec {
	spec := fmt.Sprintf("refs/heads/%s:refs/remotes/%s/%s", branch, remote, branch)
	if force {
		spec = "+" + spec
	}
	return gitconfig.RefSpec(spec)
}
