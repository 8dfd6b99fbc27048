package jobs

import (
	"context"
	"path/filepath"
	"testing"

	gitconfig "github.com/go-git/go-git/v5/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codebay/backend/internal/infrastructure/gitengine"
	"github.com/codebay/backend/internal/infrastructure/logger"
)

// cloneFrom clones the fixture into a fresh directory and returns the clone's
// path.
func cloneFrom(t *testing.T, source *repoFixture) string {
	t.Helper()
	target := filepath.Join(t.TempDir(), "clone")
	op := &CloneOperation{
		Engine:         source.engine,
		URL:            source.cloneURL(),
		Path:           target,
		RelPath:        "clone",
		CommitterName:  "Codebay",
		CommitterEmail: "noreply@codebay.local",
		Log:            logger.NewNop(),
	}
	sink := NewProgressSink(context.Background(), nil)
	_, err := op.Execute(context.Background(), sink)
	require.NoError(t, err)
	return target
}

func TestFetchNoChange(t *testing.T) {
	source := newRepoFixture(t)
	source.commitFile("a.txt", "a", "first")
	clone := cloneFrom(t, source)

	op := &FetchOperation{
		Engine:  source.engine,
		Path:    clone,
		RelPath: "clone",
		Remote:  "origin",
		Log:     logger.NewNop(),
	}
	sink := NewProgressSink(context.Background(), nil)
	result, err := op.Execute(context.Background(), sink)
	require.NoError(t, err)
	assert.Equal(t, SeverityOK, result.Severity)
	assert.Equal(t, "OK", result.Message)
	assert.Equal(t, "/api/v1/repos/clone", result.JsonData["Location"])
}

func TestFetchFastForward(t *testing.T) {
	source := newRepoFixture(t)
	source.commitFile("a.txt", "a", "first")
	clone := cloneFrom(t, source)

	// New upstream commit after the clone.
	source.commitFile("b.txt", "b", "second")

	op := &FetchOperation{
		Engine:  source.engine,
		Path:    clone,
		RelPath: "clone",
		Remote:  "origin",
		Log:     logger.NewNop(),
	}
	sink := NewProgressSink(context.Background(), nil)
	result, err := op.Execute(context.Background(), sink)
	require.NoError(t, err)
	assert.Equal(t, SeverityOK, result.Severity)
}

func TestFetchLazilyBindsCredentialURI(t *testing.T) {
	source := newRepoFixture(t)
	source.commitFile("a.txt", "a", "first")
	clone := cloneFrom(t, source)

	op := &FetchOperation{
		Engine:  source.engine,
		Path:    clone,
		RelPath: "clone",
		Remote:  "origin",
		Log:     logger.NewNop(),
	}
	require.Nil(t, op.Creds.URI())

	sink := NewProgressSink(context.Background(), nil)
	_, err := op.Execute(context.Background(), sink)
	require.NoError(t, err)

	// The remote's URL was bound for error reporting before the transfer.
	require.NotNil(t, op.Creds.URI())
	assert.Contains(t, op.Creds.URI().String(), source.path)
}

func TestFetchUnknownRemote(t *testing.T) {
	source := newRepoFixture(t)
	source.commitFile("a.txt", "a", "first")
	clone := cloneFrom(t, source)

	op := &FetchOperation{
		Engine:  source.engine,
		Path:    clone,
		RelPath: "clone",
		Remote:  "upstream",
		Log:     logger.NewNop(),
	}
	sink := NewProgressSink(context.Background(), nil)
	_, err := op.Execute(context.Background(), sink)
	require.Error(t, err)

	ce := Classify(err, op.Name(), op.Creds)
	assert.Equal(t, 404, ce.HttpCode)
}

func TestBranchFetchRefSpec(t *testing.T) {
	assert.Equal(t,
		gitconfig.RefSpec("refs/heads/main:refs/remotes/origin/main"),
		branchFetchRefSpec("origin", "main", false))
	assert.Equal(t,
		gitconfig.RefSpec("+refs/heads/main:refs/remotes/origin/main"),
		branchFetchRefSpec("origin", "main", true))
}

func TestDiffRemoteRefsOutcomes(t *testing.T) {
	source := newRepoFixture(t)
	first := source.commitFile("a.txt", "a", "first")
	second := source.commitFile("b.txt", "b", "second")

	engine := gitengine.New(logger.NewNop())
	handle, err := engine.Open(source.path)
	require.NoError(t, err)
	defer handle.Close()

	before := remoteRefSnapshot{
		"refs/remotes/origin/main":  first,
		"refs/remotes/origin/stale": second,
		"refs/remotes/origin/gone":  first,
	}
	after := remoteRefSnapshot{
		"refs/remotes/origin/main":  second, // first -> second is a fast-forward
		"refs/remotes/origin/stale": second,
		"refs/remotes/origin/fresh": first,
	}

	updates := diffRemoteRefs(handle.Repo, before, after)
	byRef := map[string]RefOutcome{}
	for _, u := range updates {
		byRef[u.Ref] = u.Outcome
	}
	assert.Equal(t, OutcomeFastForward, byRef["refs/remotes/origin/main"])
	assert.Equal(t, OutcomeNoChange, byRef["refs/remotes/origin/stale"])
	assert.Equal(t, OutcomeNew, byRef["refs/remotes/origin/fresh"])
}

func TestDiffRemoteRefsForced(t *testing.T) {
	source := newRepoFixture(t)
	base := source.commitFile("a.txt", "a", "base")
	source.createBranch("side", base)
	source.checkout("side")
	diverged := source.commitFile("c.txt", "c", "diverged")
	source.checkout("master")
	moved := source.commitFile("b.txt", "b", "moved")

	engine := gitengine.New(logger.NewNop())
	handle, err := engine.Open(source.path)
	require.NoError(t, err)
	defer handle.Close()

	// diverged is not an ancestor of moved: a forced update.
	updates := diffRemoteRefs(handle.Repo,
		remoteRefSnapshot{"refs/remotes/origin/main": diverged},
		remoteRefSnapshot{"refs/remotes/origin/main": moved},
	)
	require.Len(t, updates, 1)
	assert.Equal(t, OutcomeForced, updates[0].Outcome)
}
