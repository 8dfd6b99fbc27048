package jobs

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-billy/v5/osfs"
	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/transport/client"
	"github.com/go-git/go-git/v5/plumbing/transport/server"
	"github.com/stretchr/testify/require"

	"github.com/codebay/backend/internal/infrastructure/gitengine"
	"github.com/codebay/backend/internal/infrastructure/logger"
)

// Local-path remotes are served in process instead of through the
// git-upload-pack binaries, so the tests have no dependency on an installed
// git.
func init() {
	client.InstallProtocol("file", server.NewClient(server.NewFilesystemLoader(osfs.New("/"))))
}

// repoFixture is a throwaway local repository used as either side of a
// clone/fetch/push exercise.
type repoFixture struct {
	t      *testing.T
	engine *gitengine.Engine
	path   string
	handle *gitengine.Handle
}

func newRepoFixture(t *testing.T) *repoFixture {
	t.Helper()
	engine := gitengine.New(logger.NewNop())
	path := t.TempDir()
	handle, err := engine.Init(path)
	require.NoError(t, err)
	t.Cleanup(func() { handle.Close() })
	require.NoError(t, handle.SetCommitter("Fixture", "fixture@example.com"))
	return &repoFixture{t: t, engine: engine, path: path, handle: handle}
}

// cloneURL addresses the fixture's git directory, the form the in-process
// file transport serves.
func (f *repoFixture) cloneURL() string {
	return filepath.Join(f.path, gogit.GitDirName)
}

func (f *repoFixture) signature() *object.Signature {
	return &object.Signature{Name: "Fixture", Email: "fixture@example.com", When: time.Now()}
}

func (f *repoFixture) commitFile(name, content, message string) plumbing.Hash {
	f.t.Helper()
	full := filepath.Join(f.path, name)
	require.NoError(f.t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(f.t, os.WriteFile(full, []byte(content), 0o644))

	wt, err := f.handle.Repo.Worktree()
	require.NoError(f.t, err)
	_, err = wt.Add(name)
	require.NoError(f.t, err)

	sig := f.signature()
	hash, err := wt.Commit(message, &gogit.CommitOptions{Author: sig, Committer: sig})
	require.NoError(f.t, err)
	return hash
}

// writeFile writes into the worktree without staging or committing.
func (f *repoFixture) writeFile(name, content string) {
	f.t.Helper()
	full := filepath.Join(f.path, name)
	require.NoError(f.t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(f.t, os.WriteFile(full, []byte(content), 0o644))
}

func (f *repoFixture) createBranch(name string, hash plumbing.Hash) {
	f.t.Helper()
	ref := plumbing.NewHashReference(plumbing.NewBranchReferenceName(name), hash)
	require.NoError(f.t, f.handle.Repo.Storer.SetReference(ref))
}

func (f *repoFixture) checkout(branch string) {
	f.t.Helper()
	wt, err := f.handle.Repo.Worktree()
	require.NoError(f.t, err)
	require.NoError(f.t, wt.Checkout(&gogit.CheckoutOptions{
		Branch: plumbing.NewBranchReferenceName(branch),
	}))
}

func (f *repoFixture) createTag(name string, hash plumbing.Hash) {
	f.t.Helper()
	_, err := f.handle.Repo.CreateTag(name, hash, nil)
	require.NoError(f.t, err)
}

func (f *repoFixture) headBranch() string {
	f.t.Helper()
	head, err := f.handle.Repo.Head()
	require.NoError(f.t, err)
	return head.Name().Short()
}
