package gitengine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	gogit "github.com/go-git/go-git/v5"
	gitconfig "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing/cache"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/go-git/go-git/v5/storage/filesystem"

	"github.com/go-git/go-billy/v5/osfs"

	"github.com/codebay/backend/internal/infrastructure/logger"
)

// ErrNotARepository is returned when Open finds no git directory at the path.
var ErrNotARepository = errors.New("gitengine: not a git repository")

type Engine struct {
	log *logger.Logger
}

func New(log *logger.Logger) *Engine {
	return &Engine{log: log}
}

// Handle is a scoped repository handle. It owns the object cache backing the
// repository storage; Close releases it. A handle belongs to exactly one job
// for the duration of one operation and must be closed on every exit path.
type Handle struct {
	Repo  *gogit.Repository
	Path  string
	store *filesystem.Storage
	cache cache.Object
}

// Close releases the handle. The decompressed-object cache is cleared
// explicitly; the garbage collector cannot reclaim it while referenced.
func (h *Handle) Close() error {
	if h.cache != nil {
		h.cache.Clear()
		h.cache = nil
	}
	h.Repo = nil
	return nil
}

func (e *Engine) storage(path string) (*filesystem.Storage, cache.Object, error) {
	wt := osfs.New(path)
	dot, err := wt.Chroot(gogit.GitDirName)
	if err != nil {
		return nil, nil, err
	}
	objCache := cache.NewObjectLRUDefault()
	st := filesystem.NewStorage(dot, objCache)
	return st, objCache, nil
}

// Open opens an existing repository at path.
func (e *Engine) Open(path string) (*Handle, error) {
	st, objCache, err := e.storage(path)
	if err != nil {
		return nil, err
	}
	repo, err := gogit.Open(st, osfs.New(path))
	if err != nil {
		if errors.Is(err, gogit.ErrRepositoryNotExists) {
			return nil, fmt.Errorf("%w: %s", ErrNotARepository, path)
		}
		return nil, err
	}
	return &Handle{Repo: repo, Path: path, store: st, cache: objCache}, nil
}

// CloneOptions configures a clone performed by the engine.
type CloneOptions struct {
	URL        string
	RemoteName string
	Auth       transport.AuthMethod
	Progress   io.Writer
	Depth      int
}

// Clone clones the repository at opts.URL into path and returns a handle to
// it. The target directory is created if absent.
func (e *Engine) Clone(ctx context.Context, path string, opts CloneOptions) (*Handle, error) {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, err
	}
	st, objCache, err := e.storage(path)
	if err != nil {
		return nil, err
	}
	remote := opts.RemoteName
	if remote == "" {
		remote = gogit.DefaultRemoteName
	}
	repo, err := gogit.CloneContext(ctx, st, osfs.New(path), &gogit.CloneOptions{
		URL:        opts.URL,
		RemoteName: remote,
		Auth:       opts.Auth,
		Progress:   opts.Progress,
		Depth:      opts.Depth,
	})
	if err != nil {
		objCache.Clear()
		return nil, err
	}
	return &Handle{Repo: repo, Path: path, store: st, cache: objCache}, nil
}

// Init creates an empty repository at path.
func (e *Engine) Init(path string) (*Handle, error) {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, err
	}
	st, objCache, err := e.storage(path)
	if err != nil {
		return nil, err
	}
	repo, err := gogit.Init(st, osfs.New(path))
	if err != nil {
		objCache.Clear()
		return nil, err
	}
	return &Handle{Repo: repo, Path: path, store: st, cache: objCache}, nil
}

// SetCommitter writes the committer identity into the repository config.
// Writing the same identity twice leaves a single entry; the config section
// is replaced, not appended to.
func (h *Handle) SetCommitter(name, email string) error {
	cfg, err := h.Repo.Config()
	if err != nil {
		return err
	}
	cfg.User.Name = name
	cfg.User.Email = email
	return h.Repo.SetConfig(cfg)
}

// Committer reads the configured committer identity.
func (h *Handle) Committer() (name, email string, err error) {
	cfg, err := h.Repo.Config()
	if err != nil {
		return "", "", err
	}
	return cfg.User.Name, cfg.User.Email, nil
}

// PackRefs compacts loose reference storage. Purely an optimization; callers
// are expected to swallow failures.
func (h *Handle) PackRefs() error {
	type refPacker interface{ PackRefs() error }
	if p, ok := interface{}(h.store).(refPacker); ok {
		return p.PackRefs()
	}
	return nil
}

// EmptyCommit creates a commit with no changes on the current branch. Some
// downstream tooling assumes at least one commit exists.
func (h *Handle) EmptyCommit(message, name, email string) error {
	wt, err := h.Repo.Worktree()
	if err != nil {
		return err
	}
	sig := &object.Signature{Name: name, Email: email, When: time.Now()}
	_, err = wt.Commit(message, &gogit.CommitOptions{
		Author:            sig,
		Committer:         sig,
		AllowEmptyCommits: true,
	})
	return err
}

// RemoteURL returns the first URL configured for the named remote.
func (h *Handle) RemoteURL(name string) (string, error) {
	remote, err := h.Repo.Remote(name)
	if err != nil {
		return "", err
	}
	urls := remote.Config().URLs
	if len(urls) == 0 {
		return "", fmt.Errorf("gitengine: remote %q has no url", name)
	}
	return urls[0], nil
}

// RemoteConfig returns the configuration of the named remote.
func (h *Handle) RemoteConfig(name string) (*gitconfig.RemoteConfig, error) {
	remote, err := h.Repo.Remote(name)
	if err != nil {
		return nil, err
	}
	return remote.Config(), nil
}
