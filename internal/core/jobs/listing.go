package jobs

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/codebay/backend/internal/domain"
	"github.com/codebay/backend/internal/infrastructure/gitengine"
)

// Page selects a slice of a listing. Number is 1-based; a non-positive Size
// disables pagination.
type Page struct {
	Number int
	Size   int
}

func (p Page) enabled() bool { return p.Size > 0 }

// bounds clips the page window to the available count.
func (p Page) bounds(total int) (first, last int) {
	if !p.enabled() {
		return 0, total
	}
	number := p.Number
	if number < 1 {
		number = 1
	}
	first = (number - 1) * p.Size
	if first > total {
		first = total
	}
	last = first + p.Size
	if last > total {
		last = total
	}
	return first, last
}

// links returns the previous/next page locations, empty when not applicable.
func (p Page) links(base string, total int) (prev, next string) {
	if !p.enabled() {
		return "", ""
	}
	number := p.Number
	if number < 1 {
		number = 1
	}
	if number > 1 {
		prev = fmt.Sprintf("%s?page=%d&pageSize=%d", base, number-1, p.Size)
	}
	if number*p.Size < total {
		next = fmt.Sprintf("%s?page=%d&pageSize=%d", base, number+1, p.Size)
	}
	return prev, next
}

func paginate(children []domain.JSONB, base string, page Page) domain.JSONB {
	// An empty listing marshals as [], not null.
	if children == nil {
		children = []domain.JSONB{}
	}
	total := len(children)
	first, last := page.bounds(total)
	payload := domain.JSONB{
		"Children": children[first:last],
		"Total":    total,
	}
	if prev, next := page.links(base, total); prev != "" || next != "" {
		if prev != "" {
			payload["PreviousLocation"] = prev
		}
		if next != "" {
			payload["NextLocation"] = next
		}
	}
	return payload
}

// RunSync executes a read-only operation on the calling goroutine and
// classifies its failure, if any. Listing operations have no
// cancellation-sensitive network I/O and skip the worker pool.
func RunSync(ctx context.Context, op Operation, creds *domain.Credentials) (*Result, *ClassifiedError) {
	sink := NewProgressSink(ctx, nil)
	result, err := op.Execute(ctx, sink)
	if err != nil {
		return nil, Classify(err, op.Name(), creds)
	}
	return result, nil
}

// BranchListOperation lists local branches with their tip commits.
type BranchListOperation struct {
	Engine  *gitengine.Engine
	Path    string
	RelPath string
	// Filter is a substring match on the branch name.
	Filter string
	Page   Page
}

func (op *BranchListOperation) Name() string { return "Error listing branches" }

func (op *BranchListOperation) Execute(ctx context.Context, sink *ProgressSink) (*Result, error) {
	handle, err := op.Engine.Open(op.Path)
	if err != nil {
		return nil, err
	}
	defer handle.Close()

	var current string
	if head, err := handle.Repo.Head(); err == nil {
		current = head.Name().Short()
	}

	iter, err := handle.Repo.Branches()
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var children []domain.JSONB
	err = iter.ForEach(func(ref *plumbing.Reference) error {
		name := ref.Name().Short()
		if op.Filter != "" && !strings.Contains(name, op.Filter) {
			return nil
		}
		children = append(children, domain.JSONB{
			"Name":      name,
			"FullName":  ref.Name().String(),
			"CommitSha": ref.Hash().String(),
			"Current":   name == current,
			"Location":  branchLocation(op.RelPath, name),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(children, func(i, j int) bool {
		return children[i]["Name"].(string) < children[j]["Name"].(string)
	})

	base := repoLocation(op.RelPath) + "/branches"
	return &Result{Severity: SeverityOK, Message: "OK", JsonData: paginate(children, base, op.Page)}, nil
}

// TagListOperation lists tags, resolving annotated tags to their target
// commits.
type TagListOperation struct {
	Engine  *gitengine.Engine
	Path    string
	RelPath string
	Filter  string
	Page    Page
}

func (op *TagListOperation) Name() string { return "Error listing tags" }

func (op *TagListOperation) Execute(ctx context.Context, sink *ProgressSink) (*Result, error) {
	handle, err := op.Engine.Open(op.Path)
	if err != nil {
		return nil, err
	}
	defer handle.Close()

	iter, err := handle.Repo.Tags()
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var children []domain.JSONB
	err = iter.ForEach(func(ref *plumbing.Reference) error {
		name := ref.Name().Short()
		if op.Filter != "" && !strings.Contains(name, op.Filter) {
			return nil
		}
		commitSha := ref.Hash().String()
		annotated := false
		if tag, err := handle.Repo.TagObject(ref.Hash()); err == nil {
			annotated = true
			if commit, err := tag.Commit(); err == nil {
				commitSha = commit.Hash.String()
			}
		}
		children = append(children, domain.JSONB{
			"Name":      name,
			"FullName":  ref.Name().String(),
			"CommitSha": commitSha,
			"Annotated": annotated,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(children, func(i, j int) bool {
		return children[i]["Name"].(string) < children[j]["Name"].(string)
	})

	base := repoLocation(op.RelPath) + "/tags"
	return &Result{Severity: SeverityOK, Message: "OK", JsonData: paginate(children, base, op.Page)}, nil
}

// LogFilters restrict a commit listing.
type LogFilters struct {
	Author    string
	Committer string
	Message   string
	Since     *time.Time
	Until     *time.Time
}

func (f LogFilters) match(c *object.Commit) bool {
	if f.Author != "" && !containsFold(c.Author.Name, f.Author) && !containsFold(c.Author.Email, f.Author) {
		return false
	}
	if f.Committer != "" && !containsFold(c.Committer.Name, f.Committer) && !containsFold(c.Committer.Email, f.Committer) {
		return false
	}
	if f.Message != "" && !containsFold(c.Message, f.Message) {
		return false
	}
	if f.Since != nil && c.Author.When.Before(*f.Since) {
		return false
	}
	if f.Until != nil && c.Author.When.After(*f.Until) {
		return false
	}
	return true
}

// LogOperation lists commits reachable from Ref, decorated with the branches
// and tags pointing at them. When BaseRef is set, the walk stops at the merge
// base and the payload carries ahead/behind counts relative to it.
type LogOperation struct {
	Engine  *gitengine.Engine
	Path    string
	RelPath string
	Ref     string
	BaseRef string
	Filters LogFilters
	Page    Page
}

func (op *LogOperation) Name() string { return "Error reading git log" }

func (op *LogOperation) Execute(ctx context.Context, sink *ProgressSink) (*Result, error) {
	handle, err := op.Engine.Open(op.Path)
	if err != nil {
		return nil, err
	}
	defer handle.Close()

	fromHash, err := resolveRef(handle.Repo, op.Ref)
	if err != nil {
		return nil, err
	}
	fromCommit, err := handle.Repo.CommitObject(*fromHash)
	if err != nil {
		return nil, err
	}

	branchesOf, tagsOf, err := decorations(handle.Repo)
	if err != nil {
		return nil, err
	}

	payload := domain.JSONB{}
	var commits []*object.Commit
	if op.BaseRef != "" {
		baseHash, err := resolveRef(handle.Repo, op.BaseRef)
		if err != nil {
			return nil, err
		}
		baseCommit, err := handle.Repo.CommitObject(*baseHash)
		if err != nil {
			return nil, err
		}
		ahead, behind, err := aheadBehind(handle.Repo, fromCommit, baseCommit)
		if err != nil {
			return nil, err
		}
		payload["AheadCount"] = ahead
		payload["BehindCount"] = behind

		bases, err := fromCommit.MergeBase(baseCommit)
		if err != nil {
			return nil, err
		}
		stop := map[plumbing.Hash]bool{}
		for _, b := range bases {
			stop[b.Hash] = true
		}
		commits, err = collectUntil(handle.Repo, fromCommit, stop)
		if err != nil {
			return nil, err
		}
	} else {
		logIter, err := handle.Repo.Log(&gogit.LogOptions{From: *fromHash})
		if err != nil {
			return nil, err
		}
		defer logIter.Close()
		err = logIter.ForEach(func(c *object.Commit) error {
			commits = append(commits, c)
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	var children []domain.JSONB
	for _, c := range commits {
		if !op.Filters.match(c) {
			continue
		}
		children = append(children, commitPayload(op.RelPath, c, branchesOf, tagsOf))
	}

	base := repoLocation(op.RelPath) + "/commits"
	listing := paginate(children, base, op.Page)
	for k, v := range payload {
		listing[k] = v
	}
	return &Result{Severity: SeverityOK, Message: "OK", JsonData: listing}, nil
}

// StatusOperation reports the worktree status.
type StatusOperation struct {
	Engine  *gitengine.Engine
	Path    string
	RelPath string
}

func (op *StatusOperation) Name() string { return "Error reading git status" }

func (op *StatusOperation) Execute(ctx context.Context, sink *ProgressSink) (*Result, error) {
	handle, err := op.Engine.Open(op.Path)
	if err != nil {
		return nil, err
	}
	defer handle.Close()

	worktree, err := handle.Repo.Worktree()
	if err != nil {
		return nil, err
	}
	status, err := worktree.Status()
	if err != nil {
		return nil, err
	}

	added := []string{}
	modified := []string{}
	deleted := []string{}
	untracked := []string{}
	conflicting := []string{}
	for path, file := range status {
		switch {
		case file.Staging == gogit.UpdatedButUnmerged || file.Worktree == gogit.UpdatedButUnmerged:
			conflicting = append(conflicting, path)
		case file.Worktree == gogit.Untracked:
			untracked = append(untracked, path)
		case file.Staging == gogit.Added:
			added = append(added, path)
		case file.Staging == gogit.Deleted || file.Worktree == gogit.Deleted:
			deleted = append(deleted, path)
		case file.Staging == gogit.Modified || file.Worktree == gogit.Modified:
			modified = append(modified, path)
		}
	}
	sort.Strings(added)
	sort.Strings(modified)
	sort.Strings(deleted)
	sort.Strings(untracked)
	sort.Strings(conflicting)

	return &Result{Severity: SeverityOK, Message: "OK", JsonData: domain.JSONB{
		"Location":    repoLocation(op.RelPath) + "/status",
		"Added":       added,
		"Modified":    modified,
		"Deleted":     deleted,
		"Untracked":   untracked,
		"Conflicting": conflicting,
		"Clean":       status.IsClean(),
	}}, nil
}

// RemoteDetailsOperation describes one configured remote and its tracking
// branches.
type RemoteDetailsOperation struct {
	Engine  *gitengine.Engine
	Path    string
	RelPath string
	Remote  string
}

func (op *RemoteDetailsOperation) Name() string { return "Error reading git remote" }

func (op *RemoteDetailsOperation) Execute(ctx context.Context, sink *ProgressSink) (*Result, error) {
	handle, err := op.Engine.Open(op.Path)
	if err != nil {
		return nil, err
	}
	defer handle.Close()

	remoteConfig, err := handle.RemoteConfig(op.Remote)
	if err != nil {
		return nil, err
	}

	snap, err := snapshotRemoteRefs(handle.Repo, op.Remote)
	if err != nil {
		return nil, err
	}
	branches := []domain.JSONB{}
	for name, hash := range snap {
		branches = append(branches, domain.JSONB{
			"FullName":  name,
			"Name":      strings.TrimPrefix(name, fmt.Sprintf("refs/remotes/%s/", op.Remote)),
			"CommitSha": hash.String(),
		})
	}
	sort.Slice(branches, func(i, j int) bool {
		return branches[i]["FullName"].(string) < branches[j]["FullName"].(string)
	})

	refSpecs := make([]string, 0, len(remoteConfig.Fetch))
	for _, spec := range remoteConfig.Fetch {
		refSpecs = append(refSpecs, spec.String())
	}

	return &Result{Severity: SeverityOK, Message: "OK", JsonData: domain.JSONB{
		"Name":       remoteConfig.Name,
		"Urls":       remoteConfig.URLs,
		"FetchSpecs": refSpecs,
		"Branches":   branches,
		"Location":   repoLocation(op.RelPath) + "/remotes/" + op.Remote,
	}}, nil
}

func resolveRef(repo *gogit.Repository, ref string) (*plumbing.Hash, error) {
	hash, err := repo.ResolveRevision(plumbing.Revision(ref))
	if err != nil {
		// Surface a typed not-found so classification yields 404.
		return nil, fmt.Errorf("%q: %w", ref, plumbing.ErrReferenceNotFound)
	}
	return hash, nil
}

// decorations builds the commit-to-branches and commit-to-tags maps used to
// decorate log entries.
func decorations(repo *gogit.Repository) (branchesOf, tagsOf map[plumbing.Hash][]string, err error) {
	branchesOf = map[plumbing.Hash][]string{}
	tagsOf = map[plumbing.Hash][]string{}

	branches, err := repo.Branches()
	if err != nil {
		return nil, nil, err
	}
	defer branches.Close()
	err = branches.ForEach(func(ref *plumbing.Reference) error {
		branchesOf[ref.Hash()] = append(branchesOf[ref.Hash()], ref.Name().Short())
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	tags, err := repo.Tags()
	if err != nil {
		return nil, nil, err
	}
	defer tags.Close()
	err = tags.ForEach(func(ref *plumbing.Reference) error {
		target := ref.Hash()
		if tag, err := repo.TagObject(ref.Hash()); err == nil {
			if commit, err := tag.Commit(); err == nil {
				target = commit.Hash
			}
		}
		tagsOf[target] = append(tagsOf[target], ref.Name().Short())
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return branchesOf, tagsOf, nil
}

func commitPayload(relPath string, c *object.Commit, branchesOf, tagsOf map[plumbing.Hash][]string) domain.JSONB {
	parents := make([]string, 0, c.NumParents())
	for _, p := range c.ParentHashes {
		parents = append(parents, p.String())
	}
	payload := domain.JSONB{
		"Sha":            c.Hash.String(),
		"Message":        c.Message,
		"AuthorName":     c.Author.Name,
		"AuthorEmail":    c.Author.Email,
		"AuthorDate":     c.Author.When,
		"CommitterName":  c.Committer.Name,
		"CommitterEmail": c.Committer.Email,
		"CommitDate":     c.Committer.When,
		"Parents":        parents,
		"Location":       repoLocation(relPath) + "/commits/" + c.Hash.String(),
	}
	if names := branchesOf[c.Hash]; len(names) > 0 {
		payload["Branches"] = names
	}
	if names := tagsOf[c.Hash]; len(names) > 0 {
		payload["Tags"] = names
	}
	return payload
}

func branchLocation(relPath, branch string) string {
	return repoLocation(relPath) + "/branches/" + branch
}
