package jobs

import (
	"fmt"
	"sort"
	"strings"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/storer"
)

// RefOutcome is the per-ref result of a fetch.
type RefOutcome string

const (
	OutcomeNotAttempted          RefOutcome = "NOT_ATTEMPTED"
	OutcomeNoChange              RefOutcome = "NO_CHANGE"
	OutcomeNew                   RefOutcome = "NEW"
	OutcomeForced                RefOutcome = "FORCED"
	OutcomeFastForward           RefOutcome = "FAST_FORWARD"
	OutcomeRenamed               RefOutcome = "RENAMED"
	OutcomeRejected              RefOutcome = "REJECTED"
	OutcomeRejectedCurrentBranch RefOutcome = "REJECTED_CURRENT_BRANCH"
)

// RefUpdate is one ref's fetch outcome.
type RefUpdate struct {
	Ref     string
	Outcome RefOutcome
	Message string
}

// ReduceRefUpdates reduces per-ref fetch outcomes to one operation result.
// The first non-clean outcome wins; refs are visited in sorted ref-name
// order, so the reduction is deterministic regardless of how the result set
// was collected. Non-fast-forward rejections are warnings, not hard failures.
func ReduceRefUpdates(updates []RefUpdate) *Result {
	sorted := make([]RefUpdate, len(updates))
	copy(sorted, updates)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Ref < sorted[j].Ref })

	for _, u := range sorted {
		switch u.Outcome {
		case OutcomeNotAttempted, OutcomeNoChange, OutcomeNew, OutcomeForced,
			OutcomeFastForward, OutcomeRenamed:
			continue
		case OutcomeRejected:
			return &Result{
				Severity: SeverityWarning,
				Message:  fmt.Sprintf("Fetch rejected, not a fast-forward: %s", u.Ref),
			}
		case OutcomeRejectedCurrentBranch:
			return &Result{
				Severity: SeverityWarning,
				Message:  fmt.Sprintf("Cannot delete the branch checked out at: %s", u.Ref),
			}
		default:
			return &Result{Severity: SeverityError, Message: string(u.Outcome)}
		}
	}
	return &Result{Severity: SeverityOK, Message: "OK"}
}

// remoteRefSnapshot captures the remote-tracking refs of one remote, so a
// fetch can be diffed into per-ref outcomes afterwards.
type remoteRefSnapshot map[string]plumbing.Hash

func snapshotRemoteRefs(repo *gogit.Repository, remote string) (remoteRefSnapshot, error) {
	prefix := fmt.Sprintf("refs/remotes/%s/", remote)
	snap := remoteRefSnapshot{}
	iter, err := repo.References()
	if err != nil {
		return nil, err
	}
	defer iter.Close()
	err = iter.ForEach(func(ref *plumbing.Reference) error {
		name := ref.Name().String()
		if strings.HasPrefix(name, prefix) && ref.Type() == plumbing.HashReference {
			snap[name] = ref.Hash()
		}
		return nil
	})
	if err != nil && err != storer.ErrStop {
		return nil, err
	}
	return snap, nil
}

// diffRemoteRefs turns a before/after pair of snapshots into per-ref
// outcomes. An updated ref whose old tip is an ancestor of the new tip is a
// fast-forward, otherwise a forced update.
func diffRemoteRefs(repo *gogit.Repository, before, after remoteRefSnapshot) []RefUpdate {
	var updates []RefUpdate
	for name, newHash := range after {
		oldHash, existed := before[name]
		switch {
		case !existed:
			updates = append(updates, RefUpdate{Ref: name, Outcome: OutcomeNew})
		case oldHash == newHash:
			updates = append(updates, RefUpdate{Ref: name, Outcome: OutcomeNoChange})
		case isAncestor(repo, oldHash, newHash):
			updates = append(updates, RefUpdate{Ref: name, Outcome: OutcomeFastForward})
		default:
			updates = append(updates, RefUpdate{Ref: name, Outcome: OutcomeForced})
		}
	}
	return updates
}

func isAncestor(repo *gogit.Repository, oldHash, newHash plumbing.Hash) bool {
	oldCommit, err := repo.CommitObject(oldHash)
	if err != nil {
		return false
	}
	newCommit, err := repo.CommitObject(newHash)
	if err != nil {
		return false
	}
	ok, err := oldCommit.IsAncestor(newCommit)
	return err == nil && ok
}

// aheadBehind counts the commits reachable from each tip but not from the
// merge base. Used by the merge-base log filter.
func aheadBehind(repo *gogit.Repository, left, right *object.Commit) (ahead, behind int, err error) {
	bases, err := left.MergeBase(right)
	if err != nil {
		return 0, 0, err
	}
	stop := map[plumbing.Hash]bool{}
	for _, b := range bases {
		stop[b.Hash] = true
	}
	ahead, err = countUntil(repo, left, stop)
	if err != nil {
		return 0, 0, err
	}
	behind, err = countUntil(repo, right, stop)
	if err != nil {
		return 0, 0, err
	}
	return ahead, behind, nil
}

func countUntil(repo *gogit.Repository, from *object.Commit, stop map[plumbing.Hash]bool) (int, error) {
	commits, err := collectUntil(repo, from, stop)
	if err != nil {
		return 0, err
	}
	return len(commits), nil
}

// collectUntil walks from a tip towards the stop set and returns every commit
// reachable without crossing it.
func collectUntil(repo *gogit.Repository, from *object.Commit, stop map[plumbing.Hash]bool) ([]*object.Commit, error) {
	if stop[from.Hash] {
		return nil, nil
	}
	seen := map[plumbing.Hash]bool{}
	var commits []*object.Commit
	queue := []*object.Commit{from}
	for len(queue) > 0 {
		c := queue[0]
		queue = queue[1:]
		if seen[c.Hash] || stop[c.Hash] {
			continue
		}
		seen[c.Hash] = true
		commits = append(commits, c)
		err := c.Parents().ForEach(func(p *object.Commit) error {
			if !seen[p.Hash] && !stop[p.Hash] {
				queue = append(queue, p)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return commits, nil
}
