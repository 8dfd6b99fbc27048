package jobs

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReduceRefUpdatesAllClean(t *testing.T) {
	result := ReduceRefUpdates([]RefUpdate{
		{Ref: "refs/remotes/origin/main", Outcome: OutcomeFastForward},
		{Ref: "refs/remotes/origin/dev", Outcome: OutcomeNew},
		{Ref: "refs/remotes/origin/stale", Outcome: OutcomeNoChange},
	})
	assert.Equal(t, SeverityOK, result.Severity)
	assert.Equal(t, "OK", result.Message)
}

func TestReduceRefUpdatesEmpty(t *testing.T) {
	result := ReduceRefUpdates(nil)
	assert.Equal(t, SeverityOK, result.Severity)
}

func TestReduceRefUpdatesRejectedWins(t *testing.T) {
	result := ReduceRefUpdates([]RefUpdate{
		{Ref: "refs/remotes/origin/a", Outcome: OutcomeFastForward},
		{Ref: "refs/remotes/origin/b", Outcome: OutcomeRejected},
		{Ref: "refs/remotes/origin/c", Outcome: OutcomeNew},
	})
	assert.Equal(t, SeverityWarning, result.Severity)
	assert.Contains(t, result.Message, "refs/remotes/origin/b")
	assert.Contains(t, result.Message, "not a fast-forward")
}

func TestReduceRefUpdatesDeterministicOrder(t *testing.T) {
	// Two rejections in arbitrary input order always report the
	// lexicographically first ref.
	first := ReduceRefUpdates([]RefUpdate{
		{Ref: "refs/remotes/origin/zeta", Outcome: OutcomeRejected},
		{Ref: "refs/remotes/origin/alpha", Outcome: OutcomeRejected},
	})
	second := ReduceRefUpdates([]RefUpdate{
		{Ref: "refs/remotes/origin/alpha", Outcome: OutcomeRejected},
		{Ref: "refs/remotes/origin/zeta", Outcome: OutcomeRejected},
	})
	assert.Equal(t, first.Message, second.Message)
	assert.Contains(t, first.Message, "alpha")
}

func TestReduceRefUpdatesRejectedCurrentBranch(t *testing.T) {
	result := ReduceRefUpdates([]RefUpdate{
		{Ref: "refs/heads/main", Outcome: OutcomeRejectedCurrentBranch},
	})
	assert.Equal(t, SeverityWarning, result.Severity)
	assert.Contains(t, result.Message, "refs/heads/main")
}
