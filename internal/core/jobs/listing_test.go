package jobs

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codebay/backend/internal/domain"
)

func childNames(t *testing.T, payload domain.JSONB, key string) []string {
	t.Helper()
	children, ok := payload["Children"].([]domain.JSONB)
	require.True(t, ok)
	names := make([]string, 0, len(children))
	for _, c := range children {
		names = append(names, c[key].(string))
	}
	return names
}

func TestBranchListSortedWithCurrentFlag(t *testing.T) {
	fixture := newRepoFixture(t)
	tip := fixture.commitFile("a.txt", "a", "first")
	fixture.createBranch("feature", tip)

	op := &BranchListOperation{
		Engine:  fixture.engine,
		Path:    fixture.path,
		RelPath: "demo",
	}
	result, err := op.Execute(context.Background(), NewProgressSink(context.Background(), nil))
	require.NoError(t, err)

	assert.Equal(t, []string{"feature", "master"}, childNames(t, result.JsonData, "Name"))
	children := result.JsonData["Children"].([]domain.JSONB)
	assert.Equal(t, false, children[0]["Current"])
	assert.Equal(t, true, children[1]["Current"])
	assert.Equal(t, "/api/v1/repos/demo/branches/master", children[1]["Location"])
}

func TestBranchListFilter(t *testing.T) {
	fixture := newRepoFixture(t)
	tip := fixture.commitFile("a.txt", "a", "first")
	fixture.createBranch("feature", tip)
	fixture.createBranch("fix", tip)

	op := &BranchListOperation{
		Engine:  fixture.engine,
		Path:    fixture.path,
		RelPath: "demo",
		Filter:  "feat",
	}
	result, err := op.Execute(context.Background(), NewProgressSink(context.Background(), nil))
	require.NoError(t, err)
	assert.Equal(t, []string{"feature"}, childNames(t, result.JsonData, "Name"))
}

func TestBranchListNoMatchesYieldsEmptyArray(t *testing.T) {
	fixture := newRepoFixture(t)
	fixture.commitFile("a.txt", "a", "first")

	op := &BranchListOperation{
		Engine:  fixture.engine,
		Path:    fixture.path,
		RelPath: "demo",
		Filter:  "no-such-branch",
	}
	result, err := op.Execute(context.Background(), NewProgressSink(context.Background(), nil))
	require.NoError(t, err)

	children, ok := result.JsonData["Children"].([]domain.JSONB)
	require.True(t, ok)
	assert.NotNil(t, children)
	assert.Empty(t, children)
}

func TestTagListResolvesTargets(t *testing.T) {
	fixture := newRepoFixture(t)
	tip := fixture.commitFile("a.txt", "a", "first")
	fixture.createTag("v1.0", tip)

	op := &TagListOperation{
		Engine:  fixture.engine,
		Path:    fixture.path,
		RelPath: "demo",
	}
	result, err := op.Execute(context.Background(), NewProgressSink(context.Background(), nil))
	require.NoError(t, err)

	children := result.JsonData["Children"].([]domain.JSONB)
	require.Len(t, children, 1)
	assert.Equal(t, "v1.0", children[0]["Name"])
	assert.Equal(t, tip.String(), children[0]["CommitSha"])
	assert.Equal(t, false, children[0]["Annotated"])
}

func TestLogListsCommitsWithDecoration(t *testing.T) {
	fixture := newRepoFixture(t)
	fixture.commitFile("a.txt", "a", "first")
	tip := fixture.commitFile("b.txt", "b", "second")
	fixture.createTag("v1.0", tip)

	op := &LogOperation{
		Engine:  fixture.engine,
		Path:    fixture.path,
		RelPath: "demo",
		Ref:     "master",
	}
	result, err := op.Execute(context.Background(), NewProgressSink(context.Background(), nil))
	require.NoError(t, err)

	children := result.JsonData["Children"].([]domain.JSONB)
	require.Len(t, children, 2)
	assert.Equal(t, tip.String(), children[0]["Sha"])
	assert.Equal(t, []string{"master"}, children[0]["Branches"])
	assert.Equal(t, []string{"v1.0"}, children[0]["Tags"])
	assert.Nil(t, children[1]["Branches"])
}

func TestLogPagination(t *testing.T) {
	fixture := newRepoFixture(t)
	fixture.commitFile("a.txt", "a", "first")
	fixture.commitFile("b.txt", "b", "second")
	fixture.commitFile("c.txt", "c", "third")

	op := &LogOperation{
		Engine:  fixture.engine,
		Path:    fixture.path,
		RelPath: "demo",
		Ref:     "master",
		Page:    Page{Number: 1, Size: 2},
	}
	result, err := op.Execute(context.Background(), NewProgressSink(context.Background(), nil))
	require.NoError(t, err)

	children := result.JsonData["Children"].([]domain.JSONB)
	assert.Len(t, children, 2)
	assert.Equal(t, 3, result.JsonData["Total"])
	assert.Equal(t, "/api/v1/repos/demo/commits?page=2&pageSize=2", result.JsonData["NextLocation"])
	assert.Nil(t, result.JsonData["PreviousLocation"])

	op.Page = Page{Number: 2, Size: 2}
	result, err = op.Execute(context.Background(), NewProgressSink(context.Background(), nil))
	require.NoError(t, err)
	children = result.JsonData["Children"].([]domain.JSONB)
	assert.Len(t, children, 1)
	assert.Equal(t, "/api/v1/repos/demo/commits?page=1&pageSize=2", result.JsonData["PreviousLocation"])
	assert.Nil(t, result.JsonData["NextLocation"])
}

func TestLogPageBeyondEndIsEmpty(t *testing.T) {
	fixture := newRepoFixture(t)
	fixture.commitFile("a.txt", "a", "first")

	op := &LogOperation{
		Engine:  fixture.engine,
		Path:    fixture.path,
		RelPath: "demo",
		Ref:     "master",
		Page:    Page{Number: 5, Size: 10},
	}
	result, err := op.Execute(context.Background(), NewProgressSink(context.Background(), nil))
	require.NoError(t, err)
	assert.Empty(t, result.JsonData["Children"])
}

func TestLogMessageFilter(t *testing.T) {
	fixture := newRepoFixture(t)
	fixture.commitFile("a.txt", "a", "add feature gate")
	fixture.commitFile("b.txt", "b", "fix typo")

	op := &LogOperation{
		Engine:  fixture.engine,
		Path:    fixture.path,
		RelPath: "demo",
		Ref:     "master",
		Filters: LogFilters{Message: "feature"},
	}
	result, err := op.Execute(context.Background(), NewProgressSink(context.Background(), nil))
	require.NoError(t, err)
	children := result.JsonData["Children"].([]domain.JSONB)
	require.Len(t, children, 1)
	assert.Contains(t, children[0]["Message"], "feature gate")
}

func TestLogSinceFilterExcludesOlderCommits(t *testing.T) {
	fixture := newRepoFixture(t)
	fixture.commitFile("a.txt", "a", "first")

	future := time.Now().Add(time.Hour)
	op := &LogOperation{
		Engine:  fixture.engine,
		Path:    fixture.path,
		RelPath: "demo",
		Ref:     "master",
		Filters: LogFilters{Since: &future},
	}
	result, err := op.Execute(context.Background(), NewProgressSink(context.Background(), nil))
	require.NoError(t, err)
	assert.Empty(t, result.JsonData["Children"])
}

func TestLogMergeBaseVariant(t *testing.T) {
	fixture := newRepoFixture(t)
	base := fixture.commitFile("a.txt", "a", "base")
	fixture.createBranch("feature", base)
	fixture.checkout("feature")
	featureTip := fixture.commitFile("f.txt", "f", "feature work")
	fixture.checkout("master")
	fixture.commitFile("m.txt", "m", "mainline work")

	op := &LogOperation{
		Engine:  fixture.engine,
		Path:    fixture.path,
		RelPath: "demo",
		Ref:     "feature",
		BaseRef: "master",
	}
	result, err := op.Execute(context.Background(), NewProgressSink(context.Background(), nil))
	require.NoError(t, err)

	assert.Equal(t, 1, result.JsonData["AheadCount"])
	assert.Equal(t, 1, result.JsonData["BehindCount"])
	children := result.JsonData["Children"].([]domain.JSONB)
	require.Len(t, children, 1)
	assert.Equal(t, featureTip.String(), children[0]["Sha"])
}

func TestLogUnknownRefClassifiesNotFound(t *testing.T) {
	fixture := newRepoFixture(t)
	fixture.commitFile("a.txt", "a", "first")

	op := &LogOperation{
		Engine:  fixture.engine,
		Path:    fixture.path,
		RelPath: "demo",
		Ref:     "no-such-branch",
	}
	_, classified := RunSync(context.Background(), op, nil)
	require.NotNil(t, classified)
	assert.Equal(t, 404, classified.HttpCode)
}

func TestStatusReportsWorktreeBuckets(t *testing.T) {
	fixture := newRepoFixture(t)
	fixture.commitFile("tracked.txt", "v1", "first")

	// One modification, one untracked file.
	fixture.writeFile("tracked.txt", "v2")
	fixture.writeFile("new.txt", "n")

	op := &StatusOperation{Engine: fixture.engine, Path: fixture.path, RelPath: "demo"}
	result, err := op.Execute(context.Background(), NewProgressSink(context.Background(), nil))
	require.NoError(t, err)

	assert.Equal(t, false, result.JsonData["Clean"])
	assert.Equal(t, []string{"tracked.txt"}, result.JsonData["Modified"])
	assert.Equal(t, []string{"new.txt"}, result.JsonData["Untracked"])
	assert.Empty(t, result.JsonData["Conflicting"])
}

func TestStatusCleanAfterCommit(t *testing.T) {
	fixture := newRepoFixture(t)
	fixture.commitFile("a.txt", "a", "first")

	op := &StatusOperation{Engine: fixture.engine, Path: fixture.path, RelPath: "demo"}
	result, err := op.Execute(context.Background(), NewProgressSink(context.Background(), nil))
	require.NoError(t, err)
	assert.Equal(t, true, result.JsonData["Clean"])
}

func TestRemoteDetails(t *testing.T) {
	source := newRepoFixture(t)
	source.commitFile("a.txt", "a", "first")
	clone := cloneFrom(t, source)

	op := &RemoteDetailsOperation{
		Engine:  source.engine,
		Path:    clone,
		RelPath: "clone",
		Remote:  "origin",
	}
	result, err := op.Execute(context.Background(), NewProgressSink(context.Background(), nil))
	require.NoError(t, err)

	assert.Equal(t, "origin", result.JsonData["Name"])
	urls := result.JsonData["Urls"].([]string)
	require.Len(t, urls, 1)
	assert.Equal(t, source.cloneURL(), urls[0])

	branches := result.JsonData["Branches"].([]domain.JSONB)
	require.NotEmpty(t, branches)
	assert.Equal(t, "master", branches[0]["Name"])
}

func TestRemoteDetailsUnknownRemote(t *testing.T) {
	fixture := newRepoFixture(t)
	fixture.commitFile("a.txt", "a", "first")

	op := &RemoteDetailsOperation{
		Engine:  fixture.engine,
		Path:    fixture.path,
		RelPath: "demo",
		Remote:  "upstream",
	}
	_, classified := RunSync(context.Background(), op, nil)
	require.NotNil(t, classified)
	assert.Equal(t, 404, classified.HttpCode)
}

func TestPageBounds(t *testing.T) {
	p := Page{Number: 2, Size: 10}
	first, last := p.bounds(25)
	assert.Equal(t, 10, first)
	assert.Equal(t, 20, last)

	first, last = Page{Number: 9, Size: 10}.bounds(25)
	assert.Equal(t, 25, first)
	assert.Equal(t, 25, last)

	first, last = Page{}.bounds(25)
	assert.Equal(t, 0, first)
	assert.Equal(t, 25, last)
}
