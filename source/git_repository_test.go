package source

import (
	"context"
	"strings"
	"testing"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/storage/memory"
	"github.com/sardine-ai/go-widget-config/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newInMemoryGit(t *testing.T) (*git.Repository, *GitRepository) {
	t.Helper()
	r, err := git.Init(memory.NewStorage(), memfs.New())
	require.NoError(t, err)
	repo, err := OpenGitRepository("git", r, "widgets")
	require.NoError(t, err)
	return r, repo
}

func countCommits(t *testing.T, r *git.Repository) int {
	t.Helper()
	iter, err := r.Log(&git.LogOptions{})
	require.NoError(t, err)
	count := 0
	require.NoError(t, iter.ForEach(func(*object.Commit) error {
		count++
		return nil
	}))
	return count
}

func TestGitRepository(t *testing.T) {
	r, repo := newInMemoryGit(t)
	assert.Equal(t, "git", repo.GetName())
	testRepositoryContract(t, repo)
	// two writes and one delete; the second delete has nothing to commit
	assert.Equal(t, 3, countCommits(t, r))
}

func TestGitRepositorySkipsEmptyCommits(t *testing.T) {
	r, repo := newInMemoryGit(t)
	ctx := context.Background()

	require.NoError(t, repo.Write(ctx, model.AppInfo, `{"uid":"1"}`))
	require.NoError(t, repo.Write(ctx, model.AppInfo, `{"uid":"1"}`))
	assert.Equal(t, 1, countCommits(t, r))

	head, err := r.Head()
	require.NoError(t, err)
	commit, err := r.CommitObject(head.Hash())
	require.NoError(t, err)
	assert.Equal(t, "Update common_configuration", strings.TrimSpace(commit.Message))

	file, err := commit.File("widgets/common_configuration.json")
	require.NoError(t, err)
	contents, err := file.Contents()
	require.NoError(t, err)
	assert.Equal(t, `{"uid":"1"}`, contents)
}

func TestGitRepositoryRefreshWithoutRemote(t *testing.T) {
	_, repo := newInMemoryGit(t)
	assert.NoError(t, repo.Refresh(context.Background()))
}

func TestGitRepositoryRequiresRemoteToClone(t *testing.T) {
	repo := &GitRepository{Name: "git"}
	_, err := repo.Read(context.Background(), model.SceneList)
	assert.Error(t, err)
}
