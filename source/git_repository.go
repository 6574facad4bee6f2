package source

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path"
	"sync"
	"time"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/transport/http"
	"github.com/go-git/go-git/v5/storage/memory"
	"github.com/sardine-ai/go-widget-config/model"
	"github.com/sirupsen/logrus"
)

const commitAuthor = "widget-config"

// GitRepository is a struct that implements the Repository interface for
// configuration blobs kept as files in a Git repository. The repository is
// cloned into memory; every write becomes a commit, which is pushed back to
// the remote when Push is set.
type GitRepository struct {
	sync.RWMutex                   // RWMutex to synchronize access to the worktree
	Name          string           // Name of the configuration source
	URL           *url.URL         // Remote URL, nil for a repository without remote
	Path          string           // Directory inside the repository holding the channel files
	Branch        string           // Branch to use when cloning the Git repository
	Auth          *http.BasicAuth  // BasicAuth to use when talking to the remote
	Push          bool             // Push commits to the remote
	gitRepository *git.Repository  // Go-Git repository instance for the in-memory clone
	fs            billy.Filesystem // Worktree filesystem
}

// OpenGitRepository wraps an already opened repository, e.g. one created
// with git.Init. The repository must have a worktree.
func OpenGitRepository(name string, repository *git.Repository, dir string) (*GitRepository, error) {
	w, err := repository.Worktree()
	if err != nil {
		return nil, err
	}
	return &GitRepository{Name: name, Path: dir, gitRepository: repository, fs: w.Filesystem}, nil
}

// GetName returns the name of the configuration source.
func (g *GitRepository) GetName() string {
	return g.Name
}

func (g *GitRepository) channelPath(channel model.Channel) string {
	return path.Join(g.Path, objectName("", channel))
}

// clone must be called with the write lock held.
func (g *GitRepository) clone(ctx context.Context) error {
	if g.gitRepository != nil {
		return nil
	}
	if g.URL == nil {
		return errors.New("git repository has no remote URL")
	}

	fs := memfs.New()
	logrus.Debugf("Cloning %s into memory", g.URL.Redacted())
	options := &git.CloneOptions{
		URL:  g.URL.String(),
		Auth: g.Auth,
	}
	if g.Branch != "" {
		options.ReferenceName = plumbing.NewBranchReferenceName(g.Branch)
		options.SingleBranch = true
	}
	r, err := git.CloneContext(ctx, memory.NewStorage(), fs, options)
	if err != nil {
		return fmt.Errorf("clone %s: %w", g.URL.Redacted(), err)
	}
	logrus.Debug("Cloned")
	g.gitRepository = r
	g.fs = fs
	return nil
}

// Refresh pulls the latest commits from the remote, cloning the repository
// on first use.
func (g *GitRepository) Refresh(ctx context.Context) error {
	g.Lock()
	defer g.Unlock()

	if g.gitRepository == nil {
		return g.clone(ctx)
	}
	if g.URL == nil {
		return nil
	}

	w, err := g.gitRepository.Worktree()
	if err != nil {
		return err
	}
	logrus.Debug("Pulling")
	pullOptions := &git.PullOptions{Auth: g.Auth}
	if g.Branch != "" {
		pullOptions.ReferenceName = plumbing.NewBranchReferenceName(g.Branch)
		pullOptions.SingleBranch = true
	}
	err = w.PullContext(ctx, pullOptions)
	if errors.Is(err, git.NoErrAlreadyUpToDate) {
		logrus.Debug("Already up to date")
		return nil
	}
	if err != nil {
		return err
	}
	logrus.Debug("Pulled")
	return nil
}

func (g *GitRepository) Read(ctx context.Context, channel model.Channel) (string, error) {
	g.Lock()
	err := g.clone(ctx)
	g.Unlock()
	if err != nil {
		return "", err
	}

	g.RLock()
	defer g.RUnlock()
	data, err := util.ReadFile(g.fs, g.channelPath(channel))
	if errors.Is(err, os.ErrNotExist) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (g *GitRepository) Write(ctx context.Context, channel model.Channel, blob string) error {
	g.Lock()
	defer g.Unlock()
	if err := g.clone(ctx); err != nil {
		return err
	}

	name := g.channelPath(channel)
	if g.Path != "" {
		if err := g.fs.MkdirAll(g.Path, 0o755); err != nil {
			return err
		}
	}
	if err := util.WriteFile(g.fs, name, []byte(blob), 0o644); err != nil {
		return err
	}
	w, err := g.gitRepository.Worktree()
	if err != nil {
		return err
	}
	if _, err := w.Add(name); err != nil {
		return err
	}
	return g.commit(ctx, w, fmt.Sprintf("Update %s", channel.Key()))
}

func (g *GitRepository) Delete(ctx context.Context, channel model.Channel) error {
	g.Lock()
	defer g.Unlock()
	if err := g.clone(ctx); err != nil {
		return err
	}

	name := g.channelPath(channel)
	if _, err := g.fs.Stat(name); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	w, err := g.gitRepository.Worktree()
	if err != nil {
		return err
	}
	if _, err := w.Remove(name); err != nil {
		return err
	}
	return g.commit(ctx, w, fmt.Sprintf("Clear %s", channel.Key()))
}

// commit records staged changes, skipping empty commits, and pushes them
// when configured to.
func (g *GitRepository) commit(ctx context.Context, w *git.Worktree, message string) error {
	status, err := w.Status()
	if err != nil {
		return err
	}
	if status.IsClean() {
		return nil
	}
	hash, err := w.Commit(message, &git.CommitOptions{
		Author: &object.Signature{Name: commitAuthor, Email: commitAuthor + "@localhost", When: time.Now()},
	})
	if err != nil {
		return err
	}
	logrus.WithField("commit", hash.String()).Debug(message)

	if !g.Push || g.URL == nil {
		return nil
	}
	err = g.gitRepository.PushContext(ctx, &git.PushOptions{Auth: g.Auth})
	if err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
		return fmt.Errorf("push: %w", err)
	}
	return nil
}
