package scm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/pluginsite/registry/common/config"
	"github.com/pluginsite/registry/common/logger"
	"github.com/pluginsite/registry/common/manifest"
	"github.com/pluginsite/registry/common/policy"
)

var reGithubURL = regexp.MustCompile(`^https?://github\.com/([^/]+)/([^/]+)(/.*)?$`)

// githubPayload is the subset of the GitHub push webhook the registry uses
type githubPayload struct {
	Repository struct {
		URL      string `json:"url"`
		Watchers int    `json:"watchers"`
		Forks    int    `json:"forks"`
	} `json:"repository"`
}

// GithubFactory builds repositories hosted on github.com
type GithubFactory struct {
	cfg    *config.Config
	policy *policy.Engine
	notify Notifier
	log    *logger.Logger
}

// NewGithubFactory creates the GitHub provider factory
func NewGithubFactory(cfg *config.Config, pol *policy.Engine, notify Notifier, log *logger.Logger) *GithubFactory {
	return &GithubFactory{cfg: cfg, policy: pol, notify: notify, log: log}
}

// Service returns the provider name
func (f *GithubFactory) Service() string { return "github" }

// FromPath builds a repo from user and repository names
func (f *GithubFactory) FromPath(userName, repoName string) *Repo {
	host := &githubHost{
		userName: userName,
		repoName: repoName,
		dir:      filepath.Join(f.cfg.SCM.RepoDir, "github", userName, repoName),
	}
	return NewRepo("github", userName, repoName, host, f.policy, f.notify, f.log)
}

// FromHook parses a GitHub webhook body, which arrives either as raw JSON
// or form-encoded with the JSON under a "payload" field.
func (f *GithubFactory) FromHook(body []byte) (*Repo, bool) {
	payload, ok := parseGithubPayload(body)
	if !ok {
		return nil, false
	}

	matches := reGithubURL.FindStringSubmatch(payload.Repository.URL)
	if matches == nil {
		return nil, false
	}

	repo := f.FromPath(matches[1], matches[2])
	repo.Watchers = payload.Repository.Watchers
	repo.Forks = payload.Repository.Forks
	return repo, true
}

func parseGithubPayload(body []byte) (*githubPayload, bool) {
	var payload githubPayload
	if err := json.Unmarshal(body, &payload); err == nil && payload.Repository.URL != "" {
		return &payload, true
	}

	form, err := url.ParseQuery(string(body))
	if err != nil {
		return nil, false
	}
	raw := form.Get("payload")
	if raw == "" {
		return nil, false
	}
	if err := json.Unmarshal([]byte(raw), &payload); err != nil || payload.Repository.URL == "" {
		return nil, false
	}
	return &payload, true
}

// githubHost keeps a local clone under the configured repo dir and answers
// tag and file questions from it.
type githubHost struct {
	userName string
	repoName string
	dir      string
}

func (h *githubHost) SiteURL() string {
	return fmt.Sprintf("https://github.com/%s/%s", h.userName, h.repoName)
}

func (h *githubHost) DownloadURL(tag string) string {
	return h.SiteURL() + "/zipball/" + tag
}

func (h *githubHost) sourceURL() string {
	return h.SiteURL() + ".git"
}

// open returns the local clone, creating it on first use
func (h *githubHost) open(ctx context.Context) (*git.Repository, error) {
	repo, err := git.PlainOpen(h.dir)
	if err == nil {
		return repo, nil
	}
	if !errors.Is(err, git.ErrRepositoryNotExists) {
		return nil, fmt.Errorf("open %s: %w", h.dir, err)
	}

	if err := os.MkdirAll(filepath.Dir(h.dir), 0o755); err != nil {
		return nil, fmt.Errorf("create clone dir: %w", err)
	}

	repo, err = git.PlainCloneContext(ctx, h.dir, false, &git.CloneOptions{
		URL:  h.sourceURL(),
		Tags: git.AllTags,
	})
	if err != nil {
		return nil, fmt.Errorf("clone %s: %w", h.sourceURL(), err)
	}
	return repo, nil
}

// fetch opens the clone and updates it from the remote
func (h *githubHost) fetch(ctx context.Context) (*git.Repository, error) {
	repo, err := h.open(ctx)
	if err != nil {
		return nil, err
	}

	err = repo.FetchContext(ctx, &git.FetchOptions{
		Tags:  git.AllTags,
		Force: true,
	})
	if err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
		return nil, fmt.Errorf("fetch %s: %w", h.sourceURL(), err)
	}
	return repo, nil
}

func (h *githubHost) ListTags(ctx context.Context) ([]string, error) {
	repo, err := h.fetch(ctx)
	if err != nil {
		return nil, err
	}

	iter, err := repo.Tags()
	if err != nil {
		return nil, fmt.Errorf("iterate tags: %w", err)
	}

	var tags []string
	err = iter.ForEach(func(ref *plumbing.Reference) error {
		tags = append(tags, ref.Name().Short())
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("iterate tags: %w", err)
	}
	return tags, nil
}

func (h *githubHost) commitAt(ctx context.Context, tag string) (*object.Commit, error) {
	repo, err := h.open(ctx)
	if err != nil {
		return nil, err
	}

	hash, err := repo.ResolveRevision(plumbing.Revision(tag))
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", tag, err)
	}

	commit, err := repo.CommitObject(*hash)
	if err != nil {
		return nil, fmt.Errorf("load commit for %s: %w", tag, err)
	}
	return commit, nil
}

func (h *githubHost) ManifestFiles(ctx context.Context, tag string) ([]string, error) {
	commit, err := h.commitAt(ctx, tag)
	if err != nil {
		return nil, err
	}

	tree, err := commit.Tree()
	if err != nil {
		return nil, fmt.Errorf("load tree for %s: %w", tag, err)
	}

	// manifests live at the repository root only
	var files []string
	for _, entry := range tree.Entries {
		if entry.Mode.IsFile() && strings.HasSuffix(entry.Name, manifest.Suffix) {
			files = append(files, entry.Name)
		}
	}
	return files, nil
}

func (h *githubHost) FileAt(ctx context.Context, tag, path string) (string, bool, error) {
	commit, err := h.commitAt(ctx, tag)
	if err != nil {
		return "", false, err
	}

	file, err := commit.File(path)
	if errors.Is(err, object.ErrFileNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("read %s at %s: %w", path, tag, err)
	}

	content, err := file.Contents()
	if err != nil {
		return "", false, fmt.Errorf("read %s at %s: %w", path, tag, err)
	}
	return content, true, nil
}

func (h *githubHost) ReleaseDate(ctx context.Context, tag string) (time.Time, error) {
	commit, err := h.commitAt(ctx, tag)
	if err != nil {
		return time.Time{}, err
	}
	return commit.Committer.When, nil
}
