package hook

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pluginsite/registry/common/logger"
	"github.com/pluginsite/registry/common/models"
	"github.com/pluginsite/registry/common/scm"
)

// in-memory stores

type fakeOwners struct {
	mu     sync.Mutex
	owners map[string]string
	meta   map[string]models.RepoMeta
}

func newFakeOwners() *fakeOwners {
	return &fakeOwners{owners: make(map[string]string), meta: make(map[string]models.RepoMeta)}
}

func (f *fakeOwners) GetOrSetOwner(_ context.Context, plugin, owner, _ string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if existing, ok := f.owners[plugin]; ok {
		return existing, nil
	}
	f.owners[plugin] = owner
	return owner, nil
}

func (f *fakeOwners) UpdateRepoMeta(_ context.Context, repoID string, meta models.RepoMeta) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.meta[repoID] = meta
	return nil
}

type fakeLedger struct {
	mu   sync.Mutex
	tags map[string]bool
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{tags: make(map[string]bool)}
}

func (f *fakeLedger) key(repoID, tag string) string { return repoID + "#" + tag }

func (f *fakeLedger) Known(_ context.Context, repoID string) (map[string]bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	known := make(map[string]bool)
	prefix := repoID + "#"
	for key := range f.tags {
		if len(key) > len(prefix) && key[:len(prefix)] == prefix {
			known[key[len(prefix):]] = true
		}
	}
	return known, nil
}

func (f *fakeLedger) Add(_ context.Context, repoID, tag string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tags[f.key(repoID, tag)] = true
	return nil
}

func (f *fakeLedger) has(repoID, tag string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.tags[f.key(repoID, tag)]
}

type appended struct {
	action string
	data   models.ReleaseData
}

type fakeActions struct {
	mu      sync.Mutex
	entries []appended
	err     error
}

func (f *fakeActions) Append(_ context.Context, action string, data any) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return 0, f.err
	}
	f.entries = append(f.entries, appended{action: action, data: data.(models.ReleaseData)})
	return int64(len(f.entries)), nil
}

func (f *fakeActions) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.entries)
}

type fakeFailures struct {
	mu     sync.Mutex
	logged [][]string
}

func (f *fakeFailures) Log(_ context.Context, method string, args ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logged = append(f.logged, append([]string{method}, args...))
	return nil
}

func (f *fakeFailures) methods() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, entry := range f.logged {
		out = append(out, entry[0])
	}
	return out
}

// fake hosting provider

type fakeHost struct {
	tags    []string
	files   map[string]map[string]string // tag -> file -> content
	listErr error
}

func (h *fakeHost) ListTags(context.Context) ([]string, error) {
	if h.listErr != nil {
		return nil, h.listErr
	}
	return h.tags, nil
}

func (h *fakeHost) ManifestFiles(_ context.Context, tag string) ([]string, error) {
	var files []string
	for file := range h.files[tag] {
		files = append(files, file)
	}
	sort.Strings(files)
	return files, nil
}

func (h *fakeHost) FileAt(_ context.Context, tag, path string) (string, bool, error) {
	content, ok := h.files[tag][path]
	return content, ok, nil
}

func (h *fakeHost) ReleaseDate(context.Context, string) (time.Time, error) {
	return time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC), nil
}

func (h *fakeHost) SiteURL() string               { return "https://example.com/jo/plugin" }
func (h *fakeHost) DownloadURL(tag string) string { return "https://example.com/jo/plugin/" + tag }

type recordingNotifier struct {
	mu         sync.Mutex
	missing    int
	invalid    int
	otherOwner int
	notFound   int
	success    int
}

func (n *recordingNotifier) MissingManifest(string, string)                   { n.bump(&n.missing) }
func (n *recordingNotifier) InvalidJSON(string, string, string)               { n.bump(&n.invalid) }
func (n *recordingNotifier) InvalidManifest(string, string, string, []string) { n.bump(&n.invalid) }
func (n *recordingNotifier) OtherOwner(string, string, string, string)        { n.bump(&n.otherOwner) }
func (n *recordingNotifier) RepoNotFound(string)                              { n.bump(&n.notFound) }
func (n *recordingNotifier) Success(string, string, string)                   { n.bump(&n.success) }

func (n *recordingNotifier) bump(counter *int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	*counter++
}

// helpers

func manifestJSON(name, version string) string {
	return fmt.Sprintf(`{
		"name": %q,
		"version": %q,
		"title": "Test Plugin",
		"author": {"name": "Jo Doe"},
		"licenses": [{"url": "https://example.com/mit"}],
		"dependencies": {}
	}`, name, version)
}

type env struct {
	owners   *fakeOwners
	ledger   *fakeLedger
	actions  *fakeActions
	failures *fakeFailures
	notify   *recordingNotifier
	pipeline *Pipeline
}

func newEnv(t *testing.T) *env {
	t.Helper()
	e := &env{
		owners:   newFakeOwners(),
		ledger:   newFakeLedger(),
		actions:  &fakeActions{},
		failures: &fakeFailures{},
		notify:   &recordingNotifier{},
	}
	e.pipeline = NewPipeline(e.owners, e.ledger, e.actions, e.failures, logger.New("error", "text"))
	return e
}

func (e *env) repo(host *fakeHost) *scm.Repo {
	return scm.NewRepo("github", "jo", "plugin", host, nil, e.notify, logger.New("error", "text"))
}

func releaseHost(tags ...string) *fakeHost {
	h := &fakeHost{tags: tags, files: make(map[string]map[string]string)}
	for _, tag := range tags {
		version := tag
		if version[0] == 'v' {
			version = version[1:]
		}
		h.files[tag] = map[string]string{
			"plugin.plugin.json": manifestJSON("plugin", version),
		}
	}
	return h
}

// tests

func TestProcessVersionsIngestsNewTags(t *testing.T) {
	e := newEnv(t)
	host := releaseHost("v1.0.0", "v2.0.0")
	host.tags = append(host.tags, "not-a-version")
	repo := e.repo(host)

	require.NoError(t, e.pipeline.ProcessVersions(context.Background(), repo))

	assert.Equal(t, 2, e.actions.count())
	assert.True(t, e.ledger.has(repo.ID(), "v1.0.0"))
	assert.True(t, e.ledger.has(repo.ID(), "v2.0.0"))
	assert.False(t, e.ledger.has(repo.ID(), "not-a-version"))
	assert.Equal(t, 2, e.notify.success)
	assert.Equal(t, "github/jo", e.owners.owners["plugin"])
}

func TestProcessedTagsAreSkipped(t *testing.T) {
	e := newEnv(t)
	host := releaseHost("v1.0.0", "v2.0.0")
	repo := e.repo(host)
	require.NoError(t, e.ledger.Add(context.Background(), repo.ID(), "v1.0.0"))

	require.NoError(t, e.pipeline.ProcessVersions(context.Background(), repo))
	assert.Equal(t, 1, e.actions.count())

	// a second run finds nothing new
	require.NoError(t, e.pipeline.ProcessVersions(context.Background(), repo))
	assert.Equal(t, 1, e.actions.count())
}

func TestInvalidManifestRecordsTagWithoutRelease(t *testing.T) {
	e := newEnv(t)
	host := &fakeHost{
		tags: []string{"v1.0.0"},
		files: map[string]map[string]string{
			"v1.0.0": {"plugin.plugin.json": manifestJSON("plugin", "9.9.9")},
		},
	}
	repo := e.repo(host)

	require.NoError(t, e.pipeline.ProcessVersions(context.Background(), repo))

	assert.Equal(t, 0, e.actions.count())
	assert.True(t, e.ledger.has(repo.ID(), "v1.0.0"))
	assert.Equal(t, 1, e.notify.invalid)
}

func TestMissingManifestRecordsTag(t *testing.T) {
	e := newEnv(t)
	host := &fakeHost{
		tags:  []string{"v1.0.0"},
		files: map[string]map[string]string{},
	}
	repo := e.repo(host)

	require.NoError(t, e.pipeline.ProcessVersions(context.Background(), repo))

	assert.Equal(t, 0, e.actions.count())
	assert.True(t, e.ledger.has(repo.ID(), "v1.0.0"))
	assert.Equal(t, 1, e.notify.missing)
}

func TestOwnershipIsFirstComeFirstServed(t *testing.T) {
	e := newEnv(t)
	e.owners.owners["plugin"] = "github/original"

	host := releaseHost("v1.0.0")
	repo := e.repo(host)

	require.NoError(t, e.pipeline.ProcessVersions(context.Background(), repo))

	assert.Equal(t, 0, e.actions.count())
	assert.True(t, e.ledger.has(repo.ID(), "v1.0.0"))
	assert.Equal(t, 1, e.notify.otherOwner)
	// the owner never changes
	assert.Equal(t, "github/original", e.owners.owners["plugin"])
}

func TestOnlyNewestTagsProcessedInOneRun(t *testing.T) {
	e := newEnv(t)
	var tags []string
	for i := 1; i <= 15; i++ {
		tags = append(tags, fmt.Sprintf("v0.0.%d", i))
	}
	host := releaseHost(tags...)
	repo := e.repo(host)

	require.NoError(t, e.pipeline.ProcessVersions(context.Background(), repo))

	assert.Equal(t, 10, e.actions.count())
	assert.False(t, e.ledger.has(repo.ID(), "v0.0.5"))
	assert.True(t, e.ledger.has(repo.ID(), "v0.0.6"))
	assert.True(t, e.ledger.has(repo.ID(), "v0.0.15"))
}

func TestReleaseWriteFailureQueuesRetryAndFailsBatch(t *testing.T) {
	e := newEnv(t)
	e.actions.err = errors.New("store down")

	host := releaseHost("v1.0.0")
	repo := e.repo(host)

	err := e.pipeline.ProcessVersions(context.Background(), repo)
	require.Error(t, err)
	assert.ErrorContains(t, err, "store down")

	assert.False(t, e.ledger.has(repo.ID(), "v1.0.0"))
	require.NotEmpty(t, e.failures.logged)
	assert.Equal(t,
		[]string{"processRelease", repo.ID(), "v1.0.0", "plugin.plugin.json"},
		e.failures.logged[0])
}

func TestAllReleasesAttemptedBeforeBatchFails(t *testing.T) {
	e := newEnv(t)
	host := releaseHost("v1.0.0", "v2.0.0", "v3.0.0")
	e.actions.err = errors.New("store down")
	repo := e.repo(host)

	err := e.pipeline.ProcessVersions(context.Background(), repo)
	require.Error(t, err)

	// every tag was attempted and queued, none silently skipped
	assert.Len(t, e.failures.logged, 3)
	for _, entry := range e.failures.logged {
		assert.Equal(t, "processRelease", entry[0])
	}
}

func TestProcessHookQueuesVersionRetryOnListFailure(t *testing.T) {
	e := newEnv(t)
	host := &fakeHost{listErr: errors.New("network down")}
	repo := e.repo(host)
	repo.Watchers, repo.Forks = 7, 3

	err := e.pipeline.ProcessHook(context.Background(), repo)
	assert.Error(t, err)

	assert.Contains(t, e.failures.methods(), "processVersions")
	// meta processing still ran
	assert.Equal(t, models.RepoMeta{Watchers: 7, Forks: 3}, e.owners.meta[repo.ID()])
}

func TestProcessMeta(t *testing.T) {
	e := newEnv(t)
	repo := e.repo(releaseHost())
	repo.Watchers, repo.Forks = 42, 9

	require.NoError(t, e.pipeline.ProcessMeta(context.Background(), repo))
	assert.Equal(t, models.RepoMeta{Watchers: 42, Forks: 9}, e.owners.meta[repo.ID()])
}
