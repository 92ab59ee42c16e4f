package scm

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pluginsite/registry/common/config"
	"github.com/pluginsite/registry/common/logger"
)

func testFactory() *GithubFactory {
	cfg := &config.Config{}
	cfg.SCM.RepoDir = "/tmp/test-repos"
	return NewGithubFactory(cfg, nil, NewNotifier("", logger.New("error", "text")), logger.New("error", "text"))
}

const pushPayload = `{
	"repository": {
		"url": "https://github.com/jo/color-picker",
		"watchers": 12,
		"forks": 4
	}
}`

func TestFromHookRawJSON(t *testing.T) {
	repo, ok := testFactory().FromHook([]byte(pushPayload))
	require.True(t, ok)

	assert.Equal(t, "github/jo/color-picker", repo.ID())
	assert.Equal(t, "github/jo", repo.UserID())
	assert.Equal(t, 12, repo.Watchers)
	assert.Equal(t, 4, repo.Forks)
}

func TestFromHookFormEncoded(t *testing.T) {
	body := url.Values{"payload": {pushPayload}}.Encode()

	repo, ok := testFactory().FromHook([]byte(body))
	require.True(t, ok)
	assert.Equal(t, "github/jo/color-picker", repo.ID())
}

func TestFromHookRejectsGarbage(t *testing.T) {
	cases := [][]byte{
		nil,
		[]byte(""),
		[]byte("not json at all"),
		[]byte(`{"repository": {}}`),
		[]byte(`{"repository": {"url": "https://gitlab.com/jo/x"}}`),
		[]byte("payload=not-json"),
	}

	for _, body := range cases {
		_, ok := testFactory().FromHook(body)
		assert.False(t, ok, "payload %q should be rejected", body)
	}
}

func TestRegistryRepoFromHook(t *testing.T) {
	reg := NewRegistry()
	reg.Register(testFactory())

	repo := reg.RepoFromHook([]byte(pushPayload))
	require.NotNil(t, repo)
	assert.Equal(t, "github/jo/color-picker", repo.ID())

	assert.Nil(t, reg.RepoFromHook([]byte("garbage")))
}

func TestRegistryRepoByID(t *testing.T) {
	reg := NewRegistry()
	reg.Register(testFactory())

	repo, err := reg.RepoByID("github/jo/color-picker")
	require.NoError(t, err)
	assert.Equal(t, "jo", repo.UserName)
	assert.Equal(t, "color-picker", repo.RepoName)

	_, err = reg.RepoByID("bitkeeper/jo/color-picker")
	assert.Error(t, err)

	_, err = reg.RepoByID("github/missing-parts")
	assert.Error(t, err)
}

func TestGithubURLs(t *testing.T) {
	repo := testFactory().FromPath("jo", "color-picker")

	assert.Equal(t, "https://github.com/jo/color-picker", repo.SiteURL())
	assert.Equal(t, "https://github.com/jo/color-picker/zipball/v1.2.3", repo.DownloadURL("v1.2.3"))
}
