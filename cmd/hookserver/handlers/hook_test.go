package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pluginsite/registry/cmd/hookserver/container"
	"github.com/pluginsite/registry/common/config"
	"github.com/pluginsite/registry/common/logger"
	"github.com/pluginsite/registry/common/scm"
)

func testContainer() *container.Container {
	cfg := &config.Config{}
	cfg.SCM.RepoDir = "/tmp/test-repos"
	log := logger.New("error", "text")

	reg := scm.NewRegistry()
	reg.Register(scm.NewGithubFactory(cfg, nil, scm.NewNotifier("", log), log))

	return &container.Container{Repos: reg}
}

func postHook(h *HookHandler, body string) *httptest.ResponseRecorder {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/hook", strings.NewReader(body))
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	_ = h.Receive(c)
	return rec
}

func TestUnrecognizedPayloadIsRejected(t *testing.T) {
	h := NewHookHandler(testContainer())

	rec := postHook(h, "this is not a hook payload")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "unrecognized hook payload")
}

func TestEmptyBodyIsRejected(t *testing.T) {
	h := NewHookHandler(testContainer())

	rec := postHook(h, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDrainingRefusesNewDeliveries(t *testing.T) {
	h := NewHookHandler(testContainer())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	h.Drain(ctx)

	rec := postHook(h, `{"repository": {"url": "https://github.com/jo/plugin"}}`)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestDrainWithNothingInFlightReturnsImmediately(t *testing.T) {
	h := NewHookHandler(testContainer())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	start := time.Now()
	h.Drain(ctx)
	require.Less(t, time.Since(start), time.Second)
}
