package handlers

import (
	"context"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pluginsite/registry/cmd/hookserver/container"
	"github.com/pluginsite/registry/common/scm"
)

const (
	// maxHookBody bounds webhook payload reads. GitHub push payloads are a
	// few hundred KB at most.
	maxHookBody = 5 << 20

	// inflightTTL is the lifetime of the per-repository dedup key. It only
	// matters when a process dies without deleting its key.
	inflightTTL = 5 * time.Minute

	// processTimeout bounds one webhook's background processing, clone
	// included.
	processTimeout = 10 * time.Minute
)

// HookHandler handles webhook deliveries from hosting providers
type HookHandler struct {
	ctn *container.Container

	// mu orders the draining check against inflight.Add so no delivery can
	// slip in between Drain latching and Drain waiting.
	mu       sync.Mutex
	inflight sync.WaitGroup
	draining bool
}

// NewHookHandler creates a new hook handler
func NewHookHandler(ctn *container.Container) *HookHandler {
	return &HookHandler{ctn: ctn}
}

// Receive accepts a webhook delivery
// POST /hook
//
// A parseable payload is acknowledged with 202 before any repository work
// happens; processing continues in the background and its outcome never
// reaches the webhook sender.
func (h *HookHandler) Receive(c echo.Context) error {
	body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxHookBody))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "unreadable request body",
		})
	}

	repo := h.ctn.Repos.RepoFromHook(body)
	if repo == nil {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "unrecognized hook payload",
		})
	}

	h.mu.Lock()
	if h.draining {
		h.mu.Unlock()
		return c.JSON(http.StatusServiceUnavailable, map[string]string{
			"error": "shutting down",
		})
	}
	h.inflight.Add(1)
	h.mu.Unlock()

	go h.process(repo)

	return c.JSON(http.StatusAccepted, map[string]string{
		"status": "accepted",
		"repo":   repo.ID(),
	})
}

// process runs the ingestion pipeline for one delivery. When redis is
// available, concurrent deliveries for the same repository collapse into
// the first one; the tags the skipped delivery announced are picked up by
// the one already running or by the next delivery.
func (h *HookHandler) process(repo *scm.Repo) {
	defer h.inflight.Done()

	log := h.ctn.Components.Logger
	ctx, cancel := context.WithTimeout(context.Background(), processTimeout)
	defer cancel()

	if r := h.ctn.Components.Redis; r != nil {
		key := "hook:inflight:" + repo.ID()
		acquired, err := r.SetNX(ctx, key, "1", inflightTTL)
		if err == nil && !acquired {
			log.Info("hook already in flight, skipping", "repo", repo.ID())
			return
		}
		if err == nil {
			defer func() {
				dctx, dcancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer dcancel()
				if derr := r.Delete(dctx, key); derr != nil {
					log.Warn("failed to release in-flight key", "repo", repo.ID(), "error", derr)
				}
			}()
		}
	}

	log.Info("processing hook", "repo", repo.ID())
	if err := h.ctn.Pipeline.ProcessHook(ctx, repo); err != nil {
		log.Error("hook processing finished with errors", "repo", repo.ID(), "error", err)
		return
	}
	log.Info("hook processed", "repo", repo.ID())
}

// Drain stops accepting new deliveries and waits for in-flight processing,
// up to the context deadline.
func (h *HookHandler) Drain(ctx context.Context) {
	h.mu.Lock()
	h.draining = true
	h.mu.Unlock()

	done := make(chan struct{})
	go func() {
		h.inflight.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		h.ctn.Components.Logger.Warn("shutdown before all hooks finished")
	}
}
