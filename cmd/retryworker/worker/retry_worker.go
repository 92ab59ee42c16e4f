package worker

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/pluginsite/registry/common/config"
	"github.com/pluginsite/registry/common/hook"
	"github.com/pluginsite/registry/common/logger"
	"github.com/pluginsite/registry/common/models"
	"github.com/pluginsite/registry/common/repository"
	"github.com/pluginsite/registry/common/scm"
)

// ErrUnknownMethod means the retry queue holds an entry this build cannot
// dispatch. That is a deployment bug, not a transient failure, so the
// worker stops instead of spinning on it.
var ErrUnknownMethod = errors.New("unknown retry method")

// RetryWorker drains the retry queue one entry at a time, oldest first.
// An entry becomes due after an exponential backoff derived from its try
// count; until then the worker just sleeps, since nothing behind the head
// can be older.
type RetryWorker struct {
	retries  *repository.RetryRepository
	ledger   *repository.TagRepository
	repos    *scm.Registry
	pipeline *hook.Pipeline
	cfg      config.RetryConfig
	logger   *logger.Logger
	name     string
}

// NewRetryWorker creates a new retry worker
func NewRetryWorker(
	retries *repository.RetryRepository,
	ledger *repository.TagRepository,
	repos *scm.Registry,
	pipeline *hook.Pipeline,
	cfg config.RetryConfig,
	log *logger.Logger,
) *RetryWorker {
	return &RetryWorker{
		retries:  retries,
		ledger:   ledger,
		repos:    repos,
		pipeline: pipeline,
		cfg:      cfg,
		logger:   log,
		name:     fmt.Sprintf("retry_worker_%s", uuid.New().String()[:8]),
	}
}

// Start runs the poll loop until the context is cancelled
func (w *RetryWorker) Start(ctx context.Context) error {
	w.logger.Info("starting retry worker",
		"consumer_name", w.name,
		"poll_interval", w.cfg.PollInterval)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("retry worker stopping")
			return nil
		default:
			if err := w.processNext(ctx); err != nil {
				return err
			}
		}
	}
}

// processNext handles at most one queue entry, sleeping when the queue is
// empty or its head is not due yet. Only an unknown method is returned as
// an error; everything else is either resolved or re-queued.
func (w *RetryWorker) processNext(ctx context.Context) error {
	entry, err := w.retries.OldestFailure(ctx)
	if err != nil {
		w.logger.Error("failed to read retry queue", "error", err)
		w.sleep(ctx)
		return nil
	}

	if entry == nil {
		w.sleep(ctx)
		return nil
	}

	if due := entry.Timestamp.Add(w.backoff(entry.Tries)); time.Now().Before(due) {
		w.sleep(ctx)
		return nil
	}

	w.logger.Info("retrying",
		"method", entry.Method, "args", entry.Args, "tries", entry.Tries)

	err = w.dispatch(ctx, entry)
	if errors.Is(err, ErrUnknownMethod) {
		w.logger.Error("unknown method in retry queue",
			"method", entry.Method, "signature", entry.Signature)
		return err
	}
	if err != nil {
		w.logger.Warn("retry failed",
			"method", entry.Method, "args", entry.Args, "tries", entry.Tries, "error", err)
		// bumps the try counter and resets the timestamp of the same row
		if err := w.retries.Log(ctx, entry.Method, entry.Args...); err != nil {
			w.logger.Error("failed to re-queue entry", "method", entry.Method, "error", err)
		}
		return nil
	}

	if err := w.retries.Remove(ctx, entry.Signature); err != nil {
		w.logger.Error("failed to remove resolved entry", "error", err)
	}
	return nil
}

// dispatch runs one queued operation against the pipeline
func (w *RetryWorker) dispatch(ctx context.Context, entry *models.Failure) error {
	switch entry.Method {
	case "processVersions":
		if len(entry.Args) != 1 {
			return fmt.Errorf("%w: processVersions wants 1 arg, got %d", ErrUnknownMethod, len(entry.Args))
		}
		repo, err := w.repos.RepoByID(entry.Args[0])
		if err != nil {
			return err
		}
		return w.pipeline.ProcessVersions(ctx, repo)

	case "processRelease":
		if len(entry.Args) != 3 {
			return fmt.Errorf("%w: processRelease wants 3 args, got %d", ErrUnknownMethod, len(entry.Args))
		}
		return w.retryRelease(ctx, entry.Args[0], entry.Args[1], entry.Args[2])

	case "processMeta":
		if len(entry.Args) != 3 {
			return fmt.Errorf("%w: processMeta wants 3 args, got %d", ErrUnknownMethod, len(entry.Args))
		}
		repo, err := w.repos.RepoByID(entry.Args[0])
		if err != nil {
			return err
		}
		repo.Watchers, _ = strconv.Atoi(entry.Args[1])
		repo.Forks, _ = strconv.Atoi(entry.Args[2])
		return w.pipeline.ProcessMeta(ctx, repo)

	default:
		return fmt.Errorf("%w: %q", ErrUnknownMethod, entry.Method)
	}
}

// retryRelease re-fetches the release and re-runs the admission for one
// manifest file. A tag or file that has since become invalid counts as
// resolved; the tag is recorded and the entry dropped.
func (w *RetryWorker) retryRelease(ctx context.Context, repoID, tag, file string) error {
	repo, err := w.repos.RepoByID(repoID)
	if err != nil {
		return err
	}

	release, err := repo.Release(ctx, tag)
	if err != nil {
		return err
	}
	if release == nil {
		return w.ledger.Add(ctx, repoID, tag)
	}

	m, ok := release.Manifests[file]
	if !ok {
		w.logger.Info("manifest gone at retry, dropping",
			"repo", repoID, "tag", tag, "file", file)
		return w.ledger.Add(ctx, repoID, tag)
	}

	return w.pipeline.ProcessRelease(ctx, repo, tag, file, m)
}

// backoff returns how long an entry waits after its last failure:
// 2^tries - 1 seconds, capped at the configured maximum.
func (w *RetryWorker) backoff(tries int) time.Duration {
	if tries < 0 {
		tries = 0
	}
	// past this the uncapped value always exceeds any sane maximum
	if tries > 30 {
		return w.cfg.MaxBackoff
	}

	d := time.Duration((int64(1)<<uint(tries))-1) * time.Second
	if d > w.cfg.MaxBackoff {
		return w.cfg.MaxBackoff
	}
	return d
}

func (w *RetryWorker) sleep(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-time.After(w.cfg.PollInterval):
	}
}
