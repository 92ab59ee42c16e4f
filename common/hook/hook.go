// Package hook implements the release ingestion pipeline: given a hosted
// repository, discover the version tags not yet processed, validate their
// manifests and append accepted releases to the action log. Every tag ends
// up in the tag ledger exactly once, valid or not, so reprocessing the same
// repository is cheap and idempotent.
package hook

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"golang.org/x/sync/errgroup"

	"github.com/pluginsite/registry/common/logger"
	"github.com/pluginsite/registry/common/manifest"
	"github.com/pluginsite/registry/common/models"
	"github.com/pluginsite/registry/common/scm"
)

// maxTagsPerRun caps how many unprocessed tags a single run will take on.
// A freshly submitted repository with years of history only publishes its
// newest releases; the rest stay unprocessed until someone asks for them.
const maxTagsPerRun = 10

// OwnerStore is the slice of the ownership store the pipeline needs
type OwnerStore interface {
	GetOrSetOwner(ctx context.Context, plugin, owner, repo string) (string, error)
	UpdateRepoMeta(ctx context.Context, repoID string, meta models.RepoMeta) error
}

// TagLedger records which tags have been processed
type TagLedger interface {
	Known(ctx context.Context, repoID string) (map[string]bool, error)
	Add(ctx context.Context, repoID, tag string) error
}

// ActionLog is the append side of the action log
type ActionLog interface {
	Append(ctx context.Context, action string, data any) (int64, error)
}

// FailureLog queues failed operations for the retry driver
type FailureLog interface {
	Log(ctx context.Context, method string, args ...string) error
}

// Pipeline wires the stores together. One instance is shared by the hook
// server and the retry driver.
type Pipeline struct {
	owners   OwnerStore
	ledger   TagLedger
	actions  ActionLog
	failures FailureLog
	log      *logger.Logger
}

// NewPipeline creates the ingestion pipeline
func NewPipeline(owners OwnerStore, ledger TagLedger, actions ActionLog, failures FailureLog, log *logger.Logger) *Pipeline {
	return &Pipeline{
		owners:   owners,
		ledger:   ledger,
		actions:  actions,
		failures: failures,
		log:      log,
	}
}

// ProcessHook handles one webhook delivery: ingest new versions, then
// refresh the repository counters. Failures are queued for the retry driver
// rather than surfaced to the webhook sender.
func (p *Pipeline) ProcessHook(ctx context.Context, repo *scm.Repo) error {
	var errs []error

	if err := p.ProcessVersions(ctx, repo); err != nil {
		p.log.Error("version processing failed", "repo", repo.ID(), "error", err)
		if lerr := p.failures.Log(ctx, "processVersions", repo.ID()); lerr != nil {
			errs = append(errs, lerr)
		}
		errs = append(errs, err)
	}

	if err := p.ProcessMeta(ctx, repo); err != nil {
		p.log.Error("meta update failed", "repo", repo.ID(), "error", err)
		// the counters ride along so the retry does not need the hook payload
		if lerr := p.failures.Log(ctx, "processMeta", repo.ID(),
			strconv.Itoa(repo.Watchers), strconv.Itoa(repo.Forks)); lerr != nil {
			errs = append(errs, lerr)
		}
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// ProcessVersions discovers unprocessed version tags and ingests them. Tag
// discovery and the known-tag lookup run concurrently; each new tag is then
// ingested in its own goroutine and all of them run to completion before
// the first error, if any, is returned.
func (p *Pipeline) ProcessVersions(ctx context.Context, repo *scm.Repo) error {
	var (
		known map[string]bool
		tags  []string
	)

	var g errgroup.Group
	g.Go(func() error {
		var err error
		known, err = p.ledger.Known(ctx, repo.ID())
		return err
	})
	g.Go(func() error {
		var err error
		tags, err = repo.VersionTags(ctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return err
	}

	var newTags []string
	for _, tag := range tags {
		if !known[tag] {
			newTags = append(newTags, tag)
		}
	}

	if len(newTags) > maxTagsPerRun {
		p.log.Warn("capping unprocessed tags",
			"repo", repo.ID(), "unprocessed", len(newTags), "cap", maxTagsPerRun)
		newTags = newTags[len(newTags)-maxTagsPerRun:]
	}

	var ingest errgroup.Group
	for _, tag := range newTags {
		ingest.Go(func() error {
			return p.processTag(ctx, repo, tag)
		})
	}
	return ingest.Wait()
}

// processTag ingests one tag. A tag that turns out not to be a valid
// release is recorded in the ledger and never looked at again; a failed
// store write for one of its manifests is queued for the retry driver and
// still fails the batch.
func (p *Pipeline) processTag(ctx context.Context, repo *scm.Repo, tag string) error {
	release, err := repo.Release(ctx, tag)
	if err != nil {
		return err
	}

	if release == nil {
		return p.ledger.Add(ctx, repo.ID(), tag)
	}

	var errs []error
	for file, m := range release.Manifests {
		if err := p.ProcessRelease(ctx, repo, tag, file, m); err != nil {
			p.log.Error("release processing failed",
				"repo", repo.ID(), "tag", tag, "file", file, "error", err)
			if lerr := p.failures.Log(ctx, "processRelease", repo.ID(), tag, file); lerr != nil {
				errs = append(errs, lerr)
			}
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// ProcessRelease admits one validated manifest: claim or confirm ownership,
// append the release to the action log and mark the tag processed. The log
// append and the ledger write are separate statements; a crash between them
// leaves a release that will be appended again on reprocessing, and
// downstream consumers tolerate the duplicate.
func (p *Pipeline) ProcessRelease(ctx context.Context, repo *scm.Repo, tag, file string, m manifest.Manifest) error {
	name := m.Name()

	owner, err := p.owners.GetOrSetOwner(ctx, name, repo.UserID(), repo.ID())
	if err != nil {
		return fmt.Errorf("resolve owner of %s: %w", name, err)
	}

	if owner != repo.UserID() {
		p.log.Info("ownership conflict",
			"repo", repo.ID(), "tag", tag, "plugin", name, "owner", owner)
		repo.InformOtherOwner(tag, name, owner)
		return p.ledger.Add(ctx, repo.ID(), tag)
	}

	data := models.ReleaseData{
		Repo:     repo.ID(),
		Tag:      tag,
		File:     file,
		Manifest: m,
	}
	if _, err := p.actions.Append(ctx, models.ActionAddRelease, data); err != nil {
		return fmt.Errorf("append release %s %s: %w", name, tag, err)
	}

	if err := p.ledger.Add(ctx, repo.ID(), tag); err != nil {
		return err
	}

	p.log.Info("release added", "repo", repo.ID(), "plugin", name, "version", m.Version())
	repo.InformSuccess(name, m.Version())
	return nil
}

// ProcessMeta refreshes the watcher and fork counters carried by the hook
// payload for every plugin released from this repository.
func (p *Pipeline) ProcessMeta(ctx context.Context, repo *scm.Repo) error {
	meta := models.RepoMeta{Watchers: repo.Watchers, Forks: repo.Forks}
	if err := p.owners.UpdateRepoMeta(ctx, repo.ID(), meta); err != nil {
		return fmt.Errorf("update meta for %s: %w", repo.ID(), err)
	}
	return nil
}
