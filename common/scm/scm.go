// Package scm models the repository-hosting side of the registry: listing
// version tags, reading manifest files at a tagged revision and reporting
// validation outcomes back to the submitting repository's operator log.
//
// A hosting provider implements Host; everything shared between providers
// (semver tag filtering, release assembly, manifest validation) lives on
// Repo so a new provider only supplies the transport operations.
package scm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-git/go-git/v5/plumbing/transport"
	"golang.org/x/sync/errgroup"

	"github.com/pluginsite/registry/common/logger"
	"github.com/pluginsite/registry/common/manifest"
	"github.com/pluginsite/registry/common/policy"
	"github.com/pluginsite/registry/common/version"
)

// Host is the provider-specific transport surface
type Host interface {
	// ListTags returns all tag names, fetching from the remote first.
	ListTags(ctx context.Context) ([]string, error)
	// ManifestFiles returns the manifest file names present at the root
	// of the tree the tag points at.
	ManifestFiles(ctx context.Context, tag string) ([]string, error)
	// FileAt reads a file at a tagged revision. found is false when the
	// path does not exist at that revision; that is not an error.
	FileAt(ctx context.Context, tag, path string) (content string, found bool, err error)
	// ReleaseDate returns the commit date of the tagged revision.
	ReleaseDate(ctx context.Context, tag string) (time.Time, error)
	// SiteURL is the human-facing URL of the repository.
	SiteURL() string
	// DownloadURL is the archive download URL for a tag.
	DownloadURL(tag string) string
}

// Release is a tag together with its validated manifests, keyed by file name
type Release struct {
	Tag       string
	Manifests map[string]manifest.Manifest
}

// Repo is one hosted repository as seen by the ingestion pipeline
type Repo struct {
	Service  string
	UserName string
	RepoName string
	Watchers int
	Forks    int

	host   Host
	policy *policy.Engine
	notify Notifier
	log    *logger.Logger
}

// NewRepo builds a Repo around a provider host
func NewRepo(service, userName, repoName string, host Host, pol *policy.Engine, notify Notifier, log *logger.Logger) *Repo {
	return &Repo{
		Service:  service,
		UserName: userName,
		RepoName: repoName,
		host:     host,
		policy:   pol,
		notify:   notify,
		log:      log,
	}
}

// UserID identifies the submitting account: service/userName
func (r *Repo) UserID() string {
	return r.Service + "/" + r.UserName
}

// ID identifies the repository: service/userName/repoName
func (r *Repo) ID() string {
	return r.UserID() + "/" + r.RepoName
}

// SiteURL returns the repository's human-facing URL
func (r *Repo) SiteURL() string {
	return r.host.SiteURL()
}

// DownloadURL returns the archive URL for a tag
func (r *Repo) DownloadURL(tag string) string {
	return r.host.DownloadURL(tag)
}

// ReleaseDate returns the commit date of a tag
func (r *Repo) ReleaseDate(ctx context.Context, tag string) (time.Time, error) {
	return r.host.ReleaseDate(ctx, tag)
}

// VersionTags lists the repository's tags that name a release: an optional
// "v" prefix followed by a canonical semantic version. Anything else is
// silently excluded. A missing remote repository is reported to the operator
// log and yields an empty list rather than an error.
func (r *Repo) VersionTags(ctx context.Context) ([]string, error) {
	tags, err := r.host.ListTags(ctx)
	if err != nil {
		if errors.Is(err, transport.ErrRepositoryNotFound) {
			r.notify.RepoNotFound(r.ID())
			return nil, nil
		}
		return nil, fmt.Errorf("list tags for %s: %w", r.ID(), err)
	}

	var versions []string
	for _, tag := range tags {
		if version.IsVersionTag(tag) {
			versions = append(versions, tag)
		}
	}
	return versions, nil
}

// Release fetches and validates the manifests at a tag. It returns (nil,
// nil) when the tag is definitively not a valid release (no manifest files,
// unparseable JSON, or validation errors) so the caller can record the tag
// as processed and move on. An error return means the fetch itself failed
// and the operation can be retried.
func (r *Repo) Release(ctx context.Context, tag string) (*Release, error) {
	files, err := r.host.ManifestFiles(ctx, tag)
	if err != nil {
		return nil, fmt.Errorf("list manifest files for %s %s: %w", r.ID(), tag, err)
	}

	if len(files) == 0 {
		r.log.Info("no manifest files", "repo", r.ID(), "tag", tag)
		r.notify.MissingManifest(r.ID(), tag)
		return nil, nil
	}

	contents := make([]string, len(files))
	found := make([]bool, len(files))

	var g errgroup.Group
	for i, file := range files {
		g.Go(func() error {
			content, ok, err := r.host.FileAt(ctx, tag, file)
			if err != nil {
				return fmt.Errorf("read %s at %s %s: %w", file, r.ID(), tag, err)
			}
			contents[i], found[i] = content, ok
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	manifests := make(map[string]manifest.Manifest, len(files))
	for i, file := range files {
		if !found[i] {
			// listed a moment ago but gone at read time
			r.notify.MissingManifest(r.ID(), tag)
			return nil, nil
		}

		m, err := manifest.Parse([]byte(contents[i]))
		if err != nil {
			r.log.Info("invalid JSON in manifest", "repo", r.ID(), "tag", tag, "file", file)
			r.notify.InvalidJSON(r.ID(), tag, file)
			return nil, nil
		}

		if errs := r.validateManifest(m, tag, file); len(errs) > 0 {
			r.notify.InvalidManifest(r.ID(), tag, file, errs)
			return nil, nil
		}

		manifests[file] = m
	}

	return &Release{Tag: tag, Manifests: manifests}, nil
}

// validateManifest runs field validation plus the operator policy rules
func (r *Repo) validateManifest(m manifest.Manifest, tag, file string) []string {
	errs := manifest.Validate(m, tag, file)
	errs = append(errs, r.policy.Check(m)...)

	if len(errs) > 0 {
		r.log.Info("manifest errors", "repo", r.ID(), "tag", tag, "file", file, "errors", errs)
	}

	return errs
}

// InformOtherOwner reports an ownership conflict to the operator log
func (r *Repo) InformOtherOwner(tag, name, owner string) {
	r.notify.OtherOwner(r.ID(), tag, name, owner)
}

// InformSuccess reports an accepted release to the operator log
func (r *Repo) InformSuccess(name, ver string) {
	r.notify.Success(r.ID(), name, ver)
}
