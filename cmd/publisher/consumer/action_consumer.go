package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pluginsite/registry/common/clients"
	"github.com/pluginsite/registry/common/config"
	"github.com/pluginsite/registry/common/logger"
	"github.com/pluginsite/registry/common/models"
	"github.com/pluginsite/registry/common/repository"
)

// ActionConsumer publishes action log entries to the downstream site. It
// holds its position in a cursor file and advances only after an entry has
// been fully published, so a crash replays at most one entry. Downstream
// writes are idempotent upserts, which makes the replay harmless.
type ActionConsumer struct {
	actions *repository.ActionRepository
	cms     *clients.CMSClient
	cfg     config.PublisherConfig
	logger  *logger.Logger
	cursor  int64
}

// NewActionConsumer creates a new action consumer
func NewActionConsumer(
	actions *repository.ActionRepository,
	cms *clients.CMSClient,
	cfg config.PublisherConfig,
	log *logger.Logger,
) *ActionConsumer {
	return &ActionConsumer{
		actions: actions,
		cms:     cms,
		cfg:     cfg,
		logger:  log,
	}
}

// Start loads the cursor and runs the poll loop until the context is
// cancelled.
func (c *ActionConsumer) Start(ctx context.Context) error {
	cursor, err := c.loadCursor()
	if err != nil {
		return err
	}
	c.cursor = cursor

	c.logger.Info("starting action consumer",
		"cursor", c.cursor,
		"poll_interval", c.cfg.PollInterval)

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("action consumer stopping")
			return nil
		default:
			if err := c.processNext(ctx); err != nil {
				c.logger.Error("failed to process action", "error", err)
				c.sleep(ctx)
			}
		}
	}
}

// processNext publishes at most one entry and advances the cursor. An
// error leaves the cursor where it is so the entry runs again.
func (c *ActionConsumer) processNext(ctx context.Context) error {
	var (
		action *models.Action
		err    error
	)
	if c.cursor == 0 {
		action, err = c.actions.First(ctx)
	} else {
		action, err = c.actions.NextAfter(ctx, c.cursor)
	}
	if err != nil {
		return err
	}

	if action == nil {
		c.sleep(ctx)
		return nil
	}

	switch action.Action {
	case models.ActionAddRelease:
		if err := c.publishRelease(ctx, action); err != nil {
			return fmt.Errorf("publish action %d: %w", action.ID, err)
		}
	default:
		c.logger.Warn("skipping unknown action type",
			"id", action.ID, "action", action.Action)
	}

	return c.advance(action.ID)
}

// publishRelease pushes one release to the site: the page itself when this
// release is the new latest, then the version list and metadata, then a
// cache flush.
func (c *ActionConsumer) publishRelease(ctx context.Context, action *models.Action) error {
	var data models.ReleaseData
	if err := json.Unmarshal(action.Data, &data); err != nil {
		return fmt.Errorf("decode release data: %w", err)
	}

	name, _ := data.Manifest["name"].(string)
	released, _ := data.Manifest["version"].(string)
	if name == "" || released == "" {
		c.logger.Warn("release entry without name or version, skipping", "id", action.ID)
		return nil
	}

	versions, err := c.actions.ReleaseVersions(ctx, name)
	if err != nil {
		return err
	}

	if latest := Latest(versions); latest == released {
		title, _ := data.Manifest["title"].(string)
		page := clients.Page{
			Slug:    name,
			Title:   title,
			Version: released,
			Content: data.Manifest,
		}
		if err := c.cms.UpdatePage(ctx, page); err != nil {
			return err
		}
	} else {
		c.logger.Info("not the latest version, page unchanged",
			"plugin", name, "version", released, "latest", latest)
	}

	if err := c.cms.SetVersionList(ctx, name, ListedVersions(versions)); err != nil {
		return err
	}

	meta := map[string]any{
		"repo": data.Repo,
		"tag":  data.Tag,
	}
	if err := c.cms.SetMetadata(ctx, name, meta); err != nil {
		return err
	}

	if err := c.cms.FlushCaches(ctx); err != nil {
		return err
	}

	c.logger.Info("release published", "plugin", name, "version", released)
	return nil
}

// advance persists the cursor after a fully published entry
func (c *ActionConsumer) advance(id int64) error {
	if err := os.WriteFile(c.cfg.CursorPath, []byte(strconv.FormatInt(id, 10)), 0o644); err != nil {
		return fmt.Errorf("write cursor: %w", err)
	}
	c.cursor = id
	return nil
}

func (c *ActionConsumer) loadCursor() (int64, error) {
	raw, err := os.ReadFile(c.cfg.CursorPath)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read cursor: %w", err)
	}

	cursor, err := strconv.ParseInt(strings.TrimSpace(string(raw)), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("malformed cursor file %s: %w", c.cfg.CursorPath, err)
	}
	return cursor, nil
}

func (c *ActionConsumer) sleep(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-time.After(c.cfg.PollInterval):
	}
}
