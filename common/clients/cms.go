package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// Logger interface for HTTP client logging
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
	Debug(msg string, keysAndValues ...interface{})
}

// Page is one plugin page on the downstream site. The slug is the plugin
// name; publishing the same slug again replaces the page.
type Page struct {
	Slug    string         `json:"slug"`
	Title   string         `json:"title"`
	Version string         `json:"version"`
	Content map[string]any `json:"content"`
}

// CMSClient talks to the downstream site that renders plugin pages. All
// writes are idempotent upserts keyed by plugin name, so replaying action
// log entries is safe.
type CMSClient struct {
	baseURL string
	client  *http.Client
	logger  Logger
}

// NewCMSClient creates a new CMS client
func NewCMSClient(baseURL string, logger Logger) *CMSClient {
	return &CMSClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 30 * time.Second},
		logger:  logger,
	}
}

// UpdatePage creates or replaces the page for a plugin version
func (c *CMSClient) UpdatePage(ctx context.Context, page Page) error {
	return c.put(ctx, "/pages/"+url.PathEscape(page.Slug), page)
}

// SetVersionList replaces the list of published versions for a plugin
func (c *CMSClient) SetVersionList(ctx context.Context, plugin string, versions []string) error {
	return c.put(ctx, "/pages/"+url.PathEscape(plugin)+"/versions", versions)
}

// SetMetadata replaces the sidebar metadata for a plugin
func (c *CMSClient) SetMetadata(ctx context.Context, plugin string, meta map[string]any) error {
	return c.put(ctx, "/pages/"+url.PathEscape(plugin)+"/meta", meta)
}

// FlushCaches invalidates the site's page caches after a publish
func (c *CMSClient) FlushCaches(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/cache/flush", nil)
	if err != nil {
		return err
	}
	return c.do(req)
}

func (c *CMSClient) put(ctx context.Context, path string, body any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	return c.do(req)
}

func (c *CMSClient) do(req *http.Request) error {
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s %s: status %d: %s", req.Method, req.URL.Path, resp.StatusCode, body)
	}

	c.logger.Debug("cms request ok", "method", req.Method, "path", req.URL.Path)
	return nil
}
