// Package catalog holds the banners a session can select, loaded from a
// YAML/JSON document or from the banner backend's HTTP API.
package catalog

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/okian/gachasim/internal/domain/model"
	"github.com/okian/gachasim/internal/domain/types"
	"github.com/okian/gachasim/pkg/logger"
	"github.com/okian/gachasim/pkg/metrics"
)

const (
	bannersPath    = "/api/banners"
	fetchTimeout   = 10 * time.Second
	maxFetchBodyMB = 8
)

//go:embed default_banners.yaml
var defaultBanners []byte

// Catalog is a concurrency-safe, ordered set of banners keyed by id.
type Catalog struct {
	mu      sync.RWMutex
	banners []model.Banner
	byID    map[string]int

	client *http.Client
	logger logger.Logger
}

// New returns an empty catalog.
func New(opts ...Option) *Catalog {
	c := &Catalog{
		byID:   map[string]int{},
		client: &http.Client{Timeout: fetchTimeout},
		logger: logger.GetOr(logger.Nop()).Named("catalog"),
	}

	// Apply all options
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// document accepts either a bare list or a {banners: [...]} wrapper.
type document struct {
	Banners []types.Banner `json:"banners" yaml:"banners"`
}

// Decode parses banner documents. JSON input is detected by its leading
// bracket; anything else is parsed as YAML.
func Decode(data []byte) ([]types.Banner, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, nil
	}

	switch trimmed[0] {
	case '[':
		var list []types.Banner
		if err := json.Unmarshal(trimmed, &list); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDecode, err)
		}
		return list, nil
	case '{':
		var doc document
		if err := json.Unmarshal(trimmed, &doc); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDecode, err)
		}
		return doc.Banners, nil
	}

	var list []types.Banner
	if err := yaml.Unmarshal(trimmed, &list); err == nil {
		return list, nil
	}
	var doc document
	if err := yaml.Unmarshal(trimmed, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return doc.Banners, nil
}

// Replace swaps the catalog contents. Banners without an id, and repeats of
// an id already seen, are dropped.
func (c *Catalog) Replace(ctx context.Context, banners []model.Banner) int {
	next := make([]model.Banner, 0, len(banners))
	index := make(map[string]int, len(banners))
	for _, b := range banners {
		if b.ID == "" {
			c.logger.Warn(ctx, "skipping banner without id", logger.String("name", b.Name))
			continue
		}
		if _, dup := index[b.ID]; dup {
			c.logger.Warn(ctx, "skipping duplicate banner", logger.String("banner", b.ID))
			continue
		}
		index[b.ID] = len(next)
		next = append(next, b.Normalized())
	}

	c.mu.Lock()
	c.banners = next
	c.byID = index
	c.mu.Unlock()

	metrics.UpdateCatalogBanners(len(next))
	return len(next)
}

// LoadBytes decodes and installs a banner document.
func (c *Catalog) LoadBytes(ctx context.Context, data []byte) error {
	docs, err := Decode(data)
	if err != nil {
		return err
	}
	if c.Replace(ctx, c.convert(ctx, docs)) == 0 {
		return ErrEmptyCatalog
	}
	return nil
}

// LoadFile reads a YAML or JSON banner file.
func (c *Catalog) LoadFile(ctx context.Context, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read banner file: %w", err)
	}
	if err := c.LoadBytes(ctx, data); err != nil {
		return fmt.Errorf("banner file %s: %w", path, err)
	}
	c.logger.Info(ctx, "banners loaded from file", logger.String("path", path), logger.Int("banners", c.Len()))
	return nil
}

// LoadDefault installs the built-in banner set.
func (c *Catalog) LoadDefault(ctx context.Context) error {
	return c.LoadBytes(ctx, defaultBanners)
}

// Fetch loads banners from GET {baseURL}/api/banners.
func (c *Catalog) Fetch(ctx context.Context, baseURL string) error {
	url := strings.TrimRight(strings.TrimSpace(baseURL), "/") + bannersPath

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrFetch, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		metrics.RecordErrorByComponent("catalog", "fetch_failed")
		return fmt.Errorf("%w: %v", ErrFetch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		metrics.RecordErrorByComponent("catalog", "fetch_status")
		return fmt.Errorf("%w: %s returned %d", ErrFetch, url, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFetchBodyMB<<20))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrFetch, err)
	}
	if err := c.LoadBytes(ctx, body); err != nil {
		return err
	}
	c.logger.Info(ctx, "banners fetched", logger.String("url", url), logger.Int("banners", c.Len()))
	return nil
}

func (c *Catalog) convert(ctx context.Context, docs []types.Banner) []model.Banner {
	out := make([]model.Banner, 0, len(docs))
	for _, d := range docs {
		b, errs := d.ToModel()
		for _, err := range errs {
			c.logger.Warn(ctx, "skipping character", logger.String("banner", b.ID), logger.Error(err))
		}
		out = append(out, b)
	}
	return out
}

// List returns all banners in load order.
func (c *Catalog) List() []model.Banner {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]model.Banner(nil), c.banners...)
}

// Get returns the banner with id.
func (c *Catalog) Get(id string) (model.Banner, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	i, ok := c.byID[id]
	if !ok {
		return model.Banner{}, fmt.Errorf("%w: %s", ErrBannerNotFound, id)
	}
	return c.banners[i], nil
}

// First returns the first banner, if any.
func (c *Catalog) First() (model.Banner, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if len(c.banners) == 0 {
		return model.Banner{}, false
	}
	return c.banners[0], true
}

// Len returns the number of banners.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.banners)
}
