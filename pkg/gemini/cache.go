package gemini

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/storage"
	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/chapterhouse/docbot/pkg/llm"
)

// fallbackMIMEType is used when the source blob carries no content type.
// The reference document is shipped as markdown.
const fallbackMIMEType = "text/markdown"

// ResolveCache finds the provider-side cache by display name, creating it
// from the source document when missing, and installs it as the process-wide
// reference. Called once at startup and again only if the provider rejects
// the held reference.
func (c *Client) ResolveCache(ctx context.Context) error {
	cache, err := c.findCache(ctx)
	if errors.Is(err, ErrCacheNotFound) {
		c.logger.Info("no context cache with configured name, creating one",
			zap.String("cache_name", c.cfg.CacheName),
			zap.String("source", c.sourceURI()),
		)
		cache, err = c.createCache(ctx)
	}
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.cache = cache
	c.mu.Unlock()

	c.logger.Info("context cache resolved",
		zap.String("name", cache.Name),
		zap.String("display_name", cache.DisplayName),
		zap.String("model", cache.Model),
		zap.Time("expires", cache.ExpireTime),
	)
	return nil
}

// FindCache looks the cache up by display name without creating anything.
func (c *Client) FindCache(ctx context.Context) (*llm.CacheInfo, error) {
	cache, err := c.findCache(ctx)
	if err != nil {
		return nil, err
	}
	return &llm.CacheInfo{
		Name:        cache.Name,
		DisplayName: cache.DisplayName,
		Model:       cache.Model,
		ExpireTime:  cache.ExpireTime,
	}, nil
}

// CreateCache creates the cache from the source document unconditionally.
func (c *Client) CreateCache(ctx context.Context) (*llm.CacheInfo, error) {
	cache, err := c.createCache(ctx)
	if err != nil {
		return nil, err
	}
	return &llm.CacheInfo{
		Name:        cache.Name,
		DisplayName: cache.DisplayName,
		Model:       cache.Model,
		ExpireTime:  cache.ExpireTime,
	}, nil
}

// DeleteCache removes the cache with the configured display name.
func (c *Client) DeleteCache(ctx context.Context) error {
	cache, err := c.findCache(ctx)
	if err != nil {
		return err
	}
	if _, err := c.genai.Caches.Delete(ctx, cache.Name, nil); err != nil {
		return fmt.Errorf("delete cached content %s: %w", cache.Name, err)
	}
	return nil
}

func (c *Client) findCache(ctx context.Context) (*genai.CachedContent, error) {
	for cache, err := range c.genai.Caches.All(ctx) {
		if err != nil {
			return nil, fmt.Errorf("list cached contents: %w", err)
		}
		if cache.DisplayName == c.cfg.CacheName {
			return cache, nil
		}
	}
	return nil, fmt.Errorf("%w: display name %q", ErrCacheNotFound, c.cfg.CacheName)
}

func (c *Client) createCache(ctx context.Context) (*genai.CachedContent, error) {
	mimeType, err := c.checkSourceBlob(ctx)
	if err != nil {
		return nil, err
	}

	part := genai.NewPartFromURI(c.sourceURI(), mimeType)
	cache, err := c.genai.Caches.Create(ctx, c.cfg.ModelName, &genai.CreateCachedContentConfig{
		DisplayName:       c.cfg.CacheName,
		TTL:               c.cfg.CacheTTL,
		SystemInstruction: genai.NewContentFromText(c.cfg.SystemInstructions, genai.RoleUser),
		Contents:          []*genai.Content{genai.NewContentFromParts([]*genai.Part{part}, genai.RoleUser)},
	})
	if err != nil {
		return nil, fmt.Errorf("create cached content for %s: %w", c.sourceURI(), err)
	}
	return cache, nil
}

// checkSourceBlob verifies the document blob exists before handing its URI
// to the provider, and returns its content type.
func (c *Client) checkSourceBlob(ctx context.Context) (string, error) {
	attrs, err := c.storage.Bucket(c.cfg.Bucket).Object(c.cfg.Blob).Attrs(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return "", fmt.Errorf("source document %s does not exist", c.sourceURI())
	}
	if err != nil {
		return "", fmt.Errorf("stat source document %s: %w", c.sourceURI(), err)
	}
	if attrs.ContentType == "" {
		return fallbackMIMEType, nil
	}
	return attrs.ContentType, nil
}

func (c *Client) sourceURI() string {
	return fmt.Sprintf("gs://%s/%s", c.cfg.Bucket, c.cfg.Blob)
}
