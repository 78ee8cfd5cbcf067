// Package gemini wraps the Vertex AI generative API behind the small surface
// docbot needs: resolve a context cache for the reference document once, then
// answer questions against it with bounded retries.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"cloud.google.com/go/auth/credentials"
	"cloud.google.com/go/storage"
	"go.uber.org/zap"
	"google.golang.org/api/option"
	"google.golang.org/genai"

	"github.com/chapterhouse/docbot/pkg/llm"
	"github.com/chapterhouse/docbot/pkg/prompt"
	"github.com/chapterhouse/docbot/pkg/retry"
)

// DefaultModel is the model used when none is configured. It must support
// context caching.
const DefaultModel = "gemini-2.0-flash-001"

// DefaultCacheTTL matches the original deployment: the document cache lives
// effectively for the lifetime of the document revision.
const DefaultCacheTTL = 8640 * time.Hour // 360 days

// DefaultCallTimeout bounds each upstream attempt. Model calls can be slow,
// but a hung connection must not pin a worker forever.
const DefaultCallTimeout = 5 * time.Minute

// DefaultSystemInstructions grounds the cached document. It is stored inside
// the context cache, not resent per request.
const DefaultSystemInstructions = `You are an assistant answering questions about the attached reference
document. Base every answer on the document and name the chapter a fact
comes from when the document has chapters.`

const polishInstructions = `Convert markdown syntax to plain text, keep everything in a single
paragraph, correct spelling and remove emojis.`

// ErrEmptyResponse is returned when the model produces no usable text.
var ErrEmptyResponse = errors.New("model returned an empty response")

// ErrCacheNotFound is returned when no provider-side cache carries the
// configured display name.
var ErrCacheNotFound = errors.New("context cache not found")

// Config carries everything needed to reach the model and its cache.
type Config struct {
	ProjectID string
	Location  string
	ModelName string

	// Source document location in object storage, read only when the cache
	// has to be created.
	Bucket string
	Blob   string

	// CacheName is the display name used to find or create the cache.
	CacheName string
	CacheTTL  time.Duration

	// SystemInstructions is baked into the cache at creation time.
	SystemInstructions string

	// PromptInstructions is the per-request answer contract.
	PromptInstructions string

	// Polish runs the markdown-to-plain-text cleanup pass on answers.
	Polish bool

	// Retry bounds the upstream call loop. Zero value means DefaultPolicy.
	Retry retry.Policy

	// CallTimeout bounds each individual upstream attempt.
	CallTimeout time.Duration
}

func (c *Config) applyDefaults() {
	if c.ModelName == "" {
		c.ModelName = DefaultModel
	}
	if c.CacheTTL <= 0 {
		c.CacheTTL = DefaultCacheTTL
	}
	if c.SystemInstructions == "" {
		c.SystemInstructions = DefaultSystemInstructions
	}
	if c.Retry.MaxAttempts == 0 {
		c.Retry = retry.DefaultPolicy()
	}
	if c.CallTimeout <= 0 {
		c.CallTimeout = DefaultCallTimeout
	}
}

// Client is a Vertex AI client bound to one document cache. The cache
// reference is resolved once at startup and treated as immutable shared
// configuration; the mutex only guards the rare stale-reference refresh.
type Client struct {
	cfg     Config
	genai   *genai.Client
	storage *storage.Client
	prompts *prompt.Builder
	logger  *zap.Logger

	// Seams for the single-call generate step and the cache refresh, so the
	// retry-and-refresh orchestration is testable without a live provider.
	generateFn func(ctx context.Context, promptText string) (string, error)
	resolveFn  func(ctx context.Context) error

	mu    sync.RWMutex
	cache *genai.CachedContent
}

// NewClient builds the genai and object-storage clients using Application
// Default Credentials. It performs no network calls until ResolveCache.
func NewClient(ctx context.Context, cfg Config, logger *zap.Logger) (*Client, error) {
	if cfg.ProjectID == "" {
		return nil, errors.New("project ID is required")
	}
	if cfg.Location == "" {
		return nil, errors.New("location is required")
	}
	if cfg.CacheName == "" {
		return nil, errors.New("cache name is required")
	}
	cfg.applyDefaults()

	genaiClient, err := genai.NewClient(ctx, &genai.ClientConfig{
		Project:  cfg.ProjectID,
		Location: cfg.Location,
		Backend:  genai.BackendVertexAI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	creds, err := credentials.DetectDefault(&credentials.DetectOptions{
		Scopes: []string{storage.ScopeReadOnly},
	})
	if err != nil {
		return nil, fmt.Errorf("detect credentials for storage: %w", err)
	}
	storageClient, err := storage.NewClient(ctx, option.WithAuthCredentials(creds))
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}

	c := &Client{
		cfg:     cfg,
		genai:   genaiClient,
		storage: storageClient,
		prompts: prompt.NewBuilder(cfg.PromptInstructions),
		logger:  logger,
	}
	c.generateFn = c.generate
	c.resolveFn = c.ResolveCache
	return c, nil
}

// Close releases the object-storage client. The genai client holds no
// connections of its own.
func (c *Client) Close() error {
	return c.storage.Close()
}

// CacheInfo describes the currently resolved cache, or nil before resolution.
func (c *Client) CacheInfo() *llm.CacheInfo {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.cache == nil {
		return nil
	}
	return &llm.CacheInfo{
		Name:        c.cache.Name,
		DisplayName: c.cache.DisplayName,
		Model:       c.cache.Model,
		ExpireTime:  c.cache.ExpireTime,
	}
}

// Answer runs one question against the cached document. Each upstream
// attempt is bounded by CallTimeout so a hung provider connection cannot pin
// a worker. Transient failures are retried with backoff; a cache reference
// the provider no longer recognizes triggers a single re-resolution before
// giving up.
func (c *Client) Answer(ctx context.Context, question string, history []llm.Message) (string, error) {
	p := c.prompts.Build(question, history)
	c.logger.Debug("built prompt", zap.Int("history_turns", len(history)), zap.Int("prompt_chars", len(p)))

	call := func(ctx context.Context) (string, error) {
		ctx, cancel := context.WithTimeout(ctx, c.cfg.CallTimeout)
		defer cancel()
		return c.generateFn(ctx, p)
	}

	text, err := retry.Do(ctx, c.cfg.Retry, Classify, call)
	if err != nil && isStaleCache(err) {
		c.logger.Warn("context cache rejected upstream, re-resolving", zap.Error(err))
		if rerr := c.resolveFn(ctx); rerr != nil {
			return "", fmt.Errorf("refresh context cache: %w", rerr)
		}
		text, err = retry.Do(ctx, c.cfg.Retry, Classify, call)
	}
	if err != nil {
		return "", err
	}

	if c.cfg.Polish {
		text = c.polish(ctx, text)
	}
	return text, nil
}

// generate performs a single completion call referencing the cache.
func (c *Client) generate(ctx context.Context, promptText string) (string, error) {
	c.mu.RLock()
	cache := c.cache
	c.mu.RUnlock()
	if cache == nil {
		return "", errors.New("context cache not resolved")
	}

	resp, err := c.genai.Models.GenerateContent(ctx, cache.Model, genai.Text(promptText), &genai.GenerateContentConfig{
		CachedContent: cache.Name,
	})
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}

// polish reformats an answer to plain text with a second, uncached model
// call. Best effort: any failure returns the raw answer unchanged.
func (c *Client) polish(ctx context.Context, answer string) string {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.CallTimeout)
	defer cancel()

	resp, err := c.genai.Models.GenerateContent(ctx, c.cfg.ModelName, genai.Text(answer), &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(polishInstructions, genai.RoleUser),
	})
	if err != nil {
		c.logger.Warn("answer polish failed, returning raw answer", zap.Error(err))
		return answer
	}
	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return answer
	}
	return text
}
