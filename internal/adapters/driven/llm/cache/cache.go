// Package cache provides a caching decorator for driven.LLMService.
//
// Responses are cached per model and request for a fixed TTL. Concurrent
// identical requests on a cache miss share a single upstream call.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/custodia-labs/mce/internal/core/ports/driven"
)

// DefaultTTL is how long a response stays cached.
const DefaultTTL = time.Hour

// Ensure LLMService implements the interface.
var _ driven.LLMService = (*LLMService)(nil)

type entry struct {
	value   string
	expires time.Time
}

// LLMService wraps another LLMService with a response cache.
type LLMService struct {
	inner driven.LLMService
	ttl   time.Duration
	now   func() time.Time

	mu      sync.Mutex
	entries map[string]entry
	group   singleflight.Group

	hits   int64
	misses int64
}

// New wraps inner. A non-positive ttl uses DefaultTTL.
func New(inner driven.LLMService, ttl time.Duration) *LLMService {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &LLMService{
		inner:   inner,
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]entry),
	}
}

// Generate returns a cached completion or asks the wrapped service.
func (c *LLMService) Generate(ctx context.Context, prompt string, opts driven.GenerateOptions) (string, error) {
	return c.cached(ctx, key(c.inner.ModelName(), "generate", prompt, opts), func(ctx context.Context) (string, error) {
		return c.inner.Generate(ctx, prompt, opts)
	})
}

// Chat returns a cached reply or asks the wrapped service.
func (c *LLMService) Chat(ctx context.Context, messages []driven.ChatMessage, opts driven.ChatOptions) (string, error) {
	return c.cached(ctx, key(c.inner.ModelName(), "chat", messages, opts), func(ctx context.Context) (string, error) {
		return c.inner.Chat(ctx, messages, opts)
	})
}

// Summarise returns a cached summary or asks the wrapped service.
func (c *LLMService) Summarise(ctx context.Context, content string, maxLength int) (string, error) {
	return c.cached(ctx, key(c.inner.ModelName(), "summarise", content, maxLength), func(ctx context.Context) (string, error) {
		return c.inner.Summarise(ctx, content, maxLength)
	})
}

func (c *LLMService) cached(ctx context.Context, k string, call func(context.Context) (string, error)) (string, error) {
	if v, ok := c.lookup(k); ok {
		return v, nil
	}

	v, err, _ := c.group.Do(k, func() (any, error) {
		// Double-check cache inside singleflight
		if v, ok := c.lookup(k); ok {
			return v, nil
		}
		c.mu.Lock()
		c.misses++
		c.mu.Unlock()

		out, err := call(ctx)
		if err != nil {
			return "", err
		}
		c.mu.Lock()
		c.entries[k] = entry{value: out, expires: c.now().Add(c.ttl)}
		c.mu.Unlock()
		return out, nil
	})
	if err != nil {
		return "", err
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("unexpected type from singleflight group: got %T", v)
	}
	return s, nil
}

func (c *LLMService) lookup(k string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[k]
	if !ok {
		return "", false
	}
	if !c.now().Before(e.expires) {
		delete(c.entries, k)
		return "", false
	}
	c.hits++
	return e.value, true
}

// Stats returns the number of cache hits and upstream calls.
func (c *LLMService) Stats() (hits, misses int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses
}

// Purge drops every cached response.
func (c *LLMService) Purge() {
	c.mu.Lock()
	c.entries = make(map[string]entry)
	c.mu.Unlock()
}

// ModelName returns the wrapped model name.
func (c *LLMService) ModelName() string { return c.inner.ModelName() }

// Ping checks the wrapped service; it is never cached.
func (c *LLMService) Ping(ctx context.Context) error { return c.inner.Ping(ctx) }

// Close closes the wrapped service.
func (c *LLMService) Close() error { return c.inner.Close() }

func key(model, op string, parts ...any) string {
	h := sha256.New()
	h.Write([]byte(model))
	h.Write([]byte{0})
	h.Write([]byte(op))
	for _, p := range parts {
		h.Write([]byte{0})
		data, _ := json.Marshal(p)
		h.Write(data)
	}
	return hex.EncodeToString(h.Sum(nil))
}
