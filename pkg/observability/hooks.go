// Package observability provides hooks for metrics, tracing, and logging.
//
// Hooks are optional instrumentation points. They are carried in a [Hooks]
// value that the caller builds once per run and passes down explicitly, so
// two runs in the same process never observe each other's hooks.
//
// # Usage
//
// Build hooks at startup and hand them to the run:
//
//	hooks := observability.Hooks{Link: observability.NewLogHooks(logger)}.WithDefaults()
//	ctx := link.NewContext(reg, link.WithHooks(hooks))
//
// Libraries call hooks to emit events:
//
//	hooks.Link.OnResolveStart(ctx, runID, instances)
//	// ... resolve ...
//	hooks.Link.OnResolveComplete(ctx, runID, edges, duration, err)
package observability

import (
	"context"
	"time"

	"github.com/charmbracelet/log"
)

// =============================================================================
// Link Hooks
// =============================================================================

// LinkHooks receives events from resolution and composition.
type LinkHooks interface {
	// Resolve events
	OnResolveStart(ctx context.Context, runID string, instances int)
	OnResolveComplete(ctx context.Context, runID string, edges int, duration time.Duration, err error)

	// Compose events (external composer invocation)
	OnComposeStart(ctx context.Context, runID, composer string)
	OnComposeComplete(ctx context.Context, runID, composer string, duration time.Duration, err error)
}

// =============================================================================
// Fetch Hooks
// =============================================================================

// FetchHooks receives events from remote artifact fetches.
type FetchHooks interface {
	OnFetchStart(ctx context.Context, pkg string)
	OnFetchComplete(ctx context.Context, pkg string, duration time.Duration, err error)
}

// =============================================================================
// Cache Hooks
// =============================================================================

// CacheHooks receives events from cache operations.
type CacheHooks interface {
	// OnCacheHit records a cache hit.
	OnCacheHit(ctx context.Context, keyType string)

	// OnCacheMiss records a cache miss.
	OnCacheMiss(ctx context.Context, keyType string)

	// OnCacheSet records a cache write.
	OnCacheSet(ctx context.Context, keyType string, size int)
}

// =============================================================================
// HTTP Hooks
// =============================================================================

// HTTPHooks receives events from HTTP client operations.
type HTTPHooks interface {
	// OnRequest records an outgoing HTTP request.
	OnRequest(ctx context.Context, method, host, path string)

	// OnResponse records an HTTP response.
	OnResponse(ctx context.Context, method, host, path string, statusCode int, duration time.Duration)

	// OnError records an HTTP error (network failure, timeout).
	OnError(ctx context.Context, method, host, path string, err error)
}

// =============================================================================
// No-op Implementations
// =============================================================================

// NoopLinkHooks is a no-op implementation of LinkHooks.
type NoopLinkHooks struct{}

func (NoopLinkHooks) OnResolveStart(context.Context, string, int)                             {}
func (NoopLinkHooks) OnResolveComplete(context.Context, string, int, time.Duration, error)    {}
func (NoopLinkHooks) OnComposeStart(context.Context, string, string)                          {}
func (NoopLinkHooks) OnComposeComplete(context.Context, string, string, time.Duration, error) {}

// NoopFetchHooks is a no-op implementation of FetchHooks.
type NoopFetchHooks struct{}

func (NoopFetchHooks) OnFetchStart(context.Context, string)                          {}
func (NoopFetchHooks) OnFetchComplete(context.Context, string, time.Duration, error) {}

// NoopCacheHooks is a no-op implementation of CacheHooks.
type NoopCacheHooks struct{}

func (NoopCacheHooks) OnCacheHit(context.Context, string)      {}
func (NoopCacheHooks) OnCacheMiss(context.Context, string)     {}
func (NoopCacheHooks) OnCacheSet(context.Context, string, int) {}

// NoopHTTPHooks is a no-op implementation of HTTPHooks.
type NoopHTTPHooks struct{}

func (NoopHTTPHooks) OnRequest(context.Context, string, string, string)                      {}
func (NoopHTTPHooks) OnResponse(context.Context, string, string, string, int, time.Duration) {}
func (NoopHTTPHooks) OnError(context.Context, string, string, string, error)                 {}

// =============================================================================
// Hook Bundle
// =============================================================================

// Hooks bundles every hook category for one run. Nil fields are replaced by
// no-op implementations in [Hooks.WithDefaults].
type Hooks struct {
	Link  LinkHooks
	Fetch FetchHooks
	Cache CacheHooks
	HTTP  HTTPHooks
}

// WithDefaults returns a copy of h with nil hooks replaced by no-ops.
func (h Hooks) WithDefaults() Hooks {
	if h.Link == nil {
		h.Link = NoopLinkHooks{}
	}
	if h.Fetch == nil {
		h.Fetch = NoopFetchHooks{}
	}
	if h.Cache == nil {
		h.Cache = NoopCacheHooks{}
	}
	if h.HTTP == nil {
		h.HTTP = NoopHTTPHooks{}
	}
	return h
}

// =============================================================================
// Log Implementations
// =============================================================================

// LogHooks writes every hook category to a logger at debug level.
type LogHooks struct {
	logger *log.Logger
}

// NewLogHooks returns hooks logging to logger (log.Default() when nil).
func NewLogHooks(logger *log.Logger) *LogHooks {
	if logger == nil {
		logger = log.Default()
	}
	return &LogHooks{logger: logger}
}

func (h *LogHooks) OnResolveStart(_ context.Context, runID string, instances int) {
	h.logger.Debug("resolve started", "run", runID, "instances", instances)
}

func (h *LogHooks) OnResolveComplete(_ context.Context, runID string, edges int, d time.Duration, err error) {
	if err != nil {
		h.logger.Debug("resolve failed", "run", runID, "duration", d, "err", err)
		return
	}
	h.logger.Debug("resolve finished", "run", runID, "edges", edges, "duration", d)
}

func (h *LogHooks) OnComposeStart(_ context.Context, runID, composer string) {
	h.logger.Debug("composer started", "run", runID, "composer", composer)
}

func (h *LogHooks) OnComposeComplete(_ context.Context, runID, composer string, d time.Duration, err error) {
	if err != nil {
		h.logger.Debug("composer failed", "run", runID, "composer", composer, "duration", d, "err", err)
		return
	}
	h.logger.Debug("composer finished", "run", runID, "composer", composer, "duration", d)
}

func (h *LogHooks) OnFetchStart(_ context.Context, pkg string) {
	h.logger.Debug("fetch started", "package", pkg)
}

func (h *LogHooks) OnFetchComplete(_ context.Context, pkg string, d time.Duration, err error) {
	if err != nil {
		h.logger.Debug("fetch failed", "package", pkg, "duration", d, "err", err)
		return
	}
	h.logger.Debug("fetch finished", "package", pkg, "duration", d)
}

func (h *LogHooks) OnCacheHit(_ context.Context, key string) {
	h.logger.Debug("cache hit", "key", key)
}

func (h *LogHooks) OnCacheMiss(_ context.Context, key string) {
	h.logger.Debug("cache miss", "key", key)
}

func (h *LogHooks) OnCacheSet(_ context.Context, key string, size int) {
	h.logger.Debug("cache set", "key", key, "bytes", size)
}

func (h *LogHooks) OnRequest(_ context.Context, method, host, path string) {
	h.logger.Debug("http request", "method", method, "host", host, "path", path)
}

func (h *LogHooks) OnResponse(_ context.Context, method, host, path string, status int, d time.Duration) {
	h.logger.Debug("http response", "method", method, "host", host, "path", path, "status", status, "duration", d)
}

func (h *LogHooks) OnError(_ context.Context, method, host, path string, err error) {
	h.logger.Debug("http error", "method", method, "host", host, "path", path, "err", err)
}

var (
	_ LinkHooks  = (*LogHooks)(nil)
	_ FetchHooks = (*LogHooks)(nil)
	_ CacheHooks = (*LogHooks)(nil)
	_ HTTPHooks  = (*LogHooks)(nil)
)
