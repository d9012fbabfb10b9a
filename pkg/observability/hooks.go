// Package observability provides hooks for metrics, tracing and logging.
//
// Libraries call the registered hooks at well-defined points; the binary
// decides at startup what, if anything, receives them. No-op hooks are
// installed by default, so instrumentation costs nothing unless enabled.
//
//	func main() {
//	    observability.SetPipelineHooks(observability.NewLogHooks(logger))
//	    // ... run application
//	}
//
// Library side:
//
//	observability.Pipeline().OnBuildStart(ctx, fingerprint, edges)
//	// ... triangulate ...
//	observability.Pipeline().OnBuildComplete(ctx, fingerprint, faces, time.Since(start), err)
package observability

import (
	"context"
	"sync"
	"time"
)

// =============================================================================
// Pipeline Hooks
// =============================================================================

// PipelineHooks receives events from the visibility pipeline.
type PipelineHooks interface {
	// Triangulation of a scene
	OnBuildStart(ctx context.Context, scene string, edges int)
	OnBuildComplete(ctx context.Context, scene string, faces int, duration time.Duration, err error)

	// A single observer query
	OnQueryStart(ctx context.Context, scene, observer string)
	OnQueryComplete(ctx context.Context, scene, observer string, vertices int, duration time.Duration, err error)

	// Artifact rendering
	OnRenderStart(ctx context.Context, formats []string)
	OnRenderComplete(ctx context.Context, formats []string, duration time.Duration, err error)
}

// =============================================================================
// Cache Hooks
// =============================================================================

// CacheHooks receives events from cache lookups. keyType is "region",
// "stats" or "artifact".
type CacheHooks interface {
	OnCacheHit(ctx context.Context, keyType string)
	OnCacheMiss(ctx context.Context, keyType string)
	OnCacheSet(ctx context.Context, keyType string, size int)
}

// =============================================================================
// HTTP Hooks
// =============================================================================

// HTTPHooks receives events from the HTTP service. route is the matched
// route pattern, not the raw path.
type HTTPHooks interface {
	OnRequest(ctx context.Context, method, route string)
	OnResponse(ctx context.Context, method, route string, status int, duration time.Duration)
}

// =============================================================================
// No-op Implementations
// =============================================================================

// NoopPipelineHooks ignores every event.
type NoopPipelineHooks struct{}

func (NoopPipelineHooks) OnBuildStart(context.Context, string, int)                          {}
func (NoopPipelineHooks) OnBuildComplete(context.Context, string, int, time.Duration, error) {}
func (NoopPipelineHooks) OnQueryStart(context.Context, string, string)                       {}
func (NoopPipelineHooks) OnQueryComplete(context.Context, string, string, int, time.Duration, error) {
}
func (NoopPipelineHooks) OnRenderStart(context.Context, []string)                          {}
func (NoopPipelineHooks) OnRenderComplete(context.Context, []string, time.Duration, error) {}

// NoopCacheHooks ignores every event.
type NoopCacheHooks struct{}

func (NoopCacheHooks) OnCacheHit(context.Context, string)      {}
func (NoopCacheHooks) OnCacheMiss(context.Context, string)     {}
func (NoopCacheHooks) OnCacheSet(context.Context, string, int) {}

// NoopHTTPHooks ignores every event.
type NoopHTTPHooks struct{}

func (NoopHTTPHooks) OnRequest(context.Context, string, string)                      {}
func (NoopHTTPHooks) OnResponse(context.Context, string, string, int, time.Duration) {}

// =============================================================================
// Registry
// =============================================================================

// hookSet is the installed hooks. It is replaced wholesale, never mutated.
type hookSet struct {
	pipeline PipelineHooks
	cache    CacheHooks
	http     HTTPHooks
}

var (
	hooksMu sync.RWMutex
	current = noopSet()
)

func noopSet() hookSet {
	return hookSet{NoopPipelineHooks{}, NoopCacheHooks{}, NoopHTTPHooks{}}
}

func update(fn func(*hookSet)) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	next := current
	fn(&next)
	current = next
}

func installed() hookSet {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return current
}

// SetPipelineHooks installs pipeline hooks. nil is ignored.
func SetPipelineHooks(h PipelineHooks) {
	if h != nil {
		update(func(s *hookSet) { s.pipeline = h })
	}
}

// SetCacheHooks installs cache hooks. nil is ignored.
func SetCacheHooks(h CacheHooks) {
	if h != nil {
		update(func(s *hookSet) { s.cache = h })
	}
}

// SetHTTPHooks installs HTTP hooks. nil is ignored.
func SetHTTPHooks(h HTTPHooks) {
	if h != nil {
		update(func(s *hookSet) { s.http = h })
	}
}

func Pipeline() PipelineHooks { return installed().pipeline }
func Cache() CacheHooks       { return installed().cache }
func HTTP() HTTPHooks         { return installed().http }

// Reset reinstalls the no-op hooks.
func Reset() {
	update(func(s *hookSet) { *s = noopSet() })
}
