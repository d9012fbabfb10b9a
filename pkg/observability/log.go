package observability

import (
	"context"
	"time"

	"github.com/charmbracelet/log"
)

// LogHooks writes every event to a logger at debug level, and failures at
// warn level. It implements all three hook interfaces.
type LogHooks struct {
	logger *log.Logger
}

// NewLogHooks returns hooks logging to l, or to the default logger.
func NewLogHooks(l *log.Logger) *LogHooks {
	if l == nil {
		l = log.Default()
	}
	return &LogHooks{logger: l.WithPrefix("hooks")}
}

func (h *LogHooks) OnBuildStart(_ context.Context, scene string, edges int) {
	h.logger.Debug("build start", "scene", short(scene), "edges", edges)
}

func (h *LogHooks) OnBuildComplete(_ context.Context, scene string, faces int, d time.Duration, err error) {
	if err != nil {
		h.logger.Warn("build failed", "scene", short(scene), "err", err)
		return
	}
	h.logger.Debug("build done", "scene", short(scene), "faces", faces, "duration", d)
}

func (h *LogHooks) OnQueryStart(_ context.Context, scene, observer string) {
	h.logger.Debug("query start", "scene", short(scene), "observer", observer)
}

func (h *LogHooks) OnQueryComplete(_ context.Context, scene, observer string, vertices int, d time.Duration, err error) {
	if err != nil {
		h.logger.Warn("query failed", "scene", short(scene), "observer", observer, "err", err)
		return
	}
	h.logger.Debug("query done", "scene", short(scene), "observer", observer, "vertices", vertices, "duration", d)
}

func (h *LogHooks) OnRenderStart(_ context.Context, formats []string) {
	h.logger.Debug("render start", "formats", formats)
}

func (h *LogHooks) OnRenderComplete(_ context.Context, formats []string, d time.Duration, err error) {
	if err != nil {
		h.logger.Warn("render failed", "formats", formats, "err", err)
		return
	}
	h.logger.Debug("render done", "formats", formats, "duration", d)
}

func (h *LogHooks) OnCacheHit(_ context.Context, keyType string) {
	h.logger.Debug("cache hit", "type", keyType)
}

func (h *LogHooks) OnCacheMiss(_ context.Context, keyType string) {
	h.logger.Debug("cache miss", "type", keyType)
}

func (h *LogHooks) OnCacheSet(_ context.Context, keyType string, size int) {
	h.logger.Debug("cache set", "type", keyType, "bytes", size)
}

func (h *LogHooks) OnRequest(_ context.Context, method, route string) {
	h.logger.Debug("request", "method", method, "route", route)
}

func (h *LogHooks) OnResponse(_ context.Context, method, route string, status int, d time.Duration) {
	h.logger.Info("response", "method", method, "route", route, "status", status, "duration", d)
}

// short truncates fingerprints for log output.
func short(s string) string {
	if len(s) > 12 {
		return s[:12]
	}
	return s
}

var (
	_ PipelineHooks = (*LogHooks)(nil)
	_ CacheHooks    = (*LogHooks)(nil)
	_ HTTPHooks     = (*LogHooks)(nil)
)
