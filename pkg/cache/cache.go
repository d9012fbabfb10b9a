// Package cache stores computed visibility results and rendered artifacts.
//
// Entries are opaque byte slices addressed by string keys. Keys are derived
// by a Keyer from the scene fingerprint, the observer position and every
// option that affects the output, so a hit is always safe to reuse.
//
// Three backends are provided:
//   - NullCache: never stores anything (caching disabled)
//   - FileCache: JSON entry files below a directory, for the CLI
//   - RedisCache: a shared Redis instance, for the HTTP service
package cache

import (
	"context"
	"fmt"
	"time"
)

// Cache is a key/value store with per-entry expiration.
type Cache interface {
	// Get returns the stored value and whether it was found.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores a value. A ttl of zero means no expiration.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Delete removes a value. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases backend resources.
	Close() error
}

// Default entry lifetimes.
const (
	// TTLResult is the lifetime of a computed visibility region.
	TTLResult = 7 * 24 * time.Hour

	// TTLArtifact is the lifetime of a rendered artifact.
	TTLArtifact = 7 * 24 * time.Hour

	// TTLStats is the lifetime of cached triangulation statistics.
	TTLStats = 30 * 24 * time.Hour
)

// RegionKeyOpts holds the options that change a visibility region.
type RegionKeyOpts struct {
	StepLimit  int  `json:"step_limit"`
	Regularize bool `json:"regularize"`
}

// ArtifactKeyOpts holds the options that change a rendered artifact.
type ArtifactKeyOpts struct {
	Format string  `json:"format"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	Labels bool    `json:"labels"`
}

// Keyer derives cache keys.
type Keyer interface {
	// RegionKey addresses the region seen from observer in a scene.
	RegionKey(sceneHash, observer string, opts RegionKeyOpts) string

	// StatsKey addresses the triangulation statistics of a scene.
	StatsKey(sceneHash string) string

	// ArtifactKey addresses a rendering of a set of regions.
	ArtifactKey(resultHash string, opts ArtifactKeyOpts) string
}

// DefaultKeyer produces keys of the form "kind:sha256".
type DefaultKeyer struct{}

// NewDefaultKeyer returns the default keyer.
func NewDefaultKeyer() Keyer { return DefaultKeyer{} }

// RegionKey implements Keyer.
func (DefaultKeyer) RegionKey(sceneHash, observer string, opts RegionKeyOpts) string {
	return hashKey("region", sceneHash, observer, opts)
}

// StatsKey implements Keyer.
func (DefaultKeyer) StatsKey(sceneHash string) string {
	return fmt.Sprintf("stats:%s", sceneHash)
}

// ArtifactKey implements Keyer.
func (DefaultKeyer) ArtifactKey(resultHash string, opts ArtifactKeyOpts) string {
	return hashKey("artifact", resultHash, opts)
}
