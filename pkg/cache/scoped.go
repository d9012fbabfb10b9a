package cache

// ScopedKeyer prefixes every key of an inner Keyer, so that several
// deployments can share one Redis instance.
//
//	keyer := NewScopedKeyer(nil, "staging:")
type ScopedKeyer struct {
	inner  Keyer
	prefix string
}

// NewScopedKeyer wraps inner, or the default keyer when inner is nil.
func NewScopedKeyer(inner Keyer, prefix string) Keyer {
	if inner == nil {
		inner = NewDefaultKeyer()
	}
	return &ScopedKeyer{inner: inner, prefix: prefix}
}

// RegionKey implements Keyer.
func (k *ScopedKeyer) RegionKey(sceneHash, observer string, opts RegionKeyOpts) string {
	return k.prefix + k.inner.RegionKey(sceneHash, observer, opts)
}

// StatsKey implements Keyer.
func (k *ScopedKeyer) StatsKey(sceneHash string) string {
	return k.prefix + k.inner.StatsKey(sceneHash)
}

// ArtifactKey implements Keyer.
func (k *ScopedKeyer) ArtifactKey(resultHash string, opts ArtifactKeyOpts) string {
	return k.prefix + k.inner.ArtifactKey(resultHash, opts)
}
