package assets

import (
	"log"
	"sync"
)

// Config caps the resolver caches. Zero means unlimited.
type Config struct {
	MaxLayerCacheSize   int
	MaxAtlasCacheSize   int
	MaxTextureCacheSize int
}

type entry[T any] struct {
	state AssetState
	req   RequestID
	value T
}

type cache[T any] struct {
	name     string
	max      int
	entries  map[string]*entry[T]
	rejected int
	warned   bool
}

func newCache[T any](name string, max int) *cache[T] {
	return &cache[T]{name: name, max: max, entries: make(map[string]*entry[T])}
}

// admit creates a Loading entry for key, or reports false when full.
func (c *cache[T]) admit(key string, start func() RequestID) bool {
	if c.max > 0 && len(c.entries) >= c.max {
		c.rejected++
		if !c.warned {
			log.Printf("assets: %s cache full (%d entries), refusing %q: %v", c.name, c.max, key, ErrCacheFull)
			c.warned = true
		}
		return false
	}
	c.entries[key] = &entry[T]{state: StateLoading, req: start()}
	return true
}

func (c *cache[T]) counts() StateCounts {
	var sc StateCounts
	for _, e := range c.entries {
		switch e.state {
		case StateLoading:
			sc.Loading++
		case StateReady:
			sc.Ready++
		case StateError:
			sc.Error++
		}
	}
	sc.Rejected = c.rejected
	return sc
}

// Resolver owns the metadata and texture caches. Every entry is retained
// until Close; failed entries are never fetched again.
type Resolver struct {
	mu       sync.Mutex
	api      Endpoints
	fetch    Fetcher
	closed   bool
	layers   *cache[*ObjectLayerMeta]
	atlases  *cache[*AtlasMeta]
	textures *cache[Texture]
	texBytes int64

	// decode is swapped in tests.
	decode func([]byte) (Texture, error)
}

// NewResolver returns a resolver fetching from api through f.
func NewResolver(api Endpoints, f Fetcher, cfg Config) *Resolver {
	return &Resolver{
		api:      api,
		fetch:    f,
		layers:   newCache[*ObjectLayerMeta]("object layer", cfg.MaxLayerCacheSize),
		atlases:  newCache[*AtlasMeta]("atlas", cfg.MaxAtlasCacheSize),
		textures: newCache[Texture]("texture", cfg.MaxTextureCacheSize),
		decode:   decodeTexture,
	}
}

// GetOrFetchObjectLayer returns the object-layer metadata for itemID once it
// is available. The first call starts the fetch.
func (r *Resolver) GetOrFetchObjectLayer(itemID string) (*ObjectLayerMeta, bool) {
	if itemID == "" {
		return nil, false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, false
	}
	e, ok := r.layers.entries[itemID]
	if !ok {
		r.layers.admit(itemID, func() RequestID {
			return r.fetch.Start(Request{URL: r.api.ObjectLayerURL(itemID)})
		})
		return nil, false
	}
	switch e.state {
	case StateReady:
		return e.value, true
	case StateLoading:
		data, done := r.collect(e.req, "object layer", itemID)
		if !done {
			return nil, false
		}
		if data == nil {
			e.state = StateError
			return nil, false
		}
		meta, err := ParseObjectLayer(data)
		if err != nil {
			log.Printf("assets: object layer %q: %v", itemID, err)
			e.state = StateError
			return nil, false
		}
		e.state, e.value = StateReady, meta
		return meta, true
	}
	return nil, false
}

// GetOrFetchAtlas returns the atlas metadata for itemKey once it is
// available. When the metadata arrives the texture fetch for its file is
// started as well.
func (r *Resolver) GetOrFetchAtlas(itemKey string) (*AtlasMeta, bool) {
	if itemKey == "" {
		return nil, false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, false
	}
	e, ok := r.atlases.entries[itemKey]
	if !ok {
		r.atlases.admit(itemKey, func() RequestID {
			return r.fetch.Start(Request{URL: r.api.AtlasURL(itemKey)})
		})
		return nil, false
	}
	switch e.state {
	case StateReady:
		return e.value, true
	case StateLoading:
		data, done := r.collect(e.req, "atlas", itemKey)
		if !done {
			return nil, false
		}
		if data == nil {
			e.state = StateError
			return nil, false
		}
		meta, err := ParseAtlas(data)
		if err != nil {
			log.Printf("assets: atlas %q: %v", itemKey, err)
			e.state = StateError
			return nil, false
		}
		e.state, e.value = StateReady, meta
		r.textureLocked(meta.AtlasFileID)
		return meta, true
	}
	return nil, false
}

// GetAtlasTexture returns the uploaded raster for fileID when it is ready.
// It never blocks; each call advances the entry's state.
func (r *Resolver) GetAtlasTexture(fileID string) (Texture, bool) {
	if fileID == "" {
		return nil, false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, false
	}
	return r.textureLocked(fileID)
}

func (r *Resolver) textureLocked(fileID string) (Texture, bool) {
	e, ok := r.textures.entries[fileID]
	if !ok {
		r.textures.admit(fileID, func() RequestID {
			return r.fetch.Start(Request{URL: r.api.BlobURL(fileID)})
		})
		return nil, false
	}
	switch e.state {
	case StateReady:
		return e.value, true
	case StateLoading:
		data, done := r.collect(e.req, "texture", fileID)
		if !done {
			return nil, false
		}
		if data == nil {
			e.state = StateError
			return nil, false
		}
		tex, err := r.decode(data)
		if err != nil || tex == nil {
			log.Printf("assets: texture %q: %v", fileID, err)
			e.state = StateError
			return nil, false
		}
		e.state, e.value = StateReady, tex
		r.texBytes += textureBytes(tex)
		return tex, true
	}
	return nil, false
}

// collect polls req. done is false while pending; data is nil on failure.
func (r *Resolver) collect(req RequestID, kind, key string) (data []byte, done bool) {
	res := r.fetch.Poll(req)
	switch res.Status {
	case FetchPending:
		return nil, false
	case FetchReady:
		if len(res.Data) == 0 {
			log.Printf("assets: %s %q: %v", kind, key, ErrEmptyResult)
			return nil, true
		}
		return res.Data, true
	}
	log.Printf("assets: %s %q: %v", kind, key, res.Err)
	return nil, true
}

// TextureState reports the state of a texture entry, StateIdle when absent.
func (r *Resolver) TextureState(fileID string) AssetState {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.textures.entries[fileID]; ok {
		return e.state
	}
	return StateIdle
}

// ObjectLayerState reports the state of an object-layer entry without
// starting a fetch.
func (r *Resolver) ObjectLayerState(itemID string) AssetState {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.layers.entries[itemID]; ok {
		return e.state
	}
	return StateIdle
}

// AtlasState reports the state of an atlas entry without starting a fetch.
func (r *Resolver) AtlasState(itemKey string) AssetState {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.atlases.entries[itemKey]; ok {
		return e.state
	}
	return StateIdle
}

// StateCounts tallies entries of one cache by state.
type StateCounts struct {
	Loading  int
	Ready    int
	Error    int
	Rejected int
}

// Total returns the number of entries held.
func (s StateCounts) Total() int {
	return s.Loading + s.Ready + s.Error
}

// CacheStats summarises the resolver caches.
type CacheStats struct {
	Layers       StateCounts
	Atlases      StateCounts
	Textures     StateCounts
	TextureBytes int64
}

// Stats returns current cache counts.
func (r *Resolver) Stats() CacheStats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return CacheStats{
		Layers:       r.layers.counts(),
		Atlases:      r.atlases.counts(),
		Textures:     r.textures.counts(),
		TextureBytes: r.texBytes,
	}
}

// Close releases every ready texture, abandons outstanding fetches and
// empties the caches. Later lookups report nothing available.
func (r *Resolver) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.closed = true
	for _, e := range r.textures.entries {
		if e.state == StateReady && e.value != nil {
			e.value.Deallocate()
		}
	}
	r.fetch.Close()
	r.layers = newCache[*ObjectLayerMeta](r.layers.name, r.layers.max)
	r.atlases = newCache[*AtlasMeta](r.atlases.name, r.atlases.max)
	r.textures = newCache[Texture](r.textures.name, r.textures.max)
	r.texBytes = 0
}
