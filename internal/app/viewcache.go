package app

import (
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/klabast/wb-services/plaza/internal/render"
)

const (
	viewKeyFull    = "view:full"
	viewKeyPreview = "view:preview"
)

// ViewCache keeps rendered views until the collection changes. Each
// Invalidate starts a new generation; views rendered from data loaded in
// an older generation are not stored.
type ViewCache struct {
	store *gocache.Cache

	mu  sync.Mutex
	gen uint64
}

// NewViewCache creates a cache whose entries expire after ttl even when
// no change notification arrives.
func NewViewCache(ttl time.Duration) *ViewCache {
	return &ViewCache{store: gocache.New(ttl, 2*ttl)}
}

func viewKey(preview bool) string {
	if preview {
		return viewKeyPreview
	}
	return viewKeyFull
}

// Get returns the cached view
func (c *ViewCache) Get(preview bool) (render.View, bool) {
	v, ok := c.store.Get(viewKey(preview))
	if !ok {
		return render.View{}, false
	}
	view, ok := v.(render.View)
	return view, ok
}

// Generation returns the current generation, to be read before loading
// the data a view is rendered from.
func (c *ViewCache) Generation() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gen
}

// SetIfCurrent stores a view only when no Invalidate happened since gen
func (c *ViewCache) SetIfCurrent(preview bool, view render.View, gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen {
		return false
	}
	c.store.Set(viewKey(preview), view, gocache.DefaultExpiration)
	return true
}

// Invalidate drops every cached view
func (c *ViewCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	c.store.Flush()
}
