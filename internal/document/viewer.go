package document

import (
	"container/list"
	"context"
	"fmt"
	"image"
	"math"
	"sync"

	"ereader/internal/sentinel"
)

const (
	MinZoom       = 1.0
	MaxZoom       = 5.0
	DoubleTapZoom = 2.5

	defaultCachePages = 6
)

// Renderer decodes and rasterizes one document. It is owned by a single
// Viewer and closed by it.
type Renderer interface {
	PageCount() int
	RenderPage(ctx context.Context, index int, scale float64) (image.Image, error)
	Close() error
}

// Direction of a swipe gesture, named after the finger movement.
type Direction int

const (
	SwipeLeft Direction = iota
	SwipeRight
)

// State is a snapshot of the viewer.
type State struct {
	Page      int // zero-based
	PageCount int
	Zoom      float64
	OffsetX   float64
	OffsetY   float64
}

// Viewer tracks the current page, zoom and pan of an open document and
// caches rendered pages. Offsets are fractions of the page size and stay
// within the area the zoomed page overflows.
type Viewer struct {
	mu       sync.Mutex
	renderer Renderer
	state    State
	cache    *pageCache
	closed   bool

	closeOnce sync.Once
	closeErr  error
}

type ViewerOption func(*Viewer)

// WithCachePages bounds how many rendered pages are kept.
func WithCachePages(n int) ViewerOption {
	return func(v *Viewer) {
		if n > 0 {
			v.cache = newPageCache(n)
		}
	}
}

// WithStartPage opens the document at page (zero-based), clamped to range.
func WithStartPage(page int) ViewerOption {
	return func(v *Viewer) {
		v.state.Page = clampInt(page, 0, v.state.PageCount-1)
	}
}

// NewViewer takes ownership of r. A document without pages is rejected and
// r is closed.
func NewViewer(r Renderer, opts ...ViewerOption) (*Viewer, error) {
	count := r.PageCount()
	if count <= 0 {
		_ = r.Close()
		return nil, fmt.Errorf("document has no pages: %w", sentinel.ErrCorrupt)
	}
	v := &Viewer{
		renderer: r,
		state:    State{PageCount: count, Zoom: MinZoom},
		cache:    newPageCache(defaultCachePages),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v, nil
}

func (v *Viewer) State() State {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.state
}

// Next moves one page forward and reports whether the page changed.
func (v *Viewer) Next() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.turnTo(v.state.Page + 1)
}

func (v *Viewer) Prev() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.turnTo(v.state.Page - 1)
}

// GoTo jumps to a zero-based page.
func (v *Viewer) GoTo(page int) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if page < 0 || page >= v.state.PageCount {
		return fmt.Errorf("page %d of %d: %w", page+1, v.state.PageCount, sentinel.ErrInvalidInput)
	}
	v.turnTo(page)
	return nil
}

// turnTo must be called with mu held. Turning the page resets zoom.
func (v *Viewer) turnTo(page int) bool {
	if page < 0 || page >= v.state.PageCount || page == v.state.Page {
		return false
	}
	v.state.Page = page
	v.setZoom(MinZoom)
	return true
}

// SetZoom sets the zoom factor, clamped to [MinZoom, MaxZoom].
func (v *Viewer) SetZoom(factor float64) float64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.setZoom(factor)
}

func (v *Viewer) setZoom(factor float64) float64 {
	if math.IsNaN(factor) {
		factor = MinZoom
	}
	v.state.Zoom = math.Min(MaxZoom, math.Max(MinZoom, factor))
	v.clampOffset()
	return v.state.Zoom
}

// Pinch scales the current zoom by scale.
func (v *Viewer) Pinch(scale float64) float64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	if scale <= 0 {
		return v.state.Zoom
	}
	return v.setZoom(v.state.Zoom * scale)
}

// DoubleTap toggles between fit-to-page and DoubleTapZoom.
func (v *Viewer) DoubleTap() float64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.state.Zoom > MinZoom {
		return v.setZoom(MinZoom)
	}
	return v.setZoom(DoubleTapZoom)
}

// Pan moves the visible area of a zoomed page. It has no effect at MinZoom.
func (v *Viewer) Pan(dx, dy float64) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.state.OffsetX += dx
	v.state.OffsetY += dy
	v.clampOffset()
}

func (v *Viewer) clampOffset() {
	limit := (v.state.Zoom - MinZoom) / 2
	v.state.OffsetX = math.Min(limit, math.Max(-limit, v.state.OffsetX))
	v.state.OffsetY = math.Min(limit, math.Max(-limit, v.state.OffsetY))
}

// Swipe turns the page when the document is not zoomed; a swipe on a
// zoomed page is a pan and is left to Pan. A left swipe moves forward.
func (v *Viewer) Swipe(dir Direction) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.state.Zoom > MinZoom {
		return false
	}
	if dir == SwipeLeft {
		return v.turnTo(v.state.Page + 1)
	}
	return v.turnTo(v.state.Page - 1)
}

// Render returns the current page at the current zoom, from cache when
// possible.
func (v *Viewer) Render(ctx context.Context) (image.Image, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return nil, fmt.Errorf("render: %w", sentinel.ErrClosed)
	}
	key := pageKey{page: v.state.Page, zoom: v.state.Zoom}
	if img, ok := v.cache.get(key); ok {
		return img, nil
	}
	img, err := v.renderer.RenderPage(ctx, key.page, key.zoom)
	if err != nil {
		return nil, fmt.Errorf("render page %d: %w", key.page+1, err)
	}
	v.cache.put(key, img)
	return img, nil
}

// Cached reports how many rendered pages are held.
func (v *Viewer) Cached() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.cache.len()
}

// Close drops the cache and releases the renderer. Only the first call
// reaches the renderer; later calls return its result again.
func (v *Viewer) Close() error {
	v.closeOnce.Do(func() {
		v.mu.Lock()
		v.closed = true
		v.cache.clear()
		v.mu.Unlock()
		if err := v.renderer.Close(); err != nil {
			v.closeErr = fmt.Errorf("close renderer: %w", err)
		}
	})
	return v.closeErr
}

type pageKey struct {
	page int
	zoom float64
}

type pageEntry struct {
	key pageKey
	img image.Image
}

// pageCache is a fixed-size LRU of rendered pages.
type pageCache struct {
	capacity int
	order    *list.List
	entries  map[pageKey]*list.Element
}

func newPageCache(capacity int) *pageCache {
	return &pageCache{
		capacity: capacity,
		order:    list.New(),
		entries:  make(map[pageKey]*list.Element),
	}
}

func (c *pageCache) get(k pageKey) (image.Image, bool) {
	el, ok := c.entries[k]
	if !ok {
		return nil, false
	}
	c.order.MoveToFront(el)
	return el.Value.(*pageEntry).img, true
}

func (c *pageCache) put(k pageKey, img image.Image) {
	if el, ok := c.entries[k]; ok {
		el.Value.(*pageEntry).img = img
		c.order.MoveToFront(el)
		return
	}
	c.entries[k] = c.order.PushFront(&pageEntry{key: k, img: img})
	for c.order.Len() > c.capacity {
		oldest := c.order.Back()
		c.order.Remove(oldest)
		delete(c.entries, oldest.Value.(*pageEntry).key)
	}
}

func (c *pageCache) len() int {
	return c.order.Len()
}

func (c *pageCache) clear() {
	c.order.Init()
	clear(c.entries)
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
