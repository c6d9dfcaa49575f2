package document

import (
	"context"
	"errors"
	"image"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ereader/internal/sentinel"
	"ereader/pkg/testutil"
)

type fakeRenderer struct {
	mu       sync.Mutex
	pages    int
	renders  int
	closes   int
	closeErr error
}

func (f *fakeRenderer) PageCount() int { return f.pages }

func (f *fakeRenderer) RenderPage(_ context.Context, index int, scale float64) (image.Image, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.renders++
	return image.NewGray(image.Rect(0, 0, int(10*scale), index+1)), nil
}

func (f *fakeRenderer) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closes++
	return f.closeErr
}

func TestViewerRejectsEmptyDocument(t *testing.T) {
	r := &fakeRenderer{}
	_, err := NewViewer(r)
	assert.ErrorIs(t, err, sentinel.ErrCorrupt)
	assert.Equal(t, 1, r.closes)
}

func TestViewerNavigation(t *testing.T) {
	v, err := NewViewer(&fakeRenderer{pages: 3}, WithStartPage(9))
	require.NoError(t, err)
	assert.Equal(t, 2, v.State().Page, "start page clamped")

	assert.False(t, v.Next(), "already on the last page")
	assert.True(t, v.Prev())
	assert.True(t, v.Prev())
	assert.False(t, v.Prev())
	assert.Equal(t, 0, v.State().Page)

	require.NoError(t, v.GoTo(2))
	assert.ErrorIs(t, v.GoTo(3), sentinel.ErrInvalidInput)
	assert.ErrorIs(t, v.GoTo(-1), sentinel.ErrInvalidInput)
	assert.Equal(t, 2, v.State().Page)
}

func TestViewerZoom(t *testing.T) {
	v, err := NewViewer(&fakeRenderer{pages: 2})
	require.NoError(t, err)

	assert.Equal(t, MaxZoom, v.SetZoom(12))
	assert.Equal(t, MinZoom, v.SetZoom(0.2))
	assert.Equal(t, 2.0, v.Pinch(2))
	assert.Equal(t, 2.0, v.Pinch(-1), "invalid scale ignored")
	assert.Equal(t, MaxZoom, v.Pinch(10))

	assert.Equal(t, MinZoom, v.DoubleTap(), "zoomed page returns to fit")
	assert.Equal(t, DoubleTapZoom, v.DoubleTap())
	assert.Equal(t, MinZoom, v.DoubleTap())
}

func TestViewerPanStaysInsidePage(t *testing.T) {
	v, err := NewViewer(&fakeRenderer{pages: 2})
	require.NoError(t, err)

	v.Pan(0.3, 0.3)
	assert.Zero(t, v.State().OffsetX, "nothing to pan at fit zoom")

	v.SetZoom(3)
	v.Pan(5, -5)
	s := v.State()
	assert.Equal(t, 1.0, s.OffsetX)
	assert.Equal(t, -1.0, s.OffsetY)

	v.SetZoom(2)
	assert.Equal(t, 0.5, v.State().OffsetX, "zooming out pulls the offset back in")
}

func TestViewerSwipe(t *testing.T) {
	v, err := NewViewer(&fakeRenderer{pages: 3})
	require.NoError(t, err)

	assert.True(t, v.Swipe(SwipeLeft))
	assert.Equal(t, 1, v.State().Page)
	assert.True(t, v.Swipe(SwipeRight))
	assert.Equal(t, 0, v.State().Page)

	v.DoubleTap()
	assert.False(t, v.Swipe(SwipeLeft), "a zoomed page pans instead")
	assert.Equal(t, 0, v.State().Page)

	require.NoError(t, v.GoTo(1))
	assert.Equal(t, MinZoom, v.State().Zoom, "turning the page resets zoom")
}

func TestViewerRenderCache(t *testing.T) {
	ctx := context.Background()
	r := &fakeRenderer{pages: 10}
	v, err := NewViewer(r, WithCachePages(2))
	require.NoError(t, err)

	first, err := v.Render(ctx)
	require.NoError(t, err)
	again, err := v.Render(ctx)
	require.NoError(t, err)
	assert.Same(t, first, again)
	assert.Equal(t, 1, r.renders)

	v.SetZoom(2)
	_, err = v.Render(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, r.renders, "zoom is part of the cache key")

	v.Next()
	_, err = v.Render(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, v.Cached())

	v.Prev()
	_, err = v.Render(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, r.renders, "page 1 at 1x was evicted")
}

func TestViewerCloseOnce(t *testing.T) {
	r := &fakeRenderer{pages: 1, closeErr: errors.New("handle busy")}
	v, err := NewViewer(r)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for range 5 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.Error(t, v.Close())
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, r.closes)
	_, err = v.Render(context.Background())
	assert.ErrorIs(t, err, sentinel.ErrClosed)
	assert.Zero(t, v.Cached())
}

func TestFileRenderer(t *testing.T) {
	path := filepath.Join(t.TempDir(), "book.pdf")
	require.NoError(t, os.WriteFile(path, testutil.SamplePDF(4), 0o600))

	r, err := OpenFile(path)
	require.NoError(t, err)
	assert.Equal(t, 4, r.PageCount())

	img, err := r.RenderPage(context.Background(), 3, 2)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 600, 800), img.Bounds())

	_, err = r.RenderPage(context.Background(), 4, 1)
	assert.ErrorIs(t, err, sentinel.ErrInvalidInput)

	v, err := NewViewer(r)
	require.NoError(t, err)
	require.NoError(t, v.Close())
	require.NoError(t, v.Close())
}

func TestOpenFileRejectsNonPDF(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte("plain text"), 0o600))

	_, err := OpenFile(path)
	assert.ErrorIs(t, err, sentinel.ErrCorrupt)
}
