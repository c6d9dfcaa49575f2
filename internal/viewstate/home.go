package viewstate

import (
	"context"

	"golang.org/x/sync/errgroup"

	"ereader/internal/api"
)

// HomeLimit is how many popular and recent books the home screen shows.
const HomeLimit = 10

// Home holds the landing screen's popular and recent books and the category
// list. A section that fails to load keeps its previous content and reports
// nothing.
type Home struct {
	tracker
	catalog Catalog

	Popular    *Observable[[]api.Book]
	Recent     *Observable[[]api.Book]
	Categories *Observable[[]api.Category]
}

func NewHome(catalog Catalog, opts ...Option) *Home {
	return &Home{
		tracker:    newTracker(opts),
		catalog:    catalog,
		Popular:    NewObservable[[]api.Book](nil),
		Recent:     NewObservable[[]api.Book](nil),
		Categories: NewObservable[[]api.Category](nil),
	}
}

// Load fetches the three sections concurrently.
func (h *Home) Load(ctx context.Context) {
	h.remember(h.Load)
	h.begin()
	defer h.end("", "")

	var g errgroup.Group
	g.Go(func() error {
		o := h.catalog.GetPopularBooks(ctx, HomeLimit)
		if books, ok := o.Value(); ok {
			h.Popular.Set(books)
		} else {
			h.logger.DebugContext(ctx, "popular books unavailable", "reason", o.Message())
		}
		return nil
	})
	g.Go(func() error {
		o := h.catalog.GetRecentBooks(ctx, HomeLimit)
		if books, ok := o.Value(); ok {
			h.Recent.Set(books)
		} else {
			h.logger.DebugContext(ctx, "recent books unavailable", "reason", o.Message())
		}
		return nil
	})
	g.Go(func() error {
		o := h.catalog.GetCategories(ctx)
		if categories, ok := o.Value(); ok {
			h.Categories.Set(categories)
		} else {
			h.logger.DebugContext(ctx, "categories unavailable", "reason", o.Message())
		}
		return nil
	})
	_ = g.Wait()
}
