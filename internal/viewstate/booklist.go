package viewstate

import (
	"context"
	"sync"

	"ereader/internal/api"
	"ereader/pkg/outcome"
)

// Catalog is the slice of the repository used by the catalog holders.
type Catalog interface {
	GetBooks(ctx context.Context, q api.BookQuery) outcome.Outcome[api.BookPage]
	GetBook(ctx context.Context, id int) outcome.Outcome[api.Book]
	GetPopularBooks(ctx context.Context, limit int) outcome.Outcome[[]api.Book]
	GetRecentBooks(ctx context.Context, limit int) outcome.Outcome[[]api.Book]
	GetCategories(ctx context.Context) outcome.Outcome[[]api.Category]
}

// Filters narrow the book listing.
type Filters struct {
	Search     string
	CategoryID *int
	SortBy     string
}

// DefaultFilters sorts by title with no search or category.
func DefaultFilters() Filters {
	return Filters{SortBy: api.SortTitle}
}

// BookList is the paginated, filterable catalog.
//
// Every load carries the generation it was issued under. Changing the
// filters starts a new generation, so a response from an older one is
// dropped instead of overwriting or extending the current list. LoadMore is
// refused while any load is in flight, which keeps pages from being fetched
// twice or appended out of order.
type BookList struct {
	tracker
	catalog  Catalog
	pageSize int

	Books    *Observable[[]api.Book]
	HasMore  *Observable[bool]
	Filters  *Observable[Filters]
	Selected *Observable[*api.Book]

	mu      sync.Mutex
	gen     uint64
	page    int
	loading int
}

func NewBookList(catalog Catalog, pageSize int, opts ...Option) *BookList {
	if pageSize <= 0 {
		pageSize = 20
	}
	return &BookList{
		tracker:  newTracker(opts),
		catalog:  catalog,
		pageSize: pageSize,
		Books:    NewObservable[[]api.Book](nil),
		HasMore:  NewObservable(false),
		Filters:  NewObservable(DefaultFilters()),
		Selected: NewObservable[*api.Book](nil),
	}
}

// Load replaces the list with the first page under the current filters.
func (l *BookList) Load(ctx context.Context) {
	l.remember(l.Load)
	l.fetch(ctx, 1, false)
}

// Search sets the search text and reloads from the first page.
func (l *BookList) Search(ctx context.Context, query string) {
	l.Filters.Update(func(f Filters) Filters {
		f.Search = query
		return f
	})
	l.Load(ctx)
}

// FilterByCategory sets or, with nil, clears the category filter.
func (l *BookList) FilterByCategory(ctx context.Context, categoryID *int) {
	l.Filters.Update(func(f Filters) Filters {
		f.CategoryID = categoryID
		return f
	})
	l.Load(ctx)
}

func (l *BookList) SortBy(ctx context.Context, key string) {
	l.Filters.Update(func(f Filters) Filters {
		f.SortBy = key
		return f
	})
	l.Load(ctx)
}

func (l *BookList) ClearFilters(ctx context.Context) {
	l.Filters.Set(DefaultFilters())
	l.Load(ctx)
}

// LoadMore appends the next page. It returns false without a request when
// there is no next page or a load is already in flight.
func (l *BookList) LoadMore(ctx context.Context) bool {
	l.mu.Lock()
	if l.loading > 0 || !l.HasMore.Get() {
		l.mu.Unlock()
		return false
	}
	next := l.page + 1
	l.mu.Unlock()

	l.remember(func(ctx context.Context) { l.fetch(ctx, next, true) })
	return l.fetch(ctx, next, true)
}

// Page is the last page applied to the list.
func (l *BookList) Page() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.page
}

// fetch loads page and reports whether the result was applied.
func (l *BookList) fetch(ctx context.Context, page int, appendPage bool) bool {
	l.mu.Lock()
	if appendPage && (l.loading > 0 || l.page != page-1 || !l.HasMore.Get()) {
		l.mu.Unlock()
		return false
	}
	if !appendPage {
		// The cursor belongs to the previous query until page 1 lands.
		l.gen++
		l.page = 0
		l.HasMore.Set(false)
	}
	gen := l.gen
	l.loading++
	l.mu.Unlock()

	f := l.Filters.Get()
	q := api.BookQuery{
		Search:     f.Search,
		CategoryID: f.CategoryID,
		SortBy:     f.SortBy,
		Page:       page,
		PageSize:   l.pageSize,
	}

	l.begin()
	o := l.catalog.GetBooks(ctx, q)

	l.mu.Lock()
	l.loading--
	if gen != l.gen {
		l.mu.Unlock()
		l.metrics.RecordStaleResponse()
		l.logger.DebugContext(ctx, "dropped stale book page", "page", page, "generation", gen)
		l.end("", "")
		return false
	}
	result, ok := o.Value()
	if ok {
		l.page = result.Pagination.CurrentPage
		if l.page == 0 {
			l.page = page
		}
		l.Books.Update(func(books []api.Book) []api.Book {
			if !appendPage {
				return result.Books
			}
			merged := make([]api.Book, 0, len(books)+len(result.Books))
			merged = append(merged, books...)
			return append(merged, result.Books...)
		})
		l.HasMore.Set(result.Pagination.HasNextPage)
	}
	l.mu.Unlock()

	endWith(&l.tracker, o, "")
	return ok
}

// Select loads a book's details into Selected.
func (l *BookList) Select(ctx context.Context, id int) {
	l.remember(func(ctx context.Context) { l.Select(ctx, id) })
	l.begin()
	o := l.catalog.GetBook(ctx, id)
	if book, ok := o.Value(); ok {
		l.Selected.Set(&book)
	}
	endWith(&l.tracker, o, "")
}

func (l *BookList) ClearSelected() {
	l.Selected.Set(nil)
}
