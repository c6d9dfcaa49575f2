package viewstate

import (
	"context"
	"sync"

	"ereader/internal/api"
	"ereader/pkg/outcome"

	dErrors "ereader/pkg/domain-errors"
)

// fakeCatalog answers GetBooks from a function so tests can hold responses
// back and release them in any order.
type fakeCatalog struct {
	mu      sync.Mutex
	queries []api.BookQuery

	books      func(ctx context.Context, q api.BookQuery) outcome.Outcome[api.BookPage]
	book       outcome.Outcome[api.Book]
	popular    outcome.Outcome[[]api.Book]
	recent     outcome.Outcome[[]api.Book]
	categories outcome.Outcome[[]api.Category]
}

func (f *fakeCatalog) GetBooks(ctx context.Context, q api.BookQuery) outcome.Outcome[api.BookPage] {
	f.mu.Lock()
	f.queries = append(f.queries, q)
	f.mu.Unlock()
	return f.books(ctx, q)
}

func (f *fakeCatalog) calls() []api.BookQuery {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]api.BookQuery(nil), f.queries...)
}

func (f *fakeCatalog) GetBook(context.Context, int) outcome.Outcome[api.Book] {
	return f.book
}

func (f *fakeCatalog) GetPopularBooks(context.Context, int) outcome.Outcome[[]api.Book] {
	return f.popular
}

func (f *fakeCatalog) GetRecentBooks(context.Context, int) outcome.Outcome[[]api.Book] {
	return f.recent
}

func (f *fakeCatalog) GetCategories(context.Context) outcome.Outcome[[]api.Category] {
	return f.categories
}

// pageOf builds page n of a catalog of total books, titled "<prefix>-<id>".
func pageOf(prefix string, n, size, total int) api.BookPage {
	var books []api.Book
	for id := (n-1)*size + 1; id <= n*size && id <= total; id++ {
		books = append(books, api.Book{ID: id, Title: prefix + "-" + api.ID(id)})
	}
	pages := (total + size - 1) / size
	return api.BookPage{
		Books: books,
		Pagination: api.Pagination{
			CurrentPage:     n,
			PageSize:        size,
			TotalItems:      total,
			TotalPages:      pages,
			HasNextPage:     n < pages,
			HasPreviousPage: n > 1,
		},
	}
}

func serverDown[T any]() outcome.Outcome[T] {
	return outcome.Fail[T](dErrors.CodeServerError, "Server error. Please try again later. (Error 503)")
}
