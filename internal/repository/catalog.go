package repository

import (
	"context"

	"ereader/internal/api"
	"ereader/internal/api/client"
	"ereader/pkg/outcome"
)

// DefaultPageSize is used when a BookQuery leaves PageSize unset.
const DefaultPageSize = 20

// GetBooks returns one page of the catalog. A zero Page or PageSize selects
// the first page or the default size.
func (r *Repository) GetBooks(ctx context.Context, q api.BookQuery) outcome.Outcome[api.BookPage] {
	if q.Page == 0 {
		q.Page = 1
	}
	if q.PageSize == 0 {
		q.PageSize = DefaultPageSize
	}
	if o, ok := validated[api.BookPage](q); !ok {
		return o
	}
	req := client.Request{Endpoint: api.ListBooks, Query: q.Values()}
	return invoke(ctx, r, req, "Failed to fetch books", bookPage(q))
}

// bookPage decodes a listing. Without pagination metadata the page is
// assumed to be the last one unless it came back full.
func bookPage(q api.BookQuery) decoder[api.BookPage] {
	return func(body []byte, env *api.Envelope) (api.BookPage, error) {
		books, err := data[[]api.Book](body, env)
		if err != nil {
			return api.BookPage{}, err
		}
		page := api.BookPage{Books: books}
		if env != nil && env.Pagination != nil {
			page.Pagination = *env.Pagination
			return page, nil
		}
		page.Pagination = api.Pagination{
			CurrentPage:     q.Page,
			PageSize:        q.PageSize,
			HasNextPage:     len(books) >= q.PageSize,
			HasPreviousPage: q.Page > 1,
		}
		return page, nil
	}
}

func (r *Repository) GetBook(ctx context.Context, id int) outcome.Outcome[api.Book] {
	req := client.Request{Endpoint: api.GetBook, Params: map[string]string{"id": api.ID(id)}}
	return invoke(ctx, r, req, "Failed to fetch book details", data[api.Book])
}

func (r *Repository) GetPopularBooks(ctx context.Context, limit int) outcome.Outcome[[]api.Book] {
	req := client.Request{Endpoint: api.PopularBooks, Query: api.LimitQuery(positive(limit, 10))}
	return invoke(ctx, r, req, "Failed to fetch popular books", data[[]api.Book])
}

func (r *Repository) GetRecentBooks(ctx context.Context, limit int) outcome.Outcome[[]api.Book] {
	req := client.Request{Endpoint: api.RecentBooks, Query: api.LimitQuery(positive(limit, 10))}
	return invoke(ctx, r, req, "Failed to fetch recent books", data[[]api.Book])
}

func (r *Repository) GetCategories(ctx context.Context) outcome.Outcome[[]api.Category] {
	return invoke(ctx, r, client.Request{Endpoint: api.ListCategories}, "Failed to fetch categories", data[[]api.Category])
}

// GetUserProfile returns the account with its reading statistics.
func (r *Repository) GetUserProfile(ctx context.Context) outcome.Outcome[api.UserProfile] {
	return invoke(ctx, r, client.Request{Endpoint: api.GetProfile}, "Failed to fetch user profile", data[api.UserProfile])
}

func (r *Repository) GetReadingActivity(ctx context.Context) outcome.Outcome[[]api.ReadingActivity] {
	return invoke(ctx, r, client.Request{Endpoint: api.ListReadingActivity}, "Failed to fetch reading activity", data[[]api.ReadingActivity])
}

func positive(v, fallback int) int {
	if v > 0 {
		return v
	}
	return fallback
}
