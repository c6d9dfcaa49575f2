package repository

import (
	"context"
	"strings"

	"ereader/internal/api"
	"ereader/internal/api/client"
	"ereader/pkg/outcome"
)

func (r *Repository) GetLibraries(ctx context.Context) outcome.Outcome[[]api.Library] {
	return invoke(ctx, r, client.Request{Endpoint: api.ListLibraries}, "Failed to fetch libraries", data[[]api.Library])
}

func (r *Repository) GetLibrary(ctx context.Context, id int) outcome.Outcome[api.Library] {
	req := client.Request{Endpoint: api.GetLibrary, Params: map[string]string{"id": api.ID(id)}}
	return invoke(ctx, r, req, "Failed to fetch library", data[api.Library])
}

func (r *Repository) CreateLibrary(ctx context.Context, name string) outcome.Outcome[api.Library] {
	body := api.LibraryRequest{Name: strings.TrimSpace(name)}
	if o, ok := validated[api.Library](body); !ok {
		return o
	}
	req := client.Request{Endpoint: api.CreateLibrary, Body: body}
	return invoke(ctx, r, req, "Failed to create library", data[api.Library])
}

func (r *Repository) RenameLibrary(ctx context.Context, id int, name string) outcome.Outcome[api.Library] {
	body := api.LibraryRequest{Name: strings.TrimSpace(name)}
	if o, ok := validated[api.Library](body); !ok {
		return o
	}
	req := client.Request{
		Endpoint: api.RenameLibrary,
		Params:   map[string]string{"id": api.ID(id)},
		Body:     body,
	}
	return invoke(ctx, r, req, "Failed to rename library", data[api.Library])
}

func (r *Repository) DeleteLibrary(ctx context.Context, id int) outcome.Outcome[outcome.Ack] {
	req := client.Request{Endpoint: api.DeleteLibrary, Params: map[string]string{"id": api.ID(id)}}
	return invoke(ctx, r, req, "Failed to delete library", ack)
}

func (r *Repository) AddBookToLibrary(ctx context.Context, libraryID, bookID int) outcome.Outcome[outcome.Ack] {
	req := client.Request{Endpoint: api.AddLibraryBook, Params: libraryBook(libraryID, bookID)}
	return invoke(ctx, r, req, "Failed to add book to library", ack)
}

func (r *Repository) RemoveBookFromLibrary(ctx context.Context, libraryID, bookID int) outcome.Outcome[outcome.Ack] {
	req := client.Request{Endpoint: api.RemoveLibraryBook, Params: libraryBook(libraryID, bookID)}
	return invoke(ctx, r, req, "Failed to remove book from library", ack)
}

func libraryBook(libraryID, bookID int) map[string]string {
	return map[string]string{"libraryId": api.ID(libraryID), "bookId": api.ID(bookID)}
}

func (r *Repository) GetReadingState(ctx context.Context, bookID int) outcome.Outcome[api.ReadingState] {
	req := client.Request{Endpoint: api.GetReadingState, Params: map[string]string{"bookId": api.ID(bookID)}}
	return invoke(ctx, r, req, "Failed to fetch reading state", data[api.ReadingState])
}

// SaveReadingState records the reader's position in a book.
func (r *Repository) SaveReadingState(ctx context.Context, bookID int, state api.SaveReadingStateRequest) outcome.Outcome[outcome.Ack] {
	if o, ok := validated[outcome.Ack](state); !ok {
		return o
	}
	req := client.Request{
		Endpoint: api.SaveReadingState,
		Params:   map[string]string{"bookId": api.ID(bookID)},
		Body:     state,
	}
	return invoke(ctx, r, req, "Failed to save reading state", ack)
}

func (r *Repository) GetBookmarks(ctx context.Context, bookID int) outcome.Outcome[[]api.Bookmark] {
	req := client.Request{Endpoint: api.ListBookmarks, Params: map[string]string{"bookId": api.ID(bookID)}}
	return invoke(ctx, r, req, "Failed to fetch bookmarks", data[[]api.Bookmark])
}

func (r *Repository) CreateBookmark(ctx context.Context, body api.CreateBookmarkRequest) outcome.Outcome[api.Bookmark] {
	body.Title = strings.TrimSpace(body.Title)
	if o, ok := validated[api.Bookmark](body); !ok {
		return o
	}
	req := client.Request{Endpoint: api.CreateBookmark, Body: body}
	return invoke(ctx, r, req, "Failed to create bookmark", data[api.Bookmark])
}

func (r *Repository) DeleteBookmark(ctx context.Context, id int) outcome.Outcome[outcome.Ack] {
	req := client.Request{Endpoint: api.DeleteBookmark, Params: map[string]string{"id": api.ID(id)}}
	return invoke(ctx, r, req, "Failed to delete bookmark", ack)
}

func (r *Repository) GetReviews(ctx context.Context, bookID int) outcome.Outcome[[]api.Review] {
	req := client.Request{Endpoint: api.ListReviews, Params: map[string]string{"bookId": api.ID(bookID)}}
	return invoke(ctx, r, req, "Failed to fetch reviews", data[[]api.Review])
}

func (r *Repository) CreateReview(ctx context.Context, bookID int, body api.ReviewRequest) outcome.Outcome[api.Review] {
	if o, ok := validated[api.Review](body); !ok {
		return o
	}
	req := client.Request{
		Endpoint: api.CreateReview,
		Params:   map[string]string{"bookId": api.ID(bookID)},
		Body:     body,
	}
	return invoke(ctx, r, req, "Failed to create review", data[api.Review])
}

func (r *Repository) UpdateReview(ctx context.Context, id int, body api.ReviewRequest) outcome.Outcome[api.Review] {
	if o, ok := validated[api.Review](body); !ok {
		return o
	}
	req := client.Request{
		Endpoint: api.UpdateReview,
		Params:   map[string]string{"id": api.ID(id)},
		Body:     body,
	}
	return invoke(ctx, r, req, "Failed to update review", data[api.Review])
}

func (r *Repository) DeleteReview(ctx context.Context, id int) outcome.Outcome[outcome.Ack] {
	req := client.Request{Endpoint: api.DeleteReview, Params: map[string]string{"id": api.ID(id)}}
	return invoke(ctx, r, req, "Failed to delete review", ack)
}
