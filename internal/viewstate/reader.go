package viewstate

import (
	"context"
	"sort"

	"ereader/internal/api"
	"ereader/pkg/outcome"
)

// ReaderService is the slice of the repository used by Reader.
type ReaderService interface {
	GetBookmarks(ctx context.Context, bookID int) outcome.Outcome[[]api.Bookmark]
	CreateBookmark(ctx context.Context, req api.CreateBookmarkRequest) outcome.Outcome[api.Bookmark]
	DeleteBookmark(ctx context.Context, id int) outcome.Outcome[outcome.Ack]
	GetReadingState(ctx context.Context, bookID int) outcome.Outcome[api.ReadingState]
	SaveReadingState(ctx context.Context, bookID int, req api.SaveReadingStateRequest) outcome.Outcome[outcome.Ack]
}

const (
	NoticeBookmarkAdded   = "Bookmark added successfully!"
	NoticeBookmarkRemoved = "Bookmark removed successfully!"
)

// Reader holds the bookmarks and saved position of the open book.
// Bookmarks are always ordered by page.
type Reader struct {
	tracker
	service ReaderService

	Bookmarks *Observable[[]api.Bookmark]
	Position  *Observable[*api.ReadingState]
}

func NewReader(service ReaderService, opts ...Option) *Reader {
	return &Reader{
		tracker:   newTracker(opts),
		service:   service,
		Bookmarks: NewObservable[[]api.Bookmark](nil),
		Position:  NewObservable[*api.ReadingState](nil),
	}
}

// LoadBookmarks replaces the bookmarks of bookID. Bookmarks are optional:
// a failure leaves an empty list and no error.
func (r *Reader) LoadBookmarks(ctx context.Context, bookID int) {
	r.remember(func(ctx context.Context) { r.LoadBookmarks(ctx, bookID) })
	r.begin()
	o := r.service.GetBookmarks(ctx, bookID)
	marks, ok := o.Value()
	if !ok {
		r.logger.DebugContext(ctx, "bookmarks unavailable", "book_id", bookID, "reason", o.Message())
		marks = nil
	}
	r.Bookmarks.Set(byPage(marks))
	r.end("", "")
}

func (r *Reader) AddBookmark(ctx context.Context, bookID, page int, title string) bool {
	r.begin()
	o := r.service.CreateBookmark(ctx, api.CreateBookmarkRequest{BookID: bookID, PageNumber: page, Title: title})
	mark, ok := o.Value()
	if ok {
		r.Bookmarks.Update(func(marks []api.Bookmark) []api.Bookmark {
			return byPage(append(append([]api.Bookmark(nil), marks...), mark))
		})
	}
	endWith(&r.tracker, o, NoticeBookmarkAdded)
	return ok
}

func (r *Reader) RemoveBookmark(ctx context.Context, id int) bool {
	r.begin()
	o := r.service.DeleteBookmark(ctx, id)
	ok := o.IsSuccess()
	if ok {
		r.Bookmarks.Update(func(marks []api.Bookmark) []api.Bookmark {
			out := make([]api.Bookmark, 0, len(marks))
			for _, m := range marks {
				if m.ID != id {
					out = append(out, m)
				}
			}
			return out
		})
	}
	endWith(&r.tracker, o, NoticeBookmarkRemoved)
	return ok
}

// LoadPosition fetches where the user left off. A book never opened before
// has no position; that is not reported as an error.
func (r *Reader) LoadPosition(ctx context.Context, bookID int) {
	o := r.service.GetReadingState(ctx, bookID)
	if state, ok := o.Value(); ok {
		r.Position.Set(&state)
		return
	}
	r.Position.Set(nil)
	r.logger.DebugContext(ctx, "no reading state", "book_id", bookID, "reason", o.Message())
}

// SavePosition records the current page in the background of reading; a
// failure is logged and otherwise ignored.
func (r *Reader) SavePosition(ctx context.Context, bookID, page, totalPages, minutes int) bool {
	req := api.SaveReadingStateRequest{CurrentPage: page, TotalPages: totalPages, ReadingTimeMinutes: minutes}
	o := r.service.SaveReadingState(ctx, bookID, req)
	if f, failed := o.Failure(); failed {
		r.logger.WarnContext(ctx, "failed to save reading position", "book_id", bookID, "kind", f.Kind, "message", f.Message)
		return false
	}
	r.Position.Set(&api.ReadingState{
		BookID:             bookID,
		CurrentPage:        page,
		TotalPages:         totalPages,
		ReadingTimeMinutes: minutes,
	})
	return true
}

func byPage(marks []api.Bookmark) []api.Bookmark {
	if marks == nil {
		return []api.Bookmark{}
	}
	sort.SliceStable(marks, func(i, j int) bool {
		return marks[i].PageNumber < marks[j].PageNumber
	})
	return marks
}
