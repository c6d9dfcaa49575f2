package viewstate

import (
	"context"

	"ereader/internal/api"
	"ereader/pkg/outcome"
)

// LibraryService is the slice of the repository used by Libraries.
type LibraryService interface {
	GetLibraries(ctx context.Context) outcome.Outcome[[]api.Library]
	GetLibrary(ctx context.Context, id int) outcome.Outcome[api.Library]
	CreateLibrary(ctx context.Context, name string) outcome.Outcome[api.Library]
	RenameLibrary(ctx context.Context, id int, name string) outcome.Outcome[api.Library]
	DeleteLibrary(ctx context.Context, id int) outcome.Outcome[outcome.Ack]
	AddBookToLibrary(ctx context.Context, libraryID, bookID int) outcome.Outcome[outcome.Ack]
	RemoveBookFromLibrary(ctx context.Context, libraryID, bookID int) outcome.Outcome[outcome.Ack]
}

const (
	NoticeLibraryCreated = "Library created successfully"
	NoticeLibraryRenamed = "Library renamed"
	NoticeLibraryDeleted = "Library deleted"
	NoticeBookAdded      = "Book added to library"
	NoticeBookRemoved    = "Book removed from library"
)

// Libraries holds the user's collections and the one currently opened.
// Draft is the name being typed for a new library; it survives a failed
// create so the user can correct and resubmit it.
type Libraries struct {
	tracker
	service LibraryService

	Libraries *Observable[[]api.Library]
	Selected  *Observable[*api.Library]
	Draft     *Observable[string]
}

func NewLibraries(service LibraryService, opts ...Option) *Libraries {
	return &Libraries{
		tracker:   newTracker(opts),
		service:   service,
		Libraries: NewObservable[[]api.Library](nil),
		Selected:  NewObservable[*api.Library](nil),
		Draft:     NewObservable(""),
	}
}

func (l *Libraries) Load(ctx context.Context) {
	l.remember(l.Load)
	l.begin()
	o := l.service.GetLibraries(ctx)
	if libs, ok := o.Value(); ok {
		l.Libraries.Set(libs)
	}
	endWith(&l.tracker, o, "")
}

// Open loads one library with its books into Selected.
func (l *Libraries) Open(ctx context.Context, id int) {
	l.remember(func(ctx context.Context) { l.Open(ctx, id) })
	l.begin()
	o := l.service.GetLibrary(ctx, id)
	if lib, ok := o.Value(); ok {
		l.Selected.Set(&lib)
	}
	endWith(&l.tracker, o, "")
}

func (l *Libraries) Close() {
	l.Selected.Set(nil)
}

// Create adds a library named after Draft, or after name when it is not
// empty. The draft is cleared only on success.
func (l *Libraries) Create(ctx context.Context, name string) bool {
	if name != "" {
		l.Draft.Set(name)
	}
	l.begin()
	o := l.service.CreateLibrary(ctx, l.Draft.Get())
	lib, ok := o.Value()
	if ok {
		l.Libraries.Update(func(libs []api.Library) []api.Library {
			return append(append([]api.Library(nil), libs...), lib)
		})
		l.Draft.Set("")
	}
	endWith(&l.tracker, o, NoticeLibraryCreated)
	return ok
}

func (l *Libraries) Rename(ctx context.Context, id int, name string) bool {
	l.begin()
	o := l.service.RenameLibrary(ctx, id, name)
	renamed, ok := o.Value()
	if ok {
		l.Libraries.Update(func(libs []api.Library) []api.Library {
			out := append([]api.Library(nil), libs...)
			for i := range out {
				if out[i].ID == id {
					out[i].Name = renamed.Name
				}
			}
			return out
		})
		if sel := l.Selected.Get(); sel != nil && sel.ID == id {
			updated := *sel
			updated.Name = renamed.Name
			l.Selected.Set(&updated)
		}
	}
	endWith(&l.tracker, o, NoticeLibraryRenamed)
	return ok
}

func (l *Libraries) Delete(ctx context.Context, id int) bool {
	l.begin()
	o := l.service.DeleteLibrary(ctx, id)
	ok := o.IsSuccess()
	if ok {
		l.Libraries.Update(func(libs []api.Library) []api.Library {
			out := make([]api.Library, 0, len(libs))
			for _, lib := range libs {
				if lib.ID != id {
					out = append(out, lib)
				}
			}
			return out
		})
		if sel := l.Selected.Get(); sel != nil && sel.ID == id {
			l.Selected.Set(nil)
		}
	}
	endWith(&l.tracker, o, NoticeLibraryDeleted)
	return ok
}

func (l *Libraries) AddBook(ctx context.Context, libraryID, bookID int) bool {
	l.begin()
	o := l.service.AddBookToLibrary(ctx, libraryID, bookID)
	endWith(&l.tracker, o, NoticeBookAdded)
	return l.refreshAfter(ctx, libraryID, o)
}

func (l *Libraries) RemoveBook(ctx context.Context, libraryID, bookID int) bool {
	l.begin()
	o := l.service.RemoveBookFromLibrary(ctx, libraryID, bookID)
	endWith(&l.tracker, o, NoticeBookRemoved)
	return l.refreshAfter(ctx, libraryID, o)
}

// refreshAfter reloads the list, and the opened library when it is the one
// that changed, so book counts stay current.
func (l *Libraries) refreshAfter(ctx context.Context, libraryID int, o outcome.Outcome[outcome.Ack]) bool {
	if !o.IsSuccess() {
		return false
	}
	if sel := l.Selected.Get(); sel != nil && sel.ID == libraryID {
		l.Open(ctx, libraryID)
	}
	l.Load(ctx)
	return true
}
