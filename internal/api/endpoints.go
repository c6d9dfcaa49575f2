// Package api declares the remote contract of the e-reader backend: every
// operation the client may invoke, with its method, path template and the
// request and response shapes exchanged with it.
package api

import (
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"
)

// Endpoint describes one remote operation.
type Endpoint struct {
	// Name is a stable dotted identifier used in logs, spans and metrics.
	Name   string
	Method string
	// Path is relative to the API base URL. Segments in braces are
	// placeholders filled by Expand.
	Path string
	// Auth marks operations the backend rejects without a bearer token.
	Auth bool
}

var placeholder = regexp.MustCompile(`\{([a-zA-Z]+)\}`)

// Params returns the placeholder names in path order.
func (e Endpoint) Params() []string {
	matches := placeholder.FindAllStringSubmatch(e.Path, -1)
	names := make([]string, 0, len(matches))
	for _, m := range matches {
		names = append(names, m[1])
	}
	return names
}

// Expand substitutes params into the path template. Every placeholder must
// be supplied; values are path-escaped.
func (e Endpoint) Expand(params map[string]string) (string, error) {
	var missing []string
	out := placeholder.ReplaceAllStringFunc(e.Path, func(m string) string {
		name := m[1 : len(m)-1]
		v, ok := params[name]
		if !ok || v == "" {
			missing = append(missing, name)
			return m
		}
		return url.PathEscape(v)
	})
	if len(missing) > 0 {
		return "", fmt.Errorf("endpoint %s: missing path params %s", e.Name, strings.Join(missing, ", "))
	}
	return out, nil
}

func (e Endpoint) String() string {
	return e.Method + " " + e.Path
}

var (
	Health = Endpoint{Name: "health", Method: http.MethodGet, Path: "health"}

	Login        = Endpoint{Name: "auth.login", Method: http.MethodPost, Path: "auth/login"}
	Register     = Endpoint{Name: "auth.register", Method: http.MethodPost, Path: "auth/register"}
	GoogleLogin  = Endpoint{Name: "auth.google", Method: http.MethodPost, Path: "auth/google"}
	ValidateAuth = Endpoint{Name: "auth.validate", Method: http.MethodPost, Path: "auth/validate", Auth: true}

	ListBooks      = Endpoint{Name: "books.list", Method: http.MethodGet, Path: "books"}
	GetBook        = Endpoint{Name: "books.get", Method: http.MethodGet, Path: "books/{id}"}
	PopularBooks   = Endpoint{Name: "books.popular", Method: http.MethodGet, Path: "books/popular"}
	RecentBooks    = Endpoint{Name: "books.recent", Method: http.MethodGet, Path: "books/recent"}
	ListCategories = Endpoint{Name: "books.categories", Method: http.MethodGet, Path: "books/categories"}

	GetProfile          = Endpoint{Name: "user.profile", Method: http.MethodGet, Path: "user/profile", Auth: true}
	ListReadingActivity = Endpoint{Name: "user.activity", Method: http.MethodGet, Path: "user/reading-activity", Auth: true}

	ListLibraries     = Endpoint{Name: "libraries.list", Method: http.MethodGet, Path: "libraries", Auth: true}
	GetLibrary        = Endpoint{Name: "libraries.get", Method: http.MethodGet, Path: "libraries/{id}", Auth: true}
	CreateLibrary     = Endpoint{Name: "libraries.create", Method: http.MethodPost, Path: "libraries", Auth: true}
	RenameLibrary     = Endpoint{Name: "libraries.rename", Method: http.MethodPut, Path: "libraries/{id}", Auth: true}
	DeleteLibrary     = Endpoint{Name: "libraries.delete", Method: http.MethodDelete, Path: "libraries/{id}", Auth: true}
	AddLibraryBook    = Endpoint{Name: "libraries.addBook", Method: http.MethodPost, Path: "libraries/{libraryId}/books/{bookId}", Auth: true}
	RemoveLibraryBook = Endpoint{Name: "libraries.removeBook", Method: http.MethodDelete, Path: "libraries/{libraryId}/books/{bookId}", Auth: true}

	SaveReadingState = Endpoint{Name: "reading.save", Method: http.MethodPut, Path: "reading/{bookId}", Auth: true}
	GetReadingState  = Endpoint{Name: "reading.get", Method: http.MethodGet, Path: "reading/{bookId}", Auth: true}

	ListBookmarks  = Endpoint{Name: "bookmarks.list", Method: http.MethodGet, Path: "bookmarks/book/{bookId}", Auth: true}
	CreateBookmark = Endpoint{Name: "bookmarks.create", Method: http.MethodPost, Path: "bookmarks", Auth: true}
	DeleteBookmark = Endpoint{Name: "bookmarks.delete", Method: http.MethodDelete, Path: "bookmarks/{id}", Auth: true}

	ListReviews  = Endpoint{Name: "reviews.list", Method: http.MethodGet, Path: "books/{bookId}/reviews"}
	CreateReview = Endpoint{Name: "reviews.create", Method: http.MethodPost, Path: "books/{bookId}/reviews", Auth: true}
	UpdateReview = Endpoint{Name: "reviews.update", Method: http.MethodPut, Path: "reviews/{id}", Auth: true}
	DeleteReview = Endpoint{Name: "reviews.delete", Method: http.MethodDelete, Path: "reviews/{id}", Auth: true}
)

// Endpoints lists the whole contract. The fake backend mounts its routes
// from this table.
var Endpoints = []Endpoint{
	Health,
	Login, Register, GoogleLogin, ValidateAuth,
	ListBooks, PopularBooks, RecentBooks, ListCategories, GetBook,
	GetProfile, ListReadingActivity,
	ListLibraries, GetLibrary, CreateLibrary, RenameLibrary, DeleteLibrary, AddLibraryBook, RemoveLibraryBook,
	SaveReadingState, GetReadingState,
	ListBookmarks, CreateBookmark, DeleteBookmark,
	ListReviews, CreateReview, UpdateReview, DeleteReview,
}
