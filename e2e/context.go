package e2e

import (
	"context"
	"fmt"
	"net/http/httptest"
	"os"
	"path/filepath"
	"time"

	"ereader/internal/api/client"
	"ereader/internal/document"
	"ereader/internal/mockbackend"
	"ereader/internal/platform/logger"
	"ereader/internal/repository"
	"ereader/internal/session"
	"ereader/internal/session/file"
	"ereader/internal/viewstate"
	"ereader/pkg/outcome"
	"ereader/pkg/testutil"
)

// StatusHolder is any view-state holder; the last one a step used is the
// one whose error and notice are asserted.
type StatusHolder = interface {
	Status() *viewstate.Observable[viewstate.Status]
}

// TestContext holds state between test steps. Each scenario gets its own
// fake backend and its own session file; Restart rebuilds the client stack
// over the same file, the way a relaunched app would.
type TestContext struct {
	ctx     context.Context
	cancel  context.CancelFunc
	dir     string
	backend *mockbackend.Server
	server  *httptest.Server

	appCancel context.CancelFunc
	store     *file.FileStore
	client    *client.Client
	repo      *repository.Repository
	auth      *viewstate.Auth
	books     *viewstate.BookList
	libraries *viewstate.Libraries
	reader    *viewstate.Reader
	docs      *document.Resolver

	viewer     *document.Viewer
	openBookID int
	active     StatusHolder
	last       *outcome.Failure
	recorded   bool
}

// NewTestContext creates an idle context; Start brings up the backend.
func NewTestContext() *TestContext {
	return &TestContext{}
}

// Start runs a seeded fake backend and wires a client stack against it.
func (tc *TestContext) Start() error {
	tc.ctx, tc.cancel = context.WithCancel(context.Background())

	dir, err := os.MkdirTemp("", "ereader-e2e-*")
	if err != nil {
		return fmt.Errorf("create scenario dir: %w", err)
	}
	tc.dir = dir

	tc.backend, err = mockbackend.New(
		mockbackend.WithSecret(testutil.TestSecret),
		mockbackend.WithLogger(logger.Discard()),
	)
	if err != nil {
		return err
	}
	tc.server = httptest.NewServer(tc.backend.Handler())
	return tc.open()
}

func (tc *TestContext) open() error {
	var appCtx context.Context
	appCtx, tc.appCancel = context.WithCancel(tc.ctx)

	tc.store = file.New(filepath.Join(tc.dir, "session.json"))
	c, err := client.New(client.Config{
		BaseURL: tc.server.URL + "/api/",
		Tokens:  tc.store,
		Timeout: 5 * time.Second,
	})
	if err != nil {
		return err
	}
	tc.client = c
	tc.repo = repository.New(c, tc.store, repository.WithLogger(logger.Discard()))

	quiet := viewstate.WithLogger(logger.Discard())
	tc.auth = viewstate.NewAuth(appCtx, tc.repo, quiet)
	tc.auth.Watch(appCtx)
	tc.books = viewstate.NewBookList(tc.repo, 20, quiet)
	tc.libraries = viewstate.NewLibraries(tc.repo, quiet)
	tc.reader = viewstate.NewReader(tc.repo, quiet)

	tc.docs, err = document.NewResolver(filepath.Join(tc.dir, "documents"), c,
		document.WithLogger(logger.Discard()))
	return err
}

// Restart drops every in-memory holder and rewires over the same session
// file and backend.
func (tc *TestContext) Restart() error {
	tc.CloseBook()
	tc.appCancel()
	tc.active = nil
	return tc.open()
}

// Close releases everything Start created.
func (tc *TestContext) Close() {
	if tc.cancel == nil {
		return
	}
	if tc.appCancel != nil {
		tc.CloseBook()
		tc.appCancel()
	}
	if tc.server != nil {
		tc.server.Close()
	}
	tc.cancel()
	if tc.dir != "" {
		_ = os.RemoveAll(tc.dir)
	}
}

func (tc *TestContext) Context() context.Context { return tc.ctx }
func (tc *TestContext) Backend() *mockbackend.Server { return tc.backend }
func (tc *TestContext) Repository() *repository.Repository { return tc.repo }
func (tc *TestContext) Sessions() session.Store { return tc.store }
func (tc *TestContext) AuthView() *viewstate.Auth { return tc.auth }
func (tc *TestContext) LibrariesView() *viewstate.Libraries { return tc.libraries }
func (tc *TestContext) ReaderView() *viewstate.Reader { return tc.reader }
func (tc *TestContext) Documents() *document.Resolver { return tc.docs }

// BookList returns the catalog holder, replacing it when pageSize differs
// from zero.
func (tc *TestContext) BookList(pageSize int) *viewstate.BookList {
	if pageSize > 0 {
		tc.books = viewstate.NewBookList(tc.repo, pageSize, viewstate.WithLogger(logger.Discard()))
	}
	return tc.books
}

// Use marks h as the holder whose status the next assertion reads.
func (tc *TestContext) Use(h StatusHolder) {
	tc.active = h
}

func (tc *TestContext) Active() StatusHolder {
	return tc.active
}

// Record keeps the failure of an operation run directly on the repository.
func (tc *TestContext) Record(o interface{ Failure() (outcome.Failure, bool) }) {
	tc.recorded = true
	tc.last = nil
	if f, failed := o.Failure(); failed {
		tc.last = &f
	}
}

// LastFailure returns the recorded failure, or nil after a success. It
// errors when no repository operation was recorded.
func (tc *TestContext) LastFailure() (*outcome.Failure, error) {
	if !tc.recorded {
		return nil, fmt.Errorf("no operation was recorded")
	}
	return tc.last, nil
}

// OpenBook resolves and opens the document of bookID at the saved
// position, or the first page.
func (tc *TestContext) OpenBook(bookID int) error {
	tc.CloseBook()
	o := tc.repo.GetBook(tc.ctx, bookID)
	tc.Record(o)
	book, ok := o.Value()
	if !ok {
		return nil
	}
	if !book.HasDocument() {
		return fmt.Errorf("book %d has no document", bookID)
	}
	path, err := tc.docs.Resolve(tc.ctx, *book.PdfPath)
	if err != nil {
		return err
	}
	renderer, err := document.OpenFile(path)
	if err != nil {
		return err
	}

	start := 0
	tc.reader.LoadPosition(tc.ctx, bookID)
	if p := tc.reader.Position.Get(); p != nil {
		start = p.CurrentPage - 1
	}
	tc.viewer, err = document.NewViewer(renderer, document.WithStartPage(start))
	if err != nil {
		return err
	}
	tc.openBookID = bookID
	return nil
}

// Viewer returns the open document.
func (tc *TestContext) Viewer() (*document.Viewer, error) {
	if tc.viewer == nil {
		return nil, fmt.Errorf("no book is open")
	}
	return tc.viewer, nil
}

// CloseBook saves the reading position and closes the document.
func (tc *TestContext) CloseBook() {
	if tc.viewer == nil {
		return
	}
	st := tc.viewer.State()
	tc.reader.SavePosition(tc.ctx, tc.openBookID, st.Page+1, st.PageCount, 1)
	_ = tc.viewer.Close()
	tc.viewer = nil
	tc.openBookID = 0
}
