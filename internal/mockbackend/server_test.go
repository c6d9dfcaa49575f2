package mockbackend_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/suite"

	"ereader/internal/api"
	"ereader/internal/api/client"
	"ereader/internal/document"
	"ereader/internal/mockbackend"
	"ereader/internal/platform/logger"
	"ereader/internal/repository"
	"ereader/internal/session/memory"
	dErrors "ereader/pkg/domain-errors"
	"ereader/pkg/testutil"
)

// BackendSuite drives the real client and repository against the fake
// backend over HTTP.
type BackendSuite struct {
	suite.Suite
	ctx     context.Context
	backend *mockbackend.Server
	srv     *httptest.Server
	client  *client.Client
	store   *memory.InMemoryStore
	repo    *repository.Repository
}

func TestBackendSuite(t *testing.T) {
	suite.Run(t, new(BackendSuite))
}

func (s *BackendSuite) SetupTest() {
	s.ctx = context.Background()
	backend, err := mockbackend.New(mockbackend.WithSecret(testutil.TestSecret))
	s.Require().NoError(err)
	s.backend = backend
	s.srv = httptest.NewServer(backend.Handler())
	s.T().Cleanup(s.srv.Close)

	s.store = memory.New()
	s.client, err = client.New(client.Config{BaseURL: s.srv.URL + "/api/", Tokens: s.store})
	s.Require().NoError(err)
	s.repo = repository.New(s.client, s.store, repository.WithLogger(logger.Discard()))
}

func (s *BackendSuite) login() {
	o := s.repo.Login(s.ctx, mockbackend.DemoEmail, mockbackend.DemoPassword)
	s.Require().True(o.IsSuccess(), o.Message())
}

func (s *BackendSuite) TestLoginAndValidate() {
	s.login()
	s.True(s.repo.IsLoggedIn(s.ctx))

	user := s.repo.ValidateSession(s.ctx).MustValue()
	s.Equal(mockbackend.DemoEmail, user.Email)
	s.Equal(mockbackend.DemoName, user.Name)
}

func (s *BackendSuite) TestLoginWrongPassword() {
	o := s.repo.Login(s.ctx, mockbackend.DemoEmail, "not-the-password")
	s.Equal(dErrors.CodeUnauthenticated, o.Kind())
	s.Equal(repository.MsgBadCredentials, o.Message())
	s.False(s.repo.IsLoggedIn(s.ctx))
}

func (s *BackendSuite) TestRegisterDuplicateEmail() {
	o := s.repo.Register(s.ctx, "Someone", mockbackend.DemoEmail, "longenough1")
	s.Equal(dErrors.CodeConflict, o.Kind())
	s.Equal(repository.MsgEmailTaken, o.Message())
}

func (s *BackendSuite) TestRegisterThenProfile() {
	o := s.repo.Register(s.ctx, "New Reader", "new@example.com", "longenough1")
	s.Require().True(o.IsSuccess(), o.Message())

	profile := s.repo.GetUserProfile(s.ctx).MustValue()
	s.Equal("New Reader", profile.Name)
	s.Zero(profile.Statistics.TotalLibraries)
}

func (s *BackendSuite) TestGoogleLogin() {
	idToken, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"email": "g.user@example.com",
		"name":  "Google User",
	}).SignedString([]byte("google-side"))
	s.Require().NoError(err)

	o := s.repo.LoginWithGoogleToken(s.ctx, idToken)
	s.Require().True(o.IsSuccess(), o.Message())
	s.Equal("Google User", s.repo.CurrentUser(s.ctx).Name)

	bad := s.repo.LoginWithGoogleToken(s.ctx, "not-a-jwt")
	s.Equal(dErrors.CodeUnauthenticated, bad.Kind())
}

func (s *BackendSuite) TestAuthRequired() {
	o := s.repo.GetLibraries(s.ctx)
	s.Equal(dErrors.CodeUnauthenticated, o.Kind())
	s.Equal(repository.MsgSessionExpired, o.Message())
}

func (s *BackendSuite) TestExpiredSessionIsCleared() {
	s.login()

	s.backend.Inject(api.ValidateAuth.Name, http.StatusUnauthorized, `{"success":false,"message":"Invalid token"}`)
	o := s.repo.ValidateSession(s.ctx)
	s.Equal(dErrors.CodeUnauthenticated, o.Kind())
	s.False(s.repo.IsLoggedIn(s.ctx))
}

func (s *BackendSuite) TestBookPagination() {
	first := s.repo.GetBooks(s.ctx, api.BookQuery{Page: 1, PageSize: 4}).MustValue()
	s.Len(first.Books, 4)
	s.True(first.Pagination.HasNextPage)
	s.Equal(10, first.Pagination.TotalItems)
	s.Equal("A Study in Scarlet", first.Books[0].Title)

	last := s.repo.GetBooks(s.ctx, api.BookQuery{Page: 3, PageSize: 4}).MustValue()
	s.Len(last.Books, 2)
	s.False(last.Pagination.HasNextPage)
}

func (s *BackendSuite) TestBookFilters() {
	austen := s.repo.GetBooks(s.ctx, api.BookQuery{Search: "austen"}).MustValue()
	s.Len(austen.Books, 2)

	mystery := 3
	books := s.repo.GetBooks(s.ctx, api.BookQuery{CategoryID: &mystery, SortBy: api.SortRecent}).MustValue()
	s.Len(books.Books, 4)
	s.Equal("The Mysterious Affair at Styles", books.Books[0].Title)

	cats := s.repo.GetCategories(s.ctx).MustValue()
	s.Len(cats, 3)
	s.Equal(4, cats[2].BookCount)
}

func (s *BackendSuite) TestBookNotFound() {
	o := s.repo.GetBook(s.ctx, 999)
	s.Equal(dErrors.CodeNotFound, o.Kind())
	s.Equal(repository.MsgNotFound, o.Message())

	book := s.repo.GetBook(s.ctx, 1).MustValue()
	s.Equal("Pride and Prejudice", book.Title)
	s.Equal("A novel of manners following Elizabeth Bennet.", book.PlainDescription())
}

func (s *BackendSuite) TestLibraryLifecycle() {
	s.login()

	lib := s.repo.CreateLibrary(s.ctx, "  Favourites ").MustValue()
	s.Equal("Favourites", lib.Name)

	s.True(s.repo.AddBookToLibrary(s.ctx, lib.ID, 2).IsSuccess())
	dup := s.repo.AddBookToLibrary(s.ctx, lib.ID, 2)
	s.Equal(dErrors.CodeConflict, dup.Kind())
	s.Equal("Book is already in this library", dup.Message())

	got := s.repo.GetLibrary(s.ctx, lib.ID).MustValue()
	s.Equal(1, got.BookCount)
	s.Equal("Emma", got.Books[0].Title)

	renamed := s.repo.RenameLibrary(s.ctx, lib.ID, "Austen").MustValue()
	s.Equal("Austen", renamed.Name)

	s.True(s.repo.RemoveBookFromLibrary(s.ctx, lib.ID, 2).IsSuccess())
	s.Equal(dErrors.CodeNotFound, s.repo.RemoveBookFromLibrary(s.ctx, lib.ID, 2).Kind())

	s.True(s.repo.DeleteLibrary(s.ctx, lib.ID).IsSuccess())
	s.Empty(s.repo.GetLibraries(s.ctx).MustValue())
}

func (s *BackendSuite) TestLibraryLimitIsDomainFailure() {
	s.login()
	for i := range mockbackend.MaxLibraries {
		s.Require().True(s.repo.CreateLibrary(s.ctx, "Shelf "+api.ID(i)).IsSuccess())
	}
	o := s.repo.CreateLibrary(s.ctx, "One too many")
	s.Equal(dErrors.CodeDomain, o.Kind())
	s.Equal("Library limit reached", o.Message())
}

func (s *BackendSuite) TestReadingProgressFeedsProfile() {
	s.login()
	s.Equal(dErrors.CodeNotFound, s.repo.GetReadingState(s.ctx, 4).Kind())

	s.True(s.repo.SaveReadingState(s.ctx, 4, api.SaveReadingStateRequest{CurrentPage: 8, TotalPages: 8, ReadingTimeMinutes: 90}).IsSuccess())

	st := s.repo.GetReadingState(s.ctx, 4).MustValue()
	s.Equal(8, st.CurrentPage)

	activity := s.repo.GetReadingActivity(s.ctx).MustValue()
	s.Require().Len(activity, 1)
	s.Equal("The Time Machine", activity[0].Book.Title)
	s.Equal(100.0, activity[0].ReadingProgress)

	profile := s.repo.GetUserProfile(s.ctx).MustValue()
	s.Equal(1, profile.Statistics.TotalBooksRead)
	s.Equal(1.5, profile.Statistics.TotalReadingHours)
}

func (s *BackendSuite) TestBookmarks() {
	s.login()
	b := s.repo.CreateBookmark(s.ctx, api.CreateBookmarkRequest{BookID: 1, PageNumber: 5, Title: "Ball"}).MustValue()
	s.Equal(5, b.PageNumber)

	s.Len(s.repo.GetBookmarks(s.ctx, 1).MustValue(), 1)
	s.True(s.repo.DeleteBookmark(s.ctx, b.ID).IsSuccess())
	s.Empty(s.repo.GetBookmarks(s.ctx, 1).MustValue())
}

func (s *BackendSuite) TestReviewsAreOwnedByTheirAuthor() {
	s.Require().True(s.repo.Register(s.ctx, "Critic", "critic@example.com", "longenough1").IsSuccess())
	review := s.repo.CreateReview(s.ctx, 3, api.ReviewRequest{Rating: 4, Comment: "Long but good"}).MustValue()
	s.Equal("Critic", review.UserName)

	again := s.repo.CreateReview(s.ctx, 3, api.ReviewRequest{Rating: 5})
	s.Equal(dErrors.CodeConflict, again.Kind())

	s.Require().True(s.repo.Logout(s.ctx).IsSuccess())
	s.login()

	o := s.repo.UpdateReview(s.ctx, review.ID, api.ReviewRequest{Rating: 1})
	s.Equal(dErrors.CodeForbidden, o.Kind())
	s.Equal(repository.MsgForbidden, o.Message())

	book := s.repo.GetBook(s.ctx, 3).MustValue()
	s.Equal(4.0, book.AverageRating)
	s.Equal(1, book.ReviewCount)
}

func (s *BackendSuite) TestInjectedServerError() {
	s.backend.Inject(api.ListCategories.Name, http.StatusServiceUnavailable, `Service Unavailable`)

	o := s.repo.GetCategories(s.ctx)
	s.Equal(dErrors.CodeServerError, o.Kind())
	s.Equal("Server error. Please try again later. (Error 503)", o.Message())

	s.True(s.repo.GetCategories(s.ctx).IsSuccess(), "faults are one-shot")
	s.Equal(2, s.backend.Calls(api.ListCategories.Name))
}

func (s *BackendSuite) TestDocumentDownload() {
	book := s.repo.GetBook(s.ctx, 2).MustValue()
	s.Require().True(book.HasDocument())

	resolver, err := document.NewResolver(s.T().TempDir(), s.client, document.WithLogger(logger.Discard()))
	s.Require().NoError(err)

	path, err := resolver.Resolve(s.ctx, *book.PdfPath)
	s.Require().NoError(err)

	r, err := document.OpenFile(path)
	s.Require().NoError(err)
	viewer, err := document.NewViewer(r)
	s.Require().NoError(err)
	defer viewer.Close()

	s.Equal(*book.PageCount, viewer.State().PageCount)
}

func (s *BackendSuite) TestUnknownRoute() {
	resp, err := http.Get(s.srv.URL + "/api/nope")
	s.Require().NoError(err)
	defer resp.Body.Close()
	s.Equal(http.StatusNotFound, resp.StatusCode)
}

func (s *BackendSuite) TestReadinessEndpoint() {
	resp, err := http.Get(s.srv.URL + "/health/ready")
	s.Require().NoError(err)
	defer resp.Body.Close()
	s.Equal(http.StatusOK, resp.StatusCode)
}
