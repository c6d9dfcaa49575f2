package repository

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"ereader/internal/api"
	"ereader/internal/api/client"
	"ereader/internal/auth/federated"
	fedmocks "ereader/internal/auth/federated/mocks"
	"ereader/internal/platform/logger"
	"ereader/internal/platform/metrics"
	"ereader/internal/repository/mocks"
	"ereader/internal/session"
	"ereader/internal/session/memory"
	sessmocks "ereader/internal/session/mocks"
	"ereader/pkg/outcome"
	"ereader/pkg/testutil"

	dErrors "ereader/pkg/domain-errors"
)

const loginBody = `{"success":true,"token":"tok-1","user":{"id":7,"name":"Ada","email":"ada@example.com","role":"User"},"expiresIn":3600}`

type RepositorySuite struct {
	suite.Suite
	ctx       context.Context
	ctrl      *gomock.Controller
	transport *mocks.MockTransport
	provider  *fedmocks.MockProvider
	store     *memory.InMemoryStore
	metrics   *metrics.Metrics
	repo      *Repository
}

func TestRepositorySuite(t *testing.T) {
	suite.Run(t, new(RepositorySuite))
}

func (s *RepositorySuite) SetupTest() {
	s.ctx = context.Background()
	s.ctrl = gomock.NewController(s.T())
	s.transport = mocks.NewMockTransport(s.ctrl)
	s.provider = fedmocks.NewMockProvider(s.ctrl)
	s.store = memory.New()
	s.metrics = metrics.New(prometheus.NewRegistry())
	s.repo = New(s.transport, s.store,
		WithProvider(s.provider),
		WithLogger(logger.Discard()),
		WithMetrics(s.metrics),
	)
}

func reply(status int, body string) func(context.Context, client.Request) (*client.Response, error) {
	return func(context.Context, client.Request) (*client.Response, error) {
		return &client.Response{StatusCode: status, Body: []byte(body)}, nil
	}
}

func (s *RepositorySuite) expect(endpoint api.Endpoint, status int, body string) *gomock.Call {
	return s.transport.EXPECT().
		Do(gomock.Any(), gomock.Cond(func(req client.Request) bool { return req.Endpoint == endpoint })).
		DoAndReturn(reply(status, body))
}

func (s *RepositorySuite) stored() *session.Session {
	got, err := s.store.Read(s.ctx)
	s.Require().NoError(err)
	return got
}

func (s *RepositorySuite) seed(token string) {
	s.Require().NoError(s.store.Write(s.ctx, session.Session{
		Token: token,
		User:  session.User{ID: 7, Name: "Ada", Email: "ada@example.com"},
	}))
}

func (s *RepositorySuite) assertFailure(kind dErrors.Code, message string, f outcome.Failure, failed bool) {
	s.Require().True(failed, "expected a failure")
	s.Equal(kind, f.Kind)
	s.Equal(message, f.Message)
}

func (s *RepositorySuite) TestLoginStoresSession() {
	var sent client.Request
	s.transport.EXPECT().Do(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, req client.Request) (*client.Response, error) {
			sent = req
			return &client.Response{StatusCode: http.StatusOK, Body: []byte(loginBody)}, nil
		})

	o := s.repo.Login(s.ctx, "  ada@example.com ", "hunter22")

	resp, ok := o.Value()
	s.Require().True(ok, o.Message())
	s.Equal("tok-1", resp.Token)
	s.Equal(api.Login, sent.Endpoint)
	s.Equal(api.LoginRequest{Email: "ada@example.com", Password: "hunter22"}, sent.Body)

	got := s.stored()
	s.Require().NotNil(got)
	s.Equal("tok-1", got.Token)
	s.Equal(7, got.User.ID)
	s.Equal(1.0, promtest.ToFloat64(s.metrics.AuthTransitions.WithLabelValues("authenticated")))
	s.Equal(1.0, promtest.ToFloat64(s.metrics.RemoteCalls.WithLabelValues("auth.login", "success")))
}

func (s *RepositorySuite) TestLoginEnvelopeFailure() {
	s.expect(api.Login, http.StatusOK, `{"success":false,"message":"Account locked"}`)

	f, failed := s.repo.Login(s.ctx, "ada@example.com", "hunter22").Failure()

	s.assertFailure(dErrors.CodeDomain, "Account locked", f, failed)
	s.Nil(s.stored())
}

func (s *RepositorySuite) TestLoginUnauthorized() {
	s.expect(api.Login, http.StatusUnauthorized, `{"success":false,"message":"Invalid credentials"}`)

	f, failed := s.repo.Login(s.ctx, "ada@example.com", "wrong").Failure()

	s.assertFailure(dErrors.CodeUnauthenticated, MsgBadCredentials, f, failed)
	s.Nil(s.stored())
	s.Equal(1.0, promtest.ToFloat64(s.metrics.RemoteCalls.WithLabelValues("auth.login", "unauthenticated")))
}

func (s *RepositorySuite) TestLoginRejectsMalformedInputWithoutNetwork() {
	f, failed := s.repo.Login(s.ctx, "not-an-email", "hunter22").Failure()
	s.assertFailure(dErrors.CodeValidation, "Invalid email format. Please enter a valid email address.", f, failed)

	f, failed = s.repo.Login(s.ctx, "ada@example.com", "").Failure()
	s.Require().True(failed)
	s.Equal(dErrors.CodeValidation, f.Kind)
}

func (s *RepositorySuite) TestLoginWithoutSessionStoresNothing() {
	s.expect(api.Login, http.StatusOK, `{"success":true,"message":"Check your inbox"}`)

	o := s.repo.Login(s.ctx, "ada@example.com", "hunter22")

	s.True(o.IsSuccess())
	s.Nil(s.stored())
}

func (s *RepositorySuite) TestLoginStoreFailure() {
	store := sessmocks.NewMockStore(s.ctrl)
	store.EXPECT().Write(gomock.Any(), gomock.Any()).Return(errors.New("disk full"))
	repo := New(s.transport, store, WithLogger(logger.Discard()))
	s.expect(api.Login, http.StatusOK, loginBody)

	f, failed := repo.Login(s.ctx, "ada@example.com", "hunter22").Failure()

	s.assertFailure(dErrors.CodeInternal, msgSessionSave, f, failed)
}

func (s *RepositorySuite) TestRegisterConflict() {
	s.expect(api.Register, http.StatusConflict, `{"success":false,"message":"User already exists"}`)

	f, failed := s.repo.Register(s.ctx, "Ada", "ada@example.com", "hunter22").Failure()

	s.assertFailure(dErrors.CodeConflict, MsgEmailTaken, f, failed)
}

func (s *RepositorySuite) TestRegisterShortPassword() {
	f, failed := s.repo.Register(s.ctx, "Ada", "ada@example.com", "short").Failure()

	s.assertFailure(dErrors.CodeValidation, "Password is too weak. Please use at least 8 characters.", f, failed)
}

func (s *RepositorySuite) TestRegisterStoresSession() {
	s.expect(api.Register, http.StatusCreated, loginBody)

	s.True(s.repo.Register(s.ctx, "Ada", "ada@example.com", "hunter22").IsSuccess())
	s.True(s.repo.IsLoggedIn(s.ctx))
}

func (s *RepositorySuite) TestSignInWithGoogle() {
	cred := federated.Credential{AuthCode: "code-1", CodeVerifier: "verifier"}
	s.provider.EXPECT().SignIn(gomock.Any(), cred).Return("google-id-token", nil)
	s.transport.EXPECT().
		Do(gomock.Any(), client.Request{Endpoint: api.GoogleLogin, Body: api.GoogleLoginRequest{IDToken: "google-id-token"}}).
		DoAndReturn(reply(http.StatusOK, loginBody))

	o := s.repo.SignInWithGoogle(s.ctx, cred)

	s.Require().True(o.IsSuccess(), o.Message())
	s.Equal(Authenticated, s.repo.AuthState(s.ctx))
}

func (s *RepositorySuite) TestSignInWithGoogleProviderFailure() {
	tests := []struct {
		err     error
		kind    dErrors.Code
		message string
	}{
		{context.Canceled, dErrors.CodeDomain, "Google sign-in was cancelled."},
		{federated.NewError(federated.ErrorNetwork, "dial", nil), dErrors.CodeNetwork, "Network error. Please check your internet connection."},
		{federated.NewError(federated.ErrorConfiguration, "aud", nil), dErrors.CodeDomain, "Google Sign-In configuration error. Please check the client ID."},
	}
	for _, tt := range tests {
		s.provider.EXPECT().SignIn(gomock.Any(), gomock.Any()).Return("", tt.err)

		f, failed := s.repo.SignInWithGoogle(s.ctx, federated.Credential{IDToken: "x"}).Failure()

		s.assertFailure(tt.kind, tt.message, f, failed)
	}
	s.Nil(s.stored())
}

func (s *RepositorySuite) TestGoogleLoginRejectsBlankToken() {
	f, failed := s.repo.LoginWithGoogleToken(s.ctx, "  ").Failure()

	s.Require().True(failed)
	s.Equal(dErrors.CodeValidation, f.Kind)
}

func (s *RepositorySuite) TestLogoutSwallowsProviderError() {
	s.seed("tok-1")
	s.provider.EXPECT().SignOut(gomock.Any()).Return(errors.New("revoke endpoint down"))

	o := s.repo.Logout(s.ctx)

	s.True(o.IsSuccess())
	s.Nil(s.stored())
	s.False(s.repo.IsLoggedIn(s.ctx))
}

func (s *RepositorySuite) TestValidateSession() {
	s.Run("no session", func() {
		f, failed := s.repo.ValidateSession(s.ctx).Failure()
		s.assertFailure(dErrors.CodeUnauthenticated, MsgAuthFailed, f, failed)
	})

	s.Run("locally expired token is cleared without a request", func() {
		s.seed(testutil.ExpiredToken(s.T(), 7))
		f, failed := s.repo.ValidateSession(s.ctx).Failure()
		s.assertFailure(dErrors.CodeUnauthenticated, MsgSessionExpired, f, failed)
		s.Nil(s.stored())
	})

	s.Run("server rejection clears the session", func() {
		s.seed(testutil.ValidToken(s.T(), 7))
		s.expect(api.ValidateAuth, http.StatusUnauthorized, `{"success":false,"message":"Token revoked"}`)
		f, failed := s.repo.ValidateSession(s.ctx).Failure()
		s.assertFailure(dErrors.CodeUnauthenticated, MsgSessionExpired, f, failed)
		s.Nil(s.stored())
	})

	s.Run("valid session returns the user", func() {
		s.seed(testutil.ValidToken(s.T(), 7))
		s.expect(api.ValidateAuth, http.StatusOK, `{"success":true,"data":{"id":7,"name":"Ada","email":"ada@example.com"}}`)
		u := s.repo.ValidateSession(s.ctx).MustValue()
		s.Equal("Ada", u.Name)
		s.NotNil(s.stored())
	})

	s.Run("server error keeps the session", func() {
		s.seed(testutil.ValidToken(s.T(), 7))
		s.expect(api.ValidateAuth, http.StatusBadGateway, ``)
		f, failed := s.repo.ValidateSession(s.ctx).Failure()
		s.assertFailure(dErrors.CodeServerError, MsgServerError+" (Error 502)", f, failed)
		s.NotNil(s.stored())
	})
}

func (s *RepositorySuite) TestObserveAuthState() {
	ctx, cancel := context.WithCancel(s.ctx)
	defer cancel()
	states := s.repo.ObserveAuthState(ctx)
	users := s.repo.ObserveUser(ctx)

	s.Equal(LoggedOut, s.next(states))
	s.Nil(nextUser(s, users))

	s.expect(api.Login, http.StatusOK, loginBody)
	s.Require().True(s.repo.Login(s.ctx, "ada@example.com", "hunter22").IsSuccess())
	s.Equal(Authenticated, s.next(states))
	u := nextUser(s, users)
	s.Require().NotNil(u)
	s.Equal("ada@example.com", u.Email)
	s.Equal("ada@example.com", s.repo.CurrentUser(s.ctx).Email)

	s.provider.EXPECT().SignOut(gomock.Any()).Return(nil)
	s.Require().True(s.repo.Logout(s.ctx).IsSuccess())
	s.Equal(LoggedOut, s.next(states))
	s.Nil(s.repo.CurrentUser(s.ctx))

	cancel()
	s.Eventually(func() bool {
		_, open := <-states
		return !open
	}, time.Second, 10*time.Millisecond)
}

func (s *RepositorySuite) next(ch <-chan AuthState) AuthState {
	select {
	case v := <-ch:
		return v
	case <-time.After(time.Second):
		s.FailNow("no auth state emitted")
		return LoggedOut
	}
}

func nextUser(s *RepositorySuite, ch <-chan *session.User) *session.User {
	select {
	case v := <-ch:
		return v
	case <-time.After(time.Second):
		s.FailNow("no user emitted")
		return nil
	}
}

func (s *RepositorySuite) TestGetBooks() {
	var sent client.Request
	s.transport.EXPECT().Do(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, req client.Request) (*client.Response, error) {
			sent = req
			return &client.Response{StatusCode: http.StatusOK, Body: []byte(`{
				"success": true,
				"data": [{"id": 1, "title": "Dune", "author": "Herbert", "averageRating": 4.5, "reviewCount": 2}],
				"pagination": {"currentPage": 2, "pageSize": 1, "totalItems": 3, "totalPages": 3, "hasNextPage": true, "hasPreviousPage": true}
			}`)}, nil
		})

	page := s.repo.GetBooks(s.ctx, api.BookQuery{Search: "dune", CategoryID: testutil.Ptr(4), SortBy: api.SortRating, Page: 2, PageSize: 1}).MustValue()

	s.Equal("dune", sent.Query.Get("search"))
	s.Equal("4", sent.Query.Get("categoryId"))
	s.Equal("rating", sent.Query.Get("sortBy"))
	s.Equal("2", sent.Query.Get("page"))
	s.Require().Len(page.Books, 1)
	s.Equal("Dune", page.Books[0].Title)
	s.True(page.Pagination.HasNextPage)
	s.Equal(3, page.Pagination.TotalPages)
}

func (s *RepositorySuite) TestGetBooksRawArray() {
	s.expect(api.ListBooks, http.StatusOK, `[{"id":1,"title":"A"},{"id":2,"title":"B"}]`)

	page := s.repo.GetBooks(s.ctx, api.BookQuery{PageSize: 5}).MustValue()

	s.Len(page.Books, 2)
	s.Equal(1, page.Pagination.CurrentPage)
	s.False(page.Pagination.HasNextPage)
}

func (s *RepositorySuite) TestGetBooksRejectsBadQuery() {
	f, failed := s.repo.GetBooks(s.ctx, api.BookQuery{Page: -1}).Failure()
	s.Require().True(failed)
	s.Equal(dErrors.CodeValidation, f.Kind)

	f, failed = s.repo.GetBooks(s.ctx, api.BookQuery{SortBy: "price"}).Failure()
	s.Require().True(failed)
	s.Equal(dErrors.CodeValidation, f.Kind)
}

func (s *RepositorySuite) TestTransportFailure() {
	s.transport.EXPECT().Do(gomock.Any(), gomock.Any()).Return(nil, context.DeadlineExceeded)

	f, failed := s.repo.GetCategories(s.ctx).Failure()

	s.assertFailure(dErrors.CodeNetwork, MsgTimeout, f, failed)
	s.Equal(1.0, promtest.ToFloat64(s.metrics.RemoteCalls.WithLabelValues("books.categories", "network")))
}

func (s *RepositorySuite) TestSuccessWithoutData() {
	s.expect(api.GetBook, http.StatusOK, `{"success":true,"data":null}`)

	f, failed := s.repo.GetBook(s.ctx, 9).Failure()

	s.assertFailure(dErrors.CodeDomain, "Failed to fetch book details", f, failed)
}

func (s *RepositorySuite) TestUndecodableBody() {
	s.expect(api.PopularBooks, http.StatusOK, `{"success":true,"data":{"not":"a list"}}`)

	f, failed := s.repo.GetPopularBooks(s.ctx, 5).Failure()

	s.assertFailure(dErrors.CodeServerError, MsgUnexpected, f, failed)
}

func (s *RepositorySuite) TestPopularAndRecentLimit() {
	s.transport.EXPECT().
		Do(gomock.Any(), client.Request{Endpoint: api.PopularBooks, Query: api.LimitQuery(10)}).
		DoAndReturn(reply(http.StatusOK, `{"success":true,"data":[]}`))
	s.transport.EXPECT().
		Do(gomock.Any(), client.Request{Endpoint: api.RecentBooks, Query: api.LimitQuery(3)}).
		DoAndReturn(reply(http.StatusOK, `{"success":true,"data":[{"id":5}]}`))

	s.Empty(s.repo.GetPopularBooks(s.ctx, 0).MustValue())
	s.Len(s.repo.GetRecentBooks(s.ctx, 3).MustValue(), 1)
}

func (s *RepositorySuite) TestGetUserProfile() {
	s.expect(api.GetProfile, http.StatusOK, `{"success":true,"data":{
		"id": 7, "name": "Ada", "email": "ada@example.com", "role": "Admin",
		"statistics": {"totalBooksRead": 3, "totalPagesRead": 900, "totalReadingHours": 12.5, "totalReviews": 1, "totalLibraries": 2}
	}}`)

	p := s.repo.GetUserProfile(s.ctx).MustValue()

	s.Equal(7, p.ID)
	s.Equal("Admin", p.RoleOrDefault())
	s.Equal(900, p.Statistics.TotalPagesRead)
}

func (s *RepositorySuite) TestLibraryOperations() {
	s.transport.EXPECT().
		Do(gomock.Any(), client.Request{Endpoint: api.CreateLibrary, Body: api.LibraryRequest{Name: "Sci-Fi"}}).
		DoAndReturn(reply(http.StatusCreated, `{"success":true,"data":{"id":3,"name":"Sci-Fi","bookCount":0,"books":[]}}`))
	s.transport.EXPECT().
		Do(gomock.Any(), client.Request{Endpoint: api.AddLibraryBook, Params: map[string]string{"libraryId": "3", "bookId": "11"}}).
		DoAndReturn(reply(http.StatusOK, `{"success":true,"message":"Book added"}`))
	s.transport.EXPECT().
		Do(gomock.Any(), client.Request{Endpoint: api.DeleteLibrary, Params: map[string]string{"id": "3"}}).
		DoAndReturn(reply(http.StatusNoContent, ``))

	lib := s.repo.CreateLibrary(s.ctx, "  Sci-Fi ").MustValue()
	s.Equal(3, lib.ID)
	s.True(s.repo.AddBookToLibrary(s.ctx, 3, 11).IsSuccess())
	s.True(s.repo.DeleteLibrary(s.ctx, 3).IsSuccess())
}

func (s *RepositorySuite) TestCreateLibraryBlankName() {
	f, failed := s.repo.CreateLibrary(s.ctx, "   ").Failure()

	s.Require().True(failed)
	s.Equal(dErrors.CodeValidation, f.Kind)
	s.Equal("name must not be blank", f.Message)
}

func (s *RepositorySuite) TestRemoveBookNotFound() {
	s.expect(api.RemoveLibraryBook, http.StatusNotFound, `{"success":false,"message":"Book not in library"}`)

	f, failed := s.repo.RemoveBookFromLibrary(s.ctx, 3, 99).Failure()

	s.assertFailure(dErrors.CodeNotFound, MsgNotFound, f, failed)
}

func (s *RepositorySuite) TestBookmarks() {
	s.expect(api.CreateBookmark, http.StatusCreated, `{"success":true,"data":{"id":1,"title":"Chapter 2","pageNumber":14}}`)
	s.expect(api.ListBookmarks, http.StatusOK, `{"success":true,"data":[{"id":1,"title":"Chapter 2","pageNumber":14}]}`)
	s.expect(api.DeleteBookmark, http.StatusForbidden, ``)

	b := s.repo.CreateBookmark(s.ctx, api.CreateBookmarkRequest{BookID: 5, PageNumber: 14, Title: " Chapter 2 "}).MustValue()
	s.Equal(14, b.PageNumber)
	s.Len(s.repo.GetBookmarks(s.ctx, 5).MustValue(), 1)

	f, failed := s.repo.DeleteBookmark(s.ctx, 1).Failure()
	s.assertFailure(dErrors.CodeForbidden, MsgForbidden, f, failed)
}

func (s *RepositorySuite) TestBookmarkValidation() {
	_, failed := s.repo.CreateBookmark(s.ctx, api.CreateBookmarkRequest{BookID: 5, PageNumber: 0, Title: "x"}).Failure()
	s.True(failed)
	_, failed = s.repo.CreateBookmark(s.ctx, api.CreateBookmarkRequest{BookID: 5, PageNumber: 1, Title: " "}).Failure()
	s.True(failed)
}

func (s *RepositorySuite) TestReadingState() {
	s.transport.EXPECT().
		Do(gomock.Any(), client.Request{
			Endpoint: api.SaveReadingState,
			Params:   map[string]string{"bookId": "5"},
			Body:     api.SaveReadingStateRequest{CurrentPage: 12, TotalPages: 300, ReadingTimeMinutes: 4},
		}).
		DoAndReturn(reply(http.StatusOK, `{"success":true}`))
	s.expect(api.GetReadingState, http.StatusOK, `{"success":true,"data":{"bookId":5,"currentPage":12,"totalPages":300}}`)

	s.True(s.repo.SaveReadingState(s.ctx, 5, api.SaveReadingStateRequest{CurrentPage: 12, TotalPages: 300, ReadingTimeMinutes: 4}).IsSuccess())
	s.Equal(12, s.repo.GetReadingState(s.ctx, 5).MustValue().CurrentPage)
}

func (s *RepositorySuite) TestReviews() {
	s.expect(api.CreateReview, http.StatusCreated, `{"success":true,"data":{"id":2,"bookId":5,"rating":4,"comment":"Good"}}`)
	s.expect(api.UpdateReview, http.StatusOK, `{"success":true,"data":{"id":2,"bookId":5,"rating":5,"comment":"Great"}}`)
	s.expect(api.ListReviews, http.StatusOK, `{"success":true,"data":[{"id":2,"rating":5}]}`)
	s.expect(api.DeleteReview, http.StatusOK, `{"success":true}`)

	s.Equal(4, s.repo.CreateReview(s.ctx, 5, api.ReviewRequest{Rating: 4, Comment: "Good"}).MustValue().Rating)
	s.Equal("Great", s.repo.UpdateReview(s.ctx, 2, api.ReviewRequest{Rating: 5, Comment: "Great"}).MustValue().Comment)
	s.Len(s.repo.GetReviews(s.ctx, 5).MustValue(), 1)
	s.True(s.repo.DeleteReview(s.ctx, 2).IsSuccess())

	f, failed := s.repo.CreateReview(s.ctx, 5, api.ReviewRequest{Rating: 6}).Failure()
	s.Require().True(failed)
	s.Equal(dErrors.CodeValidation, f.Kind)
}

func (s *RepositorySuite) TestHealth() {
	s.expect(api.Health, http.StatusOK, `{"status":"ok"}`)
	s.True(s.repo.Health(s.ctx).IsSuccess())

	s.expect(api.Health, http.StatusServiceUnavailable, ``)
	f, failed := s.repo.Health(s.ctx).Failure()
	s.assertFailure(dErrors.CodeServerError, MsgServerError+" (Error 503)", f, failed)
}
