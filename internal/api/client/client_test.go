package client

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"ereader/internal/api"
	"ereader/internal/platform/metrics"
	"ereader/internal/sentinel"
	"ereader/internal/session"
	"ereader/internal/session/memory"
)

type ClientSuite struct {
	suite.Suite
	server  *httptest.Server
	last    *http.Request
	body    []byte
	status  int
	reply   string
	store   *memory.InMemoryStore
	metrics *metrics.Metrics
	client  *Client
}

func (s *ClientSuite) SetupTest() {
	s.last, s.body = nil, nil
	s.status = http.StatusOK
	s.reply = `{"success":true}`
	s.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.last = r
		s.body, _ = io.ReadAll(r.Body)
		w.WriteHeader(s.status)
		_, _ = w.Write([]byte(s.reply))
	}))
	s.store = memory.New()
	s.metrics = metrics.New(prometheus.NewRegistry())

	c, err := New(Config{
		BaseURL:   s.server.URL + "/api",
		APIKey:    "anon-key",
		UserAgent: "ereader-test/1.0",
		Tokens:    s.store,
		Metrics:   s.metrics,
	})
	s.Require().NoError(err)
	s.client = c
}

func (s *ClientSuite) TearDownTest() {
	s.server.Close()
}

func (s *ClientSuite) TestStandardHeaders() {
	resp, err := s.client.Do(context.Background(), Request{Endpoint: api.Health})
	s.Require().NoError(err)
	s.True(resp.OK())

	s.Equal("/api/health", s.last.URL.Path)
	s.Equal("application/json", s.last.Header.Get("Content-Type"))
	s.Equal("application/json", s.last.Header.Get("Accept"))
	s.Equal("anon-key", s.last.Header.Get("apikey"))
	s.Equal("ereader-test/1.0", s.last.Header.Get("User-Agent"))
	s.Empty(s.last.Header.Get("Authorization"), "no session, no bearer")

	_, err = uuid.Parse(s.last.Header.Get(HeaderRequestID))
	s.NoError(err)
	s.Equal(s.last.Header.Get(HeaderRequestID), resp.RequestID)
}

func (s *ClientSuite) TestBearerTokenFromSession() {
	s.Require().NoError(s.store.Write(context.Background(), session.Session{Token: "tok-1", User: session.User{ID: 1}}))

	_, err := s.client.Do(context.Background(), Request{Endpoint: api.GetProfile})
	s.Require().NoError(err)
	s.Equal("Bearer tok-1", s.last.Header.Get("Authorization"))
}

func (s *ClientSuite) TestPathParamsQueryAndBody() {
	_, err := s.client.Do(context.Background(), Request{
		Endpoint: api.AddLibraryBook,
		Params:   map[string]string{"libraryId": "3", "bookId": "9"},
	})
	s.Require().NoError(err)
	s.Equal(http.MethodPost, s.last.Method)
	s.Equal("/api/libraries/3/books/9", s.last.URL.Path)

	cat := 4
	_, err = s.client.Do(context.Background(), Request{
		Endpoint: api.ListBooks,
		Query:    api.BookQuery{Search: "dune", CategoryID: &cat, SortBy: api.SortTitle, Page: 2, PageSize: 20}.Values(),
	})
	s.Require().NoError(err)
	q := s.last.URL.Query()
	s.Equal("dune", q.Get("search"))
	s.Equal("4", q.Get("categoryId"))
	s.Equal("title", q.Get("sortBy"))
	s.Equal("2", q.Get("page"))
	s.Equal("20", q.Get("pageSize"))

	_, err = s.client.Do(context.Background(), Request{
		Endpoint: api.CreateBookmark,
		Body:     api.CreateBookmarkRequest{BookID: 1, PageNumber: 12, Title: "Chapter 2"},
	})
	s.Require().NoError(err)
	var sent map[string]any
	s.Require().NoError(json.Unmarshal(s.body, &sent))
	s.Equal(float64(12), sent["pageNumber"])
	s.Equal("Chapter 2", sent["title"])
}

func (s *ClientSuite) TestErrorStatusIsAResponse() {
	s.status = http.StatusConflict
	s.reply = `{"message":"Email already exists"}`

	resp, err := s.client.Do(context.Background(), Request{Endpoint: api.Register, Body: api.RegisterRequest{}})
	s.Require().NoError(err)
	s.False(resp.OK())
	s.Equal(http.StatusConflict, resp.StatusCode)
	s.Contains(string(resp.Body), "already exists")
	s.Equal(1.0, promtest.ToFloat64(s.metrics.HTTPResponses.WithLabelValues("auth.register", "4xx")))
}

func (s *ClientSuite) TestMissingPathParam() {
	_, err := s.client.Do(context.Background(), Request{Endpoint: api.GetBook})
	s.ErrorIs(err, sentinel.ErrInvalidInput)
	s.Nil(s.last, "request never sent")

	_, err = s.client.Do(context.Background(), Request{Endpoint: api.Health})
	s.Require().NoError(err)
	s.Require().NotNil(s.last)

	s.last = nil
	_, err = s.client.Do(context.Background(), Request{Endpoint: api.AddLibraryBook, Params: map[string]string{"libraryId": "3"}})
	s.ErrorIs(err, sentinel.ErrInvalidInput)
	s.Nil(s.last, "request never sent")
}

func (s *ClientSuite) TestBodyTooLarge() {
	s.reply = strings.Repeat("x", 64)
	c, err := New(Config{BaseURL: s.server.URL + "/api/", MaxBodyBytes: 16})
	s.Require().NoError(err)

	_, err = c.Do(context.Background(), Request{Endpoint: api.Health})
	s.ErrorIs(err, sentinel.ErrTooLarge)
}

func (s *ClientSuite) TestTransportFailure() {
	s.server.Close()
	_, err := s.client.Do(context.Background(), Request{Endpoint: api.Health})
	s.Error(err)
}

func (s *ClientSuite) TestCancelledWhileRateLimited() {
	c, err := New(Config{BaseURL: s.server.URL, RequestsPerSecond: 0.001, Burst: 1})
	s.Require().NoError(err)
	_, err = c.Do(context.Background(), Request{Endpoint: api.Health})
	s.Require().NoError(err, "first request uses the burst")

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = c.Do(ctx, Request{Endpoint: api.Health})
	s.Error(err)
}

func TestClientSuite(t *testing.T) {
	suite.Run(t, new(ClientSuite))
}

func TestNewRejectsRelativeBase(t *testing.T) {
	_, err := New(Config{BaseURL: "/api"})
	assert.Error(t, err)
}

func TestResolve(t *testing.T) {
	c, err := New(Config{BaseURL: "https://books.example.com/api"})
	require.NoError(t, err)

	tests := map[string]string{
		"uploads/dune.pdf":                "https://books.example.com/api/uploads/dune.pdf",
		"/uploads/dune.pdf":               "https://books.example.com/uploads/dune.pdf",
		"https://cdn.example.com/a/b.pdf": "https://cdn.example.com/a/b.pdf",
		"  /uploads/with%20space.pdf  ":   "https://books.example.com/uploads/with%20space.pdf",
	}
	for ref, want := range tests {
		got, err := c.Resolve(ref)
		require.NoError(t, err, ref)
		assert.Equal(t, want, got.String(), ref)
	}
	assert.Equal(t, "/api/", c.BaseURL().Path)
}
