package mockbackend

import (
	"net/http"
	"strings"

	"ereader/internal/api"
	"ereader/internal/platform/middleware"
	"ereader/internal/platform/privacy"
	"ereader/internal/session"
	dErrors "ereader/pkg/domain-errors"
	"ereader/pkg/platform/httputil"
	"ereader/pkg/validation"
)

// decode reads and validates a request body, writing the failure response
// itself.
func decode[T any](s *Server, w http.ResponseWriter, r *http.Request) (*T, bool) {
	return httputil.Decode[T](w, r, s.logger, middleware.GetRequestID(r.Context()), validation.Validate)
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	if !dErrors.HasCode(err, dErrors.CodeNotFound) && !dErrors.HasCode(err, dErrors.CodeConflict) {
		s.logger.WarnContext(r.Context(), "request failed",
			"error", err,
			"path", r.URL.Path,
			"request_id", middleware.GetRequestID(r.Context()),
		)
	}
	httputil.WriteError(w, err)
}

func (s *Server) writeSession(w http.ResponseWriter, r *http.Request, status int, user session.User, message string) {
	token, expiresIn, err := s.tokens.Issue(user.ID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	httputil.WriteJSON(w, status, map[string]any{
		"success":   true,
		"token":     token,
		"user":      user,
		"expiresIn": expiresIn,
		"message":   message,
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	req, ok := decode[api.LoginRequest](s, w, r)
	if !ok {
		return
	}
	user, err := s.store.Authenticate(req.Email, req.Password)
	if err != nil {
		s.logger.InfoContext(r.Context(), "login rejected",
			"email", privacy.MaskEmail(req.Email),
			"client", privacy.AnonymizeIP(r.RemoteAddr),
		)
		s.fail(w, r, err)
		return
	}
	s.logger.InfoContext(r.Context(), "user logged in",
		"user_id", user.ID,
		"device", middleware.DeviceLabel(r.UserAgent()),
	)
	s.writeSession(w, r, http.StatusOK, user, "Login successful")
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	req, ok := decode[api.RegisterRequest](s, w, r)
	if !ok {
		return
	}
	user, err := s.store.CreateAccount(req.Name, req.Email, req.Password)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeSession(w, r, http.StatusCreated, user, "Registration successful")
}

func (s *Server) handleGoogleLogin(w http.ResponseWriter, r *http.Request) {
	req, ok := decode[api.GoogleLoginRequest](s, w, r)
	if !ok {
		return
	}
	email, name, err := googleIdentity(strings.TrimSpace(req.IDToken))
	if err != nil {
		s.fail(w, r, dErrors.Wrap(err, dErrors.CodeUnauthenticated, "Invalid Google token"))
		return
	}
	user, err := s.store.FederatedAccount(email, name)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeSession(w, r, http.StatusOK, user, "Google login successful")
}

func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	user, err := s.store.User(middleware.GetUserID(r.Context()))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	httputil.WriteData(w, http.StatusOK, user)
}

func (s *Server) handleListBooks(w http.ResponseWriter, r *http.Request) {
	q := api.BookQuery{
		Search:   strings.TrimSpace(r.URL.Query().Get("search")),
		SortBy:   r.URL.Query().Get("sortBy"),
		Page:     queryInt(r, "page", 1),
		PageSize: min(queryInt(r, "pageSize", 20), 100),
	}
	if id := queryInt(r, "categoryId", 0); id > 0 {
		q.CategoryID = &id
	}
	if err := validation.Validate(q); err != nil {
		s.fail(w, r, err)
		return
	}
	books, page := s.store.Books(q)
	httputil.WriteEnvelope(w, http.StatusOK, books, map[string]any{"pagination": page})
}

func (s *Server) handleGetBook(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	book, err := s.store.Book(id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	httputil.WriteData(w, http.StatusOK, book)
}

func (s *Server) handleRanked(sortBy string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteData(w, http.StatusOK, s.store.Ranked(sortBy, min(queryInt(r, "limit", 10), 50)))
	}
}

func (s *Server) handleCategories(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteData(w, http.StatusOK, s.store.Categories())
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	profile, err := s.store.Profile(middleware.GetUserID(r.Context()))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	httputil.WriteData(w, http.StatusOK, profile)
}

func (s *Server) handleActivity(w http.ResponseWriter, r *http.Request) {
	httputil.WriteData(w, http.StatusOK, s.store.Activity(middleware.GetUserID(r.Context())))
}

func (s *Server) handleListLibraries(w http.ResponseWriter, r *http.Request) {
	httputil.WriteData(w, http.StatusOK, s.store.Libraries(middleware.GetUserID(r.Context())))
}

func (s *Server) handleGetLibrary(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	lib, err := s.store.Library(middleware.GetUserID(r.Context()), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	httputil.WriteData(w, http.StatusOK, lib)
}

func (s *Server) handleCreateLibrary(w http.ResponseWriter, r *http.Request) {
	req, ok := decode[api.LibraryRequest](s, w, r)
	if !ok {
		return
	}
	lib, err := s.store.CreateLibrary(middleware.GetUserID(r.Context()), req.Name)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	httputil.WriteData(w, http.StatusCreated, lib)
}

func (s *Server) handleRenameLibrary(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	req, ok := decode[api.LibraryRequest](s, w, r)
	if !ok {
		return
	}
	lib, err := s.store.RenameLibrary(middleware.GetUserID(r.Context()), id, req.Name)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	httputil.WriteData(w, http.StatusOK, lib)
}

func (s *Server) handleDeleteLibrary(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := s.store.DeleteLibrary(middleware.GetUserID(r.Context()), id); err != nil {
		s.fail(w, r, err)
		return
	}
	httputil.WriteMessage(w, http.StatusOK, "Library deleted")
}

func (s *Server) handleAddLibraryBook(w http.ResponseWriter, r *http.Request) {
	libraryID, ok := pathID(w, r, "libraryId")
	if !ok {
		return
	}
	bookID, ok := pathID(w, r, "bookId")
	if !ok {
		return
	}
	if err := s.store.AddToLibrary(middleware.GetUserID(r.Context()), libraryID, bookID); err != nil {
		s.fail(w, r, err)
		return
	}
	httputil.WriteMessage(w, http.StatusOK, "Book added to library")
}

func (s *Server) handleRemoveLibraryBook(w http.ResponseWriter, r *http.Request) {
	libraryID, ok := pathID(w, r, "libraryId")
	if !ok {
		return
	}
	bookID, ok := pathID(w, r, "bookId")
	if !ok {
		return
	}
	if err := s.store.RemoveFromLibrary(middleware.GetUserID(r.Context()), libraryID, bookID); err != nil {
		s.fail(w, r, err)
		return
	}
	httputil.WriteMessage(w, http.StatusOK, "Book removed from library")
}

func (s *Server) handleSaveReadingState(w http.ResponseWriter, r *http.Request) {
	bookID, ok := pathID(w, r, "bookId")
	if !ok {
		return
	}
	req, ok := decode[api.SaveReadingStateRequest](s, w, r)
	if !ok {
		return
	}
	if err := s.store.SaveReadingState(middleware.GetUserID(r.Context()), bookID, *req); err != nil {
		s.fail(w, r, err)
		return
	}
	httputil.WriteMessage(w, http.StatusOK, "Reading state saved")
}

func (s *Server) handleGetReadingState(w http.ResponseWriter, r *http.Request) {
	bookID, ok := pathID(w, r, "bookId")
	if !ok {
		return
	}
	st, err := s.store.ReadingState(middleware.GetUserID(r.Context()), bookID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	httputil.WriteData(w, http.StatusOK, st)
}

func (s *Server) handleListBookmarks(w http.ResponseWriter, r *http.Request) {
	bookID, ok := pathID(w, r, "bookId")
	if !ok {
		return
	}
	httputil.WriteData(w, http.StatusOK, s.store.Bookmarks(middleware.GetUserID(r.Context()), bookID))
}

func (s *Server) handleCreateBookmark(w http.ResponseWriter, r *http.Request) {
	req, ok := decode[api.CreateBookmarkRequest](s, w, r)
	if !ok {
		return
	}
	b, err := s.store.CreateBookmark(middleware.GetUserID(r.Context()), *req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	httputil.WriteData(w, http.StatusCreated, b)
}

func (s *Server) handleDeleteBookmark(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := s.store.DeleteBookmark(middleware.GetUserID(r.Context()), id); err != nil {
		s.fail(w, r, err)
		return
	}
	httputil.WriteMessage(w, http.StatusOK, "Bookmark deleted")
}

func (s *Server) handleListReviews(w http.ResponseWriter, r *http.Request) {
	bookID, ok := pathID(w, r, "bookId")
	if !ok {
		return
	}
	reviews, err := s.store.Reviews(bookID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	httputil.WriteData(w, http.StatusOK, reviews)
}

func (s *Server) handleCreateReview(w http.ResponseWriter, r *http.Request) {
	bookID, ok := pathID(w, r, "bookId")
	if !ok {
		return
	}
	req, ok := decode[api.ReviewRequest](s, w, r)
	if !ok {
		return
	}
	review, err := s.store.CreateReview(middleware.GetUserID(r.Context()), bookID, *req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	httputil.WriteData(w, http.StatusCreated, review)
}

func (s *Server) handleUpdateReview(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	req, ok := decode[api.ReviewRequest](s, w, r)
	if !ok {
		return
	}
	review, err := s.store.UpdateReview(middleware.GetUserID(r.Context()), id, *req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	httputil.WriteData(w, http.StatusOK, review)
}

func (s *Server) handleDeleteReview(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := s.store.DeleteReview(middleware.GetUserID(r.Context()), id); err != nil {
		s.fail(w, r, err)
		return
	}
	httputil.WriteMessage(w, http.StatusOK, "Review deleted")
}
