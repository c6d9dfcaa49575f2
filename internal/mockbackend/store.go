package mockbackend

import (
	"cmp"
	"errors"
	"math"
	"slices"
	"strings"
	"sync"
	"time"

	"ereader/internal/api"
	"ereader/internal/session"
	dErrors "ereader/pkg/domain-errors"
	"ereader/pkg/secrets"
)

// MaxLibraries bounds how many libraries one user may own.
const MaxLibraries = 20

type account struct {
	user         session.User
	passwordHash string
}

type library struct {
	id      int
	ownerID int
	name    string
	books   []int
}

type ownedBookmark struct {
	ownerID int
	bookID  int
	api.Bookmark
}

type readingKey struct {
	userID int
	bookID int
}

// Store holds the fake backend's data in memory. All methods are safe for
// concurrent use.
type Store struct {
	mu  sync.Mutex
	now func() time.Time

	nextID int

	accounts map[int]*account
	byEmail  map[string]int

	books         []api.Book
	categories    []api.Category
	bookCategory  map[int]int
	libraries     map[int]*library
	bookmarks     map[int]*ownedBookmark
	reviews       map[int]*api.Review
	readingStates map[readingKey]api.ReadingState
	activity      map[readingKey]*api.ReadingActivity
}

func newStore(now func() time.Time) *Store {
	return &Store{
		now:           now,
		nextID:        1000,
		accounts:      make(map[int]*account),
		byEmail:       make(map[string]int),
		bookCategory:  make(map[int]int),
		libraries:     make(map[int]*library),
		bookmarks:     make(map[int]*ownedBookmark),
		reviews:       make(map[int]*api.Review),
		readingStates: make(map[readingKey]api.ReadingState),
		activity:      make(map[readingKey]*api.ReadingActivity),
	}
}

// Seeded reports an error until the catalog holds at least one book.
func (s *Store) Seeded() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.books) == 0 {
		return errors.New("catalog is empty")
	}
	return nil
}

func (s *Store) id() int {
	s.nextID++
	return s.nextID
}

func (s *Store) timestamp() string {
	return s.now().UTC().Format(time.RFC3339)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// CreateAccount registers a password account.
func (s *Store) CreateAccount(name, email, password string) (session.User, error) {
	hash, err := secrets.Hash(password)
	if err != nil {
		return session.User{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.createAccount(name, email, hash)
}

func (s *Store) createAccount(name, email, hash string) (session.User, error) {
	key := normalizeEmail(email)
	if _, ok := s.byEmail[key]; ok {
		return session.User{}, dErrors.New(dErrors.CodeConflict, "User with this email already exists")
	}
	created := s.timestamp()
	u := session.User{
		ID:        s.id(),
		Name:      strings.TrimSpace(name),
		Email:     key,
		Role:      session.DefaultRole,
		CreatedAt: &created,
	}
	s.accounts[u.ID] = &account{user: u, passwordHash: hash}
	s.byEmail[key] = u.ID
	return u, nil
}

// Authenticate checks a password login.
func (s *Store) Authenticate(email, password string) (session.User, error) {
	s.mu.Lock()
	acc, ok := s.accounts[s.byEmail[normalizeEmail(email)]]
	s.mu.Unlock()
	if !ok || acc.passwordHash == "" {
		return session.User{}, dErrors.New(dErrors.CodeUnauthenticated, "Invalid email or password")
	}
	if err := secrets.Verify(password, acc.passwordHash); err != nil {
		return session.User{}, dErrors.New(dErrors.CodeUnauthenticated, "Invalid email or password")
	}
	return acc.user, nil
}

// FederatedAccount returns the account for email, creating a password-less
// one on first sign-in.
func (s *Store) FederatedAccount(email, name string) (session.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.byEmail[normalizeEmail(email)]; ok {
		return s.accounts[id].user, nil
	}
	if name == "" {
		name = strings.Split(email, "@")[0]
	}
	return s.createAccount(name, email, "")
}

func (s *Store) User(id int) (session.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc, ok := s.accounts[id]
	if !ok {
		return session.User{}, dErrors.New(dErrors.CodeUnauthenticated, "Invalid token")
	}
	return acc.user, nil
}

// Books filters, sorts and pages the catalog.
func (s *Store) Books(q api.BookQuery) ([]api.Book, api.Pagination) {
	s.mu.Lock()
	defer s.mu.Unlock()

	search := strings.ToLower(strings.TrimSpace(q.Search))
	matched := make([]api.Book, 0, len(s.books))
	for _, b := range s.books {
		if q.CategoryID != nil && s.bookCategory[b.ID] != *q.CategoryID {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(b.Title), search) &&
			!strings.Contains(strings.ToLower(b.Author), search) {
			continue
		}
		matched = append(matched, s.rated(b))
	}
	sortBooks(matched, q.SortBy)

	total := len(matched)
	totalPages := int(math.Ceil(float64(total) / float64(q.PageSize)))
	start := min((q.Page-1)*q.PageSize, total)
	end := min(start+q.PageSize, total)

	return matched[start:end], api.Pagination{
		CurrentPage:     q.Page,
		PageSize:        q.PageSize,
		TotalItems:      total,
		TotalPages:      totalPages,
		HasNextPage:     q.Page < totalPages,
		HasPreviousPage: q.Page > 1,
	}
}

func sortBooks(books []api.Book, by string) {
	switch by {
	case api.SortAuthor:
		slices.SortStableFunc(books, func(a, b api.Book) int { return cmp.Compare(a.Author, b.Author) })
	case api.SortRating:
		slices.SortStableFunc(books, func(a, b api.Book) int {
			return cmp.Or(cmp.Compare(b.AverageRating, a.AverageRating), cmp.Compare(b.ReviewCount, a.ReviewCount))
		})
	case api.SortRecent:
		slices.SortStableFunc(books, func(a, b api.Book) int { return cmp.Compare(deref(b.ReleaseDate), deref(a.ReleaseDate)) })
	default:
		slices.SortStableFunc(books, func(a, b api.Book) int { return cmp.Compare(a.Title, b.Title) })
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// rated fills in the review aggregates. Callers hold mu.
func (s *Store) rated(b api.Book) api.Book {
	var sum, n int
	for _, r := range s.reviews {
		if r.BookID == b.ID {
			sum += r.Rating
			n++
		}
	}
	b.ReviewCount = n
	if n > 0 {
		b.AverageRating = math.Round(float64(sum)/float64(n)*10) / 10
	}
	return b
}

func (s *Store) Book(id int) (api.Book, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.book(id)
	if !ok {
		return api.Book{}, dErrors.New(dErrors.CodeNotFound, "Book not found")
	}
	return s.rated(b), nil
}

func (s *Store) book(id int) (api.Book, bool) {
	for _, b := range s.books {
		if b.ID == id {
			return b, true
		}
	}
	return api.Book{}, false
}

// Ranked returns up to limit books ordered by sortBy.
func (s *Store) Ranked(sortBy string, limit int) []api.Book {
	books, _ := s.Books(api.BookQuery{SortBy: sortBy, Page: 1, PageSize: max(limit, 1)})
	return books
}

func (s *Store) Categories() []api.Category {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]api.Category, len(s.categories))
	for i, c := range s.categories {
		c.BookCount = 0
		for _, cat := range s.bookCategory {
			if cat == c.ID {
				c.BookCount++
			}
		}
		out[i] = c
	}
	return out
}

// Profile returns the user with statistics derived from their activity.
func (s *Store) Profile(userID int) (api.UserProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc, ok := s.accounts[userID]
	if !ok {
		return api.UserProfile{}, dErrors.New(dErrors.CodeNotFound, "User not found")
	}
	p := api.UserProfile{User: acc.user}
	var minutes int
	for key, a := range s.activity {
		if key.userID != userID {
			continue
		}
		p.Statistics.TotalPagesRead += a.TotalPagesRead
		minutes += a.TotalReadingTimeMinutes
		if a.ReadingProgress >= 100 {
			p.Statistics.TotalBooksRead++
		}
	}
	p.Statistics.TotalReadingHours = math.Round(float64(minutes)/60*10) / 10
	for _, r := range s.reviews {
		if r.UserID == userID {
			p.Statistics.TotalReviews++
		}
	}
	for _, l := range s.libraries {
		if l.ownerID == userID {
			p.Statistics.TotalLibraries++
		}
	}
	return p, nil
}

// Activity lists the user's reading activity, most recent first.
func (s *Store) Activity(userID int) []api.ReadingActivity {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []api.ReadingActivity{}
	for key, a := range s.activity {
		if key.userID == userID {
			out = append(out, *a)
		}
	}
	slices.SortFunc(out, func(a, b api.ReadingActivity) int {
		return cmp.Or(cmp.Compare(b.LastAccess, a.LastAccess), cmp.Compare(a.BookID, b.BookID))
	})
	return out
}

func (s *Store) Libraries(userID int) []api.Library {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []api.Library{}
	for _, l := range s.libraries {
		if l.ownerID == userID {
			out = append(out, s.view(l))
		}
	}
	slices.SortFunc(out, func(a, b api.Library) int { return cmp.Compare(a.ID, b.ID) })
	return out
}

// view expands a library. Callers hold mu.
func (s *Store) view(l *library) api.Library {
	out := api.Library{ID: l.id, Name: l.name, BookCount: len(l.books), Books: []api.Book{}}
	for _, id := range l.books {
		if b, ok := s.book(id); ok {
			out.Books = append(out.Books, s.rated(b))
		}
	}
	return out
}

// owned returns the user's library. Callers hold mu.
func (s *Store) owned(userID, id int) (*library, error) {
	l, ok := s.libraries[id]
	if !ok || l.ownerID != userID {
		return nil, dErrors.New(dErrors.CodeNotFound, "Library not found")
	}
	return l, nil
}

func (s *Store) Library(userID, id int) (api.Library, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, err := s.owned(userID, id)
	if err != nil {
		return api.Library{}, err
	}
	return s.view(l), nil
}

func (s *Store) nameTaken(userID int, name string, except int) bool {
	for _, l := range s.libraries {
		if l.ownerID == userID && l.id != except && strings.EqualFold(l.name, name) {
			return true
		}
	}
	return false
}

func (s *Store) CreateLibrary(userID int, name string) (api.Library, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	name = strings.TrimSpace(name)
	owned := 0
	for _, l := range s.libraries {
		if l.ownerID == userID {
			owned++
		}
	}
	if owned >= MaxLibraries {
		return api.Library{}, dErrors.New(dErrors.CodeDomain, "Library limit reached")
	}
	if s.nameTaken(userID, name, 0) {
		return api.Library{}, dErrors.New(dErrors.CodeConflict, "A library with this name already exists")
	}
	l := &library{id: s.id(), ownerID: userID, name: name}
	s.libraries[l.id] = l
	return s.view(l), nil
}

func (s *Store) RenameLibrary(userID, id int, name string) (api.Library, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, err := s.owned(userID, id)
	if err != nil {
		return api.Library{}, err
	}
	name = strings.TrimSpace(name)
	if s.nameTaken(userID, name, id) {
		return api.Library{}, dErrors.New(dErrors.CodeConflict, "A library with this name already exists")
	}
	l.name = name
	return s.view(l), nil
}

func (s *Store) DeleteLibrary(userID, id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.owned(userID, id); err != nil {
		return err
	}
	delete(s.libraries, id)
	return nil
}

func (s *Store) AddToLibrary(userID, libraryID, bookID int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, err := s.owned(userID, libraryID)
	if err != nil {
		return err
	}
	if _, ok := s.book(bookID); !ok {
		return dErrors.New(dErrors.CodeNotFound, "Book not found")
	}
	if slices.Contains(l.books, bookID) {
		return dErrors.New(dErrors.CodeConflict, "Book is already in this library")
	}
	l.books = append(l.books, bookID)
	return nil
}

func (s *Store) RemoveFromLibrary(userID, libraryID, bookID int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, err := s.owned(userID, libraryID)
	if err != nil {
		return err
	}
	i := slices.Index(l.books, bookID)
	if i < 0 {
		return dErrors.New(dErrors.CodeNotFound, "Book is not in this library")
	}
	l.books = slices.Delete(l.books, i, i+1)
	return nil
}

func (s *Store) ReadingState(userID, bookID int) (api.ReadingState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.readingStates[readingKey{userID, bookID}]
	if !ok {
		return api.ReadingState{}, dErrors.New(dErrors.CodeNotFound, "No reading state for this book")
	}
	return st, nil
}

// SaveReadingState records the position and folds it into the activity log.
func (s *Store) SaveReadingState(userID, bookID int, req api.SaveReadingStateRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.book(bookID)
	if !ok {
		return dErrors.New(dErrors.CodeNotFound, "Book not found")
	}
	key := readingKey{userID, bookID}
	prev := s.readingStates[key]
	s.readingStates[key] = api.ReadingState{
		BookID:             bookID,
		CurrentPage:        req.CurrentPage,
		TotalPages:         req.TotalPages,
		ReadingTimeMinutes: prev.ReadingTimeMinutes + req.ReadingTimeMinutes,
	}

	now := s.timestamp()
	a, ok := s.activity[key]
	if !ok {
		a = &api.ReadingActivity{
			BookID:      bookID,
			Book:        api.BookInfo{ID: b.ID, Title: b.Title, Author: b.Author, ImageLink: b.ImageLink, PageCount: b.PageCount},
			FirstAccess: now,
		}
		s.activity[key] = a
	}
	a.LastAccess = now
	a.AccessCount++
	if req.CurrentPage > a.LastPageRead {
		a.TotalPagesRead += req.CurrentPage - a.LastPageRead
	}
	a.LastPageRead = req.CurrentPage
	a.TotalReadingTimeMinutes += req.ReadingTimeMinutes
	total := req.TotalPages
	if total == 0 && b.PageCount != nil {
		total = *b.PageCount
	}
	if total > 0 {
		a.ReadingProgress = math.Min(100, math.Round(float64(req.CurrentPage)/float64(total)*1000)/10)
	}
	return nil
}

func (s *Store) Bookmarks(userID, bookID int) []api.Bookmark {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []api.Bookmark{}
	for _, b := range s.bookmarks {
		if b.ownerID == userID && b.bookID == bookID {
			out = append(out, b.Bookmark)
		}
	}
	slices.SortFunc(out, func(a, b api.Bookmark) int { return cmp.Compare(a.ID, b.ID) })
	return out
}

func (s *Store) CreateBookmark(userID int, req api.CreateBookmarkRequest) (api.Bookmark, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.book(req.BookID); !ok {
		return api.Bookmark{}, dErrors.New(dErrors.CodeNotFound, "Book not found")
	}
	b := &ownedBookmark{
		ownerID: userID,
		bookID:  req.BookID,
		Bookmark: api.Bookmark{
			ID:         s.id(),
			Title:      strings.TrimSpace(req.Title),
			PageNumber: req.PageNumber,
			CreatedAt:  s.timestamp(),
		},
	}
	s.bookmarks[b.ID] = b
	return b.Bookmark, nil
}

func (s *Store) DeleteBookmark(userID, id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bookmarks[id]
	if !ok || b.ownerID != userID {
		return dErrors.New(dErrors.CodeNotFound, "Bookmark not found")
	}
	delete(s.bookmarks, id)
	return nil
}

func (s *Store) Reviews(bookID int) ([]api.Review, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.book(bookID); !ok {
		return nil, dErrors.New(dErrors.CodeNotFound, "Book not found")
	}
	out := []api.Review{}
	for _, r := range s.reviews {
		if r.BookID == bookID {
			out = append(out, *r)
		}
	}
	slices.SortFunc(out, func(a, b api.Review) int { return cmp.Compare(b.ID, a.ID) })
	return out, nil
}

func (s *Store) CreateReview(userID, bookID int, req api.ReviewRequest) (api.Review, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.book(bookID); !ok {
		return api.Review{}, dErrors.New(dErrors.CodeNotFound, "Book not found")
	}
	for _, r := range s.reviews {
		if r.BookID == bookID && r.UserID == userID {
			return api.Review{}, dErrors.New(dErrors.CodeConflict, "You have already reviewed this book")
		}
	}
	acc := s.accounts[userID]
	r := &api.Review{
		ID:        s.id(),
		BookID:    bookID,
		UserID:    userID,
		Rating:    req.Rating,
		Comment:   strings.TrimSpace(req.Comment),
		CreatedAt: s.timestamp(),
	}
	if acc != nil {
		r.UserName = acc.user.Name
	}
	s.reviews[r.ID] = r
	return *r, nil
}

// ownReview returns the review if userID wrote it. Callers hold mu.
func (s *Store) ownReview(userID, id int) (*api.Review, error) {
	r, ok := s.reviews[id]
	if !ok {
		return nil, dErrors.New(dErrors.CodeNotFound, "Review not found")
	}
	if r.UserID != userID {
		return nil, dErrors.New(dErrors.CodeForbidden, "You can only modify your own reviews")
	}
	return r, nil
}

func (s *Store) UpdateReview(userID, id int, req api.ReviewRequest) (api.Review, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, err := s.ownReview(userID, id)
	if err != nil {
		return api.Review{}, err
	}
	r.Rating = req.Rating
	r.Comment = strings.TrimSpace(req.Comment)
	return *r, nil
}

func (s *Store) DeleteReview(userID, id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.ownReview(userID, id); err != nil {
		return err
	}
	delete(s.reviews, id)
	return nil
}
