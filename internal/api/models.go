package api

import "ereader/internal/session"

// Book is a catalog entry.
type Book struct {
	ID            int      `json:"id"`
	Title         string   `json:"title"`
	Author        string   `json:"author"`
	Description   *string  `json:"description,omitempty"`
	ImageLink     *string  `json:"imageLink,omitempty"`
	ReleaseDate   *string  `json:"releaseDate,omitempty"`
	PageCount     *int     `json:"pageCount,omitempty"`
	Score         *float64 `json:"score,omitempty"`
	AuthorBio     *string  `json:"authorBio,omitempty"`
	PdfPath       *string  `json:"pdfPath,omitempty"`
	AverageRating float64  `json:"averageRating"`
	ReviewCount   int      `json:"reviewCount"`
}

// HasDocument reports whether the book links a readable PDF.
func (b Book) HasDocument() bool {
	return b.PdfPath != nil && *b.PdfPath != ""
}

type Category struct {
	ID        int    `json:"id"`
	Name      string `json:"name"`
	BookCount int    `json:"bookCount"`
}

type Library struct {
	ID        int    `json:"id"`
	Name      string `json:"name"`
	BookCount int    `json:"bookCount"`
	Books     []Book `json:"books"`
}

type Bookmark struct {
	ID         int    `json:"id"`
	Title      string `json:"title"`
	PageNumber int    `json:"pageNumber"`
	CreatedAt  string `json:"createdAt"`
}

type UserStatistics struct {
	TotalBooksRead    int     `json:"totalBooksRead"`
	TotalPagesRead    int     `json:"totalPagesRead"`
	TotalReadingHours float64 `json:"totalReadingHours"`
	TotalReviews      int     `json:"totalReviews"`
	TotalLibraries    int     `json:"totalLibraries"`
}

// UserProfile is the account plus its reading statistics.
type UserProfile struct {
	session.User
	Statistics UserStatistics `json:"statistics"`
}

// BookInfo is the abbreviated book embedded in reading activity.
type BookInfo struct {
	ID        int     `json:"id"`
	Title     string  `json:"title"`
	Author    string  `json:"author"`
	ImageLink *string `json:"imageLink,omitempty"`
	PageCount *int    `json:"pageCount,omitempty"`
}

type ReadingActivity struct {
	BookID                  int      `json:"bookId"`
	Book                    BookInfo `json:"book"`
	FirstAccess             string   `json:"firstAccess"`
	LastAccess              string   `json:"lastAccess"`
	AccessCount             int      `json:"accessCount"`
	TotalPagesRead          int      `json:"totalPagesRead"`
	LastPageRead            int      `json:"lastPageRead"`
	TotalReadingTimeMinutes int      `json:"totalReadingTimeMinutes"`
	ReadingProgress         float64  `json:"readingProgress"`
}

// ReadingState is the reader position saved per book.
type ReadingState struct {
	BookID             int `json:"bookId"`
	CurrentPage        int `json:"currentPage"`
	TotalPages         int `json:"totalPages"`
	ReadingTimeMinutes int `json:"readingTimeMinutes"`
}

type Review struct {
	ID        int    `json:"id"`
	BookID    int    `json:"bookId"`
	UserID    int    `json:"userId"`
	UserName  string `json:"userName"`
	Rating    int    `json:"rating"`
	Comment   string `json:"comment"`
	CreatedAt string `json:"createdAt"`
}

// Pagination is the page metadata attached to list responses.
type Pagination struct {
	CurrentPage     int  `json:"currentPage"`
	PageSize        int  `json:"pageSize"`
	TotalItems      int  `json:"totalItems"`
	TotalPages      int  `json:"totalPages"`
	HasNextPage     bool `json:"hasNextPage"`
	HasPreviousPage bool `json:"hasPreviousPage"`
}

// BookPage is one page of a book listing.
type BookPage struct {
	Books      []Book
	Pagination Pagination
}
