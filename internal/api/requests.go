package api

import (
	"net/url"
	"strconv"
	"strings"
)

// Sort keys accepted by the book listing.
const (
	SortTitle  = "title"
	SortAuthor = "author"
	SortRating = "rating"
	SortRecent = "recent"
)

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

func (r *LoginRequest) Normalize() {
	r.Email = strings.TrimSpace(r.Email)
}

type RegisterRequest struct {
	Name     string `json:"name" validate:"notblank,max=100"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

func (r *RegisterRequest) Normalize() {
	r.Name = strings.TrimSpace(r.Name)
	r.Email = strings.TrimSpace(r.Email)
}

type GoogleLoginRequest struct {
	IDToken string `json:"idToken" validate:"notblank"`
}

type LibraryRequest struct {
	Name string `json:"name" validate:"notblank,max=100"`
}

func (r *LibraryRequest) Normalize() {
	r.Name = strings.TrimSpace(r.Name)
}

type CreateBookmarkRequest struct {
	BookID     int    `json:"bookId" validate:"gte=1"`
	PageNumber int    `json:"pageNumber" validate:"gte=1"`
	Title      string `json:"title" validate:"notblank,max=200"`
}

func (r *CreateBookmarkRequest) Normalize() {
	r.Title = strings.TrimSpace(r.Title)
}

type SaveReadingStateRequest struct {
	CurrentPage        int `json:"currentPage" validate:"gte=1"`
	TotalPages         int `json:"totalPages" validate:"gte=0"`
	ReadingTimeMinutes int `json:"readingTimeMinutes" validate:"gte=0"`
}

type ReviewRequest struct {
	Rating  int    `json:"rating" validate:"gte=1,lte=5"`
	Comment string `json:"comment" validate:"max=2000"`
}

// BookQuery filters and pages the book listing.
type BookQuery struct {
	Search     string
	CategoryID *int
	SortBy     string `validate:"omitempty,oneof=title author rating recent"`
	Page       int    `validate:"gte=1"`
	PageSize   int    `validate:"gte=1,lte=100"`
}

// Values renders the query string, omitting unset filters.
func (q BookQuery) Values() url.Values {
	v := url.Values{}
	if q.Search != "" {
		v.Set("search", q.Search)
	}
	if q.CategoryID != nil {
		v.Set("categoryId", strconv.Itoa(*q.CategoryID))
	}
	if q.SortBy != "" {
		v.Set("sortBy", q.SortBy)
	}
	v.Set("page", strconv.Itoa(q.Page))
	v.Set("pageSize", strconv.Itoa(q.PageSize))
	return v
}

// LimitQuery renders the limit parameter of the popular and recent lists.
func LimitQuery(limit int) url.Values {
	return url.Values{"limit": []string{strconv.Itoa(limit)}}
}

// ID formats an entity id as a path parameter.
func ID(id int) string {
	return strconv.Itoa(id)
}
