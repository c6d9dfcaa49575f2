package catalog

import (
	"context"
	"fmt"
	"strings"

	"github.com/cucumber/godog"

	"ereader/internal/viewstate"
)

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	Context() context.Context
	BookList(pageSize int) *viewstate.BookList
	Use(h interface {
		Status() *viewstate.Observable[viewstate.Status]
	})
}

// RegisterSteps registers catalog browsing step definitions
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &catalogSteps{tc: tc}

	ctx.Step(`^I browse the catalog with page size (\d+)$`, steps.browse)
	ctx.Step(`^I load more books$`, steps.loadMore)
	ctx.Step(`^I search for "([^"]*)"$`, steps.search)
	ctx.Step(`^I filter by category (\d+)$`, steps.filterByCategory)
	ctx.Step(`^I sort books by "([^"]*)"$`, steps.sortBy)
	ctx.Step(`^I clear the filters$`, steps.clearFilters)
	ctx.Step(`^I retry$`, steps.retry)
	ctx.Step(`^I select book (\d+)$`, steps.selectBook)

	ctx.Step(`^I see (\d+) books?$`, steps.seeBooks)
	ctx.Step(`^more books are available$`, steps.moreAvailable)
	ctx.Step(`^no more books are available$`, steps.noMoreAvailable)
	ctx.Step(`^the first book is "([^"]*)"$`, steps.firstBookIs)
	ctx.Step(`^every book is by "([^"]*)"$`, steps.everyBookBy)
	ctx.Step(`^the selected book is "([^"]*)" with description "([^"]*)"$`, steps.selectedBookIs)
}

type catalogSteps struct {
	tc TestContext
}

func (s *catalogSteps) list() *viewstate.BookList {
	l := s.tc.BookList(0)
	s.tc.Use(l)
	return l
}

func (s *catalogSteps) browse(ctx context.Context, pageSize int) error {
	l := s.tc.BookList(pageSize)
	s.tc.Use(l)
	l.Load(s.tc.Context())
	return nil
}

func (s *catalogSteps) loadMore(ctx context.Context) error {
	s.list().LoadMore(s.tc.Context())
	return nil
}

func (s *catalogSteps) search(ctx context.Context, query string) error {
	s.list().Search(s.tc.Context(), query)
	return nil
}

func (s *catalogSteps) filterByCategory(ctx context.Context, id int) error {
	s.list().FilterByCategory(s.tc.Context(), &id)
	return nil
}

func (s *catalogSteps) sortBy(ctx context.Context, key string) error {
	s.list().SortBy(s.tc.Context(), key)
	return nil
}

func (s *catalogSteps) clearFilters(ctx context.Context) error {
	s.list().ClearFilters(s.tc.Context())
	return nil
}

func (s *catalogSteps) retry(ctx context.Context) error {
	s.list().Retry(s.tc.Context())
	return nil
}

func (s *catalogSteps) selectBook(ctx context.Context, id int) error {
	s.list().Select(s.tc.Context(), id)
	return nil
}

func (s *catalogSteps) seeBooks(ctx context.Context, expected int) error {
	if actual := len(s.list().Books.Get()); actual != expected {
		return fmt.Errorf("expected %d books but see %d", expected, actual)
	}
	return nil
}

func (s *catalogSteps) moreAvailable(ctx context.Context) error {
	if !s.list().HasMore.Get() {
		return fmt.Errorf("expected more books to be available")
	}
	return nil
}

func (s *catalogSteps) noMoreAvailable(ctx context.Context) error {
	if s.list().HasMore.Get() {
		return fmt.Errorf("expected the last page to be loaded")
	}
	return nil
}

func (s *catalogSteps) firstBookIs(ctx context.Context, title string) error {
	books := s.list().Books.Get()
	if len(books) == 0 {
		return fmt.Errorf("the list is empty")
	}
	if books[0].Title != title {
		return fmt.Errorf("expected first book %q but got %q", title, books[0].Title)
	}
	return nil
}

func (s *catalogSteps) everyBookBy(ctx context.Context, author string) error {
	for _, b := range s.list().Books.Get() {
		if b.Author != author {
			return fmt.Errorf("%q is by %s, not %s", b.Title, b.Author, author)
		}
	}
	return nil
}

func (s *catalogSteps) selectedBookIs(ctx context.Context, title, description string) error {
	b := s.list().Selected.Get()
	if b == nil {
		return fmt.Errorf("no book is selected")
	}
	if b.Title != title {
		return fmt.Errorf("expected %q but selected %q", title, b.Title)
	}
	if got := b.PlainDescription(); !strings.EqualFold(got, description) {
		return fmt.Errorf("expected description %q but got %q", description, got)
	}
	return nil
}
