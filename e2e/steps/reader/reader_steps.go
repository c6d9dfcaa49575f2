package reader

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/cucumber/godog"

	"ereader/internal/document"
	"ereader/internal/viewstate"
)

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	Context() context.Context
	ReaderView() *viewstate.Reader
	Documents() *document.Resolver
	OpenBook(bookID int) error
	CloseBook()
	Viewer() (*document.Viewer, error)
	Use(h interface {
		Status() *viewstate.Observable[viewstate.Status]
	})
}

// RegisterSteps registers reading step definitions
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &readerSteps{tc: tc}

	ctx.Step(`^I open book (\d+)$`, steps.openBook)
	ctx.Step(`^I close the book$`, steps.closeBook)
	ctx.Step(`^I turn to the next page$`, steps.next)
	ctx.Step(`^I turn to the previous page$`, steps.prev)
	ctx.Step(`^I go to page (\d+)$`, steps.goTo)
	ctx.Step(`^I swipe (left|right)$`, steps.swipe)
	ctx.Step(`^I double tap the page$`, steps.doubleTap)
	ctx.Step(`^I pinch by ([\d.]+)$`, steps.pinch)
	ctx.Step(`^I bookmark page (\d+) of book (\d+) as "([^"]*)"$`, steps.addBookmark)
	ctx.Step(`^I remove the bookmark "([^"]*)"$`, steps.removeBookmark)
	ctx.Step(`^I purge the document cache$`, steps.purge)

	ctx.Step(`^the document has (\d+) pages$`, steps.pageCountIs)
	ctx.Step(`^I am on page (\d+)$`, steps.pageIs)
	ctx.Step(`^the zoom is ([\d.]+)$`, steps.zoomIs)
	ctx.Step(`^the page renders at (\d+)x(\d+)$`, steps.rendersAt)
	ctx.Step(`^the bookmarks of book (\d+) are "([^"]*)"$`, steps.bookmarksAre)
	ctx.Step(`^(\d+) cached documents? (?:was|were) removed$`, steps.purgedCount)
}

type readerSteps struct {
	tc     TestContext
	purged int
}

func (s *readerSteps) view() *viewstate.Reader {
	v := s.tc.ReaderView()
	s.tc.Use(v)
	return v
}

func (s *readerSteps) openBook(ctx context.Context, id int) error {
	return s.tc.OpenBook(id)
}

func (s *readerSteps) closeBook(ctx context.Context) error {
	s.tc.CloseBook()
	return nil
}

func (s *readerSteps) next(ctx context.Context) error {
	v, err := s.tc.Viewer()
	if err != nil {
		return err
	}
	v.Next()
	return nil
}

func (s *readerSteps) prev(ctx context.Context) error {
	v, err := s.tc.Viewer()
	if err != nil {
		return err
	}
	v.Prev()
	return nil
}

func (s *readerSteps) goTo(ctx context.Context, page int) error {
	v, err := s.tc.Viewer()
	if err != nil {
		return err
	}
	return v.GoTo(page - 1)
}

func (s *readerSteps) swipe(ctx context.Context, dir string) error {
	v, err := s.tc.Viewer()
	if err != nil {
		return err
	}
	if dir == "left" {
		v.Swipe(document.SwipeLeft)
	} else {
		v.Swipe(document.SwipeRight)
	}
	return nil
}

func (s *readerSteps) doubleTap(ctx context.Context) error {
	v, err := s.tc.Viewer()
	if err != nil {
		return err
	}
	v.DoubleTap()
	return nil
}

func (s *readerSteps) pinch(ctx context.Context, scale float64) error {
	v, err := s.tc.Viewer()
	if err != nil {
		return err
	}
	v.Pinch(scale)
	return nil
}

func (s *readerSteps) addBookmark(ctx context.Context, page, bookID int, title string) error {
	s.view().AddBookmark(s.tc.Context(), bookID, page, title)
	return nil
}

func (s *readerSteps) removeBookmark(ctx context.Context, title string) error {
	for _, b := range s.view().Bookmarks.Get() {
		if b.Title == title {
			s.view().RemoveBookmark(s.tc.Context(), b.ID)
			return nil
		}
	}
	return fmt.Errorf("no bookmark titled %q", title)
}

func (s *readerSteps) purge(ctx context.Context) error {
	n, err := s.tc.Documents().Purge()
	s.purged = n
	return err
}

func (s *readerSteps) pageCountIs(ctx context.Context, expected int) error {
	v, err := s.tc.Viewer()
	if err != nil {
		return err
	}
	if actual := v.State().PageCount; actual != expected {
		return fmt.Errorf("expected %d pages but the document has %d", expected, actual)
	}
	return nil
}

func (s *readerSteps) pageIs(ctx context.Context, expected int) error {
	v, err := s.tc.Viewer()
	if err != nil {
		return err
	}
	if actual := v.State().Page + 1; actual != expected {
		return fmt.Errorf("expected page %d but on page %d", expected, actual)
	}
	return nil
}

func (s *readerSteps) zoomIs(ctx context.Context, expected float64) error {
	v, err := s.tc.Viewer()
	if err != nil {
		return err
	}
	if actual := v.State().Zoom; math.Abs(actual-expected) > 1e-9 {
		return fmt.Errorf("expected zoom %.2f but got %.2f", expected, actual)
	}
	return nil
}

func (s *readerSteps) rendersAt(ctx context.Context, width, height int) error {
	v, err := s.tc.Viewer()
	if err != nil {
		return err
	}
	img, err := v.Render(s.tc.Context())
	if err != nil {
		return err
	}
	if b := img.Bounds(); b.Dx() != width || b.Dy() != height {
		return fmt.Errorf("expected %dx%d but rendered %dx%d", width, height, b.Dx(), b.Dy())
	}
	return nil
}

func (s *readerSteps) bookmarksAre(ctx context.Context, bookID int, titles string) error {
	s.view().LoadBookmarks(s.tc.Context(), bookID)
	var actual []string
	for _, b := range s.view().Bookmarks.Get() {
		actual = append(actual, b.Title)
	}
	if got := strings.Join(actual, ", "); got != titles {
		return fmt.Errorf("expected bookmarks %q but got %q", titles, got)
	}
	return nil
}

func (s *readerSteps) purgedCount(ctx context.Context, expected int) error {
	if s.purged != expected {
		return fmt.Errorf("expected %d documents purged but %d were", expected, s.purged)
	}
	return nil
}
