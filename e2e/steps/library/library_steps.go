package library

import (
	"context"
	"fmt"

	"github.com/cucumber/godog"

	"ereader/internal/api"
	"ereader/internal/viewstate"
)

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	Context() context.Context
	LibrariesView() *viewstate.Libraries
	Use(h interface {
		Status() *viewstate.Observable[viewstate.Status]
	})
}

// RegisterSteps registers library management step definitions
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &librarySteps{tc: tc}

	ctx.Step(`^I have a library named "([^"]*)"$`, steps.haveLibrary)
	ctx.Step(`^I have (\d+) libraries$`, steps.haveLibraries)
	ctx.Step(`^I create a library named "([^"]*)"$`, steps.create)
	ctx.Step(`^I rename "([^"]*)" to "([^"]*)"$`, steps.rename)
	ctx.Step(`^I delete the library "([^"]*)"$`, steps.delete)
	ctx.Step(`^I open the library "([^"]*)"$`, steps.open)
	ctx.Step(`^I add book (\d+) to "([^"]*)"$`, steps.addBook)
	ctx.Step(`^I remove book (\d+) from "([^"]*)"$`, steps.removeBook)

	ctx.Step(`^I own (\d+) librar(?:y|ies)$`, steps.countIs)
	ctx.Step(`^"([^"]*)" holds (\d+) books?$`, steps.holds)
	ctx.Step(`^the library draft is "([^"]*)"$`, steps.draftIs)
	ctx.Step(`^the open library is "([^"]*)"$`, steps.openIs)
	ctx.Step(`^no library is open$`, steps.noneOpen)
}

type librarySteps struct {
	tc TestContext
}

func (s *librarySteps) view() *viewstate.Libraries {
	v := s.tc.LibrariesView()
	s.tc.Use(v)
	return v
}

func (s *librarySteps) find(name string) (api.Library, error) {
	for _, l := range s.view().Libraries.Get() {
		if l.Name == name {
			return l, nil
		}
	}
	return api.Library{}, fmt.Errorf("no library named %q", name)
}

func (s *librarySteps) haveLibrary(ctx context.Context, name string) error {
	if !s.view().Create(s.tc.Context(), name) {
		return fmt.Errorf("create %q: %s", name, s.view().Status().Get().Error)
	}
	return nil
}

func (s *librarySteps) haveLibraries(ctx context.Context, n int) error {
	for i := 1; i <= n; i++ {
		if err := s.haveLibrary(ctx, fmt.Sprintf("Shelf %d", i)); err != nil {
			return err
		}
	}
	return nil
}

func (s *librarySteps) create(ctx context.Context, name string) error {
	s.view().Create(s.tc.Context(), name)
	return nil
}

func (s *librarySteps) rename(ctx context.Context, from, to string) error {
	lib, err := s.find(from)
	if err != nil {
		return err
	}
	s.view().Rename(s.tc.Context(), lib.ID, to)
	return nil
}

func (s *librarySteps) delete(ctx context.Context, name string) error {
	lib, err := s.find(name)
	if err != nil {
		return err
	}
	s.view().Delete(s.tc.Context(), lib.ID)
	return nil
}

func (s *librarySteps) open(ctx context.Context, name string) error {
	lib, err := s.find(name)
	if err != nil {
		return err
	}
	s.view().Open(s.tc.Context(), lib.ID)
	return nil
}

func (s *librarySteps) addBook(ctx context.Context, bookID int, name string) error {
	lib, err := s.find(name)
	if err != nil {
		return err
	}
	s.view().AddBook(s.tc.Context(), lib.ID, bookID)
	return nil
}

func (s *librarySteps) removeBook(ctx context.Context, bookID int, name string) error {
	lib, err := s.find(name)
	if err != nil {
		return err
	}
	s.view().RemoveBook(s.tc.Context(), lib.ID, bookID)
	return nil
}

func (s *librarySteps) countIs(ctx context.Context, expected int) error {
	s.view().Load(s.tc.Context())
	if actual := len(s.view().Libraries.Get()); actual != expected {
		return fmt.Errorf("expected %d libraries but have %d", expected, actual)
	}
	return nil
}

func (s *librarySteps) holds(ctx context.Context, name string, expected int) error {
	lib, err := s.find(name)
	if err != nil {
		return err
	}
	if lib.BookCount != expected {
		return fmt.Errorf("expected %q to hold %d books but it holds %d", name, expected, lib.BookCount)
	}
	return nil
}

func (s *librarySteps) draftIs(ctx context.Context, draft string) error {
	if actual := s.view().Draft.Get(); actual != draft {
		return fmt.Errorf("expected draft %q but got %q", draft, actual)
	}
	return nil
}

func (s *librarySteps) openIs(ctx context.Context, name string) error {
	sel := s.view().Selected.Get()
	if sel == nil {
		return fmt.Errorf("no library is open")
	}
	if sel.Name != name {
		return fmt.Errorf("expected open library %q but got %q", name, sel.Name)
	}
	return nil
}

func (s *librarySteps) noneOpen(ctx context.Context) error {
	if sel := s.view().Selected.Get(); sel != nil {
		return fmt.Errorf("expected no open library but %q is open", sel.Name)
	}
	return nil
}
