package common

import (
	"context"
	"fmt"
	"strings"

	"github.com/cucumber/godog"

	"ereader/internal/mockbackend"
	"ereader/internal/viewstate"
	"ereader/pkg/outcome"
)

// StatusHolder is any view-state holder.
type StatusHolder = interface {
	Status() *viewstate.Observable[viewstate.Status]
}

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	Backend() *mockbackend.Server
	Active() StatusHolder
	LastFailure() (*outcome.Failure, error)
	Restart() error
}

// RegisterSteps registers common step definitions used across features
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &commonSteps{tc: tc}

	// Background steps
	ctx.Step(`^the backend is running$`, steps.backendIsRunning)
	ctx.Step(`^the app restarts$`, steps.appRestarts)

	// Fault injection
	ctx.Step(`^the backend answers the next "([^"]*)" call with status (\d+) and body '([^']*)'$`, steps.injectFault)
	ctx.Step(`^the backend answers the next "([^"]*)" call with status (\d+)$`, steps.injectStatus)
	ctx.Step(`^the backend received (\d+) "([^"]*)" calls?$`, steps.callsShouldBe)

	// Outcome assertions
	ctx.Step(`^the last operation succeeds$`, steps.lastSucceeds)
	ctx.Step(`^the last operation fails with kind "([^"]*)"$`, steps.lastFailsWithKind)
	ctx.Step(`^the failure message is "([^"]*)"$`, steps.failureMessageIs)

	// Holder status assertions
	ctx.Step(`^the screen shows the error "([^"]*)"$`, steps.errorShown)
	ctx.Step(`^the screen shows no error$`, steps.noErrorShown)
	ctx.Step(`^the screen shows the notice "([^"]*)"$`, steps.noticeShown)
	ctx.Step(`^the screen is not loading$`, steps.notLoading)
}

type commonSteps struct {
	tc TestContext
}

func (s *commonSteps) backendIsRunning(ctx context.Context) error {
	if s.tc.Backend() == nil {
		return fmt.Errorf("backend was not started")
	}
	return nil
}

func (s *commonSteps) appRestarts(ctx context.Context) error {
	return s.tc.Restart()
}

func (s *commonSteps) injectFault(ctx context.Context, endpoint string, status int, body string) error {
	s.tc.Backend().Inject(endpoint, status, body)
	return nil
}

func (s *commonSteps) injectStatus(ctx context.Context, endpoint string, status int) error {
	s.tc.Backend().Inject(endpoint, status, "")
	return nil
}

func (s *commonSteps) callsShouldBe(ctx context.Context, expected int, endpoint string) error {
	if actual := s.tc.Backend().Calls(endpoint); actual != expected {
		return fmt.Errorf("expected %d %s calls but got %d", expected, endpoint, actual)
	}
	return nil
}

func (s *commonSteps) lastSucceeds(ctx context.Context) error {
	f, err := s.tc.LastFailure()
	if err != nil {
		return err
	}
	if f != nil {
		return fmt.Errorf("expected success but got %s: %s", f.Kind, f.Message)
	}
	return nil
}

func (s *commonSteps) lastFailsWithKind(ctx context.Context, kind string) error {
	f, err := s.tc.LastFailure()
	if err != nil {
		return err
	}
	if f == nil {
		return fmt.Errorf("expected a %s failure but the operation succeeded", kind)
	}
	if string(f.Kind) != kind {
		return fmt.Errorf("expected kind %s but got %s (%s)", kind, f.Kind, f.Message)
	}
	return nil
}

func (s *commonSteps) failureMessageIs(ctx context.Context, message string) error {
	f, err := s.tc.LastFailure()
	if err != nil {
		return err
	}
	if f == nil {
		return fmt.Errorf("expected failure %q but the operation succeeded", message)
	}
	if f.Message != message {
		return fmt.Errorf("expected message %q but got %q", message, f.Message)
	}
	return nil
}

func (s *commonSteps) status() (viewstate.Status, error) {
	h := s.tc.Active()
	if h == nil {
		return viewstate.Status{}, fmt.Errorf("no screen has been used yet")
	}
	return h.Status().Get(), nil
}

func (s *commonSteps) errorShown(ctx context.Context, message string) error {
	st, err := s.status()
	if err != nil {
		return err
	}
	if !strings.Contains(st.Error, message) {
		return fmt.Errorf("expected error %q but the screen shows %q", message, st.Error)
	}
	return nil
}

func (s *commonSteps) noErrorShown(ctx context.Context) error {
	st, err := s.status()
	if err != nil {
		return err
	}
	if st.Error != "" {
		return fmt.Errorf("expected no error but the screen shows %q", st.Error)
	}
	return nil
}

func (s *commonSteps) noticeShown(ctx context.Context, notice string) error {
	st, err := s.status()
	if err != nil {
		return err
	}
	if st.Notice != notice {
		return fmt.Errorf("expected notice %q but the screen shows %q", notice, st.Notice)
	}
	return nil
}

func (s *commonSteps) notLoading(ctx context.Context) error {
	st, err := s.status()
	if err != nil {
		return err
	}
	if st.Loading {
		return fmt.Errorf("screen is still loading")
	}
	return nil
}
