package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/cucumber/godog"
	"github.com/golang-jwt/jwt/v5"

	"ereader/internal/mockbackend"
	"ereader/internal/repository"
	"ereader/internal/session"
	"ereader/internal/viewstate"
	"ereader/pkg/outcome"
	"ereader/pkg/testutil"
)

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	Context() context.Context
	Backend() *mockbackend.Server
	Repository() *repository.Repository
	Sessions() session.Store
	AuthView() *viewstate.Auth
	Use(h interface {
		Status() *viewstate.Observable[viewstate.Status]
	})
	Record(o interface {
		Failure() (outcome.Failure, bool)
	})
}

// RegisterSteps registers authentication-related step definitions
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &authSteps{tc: tc}

	ctx.Step(`^I am signed in as the demo reader$`, steps.signInAsDemo)
	ctx.Step(`^I sign in as "([^"]*)" with password "([^"]*)"$`, steps.signIn)
	ctx.Step(`^I register "([^"]*)" with email "([^"]*)", password "([^"]*)" and confirmation "([^"]*)"$`, steps.register)
	ctx.Step(`^I sign in with a Google ID token for "([^"]*)" named "([^"]*)"$`, steps.googleSignIn)
	ctx.Step(`^a session with an expired token is stored$`, steps.storeExpiredSession)
	ctx.Step(`^I validate my session$`, steps.validate)
	ctx.Step(`^I sign out$`, steps.signOut)

	ctx.Step(`^I am signed in as "([^"]*)"$`, steps.signedInAs)
	ctx.Step(`^I am signed out$`, steps.signedOut)
}

type authSteps struct {
	tc TestContext
}

func (s *authSteps) signInAsDemo(ctx context.Context) error {
	if err := s.signIn(ctx, mockbackend.DemoEmail, mockbackend.DemoPassword); err != nil {
		return err
	}
	if !s.tc.Repository().IsLoggedIn(s.tc.Context()) {
		return fmt.Errorf("demo sign-in failed: %s", s.tc.AuthView().Status().Get().Error)
	}
	return nil
}

func (s *authSteps) signIn(ctx context.Context, email, password string) error {
	view := s.tc.AuthView()
	s.tc.Use(view)
	view.Login(s.tc.Context(), email, password)
	return nil
}

func (s *authSteps) register(ctx context.Context, name, email, password, confirm string) error {
	view := s.tc.AuthView()
	s.tc.Use(view)
	view.Register(s.tc.Context(), name, email, password, confirm)
	return nil
}

// googleSignIn posts an ID token the fake backend accepts without checking
// its signature.
func (s *authSteps) googleSignIn(ctx context.Context, email, name string) error {
	idToken, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"iss":   "https://accounts.google.com",
		"email": email,
		"name":  name,
		"exp":   time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte("google-test-key"))
	if err != nil {
		return err
	}
	o := s.tc.Repository().LoginWithGoogleToken(s.tc.Context(), idToken)
	s.tc.Record(o)
	return nil
}

func (s *authSteps) storeExpiredSession(ctx context.Context) error {
	issuer := mockbackend.NewIssuer(testutil.TestSecret, -time.Hour, time.Now)
	token, _, err := issuer.Issue(1001)
	if err != nil {
		return err
	}
	return s.tc.Sessions().Write(s.tc.Context(), session.Session{
		Token: token,
		User:  session.User{ID: 1001, Name: mockbackend.DemoName, Email: mockbackend.DemoEmail},
	})
}

func (s *authSteps) validate(ctx context.Context) error {
	s.tc.Record(s.tc.Repository().ValidateSession(s.tc.Context()))
	return nil
}

func (s *authSteps) signOut(ctx context.Context) error {
	view := s.tc.AuthView()
	s.tc.Use(view)
	view.Logout(s.tc.Context())
	return nil
}

func (s *authSteps) signedInAs(ctx context.Context, name string) error {
	user := s.tc.Repository().CurrentUser(s.tc.Context())
	if user == nil {
		return fmt.Errorf("expected to be signed in as %s but no session is stored", name)
	}
	if user.Name != name {
		return fmt.Errorf("expected to be signed in as %s but got %s", name, user.Name)
	}
	return eventually(func() bool {
		u := s.tc.AuthView().User.Get()
		return s.tc.AuthView().State.Get() == repository.Authenticated && u != nil && u.Name == name
	}, "auth screen to show "+name)
}

func (s *authSteps) signedOut(ctx context.Context) error {
	if s.tc.Repository().IsLoggedIn(s.tc.Context()) {
		return fmt.Errorf("expected to be signed out but a session is stored")
	}
	return eventually(func() bool {
		return s.tc.AuthView().State.Get() == repository.LoggedOut && s.tc.AuthView().User.Get() == nil
	}, "auth screen to show signed out")
}

// eventually polls cond because the auth screen follows the store
// asynchronously.
func eventually(cond func() bool, what string) error {
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return nil
		}
		time.Sleep(5 * time.Millisecond)
	}
	return fmt.Errorf("timed out waiting for %s", what)
}
