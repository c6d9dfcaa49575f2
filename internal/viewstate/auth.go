package viewstate

import (
	"context"
	"strings"

	"ereader/internal/api"
	"ereader/internal/auth/federated"
	"ereader/internal/repository"
	"ereader/internal/session"
	"ereader/pkg/outcome"
)

// Authenticator is the slice of the repository used by Auth.
type Authenticator interface {
	Login(ctx context.Context, email, password string) outcome.Outcome[api.LoginResponse]
	Register(ctx context.Context, name, email, password string) outcome.Outcome[api.LoginResponse]
	SignInWithGoogle(ctx context.Context, cred federated.Credential) outcome.Outcome[api.LoginResponse]
	Logout(ctx context.Context) outcome.Outcome[outcome.Ack]
	AuthState(ctx context.Context) repository.AuthState
	CurrentUser(ctx context.Context) *session.User
	ObserveAuthState(ctx context.Context) <-chan repository.AuthState
	ObserveUser(ctx context.Context) <-chan *session.User
}

// Auth mirrors the stored session and drives the sign-in screens.
type Auth struct {
	tracker
	auth Authenticator

	State *Observable[repository.AuthState]
	User  *Observable[*session.User]
}

// NewAuth seeds State and User from a synchronous store read.
func NewAuth(ctx context.Context, auth Authenticator, opts ...Option) *Auth {
	return &Auth{
		tracker: newTracker(opts),
		auth:    auth,
		State:   NewObservable(auth.AuthState(ctx)),
		User:    NewObservable(auth.CurrentUser(ctx)),
	}
}

// Watch keeps State and User in step with the session store until ctx is
// done. It returns immediately.
func (a *Auth) Watch(ctx context.Context) {
	states := a.auth.ObserveAuthState(ctx)
	users := a.auth.ObserveUser(ctx)
	go func() {
		for s := range states {
			a.State.Set(s)
		}
	}()
	go func() {
		for u := range users {
			a.User.Set(u)
		}
	}()
}

func (a *Auth) Login(ctx context.Context, email, password string) bool {
	if msg := loginFormError(email, password); msg != "" {
		a.fail(msg)
		return false
	}
	a.begin()
	o := a.auth.Login(ctx, email, password)
	a.adopt(ctx, o)
	endWith(&a.tracker, o, "")
	return o.IsSuccess()
}

func (a *Auth) Register(ctx context.Context, name, email, password, confirm string) bool {
	if msg := registerFormError(name, email, password, confirm); msg != "" {
		a.fail(msg)
		return false
	}
	a.begin()
	o := a.auth.Register(ctx, name, email, password)
	a.adopt(ctx, o)
	endWith(&a.tracker, o, "")
	return o.IsSuccess()
}

func (a *Auth) SignInWithGoogle(ctx context.Context, cred federated.Credential) bool {
	a.begin()
	o := a.auth.SignInWithGoogle(ctx, cred)
	a.adopt(ctx, o)
	endWith(&a.tracker, o, "")
	return o.IsSuccess()
}

// Logout always ends logged out locally.
func (a *Auth) Logout(ctx context.Context) {
	a.begin()
	o := a.auth.Logout(ctx)
	a.State.Set(repository.LoggedOut)
	a.User.Set(nil)
	endWith(&a.tracker, o, "")
}

// adopt applies a successful sign-in without waiting for the store
// notification that Watch would deliver.
func (a *Auth) adopt(ctx context.Context, o outcome.Outcome[api.LoginResponse]) {
	if !o.IsSuccess() {
		return
	}
	a.State.Set(a.auth.AuthState(ctx))
	a.User.Set(a.auth.CurrentUser(ctx))
}

func (a *Auth) fail(msg string) {
	a.status.Update(func(s Status) Status {
		s.Error = msg
		return s
	})
}

func loginFormError(email, password string) string {
	switch {
	case strings.TrimSpace(email) == "":
		return "Email is required"
	case password == "":
		return "Password is required"
	default:
		return ""
	}
}

func registerFormError(name, email, password, confirm string) string {
	switch {
	case strings.TrimSpace(name) == "":
		return "Name is required"
	case strings.TrimSpace(email) == "":
		return "Email is required"
	case password == "":
		return "Password is required"
	case confirm == "":
		return "Please confirm your password"
	case password != confirm:
		return "Passwords do not match"
	default:
		return ""
	}
}

var (
	_ Catalog        = (*repository.Repository)(nil)
	_ LibraryService = (*repository.Repository)(nil)
	_ ReaderService  = (*repository.Repository)(nil)
	_ ProfileService = (*repository.Repository)(nil)
	_ Authenticator  = (*repository.Repository)(nil)
)
