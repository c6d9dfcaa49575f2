package repository

import (
	"context"
	"encoding/json"
	"strings"

	"ereader/internal/api"
	"ereader/internal/api/client"
	"ereader/internal/auth/federated"
	"ereader/internal/session"
	"ereader/pkg/outcome"

	dErrors "ereader/pkg/domain-errors"
)

// AuthState is derived from the session store: Authenticated while a session
// is stored, LoggedOut otherwise.
type AuthState int

const (
	LoggedOut AuthState = iota
	Authenticated
)

func (s AuthState) String() string {
	if s == Authenticated {
		return "authenticated"
	}
	return "logged_out"
}

func stateOf(s *session.Session) AuthState {
	if s != nil && s.Token != "" {
		return Authenticated
	}
	return LoggedOut
}

const (
	msgSessionSave  = "Could not save your session. Please try again."
	msgSessionClear = "Could not clear your session."
	msgSessionRead  = "Could not read your session."
)

// Login authenticates with email and password and stores the session on
// success.
func (r *Repository) Login(ctx context.Context, email, password string) outcome.Outcome[api.LoginResponse] {
	req := api.LoginRequest{Email: strings.TrimSpace(email), Password: password}
	if o, ok := validated[api.LoginResponse](req); !ok {
		return o
	}
	return r.authenticate(ctx, client.Request{Endpoint: api.Login, Body: req}, "Login failed")
}

// Register creates an account and signs it in.
func (r *Repository) Register(ctx context.Context, name, email, password string) outcome.Outcome[api.LoginResponse] {
	req := api.RegisterRequest{
		Name:     strings.TrimSpace(name),
		Email:    strings.TrimSpace(email),
		Password: password,
	}
	if o, ok := validated[api.LoginResponse](req); !ok {
		return o
	}
	return r.authenticate(ctx, client.Request{Endpoint: api.Register, Body: req}, "Registration failed")
}

// LoginWithGoogleToken exchanges a Google ID token for a backend session.
func (r *Repository) LoginWithGoogleToken(ctx context.Context, idToken string) outcome.Outcome[api.LoginResponse] {
	req := api.GoogleLoginRequest{IDToken: idToken}
	if o, ok := validated[api.LoginResponse](req); !ok {
		return o
	}
	return r.authenticate(ctx, client.Request{Endpoint: api.GoogleLogin, Body: req}, "Google login failed")
}

// SignInWithGoogle runs the provider flow for cred and then logs in with the
// resulting ID token.
func (r *Repository) SignInWithGoogle(ctx context.Context, cred federated.Credential) outcome.Outcome[api.LoginResponse] {
	idToken, err := r.provider.SignIn(ctx, cred)
	if err != nil {
		code := federated.CodeOf(err)
		r.logger.WarnContext(ctx, "federated sign-in failed", "code", code, "error", err)
		return outcome.Fail[api.LoginResponse](code.Kind(), code.UserMessage())
	}
	return r.LoginWithGoogleToken(ctx, idToken)
}

func (r *Repository) authenticate(ctx context.Context, req client.Request, fallback string) outcome.Outcome[api.LoginResponse] {
	o := invoke(ctx, r, req, fallback, loginResponse)
	resp, ok := o.Value()
	if !ok {
		return o
	}
	s, complete := resp.Session()
	if !complete {
		r.logger.WarnContext(ctx, "authentication response without session, nothing stored",
			"endpoint", req.Endpoint.Name)
		return o
	}
	if err := r.sessions.Write(ctx, s); err != nil {
		r.logger.ErrorContext(ctx, "failed to store session", "error", err)
		return outcome.Fail[api.LoginResponse](dErrors.CodeInternal, msgSessionSave)
	}
	r.metrics.RecordAuthTransition(Authenticated.String())
	r.logger.InfoContext(ctx, "signed in", "user_id", s.User.ID, "endpoint", req.Endpoint.Name)
	return o
}

// loginResponse reads token and user from the top level of the body, falling
// back to a data object for backends that nest them.
func loginResponse(body []byte, env *api.Envelope) (api.LoginResponse, error) {
	var resp api.LoginResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return resp, err
	}
	if env == nil {
		resp.Success = resp.Token != ""
		return resp, nil
	}
	if resp.Token == "" && len(env.Data) > 0 {
		var nested api.LoginResponse
		if err := json.Unmarshal(env.Data, &nested); err == nil && nested.Token != "" {
			resp.Token = nested.Token
			resp.User = nested.User
			resp.ExpiresIn = nested.ExpiresIn
		}
	}
	return resp, nil
}

// Logout signs out of the federated provider, best effort, and always
// clears the local session.
func (r *Repository) Logout(ctx context.Context) outcome.Outcome[outcome.Ack] {
	if err := r.provider.SignOut(ctx); err != nil {
		r.logger.WarnContext(ctx, "provider sign-out failed", "error", err)
	}
	if err := r.sessions.Clear(ctx); err != nil {
		r.logger.ErrorContext(ctx, "failed to clear session", "error", err)
		return outcome.Fail[outcome.Ack](dErrors.CodeInternal, msgSessionClear)
	}
	r.metrics.RecordAuthTransition(LoggedOut.String())
	r.logger.InfoContext(ctx, "signed out")
	return outcome.Success(outcome.Ack{})
}

// ValidateSession asks the backend whether the stored token is still valid.
// A token that has expired locally fails without a request; either way an
// invalid session is cleared.
func (r *Repository) ValidateSession(ctx context.Context) outcome.Outcome[session.User] {
	s, err := r.sessions.Read(ctx)
	if err != nil {
		r.logger.ErrorContext(ctx, "failed to read session", "error", err)
		return outcome.Fail[session.User](dErrors.CodeInternal, msgSessionRead)
	}
	if s == nil {
		return outcome.Fail[session.User](dErrors.CodeUnauthenticated, MsgAuthFailed)
	}
	if s.Expired(r.now()) {
		r.dropSession(ctx, "token expired")
		return outcome.Fail[session.User](dErrors.CodeUnauthenticated, MsgSessionExpired)
	}

	o := invoke(ctx, r, client.Request{Endpoint: api.ValidateAuth}, "Session validation failed", data[session.User])
	if o.Kind() == dErrors.CodeUnauthenticated {
		r.dropSession(ctx, "rejected by server")
	}
	return o
}

func (r *Repository) dropSession(ctx context.Context, reason string) {
	if err := r.sessions.Clear(ctx); err != nil {
		r.logger.ErrorContext(ctx, "failed to clear invalid session", "reason", reason, "error", err)
		return
	}
	r.metrics.RecordAuthTransition(LoggedOut.String())
	r.logger.InfoContext(ctx, "session cleared", "reason", reason)
}

// AuthState reads the current state synchronously.
func (r *Repository) AuthState(ctx context.Context) AuthState {
	s, err := r.sessions.Read(ctx)
	if err != nil {
		r.logger.WarnContext(ctx, "failed to read session", "error", err)
		return LoggedOut
	}
	return stateOf(s)
}

// IsLoggedIn reports whether a token is stored.
func (r *Repository) IsLoggedIn(ctx context.Context) bool {
	return r.AuthState(ctx) == Authenticated
}

// CurrentUser returns the stored user, or nil when logged out.
func (r *Repository) CurrentUser(ctx context.Context) *session.User {
	s, err := r.sessions.Read(ctx)
	if err != nil || s == nil {
		return nil
	}
	u := s.User
	return &u
}

// ObserveAuthState emits the state at subscription time and then every
// change. Repeated values are suppressed. The channel closes with ctx.
func (r *Repository) ObserveAuthState(ctx context.Context) <-chan AuthState {
	out := make(chan AuthState, 1)
	in := r.sessions.Observe(ctx)
	go func() {
		defer close(out)
		first := true
		var last AuthState
		for s := range in {
			state := stateOf(s)
			if !first && state == last {
				continue
			}
			first, last = false, state
			select {
			case out <- state:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// ObserveUser emits the stored user, or nil while logged out, on every
// session change.
func (r *Repository) ObserveUser(ctx context.Context) <-chan *session.User {
	out := make(chan *session.User, 1)
	in := r.sessions.Observe(ctx)
	go func() {
		defer close(out)
		for s := range in {
			var u *session.User
			if s != nil {
				copied := s.User
				u = &copied
			}
			select {
			case out <- u:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}
