package viewstate

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"ereader/internal/api/client"
	"ereader/internal/platform/logger"
	"ereader/internal/repository"
	"ereader/internal/repository/mocks"
	"ereader/internal/session"
	"ereader/internal/session/memory"
)

func newAuth(t *testing.T, store session.Store) (*Auth, *mocks.MockTransport) {
	t.Helper()
	ctrl := gomock.NewController(t)
	transport := mocks.NewMockTransport(ctrl)
	repo := repository.New(transport, store, repository.WithLogger(logger.Discard()))
	return NewAuth(context.Background(), repo, WithLogger(logger.Discard())), transport
}

func respond(status int, body string) *client.Response {
	return &client.Response{StatusCode: status, Body: []byte(body)}
}

func TestAuthStartsFromStoredSession(t *testing.T) {
	store := memory.New(memory.WithSession(session.Session{
		Token: "tok-1",
		User:  session.User{ID: 7, Email: "ada@example.com"},
	}))

	a, _ := newAuth(t, store)

	assert.Equal(t, repository.Authenticated, a.State.Get())
	require.NotNil(t, a.User.Get())
	assert.Equal(t, 7, a.User.Get().ID)
}

func TestAuthLoginAndLogout(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	a, transport := newAuth(t, store)
	assert.Equal(t, repository.LoggedOut, a.State.Get())

	transport.EXPECT().Do(gomock.Any(), gomock.Any()).Return(respond(http.StatusOK,
		`{"success":true,"token":"tok-1","user":{"id":7,"name":"Ada","email":"ada@example.com"}}`), nil)

	require.True(t, a.Login(ctx, "ada@example.com", "hunter22"))
	assert.Equal(t, repository.Authenticated, a.State.Get())
	assert.Equal(t, "Ada", a.User.Get().Name)

	a.Logout(ctx)
	assert.Equal(t, repository.LoggedOut, a.State.Get())
	assert.Nil(t, a.User.Get())
	got, err := store.Read(ctx)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestAuthLoginFailure(t *testing.T) {
	a, transport := newAuth(t, memory.New())
	transport.EXPECT().Do(gomock.Any(), gomock.Any()).Return(respond(http.StatusUnauthorized,
		`{"success":false,"message":"Invalid credentials"}`), nil)

	assert.False(t, a.Login(context.Background(), "ada@example.com", "nope"))
	assert.Equal(t, repository.MsgBadCredentials, a.Status().Get().Error)
	assert.Equal(t, repository.LoggedOut, a.State.Get())
	assert.False(t, a.Status().Get().Loading)
}

func TestAuthFormChecks(t *testing.T) {
	ctx := context.Background()
	a, _ := newAuth(t, memory.New())

	tests := []struct {
		name   string
		submit func() bool
		want   string
	}{
		{"login email", func() bool { return a.Login(ctx, " ", "x") }, "Email is required"},
		{"login password", func() bool { return a.Login(ctx, "ada@example.com", "") }, "Password is required"},
		{"register name", func() bool { return a.Register(ctx, "", "a@b.co", "hunter22", "hunter22") }, "Name is required"},
		{"register confirm", func() bool { return a.Register(ctx, "Ada", "a@b.co", "hunter22", "") }, "Please confirm your password"},
		{"register mismatch", func() bool { return a.Register(ctx, "Ada", "a@b.co", "hunter22", "hunter23") }, "Passwords do not match"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.False(t, tt.submit())
			assert.Equal(t, tt.want, a.Status().Get().Error)
		})
	}
}

func TestAuthWatchFollowsStore(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	store := memory.New()
	a, _ := newAuth(t, store)
	a.Watch(ctx)

	require.NoError(t, store.Write(ctx, session.Session{Token: "tok-2", User: session.User{ID: 8, Email: "bo@example.com"}}))
	assert.Eventually(t, func() bool {
		u := a.User.Get()
		return a.State.Get() == repository.Authenticated && u != nil && u.ID == 8
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, store.Clear(ctx))
	assert.Eventually(t, func() bool {
		return a.State.Get() == repository.LoggedOut && a.User.Get() == nil
	}, time.Second, 5*time.Millisecond)
}
