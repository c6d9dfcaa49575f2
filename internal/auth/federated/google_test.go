package federated

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "ereader/pkg/domain-errors"
)

const testClientID = "client-123.apps.googleusercontent.com"

func idToken(t *testing.T, iss, aud string, exp time.Time) string {
	t.Helper()
	claims := jwt.RegisteredClaims{
		Issuer:    iss,
		Audience:  jwt.ClaimStrings{aud},
		Subject:   "google-sub-1",
		ExpiresAt: jwt.NewNumericDate(exp),
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("not-google"))
	require.NoError(t, err)
	return tok
}

func TestSignInWithIDToken(t *testing.T) {
	p := NewGoogle(GoogleConfig{ClientID: testClientID})
	valid := idToken(t, "https://accounts.google.com", testClientID, time.Now().Add(time.Hour))

	got, err := p.SignIn(context.Background(), Credential{IDToken: valid})
	require.NoError(t, err)
	assert.Equal(t, valid, got)
	assert.NoError(t, p.SignOut(context.Background()), "nothing to revoke")
}

func TestSignInRejections(t *testing.T) {
	future := time.Now().Add(time.Hour)
	tests := []struct {
		name string
		cfg  GoogleConfig
		cred Credential
		want ErrorCode
	}{
		{name: "no client id", cfg: GoogleConfig{}, cred: Credential{IDToken: "x"}, want: ErrorConfiguration},
		{name: "empty credential", cfg: GoogleConfig{ClientID: testClientID}, cred: Credential{}, want: ErrorNoCredential},
		{name: "not a jwt", cfg: GoogleConfig{ClientID: testClientID}, cred: Credential{IDToken: "opaque"}, want: ErrorInvalidToken},
		{
			name: "wrong issuer",
			cfg:  GoogleConfig{ClientID: testClientID},
			cred: Credential{IDToken: idToken(t, "https://evil.example.com", testClientID, future)},
			want: ErrorInvalidToken,
		},
		{
			name: "wrong audience",
			cfg:  GoogleConfig{ClientID: testClientID},
			cred: Credential{IDToken: idToken(t, "accounts.google.com", "other-client", future)},
			want: ErrorConfiguration,
		},
		{
			name: "expired",
			cfg:  GoogleConfig{ClientID: testClientID},
			cred: Credential{IDToken: idToken(t, "accounts.google.com", testClientID, time.Now().Add(-time.Minute))},
			want: ErrorInvalidToken,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewGoogle(tt.cfg).SignIn(context.Background(), tt.cred)
			require.Error(t, err)
			assert.Equal(t, tt.want, CodeOf(err))
		})
	}
}

func TestSignInWithAuthCodeThenRevoke(t *testing.T) {
	token := idToken(t, "accounts.google.com", testClientID, time.Now().Add(time.Hour))
	var revoked url.Values

	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "auth-code", r.PostForm.Get("code"))
		assert.Equal(t, "authorization_code", r.PostForm.Get("grant_type"))
		assert.Equal(t, "verifier", r.PostForm.Get("code_verifier"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"access_token":"at-1","id_token":"`+token+`","expires_in":3600}`)
	})
	mux.HandleFunc("/revoke", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		revoked = r.PostForm
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	p := NewGoogle(GoogleConfig{ClientID: testClientID, TokenURL: srv.URL + "/token", RevokeURL: srv.URL + "/revoke"})

	got, err := p.SignIn(context.Background(), Credential{AuthCode: "auth-code", CodeVerifier: "verifier"})
	require.NoError(t, err)
	assert.Equal(t, token, got)

	require.NoError(t, p.SignOut(context.Background()))
	assert.Equal(t, "at-1", revoked.Get("token"))
}

func TestCodeExchangeFailures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   ErrorCode
	}{
		{name: "invalid grant", status: 400, body: `{"error":"invalid_grant"}`, want: ErrorInvalidToken},
		{name: "bad client", status: 401, body: `{"error":"invalid_client"}`, want: ErrorConfiguration},
		{name: "quota", status: 429, body: `{}`, want: ErrorProviderUnavailable},
		{name: "outage", status: 503, body: ``, want: ErrorProviderUnavailable},
		{name: "no id token", status: 200, body: `{"access_token":"at"}`, want: ErrorNoCredential},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			}))
			defer srv.Close()

			p := NewGoogle(GoogleConfig{ClientID: testClientID, TokenURL: srv.URL})
			_, err := p.SignIn(context.Background(), Credential{AuthCode: "c"})
			assert.Equal(t, tt.want, CodeOf(err))
		})
	}
}

type failingDoer struct{ err error }

func (f failingDoer) Do(*http.Request) (*http.Response, error) { return nil, f.err }

func TestTransportFailures(t *testing.T) {
	p := NewGoogle(GoogleConfig{ClientID: testClientID}, WithHTTPClient(failingDoer{err: errors.New("dial tcp: connection refused")}))
	_, err := p.SignIn(context.Background(), Credential{AuthCode: "c"})
	assert.Equal(t, ErrorNetwork, CodeOf(err))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p = NewGoogle(GoogleConfig{ClientID: testClientID}, WithHTTPClient(failingDoer{err: context.Canceled}))
	_, err = p.SignIn(ctx, Credential{AuthCode: "c"})
	assert.Equal(t, ErrorCancelled, CodeOf(err))
}

func TestWithClock(t *testing.T) {
	exp := time.Now().Add(time.Hour)
	token := idToken(t, "accounts.google.com", testClientID, exp)
	p := NewGoogle(GoogleConfig{ClientID: testClientID}, WithClock(func() time.Time { return exp.Add(time.Second) }))

	_, err := p.SignIn(context.Background(), Credential{IDToken: token})
	assert.Equal(t, ErrorInvalidToken, CodeOf(err))
}

func TestErrorCodeMapping(t *testing.T) {
	assert.Equal(t, dErrors.CodeNetwork, ErrorNetwork.Kind())
	assert.Equal(t, dErrors.CodeUnauthenticated, ErrorInvalidToken.Kind())
	assert.Equal(t, dErrors.CodeServerError, ErrorProviderUnavailable.Kind())
	assert.Equal(t, dErrors.CodeDomain, ErrorCancelled.Kind())
	assert.Contains(t, ErrorConfiguration.UserMessage(), "configuration error")
	assert.Equal(t, ErrorUnknown, CodeOf(errors.New("boom")))
	assert.Equal(t, ErrorCancelled, CodeOf(context.Canceled))
}

func TestDisabled(t *testing.T) {
	_, err := Disabled{}.SignIn(context.Background(), Credential{IDToken: "x"})
	assert.Equal(t, ErrorConfiguration, CodeOf(err))
	assert.NoError(t, Disabled{}.SignOut(context.Background()))
}
