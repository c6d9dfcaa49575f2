package federated

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	defaultGoogleTokenURL  = "https://oauth2.googleapis.com/token"
	defaultGoogleRevokeURL = "https://oauth2.googleapis.com/revoke"
)

var googleIssuers = map[string]bool{
	"accounts.google.com":         true,
	"https://accounts.google.com": true,
}

// HTTPDoer is the minimal interface needed from an HTTP client.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// GoogleConfig configures GoogleProvider.
type GoogleConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string

	// Overridable for tests.
	TokenURL  string
	RevokeURL string
}

// GoogleProvider redeems Google credentials. The ID token signature is
// verified by the backend; this side checks audience, issuer and expiry so
// an obviously wrong token fails before a network round trip.
type GoogleProvider struct {
	config GoogleConfig
	http   HTTPDoer
	now    func() time.Time

	mu          sync.Mutex
	accessToken string
}

// GoogleOption configures a GoogleProvider.
type GoogleOption func(*GoogleProvider)

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(c HTTPDoer) GoogleOption {
	return func(p *GoogleProvider) {
		p.http = c
	}
}

// WithClock overrides the time source used for expiry checks.
func WithClock(now func() time.Time) GoogleOption {
	return func(p *GoogleProvider) {
		p.now = now
	}
}

// NewGoogle creates a Google provider.
func NewGoogle(config GoogleConfig, opts ...GoogleOption) *GoogleProvider {
	if config.TokenURL == "" {
		config.TokenURL = defaultGoogleTokenURL
	}
	if config.RevokeURL == "" {
		config.RevokeURL = defaultGoogleRevokeURL
	}
	p := &GoogleProvider{
		config: config,
		http:   &http.Client{Timeout: 30 * time.Second},
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

type googleTokenResponse struct {
	AccessToken string `json:"access_token"`
	IDToken     string `json:"id_token"`
	ExpiresIn   int    `json:"expires_in"`
	TokenType   string `json:"token_type"`
}

type googleErrorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

// SignIn returns an ID token for cred, redeeming an authorization code first
// when no ID token is supplied.
func (p *GoogleProvider) SignIn(ctx context.Context, cred Credential) (string, error) {
	if p.config.ClientID == "" {
		return "", NewError(ErrorConfiguration, "google client id is not set", nil)
	}
	if cred.IsEmpty() {
		return "", NewError(ErrorNoCredential, "no id token or authorization code", nil)
	}

	idToken := strings.TrimSpace(cred.IDToken)
	if idToken == "" {
		tok, err := p.exchangeCode(ctx, cred)
		if err != nil {
			return "", err
		}
		if tok.IDToken == "" {
			return "", NewError(ErrorNoCredential, "token response carried no id_token", nil)
		}
		p.mu.Lock()
		p.accessToken = tok.AccessToken
		p.mu.Unlock()
		idToken = tok.IDToken
	}

	if err := p.checkClaims(idToken); err != nil {
		return "", err
	}
	return idToken, nil
}

// SignOut revokes the access token obtained by the last code exchange. It is
// a no-op when sign-in used a bare ID token.
func (p *GoogleProvider) SignOut(ctx context.Context) error {
	p.mu.Lock()
	token := p.accessToken
	p.accessToken = ""
	p.mu.Unlock()
	if token == "" {
		return nil
	}

	form := url.Values{"token": {token}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.config.RevokeURL, strings.NewReader(form.Encode()))
	if err != nil {
		return NewError(ErrorUnknown, "build revoke request", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.http.Do(req)
	if err != nil {
		return classifyTransport(ctx, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return classifyStatus(resp.StatusCode, nil)
	}
	return nil
}

func (p *GoogleProvider) exchangeCode(ctx context.Context, cred Credential) (*googleTokenResponse, error) {
	form := url.Values{
		"code":         {cred.AuthCode},
		"client_id":    {p.config.ClientID},
		"redirect_uri": {p.config.RedirectURL},
		"grant_type":   {"authorization_code"},
	}
	if p.config.ClientSecret != "" {
		form.Set("client_secret", p.config.ClientSecret)
	}
	if cred.CodeVerifier != "" {
		form.Set("code_verifier", cred.CodeVerifier)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.config.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, NewError(ErrorUnknown, "build token request", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := p.http.Do(req)
	if err != nil {
		return nil, classifyTransport(ctx, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, classifyTransport(ctx, err)
	}
	if resp.StatusCode != http.StatusOK {
		var gerr googleErrorResponse
		_ = json.Unmarshal(body, &gerr)
		return nil, classifyStatus(resp.StatusCode, &gerr)
	}

	var tok googleTokenResponse
	if err := json.Unmarshal(body, &tok); err != nil {
		return nil, NewError(ErrorUnknown, "parse token response", err)
	}
	return &tok, nil
}

func (p *GoogleProvider) checkClaims(idToken string) error {
	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(idToken, &claims); err != nil {
		return NewError(ErrorInvalidToken, "id token is not a JWT", err)
	}
	if !googleIssuers[claims.Issuer] {
		return NewError(ErrorInvalidToken, fmt.Sprintf("unexpected issuer %q", claims.Issuer), nil)
	}
	audOK := false
	for _, aud := range claims.Audience {
		if aud == p.config.ClientID {
			audOK = true
			break
		}
	}
	if !audOK {
		return NewError(ErrorConfiguration, "id token was issued for a different client", nil)
	}
	if claims.ExpiresAt == nil || !p.now().Before(claims.ExpiresAt.Time) {
		return NewError(ErrorInvalidToken, "id token expired", nil)
	}
	return nil
}

func classifyTransport(ctx context.Context, err error) *Error {
	if errors.Is(err, context.Canceled) || errors.Is(ctx.Err(), context.Canceled) {
		return NewError(ErrorCancelled, "sign-in cancelled", err)
	}
	return NewError(ErrorNetwork, "identity provider unreachable", err)
}

func classifyStatus(status int, body *googleErrorResponse) *Error {
	detail := fmt.Sprintf("status %d", status)
	if body != nil && body.Error != "" {
		detail = body.Error
		if body.ErrorDescription != "" {
			detail += ": " + body.ErrorDescription
		}
	}
	switch {
	case body != nil && (body.Error == "invalid_client" || body.Error == "unauthorized_client" || body.Error == "redirect_uri_mismatch"):
		return NewError(ErrorConfiguration, detail, nil)
	case body != nil && body.Error == "invalid_grant":
		return NewError(ErrorInvalidToken, detail, nil)
	case status == http.StatusTooManyRequests || status >= 500:
		return NewError(ErrorProviderUnavailable, detail, nil)
	case status == http.StatusUnauthorized || status == http.StatusBadRequest:
		return NewError(ErrorInvalidToken, detail, nil)
	default:
		return NewError(ErrorUnknown, detail, nil)
	}
}

var _ Provider = (*GoogleProvider)(nil)
