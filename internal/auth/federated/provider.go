// Package federated exchanges an external identity provider credential for
// an ID token the backend accepts at auth/google.
package federated

import (
	"context"
	"strings"
)

// Credential is the opaque handle produced by the platform sign-in flow:
// either an ID token obtained directly, or an authorization code to redeem.
type Credential struct {
	IDToken      string
	AuthCode     string
	CodeVerifier string
}

// IsEmpty reports whether the credential carries nothing to redeem.
func (c Credential) IsEmpty() bool {
	return strings.TrimSpace(c.IDToken) == "" && strings.TrimSpace(c.AuthCode) == ""
}

// Provider yields ID tokens and ends provider-side sessions. Errors are
// *Error values classified by ErrorCode.
type Provider interface {
	SignIn(ctx context.Context, cred Credential) (idToken string, err error)
	SignOut(ctx context.Context) error
}

//go:generate mockgen -source=provider.go -destination=mocks/provider_mock.go -package=mocks Provider

// Disabled is the provider used when no client ID is configured.
type Disabled struct{}

func (Disabled) SignIn(context.Context, Credential) (string, error) {
	return "", NewError(ErrorConfiguration, "federated sign-in is not configured", nil)
}

func (Disabled) SignOut(context.Context) error {
	return nil
}

var _ Provider = Disabled{}
