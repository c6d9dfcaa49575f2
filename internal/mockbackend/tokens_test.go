package mockbackend

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ereader/pkg/testutil"
)

func TestIssuer(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	issuer := NewIssuer("secret", time.Hour, clock)

	token, expiresIn, err := issuer.Issue(42)
	require.NoError(t, err)
	assert.EqualValues(t, 3600, expiresIn)

	id, err := issuer.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, 42, id)

	_, err = NewIssuer("other", time.Hour, clock).ValidateToken(token)
	assert.Error(t, err, "wrong secret")

	now = now.Add(2 * time.Hour)
	_, err = issuer.ValidateToken(token)
	assert.Error(t, err, "expired")
}

func TestIssuerAcceptsTestTokens(t *testing.T) {
	issuer := NewIssuer(testutil.TestSecret, time.Hour, time.Now)
	id, err := issuer.ValidateToken(testutil.ValidToken(t, 7))
	require.NoError(t, err)
	assert.Equal(t, 7, id)

	_, err = issuer.ValidateToken(testutil.ExpiredToken(t, 7))
	assert.Error(t, err)
}

func TestSlug(t *testing.T) {
	assert.Equal(t, "pride-and-prejudice", Slug("Pride and Prejudice"))
	assert.Equal(t, "the-time-machine", Slug("The Time Machine!"))
	assert.Equal(t, "h-g-wells", Slug("  H. G. Wells"))
}

func TestDocument(t *testing.T) {
	pdf := Document("Moby (Dick)", 3)
	assert.True(t, bytes.HasPrefix(pdf, []byte("%PDF-")))
	assert.Equal(t, 3, bytes.Count(pdf, []byte("/Type /Page /Parent")))
	assert.Contains(t, string(pdf), `Moby \(Dick\) - page 3`)
}
