package testutil

import (
	"fmt"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TestSecret signs tokens minted by test helpers and the fake backend in tests.
const TestSecret = "test-signing-secret"

// SignedToken mints an HS256 JWT for userID expiring at exp.
func SignedToken(t testing.TB, userID int, exp time.Time) string {
	t.Helper()
	claims := jwt.RegisteredClaims{
		Subject:   strconv.Itoa(userID),
		IssuedAt:  jwt.NewNumericDate(time.Now()),
		ExpiresAt: jwt.NewNumericDate(exp),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(TestSecret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}

// ValidToken mints a token valid for one hour.
func ValidToken(t testing.TB, userID int) string {
	return SignedToken(t, userID, time.Now().Add(time.Hour))
}

// ExpiredToken mints a token that expired one hour ago.
func ExpiredToken(t testing.TB, userID int) string {
	return SignedToken(t, userID, time.Now().Add(-time.Hour))
}

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T {
	return &v
}

// SamplePDF builds a minimal uncompressed PDF with the given number of
// 300x400 point pages.
func SamplePDF(pages int) []byte {
	var b strings.Builder
	b.WriteString("%PDF-1.4\n")
	b.WriteString("1 0 obj << /Type /Catalog /Pages 2 0 R >> endobj\n")
	fmt.Fprintf(&b, "2 0 obj << /Type /Pages /Count %d /MediaBox [0 0 300 400] >> endobj\n", pages)
	for i := 0; i < pages; i++ {
		fmt.Fprintf(&b, "%d 0 obj << /Type /Page /Parent 2 0 R >> endobj\n", i+3)
	}
	b.WriteString("trailer << /Root 1 0 R >>\n%%EOF\n")
	return []byte(b.String())
}
