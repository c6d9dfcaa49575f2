package string

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestToSnakeCase(t *testing.T) {
	tests := map[string]string{
		"PageNumber":    "page_number",
		"BookID":        "book_id",
		"ID":            "id",
		"ConfirmEmail":  "confirm_email",
		"HTTPTimeoutMs": "http_timeout_ms",
	}
	for in, want := range tests {
		assert.Equal(t, want, ToSnakeCase(in), in)
	}
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "Emma", Truncate("Emma", 10))
	assert.Equal(t, "The Ti…", Truncate("The Time Machine", 7))
	assert.Equal(t, "…", Truncate("Moby-Dick", 1))
	assert.Equal(t, "Moby-Dick", Truncate("Moby-Dick", 0))
}

func TestTrimStrings(t *testing.T) {
	a, b := "  reader@example.com ", "Demo\t"
	TrimStrings(&a, &b)
	assert.Equal(t, "reader@example.com", a)
	assert.Equal(t, "Demo", b)
}
