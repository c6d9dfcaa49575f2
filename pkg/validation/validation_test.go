package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "ereader/pkg/domain-errors"
)

type signup struct {
	Name     string `validate:"notblank,max=100"`
	Email    string `validate:"required,email"`
	Password string `validate:"required,min=8"`
}

type bookmark struct {
	BookID     int    `validate:"gte=1"`
	PageNumber int    `validate:"gte=1"`
	Title      string `validate:"notblank"`
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		req     any
		wantMsg string
	}{
		{
			name: "valid signup",
			req:  signup{Name: "Ada", Email: "ada@example.com", Password: "correct-horse"},
		},
		{
			name:    "blank name",
			req:     signup{Name: "   ", Email: "ada@example.com", Password: "correct-horse"},
			wantMsg: "name must not be blank",
		},
		{
			name:    "bad email",
			req:     signup{Name: "Ada", Email: "ada-at-example", Password: "correct-horse"},
			wantMsg: "Invalid email format. Please enter a valid email address.",
		},
		{
			name:    "short password",
			req:     signup{Name: "Ada", Email: "ada@example.com", Password: "short"},
			wantMsg: "Password is too weak. Please use at least 8 characters.",
		},
		{
			name:    "page below one",
			req:     bookmark{BookID: 3, PageNumber: 0, Title: "Intro"},
			wantMsg: "page number must be 1 or greater",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.req)
			if tt.wantMsg == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
			assert.Equal(t, tt.wantMsg, err.Error())
		})
	}
}
