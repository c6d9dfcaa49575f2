package api

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var plainText = bluemonday.StrictPolicy()

// PlainText strips markup from server-provided rich text and collapses
// whitespace, for terminal display.
func PlainText(s string) string {
	cleaned := html.UnescapeString(plainText.Sanitize(s))
	return strings.Join(strings.Fields(cleaned), " ")
}

// PlainDescription is the description without markup.
func (b Book) PlainDescription() string {
	if b.Description == nil {
		return ""
	}
	return PlainText(*b.Description)
}

// PlainAuthorBio is the author biography without markup.
func (b Book) PlainAuthorBio() string {
	if b.AuthorBio == nil {
		return ""
	}
	return PlainText(*b.AuthorBio)
}
