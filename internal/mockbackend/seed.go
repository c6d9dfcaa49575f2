package mockbackend

import (
	"fmt"
	"strings"

	"ereader/internal/api"
)

// Demo account seeded into every fake backend.
const (
	DemoName     = "Demo Reader"
	DemoEmail    = "reader@example.com"
	DemoPassword = "password123"
)

type seedBook struct {
	title, author, released string
	category, pages         int
	description, bio        string
}

var seedCategories = []api.Category{
	{ID: 1, Name: "Classics"},
	{ID: 2, Name: "Science Fiction"},
	{ID: 3, Name: "Mystery"},
}

var seedBooks = []seedBook{
	{"Pride and Prejudice", "Jane Austen", "1813-01-28", 1, 12,
		"<p>A novel of <b>manners</b> following Elizabeth Bennet.</p>", "<p>English novelist of the Regency era.</p>"},
	{"Emma", "Jane Austen", "1815-12-23", 1, 10,
		"<p>Emma Woodhouse meddles in the romantic lives of her friends.</p>", "<p>English novelist of the Regency era.</p>"},
	{"Moby-Dick", "Herman Melville", "1851-10-18", 1, 14,
		"<p>Captain Ahab pursues the white whale.</p>", "<p>American novelist and poet.</p>"},
	{"The Time Machine", "H. G. Wells", "1895-05-07", 2, 8,
		"<p>A Victorian inventor travels to the year 802,701.</p>", "<p>English writer, father of science fiction.</p>"},
	{"The War of the Worlds", "H. G. Wells", "1898-01-01", 2, 9,
		"<p>Martians invade <i>Surrey</i>.</p>", "<p>English writer, father of science fiction.</p>"},
	{"Frankenstein", "Mary Shelley", "1818-01-01", 2, 11,
		"<p>Victor Frankenstein creates a sapient creature.</p>", "<p>English novelist.</p>"},
	{"The Hound of the Baskervilles", "Arthur Conan Doyle", "1902-04-01", 3, 9,
		"<p>Sherlock Holmes investigates a family curse.</p>", "<p>British writer and physician.</p>"},
	{"The Moonstone", "Wilkie Collins", "1868-07-16", 3, 13,
		"<p>A cursed diamond vanishes from a country house.</p>", "<p>English novelist and playwright.</p>"},
	{"A Study in Scarlet", "Arthur Conan Doyle", "1887-11-01", 3, 7,
		"<p>Holmes and Watson meet.</p>", "<p>British writer and physician.</p>"},
	{"The Mysterious Affair at Styles", "Agatha Christie", "1920-10-01", 3, 10,
		"<p>Hercule Poirot's first case.</p>", "<p>English writer of detective novels.</p>"},
}

// Slug derives the document file name of a title.
func Slug(title string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(title) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			dash = false
		case !dash && b.Len() > 0:
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}

// seed fills the catalog and returns the page counts of the seeded documents
// by file name.
func (s *Store) seed() map[string]int {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.categories = append([]api.Category(nil), seedCategories...)
	docs := make(map[string]int, len(seedBooks))
	for i, sb := range seedBooks {
		id := i + 1
		file := Slug(sb.title) + ".pdf"
		pdfPath := "/files/" + file
		image := fmt.Sprintf("https://covers.example.com/%s.jpg", Slug(sb.title))
		b := api.Book{
			ID:          id,
			Title:       sb.title,
			Author:      sb.author,
			Description: ptr(sb.description),
			AuthorBio:   ptr(sb.bio),
			ImageLink:   ptr(image),
			ReleaseDate: ptr(sb.released),
			PageCount:   ptr(sb.pages),
			PdfPath:     ptr(pdfPath),
		}
		s.books = append(s.books, b)
		s.bookCategory[id] = sb.category
		docs[file] = sb.pages
	}
	return docs
}

func ptr[T any](v T) *T {
	return &v
}
