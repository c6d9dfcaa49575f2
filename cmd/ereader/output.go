package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"ereader/internal/api"
	"ereader/internal/session"
	str "ereader/pkg/string"
)

const columnWidth = 40

type homeView struct {
	Popular    []api.Book     `json:"popular"`
	Recent     []api.Book     `json:"recent"`
	Categories []api.Category `json:"categories"`
}

type profileView struct {
	api.UserProfile
	Activity []api.ReadingActivity `json:"activity"`
}

type openView struct {
	Title     string  `json:"title"`
	Path      string  `json:"path"`
	Page      int     `json:"page"`
	PageCount int     `json:"pageCount"`
	Zoom      float64 `json:"zoom"`
	Width     int     `json:"width"`
	Height    int     `json:"height"`
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func table(w io.Writer, header string, rows func(tw *tabwriter.Writer)) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, header)
	rows(tw)
	_ = tw.Flush()
}

func printSignedIn(w io.Writer, resp api.LoginResponse) {
	if resp.User == nil {
		fmt.Fprintln(w, "Signed in.")
		return
	}
	fmt.Fprintf(w, "Signed in as %s <%s>.\n", resp.User.Name, resp.User.Email)
}

func printUser(w io.Writer, u session.User) {
	fmt.Fprintf(w, "%s <%s>\n", u.Name, u.Email)
	fmt.Fprintf(w, "id:   %d\n", u.ID)
	fmt.Fprintf(w, "role: %s\n", u.RoleOrDefault())
}

func printBooks(w io.Writer, books []api.Book) {
	if len(books) == 0 {
		fmt.Fprintln(w, "No books.")
		return
	}
	table(w, "ID\tTITLE\tAUTHOR\tRATING", func(tw *tabwriter.Writer) {
		for _, b := range books {
			fmt.Fprintf(tw, "%d\t%s\t%s\t%.1f (%d)\n", b.ID, str.Truncate(b.Title, columnWidth), str.Truncate(b.Author, columnWidth), b.AverageRating, b.ReviewCount)
		}
	})
}

func printBookPage(w io.Writer, p api.BookPage) {
	printBooks(w, p.Books)
	pg := p.Pagination
	fmt.Fprintf(w, "\npage %d of %d (%d books)\n", pg.CurrentPage, pg.TotalPages, pg.TotalItems)
}

func printBook(w io.Writer, b api.Book) {
	fmt.Fprintf(w, "%s\nby %s\n", b.Title, b.Author)
	if b.ReleaseDate != nil {
		fmt.Fprintf(w, "released: %s\n", *b.ReleaseDate)
	}
	if b.PageCount != nil {
		fmt.Fprintf(w, "pages:    %d\n", *b.PageCount)
	}
	fmt.Fprintf(w, "rating:   %.1f from %d review(s)\n", b.AverageRating, b.ReviewCount)
	if b.HasDocument() {
		fmt.Fprintf(w, "document: %s\n", *b.PdfPath)
	}
	if d := b.PlainDescription(); d != "" {
		fmt.Fprintf(w, "\n%s\n", d)
	}
	if bio := b.PlainAuthorBio(); bio != "" {
		fmt.Fprintf(w, "\nAbout the author: %s\n", bio)
	}
}

func printCategories(w io.Writer, cats []api.Category) {
	table(w, "ID\tNAME\tBOOKS", func(tw *tabwriter.Writer) {
		for _, c := range cats {
			fmt.Fprintf(tw, "%d\t%s\t%d\n", c.ID, c.Name, c.BookCount)
		}
	})
}

func printHome(w io.Writer, h homeView) {
	fmt.Fprintln(w, "Popular")
	printBooks(w, h.Popular)
	fmt.Fprintln(w, "\nRecently added")
	printBooks(w, h.Recent)
	fmt.Fprintln(w, "\nCategories")
	printCategories(w, h.Categories)
}

func printProfile(w io.Writer, p api.UserProfile) {
	printUser(w, p.User)
	s := p.Statistics
	fmt.Fprintf(w, "\nbooks read:    %d\n", s.TotalBooksRead)
	fmt.Fprintf(w, "pages read:    %d\n", s.TotalPagesRead)
	fmt.Fprintf(w, "reading hours: %.1f\n", s.TotalReadingHours)
	fmt.Fprintf(w, "reviews:       %d\n", s.TotalReviews)
	fmt.Fprintf(w, "libraries:     %d\n", s.TotalLibraries)
}

func printProfileView(w io.Writer, v profileView) {
	printProfile(w, v.UserProfile)
	fmt.Fprintln(w)
	printActivity(w, v.Activity)
}

func printActivity(w io.Writer, items []api.ReadingActivity) {
	if len(items) == 0 {
		fmt.Fprintln(w, "No reading activity yet.")
		return
	}
	table(w, "BOOK\tTITLE\tLAST PAGE\tPROGRESS\tMINUTES", func(tw *tabwriter.Writer) {
		for _, a := range items {
			fmt.Fprintf(tw, "%d\t%s\t%d\t%.0f%%\t%d\n",
				a.BookID, a.Book.Title, a.LastPageRead, a.ReadingProgress, a.TotalReadingTimeMinutes)
		}
	})
}

func printLibraries(w io.Writer, libs []api.Library) {
	if len(libs) == 0 {
		fmt.Fprintln(w, "No libraries.")
		return
	}
	table(w, "ID\tNAME\tBOOKS", func(tw *tabwriter.Writer) {
		for _, l := range libs {
			fmt.Fprintf(tw, "%d\t%s\t%d\n", l.ID, l.Name, l.BookCount)
		}
	})
}

func printLibrary(w io.Writer, l api.Library) {
	fmt.Fprintf(w, "%s (library %d, %d book(s))\n", l.Name, l.ID, l.BookCount)
	if len(l.Books) > 0 {
		fmt.Fprintln(w)
		printBooks(w, l.Books)
	}
}

func printBookmarks(w io.Writer, marks []api.Bookmark) {
	if len(marks) == 0 {
		fmt.Fprintln(w, "No bookmarks.")
		return
	}
	table(w, "ID\tPAGE\tTITLE", func(tw *tabwriter.Writer) {
		for _, m := range marks {
			fmt.Fprintf(tw, "%d\t%d\t%s\n", m.ID, m.PageNumber, m.Title)
		}
	})
}

func printReviews(w io.Writer, reviews []api.Review) {
	if len(reviews) == 0 {
		fmt.Fprintln(w, "No reviews.")
		return
	}
	for _, r := range reviews {
		fmt.Fprintf(w, "%s %s (review %d)\n", strings.Repeat("*", r.Rating), r.UserName, r.ID)
		if r.Comment != "" {
			fmt.Fprintf(w, "  %s\n", api.PlainText(r.Comment))
		}
	}
}

func printOpen(w io.Writer, v openView) {
	fmt.Fprintf(w, "%s\n", v.Title)
	fmt.Fprintf(w, "file: %s\n", v.Path)
	fmt.Fprintf(w, "page %d of %d at %.1fx (%dx%d)\n", v.Page, v.PageCount, v.Zoom, v.Width, v.Height)
}
