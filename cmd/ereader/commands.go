package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"ereader/internal/api"
	"ereader/internal/auth/federated"
	"ereader/internal/document"
	"ereader/internal/viewstate"
	"ereader/pkg/outcome"
	str "ereader/pkg/string"

	dErrors "ereader/pkg/domain-errors"
)

type command struct {
	name  string
	usage string
	run   func(ctx context.Context, a *app, args []string) error
}

var commands = []command{
	{"health", "", health},
	{"login", "-email E [-password P]", login},
	{"register", "-name N -email E [-password P]", register},
	{"google-login", "-id-token T | -code C [-verifier V]", googleLogin},
	{"logout", "", logout},
	{"whoami", "", whoami},
	{"validate", "", validate},
	{"home", "", home},
	{"books", "[-search Q] [-category ID] [-sort title|author|rating|recent] [-page N] [-size N]", books},
	{"book", "<id>", book},
	{"popular", "[-limit N]", ranked(true)},
	{"recent", "[-limit N]", ranked(false)},
	{"categories", "", categories},
	{"profile", "", profile},
	{"activity", "", activity},
	{"libraries", "", libraries},
	{"library", "<id>", library},
	{"library-create", "<name>", libraryCreate},
	{"library-rename", "<id> <name>", libraryRename},
	{"library-delete", "<id>", libraryDelete},
	{"library-add", "<library> <book>", libraryAdd},
	{"library-remove", "<library> <book>", libraryRemove},
	{"bookmarks", "<book>", bookmarks},
	{"bookmark-add", "<book> <page> <title>", bookmarkAdd},
	{"bookmark-delete", "<id>", bookmarkDelete},
	{"reviews", "<book>", reviews},
	{"review-add", "<book> <rating> [comment]", reviewAdd},
	{"review-delete", "<id>", reviewDelete},
	{"open", "<book> [-page N] [-zoom F]", open},
	{"purge", "", purge},
}

// usageError means the command line was malformed.
type usageError struct {
	msg string
}

func (e usageError) Error() string { return e.msg }

// failureError carries a classified outcome failure to the exit path.
type failureError struct {
	outcome.Failure
}

func (e failureError) Error() string { return e.Message }

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "usage: ereader [-config FILE] [-json] <command> [args]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "commands:")
	for _, c := range commands {
		fmt.Fprintf(w, "  %-16s %s\n", c.name, c.usage)
	}
}

// dispatch runs the command named by args[0] and maps its error onto an exit
// code: 2 for usage errors, 1 for everything else.
func (a *app) dispatch(ctx context.Context, args []string, stderr io.Writer) int {
	name, rest := args[0], args[1:]
	for _, c := range commands {
		if c.name != name {
			continue
		}
		err := c.run(ctx, a, rest)
		if err == nil {
			return 0
		}
		var ue usageError
		var fe failureError
		switch {
		case errors.As(err, &ue):
			fmt.Fprintf(stderr, "%s\nusage: ereader %s %s\n", ue.msg, c.name, c.usage)
			return 2
		case errors.As(err, &fe):
			a.logger.Debug("command failed", "command", name, "kind", fe.Kind)
			fmt.Fprintln(stderr, fe.Message)
		default:
			fmt.Fprintln(stderr, "error:", err)
		}
		return 1
	}
	fmt.Fprintf(stderr, "unknown command %q\n\n", name)
	printUsage(stderr)
	return 2
}

// holderFailure reports the error a holder surfaced. Holders keep only the
// message, so the kind is Domain.
func holderFailure(h interface {
	Status() *viewstate.Observable[viewstate.Status]
}) error {
	if msg := h.Status().Get().Error; msg != "" {
		return failureError{outcome.Failure{Kind: dErrors.CodeDomain, Message: msg}}
	}
	return nil
}

// result prints the value of o or turns its failure into a failureError.
func result[T any](a *app, o outcome.Outcome[T], render func(io.Writer, T)) error {
	if f, failed := o.Failure(); failed {
		return failureError{f}
	}
	v := o.MustValue()
	if a.json {
		return writeJSON(a.out, v)
	}
	render(a.out, v)
	return nil
}

func done(msg string) func(io.Writer, outcome.Ack) {
	return func(w io.Writer, _ outcome.Ack) {
		fmt.Fprintln(w, msg)
	}
}

// parse splits args into flags and positionals and checks the positional
// count.
func parse(fs *flag.FlagSet, args []string, want int) ([]string, error) {
	fs.SetOutput(io.Discard)
	// Accept flags after positionals: "open 3 -page 2".
	var positional []string
	for {
		if err := fs.Parse(args); err != nil {
			return nil, usageError{err.Error()}
		}
		if fs.NArg() == 0 {
			break
		}
		positional = append(positional, fs.Arg(0))
		args = fs.Args()[1:]
	}
	if len(positional) < want {
		return nil, usageError{fmt.Sprintf("expected %d argument(s), got %d", want, len(positional))}
	}
	return positional, nil
}

func intArg(v, name string) (int, error) {
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, usageError{fmt.Sprintf("%s must be a positive integer, got %q", name, v)}
	}
	return n, nil
}

func noFlags(name string) *flag.FlagSet {
	return flag.NewFlagSet(name, flag.ContinueOnError)
}

func health(ctx context.Context, a *app, _ []string) error {
	return result(a, a.repo.Health(ctx), done("Backend is reachable."))
}

// password falls back to EREADER_PASSWORD so it stays out of shell history.
func password(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	return os.Getenv("EREADER_PASSWORD")
}

func login(ctx context.Context, a *app, args []string) error {
	fs := noFlags("login")
	email := fs.String("email", "", "account email")
	pass := fs.String("password", "", "password (default $EREADER_PASSWORD)")
	if _, err := parse(fs, args, 0); err != nil {
		return err
	}
	str.TrimStrings(email)
	return result(a, a.repo.Login(ctx, *email, password(*pass)), printSignedIn)
}

func register(ctx context.Context, a *app, args []string) error {
	fs := noFlags("register")
	name := fs.String("name", "", "display name")
	email := fs.String("email", "", "account email")
	pass := fs.String("password", "", "password (default $EREADER_PASSWORD)")
	if _, err := parse(fs, args, 0); err != nil {
		return err
	}
	str.TrimStrings(name, email)
	return result(a, a.repo.Register(ctx, *name, *email, password(*pass)), printSignedIn)
}

func googleLogin(ctx context.Context, a *app, args []string) error {
	fs := noFlags("google-login")
	idToken := fs.String("id-token", "", "Google ID token")
	code := fs.String("code", "", "OAuth authorization code")
	verifier := fs.String("verifier", "", "PKCE code verifier")
	if _, err := parse(fs, args, 0); err != nil {
		return err
	}
	switch {
	case *idToken != "" && *code != "":
		return usageError{"use either -id-token or -code"}
	case *idToken != "":
		return result(a, a.repo.LoginWithGoogleToken(ctx, *idToken), printSignedIn)
	case *code != "":
		cred := federated.Credential{AuthCode: *code, CodeVerifier: *verifier}
		return result(a, a.repo.SignInWithGoogle(ctx, cred), printSignedIn)
	default:
		return usageError{"-id-token or -code is required"}
	}
}

func logout(ctx context.Context, a *app, _ []string) error {
	return result(a, a.repo.Logout(ctx), done("Signed out."))
}

func whoami(ctx context.Context, a *app, _ []string) error {
	user := a.repo.CurrentUser(ctx)
	if user == nil {
		return failureError{outcome.Failure{Kind: dErrors.CodeUnauthenticated, Message: "Not signed in."}}
	}
	return result(a, outcome.Success(*user), printUser)
}

func validate(ctx context.Context, a *app, _ []string) error {
	return result(a, a.repo.ValidateSession(ctx), printUser)
}

func home(ctx context.Context, a *app, _ []string) error {
	h := viewstate.NewHome(a.repo, viewstate.WithLogger(a.logger), viewstate.WithMetrics(a.metrics))
	h.Load(ctx)
	view := homeView{
		Popular:    h.Popular.Get(),
		Recent:     h.Recent.Get(),
		Categories: h.Categories.Get(),
	}
	return result(a, outcome.Success(view), printHome)
}

func books(ctx context.Context, a *app, args []string) error {
	fs := noFlags("books")
	search := fs.String("search", "", "title or author contains")
	category := fs.Int("category", 0, "category id")
	sortBy := fs.String("sort", api.SortTitle, "sort key")
	page := fs.Int("page", 1, "page number")
	size := fs.Int("size", a.cfg.PageSize, "page size")
	if _, err := parse(fs, args, 0); err != nil {
		return err
	}
	q := api.BookQuery{Search: *search, SortBy: *sortBy, Page: *page, PageSize: *size}
	if *category > 0 {
		q.CategoryID = category
	}
	return result(a, a.repo.GetBooks(ctx, q), printBookPage)
}

func book(ctx context.Context, a *app, args []string) error {
	pos, err := parse(noFlags("book"), args, 1)
	if err != nil {
		return err
	}
	id, err := intArg(pos[0], "book id")
	if err != nil {
		return err
	}
	return result(a, a.repo.GetBook(ctx, id), printBook)
}

func ranked(popular bool) func(context.Context, *app, []string) error {
	return func(ctx context.Context, a *app, args []string) error {
		fs := noFlags("ranked")
		limit := fs.Int("limit", viewstate.HomeLimit, "number of books")
		if _, err := parse(fs, args, 0); err != nil {
			return err
		}
		if popular {
			return result(a, a.repo.GetPopularBooks(ctx, *limit), printBooks)
		}
		return result(a, a.repo.GetRecentBooks(ctx, *limit), printBooks)
	}
}

func categories(ctx context.Context, a *app, _ []string) error {
	return result(a, a.repo.GetCategories(ctx), printCategories)
}

// profile shows the account, its statistics and recent reading activity.
func profile(ctx context.Context, a *app, _ []string) error {
	p := viewstate.NewProfile(a.repo, viewstate.WithLogger(a.logger), viewstate.WithMetrics(a.metrics))
	p.Load(ctx)
	if err := holderFailure(p); err != nil {
		return err
	}
	view := profileView{UserProfile: *p.Profile.Get(), Activity: p.Activity.Get()}
	return result(a, outcome.Success(view), printProfileView)
}

func activity(ctx context.Context, a *app, _ []string) error {
	return result(a, a.repo.GetReadingActivity(ctx), printActivity)
}

func libraries(ctx context.Context, a *app, _ []string) error {
	return result(a, a.repo.GetLibraries(ctx), printLibraries)
}

func library(ctx context.Context, a *app, args []string) error {
	id, err := oneID(args, "library", "library id")
	if err != nil {
		return err
	}
	return result(a, a.repo.GetLibrary(ctx, id), printLibrary)
}

func libraryCreate(ctx context.Context, a *app, args []string) error {
	pos, err := parse(noFlags("library-create"), args, 1)
	if err != nil {
		return err
	}
	return result(a, a.repo.CreateLibrary(ctx, strings.Join(pos, " ")), printLibrary)
}

func libraryRename(ctx context.Context, a *app, args []string) error {
	pos, err := parse(noFlags("library-rename"), args, 2)
	if err != nil {
		return err
	}
	id, err := intArg(pos[0], "library id")
	if err != nil {
		return err
	}
	return result(a, a.repo.RenameLibrary(ctx, id, strings.Join(pos[1:], " ")), printLibrary)
}

func libraryDelete(ctx context.Context, a *app, args []string) error {
	id, err := oneID(args, "library-delete", "library id")
	if err != nil {
		return err
	}
	return result(a, a.repo.DeleteLibrary(ctx, id), done("Library deleted."))
}

func libraryAdd(ctx context.Context, a *app, args []string) error {
	lib, bk, err := twoIDs(args, "library-add")
	if err != nil {
		return err
	}
	return result(a, a.repo.AddBookToLibrary(ctx, lib, bk), done("Book added to library."))
}

func libraryRemove(ctx context.Context, a *app, args []string) error {
	lib, bk, err := twoIDs(args, "library-remove")
	if err != nil {
		return err
	}
	return result(a, a.repo.RemoveBookFromLibrary(ctx, lib, bk), done("Book removed from library."))
}

func bookmarks(ctx context.Context, a *app, args []string) error {
	id, err := oneID(args, "bookmarks", "book id")
	if err != nil {
		return err
	}
	reader := viewstate.NewReader(a.repo, viewstate.WithLogger(a.logger))
	reader.LoadBookmarks(ctx, id)
	return result(a, outcome.Success(reader.Bookmarks.Get()), printBookmarks)
}

func bookmarkAdd(ctx context.Context, a *app, args []string) error {
	pos, err := parse(noFlags("bookmark-add"), args, 3)
	if err != nil {
		return err
	}
	bookID, err := intArg(pos[0], "book id")
	if err != nil {
		return err
	}
	page, err := intArg(pos[1], "page")
	if err != nil {
		return err
	}
	req := api.CreateBookmarkRequest{BookID: bookID, PageNumber: page, Title: strings.Join(pos[2:], " ")}
	return result(a, a.repo.CreateBookmark(ctx, req), func(w io.Writer, b api.Bookmark) {
		fmt.Fprintf(w, "%s (bookmark %d, page %d)\n", viewstate.NoticeBookmarkAdded, b.ID, b.PageNumber)
	})
}

func bookmarkDelete(ctx context.Context, a *app, args []string) error {
	id, err := oneID(args, "bookmark-delete", "bookmark id")
	if err != nil {
		return err
	}
	return result(a, a.repo.DeleteBookmark(ctx, id), done(viewstate.NoticeBookmarkRemoved))
}

func reviews(ctx context.Context, a *app, args []string) error {
	id, err := oneID(args, "reviews", "book id")
	if err != nil {
		return err
	}
	return result(a, a.repo.GetReviews(ctx, id), printReviews)
}

func reviewAdd(ctx context.Context, a *app, args []string) error {
	pos, err := parse(noFlags("review-add"), args, 2)
	if err != nil {
		return err
	}
	bookID, err := intArg(pos[0], "book id")
	if err != nil {
		return err
	}
	rating, err := intArg(pos[1], "rating")
	if err != nil {
		return err
	}
	req := api.ReviewRequest{Rating: rating, Comment: strings.Join(pos[2:], " ")}
	return result(a, a.repo.CreateReview(ctx, bookID, req), func(w io.Writer, r api.Review) {
		fmt.Fprintf(w, "Review %d saved.\n", r.ID)
	})
}

func reviewDelete(ctx context.Context, a *app, args []string) error {
	id, err := oneID(args, "review-delete", "review id")
	if err != nil {
		return err
	}
	return result(a, a.repo.DeleteReview(ctx, id), done("Review deleted."))
}

// open downloads the book's document, opens it at the requested or saved
// page and records the position for signed-in users.
func open(ctx context.Context, a *app, args []string) error {
	fs := noFlags("open")
	page := fs.Int("page", 0, "page to open (default: saved position)")
	zoom := fs.Float64("zoom", document.MinZoom, "zoom factor")
	pos, err := parse(fs, args, 1)
	if err != nil {
		return err
	}
	id, err := intArg(pos[0], "book id")
	if err != nil {
		return err
	}

	o := a.repo.GetBook(ctx, id)
	if f, failed := o.Failure(); failed {
		return failureError{f}
	}
	bk := o.MustValue()
	if !bk.HasDocument() {
		return failureError{outcome.Failure{Kind: dErrors.CodeNotFound, Message: "This book has no readable document."}}
	}

	path, err := a.docs.Resolve(ctx, *bk.PdfPath)
	if err != nil {
		return fmt.Errorf("download document: %w", err)
	}
	renderer, err := document.OpenFile(path)
	if err != nil {
		return fmt.Errorf("open document: %w", err)
	}

	signedIn := a.repo.IsLoggedIn(ctx)
	reader := viewstate.NewReader(a.repo, viewstate.WithLogger(a.logger), viewstate.WithMetrics(a.metrics))
	start := *page
	if start == 0 && signedIn {
		reader.LoadPosition(ctx, id)
		if p := reader.Position.Get(); p != nil {
			start = p.CurrentPage
		}
	}

	viewer, err := document.NewViewer(renderer, document.WithStartPage(start-1))
	if err != nil {
		return fmt.Errorf("open document: %w", err)
	}
	defer viewer.Close()
	viewer.SetZoom(*zoom)

	img, err := viewer.Render(ctx)
	if err != nil {
		return err
	}
	state := viewer.State()
	if signedIn {
		reader.SavePosition(ctx, id, state.Page+1, state.PageCount, 0)
	}

	view := openView{
		Title:     bk.Title,
		Path:      path,
		Page:      state.Page + 1,
		PageCount: state.PageCount,
		Zoom:      state.Zoom,
		Width:     img.Bounds().Dx(),
		Height:    img.Bounds().Dy(),
	}
	return result(a, outcome.Success(view), printOpen)
}

func purge(_ context.Context, a *app, _ []string) error {
	n, err := a.docs.Purge()
	if err != nil {
		return fmt.Errorf("purge document cache: %w", err)
	}
	return result(a, outcome.Success(n), func(w io.Writer, n int) {
		fmt.Fprintf(w, "Removed %d cached document(s).\n", n)
	})
}

func oneID(args []string, cmd, name string) (int, error) {
	pos, err := parse(noFlags(cmd), args, 1)
	if err != nil {
		return 0, err
	}
	return intArg(pos[0], name)
}

func twoIDs(args []string, cmd string) (int, int, error) {
	pos, err := parse(noFlags(cmd), args, 2)
	if err != nil {
		return 0, 0, err
	}
	lib, err := intArg(pos[0], "library id")
	if err != nil {
		return 0, 0, err
	}
	bk, err := intArg(pos[1], "book id")
	if err != nil {
		return 0, 0, err
	}
	return lib, bk, nil
}
