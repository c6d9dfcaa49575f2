package mockbackend

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"ereader/internal/platform/middleware"
)

// Document renders an uncompressed PDF with one text line per page.
func Document(title string, pages int) []byte {
	var b bytes.Buffer
	b.WriteString("%PDF-1.4\n")
	b.WriteString("1 0 obj << /Type /Catalog /Pages 2 0 R >> endobj\n")
	kids := make([]string, pages)
	for i := range kids {
		kids[i] = fmt.Sprintf("%d 0 R", 3+2*i)
	}
	fmt.Fprintf(&b, "2 0 obj << /Type /Pages /Count %d /Kids [%s] /MediaBox [0 0 300 400] >> endobj\n",
		pages, strings.Join(kids, " "))
	for i := 0; i < pages; i++ {
		page, content := 3+2*i, 4+2*i
		text := fmt.Sprintf("BT /F1 12 Tf 24 360 Td (%s - page %d) Tj ET", escapePDF(title), i+1)
		fmt.Fprintf(&b, "%d 0 obj << /Type /Page /Parent 2 0 R /Contents %d 0 R >> endobj\n", page, content)
		fmt.Fprintf(&b, "%d 0 obj << /Length %d >> stream\n%s\nendstream endobj\n", content, len(text), text)
	}
	fmt.Fprintf(&b, "trailer << /Root 1 0 R /Info << /Title (%s) >> >>\n%%%%EOF\n", escapePDF(title))
	return b.Bytes()
}

func escapePDF(s string) string {
	return strings.NewReplacer(`\`, `\\`, "(", `\(`, ")", `\)`).Replace(s)
}

func (s *Server) handleDocument(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	pages, ok := s.documents[name]
	if !ok {
		s.logger.InfoContext(r.Context(), "document not found",
			"name", name,
			"request_id", middleware.GetRequestID(r.Context()),
		)
		http.NotFound(w, r)
		return
	}
	body := Document(strings.TrimSuffix(name, ".pdf"), pages)
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	_, _ = w.Write(body)
}
