package extract

import (
	"bytes"
	"fmt"

	"github.com/ledongthuc/pdf"

	"github.com/ragline/ragline/internal/textsplit"
)

// PageSpan records which rune range of the extracted text came from
// which PDF page. Offsets index into Result.Text.
type PageSpan struct {
	Page  int // 1-based page number
	Start int // inclusive rune offset
	End   int // exclusive rune offset
}

// Result is the output of an extraction: normalized plain text plus,
// for PDFs, the page spans that map text offsets back to pages.
type Result struct {
	Text  string
	Pages []PageSpan
	Title string // best-effort display title, URLs only
}

// PageFor returns the page number covering the given rune offset, or 0
// when no span matches (non-PDF sources have no spans).
func (r *Result) PageFor(offset int) int {
	for _, s := range r.Pages {
		if offset >= s.Start && offset < s.End {
			return s.Page
		}
	}
	return 0
}

// FromPDF parses binary PDF content into plain text. Each page's text
// is normalized independently and pages are joined with a blank line,
// so the recorded page spans stay exact after normalization.
//
// The pdf library panics on some malformed inputs instead of returning
// an error, so parsing runs under a recover that turns any panic into
// an unparsable-document error.
func FromPDF(data []byte) (res *Result, err error) {
	defer func() {
		if p := recover(); p != nil {
			res = nil
			err = newError(KindUnparsable, "could not parse PDF document", fmt.Errorf("parser panic: %v", p))
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, newError(KindUnparsable, "could not parse PDF document", err)
	}

	var (
		buf   bytes.Buffer
		spans []PageSpan
		pos   int // rune position in buf
	)

	numPages := r.NumPage()
	for i := 1; i <= numPages; i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}

		text, err := pageText(page)
		if err != nil {
			// A single broken page should not sink the document.
			continue
		}

		text = textsplit.Normalize(text)
		if text == "" {
			continue
		}

		if buf.Len() > 0 {
			buf.WriteString("\n\n")
			pos += 2
		}
		buf.WriteString(text)

		n := len([]rune(text))
		spans = append(spans, PageSpan{Page: i, Start: pos, End: pos + n})
		pos += n
	}

	if buf.Len() == 0 {
		return nil, newError(KindUnparsable, fmt.Sprintf("PDF contains no extractable text (%d pages)", numPages), nil)
	}

	return &Result{Text: buf.String(), Pages: spans}, nil
}

// pageText extracts one page's plain text, catching the panics the pdf
// library raises on corrupt content streams.
func pageText(page pdf.Page) (text string, err error) {
	defer func() {
		if p := recover(); p != nil {
			text = ""
			err = fmt.Errorf("page extraction panic: %v", p)
		}
	}()
	return page.GetPlainText(nil)
}
