package extract

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func serve(t *testing.T, handler http.HandlerFunc) (*Fetcher, string) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewFetcherWithClient(srv.Client()), srv.URL
}

func longText(word string) string {
	return strings.Repeat(word+" ", 40)
}

func TestFromURLPrefersMainElement(t *testing.T) {
	body := fmt.Sprintf(`<html><head><title>My Page</title></head><body>
		<nav>%s</nav>
		<main>%s</main>
		<footer>%s</footer>
	</body></html>`, longText("navigation"), longText("real-content"), longText("footer"))

	f, url := serve(t, func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, body)
	})

	res, err := f.FromURL(context.Background(), url)
	if err != nil {
		t.Fatalf("FromURL: %v", err)
	}
	if !strings.Contains(res.Text, "real-content") {
		t.Errorf("main content missing: %q", res.Text)
	}
	if strings.Contains(res.Text, "navigation") || strings.Contains(res.Text, "footer") {
		t.Errorf("noise elements leaked into text: %q", res.Text)
	}
	if res.Title != "My Page" {
		t.Errorf("title = %q, want My Page", res.Title)
	}
}

func TestFromURLSelectorPriority(t *testing.T) {
	// article comes later in priority than main; with no main the
	// article region must win over the generic body.
	body := fmt.Sprintf(`<html><body>
		<div>%s</div>
		<article>%s</article>
	</body></html>`, longText("wrapper"), longText("article-text"))

	f, url := serve(t, func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, body)
	})

	res, err := f.FromURL(context.Background(), url)
	if err != nil {
		t.Fatalf("FromURL: %v", err)
	}
	if !strings.Contains(res.Text, "article-text") {
		t.Errorf("article content missing: %q", res.Text)
	}
	if strings.Contains(res.Text, "wrapper") {
		t.Errorf("selector should exclude surrounding div: %q", res.Text)
	}
}

func TestFromURLFallsBackToBody(t *testing.T) {
	body := fmt.Sprintf(`<html><body><div class="random">%s</div></body></html>`,
		longText("plain-body-content"))

	f, url := serve(t, func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, body)
	})

	res, err := f.FromURL(context.Background(), url)
	if err != nil {
		t.Fatalf("FromURL: %v", err)
	}
	if !strings.Contains(res.Text, "plain-body-content") {
		t.Errorf("body fallback missing content: %q", res.Text)
	}
}

func TestFromURLTooShort(t *testing.T) {
	f, url := serve(t, func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, "<html><body>tiny</body></html>")
	})

	_, err := f.FromURL(context.Background(), url)

	var exErr *Error
	if !errors.As(err, &exErr) {
		t.Fatalf("expected *Error, got %T: %v", err, err)
	}
	if exErr.Kind != KindTooShort {
		t.Errorf("kind = %q, want %q", exErr.Kind, KindTooShort)
	}
}

func TestFromURLBotBlockedStatus(t *testing.T) {
	f, url := serve(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(statusBotBlocked)
	})

	_, err := f.FromURL(context.Background(), url)

	var exErr *Error
	if !errors.As(err, &exErr) {
		t.Fatalf("expected *Error, got %T: %v", err, err)
	}
	if exErr.Kind != KindBlocked {
		t.Errorf("kind = %q, want %q", exErr.Kind, KindBlocked)
	}
	if !strings.Contains(exErr.Message, "999") {
		t.Errorf("message should mention status: %q", exErr.Message)
	}
}

func TestFromURLServerError(t *testing.T) {
	f, url := serve(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := f.FromURL(context.Background(), url)

	var exErr *Error
	if !errors.As(err, &exErr) {
		t.Fatalf("expected *Error, got %T: %v", err, err)
	}
	if exErr.Kind != KindHTTP {
		t.Errorf("kind = %q, want %q", exErr.Kind, KindHTTP)
	}
}

func TestFromURLAccepts404WithContent(t *testing.T) {
	// Statuses below 500 are not fatal; soft-404 pages often still
	// carry extractable text.
	f, url := serve(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprintf(w, "<html><body><main>%s</main></body></html>", longText("still-here"))
	})

	res, err := f.FromURL(context.Background(), url)
	if err != nil {
		t.Fatalf("FromURL: %v", err)
	}
	if !strings.Contains(res.Text, "still-here") {
		t.Errorf("content missing: %q", res.Text)
	}
}

func TestFromURLTimeout(t *testing.T) {
	f, url := serve(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(5 * time.Second):
		case <-r.Context().Done():
		}
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := f.FromURL(ctx, url)

	var exErr *Error
	if !errors.As(err, &exErr) {
		t.Fatalf("expected *Error, got %T: %v", err, err)
	}
	if exErr.Kind != KindTimeout {
		t.Errorf("kind = %q, want %q", exErr.Kind, KindTimeout)
	}
}

func TestFromURLInvalidURL(t *testing.T) {
	f := NewFetcher()

	for _, raw := range []string{"", "not a url", "relative/path"} {
		_, err := f.FromURL(context.Background(), raw)

		var exErr *Error
		if !errors.As(err, &exErr) {
			t.Fatalf("FromURL(%q): expected *Error, got %T", raw, err)
		}
		if exErr.Kind != KindUnparsable {
			t.Errorf("FromURL(%q) kind = %q, want %q", raw, exErr.Kind, KindUnparsable)
		}
	}
}

func TestFromURLNormalizesWhitespace(t *testing.T) {
	messy := "word1    word2\n\n\n\n\nword3 " + longText("filler")
	f, url := serve(t, func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprintf(w, "<html><body><main>%s</main></body></html>", messy)
	})

	res, err := f.FromURL(context.Background(), url)
	if err != nil {
		t.Fatalf("FromURL: %v", err)
	}
	if strings.Contains(res.Text, "  ") {
		t.Errorf("whitespace runs survived normalization: %q", res.Text)
	}
}
