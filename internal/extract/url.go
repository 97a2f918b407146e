package extract

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"

	"github.com/ragline/ragline/internal/textsplit"
)

const (
	fetchTimeout = 15 * time.Second
	maxRedirects = 5

	// minRegionLen is the minimum text length for a candidate content
	// region to be accepted before falling back to the full body.
	minRegionLen = 100

	// minPageLen is the minimum final text length; anything shorter is
	// not worth ingesting.
	minPageLen = 50
)

// statusBotBlocked is the non-standard status some hosts (notably
// LinkedIn) use to reject automated clients.
const statusBotBlocked = 999

// noiseSelector matches elements that never contain main content.
const noiseSelector = "script, style, noscript, nav, footer, header, aside, iframe, form, " +
	".ad, .ads, .advertisement, [class*='cookie'], [class*='banner']"

// contentSelectors are tried in priority order; the first region with
// at least minRegionLen characters of text wins.
var contentSelectors = []string{
	"main",
	"article",
	"[role='main']",
	".main-content",
	".content",
	"#content",
	".post-content",
	".article-body",
}

// Fetcher extracts text from remote web pages. A zero-value http.Client
// is replaced with one enforcing the fetch timeout and redirect cap.
type Fetcher struct {
	client *http.Client
}

// NewFetcher creates a Fetcher with the default bounded HTTP client.
func NewFetcher() *Fetcher {
	return &Fetcher{client: newHTTPClient()}
}

// NewFetcherWithClient creates a Fetcher using the given client. Tests
// inject httptest-backed clients here.
func NewFetcherWithClient(client *http.Client) *Fetcher {
	if client == nil {
		client = newHTTPClient()
	}
	return &Fetcher{client: client}
}

func newHTTPClient() *http.Client {
	return &http.Client{
		Timeout: fetchTimeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return fmt.Errorf("stopped after %d redirects", maxRedirects)
			}
			return nil
		},
	}
}

// FromURL fetches the page and extracts its main textual content.
//
// Selection strategy: strip noise elements, then try the prioritized
// content selectors; if none yields enough text, attempt readability
// article extraction; finally fall back to the full body text.
func (f *Fetcher) FromURL(ctx context.Context, rawURL string) (*Result, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, newError(KindUnparsable, fmt.Sprintf("invalid URL %q", rawURL), err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, newError(KindUnparsable, "could not build request", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; ragline/1.0)")
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, classifyFetchError(rawURL, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	switch {
	case resp.StatusCode == statusBotBlocked:
		return nil, newError(KindBlocked,
			fmt.Sprintf("%s refused automated access (status %d); try saving the page as PDF instead", parsed.Host, resp.StatusCode), nil)
	case resp.StatusCode >= 500:
		return nil, newError(KindHTTP,
			fmt.Sprintf("%s answered with server error %d", parsed.Host, resp.StatusCode), nil)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, newError(KindUnparsable, "could not parse HTML", err)
	}

	title := strings.TrimSpace(doc.Find("title").First().Text())

	doc.Find(noiseSelector).Remove()

	text := selectContent(doc)
	if len(text) < minRegionLen {
		if article := readableText(doc, parsed); len(article) > len(text) {
			text = article
		}
	}
	if len(text) < minRegionLen {
		text = textsplit.Normalize(doc.Find("body").Text())
	}

	if len(text) < minPageLen {
		return nil, newError(KindTooShort,
			fmt.Sprintf("page %s yielded only %d characters of text", rawURL, len(text)), nil)
	}

	return &Result{Text: text, Title: title}, nil
}

// selectContent returns the first prioritized region with enough text.
func selectContent(doc *goquery.Document) string {
	for _, sel := range contentSelectors {
		region := doc.Find(sel).First()
		if region.Length() == 0 {
			continue
		}
		text := textsplit.Normalize(region.Text())
		if len(text) >= minRegionLen {
			return text
		}
	}
	return ""
}

// readableText runs readability article extraction over the already
// parsed document. Errors degrade to an empty result.
func readableText(doc *goquery.Document, pageURL *url.URL) string {
	html, err := doc.Html()
	if err != nil {
		return ""
	}
	article, err := readability.FromReader(strings.NewReader(html), pageURL)
	if err != nil {
		return ""
	}
	return textsplit.Normalize(article.TextContent)
}

// classifyFetchError maps transport failures onto the error taxonomy so
// users get actionable messages.
func classifyFetchError(rawURL string, err error) *Error {
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return newError(KindDNS, fmt.Sprintf("could not resolve host for %s", rawURL), err)
	}

	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return newError(KindTimeout, fmt.Sprintf("fetching %s timed out after %s", rawURL, fetchTimeout), err)
	}

	if strings.Contains(err.Error(), "stopped after") {
		return newError(KindHTTP, fmt.Sprintf("%s redirected too many times", rawURL), err)
	}

	return newError(KindHTTP, fmt.Sprintf("could not fetch %s", rawURL), err)
}
