// Package extract produces plain text from ingestible sources: binary
// PDF documents and remote web pages.
package extract

import "fmt"

// Kind classifies extraction failures for user-facing diagnostics.
type Kind string

const (
	// KindUnparsable means the source bytes could not be parsed at all.
	KindUnparsable Kind = "unparsable"

	// KindTooShort means extraction succeeded but yielded too little
	// text to be worth indexing.
	KindTooShort Kind = "too_short"

	// KindDNS means the host could not be resolved.
	KindDNS Kind = "dns"

	// KindTimeout means the fetch exceeded its deadline.
	KindTimeout Kind = "timeout"

	// KindBlocked means the server refused the request with a
	// bot-blocking status (e.g. 999).
	KindBlocked Kind = "blocked"

	// KindHTTP means the server answered with an error status.
	KindHTTP Kind = "http"
)

// Error is the failure type for all extraction entry points. Callers
// surface Message to users; Kind drives programmatic handling.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("extract: %s: %v", e.Message, e.Err)
	}
	return "extract: " + e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func newError(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Message: msg, Err: err}
}
