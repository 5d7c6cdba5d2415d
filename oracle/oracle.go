// Package oracle performs the single request/response exchange with the
// generative model that classifies a domain into SEO segments.
package oracle

import (
	"context"
	"errors"
	"fmt"

	"github.com/seo-optimizer/segment-architect/segment"
)

// Failure kinds. Every error returned by an Oracle wraps exactly one of them.
var (
	ErrEmptyResponse     = errors.New("oracle returned no text")
	ErrMalformedResponse = errors.New("oracle response does not match the declared schema")
	ErrOracleUnavailable = errors.New("oracle unavailable")
)

// ErrEmptyDomain is returned before any exchange when the domain is blank.
var ErrEmptyDomain = errors.New("domain is empty")

// Oracle classifies a domain into segments.
type Oracle interface {
	Analyze(ctx context.Context, domain string) (segment.AnalysisResult, error)
}

// HintSource supplies optional context about a domain for the prompt.
type HintSource interface {
	Hints(ctx context.Context, domain string) (string, error)
}

// Error is the typed failure of an exchange.
type Error struct {
	Kind   error
	Domain string
	Err    error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("analyze %q: %v", e.Domain, e.Kind)
	}
	return fmt.Sprintf("analyze %q: %v: %v", e.Domain, e.Kind, e.Err)
}

// Unwrap exposes both the kind and the cause to errors.Is / errors.As.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func newError(kind error, domain string, cause error) *Error {
	return &Error{Kind: kind, Domain: domain, Err: cause}
}

// KindOf returns the failure kind wrapped by err, or nil.
func KindOf(err error) error {
	for _, kind := range []error{ErrEmptyResponse, ErrMalformedResponse, ErrOracleUnavailable} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}
