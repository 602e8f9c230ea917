package models

import "net/http"

// Method records how an attempt arrived at its resolved URL.
type Method string

const (
	// MethodFinalURL means the browser navigated off the aggregator domain.
	MethodFinalURL Method = "final_url"
	// MethodDOMLink means the URL was taken from an anchor on the aggregator page.
	MethodDOMLink Method = "dom_link"
	// MethodNone means no outbound link was found.
	MethodNone Method = "none"
)

// LinkSource answers DOM queries against a loaded page.
//
// Hrefs returns the href of every anchor matching selector, in document
// order, resolved against the page URL the way a browser resolves a.href.
type LinkSource interface {
	Hrefs(selector string) []string
}

// PageState is what the page loader observed for one attempt.
type PageState struct {
	// FinalURL is the page URL after any client-side redirects.
	FinalURL string

	// HTTPStatus is the status of the initial navigation response, nil if unknown.
	HTTPStatus *int

	// Links is a DOM snapshot taken before the browser session was released.
	Links LinkSource
}

// AttemptResult is the outcome of a single navigate-and-extract cycle.
// It is built once and never modified.
type AttemptResult struct {
	ResolvedURL *string
	Method      Method
	HTTPStatus  *int
	FinalURL    *string
}

// Resolved reports whether the attempt produced an outbound URL.
func (r AttemptResult) Resolved() bool {
	return r.ResolvedURL != nil
}

// ResolveOutcome is the last attempt plus controller bookkeeping.
type ResolveOutcome struct {
	AttemptResult

	// Attempt is the 1-based number of the attempt that produced the result.
	Attempt int

	// TargetURL is the normalized URL the browser was pointed at.
	TargetURL string
}

// Blocked is true when the final observed upstream status was 429.
func (o *ResolveOutcome) Blocked() bool {
	return o.HTTPStatus != nil && *o.HTTPStatus == http.StatusTooManyRequests
}

// StringPtr returns a pointer to s.
func StringPtr(s string) *string { return &s }

// IntPtr returns a pointer to i.
func IntPtr(i int) *int { return &i }
