// Package extractor decides which outbound URL a loaded aggregator page
// points to.
package extractor

import (
	"net/url"
	"strings"

	"github.com/use-agent/gnresolver/models"
)

// SourceHost is the aggregator host that a resolved URL must have left.
const SourceHost = "news.google.com"

// DefaultSelectors is the anchor priority list for the DOM fallback.
// Earlier selectors win.
var DefaultSelectors = []string{
	`a[rel~="nofollow"]`,
	`a[target="_blank"]`,
	`article a[href^="http"]`,
	`main a[href^="http"]`,
	`a[href^="http"]`,
}

// rejectedHosts never count as an outbound link.
var rejectedHosts = []string{
	SourceHost,
	"accounts.google.com",
}

// Extract returns the attempt result for a loaded page.
//
// If the page already left the aggregator the final URL wins without
// looking at the DOM. Otherwise the first acceptable anchor from
// DefaultSelectors is used. Finding nothing is a normal outcome.
func Extract(state *models.PageState) models.AttemptResult {
	return ExtractWith(state, DefaultSelectors)
}

// ExtractWith is Extract with a caller-supplied selector priority list.
func ExtractWith(state *models.PageState, selectors []string) models.AttemptResult {
	var finalURL *string
	if state.FinalURL != "" {
		finalURL = models.StringPtr(state.FinalURL)
	}

	if state.FinalURL != "" && !strings.Contains(state.FinalURL, SourceHost) {
		return models.AttemptResult{
			ResolvedURL: models.StringPtr(state.FinalURL),
			Method:      models.MethodFinalURL,
			HTTPStatus:  state.HTTPStatus,
			FinalURL:    finalURL,
		}
	}

	if link, ok := FirstOutbound(state.Links, selectors); ok {
		return models.AttemptResult{
			ResolvedURL: models.StringPtr(link),
			Method:      models.MethodDOMLink,
			HTTPStatus:  state.HTTPStatus,
			FinalURL:    finalURL,
		}
	}

	return models.AttemptResult{
		Method:     models.MethodNone,
		HTTPStatus: state.HTTPStatus,
		FinalURL:   finalURL,
	}
}

// FirstOutbound walks selectors in priority order and returns the first
// href that passes Acceptable.
func FirstOutbound(src models.LinkSource, selectors []string) (string, bool) {
	if src == nil {
		return "", false
	}
	for _, sel := range selectors {
		for _, href := range src.Hrefs(sel) {
			if Acceptable(href) {
				return href, true
			}
		}
	}
	return "", false
}

// Acceptable reports whether href is a navigable http(s) link that does
// not point back at the aggregator or an account/login domain.
func Acceptable(href string) bool {
	if href == "" {
		return false
	}
	u, err := url.Parse(href)
	if err != nil {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return false
	}
	for _, h := range rejectedHosts {
		if host == h || strings.HasSuffix(host, "."+h) {
			return false
		}
	}
	return !strings.Contains(href, SourceHost)
}
