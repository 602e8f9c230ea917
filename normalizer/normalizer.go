// Package normalizer rewrites Google News RSS article links into the
// article-page form, which is the variant that carries an outbound link.
package normalizer

import "strings"

const (
	rssPrefixHTTPS = "https://news.google.com/rss/articles/"
	rssPrefixHTTP  = "http://news.google.com/rss/articles/"
	articlePrefix  = "https://news.google.com/articles/"

	rssSegment     = "/rss/articles/"
	articleSegment = "/articles/"
)

// Normalize applies three independent substring rewrites, in order:
//
//  1. https RSS article prefix  -> https article prefix
//  2. http RSS article prefix   -> https article prefix
//  3. any "/rss/articles/"      -> "/articles/" (to a fixed point)
//
// It never touches the network and is idempotent. Empty input is returned
// unchanged.
func Normalize(raw string) string {
	if raw == "" {
		return raw
	}
	out := strings.ReplaceAll(raw, rssPrefixHTTPS, articlePrefix)
	out = strings.ReplaceAll(out, rssPrefixHTTP, articlePrefix)
	// A replacement can splice a new "/rss/articles/" out of its left
	// neighbour ("/rss/rss/articles/"), so repeat until none is left.
	for strings.Contains(out, rssSegment) {
		out = strings.ReplaceAll(out, rssSegment, articleSegment)
	}
	return out
}
