package extractor

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
)

// Document is a parsed DOM snapshot that implements models.LinkSource.
// It lets extraction run after the browser session has been torn down.
type Document struct {
	doc  *goquery.Document
	base *url.URL
}

// NewDocument parses rawHTML. Relative hrefs are resolved against baseURL.
func NewDocument(rawHTML, baseURL string) (*Document, error) {
	root, err := html.Parse(strings.NewReader(rawHTML))
	if err != nil {
		return nil, err
	}
	base, err := url.Parse(baseURL)
	if err != nil {
		base = nil
	}
	return &Document{
		doc:  goquery.NewDocumentFromNode(root),
		base: base,
	}, nil
}

// Hrefs returns the resolved href of every element matching selector.
// An invalid selector matches nothing.
func (d *Document) Hrefs(selector string) []string {
	sel, err := cascadia.Compile(selector)
	if err != nil {
		return nil
	}
	var out []string
	d.doc.FindMatcher(sel).Each(func(_ int, s *goquery.Selection) {
		href, ok := s.Attr("href")
		if !ok {
			return
		}
		out = append(out, d.resolve(strings.TrimSpace(href)))
	})
	return out
}

// resolve mirrors the browser's a.href: relative references become
// absolute against the page URL, unparseable ones are returned as-is.
func (d *Document) resolve(href string) string {
	if d.base == nil {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return d.base.ResolveReference(ref).String()
}
