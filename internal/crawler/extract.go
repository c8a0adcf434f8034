package crawler

import (
	"bytes"
	"io"
	"maps"
	"slices"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html/charset"
)

// Extractor pulls candidate hrefs out of a fetched document.
type Extractor interface {
	Extract(body []byte, contentType string) []string
}

// nonNavigable are href schemes that never lead to a crawlable page.
var nonNavigable = []string{"javascript:", "mailto:", "tel:", "data:"}

// LinkExtractor selects the href of every a[href] element. The result is a
// set: duplicates collapse and the order is sorted. Hrefs containing any of
// the exclusion substrings are dropped.
type LinkExtractor struct {
	exclude []string
}

// NewLinkExtractor creates an extractor that drops hrefs containing any of
// exclude, e.g. "/admin".
func NewLinkExtractor(exclude ...string) *LinkExtractor {
	e := &LinkExtractor{}
	for _, s := range exclude {
		if s = strings.TrimSpace(s); s != "" {
			e.exclude = append(e.exclude, s)
		}
	}
	return e
}

// Extract returns the raw hrefs found in body. contentType is used to pick
// the character set. A document that cannot be parsed yields no links.
func (e *LinkExtractor) Extract(body []byte, contentType string) []string {
	var r io.Reader = bytes.NewReader(body)
	if decoded, err := charset.NewReader(r, contentType); err == nil {
		r = decoded
	} else {
		r = bytes.NewReader(body)
	}

	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil
	}

	found := make(map[string]struct{})
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		href = strings.TrimSpace(href)
		if e.keep(href) {
			found[href] = struct{}{}
		}
	})
	return slices.Sorted(maps.Keys(found))
}

func (e *LinkExtractor) keep(href string) bool {
	if href == "" || strings.HasPrefix(href, "#") {
		return false
	}
	lower := strings.ToLower(href)
	for _, scheme := range nonNavigable {
		if strings.HasPrefix(lower, scheme) {
			return false
		}
	}
	for _, s := range e.exclude {
		if strings.Contains(href, s) {
			return false
		}
	}
	return true
}
