// Package dom adapts goquery documents to the hashtag.Document interface.
package dom

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/tiktok-hashtag-scraper/internal/hashtag"
)

// Document wraps a parsed goquery document.
type Document struct {
	doc *goquery.Document
}

// Parse builds a Document from raw HTML.
func Parse(html []byte) (*Document, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return &Document{doc: doc}, nil
}

// Query returns every element matching selector in document order.
// An invalid selector matches nothing.
func (d *Document) Query(selector string) []hashtag.Element {
	return collect(d.doc.Find(selector))
}

// Element wraps a single goquery selection.
type Element struct {
	sel *goquery.Selection
}

// Text returns the trimmed text content of the element.
func (e Element) Text() string {
	return strings.TrimSpace(e.sel.Text())
}

// Query returns the descendants of the element matching selector.
func (e Element) Query(selector string) []hashtag.Element {
	return collect(e.sel.Find(selector))
}

func collect(sel *goquery.Selection) []hashtag.Element {
	var elements []hashtag.Element
	sel.Each(func(_ int, s *goquery.Selection) {
		elements = append(elements, Element{sel: s})
	})
	return elements
}

// FirstText returns the first non-empty text among elements matching selector.
func FirstText(node hashtag.Queryable, selector string) (string, bool) {
	for _, el := range node.Query(selector) {
		if txt := el.Text(); txt != "" {
			return txt, true
		}
	}
	return "", false
}
