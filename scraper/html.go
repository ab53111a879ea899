package scraper

import (
	"bytes"
	"fmt"

	"github.com/PuerkitoBio/goquery"
)

type htmlScope struct {
	sel *goquery.Selection
}

func parseHTML(body []byte) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}
	return doc, nil
}

func htmlItems(body []byte, items string) ([]scope, error) {
	doc, err := parseHTML(body)
	if err != nil {
		return nil, err
	}

	var scopes []scope
	doc.Find(items).Each(func(_ int, s *goquery.Selection) {
		scopes = append(scopes, htmlScope{sel: s})
	})
	return scopes, nil
}

func htmlRoot(body []byte) (scope, error) {
	doc, err := parseHTML(body)
	if err != nil {
		return nil, err
	}
	return htmlScope{sel: doc.Selection}, nil
}

// selectField returns one list element per matched node, shaped by f.Attr.
// Nodes missing a named attribute are left out.
func (h htmlScope) selectField(f *FieldRecipe) (Value, error) {
	sel := h.sel
	if f.Selector != "" {
		sel = h.sel.Find(f.Selector)
	}

	var out []Value
	var err error
	sel.Each(func(_ int, s *goquery.Selection) {
		if err != nil {
			return
		}
		switch f.Attr {
		case AttrText:
			out = append(out, TextValue(collapse(s.Text())))
		case AttrNode:
			out = append(out, NodeValue(s))
		case AttrHTML, "":
			var html string
			html, err = goquery.OuterHtml(s)
			out = append(out, TextValue(html))
		default:
			if val, ok := s.Attr(f.Attr); ok {
				out = append(out, TextValue(val))
			}
		}
	})
	if err != nil {
		return Value{}, fmt.Errorf("failed to render %q: %w", f.Selector, err)
	}
	return ListValue(out), nil
}
