// Package scraper turns fetched listing and article documents into records
// using declarative recipes: a selector, an attribute and a pipeline of typed
// steps per field.
package scraper

import (
	"errors"
	"fmt"
	"net/url"
)

// Parser names the document format a recipe reads.
type Parser string

const (
	ParserHTML Parser = "html"
	ParserJSON Parser = "json"
	ParserRSS  Parser = "rss"
)

// FallbackReadability fills missing article fields with a readability pass.
const FallbackReadability = "readability"

// Field attributes for HTML recipes. Any other value names an element
// attribute.
const (
	AttrText = "text"
	AttrHTML = "html"
	AttrNode = "node"
)

var (
	ErrUnknownParser   = errors.New("parser must be html, json, or rss")
	ErrUnknownFallback = errors.New("fallback must be empty or readability")
	ErrMissingField    = errors.New("recipe field is required")
	ErrUnknownRSSField = errors.New("unknown rss field")
)

// FieldRecipe extracts one field. Selector is resolved relative to the
// current item (a CSS selector for html, a gjson path for json, an item
// field name for rss); an empty selector means the item itself.
type FieldRecipe struct {
	Selector string `yaml:"selector,omitempty" json:"selector,omitempty"`
	Attr     string `yaml:"attr,omitempty" json:"attr,omitempty"`
	Steps    []Step `yaml:"steps,omitempty" json:"steps,omitempty"`
	Required bool   `yaml:"required,omitempty" json:"required,omitempty"`
}

func (f *FieldRecipe) validate(parser Parser, name string) error {
	if parser == ParserRSS {
		if _, ok := rssFields[f.Selector]; !ok {
			return fmt.Errorf("%w: %s.selector %q", ErrUnknownRSSField, name, f.Selector)
		}
	}
	for i, s := range f.Steps {
		if err := s.Validate(); err != nil {
			return fmt.Errorf("%s.steps[%d]: %w", name, i, err)
		}
	}
	return nil
}

// ListRecipe extracts listing records from a listing page. ID defaults to the
// last path segment of the href.
type ListRecipe struct {
	Parser    Parser       `yaml:"parser,omitempty" json:"parser,omitempty"`
	Items     string       `yaml:"items" json:"items"`
	ID        *FieldRecipe `yaml:"id,omitempty" json:"id,omitempty"`
	Href      *FieldRecipe `yaml:"href,omitempty" json:"href,omitempty"`
	Published *FieldRecipe `yaml:"published" json:"published"`
}

// Validate checks the recipe's parser, fields and steps.
func (r *ListRecipe) Validate() error {
	parser, err := normalizeParser(r.Parser)
	if err != nil {
		return err
	}
	if r.Published == nil {
		return fmt.Errorf("%w: published", ErrMissingField)
	}
	if r.ID == nil && r.Href == nil {
		return fmt.Errorf("%w: id or href", ErrMissingField)
	}

	fields := map[string]*FieldRecipe{"id": r.ID, "href": r.Href, "published": r.Published}
	for name, f := range fields {
		if f == nil {
			continue
		}
		if err := f.validate(parser, name); err != nil {
			return err
		}
	}
	return nil
}

// ArticleRecipe extracts a full article. Header and body are required unless
// a fallback can supply them; a missing published time falls back to the
// listing timestamp and a missing href to the fetched URL.
type ArticleRecipe struct {
	Parser    Parser       `yaml:"parser,omitempty" json:"parser,omitempty"`
	Header    *FieldRecipe `yaml:"header,omitempty" json:"header,omitempty"`
	Body      *FieldRecipe `yaml:"body,omitempty" json:"body,omitempty"`
	Published *FieldRecipe `yaml:"published,omitempty" json:"published,omitempty"`
	Href      *FieldRecipe `yaml:"href,omitempty" json:"href,omitempty"`
	Keywords  *FieldRecipe `yaml:"keywords,omitempty" json:"keywords,omitempty"`
	Fallback  string       `yaml:"fallback,omitempty" json:"fallback,omitempty"`
}

// Validate checks the recipe's parser, fields and steps.
func (r *ArticleRecipe) Validate() error {
	parser, err := normalizeParser(r.Parser)
	if err != nil {
		return err
	}
	if parser == ParserRSS {
		return fmt.Errorf("%w: articles are html or json", ErrUnknownParser)
	}
	if r.Fallback != "" && r.Fallback != FallbackReadability {
		return fmt.Errorf("%w: %q", ErrUnknownFallback, r.Fallback)
	}
	if r.Fallback == "" {
		if r.Header == nil {
			return fmt.Errorf("%w: header", ErrMissingField)
		}
		if r.Body == nil {
			return fmt.Errorf("%w: body", ErrMissingField)
		}
	}

	fields := map[string]*FieldRecipe{
		"header":    r.Header,
		"body":      r.Body,
		"published": r.Published,
		"href":      r.Href,
		"keywords":  r.Keywords,
	}
	for name, f := range fields {
		if f == nil {
			continue
		}
		if err := f.validate(parser, name); err != nil {
			return err
		}
	}
	return nil
}

func normalizeParser(p Parser) (Parser, error) {
	switch p {
	case "":
		return ParserHTML, nil
	case ParserHTML, ParserJSON, ParserRSS:
		return p, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownParser, p)
	}
}

// scope is one item of a parsed document that field recipes resolve against.
type scope interface {
	selectField(f *FieldRecipe) (Value, error)
}

// evalField selects f within sc and runs its steps. A single-element result
// is unwrapped; an empty one is ErrNoValue.
func evalField(sc scope, f *FieldRecipe, base *url.URL) (Value, error) {
	v, err := sc.selectField(f)
	if err != nil {
		return Value{}, err
	}

	for _, s := range f.Steps {
		v, err = s.Apply(v, base)
		if err != nil {
			return Value{}, fmt.Errorf("step %s: %w", s.Op, err)
		}
	}

	if v.Kind == KindList {
		switch len(v.List) {
		case 0:
			return Value{}, ErrNoValue
		case 1:
			return v.List[0], nil
		}
	}
	return v, nil
}

func evalText(sc scope, f *FieldRecipe, base *url.URL) (string, error) {
	v, err := evalField(sc, f, base)
	if err != nil {
		return "", err
	}
	s := v.String()
	if s == "" {
		return "", ErrNoValue
	}
	return s, nil
}
