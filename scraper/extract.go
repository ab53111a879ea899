package scraper

import (
	"bytes"
	"errors"
	"net/url"
	"time"

	"github.com/go-shiori/go-readability"
	"github.com/pevans/newsarchive/discovery"
)

// ExtractList reads the listing records from one listing page. Hrefs are
// resolved against pageURL. A record missing its id or timestamp fails the
// whole page, since a listing that cannot be ordered cannot be searched.
func ExtractList(r *ListRecipe, body []byte, pageURL *url.URL) ([]discovery.ShortArticle, error) {
	parser, err := normalizeParser(r.Parser)
	if err != nil {
		return nil, err
	}

	var items []scope
	switch parser {
	case ParserHTML:
		items, err = htmlItems(body, r.Items)
	case ParserJSON:
		items, err = jsonItems(body, r.Items)
	case ParserRSS:
		items, err = rssItems(body)
	}
	if err != nil {
		return nil, &discovery.ContentExtractionError{URL: pageURL.String(), Field: "items", Err: err}
	}

	records := make([]discovery.ShortArticle, 0, len(items))
	for _, item := range items {
		rec, err := extractRecord(r, item, pageURL)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

func extractRecord(r *ListRecipe, item scope, pageURL *url.URL) (discovery.ShortArticle, error) {
	var rec discovery.ShortArticle
	fail := func(field string, err error) (discovery.ShortArticle, error) {
		return discovery.ShortArticle{}, &discovery.ContentExtractionError{URL: pageURL.String(), Field: field, Err: err}
	}

	if r.Href != nil {
		href, err := evalText(item, r.Href, pageURL)
		if err != nil && (r.ID == nil || !errors.Is(err, ErrNoValue)) {
			return fail("href", err)
		}
		if href != "" {
			rec.Href = resolve(pageURL, href)
		}
	}

	if r.ID != nil {
		id, err := evalText(item, r.ID, pageURL)
		if err != nil {
			return fail("id", err)
		}
		rec.ID = id
	} else {
		id, err := Step{Op: OpSlug}.Apply(TextValue(rec.Href), nil)
		if err != nil {
			return fail("id", err)
		}
		rec.ID = id.Text
	}

	v, err := evalField(item, r.Published, pageURL)
	if err != nil {
		return fail("published", err)
	}
	published, err := v.AsTime()
	if err != nil {
		return fail("published", err)
	}
	rec.PublishedAt = published.UTC()

	return rec, nil
}

// ExtractArticle reads a full article from a fetched document. The listing
// record supplies the id and the fallback timestamp; pageURL is where body
// was fetched from.
func ExtractArticle(r *ArticleRecipe, body []byte, pageURL *url.URL, short discovery.ShortArticle) (*discovery.Article, error) {
	parser, err := normalizeParser(r.Parser)
	if err != nil {
		return nil, err
	}

	var root scope
	switch parser {
	case ParserJSON:
		root, err = jsonRoot(body)
	default:
		root, err = htmlRoot(body)
	}
	if err != nil {
		return nil, &discovery.ContentExtractionError{URL: pageURL.String(), Field: "document", Err: err}
	}

	article := &discovery.Article{
		ID:  short.ID,
		Raw: body,
	}

	optional := func(field string, f *FieldRecipe, set func(Value) error) error {
		if f == nil {
			return nil
		}
		v, err := evalField(root, f, pageURL)
		if err == nil {
			err = set(v)
		}
		if err != nil && (f.Required || !errors.Is(err, ErrNoValue)) {
			return &discovery.ContentExtractionError{URL: pageURL.String(), Field: field, Err: err}
		}
		return nil
	}

	if err := optional("header", r.Header, func(v Value) error {
		article.Header = v.String()
		return nil
	}); err != nil {
		return nil, err
	}
	if err := optional("body", r.Body, func(v Value) error {
		article.Body = v.String()
		return nil
	}); err != nil {
		return nil, err
	}
	var published time.Time
	if err := optional("published", r.Published, func(v Value) error {
		published, err = v.AsTime()
		return err
	}); err != nil {
		return nil, err
	}
	if err := optional("href", r.Href, func(v Value) error {
		article.Href = resolve(pageURL, v.String())
		return nil
	}); err != nil {
		return nil, err
	}
	if err := optional("keywords", r.Keywords, func(v Value) error {
		article.Keywords = v.Strings()
		return nil
	}); err != nil {
		return nil, err
	}

	if r.Fallback == FallbackReadability && (article.Header == "" || article.Body == "" || published.IsZero()) {
		fillFromReadability(article, &published, body, pageURL)
	}

	if article.Header == "" {
		return nil, &discovery.ContentExtractionError{URL: pageURL.String(), Field: "header"}
	}
	if article.Body == "" {
		return nil, &discovery.ContentExtractionError{URL: pageURL.String(), Field: "body"}
	}

	if published.IsZero() {
		published = short.PublishedAt
	}
	article.PublishedAt = published.UTC()
	if article.Href == "" {
		article.Href = pageURL.String()
	}
	if article.Keywords == nil {
		article.Keywords = []string{}
	}

	return article, nil
}

// fillFromReadability sets whichever of header, body and published the recipe
// left empty. Readability failures leave the article unchanged.
func fillFromReadability(article *discovery.Article, published *time.Time, body []byte, pageURL *url.URL) {
	parsed, err := readability.FromReader(bytes.NewReader(body), pageURL)
	if err != nil {
		return
	}

	if article.Header == "" {
		article.Header = collapse(parsed.Title)
	}
	if article.Body == "" {
		article.Body = collapse(parsed.TextContent)
	}
	if published.IsZero() {
		switch {
		case parsed.PublishedTime != nil:
			*published = *parsed.PublishedTime
		case parsed.ModifiedTime != nil:
			*published = *parsed.ModifiedTime
		}
	}
}

func resolve(base *url.URL, href string) string {
	ref, err := url.Parse(href)
	if err != nil || base == nil {
		return href
	}
	return base.ResolveReference(ref).String()
}
