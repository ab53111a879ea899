// Package site joins a transport, URL templates and recipes into the listing
// and article sources for one news site.
package site

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"text/template"
	"time"

	"github.com/pevans/newsarchive/discovery"
	"github.com/pevans/newsarchive/fetch"
	"github.com/pevans/newsarchive/scraper"
)

var (
	ErrMissingName    = errors.New("site name is required")
	ErrMissingListURL = errors.New("list_url is required")
	ErrInvalidURL     = errors.New("invalid url template")
	ErrNoArticleURL   = errors.New("record has no href and no article_url is configured")
)

// Options describes one site.
type Options struct {
	Name string
	// ListURL renders {{.Page}} into the URL of a listing page.
	ListURL string
	// ArticleURL renders {{.ID}} and {{.Href}} into an article URL. When
	// empty the listing href is fetched.
	ArticleURL string
	List       *scraper.ListRecipe
	Article    *scraper.ArticleRecipe
}

// Site fetches and extracts listing pages and articles.
type Site struct {
	name       string
	listURL    *template.Template
	articleURL *template.Template
	list       *scraper.ListRecipe
	article    *scraper.ArticleRecipe
	fetcher    fetch.Fetcher
	now        func() time.Time
}

type urlData struct {
	Page int
	ID   string
	Href string
}

// New validates opts and builds a site over fetcher.
func New(opts Options, fetcher fetch.Fetcher) (*Site, error) {
	if opts.Name == "" {
		return nil, ErrMissingName
	}
	if opts.ListURL == "" {
		return nil, ErrMissingListURL
	}
	if opts.List == nil || opts.Article == nil {
		return nil, fmt.Errorf("%w: list and article recipes", scraper.ErrMissingField)
	}
	if err := opts.List.Validate(); err != nil {
		return nil, fmt.Errorf("list recipe: %w", err)
	}
	if err := opts.Article.Validate(); err != nil {
		return nil, fmt.Errorf("article recipe: %w", err)
	}

	s := &Site{
		name:    opts.Name,
		list:    opts.List,
		article: opts.Article,
		fetcher: fetcher,
		now:     time.Now,
	}

	var err error
	s.listURL, err = parseURLTemplate("list_url", opts.ListURL)
	if err != nil {
		return nil, err
	}
	if opts.ArticleURL != "" {
		s.articleURL, err = parseURLTemplate("article_url", opts.ArticleURL)
		if err != nil {
			return nil, err
		}
	}
	return s, nil
}

func parseURLTemplate(name, text string) (*template.Template, error) {
	tmpl, err := template.New(name).Option("missingkey=error").Parse(text)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidURL, name, err)
	}
	return tmpl, nil
}

func render(tmpl *template.Template, data urlData) (*url.URL, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidURL, tmpl.Name(), err)
	}
	u, err := url.Parse(strings.TrimSpace(buf.String()))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidURL, tmpl.Name(), err)
	}
	return u, nil
}

// Name returns the site's name, which is also its archive key.
func (s *Site) Name() string {
	return s.name
}

// ListPage fetches and extracts listing page n. It has the shape of a
// discovery.PageFunc.
func (s *Site) ListPage(ctx context.Context, page int) ([]discovery.ShortArticle, error) {
	u, err := render(s.listURL, urlData{Page: page})
	if err != nil {
		return nil, err
	}

	body, err := s.fetcher.Fetch(ctx, u.String())
	if err != nil {
		return nil, err
	}
	return scraper.ExtractList(s.list, body, u)
}

// FetchArticle downloads and extracts the article behind a listing record.
func (s *Site) FetchArticle(ctx context.Context, short discovery.ShortArticle) (*discovery.Article, error) {
	u, err := s.articleLocation(short)
	if err != nil {
		return nil, err
	}

	body, err := s.fetcher.Fetch(ctx, u.String())
	if err != nil {
		return nil, err
	}

	article, err := scraper.ExtractArticle(s.article, body, u, short)
	if err != nil {
		return nil, err
	}
	article.FetchedAt = s.now().UTC()
	return article, nil
}

func (s *Site) articleLocation(short discovery.ShortArticle) (*url.URL, error) {
	if s.articleURL != nil {
		return render(s.articleURL, urlData{ID: short.ID, Href: short.Href})
	}
	if short.Href == "" {
		return nil, fmt.Errorf("%w: %s", ErrNoArticleURL, short.ID)
	}
	u, err := url.Parse(short.Href)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	return u, nil
}
