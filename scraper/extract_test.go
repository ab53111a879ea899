package scraper

import (
	"net/url"
	"testing"
	"time"

	"github.com/pevans/newsarchive/discovery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustURL(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u
}

const listingHTML = `
<html><body>
<ul class="news">
	<li class="item">
		<a href="/news/2024/05/20/first-story">First story</a>
		<time datetime="2024-05-20T10:00:00Z">20 May</time>
	</li>
	<li class="item">
		<a href="/news/2024/05/19/second-story">Second story</a>
		<time datetime="2024-05-19T08:30:00Z">19 May</time>
	</li>
</ul>
</body></html>`

func TestExtractList_HTML(t *testing.T) {
	recipe := &ListRecipe{
		Items:     "li.item",
		Href:      &FieldRecipe{Selector: "a", Attr: "href"},
		Published: &FieldRecipe{Selector: "time", Attr: "datetime", Steps: []Step{{Op: OpTime}}},
	}
	require.NoError(t, recipe.Validate())

	records, err := ExtractList(recipe, []byte(listingHTML), mustURL(t, "https://example.com/news?page=1"))
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, "first-story", records[0].ID)
	assert.Equal(t, "https://example.com/news/2024/05/20/first-story", records[0].Href)
	assert.Equal(t, time.Date(2024, 5, 20, 10, 0, 0, 0, time.UTC), records[0].PublishedAt)
	assert.Equal(t, "second-story", records[1].ID)
}

func TestExtractList_HTMLWithExplicitID(t *testing.T) {
	body := `<div class="row" data-id="77"><span class="ts">1716212700</span></div>`
	recipe := &ListRecipe{
		Items:     ".row",
		ID:        &FieldRecipe{Attr: "data-id"},
		Published: &FieldRecipe{Selector: ".ts", Attr: AttrText, Steps: []Step{{Op: OpUnix}}},
	}
	require.NoError(t, recipe.Validate())

	records, err := ExtractList(recipe, []byte(body), mustURL(t, "https://example.com/"))
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "77", records[0].ID)
	assert.Empty(t, records[0].Href)
	assert.Equal(t, time.Unix(1716212700, 0).UTC(), records[0].PublishedAt)
}

func TestExtractList_MissingTimestampFailsPage(t *testing.T) {
	body := `<li class="item"><a href="/a/1">x</a></li>`
	recipe := &ListRecipe{
		Items:     "li.item",
		Href:      &FieldRecipe{Selector: "a", Attr: "href"},
		Published: &FieldRecipe{Selector: "time", Attr: "datetime"},
	}

	_, err := ExtractList(recipe, []byte(body), mustURL(t, "https://example.com/"))

	var extractErr *discovery.ContentExtractionError
	require.ErrorAs(t, err, &extractErr)
	assert.Equal(t, "published", extractErr.Field)
	assert.ErrorIs(t, err, ErrNoValue)
}

func TestExtractList_EmptyPage(t *testing.T) {
	recipe := &ListRecipe{
		Items:     "li.item",
		Href:      &FieldRecipe{Selector: "a", Attr: "href"},
		Published: &FieldRecipe{Selector: "time", Attr: "datetime"},
	}

	records, err := ExtractList(recipe, []byte(`<html><body><p>No more news</p></body></html>`), mustURL(t, "https://example.com/"))
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestExtractList_JSON(t *testing.T) {
	body := `{"data": {"items": [
		{"id": 12, "url": "/a/12", "ts": "1716212700"},
		{"id": 11, "url": "/a/11", "ts": "1716200000"}
	]}}`
	recipe := &ListRecipe{
		Parser:    ParserJSON,
		Items:     "data.items",
		ID:        &FieldRecipe{Selector: "id"},
		Href:      &FieldRecipe{Selector: "url"},
		Published: &FieldRecipe{Selector: "ts", Steps: []Step{{Op: OpUnix}}},
	}
	require.NoError(t, recipe.Validate())

	records, err := ExtractList(recipe, []byte(body), mustURL(t, "https://api.example.com/list?page=2"))
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "12", records[0].ID)
	assert.Equal(t, "https://api.example.com/a/12", records[0].Href)
	assert.Equal(t, time.Unix(1716200000, 0).UTC(), records[1].PublishedAt)
}

func TestExtractList_InvalidJSON(t *testing.T) {
	recipe := &ListRecipe{
		Parser:    ParserJSON,
		Items:     "items",
		ID:        &FieldRecipe{Selector: "id"},
		Published: &FieldRecipe{Selector: "ts"},
	}

	_, err := ExtractList(recipe, []byte(`<html>`), mustURL(t, "https://example.com/"))

	var extractErr *discovery.ContentExtractionError
	require.ErrorAs(t, err, &extractErr)
	assert.Equal(t, "items", extractErr.Field)
}

func TestExtractList_RSS(t *testing.T) {
	feed := `<?xml version="1.0"?>
<rss version="2.0"><channel><title>Example</title>
<item>
	<title>Newest</title>
	<link>https://example.com/news/newest</link>
	<guid>n-2</guid>
	<pubDate>Mon, 20 May 2024 10:00:00 GMT</pubDate>
</item>
<item>
	<title>Older</title>
	<link>https://example.com/news/older</link>
	<guid>n-1</guid>
	<pubDate>Sun, 19 May 2024 10:00:00 GMT</pubDate>
</item>
</channel></rss>`
	recipe := &ListRecipe{
		Parser:    ParserRSS,
		ID:        &FieldRecipe{Selector: "guid"},
		Href:      &FieldRecipe{Selector: "link"},
		Published: &FieldRecipe{Selector: "published"},
	}
	require.NoError(t, recipe.Validate())

	records, err := ExtractList(recipe, []byte(feed), mustURL(t, "https://example.com/feed.xml"))
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "n-2", records[0].ID)
	assert.Equal(t, "https://example.com/news/newest", records[0].Href)
	assert.Equal(t, time.Date(2024, 5, 20, 10, 0, 0, 0, time.UTC), records[0].PublishedAt)
}

func TestListRecipe_Validate(t *testing.T) {
	published := &FieldRecipe{Selector: "time"}

	err := (&ListRecipe{Parser: "xml", Href: &FieldRecipe{}, Published: published}).Validate()
	assert.ErrorIs(t, err, ErrUnknownParser)

	err = (&ListRecipe{Href: &FieldRecipe{}}).Validate()
	assert.ErrorIs(t, err, ErrMissingField)

	err = (&ListRecipe{Published: published}).Validate()
	assert.ErrorIs(t, err, ErrMissingField)

	err = (&ListRecipe{Parser: ParserRSS, ID: &FieldRecipe{Selector: "nope"}, Published: &FieldRecipe{Selector: "published"}}).Validate()
	assert.ErrorIs(t, err, ErrUnknownRSSField)

	err = (&ListRecipe{Href: &FieldRecipe{Steps: []Step{{Op: "bogus"}}}, Published: published}).Validate()
	assert.ErrorIs(t, err, ErrUnknownStep)
}

const articleHTML = `
<html><head><title>Site | Big story</title></head>
<body>
<article>
	<h1 class="title">  Big
		story </h1>
	<div class="meta"><time datetime="2024-05-20T09:15:00Z">today</time></div>
	<div class="body"><p>First paragraph.</p><p>Second paragraph.</p></div>
	<ul class="tags"><li>politics</li><li>economy</li></ul>
</article>
</body></html>`

func TestExtractArticle_HTML(t *testing.T) {
	recipe := &ArticleRecipe{
		Header:    &FieldRecipe{Selector: "h1.title", Attr: AttrText},
		Body:      &FieldRecipe{Selector: "div.body p", Attr: AttrText, Steps: []Step{{Op: OpJoin, Sep: "\n"}}},
		Published: &FieldRecipe{Selector: "time", Attr: "datetime"},
		Keywords:  &FieldRecipe{Selector: "ul.tags li", Attr: AttrText},
	}
	require.NoError(t, recipe.Validate())

	short := discovery.ShortArticle{ID: "big-story", Href: "https://example.com/news/big-story"}
	article, err := ExtractArticle(recipe, []byte(articleHTML), mustURL(t, short.Href), short)
	require.NoError(t, err)

	assert.Equal(t, "big-story", article.ID)
	assert.Equal(t, "Big story", article.Header)
	assert.Equal(t, "First paragraph.\nSecond paragraph.", article.Body)
	assert.Equal(t, time.Date(2024, 5, 20, 9, 15, 0, 0, time.UTC), article.PublishedAt)
	assert.Equal(t, []string{"politics", "economy"}, article.Keywords)
	assert.Equal(t, short.Href, article.Href)
	assert.Equal(t, []byte(articleHTML), article.Raw)
}

func TestExtractArticle_PublishedFallsBackToListing(t *testing.T) {
	recipe := &ArticleRecipe{
		Header:    &FieldRecipe{Selector: "h1", Attr: AttrText},
		Body:      &FieldRecipe{Selector: "div.body", Attr: AttrText},
		Published: &FieldRecipe{Selector: ".missing", Attr: AttrText},
	}
	listed := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	short := discovery.ShortArticle{ID: "x", PublishedAt: listed}

	article, err := ExtractArticle(recipe, []byte(articleHTML), mustURL(t, "https://example.com/x"), short)
	require.NoError(t, err)
	assert.Equal(t, listed, article.PublishedAt)
	assert.Empty(t, article.Keywords)
	assert.NotNil(t, article.Keywords)
}

func TestExtractArticle_MissingBody(t *testing.T) {
	recipe := &ArticleRecipe{
		Header: &FieldRecipe{Selector: "h1", Attr: AttrText},
		Body:   &FieldRecipe{Selector: ".no-such-body", Attr: AttrText},
	}

	_, err := ExtractArticle(recipe, []byte(articleHTML), mustURL(t, "https://example.com/x"), discovery.ShortArticle{ID: "x"})

	var extractErr *discovery.ContentExtractionError
	require.ErrorAs(t, err, &extractErr)
	assert.Equal(t, "body", extractErr.Field)
	assert.Equal(t, "https://example.com/x", extractErr.URL)
}

func TestExtractArticle_RequiredOptionalField(t *testing.T) {
	recipe := &ArticleRecipe{
		Header:   &FieldRecipe{Selector: "h1", Attr: AttrText},
		Body:     &FieldRecipe{Selector: "div.body", Attr: AttrText},
		Keywords: &FieldRecipe{Selector: ".keywords", Attr: AttrText, Required: true},
	}

	_, err := ExtractArticle(recipe, []byte(articleHTML), mustURL(t, "https://example.com/x"), discovery.ShortArticle{ID: "x"})

	var extractErr *discovery.ContentExtractionError
	require.ErrorAs(t, err, &extractErr)
	assert.Equal(t, "keywords", extractErr.Field)
}

func TestExtractArticle_JSON(t *testing.T) {
	body := `{"article": {"title": "Budget passed", "text": "The budget passed today.", "tags": ["budget", "parliament"], "date": "2024-05-20 12:00:00"}}`
	recipe := &ArticleRecipe{
		Parser:    ParserJSON,
		Header:    &FieldRecipe{Selector: "article.title"},
		Body:      &FieldRecipe{Selector: "article.text"},
		Keywords:  &FieldRecipe{Selector: "article.tags"},
		Published: &FieldRecipe{Selector: "article.date", Steps: []Step{{Op: OpTime, Layout: "2006-01-02 15:04:05"}}},
	}
	require.NoError(t, recipe.Validate())

	article, err := ExtractArticle(recipe, []byte(body), mustURL(t, "https://api.example.com/a/9"), discovery.ShortArticle{ID: "9"})
	require.NoError(t, err)
	assert.Equal(t, "Budget passed", article.Header)
	assert.Equal(t, "The budget passed today.", article.Body)
	assert.Equal(t, []string{"budget", "parliament"}, article.Keywords)
	assert.Equal(t, time.Date(2024, 5, 20, 12, 0, 0, 0, time.UTC), article.PublishedAt)
}

func TestExtractArticle_ReadabilityFallback(t *testing.T) {
	body := `<html><head><title>Fallback headline</title></head><body>
<div id="main"><article>
<h1>Fallback headline</h1>
<p>` + longParagraph + `</p>
<p>` + longParagraph + `</p>
</article></div></body></html>`
	recipe := &ArticleRecipe{
		Header:   &FieldRecipe{Selector: "h2.never", Attr: AttrText},
		Fallback: FallbackReadability,
	}
	require.NoError(t, recipe.Validate())

	article, err := ExtractArticle(recipe, []byte(body), mustURL(t, "https://example.com/f"), discovery.ShortArticle{ID: "f"})
	require.NoError(t, err)
	assert.Contains(t, article.Header, "Fallback headline")
	assert.Contains(t, article.Body, "quick brown fox")
}

const longParagraph = `The quick brown fox jumps over the lazy dog while the reporters
watch closely and write down every detail of the remarkable event, which was
later described by witnesses as the most interesting thing to happen in the
village in many years, prompting a long discussion at the town hall meeting.`

func TestArticleRecipe_Validate(t *testing.T) {
	err := (&ArticleRecipe{Body: &FieldRecipe{}}).Validate()
	assert.ErrorIs(t, err, ErrMissingField)

	err = (&ArticleRecipe{Fallback: "magic"}).Validate()
	assert.ErrorIs(t, err, ErrUnknownFallback)

	err = (&ArticleRecipe{Parser: ParserRSS, Fallback: FallbackReadability}).Validate()
	assert.ErrorIs(t, err, ErrUnknownParser)

	assert.NoError(t, (&ArticleRecipe{Fallback: FallbackReadability}).Validate())
}
