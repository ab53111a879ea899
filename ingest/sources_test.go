package ingest

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/pevans/newsarchive/config"
	"github.com/pevans/newsarchive/discovery"
	"github.com/pevans/newsarchive/scraper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newWireServer serves two listing pages of two articles each, ids 4 down to
// 1, one hour apart ending at base, and an HTML page per article.
func newWireServer(t *testing.T) (*httptest.Server, *[]string) {
	var agents []string
	mux := http.NewServeMux()
	mux.HandleFunc("/list", func(w http.ResponseWriter, r *http.Request) {
		agents = append(agents, r.Header.Get("User-Agent"))
		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		var b strings.Builder
		b.WriteString("<ul>")
		for k := (page - 1) * 2; k < page*2 && k < 4; k++ {
			id := 4 - k
			fmt.Fprintf(&b, `<li><a href="/story/%d">s</a><time>%s</time></li>`,
				id, base.Add(-time.Duration(k)*time.Hour).Format(time.RFC3339))
		}
		b.WriteString("</ul>")
		w.Write([]byte(b.String()))
	})
	mux.HandleFunc("/story/", func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimPrefix(r.URL.Path, "/story/")
		fmt.Fprintf(w, `<html><body><h1>Story %s</h1><article>Text of %s</article></body></html>`, id, id)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, &agents
}

func wireConfig(srvURL string) *config.Config {
	cfg := config.Default()
	cfg.Transport.UserAgent = "wire-test"
	cfg.Sources = []config.SourceConfig{{
		Name:      "wire",
		HourLimit: 600000,
		ListURL:   srvURL + "/list?page={{.Page}}",
		List: &scraper.ListRecipe{
			Items:     "li",
			Href:      &scraper.FieldRecipe{Selector: "a", Attr: "href"},
			Published: &scraper.FieldRecipe{Selector: "time", Attr: scraper.AttrText, Steps: []scraper.Step{{Op: scraper.OpTime}}},
		},
		Article: &scraper.ArticleRecipe{
			Header: &scraper.FieldRecipe{Selector: "h1", Attr: scraper.AttrText},
			Body:   &scraper.FieldRecipe{Selector: "article", Attr: scraper.AttrText},
		},
	}}
	return cfg
}

func TestNewSites_IngestsFromConfig(t *testing.T) {
	srv, agents := newWireServer(t)
	cfg := wireConfig(srv.URL)
	require.NoError(t, cfg.Validate())

	sites, err := NewSites(cfg, nil)
	require.NoError(t, err)
	defer sites.Close()
	require.Len(t, sites.Sources(), 1)

	orch, idx, w := createTestOrchestrator(t)
	window := discovery.Window{From: base, To: base.Add(-3 * time.Hour)}
	report, err := orch.Ingest(context.Background(), sites.Sources()[0], window, Options{})
	require.NoError(t, err)
	assert.Equal(t, 4, report.Archived)

	entry, err := idx.GetEntry("wire", "3")
	require.NoError(t, err)
	assert.True(t, entry.Parsed)

	unit, err := w.Read("wire", "3")
	require.NoError(t, err)
	assert.Equal(t, "Story 3", unit.Metadata.Header)
	assert.Equal(t, "Text of 3", unit.Metadata.Body)

	require.NotEmpty(t, *agents)
	assert.Equal(t, "wire-test", (*agents)[0])
}

func TestNewSites_UnknownSource(t *testing.T) {
	cfg := wireConfig("http://127.0.0.1")

	_, err := NewSites(cfg, []string{"wire", "missing"})
	assert.ErrorIs(t, err, ErrUnknownSource)
}
