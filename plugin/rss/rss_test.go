package rss

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const rssDoc = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0"><channel>
<title>NRK</title><link>https://www.nrk.no</link><description>Toppsaker</description>
<item><title> Storm hits the coast </title><link>https://www.nrk.no/1</link></item>
<item><title>Election results</title><link>https://www.nrk.no/2</link></item>
<item><title></title><link>https://www.nrk.no/3</link></item>
<item><title>Ferry delayed</title><link>https://www.nrk.no/4</link></item>
</channel></rss>`

const atomDoc = `<?xml version="1.0" encoding="utf-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
<title>Go Blog</title><id>tag:blog.golang.org,2013:blog.golang.org</id><updated>2024-05-01T00:00:00Z</updated>
<entry><title>Range over func</title><id>1</id><updated>2024-05-01T00:00:00Z</updated>
<link rel="alternate" href="https://go.dev/blog/range-functions"/></entry>
</feed>`

func TestParse_AtomPicksAlternateLink(t *testing.T) {
	doc := `<feed xmlns="http://www.w3.org/2005/Atom"><title>Podcast</title>
<entry><title>Episode 1</title>
<link rel="enclosure" type="audio/mpeg" href="https://example.org/1.mp3"/>
<link href="https://example.org/episodes/1"/></entry>
<entry><title>Episode 2</title></entry>
</feed>`
	feed, err := Parse([]byte(doc))
	require.NoError(t, err)
	assert.Equal(t, []Item{
		{Title: "Episode 1", Link: "https://example.org/episodes/1"},
		{Title: "Episode 2"},
	}, feed.Items)
}

func TestParse(t *testing.T) {
	feed, err := Parse([]byte(rssDoc))
	require.NoError(t, err)
	assert.Equal(t, "NRK", feed.Title)
	require.Len(t, feed.Items, 4)
	assert.Equal(t, Item{Title: "Storm hits the coast", Link: "https://www.nrk.no/1"}, feed.Items[0])

	feed, err = Parse([]byte(atomDoc))
	require.NoError(t, err)
	assert.Equal(t, "Go Blog", feed.Title)
	assert.Equal(t, []Item{{Title: "Range over func", Link: "https://go.dev/blog/range-functions"}}, feed.Items)

	_, err = Parse([]byte(`<html><body/></html>`))
	assert.ErrorContains(t, err, "unsupported feed format <html>")

	_, err = Parse([]byte(`not xml`))
	assert.Error(t, err)
}

func TestParseSources(t *testing.T) {
	sources := ParseSources([]string{
		"NRK=https://www.nrk.no/toppsaker.rss",
		" https://www.vg.no/rss/feed/?limit=10 ",
		"",
	})
	assert.Equal(t, []Source{
		{Name: "NRK", URL: "https://www.nrk.no/toppsaker.rss"},
		{Name: "vg.no", URL: "https://www.vg.no/rss/feed/?limit=10"},
	}, sources)
}

func newFeedServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/nrk", func(w http.ResponseWriter, r *http.Request) { fmt.Fprint(w, rssDoc) })
	mux.HandleFunc("/go", func(w http.ResponseWriter, r *http.Request) { fmt.Fprint(w, atomDoc) })
	mux.HandleFunc("/empty", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<rss version="2.0"><channel><title>Quiet</title></channel></rss>`)
	})
	mux.HandleFunc("/broken", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestFetchFeed(t *testing.T) {
	srv := newFeedServer(t)
	reader := NewReader(nil)

	text, err := reader.FetchFeed(context.Background(), srv.URL+"/nrk", 3)
	require.NoError(t, err)
	assert.Equal(t, "Latest news from NRK:\n- Storm hits the coast\n- Election results\n- No title\n\n"+
		"Vil du at jeg skal lese mer om en av disse?", text)

	text, err = reader.FetchFeed(context.Background(), srv.URL+"/empty", 0)
	require.NoError(t, err)
	assert.Equal(t, "I found the feed at "+srv.URL+"/empty, but it seems to have no news items.", text)

	_, err = reader.FetchFeed(context.Background(), srv.URL+"/broken", 0)
	assert.ErrorContains(t, err, "status code: 500")
}

func TestFetchAll(t *testing.T) {
	srv := newFeedServer(t)
	reader := NewReader(nil)

	text, err := reader.FetchAll(context.Background(), []Source{
		{Name: "NRK", URL: srv.URL + "/nrk"},
		{Name: "Broken", URL: srv.URL + "/broken"},
		{Name: "Skipped"},
		{Name: "Quiet", URL: srv.URL + "/empty"},
		{Name: "Go", URL: srv.URL + "/go"},
	}, 2)
	require.NoError(t, err)

	want := "Her er siste nytt:\n\n" +
		"**NRK:**\n  - Storm hits the coast\n  - Election results\n\n" +
		"**Broken:** (klarte ikke lese feed)\n\n" +
		"**Quiet:** (ingen saker funnet)\n" +
		"**Go:**\n  - Range over func\n"
	assert.Equal(t, want, text)

	_, err = reader.FetchAll(context.Background(), nil, 0)
	assert.ErrorIs(t, err, ErrNoFeeds)
}

func TestFeeds(t *testing.T) {
	srv := newFeedServer(t)
	ctx := context.Background()

	empty := NewFeeds(NewReader(nil), nil)
	assert.False(t, empty.Configured())
	_, err := empty.Latest(ctx)
	assert.ErrorIs(t, err, ErrNoFeeds)

	feeds := NewFeeds(NewReader(nil), ParseSources([]string{"Go=" + srv.URL + "/go"}))
	assert.True(t, feeds.Configured())
	text, err := feeds.Latest(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Her er siste nytt:\n\n**Go:**\n  - Range over func\n", text)
}
