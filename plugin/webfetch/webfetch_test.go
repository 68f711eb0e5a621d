package webfetch

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"
)

const articlePage = `<html><head><title> Oslo facts </title><script>var x = 1;</script></head>
<body>
<header>Site header</header>
<nav>Home | About</nav>
<article>
  <h1>Oslo</h1>
  <p>Oslo is the capital of Norway.</p>
  <p>
     It has about 700,000 inhabitants.
  </p>
</article>
<footer>Copyright</footer>
</body></html>`

func parse(t *testing.T, page string) *html.Node {
	t.Helper()
	doc, err := html.Parse(strings.NewReader(page))
	require.NoError(t, err)
	return doc
}

func TestExtractText(t *testing.T) {
	title, content := ExtractText(parse(t, articlePage))

	assert.Equal(t, "Oslo facts", title)
	assert.Equal(t, "Oslo\nOslo is the capital of Norway.\nIt has about 700,000 inhabitants.", content)
}

func TestExtractText_Fallbacks(t *testing.T) {
	tests := []struct {
		name string
		page string
		want string
	}{
		{
			name: "main wins over article",
			page: `<body><article>side</article><main>main text</main></body>`,
			want: "main text",
		},
		{
			name: "content class",
			page: `<body><div>menu</div><div class="post-body">the post</div></body>`,
			want: "the post",
		},
		{
			name: "body",
			page: `<body><div>just text</div><style>p{}</style></body>`,
			want: "just text",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, content := ExtractText(parse(t, tt.page))
			assert.Equal(t, tt.want, content)
		})
	}
}

func TestResultLinks(t *testing.T) {
	page := `<body>
<a class="result__a" href="//duckduckgo.com/l/?uddg=https%3A%2F%2Fexample.com%2Fa&rut=x">A</a>
<a class="other" href="https://ignored.example">skip</a>
<a class="result__a extra" href="https://example.com/b">B</a>
<a class="result__a" href="https://example.com/c">C</a>
</body>`

	links := ResultLinks(parse(t, page), 2)
	assert.Equal(t, []string{"https://example.com/a", "https://example.com/b"}, links)
}

func TestSummarizeForLLM(t *testing.T) {
	results := []Result{
		{URL: "https://a.example", Title: "A", Content: "alpha"},
		{URL: "https://b.example", Err: errors.New("timeout")},
	}
	assert.Equal(t,
		"**A** (https://a.example)\nalpha\n\n---\n\nFailed to fetch https://b.example: timeout",
		SummarizeForLLM(results))
	assert.True(t, AnySuccess(results))
	assert.False(t, AnySuccess(results[1:]))
}

func newSearchServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	mux.HandleFunc("/html/", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "oslo population", r.URL.Query().Get("q"))
		assert.Contains(t, r.Header.Get("User-Agent"), "Mozilla")
		fmt.Fprintf(w, `<body>
<a class="result__a" href="/l/?uddg=%s">first</a>
<a class="result__a" href="%s/missing">second</a>
<a class="result__a" href="%s/page">third</a>
</body>`, url.QueryEscape(srv.URL+"/page"), srv.URL, srv.URL)
	})
	mux.HandleFunc("/page", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, articlePage)
	})
	mux.HandleFunc("/missing", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	t.Cleanup(srv.Close)
	return srv
}

func TestSearch(t *testing.T) {
	srv := newSearchServer(t)
	client := New(WithSearchURL(srv.URL+"/html/"), WithWorkers(2))

	results := client.Search(context.Background(), "oslo population", 2)
	require.Len(t, results, 2)

	assert.True(t, results[0].Success())
	assert.Equal(t, srv.URL+"/page", results[0].URL)
	assert.Equal(t, "Oslo facts", results[0].Title)
	assert.Contains(t, results[0].Content, "capital of Norway")

	assert.False(t, results[1].Success())
	assert.Contains(t, results[1].Err.Error(), "status 404")
}

func TestSearch_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	results := New(WithSearchURL(srv.URL)).Search(context.Background(), "anything", 3)
	require.Len(t, results, 1)
	assert.False(t, results[0].Success())
}

func TestFetch_TruncatesContent(t *testing.T) {
	long := strings.Repeat("ø", MaxContentRunes+50)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, "<main>%s</main>", long)
	}))
	defer srv.Close()

	result := New().Fetch(context.Background(), srv.URL)
	require.True(t, result.Success())
	assert.Equal(t, MaxContentRunes, len([]rune(result.Content)))
}
