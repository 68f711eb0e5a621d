// Package webfetch searches DuckDuckGo and extracts readable text from web pages.
package webfetch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

const (
	DefaultSearchURL = "https://html.duckduckgo.com/html/"
	DefaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

	// MaxContentRunes bounds the text kept per page.
	MaxContentRunes = 8000
	// SummaryContentRunes bounds the text per page in SummarizeForLLM.
	SummaryContentRunes = 2000

	maxBodyBytes        = 4 << 20
	defaultTimeout      = 10 * time.Second
	defaultFetchWorkers = 3
)

// Result is one fetched page.
type Result struct {
	URL     string
	Title   string
	Content string
	Err     error
}

func (r Result) Success() bool {
	return r.Err == nil
}

// Client fetches pages over HTTP.
type Client struct {
	http      *http.Client
	searchURL string
	userAgent string
	workers   int64
}

// Option configures a Client.
type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.http = c }
}

// WithSearchURL points searches at another DuckDuckGo HTML endpoint.
func WithSearchURL(u string) Option {
	return func(cl *Client) { cl.searchURL = u }
}

// WithWorkers sets how many search results are fetched at once.
func WithWorkers(n int) Option {
	return func(cl *Client) {
		if n > 0 {
			cl.workers = int64(n)
		}
	}
}

func New(opts ...Option) *Client {
	c := &Client{
		http:      &http.Client{Timeout: defaultTimeout},
		searchURL: DefaultSearchURL,
		userAgent: DefaultUserAgent,
		workers:   defaultFetchWorkers,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) get(ctx context.Context, target string) (*html.Node, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("GET %s: status %d", target, resp.StatusCode)
	}
	return html.Parse(io.LimitReader(resp.Body, maxBodyBytes))
}

// Fetch downloads a page and extracts its readable text. Failures are
// reported in Result.Err.
func (c *Client) Fetch(ctx context.Context, target string) Result {
	slog.Debug("webfetch: fetching", "url", target)
	doc, err := c.get(ctx, target)
	if err != nil {
		slog.Warn("webfetch: fetch failed", "url", target, "error", err)
		return Result{URL: target, Err: err}
	}
	title, content := ExtractText(doc)
	return Result{URL: target, Title: title, Content: headRunes(content, MaxContentRunes)}
}

// Search queries DuckDuckGo and fetches the top n results concurrently.
// Results keep the search order. A failed search yields a single failed Result.
func (c *Client) Search(ctx context.Context, query string, n int) []Result {
	searchURL := c.searchURL + "?q=" + url.QueryEscape(query)
	slog.Info("webfetch: searching", "query", query)

	doc, err := c.get(ctx, searchURL)
	if err != nil {
		slog.Error("webfetch: search failed", "query", query, "error", err)
		return []Result{{URL: searchURL, Err: err}}
	}
	links := ResultLinks(doc, n)

	results := make([]Result, len(links))
	sem := semaphore.NewWeighted(c.workers)
	g, gctx := errgroup.WithContext(ctx)
	for i, link := range links {
		g.Go(func() error {
			if err := sem.Acquire(gctx, 1); err != nil {
				results[i] = Result{URL: link, Err: err}
				return nil
			}
			defer sem.Release(1)
			results[i] = c.Fetch(gctx, link)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// AnySuccess reports whether at least one result was fetched.
func AnySuccess(results []Result) bool {
	for _, r := range results {
		if r.Success() {
			return true
		}
	}
	return false
}

// SummarizeForLLM formats results as context for a language model.
func SummarizeForLLM(results []Result) string {
	parts := make([]string, 0, len(results))
	for _, r := range results {
		if r.Success() {
			parts = append(parts, fmt.Sprintf("**%s** (%s)\n%s", r.Title, r.URL, headRunes(r.Content, SummaryContentRunes)))
		} else {
			parts = append(parts, fmt.Sprintf("Failed to fetch %s: %v", r.URL, r.Err))
		}
	}
	return strings.Join(parts, "\n\n---\n\n")
}

// ResultLinks returns up to n result targets from a DuckDuckGo HTML page,
// unwrapping its redirect links.
func ResultLinks(doc *html.Node, n int) []string {
	var links []string
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		if len(links) >= n {
			return
		}
		if node.Type == html.ElementNode && node.DataAtom == atom.A && hasClass(node, "result__a") {
			if href := attr(node, "href"); href != "" {
				links = append(links, unwrapRedirect(href))
			}
		}
		for child := node.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(doc)
	return links
}

func unwrapRedirect(href string) string {
	if !strings.Contains(href, "uddg=") {
		return href
	}
	parsed, err := url.Parse(href)
	if err != nil {
		return href
	}
	if target := parsed.Query().Get("uddg"); target != "" {
		return target
	}
	return href
}

var skipped = map[atom.Atom]bool{
	atom.Script: true, atom.Style: true, atom.Nav: true,
	atom.Footer: true, atom.Header: true, atom.Noscript: true,
}

// ExtractText returns the page title and the text of its main content,
// one trimmed line per text block. main, then article, then an element with
// a content-like class, then body is used.
func ExtractText(doc *html.Node) (title, content string) {
	if t := find(doc, func(n *html.Node) bool { return n.DataAtom == atom.Title }); t != nil {
		title = strings.TrimSpace(textOf(t))
	}

	root := find(doc, func(n *html.Node) bool { return n.DataAtom == atom.Main })
	if root == nil {
		root = find(doc, func(n *html.Node) bool { return n.DataAtom == atom.Article })
	}
	if root == nil {
		root = find(doc, func(n *html.Node) bool {
			class := attr(n, "class")
			return strings.Contains(class, "content") || strings.Contains(class, "article") || strings.Contains(class, "post")
		})
	}
	if root == nil {
		root = find(doc, func(n *html.Node) bool { return n.DataAtom == atom.Body })
	}
	if root == nil {
		root = doc
	}

	var lines []string
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		if node.Type == html.ElementNode && skipped[node.DataAtom] {
			return
		}
		if node.Type == html.TextNode {
			for _, line := range strings.Split(node.Data, "\n") {
				if line = strings.TrimSpace(line); line != "" {
					lines = append(lines, line)
				}
			}
		}
		for child := node.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(root)
	return title, strings.Join(lines, "\n")
}

func find(node *html.Node, match func(*html.Node) bool) *html.Node {
	if node.Type == html.ElementNode && match(node) {
		return node
	}
	for child := node.FirstChild; child != nil; child = child.NextSibling {
		if found := find(child, match); found != nil {
			return found
		}
	}
	return nil
}

func textOf(node *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(node)
	return b.String()
}

func attr(node *html.Node, key string) string {
	for _, a := range node.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func hasClass(node *html.Node, class string) bool {
	for _, c := range strings.Fields(attr(node, "class")) {
		if c == class {
			return true
		}
	}
	return false
}

func headRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
