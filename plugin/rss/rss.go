// Package rss reads RSS 2.0 and Atom feeds and renders headlines for speech.
package rss

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/feeds"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultItemLimit    = 5
	DefaultPerFeedLimit = 3

	maxFeedBytes = 2 << 20
)

// ErrNoFeeds is returned by FetchAll when no sources are configured.
var ErrNoFeeds = errors.New("no RSS feeds configured")

// Source is a configured feed.
type Source struct {
	Name string
	URL  string
}

// ParseSources reads "Name=URL" or bare URL entries. A bare URL is named after its host.
func ParseSources(entries []string) []Source {
	var sources []Source
	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		name, link, found := strings.Cut(entry, "=")
		if !found || strings.Contains(name, "://") {
			link = entry
			name = link
			if u, err := url.Parse(link); err == nil && u.Host != "" {
				name = strings.TrimPrefix(u.Host, "www.")
			}
		}
		sources = append(sources, Source{Name: strings.TrimSpace(name), URL: strings.TrimSpace(link)})
	}
	return sources
}

// Item is a feed entry.
type Item struct {
	Title string
	Link  string
}

// Feed is a parsed RSS or Atom document.
type Feed struct {
	Title string
	Items []Item
}

// atomDocument reads an Atom feed. feeds.AtomEntry is shaped for writing and
// leaves its links untagged, so entries are decoded into atomEntry.
type atomDocument struct {
	XMLName xml.Name    `xml:"feed"`
	Title   string      `xml:"title"`
	Entries []atomEntry `xml:"entry"`
}

type atomEntry struct {
	Title string           `xml:"title"`
	Links []feeds.AtomLink `xml:"link"`
}

// Parse decodes an RSS 2.0 or Atom document.
func Parse(data []byte) (*Feed, error) {
	root, err := rootElement(data)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read feed")
	}

	switch root {
	case "rss":
		var doc feeds.RssFeedXml
		if err := xml.Unmarshal(data, &doc); err != nil {
			return nil, errors.Wrap(err, "failed to parse RSS feed")
		}
		feed := &Feed{}
		if doc.Channel == nil {
			return feed, nil
		}
		feed.Title = strings.TrimSpace(doc.Channel.Title)
		for _, item := range doc.Channel.Items {
			feed.Items = append(feed.Items, Item{Title: strings.TrimSpace(item.Title), Link: item.Link})
		}
		return feed, nil

	case "feed":
		var doc atomDocument
		if err := xml.Unmarshal(data, &doc); err != nil {
			return nil, errors.Wrap(err, "failed to parse Atom feed")
		}
		feed := &Feed{Title: strings.TrimSpace(doc.Title)}
		for _, entry := range doc.Entries {
			item := Item{Title: strings.TrimSpace(entry.Title)}
			for _, link := range entry.Links {
				if link.Rel == "" || link.Rel == "alternate" {
					item.Link = link.Href
					break
				}
			}
			feed.Items = append(feed.Items, item)
		}
		return feed, nil
	}
	return nil, errors.Errorf("unsupported feed format <%s>", root)
}

func rootElement(data []byte) (string, error) {
	decoder := xml.NewDecoder(bytes.NewReader(data))
	for {
		token, err := decoder.Token()
		if err != nil {
			return "", err
		}
		if start, ok := token.(xml.StartElement); ok {
			return start.Name.Local, nil
		}
	}
}

// Reader fetches feeds over HTTP.
type Reader struct {
	client *http.Client
}

// NewReader returns a Reader using client, or a 10 second default when nil.
func NewReader(client *http.Client) *Reader {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &Reader{client: client}
}

// Fetch downloads and parses a feed.
func (r *Reader) Fetch(ctx context.Context, link string) (*Feed, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid feed URL %s", link)
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to fetch %s", link)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, errors.Errorf("failed to fetch %s, status code: %d", link, resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxFeedBytes))
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read %s", link)
	}
	return Parse(data)
}

// FetchFeed renders the latest limit headlines of one feed.
func (r *Reader) FetchFeed(ctx context.Context, link string, limit int) (string, error) {
	if limit <= 0 {
		limit = DefaultItemLimit
	}
	slog.Info("rss: fetching feed", "url", link)
	feed, err := r.Fetch(ctx, link)
	if err != nil {
		return "", err
	}
	if len(feed.Items) == 0 {
		return fmt.Sprintf("I found the feed at %s, but it seems to have no news items.", link), nil
	}

	title := feed.Title
	if title == "" {
		title = "RSS Feed"
	}
	lines := []string{fmt.Sprintf("Latest news from %s:", title)}
	for _, item := range feed.Items[:min(limit, len(feed.Items))] {
		lines = append(lines, "- "+itemTitle(item, "No title"))
	}
	return strings.Join(lines, "\n") + "\n\nVil du at jeg skal lese mer om en av disse?", nil
}

// FetchAll renders perFeed headlines from every source, grouped by source name.
// Sources are fetched concurrently; a failing source is noted in place.
func (r *Reader) FetchAll(ctx context.Context, sources []Source, perFeed int) (string, error) {
	if len(sources) == 0 {
		return "", ErrNoFeeds
	}
	if perFeed <= 0 {
		perFeed = DefaultPerFeedLimit
	}

	fetched := make([]*Feed, len(sources))
	failures := make([]error, len(sources))
	g, gctx := errgroup.WithContext(ctx)
	for i, src := range sources {
		if src.URL == "" {
			continue
		}
		g.Go(func() error {
			fetched[i], failures[i] = r.Fetch(gctx, src.URL)
			return nil
		})
	}
	_ = g.Wait()

	lines := []string{"Her er siste nytt:\n"}
	for i, src := range sources {
		switch {
		case src.URL == "":
			continue
		case failures[i] != nil:
			slog.Warn("rss: feed failed", "name", src.Name, "url", src.URL, "error", failures[i])
			lines = append(lines, fmt.Sprintf("**%s:** (klarte ikke lese feed)", src.Name), "")
		case len(fetched[i].Items) == 0:
			lines = append(lines, fmt.Sprintf("**%s:** (ingen saker funnet)", src.Name))
		default:
			lines = append(lines, fmt.Sprintf("**%s:**", src.Name))
			items := fetched[i].Items
			for _, item := range items[:min(perFeed, len(items))] {
				lines = append(lines, "  - "+itemTitle(item, "Uten tittel"))
			}
			lines = append(lines, "")
		}
	}
	return strings.Join(lines, "\n"), nil
}

func itemTitle(item Item, fallback string) string {
	if item.Title == "" {
		return fallback
	}
	return item.Title
}

// Feeds is a Reader bound to the configured sources.
type Feeds struct {
	*Reader
	sources []Source
}

func NewFeeds(reader *Reader, sources []Source) *Feeds {
	return &Feeds{Reader: reader, sources: sources}
}

// Configured reports whether any source is set.
func (f *Feeds) Configured() bool {
	return len(f.sources) > 0
}

// Latest renders the headlines of every configured source.
func (f *Feeds) Latest(ctx context.Context) (string, error) {
	return f.FetchAll(ctx, f.sources, DefaultPerFeedLimit)
}
