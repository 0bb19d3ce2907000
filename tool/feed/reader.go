package feed

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/mmcdole/gofeed"
	"golang.org/x/sync/errgroup"

	"github.com/habiliai/supportagent/errors"
)

type (
	// Reader fetches RSS and Atom feeds.
	Reader struct {
		parser  *gofeed.Parser
		timeout time.Duration
	}

	// Item is one announcement in a form the agent can quote.
	Item struct {
		Title       string    `json:"title"`
		Description string    `json:"description"`
		Link        string    `json:"link"`
		Published   time.Time `json:"published"`
		Author      string    `json:"author,omitempty"`
		Categories  []string  `json:"categories,omitempty"`
		Source      string    `json:"source"`
	}
)

const (
	defaultTimeout = 30 * time.Second
	maxConcurrency = 4
)

func NewReader(timeout time.Duration) *Reader {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Reader{
		parser:  gofeed.NewParser(),
		timeout: timeout,
	}
}

func (r *Reader) ReadFeed(ctx context.Context, feedURL string) ([]Item, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	feed, err := r.parser.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to parse feed %s", feedURL)
	}

	items := make([]Item, 0, len(feed.Items))
	for _, it := range feed.Items {
		item := Item{
			Title:       strings.TrimSpace(it.Title),
			Description: strings.TrimSpace(it.Description),
			Link:        it.Link,
			Categories:  it.Categories,
			Source:      feed.Title,
		}
		if it.PublishedParsed != nil {
			item.Published = *it.PublishedParsed
		} else if it.UpdatedParsed != nil {
			item.Published = *it.UpdatedParsed
		}
		if it.Author != nil {
			item.Author = it.Author.Name
		}
		items = append(items, item)
	}

	return items, nil
}

// ReadFeeds reads every feed concurrently and merges the items newest
// first. Feeds that fail are reported through onError and skipped; an error
// is returned only when every feed failed.
func (r *Reader) ReadFeeds(ctx context.Context, feedURLs []string, onError func(feedURL string, err error)) ([]Item, error) {
	var (
		mu       sync.Mutex
		merged   []Item
		failures int
	)

	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(maxConcurrency)
	for _, feedURL := range feedURLs {
		eg.Go(func() error {
			items, err := r.ReadFeed(ctx, feedURL)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failures++
				if onError != nil {
					onError(feedURL, err)
				}
				return nil
			}
			merged = append(merged, items...)
			return nil
		})
	}
	_ = eg.Wait()

	if len(feedURLs) > 0 && failures == len(feedURLs) {
		return nil, errors.Errorf("all %d feeds failed", failures)
	}

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Published.After(merged[j].Published)
	})
	return merged, nil
}

// Filter keeps the items whose title, description or categories contain
// query, case-insensitively. An empty query keeps everything.
func Filter(items []Item, query string) []Item {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return items
	}

	var out []Item
	for _, item := range items {
		haystack := strings.ToLower(item.Title + " " + item.Description + " " + strings.Join(item.Categories, " "))
		if strings.Contains(haystack, query) {
			out = append(out, item)
		}
	}
	return out
}
