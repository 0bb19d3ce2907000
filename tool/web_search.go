package tool

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	firecrawl "github.com/mendableai/firecrawl-go"
	"github.com/samber/lo"

	"github.com/habiliai/supportagent/config"
	"github.com/habiliai/supportagent/errors"
)

type (
	// Searcher answers a free-text query with reference text.
	Searcher interface {
		Search(ctx context.Context, query string) (string, error)
	}

	// FireCrawlClient is the part of *firecrawl.FirecrawlApp the searcher uses.
	FireCrawlClient interface {
		MapURL(url string, params *firecrawl.MapParams) (*firecrawl.MapResponse, error)
		ScrapeURL(url string, params *firecrawl.ScrapeParams) (*firecrawl.FirecrawlDocument, error)
	}

	// FireCrawlSearcher maps the support site for pages matching the query
	// and scrapes the best few into markdown.
	FireCrawlSearcher struct {
		client   FireCrawlClient
		siteURL  string
		maxPages int
		logger   *slog.Logger
	}

	WebSearchArgs struct {
		Query string `json:"query" jsonschema:"required,description=What to look up, e.g. 'return policy' or 'store hours'"`
	}
)

const (
	WebSearchToolName = "web_search"

	webSearchBudget = 4000
)

var (
	_ Searcher        = (*FireCrawlSearcher)(nil)
	_ FireCrawlClient = (*firecrawl.FirecrawlApp)(nil)
)

func NewFireCrawlSearcher(client FireCrawlClient, siteURL string, maxPages int, logger *slog.Logger) *FireCrawlSearcher {
	if maxPages <= 0 {
		maxPages = 1
	}
	return &FireCrawlSearcher{
		client:   client,
		siteURL:  siteURL,
		maxPages: maxPages,
		logger:   logger,
	}
}

// NewFireCrawlSearcherFromConfig returns nil when firecrawl is not configured.
func NewFireCrawlSearcherFromConfig(conf *config.FireCrawlConfig, logger *slog.Logger) (*FireCrawlSearcher, error) {
	if err := conf.Validate(); err != nil {
		logger.Info("firecrawl is not configured, web_search will answer with its fallback", "reason", err.Error())
		return nil, nil
	}

	app, err := firecrawl.NewFirecrawlApp(conf.APIKey, conf.APIUrl)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to create FireCrawl client")
	}

	return NewFireCrawlSearcher(app, conf.SiteURL, conf.MaxPages, logger), nil
}

func (s *FireCrawlSearcher) Search(ctx context.Context, query string) (string, error) {
	mapped, err := s.client.MapURL(s.siteURL, &firecrawl.MapParams{
		Search: lo.ToPtr(query),
		Limit:  lo.ToPtr(s.maxPages),
	})
	if err != nil {
		return "", errors.Wrapf(err, "failed to map %s", s.siteURL)
	}

	var sb strings.Builder
	for _, link := range lo.Slice(mapped.Links, 0, s.maxPages) {
		if err := ctx.Err(); err != nil {
			return "", errors.WithStack(err)
		}

		doc, err := s.client.ScrapeURL(link, &firecrawl.ScrapeParams{
			Formats:         []string{"markdown"},
			OnlyMainContent: lo.ToPtr(true),
		})
		if err != nil {
			s.logger.WarnContext(ctx, "failed to scrape page", "url", link, "error", err)
			continue
		}
		if doc == nil || strings.TrimSpace(doc.Markdown) == "" {
			continue
		}

		fmt.Fprintf(&sb, "Source: %s\n%s\n\n", link, strings.TrimSpace(doc.Markdown))
		if sb.Len() >= webSearchBudget {
			break
		}
	}

	return truncate(strings.TrimSpace(sb.String()), webSearchBudget), nil
}

// NewWebSearchTool wraps searcher, which may be nil, as the web_search tool.
func NewWebSearchTool(searcher Searcher) Tool {
	return New(WebSearchToolName, `Searches the web for the given query and returns relevant information.
Use for product information, store hours and locations, warranty, return policy, shipping and promotions.

Input: {"query": "search text"} or the plain query text.`, WebSearchArgs{}, func(ctx context.Context, input string) (string, error) {
		var a WebSearchArgs
		if err := parseArgsOrText(input, "query").decode(&a); err != nil {
			return "", err
		}
		query := strings.TrimSpace(a.Query)
		fallback := fmt.Sprintf("I searched for '%s' but couldn't find specific information. Please try rephrasing your query or contact customer support for detailed assistance.", query)
		if query == "" || searcher == nil {
			return fallback, nil
		}

		result, err := searcher.Search(ctx, query)
		if err != nil {
			return "", err
		}
		if strings.TrimSpace(result) == "" {
			return fallback, nil
		}
		return result, nil
	})
}
