package tool

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/habiliai/supportagent/tool/feed"
)

type AnnouncementsArgs struct {
	Limit int    `json:"limit,omitempty" jsonschema:"description=Maximum number of announcements to return,default=5"`
	Query string `json:"query,omitempty" jsonschema:"description=Only return announcements mentioning this text"`
}

const (
	AnnouncementsToolName = "get_store_announcements"

	defaultAnnouncementsLimit = 5
	announcementSummaryLength = 200
)

func NewAnnouncementsTool(reader *feed.Reader, feedURLs []string, logger *slog.Logger) Tool {
	return New(AnnouncementsToolName, `Get the latest store announcements and promotions, such as sales, new arrivals and holiday hours.

Input: {"limit": 5, "query": "optional filter text"} or leave empty.`, AnnouncementsArgs{}, func(ctx context.Context, input string) (string, error) {
		a := AnnouncementsArgs{Limit: defaultAnnouncementsLimit}
		if strings.TrimSpace(input) != "" {
			parsed, err := parseArgs(input)
			if err != nil {
				return "ERROR: Invalid JSON format. Please provide input as: {\"limit\": 5}", nil
			}
			if err := parsed.decode(&a); err != nil {
				return "ERROR: limit must be a valid integer", nil
			}
		}
		if a.Limit <= 0 {
			return "ERROR: limit must be a positive integer", nil
		}

		items, err := reader.ReadFeeds(ctx, feedURLs, func(feedURL string, err error) {
			logger.WarnContext(ctx, "failed to read announcement feed", "feed", feedURL, "error", err)
		})
		if err != nil {
			return "", err
		}
		items = feed.Filter(items, a.Query)
		if len(items) == 0 {
			return "No store announcements are available right now.", nil
		}
		if len(items) > a.Limit {
			items = items[:a.Limit]
		}

		var sb strings.Builder
		sb.WriteString("Store announcements:\n")
		for i, item := range items {
			fmt.Fprintf(&sb, "%d. %s", i+1, item.Title)
			if !item.Published.IsZero() {
				fmt.Fprintf(&sb, " (%s)", item.Published.Format("2006-01-02"))
			}
			sb.WriteString("\n")
			if item.Description != "" {
				fmt.Fprintf(&sb, "   %s\n", truncate(item.Description, announcementSummaryLength))
			}
			if item.Link != "" {
				fmt.Fprintf(&sb, "   %s\n", item.Link)
			}
		}
		return strings.TrimRight(sb.String(), "\n"), nil
	})
}
