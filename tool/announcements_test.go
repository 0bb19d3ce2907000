package tool_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/habiliai/supportagent/internal/mylog"
	"github.com/habiliai/supportagent/tool"
	"github.com/habiliai/supportagent/tool/feed"
)

const announcementsFeed = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>Store Announcements</title>
    <link>https://shop.example</link>
    <description>News</description>
    <item>
      <title>Buy 2 get 1 on accessories</title>
      <link>https://shop.example/deals/accessories</link>
      <description>Cables, cases and chargers.</description>
      <pubDate>Tue, 02 Jan 2024 12:00:00 GMT</pubDate>
    </item>
    <item>
      <title>Holiday hours</title>
      <link>https://shop.example/news/hours</link>
      <description>Closed on January 1st.</description>
      <pubDate>Sun, 31 Dec 2023 12:00:00 GMT</pubDate>
    </item>
  </channel>
</rss>`

func TestAnnouncementsTool(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(announcementsFeed))
	}))
	defer server.Close()

	announcements := tool.NewAnnouncementsTool(feed.NewReader(5*time.Second), []string{server.URL}, mylog.Discard())

	out, err := announcements.Invoke(t.Context(), "")
	require.NoError(t, err)
	assert.Equal(t, strings.Join([]string{
		"Store announcements:",
		"1. Buy 2 get 1 on accessories (2024-01-02)",
		"   Cables, cases and chargers.",
		"   https://shop.example/deals/accessories",
		"2. Holiday hours (2023-12-31)",
		"   Closed on January 1st.",
		"   https://shop.example/news/hours",
	}, "\n"), out)

	out, err = announcements.Invoke(t.Context(), `{"limit": "1"}`)
	require.NoError(t, err)
	assert.Contains(t, out, "1. Buy 2 get 1 on accessories")
	assert.NotContains(t, out, "Holiday hours")

	out, err = announcements.Invoke(t.Context(), `{"query": "closed"}`)
	require.NoError(t, err)
	assert.Contains(t, out, "1. Holiday hours")

	out, err = announcements.Invoke(t.Context(), `{"query": "returns"}`)
	require.NoError(t, err)
	assert.Equal(t, "No store announcements are available right now.", out)

	out, err = announcements.Invoke(t.Context(), `{"limit": 0}`)
	require.NoError(t, err)
	assert.Equal(t, "ERROR: limit must be a positive integer", out)
}
