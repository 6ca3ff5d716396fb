package feed

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chainvibe/chainvibe/pkg/domain"
)

func TestCanonicalParser_ParseRSS(t *testing.T) {
	parser := NewParser()
	src := domain.Source{Name: "CoinDesk", Format: domain.FormatRSS, Category: "bitcoin", Priority: 1}

	t.Run("full item", func(t *testing.T) {
		payload := `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0" xmlns:content="http://purl.org/rss/1.0/modules/content/">
  <channel>
    <title>CoinDesk</title>
    <item>
      <title><![CDATA[Bitcoin Breaks &amp; Holds $100K]]></title>
      <link>https://example.com/btc-100k</link>
      <guid>btc-100k-guid</guid>
      <description><![CDATA[<p>Bitcoin surged past <b>$100,000</b> today.</p><img src="https://example.com/btc.jpg"/>]]></description>
      <content:encoded><![CDATA[<p>Bitcoin surged past $100,000 today, a historic milestone for the market.</p>]]></content:encoded>
      <pubDate>Mon, 31 Aug 2026 10:00:00 +0000</pubDate>
      <category>Markets, Bitcoin</category>
      <author>jane@example.com</author>
    </item>
  </channel>
</rss>`
		articles, err := parser.Parse([]byte(payload), src)
		require.NoError(t, err)
		require.Len(t, articles, 1)

		a := articles[0]
		assert.Equal(t, "Bitcoin Breaks & Holds $100K", a.Title)
		assert.Equal(t, "https://example.com/btc-100k", a.URL)
		assert.Equal(t, "CoinDesk", a.Source)
		assert.Equal(t, 1, a.SourcePriority)
		assert.Equal(t, "Bitcoin surged past $100,000 today, a historic milestone for the market.", a.Content)
		assert.Equal(t, "https://example.com/btc.jpg", a.ImageURL)
		assert.Equal(t, []string{"markets", "bitcoin"}, a.Categories)
		assert.Equal(t, time.Date(2026, 8, 31, 10, 0, 0, 0, time.UTC), a.Published.UTC())
		assert.NotEmpty(t, a.ID)
	})

	t.Run("minimal item survives", func(t *testing.T) {
		payload := `<rss version="2.0"><channel><title>Feed</title>
<item><title>Only a title</title></item>
</channel></rss>`
		before := time.Now()
		articles, err := parser.Parse([]byte(payload), src)
		require.NoError(t, err)
		require.Len(t, articles, 1)
		assert.Equal(t, "Only a title", articles[0].Title)
		assert.Empty(t, articles[0].URL)
		assert.Equal(t, []string{"bitcoin"}, articles[0].Categories, "source category fallback")
		assert.False(t, articles[0].Published.Before(before), "missing date defaults to now")
	})

	t.Run("item without title and link dropped", func(t *testing.T) {
		payload := `<rss version="2.0"><channel><title>Feed</title>
<item><description>orphan description</description></item>
<item><title>Kept</title><link>https://example.com/kept</link></item>
</channel></rss>`
		articles, err := parser.Parse([]byte(payload), src)
		require.NoError(t, err)
		require.Len(t, articles, 1)
		assert.Equal(t, "Kept", articles[0].Title)
	})

	t.Run("stable ids per source and guid", func(t *testing.T) {
		payload := `<rss version="2.0"><channel><title>Feed</title>
<item><title>Same</title><link>https://example.com/a</link><guid>g1</guid></item>
</channel></rss>`
		first, err := parser.Parse([]byte(payload), src)
		require.NoError(t, err)
		second, err := parser.Parse([]byte(payload), src)
		require.NoError(t, err)
		assert.Equal(t, first[0].ID, second[0].ID)

		other, err := parser.Parse([]byte(payload), domain.Source{Name: "Other", Format: domain.FormatRSS})
		require.NoError(t, err)
		assert.NotEqual(t, first[0].ID, other[0].ID, "same guid from another source gets its own id")
	})

	t.Run("malformed payload", func(t *testing.T) {
		_, err := parser.Parse([]byte("this is not xml at all"), src)
		assert.Error(t, err)
	})
}

func TestCanonicalParser_ParseAtom(t *testing.T) {
	parser := NewParser()
	src := domain.Source{Name: "EthBlog", Format: domain.FormatAtom, Category: "ethereum", Priority: 2}

	payload := `<?xml version="1.0" encoding="utf-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <title>Ethereum Blog</title>
  <entry>
    <title>Pectra Upgrade Scheduled</title>
    <link href="https://blog.example.com/pectra"/>
    <id>urn:uuid:pectra-1</id>
    <updated>2026-08-30T12:00:00Z</updated>
    <summary>The next network upgrade has a date.</summary>
    <author><name>EF Team</name></author>
  </entry>
</feed>`
	articles, err := parser.Parse([]byte(payload), src)
	require.NoError(t, err)
	require.Len(t, articles, 1)

	a := articles[0]
	assert.Equal(t, "Pectra Upgrade Scheduled", a.Title)
	assert.Equal(t, "https://blog.example.com/pectra", a.URL)
	assert.Equal(t, "EF Team", a.Author)
	assert.Equal(t, "The next network upgrade has a date.", a.Summary)
	assert.Equal(t, time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC), a.Published.UTC())
}

func TestCanonicalParser_ParseJSONAPI(t *testing.T) {
	parser := NewParser()
	src := domain.Source{Name: "NewsAPI Crypto", Format: domain.FormatJSONAPI, Category: "general", Priority: 3}

	t.Run("newsapi shape", func(t *testing.T) {
		payload := `{"status":"ok","articles":[
			{"title":"Solana TVL Hits Record","url":"https://example.com/sol",
			 "description":"DeFi on Solana keeps growing.","urlToImage":"https://example.com/sol.png",
			 "publishedAt":"2026-08-31T08:30:00Z","author":"Sam","source":{"name":"The Block"}}
		]}`
		articles, err := parser.Parse([]byte(payload), src)
		require.NoError(t, err)
		require.Len(t, articles, 1)

		a := articles[0]
		assert.Equal(t, "Solana TVL Hits Record", a.Title)
		assert.Equal(t, "The Block", a.Source, "embedded source name wins over registry name")
		assert.Equal(t, "https://example.com/sol.png", a.ImageURL)
		assert.Equal(t, "Sam", a.Author)
		assert.Equal(t, []string{"general"}, a.Categories)
		assert.Equal(t, time.Date(2026, 8, 31, 8, 30, 0, 0, time.UTC), a.Published.UTC())
	})

	t.Run("cryptopanic results shape", func(t *testing.T) {
		payload := `{"count":1,"results":[
			{"title":"Whale Moves 10K BTC","url":"https://example.com/whale",
			 "created_at":"2026-08-31T09:00:00Z","source":"CryptoPanic"}
		]}`
		articles, err := parser.Parse([]byte(payload), src)
		require.NoError(t, err)
		require.Len(t, articles, 1)
		assert.Equal(t, "Whale Moves 10K BTC", articles[0].Title)
		assert.Equal(t, "CryptoPanic", articles[0].Source)
	})

	t.Run("field variants", func(t *testing.T) {
		payload := `{"articles":[
			{"headline":"Variant Headline","link":"https://example.com/v",
			 "summary":"short summary","image":"https://example.com/v.png","published_at":"2026-08-31 07:00:00"}
		]}`
		articles, err := parser.Parse([]byte(payload), src)
		require.NoError(t, err)
		require.Len(t, articles, 1)
		assert.Equal(t, "Variant Headline", articles[0].Title)
		assert.Equal(t, "https://example.com/v", articles[0].URL)
		assert.Equal(t, "short summary", articles[0].Summary)
		assert.Equal(t, "https://example.com/v.png", articles[0].ImageURL)
		assert.Equal(t, time.Date(2026, 8, 31, 7, 0, 0, 0, time.UTC), articles[0].Published.UTC())
	})

	t.Run("empty and malformed", func(t *testing.T) {
		articles, err := parser.Parse([]byte(`{"articles":[]}`), src)
		require.NoError(t, err)
		assert.Empty(t, articles)

		_, err = parser.Parse([]byte(`{not json`), src)
		assert.Error(t, err)
	})
}
