package feed

import (
	"bytes"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"html"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/microcosm-cc/bluemonday"
	"github.com/mmcdole/gofeed"

	"github.com/chainvibe/chainvibe/pkg/domain"
)

// CanonicalParser converts raw feed payloads into canonical articles. It is
// tolerant of missing optional fields; only items lacking both title and
// link are dropped.
type CanonicalParser struct {
	feedParser *gofeed.Parser
	sanitizer  *bluemonday.Policy
	now        func() time.Time
}

// NewParser creates a parser for all supported source formats
func NewParser() *CanonicalParser {
	return &CanonicalParser{
		feedParser: gofeed.NewParser(),
		sanitizer:  bluemonday.StrictPolicy(),
		now:        time.Now,
	}
}

// Parse converts a payload into articles according to the source format.
// RSS and Atom share one path: gofeed tries RSS item extraction and falls
// back to Atom entries on its own.
func (p *CanonicalParser) Parse(payload []byte, src domain.Source) ([]domain.Article, error) {
	if src.Format == domain.FormatJSONAPI {
		return p.parseJSONAPI(payload, src)
	}
	return p.parseFeed(payload, src)
}

// parseFeed handles rss and atom payloads via gofeed
func (p *CanonicalParser) parseFeed(payload []byte, src domain.Source) ([]domain.Article, error) {
	parsed, err := p.feedParser.Parse(bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}

	articles := make([]domain.Article, 0, len(parsed.Items))
	for _, item := range parsed.Items {
		title := p.cleanText(item.Title)
		link := strings.TrimSpace(item.Link)
		if title == "" && link == "" {
			continue // nothing to identify the item by
		}

		guid := item.GUID
		if guid == "" {
			guid = link
		}
		if guid == "" {
			guid = parsed.Title + "-" + title
		}

		// content precedence: content:encoded/content first, description last
		content := item.Content
		if content == "" {
			content = item.Description
		}

		article := domain.Article{
			ID:             articleID(src.Name, guid),
			Title:          title,
			URL:            link,
			Source:         src.Name,
			SourcePriority: src.Priority,
			Summary:        p.cleanText(item.Description),
			Content:        p.cleanText(content),
			ImageURL:       p.extractImage(item),
			Categories:     p.itemCategories(item, src.Category),
		}

		if item.Author != nil {
			article.Author = item.Author.Name
		}

		if item.PublishedParsed != nil {
			article.Published = *item.PublishedParsed
		} else if item.UpdatedParsed != nil {
			article.Published = *item.UpdatedParsed
		} else {
			article.Published = p.now()
		}

		articles = append(articles, article)
	}

	return articles, nil
}

// apiEnvelope covers the response shapes of the supported JSON providers:
// NewsAPI and GNews use "articles", CryptoPanic uses "results"
type apiEnvelope struct {
	Articles []apiItem `json:"articles"`
	Results  []apiItem `json:"results"`
	Data     []apiItem `json:"data"`
}

// apiItem lists the field-name variants providers use for the same thing;
// mapping onto the canonical shape picks the first non-empty in priority order
type apiItem struct {
	Title        string          `json:"title"`
	Headline     string          `json:"headline"`
	URL          string          `json:"url"`
	Link         string          `json:"link"`
	Description  string          `json:"description"`
	Summary      string          `json:"summary"`
	Content      string          `json:"content"`
	PublishedAt  string          `json:"publishedAt"`
	PublishedAt2 string          `json:"published_at"`
	CreatedAt    string          `json:"created_at"`
	URLToImage   string          `json:"urlToImage"`
	Image        string          `json:"image"`
	ImageURL     string          `json:"image_url"`
	Author       string          `json:"author"`
	Source       json.RawMessage `json:"source"`
}

// parseJSONAPI maps provider-specific JSON fields onto the canonical shape
func (p *CanonicalParser) parseJSONAPI(payload []byte, src domain.Source) ([]domain.Article, error) {
	var envelope apiEnvelope
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return nil, fmt.Errorf("parse json payload: %w", err)
	}

	items := envelope.Articles
	if len(items) == 0 {
		items = envelope.Results
	}
	if len(items) == 0 {
		items = envelope.Data
	}

	articles := make([]domain.Article, 0, len(items))
	for _, item := range items {
		title := p.cleanText(firstNonEmpty(item.Title, item.Headline))
		link := strings.TrimSpace(firstNonEmpty(item.URL, item.Link))
		if title == "" && link == "" {
			continue
		}

		summary := p.cleanText(firstNonEmpty(item.Description, item.Summary))
		content := p.cleanText(firstNonEmpty(item.Content, item.Description, item.Summary))

		article := domain.Article{
			ID:             articleID(src.Name, firstNonEmpty(link, title)),
			Title:          title,
			URL:            link,
			Source:         firstNonEmpty(apiSourceName(item.Source), src.Name),
			SourcePriority: src.Priority,
			Summary:        summary,
			Content:        content,
			ImageURL:       firstNonEmpty(item.URLToImage, item.Image, item.ImageURL),
			Author:         item.Author,
			Categories:     []string{src.Category},
			Published:      p.parseTime(firstNonEmpty(item.PublishedAt, item.PublishedAt2, item.CreatedAt)),
		}

		articles = append(articles, article)
	}

	return articles, nil
}

// apiSourceName extracts the outlet name from the provider-specific source
// field, which may be a string, {"name": ...} or {"title": ...}
func apiSourceName(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var asString string
	if err := json.Unmarshal(raw, &asString); err == nil {
		return asString
	}
	var asObject struct {
		Name  string `json:"name"`
		Title string `json:"title"`
	}
	if err := json.Unmarshal(raw, &asObject); err == nil {
		return firstNonEmpty(asObject.Name, asObject.Title)
	}
	return ""
}

// parseTime tries the timestamp layouts seen across providers, falling back
// to the current time rather than dropping the item
func (p *CanonicalParser) parseTime(value string) time.Time {
	if value == "" {
		return p.now()
	}
	layouts := []string{time.RFC3339, time.RFC3339Nano, time.RFC1123Z, time.RFC1123, "2006-01-02T15:04:05", "2006-01-02 15:04:05"}
	for _, layout := range layouts {
		if ts, err := time.Parse(layout, value); err == nil {
			return ts
		}
	}
	return p.now()
}

// itemCategories collects categories from the item, splitting on common
// separators, deduplicating, and falling back to the source default
func (p *CanonicalParser) itemCategories(item *gofeed.Item, fallback string) []string {
	seen := map[string]bool{}
	categories := []string{}
	for _, raw := range item.Categories {
		for _, part := range strings.FieldsFunc(raw, func(r rune) bool { return r == ',' || r == ';' || r == '|' }) {
			cat := strings.ToLower(strings.TrimSpace(part))
			if cat == "" || seen[cat] {
				continue
			}
			seen[cat] = true
			categories = append(categories, cat)
		}
	}
	if len(categories) == 0 && fallback != "" {
		categories = append(categories, strings.ToLower(fallback))
	}
	return categories
}

// extractImage finds an image URL for the item: explicit feed image first,
// then enclosures, media extensions, and finally an <img> inside the
// description markup
func (p *CanonicalParser) extractImage(item *gofeed.Item) string {
	if item.Image != nil && item.Image.URL != "" {
		return item.Image.URL
	}

	for _, enc := range item.Enclosures {
		if strings.HasPrefix(enc.Type, "image/") && enc.URL != "" {
			return enc.URL
		}
	}

	if media, ok := item.Extensions["media"]; ok {
		for _, key := range []string{"thumbnail", "content"} {
			for _, ext := range media[key] {
				if url := ext.Attrs["url"]; url != "" {
					return url
				}
			}
		}
	}

	return imageFromHTML(item.Description + item.Content)
}

// imageFromHTML pulls the first img src out of an HTML fragment
func imageFromHTML(fragment string) string {
	if !strings.Contains(fragment, "<img") {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return ""
	}
	src, _ := doc.Find("img").First().Attr("src")
	return src
}

// cleanText strips HTML tags, CDATA wrappers and entities from a free-text
// field and normalizes whitespace
func (p *CanonicalParser) cleanText(text string) string {
	if text == "" {
		return ""
	}
	text = strings.ReplaceAll(text, "<![CDATA[", "")
	text = strings.ReplaceAll(text, "]]>", "")
	text = p.sanitizer.Sanitize(text)
	text = html.UnescapeString(text)
	return strings.Join(strings.Fields(text), " ")
}

// articleID derives a stable dedupe key from source and guid
func articleID(sourceName, guid string) string {
	h := fnv.New64a()
	_, _ = h.Write([]byte(sourceName))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte(guid))
	return fmt.Sprintf("%s-%016x", slugify(sourceName), h.Sum64())
}

// slugify lowercases a name and replaces runs of non-alphanumerics with dashes
func slugify(name string) string {
	var b strings.Builder
	lastDash := true
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z' || r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDash = false
		case !lastDash:
			b.WriteByte('-')
			lastDash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}

// firstNonEmpty returns the first non-blank value
func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
