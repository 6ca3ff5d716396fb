package domain

// SourceFormat identifies the wire format a source speaks
type SourceFormat string

// supported source formats
const (
	FormatRSS     SourceFormat = "rss"
	FormatAtom    SourceFormat = "atom"
	FormatJSONAPI SourceFormat = "json-api"
)

// Source is an immutable feed or API descriptor loaded from configuration.
// Lower Priority means a more authoritative outlet (1 is top tier).
type Source struct {
	Name     string       `json:"name"`
	URL      string       `json:"url"`
	Format   SourceFormat `json:"format"`
	Category string       `json:"category"`
	Priority int          `json:"priority"`
	Enabled  bool         `json:"enabled"`
}
