// Package enrich derives metadata from article text: entities, sentiment,
// categories, tags, quality and breaking-news markers. All enrichment is
// deterministic keyword and pattern matching, no external calls.
package enrich

import (
	"regexp"
	"strings"
	"time"

	"github.com/chainvibe/chainvibe/pkg/domain"
)

var (
	bullishKeywords = []string{"bullish", "surge", "rally", "gain", "rise", "up", "positive", "growth", "adoption", "breakthrough", "milestone", "success"}
	bearishKeywords = []string{"bearish", "drop", "fall", "decline", "crash", "down", "negative", "concern", "risk", "warning", "failure", "loss"}
	neutralKeywords = []string{"update", "announcement", "release", "partnership", "integration"}

	breakingKeywords = []string{"breaking", "urgent", "just in", "developing", "live", "alert", "exclusive", "first", "reports", "confirmed", "announced"}

	commonTags = []string{"bitcoin", "ethereum", "defi", "nft", "web3", "crypto", "blockchain", "trading", "regulation", "adoption", "partnership", "launch", "update"}

	tokenPattern    = regexp.MustCompile(`(?i)\b(BTC|ETH|SOL|ADA|DOT|AVAX|MATIC|LINK|UNI|AAVE|COMP|MKR|CRV|SNX|SUSHI|1INCH|YFI|BAL|LDO|RPL|FXS|CVX)\b`)
	projectPattern  = regexp.MustCompile(`(?i)\b(Uniswap|Aave|Compound|Maker|Curve|Chainlink|Polygon|Arbitrum|Optimism|Solana|Cardano|Polkadot|Avalanche|Cosmos|Terra|Fantom|Near|Algorand|Tezos|Filecoin)\b`)
	protocolPattern = regexp.MustCompile(`(?i)\b(DeFi|NFT|Web3|Layer 2|Rollup|ZK-Rollup|Optimistic Rollup|Sidechain|Bridge|DAO|Governance|Staking|Yield Farming|Liquidity Mining)\b`)
	peoplePattern   = regexp.MustCompile(`(?i)\b(Vitalik|Buterin|Satoshi|Nakamoto|Charles|Hoskinson|Gavin|Wood|Sergey|Nazarov|Hayden|Adams|Stani|Kulechov)\b`)
)

// categoryKeywords maps a category to the terms that place an article in it
var categoryKeywords = map[string][]string{
	"bitcoin":    {"bitcoin", "btc", "satoshi", "lightning network", "bitcoin etf", "halving"},
	"ethereum":   {"ethereum", "eth", "ethereum 2.0", "eth2", "beacon chain", "eth merge", "shanghai"},
	"defi":       {"defi", "decentralized finance", "yield farming", "liquidity", "uniswap", "compound", "aave", "maker", "curve"},
	"nft":        {"nft", "non-fungible token", "opensea", "art", "collectible", "nft marketplace"},
	"layer2":     {"layer 2", "polygon", "arbitrum", "optimism", "rollup", "l2", "zk-rollup", "sidechain"},
	"web3":       {"web3", "metaverse", "dapp", "dapps", "blockchain app"},
	"gaming":     {"gaming", "play-to-earn", "p2e", "axie", "sandbox", "web3 gaming", "gamefi"},
	"regulation": {"regulation", "sec", "cftc", "compliance", "legal", "regulatory", "sec approval"},
	"trading":    {"trading", "exchange", "binance", "coinbase", "price", "market", "crypto exchange"},
	"mining":     {"mining", "miner", "hashrate", "difficulty", "proof of work"},
	"solana":     {"solana", "sol", "phantom", "solana ecosystem"},
	"cardano":    {"cardano", "ada", "plutus", "alonzo"},
	"polkadot":   {"polkadot", "dot", "parachain", "kusama"},
}

// categoryOrder fixes the matching order so repeated enrichment of the same
// article yields identical category lists
var categoryOrder = []string{"bitcoin", "ethereum", "defi", "nft", "layer2", "web3", "gaming", "regulation", "trading", "mining", "solana", "cardano", "polkadot"}

const (
	breakingMaxAge    = 2 * time.Hour
	summaryMaxLength  = 200
	minSentenceLength = 20
	maxTags           = 10
)

// Enricher derives article metadata. Stateless and safe for concurrent use.
type Enricher struct{}

// NewEnricher creates an enricher
func NewEnricher() *Enricher {
	return &Enricher{}
}

// Enrich returns a copy of the article with derived fields populated. The
// input is never modified and enriching the same article twice gives the
// same result. The now argument anchors age-dependent checks.
func (e *Enricher) Enrich(article domain.Article, now time.Time) domain.Article {
	enriched := article

	enriched.Entities = e.ExtractEntities(article)
	enriched.Sentiment = e.AnalyzeSentiment(article)
	if enriched.Summary == "" && enriched.Content != "" {
		enriched.Summary = e.Summarize(enriched.Content)
	}
	enriched.Breaking = e.detectBreaking(article, now)
	enriched.Categories = e.extractCategories(article)
	enriched.QualityScore = e.QualityScore(article)
	enriched.Tags = e.extractTags(article, enriched.Entities)

	return enriched
}

// EnrichAll enriches a batch
func (e *Enricher) EnrichAll(articles []domain.Article, now time.Time) []domain.Article {
	result := make([]domain.Article, len(articles))
	for i, a := range articles {
		result[i] = e.Enrich(a, now)
	}
	return result
}

// ExtractEntities pulls known tokens, projects, protocols and people from
// the article text. Token symbols are uppercased, other entities keep the
// casing they matched with, all deduplicated in order of first appearance.
func (e *Enricher) ExtractEntities(article domain.Article) domain.Entities {
	text := article.Text()
	return domain.Entities{
		Tokens:    uniqueMatches(tokenPattern, text, strings.ToUpper),
		Projects:  uniqueMatches(projectPattern, text, nil),
		Protocols: uniqueMatches(protocolPattern, text, nil),
		People:    uniqueMatches(peoplePattern, text, nil),
	}
}

// AnalyzeSentiment counts keyword occurrences and classifies the article.
// A side needs a lead of more than two hits over the other to win, anything
// closer is neutral.
func (e *Enricher) AnalyzeSentiment(article domain.Article) domain.Sentiment {
	text := strings.ToLower(article.Text())

	bullish := countOccurrences(text, bullishKeywords)
	bearish := countOccurrences(text, bearishKeywords)
	neutral := countOccurrences(text, neutralKeywords)

	s := domain.Sentiment{Bullish: bullish, Bearish: bearish, Neutral: neutral}
	total := float64(bullish + bearish + neutral)

	switch {
	case bullish > bearish+2:
		s.Overall = domain.SentimentBullish
		s.Confidence = capConfidence(float64(bullish) / total * 100)
	case bearish > bullish+2:
		s.Overall = domain.SentimentBearish
		s.Confidence = capConfidence(float64(bearish) / total * 100)
	default:
		s.Overall = domain.SentimentNeutral
		s.Confidence = capConfidence(float64(neutral) / (total + 1) * 100)
	}
	return s
}

// Summarize builds an extractive summary from the leading sentences,
// skipping fragments and stopping before the length cap
func (e *Enricher) Summarize(content string) string {
	sentences := splitSentences(content)
	if len(sentences) == 0 {
		return truncate(content, summaryMaxLength)
	}

	var summary strings.Builder
	taken := 0
	for _, sentence := range sentences {
		if taken == 3 || summary.Len()+len(sentence) > summaryMaxLength {
			break
		}
		summary.WriteString(sentence)
		summary.WriteString(". ")
		taken++
	}

	if summary.Len() == 0 {
		return truncate(content, summaryMaxLength)
	}
	return strings.TrimSpace(summary.String())
}

// QualityScore rates an article in [0,1] from structural signals: title
// length, body length, image, source tier, author and URL
func (e *Enricher) QualityScore(article domain.Article) float64 {
	score := 0.5

	if n := len(article.Title); n >= 30 && n <= 100 {
		score += 0.1
	}

	body := article.Body()
	if len(body) >= 200 {
		score += 0.1
	}
	if len(body) >= 500 {
		score += 0.1
	}

	if article.ImageURL != "" {
		score += 0.1
	}

	switch priority := sourcePriority(article); {
	case priority <= 2:
		score += 0.2
	case priority == 3:
		score += 0.1
	}

	if article.Author != "" {
		score += 0.05
	}
	if strings.HasPrefix(article.URL, "http") {
		score += 0.05
	}

	if score > 1.0 {
		score = 1.0
	}
	return score
}

// detectBreaking marks an article as breaking when it carries an urgency
// keyword and is either fresh or from a top-tier source
func (e *Enricher) detectBreaking(article domain.Article, now time.Time) bool {
	text := strings.ToLower(article.Text())

	hasKeyword := false
	for _, kw := range breakingKeywords {
		if strings.Contains(text, kw) {
			hasKeyword = true
			break
		}
	}
	if !hasKeyword {
		return false
	}

	isRecent := !article.Published.IsZero() && article.Age(now) < breakingMaxAge
	isAuthoritative := sourcePriority(article) <= 2
	return isRecent || isAuthoritative
}

func (e *Enricher) extractCategories(article domain.Article) []string {
	text := strings.ToLower(article.Text())

	seen := map[string]bool{}
	var categories []string
	add := func(cat string) {
		cat = strings.ToLower(cat)
		if cat != "" && !seen[cat] {
			seen[cat] = true
			categories = append(categories, cat)
		}
	}

	for _, existing := range article.Categories {
		add(existing)
	}
	for _, category := range categoryOrder {
		for _, kw := range categoryKeywords[category] {
			if strings.Contains(text, kw) {
				add(category)
				break
			}
		}
	}
	return categories
}

func (e *Enricher) extractTags(article domain.Article, entities domain.Entities) []string {
	text := strings.ToLower(article.Text())

	seen := map[string]bool{}
	var tags []string
	add := func(tag string) {
		tag = strings.ToLower(tag)
		if tag != "" && !seen[tag] && len(tags) < maxTags {
			seen[tag] = true
			tags = append(tags, tag)
		}
	}

	for _, tag := range commonTags {
		if strings.Contains(text, tag) {
			add(tag)
		}
	}
	for _, token := range entities.Tokens {
		add(token)
	}
	for _, project := range entities.Projects {
		add(project)
	}
	return tags
}

func uniqueMatches(pattern *regexp.Regexp, text string, normalize func(string) string) []string {
	matches := pattern.FindAllString(text, -1)
	if len(matches) == 0 {
		return nil
	}
	seen := map[string]bool{}
	var result []string
	for _, m := range matches {
		if normalize != nil {
			m = normalize(m)
		}
		key := strings.ToLower(m)
		if !seen[key] {
			seen[key] = true
			result = append(result, m)
		}
	}
	return result
}

func countOccurrences(text string, keywords []string) int {
	count := 0
	for _, kw := range keywords {
		count += strings.Count(text, kw)
	}
	return count
}

func capConfidence(v float64) float64 {
	if v > 100 {
		return 100
	}
	return v
}

func splitSentences(content string) []string {
	raw := strings.FieldsFunc(content, func(r rune) bool {
		return r == '.' || r == '!' || r == '?'
	})
	var sentences []string
	for _, s := range raw {
		s = strings.TrimSpace(s)
		if len(s) > minSentenceLength {
			sentences = append(sentences, s)
		}
	}
	return sentences
}

func truncate(text string, maxLen int) string {
	if len(text) <= maxLen {
		return text
	}
	return text[:maxLen] + "..."
}

func sourcePriority(article domain.Article) int {
	if article.SourcePriority == 0 {
		return 4 // unknown sources rank with the lowest tier
	}
	return article.SourcePriority
}
