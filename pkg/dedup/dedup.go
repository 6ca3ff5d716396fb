// Package dedup collapses near-duplicate articles collected from multiple
// sources into a single representative per story.
package dedup

import (
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/go-pkgz/lgr"

	"github.com/chainvibe/chainvibe/pkg/domain"
)

// similarity factor weights, renormalized over the factors a pair actually has
const (
	titleWeight   = 0.4
	urlWeight     = 0.3
	contentWeight = 0.2
	timeWeight    = 0.1
)

// timeProximityWindow is the publication gap beyond which two articles are
// considered unrelated in time
const timeProximityWindow = 24 * time.Hour

// Deduplicator clusters articles by pairwise similarity
type Deduplicator struct {
	threshold float64
}

// NewDeduplicator creates a deduplicator with the given similarity threshold,
// pairs scoring at or above it are treated as the same story
func NewDeduplicator(threshold float64) *Deduplicator {
	return &Deduplicator{threshold: threshold}
}

// Deduplicate collapses duplicates into one representative per cluster,
// annotated with the contributing sources and cluster size. The input slice
// is not modified. Articles are scanned most-authoritative-first so cluster
// anchors follow source priority regardless of fetch order.
func (d *Deduplicator) Deduplicate(articles []domain.Article) []domain.Article {
	if len(articles) <= 1 {
		return append([]domain.Article{}, articles...)
	}

	sorted := append([]domain.Article{}, articles...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return effectivePriority(sorted[i]) < effectivePriority(sorted[j])
	})

	clustered := make([]bool, len(sorted))
	result := make([]domain.Article, 0, len(sorted))

	for i := range sorted {
		if clustered[i] {
			continue
		}
		cluster := []domain.Article{sorted[i]}
		clustered[i] = true

		for j := i + 1; j < len(sorted); j++ {
			if clustered[j] {
				continue
			}
			if d.Similarity(sorted[i], sorted[j]) >= d.threshold {
				cluster = append(cluster, sorted[j])
				clustered[j] = true
			}
		}

		result = append(result, mergeCluster(cluster))
	}

	if dropped := len(sorted) - len(result); dropped > 0 {
		lgr.Printf("[DEBUG] deduplicated %d articles into %d stories", len(sorted), len(result))
	}
	return result
}

// effectivePriority treats an unset source priority as the lowest tier
func effectivePriority(a domain.Article) int {
	if a.SourcePriority == 0 {
		return 4
	}
	return a.SourcePriority
}

// QuickDeduplicate removes exact repeats by URL path and title prefix,
// keeping the first occurrence. A cheaper alternative to the pairwise pass
// for oversized batches, at the cost of duplicate metadata.
func (d *Deduplicator) QuickDeduplicate(articles []domain.Article) []domain.Article {
	seen := make(map[string]bool, len(articles))
	result := make([]domain.Article, 0, len(articles))
	for _, a := range articles {
		key := quickKey(a)
		if seen[key] {
			continue
		}
		seen[key] = true
		result = append(result, a)
	}
	return result
}

func quickKey(a domain.Article) string {
	title := strings.ToLower(strings.TrimSpace(a.Title))
	if len(title) > 50 {
		title = title[:50]
	}
	path := ""
	if u, err := url.Parse(a.URL); err == nil {
		path = u.Path
	}
	return path + "|" + title
}

// Similarity scores two articles in [0,1]. Each factor contributes only when
// both sides carry the data for it, and the total is normalized by the sum
// of applicable factor weights so sparse articles are not penalized.
func (d *Deduplicator) Similarity(a, b domain.Article) float64 {
	var score, total float64

	if a.Title != "" && b.Title != "" {
		score += titleWeight * lexicalSimilarity(a.Title, b.Title)
		total += titleWeight
	}
	if a.URL != "" && b.URL != "" {
		score += urlWeight * urlSimilarity(a.URL, b.URL)
		total += urlWeight
	}
	bodyA, bodyB := contentPrefix(&a), contentPrefix(&b)
	if bodyA != "" && bodyB != "" {
		score += contentWeight * lexicalSimilarity(bodyA, bodyB)
		total += contentWeight
	}
	if !a.Published.IsZero() && !b.Published.IsZero() {
		score += timeWeight * timeProximity(a.Published, b.Published)
		total += timeWeight
	}

	if total == 0 {
		return 0
	}
	return score / total
}

// contentPrefixLen bounds how much body text enters the similarity pass,
// duplicate stories share their opening even when trailing boilerplate differs
const contentPrefixLen = 500

func contentPrefix(a *domain.Article) string {
	body := a.Body()
	runes := []rune(body)
	if len(runes) > contentPrefixLen {
		return string(runes[:contentPrefixLen])
	}
	return body
}

// lexicalSimilarity blends Jaccard overlap with containment so a short title
// fully contained in a longer one still scores high
func lexicalSimilarity(a, b string) float64 {
	wordsA := significantWords(a)
	wordsB := significantWords(b)
	if len(wordsA) == 0 || len(wordsB) == 0 {
		return 0
	}

	intersection := 0
	for w := range wordsA {
		if wordsB[w] {
			intersection++
		}
	}
	union := len(wordsA) + len(wordsB) - intersection
	jaccard := float64(intersection) / float64(union)

	minSize := len(wordsA)
	if len(wordsB) < minSize {
		minSize = len(wordsB)
	}
	containment := float64(intersection) / float64(minSize)

	return 0.6*jaccard + 0.4*containment
}

func significantWords(text string) map[string]bool {
	words := map[string]bool{}
	for _, w := range strings.Fields(strings.ToLower(text)) {
		w = strings.Trim(w, ".,:;!?\"'()[]")
		if len(w) > 2 {
			words[w] = true
		}
	}
	return words
}

// urlSimilarity compares two URLs after normalizing away query strings,
// fragments and case: identical normalized URLs are a certain match, one
// containing the other is almost certain, an identical path on different
// hosts nearly so, otherwise the shared fraction of path segments
func urlSimilarity(a, b string) float64 {
	normA, normB := normalizeURL(a), normalizeURL(b)
	if normA == normB {
		return 1.0
	}
	if strings.Contains(normA, normB) || strings.Contains(normB, normA) {
		return 0.8
	}

	pathA, pathB := urlPath(a), urlPath(b)
	if pathA != "" && pathA == pathB {
		return 0.9
	}

	segsA := splitSegments(pathA)
	segsB := splitSegments(pathB)
	if len(segsA) == 0 || len(segsB) == 0 {
		return 0
	}

	setA := map[string]bool{}
	for _, s := range segsA {
		setA[s] = true
	}
	shared := 0
	for _, s := range segsB {
		if setA[s] {
			shared++
		}
	}

	longer := len(segsA)
	if len(segsB) > longer {
		longer = len(segsB)
	}
	return float64(shared) / float64(longer)
}

func normalizeURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return strings.ToLower(raw)
	}
	return strings.ToLower(u.Scheme + "://" + u.Host + u.Path)
}

func urlPath(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Path)
}

func splitSegments(path string) []string {
	var segs []string
	for _, s := range strings.Split(path, "/") {
		if s != "" {
			segs = append(segs, s)
		}
	}
	return segs
}

// timeProximity decays linearly from 1 at the same instant to 0 at the
// window boundary
func timeProximity(a, b time.Time) float64 {
	gap := a.Sub(b)
	if gap < 0 {
		gap = -gap
	}
	if gap >= timeProximityWindow {
		return 0
	}
	return 1 - float64(gap)/float64(timeProximityWindow)
}

// mergeCluster picks the representative and annotates it with the cluster
// size and the unique contributing sources, its own included. Singleton
// clusters pass through untouched.
func mergeCluster(cluster []domain.Article) domain.Article {
	if len(cluster) == 1 {
		return cluster[0]
	}

	rep := cluster[0]
	for _, candidate := range cluster[1:] {
		if betterRepresentative(candidate, rep) {
			rep = candidate
		}
	}

	seen := map[string]bool{}
	for _, a := range cluster {
		if !seen[a.Source] {
			seen[a.Source] = true
			rep.DuplicateSources = append(rep.DuplicateSources, a.Source)
		}
	}
	rep.DuplicateCount = len(cluster)
	return rep
}

// betterRepresentative prefers articles with an image, then longer content,
// then higher-priority sources
func betterRepresentative(candidate, current domain.Article) bool {
	if (candidate.ImageURL != "") != (current.ImageURL != "") {
		return candidate.ImageURL != ""
	}
	if len(candidate.Content) != len(current.Content) {
		return len(candidate.Content) > len(current.Content)
	}
	return candidate.SourcePriority < current.SourcePriority
}
