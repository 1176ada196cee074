package agent

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"
)

// Metadata length targets from common search-snippet guidance.
const (
	metaTitleMin = 50
	metaTitleMax = 60
	metaDescMin  = 150
	metaDescMax  = 160
)

// SEO analyzes and optimizes a written article for search.
type SEO struct {
	recorder
}

// NewSEO creates an SEO executor.
func NewSEO(cfg Config) *SEO {
	return &SEO{recorder: newRecorder(cfg)}
}

// Execute derives keywords and metadata for the article, lightly optimizes
// the content, and scores the result on a 100-point scale.
func (a *SEO) Execute(ctx context.Context, input map[string]any) (map[string]any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	content := stringValue(input, "content")
	topic := stringValue(input, "topic")
	if content == "" {
		return nil, fmt.Errorf("seo input has no content")
	}
	if topic == "" {
		return nil, fmt.Errorf("seo input has no topic")
	}
	taskID := stringValue(input, "task_id")

	a.log.Info("starting seo optimization", "topic", topic, "word_count", wordCount(content))

	keywords := analyzeKeywords(content, topic)
	metadata := buildMetadata(topic)
	optimized := ensureLeadKeyword(content, stringValue(keywords, "primary"))
	score := seoScore(optimized, keywords, metadata)

	result := map[string]any{
		"agent":             a.agentID,
		"topic":             topic,
		"keywords":          keywords,
		"metadata":          metadata,
		"optimized_content": optimized,
		"schema_markup":     buildSchemaMarkup(optimized, topic, metadata),
		"seo_score":         score,
		"recommendations":   seoRecommendations(optimized, keywords),
		"timestamp":         time.Now().UTC().Format(time.RFC3339),
	}

	a.record(taskID, fmt.Sprintf("Optimized %q for search: score %d/100", topic, score), result)
	a.log.Info("seo optimization completed", "topic", topic, "seo_score", score)
	return result, nil
}

// analyzeKeywords derives the keyword set and density for the article.
func analyzeKeywords(content, topic string) map[string]any {
	primary := strings.ToLower(strings.TrimSpace(topic))
	return map[string]any{
		"primary": primary,
		"secondary": []any{
			primary + " guide",
			primary + " tips",
			primary + " examples",
		},
		"long_tail": []any{
			"comprehensive guide to " + primary,
			"everything about " + primary,
			primary + " best practices",
		},
		"density": keywordDensity(content, primary),
	}
}

// keywordDensity measures occurrences of the keyword phrase per hundred
// words of content, rounded to two decimal places.
func keywordDensity(content, keyword string) float64 {
	total := wordCount(content)
	if total == 0 || keyword == "" {
		return 0
	}
	count := strings.Count(strings.ToLower(content), strings.ToLower(keyword))
	return math.Round(float64(count)/float64(total)*100*100) / 100
}

// buildMetadata produces the search and Open Graph metadata.
func buildMetadata(topic string) map[string]any {
	title := truncate(fmt.Sprintf("%s - Complete Guide", topic), metaTitleMax)
	description := truncate(fmt.Sprintf("Learn everything about %s with this comprehensive guide covering core concepts, current trends, and practical applications.", topic), metaDescMax)
	return map[string]any{
		"title":          title,
		"description":    description,
		"og_title":       truncate(fmt.Sprintf("%s Guide", topic), metaTitleMax),
		"og_description": truncate(fmt.Sprintf("Complete guide to %s", topic), metaDescMax),
	}
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}

// ensureLeadKeyword makes the primary keyword appear in the first prose
// paragraph, inserting a lead sentence when it does not.
func ensureLeadKeyword(content, primary string) string {
	if primary == "" {
		return content
	}

	lines := strings.Split(content, "\n")
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		// First prose paragraph found
		if strings.Contains(strings.ToLower(trimmed), primary) {
			return content
		}
		lines[i] = fmt.Sprintf("%s is the subject of this guide. %s", titleCase(primary), trimmed)
		return strings.Join(lines, "\n")
	}
	return content
}

// titleCase uppercases the first letter of each word.
func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

// buildSchemaMarkup produces JSON-LD Article markup for the page.
func buildSchemaMarkup(content, topic string, metadata map[string]any) map[string]any {
	words := wordCount(content)
	return map[string]any{
		"@context":     "https://schema.org",
		"@type":        "Article",
		"headline":     stringValue(metadata, "title"),
		"description":  stringValue(metadata, "description"),
		"articleBody":  truncate(content, 500),
		"wordCount":    words,
		"timeRequired": fmt.Sprintf("PT%dM", int(readingTime(words))),
		"author": map[string]any{
			"@type": "Organization",
			"name":  "Content Team",
		},
	}
}

// seoScore rates the article out of 100: twenty points each for metadata
// title, metadata description, keyword density, content length, and
// heading structure, with half credit for near misses.
func seoScore(content string, keywords, metadata map[string]any) int {
	score := 0

	title := stringValue(metadata, "title")
	switch {
	case len(title) >= metaTitleMin && len(title) <= metaTitleMax:
		score += 20
	case title != "":
		score += 10
	}

	desc := stringValue(metadata, "description")
	switch {
	case len(desc) >= metaDescMin && len(desc) <= metaDescMax:
		score += 20
	case desc != "":
		score += 10
	}

	density, _ := floatValue(keywords, "density")
	switch {
	case density >= 1.0 && density <= 3.0:
		score += 20
	case density >= 0.5 && density <= 4.0:
		score += 10
	}

	words := wordCount(content)
	switch {
	case words >= 1000 && words <= 3000:
		score += 20
	case words >= 500 && words <= 5000:
		score += 10
	}

	headings := countHeadings(content)
	switch {
	case headings >= 3 && headings <= 10:
		score += 20
	case headings > 0:
		score += 10
	}

	if score > 100 {
		score = 100
	}
	return score
}

// countHeadings counts markdown heading lines.
func countHeadings(content string) int {
	count := 0
	for _, line := range strings.Split(content, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "#") {
			count++
		}
	}
	return count
}

// seoRecommendations lists concrete improvements for scores lost above.
func seoRecommendations(content string, keywords map[string]any) []any {
	recs := []any{}

	density, _ := floatValue(keywords, "density")
	if density < 1.0 {
		recs = append(recs, "Increase primary keyword density")
	} else if density > 3.0 {
		recs = append(recs, "Reduce keyword density to avoid over-optimization")
	}

	words := wordCount(content)
	if words < 1000 {
		recs = append(recs, "Expand content to at least 1000 words")
	} else if words > 3000 {
		recs = append(recs, "Consider breaking into multiple articles")
	}

	if countHeadings(content) < 3 {
		recs = append(recs, "Add more section headings for better structure")
	}

	return recs
}
