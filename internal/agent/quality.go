package agent

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// DefaultQualityThreshold is the minimum quality score for approval.
const DefaultQualityThreshold = 70

// Quality validates the finished article and issues the approval verdict.
type Quality struct {
	recorder
	threshold int
}

// NewQuality creates a quality-check executor.
func NewQuality(cfg Config) *Quality {
	return &Quality{recorder: newRecorder(cfg), threshold: DefaultQualityThreshold}
}

// Execute runs grammar, factual-claim, style, and SEO validations over the
// optimized content and produces the weighted quality verdict.
func (a *Quality) Execute(ctx context.Context, input map[string]any) (map[string]any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	content := stringValue(input, "content")
	if content == "" {
		return nil, fmt.Errorf("quality input has no content")
	}
	taskID := stringValue(input, "task_id")
	seoData := mapValue(input, "seo_data")

	a.log.Info("starting quality check", "word_count", wordCount(content))

	grammar := checkGrammar(content)
	facts := checkFacts(content)
	style := checkStyle(content)
	seoValidation := validateSEO(seoData)

	score := qualityScore(grammar, facts, style, seoValidation)
	approved := score >= a.threshold

	result := map[string]any{
		"agent":           a.agentID,
		"quality_score":   score,
		"grammar_check":   grammar,
		"fact_check":      facts,
		"style_check":     style,
		"seo_validation":  seoValidation,
		"report":          qualityReport(grammar, facts, style, seoValidation, score),
		"approved":        approved,
		"recommendations": qualityRecommendations(grammar, facts, style, seoValidation),
		"timestamp":       time.Now().UTC().Format(time.RFC3339),
	}

	a.record(taskID, fmt.Sprintf("Quality check scored %d/100, approved=%t", score, approved), result)
	a.log.Info("quality check completed", "quality_score", score, "approved", approved)
	return result, nil
}

// checkGrammar scans for mechanical writing defects: doubled words and
// run-on sentences.
func checkGrammar(content string) map[string]any {
	issues := 0
	var notes []any

	if doubled := doubledWords(content); len(doubled) > 0 {
		issues += len(doubled)
		notes = append(notes, fmt.Sprintf("Doubled words: %s", strings.Join(doubled, ", ")))
	}
	for _, s := range proseSentences(content) {
		if wordCount(s) > 40 {
			issues++
			notes = append(notes, fmt.Sprintf("Run-on sentence (%d words): %q", wordCount(s), truncate(s, 60)))
		}
	}
	if notes == nil {
		notes = []any{}
	}

	score := 100 - issues*10
	if score < 0 {
		score = 0
	}
	return map[string]any{
		"status":       "completed",
		"issues_found": issues,
		"feedback":     notes,
		"score":        score,
	}
}

// checkFacts flags absolute claims that an editor would want sourced.
func checkFacts(content string) map[string]any {
	absolutes := []string{"always", "never", "guaranteed", "undeniably"}
	lower := strings.ToLower(content)

	issues := 0
	var notes []any
	for _, word := range absolutes {
		if n := countWordOccurrences(lower, word); n > 0 {
			issues += n
			notes = append(notes, fmt.Sprintf("Absolute claim %q used %d time(s); add a source or soften", word, n))
		}
	}
	if notes == nil {
		notes = []any{}
	}

	score := 100 - issues*15
	if score < 0 {
		score = 0
	}
	return map[string]any{
		"status":       "reviewed",
		"issues_found": issues,
		"feedback":     notes,
		"score":        score,
	}
}

// checkStyle rates readability: sentence length, paragraph structure, and
// heading usage.
func checkStyle(content string) map[string]any {
	score := 70
	var notes []any

	sents := proseSentences(content)
	if avg := averageWords(sents); avg > 0 && avg <= 28 {
		score += 10
	} else if avg > 28 {
		notes = append(notes, fmt.Sprintf("Average sentence runs long (%.0f words)", avg))
	}

	if paragraphCount(content) >= 2 {
		score += 10
	} else {
		notes = append(notes, "Break the content into more paragraphs")
	}

	if countHeadings(content) > 0 {
		score += 10
	} else {
		notes = append(notes, "Add section headings")
	}

	if score > 100 {
		score = 100
	}
	if notes == nil {
		notes = []any{}
	}
	return map[string]any{
		"status":   "completed",
		"feedback": notes,
		"score":    score,
	}
}

// validateSEO checks the upstream SEO result for structural gaps. The SEO
// score carries through as this check's score.
func validateSEO(seoData map[string]any) map[string]any {
	seoScore := intValue(seoData, "seo_score", 0)
	keywords := mapValue(seoData, "keywords")
	metadata := mapValue(seoData, "metadata")

	issues := []any{}
	if seoScore < 70 {
		issues = append(issues, "SEO score below optimal threshold")
	}
	if stringValue(keywords, "primary") == "" {
		issues = append(issues, "Missing primary keyword")
	}
	if len(stringValue(metadata, "title")) < 30 {
		issues = append(issues, "Meta title needs optimization")
	}
	if len(stringValue(metadata, "description")) < 100 {
		issues = append(issues, "Meta description needs improvement")
	}

	return map[string]any{
		"status":    "validated",
		"seo_score": seoScore,
		"issues":    issues,
		"score":     seoScore,
	}
}

// qualityScore combines the four checks: grammar and factual accuracy carry
// thirty percent each, style and SEO twenty percent each.
func qualityScore(grammar, facts, style, seoValidation map[string]any) int {
	total := float64(intValue(grammar, "score", 0))*0.3 +
		float64(intValue(facts, "score", 0))*0.3 +
		float64(intValue(style, "score", 0))*0.2 +
		float64(intValue(seoValidation, "score", 0))*0.2
	return int(total + 0.5)
}

// qualityReport renders the check results as markdown.
func qualityReport(grammar, facts, style, seoValidation map[string]any, score int) string {
	var b strings.Builder
	b.WriteString("# Quality Assurance Report\n\n")
	fmt.Fprintf(&b, "## Overall Score: %d/100\n\n", score)
	fmt.Fprintf(&b, "### Grammar & Spelling\nScore: %d/100\nIssues Found: %d\n\n",
		intValue(grammar, "score", 0), intValue(grammar, "issues_found", 0))
	fmt.Fprintf(&b, "### Factual Accuracy\nScore: %d/100\nIssues Found: %d\n\n",
		intValue(facts, "score", 0), intValue(facts, "issues_found", 0))
	fmt.Fprintf(&b, "### Style & Tone\nScore: %d/100\n\n", intValue(style, "score", 0))
	fmt.Fprintf(&b, "### SEO Validation\nScore: %d/100\nIssues: %d\n",
		intValue(seoValidation, "score", 0), len(sliceValue(seoValidation, "issues")))
	return b.String()
}

// qualityRecommendations lists concrete follow-ups for low check scores.
func qualityRecommendations(grammar, facts, style, seoValidation map[string]any) []any {
	recs := []any{}

	if intValue(grammar, "score", 100) < 80 {
		recs = append(recs, "Review and fix grammar issues")
	}
	if intValue(facts, "score", 100) < 80 {
		recs = append(recs, "Verify factual claims and add citations")
	}
	if intValue(style, "score", 100) < 75 {
		recs = append(recs, "Improve writing style and consistency")
	}
	recs = append(recs, sliceValue(seoValidation, "issues")...)

	if len(recs) == 0 {
		recs = append(recs, "Content meets quality standards")
	}
	return recs
}

// doubledWords finds immediately repeated words in prose.
func doubledWords(content string) []string {
	var found []string
	for _, s := range proseSentences(content) {
		words := strings.Fields(strings.ToLower(s))
		for i := 1; i < len(words); i++ {
			prev := strings.Trim(words[i-1], ".,;:!?")
			cur := strings.Trim(words[i], ".,;:!?")
			if prev != "" && prev == cur && isAlpha(prev) {
				found = append(found, cur)
			}
		}
	}
	return found
}

func isAlpha(s string) bool {
	for _, r := range s {
		if r < 'a' || r > 'z' {
			return false
		}
	}
	return len(s) > 0
}

// countWordOccurrences counts whole-word matches in lowercased text.
func countWordOccurrences(lower, word string) int {
	count := 0
	fields := strings.Fields(lower)
	for _, f := range fields {
		if strings.Trim(f, ".,;:!?\"'()") == word {
			count++
		}
	}
	return count
}

// proseSentences splits prose lines into sentences, skipping headings and
// list items.
func proseSentences(content string) []string {
	var out []string
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "-") || strings.HasPrefix(line, "*") {
			continue
		}
		for _, s := range strings.FieldsFunc(line, func(r rune) bool {
			return r == '.' || r == '!' || r == '?'
		}) {
			s = strings.TrimSpace(s)
			if s != "" {
				out = append(out, s)
			}
		}
	}
	return out
}

// averageWords computes the mean word count across sentences.
func averageWords(sentences []string) float64 {
	if len(sentences) == 0 {
		return 0
	}
	total := 0
	for _, s := range sentences {
		total += wordCount(s)
	}
	return float64(total) / float64(len(sentences))
}

// paragraphCount counts blank-line separated prose blocks.
func paragraphCount(content string) int {
	count := 0
	for _, block := range strings.Split(content, "\n\n") {
		block = strings.TrimSpace(block)
		if block == "" || strings.HasPrefix(block, "#") {
			continue
		}
		count++
	}
	return count
}
