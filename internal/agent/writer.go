package agent

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"
)

// wordsPerMinute is the reading speed used for the reading-time estimate.
const wordsPerMinute = 200.0

// Writer turns an outline into a complete markdown article.
type Writer struct {
	recorder
}

// NewWriter creates a writing executor.
func NewWriter(cfg Config) *Writer {
	return &Writer{recorder: newRecorder(cfg)}
}

// Execute generates the article from the upstream outline and reports
// word count and estimated reading time.
func (a *Writer) Execute(ctx context.Context, input map[string]any) (map[string]any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	outline := mapValue(input, "outline")
	topic := stringValue(input, "topic")
	if topic == "" {
		topic = topicFromOutline(outline)
	}
	if topic == "" {
		return nil, fmt.Errorf("writing input has no topic or outline")
	}
	taskID := stringValue(input, "task_id")

	style := stringValue(input, "style_guide")
	if style == "" {
		style = "professional"
	}

	a.log.Info("starting writing", "topic", topic, "style", style)

	content := composeArticle(topic, outline)
	words := wordCount(content)

	result := map[string]any{
		"agent":                a.agentID,
		"topic":                topic,
		"content":              content,
		"word_count":           words,
		"reading_time_minutes": readingTime(words),
		"style":                style,
		"timestamp":            time.Now().UTC().Format(time.RFC3339),
	}

	a.record(taskID, fmt.Sprintf("Wrote %d-word article on %q", words, topic), result)
	a.log.Info("writing completed", "topic", topic, "word_count", words)
	return result, nil
}

// topicFromOutline recovers the topic from the outline title when the
// input carries none.
func topicFromOutline(outline map[string]any) string {
	title := stringValue(outline, "title")
	title = strings.TrimPrefix(title, "Comprehensive Guide to ")
	return strings.TrimPrefix(title, "Guide to ")
}

// readingTime estimates minutes to read, to one decimal place.
func readingTime(words int) float64 {
	return math.Round(float64(words)/wordsPerMinute*10) / 10
}

// composeArticle renders the outline into markdown prose. Every section and
// subsection from the outline appears as a heading or paragraph; a default
// structure fills in when the outline is missing or empty.
func composeArticle(topic string, outline map[string]any) string {
	title := stringValue(outline, "title")
	if title == "" {
		title = fmt.Sprintf("Comprehensive Guide to %s", topic)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", title)

	b.WriteString("## Introduction\n\n")
	intro := mapValue(outline, "introduction")
	hook := stringValue(intro, "hook")
	if hook == "" {
		hook = fmt.Sprintf("Exploring %s", topic)
	}
	fmt.Fprintf(&b, "%s has moved from a niche concern to a topic every serious team needs a working position on. %s. This guide walks through what the research shows, what practitioners actually do, and where the common mistakes hide.\n\n", topic, hook)

	sections := sliceValue(outline, "sections")
	if len(sections) == 0 {
		sections = []any{
			map[string]any{"title": fmt.Sprintf("Understanding %s", topic), "subsections": []any{"Core concepts", "Why it matters"}},
			map[string]any{"title": "Practical Applications", "subsections": []any{"Getting started", "Common pitfalls"}},
		}
	}

	for _, s := range sections {
		section, ok := s.(map[string]any)
		if !ok {
			continue
		}
		sectionTitle := stringValue(section, "title")
		if sectionTitle == "" {
			continue
		}
		fmt.Fprintf(&b, "## %s\n\n", sectionTitle)
		fmt.Fprintf(&b, "When teams evaluate %s, the theme of %s comes up early and often. The sources reviewed for this article agree on the fundamentals here, even where they differ on emphasis.\n\n", topic, strings.ToLower(sectionTitle))

		for _, sub := range sliceValue(section, "subsections") {
			subTitle, ok := sub.(string)
			if !ok || subTitle == "" {
				continue
			}
			fmt.Fprintf(&b, "### %s\n\n", subTitle)
			fmt.Fprintf(&b, "%s deserves deliberate attention in the context of %s. Teams that treat it as an afterthought tend to pay for the omission later, while those that invest early report that each improvement feeds the next stage of the work. Start small, measure the effect, and expand what demonstrably helps.\n\n", subTitle, topic)
		}
	}

	b.WriteString("## Conclusion\n\n")
	conclusion := mapValue(outline, "conclusion")
	fmt.Fprintf(&b, "The picture that emerges about %s is consistent: the fundamentals are settled, the gains are real, and the risks are manageable with ordinary discipline.", topic)
	if takeaways := sliceValue(conclusion, "takeaways"); len(takeaways) > 0 {
		b.WriteString(" The key takeaways:\n\n")
		for _, tk := range takeaways {
			if s, ok := tk.(string); ok {
				fmt.Fprintf(&b, "- %s\n", s)
			}
		}
		b.WriteString("\n")
	} else {
		b.WriteString("\n\n")
	}
	if cta := stringValue(conclusion, "call_to_action"); cta != "" {
		fmt.Fprintf(&b, "%s.\n", strings.TrimSuffix(cta, "."))
	}

	return strings.TrimRight(b.String(), "\n") + "\n"
}
