package memory

import (
	"context"
	"regexp"
	"strings"

	"parley/internal/logging"
)

// feedbackRule maps a recognizable feedback phrase to a preference update.
// The table is fixed and checked in order; the first hit wins.
type feedbackRule struct {
	pattern  *regexp.Regexp
	category string
	key      string
	value    string
}

var feedbackRules = []feedbackRule{
	{regexp.MustCompile(`(?i)\b(?:show|give) me (?:an |some )?examples?\b`), "explanation_style", "use_examples", "true"},
	{regexp.MustCompile(`(?i)\bwith (?:an |some )?examples?\b`), "explanation_style", "use_examples", "true"},
	{regexp.MustCompile(`(?i)\b(?:be brief|keep it short|shorter|too long|too wordy)\b`), "response_style", "length", "short"},
	{regexp.MustCompile(`(?i)\b(?:more detail|elaborate|in depth|too short)\b`), "response_style", "length", "detailed"},
	{regexp.MustCompile(`(?i)\b(?:simpler|simple terms|no jargon|less technical)\b`), "explanation_style", "technicality", "simple"},
	{regexp.MustCompile(`(?i)\b(?:more technical|technical detail)\b`), "explanation_style", "technicality", "technical"},
	{regexp.MustCompile(`(?i)\bin (spanish|french|german|english|italian|portuguese)\b`), "locale", "language", ""},
	{regexp.MustCompile(`(?i)\buse metric\b`), "locale", "units", "metric"},
	{regexp.MustCompile(`(?i)\buse imperial\b`), "locale", "units", "imperial"},
}

// LearnFromFeedback applies the fixed rule table to feedback text. A
// matched rule records a preference observation; unmapped feedback is never
// discarded — it goes to long-term memory verbatim with type "feedback".
func (c *ContextualMemory) LearnFromFeedback(ctx context.Context, text string) bool {
	for _, rule := range feedbackRules {
		m := rule.pattern.FindStringSubmatch(text)
		if m == nil {
			continue
		}

		value := rule.value
		if value == "" && len(m) > 1 {
			value = strings.ToLower(m[1])
		}

		pref := c.Preferences.Learn(rule.category, rule.key, value)
		logging.Memory("Feedback mapped to preference %s.%s=%s (confidence=%.2f)",
			rule.category, rule.key, value, pref.Confidence)
		return true
	}

	if _, err := c.LongTerm.Store(ctx, "feedback", text, map[string]string{"unmapped": "true"}); err != nil {
		logging.Get(logging.CategoryMemory).Warn("Failed to store unmapped feedback: %v", err)
	}
	logging.MemoryDebug("Unmapped feedback stored verbatim")
	return false
}
