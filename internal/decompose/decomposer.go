// Package decompose detects compound utterances and splits them into an
// ordered task graph. Detection rules run in a fixed order: sequencing
// connectives, parallel conjunctions, conditionals, comparisons. Anything
// else passes through as a single task.
package decompose

import (
	"regexp"
	"strings"

	"parley/internal/logging"
	"parley/internal/types"
)

var (
	// Sequencing connectives split an utterance into dependent steps.
	sequenceSplitRe = regexp.MustCompile(`(?i)\s*(?:,\s*)?\b(?:and then|then|after that|afterwards|finally|next)\b[,\s]*`)
	sequenceHintRe  = regexp.MustCompile(`(?i)\b(?:then|after that|afterwards|finally)\b`)

	// Leading ordinal filler ("first, ...") carries no content of its own.
	ordinalPrefixRe = regexp.MustCompile(`(?i)^(?:first|second|third|lastly)[,\s]+`)

	conditionalRe = regexp.MustCompile(`(?i)^if\s+(.+?)[,\s]+then\s+(.+)$`)
	comparisonRe  = regexp.MustCompile(`(?i)^compare\s+(.+?)\s+(?:and|with|to|vs\.?|versus)\s+(.+)$`)

	parallelSplitRe = regexp.MustCompile(`(?i)\s*(?:,\s*and\s+|\s+and\s+|,\s*)`)
)

// imperativeVerbs marks a clause as an independent command for the parallel
// rule. Deliberately small; a non-verb clause after "and" is treated as a
// continuation, not a new task.
var imperativeVerbs = map[string]bool{
	"search": true, "find": true, "look": true, "show": true, "get": true,
	"fetch": true, "check": true, "tell": true, "give": true, "open": true,
	"play": true, "set": true, "remind": true, "summarize": true,
	"explain": true, "translate": true, "list": true, "compare": true,
	"send": true, "book": true, "schedule": true, "read": true, "write": true,
}

// Decompose splits text into ordered subtasks. A non-compound utterance
// returns exactly one atomic task. Dependencies only ever point at lower
// indices, so the graph is acyclic by construction.
func Decompose(text string) []types.Task {
	timer := logging.StartTimer(logging.CategoryDecompose, "Decompose")
	defer timer.Stop()

	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return []types.Task{atomicTask(text)}
	}

	// Rule 1: sequencing connectives -> sequential chain. An "if...then"
	// utterance is excluded here; its "then" belongs to the conditional.
	if sequenceHintRe.MatchString(trimmed) && !conditionalRe.MatchString(trimmed) {
		if parts := splitClauses(sequenceSplitRe, trimmed); len(parts) >= 2 {
			tasks := make([]types.Task, len(parts))
			for i, part := range parts {
				tasks[i] = types.Task{
					Text:   part,
					Index:  i,
					Status: types.TaskPending,
					Kind:   types.TaskSequential,
				}
				if i > 0 {
					tasks[i].DependsOn = []int{i - 1}
				}
			}
			logging.Decompose("Sequential split: %d tasks", len(tasks))
			return tasks
		}
	}

	// Rule 2: two or more imperative clauses joined by "and"/commas ->
	// parallel split with no dependencies. Checked before conditional and
	// comparison so that two full commands ("compare X and compare Y") stay
	// independent commands.
	if parts := splitClauses(parallelSplitRe, trimmed); len(parts) >= 2 && allImperative(parts) {
		tasks := make([]types.Task, len(parts))
		for i, part := range parts {
			tasks[i] = types.Task{
				Text:   part,
				Index:  i,
				Status: types.TaskPending,
				Kind:   types.TaskParallel,
			}
		}
		logging.Decompose("Parallel split: %d tasks", len(tasks))
		return tasks
	}

	// Rule 3: "if...then" -> single annotated conditional task. Branch
	// evaluation is the caller's concern.
	if m := conditionalRe.FindStringSubmatch(trimmed); m != nil {
		logging.Decompose("Conditional detected")
		return []types.Task{{
			Text:      trimmed,
			Index:     0,
			Status:    types.TaskPending,
			Kind:      types.TaskConditional,
			Condition: strings.TrimSpace(m[1]),
			Branch:    strings.TrimSpace(m[2]),
		}}
	}

	// Rule 4: "compare X and Y" -> two independent subjects.
	if m := comparisonRe.FindStringSubmatch(trimmed); m != nil {
		logging.Decompose("Comparison split")
		return []types.Task{
			{Text: strings.TrimSpace(m[1]), Index: 0, Status: types.TaskPending, Kind: types.TaskComparison},
			{Text: strings.TrimSpace(m[2]), Index: 1, Status: types.TaskPending, Kind: types.TaskComparison},
		}
	}

	return []types.Task{atomicTask(trimmed)}
}

func atomicTask(text string) types.Task {
	return types.Task{
		Text:   text,
		Index:  0,
		Status: types.TaskPending,
		Kind:   types.TaskAtomic,
	}
}

// splitClauses splits on re, trims ordinal filler, and drops empty parts.
func splitClauses(re *regexp.Regexp, text string) []string {
	raw := re.Split(text, -1)
	parts := make([]string, 0, len(raw))
	for _, p := range raw {
		p = strings.TrimSpace(strings.Trim(strings.TrimSpace(p), ",."))
		p = ordinalPrefixRe.ReplaceAllString(p, "")
		if p != "" {
			parts = append(parts, p)
		}
	}
	return parts
}

// allImperative reports whether every clause starts with a known command
// verb (ignoring polite prefixes).
func allImperative(parts []string) bool {
	for _, p := range parts {
		words := strings.Fields(strings.ToLower(p))
		// Skip leading politeness.
		for len(words) > 0 && (words[0] == "please" || words[0] == "also" || words[0] == "now") {
			words = words[1:]
		}
		if len(words) == 0 || !imperativeVerbs[words[0]] {
			return false
		}
	}
	return true
}
