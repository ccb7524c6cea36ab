// Package extract performs typed pattern extraction from utterance text.
// Matchers run in a fixed, declared priority order; first match per type
// wins and overlapping spans resolve longest-match-first. Extraction never
// fails: unmatched input yields empty maps.
package extract

import (
	"regexp"
	"strings"
	"sync"

	"parley/internal/logging"
	"parley/internal/types"
)

// SlotSpec declares one named, typed slot an intent needs. Patterns are an
// ordered priority list; adding a pattern never reorders the ones before it.
type SlotSpec struct {
	Name     string           `yaml:"name"`
	Type     types.EntityKind `yaml:"type"`
	Required bool             `yaml:"required"`
	Patterns []string         `yaml:"patterns,omitempty"`
}

// matcherOrder is the fixed priority order for the typed matchers. More
// specific types come first so e.g. money is not swallowed by number.
var matcherOrder = []types.EntityKind{
	types.EntityURL,
	types.EntityEmail,
	types.EntityMoney,
	types.EntityDuration,
	types.EntityTime,
	types.EntityDate,
	types.EntityQuoted,
	types.EntityTicker,
	types.EntityLocation,
	types.EntityNumber,
}

var typePatterns = map[types.EntityKind]string{
	types.EntityURL:      `https?://[^\s]+`,
	types.EntityEmail:    `[\w.+-]+@[\w-]+\.[\w.-]+`,
	types.EntityMoney:    `(?i)[$€£]\s?\d+(?:[.,]\d+)?|\b\d+(?:\.\d+)?\s?(?:dollars|bucks|usd|eur|euros)\b`,
	types.EntityDuration: `(?i)\b\d+\s?(?:seconds?|minutes?|hours?|days?|weeks?|months?)\b`,
	types.EntityTime:     `(?i)\b\d{1,2}:\d{2}(?:\s?(?:am|pm))?\b|\b\d{1,2}\s?(?:am|pm)\b`,
	types.EntityDate:     `(?i)\b(?:today|tomorrow|yesterday|monday|tuesday|wednesday|thursday|friday|saturday|sunday|\d{4}-\d{2}-\d{2}|\d{1,2}/\d{1,2}(?:/\d{2,4})?)\b`,
	types.EntityQuoted:   `"[^"]+"|“[^”]+”`,
	types.EntityTicker:   `\$[A-Z]{1,5}\b`,
	types.EntityLocation: `\b(?:in|at|near|In|At|Near) ([A-Z][a-zA-Z]+(?: [A-Z][a-zA-Z]+)?)`,
	types.EntityNumber:   `\b\d+(?:\.\d+)?\b`,
}

// identifierCues and amountCues disambiguate a bare number by the words in
// its ±3-token window.
var (
	identifierCues = map[string]bool{
		"id": true, "order": true, "ticket": true, "number": true,
		"ref": true, "reference": true, "invoice": true, "#": true,
	}
	amountCues = map[string]bool{
		"pay": true, "cost": true, "costs": true, "price": true,
		"amount": true, "worth": true, "spend": true, "total": true,
	}
)

// Extractor runs the typed matchers. It is stateless and safe for
// concurrent use.
type Extractor struct {
	compiled map[types.EntityKind]*regexp.Regexp

	mu        sync.Mutex
	slotCache map[string]*regexp.Regexp
}

// New compiles the built-in matchers.
func New() *Extractor {
	compiled := make(map[types.EntityKind]*regexp.Regexp, len(typePatterns))
	for kind, pattern := range typePatterns {
		compiled[kind] = regexp.MustCompile(pattern)
	}
	return &Extractor{
		compiled:  compiled,
		slotCache: make(map[string]*regexp.Regexp),
	}
}

type span struct {
	kind       types.EntityKind
	start, end int
	value      string
}

// Extract returns the typed entities found in text plus the slot fills for
// the given schema. Unfilled slots appear with Filled=false so callers can
// apply required-slot confidence penalties.
func (e *Extractor) Extract(text string, schema []SlotSpec) (map[string]types.Entity, map[string]types.SlotFill) {
	entities := make(map[string]types.Entity)
	slots := make(map[string]types.SlotFill, len(schema))

	spans := e.collectSpans(text)
	spans = resolveOverlaps(spans)

	for _, s := range spans {
		kind := s.kind
		if kind == types.EntityNumber {
			kind = disambiguateNumber(text, s)
		}
		if _, taken := entities[string(kind)]; taken {
			continue
		}
		entities[string(kind)] = types.Entity{
			Kind:  kind,
			Value: normalizeValue(kind, s.value),
			Start: s.start,
			End:   s.end,
		}
	}

	for _, spec := range schema {
		slots[spec.Name] = e.fillSlot(text, spec, entities)
	}

	logging.Get(logging.CategoryExtract).Debug("Extracted %d entities, %d/%d slots filled",
		len(entities), countFilled(slots), len(schema))

	return entities, slots
}

// collectSpans finds the first match per type, in matcher priority order.
func (e *Extractor) collectSpans(text string) []span {
	var spans []span
	for _, kind := range matcherOrder {
		re := e.compiled[kind]
		loc := re.FindStringSubmatchIndex(text)
		if loc == nil {
			continue
		}
		start, end := loc[0], loc[1]
		value := text[start:end]
		// Prefer the first capture group when the pattern declares one
		// (location strips its preposition this way).
		if len(loc) >= 4 && loc[2] >= 0 {
			start, end = loc[2], loc[3]
			value = text[loc[2]:loc[3]]
		}
		spans = append(spans, span{kind: kind, start: start, end: end, value: value})
	}
	return spans
}

// resolveOverlaps drops spans contained in or crossing a longer span.
// Equal lengths keep the higher-priority (earlier-collected) span.
func resolveOverlaps(spans []span) []span {
	kept := make([]span, 0, len(spans))
	for _, candidate := range spans {
		shadowed := false
		for _, existing := range kept {
			if candidate.start < existing.end && existing.start < candidate.end {
				if length(candidate) > length(existing) {
					continue
				}
				shadowed = true
				break
			}
		}
		if shadowed {
			continue
		}
		// Remove any previously kept shorter overlapping spans.
		filtered := kept[:0]
		for _, existing := range kept {
			overlap := candidate.start < existing.end && existing.start < candidate.end
			if overlap && length(existing) < length(candidate) {
				continue
			}
			filtered = append(filtered, existing)
		}
		kept = append(filtered, candidate)
	}
	return kept
}

func length(s span) int { return s.end - s.start }

// disambiguateNumber decides identifier vs plain number from the cue words
// within three tokens of the match.
func disambiguateNumber(text string, s span) types.EntityKind {
	tokens := strings.Fields(strings.ToLower(text))

	// Locate the token containing the span value.
	idx := -1
	for i, tok := range tokens {
		if strings.Contains(tok, strings.ToLower(s.value)) {
			idx = i
			break
		}
	}
	if idx == -1 {
		return types.EntityNumber
	}

	lo := idx - 3
	if lo < 0 {
		lo = 0
	}
	hi := idx + 4
	if hi > len(tokens) {
		hi = len(tokens)
	}

	for i := lo; i < hi; i++ {
		tok := strings.Trim(tokens[i], ".,!?:;")
		if identifierCues[tok] {
			return types.EntityIdentifier
		}
		if amountCues[tok] {
			return types.EntityMoney
		}
	}
	return types.EntityNumber
}

// fillSlot fills one slot: declared patterns first (in order), then the
// extracted entity of the slot's type.
func (e *Extractor) fillSlot(text string, spec SlotSpec, entities map[string]types.Entity) types.SlotFill {
	for _, pattern := range spec.Patterns {
		re := e.compileSlotPattern(pattern)
		if re == nil {
			continue
		}
		m := re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		value := m[0]
		if len(m) > 1 && m[1] != "" {
			value = m[1]
		}
		return types.SlotFill{Value: strings.TrimSpace(value), Filled: true, Required: spec.Required}
	}

	if ent, ok := entities[string(spec.Type)]; ok {
		return types.SlotFill{Value: ent.Value, Filled: true, Required: spec.Required}
	}

	return types.SlotFill{Required: spec.Required}
}

// compileSlotPattern compiles schema-declared patterns with a cache. Bad
// patterns are skipped, not fatal; banks are user-editable files.
func (e *Extractor) compileSlotPattern(pattern string) *regexp.Regexp {
	e.mu.Lock()
	defer e.mu.Unlock()

	if re, ok := e.slotCache[pattern]; ok {
		return re
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		logging.Get(logging.CategoryExtract).Warn("Skipping invalid slot pattern %q: %v", pattern, err)
		e.slotCache[pattern] = nil
		return nil
	}
	e.slotCache[pattern] = re
	return re
}

func normalizeValue(kind types.EntityKind, value string) string {
	switch kind {
	case types.EntityQuoted:
		return strings.Trim(value, `"“”`)
	case types.EntityDate, types.EntityTime, types.EntityDuration:
		return strings.ToLower(strings.TrimSpace(value))
	default:
		return strings.TrimSpace(value)
	}
}

func countFilled(slots map[string]types.SlotFill) int {
	n := 0
	for _, s := range slots {
		if s.Filled {
			n++
		}
	}
	return n
}
