package classify

import (
	"context"
	"math"
	"reflect"
	"testing"

	"parley/internal/config"
	"parley/internal/extract"
	"parley/internal/semantic"
	"parley/internal/types"
)

func testClassifier(t *testing.T) *Classifier {
	t.Helper()
	bank, err := NewBankStore(DefaultBank())
	if err != nil {
		t.Fatalf("default bank failed to compile: %v", err)
	}
	matcher := semantic.NewMatcher(semantic.NewHashProvider(256), config.EmbeddingConfig{Timeout: "1s", CacheSize: 1024})
	return New(bank, matcher, extract.New(), config.DefaultConfig().Classify)
}

func TestGarbledInputFallsToUnknown(t *testing.T) {
	c := testClassifier(t)

	intent := c.Classify(context.Background(), "hlo", types.AdaptiveContext{})
	if intent.Category != types.CategoryUnknown {
		t.Errorf("category = %s, want unknown", intent.Category)
	}
	if intent.Confidence >= 0.5 {
		t.Errorf("confidence = %f, want < 0.5", intent.Confidence)
	}
	if intent.Source != types.SourceFallback {
		t.Errorf("source = %s, want fallback", intent.Source)
	}
	if intent.Entities == nil || intent.Slots == nil {
		t.Error("entity and slot maps must be non-nil even on fallback")
	}
}

func TestEmptyInputNeverFails(t *testing.T) {
	c := testClassifier(t)

	intent := c.Classify(context.Background(), "", types.AdaptiveContext{})
	if intent.Category != types.CategoryUnknown || intent.Confidence != 0 {
		t.Errorf("empty input should be unknown/0, got %s/%f", intent.Category, intent.Confidence)
	}
}

func TestPatternStageBaseline(t *testing.T) {
	c := testClassifier(t)

	intent := c.Classify(context.Background(), "what's the weather like in Paris?", types.AdaptiveContext{})
	if intent.Category != types.CategoryWeather {
		t.Fatalf("category = %s, want weather", intent.Category)
	}
	if intent.Confidence != 0.9 {
		t.Errorf("confidence = %f, want pattern baseline 0.9", intent.Confidence)
	}
	if intent.Source != types.SourcePattern {
		t.Errorf("source = %s, want pattern", intent.Source)
	}
	loc, ok := intent.Entities["location"]
	if !ok || loc.Value != "Paris" {
		t.Errorf("location entity = %+v, want Paris", intent.Entities)
	}
}

func TestMissingRequiredSlotPenalty(t *testing.T) {
	c := testClassifier(t)

	// "remind me" matches the reminder grammar but fills no "what" slot.
	intent := c.Classify(context.Background(), "remind me", types.AdaptiveContext{})
	if intent.Category != types.CategoryReminder {
		t.Fatalf("category = %s, want reminder", intent.Category)
	}
	want := 0.9 * 0.9
	if intent.Confidence < want-1e-9 || intent.Confidence > want+1e-9 {
		t.Errorf("confidence = %f, want %f after one missing-slot penalty", intent.Confidence, want)
	}
	if intent.Source != types.SourceSlot {
		t.Errorf("source = %s, want slot after penalty", intent.Source)
	}
	if intent.Slots["what"].Filled {
		t.Error("required slot should be unfilled")
	}
}

func TestFilledRequiredSlotKeepsBaseline(t *testing.T) {
	c := testClassifier(t)

	intent := c.Classify(context.Background(), "remind me to call mom at 5pm", types.AdaptiveContext{})
	if intent.Category != types.CategoryReminder {
		t.Fatalf("category = %s, want reminder", intent.Category)
	}
	if intent.Confidence != 0.9 {
		t.Errorf("confidence = %f, want 0.9", intent.Confidence)
	}
	if !intent.Slots["what"].Filled {
		t.Errorf("slot 'what' should be filled: %+v", intent.Slots)
	}
}

func TestContextBoostOnTopicContinuation(t *testing.T) {
	c := testClassifier(t)

	actx := types.AdaptiveContext{LastCategory: types.CategoryWeather}
	intent := c.Classify(context.Background(), "what's the weather like today", actx)
	if intent.Category != types.CategoryWeather {
		t.Fatalf("category = %s, want weather", intent.Category)
	}
	if intent.Confidence != 1.0 {
		t.Errorf("confidence = %f, want 1.0 (0.9 + 0.1 boost, capped)", intent.Confidence)
	}
}

func TestNoBoostOnDifferentCategory(t *testing.T) {
	c := testClassifier(t)

	actx := types.AdaptiveContext{LastCategory: types.CategoryNews}
	intent := c.Classify(context.Background(), "what's the weather like today", actx)
	if intent.Confidence != 0.9 {
		t.Errorf("confidence = %f, want unboosted 0.9", intent.Confidence)
	}
}

func TestSemanticStageCatchesUnpatternedPhrasing(t *testing.T) {
	c := testClassifier(t)

	// No grammar matches "vegan recipes", but it overlaps the search
	// category's labeled examples.
	intent := c.Classify(context.Background(), "vegan recipes", types.AdaptiveContext{})
	if intent.Category != types.CategorySearch {
		t.Fatalf("category = %s, want search via semantic stage", intent.Category)
	}
	if intent.Source != types.SourceSemantic {
		t.Errorf("source = %s, want semantic", intent.Source)
	}
	if intent.Confidence < 0.5 || intent.Confidence > 1.0 {
		t.Errorf("confidence = %f, want similarity in [0.5, 1.0]", intent.Confidence)
	}
}

func TestSemanticWinnerTakesMissingSlotPenalty(t *testing.T) {
	cfg := config.DefaultConfig().Classify

	// Same category and examples, once without slots and once with a
	// required slot that "vegan recipes" cannot fill.
	classifyWith := func(slots []extract.SlotSpec) types.Intent {
		bank, err := NewBankStore(&Bank{Categories: []CategoryDef{{
			Category: types.CategorySearch,
			Examples: []string{"search for vegan recipes", "find me a good book on golang"},
			Slots:    slots,
		}}})
		if err != nil {
			t.Fatalf("bank failed to compile: %v", err)
		}
		matcher := semantic.NewMatcher(semantic.NewHashProvider(256), config.EmbeddingConfig{Timeout: "1s", CacheSize: 1024})
		c := New(bank, matcher, extract.New(), cfg)
		return c.Classify(context.Background(), "vegan recipes", types.AdaptiveContext{})
	}

	plain := classifyWith(nil)
	penalized := classifyWith([]extract.SlotSpec{
		{Name: "query", Type: types.EntityQuoted, Required: true, Patterns: []string{`(?i)^search for (.+)$`}},
	})

	if plain.Category != types.CategorySearch || penalized.Category != types.CategorySearch {
		t.Fatalf("categories = %s / %s, want search via semantic stage", plain.Category, penalized.Category)
	}
	want := plain.Confidence * cfg.MissingSlotPenalty
	if math.Abs(penalized.Confidence-want) > 1e-9 {
		t.Errorf("confidence = %f, want %f (one missing-slot penalty applied)", penalized.Confidence, want)
	}
	if penalized.Source != types.SourceSemantic {
		t.Errorf("source = %s, want semantic", penalized.Source)
	}
	fill := penalized.Slots["query"]
	if fill.Filled || !fill.Required {
		t.Errorf("slot 'query' = %+v, want required and unfilled", fill)
	}
}

func TestLearnedExampleBoost(t *testing.T) {
	c := testClassifier(t)

	query := "the rundown on black holes"
	before := c.Classify(context.Background(), query, types.AdaptiveContext{})
	if before.Category == types.CategoryExplain {
		t.Skip("query already matches explain without learning")
	}

	c.Learn(types.CategoryExplain, "gimme the rundown on black holes")
	after := c.Classify(context.Background(), query, types.AdaptiveContext{})
	if after.Category != types.CategoryExplain {
		t.Fatalf("category = %s, want explain after learning", after.Category)
	}
	if after.Source != types.SourceSemantic {
		t.Errorf("source = %s, want semantic", after.Source)
	}
}

func TestIdempotentClassification(t *testing.T) {
	c := testClassifier(t)
	actx := types.AdaptiveContext{LastCategory: types.CategorySearch}

	for _, text := range []string{
		"search for vegan recipes",
		"hello there",
		"hlo",
		"compare go and rust",
	} {
		first := c.Classify(context.Background(), text, actx)
		second := c.Classify(context.Background(), text, actx)
		if !reflect.DeepEqual(first, second) {
			t.Errorf("classification of %q not idempotent:\n  first:  %+v\n  second: %+v", text, first, second)
		}
	}
}

func TestConfidenceAlwaysInRange(t *testing.T) {
	c := testClassifier(t)

	inputs := []string{
		"", "hi", "HELP ME NOW!!!", "remind me", "weather",
		"search for search for search", "$AAPL price", "bye",
	}
	for _, text := range inputs {
		intent := c.Classify(context.Background(), text, types.AdaptiveContext{})
		if intent.Confidence < 0 || intent.Confidence > 1 {
			t.Errorf("Classify(%q) confidence out of range: %f", text, intent.Confidence)
		}
		if intent.Category == "" {
			t.Errorf("Classify(%q) returned empty category", text)
		}
	}
}

func TestDegradedMatcherStillClassifiesPatterns(t *testing.T) {
	bank, err := NewBankStore(DefaultBank())
	if err != nil {
		t.Fatal(err)
	}
	// Nil provider: the semantic stage is permanently degraded.
	matcher := semantic.NewMatcher(nil, config.EmbeddingConfig{Timeout: "1s"})
	c := New(bank, matcher, extract.New(), config.DefaultConfig().Classify)

	intent := c.Classify(context.Background(), "what's the weather today", types.AdaptiveContext{})
	if intent.Category != types.CategoryWeather {
		t.Errorf("pattern stage should survive a degraded matcher, got %s", intent.Category)
	}

	intent = c.Classify(context.Background(), "vegan recipes", types.AdaptiveContext{})
	if intent.Category != types.CategoryUnknown {
		t.Errorf("semantic-only input should degrade to unknown, got %s", intent.Category)
	}
}

func TestStagePriorityTieBreak(t *testing.T) {
	pattern := candidate{category: types.CategoryWeather, confidence: 0.7, source: types.SourcePattern}
	semanticCand := candidate{category: types.CategoryNews, confidence: 0.7, source: types.SourceSemantic}

	if semanticCand.betterThan(pattern) {
		t.Error("equal confidence must prefer the higher-priority stage")
	}
	if !pattern.betterThan(semanticCand) {
		t.Error("pattern stage should win the tie")
	}

	higher := candidate{category: types.CategoryNews, confidence: 0.8, source: types.SourceSemantic}
	if !higher.betterThan(pattern) {
		t.Error("higher confidence must win regardless of stage")
	}
}
