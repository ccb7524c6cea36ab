package classify

import (
	"context"

	"golang.org/x/sync/errgroup"

	"parley/internal/config"
	"parley/internal/extract"
	"parley/internal/logging"
	"parley/internal/semantic"
	"parley/internal/types"
)

// =============================================================================
// CLASSIFIER
// =============================================================================

// Classifier runs the staged intent pipeline over a bank store. It is an
// explicitly constructed service: inject one per process (or per session)
// rather than reaching for a shared global.
type Classifier struct {
	bank      *BankStore
	matcher   *semantic.Matcher
	extractor *extract.Extractor
	cfg       config.ClassifyConfig
}

// New creates a classifier. The matcher may be degraded (nil provider); the
// semantic stage then contributes nothing and pattern/slot stages carry the
// pipeline alone.
func New(bank *BankStore, matcher *semantic.Matcher, extractor *extract.Extractor, cfg config.ClassifyConfig) *Classifier {
	logging.Classify("Creating classifier: baseline=%.2f trigger=%.2f threshold=%.2f boost=%.2f floor=%.2f",
		cfg.PatternBaseline, cfg.SemanticTrigger, cfg.SemanticThreshold, cfg.ContextBoost, cfg.FallbackFloor)
	return &Classifier{
		bank:      bank,
		matcher:   matcher,
		extractor: extractor,
		cfg:       cfg,
	}
}

// candidate is one stage's classification proposal.
type candidate struct {
	category   types.IntentCategory
	confidence float64
	source     types.IntentSource
}

// betterThan ranks candidates: higher confidence wins; equal confidence is
// broken by stage priority (pattern > slot > semantic > fallback).
func (c candidate) betterThan(other candidate) bool {
	if c.confidence != other.confidence {
		return c.confidence > other.confidence
	}
	return c.source.StagePriority() > other.source.StagePriority()
}

// Classify runs the staged pipeline. It never fails: the unknown category at
// confidence 0 is the guaranteed floor for any input, including empty text.
func (c *Classifier) Classify(ctx context.Context, text string, actx types.AdaptiveContext) types.Intent {
	timer := logging.StartTimer(logging.CategoryClassify, "Classify")
	defer timer.Stop()

	if text == "" {
		return types.UnknownIntent()
	}

	best := candidate{category: types.CategoryUnknown, confidence: 0, source: types.SourceFallback}

	// Stage 1: pattern match in declared bank order.
	if patternCand, ok := c.patternStage(text); ok {
		best = patternCand
		logging.ClassifyDebug("Pattern stage: %s (%.2f)", best.category, best.confidence)
	}

	// Stage 2: slot merge. Each missing required slot discounts confidence
	// and demotes the result to the slot stage for tie-breaking.
	var entities map[string]types.Entity
	var slots map[string]types.SlotFill
	if best.category != types.CategoryUnknown {
		entities, slots = c.extractor.Extract(text, c.bank.slotSchema(best.category))
		missing := countMissingRequired(c.bank.slotSchema(best.category), slots)
		for i := 0; i < missing; i++ {
			best.confidence *= c.cfg.MissingSlotPenalty
		}
		if missing > 0 {
			best.source = types.SourceSlot
			logging.ClassifyDebug("Slot stage: %d required slot(s) missing, confidence now %.2f", missing, best.confidence)
		}
	}

	// Stage 3: semantic example matching, only when the structural stages
	// are not confident enough on their own.
	if best.confidence < c.cfg.SemanticTrigger {
		if semCand, ok := c.semanticStage(ctx, text); ok && semCand.betterThan(best) {
			best = semCand
			entities, slots = c.extractor.Extract(text, c.bank.slotSchema(best.category))
			// The slot discount applies here too; the source stays semantic
			// so tie-breaking still ranks this below the structural stages.
			missing := countMissingRequired(c.bank.slotSchema(best.category), slots)
			for i := 0; i < missing; i++ {
				best.confidence *= c.cfg.MissingSlotPenalty
			}
			logging.ClassifyDebug("Semantic stage: %s (%.2f, %d required slot(s) missing)", best.category, best.confidence, missing)
		}
	}

	// Stage 4: topic continuity boost.
	if best.category != types.CategoryUnknown && actx.LastCategory == best.category {
		best.confidence = types.ClampConfidence(best.confidence + c.cfg.ContextBoost)
		logging.ClassifyDebug("Context boost: %s -> %.2f", best.category, best.confidence)
	}

	// Stage 5: fallback floor.
	if best.confidence < c.cfg.FallbackFloor {
		logging.ClassifyDebug("Below floor %.2f, returning unknown", c.cfg.FallbackFloor)
		return types.UnknownIntent()
	}

	intent := types.Intent{
		Category:   best.category,
		Confidence: types.ClampConfidence(best.confidence),
		Entities:   entities,
		Slots:      slots,
		Source:     best.source,
	}
	if intent.Entities == nil {
		intent.Entities = make(map[string]types.Entity)
	}
	if intent.Slots == nil {
		intent.Slots = make(map[string]types.SlotFill)
	}

	logging.Classify("Classified %q as %s (%.2f, %s)", truncate(text, 40), intent.Category, intent.Confidence, intent.Source)
	return intent
}

// patternStage scans categories and their patterns in declared order. The
// first match wins at the pattern baseline confidence.
func (c *Classifier) patternStage(text string) (candidate, bool) {
	categories, _, _ := c.bank.snapshot()
	for _, cc := range categories {
		for _, re := range cc.patterns {
			if re.MatchString(text) {
				return candidate{
					category:   cc.def.Category,
					confidence: c.cfg.PatternBaseline,
					source:     types.SourcePattern,
				}, true
			}
		}
	}
	return candidate{}, false
}

// semanticStage searches the base and learned example banks in parallel and
// returns the best-scoring labeled example at or above the threshold. Learned
// examples get a small boost so user-taught phrasings outrank baked-in ones.
// A degraded matcher contributes nothing.
func (c *Classifier) semanticStage(ctx context.Context, text string) (candidate, bool) {
	_, base, learned := c.bank.snapshot()
	if len(base) == 0 && len(learned) == 0 {
		return candidate{}, false
	}

	var baseMatches, learnedMatches []semantic.Match
	var baseDegraded, learnedDegraded bool

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		baseMatches, baseDegraded = c.matcher.MostSimilar(gctx, text, exampleTexts(base), c.cfg.SemanticThreshold)
		return nil
	})
	g.Go(func() error {
		learnedMatches, learnedDegraded = c.matcher.MostSimilar(gctx, text, exampleTexts(learned), c.cfg.SemanticThreshold)
		return nil
	})
	g.Wait()

	if baseDegraded && learnedDegraded {
		logging.ClassifyDebug("Semantic stage degraded, skipping")
		return candidate{}, false
	}

	best := candidate{}
	found := false
	if len(baseMatches) > 0 {
		best = candidate{
			category:   base[baseMatches[0].Index].category,
			confidence: baseMatches[0].Score,
			source:     types.SourceSemantic,
		}
		found = true
	}
	if len(learnedMatches) > 0 {
		boosted := types.ClampConfidence(learnedMatches[0].Score + c.cfg.LearnedBoost)
		learnedCand := candidate{
			category:   learned[learnedMatches[0].Index].category,
			confidence: boosted,
			source:     types.SourceSemantic,
		}
		if !found || learnedCand.confidence > best.confidence {
			best = learnedCand
			found = true
		}
	}
	return best, found
}

// Learn adds a runtime-learned example utterance for a category, so future
// semantic matching recognizes the phrasing.
func (c *Classifier) Learn(category types.IntentCategory, text string) {
	c.bank.AddLearnedExample(category, text)
}

func countMissingRequired(schema []extract.SlotSpec, slots map[string]types.SlotFill) int {
	missing := 0
	for _, spec := range schema {
		if spec.Required && !slots[spec.Name].Filled {
			missing++
		}
	}
	return missing
}

func exampleTexts(examples []labeledExample) []string {
	texts := make([]string, len(examples))
	for i, ex := range examples {
		texts[i] = ex.text
	}
	return texts
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
