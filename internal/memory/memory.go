package memory

import (
	"context"

	"parley/internal/config"
	"parley/internal/logging"
	"parley/internal/semantic"
	"parley/internal/types"
)

// ContextualMemory bundles the three memory layers owned by one session.
type ContextualMemory struct {
	ShortTerm   *ShortTermMemory
	LongTerm    *LongTermMemory
	Preferences *UserPreferences

	longTermTopK int
}

// New creates a session's contextual memory.
func New(cfg config.MemoryConfig, matcher *semantic.Matcher, backend types.PersistenceBackend) *ContextualMemory {
	topK := cfg.LongTermTopK
	if topK <= 0 {
		topK = 5
	}
	return &ContextualMemory{
		ShortTerm:    NewShortTermMemory(cfg.ShortTermCapacity),
		LongTerm:     NewLongTermMemory(matcher, backend),
		Preferences:  NewUserPreferences(cfg.PromotionThreshold),
		longTermTopK: topK,
	}
}

// RecordTurn appends a turn to the short-term buffer. Turns marked
// important (or carrying explicit feedback) are additionally promoted to
// long-term memory.
func (c *ContextualMemory) RecordTurn(ctx context.Context, turn types.Turn, promote bool) {
	c.ShortTerm.Add(turn)

	if promote {
		metadata := map[string]string{
			"category": string(turn.Intent.Category),
			"session":  turn.Utterance.SessionID,
		}
		if _, err := c.LongTerm.Store(ctx, "turn", turn.Utterance.Text, metadata); err != nil {
			logging.Get(logging.CategoryMemory).Warn("Turn promotion failed: %v", err)
		}
	}
}

// AdaptiveContext assembles the memory snapshot for one query: recent
// history, topic continuity, active preferences and relevant long-term
// entries. A degraded semantic layer is reported, never fatal.
func (c *ContextualMemory) AdaptiveContext(ctx context.Context, sessionID, query string) types.AdaptiveContext {
	timer := logging.StartTimer(logging.CategoryMemory, "AdaptiveContext")
	defer timer.Stop()

	actx := types.AdaptiveContext{
		SessionID:         sessionID,
		History:           c.ShortTerm.Recent(0),
		ActivePreferences: c.Preferences.Active(),
	}

	if last, ok := c.ShortTerm.Last(); ok {
		actx.LastCategory = last.Intent.Category
		actx.LastSentiment = last.Sentiment
		actx.TopicContinuation = last.Intent.Category != types.CategoryUnknown
	}

	if query != "" && c.LongTerm.Len() > 0 {
		relevant, degraded := c.LongTerm.Search(ctx, query, c.longTermTopK)
		actx.RelevantLongTerm = relevant
		actx.Degraded = degraded
	}

	logging.MemoryDebug("Adaptive context: history=%d prefs=%d longterm=%d degraded=%v",
		len(actx.History), len(actx.ActivePreferences), len(actx.RelevantLongTerm), actx.Degraded)

	return actx
}
