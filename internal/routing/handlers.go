package routing

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"parley/internal/types"
)

// =============================================================================
// CLARIFICATION HANDLER
// =============================================================================

// ClarificationHandler is the reserved first-priority handler. It intercepts
// low-confidence intents and intents whose required slots went unfilled (the
// classifier marks those with the slot source), asking the user instead of
// forwarding a guess.
type ClarificationHandler struct {
	cutoff float64
}

// NewClarificationHandler creates the handler with the given confidence
// cutoff.
func NewClarificationHandler(cutoff float64) *ClarificationHandler {
	if cutoff <= 0 {
		cutoff = 0.6
	}
	return &ClarificationHandler{cutoff: cutoff}
}

func (h *ClarificationHandler) Name() string { return "clarification" }

// CanHandle triggers below the confidence cutoff or when a required slot is
// unfilled. Unknown intents at confidence 0 are left for the fallback — there
// is nothing concrete to clarify.
func (h *ClarificationHandler) CanHandle(intent types.Intent, _ types.AdaptiveContext) bool {
	if intent.Category == types.CategoryUnknown && intent.Confidence == 0 {
		return false
	}
	if intent.Confidence < h.cutoff {
		return true
	}
	for _, fill := range intent.Slots {
		if fill.Required && !fill.Filled {
			return true
		}
	}
	return false
}

// Handle phrases the clarification request. A frustrated user gets a shorter,
// apologetic ask; everyone else gets the plain question.
func (h *ClarificationHandler) Handle(_ context.Context, intent types.Intent, _ map[string]types.Entity, actx types.AdaptiveContext) (string, error) {
	missing := unfilledSlots(intent)

	if actx.LastSentiment.Mood == types.MoodFrustrated {
		if len(missing) > 0 {
			return fmt.Sprintf("Sorry — I just need the %s to continue.", strings.Join(missing, " and ")), nil
		}
		return "Sorry, I didn't quite get that. Could you rephrase?", nil
	}

	if len(missing) > 0 {
		return fmt.Sprintf("I think you want %s, but I'm missing the %s. Could you fill that in?",
			intent.Category, strings.Join(missing, " and ")), nil
	}
	return fmt.Sprintf("Did you mean something related to %s? I'm not fully sure I understood.", intent.Category), nil
}

func unfilledSlots(intent types.Intent) []string {
	var missing []string
	for name, fill := range intent.Slots {
		if fill.Required && !fill.Filled {
			missing = append(missing, name)
		}
	}
	sort.Strings(missing)
	return missing
}

// =============================================================================
// FALLBACK HANDLER
// =============================================================================

// FallbackHandler is the reserved last-priority handler. It accepts
// everything, guaranteeing the chain is exhaustive.
type FallbackHandler struct{}

// NewFallbackHandler creates the terminal catch-all handler.
func NewFallbackHandler() *FallbackHandler { return &FallbackHandler{} }

func (h *FallbackHandler) Name() string { return "fallback" }

func (h *FallbackHandler) CanHandle(types.Intent, types.AdaptiveContext) bool { return true }

func (h *FallbackHandler) Handle(_ context.Context, intent types.Intent, _ map[string]types.Entity, _ types.AdaptiveContext) (string, error) {
	if intent.Category == types.CategoryUnknown {
		return "I don't understand that yet. Could you try phrasing it differently?", nil
	}
	return fmt.Sprintf("I recognized a %s request but have no handler for it yet.", intent.Category), nil
}

// =============================================================================
// FUNC ADAPTER
// =============================================================================

// HandleFunc is the signature for function-backed handlers.
type HandleFunc func(ctx context.Context, intent types.Intent, entities map[string]types.Entity, actx types.AdaptiveContext) (string, error)

// FuncHandler adapts plain functions into the Handler interface, the common
// case for category-bound handlers.
type FuncHandler struct {
	name       string
	categories map[types.IntentCategory]bool
	fn         HandleFunc
}

// NewFuncHandler binds fn to one or more intent categories.
func NewFuncHandler(name string, fn HandleFunc, categories ...types.IntentCategory) *FuncHandler {
	set := make(map[types.IntentCategory]bool, len(categories))
	for _, c := range categories {
		set[c] = true
	}
	return &FuncHandler{name: name, categories: set, fn: fn}
}

func (h *FuncHandler) Name() string { return h.name }

func (h *FuncHandler) CanHandle(intent types.Intent, _ types.AdaptiveContext) bool {
	return h.categories[intent.Category]
}

func (h *FuncHandler) Handle(ctx context.Context, intent types.Intent, entities map[string]types.Entity, actx types.AdaptiveContext) (string, error) {
	return h.fn(ctx, intent, entities, actx)
}
