// Package assistant is the library facade: it wires the classifier, the
// decomposer, the sentiment analyzer, the router and per-session memory into
// one conversational core.
package assistant

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"parley/internal/classify"
	"parley/internal/config"
	"parley/internal/decompose"
	"parley/internal/extract"
	"parley/internal/logging"
	"parley/internal/memory"
	"parley/internal/routing"
	"parley/internal/semantic"
	"parley/internal/sentiment"
	"parley/internal/session"
	"parley/internal/types"
)

// Assistant owns the shared, read-only services (bank, classifier, router)
// and the session registry. Per-session mutable state lives in the sessions.
type Assistant struct {
	cfg        *config.Config
	matcher    *semantic.Matcher
	classifier *classify.Classifier
	bank       *classify.BankStore
	router     *routing.Router
	sessions   *session.Manager
	backend    types.PersistenceBackend
}

// New wires the core from configuration. The backend may be nil for a fully
// in-memory core; a nil embedding provider degrades the semantic stages but
// never blocks construction.
func New(cfg *config.Config, provider types.EmbeddingProvider, backend types.PersistenceBackend) (*Assistant, error) {
	bank := classify.DefaultBank()
	if cfg.Classify.BankPath != "" {
		loaded, err := classify.LoadBank(cfg.Classify.BankPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load example bank: %w", err)
		}
		bank = loaded
	}

	bankStore, err := classify.NewBankStore(bank)
	if err != nil {
		return nil, fmt.Errorf("failed to compile example bank: %w", err)
	}
	if cfg.Classify.BankPath != "" {
		if err := bankStore.Watch(cfg.Classify.BankPath); err != nil {
			logging.Get(logging.CategoryBoot).Warn("Bank watch disabled: %v", err)
		}
	}

	matcher := semantic.NewMatcher(provider, cfg.Embedding)
	classifier := classify.New(bankStore, matcher, extract.New(), cfg.Classify)
	router := routing.NewRouter(cfg.Routing)
	sessions := session.NewManager(cfg, matcher, backend)

	logging.Get(logging.CategoryBoot).Info("Assistant core ready: provider=%s backend=%v",
		providerName(provider), backend != nil)

	return &Assistant{
		cfg:        cfg,
		matcher:    matcher,
		classifier: classifier,
		bank:       bankStore,
		router:     router,
		sessions:   sessions,
		backend:    backend,
	}, nil
}

func providerName(p types.EmbeddingProvider) string {
	if p == nil {
		return "none"
	}
	return p.Name()
}

// RegisterHandler adds a domain handler to the routing chain. Registration
// order is priority order, between clarification and fallback.
func (a *Assistant) RegisterHandler(h types.Handler) {
	a.router.Register(h)
}

// ClassifyIntent classifies one utterance against the session's current
// adaptive context. It never fails; unknown/0 is the floor.
func (a *Assistant) ClassifyIntent(ctx context.Context, sessionID, text string) types.Intent {
	actx := a.GetContext(ctx, sessionID)
	return a.classifier.Classify(ctx, text, actx)
}

// DecomposeQuery splits a compound utterance into its task graph.
func (a *Assistant) DecomposeQuery(text string) []types.Task {
	return decompose.Decompose(text)
}

// GetContext assembles the session's adaptive context snapshot.
func (a *Assistant) GetContext(ctx context.Context, sessionID string) types.AdaptiveContext {
	s := a.sessions.GetOrCreate(sessionID)
	return s.Memory().AdaptiveContext(ctx, sessionID, "")
}

// RecordTurn appends a completed turn to the session's memory. Feedback
// intents and turns flagged Important are promoted to long-term storage;
// feedback additionally runs the preference rule table, and confidently
// classified turns teach the semantic bank their phrasing.
func (a *Assistant) RecordTurn(ctx context.Context, sessionID string, turn types.Turn) error {
	s := a.sessions.GetOrCreate(sessionID)
	return s.Do(func(mem *memory.ContextualMemory) error {
		promote := turn.Intent.Category == types.CategoryFeedback || turn.Important
		mem.RecordTurn(ctx, turn, promote)

		if turn.Intent.Category == types.CategoryFeedback {
			mem.LearnFromFeedback(ctx, turn.Utterance.Text)
		}
		if turn.Intent.Confidence >= 0.9 && turn.Intent.Source == types.SourceSemantic {
			a.classifier.Learn(turn.Intent.Category, turn.Utterance.Text)
		}
		return nil
	})
}

// Route dispatches a classified intent through the handler chain.
func (a *Assistant) Route(ctx context.Context, intent types.Intent, entities map[string]types.Entity, actx types.AdaptiveContext) (types.RouteResult, error) {
	return a.router.Route(ctx, intent, entities, actx)
}

// TurnResult is the full outcome of one processed utterance.
type TurnResult struct {
	Sentiment types.Sentiment
	Tasks     []types.Task
	Intents   []types.Intent
	Results   []types.RouteResult
}

// Response concatenates the per-task handler outputs.
func (r TurnResult) Response() string {
	out := ""
	for i, res := range r.Results {
		if i > 0 {
			out += "\n"
		}
		out += res.Result
	}
	return out
}

// Process runs the full pipeline for one utterance: sentiment (side channel),
// decomposition, per-subtask classification and routing in execution order,
// then a memory update. A cancelled context discards the memory write.
func (a *Assistant) Process(ctx context.Context, sessionID, text string) (TurnResult, error) {
	timer := logging.StartTimer(logging.CategoryRouting, "Process")
	defer timer.Stop()

	s := a.sessions.GetOrCreate(sessionID)
	result := TurnResult{}

	err := s.Do(func(mem *memory.ContextualMemory) error {
		result.Sentiment = sentiment.Analyze(text)

		tasks := decompose.Decompose(text)
		plan, err := decompose.CreateExecutionPlan(tasks)
		if err != nil {
			return fmt.Errorf("failed to plan execution: %w", err)
		}
		result.Tasks = tasks

		actx := mem.AdaptiveContext(ctx, sessionID, text)
		actx.LastSentiment = result.Sentiment

		for _, idx := range plan.ExecutionOrder {
			intent := a.classifier.Classify(ctx, tasks[idx].Text, actx)
			routed, err := a.router.Route(ctx, intent, intent.Entities, actx)
			if err != nil {
				return err
			}
			result.Intents = append(result.Intents, intent)
			result.Results = append(result.Results, routed)
		}

		// Mid-turn cancellation: discard the memory write entirely.
		if ctx.Err() != nil {
			logging.SessionDebug("Turn cancelled for %s, memory write discarded", sessionID)
			return ctx.Err()
		}

		now := time.Now()
		turn := types.Turn{
			ID:        uuid.NewString(),
			Utterance: types.Utterance{Text: text, Timestamp: now, SessionID: sessionID},
			Response:  result.Response(),
			Sentiment: result.Sentiment,
			Timestamp: now,
		}
		if len(result.Intents) > 0 {
			turn.Intent = result.Intents[0]
		} else {
			turn.Intent = types.UnknownIntent()
		}
		promote := turn.Intent.Category == types.CategoryFeedback
		mem.RecordTurn(ctx, turn, promote)
		if turn.Intent.Category == types.CategoryFeedback {
			mem.LearnFromFeedback(ctx, text)
		}
		return nil
	})

	return result, err
}

// Metrics exposes the router's per-handler counters.
func (a *Assistant) Metrics() *routing.Metrics {
	return a.router.Metrics()
}

// CloseSession flushes and removes one session.
func (a *Assistant) CloseSession(ctx context.Context, sessionID string) error {
	return a.sessions.Close(ctx, sessionID)
}

// Shutdown stops the session manager, flushes every session and releases the
// bank watcher and backend.
func (a *Assistant) Shutdown(ctx context.Context) error {
	a.sessions.Stop(ctx)
	if err := a.bank.Close(); err != nil {
		logging.Get(logging.CategoryBoot).Warn("Bank close failed: %v", err)
	}
	if a.backend != nil {
		return a.backend.Close()
	}
	return nil
}
