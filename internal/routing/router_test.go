package routing

import (
	"context"
	"errors"
	"testing"

	"parley/internal/config"
	"parley/internal/types"
)

func testRouter() *Router {
	return NewRouter(config.RoutingConfig{ClarificationCutoff: 0.6})
}

func searchIntent(confidence float64) types.Intent {
	return types.Intent{
		Category:   types.CategorySearch,
		Confidence: confidence,
		Entities:   map[string]types.Entity{},
		Slots:      map[string]types.SlotFill{},
		Source:     types.SourcePattern,
	}
}

func webSearchHandler(t *testing.T, called *bool) types.Handler {
	t.Helper()
	return NewFuncHandler("web_search", func(context.Context, types.Intent, map[string]types.Entity, types.AdaptiveContext) (string, error) {
		*called = true
		return "search results", nil
	}, types.CategorySearch)
}

func TestLowConfidenceShortCircuitsToClarification(t *testing.T) {
	r := testRouter()
	called := false
	r.Register(webSearchHandler(t, &called))

	result, err := r.Route(context.Background(), searchIntent(0.3), nil, types.AdaptiveContext{})
	if err != nil {
		t.Fatalf("Route() failed: %v", err)
	}
	if result.HandledBy != "clarification" {
		t.Errorf("handled by %q, want clarification", result.HandledBy)
	}
	if called {
		t.Error("web_search must not run when clarification short-circuits")
	}
	if result.Confidence != 0.3 {
		t.Errorf("result confidence = %f, want 0.3", result.Confidence)
	}
}

func TestConfidentIntentReachesItsHandler(t *testing.T) {
	r := testRouter()
	called := false
	r.Register(webSearchHandler(t, &called))

	result, err := r.Route(context.Background(), searchIntent(0.9), nil, types.AdaptiveContext{})
	if err != nil {
		t.Fatalf("Route() failed: %v", err)
	}
	if result.HandledBy != "web_search" || !called {
		t.Errorf("handled by %q (called=%v), want web_search", result.HandledBy, called)
	}
}

func TestMissingRequiredSlotTriggersClarification(t *testing.T) {
	r := testRouter()

	intent := types.Intent{
		Category:   types.CategoryReminder,
		Confidence: 0.81,
		Slots:      map[string]types.SlotFill{"what": {Filled: false, Required: true}},
		Source:     types.SourceSlot,
	}
	result, err := r.Route(context.Background(), intent, nil, types.AdaptiveContext{})
	if err != nil {
		t.Fatal(err)
	}
	if result.HandledBy != "clarification" {
		t.Errorf("handled by %q, want clarification despite confidence above cutoff", result.HandledBy)
	}
}

func TestUnknownIntentFallsToFallback(t *testing.T) {
	r := testRouter()

	result, err := r.Route(context.Background(), types.UnknownIntent(), nil, types.AdaptiveContext{})
	if err != nil {
		t.Fatalf("Route() failed: %v", err)
	}
	if result.HandledBy != "fallback" {
		t.Errorf("handled by %q, want fallback", result.HandledBy)
	}
	if result.Result == "" {
		t.Error("fallback must produce a user-visible message")
	}
}

func TestFailingHandlerFallsThrough(t *testing.T) {
	r := testRouter()
	r.Register(NewFuncHandler("flaky", func(context.Context, types.Intent, map[string]types.Entity, types.AdaptiveContext) (string, error) {
		return "", errors.New("backend down")
	}, types.CategorySearch))
	called := false
	r.Register(webSearchHandler(t, &called))

	result, err := r.Route(context.Background(), searchIntent(0.9), nil, types.AdaptiveContext{})
	if err != nil {
		t.Fatalf("Route() failed: %v", err)
	}
	if result.HandledBy != "web_search" || !called {
		t.Errorf("failure should fall through to web_search, got %q", result.HandledBy)
	}

	stats := r.Metrics().Snapshot()
	if stats["flaky"].Failures != 1 {
		t.Errorf("flaky failures = %d, want 1", stats["flaky"].Failures)
	}
}

func TestPanickingHandlerFallsThrough(t *testing.T) {
	r := testRouter()
	r.Register(NewFuncHandler("panicky", func(context.Context, types.Intent, map[string]types.Entity, types.AdaptiveContext) (string, error) {
		panic("boom")
	}, types.CategorySearch))

	result, err := r.Route(context.Background(), searchIntent(0.9), nil, types.AdaptiveContext{})
	if err != nil {
		t.Fatalf("panic must not escape Route(): %v", err)
	}
	if result.HandledBy != "fallback" {
		t.Errorf("handled by %q, want fallback after panic", result.HandledBy)
	}
}

func TestFallbackFailureIsTerminal(t *testing.T) {
	r := testRouter()
	r.fallback = NewFuncHandler("broken_fallback", func(context.Context, types.Intent, map[string]types.Entity, types.AdaptiveContext) (string, error) {
		return "", errors.New("fallback broke")
	}, types.CategoryUnknown)
	// Force CanHandle irrelevant: the fallback slot is invoked directly.
	if _, err := r.Route(context.Background(), types.UnknownIntent(), nil, types.AdaptiveContext{}); err == nil {
		t.Error("fallback failure must be a terminal error")
	}
}

func TestMissingFallbackIsInvariantViolation(t *testing.T) {
	r := testRouter()
	r.fallback = nil

	_, err := r.Route(context.Background(), types.UnknownIntent(), nil, types.AdaptiveContext{})
	if !errors.Is(err, ErrFallbackMissing) {
		t.Errorf("err = %v, want ErrFallbackMissing", err)
	}
}

func TestRegistrationOrderIsPriorityOrder(t *testing.T) {
	r := testRouter()
	var order []string
	for _, name := range []string{"first", "second"} {
		name := name
		r.Register(NewFuncHandler(name, func(context.Context, types.Intent, map[string]types.Entity, types.AdaptiveContext) (string, error) {
			order = append(order, name)
			return "ok", nil
		}, types.CategorySearch))
	}

	result, err := r.Route(context.Background(), searchIntent(0.9), nil, types.AdaptiveContext{})
	if err != nil {
		t.Fatal(err)
	}
	if result.HandledBy != "first" {
		t.Errorf("handled by %q, want first", result.HandledBy)
	}
	if len(order) != 1 {
		t.Errorf("exactly one handler should run, ran %v", order)
	}

	names := r.Handlers()
	want := []string{"clarification", "first", "second", "fallback"}
	if len(names) != len(want) {
		t.Fatalf("chain = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("chain[%d] = %q, want %q", i, names[i], want[i])
		}
	}
}

func TestClarificationIsSentimentAware(t *testing.T) {
	h := NewClarificationHandler(0.6)
	intent := searchIntent(0.3)

	neutral, _ := h.Handle(context.Background(), intent, nil, types.AdaptiveContext{})
	frustrated, _ := h.Handle(context.Background(), intent, nil, types.AdaptiveContext{
		LastSentiment: types.Sentiment{Mood: types.MoodFrustrated, Intensity: 2.0},
	})

	if neutral == frustrated {
		t.Error("frustrated users should get a different, softer clarification")
	}
	if frustrated == "" || neutral == "" {
		t.Error("clarification text must never be empty")
	}
}

func TestMetricsRecordLatencyAndCalls(t *testing.T) {
	r := testRouter()
	called := false
	r.Register(webSearchHandler(t, &called))

	for i := 0; i < 3; i++ {
		if _, err := r.Route(context.Background(), searchIntent(0.9), nil, types.AdaptiveContext{}); err != nil {
			t.Fatal(err)
		}
	}

	stats := r.Metrics().Snapshot()
	if stats["web_search"].Calls != 3 {
		t.Errorf("web_search calls = %d, want 3", stats["web_search"].Calls)
	}
	if stats["web_search"].Failures != 0 {
		t.Errorf("web_search failures = %d, want 0", stats["web_search"].Failures)
	}
}
