// Package types defines the shared data model for the parley core:
// utterances, intents, tasks, turns, preferences and the collaborator
// interfaces consumed at the edges of the pipeline.
package types

import (
	"time"
)

// =============================================================================
// UTTERANCE AND INTENT
// =============================================================================

// Utterance is one raw user input.
type Utterance struct {
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
	SessionID string    `json:"session_id"`
}

// IntentCategory is the typed category of a classified intent.
// The string-keyed dispatch of older assistants becomes an explicit enum
// here; handlers switch on these values, never on raw user text.
type IntentCategory string

const (
	CategoryUnknown  IntentCategory = "unknown"
	CategoryGreeting IntentCategory = "greeting"
	CategorySearch   IntentCategory = "search"
	CategoryWeather  IntentCategory = "weather"
	CategoryNews     IntentCategory = "news"
	CategoryFinance  IntentCategory = "finance"
	CategoryReminder IntentCategory = "reminder"
	CategoryExplain  IntentCategory = "explain"
	CategoryCompare  IntentCategory = "compare"
	CategoryFeedback IntentCategory = "feedback"
	CategoryFarewell IntentCategory = "farewell"
)

// IntentSource tags which classification stage produced the result.
type IntentSource string

const (
	SourcePattern  IntentSource = "pattern"
	SourceSlot     IntentSource = "slot"
	SourceSemantic IntentSource = "semantic"
	SourceFallback IntentSource = "fallback"
)

// StagePriority orders sources for tie-breaking: pattern > slot > semantic.
// Higher wins on equal confidence.
func (s IntentSource) StagePriority() int {
	switch s {
	case SourcePattern:
		return 3
	case SourceSlot:
		return 2
	case SourceSemantic:
		return 1
	default:
		return 0
	}
}

// EntityKind is the type of an extracted entity.
type EntityKind string

const (
	EntityNumber     EntityKind = "number"
	EntityMoney      EntityKind = "money"
	EntityIdentifier EntityKind = "identifier"
	EntityDate       EntityKind = "date"
	EntityTime       EntityKind = "time"
	EntityDuration   EntityKind = "duration"
	EntityLocation   EntityKind = "location"
	EntityURL        EntityKind = "url"
	EntityEmail      EntityKind = "email"
	EntityQuoted     EntityKind = "quoted"
	EntityTicker     EntityKind = "ticker"
)

// Entity is a typed value extracted from utterance text.
type Entity struct {
	Kind  EntityKind `json:"kind"`
	Value string     `json:"value"` // normalized surface form
	Start int        `json:"start"` // byte offset in source text
	End   int        `json:"end"`
}

// SlotFill records whether a named slot was filled and with what. Required
// rides along so routing can spot an unfilled mandatory slot without the
// schema in hand.
type SlotFill struct {
	Value    string `json:"value"`
	Filled   bool   `json:"filled"`
	Required bool   `json:"required,omitempty"`
}

// Intent is the classified purpose of an utterance.
// Classification never yields a nil Intent; CategoryUnknown with confidence
// 0 is the guaranteed floor.
type Intent struct {
	Category   IntentCategory      `json:"category"`
	Confidence float64             `json:"confidence"` // always in [0,1]
	Entities   map[string]Entity   `json:"entities"`
	Slots      map[string]SlotFill `json:"slots"`
	Source     IntentSource        `json:"source"`
}

// UnknownIntent returns the floor result.
func UnknownIntent() Intent {
	return Intent{
		Category:   CategoryUnknown,
		Confidence: 0,
		Entities:   map[string]Entity{},
		Slots:      map[string]SlotFill{},
		Source:     SourceFallback,
	}
}

// ClampConfidence forces c into [0,1].
func ClampConfidence(c float64) float64 {
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}

// =============================================================================
// TASKS
// =============================================================================

// TaskKind records which decomposition rule produced a task.
type TaskKind string

const (
	TaskAtomic      TaskKind = "atomic"
	TaskSequential  TaskKind = "sequential"
	TaskParallel    TaskKind = "parallel"
	TaskConditional TaskKind = "conditional"
	TaskComparison  TaskKind = "comparison"
)

// TaskStatus is the lifecycle state of a subtask.
type TaskStatus string

const (
	TaskPending   TaskStatus = "pending"
	TaskRunning   TaskStatus = "running"
	TaskCompleted TaskStatus = "completed"
	TaskFailed    TaskStatus = "failed"
)

// Task is one subtask of a decomposed utterance.
// DependsOn may only reference indices lower than Index; append-only
// construction keeps the graph acyclic by design.
type Task struct {
	Text      string     `json:"text"`
	Index     int        `json:"index"`
	DependsOn []int      `json:"depends_on,omitempty"`
	Status    TaskStatus `json:"status"`
	Kind      TaskKind   `json:"kind"`

	// Conditional tasks expose their parts; branch evaluation is external.
	Condition string `json:"condition,omitempty"`
	Branch    string `json:"branch,omitempty"`
}

// =============================================================================
// SENTIMENT
// =============================================================================

// Mood is the coarse emotional classification of an utterance.
type Mood string

const (
	MoodFrustrated Mood = "frustrated"
	MoodConfident  Mood = "confident"
	MoodExcited    Mood = "excited"
	MoodCurious    Mood = "curious"
	MoodBored      Mood = "bored"
	MoodNeutral    Mood = "neutral"
)

// Sentiment is the analyzed mood of an utterance.
type Sentiment struct {
	Mood       Mood     `json:"mood"`
	Intensity  float64  `json:"intensity"` // >= 0, capped by the analyzer
	Indicators []string `json:"indicators,omitempty"`
}

// =============================================================================
// TURNS AND MEMORY
// =============================================================================

// Turn is an immutable record of one exchange. Important marks a turn for
// long-term promotion regardless of its intent category.
type Turn struct {
	ID        string    `json:"id"`
	Utterance Utterance `json:"utterance"`
	Response  string    `json:"response"`
	Intent    Intent    `json:"intent"`
	Sentiment Sentiment `json:"sentiment"`
	Important bool      `json:"important,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// MemoryEntry is one long-term memory record. Entries are append-only and
// pruned only by explicit policy, never silently.
type MemoryEntry struct {
	ID        string            `json:"id"`
	Type      string            `json:"type"` // e.g. "turn", "feedback", "summary"
	Content   string            `json:"content"`
	Embedding []float32         `json:"embedding,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	CreatedAt time.Time         `json:"created_at"`

	// Similarity is populated on search results only.
	Similarity float64 `json:"similarity,omitempty"`
}

// Preference is a learned user preference. Confidence rises with each
// consistent observation and the preference becomes active at 1.0.
type Preference struct {
	Category     string    `json:"category"`
	Key          string    `json:"key"`
	Value        string    `json:"value"`
	Confidence   float64   `json:"confidence"`
	Observations int       `json:"observations"`
	LastObserved time.Time `json:"last_observed"`
}

// Active reports whether the preference has reached full confidence.
func (p Preference) Active() bool {
	return p.Confidence >= 1.0
}

// AdaptiveContext is the memory snapshot handed to the classifier and
// handlers for one turn.
type AdaptiveContext struct {
	SessionID         string         `json:"session_id"`
	History           []Turn         `json:"history"`
	LastCategory      IntentCategory `json:"last_category"`
	TopicContinuation bool           `json:"topic_continuation"`
	ActivePreferences []Preference   `json:"active_preferences"`
	RelevantLongTerm  []MemoryEntry  `json:"relevant_long_term"`
	LastSentiment     Sentiment      `json:"last_sentiment"`

	// Degraded is raised when the embedding provider was unavailable while
	// building this context.
	Degraded bool `json:"degraded,omitempty"`
}

// =============================================================================
// ROUTING
// =============================================================================

// RouteResult is the outcome of dispatching an intent through the chain.
type RouteResult struct {
	HandledBy  string  `json:"handled_by"`
	Result     string  `json:"result"`
	Confidence float64 `json:"confidence"`
}
