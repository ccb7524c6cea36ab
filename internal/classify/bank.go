// Package classify implements the staged intent classifier: pattern match,
// slot merge, semantic example matching, context boost, fallback floor.
//
// Categories, their patterns and their labeled examples live in a bank. The
// bank is an explicitly ordered list: category order and per-category pattern
// order ARE the match priority, so adding a pattern never silently changes
// precedence elsewhere.
package classify

import (
	"fmt"
	"os"
	"regexp"
	"sync"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"parley/internal/extract"
	"parley/internal/logging"
	"parley/internal/types"
)

// =============================================================================
// BANK TYPES
// =============================================================================

// CategoryDef declares one intent category: its match patterns (ordered,
// highest priority first), labeled example utterances for semantic matching,
// and the slot schema applied after a match.
type CategoryDef struct {
	Category types.IntentCategory `yaml:"category"`
	Patterns []string             `yaml:"patterns,omitempty"`
	Examples []string             `yaml:"examples,omitempty"`
	Slots    []extract.SlotSpec   `yaml:"slots,omitempty"`
}

// Bank is the full ordered category list.
type Bank struct {
	Categories []CategoryDef `yaml:"categories"`
}

// compiledCategory pairs a CategoryDef with its compiled patterns.
type compiledCategory struct {
	def      CategoryDef
	patterns []*regexp.Regexp
}

// =============================================================================
// BANK STORE
// =============================================================================

// BankStore holds the active bank behind a mutex so a file reload can swap it
// atomically while classification reads it. Learned examples live beside the
// bank: they survive reloads and rank with a small boost over baked-in ones.
type BankStore struct {
	mu       sync.RWMutex
	compiled []compiledCategory
	learned  map[types.IntentCategory][]string

	watcher *fsnotify.Watcher
	done    chan struct{}
}

// NewBankStore compiles a bank into a store. Invalid patterns are an error:
// a bank that cannot compile must not half-load.
func NewBankStore(bank *Bank) (*BankStore, error) {
	compiled, err := compileBank(bank)
	if err != nil {
		return nil, err
	}
	return &BankStore{
		compiled: compiled,
		learned:  make(map[types.IntentCategory][]string),
	}, nil
}

func compileBank(bank *Bank) ([]compiledCategory, error) {
	compiled := make([]compiledCategory, 0, len(bank.Categories))
	for _, def := range bank.Categories {
		cc := compiledCategory{def: def, patterns: make([]*regexp.Regexp, 0, len(def.Patterns))}
		for _, p := range def.Patterns {
			re, err := regexp.Compile(p)
			if err != nil {
				return nil, fmt.Errorf("category %s: pattern %q: %w", def.Category, p, err)
			}
			cc.patterns = append(cc.patterns, re)
		}
		compiled = append(compiled, cc)
	}
	return compiled, nil
}

// LoadBank reads a YAML bank file.
func LoadBank(path string) (*Bank, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read bank file: %w", err)
	}
	var bank Bank
	if err := yaml.Unmarshal(data, &bank); err != nil {
		return nil, fmt.Errorf("failed to parse bank file: %w", err)
	}
	if len(bank.Categories) == 0 {
		return nil, fmt.Errorf("bank file %s declares no categories", path)
	}
	return &bank, nil
}

// Reload swaps in a new bank atomically. Learned examples are preserved.
func (s *BankStore) Reload(bank *Bank) error {
	compiled, err := compileBank(bank)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.compiled = compiled
	s.mu.Unlock()
	logging.Classify("Bank reloaded: %d categories", len(compiled))
	return nil
}

// Watch starts an fsnotify watcher on the bank file and hot-reloads it on
// change. A bank that fails to parse or compile keeps the previous bank
// active. Call Close to stop watching.
func (s *BankStore) Watch(path string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create bank watcher: %w", err)
	}
	if err := watcher.Add(path); err != nil {
		watcher.Close()
		return fmt.Errorf("failed to watch bank file: %w", err)
	}

	s.watcher = watcher
	s.done = make(chan struct{})

	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				bank, err := LoadBank(path)
				if err != nil {
					logging.Get(logging.CategoryClassify).Warn("Bank reload skipped: %v", err)
					continue
				}
				if err := s.Reload(bank); err != nil {
					logging.Get(logging.CategoryClassify).Warn("Bank reload skipped: %v", err)
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logging.Get(logging.CategoryClassify).Warn("Bank watcher error: %v", err)
			case <-s.done:
				return
			}
		}
	}()

	logging.Classify("Watching bank file: %s", path)
	return nil
}

// Close stops the file watcher, if one is running.
func (s *BankStore) Close() error {
	if s.watcher == nil {
		return nil
	}
	close(s.done)
	err := s.watcher.Close()
	s.watcher = nil
	return err
}

// AddLearnedExample records a runtime-learned example utterance for a
// category. Learned examples rank with a configurable boost.
func (s *BankStore) AddLearnedExample(category types.IntentCategory, text string) {
	if text == "" || category == types.CategoryUnknown {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.learned[category] {
		if existing == text {
			return
		}
	}
	s.learned[category] = append(s.learned[category], text)
	logging.ClassifyDebug("Learned example for %s: %q", category, text)
}

// LearnedCount reports the number of learned examples across all categories.
func (s *BankStore) LearnedCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, examples := range s.learned {
		n += len(examples)
	}
	return n
}

// labeledExample is one flattened example with its category label.
type labeledExample struct {
	category types.IntentCategory
	text     string
}

// snapshot returns the compiled categories plus flattened base and learned
// example lists, all safe to read without the lock.
func (s *BankStore) snapshot() (categories []compiledCategory, base, learned []labeledExample) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	categories = s.compiled
	for _, cc := range s.compiled {
		for _, ex := range cc.def.Examples {
			base = append(base, labeledExample{category: cc.def.Category, text: ex})
		}
		for _, ex := range s.learned[cc.def.Category] {
			learned = append(learned, labeledExample{category: cc.def.Category, text: ex})
		}
	}
	return categories, base, learned
}

// slotSchema returns the slot schema declared for a category.
func (s *BankStore) slotSchema(category types.IntentCategory) []extract.SlotSpec {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, cc := range s.compiled {
		if cc.def.Category == category {
			return cc.def.Slots
		}
	}
	return nil
}

// =============================================================================
// DEFAULT BANK
// =============================================================================

// DefaultBank returns the built-in category bank. Declaration order is match
// priority; greeting and farewell sit first because their patterns are the
// cheapest and most exact.
func DefaultBank() *Bank {
	return &Bank{Categories: []CategoryDef{
		{
			Category: types.CategoryGreeting,
			Patterns: []string{
				`(?i)^(?:hi|hello|hey|good (?:morning|afternoon|evening)|greetings)\b`,
				`(?i)^(?:yo|howdy)\b`,
			},
			Examples: []string{
				"hello there",
				"hi, how are you",
				"good morning",
				"hey, what's up",
			},
		},
		{
			Category: types.CategoryFarewell,
			Patterns: []string{
				`(?i)^(?:bye|goodbye|good night|see you|farewell)\b`,
				`(?i)\b(?:talk to you later|gotta go)\b`,
			},
			Examples: []string{
				"goodbye for now",
				"see you later",
				"I have to go, bye",
			},
		},
		{
			Category: types.CategoryWeather,
			Patterns: []string{
				`(?i)\bweather\b`,
				`(?i)\b(?:forecast|temperature|will it (?:rain|snow))\b`,
			},
			Examples: []string{
				"what's the weather like today",
				"is it going to rain tomorrow",
				"how cold is it outside",
				"weather forecast for the weekend",
			},
			Slots: []extract.SlotSpec{
				{Name: "location", Type: types.EntityLocation, Required: false},
				{Name: "date", Type: types.EntityDate, Required: false},
			},
		},
		{
			Category: types.CategoryNews,
			Patterns: []string{
				`(?i)\b(?:news|headlines|latest on)\b`,
				`(?i)\bwhat(?:'s| is) happening\b`,
			},
			Examples: []string{
				"show me today's headlines",
				"any news about the election",
				"what's happening in the world",
			},
			Slots: []extract.SlotSpec{
				{Name: "topic", Type: types.EntityQuoted, Required: false, Patterns: []string{`(?i)news (?:about|on) (.+)$`}},
			},
		},
		{
			Category: types.CategoryFinance,
			Patterns: []string{
				`(?i)\b(?:stock|share) price\b`,
				`(?i)\$[A-Z]{1,5}\b`,
				`(?i)\b(?:market|portfolio|exchange rate)\b`,
			},
			Examples: []string{
				"how is the stock market doing",
				"what is the share price of apple",
				"convert 100 dollars to euros",
			},
			Slots: []extract.SlotSpec{
				{Name: "ticker", Type: types.EntityTicker, Required: false},
				{Name: "amount", Type: types.EntityMoney, Required: false},
			},
		},
		{
			Category: types.CategoryReminder,
			Patterns: []string{
				`(?i)\bremind me\b`,
				`(?i)\bset (?:a |an )?(?:reminder|alarm|timer)\b`,
			},
			Examples: []string{
				"remind me to call mom at 5pm",
				"set a timer for ten minutes",
				"don't let me forget the meeting tomorrow",
			},
			Slots: []extract.SlotSpec{
				{Name: "what", Type: types.EntityQuoted, Required: true, Patterns: []string{`(?i)remind me (?:to |about )?(.+?)(?:\s+(?:at|in|on|tomorrow|tonight)\b.*)?$`}},
				{Name: "when", Type: types.EntityTime, Required: false},
			},
		},
		{
			Category: types.CategoryExplain,
			Patterns: []string{
				`(?i)^(?:explain|what (?:is|are)|how (?:does|do)|why (?:is|are|does|do))\b`,
				`(?i)\btell me about\b`,
			},
			Examples: []string{
				"explain how photosynthesis works",
				"what is a binary tree",
				"tell me about the french revolution",
			},
			Slots: []extract.SlotSpec{
				{Name: "subject", Type: types.EntityQuoted, Required: false, Patterns: []string{`(?i)^(?:explain|tell me about) (.+)$`}},
			},
		},
		{
			Category: types.CategoryCompare,
			Patterns: []string{
				`(?i)^compare\b`,
				`(?i)\b(?:difference between|versus|vs\.?)\b`,
			},
			Examples: []string{
				"compare python and go",
				"what is the difference between tcp and udp",
				"rust versus c++ for systems work",
			},
		},
		{
			Category: types.CategoryFeedback,
			Patterns: []string{
				`(?i)\b(?:too (?:long|short|technical|wordy)|be brief|more detail|simpler|show me an example)\b`,
				`(?i)^(?:that was|this is) (?:great|wrong|not what)\b`,
			},
			Examples: []string{
				"that answer was too long",
				"can you be more brief",
				"show me an example instead",
			},
		},
		{
			Category: types.CategorySearch,
			Patterns: []string{
				`(?i)^(?:search|find|look (?:up|for)|google)\b`,
				`(?i)\bsearch for\b`,
			},
			Examples: []string{
				"search for vegan recipes",
				"find me a good book on golang",
				"look up the capital of australia",
			},
			Slots: []extract.SlotSpec{
				{Name: "query", Type: types.EntityQuoted, Required: true, Patterns: []string{`(?i)^(?:search(?: for)?|find(?: me)?|look (?:up|for)|google) (.+)$`}},
			},
		},
	}}
}
