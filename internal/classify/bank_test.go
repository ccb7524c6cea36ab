package classify

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"parley/internal/types"
)

const testBankYAML = `categories:
  - category: weather
    patterns:
      - '(?i)\bweather\b'
    examples:
      - "what's the forecast"
    slots:
      - name: location
        type: location
  - category: search
    patterns:
      - '(?i)^search\b'
    examples:
      - "search the web"
`

func TestLoadBankFromYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bank.yaml")
	if err := os.WriteFile(path, []byte(testBankYAML), 0o644); err != nil {
		t.Fatal(err)
	}

	bank, err := LoadBank(path)
	if err != nil {
		t.Fatalf("LoadBank() failed: %v", err)
	}
	if len(bank.Categories) != 2 {
		t.Fatalf("got %d categories, want 2", len(bank.Categories))
	}
	if bank.Categories[0].Category != types.CategoryWeather {
		t.Errorf("first category = %s, want weather (declared order is priority)", bank.Categories[0].Category)
	}
	if len(bank.Categories[0].Slots) != 1 || bank.Categories[0].Slots[0].Name != "location" {
		t.Errorf("weather slots = %+v", bank.Categories[0].Slots)
	}
}

func TestLoadBankRejectsEmptyAndMissing(t *testing.T) {
	if _, err := LoadBank(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("missing file should be an error")
	}

	path := filepath.Join(t.TempDir(), "empty.yaml")
	os.WriteFile(path, []byte("categories: []\n"), 0o644)
	if _, err := LoadBank(path); err == nil {
		t.Error("bank with no categories should be an error")
	}
}

func TestBankStoreRejectsBadPattern(t *testing.T) {
	bad := &Bank{Categories: []CategoryDef{
		{Category: types.CategorySearch, Patterns: []string{`([unclosed`}},
	}}
	if _, err := NewBankStore(bad); err == nil {
		t.Error("invalid pattern must fail compilation")
	}
}

func TestReloadPreservesLearnedExamples(t *testing.T) {
	store, err := NewBankStore(DefaultBank())
	if err != nil {
		t.Fatal(err)
	}

	store.AddLearnedExample(types.CategorySearch, "dig up info on quantum computing")
	store.AddLearnedExample(types.CategorySearch, "dig up info on quantum computing") // duplicate ignored
	if store.LearnedCount() != 1 {
		t.Fatalf("learned count = %d, want 1", store.LearnedCount())
	}

	if err := store.Reload(DefaultBank()); err != nil {
		t.Fatalf("Reload() failed: %v", err)
	}
	if store.LearnedCount() != 1 {
		t.Errorf("learned examples lost on reload: count = %d", store.LearnedCount())
	}

	_, _, learned := store.snapshot()
	if len(learned) != 1 || learned[0].category != types.CategorySearch {
		t.Errorf("learned snapshot = %+v", learned)
	}
}

func TestLearnedExampleIgnoresUnknownAndEmpty(t *testing.T) {
	store, err := NewBankStore(DefaultBank())
	if err != nil {
		t.Fatal(err)
	}
	store.AddLearnedExample(types.CategoryUnknown, "whatever")
	store.AddLearnedExample(types.CategorySearch, "")
	if store.LearnedCount() != 0 {
		t.Errorf("learned count = %d, want 0", store.LearnedCount())
	}
}

func TestWatchHotReloadsBank(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bank.yaml")
	if err := os.WriteFile(path, []byte(testBankYAML), 0o644); err != nil {
		t.Fatal(err)
	}

	bank, err := LoadBank(path)
	if err != nil {
		t.Fatal(err)
	}
	store, err := NewBankStore(bank)
	if err != nil {
		t.Fatal(err)
	}
	if err := store.Watch(path); err != nil {
		t.Fatalf("Watch() failed: %v", err)
	}
	defer store.Close()

	updated := testBankYAML + `  - category: news
    patterns:
      - '(?i)\bnews\b'
`
	if err := os.WriteFile(path, []byte(updated), 0o644); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		categories, _, _ := store.snapshot()
		if len(categories) == 3 {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("bank was not hot-reloaded within deadline")
}

func TestWatchKeepsOldBankOnBadReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bank.yaml")
	if err := os.WriteFile(path, []byte(testBankYAML), 0o644); err != nil {
		t.Fatal(err)
	}

	bank, _ := LoadBank(path)
	store, err := NewBankStore(bank)
	if err != nil {
		t.Fatal(err)
	}
	if err := store.Watch(path); err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	if err := os.WriteFile(path, []byte("categories: [\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	// Give the watcher a moment; the broken file must not evict the bank.
	time.Sleep(300 * time.Millisecond)
	categories, _, _ := store.snapshot()
	if len(categories) != 2 {
		t.Errorf("bad reload should keep the previous bank, got %d categories", len(categories))
	}
}
