package types

import "testing"

func TestUnknownIntentFloor(t *testing.T) {
	in := UnknownIntent()
	if in.Category != CategoryUnknown {
		t.Errorf("expected unknown category, got %s", in.Category)
	}
	if in.Confidence != 0 {
		t.Errorf("expected zero confidence, got %f", in.Confidence)
	}
	if in.Source != SourceFallback {
		t.Errorf("expected fallback source, got %s", in.Source)
	}
	if in.Entities == nil || in.Slots == nil {
		t.Error("entity and slot maps must be non-nil")
	}
}

func TestClampConfidence(t *testing.T) {
	cases := []struct {
		in, want float64
	}{
		{-0.5, 0},
		{0, 0},
		{0.42, 0.42},
		{1, 1},
		{1.3, 1},
	}
	for _, tc := range cases {
		if got := ClampConfidence(tc.in); got != tc.want {
			t.Errorf("ClampConfidence(%f) = %f, want %f", tc.in, got, tc.want)
		}
	}
}

func TestStagePriorityOrdering(t *testing.T) {
	if SourcePattern.StagePriority() <= SourceSlot.StagePriority() {
		t.Error("pattern must outrank slot")
	}
	if SourceSlot.StagePriority() <= SourceSemantic.StagePriority() {
		t.Error("slot must outrank semantic")
	}
	if SourceSemantic.StagePriority() <= SourceFallback.StagePriority() {
		t.Error("semantic must outrank fallback")
	}
}

func TestPreferenceActive(t *testing.T) {
	p := Preference{Confidence: 0.66}
	if p.Active() {
		t.Error("preference below 1.0 should not be active")
	}
	p.Confidence = 1.0
	if !p.Active() {
		t.Error("preference at 1.0 should be active")
	}
}
