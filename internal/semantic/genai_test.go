package semantic

import "testing"

func TestNewGenAIProviderRequiresAPIKey(t *testing.T) {
	if _, err := NewGenAIProvider("", ""); err == nil {
		t.Fatal("empty API key must be rejected")
	}
}

func TestGenAIProviderIdentity(t *testing.T) {
	p := &GenAIProvider{model: "gemini-embedding-001"}

	if p.Dimensions() != 768 {
		t.Errorf("Dimensions() = %d, want 768", p.Dimensions())
	}
	if p.Name() != "genai:gemini-embedding-001" {
		t.Errorf("Name() = %q, want genai:gemini-embedding-001", p.Name())
	}
}
