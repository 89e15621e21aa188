package llm

import "testing"

func TestEstimateCostUSD(t *testing.T) {
	tests := []struct {
		name     string
		provider string
		model    string
		in, out  int
		want     string
		ok       bool
	}{
		{"ollama is free", "ollama", "qwen2.5:7b-instruct-q4_K_M", 5000, 800, "0", true},
		{"haiku", "anthropic", "claude-3-5-haiku-latest", 1_000_000, 1_000_000, "1.5", true},
		{"gpt-4o-mini", "openai", "gpt-4o-mini", 2_000_000, 1_000_000, "0.9", true},
		{"unknown paid model", "openai", "gpt-5", 1000, 1000, "0", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cost, ok := EstimateCostUSD(tt.provider, tt.model, tt.in, tt.out)
			if ok != tt.ok {
				t.Fatalf("ok = %v, want %v", ok, tt.ok)
			}
			if cost.String() != tt.want {
				t.Errorf("cost = %s, want %s", cost, tt.want)
			}
		})
	}
}
