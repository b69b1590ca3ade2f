package coins

import (
	"testing"

	"github.com/selivandex/crypto-pulse/pkg/models"
)

func TestDetector_Detect(t *testing.T) {
	detector := NewDetector(nil)

	tests := []struct {
		name     string
		title    string
		body     string
		expected string
	}{
		{
			name:     "bitcoin by name",
			title:    "Bitcoin hits new high",
			body:     "",
			expected: "BTC",
		},
		{
			name:     "symbol in body",
			title:    "price discussion",
			body:     "I moved everything into ETH last week",
			expected: "ETH",
		},
		{
			name:     "case insensitive",
			title:    "SOLANA ecosystem growing",
			body:     "",
			expected: "SOL",
		},
		{
			name:     "no match",
			title:    "general market discussion",
			body:     "nothing specific here",
			expected: models.CoinUnknown,
		},
		{
			name:     "empty text",
			title:    "",
			body:     "",
			expected: models.CoinUnknown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := detector.Detect(tt.title, tt.body)
			if got != tt.expected {
				t.Errorf("Detect(%q, %q) = %q, want %q", tt.title, tt.body, got, tt.expected)
			}
		})
	}
}

func TestDetector_MappingOrderWins(t *testing.T) {
	detector := NewDetector(nil)

	// Both BTC and ETH are mentioned; BTC is declared first.
	got := detector.Detect("Comparing bitcoin and ethereum fees", "")
	if got != "BTC" {
		t.Errorf("expected first mapping to win, got %q", got)
	}

	reversed := NewDetector([]Mapping{
		{Symbol: "ETH", Keywords: []string{"ethereum", "eth"}},
		{Symbol: "BTC", Keywords: []string{"bitcoin", "btc"}},
	})

	got = reversed.Detect("Comparing bitcoin and ethereum fees", "")
	if got != "ETH" {
		t.Errorf("expected first mapping to win with reversed order, got %q", got)
	}
}
