package sentiment

import (
	"testing"

	"github.com/selivandex/crypto-pulse/pkg/models"
)

func TestAnalyzer_Classify(t *testing.T) {
	analyzer := NewAnalyzer()

	tests := []struct {
		name     string
		title    string
		body     string
		expected string
	}{
		{
			name:     "bullish text",
			title:    "Bitcoin rally continues",
			body:     "bulls in control, massive pump, moon rocket",
			expected: models.SentimentPositive,
		},
		{
			name:     "bearish text",
			title:    "Market crash imminent",
			body:     "massive dump expected, panic selloff, liquidation",
			expected: models.SentimentNegative,
		},
		{
			name:     "neutral text",
			title:    "Bitcoin price remains stable today",
			body:     "trading at current levels",
			expected: models.SentimentNeutral,
		},
		{
			name:     "empty text",
			title:    "",
			body:     "",
			expected: models.SentimentNeutral,
		},
		{
			name:     "title only",
			title:    "huge rally and breakout, bullish surge",
			body:     "",
			expected: models.SentimentPositive,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			label, polarity := analyzer.Classify(tt.title, tt.body)

			if label != tt.expected {
				t.Errorf("Expected %s sentiment, got %s (polarity: %.3f)",
					tt.expected, label, polarity)
			}
		})
	}
}

func TestAnalyzer_ClassifyDeterministic(t *testing.T) {
	analyzer := NewAnalyzer()

	title := "Bitcoin ETF approved, institutional adoption incoming"
	body := "bullish breakout above resistance"

	firstLabel, firstPolarity := analyzer.Classify(title, body)
	for i := 0; i < 20; i++ {
		label, polarity := analyzer.Classify(title, body)
		if label != firstLabel || polarity != firstPolarity {
			t.Fatalf("classification not deterministic: (%s, %.4f) vs (%s, %.4f)",
				label, polarity, firstLabel, firstPolarity)
		}
	}
}

func TestAnalyzer_DeadbandIsNeutral(t *testing.T) {
	analyzer := NewAnalyzer()

	// One weak positive word diluted by many neutral ones lands inside the
	// ±0.1 deadband.
	label, polarity := analyzer.Classify(
		"the network saw a small rise in activity this week according to several reports",
		"",
	)

	if polarity <= -0.1 || polarity > 0.1 {
		t.Fatalf("expected polarity inside deadband, got %.4f", polarity)
	}
	if label != models.SentimentNeutral {
		t.Errorf("expected neutral inside deadband, got %s", label)
	}
}

func TestAnalyzer_PolarityRange(t *testing.T) {
	analyzer := NewAnalyzer()

	texts := []string{
		"bullish rally pump moon rocket",
		"bearish crash dump panic",
		"neutral stable sideways",
	}

	for _, text := range texts {
		score := analyzer.Polarity(text)

		if score < -1.0 || score > 1.0 {
			t.Errorf("Score should be between -1.0 and 1.0, got %.3f for: %s",
				score, text)
		}
	}
}
