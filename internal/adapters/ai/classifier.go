package ai

import "context"

// CandidateCoins is the fixed label set for the zero-shot coin classifier
var CandidateCoins = []string{
	"Bitcoin",
	"Ethereum",
	"Solana",
	"Cardano",
	"Ripple",
	"Dogecoin",
	"Polygon",
	"Polkadot",
	"Other",
}

// Classifier assigns one of the candidate coin labels to free text
type Classifier interface {
	// ClassifyCoin returns the best label and a confidence in [0, 1]
	ClassifyCoin(ctx context.Context, text string) (string, float64, error)

	// GetName returns classifier name
	GetName() string

	// IsEnabled returns whether the classifier is configured
	IsEnabled() bool
}
