package coins

import (
	"strings"

	"github.com/selivandex/crypto-pulse/pkg/models"
)

// Mapping binds a coin symbol to its detection keywords
type Mapping struct {
	Symbol   string
	Keywords []string
}

// DefaultMappings is the keyword table applied at ingestion. Order matters:
// the first matching coin wins.
func DefaultMappings() []Mapping {
	return []Mapping{
		{Symbol: "BTC", Keywords: []string{"bitcoin", "btc"}},
		{Symbol: "ETH", Keywords: []string{"ethereum", "eth"}},
		{Symbol: "SOL", Keywords: []string{"solana", "sol"}},
	}
}

// Detector performs the cheap keyword stage of coin attribution
type Detector struct {
	mappings []Mapping
}

// NewDetector creates new keyword detector with the given ordered mappings
func NewDetector(mappings []Mapping) *Detector {
	if len(mappings) == 0 {
		mappings = DefaultMappings()
	}
	return &Detector{mappings: mappings}
}

// Detect scans title+body case-insensitively and returns the first matching
// coin in mapping order, or UNKNOWN when nothing matches.
func (d *Detector) Detect(title, body string) string {
	text := strings.ToLower(title + " " + body)

	for _, m := range d.mappings {
		for _, kw := range m.Keywords {
			if strings.Contains(text, strings.ToLower(kw)) {
				return m.Symbol
			}
		}
	}

	return models.CoinUnknown
}
