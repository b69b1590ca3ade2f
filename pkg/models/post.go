package models

import (
	"database/sql"
	"encoding/json"
	"strings"
	"time"
)

// Sentiment labels
const (
	SentimentPositive = "positive"
	SentimentNeutral  = "neutral"
	SentimentNegative = "negative"
)

// CoinUnknown is the keyword-stage label for posts matching no coin
const CoinUnknown = "UNKNOWN"

// RawPost is a post as fetched from the source, before enrichment
type RawPost struct {
	ID         string      `json:"id"`
	Title      string      `json:"title"`
	Selftext   string      `json:"selftext"`
	Subreddit  string      `json:"subreddit"`
	URL        string      `json:"url"`
	CreatedRaw interface{} `json:"created_utc"` // unix seconds, ISO string or native instant
}

// Post is an enriched post as persisted
type Post struct {
	ID           string          `json:"id" db:"id"`
	Title        string          `json:"title" db:"title"`
	Selftext     string          `json:"selftext" db:"selftext"`
	Subreddit    string          `json:"subreddit" db:"subreddit"`
	URL          string          `json:"url" db:"url"`
	CreatedRaw   string          `json:"created_raw" db:"created_raw"`
	CreatedAt    sql.NullTime    `json:"created_at" db:"created_at"` // normalized, NULL when unparseable
	Sentiment    string          `json:"sentiment" db:"sentiment"`
	Polarity     float64         `json:"polarity" db:"polarity"`
	Coin         string          `json:"coin" db:"coin"`
	CoinML       sql.NullString  `json:"coin_ml" db:"coin_ml"`
	MLConfidence sql.NullFloat64 `json:"ml_confidence" db:"ml_confidence"`
	FetchedAt    time.Time       `json:"fetched_at" db:"fetched_at"`
}

// Text returns the text used for classification: title and body joined
// with a space, empty fields as empty strings.
func (p *Post) Text() string {
	return p.Title + " " + p.Selftext
}

// SentimentLabel resolves the stored sentiment value to a plain label.
// Earlier pipeline versions wrote a JSON object {"label": ..., "polarity": ...}
// into the sentiment column; current ones write the bare label.
func SentimentLabel(stored string) string {
	s := strings.TrimSpace(stored)
	if s == "" {
		return SentimentNeutral
	}

	if strings.HasPrefix(s, "{") {
		var nested struct {
			Label     string `json:"label"`
			Sentiment string `json:"sentiment"`
		}
		if err := json.Unmarshal([]byte(s), &nested); err == nil {
			if nested.Label != "" {
				s = nested.Label
			} else if nested.Sentiment != "" {
				s = nested.Sentiment
			}
		}
	}

	switch strings.ToLower(s) {
	case SentimentPositive, SentimentNegative, SentimentNeutral:
		return strings.ToLower(s)
	default:
		return SentimentNeutral
	}
}

// CoinLabel returns the effective coin label, preferring the ML stage result
func (p *Post) CoinLabel() string {
	if p.CoinML.Valid && p.CoinML.String != "" {
		return p.CoinML.String
	}
	return p.Coin
}
