package models

import "time"

// SentimentSnapshot is one aggregated sentiment-percentage record for a coin
// and a time bucket. Snapshots are append-only; re-aggregation inserts new
// rows and readers take the latest per bucket.
type SentimentSnapshot struct {
	ID          int64     `json:"-" db:"id"`
	BucketTime  time.Time `json:"timestamp" db:"bucket_time"`
	Coin        string    `json:"coin" db:"coin"`
	BucketWidth string    `json:"bucket_width" db:"bucket_width"`
	Positive    float64   `json:"positive" db:"positive"`
	Neutral     float64   `json:"neutral" db:"neutral"`
	Negative    float64   `json:"negative" db:"negative"`
	Total       int       `json:"total" db:"total"`
	CreatedAt   time.Time `json:"-" db:"created_at"`
}

// SeriesPoint is one element of the query API series
type SeriesPoint struct {
	Timestamp string  `json:"timestamp"` // ISO-8601 UTC bucket start
	Positive  float64 `json:"positive"`
	Neutral   float64 `json:"neutral"`
	Negative  float64 `json:"negative"`
}

// SeriesResponse is the query API payload
type SeriesResponse struct {
	Coin    string        `json:"coin"`
	Frame   string        `json:"frame"`
	Series  []SeriesPoint `json:"series"`
	Message string        `json:"message,omitempty"`
}
