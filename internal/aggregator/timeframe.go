package aggregator

import "time"

// Timeframe is a lookback duration for aggregation queries
type Timeframe string

// Supported timeframes
const (
	Timeframe24h Timeframe = "24h"
	Timeframe7d  Timeframe = "7d"
	Timeframe30d Timeframe = "30d"
	Timeframe60d Timeframe = "60d"
)

// ParseTimeframe maps a query value to a timeframe, defaulting unknown
// values to 7d
func ParseTimeframe(s string) Timeframe {
	switch Timeframe(s) {
	case Timeframe24h, Timeframe7d, Timeframe30d, Timeframe60d:
		return Timeframe(s)
	default:
		return Timeframe7d
	}
}

// Duration returns the lookback duration
func (t Timeframe) Duration() time.Duration {
	switch t {
	case Timeframe24h:
		return 24 * time.Hour
	case Timeframe30d:
		return 30 * 24 * time.Hour
	case Timeframe60d:
		return 60 * 24 * time.Hour
	default:
		return 7 * 24 * time.Hour
	}
}

// BucketWidth is a fixed bucket size for the time series
type BucketWidth string

// Supported bucket widths
const (
	WidthHour  BucketWidth = "hour"
	WidthDay   BucketWidth = "day"
	WidthWeek  BucketWidth = "week"
	WidthMonth BucketWidth = "month"
)

// AllWidths lists every supported bucket width
func AllWidths() []BucketWidth {
	return []BucketWidth{WidthHour, WidthDay, WidthWeek, WidthMonth}
}

// ParseBucketWidth maps a query value to a width, defaulting unknown values
// to day. Single-letter pandas-style aliases from the old frontend are
// accepted.
func ParseBucketWidth(s string) BucketWidth {
	switch s {
	case "hour", "H", "h":
		return WidthHour
	case "day", "D", "d":
		return WidthDay
	case "week", "W", "w":
		return WidthWeek
	case "month", "M", "m":
		return WidthMonth
	default:
		return WidthDay
	}
}

// BucketStart returns the deterministic UTC start of the bucket containing t.
// Hours and days truncate, weeks anchor on Monday 00:00 UTC, months on the
// first of the month. Boundaries are reproducible across runs.
func BucketStart(t time.Time, width BucketWidth) time.Time {
	t = t.UTC()

	switch width {
	case WidthHour:
		return t.Truncate(time.Hour)
	case WidthWeek:
		day := t.Truncate(24 * time.Hour)
		// time.Weekday is Sunday-based; shift to ISO Monday
		offset := (int(day.Weekday()) + 6) % 7
		return day.AddDate(0, 0, -offset)
	case WidthMonth:
		return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	default:
		return t.Truncate(24 * time.Hour)
	}
}
