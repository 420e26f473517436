package timecalc

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
)

// TimestampLayout is the layout used to print and parse click instants.
// Millisecond precision is the least the drift computation needs.
const TimestampLayout = "2006-01-02T15:04:05.000Z07:00"

// GenerateID creates a unique record ID from the timestamp and a random suffix.
func GenerateID(t time.Time) string {
	return fmt.Sprintf("%s-%s", t.UTC().Format("20060102-150405"), uuid.NewString()[:8])
}

// FormatDuration formats a duration like "3d 4h", "5h 12m", "12m" or "30s".
func FormatDuration(d time.Duration) string {
	seconds := int64(d.Round(time.Second).Seconds())
	if seconds < 0 {
		return "-" + FormatDuration(-d)
	}
	days := seconds / 86400
	h := (seconds % 86400) / 3600
	m := (seconds % 3600) / 60
	s := seconds % 60
	switch {
	case days > 0:
		return fmt.Sprintf("%dd %dh", days, h)
	case h > 0:
		return fmt.Sprintf("%dh %dm", h, m)
	case m > 0:
		return fmt.Sprintf("%dm", m)
	}
	return fmt.Sprintf("%ds", s)
}

// FormatRate formats a daily rate with the conventional sign: the watch's
// gain is printed as "+", its loss as "-". Rates are stored positive-slow,
// so the sign is flipped for display.
func FormatRate(rate float64) string {
	gain := -rate
	if math.Abs(gain) < 0.05 {
		return "±0.0 s/day"
	}
	return fmt.Sprintf("%+.1f s/day", gain)
}

// DescribeRate returns a short human description such as "slow by 5.0s/day".
func DescribeRate(rate float64) string {
	switch {
	case math.Abs(rate) < 0.05:
		return "on time"
	case rate > 0:
		return fmt.Sprintf("slow by %.1fs/day", rate)
	default:
		return fmt.Sprintf("fast by %.1fs/day", -rate)
	}
}

// ParseTimestamp accepts RFC 3339 with or without fractional seconds, or a
// bare date (YYYY-MM-DD, interpreted in loc).
func ParseTimestamp(s string, loc *time.Location) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	for _, layout := range []string{
		"2006-01-02T15:04:05.000",
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05",
		"2006-01-02",
	} {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("cannot parse timestamp %q (want RFC 3339, e.g. 2024-01-02T00:00:05.000Z)", s)
}
