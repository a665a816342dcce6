package merge

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"
)

var epoch = time.UnixMilli(0).UTC()

var layouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02",
}

// ParseTimestamp interprets an updatedAt value. It accepts RFC 3339 strings,
// zone-less ISO date-times (read as UTC), bare dates and epoch milliseconds
// given as a number or numeric string. Absent or unparsable values map to the
// Unix epoch; it never fails.
func ParseTimestamp(raw json.RawMessage) time.Time {
	if len(raw) == 0 {
		return epoch
	}

	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return epoch
	}

	switch value := v.(type) {
	case float64:
		return fromMillis(value)
	case string:
		s := strings.TrimSpace(value)
		for _, layout := range layouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t.UTC()
			}
		}
		if ms, err := strconv.ParseFloat(s, 64); err == nil {
			return fromMillis(ms)
		}
	}
	return epoch
}

func fromMillis(ms float64) time.Time {
	if math.IsNaN(ms) || math.IsInf(ms, 0) || math.Abs(ms) > 8.64e15 {
		return epoch
	}
	return time.UnixMilli(int64(ms)).UTC()
}
