package davclient

import (
	"fmt"
	"time"
)

// TimeRange is a pair of already-parsed time.Time endpoints for a CalDAV
// time-range filter; WireTimeRange carries the ISO-8601 string form.
type TimeRange struct {
	Start, End time.Time
}

// acceptedTimeLayouts are the ISO-8601 precisions spec §6 accepts:
// "YYYY-MM-DDTHH:MM:SS[.fff][Z|±HH:MM]" or its shorter date-only variant.
var acceptedTimeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// ParseISO8601 parses s against the layouts spec §6 accepts, returning
// KindInvalidTimeRange on failure.
func ParseISO8601(s string) (time.Time, error) {
	for _, layout := range acceptedTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, newError(KindInvalidTimeRange, fmt.Sprintf("time value %q is not ISO-8601", s))
}

// basicFormat renders t as the compressed "YYYYMMDDTHHMMSSZ" wire format
// spec §6 describes: toISOString().slice(0,19) with "-:." stripped, always
// in UTC.
func basicFormat(t time.Time) string {
	return t.UTC().Format("20060102T150405") + "Z"
}

// validateTimeRange parses both endpoints of raw, returning the basic-format
// wire strings, or KindInvalidTimeRange if either endpoint fails to parse.
func validateTimeRange(start, end string) (startWire, endWire string, err error) {
	startT, err := ParseISO8601(start)
	if err != nil {
		return "", "", newError(KindInvalidTimeRange, "invalid time-range start: "+start)
	}
	endT, err := ParseISO8601(end)
	if err != nil {
		return "", "", newError(KindInvalidTimeRange, "invalid time-range end: "+end)
	}
	return basicFormat(startT), basicFormat(endT), nil
}
