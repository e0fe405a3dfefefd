package normalize

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// XMLTVLayout is the layout used when writing instants back in XMLTV form.
const XMLTVLayout = "20060102150405 -0700"

// ErrInvalidTimestamp is returned for anything that is not a 14-digit XMLTV timestamp
// with an optional ±HHMM offset.
var ErrInvalidTimestamp = errors.New("invalid xmltv timestamp")

// YYYYMMDDHHMMSS, then optional whitespace and a signed HHMM offset
var xmltvTimestamp = regexp.MustCompile(`^(\d{4})(\d{2})(\d{2})(\d{2})(\d{2})(\d{2})(?:\s*([+-])(\d{2})(\d{2}))?$`)

// ParseXMLTVTime parses an XMLTV timestamp into a UTC instant.
// Examples:
//   - "20231225140000"       -> 2023-12-25T14:00:00Z
//   - "20231225140000 +0100" -> 2023-12-25T13:00:00Z
func ParseXMLTVTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	m := xmltvTimestamp.FindStringSubmatch(s)
	if m == nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidTimestamp, s)
	}

	var f [6]int
	for i := range f {
		f[i], _ = strconv.Atoi(m[i+1])
	}

	t := time.Date(f[0], time.Month(f[1]), f[2], f[3], f[4], f[5], 0, time.UTC)
	// time.Date normalises out-of-range fields (month 13, second 60...), reject those
	if t.Year() != f[0] || int(t.Month()) != f[1] || t.Day() != f[2] ||
		t.Hour() != f[3] || t.Minute() != f[4] || t.Second() != f[5] {
		return time.Time{}, fmt.Errorf("%w: %q out of range", ErrInvalidTimestamp, s)
	}

	if m[7] == "" {
		return t, nil
	}

	hours, _ := strconv.Atoi(m[8])
	minutes, _ := strconv.Atoi(m[9])
	if minutes > 59 {
		return time.Time{}, fmt.Errorf("%w: bad offset in %q", ErrInvalidTimestamp, s)
	}
	offset := time.Duration(hours)*time.Hour + time.Duration(minutes)*time.Minute
	if m[7] == "-" {
		offset = -offset
	}

	// +HHMM means local is ahead of UTC
	return t.Add(-offset), nil
}

// ParseFlexibleTime accepts an XMLTV timestamp or an RFC 3339 instant.
func ParseFlexibleTime(s string) (time.Time, error) {
	if t, err := ParseXMLTVTime(s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidTimestamp, s)
	}
	return t.UTC(), nil
}

// FormatXMLTVTime renders t in XMLTV form with a +0000 offset.
func FormatXMLTVTime(t time.Time) string {
	return t.UTC().Format(XMLTVLayout)
}
