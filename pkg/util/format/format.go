package format

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	_  = iota // ignore first value
	KB = 1 << (10 * iota)
	MB
	GB
	TB
)

// FormatBytes formats bytes into human-readable units, avoiding .00 for whole numbers.
func FormatBytes(b int64) string {
	val := float64(b)
	var unit string

	switch {
	case b >= TB:
		val /= float64(TB)
		unit = "TB"
	case b >= GB:
		val /= float64(GB)
		unit = "GB"
	case b >= MB:
		val /= float64(MB)
		unit = "MB"
	case b >= KB:
		val /= float64(KB)
		unit = "KB"
	default:
		return fmt.Sprintf("%dB", b)
	}

	if val == float64(int(val)) {
		return fmt.Sprintf("%.0f%s", val, unit)
	}
	return fmt.Sprintf("%.2f%s", val, unit)
}

var units = []struct {
	suffix string
	mult   uint64
}{
	{"TB", TB}, {"GB", GB}, {"MB", MB}, {"KB", KB},
	{"T", TB}, {"G", GB}, {"M", MB}, {"K", KB},
	{"B", 1},
}

// ParseBytes parses a size such as "4MB", "1.5k" or "512". Units are binary
// and case-insensitive.
func ParseBytes(s string) (uint64, error) {
	str := strings.ToUpper(strings.TrimSpace(s))
	if str == "" {
		return 0, fmt.Errorf("invalid size %q", s)
	}

	mult := uint64(1)
	for _, u := range units {
		if strings.HasSuffix(str, u.suffix) {
			str = strings.TrimSpace(strings.TrimSuffix(str, u.suffix))
			mult = u.mult
			break
		}
	}

	if n, err := strconv.ParseUint(str, 10, 64); err == nil {
		if n > 0 && mult > ^uint64(0)/n {
			return 0, fmt.Errorf("size %q overflows", s)
		}
		return n * mult, nil
	}

	f, err := strconv.ParseFloat(str, 64)
	if err != nil || f < 0 {
		return 0, fmt.Errorf("invalid size %q", s)
	}
	v := f * float64(mult)
	if v >= float64(^uint64(0)) {
		return 0, fmt.Errorf("size %q overflows", s)
	}
	return uint64(v), nil
}
