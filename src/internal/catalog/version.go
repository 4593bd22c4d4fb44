package catalog

import (
	"strconv"
	"strings"
)

// IsVersionNewer reports whether version a is strictly newer than version b.
// Versions are loose dotted numerics ("8.3", "10.4.32"), compared segment by
// segment with missing segments treated as zero. An empty b is the unset
// built-in baseline, so any non-empty a is newer than it.
func IsVersionNewer(a, b string) bool {
	if a == "" {
		return false
	}
	if b == "" {
		return true
	}

	as := strings.Split(a, ".")
	bs := strings.Split(b, ".")
	for i := 0; i < len(as) || i < len(bs); i++ {
		av := segment(as, i)
		bv := segment(bs, i)
		if av != bv {
			return av > bv
		}
	}
	return false
}

func segment(parts []string, i int) int {
	if i >= len(parts) {
		return 0
	}
	n, err := strconv.Atoi(strings.TrimSpace(parts[i]))
	if err != nil {
		return 0
	}
	return n
}
