package split

import (
	"math"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/yurykabanov/archivist/pkg/domain"
)

// ParseSize reads a split threshold such as "200m" or "1G". Single-letter
// suffixes are binary (k = 1024); longer unit names follow go-humanize.
func ParseSize(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}

	if plain := strings.TrimSpace(strings.TrimRight(s, "bB")); isNumber(plain) && strings.Contains(plain, ".") {
		return 0, domain.ConfigErrorf("split size %q is not a whole number of bytes", s)
	}

	unit := s[len(s)-1]
	if strings.ContainsRune("kKmMgGtT", rune(unit)) && len(s) > 1 && isNumber(s[:len(s)-1]) {
		s = s[:len(s)-1] + strings.ToUpper(string(unit)) + "iB"
	}

	n, err := humanize.ParseBytes(s)
	if err != nil {
		return 0, &domain.Error{Kind: domain.ErrConfig, Message: "invalid split size " + s, Err: err}
	}
	if n == 0 {
		return 0, domain.ConfigErrorf("split size must be positive")
	}
	if n > math.MaxInt64 {
		return 0, domain.ConfigErrorf("split size %s is too large", s)
	}

	return int64(n), nil
}

func isNumber(s string) bool {
	dot := false
	for i, r := range s {
		switch {
		case r >= '0' && r <= '9':
		case r == '.' && !dot && i > 0:
			dot = true
		default:
			return false
		}
	}
	return s != ""
}

// PartCount is the number of parts a file of size bytes is cut into.
func PartCount(size, threshold int64) int {
	if threshold <= 0 || size <= threshold {
		return 1
	}
	return int((size + threshold - 1) / threshold)
}
