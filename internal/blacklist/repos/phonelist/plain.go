// Package phonelist reads newline-delimited phone lists used to seed the
// blacklist at startup.
package phonelist

import (
	"bufio"
	"io"
	"strings"

	logpkg "github.com/haukened/rr-blacklist/internal/blacklist/common/log"
	"github.com/haukened/rr-blacklist/internal/blacklist/common/phone"
)

// ParsePlainList parses a newline-delimited list of phone numbers.
//
// Behavior:
// - Supports comments starting with '#' (inline or whole-line)
// - Trims surrounding whitespace and a leading BOM
// - Skips empty lines and tokens that do not look like a phone number
// - De-duplicates by canonical phone while preserving first-seen order
func ParsePlainList(r io.Reader, source string, logger logpkg.Logger) ([]string, error) {
	scanner := bufio.NewScanner(r)

	seen := make(map[string]struct{})
	out := make([]string, 0, 256)
	logger.Debug(map[string]any{"source": source}, "parse_phone_list_start")
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimPrefix(scanner.Text(), "\uFEFF")

		if idx := strings.IndexByte(line, '#'); idx >= 0 {
			line = line[:idx]
		}
		p := phone.Canonical(line)
		if p == "" {
			continue
		}
		if !looksLikePhone(p) {
			logger.Debug(map[string]any{"line": lineNum, "raw": p}, "skip_invalid_phone")
			continue
		}
		if _, ok := seen[p]; ok {
			logger.Debug(map[string]any{"line": lineNum, "phone": p}, "skip_duplicate")
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}

	if err := scanner.Err(); err != nil {
		logger.Debug(map[string]any{"source": source, "error": err.Error()}, "parse_phone_list_scan_error")
		return nil, err
	}
	logger.Debug(map[string]any{"source": source, "count": len(out)}, "parse_phone_list_done")
	return out, nil
}

// looksLikePhone accepts digits with an optional leading '+' and the usual
// grouping characters. At least one digit is required.
func looksLikePhone(p string) bool {
	digits := 0
	for i, r := range p {
		switch {
		case r >= '0' && r <= '9':
			digits++
		case r == '+' && i == 0:
		case r == '-' || r == ' ' || r == '(' || r == ')' || r == '.':
		default:
			return false
		}
	}
	return digits > 0
}
