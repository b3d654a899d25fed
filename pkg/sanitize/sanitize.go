// Package sanitize neutralizes untrusted log fields before they reach a
// terminal. Addresses, request lines and user agents come straight from the
// access log and may carry escape sequences.
package sanitize

import (
	"net/netip"
	"strings"
)

const (
	DefaultMaxDisplayLength = 256

	// MaxAddressLength matches the width of the ip_address column.
	MaxAddressLength = 20
)

// String sanitizes s and truncates the result to maxLen bytes, marking the
// cut with "...". maxLen <= 0 disables truncation.
func String(s string, maxLen int) string {
	sanitized := SanitizeForTerminal(s)

	if maxLen > 0 && len(sanitized) > maxLen {
		if maxLen > 3 {
			return sanitized[:maxLen-3] + "..."
		}
		return sanitized[:maxLen]
	}
	return sanitized
}

func SanitizeForTerminal(s string) string {
	if s == "" || !hasControl(s) {
		return s
	}

	var result strings.Builder
	result.Grow(len(s))

	for i := 0; i < len(s); {
		c := s[i]

		if c == 0x1B {
			i = skipEscape(s, i+1)
			result.WriteString("[ESC]")
			continue
		}

		switch {
		case c == '\t', c == '\n':
			result.WriteByte(' ')
		case c == '\r':
			result.WriteString("[CR]")
		case c < 0x20:
			result.WriteString("[CTRL]")
		case c == 0x7F:
			result.WriteString("[DEL]")
		default:
			result.WriteByte(c)
		}
		i++
	}

	return result.String()
}

func hasControl(s string) bool {
	for i := 0; i < len(s); i++ {
		if c := s[i]; c < 0x20 || c == 0x7F {
			return true
		}
	}
	return false
}

// skipEscape returns the index just past a CSI sequence starting at i, or i
// when the escape is not followed by '['.
func skipEscape(s string, i int) int {
	if i >= len(s) || s[i] != '[' {
		return i
	}
	i++
	for i < len(s) && !isCSITerminator(s[i]) {
		i++
	}
	if i < len(s) {
		i++
	}
	return i
}

func isCSITerminator(c byte) bool {
	return (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z') || c == '@' || c == '`'
}

// Address prepares a source address for display. Well-formed IPs are returned
// in canonical form; anything else is sanitized and cut to MaxAddressLength.
func Address(addr string) string {
	if ip, err := netip.ParseAddr(addr); err == nil {
		return ip.String()
	}
	if addr == "" {
		return "[EMPTY]"
	}
	return String(addr, MaxAddressLength)
}
