// Package isbn generates lookup candidates from raw scanned codes and
// converts between ISBN-10 and ISBN-13 checksums.
package isbn

import "strings"

// Digits strips every non-digit character from s.
func Digits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Normalize uppercases s and strips everything except digits and 'X', the
// only characters a valid ISBN may carry.
func Normalize(s string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(s) {
		if (r >= '0' && r <= '9') || r == 'X' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// IsValidLength reports whether s has the length of an ISBN-10 or ISBN-13.
func IsValidLength(s string) bool {
	return len(s) == 10 || len(s) == 13
}

// ToISBN13 converts an ISBN-10 to its ISBN-13 form by prepending the 978
// prefix and recomputing the check digit. Returns false if the input is not
// exactly 10 characters or the first 9 are not digits.
func ToISBN13(isbn10 string) (string, bool) {
	if len(isbn10) != 10 {
		return "", false
	}
	prefix := "978" + isbn10[:9]
	sum := 0
	for i, r := range prefix {
		if r < '0' || r > '9' {
			return "", false
		}
		digit := int(r - '0')
		if i%2 == 0 {
			sum += digit
		} else {
			sum += digit * 3
		}
	}
	check := (10 - sum%10) % 10
	return prefix + string(rune('0'+check)), true
}

// ToISBN10 converts a 978-prefixed ISBN-13 back to ISBN-10. The check
// character is computed with weights 10..2; remainder 10 maps to 'X' and
// remainder 11 to '0'.
func ToISBN10(isbn13 string) (string, bool) {
	if len(isbn13) != 13 || !strings.HasPrefix(isbn13, "978") {
		return "", false
	}
	core := isbn13[3:12]
	sum := 0
	for i, r := range core {
		if r < '0' || r > '9' {
			return "", false
		}
		sum += int(r-'0') * (10 - i)
	}
	var check string
	switch remainder := 11 - sum%11; remainder {
	case 10:
		check = "X"
	case 11:
		check = "0"
	default:
		check = string(rune('0' + remainder))
	}
	return core + check, true
}

// Candidates derives the ordered, deduplicated set of identifier candidates
// from one raw scanned code. Order defines search priority: the raw digits
// first, then the UPC-to-EAN variant for 12-digit codes (scanners sometimes
// emit UPC-A for books), then checksum conversions of everything seen so far.
func Candidates(raw string) []string {
	digits := Digits(raw)
	if digits == "" {
		return nil
	}

	candidates := []string{digits}
	if len(digits) == 12 {
		candidates = append(candidates, "0"+digits)
	}
	for _, c := range candidates {
		if len(c) == 10 {
			if isbn13, ok := ToISBN13(c); ok {
				candidates = append(candidates, isbn13)
			}
		}
	}
	for _, c := range candidates {
		if len(c) == 13 {
			if isbn10, ok := ToISBN10(c); ok {
				candidates = append(candidates, isbn10)
			}
		}
	}

	return dedupe(candidates)
}

func dedupe(values []string) []string {
	seen := make(map[string]bool, len(values))
	result := make([]string, 0, len(values))
	for _, v := range values {
		if !seen[v] {
			seen[v] = true
			result = append(result, v)
		}
	}
	return result
}
