// utils/validation.go
package utils

import (
	"regexp"
	"strings"
)

var phonePattern = regexp.MustCompile(`^\+?\d{7,15}$`)

// ValidatePhone accepts international (+90..., 0090...) and national
// (05..., 5...) spellings, with spaces, dashes and brackets ignored.
func ValidatePhone(phone string) bool {
	cleaned := strings.NewReplacer(" ", "", "-", "", "(", "", ")", "", ".", "").Replace(phone)
	if !phonePattern.MatchString(cleaned) {
		return false
	}
	n := len(NormalizePhone(cleaned))
	return n >= 7 && n <= 12
}

// NormalizePhone reduces a Turkish phone number to its national significant
// number, so "+90 555 123 45 67", "0090 5551234567", "05551234567" and
// "5551234567" all yield "5551234567".
func NormalizePhone(phone string) string {
	var b strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()

	digits = strings.TrimPrefix(digits, "00")
	if len(digits) == 12 && strings.HasPrefix(digits, "90") {
		digits = digits[2:]
	}
	return strings.TrimPrefix(digits, "0")
}
