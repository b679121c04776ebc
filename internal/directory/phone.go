package directory

import "strings"

// NormalizePhone reduces a phone number to canonical form: all formatting
// punctuation removed, a "+" prefix, one leading country-code digit. A
// digit string already starting with the country code keeps it; anything
// else gets one prefixed. The output is a fixed point: normalizing an
// already-normalized number, whatever its length, is a no-op.
func NormalizePhone(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	if digits == "" {
		return ""
	}
	if strings.HasPrefix(digits, "1") {
		return "+" + digits
	}
	return "+1" + digits
}

// StripCountryCode removes the "+1" prefix from a normalized number.
func StripCountryCode(phone string) string {
	return strings.TrimPrefix(phone, "+1")
}
