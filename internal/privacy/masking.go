// Package privacy keeps account identifiers out of log output. Phone
// numbers are personal data; logs keep only the last four digits.
package privacy

import "strings"

// MaskAccountID masks a phone-style account id, keeping the + prefix
// and the last four digits. Short values are masked entirely.
func MaskAccountID(accountID string) string {
	if accountID == "" {
		return ""
	}

	prefix := ""
	digits := accountID
	if strings.HasPrefix(accountID, "+") {
		prefix = "+"
		digits = accountID[1:]
	}

	if len(digits) <= 4 {
		return prefix + strings.Repeat("*", len(digits))
	}
	return prefix + strings.Repeat("*", len(digits)-4) + digits[len(digits)-4:]
}
