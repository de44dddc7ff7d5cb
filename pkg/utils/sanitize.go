package utils

import (
	"html"
	"strings"
	"unicode"
)

// SanitizeString removes potentially dangerous characters and escapes HTML
func SanitizeString(input string) string {
	trimmed := strings.TrimSpace(input)
	return html.EscapeString(removeControlChars(trimmed))
}

// SanitizeEmail sanitizes email input
func SanitizeEmail(email string) string {
	return removeControlChars(strings.ToLower(strings.TrimSpace(email)))
}

// SanitizePhone sanitizes phone number input
func SanitizePhone(phone string) string {
	phone = strings.TrimSpace(phone)

	// Keep digits and the usual separators only
	var result strings.Builder
	for _, r := range phone {
		if unicode.IsDigit(r) || r == '+' || r == '-' || r == ' ' || r == '(' || r == ')' {
			result.WriteRune(r)
		}
	}

	return result.String()
}

// removeControlChars removes control characters from string
func removeControlChars(input string) string {
	var result strings.Builder
	for _, r := range input {
		if unicode.IsPrint(r) || unicode.IsSpace(r) {
			result.WriteRune(r)
		}
	}
	return result.String()
}
