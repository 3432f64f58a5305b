// Package email normalizes and validates account and contact addresses.
package email

import (
	"net/mail"
	"strings"
	"unicode"
)

const MaxLen = 254

// Normalize trims and lowercases an address. Addresses compare
// case-insensitively everywhere in the service.
func Normalize(address string) string {
	return strings.ToLower(strings.TrimSpace(address))
}

// IsValid reports whether address is a bare RFC 5322 address with no display
// name.
func IsValid(address string) bool {
	if address == "" || len(address) > MaxLen {
		return false
	}
	parsed, err := mail.ParseAddress(address)
	if err != nil {
		return false
	}
	return parsed.Address == address
}

// DisplayName builds "First Last" from the local part of an address, for
// accounts created without a name.
func DisplayName(address string) string {
	first, last := DeriveNameFromEmail(address)
	return first + " " + last
}

func DeriveNameFromEmail(email string) (string, string) {
	localPart := email
	if at := strings.IndexByte(email, '@'); at > 0 {
		localPart = email[:at]
	}

	parts := strings.FieldsFunc(localPart, func(r rune) bool {
		return r == '.' || r == '_' || r == '-' || r == '+'
	})

	if len(parts) == 0 {
		return "User", "User"
	}

	first := capitalize(parts[0])
	last := "User"
	if len(parts) > 1 {
		last = capitalize(parts[len(parts)-1])
	}

	return first, last
}

func capitalize(s string) string {
	if s == "" {
		return s
	}

	runes := []rune(s)
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}
