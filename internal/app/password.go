package app

import (
	"regexp"
	"unicode/utf8"
)

const minPasswordLength = 8

var passwordClasses = []*regexp.Regexp{
	regexp.MustCompile(`[A-Z]`),
	regexp.MustCompile(`[a-z]`),
	regexp.MustCompile(`\d`),
	regexp.MustCompile("[!-/:-@\\[-`{-~]"),
}

// ValidPassword reports whether secret satisfies the credential policy: at
// least eight characters with an upper-case letter, a lower-case letter, a
// digit and an ASCII symbol.
func ValidPassword(secret string) bool {
	if utf8.RuneCountInString(secret) < minPasswordLength {
		return false
	}
	for _, class := range passwordClasses {
		if !class.MatchString(secret) {
			return false
		}
	}
	return true
}
