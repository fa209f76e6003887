package password

import "strings"

// Profile selects a password policy rule set.
type Profile int

const (
	// ProfileStandard requires 8 characters with mixed case, a digit and a
	// symbol, and rejects a short list of weak substrings.
	ProfileStandard Profile = iota
	// ProfileStrict requires 12 characters and replaces the weak substring
	// rule with common-password, repetition and sequence checks.
	ProfileStrict
)

// Symbols is the punctuation set accepted for the symbol rule.
const Symbols = `!@#$%^&*(),.?":{}|<>`

// Violation is a stable identifier for a failed policy rule.
type Violation string

const (
	ViolationTooShort         Violation = "too_short"
	ViolationMissingUpper     Violation = "missing_uppercase"
	ViolationMissingLower     Violation = "missing_lowercase"
	ViolationMissingDigit     Violation = "missing_digit"
	ViolationMissingSymbol    Violation = "missing_symbol"
	ViolationWeakPattern      Violation = "weak_pattern"
	ViolationCommonPassword   Violation = "common_password"
	ViolationRepeatedChars    Violation = "repeated_characters"
	ViolationSequentialChars  Violation = "sequential_characters"
	ViolationLettersThenDigit Violation = "letters_then_digits"
)

var violationMessages = map[Violation]string{
	ViolationTooShort:         "password is too short",
	ViolationMissingUpper:     "password must contain an uppercase letter",
	ViolationMissingLower:     "password must contain a lowercase letter",
	ViolationMissingDigit:     "password must contain a digit",
	ViolationMissingSymbol:    "password must contain a symbol from " + Symbols,
	ViolationWeakPattern:      "password contains a common weak pattern",
	ViolationCommonPassword:   "password is too common",
	ViolationRepeatedChars:    "password must not repeat a character 4 or more times in a row",
	ViolationSequentialChars:  "password must not contain obvious sequences",
	ViolationLettersThenDigit: "password must not be only letters followed by digits",
}

// Message returns a human readable description of v.
func (v Violation) Message() string {
	if msg, ok := violationMessages[v]; ok {
		return msg
	}
	return string(v)
}

var commonPasswords = map[string]struct{}{
	"password": {}, "admin": {}, "administrator": {}, "root": {}, "user": {},
	"guest": {}, "test": {}, "123456": {}, "123456789": {}, "qwerty": {},
	"abc123": {}, "password123": {}, "admin123": {}, "welcome": {}, "monkey": {},
	"dragon": {}, "master": {}, "superman": {}, "football": {}, "baseball": {},
	"princess": {},
}

var weakPatterns = []string{"123456", "password", "qwerty", "abc123", "admin"}

var sequences = []string{
	"012", "123", "234", "345", "456", "567", "678", "789", "890",
	"abc", "bcd", "cde", "def",
}

const lettersThenDigitsMaxLen = 15

// Policy validates candidate passwords. The zero value is the standard
// profile with its default minimum length.
type Policy struct {
	Profile Profile
	// MinLength overrides the profile default when > 0.
	MinLength int
}

// NewPolicy returns a policy for profile with its default minimum length.
func NewPolicy(profile Profile) Policy {
	return Policy{Profile: profile}
}

// EffectiveMinLength returns the minimum length applied by Validate.
func (p Policy) EffectiveMinLength() int {
	if p.MinLength > 0 {
		return p.MinLength
	}
	if p.Profile == ProfileStrict {
		return 12
	}
	return 8
}

// Validate returns every rule the candidate violates, in a fixed order.
// An empty result means the candidate is acceptable. Length is counted in
// runes; only ASCII letters satisfy the case rules.
func (p Policy) Validate(candidate string) []Violation {
	var out []Violation

	if len([]rune(candidate)) < p.EffectiveMinLength() {
		out = append(out, ViolationTooShort)
	}

	var upper, lower, digit, symbol bool
	for _, r := range candidate {
		switch {
		case r >= 'A' && r <= 'Z':
			upper = true
		case r >= 'a' && r <= 'z':
			lower = true
		case r >= '0' && r <= '9':
			digit = true
		}
		if strings.ContainsRune(Symbols, r) {
			symbol = true
		}
	}
	if !upper {
		out = append(out, ViolationMissingUpper)
	}
	if !lower {
		out = append(out, ViolationMissingLower)
	}
	if !digit {
		out = append(out, ViolationMissingDigit)
	}
	if !symbol {
		out = append(out, ViolationMissingSymbol)
	}

	folded := strings.ToLower(candidate)
	if p.Profile != ProfileStrict {
		for _, pattern := range weakPatterns {
			if strings.Contains(folded, pattern) {
				out = append(out, ViolationWeakPattern)
				break
			}
		}
		return out
	}

	if _, ok := commonPasswords[folded]; ok {
		out = append(out, ViolationCommonPassword)
	}
	if hasRepeatRun(candidate, 4) {
		out = append(out, ViolationRepeatedChars)
	}
	for _, seq := range sequences {
		if strings.Contains(folded, seq) {
			out = append(out, ViolationSequentialChars)
			break
		}
	}
	if isLettersThenDigits(candidate) && len(candidate) <= lettersThenDigitsMaxLen {
		out = append(out, ViolationLettersThenDigit)
	}

	return out
}

func hasRepeatRun(s string, n int) bool {
	var (
		prev rune
		run  int
	)
	for i, r := range s {
		if i > 0 && r == prev {
			run++
		} else {
			run = 1
		}
		if run >= n {
			return true
		}
		prev = r
	}
	return false
}

// isLettersThenDigits matches ^[A-Za-z]+[0-9]+$.
func isLettersThenDigits(s string) bool {
	i := 0
	for i < len(s) && isASCIILetter(s[i]) {
		i++
	}
	if i == 0 || i == len(s) {
		return false
	}
	for j := i; j < len(s); j++ {
		if s[j] < '0' || s[j] > '9' {
			return false
		}
	}
	return true
}

func isASCIILetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}
