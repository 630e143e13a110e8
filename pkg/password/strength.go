package password

import (
	"fmt"
	"math"
	"regexp"
	"strings"
	"unicode"

	"accountd/pkg/validator"
)

// Score classifies how resistant a password is to guessing attacks, from
// trivially guessable (0) to strong offline-attack resistance (4).
type Score int

const (
	TooGuessable      Score = iota // risky password
	VeryGuessable                  // protection from throttled online attacks only
	SomewhatGuessable              // protection from unthrottled online attacks
	SafelyUnguessable              // moderate protection from offline slow-hash attacks
	VeryUnguessable                // strong protection from offline slow-hash attacks
)

func (s Score) String() string {
	switch s {
	case TooGuessable:
		return "too-guessable"
	case VeryGuessable:
		return "very-guessable"
	case SomewhatGuessable:
		return "somewhat-guessable"
	case SafelyUnguessable:
		return "safely-unguessable"
	case VeryUnguessable:
		return "very-unguessable"
	default:
		return fmt.Sprintf("score(%d)", int(s))
	}
}

// commonPasswords is a curated list of frequently compromised passwords.
// Any case-insensitive match scores TooGuessable outright.
var commonPasswords = map[string]bool{
	"password": true, "password1": true, "password123": true, "passw0rd": true,
	"123456": true, "1234567": true, "12345678": true, "123456789": true,
	"1234567890": true, "qwerty": true, "qwerty123": true, "qwertyuiop": true,
	"abc123": true, "abcd1234": true, "letmein": true, "welcome": true,
	"admin": true, "admin123": true, "administrator": true, "root": true,
	"iloveyou": true, "sunshine": true, "princess": true, "dragon": true,
	"monkey": true, "football": true, "baseball": true, "superman": true,
	"trustno1": true, "master": true, "secret": true, "login": true,
	"guest": true, "testing": true, "1q2w3e4r": true, "1qaz2wsx": true,
	"zaq12wsx": true, "qazwsx": true, "654321": true, "a1b2c3": true,
}

var wordSplitter = regexp.MustCompile(`\W+`)

// SplitInputs extracts the distinct lowercase words of four or more
// characters from context strings such as the user's name and email address.
// The result seeds the scoring dictionary so a password built from the user's
// own details is penalized.
func SplitInputs(inputs ...string) []string {
	seen := make(map[string]bool)
	var result []string
	for _, input := range inputs {
		for _, word := range wordSplitter.Split(input, -1) {
			if len(word) <= 3 {
				continue
			}
			word = strings.ToLower(word)
			if !seen[word] {
				seen[word] = true
				result = append(result, word)
			}
		}
	}
	return result
}

// Estimate scores a candidate password. userInputs are raw context strings
// (name, email); any word from them found inside the password contributes
// nothing to its estimated strength. Plaintext is never logged or retained.
func Estimate(plain string, userInputs ...string) Score {
	if plain == "" {
		return TooGuessable
	}
	if commonPasswords[strings.ToLower(plain)] {
		return TooGuessable
	}

	// Strip dictionary words built from the user's own details before
	// measuring; "jeffry2024" must not score on the strength of "jeffry".
	reduced := strings.ToLower(plain)
	for _, word := range SplitInputs(userInputs...) {
		reduced = strings.ReplaceAll(reduced, word, "")
	}

	bits := entropyBits(plain, len(reduced))

	switch {
	case bits < 28:
		return TooGuessable
	case bits < 36:
		return VeryGuessable
	case bits < 50:
		return SomewhatGuessable
	case bits < 66:
		return SafelyUnguessable
	default:
		return VeryUnguessable
	}
}

// entropyBits estimates strength as effectiveLength * log2(charset size).
// The charset is derived from the full password; the effective length is the
// residue after user-input words are removed.
func entropyBits(plain string, effectiveLength int) float64 {
	if effectiveLength <= 0 {
		return 0
	}

	hasLower, hasUpper, hasDigit, hasSpecial := false, false, false, false
	unique := make(map[rune]bool)
	for _, r := range plain {
		unique[r] = true
		switch {
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsDigit(r):
			hasDigit = true
		default:
			hasSpecial = true
		}
	}

	charset := 0
	if hasLower {
		charset += 26
	}
	if hasUpper {
		charset += 26
	}
	if hasDigit {
		charset += 10
	}
	if hasSpecial {
		charset += 32
	}
	if charset == 0 {
		return 0
	}

	// A password of many repeated runes gets no credit for charset breadth.
	effective := math.Min(float64(charset), float64(len(unique))*4)

	return float64(effectiveLength) * math.Log2(effective)
}

// Policy bundles the password acceptance thresholds applied before hashing.
type Policy struct {
	MinLength int
	MaxLength int
	MinScore  Score
}

// DefaultPolicy mirrors the registration defaults: 8-128 characters and at
// least moderate offline-attack resistance.
func DefaultPolicy() Policy {
	return Policy{
		MinLength: 8,
		MaxLength: 128,
		MinScore:  SafelyUnguessable,
	}
}

// Rules returns validator rules enforcing the policy on a form field.
// userInputs carry the user's own name/email for similarity penalties.
func (p Policy) Rules(field, plain string, userInputs ...string) []validator.Rule {
	return []validator.Rule{
		validator.MinLen(field, plain, p.MinLength),
		validator.MaxLen(field, plain, p.MaxLength),
		{
			Check: func() bool { return Estimate(plain, userInputs...) >= p.MinScore },
			Error: validator.ValidationError{
				Field:   field,
				Message: "is too easy to guess; avoid common words and parts of your name or email",
			},
		},
	}
}
