// Package signature provides pattern signature generation for
// vulnerability findings. A pattern signature is a normalized
// fingerprint of a vulnerability's shape: two findings of the same
// category with the same code shape produce the same signature even
// when they sit in different files, which is what lets the learning
// store recognize recurring issues.
package signature

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"unicode"
)

// Input contains the data needed to generate a pattern signature.
type Input struct {
	// Vulnerability category (e.g., "SQL_INJECTION")
	Category string

	// Rule/check identifier that detected the finding
	RuleID string

	// Offending code snippet; normalized before hashing so that
	// literal values and formatting do not split the pattern
	Snippet string
}

// Generate creates a pattern signature for the given input.
// The signature is a SHA256 hash (64 hex characters) over the
// category, rule, and the snippet's normalized shape.
//
// Location data is deliberately excluded: the same injection pattern
// on line 10 of one file and line 400 of another must collapse to one
// signature, or the learning store would never see a repeat.
func Generate(input Input) string {
	data := fmt.Sprintf("pattern:%s:%s:%s",
		normalize(input.Category),
		normalize(input.RuleID),
		NormalizeSnippet(input.Snippet),
	)
	return Hash(data)
}

// GeneratePattern creates a pattern signature from the common fields.
// This is a convenience wrapper around Generate.
func GeneratePattern(category, ruleID, snippet string) string {
	return Generate(Input{Category: category, RuleID: ruleID, Snippet: snippet})
}

// Hash computes SHA256 hash of the input string.
// Returns 64 hex characters.
func Hash(s string) string {
	h := sha256.Sum256([]byte(s))
	return hex.EncodeToString(h[:])
}

// NormalizeSnippet reduces a code snippet to its shape:
//   - string literals are replaced with a placeholder
//   - numeric literals are replaced with a placeholder
//   - whitespace runs collapse to a single space
//   - the result is lowercased and trimmed
//
// "SELECT * FROM users WHERE id = '42'" and
// "select * from users where id='abc'" normalize identically.
func NormalizeSnippet(s string) string {
	s = replaceStringLiterals(s)
	s = replaceNumbers(s)
	s = collapseWhitespace(s)
	return strings.ToLower(strings.TrimSpace(s))
}

// normalize cleans up a string for consistent signatures.
func normalize(s string) string {
	s = strings.TrimSpace(s)
	s = strings.ToLower(s)
	return s
}

// replaceStringLiterals substitutes quoted literals ('...', "...", `...`)
// with the placeholder <str>. Unterminated literals consume the rest
// of the snippet.
func replaceStringLiterals(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	var quote rune
	for _, r := range s {
		if quote != 0 {
			if r == quote {
				quote = 0
			}
			continue
		}
		if r == '\'' || r == '"' || r == '`' {
			quote = r
			b.WriteString("<str>")
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// replaceNumbers substitutes digit runs with the placeholder <num>.
func replaceNumbers(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	inNumber := false
	for _, r := range s {
		if unicode.IsDigit(r) {
			if !inNumber {
				b.WriteString("<num>")
				inNumber = true
			}
			continue
		}
		inNumber = false
		b.WriteRune(r)
	}
	return b.String()
}

// collapseWhitespace reduces whitespace runs to a single space.
func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
