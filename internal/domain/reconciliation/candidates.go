package reconciliation

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/cobranzas/backend/internal/domain/financing"
)

const (
	// minIdentificationDigits is exclusive: identifications need more digits than this to be searched
	minIdentificationDigits = 5
	// taxIDDigits is the length of a tax ID, which embeds the national ID at [2:10]
	taxIDDigits = 11
	// minSurnameLength is exclusive
	minSurnameLength = 2
	// minNameTokenLength is exclusive
	minNameTokenLength = 2
	// minSharedNameTokens is the overlap needed for a name-only match
	minSharedNameTokens = 2
)

var noteIDPattern = regexp.MustCompile(`\b\d{3,7}\b`)

// NoteIDCandidates returns the standalone 3 to 7 digit runs in note, in order
// of appearance and without repeats
func NoteIDCandidates(note string) []string {
	matches := noteIDPattern.FindAllString(note, -1)
	seen := make(map[string]struct{}, len(matches))
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		if _, ok := seen[m]; ok {
			continue
		}
		seen[m] = struct{}{}
		out = append(out, m)
	}
	return out
}

// IdentificationCandidate is a digit string searched for in rule 2
type IdentificationCandidate struct {
	Value string
	// Derived is true for the national ID extracted from a tax ID
	Derived bool
}

// IdentificationCandidates returns the full identification digits and, for an
// 11 digit tax ID, the national ID embedded in it. Identifications with 5 or
// fewer digits yield nothing.
func IdentificationCandidates(raw string) []IdentificationCandidate {
	digits := financing.DigitsOnly(raw)
	if len(digits) <= minIdentificationDigits {
		return nil
	}
	out := []IdentificationCandidate{{Value: digits}}
	if len(digits) == taxIDDigits {
		out = append(out, IdentificationCandidate{Value: digits[2:10], Derived: true})
	}
	return out
}

// ContainsEither reports whether a contains b or b contains a. Empty strings never match.
func ContainsEither(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	return strings.Contains(a, b) || strings.Contains(b, a)
}

// Surname returns the last token of name, lower-cased and stripped of
// trailing punctuation. ok is false when the surname is too short to search.
func Surname(name string) (surname string, ok bool) {
	fields := strings.Fields(name)
	if len(fields) == 0 {
		return "", false
	}
	surname = strings.ToLower(strings.Trim(fields[len(fields)-1], ".,"))
	return surname, utf8.RuneCountInString(surname) > minSurnameLength
}

// NameTokens returns the lower-cased words of name longer than 2 characters,
// with '.' and ',' removed
func NameTokens(name string) map[string]struct{} {
	cleaned := strings.NewReplacer(".", "", ",", "").Replace(strings.ToLower(name))
	tokens := make(map[string]struct{})
	for _, f := range strings.Fields(cleaned) {
		if utf8.RuneCountInString(f) > minNameTokenLength {
			tokens[f] = struct{}{}
		}
	}
	return tokens
}

// SharedTokens counts the tokens present in both sets
func SharedTokens(a, b map[string]struct{}) int {
	if len(a) > len(b) {
		a, b = b, a
	}
	n := 0
	for t := range a {
		if _, ok := b[t]; ok {
			n++
		}
	}
	return n
}

// NamesOverlap reports whether two names share at least two significant words
func NamesOverlap(a, b string) bool {
	return SharedTokens(NameTokens(a), NameTokens(b)) >= minSharedNameTokens
}
