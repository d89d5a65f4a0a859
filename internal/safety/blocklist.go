// blocklist.go: sensitive-content term list used by the text checks
package safety

import (
	"sort"
	"strings"
)

// Built-in blocklist of military and sensitive-content terms, grouped by
// theme. Matching is case-insensitive substring matching, so lexical variants
// such as "anti-tank" or "Military Truck" are caught too.
var blocklistGroups = map[string][]string{
	"vehicles":  {"tank", "armored", "military", "combat", "battle", "war", "defense"},
	"aircraft":  {"fighter", "bomber", "helicopter", "drone", "military aircraft"},
	"ships":     {"warship", "battleship", "destroyer", "submarine", "naval"},
	"weapons":   {"missile", "rocket", "artillery", "cannon", "weapon"},
	"equipment": {"radar", "command", "control", "military base", "barracks"},
}

// Blocklist matches text against a set of sensitive-content terms.
type Blocklist struct {
	terms []string
}

// NewBlocklist builds a blocklist from the built-in term groups plus any
// deployment-specific extra terms. Groups are flattened in sorted key order
// so the term Match reports for a given text never varies between runs;
// matched terms feed metric labels and caller-visible decisions.
func NewBlocklist(extra []string) *Blocklist {
	groups := make([]string, 0, len(blocklistGroups))
	for name := range blocklistGroups {
		groups = append(groups, name)
	}
	sort.Strings(groups)

	var terms []string
	for _, name := range groups {
		terms = append(terms, blocklistGroups[name]...)
	}
	for _, term := range extra {
		term = strings.ToLower(strings.TrimSpace(term))
		if term != "" {
			terms = append(terms, term)
		}
	}
	return &Blocklist{terms: terms}
}

// Match returns the first blocklist term contained in the text, if any.
func (b *Blocklist) Match(text string) (string, bool) {
	lower := strings.ToLower(text)
	for _, term := range b.terms {
		if strings.Contains(lower, term) {
			return term, true
		}
	}
	return "", false
}

// MatchAny checks several strings and returns every matched term.
func (b *Blocklist) MatchAny(texts ...string) []string {
	var matched []string
	for _, text := range texts {
		if text == "" {
			continue
		}
		if term, ok := b.Match(text); ok {
			matched = append(matched, term)
		}
	}
	return matched
}
