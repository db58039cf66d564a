package endogeny

import (
	"math"
	"strings"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"

	"github.com/ppiankov/doaj-reviewer/internal/model"
)

// Matching methods, strongest first
const (
	MethodExact    = "exact_normalized_name"
	MethodInitials = "initials_plus_family_name"
	MethodFuzzy    = "fuzzy_name"
)

// Scores of the deterministic matching methods
const (
	ExactScore    = 1.0
	InitialsScore = 0.97
)

// Similarity returns 1 - editDistance/maxLen over two normalized names
func Similarity(a, b string) float64 {
	longest := max(len([]rune(a)), len([]rune(b)))
	if longest == 0 {
		return 0
	}
	if a == b {
		return 1
	}
	return 1 - float64(levenshtein.ComputeDistance(a, b))/float64(longest)
}

// FuzzyMatch reports the similarity of two normalized names and whether it clears cutoff
func FuzzyMatch(a, b string, cutoff float64) (float64, bool) {
	score := Similarity(a, b)
	return score, score >= cutoff
}

type indexedPerson struct {
	person      model.RolePerson
	normalized  string
	initials    string
	abbreviated bool
}

// Abbreviated reports whether every given name of a normalized name is a
// single initial, as in "j smith" or "j m smith"
func Abbreviated(normalized string) bool {
	tokens := strings.Fields(normalized)
	if len(tokens) < 2 {
		return false
	}
	for _, token := range tokens[:len(tokens)-1] {
		if utf8.RuneCountInString(token) != 1 {
			return false
		}
	}
	return true
}

// Match is the best role person found for one author
type Match struct {
	Author string
	Person model.RolePerson
	Method string
	Score  float64
}

// Matcher looks article authors up in a role-people index
type Matcher struct {
	people     []indexedPerson
	byExact    map[string]indexedPerson
	byInitials map[string][]indexedPerson
	cutoff     float64
}

// NewMatcher indexes people by normalized name and initials key. The first
// person listed wins on exact-name collisions.
func NewMatcher(people []model.RolePerson, fuzzyCutoff float64) *Matcher {
	m := &Matcher{
		byExact:    make(map[string]indexedPerson),
		byInitials: make(map[string][]indexedPerson),
		cutoff:     fuzzyCutoff,
	}
	for _, person := range people {
		normalized := NormalizeName(person.Name)
		if normalized == "" {
			continue
		}
		entry := indexedPerson{
			person:      person,
			normalized:  normalized,
			initials:    InitialsKey(normalized),
			abbreviated: Abbreviated(normalized),
		}
		m.people = append(m.people, entry)
		if _, ok := m.byExact[normalized]; !ok {
			m.byExact[normalized] = entry
		}
		if entry.initials != "" {
			m.byInitials[entry.initials] = append(m.byInitials[entry.initials], entry)
		}
	}
	return m
}

// MatchAuthor finds the strongest match for one author name
func (m *Matcher) MatchAuthor(author string) (Match, bool) {
	normalized := NormalizeName(author)
	if normalized == "" {
		return Match{}, false
	}

	if entry, ok := m.byExact[normalized]; ok {
		return Match{Author: author, Person: entry.person, Method: MethodExact, Score: ExactScore}, true
	}

	// initials match only when one side is abbreviated
	authorAbbreviated := Abbreviated(normalized)
	for _, entry := range m.byInitials[InitialsKey(normalized)] {
		if authorAbbreviated || entry.abbreviated {
			return Match{Author: author, Person: entry.person, Method: MethodInitials, Score: InitialsScore}, true
		}
	}

	var best Match
	found := false
	for _, entry := range m.people {
		score, ok := FuzzyMatch(normalized, entry.normalized, m.cutoff)
		if !ok {
			continue
		}
		if !found || score > best.Score {
			best = Match{Author: author, Person: entry.person, Method: MethodFuzzy, Score: math.Round(score*10000) / 10000}
			found = true
		}
	}
	return best, found
}

// MatchArticle returns the best match among an article's authors
func (m *Matcher) MatchArticle(authors []string) (Match, bool) {
	var best Match
	found := false
	for _, author := range authors {
		match, ok := m.MatchAuthor(author)
		if !ok {
			continue
		}
		if !found || match.Score > best.Score {
			best = match
			found = true
		}
	}
	return best, found
}
