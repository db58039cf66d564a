package extract

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"

	"github.com/ppiankov/doaj-reviewer/internal/endogeny"
	"github.com/ppiankov/doaj-reviewer/internal/model"
)

var (
	personPattern = regexp.MustCompile("[A-Z][A-Za-z'`\\-]+(?:\\s+[A-Z][A-Za-z'`\\-]+){1,4}")
	primarySplit  = regexp.MustCompile(`\s[-–—]\s|[,;|]`)
	nonLetters    = regexp.MustCompile(`[^\p{L}]`)

	// Ordered: the first keyword found on a line sets the active role
	roleKeywords = []struct {
		keyword string
		role    model.Role
	}{
		{"editor in chief", model.RoleEditor},
		{"editor-in-chief", model.RoleEditor},
		{"managing editor", model.RoleEditor},
		{"editorial board", model.RoleBoardMember},
		{"reviewer", model.RoleReviewer},
	}

	nameStopwords = map[string]bool{
		"journal": true, "editor": true, "reviewer": true, "board": true, "volume": true,
		"issue": true, "university": true, "department": true, "faculty": true, "articles": true,
		"research": true, "authors": true, "about": true, "scope": true, "policy": true,
		"ethics": true, "open": true, "access": true,
	}

	institutionTerms = []string{
		"university", "universidad", "universidade", "università", "université", "universitas",
		"institute", "instituto", "institut", "college", "school", "hospital", "academy",
		"centre", "center", "laboratory", "faculty", "department", "polytechnic", "council",
	}
)

// LooksLikePersonName applies the name heuristics: 4-90 chars, no digits,
// 2-5 tokens, no stopword or institution tokens, mostly capitalised tokens.
func LooksLikePersonName(raw string) bool {
	name := strings.TrimSpace(raw)
	if len(name) < 4 || len(name) > 90 {
		return false
	}
	alpha := 0
	for _, r := range name {
		if unicode.IsDigit(r) {
			return false
		}
		if unicode.IsLetter(r) {
			alpha++
		}
	}
	if alpha < 4 {
		return false
	}

	parts := strings.Fields(name)
	if len(parts) < 2 || len(parts) > 5 {
		return false
	}
	upperStarts := 0
	for _, part := range parts {
		word := nonLetters.ReplaceAllString(strings.ToLower(part), "")
		if nameStopwords[word] || isInstitutionWord(word) {
			return false
		}
		if r := []rune(part)[0]; unicode.IsUpper(r) {
			upperStarts++
		}
	}
	return upperStarts >= max(2, len(parts)-1)
}

func isInstitutionWord(word string) bool {
	for _, term := range institutionTerms {
		if strings.HasPrefix(word, term) {
			return true
		}
	}
	return false
}

// RoleFromLine returns the role a line announces, or current if none
func RoleFromLine(line string, current model.Role) model.Role {
	low := strings.ToLower(line)
	for _, rk := range roleKeywords {
		if strings.Contains(low, rk.keyword) {
			return rk.role
		}
	}
	if strings.Contains(low, "editor") && !strings.Contains(low, "reviewer") {
		return model.RoleEditor
	}
	return current
}

// InstitutionFrom returns the first segment naming an institution
func InstitutionFrom(text string) string {
	for _, segment := range primarySplit.Split(text, -1) {
		segment = strings.TrimSpace(segment)
		low := strings.ToLower(segment)
		for _, term := range institutionTerms {
			if strings.Contains(low, term) {
				return segment
			}
		}
	}
	return ""
}

type peopleCollector struct {
	people []model.RolePerson
	index  map[string]int
	url    string
}

func (c *peopleCollector) add(name string, role model.Role, institution string) {
	name = strings.TrimSpace(name)
	key := endogeny.NormalizeName(name) + "|" + string(role)
	if i, ok := c.index[key]; ok {
		if c.people[i].Institution == "" {
			c.people[i].Institution = institution
		}
		return
	}
	c.index[key] = len(c.people)
	c.people = append(c.people, model.RolePerson{
		Name:        name,
		Role:        role,
		Institution: institution,
		SourceURL:   c.url,
	})
}

// ExtractRolePeople finds named people on an editorial or reviewer page.
// Table rows are read first; then every text line is scanned, with role
// headings switching the active role for the lines that follow.
func ExtractRolePeople(doc *Document, defaultRole model.Role) []model.RolePerson {
	c := &peopleCollector{index: make(map[string]int), url: doc.URL}

	extractTableRows(doc, defaultRole, c)

	active := defaultRole
	for _, line := range doc.Lines() {
		active = RoleFromLine(line, active)

		if primarySplit.MatchString(line) {
			segments := primarySplit.Split(line, 2)
			primary := strings.TrimSpace(segments[0])
			if LooksLikePersonName(primary) {
				c.add(primary, active, InstitutionFrom(segments[1]))
			}
		}

		for _, candidate := range personPattern.FindAllString(line, -1) {
			if LooksLikePersonName(candidate) {
				c.add(candidate, active, "")
			}
		}
	}
	return c.people
}

// extractTableRows reads name | role | affiliation tables
func extractTableRows(doc *Document, defaultRole model.Role, c *peopleCollector) {
	if !strings.Contains(strings.ToLower(doc.RawHTML), "<table") {
		return
	}
	gq, err := goquery.NewDocumentFromReader(strings.NewReader(doc.RawHTML))
	if err != nil {
		return
	}

	gq.Find("table").Each(func(_ int, table *goquery.Selection) {
		tableRole := defaultRole
		if caption := table.Find("caption").First().Text(); caption != "" {
			tableRole = RoleFromLine(caption, tableRole)
		}
		table.Find("tr").Each(func(_ int, row *goquery.Selection) {
			var name, institution string
			role := tableRole
			row.Find("td, th").Each(func(_ int, cell *goquery.Selection) {
				text := strings.TrimSpace(anySpace.ReplaceAllString(cell.Text(), " "))
				switch {
				case text == "":
				case name == "" && LooksLikePersonName(text):
					name = text
				case institution == "" && InstitutionFrom(text) != "":
					institution = InstitutionFrom(text)
				default:
					role = RoleFromLine(text, role)
				}
			})
			if name != "" {
				c.add(name, role, institution)
			}
		})
	})
}
