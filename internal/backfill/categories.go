// internal/backfill/categories.go
package backfill

import (
	"sort"
	"strings"
)

// categoryAliases folds the free-typed category values accumulated by
// listing intake into the canonical vocabulary. A compound alias like
// "hvac and plumbing" expands to every canonical it names.
var categoryAliases = map[string][]string{
	"hvac":                {"hvac"},
	"hvac services":       {"hvac"},
	"heating and cooling": {"hvac"},
	"air conditioning":    {"hvac"},
	"hvac and plumbing":   {"hvac", "plumbing"},

	"plumbing":          {"plumbing"},
	"plumbing services": {"plumbing"},
	"plumbers":          {"plumbing"},

	"electrical":             {"electrical"},
	"electrical services":    {"electrical"},
	"electrical contracting": {"electrical"},
	"electricians":           {"electrical"},

	"mechanical":             {"mechanical"},
	"mechanical services":    {"mechanical"},
	"mechanical contracting": {"mechanical"},

	"roofing":          {"roofing"},
	"roofing services": {"roofing"},
	"roofers":          {"roofing"},

	"landscaping":        {"landscaping"},
	"landscape services": {"landscaping"},
	"lawn care":          {"landscaping"},

	"pest control":  {"pest control"},
	"pest services": {"pest control"},
	"exterminators": {"pest control"},

	"general contracting": {"general contracting"},
	"general contractor":  {"general contracting"},

	"fire protection":      {"fire protection"},
	"fire and life safety": {"fire protection"},
	"fire safety":          {"fire protection"},

	"technology":  {"technology"},
	"tech":        {"technology"},
	"software":    {"technology"},
	"it services": {"technology"},

	"healthcare":  {"healthcare"},
	"health care": {"healthcare"},
	"medical":     {"healthcare"},

	"retail": {"retail"},
}

func foldCategory(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	s = strings.ReplaceAll(s, "&", " and ")
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r == ' ':
			b.WriteRune(r)
		default:
			b.WriteByte(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// NormalizeCategory expands one raw category value into its canonical
// set. Unknown values fold to lowercase and come back with ok=false.
func NormalizeCategory(raw string) ([]string, bool) {
	folded := foldCategory(raw)
	if folded == "" {
		return nil, false
	}
	if canon, ok := categoryAliases[folded]; ok {
		out := make([]string, len(canon))
		copy(out, canon)
		return out, true
	}
	return []string{folded}, false
}

// StandardizeCategories canonicalizes a listing's primary category and
// category array into one union-merged, deduplicated, ascending set.
// The second return counts values that had no canonical mapping.
func StandardizeCategories(primary string, extra []string) ([]string, int) {
	set := make(map[string]bool)
	unknown := 0

	fold := func(raw string) {
		if strings.TrimSpace(raw) == "" {
			return
		}
		canon, ok := NormalizeCategory(raw)
		if !ok {
			unknown++
		}
		for _, c := range canon {
			set[c] = true
		}
	}

	fold(primary)
	for _, raw := range extra {
		fold(raw)
	}

	out := make([]string, 0, len(set))
	for c := range set {
		out = append(out, c)
	}
	sort.Strings(out)
	return out, unknown
}
