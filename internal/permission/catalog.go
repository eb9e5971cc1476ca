package permission

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// DisplayName derives the human label stored alongside a permission:
// "agenda.study_program.resident.publish" -> "Agenda Study Program Resident Publish".
func DisplayName(name string) string {
	replaced := strings.NewReplacer(".", " ", "_", " ", "-", " ").Replace(name)
	return cases.Title(language.Und).String(strings.Join(strings.Fields(replaced), " "))
}

// ModuleOf returns the segment before the first dot. It is informational
// only and never used for matching.
func ModuleOf(name string) string {
	if i := strings.IndexByte(name, '.'); i >= 0 {
		return name[:i]
	}
	return name
}

// NormalizeNames trims, drops empties and de-duplicates while preserving
// first-seen order.
func NormalizeNames(names []string) []string {
	seen := make(map[string]struct{}, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" {
			continue
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}
