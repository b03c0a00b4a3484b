package normalize

import (
	"fmt"
	"slices"
	"strings"

	"github.com/sells-group/roundtable-cli/internal/model"
)

// Report renders the grouping report: for each field, every canonical term
// that absorbed more than one original term, with the originals sorted.
func Report(maps map[string]model.NormalizationMap, fields []string) string {
	var b strings.Builder
	b.WriteString("=== NORMALIZATION REPORT ===\n")
	for _, field := range fields {
		m, ok := maps[field]
		if !ok {
			continue
		}
		fmt.Fprintf(&b, "\n%s\n%s\n", strings.ToUpper(field), strings.Repeat("-", len(field)))

		groups := m.Groups()
		canonical := make([]string, 0, len(groups))
		for c, originals := range groups {
			if len(originals) > 1 {
				canonical = append(canonical, c)
			}
		}
		slices.Sort(canonical)
		for _, c := range canonical {
			fmt.Fprintf(&b, "\nNormalized Term: %s\nOriginal Terms:\n", c)
			for _, o := range groups[c] {
				fmt.Fprintf(&b, "  - %s\n", o)
			}
		}
	}
	return b.String()
}
