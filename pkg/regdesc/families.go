package regdesc

import (
	"fmt"
	"sort"
	"strings"

	"github.com/alecthomas/participle/v2/lexer"

	"github.com/OpenTraceLab/seracc/pkg/regmap"
)

// DetectFamilies groups names that differ only in one run of decimal digits
// ("DMA1EN", "DMA2EN" -> "DMA{}EN"). Only groups with at least two members
// are returned, sorted by pattern. A name with several digit runs takes part
// in one candidate group per run; groups whose derived family name repeats an
// earlier one are dropped.
func DetectFamilies(names []string) []regmap.FamilySpec {
	groups := make(map[string]map[string]bool)
	for _, name := range names {
		for _, run := range digitRuns(name) {
			pattern := name[:run[0]] + regmap.Placeholder + name[run[1]:]
			if groups[pattern] == nil {
				groups[pattern] = make(map[string]bool)
			}
			groups[pattern][name[run[0]:run[1]]] = true
		}
	}

	patterns := make([]string, 0, len(groups))
	for p, members := range groups {
		if len(members) >= 2 {
			patterns = append(patterns, p)
		}
	}
	sort.Strings(patterns)

	var out []regmap.FamilySpec
	seen := make(map[string]bool)
	for _, p := range patterns {
		name := familyName(p)
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, regmap.FamilySpec{Name: name, Pattern: p})
	}
	return out
}

// digitRuns returns [start, end) of each maximal run of ASCII digits.
func digitRuns(s string) [][2]int {
	var runs [][2]int
	for i := 0; i < len(s); {
		if s[i] < '0' || s[i] > '9' {
			i++
			continue
		}
		j := i
		for j < len(s) && s[j] >= '0' && s[j] <= '9' {
			j++
		}
		runs = append(runs, [2]int{i, j})
		i = j
	}
	return runs
}

func familyName(pattern string) string {
	return strings.Replace(pattern, regmap.Placeholder, "", 1)
}

func declErr(pos lexer.Position, kind, name, format string, args ...any) error {
	return fmt.Errorf("regdesc: %s: %w", pos, &regmap.ConfigurationError{
		Kind:   kind,
		Name:   name,
		Reason: fmt.Sprintf(format, args...),
	})
}
