package gap

import (
	"fmt"
	"regexp"
	"slices"
	"strings"
	"unicode"
)

var gapHeaderTokens = map[string]bool{
	"skill":          true,
	"skill name":     true,
	"name":           true,
	"current level":  true,
	"required level": true,
	"---":            true,
	"":               true,
}

// ExtractGapItems reads per-skill gap rows from the "skill gap analysis"
// table. When no row can be read it falls back to the "what you already
// have" and "what needs improvement" narrative sections of the whole text.
func ExtractGapItems(text string) []Item {
	items, _ := extractGapItems(text)
	return items
}

func extractGapItems(text string) ([]Item, string) {
	if section, ok := locateSection(text, skillGapSections); ok {
		if items := gapItemsFromTable(section); len(items) > 0 {
			return items, "table"
		}
	}
	if items := gapItemsFromNarrative(text); len(items) > 0 {
		return items, "narrative"
	}
	return []Item{}, ""
}

func gapItemsFromTable(section string) []Item {
	var out []Item
	for _, line := range strings.Split(section, "\n") {
		if !strings.HasPrefix(strings.TrimSpace(line), "|") {
			continue
		}
		cells := tableCells(line)
		if len(cells) < 2 || isSeparatorRow(cells) {
			continue
		}
		if gapHeaderTokens[strings.ToLower(cells[0])] {
			continue
		}
		col := func(i int) string {
			if i < len(cells) {
				return cells[i]
			}
			return ""
		}

		name := stripEmphasis(col(0))
		if !longEnough(name, 2) {
			continue
		}
		current := strings.ToLower(col(1))
		required := strings.ToLower(col(2))
		status := ParseStatus(col(3))
		if status == "" {
			status = deriveStatus(current, required)
		}
		rec := col(5)
		if rec == "" {
			rec = fmt.Sprintf("Learn/improve %s", name)
		}

		out = append(out, Item{
			SkillName:           name,
			Status:              status,
			CurrentProficiency:  NormalizeProficiency(current),
			RequiredProficiency: NormalizeProficiency(required),
			Severity:            ParseSeverity(col(4)),
			Recommendation:      rec,
		})
	}
	return out
}

var statusSynonyms = map[string]Status{
	"not met":            StatusMissing,
	"unmet":              StatusMissing,
	"absent":             StatusMissing,
	"lacking":            StatusMissing,
	"partial":            StatusWeak,
	"partially met":      StatusWeak,
	"needs improvement":  StatusWeak,
	"meets":              StatusMet,
	"meets requirement":  StatusMet,
	"meets requirements": StatusMet,
	"achieved":           StatusMet,
}

// ParseStatus maps the status column onto a Status. It returns "" for blank
// or unrecognized text so the caller can derive one from the level columns.
// Negated text outside the synonym table ("not yet met") is unrecognized.
func ParseStatus(text string) Status {
	v := strings.Join(strings.Fields(strings.ToLower(stripEmphasis(text))), " ")
	if s := Status(v); s.Valid() {
		return s
	}
	if s, ok := statusSynonyms[v]; ok {
		return s
	}
	words := strings.FieldsFunc(v, func(r rune) bool { return !unicode.IsLetter(r) })
	if slices.ContainsFunc(words, negation) {
		return ""
	}
	has := func(ws ...string) bool {
		return slices.ContainsFunc(words, func(w string) bool { return slices.Contains(ws, w) })
	}
	switch {
	case has("missing", "absent"):
		return StatusMissing
	case has("weak", "partial", "partially"):
		return StatusWeak
	case has("met", "meets"):
		return StatusMet
	}
	return ""
}

func negation(w string) bool {
	switch w {
	case "not", "no", "never", "yet", "without":
		return true
	}
	return strings.HasPrefix(w, "un")
}

// deriveStatus infers a status from the lowercased level columns. Levels
// that differ only in wording, or where current exceeds required, read as
// weak; only textual equality counts as met.
func deriveStatus(current, required string) Status {
	switch {
	case current == "" || strings.Contains(current, "missing") || strings.Contains(current, "none"):
		return StatusMissing
	case strings.Contains(current, "beginner") &&
		(strings.Contains(required, "advanced") || strings.Contains(required, "expert")):
		return StatusWeak
	case required != "" && current == required:
		return StatusMet
	}
	return StatusWeak
}

var (
	haveBullet = regexp.MustCompile(`[-•*]\s*\*\*?([^*]+?)\*\*?`)
	needBullet = regexp.MustCompile(`^\s*[-•*]\s*(.+)$`)
)

const maxNeedItems = 10

func gapItemsFromNarrative(text string) []Item {
	var out []Item

	if have, ok := alreadyHaveSection.find(text); ok {
		for _, m := range haveBullet.FindAllStringSubmatch(have, -1) {
			name := strings.TrimSpace(m[1])
			if !longEnough(name, 2) {
				continue
			}
			out = append(out, Item{
				SkillName:      name,
				Status:         StatusMet,
				Severity:       SeverityLow,
				Recommendation: "Maintain proficiency",
			})
		}
	}

	if need, ok := needsWorkSection.find(text); ok {
		seen := 0
		for _, line := range strings.Split(need, "\n") {
			if seen == maxNeedItems {
				break
			}
			m := needBullet.FindStringSubmatch(line)
			if m == nil {
				continue
			}
			seen++
			name := firstSentence(m[1])
			if i := strings.Index(name, "("); i >= 0 {
				name = name[:i]
			}
			name = stripEmphasis(name)
			if !longEnough(name, 2) {
				continue
			}
			out = append(out, Item{
				SkillName:      name,
				Status:         StatusMissing,
				Severity:       SeverityHigh,
				Recommendation: fmt.Sprintf("Learn %s", name),
			})
		}
	}

	return out
}

// firstSentence cuts s at the first period that ends a sentence, so dotted
// names like "Node.js" survive.
func firstSentence(s string) string {
	for i := 0; i < len(s); i++ {
		if s[i] != '.' {
			continue
		}
		if i+1 == len(s) || s[i+1] == ' ' || s[i+1] == '\t' {
			return s[:i]
		}
	}
	return s
}
