package gap

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// sectionPattern finds the body of one labeled section: everything after the
// first header match up to the first terminator match, or to end of text.
type sectionPattern struct {
	name  string
	start *regexp.Regexp
	end   *regexp.Regexp // nil means the body runs to end of text
}

func (p sectionPattern) find(text string) (string, bool) {
	loc := p.start.FindStringIndex(text)
	if loc == nil {
		return "", false
	}
	body := text[loc[1]:]
	if p.end != nil {
		if e := p.end.FindStringIndex(body); e != nil {
			body = body[:e[0]]
		}
	}
	return body, true
}

// locateSection tries patterns in order and returns the first body found.
func locateSection(text string, patterns []sectionPattern) (string, bool) {
	for _, p := range patterns {
		if body, ok := p.find(text); ok {
			return body, true
		}
	}
	return "", false
}

var (
	requiredSkillsEnd = regexp.MustCompile(`(?i)\n\s*\*\*?2\.|SKILL\s+GAP`)
	skillGapEnd       = regexp.MustCompile(`(?i)\n\s*\*\*?3\.|HOW\s+TO\s+START`)
	numberedHeaderEnd = regexp.MustCompile(`\n\s*\*\*?\d+\.`)
)

var requiredSkillsSections = []sectionPattern{
	{"bold", regexp.MustCompile(`(?i)(?:1\.\s*)?\*\*?REQUIRED\s+SKILLS\*\*?[:\s]*`), requiredSkillsEnd},
	{"bare", regexp.MustCompile(`(?i)(?:1\.\s*)?REQUIRED\s+SKILLS[:\s]*`), requiredSkillsEnd},
	{"for-role", regexp.MustCompile(`(?i)REQUIRED\s+SKILLS\s+for[:\s]*`), requiredSkillsEnd},
}

var skillGapSections = []sectionPattern{
	{"bold", regexp.MustCompile(`(?i)(?:2\.\s*)?\*\*?SKILL\s+GAP\s+ANALYSIS\*\*?[:\s]*`), skillGapEnd},
	{"bare", regexp.MustCompile(`(?i)(?:2\.\s*)?SKILL\s+GAP\s+ANALYSIS[:\s]*`), skillGapEnd},
	{"short", regexp.MustCompile(`(?i)SKILL\s+GAP[:\s]*`), skillGapEnd},
}

var (
	alreadyHaveSection = sectionPattern{"already-have",
		regexp.MustCompile(`(?i)What\s+you\s+already\s+have[:\s]*`),
		regexp.MustCompile(`(?i)What\s+needs`)}
	needsWorkSection = sectionPattern{"needs-work",
		regexp.MustCompile(`(?i)What\s+needs\s+(?:improvement|addition)[:\s]*`),
		numberedHeaderEnd}
)

var upskillingSections = []sectionPattern{
	{"upskilling-path", regexp.MustCompile(`(?i)(?:5\.\s*)?UPSKILLING\s+PATH[:\s]*`), numberedHeaderEnd},
	{"action-plan", regexp.MustCompile(`(?i)ACTION\s+PLAN[:\s]*`), numberedHeaderEnd},
}

// tableCells splits a pipe-delimited row into trimmed cells, dropping the
// empty cells produced by leading and trailing delimiters.
func tableCells(line string) []string {
	line = strings.TrimSpace(line)
	parts := strings.Split(line, "|")
	if strings.HasPrefix(line, "|") {
		parts = parts[1:]
	}
	if strings.HasSuffix(line, "|") && len(parts) > 0 {
		parts = parts[:len(parts)-1]
	}
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

var separatorCell = regexp.MustCompile(`^:?-{3,}:?$`)

// isSeparatorRow reports whether every non-empty cell is a markdown rule.
func isSeparatorRow(cells []string) bool {
	seen := false
	for _, c := range cells {
		if c == "" {
			continue
		}
		if !separatorCell.MatchString(c) {
			return false
		}
		seen = true
	}
	return seen
}

var parenthetical = regexp.MustCompile(`\([^)]+\)`)

func stripEmphasis(s string) string {
	return strings.TrimSpace(strings.Trim(strings.TrimSpace(s), "*_`"))
}

func longEnough(name string, min int) bool {
	return utf8.RuneCountInString(name) > min
}
