package gap

import (
	"regexp"
	"strings"
)

// skillStrategy reads required skills out of a located section. Strategies
// are tried in order and the first non-empty result wins.
type skillStrategy struct {
	name    string
	extract func(section string) []Skill
}

var requiredSkillStrategies = []skillStrategy{
	{"table", skillsFromTable},
	{"list", skillsFromList},
	{"loose-table", skillsFromLooseTable},
}

var skillHeaderLabels = map[string]bool{
	"category":    true,
	"core skills": true,
	"skill":       true,
	"skills":      true,
	"name":        true,
}

// ExtractRequiredSkills returns the deduplicated required skills listed in
// the "required skills" section of text, in source order.
func ExtractRequiredSkills(text string) []Skill {
	skills, _ := extractRequiredSkills(text)
	return skills
}

func extractRequiredSkills(text string) ([]Skill, string) {
	section, ok := locateSection(text, requiredSkillsSections)
	if !ok {
		return []Skill{}, ""
	}
	for _, s := range requiredSkillStrategies {
		if skills := dedupSkills(s.extract(section)); len(skills) > 0 {
			return skills, s.name
		}
	}
	return []Skill{}, ""
}

// skillsFromTable reads rows shaped like "| Category | A, B | advanced |".
// Column 2 holds a comma-separated list of names sharing the proficiency in
// column 3. Two-column tables put names in column 1 and the level in column 2.
func skillsFromTable(section string) []Skill {
	var out []Skill
	for _, line := range strings.Split(section, "\n") {
		if !strings.Contains(line, "|") {
			continue
		}
		cells := tableCells(line)
		if len(cells) < 2 || isSeparatorRow(cells) {
			continue
		}
		if skillHeaderLabels[strings.ToLower(cells[0])] || skillHeaderLabels[strings.ToLower(cells[1])] {
			continue
		}

		namesCol, levelCol := cells[1], ""
		if len(cells) >= 3 {
			levelCol = cells[2]
		} else {
			namesCol, levelCol = cells[0], cells[1]
		}
		level := NormalizeProficiency(levelCol)

		for _, raw := range strings.Split(namesCol, ",") {
			name := stripEmphasis(parenthetical.ReplaceAllString(raw, ""))
			if !validSkillName(name) {
				continue
			}
			out = append(out, Skill{Name: name, Proficiency: level})
		}
	}
	return out
}

var listSkill = regexp.MustCompile(`(?:[-•*]|\d+\.)\s*\*\*?([^*]+?)\*\*?(?:\s*\(([^)]+)\))?`)

// skillsFromList reads emphasized bullets such as "- **Docker** (advanced)".
func skillsFromList(section string) []Skill {
	var out []Skill
	for _, m := range listSkill.FindAllStringSubmatch(section, -1) {
		name := strings.TrimSpace(m[1])
		if !validSkillName(name) {
			continue
		}
		out = append(out, Skill{Name: name, Proficiency: NormalizeProficiency(m[2])})
	}
	return out
}

var looseRow = regexp.MustCompile(`\|([^|]+)\|([^|]+)\|([^|]*)\|`)

// skillsFromLooseTable is the last resort for rows that lost their leading
// delimiter or never split cleanly into lines.
func skillsFromLooseTable(section string) []Skill {
	var out []Skill
	for _, m := range looseRow.FindAllStringSubmatch(section, -1) {
		name := strings.TrimSpace(m[2])
		if !validSkillName(name) || separatorCell.MatchString(name) {
			continue
		}
		out = append(out, Skill{Name: name, Proficiency: NormalizeProficiency(m[3])})
	}
	return out
}

func validSkillName(name string) bool {
	return longEnough(name, 2) && !skillHeaderLabels[strings.ToLower(name)] && !separatorCell.MatchString(name)
}

// dedupSkills keeps the first occurrence of each normalized name.
func dedupSkills(skills []Skill) []Skill {
	seen := make(map[string]bool, len(skills))
	out := make([]Skill, 0, len(skills))
	for _, s := range skills {
		key := NormalizeName(s.Name)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, s)
	}
	return out
}
