package gap

import "strings"

// Checked most senior first, so "senior beginner-friendly" reads as advanced.
var proficiencyKeywords = []struct {
	level    Proficiency
	keywords []string
}{
	{Expert, []string{"expert", "master"}},
	{Advanced, []string{"advanced", "senior"}},
	{Intermediate, []string{"intermediate", "mid"}},
	{Beginner, []string{"beginner", "junior", "basic"}},
}

// NormalizeProficiency maps free text to a Proficiency by case-insensitive
// keyword containment. Unrecognized or empty text yields ProficiencyNone.
func NormalizeProficiency(text string) Proficiency {
	lower := strings.ToLower(text)
	if strings.TrimSpace(lower) == "" {
		return ProficiencyNone
	}
	for _, rule := range proficiencyKeywords {
		for _, kw := range rule.keywords {
			if strings.Contains(lower, kw) {
				return rule.level
			}
		}
	}
	return ProficiencyNone
}
