package gap

import "fmt"

// Compare grades the user's skills against explicitly required skills
// without a language model. Unlike Synthesize it grades by how far below the
// requirement the user sits, and assumes intermediate when the user gave no
// level.
func (m *Matcher) Compare(required, user []Skill) []Item {
	items := make([]Item, 0, len(required))
	for _, req := range required {
		u, ok := m.find(ruleMatchers, req.Name, user)
		if !ok {
			items = append(items, Item{
				SkillName:           req.Name,
				Status:              StatusMissing,
				RequiredProficiency: req.Proficiency,
				Severity:            SeverityHigh,
				Recommendation:      fmt.Sprintf("Consider learning %s to meet role requirements", req.Name),
			})
			continue
		}
		items = append(items, compareLevels(req, u))
	}
	return items
}

func compareLevels(req, u Skill) Item {
	it := Item{
		SkillName:           req.Name,
		CurrentProficiency:  u.Proficiency,
		RequiredProficiency: req.Proficiency,
	}
	switch have, want := u.Proficiency.Rank(), req.Proficiency.Rank(); {
	case want == 0:
		it.Status, it.Severity = StatusMet, SeverityLow
		it.Recommendation = "Skill present, maintain proficiency"
	case have == 0:
		it.CurrentProficiency = Intermediate
		it.Status, it.Severity = StatusWeak, SeverityMedium
		it.Recommendation = fmt.Sprintf("Improve %s proficiency to %s", req.Name, req.Proficiency)
	case have >= want:
		it.Status, it.Severity = StatusMet, SeverityLow
		it.Recommendation = "Skill requirement met"
	case have >= want-1:
		it.Status, it.Severity = StatusWeak, SeverityMedium
		it.Recommendation = fmt.Sprintf("Improve %s from %s to %s", req.Name, u.Proficiency, req.Proficiency)
	default:
		it.Status, it.Severity = StatusWeak, SeverityHigh
		it.Recommendation = fmt.Sprintf("Significant improvement needed in %s", req.Name)
	}
	return it
}
