package gap

import "fmt"

// Synthesize builds one gap item per required skill by comparing it with the
// user's skills. It is used when a response names the required skills but
// carries no readable gap rows.
func (m *Matcher) Synthesize(required, user []Skill) []Item {
	items := make([]Item, 0, len(required))
	for _, req := range required {
		it := Item{
			SkillName:           req.Name,
			RequiredProficiency: req.Proficiency,
		}

		u, ok := m.find(synthesisMatchers, req.Name, user)
		switch {
		case !ok:
			it.Status, it.Severity = StatusMissing, SeverityHigh
		case u.Proficiency.Known() && req.Proficiency.Known():
			it.CurrentProficiency = u.Proficiency
			if u.Proficiency.Rank() >= req.Proficiency.Rank() {
				it.Status, it.Severity = StatusMet, SeverityLow
			} else {
				it.Status, it.Severity = StatusWeak, SeverityMedium
			}
		default:
			it.CurrentProficiency = u.Proficiency
			it.Status, it.Severity = StatusWeak, SeverityMedium
		}

		if it.Status == StatusMet {
			it.Recommendation = "Maintain proficiency"
		} else {
			it.Recommendation = fmt.Sprintf("Learn/improve %s", req.Name)
		}
		items = append(items, it)
	}
	return items
}
