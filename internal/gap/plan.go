package gap

import (
	"regexp"
	"strings"
)

const (
	maxPlanItems   = 7
	minPlanItemLen = 10
)

// planItem accepts "1.", "**1.**" and bullet markers.
var planItem = regexp.MustCompile(`^\s*\*{0,2}(?:\d+\.|[-•*])\*{0,2}\s*(.+)$`)

// ExtractUpskillingPath returns up to seven ordered steps from the
// "upskilling path" or "action plan" section. The first header found decides
// the section even when it holds no usable steps.
func ExtractUpskillingPath(text string) []string {
	path := []string{}
	section, ok := locateSection(text, upskillingSections)
	if !ok {
		return path
	}
	for _, line := range strings.Split(section, "\n") {
		m := planItem.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		item := strings.TrimSpace(strings.ReplaceAll(m[1], "**", ""))
		if !longEnough(item, minPlanItemLen) {
			continue
		}
		path = append(path, item)
		if len(path) == maxPlanItems {
			break
		}
	}
	return path
}
