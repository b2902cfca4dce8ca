package gap

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractGapItems_TableRow(t *testing.T) {
	text := "**2. SKILL GAP ANALYSIS**\n" +
		"| Skill | Current Level | Required Level | Status | Severity | Recommendation |\n" +
		"|---|---|---|---|---|---|\n" +
		"| Python | intermediate | expert | weak | high | Deepen Python expertise |\n"

	got := ExtractGapItems(text)

	require.Len(t, got, 1)
	assert.Equal(t, Item{
		SkillName:           "Python",
		Status:              StatusWeak,
		CurrentProficiency:  Intermediate,
		RequiredProficiency: Expert,
		Severity:            SeverityHigh,
		Recommendation:      "Deepen Python expertise",
	}, got[0])
}

func TestExtractGapItems_Defaults(t *testing.T) {
	text := "SKILL GAP ANALYSIS:\n" +
		"| Kafka | beginner | advanced |\n" +
		"| Redis | | advanced | | urgent |\n" +
		"| GraphQL | Advanced | advanced | met |\n" +
		"| Spark | expert | advanced |\n" +
		"| Airflow | none | intermediate | | low | Read the docs |\n" +
		"| ML | none | advanced |\n"

	got := ExtractGapItems(text)

	require.Len(t, got, 5)
	assert.Equal(t, StatusWeak, got[0].Status)
	assert.Equal(t, SeverityMedium, got[0].Severity)
	assert.Equal(t, "Learn/improve Kafka", got[0].Recommendation)

	assert.Equal(t, StatusMissing, got[1].Status)
	assert.Equal(t, SeverityMedium, got[1].Severity, "unknown severity falls back to medium")

	assert.Equal(t, StatusMet, got[2].Status)

	// Exceeding the requirement still reads as weak when the wording differs.
	assert.Equal(t, StatusWeak, got[3].Status)
	assert.Equal(t, Expert, got[3].CurrentProficiency)

	assert.Equal(t, StatusMissing, got[4].Status)
	assert.Equal(t, SeverityLow, got[4].Severity)
	assert.Equal(t, "Read the docs", got[4].Recommendation)
}

func TestExtractGapItems_ShortRows(t *testing.T) {
	text := "SKILL GAP ANALYSIS\n" +
		"| Python | beginner |\n" +
		"| Docker |  |\n" +
		"| Rust |\n"

	got := ExtractGapItems(text)

	require.Len(t, got, 2)
	assert.Equal(t, Item{
		SkillName:          "Python",
		Status:             StatusWeak,
		CurrentProficiency: Beginner,
		Severity:           SeverityMedium,
		Recommendation:     "Learn/improve Python",
	}, got[0])
	assert.Equal(t, "Docker", got[1].SkillName)
	assert.Equal(t, StatusMissing, got[1].Status)
}

func TestExtractGapItems_NegatedStatusIsDerived(t *testing.T) {
	text := "SKILL GAP ANALYSIS\n" +
		"| Kubernetes | none | advanced | Not yet met | high | Study |\n" +
		"| Terraform | beginner | intermediate | not fully met | | |\n" +
		"| Go | advanced | advanced | not yet met | | |\n"

	got := ExtractGapItems(text)

	require.Len(t, got, 3)
	assert.Equal(t, StatusMissing, got[0].Status)
	assert.Equal(t, StatusWeak, got[1].Status)
	assert.Equal(t, StatusMet, got[2].Status, "equal levels still derive met")
}

func TestDeriveStatus(t *testing.T) {
	tests := []struct {
		current, required string
		expected          Status
	}{
		{"", "advanced", StatusMissing},
		{"none", "advanced", StatusMissing},
		{"missing", "", StatusMissing},
		{"beginner", "expert", StatusWeak},
		{"beginner", "advanced", StatusWeak},
		{"advanced", "advanced", StatusMet},
		{"expert", "advanced", StatusWeak},
		{"intermediate", "", StatusWeak},
	}
	for _, tt := range tests {
		t.Run(tt.current+"/"+tt.required, func(t *testing.T) {
			assert.Equal(t, tt.expected, deriveStatus(tt.current, tt.required))
		})
	}
}

func TestParseStatus(t *testing.T) {
	tests := []struct {
		input    string
		expected Status
	}{
		{"met", StatusMet},
		{"Met", StatusMet},
		{"**Weak**", StatusWeak},
		{"Missing", StatusMissing},
		{"not met", StatusMissing},
		{"partially met", StatusWeak},
		{"meets requirement", StatusMet},
		{"Unmet", StatusMissing},
		{"not yet met", ""},
		{"Not fully met", ""},
		{"no longer missing", ""},
		{"met (strong)", StatusMet},
		{"metrics", ""},
		{"unclear", ""},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, ParseStatus(tt.input))
		})
	}
}

func TestParseSeverity(t *testing.T) {
	assert.Equal(t, SeverityHigh, ParseSeverity(" HIGH "))
	assert.Equal(t, SeverityLow, ParseSeverity("low"))
	assert.Equal(t, SeverityMedium, ParseSeverity(""))
	assert.Equal(t, SeverityMedium, ParseSeverity("critical"))
}

func TestExtractGapItems_NarrativeFallback(t *testing.T) {
	text := "Here is my take.\n" +
		"What you already have:\n" +
		"- **Python**\n" +
		"- **SQL**\n" +
		"What needs improvement:\n" +
		"- Kubernetes (container orchestration). Start small.\n" +
		"- Node.js services\n" +
		"- CI\n"

	got := ExtractGapItems(text)

	require.Len(t, got, 4)
	assert.Equal(t, Item{SkillName: "Python", Status: StatusMet, Severity: SeverityLow, Recommendation: "Maintain proficiency"}, got[0])
	assert.Equal(t, "SQL", got[1].SkillName)
	assert.Equal(t, Item{SkillName: "Kubernetes", Status: StatusMissing, Severity: SeverityHigh, Recommendation: "Learn Kubernetes"}, got[2])
	assert.Equal(t, "Node.js services", got[3].SkillName)
}

func TestExtractGapItems_NarrativeLimit(t *testing.T) {
	var sb strings.Builder
	sb.WriteString("What needs addition:\n")
	for _, name := range []string{"Alpha", "Bravo", "Charlie", "Delta", "Echo", "Foxtrot", "Golf", "Hotel", "India", "Juliet", "Kilo", "Lima"} {
		sb.WriteString("- " + name + " skills\n")
	}

	got := ExtractGapItems(sb.String())

	assert.Len(t, got, 10)
	assert.Equal(t, "Juliet skills", got[9].SkillName)
}

func TestExtractGapItems_TableWinsOverNarrative(t *testing.T) {
	text := "SKILL GAP\n| Terraform | beginner | advanced | weak | high | Practice |\n" +
		"What you already have:\n- **Python**\n"

	got := ExtractGapItems(text)

	require.Len(t, got, 1)
	assert.Equal(t, "Terraform", got[0].SkillName)
}

func TestExtractGapItems_ClosedVocabulary(t *testing.T) {
	inputs := []string{
		fullResponse,
		"SKILL GAP ANALYSIS\n| Rust | ??? | !!! | maybe | catastrophic | |\n",
		"SKILL GAP ANALYSIS\n| Rust |\n| Go lang | a | b | c | d | e | f | g |\n",
		"What needs improvement:\n- (parenthetical only)\n- Distributed systems\n",
		strings.Repeat("|", 50),
	}
	for _, in := range inputs {
		for _, it := range ExtractGapItems(in) {
			assert.True(t, it.Status.Valid(), "status %q", it.Status)
			assert.True(t, it.Severity.Valid(), "severity %q", it.Severity)
			assert.Greater(t, len([]rune(it.SkillName)), 2)
		}
	}
}

func TestItemJSON(t *testing.T) {
	var it Item
	err := json.Unmarshal([]byte(`{"skill_name":"Go","status":"met","gap_severity":"low","current_proficiency":"Senior"}`), &it)
	require.NoError(t, err)
	assert.Equal(t, StatusMet, it.Status)
	assert.Equal(t, Advanced, it.CurrentProficiency)

	err = json.Unmarshal([]byte(`{"skill_name":"Go","status":"sort of","gap_severity":"low"}`), &it)
	assert.Error(t, err)

	err = json.Unmarshal([]byte(`{"skill_name":"Go","status":"met","gap_severity":"urgent"}`), &it)
	assert.Error(t, err)

	b, err := json.Marshal(Item{SkillName: "Go", Status: StatusWeak, Severity: SeverityMedium})
	require.NoError(t, err)
	assert.NotContains(t, string(b), "current_proficiency")
}
