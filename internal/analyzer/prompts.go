package analyzer

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/kalambet/skillgap/internal/storage"
)

const (
	defaultGoal      = "User wants to transition to the target role"
	defaultShortGoal = "Transition to target role"
)

// FormatProfile renders a profile as the plain text used in prompts and
// in the retrieval index.
func FormatProfile(p storage.Profile) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Name: %s\n", p.Name)
	fmt.Fprintf(&sb, "Current Role: %s\n", p.CurrentRole)
	if p.ExperienceYears != nil && *p.ExperienceYears > 0 {
		fmt.Fprintf(&sb, "Years of Experience: %s\n", formatYears(*p.ExperienceYears))
	}

	if len(p.Skills) > 0 {
		sb.WriteString("\nSkills:\n")
		for _, s := range p.Skills {
			sb.WriteString("  - " + s.Name)
			if s.Proficiency.Known() {
				fmt.Fprintf(&sb, " (%s)", s.Proficiency)
			}
			if s.YearsExperience != nil && *s.YearsExperience > 0 {
				fmt.Fprintf(&sb, " - %s years", formatYears(*s.YearsExperience))
			}
			sb.WriteString("\n")
		}
	}

	if len(p.Certifications) > 0 {
		fmt.Fprintf(&sb, "\nCertifications: %s\n", strings.Join(p.Certifications, ", "))
	}
	if p.Bio != "" {
		fmt.Fprintf(&sb, "\nBio: %s\n", p.Bio)
	}
	if p.RawText != "" {
		fmt.Fprintf(&sb, "\nAdditional Information:\n%s\n", p.RawText)
	}
	return sb.String()
}

func formatYears(y float64) string {
	return strconv.FormatFloat(y, 'f', -1, 64)
}

func formatTargetRole(r storage.TargetRole) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Target Role: %s\n", r.RoleName)
	if r.Description != "" {
		fmt.Fprintf(&sb, "Description: %s\n", r.Description)
	}
	if r.SkillFramework != "" {
		fmt.Fprintf(&sb, "Skill Framework: %s\n", r.SkillFramework)
	}
	return sb.String()
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}

// analysisPrompt asks for the five labeled sections the gap parser reads.
func analysisPrompt(profile, role, ragContext, userQuery string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, `Analyze the skill gap and provide actionable recommendations.

USER'S GOAL:
%s

CURRENT PROFILE:
%s

TARGET ROLE:
%s
`, orDefault(userQuery, defaultGoal), profile, role)

	if ragContext != "" {
		fmt.Fprintf(&sb, "\n\nADDITIONAL CONTEXT:\n%s\n", ragContext)
	}

	sb.WriteString(analysisInstructions)
	return sb.String()
}

const analysisInstructions = `

Provide a BRIEF, ACTIONABLE analysis in the following structured format. Use tables with pipe separators (|) for all structured data:

**1. REQUIRED SKILLS** (List all key skills needed for this role):
Format as a table:
| Category | Core Skills | Typical Proficiency |
|----------|-------------|---------------------|
| Design & Visualization | 3-D modeling, Revit, SketchUp | advanced |
| Technical Knowledge | Building codes, structural principles | advanced |

IMPORTANT: List each skill separately in the Core Skills column, separated by commas.

**2. SKILL GAP ANALYSIS** (Compare the user's current skills with the required skills):
Format as a table with EXACTLY these columns:
| Skill | Current Level | Gap / Needed Level | Status | Severity | Recommendation |
|-------|---------------|--------------------|--------|----------|----------------|
| Skill Name | beginner/none/intermediate/advanced | intermediate/advanced/expert | met/missing/weak | high/medium/low | Brief recommendation |

For each required skill, create a row with:
- Status: "met" if the user has it at the required level, "weak" if the user has it below the required level, "missing" if the user doesn't have it
- Severity: "high" for critical missing skills, "medium" for important ones, "low" for nice-to-have

**3. HOW TO START** (For each missing/weak skill):
| Skill | What to Learn | How to Start | Quick Win Project |
|-------|---------------|--------------|-------------------|
| Skill Name | Specific topics | Resources/courses | Simple project idea |

**4. ACTION PLAN** (3-5 immediate next steps for next week):
1. Step 1: ...
2. Step 2: ...
3. Step 3: ...

**5. UPSKILLING PATH** (Prioritized learning roadmap):
1. First priority skill and why
2. Second priority skill and why
3. ...

IMPORTANT:
- Use proper table format with pipe separators (|)
- Ensure all required skills from section 1 appear in section 2's gap analysis
- Be specific and actionable`

// assessment describes a score band in words.
func assessment(score float64) string {
	switch {
	case score >= 80:
		return "excellent progress, you're very close to your goal"
	case score >= 60:
		return "good progress, you're well on your way"
	case score >= 40:
		return "moderate progress, a clear path forward exists"
	default:
		return "significant journey ahead, but the path is well-defined"
	}
}

type narrativeInput struct {
	Analysis    string
	UserName    string
	CurrentRole string
	TargetRole  string
	Score       float64
	UserQuery   string
}

// narrativePrompt asks the model to rewrite the structured analysis as a
// readable plan.
func narrativePrompt(in narrativeInput) string {
	return fmt.Sprintf(`You are a friendly, professional career advisor. Transform the following technical skill gap analysis into a warm, encouraging, and well-formatted response.

USER INFORMATION:
- Name: %s
- Current Role: %s
- Target Role: %s
- Overall Gap Score: %.2f
- Assessment: %s
- User's Goal: %s

Act as an expert career strategist and senior mentor. Help the user move from their current role to the target role using their skill data.

Input data:
%s

Task:
1. Executive Summary: Open with a short professional greeting and an overview of the overall gap score and the main focus of the transition.
2. Prioritized Roadmap: Group the missing and weak skills into a 4-phase upskilling roadmap ordered by logical dependency, explaining the purpose of each phase.
3. Gap Analysis Tables: One table for high-severity gaps (Priority 1) and one for medium/low-severity gaps (Priority 2), with the columns Skill, Status and Recommendation.
4. Quick-Win Project: A 4-week project that exercises at least 5 of the missing skills, broken down week by week.
5. First 7-Day Action Plan: 4 concrete, low-friction tasks the user can start today.

Formatting:
- Professional but encouraging tone.
- Emojis in section headers.
- Markdown tables and bold text for key terms.
`,
		in.UserName, in.CurrentRole, in.TargetRole, in.Score, assessment(in.Score),
		orDefault(in.UserQuery, defaultShortGoal), in.Analysis)
}

func extractPrompt(profileText string) string {
	return fmt.Sprintf(`Extract the following information from this user profile text and return it in a structured format:

User Profile Text:
%s

Please extract and return:
1. Name (if mentioned)
2. Current Role/Job Title
3. List of skills mentioned (with proficiency levels if available)
4. Certifications
5. Years of experience
6. Any other relevant information

Format your response as a clear, structured text that can be parsed.`, profileText)
}
