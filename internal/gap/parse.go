package gap

// Analysis is everything recovered from one model response.
type Analysis struct {
	Buckets
	RequiredSkills []Skill  `json:"required_skills"`
	Score          float64  `json:"overall_gap_score"`
	UpskillingPath []string `json:"upskilling_path"`

	// SkillsSource and GapsSource name the strategies that produced the
	// required skills and gap items ("table", "list", "narrative",
	// "synthesized", ...). Empty when nothing was found.
	SkillsSource string `json:"skills_source,omitempty"`
	GapsSource   string `json:"gaps_source,omitempty"`
}

// LowConfidence reports whether nothing scoreable was recovered, in which
// case Score holds NeutralScore.
func (a Analysis) LowConfidence() bool {
	return len(a.RequiredSkills) == 0 && len(a.Met)+len(a.Missing)+len(a.Weak) == 0
}

// Parser turns model responses into an Analysis. The zero value is not
// usable; construct one with NewParser.
type Parser struct {
	matcher *Matcher
}

type ParserOption func(*Parser)

// WithAliases replaces the alias table used when synthesizing gaps.
func WithAliases(a Aliases) ParserOption {
	return func(p *Parser) { p.matcher = NewMatcher(a) }
}

func NewParser(opts ...ParserOption) *Parser {
	p := &Parser{matcher: NewMatcher(nil)}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Matcher exposes the matcher so callers can run rule-based comparisons
// with the same alias table.
func (p *Parser) Matcher() *Matcher { return p.matcher }

// Parse extracts required skills, gap items, score and upskilling path from
// text. user is the profile's skill list in its stored order.
func (p *Parser) Parse(text string, user []Skill) Analysis {
	required, skillsSrc := extractRequiredSkills(text)
	items, gapsSrc := extractGapItems(text)

	if len(required) > 0 && len(items) == 0 {
		items = p.matcher.Synthesize(required, user)
		gapsSrc = "synthesized"
	}

	b := Bucket(items)
	return Analysis{
		RequiredSkills: required,
		Buckets:        b,
		Score:          Score(b, len(required)),
		UpskillingPath: ExtractUpskillingPath(text),
		SkillsSource:   skillsSrc,
		GapsSource:     gapsSrc,
	}
}

var defaultParser = NewParser()

// Parse runs the default parser.
func Parse(text string, user []Skill) Analysis {
	return defaultParser.Parse(text, user)
}
