package analyzer

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kalambet/skillgap/internal/composer"
	"github.com/kalambet/skillgap/internal/gap"
	"github.com/kalambet/skillgap/internal/retrieval"
	"github.com/kalambet/skillgap/internal/storage"
)

const modelResponse = `**1. REQUIRED SKILLS**
| Category | Core Skills | Typical Proficiency |
|----------|-------------|---------------------|
| Languages | Java, Python | advanced |
| Cloud | Kubernetes (EKS), Terraform | intermediate |

**2. SKILL GAP ANALYSIS**
| Skill | Current Level | Gap / Needed Level | Status | Severity | Recommendation |
|-------|---------------|--------------------|--------|----------|----------------|
| Java | advanced | advanced | met | low | Keep shipping Java services |
| Python | advanced | advanced | met | low | Mentor others in Python |
| Kubernetes | none | intermediate | missing | high | Complete CKA coursework |
| Terraform | beginner | intermediate | | | |

**5. UPSKILLING PATH**
1. Complete the CKA certification track
2. Ship a Terraform module to production
`

// mockGenerator answers the i-th prompt with replies[i], or fails it when
// errs[i] is non-nil.
type mockGenerator struct {
	mu      sync.Mutex
	replies []string
	errs    []error
	prompts []string
}

func (m *mockGenerator) Generate(_ context.Context, prompt string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := len(m.prompts)
	m.prompts = append(m.prompts, prompt)
	if i < len(m.errs) && m.errs[i] != nil {
		return "", m.errs[i]
	}
	if i < len(m.replies) {
		return m.replies[i], nil
	}
	return "", nil
}

func (m *mockGenerator) Model() string { return "test-model" }

type mockSearcher struct {
	mu      sync.Mutex
	queries []string
	sources []string
	chunks  map[string][]retrieval.ContextChunk
	err     error
}

func (m *mockSearcher) Search(_ context.Context, collection, query string, _ int) ([]retrieval.ContextChunk, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queries = append(m.queries, collection+":"+query)
	if m.err != nil {
		return nil, m.err
	}
	return m.chunks[query], nil
}

func (m *mockSearcher) SearchSources(_ context.Context, collection string, ids []string, query string, _ int) ([]retrieval.ContextChunk, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sources = append(m.sources, ids...)
	return m.chunks[collection+":"+query], nil
}

type failingStore struct{}

func (failingStore) DocumentsBySource(string) ([]string, error) { return nil, nil }
func (failingStore) SaveTargetRole(storage.TargetRole) error { return errors.New("disk full") }
func (failingStore) SaveReport(storage.Report) error { return errors.New("disk full") }

func testProfile() storage.Profile {
	return storage.Profile{
		ID:          "p1",
		Name:        "Ada",
		CurrentRole: "Backend Engineer",
		Skills: []gap.Skill{
			{Name: "Java", Proficiency: gap.Advanced},
			{Name: "Python", Proficiency: gap.Advanced},
		},
	}
}

func TestAnalyze_ParsesModelResponse(t *testing.T) {
	gen := &mockGenerator{replies: []string{modelResponse, "Hi Ada, here is your plan."}}
	a := New(gen, nil)

	res, err := a.Analyze(context.Background(), Request{
		Profile:    testProfile(),
		TargetRole: storage.TargetRole{RoleName: "Platform Engineer"},
		UserQuery:  "I want to move into platform work",
	})
	require.NoError(t, err)

	r := res.Report
	assert.NotEmpty(t, r.ID)
	assert.Equal(t, "p1", r.ProfileID)
	assert.Equal(t, "Platform Engineer", r.TargetRole)
	assert.Len(t, r.SkillsMet, 2)
	assert.Len(t, r.SkillsMissing, 1)
	assert.Len(t, r.SkillsWeak, 1)
	assert.Equal(t, 62.5, r.OverallScore)
	assert.Equal(t, []string{"Complete the CKA certification track", "Ship a Terraform module to production"}, r.UpskillingPath)
	assert.Equal(t, "Hi Ada, here is your plan.", r.Narrative)
	assert.False(t, r.LowConfidence)

	assert.Len(t, res.TargetRole.RequiredSkills, 4)
	assert.Equal(t, "table", res.SkillsSource)
	assert.Equal(t, "test-model", res.Model)
	assert.Equal(t, modelResponse, res.RawAnalysis)

	require.Len(t, gen.prompts, 2)
	assert.Contains(t, gen.prompts[0], "USER'S GOAL:\nI want to move into platform work")
	assert.Contains(t, gen.prompts[0], "  - Java (advanced)")
	assert.Contains(t, gen.prompts[0], "Target Role: Platform Engineer")
	assert.NotContains(t, gen.prompts[0], "ADDITIONAL CONTEXT")
	assert.Contains(t, gen.prompts[1], "Overall Gap Score: 62.50")
	assert.Contains(t, gen.prompts[1], "good progress")
}

func TestAnalyze_ModelFailure(t *testing.T) {
	gen := &mockGenerator{errs: []error{errors.New("status 503")}}
	a := New(gen, nil)

	_, err := a.Analyze(context.Background(), Request{Profile: testProfile(), TargetRole: storage.TargetRole{RoleName: "SRE"}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrAnalysisFailed))
	assert.Contains(t, err.Error(), "status 503")
}

func TestAnalyze_NarrativeFailureFallsBackToRawText(t *testing.T) {
	gen := &mockGenerator{replies: []string{modelResponse}, errs: []error{nil, errors.New("rate limited")}}
	a := New(gen, nil)

	res, err := a.Analyze(context.Background(), Request{Profile: testProfile(), TargetRole: storage.TargetRole{RoleName: "SRE"}})
	require.NoError(t, err)
	assert.Equal(t, modelResponse, res.Report.Narrative)
}

func TestAnalyze_NarrativeDisabled(t *testing.T) {
	gen := &mockGenerator{replies: []string{modelResponse}}
	a := New(gen, nil, WithNarrative(false))

	res, err := a.Analyze(context.Background(), Request{Profile: testProfile(), TargetRole: storage.TargetRole{RoleName: "SRE"}})
	require.NoError(t, err)
	assert.Len(t, gen.prompts, 1)
	assert.Equal(t, modelResponse, res.Report.Narrative)
}

func TestAnalyze_UnparseableResponseIsLowConfidence(t *testing.T) {
	gen := &mockGenerator{replies: []string{"I cannot help with that.", ""}}
	a := New(gen, nil)

	res, err := a.Analyze(context.Background(), Request{Profile: testProfile(), TargetRole: storage.TargetRole{RoleName: "SRE"}})
	require.NoError(t, err)
	assert.True(t, res.Report.LowConfidence)
	assert.Equal(t, gap.NeutralScore, res.Report.OverallScore)
	assert.Empty(t, res.TargetRole.RequiredSkills)
	assert.Equal(t, "I cannot help with that.", res.Report.Narrative)
}

func TestAnalyze_RetrievalContext(t *testing.T) {
	profileQuery := "Ada Backend Engineer skills experience"
	roleQuery := "SRE required skills competencies"
	searcher := &mockSearcher{chunks: map[string][]retrieval.ContextChunk{
		profileQuery:              {{ID: "f_chunk_0", Text: "Backend engineers own service reliability.", Score: 0.8}},
		roleQuery:                 {{ID: "f_chunk_1", Text: "SREs define SLOs and error budgets.", Score: 0.9}},
		"profile:" + profileQuery: {{ID: "d1_chunk_0", Text: "Ada ran the on-call rotation.", Score: 0.7}},
	}}

	st, err := storage.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	require.NoError(t, st.SaveDocument(storage.Document{ID: "d1", Kind: storage.KindProfile, SourceID: "p1", Content: "x"}))

	gen := &mockGenerator{replies: []string{modelResponse, "narrative"}}
	a := New(gen, nil, WithRetrieval(searcher, composer.New(0), 3), WithStore(st))

	res, err := a.Analyze(context.Background(), Request{
		Profile:    testProfile(),
		TargetRole: storage.TargetRole{RoleName: "SRE"},
		UseRAG:     true,
	})
	require.NoError(t, err)
	assert.True(t, res.ContextUsed)
	assert.Equal(t, []string{"d1"}, searcher.sources)

	prompt := gen.prompts[0]
	assert.Contains(t, prompt, "ADDITIONAL CONTEXT:\nProfile Context:\n")
	assert.Contains(t, prompt, "Ada ran the on-call rotation.")
	assert.Contains(t, prompt, "Role Context:\nSREs define SLOs and error budgets.")
	assert.Contains(t, prompt, "Backend engineers own service reliability.")
}

func TestAnalyze_RetrievalFailureContinues(t *testing.T) {
	searcher := &mockSearcher{err: errors.New("embedding model not found")}
	gen := &mockGenerator{replies: []string{modelResponse, "narrative"}}
	a := New(gen, nil, WithRetrieval(searcher, nil, 0))

	res, err := a.Analyze(context.Background(), Request{
		Profile:    testProfile(),
		TargetRole: storage.TargetRole{RoleName: "SRE"},
		UseRAG:     true,
	})
	require.NoError(t, err)
	assert.False(t, res.ContextUsed)
	assert.NotContains(t, gen.prompts[0], "ADDITIONAL CONTEXT")
}

// dropReranker discards chunks whose text contains drop.
type dropReranker struct {
	mu      sync.Mutex
	drop    string
	queries []string
}

func (d *dropReranker) Rerank(_ context.Context, query string, chunks []retrieval.ContextChunk) ([]retrieval.ContextChunk, error) {
	d.mu.Lock()
	d.queries = append(d.queries, query)
	d.mu.Unlock()
	var out []retrieval.ContextChunk
	for _, c := range chunks {
		if !strings.Contains(c.Text, d.drop) {
			out = append(out, c)
		}
	}
	return out, nil
}

func TestAnalyze_RerankerFiltersContext(t *testing.T) {
	profileQuery := "Ada Backend Engineer skills experience"
	roleQuery := "SRE required skills competencies"
	searcher := &mockSearcher{chunks: map[string][]retrieval.ContextChunk{
		profileQuery: {
			{ID: "f_chunk_0", Text: "Backend engineers own service reliability.", Score: 0.8},
			{ID: "f_chunk_2", Text: "Office seating chart.", Score: 0.7},
		},
		roleQuery: {{ID: "f_chunk_1", Text: "SREs define SLOs and error budgets.", Score: 0.9}},
	}}
	rr := &dropReranker{drop: "seating"}

	gen := &mockGenerator{replies: []string{modelResponse, "narrative"}}
	a := New(gen, nil, WithRetrieval(searcher, nil, 3), WithReranker(rr))

	res, err := a.Analyze(context.Background(), Request{
		Profile:    testProfile(),
		TargetRole: storage.TargetRole{RoleName: "SRE"},
		UseRAG:     true,
	})
	require.NoError(t, err)
	assert.True(t, res.ContextUsed)
	assert.ElementsMatch(t, []string{profileQuery, roleQuery}, rr.queries)
	assert.Contains(t, gen.prompts[0], "Backend engineers own service reliability.")
	assert.NotContains(t, gen.prompts[0], "seating")
}

func TestAnalyze_RAGDisabledSkipsSearch(t *testing.T) {
	searcher := &mockSearcher{}
	gen := &mockGenerator{replies: []string{modelResponse, "narrative"}}
	a := New(gen, nil, WithRetrieval(searcher, nil, 0))

	_, err := a.Analyze(context.Background(), Request{Profile: testProfile(), TargetRole: storage.TargetRole{RoleName: "SRE"}})
	require.NoError(t, err)
	assert.Empty(t, searcher.queries)
}

func TestAnalyze_PersistsRoleAndReport(t *testing.T) {
	st, err := storage.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	p := testProfile()
	require.NoError(t, st.SaveProfile(p))

	gen := &mockGenerator{replies: []string{modelResponse, "narrative"}}
	a := New(gen, nil, WithStore(st))

	res, err := a.Analyze(context.Background(), Request{Profile: p, TargetRole: storage.TargetRole{RoleName: "Platform Engineer"}})
	require.NoError(t, err)
	require.NotEmpty(t, res.Report.TargetRoleID)

	role, err := st.GetTargetRole(res.Report.TargetRoleID)
	require.NoError(t, err)
	assert.Len(t, role.RequiredSkills, 4)

	saved, err := st.GetReport(res.Report.ID)
	require.NoError(t, err)
	assert.Equal(t, 62.5, saved.OverallScore)
	assert.Equal(t, "narrative", saved.Narrative)
}

func TestAnalyze_PersistenceFailureStillReturnsReport(t *testing.T) {
	gen := &mockGenerator{replies: []string{modelResponse, "narrative"}}
	a := New(gen, nil, WithStore(failingStore{}))

	res, err := a.Analyze(context.Background(), Request{Profile: testProfile(), TargetRole: storage.TargetRole{RoleName: "SRE"}})
	require.NoError(t, err)
	assert.NotEmpty(t, res.Report.ID)
	assert.Empty(t, res.Report.TargetRoleID)
	assert.Equal(t, 62.5, res.Report.OverallScore)
}

func TestAnalyze_RulesMode(t *testing.T) {
	gen := &mockGenerator{}
	a := New(gen, nil)

	res, err := a.Analyze(context.Background(), Request{
		Profile: storage.Profile{
			ID:   "p1",
			Name: "Ada",
			Skills: []gap.Skill{
				{Name: "Go", Proficiency: gap.Intermediate},
				{Name: "Kubernetes", Proficiency: gap.Expert},
			},
		},
		TargetRole: storage.TargetRole{
			RoleName: "Platform Engineer",
			RequiredSkills: []gap.Skill{
				{Name: "Go", Proficiency: gap.Advanced},
				{Name: "Kubernetes", Proficiency: gap.Intermediate},
				{Name: "Terraform"},
			},
		},
		Mode: ModeRules,
	})
	require.NoError(t, err)
	assert.Empty(t, gen.prompts)

	r := res.Report
	require.Len(t, r.SkillsMet, 1)
	require.Len(t, r.SkillsWeak, 1)
	require.Len(t, r.SkillsMissing, 1)
	assert.Equal(t, "Kubernetes", r.SkillsMet[0].SkillName)
	assert.Equal(t, gap.SeverityMedium, r.SkillsWeak[0].Severity)
	assert.Equal(t, 50.0, r.OverallScore)
	assert.Equal(t, []string{
		"Consider learning Terraform to meet role requirements",
		"Improve Go from intermediate to advanced",
	}, r.UpskillingPath)
	assert.True(t, strings.HasPrefix(r.Narrative, "Ada meets 1 of 3 required skills for Platform Engineer"))
	assert.Equal(t, "rules", res.GapsSource)
}

func TestAnalyze_RulesModeNeedsRequiredSkills(t *testing.T) {
	a := New(nil, nil)
	_, err := a.Analyze(context.Background(), Request{Profile: testProfile(), TargetRole: storage.TargetRole{RoleName: "SRE"}, Mode: ModeRules})
	assert.ErrorIs(t, err, ErrNoRequiredSkills)
}

func TestParseMode(t *testing.T) {
	tests := []struct {
		in      string
		want    Mode
		wantErr bool
	}{
		{"", ModeLLM, false},
		{"llm", ModeLLM, false},
		{" Rules ", ModeRules, false},
		{"magic", "", true},
	}
	for _, tt := range tests {
		got, err := ParseMode(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestExtractProfileInfo(t *testing.T) {
	gen := &mockGenerator{replies: []string{"  Name: Ada\nCurrent Role: Backend Engineer\n"}}
	a := New(gen, nil)

	out, err := a.ExtractProfileInfo(context.Background(), "Ada, backend engineer, 6 years of Go")
	require.NoError(t, err)
	assert.Equal(t, "Name: Ada\nCurrent Role: Backend Engineer", out)
	assert.Contains(t, gen.prompts[0], "User Profile Text:\nAda, backend engineer, 6 years of Go")

	gen = &mockGenerator{errs: []error{errors.New("boom")}}
	_, err = New(gen, nil).ExtractProfileInfo(context.Background(), "x")
	assert.Error(t, err)
}
