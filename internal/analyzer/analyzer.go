// Package analyzer runs a skill-gap analysis end to end: retrieval of
// framework context, the model call, parsing of the response into a report,
// the narrative rewrite and persistence.
package analyzer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/kalambet/skillgap/internal/composer"
	"github.com/kalambet/skillgap/internal/gap"
	"github.com/kalambet/skillgap/internal/retrieval"
	"github.com/kalambet/skillgap/internal/storage"
)

// ErrAnalysisFailed wraps failures of the model call itself, as opposed to
// an analysis that ran but recovered nothing.
var ErrAnalysisFailed = errors.New("analysis failed")

// ErrNoRequiredSkills is returned by rule-based analysis when the target
// role lists no skills to compare against.
var ErrNoRequiredSkills = errors.New("target role has no required skills")

const defaultTopK = 3

// Generator produces a completion for a single prompt. Both the hosted LLM
// client and the local Ollama generator satisfy it.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
	Model() string
}

// Searcher finds context chunks for a query.
type Searcher interface {
	Search(ctx context.Context, collection, query string, topK int) ([]retrieval.ContextChunk, error)
	SearchSources(ctx context.Context, collection string, sourceIDs []string, query string, topK int) ([]retrieval.ContextChunk, error)
}

// Reranker reorders retrieved chunks; see internal/reranking.
type Reranker interface {
	Rerank(ctx context.Context, query string, chunks []retrieval.ContextChunk) ([]retrieval.ContextChunk, error)
}

// Store persists analysis results and resolves a profile's indexed documents.
type Store interface {
	DocumentsBySource(sourceID string) ([]string, error)
	SaveTargetRole(r storage.TargetRole) error
	SaveReport(r storage.Report) error
}

// Mode selects how gaps are computed.
type Mode string

const (
	// ModeLLM asks the model for the analysis and parses its response.
	ModeLLM Mode = "llm"
	// ModeRules compares the role's explicit required skills against the
	// profile without calling the model.
	ModeRules Mode = "rules"
)

// ParseMode maps request text to a Mode. Empty text means ModeLLM.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeLLM:
		return ModeLLM, nil
	case ModeRules:
		return ModeRules, nil
	}
	return "", fmt.Errorf("unknown analysis mode %q", s)
}

type Request struct {
	Profile    storage.Profile
	TargetRole storage.TargetRole
	UserQuery  string
	UseRAG     bool
	Mode       Mode
}

// Result is a finished analysis. Report carries a fresh id whether or not it
// could be persisted.
type Result struct {
	Report       storage.Report     `json:"report"`
	TargetRole   storage.TargetRole `json:"target_role"`
	RawAnalysis  string             `json:"raw_analysis,omitempty"`
	SkillsSource string             `json:"skills_source,omitempty"`
	GapsSource   string             `json:"gaps_source,omitempty"`
	ContextUsed  bool               `json:"context_used"`
	Model        string             `json:"model,omitempty"`
	DurationMs   int64              `json:"duration_ms"`
}

// Analyzer orchestrates skill-gap analyses.
type Analyzer struct {
	gen             Generator
	parser          *gap.Parser
	searcher        Searcher
	composer        *composer.Composer
	reranker        Reranker
	store           Store
	topK            int
	formatNarrative bool
	logger          *slog.Logger
}

type Option func(*Analyzer)

// WithRetrieval enables framework and profile context. topK <= 0 uses 3.
func WithRetrieval(s Searcher, c *composer.Composer, topK int) Option {
	return func(a *Analyzer) {
		a.searcher = s
		a.composer = c
		if topK > 0 {
			a.topK = topK
		}
	}
}

// WithReranker re-scores retrieved chunks before they are composed.
func WithReranker(r Reranker) Option {
	return func(a *Analyzer) { a.reranker = r }
}

// WithStore persists target roles and reports after each analysis.
func WithStore(s Store) Option {
	return func(a *Analyzer) { a.store = s }
}

// WithNarrative toggles the second model call that rewrites the analysis
// for the reader. It is on by default.
func WithNarrative(enabled bool) Option {
	return func(a *Analyzer) { a.formatNarrative = enabled }
}

// New creates an Analyzer. A nil parser uses the default alias table.
func New(gen Generator, parser *gap.Parser, opts ...Option) *Analyzer {
	if parser == nil {
		parser = gap.NewParser()
	}
	a := &Analyzer{
		gen:             gen,
		parser:          parser,
		topK:            defaultTopK,
		formatNarrative: true,
		logger:          slog.Default(),
	}
	for _, o := range opts {
		o(a)
	}
	if a.composer == nil {
		a.composer = composer.New(0)
	}
	return a
}

// Analyze compares req.Profile against req.TargetRole and returns the report.
// Model failures return an error wrapping ErrAnalysisFailed. Retrieval,
// narrative and persistence failures are logged and do not fail the call.
func (a *Analyzer) Analyze(ctx context.Context, req Request) (Result, error) {
	start := time.Now()

	var (
		res Result
		err error
	)
	switch req.Mode {
	case ModeRules:
		res, err = a.analyzeRules(req)
	case ModeLLM, "":
		res, err = a.analyzeLLM(ctx, req)
	default:
		return Result{}, fmt.Errorf("unknown analysis mode %q", req.Mode)
	}
	if err != nil {
		return Result{}, err
	}

	a.persist(&res)
	res.DurationMs = time.Since(start).Milliseconds()
	a.logger.Info("analysis complete",
		"profile_id", req.Profile.ID,
		"report_id", res.Report.ID,
		"target_role", res.Report.TargetRole,
		"score", res.Report.OverallScore,
		"low_confidence", res.Report.LowConfidence,
		"duration_ms", res.DurationMs,
	)
	return res, nil
}

func (a *Analyzer) analyzeLLM(ctx context.Context, req Request) (Result, error) {
	if a.gen == nil {
		return Result{}, fmt.Errorf("%w: no language model configured", ErrAnalysisFailed)
	}
	role := req.TargetRole

	ragContext := ""
	if req.UseRAG {
		ragContext = a.retrieveContext(ctx, req.Profile, role)
	}

	prompt := analysisPrompt(FormatProfile(req.Profile), formatTargetRole(role), ragContext, req.UserQuery)
	raw, err := a.gen.Generate(ctx, prompt)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %w", ErrAnalysisFailed, err)
	}

	analysis := a.parser.Parse(raw, req.Profile.Skills)
	if len(analysis.RequiredSkills) > 0 {
		role.RequiredSkills = analysis.RequiredSkills
	}

	narrative := raw
	if a.formatNarrative {
		narrative = a.narrative(ctx, narrativeInput{
			Analysis:    raw,
			UserName:    req.Profile.Name,
			CurrentRole: req.Profile.CurrentRole,
			TargetRole:  role.RoleName,
			Score:       analysis.Score,
			UserQuery:   req.UserQuery,
		})
	}

	return Result{
		Report:       a.buildReport(req, role, analysis.Buckets, analysis.Score, analysis.UpskillingPath, narrative, analysis.LowConfidence()),
		TargetRole:   role,
		RawAnalysis:  raw,
		SkillsSource: analysis.SkillsSource,
		GapsSource:   analysis.GapsSource,
		ContextUsed:  ragContext != "",
		Model:        a.gen.Model(),
	}, nil
}

func (a *Analyzer) analyzeRules(req Request) (Result, error) {
	required := req.TargetRole.RequiredSkills
	if len(required) == 0 {
		return Result{}, ErrNoRequiredSkills
	}

	b := gap.Bucket(a.parser.Matcher().Compare(required, req.Profile.Skills))
	score := gap.Score(b, len(required))

	var path []string
	for _, it := range append(append([]gap.Item{}, b.Missing...), b.Weak...) {
		if len(path) == 7 {
			break
		}
		path = append(path, it.Recommendation)
	}

	return Result{
		Report:       a.buildReport(req, req.TargetRole, b, score, path, ruleSummary(req, b, score), false),
		TargetRole:   req.TargetRole,
		SkillsSource: "request",
		GapsSource:   "rules",
	}, nil
}

func ruleSummary(req Request, b gap.Buckets, score float64) string {
	total := len(b.Met) + len(b.Missing) + len(b.Weak)
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s meets %d of %d required skills for %s (score %.2f, %s).",
		orDefault(req.Profile.Name, "The user"), len(b.Met), total, req.TargetRole.RoleName, score, assessment(score))
	if len(b.Missing) > 0 {
		fmt.Fprintf(&sb, "\nMissing: %s.", itemNames(b.Missing))
	}
	if len(b.Weak) > 0 {
		fmt.Fprintf(&sb, "\nNeeds improvement: %s.", itemNames(b.Weak))
	}
	return sb.String()
}

func itemNames(items []gap.Item) string {
	names := make([]string, len(items))
	for i, it := range items {
		names[i] = it.SkillName
	}
	return strings.Join(names, ", ")
}

func (a *Analyzer) buildReport(req Request, role storage.TargetRole, b gap.Buckets, score float64, path []string, narrative string, lowConfidence bool) storage.Report {
	if path == nil {
		path = []string{}
	}
	return storage.Report{
		ID:            uuid.New().String(),
		ProfileID:     req.Profile.ID,
		UserQuery:     req.UserQuery,
		LowConfidence: lowConfidence,
		Report: gap.Report{
			UserName:       req.Profile.Name,
			CurrentRole:    req.Profile.CurrentRole,
			TargetRole:     role.RoleName,
			SkillsMet:      b.Met,
			SkillsMissing:  b.Missing,
			SkillsWeak:     b.Weak,
			OverallScore:   score,
			UpskillingPath: path,
			Narrative:      narrative,
		},
		CreatedAt: time.Now().UTC(),
	}
}

// narrative rewrites the analysis for the reader, falling back to the raw
// analysis text.
func (a *Analyzer) narrative(ctx context.Context, in narrativeInput) string {
	out, err := a.gen.Generate(ctx, narrativePrompt(in))
	if err != nil {
		a.logger.Warn("narrative formatting failed, using raw analysis", "error", err)
		return in.Analysis
	}
	if strings.TrimSpace(out) == "" {
		return in.Analysis
	}
	return out
}

// retrieveContext runs the profile and role queries concurrently. The
// profile query covers the user's own indexed documents and the frameworks;
// the role query covers the frameworks.
func (a *Analyzer) retrieveContext(ctx context.Context, p storage.Profile, role storage.TargetRole) string {
	if a.searcher == nil {
		return ""
	}
	profileQuery := fmt.Sprintf("%s %s skills experience", p.Name, p.CurrentRole)
	roleQuery := fmt.Sprintf("%s required skills competencies", role.RoleName)

	var profileChunks, roleChunks []retrieval.ContextChunk
	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if a.store != nil && p.ID != "" {
			ids, err := a.store.DocumentsBySource(p.ID)
			if err != nil {
				return fmt.Errorf("listing profile documents: %w", err)
			}
			own, err := a.searcher.SearchSources(gCtx, retrieval.CollectionProfiles, ids, profileQuery, a.topK)
			if err != nil {
				return err
			}
			profileChunks = append(profileChunks, own...)
		}
		fw, err := a.searcher.Search(gCtx, retrieval.CollectionFrameworks, profileQuery, a.topK)
		if err != nil {
			return err
		}
		profileChunks, err = a.rerank(gCtx, profileQuery, append(profileChunks, fw...))
		return err
	})
	g.Go(func() error {
		chunks, err := a.searcher.Search(gCtx, retrieval.CollectionFrameworks, roleQuery, a.topK)
		if err != nil {
			return err
		}
		roleChunks, err = a.rerank(gCtx, roleQuery, chunks)
		return err
	})
	if err := g.Wait(); err != nil {
		a.logger.Warn("context retrieval failed, analyzing without context", "profile_id", p.ID, "error", err)
		return ""
	}

	return a.composer.Compose(
		composer.Section{Title: "Profile Context", Chunks: profileChunks},
		composer.Section{Title: "Role Context", Chunks: roleChunks},
	)
}

func (a *Analyzer) rerank(ctx context.Context, query string, chunks []retrieval.ContextChunk) ([]retrieval.ContextChunk, error) {
	if a.reranker == nil || len(chunks) == 0 {
		return chunks, nil
	}
	return a.reranker.Rerank(ctx, query, chunks)
}

// persist saves the target role (when it has skills) and the report.
// Failures are logged; the caller still gets the report.
func (a *Analyzer) persist(res *Result) {
	if a.store == nil {
		return
	}
	if len(res.TargetRole.RequiredSkills) > 0 {
		role := res.TargetRole
		role.ID = uuid.New().String()
		if err := a.store.SaveTargetRole(role); err != nil {
			a.logger.Warn("could not save target role", "role", role.RoleName, "error", err)
		} else {
			res.TargetRole = role
			res.Report.TargetRoleID = role.ID
		}
	}
	if err := a.store.SaveReport(res.Report); err != nil {
		a.logger.Warn("could not save report", "report_id", res.Report.ID, "profile_id", res.Report.ProfileID, "error", err)
	}
}

// ExtractProfileInfo asks the model for a structured summary of free-text
// profile input.
func (a *Analyzer) ExtractProfileInfo(ctx context.Context, text string) (string, error) {
	if a.gen == nil {
		return "", fmt.Errorf("%w: no language model configured", ErrAnalysisFailed)
	}
	out, err := a.gen.Generate(ctx, extractPrompt(text))
	if err != nil {
		return "", fmt.Errorf("extracting profile info: %w", err)
	}
	return strings.TrimSpace(out), nil
}
