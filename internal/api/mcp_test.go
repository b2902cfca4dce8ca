package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/kalambet/skillgap/internal/analyzer"
	"github.com/kalambet/skillgap/internal/gap"
	"github.com/kalambet/skillgap/internal/retrieval"
	"github.com/kalambet/skillgap/internal/storage"
)

func newTestMCPDeps(t *testing.T) (MCPDeps, *storage.Store) {
	t.Helper()
	store := openTestStore(t)
	return MCPDeps{
		Store:    store,
		Analyzer: &mockAnalyzer{result: sampleResult()},
		Search:   &mockSearcher{},
	}, store
}

func toolText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if len(result.Content) == 0 {
		t.Fatal("no content in result")
	}
	tc, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("expected TextContent, got %T", result.Content[0])
	}
	return tc.Text
}

func makeCallToolRequest(name string, args map[string]interface{}) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	}
}

func makeReadResourceRequest(uri string) mcp.ReadResourceRequest {
	return mcp.ReadResourceRequest{
		Params: mcp.ReadResourceParams{
			URI: uri,
		},
	}
}

// --- tests ---

func TestNewMCPServer(t *testing.T) {
	deps, _ := newTestMCPDeps(t)
	if s := NewMCPServer(deps); s == nil {
		t.Fatal("NewMCPServer returned nil")
	}
}

func TestMCPTool_AnalyzeSkillGap(t *testing.T) {
	deps, store := newTestMCPDeps(t)
	a := &mockAnalyzer{result: sampleResult()}
	deps.Analyzer = a
	createTestProfile(t, store, "p1", gap.Skill{Name: "Go", Proficiency: gap.Advanced})

	req := makeCallToolRequest("analyze_skill_gap", map[string]interface{}{
		"profile_id":      "p1",
		"role_name":       " Platform Engineer ",
		"required_skills": []interface{}{"Terraform", " ", "Kubernetes"},
		"use_rag":         false,
		"mode":            "rules",
	})
	result, err := mcpAnalyzeSkillGap(deps)(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected error result: %s", toolText(t, result))
	}

	var rep storage.Report
	if err := json.Unmarshal([]byte(toolText(t, result)), &rep); err != nil {
		t.Fatalf("parsing report: %v", err)
	}
	if rep.TargetRole != "Platform Engineer" || rep.OverallScore != 50 {
		t.Errorf("report = %+v", rep)
	}

	got := a.lastRequest(t)
	if got.TargetRole.RoleName != "Platform Engineer" {
		t.Errorf("role name = %q", got.TargetRole.RoleName)
	}
	if len(got.TargetRole.RequiredSkills) != 2 || got.TargetRole.RequiredSkills[1].Name != "Kubernetes" {
		t.Errorf("required skills = %+v", got.TargetRole.RequiredSkills)
	}
	if got.UseRAG || got.Mode != analyzer.ModeRules {
		t.Errorf("use_rag = %v, mode = %q", got.UseRAG, got.Mode)
	}
}

func TestMCPTool_AnalyzeSkillGap_Defaults(t *testing.T) {
	deps, store := newTestMCPDeps(t)
	a := &mockAnalyzer{result: sampleResult()}
	deps.Analyzer = a
	createTestProfile(t, store, "p1")

	req := makeCallToolRequest("analyze_skill_gap", map[string]interface{}{
		"profile_id": "p1",
		"role_name":  "SRE",
	})
	result, err := mcpAnalyzeSkillGap(deps)(context.Background(), req)
	if err != nil || result.IsError {
		t.Fatalf("unexpected failure: %v", err)
	}
	got := a.lastRequest(t)
	if !got.UseRAG || got.Mode != analyzer.ModeLLM {
		t.Errorf("use_rag = %v, mode = %q, want true/llm", got.UseRAG, got.Mode)
	}
}

func TestMCPTool_AnalyzeSkillGap_Errors(t *testing.T) {
	tests := []struct {
		name     string
		args     map[string]interface{}
		err      error
		analyzer bool
		want     string
	}{
		{"unknown profile", map[string]interface{}{"profile_id": "nope", "role_name": "SRE"}, nil, true, "profile nope not found"},
		{"missing role", map[string]interface{}{"profile_id": "p1"}, nil, true, "role_name is required"},
		{"bad mode", map[string]interface{}{"profile_id": "p1", "role_name": "SRE", "mode": "fast"}, nil, true, "unknown analysis mode"},
		{"analysis failure", map[string]interface{}{"profile_id": "p1", "role_name": "SRE"}, fmt.Errorf("%w: timeout", analyzer.ErrAnalysisFailed), true, "analysis failed"},
		{"not configured", map[string]interface{}{"profile_id": "p1", "role_name": "SRE"}, nil, false, "analysis is not configured"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			deps, store := newTestMCPDeps(t)
			createTestProfile(t, store, "p1")
			if tt.analyzer {
				deps.Analyzer = &mockAnalyzer{err: tt.err}
			} else {
				deps.Analyzer = nil
			}

			result, err := mcpAnalyzeSkillGap(deps)(context.Background(), makeCallToolRequest("analyze_skill_gap", tt.args))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !result.IsError {
				t.Fatal("expected error result")
			}
			if text := toolText(t, result); !strings.Contains(text, tt.want) {
				t.Errorf("text = %q, want it to contain %q", text, tt.want)
			}
		})
	}
}

func TestMCPTool_GetProfile(t *testing.T) {
	deps, store := newTestMCPDeps(t)
	createTestProfile(t, store, "p1", gap.Skill{Name: "Python", Proficiency: gap.Intermediate})

	result, err := mcpGetProfile(deps)(context.Background(), makeCallToolRequest("get_profile", map[string]interface{}{"profile_id": "p1"}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var p storage.Profile
	if err := json.Unmarshal([]byte(toolText(t, result)), &p); err != nil {
		t.Fatalf("parsing profile: %v", err)
	}
	if p.Name != "Ada Example" || len(p.Skills) != 1 || p.Skills[0].Proficiency != gap.Intermediate {
		t.Errorf("profile = %+v", p)
	}

	result, _ = mcpGetProfile(deps)(context.Background(), makeCallToolRequest("get_profile", map[string]interface{}{"profile_id": "nope"}))
	if !result.IsError {
		t.Error("expected error result for unknown profile")
	}
}

func TestMCPTool_ListReports(t *testing.T) {
	deps, store := newTestMCPDeps(t)
	createTestProfile(t, store, "p1")
	for i := 0; i < 3; i++ {
		err := store.SaveReport(storage.Report{
			ID:        fmt.Sprintf("r%d", i),
			ProfileID: "p1",
			Report:    gap.Report{TargetRole: "SRE", OverallScore: float64(i * 10)},
		})
		if err != nil {
			t.Fatalf("SaveReport: %v", err)
		}
	}

	result, err := mcpListReports(deps)(context.Background(), makeCallToolRequest("list_reports", map[string]interface{}{
		"profile_id": "p1",
		"limit":      float64(2),
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var reports []storage.Report
	if err := json.Unmarshal([]byte(toolText(t, result)), &reports); err != nil {
		t.Fatalf("parsing reports: %v", err)
	}
	if len(reports) != 2 {
		t.Errorf("got %d reports, want 2", len(reports))
	}
}

func TestMCPTool_AddFramework(t *testing.T) {
	deps, store := newTestMCPDeps(t)

	result, err := mcpAddFramework(deps)(context.Background(), makeCallToolRequest("add_framework", map[string]interface{}{
		"name": " NIST NICE ",
		"text": "Work role: Systems Security Analyst. Tasks: ...",
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected error result: %s", toolText(t, result))
	}
	if text := toolText(t, result); !strings.HasPrefix(text, "Queued framework ") {
		t.Errorf("text = %q", text)
	}

	docs, err := store.ListDocuments(storage.KindFramework, 10, 0)
	if err != nil {
		t.Fatalf("ListDocuments: %v", err)
	}
	if len(docs) != 1 || docs[0].Name != "NIST NICE" {
		t.Fatalf("docs = %+v", docs)
	}
	if !strings.Contains(docs[0].Metadata, `"source":"mcp"`) {
		t.Errorf("metadata = %s", docs[0].Metadata)
	}
	counts, err := store.JobCounts()
	if err != nil {
		t.Fatalf("JobCounts: %v", err)
	}
	if counts["pending"] != 1 {
		t.Errorf("pending jobs = %d, want 1", counts["pending"])
	}

	result, _ = mcpAddFramework(deps)(context.Background(), makeCallToolRequest("add_framework", map[string]interface{}{"name": "Empty", "text": "  "}))
	if !result.IsError {
		t.Error("expected error result for empty text")
	}
}

func TestMCPTool_SearchContext(t *testing.T) {
	deps, _ := newTestMCPDeps(t)
	s := &mockSearcher{chunks: []retrieval.ContextChunk{
		{ID: "c1", SourceID: "d1", Collection: retrieval.CollectionProfiles, Text: "Go, gRPC", Score: 0.88},
	}}
	deps.Search = s

	result, err := mcpSearchContext(deps)(context.Background(), makeCallToolRequest("search_context", map[string]interface{}{
		"query":      "grpc",
		"collection": "profile",
		"limit":      float64(3),
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var chunks []retrieval.ContextChunk
	if err := json.Unmarshal([]byte(toolText(t, result)), &chunks); err != nil {
		t.Fatalf("parsing chunks: %v", err)
	}
	if len(chunks) != 1 || chunks[0].Text != "Go, gRPC" {
		t.Errorf("chunks = %+v", chunks)
	}
	if s.collection != retrieval.CollectionProfiles || s.topK != 3 {
		t.Errorf("searched %q top %d", s.collection, s.topK)
	}
}

func TestMCPTool_SearchContext_EmptyAndErrors(t *testing.T) {
	deps, _ := newTestMCPDeps(t)

	result, _ := mcpSearchContext(deps)(context.Background(), makeCallToolRequest("search_context", map[string]interface{}{"query": "rust"}))
	if result.IsError || toolText(t, result) != "[]" {
		t.Errorf("empty search = %q", toolText(t, result))
	}

	result, _ = mcpSearchContext(deps)(context.Background(), makeCallToolRequest("search_context", map[string]interface{}{"query": "rust", "collection": "reports"}))
	if !result.IsError {
		t.Error("expected error result for unknown collection")
	}

	deps.Search = &mockSearcher{err: errors.New("embedding model not loaded")}
	result, _ = mcpSearchContext(deps)(context.Background(), makeCallToolRequest("search_context", map[string]interface{}{"query": "rust"}))
	if !result.IsError || !strings.Contains(toolText(t, result), "search failed") {
		t.Errorf("search error = %q", toolText(t, result))
	}

	deps.Search = nil
	result, _ = mcpSearchContext(deps)(context.Background(), makeCallToolRequest("search_context", map[string]interface{}{"query": "rust"}))
	if !result.IsError {
		t.Error("expected error result without a searcher")
	}
}

func TestMCPResource_Profiles(t *testing.T) {
	deps, store := newTestMCPDeps(t)
	createTestProfile(t, store, "p1", gap.Skill{Name: "Go"}, gap.Skill{Name: "SQL"})

	contents, err := mcpResourceProfiles(deps)(context.Background(), makeReadResourceRequest("skillgap://profiles"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(contents) != 1 {
		t.Fatalf("expected 1 content, got %d", len(contents))
	}
	tc, ok := contents[0].(mcp.TextResourceContents)
	if !ok {
		t.Fatalf("expected TextResourceContents, got %T", contents[0])
	}
	if tc.URI != "skillgap://profiles" {
		t.Errorf("URI = %q", tc.URI)
	}

	var summaries []struct {
		ID     string `json:"id"`
		Skills int    `json:"skills"`
	}
	if err := json.Unmarshal([]byte(tc.Text), &summaries); err != nil {
		t.Fatalf("parsing profiles: %v", err)
	}
	if len(summaries) != 1 || summaries[0].ID != "p1" || summaries[0].Skills != 2 {
		t.Errorf("summaries = %+v", summaries)
	}
}

func TestMCPServer_ConcurrentCalls(t *testing.T) {
	deps, store := newTestMCPDeps(t)
	createTestProfile(t, store, "p1")

	addHandler := mcpAddFramework(deps)
	getHandler := mcpGetProfile(deps)

	var wg sync.WaitGroup
	errs := make(chan error, 20)

	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			req := makeCallToolRequest("add_framework", map[string]interface{}{
				"name": fmt.Sprintf("framework %d", i),
				"text": "concurrent content",
			})
			res, err := addHandler(context.Background(), req)
			if err != nil {
				errs <- err
			} else if res.IsError {
				errs <- errors.New(res.Content[0].(mcp.TextContent).Text)
			}
		}(i)
	}

	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			req := makeCallToolRequest("get_profile", map[string]interface{}{"profile_id": "p1"})
			res, err := getHandler(context.Background(), req)
			if err != nil {
				errs <- err
			} else if res.IsError {
				errs <- errors.New(res.Content[0].(mcp.TextContent).Text)
			}
		}()
	}

	wg.Wait()
	close(errs)

	for err := range errs {
		t.Fatalf("concurrent call failed: %v", err)
	}

	docs, err := store.ListDocuments(storage.KindFramework, 10, 0)
	if err != nil {
		t.Fatalf("ListDocuments: %v", err)
	}
	if len(docs) != 5 {
		t.Errorf("got %d frameworks, want 5", len(docs))
	}
}
