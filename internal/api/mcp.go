package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/kalambet/skillgap/internal/analyzer"
	"github.com/kalambet/skillgap/internal/gap"
	"github.com/kalambet/skillgap/internal/retrieval"
	"github.com/kalambet/skillgap/internal/storage"
)

// MCPDeps holds dependencies for the MCP server.
type MCPDeps struct {
	Store    *storage.Store
	Analyzer Analyzer
	Search   Searcher // optional; search_context returns an error result when nil
}

// NewMCPServer creates an MCP server with the skill-gap tools and resources
// registered.
func NewMCPServer(deps MCPDeps) *mcpserver.MCPServer {
	s := mcpserver.NewMCPServer(
		"skillgap",
		Version,
		mcpserver.WithToolCapabilities(true),
		mcpserver.WithResourceCapabilities(false, true),
		mcpserver.WithInstructions("skillgap compares a stored skill profile with a target role and returns met, missing and weak skills with a score and an upskilling path."),
		mcpserver.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("analyze_skill_gap",
			mcp.WithDescription("Run a skill gap analysis for a stored profile against a target role and save the report."),
			mcp.WithString("profile_id", mcp.Description("ID of the stored profile"), mcp.Required()),
			mcp.WithString("role_name", mcp.Description("Target role name"), mcp.Required()),
			mcp.WithString("description", mcp.Description("Optional role description")),
			mcp.WithString("user_query", mcp.Description("The user's goal in their own words")),
			mcp.WithArray("required_skills", mcp.Description("Required skill names; needed for rules mode"), mcp.WithStringItems()),
			mcp.WithBoolean("use_rag", mcp.Description("Include retrieved framework and profile context (default true)")),
			mcp.WithString("mode", mcp.Description("llm (default) or rules"), mcp.Enum("llm", "rules")),
		),
		mcpAnalyzeSkillGap(deps),
	)

	s.AddTool(
		mcp.NewTool("get_profile",
			mcp.WithDescription("Return a stored profile with its skills."),
			mcp.WithString("profile_id", mcp.Description("ID of the stored profile"), mcp.Required()),
		),
		mcpGetProfile(deps),
	)

	s.AddTool(
		mcp.NewTool("list_reports",
			mcp.WithDescription("List the saved gap reports of a profile, newest first."),
			mcp.WithString("profile_id", mcp.Description("ID of the stored profile"), mcp.Required()),
			mcp.WithNumber("limit", mcp.Description("Maximum number of reports (default 10)")),
		),
		mcpListReports(deps),
	)

	s.AddTool(
		mcp.NewTool("add_framework",
			mcp.WithDescription("Add a skill framework document (e.g. SFIA, NIST NICE) to the retrieval index."),
			mcp.WithString("name", mcp.Description("Framework name"), mcp.Required()),
			mcp.WithString("text", mcp.Description("Framework text"), mcp.Required()),
		),
		mcpAddFramework(deps),
	)

	s.AddTool(
		mcp.NewTool("search_context",
			mcp.WithDescription("Semantically search indexed frameworks or profiles."),
			mcp.WithString("query", mcp.Description("Search query"), mcp.Required()),
			mcp.WithString("collection", mcp.Description("framework (default) or profile"), mcp.Enum(retrieval.Collections...)),
			mcp.WithNumber("limit", mcp.Description("Maximum number of results (default 5)")),
		),
		mcpSearchContext(deps),
	)

	s.AddResource(
		mcp.NewResource(
			"skillgap://profiles",
			"Profiles",
			mcp.WithResourceDescription("Stored profiles as JSON (first 100)"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceProfiles(deps),
	)

	return s
}

func mcpAnalyzeSkillGap(deps MCPDeps) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if deps.Analyzer == nil {
			return mcpError("analysis is not configured"), nil
		}
		profileID, err := req.RequireString("profile_id")
		if err != nil {
			return mcpError("profile_id is required"), nil
		}
		roleName, err := req.RequireString("role_name")
		if err != nil || strings.TrimSpace(roleName) == "" {
			return mcpError("role_name is required"), nil
		}
		mode, err := analyzer.ParseMode(req.GetString("mode", ""))
		if err != nil {
			return mcpError(err.Error()), nil
		}

		profile, err := deps.Store.GetProfile(profileID)
		if errors.Is(err, storage.ErrNotFound) {
			return mcpError(fmt.Sprintf("profile %s not found", profileID)), nil
		}
		if err != nil {
			return mcpError(fmt.Sprintf("failed to get profile: %v", err)), nil
		}

		role := storage.TargetRole{
			RoleName:    strings.TrimSpace(roleName),
			Description: req.GetString("description", ""),
		}
		for _, name := range req.GetStringSlice("required_skills", nil) {
			if name = strings.TrimSpace(name); name != "" {
				role.RequiredSkills = append(role.RequiredSkills, gap.Skill{Name: name})
			}
		}

		res, err := deps.Analyzer.Analyze(ctx, analyzer.Request{
			Profile:    profile,
			TargetRole: role,
			UserQuery:  req.GetString("user_query", ""),
			UseRAG:     req.GetBool("use_rag", true),
			Mode:       mode,
		})
		if err != nil {
			return mcpError(fmt.Sprintf("analysis failed: %v", err)), nil
		}

		b, err := json.Marshal(res.Report)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal report: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpGetProfile(deps MCPDeps) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := req.RequireString("profile_id")
		if err != nil {
			return mcpError("profile_id is required"), nil
		}
		p, err := deps.Store.GetProfile(id)
		if errors.Is(err, storage.ErrNotFound) {
			return mcpError(fmt.Sprintf("profile %s not found", id)), nil
		}
		if err != nil {
			return mcpError(fmt.Sprintf("failed to get profile: %v", err)), nil
		}
		return mcpJSON(p)
	}
}

func mcpListReports(deps MCPDeps) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := req.RequireString("profile_id")
		if err != nil {
			return mcpError("profile_id is required"), nil
		}
		limit := clampLimit(req.GetInt("limit", 10), 10, 100)

		reports, err := deps.Store.ListReports(id, limit)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to list reports: %v", err)), nil
		}
		return mcpJSON(reports)
	}
}

func mcpAddFramework(deps MCPDeps) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		name, err := req.RequireString("name")
		if err != nil || strings.TrimSpace(name) == "" {
			return mcpError("name is required"), nil
		}
		text, err := req.RequireString("text")
		if err != nil || strings.TrimSpace(text) == "" {
			return mcpError("text is required"), nil
		}
		name = strings.TrimSpace(name)

		q, err := queueDocument(deps.Store, storage.KindFramework, "", name, text,
			map[string]any{"name": name, "source": "mcp"})
		if err != nil {
			return mcpError(fmt.Sprintf("failed to add framework: %v", err)), nil
		}
		return mcpText(fmt.Sprintf("Queued framework %s for indexing", q.DocumentID)), nil
	}
}

func mcpSearchContext(deps MCPDeps) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if deps.Search == nil {
			return mcpError("retrieval is not configured"), nil
		}
		query, err := req.RequireString("query")
		if err != nil {
			return mcpError("query is required"), nil
		}
		collection := req.GetString("collection", retrieval.CollectionFrameworks)
		if !retrieval.ValidCollection(collection) {
			return mcpError(fmt.Sprintf("unknown collection %q", collection)), nil
		}
		limit := clampLimit(req.GetInt("limit", 5), 5, 50)

		chunks, err := deps.Search.Search(ctx, collection, query, limit)
		if err != nil {
			return mcpError(fmt.Sprintf("search failed: %v", err)), nil
		}
		if len(chunks) == 0 {
			return mcpText("[]"), nil
		}
		return mcpJSON(chunks)
	}
}

func mcpResourceProfiles(deps MCPDeps) mcpserver.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		profiles, err := deps.Store.ListProfiles(0, 100)
		if err != nil {
			return nil, fmt.Errorf("failed to list profiles: %w", err)
		}

		type profileSummary struct {
			ID          string `json:"id"`
			Name        string `json:"name"`
			CurrentRole string `json:"current_role"`
			Skills      int    `json:"skills"`
		}
		summaries := make([]profileSummary, len(profiles))
		for i, p := range profiles {
			summaries[i] = profileSummary{ID: p.ID, Name: p.Name, CurrentRole: p.CurrentRole, Skills: len(p.Skills)}
		}

		b, err := json.Marshal(summaries)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal profiles: %w", err)
		}

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(b),
			},
		}, nil
	}
}

func clampLimit(v, def, max int) int {
	if v <= 0 {
		return def
	}
	if v > max {
		return max
	}
	return v
}

func mcpJSON(v any) (*mcp.CallToolResult, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return mcpError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcpText(string(b)), nil
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
