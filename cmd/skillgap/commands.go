package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kalambet/skillgap/internal/analyzer"
	"github.com/kalambet/skillgap/internal/config"
	"github.com/kalambet/skillgap/internal/gap"
	"github.com/kalambet/skillgap/internal/retrieval"
	"github.com/kalambet/skillgap/internal/storage"
)

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// parseSkillFlag reads "name" or "name:level" into a request skill.
func parseSkillFlag(s string) (map[string]any, error) {
	name, level, _ := strings.Cut(s, ":")
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("invalid skill %q: name is empty", s)
	}
	skill := map[string]any{"name": name}
	if level = strings.TrimSpace(level); level != "" {
		skill["proficiency"] = level
	}
	return skill, nil
}

func parseSkillFlags(values []string) ([]map[string]any, error) {
	skills := make([]map[string]any, 0, len(values))
	for _, v := range values {
		s, err := parseSkillFlag(v)
		if err != nil {
			return nil, err
		}
		skills = append(skills, s)
	}
	return skills, nil
}

// --- profile ---

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Manage skill profiles",
}

var profileCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a structured profile",
	Long: `Create a structured profile.

Examples:
  skillgap profile create --name "Ada" --role "Backend Engineer" \
    --skill Go:advanced --skill PostgreSQL:intermediate --years 6`,
	RunE: func(cmd *cobra.Command, args []string) error {
		name, _ := cmd.Flags().GetString("name")
		role, _ := cmd.Flags().GetString("role")
		skillFlags, _ := cmd.Flags().GetStringArray("skill")
		certs, _ := cmd.Flags().GetStringSlice("cert")
		bio, _ := cmd.Flags().GetString("bio")

		if name == "" || role == "" {
			return fmt.Errorf("--name and --role are required")
		}
		skills, err := parseSkillFlags(skillFlags)
		if err != nil {
			return err
		}

		req := map[string]any{
			"name":         name,
			"current_role": role,
			"skills":       skills,
		}
		if len(certs) > 0 {
			req["certifications"] = certs
		}
		if bio != "" {
			req["bio"] = bio
		}
		if cmd.Flags().Changed("years") {
			years, _ := cmd.Flags().GetFloat64("years")
			req["experience_years"] = years
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.post(commandContext(cmd), "/api/profiles/create", req)
		if err != nil {
			return err
		}
		var result map[string]string
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		printSuccess("Created profile %s", result["profile_id"])
		fmt.Println(result["profile_id"])
		return nil
	},
}

var profileUploadCmd = &cobra.Command{
	Use:   "upload [file]",
	Short: "Upload a resume or free-text profile",
	Long: `Upload a resume or free-text profile.

Files are sent as-is and converted to text by the server (txt, md, json, pdf,
docx, html). Use --text for inline text.

Examples:
  skillgap profile upload ./resume.pdf --role "Data Analyst"
  skillgap profile upload --text "Backend engineer, 6 years of Go"`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		text, _ := cmd.Flags().GetString("text")
		name, _ := cmd.Flags().GetString("name")
		role, _ := cmd.Flags().GetString("role")

		if text == "" && len(args) == 0 {
			return fmt.Errorf("a file argument or --text is required")
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		ctx := commandContext(cmd)

		var result struct {
			ProfileID     string `json:"profile_id"`
			DocumentID    string `json:"document_id"`
			ExtractedInfo string `json:"extracted_info"`
		}
		if text != "" {
			resp, err := client.post(ctx, "/api/profiles/upload", map[string]string{
				"profile_text": text,
				"name":         name,
				"current_role": role,
			})
			if err != nil {
				return err
			}
			if err := decodeJSON(resp, &result); err != nil {
				return err
			}
		} else {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("reading file: %w", err)
			}
			resp, err := client.postFile(ctx, "/api/profiles/upload-file", filepath.Base(args[0]), data,
				map[string]string{"name": name, "current_role": role})
			if err != nil {
				return err
			}
			if err := decodeJSON(resp, &result); err != nil {
				return err
			}
		}

		printSuccess("Uploaded profile %s", result.ProfileID)
		if result.ExtractedInfo != "" {
			fmt.Fprintln(os.Stderr)
			fmt.Fprintln(os.Stderr, result.ExtractedInfo)
		}
		fmt.Println(result.ProfileID)
		return nil
	},
}

var profileListCmd = &cobra.Command{
	Use:   "list",
	Short: "List profiles",
	RunE: func(cmd *cobra.Command, args []string) error {
		skip, _ := cmd.Flags().GetInt("skip")
		limit, _ := cmd.Flags().GetInt("limit")

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.get(commandContext(cmd), fmt.Sprintf("/api/profiles?skip=%d&limit=%d", skip, limit))
		if err != nil {
			return err
		}
		var profiles []storage.Profile
		if err := decodeJSON(resp, &profiles); err != nil {
			return err
		}

		if len(profiles) == 0 {
			fmt.Println("No profiles found.")
			return nil
		}
		for _, p := range profiles {
			fmt.Printf("%s  %-24s  %-28s  %d skills\n",
				colorize(ansiCyan, p.ID),
				truncate(p.Name, 24),
				truncate(p.CurrentRole, 28),
				len(p.Skills),
			)
		}
		return nil
	},
}

var profileShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a profile as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.get(commandContext(cmd), "/api/profiles/"+url.PathEscape(args[0]))
		if err != nil {
			return err
		}
		var profile any
		if err := decodeJSON(resp, &profile); err != nil {
			return err
		}
		return printJSON(os.Stdout, profile)
	},
}

var profileDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a profile with its reports and indexed text",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.delete(commandContext(cmd), "/api/profiles/"+url.PathEscape(args[0]))
		if err != nil {
			return err
		}
		if err := decodeJSON(resp, nil); err != nil {
			return err
		}
		printSuccess("Deleted profile %s", args[0])
		return nil
	},
}

var profileReportsCmd = &cobra.Command{
	Use:   "reports <id>",
	Short: "List a profile's gap reports, newest first",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.get(commandContext(cmd), fmt.Sprintf("/api/profiles/%s/reports?limit=%d", url.PathEscape(args[0]), limit))
		if err != nil {
			return err
		}
		var reports []storage.Report
		if err := decodeJSON(resp, &reports); err != nil {
			return err
		}

		if len(reports) == 0 {
			fmt.Println("No reports found.")
			return nil
		}
		for _, r := range reports {
			fmt.Printf("%s  %s  %5.1f  %s\n",
				colorize(ansiCyan, r.ID),
				r.CreatedAt.Format("2006-01-02 15:04"),
				r.OverallScore,
				r.TargetRole,
			)
		}
		return nil
	},
}

func init() {
	profileCreateCmd.Flags().String("name", "", "full name")
	profileCreateCmd.Flags().String("role", "", "current role")
	profileCreateCmd.Flags().StringArray("skill", nil, "skill as name or name:level (repeatable)")
	profileCreateCmd.Flags().StringSlice("cert", nil, "certification (repeatable or comma-separated)")
	profileCreateCmd.Flags().Float64("years", 0, "years of experience")
	profileCreateCmd.Flags().String("bio", "", "short bio")

	profileUploadCmd.Flags().String("text", "", "profile text to upload instead of a file")
	profileUploadCmd.Flags().String("name", "", "name (default: Unknown)")
	profileUploadCmd.Flags().String("role", "", "current role (default: Unknown)")

	profileListCmd.Flags().Int("skip", 0, "number of profiles to skip")
	profileListCmd.Flags().Int("limit", 100, "maximum number of profiles")

	profileReportsCmd.Flags().Int("limit", 20, "maximum number of reports")

	profileCmd.AddCommand(profileCreateCmd)
	profileCmd.AddCommand(profileUploadCmd)
	profileCmd.AddCommand(profileListCmd)
	profileCmd.AddCommand(profileShowCmd)
	profileCmd.AddCommand(profileDeleteCmd)
	profileCmd.AddCommand(profileReportsCmd)
}

// --- framework ---

var frameworkCmd = &cobra.Command{
	Use:   "framework",
	Short: "Manage skill frameworks used as retrieval context",
}

var frameworkAddCmd = &cobra.Command{
	Use:   "add <file>",
	Short: "Add a skill framework document",
	Long: `Add a skill framework document (SFIA, NIST NICE, a team ladder...).

Examples:
  skillgap framework add ./sfia-8.md --name "SFIA 8"`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name, _ := cmd.Flags().GetString("name")
		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("reading file: %w", err)
		}
		if name == "" {
			name = strings.TrimSuffix(filepath.Base(args[0]), filepath.Ext(args[0]))
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.post(commandContext(cmd), "/api/frameworks/add", map[string]any{
			"framework_name": name,
			"framework_text": string(data),
			"metadata":       map[string]any{"file": filepath.Base(args[0])},
		})
		if err != nil {
			return err
		}
		var result map[string]string
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}
		printSuccess("Queued framework %s (%s)", name, result["framework_id"])
		return nil
	},
}

var frameworkListCmd = &cobra.Command{
	Use:   "list",
	Short: "List skill frameworks",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.get(commandContext(cmd), fmt.Sprintf("/api/frameworks?limit=%d", limit))
		if err != nil {
			return err
		}
		var docs []storage.Document
		if err := decodeJSON(resp, &docs); err != nil {
			return err
		}

		if len(docs) == 0 {
			fmt.Println("No frameworks found.")
			return nil
		}
		for _, d := range docs {
			state := colorize(ansiYellow, "pending")
			if d.IndexedAt != nil {
				state = colorize(ansiGreen, fmt.Sprintf("%d chunks", d.ChunkCount))
			}
			fmt.Printf("%s  %-32s  %s\n", colorize(ansiCyan, d.ID), truncate(d.Name, 32), state)
		}
		return nil
	},
}

func init() {
	frameworkAddCmd.Flags().String("name", "", "framework name (default: file name)")
	frameworkListCmd.Flags().Int("limit", 20, "maximum number of frameworks")
	frameworkCmd.AddCommand(frameworkAddCmd)
	frameworkCmd.AddCommand(frameworkListCmd)
}

// --- analyze ---

var analyzeCmd = &cobra.Command{
	Use:   "analyze <profile-id>",
	Short: "Run a skill gap analysis",
	Long: `Run a skill gap analysis for a stored profile.

Examples:
  skillgap analyze 3f2c... --role "Platform Engineer"
  skillgap analyze 3f2c... --role SRE --mode rules --require Linux:advanced --require Terraform`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		role, _ := cmd.Flags().GetString("role")
		description, _ := cmd.Flags().GetString("description")
		framework, _ := cmd.Flags().GetString("framework")
		query, _ := cmd.Flags().GetString("query")
		required, _ := cmd.Flags().GetStringArray("require")
		mode, _ := cmd.Flags().GetString("mode")
		noRAG, _ := cmd.Flags().GetBool("no-rag")
		asJSON, _ := cmd.Flags().GetBool("json")

		if role == "" {
			return fmt.Errorf("--role is required")
		}
		if _, err := analyzer.ParseMode(mode); err != nil {
			return err
		}
		skills, err := parseSkillFlags(required)
		if err != nil {
			return err
		}

		req := map[string]any{
			"user_profile_id": args[0],
			"user_query":      query,
			"use_rag":         !noRAG,
			"mode":            mode,
			"target_role": map[string]any{
				"role_name":       role,
				"description":     description,
				"skill_framework": framework,
				"required_skills": skills,
			},
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		printStep("Analyzing profile %s against %s...", args[0], role)
		resp, err := client.post(commandContext(cmd), "/api/analyze", req)
		if err != nil {
			return err
		}
		var res analyzer.Result
		if err := decodeJSON(resp, &res); err != nil {
			return err
		}

		if asJSON {
			return printJSON(os.Stdout, res)
		}
		writeReport(os.Stdout, res.Report.Report)
		if res.Report.LowConfidence {
			printWarning("Nothing scoreable was recovered from the model response; the score is neutral")
		}
		printStatus("Report", "%s", res.Report.ID)
		return nil
	},
}

func init() {
	analyzeCmd.Flags().String("role", "", "target role name")
	analyzeCmd.Flags().String("description", "", "target role description")
	analyzeCmd.Flags().String("framework", "", "skill framework name, e.g. SFIA")
	analyzeCmd.Flags().String("query", "", "your goal in your own words")
	analyzeCmd.Flags().StringArray("require", nil, "required skill as name or name:level (repeatable)")
	analyzeCmd.Flags().String("mode", "llm", "analysis mode: llm or rules")
	analyzeCmd.Flags().Bool("no-rag", false, "skip retrieved framework and profile context")
	analyzeCmd.Flags().Bool("json", false, "print the full result as JSON")
}

// --- search ---

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Semantic search over indexed frameworks or profiles",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		query := strings.Join(args, " ")
		collection, _ := cmd.Flags().GetString("collection")
		limit, _ := cmd.Flags().GetInt("limit")

		if !retrieval.ValidCollection(collection) {
			return fmt.Errorf("--collection must be one of %s", strings.Join(retrieval.Collections, ", "))
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		path := fmt.Sprintf("/api/search?q=%s&collection=%s&limit=%d", url.QueryEscape(query), collection, limit)
		resp, err := client.get(commandContext(cmd), path)
		if err != nil {
			return err
		}
		var result struct {
			Results []retrieval.ContextChunk `json:"results"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		if len(result.Results) == 0 {
			fmt.Println("No results found.")
			return nil
		}
		for i, r := range result.Results {
			fmt.Printf("\n%s [score: %.3f]\n", colorize(ansiBold, fmt.Sprintf("Result %d", i+1)), r.Score)
			fmt.Printf("  %s\n", truncate(r.Text, 500))
		}
		return nil
	},
}

func init() {
	searchCmd.Flags().String("collection", retrieval.CollectionFrameworks, "collection to search: framework or profile")
	searchCmd.Flags().Int("limit", 5, "maximum number of results")
}

// --- parse ---

var parseCmd = &cobra.Command{
	Use:   "parse <file>",
	Short: "Parse a saved model response offline",
	Long: `Parse a saved model response offline and print the recovered analysis
as JSON. No server or model is needed. Use "-" to read stdin.

Examples:
  skillgap parse response.md --skill Go:advanced --skill SQL`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		skillFlags, _ := cmd.Flags().GetStringArray("skill")
		aliasFile, _ := cmd.Flags().GetString("aliases")

		var (
			data []byte
			err  error
		)
		if args[0] == "-" {
			data, err = io.ReadAll(cmd.InOrStdin())
		} else {
			data, err = os.ReadFile(args[0])
		}
		if err != nil {
			return fmt.Errorf("reading input: %w", err)
		}

		analysis, err := parseResponse(string(data), skillFlags, aliasFile)
		if err != nil {
			return err
		}
		if analysis.LowConfidence() {
			printWarning("No skills or gaps recovered; score is neutral")
		}
		return printJSON(cmd.OutOrStdout(), analysis)
	},
}

// parseResponse runs the response parser over text for a user holding the
// given "name:level" skills.
func parseResponse(text string, skillFlags []string, aliasFile string) (gap.Analysis, error) {
	parser, err := newParser(aliasFile)
	if err != nil {
		return gap.Analysis{}, err
	}
	user := make([]gap.Skill, 0, len(skillFlags))
	for _, f := range skillFlags {
		name, level, _ := strings.Cut(f, ":")
		if name = strings.TrimSpace(name); name == "" {
			return gap.Analysis{}, fmt.Errorf("invalid skill %q: name is empty", f)
		}
		user = append(user, gap.Skill{Name: name, Proficiency: gap.NormalizeProficiency(level)})
	}
	return parser.Parse(text, user), nil
}

func init() {
	parseCmd.Flags().StringArray("skill", nil, "skill the user holds, as name or name:level (repeatable)")
	parseCmd.Flags().String("aliases", "", "JSON alias file merged over the built-in table")
}

// --- data ---

var dataCmd = &cobra.Command{
	Use:   "data",
	Short: "Export stored data",
}

var dataExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export profiles and reports as JSONL",
	RunE: func(cmd *cobra.Command, args []string) error {
		output, _ := cmd.Flags().GetString("output")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		var w io.Writer = os.Stdout
		if output != "" {
			f, err := os.Create(output)
			if err != nil {
				return fmt.Errorf("creating output file: %w", err)
			}
			defer f.Close()
			w = f
		}

		n, err := exportData(commandContext(cmd), client, w)
		if err != nil {
			return err
		}
		if output != "" {
			printSuccess("Exported %d records to %s", n, output)
		}
		return nil
	},
}

const exportPageSize = 100

// exportData writes one {"type","data"} record per profile, followed by that
// profile's reports, and returns the number of records written.
func exportData(ctx context.Context, client *apiClient, w io.Writer) (int, error) {
	enc := json.NewEncoder(w)
	written := 0
	for skip := 0; ; {
		resp, err := client.get(ctx, fmt.Sprintf("/api/profiles?skip=%d&limit=%d", skip, exportPageSize))
		if err != nil {
			return written, err
		}
		var profiles []json.RawMessage
		if err := decodeJSON(resp, &profiles); err != nil {
			return written, err
		}
		if len(profiles) == 0 {
			return written, nil
		}

		for _, raw := range profiles {
			if err := enc.Encode(map[string]any{"type": "profile", "data": raw}); err != nil {
				return written, err
			}
			written++

			var p struct {
				ID string `json:"id"`
			}
			if err := json.Unmarshal(raw, &p); err != nil {
				return written, fmt.Errorf("decoding profile: %w", err)
			}
			resp, err := client.get(ctx, fmt.Sprintf("/api/profiles/%s/reports?limit=200", url.PathEscape(p.ID)))
			if err != nil {
				return written, err
			}
			var reports []json.RawMessage
			if err := decodeJSON(resp, &reports); err != nil {
				return written, fmt.Errorf("reports for %s: %w", p.ID, err)
			}
			for _, r := range reports {
				if err := enc.Encode(map[string]any{"type": "report", "data": r}); err != nil {
					return written, err
				}
				written++
			}
		}
		skip += len(profiles)
	}
}

func init() {
	dataExportCmd.Flags().String("output", "", "output file path (default: stdout)")
	dataCmd.AddCommand(dataExportCmd)
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		keys := config.ShowAll(cfg)
		for _, k := range keys {
			fmt.Printf("  %s = %s\n", colorize(ansiBold, k.Key), k.Value)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long: "Set a configuration value. Valid keys: " + strings.Join(config.ValidKeys(), ", ") + `.

Secrets (server.api_token, llm.api_key) go to the platform secret store.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		if err := config.SetKey(key, value); err != nil {
			return err
		}

		if config.IsSecret(key) {
			printSuccess("Stored %s", key)
		} else {
			printSuccess("Set %s = %s", key, value)
		}
		return nil
	},
}

var configUnsetCmd = &cobra.Command{
	Use:   "unset <key>",
	Short: "Remove a stored value so the default applies",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.UnsetKey(args[0]); err != nil {
			return err
		}
		printSuccess("Unset %s", args[0])
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd, configSetCmd, configUnsetCmd)
}

