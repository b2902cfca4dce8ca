package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/kalambet/skillgap/internal/analyzer"
	"github.com/kalambet/skillgap/internal/api"
	"github.com/kalambet/skillgap/internal/composer"
	"github.com/kalambet/skillgap/internal/config"
	"github.com/kalambet/skillgap/internal/engine"
	"github.com/kalambet/skillgap/internal/gap"
	"github.com/kalambet/skillgap/internal/ingest"
	"github.com/kalambet/skillgap/internal/llm"
	"github.com/kalambet/skillgap/internal/reranking"
	"github.com/kalambet/skillgap/internal/retrieval"
	"github.com/kalambet/skillgap/internal/storage"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the skillgap server (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		mcpStdio, _ := cmd.Flags().GetBool("mcp-stdio")
		return runServer(mcpStdio)
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running skillgap server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return stopServer()
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show skillgap system status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showStatus(cmd.Context())
	},
}

func init() {
	serveCmd.Flags().Bool("mcp-stdio", false, "serve MCP over stdin/stdout instead of HTTP")
}

func pidFilePath(dataDir string) string {
	return filepath.Join(dataDir, "skillgap.pid")
}

func writePIDFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o644)
}

func readPIDFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(data)))
}

func removePIDFile(path string) {
	os.Remove(path)
}

func logLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// newGenerator picks the model backend for analyses.
func newGenerator(cfg config.Config, eng engine.Engine) analyzer.Generator {
	if cfg.LLM.Provider == config.ProviderOllama {
		return engine.NewGenerator(eng, cfg.Ollama.ChatModel, cfg.LLM.Temperature)
	}
	return llm.New(llm.Config{
		BaseURL:     cfg.LLM.BaseURL,
		APIKey:      cfg.LLM.APIKey,
		Model:       cfg.LLM.Model,
		Temperature: cfg.LLM.Temperature,
		Timeout:     cfg.LLM.TimeoutDuration(),
	})
}

// newParser builds the response parser, merging the alias file over the
// built-in table when one is configured.
func newParser(aliasFile string) (*gap.Parser, error) {
	aliases := gap.DefaultAliases()
	if aliasFile != "" {
		f, err := os.Open(aliasFile)
		if err != nil {
			return nil, fmt.Errorf("opening alias file: %w", err)
		}
		defer f.Close()
		extra, err := gap.LoadAliases(f)
		if err != nil {
			return nil, fmt.Errorf("loading alias file %s: %w", aliasFile, err)
		}
		aliases = aliases.Merge(extra)
	}
	return gap.NewParser(gap.WithAliases(aliases)), nil
}

func runServer(mcpStdio bool) error {
	printVersion()

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := cfg.RequireLLM(); err != nil {
		return err
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel(cfg.Log.Level)})))

	addr := net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port))
	pidPath := pidFilePath(cfg.Storage.DataDir)
	if !mcpStdio {
		// Refuse to start twice.
		healthClient := &http.Client{Timeout: 2 * time.Second}
		if resp, err := healthClient.Get(serverURL(cfg.Server) + "/health"); err == nil {
			resp.Body.Close()
			if pid, pidErr := readPIDFile(pidPath); pidErr == nil {
				printWarning("skillgap is already running (PID %d)", pid)
				return fmt.Errorf("server already running (PID %d)", pid)
			}
			printWarning("skillgap is already running on %s", addr)
			return fmt.Errorf("server already running on %s", addr)
		}
		if err := writePIDFile(pidPath); err != nil {
			return fmt.Errorf("writing PID file: %w", err)
		}
		defer removePIDFile(pidPath)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := storage.Open(cfg.Storage.DataDir)
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "warning: closing storage: %v\n", err)
		}
	}()

	parser, err := newParser(cfg.Analysis.AliasFile)
	if err != nil {
		return err
	}

	// The local engine serves embeddings, and generation when the provider
	// is ollama. Without it the server still runs, minus retrieval.
	eng := engine.NewLocal(cfg.Ollama.BaseURL)
	models := []string{cfg.Ollama.EmbedModel}
	if cfg.LLM.Provider == config.ProviderOllama || cfg.Retrieval.Rerank {
		models = append(models, cfg.Ollama.ChatModel)
	}
	ragReady := true
	if err := engine.EnsureReady(ctx, eng, os.Stderr, models...); err != nil {
		if cfg.LLM.Provider == config.ProviderOllama {
			return err
		}
		ragReady = false
		printWarning("retrieval disabled: %v", err)
	}

	gen := newGenerator(cfg, eng)
	opts := []analyzer.Option{
		analyzer.WithStore(store),
		analyzer.WithNarrative(cfg.Analysis.FormatNarrative),
	}

	var search api.Searcher
	if ragReady {
		embedder := retrieval.NewEmbedder(eng, cfg.Ollama.EmbedModel)
		vectorStore := retrieval.NewSQLiteStore(store.DB())
		retriever := retrieval.NewRetriever(embedder, vectorStore)
		search = retriever
		opts = append(opts, analyzer.WithRetrieval(retriever, composer.New(cfg.Retrieval.MaxContextTokens), cfg.Retrieval.TopK))
		if cfg.Retrieval.Rerank {
			opts = append(opts, analyzer.WithReranker(reranking.New(eng, reranking.Config{
				Model:     cfg.Ollama.ChatModel,
				Threshold: cfg.Retrieval.RerankThreshold,
				Timeout:   cfg.Retrieval.RerankTimeoutDuration(),
			}, true)))
		}

		splitter := retrieval.NewSplitter(cfg.Retrieval.ChunkSize, cfg.Retrieval.ChunkOverlap)
		worker := ingest.NewWorker(store, embedder, vectorStore, splitter, 500*time.Millisecond)
		go worker.Run(ctx)
	}
	an := analyzer.New(gen, parser, opts...)
	slog.Info("analyzer ready", "provider", cfg.LLM.Provider, "model", gen.Model(), "retrieval", ragReady)

	if mcpStdio {
		mcpSrv := api.NewMCPServer(api.MCPDeps{Store: store, Analyzer: an, Search: search})
		slog.Info("MCP server started (stdio transport)")
		err := server.NewStdioServer(mcpSrv).Listen(ctx, os.Stdin, os.Stdout)
		if err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("MCP stdio server: %w", err)
		}
		return nil
	}

	srv := &http.Server{
		Addr: addr,
		Handler: api.NewHandler(api.Deps{
			Store:    store,
			Analyzer: an,
			Search:   search,
			Provider: cfg.LLM.Provider,
			Model:    gen.Model(),
			Token:    cfg.Server.APIToken,
		}),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}
	if cfg.Server.APIToken == "" {
		slog.Warn("server.api_token is not set; /api routes are unauthenticated")
	}

	errCh := make(chan error, 1)
	go func() {
		fmt.Fprintf(os.Stderr, "skillgap listening on %s\n", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		fmt.Fprintln(os.Stderr, "shutting down...")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func stopServer() error {
	cfg, err := config.Load()
	if err != nil {
		printError("could not load config: %v", err)
		return err
	}

	pidPath := pidFilePath(cfg.Storage.DataDir)
	pid, err := readPIDFile(pidPath)
	if err != nil {
		printError("skillgap is not running (no PID file)")
		return fmt.Errorf("not running: %w", err)
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		printError("could not find process %d", pid)
		return err
	}

	if err := process.Signal(syscall.SIGTERM); err != nil {
		printError("could not stop skillgap (PID %d): %v", pid, err)
		removePIDFile(pidPath)
		return err
	}

	printSuccess("Sent stop signal to skillgap (PID %d)", pid)
	return nil
}

type healthInfo struct {
	Status   string         `json:"status"`
	Store    string         `json:"store"`
	Vectors  map[string]int `json:"vectors"`
	Jobs     map[string]int `json:"jobs"`
	Provider string         `json:"provider"`
	Model    string         `json:"model"`
}

func showStatus(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := config.Load()
	if err != nil {
		// Partial status is still useful.
		printError("config error: %v", err)
		return nil
	}

	client, err := newAPIClient()
	if err != nil {
		return err
	}
	client.hc = &http.Client{Timeout: 2 * time.Second}

	reqCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	resp, err := client.get(reqCtx, "/health")
	if err != nil {
		printStatus("Server", "stopped")
	} else {
		var h healthInfo
		if err := decodeJSON(resp, &h); err != nil {
			printStatus("Server", "error (%v)", err)
		} else {
			printStatus("Server", "%s on %s", h.Status, serverURL(cfg.Server))
			printStatus("Store", "%s", h.Store)
			if h.Vectors == nil {
				printStatus("Retrieval", "disabled")
			}
			for _, c := range retrieval.Collections {
				if n, ok := h.Vectors[c]; ok {
					printStatus("Vectors ("+c+")", "%s", vectorLabel(n))
				}
			}
			if n := h.Jobs[storage.JobPending] + h.Jobs[storage.JobRunning]; n > 0 {
				printStatus("Indexing", "%d document(s) queued, %d failed", n, h.Jobs[storage.JobFailed])
			} else if f := h.Jobs[storage.JobFailed]; f > 0 {
				printStatus("Indexing", "idle, %d failed", f)
			}
		}
	}

	eng := engine.NewLocal(cfg.Ollama.BaseURL)
	if eng.IsRunning(reqCtx) {
		printStatus("Ollama", "running at %s", cfg.Ollama.BaseURL)
	} else {
		printStatus("Ollama", "not running")
	}

	printStatus("Provider", "%s", cfg.LLM.Provider)
	if cfg.LLM.Provider == config.ProviderOllama {
		printStatus("Chat model", "%s", cfg.Ollama.ChatModel)
	} else {
		printStatus("Model", "%s", cfg.LLM.Model)
	}
	printStatus("Embed model", "%s", cfg.Ollama.EmbedModel)
	printStatus("Data dir", "%s", cfg.Storage.DataDir)
	return nil
}

func vectorLabel(n int) string {
	if n < 0 {
		return "unavailable"
	}
	return strconv.Itoa(n)
}
