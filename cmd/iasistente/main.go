// Package main is the IAsistente CLI entry point.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/hyperjump/iasistente/internal/cli"
	"github.com/hyperjump/iasistente/internal/config"
	"github.com/hyperjump/iasistente/internal/indexer"
	"github.com/hyperjump/iasistente/internal/models"
	"github.com/hyperjump/iasistente/internal/server"
	"github.com/hyperjump/iasistente/internal/storage"
	"github.com/hyperjump/iasistente/internal/watcher"
	"github.com/hyperjump/iasistente/pkg/utils"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

var version = "dev"

const (
	defaultConfigPath = "/usr/local/etc/iasistente/config.yaml"
	defaultServerURL  = "http://localhost:8000"
)

// loadConfig loads config from path and overlays the environment. When path is the default,
// config.yaml in the current directory is preferred; when neither exists the built-in defaults
// are used. Returns the config and the file that was loaded ("" for defaults only).
func loadConfig(path string, lookup config.LookupFunc) (*config.Config, string, error) {
	var (
		cfg      *config.Config
		resolved string
		err      error
	)
	candidates := []string{path}
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			candidates = []string{filepath.Join(cwd, "config.yaml"), path}
		}
	}
	for _, p := range candidates {
		if _, statErr := os.Stat(p); statErr == nil {
			resolved = p
			break
		}
	}
	switch {
	case resolved != "":
		cfg, err = config.Load(resolved)
		if err != nil {
			return nil, "", err
		}
	case path == defaultConfigPath:
		cfg = config.Default()
	default:
		return nil, "", fmt.Errorf("failed to read config: %s: %w", path, os.ErrNotExist)
	}
	if err := config.ApplyEnv(cfg, lookup); err != nil {
		return nil, "", err
	}
	return cfg, resolved, nil
}

func main() {
	// A missing .env file is fine; the environment may already be set.
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "server":
		runServer()
	case "ingest":
		os.Exit(runIngest(os.Args[2:]))
	case "ask":
		runAsk()
	case "domains":
		runDomains()
	case "history":
		runHistory()
	case "version", "--version", "-v":
		fmt.Printf("iasistente version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

// setup loads config and builds the logger, exiting on failure.
func setup(configPath string, debug bool) (*config.Config, *zap.Logger) {
	cfg, resolved, err := loadConfig(configPath, os.LookupEnv)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := utils.NewLogger(cfg.Debug || debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	logger.Debug("config loaded", zap.String("config_path", resolved), zap.String("faiss_base_path", cfg.Storage.FAISSBasePath))
	return cfg, logger
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(os.Args[2:])

	cfg, logger := setup(*configPath, *debug)
	defer logger.Sync()
	if err := cfg.Validate(); err != nil {
		logger.Fatal("Invalid configuration", zap.Error(err))
	}
	if cfg.Storage.FAISSBasePath == "" {
		logger.Warn("FAISS_BASE_PATH is not set; chat requests will fail until it is configured")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	components := initializeComponents(cfg, logger)
	defer components.Close()

	cache, err := newChainCache(ctx, cfg, components, logger)
	if err != nil {
		logger.Fatal("Failed to initialize chat pipeline", zap.Error(err))
	}

	if cfg.Retrieval.WatchIndexesOrDefault() && cfg.Storage.FAISSBasePath != "" {
		w := newIndexWatcher(cfg.Storage.FAISSBasePath, cache, logger)
		if err := w.Start(ctx); err != nil {
			logger.Warn("index watcher disabled", zap.Error(err))
		} else {
			defer w.Stop()
		}
	}

	srv := server.NewServer(cache, components.Store, components.Ledger, &cfg.Server, logger)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(shutdownCtx)
}

func runIngest(args []string) int {
	fs := flag.NewFlagSet("ingest", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	outDir := fs.String("out", "", "index base directory (default: FAISS_BASE_PATH)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	watch := fs.Bool("watch", false, "keep running and ingest files added to the given directories (or ingest.inbox)")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(args)

	format, err := cli.ParseOutputFormat(*outputFormat)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	if fs.NArg() < 1 && !*watch {
		fmt.Fprintln(os.Stderr, "Usage: iasistente ingest [flags] <file-or-directory>...")
		return 1
	}

	cfg, logger := setup(*configPath, *debug)
	defer logger.Sync()
	baseDir := cfg.Storage.FAISSBasePath
	if *outDir != "" {
		baseDir = *outDir
	}

	components := initializeComponents(cfg, logger)
	defer components.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	exitCode := 0
	if fs.NArg() > 0 {
		files, err := indexer.CollectFiles(fs.Args(), cfg.Ingest.Extensions)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Ingestion failed: %v\n", err)
			return 1
		}
		results := components.Indexer.IngestBatch(ctx, files, baseDir, cfg.LLM.APIKey)
		if err := cli.WriteIngestReport(os.Stdout, results, format); err != nil {
			fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
			return 1
		}
		if models.Summarize(results).Failed > 0 {
			exitCode = 1
		}
	}
	if !*watch {
		return exitCode
	}

	roots := watchRoots(fs.Args(), cfg.Ingest.Inbox)
	if len(roots) == 0 {
		fmt.Fprintln(os.Stderr, "Nothing to watch: pass a directory or set ingest.inbox")
		return 1
	}
	ingestOne := func(path string) {
		res, _ := components.Indexer.Ingest(ctx, indexer.IngestRequest{Path: path, BaseDir: baseDir, APIKey: cfg.LLM.APIKey})
		_ = cli.WriteIngestReport(os.Stdout, []*models.IngestionResult{res}, format)
	}
	w := watcher.NewWatcher(roots, watcher.ExtensionMatcher(cfg.Ingest.Extensions), true, ingestOne, nil, watcher.WithLogger(logger))
	if err := w.Start(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to start watcher: %v\n", err)
		return 1
	}
	defer w.Stop()
	if fs.NArg() == 0 {
		w.SyncExistingFiles()
	}
	logger.Info("watching for new documents", zap.Strings("directories", roots), zap.String("base", baseDir))
	<-ctx.Done()
	return exitCode
}

// watchRoots returns the directories among args, or inbox when args names none.
func watchRoots(args []string, inbox string) []string {
	var roots []string
	for _, a := range args {
		if info, err := os.Stat(a); err == nil && info.IsDir() {
			roots = append(roots, a)
		}
	}
	if len(roots) == 0 && len(args) == 0 && inbox != "" {
		roots = append(roots, inbox)
	}
	return roots
}

func runAsk() {
	fs := flag.NewFlagSet("ask", flag.ExitOnError)
	serverURL := fs.String("server", defaultServerURL, "server URL")
	domain := fs.String("domain", "", "knowledge domain to ask (required)")
	_ = fs.Parse(os.Args[2:])

	question := strings.TrimSpace(strings.Join(fs.Args(), " "))
	if *domain == "" || question == "" {
		fmt.Fprintln(os.Stderr, "Usage: iasistente ask [--server URL] --domain <domain> <question>")
		os.Exit(1)
	}
	answer, err := askViaHTTP(*serverURL, *domain, question)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Ask failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(answer)
}

func askViaHTTP(serverURL, domain, question string) (string, error) {
	body, err := json.Marshal(models.ChatRequest{UserMessage: question, KnowledgeDomain: domain})
	if err != nil {
		return "", err
	}
	resp, err := http.Post(strings.TrimRight(serverURL, "/")+"/chat", "application/json", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		var e models.ErrorResponse
		if decodeErr := json.NewDecoder(resp.Body).Decode(&e); decodeErr != nil || e.Detail == "" {
			return "", fmt.Errorf("server returned %d", resp.StatusCode)
		}
		return "", fmt.Errorf("server returned %d: %s", resp.StatusCode, e.Detail)
	}
	var out models.ChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	return out.Response, nil
}

func runDomains() {
	fs := flag.NewFlagSet("domains", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	format, err := cli.ParseOutputFormat(*outputFormat)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	cfg, logger := setup(*configPath, false)
	defer logger.Sync()

	components := initializeComponents(cfg, logger)
	defer components.Close()
	domains, err := components.Store.List()
	if err != nil {
		fmt.Fprintf(os.Stderr, "List failed: %v\n", err)
		os.Exit(1)
	}
	if components.Ledger != nil {
		if err := storage.AnnotateLastSuccess(context.Background(), components.Ledger, domains); err != nil {
			logger.Warn("ingestion ledger lookup failed", zap.Error(err))
		}
	}
	if err := cli.WriteDomains(os.Stdout, domains, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func runHistory() {
	fs := flag.NewFlagSet("history", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	limit := fs.Int("limit", 20, "number of entries")
	domain := fs.String("domain", "", "only show this domain")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	format, err := cli.ParseOutputFormat(*outputFormat)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	cfg, logger := setup(*configPath, false)
	defer logger.Sync()

	components := initializeComponents(cfg, logger)
	defer components.Close()
	if components.Ledger == nil {
		fmt.Fprintln(os.Stderr, "Ingestion history is not available (check storage.database_path)")
		os.Exit(1)
	}
	results, err := components.Ledger.List(context.Background(), *domain, *limit)
	if err != nil {
		fmt.Fprintf(os.Stderr, "History failed: %v\n", err)
		os.Exit(1)
	}
	if err := cli.WriteHistory(os.Stdout, results, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`iasistente - Spanish-speaking tutor over per-domain knowledge indexes

Usage:
  iasistente server [flags]                    Start the HTTP server (POST /chat)
  iasistente ingest [flags] <file|dir>...      Build knowledge indexes from documents
  iasistente ask [flags] --domain D <question> Ask a running server
  iasistente domains [flags]                   List knowledge domains on disk
  iasistente history [flags]                   Show recent ingestions
  iasistente version                           Show version
  iasistente help                              Show this help

Server Flags:
  --config string    Config file path (default: /usr/local/etc/iasistente/config.yaml)
  --debug            Enable debug logging

Ingest Flags:
  --config string    Config file path
  --out string       Index base directory (default: FAISS_BASE_PATH)
  --output string    Output format: text or json (default: text)
  --watch            Keep running and ingest new files from the given directories or ingest.inbox

Ask Flags:
  --server string    Server URL (default: http://localhost:8000)
  --domain string    Knowledge domain

Domains / History Flags:
  --config string    Config file path
  --output string    Output format: text or json (default: text)
  --limit int        History entries to show (default: 20)
  --domain string    Only show history for this domain

Environment:
  GOOGLE_API_KEY     Google Generative AI key (required)
  FAISS_BASE_PATH    Directory holding faiss_index_<domain> indexes
  LANGUAGE_MODEL     Chat model (default: gemini-2.0-flash)
  TEMPERATURE        Sampling temperature (default: 0.7)
  EMBEDDING_MODEL    Embedding model (default: models/embedding-001)

Examples:
  iasistente ingest docs/algebra_intro.pdf
  iasistente ingest --output json docs/
  iasistente ingest --watch
  iasistente server
  iasistente ask --domain algebra_intro "¿Qué es una variable?"`)
}
