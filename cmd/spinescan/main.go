package main

import (
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"

	"github.com/campusbooks/spinescan/internal/catalog"
	"github.com/campusbooks/spinescan/internal/extraction"
)

//go:embed VERSION.txt
var versionFile string

var version = strings.TrimSpace(versionFile)

func main() {
	// Load .env before flag parsing so env-sourced flags see it
	godotenv.Load()

	fs := ff.NewFlagSet("spinescan")
	var (
		port            = fs.IntLong("port", 8000, "HTTP server port")
		dbPath          = fs.StringLong("db", "spinescan.db", "Database file path")
		storagePath     = fs.StringLong("storage", "./uploads", "Upload directory path")
		maxUploadMB     = fs.IntLong("max-upload-mb", 20, "Maximum accepted upload size in megabytes")
		taxonomyPath    = fs.StringLong("taxonomy", "", "Optional YAML file overriding the category taxonomy")
		recognizerType  = fs.StringLong("recognizer", "gemini", "Recognizer type: 'gemini' or 'ollama'")
		geminiKey       = fs.StringLong("gemini-key", "", "Google Gemini API key (or set GEMINI_API_KEY env var)")
		geminiModel     = fs.StringLong("gemini-model", "gemini-2.5-pro", "Google Gemini model name")
		ollamaURL       = fs.StringLong("ollama-url", "http://localhost:11434", "Ollama API base URL")
		ollamaModel     = fs.StringLong("ollama-model", "llava", "Ollama vision model name (e.g., llava, qwen2-vl)")
		extractorURL    = fs.StringLong("extractor-url", "https://api.siliconflow.cn", "OpenAI-compatible chat endpoint base URL")
		extractorKey    = fs.StringLong("extractor-key", "", "Chat endpoint API key (or set SILICONCLOUD_API_KEY env var)")
		extractorModel  = fs.StringLong("extractor-model", "Qwen/Qwen2.5-7B-Instruct", "Chat model name for structuring")
		extractInflight = fs.IntLong("extract-concurrency", 4, "Maximum concurrent in-flight extraction calls")
		showVersion     = fs.BoolLong("version", "Show version information")
	)

	if err := ff.Parse(fs, os.Args[1:],
		ff.WithEnvVarPrefix("SPINESCAN"),
	); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Flags(fs))
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	if *showVersion {
		fmt.Println(version)
		os.Exit(0)
	}

	slog.Info("Initializing database...")
	db, err := catalog.NewBoltDB(*dbPath)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	taxonomy := catalog.DefaultTaxonomy()
	if *taxonomyPath != "" {
		taxonomy, err = catalog.LoadTaxonomy(*taxonomyPath)
		if err != nil {
			slog.Error("Failed to load taxonomy", "path", *taxonomyPath, "error", err)
			os.Exit(1)
		}
		slog.Info("Loaded taxonomy override", "path", *taxonomyPath, "categories", len(taxonomy.Categories()))
	}

	var recognizer extraction.Recognizer
	switch *recognizerType {
	case "gemini":
		apiKey := *geminiKey
		if apiKey == "" {
			apiKey = os.Getenv("GEMINI_API_KEY")
		}
		if apiKey == "" {
			slog.Error("Gemini API key is required. Set --gemini-key flag or GEMINI_API_KEY environment variable")
			os.Exit(1)
		}
		slog.Info("Initializing Gemini recognizer...", "model", *geminiModel)
		recognizer, err = extraction.NewGemini(apiKey, *geminiModel)
		if err != nil {
			slog.Error("Failed to initialize Gemini", "error", err)
			os.Exit(1)
		}
	case "ollama":
		slog.Info("Initializing Ollama recognizer...", "url", *ollamaURL, "model", *ollamaModel)
		recognizer, err = extraction.NewOllama(*ollamaURL, *ollamaModel)
		if err != nil {
			slog.Error("Failed to initialize Ollama", "error", err)
			os.Exit(1)
		}
	default:
		slog.Error("Invalid recognizer type", "type", *recognizerType, "valid", "gemini or ollama")
		os.Exit(1)
	}
	defer recognizer.Close()

	chatKey := *extractorKey
	if chatKey == "" {
		chatKey = os.Getenv("SILICONCLOUD_API_KEY")
	}
	slog.Info("Initializing chat extractor...", "url", *extractorURL, "model", *extractorModel)
	extractor, err := extraction.NewChat(*extractorURL, chatKey, *extractorModel)
	if err != nil {
		slog.Error("Failed to initialize extractor", "error", err)
		os.Exit(1)
	}
	defer extractor.Close()

	slog.Info("Initializing image store...")
	images, err := catalog.NewLocalImageStore(*storagePath, int64(*maxUploadMB)<<20, db)
	if err != nil {
		slog.Error("Failed to initialize image store", "error", err)
		os.Exit(1)
	}

	service := catalog.NewService(db, images, recognizer, extractor, taxonomy, int64(*extractInflight))
	server := catalog.NewServer(service)

	addr := fmt.Sprintf(":%d", *port)
	go func() {
		if err := server.Start(addr); err != nil {
			slog.Error("Server error", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("Server started", "address", fmt.Sprintf("http://localhost%s", addr), "version", version)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	slog.Info("Shutting down...")
}
