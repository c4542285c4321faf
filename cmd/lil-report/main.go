package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"lil-report/pkg/config"
	"lil-report/pkg/ingest"
	"lil-report/pkg/prompt"
	"lil-report/pkg/report"
)

const (
	helpFlag = "--help"
)

// version is set during build time via ldflags
var version = "dev"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath  = flag.String("config", "", "Config file (defaults to the profile config)")
		dbPath      = flag.String("db", "", "SQLite database path (overrides config)")
		provider    = flag.String("provider", "", "LLM provider (overrides config)")
		model       = flag.String("model", "", "LLM model (overrides config)")
		help        = flag.Bool("help", false, "Show help")
		showVersion = flag.Bool("version", false, "Show version")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("lil-report version %s\n", version)
		return nil
	}

	if *help {
		printUsage()
		return nil
	}

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		return fmt.Errorf("no command specified")
	}

	command := args[0]

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	cfg.ApplyEnv()

	// Override with command line flags
	if *dbPath != "" {
		cfg.Storage.Driver = config.StorageSQLite
		cfg.Storage.Path = *dbPath
	}
	if *provider != "" {
		cfg.LLM.Provider = *provider
		cfg.LLM.APIKey = ""
		cfg.LoadProviderEnv()
	}
	if *model != "" {
		cfg.LLM.Model = *model
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.LLM.Timeout(true)+time.Minute)
	defer cancel()

	switch command {
	case "parse":
		return handleParse(cfg, args[1:])
	case "report":
		return handleReport(ctx, cfg, args[1:])
	case "show":
		return handleShow(ctx, cfg, args[1:])
	case "reports", "ls":
		return handleReports(ctx, cfg, args[1:])
	case "formats":
		return handleFormats(cfg)
	case "config":
		return handleConfig(cfg, *configPath, args[1:])
	default:
		return fmt.Errorf("unknown command: %s", command)
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		cfg, err := config.Load(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load config %s: %w", path, err)
		}
		return cfg, nil
	}

	cfg, err := config.LoadProfile()
	if err != nil {
		return nil, fmt.Errorf("failed to load profile config: %w", err)
	}
	return cfg, nil
}

func newDocumentHandler(cfg *config.Config) *ingest.DocumentHandler {
	return ingest.NewDocumentHandler(ingest.Limits{
		MaxFileChars:   cfg.Limits.MaxFileChars,
		MaxTableRows:   cfg.Limits.MaxTableRows,
		MaxUploadBytes: cfg.Limits.MaxUploadBytes,
	})
}

func handleParse(cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("parse", flag.ContinueOnError)
	asJSON := fs.Bool("json", false, "Print the full parse result as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("usage: lil-report parse [--json] <file>")
	}

	upload, err := readUpload(fs.Arg(0))
	if err != nil {
		return err
	}

	result := newDocumentHandler(cfg).Parse(upload)

	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	fmt.Printf("File: %s (%s, %d bytes)\n", upload.Name, result.Metadata.Format, result.Metadata.Size)
	fmt.Printf("Summary: %s\n", result.Summary)
	if result.Failed() {
		fmt.Printf("Error: %s\n", result.Error)
	}
	for _, table := range result.Tables {
		fmt.Printf("Table %q: %d rows, %d columns, numeric: %s\n",
			table.Name, table.Insights.RowCount, table.Insights.ColumnCount,
			strings.Join(table.Insights.NumericColumns, ", "))
	}
	fmt.Println()
	fmt.Println(result.Text)
	return nil
}

func handleReport(ctx context.Context, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("report", flag.ContinueOnError)
	graphs := fs.Bool("graphs", false, "Ask the model for inline charts")
	extended := fs.Bool("extended", false, "Use the extended analysis timeout")
	company := fs.String("company", "", "Company name used in the system prompt")
	industry := fs.String("industry", "", "Company industry")
	user := fs.String("user", "", "User id stored with the report")
	output := fs.String("o", "", "Write the report HTML to this file")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 1 {
		return fmt.Errorf("usage: lil-report report [--graphs] [--extended] <query> [file...]")
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	files := make([]report.FileContent, 0, fs.NArg()-1)
	for _, path := range fs.Args()[1:] {
		upload, err := readUpload(path)
		if err != nil {
			return err
		}
		files = append(files, report.FileContent{Name: upload.Name, Data: upload.Data})
	}

	service, err := report.Open(ctx, cfg)
	if err != nil {
		return err
	}
	defer service.Close()

	fmt.Fprintf(os.Stderr, "Generating report with %s (%s) from %d file(s)...\n", cfg.LLM.Provider, cfg.LLM.Model, len(files))
	rep, err := service.Generate(ctx, report.GenerateRequest{
		Query:            fs.Arg(0),
		Company:          prompt.CompanyContext{Name: *company, Industry: *industry},
		IncludeGraphs:    *graphs,
		ExtendedAnalysis: *extended,
		Files:            files,
		UserID:           *user,
	})
	if err != nil {
		return fmt.Errorf("failed to generate report: %w", err)
	}

	if *output != "" {
		if err := os.WriteFile(*output, []byte(rep.Content), 0o644); err != nil {
			return fmt.Errorf("failed to write report: %w", err)
		}
		fmt.Fprintf(os.Stderr, "Report written to %s\n", *output)
	} else {
		fmt.Println(rep.Content)
	}

	fmt.Fprintf(os.Stderr, "Report %s: %d chart(s), %d input / %d output tokens\n",
		rep.ID, len(rep.Charts), rep.Usage.InputTokens, rep.Usage.OutputTokens)
	return nil
}

func handleShow(ctx context.Context, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("show", flag.ContinueOnError)
	asJSON := fs.Bool("json", false, "Print the report as JSON including charts")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("usage: lil-report show [--json] <id>")
	}

	store, err := report.OpenStore(ctx, cfg.Storage)
	if err != nil {
		return fmt.Errorf("failed to open report store: %w", err)
	}
	defer store.Close()

	rep, err := store.Get(ctx, fs.Arg(0))
	if err != nil {
		return err
	}

	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(rep)
	}

	fmt.Printf("Report:  %s\n", rep.ID)
	fmt.Printf("Query:   %s\n", rep.Query)
	fmt.Printf("Model:   %s\n", rep.Model)
	fmt.Printf("Created: %s\n", rep.CreatedAt.Local().Format(time.RFC1123))
	fmt.Printf("Charts:  %d\n", len(rep.Charts))
	fmt.Println()
	fmt.Println(rep.Content)
	return nil
}

func handleReports(ctx context.Context, cfg *config.Config, args []string) error {
	userID := ""
	limit := report.DefaultListLimit
	if len(args) > 0 {
		userID = args[0]
	}
	if len(args) > 1 {
		parsed, err := strconv.Atoi(args[1])
		if err != nil || parsed <= 0 {
			return fmt.Errorf("invalid limit: %s", args[1])
		}
		limit = parsed
	}

	store, err := report.OpenStore(ctx, cfg.Storage)
	if err != nil {
		return fmt.Errorf("failed to open report store: %w", err)
	}
	defer store.Close()

	reports, err := store.List(ctx, userID, limit)
	if err != nil {
		return err
	}
	if len(reports) == 0 {
		fmt.Println("No reports found.")
		return nil
	}

	fmt.Printf("%-36s  %-16s  %-6s  %s\n", "ID", "CREATED", "CHARTS", "QUERY")
	for _, r := range reports {
		fmt.Printf("%-36s  %-16s  %-6d  %s\n", r.ID, r.CreatedAt.Local().Format("2006-01-02 15:04"),
			len(r.Charts), truncateText(r.Query, 60))
	}
	return nil
}

func handleFormats(cfg *config.Config) error {
	handler := newDocumentHandler(cfg)
	for _, format := range []ingest.Format{
		ingest.FormatText, ingest.FormatCSV, ingest.FormatXLSX, ingest.FormatXLS, ingest.FormatPDF,
		ingest.FormatDOCX, ingest.FormatDOC, ingest.FormatHTML,
	} {
		exts := handler.GetSupportedFormats()[format]
		fmt.Printf("%-8s %s\n", format, strings.Join(exts, " "))
	}
	fmt.Printf("\nFiles up to %d bytes; text capped at %d characters per file.\n",
		cfg.Limits.MaxUploadBytes, cfg.Limits.MaxFileChars)
	return nil
}

func handleConfig(cfg *config.Config, configPath string, args []string) error {
	if len(args) == 0 || args[0] == helpFlag {
		return fmt.Errorf("usage: lil-report config <init|show|set>")
	}

	switch args[0] {
	case "init":
		defaultConfig := config.DefaultProfile()
		if err := defaultConfig.SaveProfile(); err != nil {
			return fmt.Errorf("failed to save config: %w", err)
		}
		path, err := config.GetProfileConfigPath()
		if err != nil {
			fmt.Println("Profile config initialized successfully")
		} else {
			fmt.Printf("Profile config initialized at: %s\n", path)
		}
		return nil

	case "show":
		path := configPath
		if path == "" {
			if p, err := config.GetProfileConfigPath(); err == nil {
				path = p
			}
		}
		fmt.Printf("Config file: %s\n", path)
		fmt.Printf("Provider: %s\n", cfg.LLM.Provider)
		fmt.Printf("Model: %s\n", cfg.LLM.Model)
		fmt.Printf("API Key: %s\n", maskKey(cfg.LLM.APIKey))
		if cfg.LLM.BaseURL != "" {
			fmt.Printf("Base URL: %s\n", cfg.LLM.BaseURL)
		}
		fmt.Printf("Timeouts: %ds / %ds extended\n", cfg.LLM.TimeoutSeconds, cfg.LLM.ExtendedTimeoutSeconds)
		fmt.Printf("Storage: %s %s\n", cfg.Storage.Driver, cfg.Storage.Path)
		fmt.Printf("Max File Chars: %d\n", cfg.Limits.MaxFileChars)
		fmt.Printf("Max Context Chars: %d\n", cfg.Limits.MaxContextChars)
		fmt.Printf("Server: %s:%d\n", cfg.Server.Host, cfg.Server.Port)
		return nil

	case "set":
		return handleConfigSet(cfg, configPath, args[1:])

	default:
		return fmt.Errorf("unknown config command: %s", args[0])
	}
}

func handleConfigSet(cfg *config.Config, configPath string, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: lil-report config set <key> <value>")
	}

	key, value := args[0], args[1]

	switch key {
	case "llm.provider":
		cfg.LLM.Provider = value
	case "llm.model":
		cfg.LLM.Model = value
	case "llm.base-url":
		cfg.LLM.BaseURL = value
	case "llm.max-tokens":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid max tokens: %s", value)
		}
		cfg.LLM.MaxTokens = n
	case "storage.driver":
		cfg.Storage.Driver = value
	case "storage.path":
		cfg.Storage.Path = value
	case "server.host":
		cfg.Server.Host = value
	case "server.port":
		port, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid port: %s", value)
		}
		cfg.Server.Port = port
	default:
		return fmt.Errorf("unknown config key: %s", key)
	}

	// keys picked up from the environment are not persisted
	cfg.LLM.APIKey = ""

	var err error
	if configPath != "" {
		err = cfg.Save(configPath)
	} else {
		err = cfg.SaveProfile()
	}
	if err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	fmt.Printf("Config updated: %s = %s\n", key, value)
	return nil
}

func readUpload(path string) (ingest.Upload, error) {
	info, err := os.Stat(path)
	if err != nil {
		return ingest.Upload{}, fmt.Errorf("cannot read %s: %w", path, err)
	}
	if info.IsDir() {
		return ingest.Upload{}, fmt.Errorf("%s is a directory", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return ingest.Upload{}, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return ingest.Upload{Name: filepath.Base(path), Data: data}, nil
}

func maskKey(key string) string {
	if key == "" {
		return "<not set>"
	}
	if len(key) <= 8 {
		return "********"
	}
	return key[:4] + "..." + key[len(key)-4:]
}

func truncateText(text string, maxLength int) string {
	runes := []rune(text)
	if len(runes) <= maxLength {
		return text
	}
	return string(runes[:maxLength-3]) + "..."
}

func printUsage() {
	fmt.Printf("Lil-Report - document reports from a language model (version %s)\n", version)
	fmt.Println("")
	fmt.Println("Usage:")
	fmt.Println("  lil-report [flags] <command> [args]")
	fmt.Println("")
	fmt.Println("Commands:")
	fmt.Println("  parse [--json] <file>                       Extract text and tables from a file")
	fmt.Println("  report [--graphs] [--extended] <query> [file...]")
	fmt.Println("                                              Generate and store a report")
	fmt.Println("  show [--json] <id>                          Show a stored report")
	fmt.Println("  reports [user] [limit]                      List stored reports, newest first")
	fmt.Println("  formats                                     List supported file formats")
	fmt.Println("  config <init|show|set>                      Manage user profile configuration")
	fmt.Println("")
	fmt.Println("Flags:")
	fmt.Println("  -config string     Config file (defaults to ~/.lil-report/config.yaml)")
	fmt.Println("  -db string         SQLite database path (overrides config)")
	fmt.Println("  -provider string   anthropic, openai, gemini or ollama (overrides config)")
	fmt.Println("  -model string      LLM model (overrides config)")
	fmt.Println("  -help              Show this help")
	fmt.Println("  -version           Show version")
	fmt.Println("")
	fmt.Println("Report flags:")
	fmt.Println("  --graphs           Ask the model for inline charts")
	fmt.Println("  --extended         Allow the extended analysis timeout")
	fmt.Println("  --company, --industry, --user, -o <file>")
	fmt.Println("")
	fmt.Println("Config Keys:")
	fmt.Println("  llm.provider, llm.model, llm.base-url, llm.max-tokens")
	fmt.Println("  storage.driver, storage.path, server.host, server.port")
	fmt.Println("")
	fmt.Println("Environment:")
	fmt.Println("  ANTHROPIC_API_KEY, OPENAI_API_KEY, GEMINI_API_KEY, OLLAMA_HOST")
	fmt.Println("  LILREPORT_PROVIDER, LILREPORT_MODEL, LILREPORT_DATABASE_URL")
	fmt.Println("")
	fmt.Println("Examples:")
	fmt.Println("  lil-report config init")
	fmt.Println("  lil-report parse sales.xlsx")
	fmt.Println("  lil-report report --graphs \"Summarize revenue by region\" sales.csv notes.pdf")
	fmt.Println("  lil-report -provider ollama -model llama3.2 report \"Key risks?\" contract.docx")
	fmt.Println("  lil-report reports alice 10")
	fmt.Println("  lil-report show 6f1c2a7e-...")
}
