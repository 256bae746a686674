package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/BTreeMap/TransportMedAgent/internal/api"
	"github.com/BTreeMap/TransportMedAgent/internal/flow"
	"github.com/BTreeMap/TransportMedAgent/internal/genai"
	"github.com/BTreeMap/TransportMedAgent/internal/lockfile"
	"github.com/BTreeMap/TransportMedAgent/internal/policy"
	"github.com/BTreeMap/TransportMedAgent/internal/records"
	"github.com/BTreeMap/TransportMedAgent/internal/store"
	"github.com/BTreeMap/TransportMedAgent/internal/util"
)

// Default configuration constants
const (
	// DefaultStateDir is the default directory for TransportMedAgent state data
	DefaultStateDir = "/var/lib/transportmedagent"
	// DefaultDBFileName is the default SQLite database filename
	DefaultDBFileName = "transportmedagent.db"
)

func main() {
	// Initialize structured logger
	initializeLogger()

	// Load environment configuration
	config := loadEnvironmentConfig()

	// Parse command line flags
	flags := parseCommandLineFlags(config)

	// Ensure required directories exist
	if err := ensureDirectoriesExist(flags); err != nil {
		slog.Error("Failed to create required directories", "error", err)
		os.Exit(1)
	}

	// Only one instance may use a state directory: concurrent instances
	// would race on the session database and the records file.
	lock, err := lockfile.AcquireLock(*flags.stateDir)
	if err != nil {
		slog.Error("Failed to acquire state directory lock", "error", err)
		os.Exit(1)
	}
	defer lock.Release()

	// Build module options
	storeOpts := buildStoreOptions(flags)
	genaiOpts := buildGenAIOptions(flags)
	apiOpts := buildAPIOptions(flags)

	slog.Info("Bootstrapping TransportMedAgent with configured modules")
	slog.Debug("Final configuration",
		"state_dir", *flags.stateDir, "dsn_set", *flags.dbDSN != "",
		"records_file", *flags.recordsFile, "api_addr", *flags.apiAddr,
		"agent", *flags.agentName, "eps", *flags.epsName)

	sessionStore, err := buildStore(flags, storeOpts)
	if err != nil {
		slog.Error("Failed to initialize session store", "error", err)
		os.Exit(1)
	}
	defer sessionStore.Close()

	genClient, err := genai.NewClient(genaiOpts...)
	if err != nil {
		slog.Error("Failed to initialize generation client", "error", err)
		os.Exit(1)
	}

	coordOpts := []flow.Option{
		flow.WithPromptConfig(flow.PromptConfig{
			AgentName:   *flags.agentName,
			CompanyName: *flags.companyName,
			EPSName:     *flags.epsName,
		}),
		flow.WithPolicyEngine(policy.NewEngine(policy.WithEPSName(*flags.epsName))),
	}
	if *flags.recordsFile != "" {
		src, err := records.NewCSVSource(*flags.recordsFile)
		if err != nil {
			slog.Error("Failed to load service records", "error", err, "path", *flags.recordsFile)
			os.Exit(1)
		}
		coordOpts = append(coordOpts, flow.WithRecordsSource(src))
	} else {
		slog.Warn("No records file configured; outbound calls disabled")
	}

	coordinator := flow.NewCoordinator(sessionStore, genClient, coordOpts...)
	server := api.NewServer(coordinator, apiOpts...)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := server.Run(ctx); err != nil {
		slog.Error("TransportMedAgent failed to run", "error", err)
		os.Exit(1)
	}
	slog.Info("TransportMedAgent exited successfully")
}

// Config holds environment configuration
type Config struct {
	DatabaseDSN string
	StateDir    string
	OpenAIKey   string
	Model       string
	APIAddr     string
	RecordsFile string
	AgentName   string
	CompanyName string
	EPSName     string
	SessionTTL  string
}

// Flags holds command line flag values
type Flags struct {
	stateDir    *string
	dbDSN       *string
	openaiKey   *string
	model       *string
	apiAddr     *string
	recordsFile *string
	agentName   *string
	companyName *string
	epsName     *string
	sessionTTL  *string
}

// initializeLogger sets up structured logging with debug level
func initializeLogger() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	slog.SetDefault(logger)
}

// loadEnvironmentConfig loads configuration from environment variables and .env file
func loadEnvironmentConfig() Config {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	} else {
		slog.Debug("successfully loaded .env file")
	}

	config := Config{
		DatabaseDSN: os.Getenv("DATABASE_DSN"),
		StateDir:    os.Getenv("TRANSPORTMED_STATE_DIR"),
		OpenAIKey:   os.Getenv("OPENAI_API_KEY"),
		Model:       os.Getenv("OPENAI_MODEL"),
		APIAddr:     os.Getenv("API_ADDR"),
		RecordsFile: os.Getenv("RECORDS_FILE"),
		AgentName:   util.GetEnv("AGENT_NAME", flow.DefaultAgentName),
		CompanyName: util.GetEnv("COMPANY_NAME", flow.DefaultCompanyName),
		EPSName:     util.GetEnv("EPS_NAME", policy.DefaultEPSName),
		SessionTTL:  os.Getenv("SESSION_TTL"),
	}

	// DATABASE_URL is the legacy name for the same setting.
	if config.DatabaseDSN == "" {
		config.DatabaseDSN = os.Getenv("DATABASE_URL")
	}

	if config.StateDir == "" {
		config.StateDir = DefaultStateDir
		slog.Debug("No TRANSPORTMED_STATE_DIR set, using default", "default_state_dir", config.StateDir)
	}

	// If no database DSN is provided, default to SQLite in the state directory
	if config.DatabaseDSN == "" {
		config.DatabaseDSN = filepath.Join(config.StateDir, DefaultDBFileName)
		slog.Debug("No database DSN provided, defaulting to SQLite", "sqlite_path", config.DatabaseDSN)
	}

	slog.Debug("environment variables loaded",
		"DATABASE_DSN_SET", config.DatabaseDSN != "",
		"TRANSPORTMED_STATE_DIR", config.StateDir,
		"OPENAI_API_KEY_SET", config.OpenAIKey != "",
		"OPENAI_MODEL", config.Model,
		"API_ADDR", config.APIAddr,
		"RECORDS_FILE", config.RecordsFile,
		"AGENT_NAME", config.AgentName,
		"COMPANY_NAME", config.CompanyName,
		"EPS_NAME", config.EPSName,
		"SESSION_TTL", config.SessionTTL)

	return config
}

// parseCommandLineFlags parses command line arguments with environment defaults
func parseCommandLineFlags(config Config) Flags {
	flags := Flags{
		stateDir:    flag.String("state-dir", config.StateDir, "state directory for TransportMedAgent data (overrides $TRANSPORTMED_STATE_DIR)"),
		dbDSN:       flag.String("db-dsn", config.DatabaseDSN, "session store DSN: redis://, postgres:// or a SQLite path (overrides $DATABASE_DSN)"),
		openaiKey:   flag.String("openai-api-key", config.OpenAIKey, "OpenAI API key (overrides $OPENAI_API_KEY)"),
		model:       flag.String("model", config.Model, "chat model name (overrides $OPENAI_MODEL)"),
		apiAddr:     flag.String("api-addr", config.APIAddr, "API server address (overrides $API_ADDR)"),
		recordsFile: flag.String("records-file", config.RecordsFile, "CSV file with scheduled service records (overrides $RECORDS_FILE)"),
		agentName:   flag.String("agent-name", config.AgentName, "agent display name (overrides $AGENT_NAME)"),
		companyName: flag.String("company-name", config.CompanyName, "transport company name (overrides $COMPANY_NAME)"),
		epsName:     flag.String("eps-name", config.EPSName, "authorized insurer name (overrides $EPS_NAME)"),
		sessionTTL:  flag.String("session-ttl", config.SessionTTL, "session retention, e.g. 1h (overrides $SESSION_TTL)"),
	}

	flag.Parse()

	slog.Debug("flags parsed",
		"stateDir", *flags.stateDir,
		"dbDSN_set", *flags.dbDSN != "",
		"openaiKeySet", *flags.openaiKey != "",
		"model", *flags.model,
		"apiAddr", *flags.apiAddr,
		"recordsFile", *flags.recordsFile,
		"agentName", *flags.agentName,
		"epsName", *flags.epsName)

	// Update database DSN if not explicitly set but state directory is provided
	if *flags.dbDSN == config.DatabaseDSN && config.DatabaseDSN == filepath.Join(config.StateDir, DefaultDBFileName) && *flags.stateDir != config.StateDir {
		*flags.dbDSN = filepath.Join(*flags.stateDir, DefaultDBFileName)
		slog.Debug("Updated dbDSN based on state directory", "old_state_dir", config.StateDir, "new_state_dir", *flags.stateDir)
	}

	return flags
}

// ensureDirectoriesExist creates necessary directories for file-based storage
func ensureDirectoriesExist(flags Flags) error {
	if store.DetectDSNType(*flags.dbDSN) != "sqlite" {
		return nil
	}
	stateDir := filepath.Dir(*flags.dbDSN)
	slog.Debug("Creating state directory for file-based database", "state_dir", stateDir)
	if err := os.MkdirAll(stateDir, 0755); err != nil {
		slog.Error("Failed to create state directory", "error", err, "state_dir", stateDir)
		return err
	}
	return nil
}

// buildStoreOptions constructs store configuration options
func buildStoreOptions(flags Flags) []store.Option {
	var storeOpts []store.Option
	if *flags.dbDSN != "" {
		storeOpts = append(storeOpts, store.WithDSN(*flags.dbDSN))
	}
	if *flags.sessionTTL != "" {
		ttl, err := time.ParseDuration(*flags.sessionTTL)
		if err != nil {
			slog.Warn("Invalid SESSION_TTL, using default", "value", *flags.sessionTTL, "error", err)
		} else {
			storeOpts = append(storeOpts, store.WithTTL(ttl))
		}
	}
	return storeOpts
}

// buildStore selects and opens the session store backend for the DSN.
func buildStore(flags Flags, opts []store.Option) (store.Store, error) {
	dsnType := store.DetectDSNType(*flags.dbDSN)
	slog.Debug("Selecting session store backend", "dsn_type", dsnType)
	switch dsnType {
	case "redis":
		return store.NewRedisStore(opts...)
	case "postgres":
		return store.NewPostgresStore(opts...)
	default:
		return store.NewSQLiteStore(opts...)
	}
}

// buildGenAIOptions constructs GenAI configuration options
func buildGenAIOptions(flags Flags) []genai.Option {
	var genaiOpts []genai.Option
	if *flags.openaiKey != "" {
		genaiOpts = append(genaiOpts, genai.WithAPIKey(*flags.openaiKey))
	}
	if *flags.model != "" {
		genaiOpts = append(genaiOpts, genai.WithModel(*flags.model))
	}
	return genaiOpts
}

// buildAPIOptions constructs API server configuration options
func buildAPIOptions(flags Flags) []api.Option {
	var apiOpts []api.Option
	if *flags.apiAddr != "" {
		apiOpts = append(apiOpts, api.WithAddr(*flags.apiAddr))
	}
	return apiOpts
}
