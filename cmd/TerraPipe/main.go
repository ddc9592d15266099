package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/BTreeMap/TerraPipe/internal/api"
	"github.com/BTreeMap/TerraPipe/internal/flow"
	"github.com/BTreeMap/TerraPipe/internal/genai"
	"github.com/BTreeMap/TerraPipe/internal/geo"
	"github.com/BTreeMap/TerraPipe/internal/legal"
	"github.com/BTreeMap/TerraPipe/internal/lockfile"
	"github.com/BTreeMap/TerraPipe/internal/metrics"
	"github.com/BTreeMap/TerraPipe/internal/report"
	"github.com/BTreeMap/TerraPipe/internal/store"
	"github.com/BTreeMap/TerraPipe/internal/twiliowhatsapp"
	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Default configuration constants
const (
	// DefaultStateDir is the default directory for TerraPipe state data
	DefaultStateDir = "/var/lib/terrapipe"
	// DefaultDBFileName is the default SQLite database filename
	DefaultDBFileName = "terrapipe.db"
	// MemoryDSN selects the in-memory store.
	MemoryDSN = "memory"
)

// Config holds environment configuration
type Config struct {
	StateDir    string `env:"TERRAPIPE_STATE_DIR" envDefault:"/var/lib/terrapipe"`
	DatabaseURL string `env:"DATABASE_URL"`
	APIAddr     string `env:"API_ADDR" envDefault:":8080"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	PDFFontPath string `env:"PDF_FONT_PATH"`

	Redis    RedisConfig    `envPrefix:"REDIS_"`
	DeepSeek DeepSeekConfig `envPrefix:"DEEPSEEK_"`
	Twilio   TwilioConfig   `envPrefix:"TWILIO_"`

	// MockGateway answers completions with canned replies.
	MockGateway bool `env:"MOCK_GATEWAY"`
}

type RedisConfig struct {
	Addr       string        `env:"ADDR"`
	Password   string        `env:"PASSWORD"`
	DB         int           `env:"DB" envDefault:"0"`
	SessionTTL time.Duration `env:"SESSION_TTL" envDefault:"720h"`
}

type DeepSeekConfig struct {
	APIKey  string `env:"API_KEY"`
	BaseURL string `env:"BASE_URL" envDefault:"https://api.deepseek.com/v1"`
	Model   string `env:"MODEL" envDefault:"deepseek-chat"`
}

type TwilioConfig struct {
	AccountSID string `env:"ACCOUNT_SID"`
	AuthToken  string `env:"AUTH_TOKEN"`
	FromNumber string `env:"FROM_NUMBER"`
	// WebhookURL enables signature checks when set.
	WebhookURL string `env:"WEBHOOK_URL"`
}

// Enabled reports whether the WhatsApp channel is configured.
func (t TwilioConfig) Enabled() bool {
	return t.AccountSID != "" && t.AuthToken != "" && t.FromNumber != ""
}

// Flags holds command line flag values
type Flags struct {
	stateDir       *string
	dbDSN          *string
	apiAddr        *string
	deepseekAPIKey *string
	redisAddr      *string
	mockGateway    *bool
}

func main() {
	config, err := loadEnvironmentConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}
	initializeLogger(config.LogLevel)

	flags := parseCommandLineFlags(flag.CommandLine, os.Args[1:], config)
	applyFlags(&config, flags)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	slog.Info("Bootstrapping TerraPipe", "state_dir", config.StateDir, "api_addr", config.APIAddr,
		"dsn_set", config.DatabaseURL != "", "redis", config.Redis.Addr != "", "mock_gateway", config.MockGateway)
	if err := run(ctx, config); err != nil {
		slog.Error("TerraPipe failed to run", "error", err)
		os.Exit(1)
	}
	slog.Info("TerraPipe exited successfully")
}

// initializeLogger sets up structured logging at the given level
func initializeLogger(level string) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: parseLogLevel(level)}))
	slog.SetDefault(logger)
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// loadEnvironmentConfig loads configuration from environment variables and .env file
func loadEnvironmentConfig() (Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	}
	var config Config
	if err := env.Parse(&config); err != nil {
		return Config{}, err
	}
	if config.StateDir == "" {
		config.StateDir = DefaultStateDir
	}
	return config, nil
}

// parseCommandLineFlags parses command line arguments with environment defaults
func parseCommandLineFlags(fs *flag.FlagSet, args []string, config Config) Flags {
	flags := Flags{
		stateDir:       fs.String("state-dir", config.StateDir, "state directory for TerraPipe data (overrides $TERRAPIPE_STATE_DIR)"),
		dbDSN:          fs.String("db-dsn", config.DatabaseURL, "SQLite path, PostgreSQL or redis:// DSN, or \"memory\" (overrides $DATABASE_URL)"),
		apiAddr:        fs.String("api-addr", config.APIAddr, "API server address (overrides $API_ADDR)"),
		deepseekAPIKey: fs.String("deepseek-api-key", config.DeepSeek.APIKey, "DeepSeek API key (overrides $DEEPSEEK_API_KEY)"),
		redisAddr:      fs.String("redis-addr", config.Redis.Addr, "Redis address host:port (overrides $REDIS_ADDR)"),
		mockGateway:    fs.Bool("mock-gateway", config.MockGateway, "answer completions with canned replies (overrides $MOCK_GATEWAY)"),
	}
	// ExitOnError flag sets never return an error here.
	_ = fs.Parse(args)

	slog.Debug("flags parsed",
		"stateDir", *flags.stateDir,
		"dbDSN_set", *flags.dbDSN != "",
		"apiAddr", *flags.apiAddr,
		"deepseekKeySet", *flags.deepseekAPIKey != "",
		"redisAddr", *flags.redisAddr,
		"mockGateway", *flags.mockGateway)
	return flags
}

func applyFlags(config *Config, flags Flags) {
	config.StateDir = *flags.stateDir
	config.DatabaseURL = *flags.dbDSN
	config.APIAddr = *flags.apiAddr
	config.DeepSeek.APIKey = *flags.deepseekAPIKey
	config.Redis.Addr = *flags.redisAddr
	config.MockGateway = *flags.mockGateway
}

// resolveDSN picks the store DSN: an explicit DSN wins, then Redis, then a
// SQLite file in the state directory. The empty result means in-memory.
func resolveDSN(config Config) string {
	switch {
	case config.DatabaseURL == MemoryDSN:
		return ""
	case config.DatabaseURL != "":
		return config.DatabaseURL
	case config.Redis.Addr != "":
		return ""
	default:
		return filepath.Join(config.StateDir, DefaultDBFileName)
	}
}

// buildStore opens the configured backend.
func buildStore(config Config) (store.Store, error) {
	opts := []store.Option{store.WithTTL(config.Redis.SessionTTL), store.WithPrefix("terrapipe:")}
	if config.DatabaseURL == "" && config.Redis.Addr != "" {
		rs := store.NewRedisStore(config.Redis.Addr, config.Redis.Password, config.Redis.DB, opts...)
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := rs.Ping(ctx); err != nil {
			rs.Close()
			return nil, fmt.Errorf("redis at %s unreachable: %w", config.Redis.Addr, err)
		}
		return rs, nil
	}
	return store.New(append(opts, store.WithDSN(resolveDSN(config)))...)
}

// buildGateway returns the completion gateway for systemPrompt. Without an
// API key the real client still starts and reports a configuration error on
// first use, unless the mock was requested.
func buildGateway(config Config, systemPrompt string) genai.Gateway {
	if config.MockGateway {
		slog.Info("Using mock completion gateway")
		return genai.NewMockClient()
	}
	if config.DeepSeek.APIKey == "" {
		slog.Warn("DEEPSEEK_API_KEY is not set; analyses and legal answers will fail until it is configured")
	}
	return genai.NewClient(
		genai.WithAPIKey(config.DeepSeek.APIKey),
		genai.WithBaseURL(config.DeepSeek.BaseURL),
		genai.WithModel(config.DeepSeek.Model),
		genai.WithSystemPrompt(systemPrompt),
	)
}

// buildAPIOptions wires the optional server collaborators.
func buildAPIOptions(config Config, rec *metrics.Recorder) ([]api.Option, error) {
	opts := []api.Option{
		api.WithMetrics(rec),
		api.WithReportFactory(report.NewFactory(report.WithFontPath(config.PDFFontPath))),
	}
	if !config.Twilio.Enabled() {
		slog.Info("Twilio credentials not set, WhatsApp channel disabled")
		return opts, nil
	}
	wa, err := twiliowhatsapp.NewClient(
		twiliowhatsapp.WithAccountSID(config.Twilio.AccountSID),
		twiliowhatsapp.WithAuthToken(config.Twilio.AuthToken),
		twiliowhatsapp.WithFromWhats(config.Twilio.FromNumber),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create Twilio client: %w", err)
	}
	opts = append(opts, api.WithWhatsApp(wa))
	if config.Twilio.WebhookURL != "" {
		opts = append(opts, api.WithWebhookValidation(twiliowhatsapp.NewValidator(config.Twilio.AuthToken), config.Twilio.WebhookURL))
	} else {
		slog.Warn("TWILIO_WEBHOOK_URL is not set; webhook signatures are not checked")
	}
	return opts, nil
}

// run wires every module and serves until ctx is cancelled.
func run(ctx context.Context, config Config) error {
	dsn := resolveDSN(config)
	if dsn != "" && store.DetectDSNType(dsn) == store.DriverSQLite {
		lock, err := lockfile.Acquire(config.StateDir)
		if err != nil {
			return fmt.Errorf("failed to lock state directory: %w", err)
		}
		defer lock.Release()
	}

	st, err := buildStore(config)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer st.Close()

	rec := metrics.New()
	controller := flow.NewController(
		geo.NewClient(),
		buildGateway(config, genai.AgricultureSystemPrompt),
		flow.WithMetrics(rec),
	)
	sessions := flow.NewSessionService(controller, flow.NewStoreBasedStateManager(st))
	assistant := legal.NewAssistant(buildGateway(config, genai.LegalSystemPrompt), st, legal.WithMetrics(rec))

	apiOpts, err := buildAPIOptions(config, rec)
	if err != nil {
		return err
	}
	server := api.NewServer(sessions, assistant, apiOpts...)
	return api.Run(ctx, config.APIAddr, server.Router())
}
