// Command CaseTrack serves the green-card case tracking API.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/BTreeMap/CaseTrack/internal/api"
	"github.com/BTreeMap/CaseTrack/internal/genai"
	"github.com/BTreeMap/CaseTrack/internal/lockfile"
	"github.com/BTreeMap/CaseTrack/internal/notify"
	"github.com/BTreeMap/CaseTrack/internal/scheduler"
	"github.com/BTreeMap/CaseTrack/internal/store"
	"github.com/BTreeMap/CaseTrack/internal/util"
	"github.com/joho/godotenv"
)

// Default configuration constants
const (
	// DefaultStateDir is the default directory for CaseTrack state data
	DefaultStateDir = "/var/lib/casetrack"
	// DefaultDBFileName is the default SQLite database filename
	DefaultDBFileName = "casetrack.db"
)

func main() {
	config, envErr := loadEnvironmentConfig()
	initializeLogger(config.LogLevel)
	if envErr != nil {
		slog.Debug("failed to load .env file", "error", envErr)
	}
	logEnvironmentConfig(config)

	flags, err := parseCommandLineFlags(flag.CommandLine, os.Args[1:], config)
	if err != nil {
		slog.Error("Failed to parse flags", "error", err)
		os.Exit(2)
	}

	if err := ensureDirectoriesExist(flags); err != nil {
		slog.Error("Failed to create required directories", "error", err)
		os.Exit(1)
	}

	lock, err := lockfile.Acquire(*flags.stateDir, lockfile.CurrentOwner(*flags.apiAddr))
	if err != nil {
		slog.Error("Failed to lock state directory", "error", err)
		os.Exit(1)
	}

	storeOpts := buildStoreOptions(flags)
	genaiOpts := buildGenAIOptions(flags)
	twilioOpts := buildTwilioOptions(config)
	waOpts := buildWhatsAppOptions(flags)
	apiOpts := buildAPIOptions(flags, config)

	slog.Info("Bootstrapping CaseTrack with configured modules")
	slog.Debug("Final configuration", "state_dir", *flags.stateDir, "dsn_set", *flags.dbDSN != "",
		"api_addr", *flags.apiAddr, "notify", *flags.notify, "channel", *flags.notifyChannel)
	runErr := api.Run(storeOpts, genaiOpts, twilioOpts, waOpts, apiOpts)
	if err := lock.Release(); err != nil {
		slog.Warn("Failed to release state directory lock", "error", err)
	}
	if runErr != nil {
		slog.Error("CaseTrack failed to run", "error", runErr)
		os.Exit(1)
	}
	slog.Info("CaseTrack exited successfully")
}

// Config holds environment configuration
type Config struct {
	StateDir           string
	DatabaseURL        string
	TrackingConfig     string
	APIAddr            string
	OpenAIKey          string
	OpenAIModel        string
	TwilioAccountSID   string
	TwilioAuthToken    string
	TwilioFromNumber   string
	TwilioWhatsApp     bool
	NotifyChannel      string
	NotifyEnabled      bool
	WhatsAppDSN        string
	ReminderSchedule   string
	OutboxPollInterval time.Duration
	LogLevel           slog.Level
}

// Flags holds command line flag values
type Flags struct {
	stateDir         *string
	dbDSN            *string
	trackingConfig   *string
	apiAddr          *string
	openaiKey        *string
	openaiModel      *string
	notify           *bool
	notifyChannel    *string
	waDSN            *string
	qrOutput         *string
	numeric          *bool
	reminderSchedule *string
}

// initializeLogger sets up structured logging on stdout
func initializeLogger(level slog.Level) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
}

// loadEnvironmentConfig loads configuration from environment variables and .env file. The
// returned error only reports a missing or unreadable .env file.
func loadEnvironmentConfig() (Config, error) {
	envErr := godotenv.Load()

	config := Config{
		StateDir:           os.Getenv("CASETRACK_STATE_DIR"),
		DatabaseURL:        os.Getenv("DATABASE_URL"),
		TrackingConfig:     os.Getenv("CASETRACK_CONFIG"),
		APIAddr:            os.Getenv("API_ADDR"),
		OpenAIKey:          os.Getenv("OPENAI_API_KEY"),
		OpenAIModel:        os.Getenv("OPENAI_MODEL"),
		TwilioAccountSID:   os.Getenv("TWILIO_ACCOUNT_SID"),
		TwilioAuthToken:    os.Getenv("TWILIO_AUTH_TOKEN"),
		TwilioFromNumber:   os.Getenv("TWILIO_FROM_NUMBER"),
		TwilioWhatsApp:     util.ParseBoolEnv("TWILIO_WHATSAPP", false),
		NotifyChannel:      os.Getenv("NOTIFY_CHANNEL"),
		NotifyEnabled:      util.ParseBoolEnv("NOTIFY_ENABLED", false),
		WhatsAppDSN:        os.Getenv("WHATSAPP_DB_DSN"),
		ReminderSchedule:   os.Getenv("REMINDER_SCHEDULE"),
		OutboxPollInterval: util.ParseDurationEnv("OUTBOX_POLL_INTERVAL", api.DefaultOutboxPollInterval),
		LogLevel:           util.ParseLogLevel(os.Getenv("CASETRACK_LOG_LEVEL"), slog.LevelDebug),
	}

	if config.StateDir == "" {
		config.StateDir = DefaultStateDir
	}
	if config.NotifyChannel == "" {
		config.NotifyChannel = notify.ChannelLog
	}
	if config.ReminderSchedule == "" {
		config.ReminderSchedule = scheduler.DefaultReminderSchedule
	}
	// If no database URL is provided, default to SQLite in the state directory
	if config.DatabaseURL == "" {
		config.DatabaseURL = filepath.Join(config.StateDir, DefaultDBFileName)
	}
	if config.WhatsAppDSN == "" {
		config.WhatsAppDSN = defaultWhatsAppDSN(config.StateDir)
	}

	return config, envErr
}

func logEnvironmentConfig(config Config) {
	slog.Debug("environment variables loaded",
		"CASETRACK_STATE_DIR", config.StateDir,
		"DATABASE_URL_SET", config.DatabaseURL != "",
		"CASETRACK_CONFIG", config.TrackingConfig,
		"API_ADDR", config.APIAddr,
		"OPENAI_API_KEY_SET", config.OpenAIKey != "",
		"TWILIO_ACCOUNT_SID_SET", config.TwilioAccountSID != "",
		"NOTIFY_CHANNEL", config.NotifyChannel,
		"NOTIFY_ENABLED", config.NotifyEnabled,
		"REMINDER_SCHEDULE", config.ReminderSchedule)
}

func defaultWhatsAppDSN(stateDir string) string {
	return "file:" + filepath.Join(stateDir, notify.DefaultWhatsAppDBPath) + "?_foreign_keys=on"
}

// parseCommandLineFlags parses command line arguments with environment defaults
func parseCommandLineFlags(fs *flag.FlagSet, args []string, config Config) (Flags, error) {
	flags := Flags{
		stateDir:         fs.String("state-dir", config.StateDir, "state directory for CaseTrack data (overrides $CASETRACK_STATE_DIR)"),
		dbDSN:            fs.String("db-dsn", config.DatabaseURL, "database DSN, SQLite path or Postgres URL (overrides $DATABASE_URL)"),
		trackingConfig:   fs.String("config", config.TrackingConfig, "tracking configuration YAML (overrides $CASETRACK_CONFIG)"),
		apiAddr:          fs.String("api-addr", config.APIAddr, "API server address (overrides $API_ADDR)"),
		openaiKey:        fs.String("openai-api-key", config.OpenAIKey, "OpenAI API key (overrides $OPENAI_API_KEY)"),
		openaiModel:      fs.String("openai-model", config.OpenAIModel, "OpenAI chat model (overrides $OPENAI_MODEL)"),
		notify:           fs.Bool("notify", config.NotifyEnabled, "send notifications and reminders (overrides $NOTIFY_ENABLED)"),
		notifyChannel:    fs.String("notify-channel", config.NotifyChannel, "notification channel: twilio, whatsapp or log (overrides $NOTIFY_CHANNEL)"),
		waDSN:            fs.String("whatsapp-db-dsn", config.WhatsAppDSN, "WhatsApp device store DSN (overrides $WHATSAPP_DB_DSN)"),
		qrOutput:         fs.String("qr-output", "", "path to write the WhatsApp login QR code"),
		numeric:          fs.Bool("numeric-code", false, "use a numeric WhatsApp login code instead of a QR code"),
		reminderSchedule: fs.String("reminder-schedule", config.ReminderSchedule, "cron expression of the reminder sweep (overrides $REMINDER_SCHEDULE)"),
	}

	if err := fs.Parse(args); err != nil {
		return Flags{}, err
	}

	// Follow a state directory given on the command line when the DSNs were derived from it
	if *flags.stateDir != config.StateDir {
		if *flags.dbDSN == filepath.Join(config.StateDir, DefaultDBFileName) {
			*flags.dbDSN = filepath.Join(*flags.stateDir, DefaultDBFileName)
		}
		if *flags.waDSN == defaultWhatsAppDSN(config.StateDir) {
			*flags.waDSN = defaultWhatsAppDSN(*flags.stateDir)
		}
		slog.Debug("Updated DSNs based on state directory", "old_state_dir", config.StateDir, "new_state_dir", *flags.stateDir)
	}

	slog.Debug("flags parsed",
		"stateDir", *flags.stateDir,
		"dbDSN_set", *flags.dbDSN != "",
		"config", *flags.trackingConfig,
		"apiAddr", *flags.apiAddr,
		"openaiKeySet", *flags.openaiKey != "",
		"notify", *flags.notify,
		"notifyChannel", *flags.notifyChannel,
		"reminderSchedule", *flags.reminderSchedule)
	return flags, nil
}

// ensureDirectoriesExist creates the state directory and the directory of a file-based database
func ensureDirectoriesExist(flags Flags) error {
	dirs := []string{*flags.stateDir}
	if *flags.dbDSN != "" && store.DetectDSNType(*flags.dbDSN) == store.DriverSQLite {
		dirs = append(dirs, filepath.Dir(*flags.dbDSN))
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	return nil
}

// buildStoreOptions constructs store configuration options
func buildStoreOptions(flags Flags) []store.Option {
	var storeOpts []store.Option
	if *flags.dbDSN == "" {
		slog.Debug("No database DSN provided, will use in-memory store")
		return storeOpts
	}
	if store.DetectDSNType(*flags.dbDSN) == store.DriverPostgres {
		slog.Debug("Detected PostgreSQL DSN, configuring PostgreSQL store", "dsn_type", "postgresql")
		storeOpts = append(storeOpts, store.WithPostgresDSN(*flags.dbDSN))
	} else {
		slog.Debug("Detected SQLite DSN, configuring SQLite store", "db_path", *flags.dbDSN)
		storeOpts = append(storeOpts, store.WithSQLiteDSN(*flags.dbDSN))
	}
	return storeOpts
}

// buildGenAIOptions constructs GenAI configuration options
func buildGenAIOptions(flags Flags) []genai.Option {
	var genaiOpts []genai.Option
	if *flags.openaiKey != "" {
		genaiOpts = append(genaiOpts, genai.WithAPIKey(*flags.openaiKey))
	}
	if *flags.openaiModel != "" {
		genaiOpts = append(genaiOpts, genai.WithModel(*flags.openaiModel))
	}
	return genaiOpts
}

// buildTwilioOptions constructs Twilio sender options
func buildTwilioOptions(config Config) []notify.TwilioOption {
	var opts []notify.TwilioOption
	if config.TwilioAccountSID != "" {
		opts = append(opts, notify.WithAccountSID(config.TwilioAccountSID))
	}
	if config.TwilioAuthToken != "" {
		opts = append(opts, notify.WithAuthToken(config.TwilioAuthToken))
	}
	if config.TwilioFromNumber != "" {
		opts = append(opts, notify.WithFromNumber(config.TwilioFromNumber))
	}
	if config.TwilioWhatsApp {
		opts = append(opts, notify.WithTwilioWhatsApp())
	}
	return opts
}

// buildWhatsAppOptions constructs WhatsApp sender options
func buildWhatsAppOptions(flags Flags) []notify.WhatsAppOption {
	var waOpts []notify.WhatsAppOption
	if *flags.waDSN != "" {
		waOpts = append(waOpts, notify.WithWhatsAppDBDSN(*flags.waDSN))
	}
	if *flags.qrOutput != "" {
		waOpts = append(waOpts, notify.WithQRCodeOutput(*flags.qrOutput))
	}
	if *flags.numeric {
		waOpts = append(waOpts, notify.WithNumericCode())
	}
	return waOpts
}

// buildAPIOptions constructs API server configuration options
func buildAPIOptions(flags Flags, config Config) []api.Option {
	var apiOpts []api.Option
	if *flags.apiAddr != "" {
		apiOpts = append(apiOpts, api.WithAddr(*flags.apiAddr))
	}
	if *flags.trackingConfig != "" {
		apiOpts = append(apiOpts, api.WithConfigPath(*flags.trackingConfig))
	}
	apiOpts = append(apiOpts,
		api.WithNotifications(*flags.notify),
		api.WithNotifyChannel(*flags.notifyChannel),
		api.WithReminderSchedule(*flags.reminderSchedule),
		api.WithOutboxPollInterval(config.OutboxPollInterval),
	)
	return apiOpts
}
