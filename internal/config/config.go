// Package config loads process configuration from the environment (optionally
// seeded from a .env file) and the conversation script from YAML.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/Ananth-NQI/outreach-engine/database"
)

const (
	DefaultDailyQuota      = 4
	DefaultDebounceWindow  = 15 * time.Second
	DefaultReminderWindow  = 2 * time.Hour
	DefaultContactSpacing  = time.Hour
	DefaultResumeHour      = 11
	DefaultMaxAttempts     = 3
	DefaultPort            = "8080"
	DefaultOpenAIModel     = "gpt-4o-mini"
	DefaultOpenAIBaseURL   = "https://api.openai.com/v1"
	DefaultHandleColumn    = "handle"
	DefaultNameColumn      = "name"
	DefaultCleanupInterval = 5 * time.Minute
)

// Config is the full process configuration.
type Config struct {
	CampaignID  string
	Environment string
	Port        string
	PublicURL   string
	LogLevel    string

	Database database.Config

	TwilioAccountSID         string
	TwilioAuthToken          string
	TwilioWhatsAppFrom       string
	TwilioGreetingContentSID string
	DisableWebhookValidation bool

	OpenAIAPIKey          string
	OpenAIModel           string
	OpenAIBaseURL         string
	CompletionMaxAttempts int

	DailyQuota     int
	DebounceWindow time.Duration
	ReminderWindow time.Duration
	ContactSpacing time.Duration
	ResumeHour     int
	SessionIdleTTL time.Duration

	ContactsFile  string
	HandleColumn  string
	NameColumn    string
	ScriptFile    string
	TranscriptDir string
}

// LoadEnvFile seeds the environment from path, or from .env and then
// environments/.env.development when path is empty. Missing files are not an error.
func LoadEnvFile(path string) {
	if path != "" {
		if err := godotenv.Load(path); err != nil {
			log.Warn().Err(err).Str("path", path).Msg("env file not loaded")
		}
		return
	}
	if err := godotenv.Load(".env"); err != nil {
		if err := godotenv.Load("environments/.env.development"); err != nil {
			log.Debug().Msg("no .env file found - using environment variables")
		}
	}
}

// Load reads Config from environment variables. campaignOverride, when set,
// takes precedence over CAMPAIGN_ID.
func Load(campaignOverride string) (*Config, error) {
	var errs []error
	p := parser{errs: &errs}

	cfg := &Config{
		CampaignID:  firstNonEmpty(campaignOverride, os.Getenv("CAMPAIGN_ID")),
		Environment: envOr("ENVIRONMENT", "development"),
		Port:        envOr("PORT", DefaultPort),
		PublicURL:   strings.TrimRight(os.Getenv("PUBLIC_URL"), "/"),
		LogLevel:    envOr("LOG_LEVEL", "info"),

		Database: database.Config{
			Driver:                 envOr("DB_DRIVER", "postgres"),
			User:                   envOr("DB_USER", "postgres"),
			Password:               os.Getenv("DB_PASS"),
			Name:                   envOr("DB_NAME", "outreach"),
			Host:                   envOr("DB_HOST", "localhost"),
			Port:                   envOr("DB_PORT", "5432"),
			InstanceConnectionName: os.Getenv("INSTANCE_CONNECTION_NAME"),
			SQLitePath:             envOr("SQLITE_PATH", "outreach.db"),
		},

		TwilioAccountSID:         os.Getenv("TWILIO_ACCOUNT_SID"),
		TwilioAuthToken:          os.Getenv("TWILIO_AUTH_TOKEN"),
		TwilioWhatsAppFrom:       os.Getenv("TWILIO_WHATSAPP_FROM"),
		TwilioGreetingContentSID: os.Getenv("TWILIO_GREETING_CONTENT_SID"),
		DisableWebhookValidation: p.boolean("DISABLE_WEBHOOK_VALIDATION", false),

		OpenAIAPIKey:          os.Getenv("OPENAI_API_KEY"),
		OpenAIModel:           envOr("OPENAI_MODEL", DefaultOpenAIModel),
		OpenAIBaseURL:         envOr("OPENAI_BASE_URL", DefaultOpenAIBaseURL),
		CompletionMaxAttempts: p.integer("COMPLETION_MAX_ATTEMPTS", DefaultMaxAttempts),

		DailyQuota:     p.integer("DAILY_QUOTA", DefaultDailyQuota),
		DebounceWindow: p.duration("DEBOUNCE_WINDOW", DefaultDebounceWindow),
		ReminderWindow: p.duration("REMINDER_WINDOW", DefaultReminderWindow),
		ContactSpacing: p.duration("CONTACT_SPACING", DefaultContactSpacing),
		ResumeHour:     p.integer("RESUME_HOUR", DefaultResumeHour),
		SessionIdleTTL: p.duration("SESSION_IDLE_TTL", 0),

		ContactsFile:  os.Getenv("CONTACTS_FILE"),
		HandleColumn:  envOr("CONTACTS_HANDLE_COLUMN", DefaultHandleColumn),
		NameColumn:    envOr("CONTACTS_NAME_COLUMN", DefaultNameColumn),
		ScriptFile:    os.Getenv("SCRIPT_FILE"),
		TranscriptDir: os.Getenv("TRANSCRIPT_DIR"),
	}

	if err := cfg.validate(); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return cfg, nil
}

func (c *Config) validate() error {
	var errs []error
	if c.DailyQuota <= 0 {
		errs = append(errs, fmt.Errorf("DAILY_QUOTA must be positive, got %d", c.DailyQuota))
	}
	if c.ResumeHour < 0 || c.ResumeHour > 23 {
		errs = append(errs, fmt.Errorf("RESUME_HOUR must be within 0-23, got %d", c.ResumeHour))
	}
	if c.DebounceWindow <= 0 {
		errs = append(errs, errors.New("DEBOUNCE_WINDOW must be positive"))
	}
	if c.ReminderWindow <= 0 {
		errs = append(errs, errors.New("REMINDER_WINDOW must be positive"))
	}
	if c.ContactSpacing < 0 {
		errs = append(errs, errors.New("CONTACT_SPACING must not be negative"))
	}
	if c.CompletionMaxAttempts <= 0 {
		errs = append(errs, fmt.Errorf("COMPLETION_MAX_ATTEMPTS must be positive, got %d", c.CompletionMaxAttempts))
	}
	if c.Database.Driver != "postgres" && c.Database.Driver != "sqlite" {
		errs = append(errs, fmt.Errorf("DB_DRIVER must be postgres or sqlite, got %q", c.Database.Driver))
	}
	return errors.Join(errs...)
}

// ValidateForRun checks the settings needed by the outreach worker on top of Load.
func (c *Config) ValidateForRun() error {
	var errs []error
	if c.CampaignID == "" {
		errs = append(errs, errors.New("campaign id is required (--campaign or CAMPAIGN_ID)"))
	}
	if c.ContactsFile == "" {
		errs = append(errs, errors.New("CONTACTS_FILE is required"))
	}
	if c.OpenAIAPIKey == "" {
		errs = append(errs, errors.New("OPENAI_API_KEY is required"))
	}
	if c.TwilioAccountSID == "" || c.TwilioAuthToken == "" || c.TwilioWhatsAppFrom == "" {
		errs = append(errs, errors.New("TWILIO_ACCOUNT_SID, TWILIO_AUTH_TOKEN and TWILIO_WHATSAPP_FROM are required"))
	}
	return errors.Join(errs...)
}

// IsDevelopment reports whether development-only routes are enabled.
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

type parser struct {
	errs *[]error
}

func (p parser) integer(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		*p.errs = append(*p.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return n
}

func (p parser) duration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		*p.errs = append(*p.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return d
}

func (p parser) boolean(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		*p.errs = append(*p.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return b
}

func envOr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
