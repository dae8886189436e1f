// Package config loads and validates the process-wide deployment
// configuration: database/vector-store connection info, channel
// credentials, and ambient server knobs. Grounded on
// internal/profile/profile.go's FromEnv/Validate shape, rebuilt on
// github.com/spf13/viper so CLI flags, environment variables, and defaults
// layer the way cmd/divinesense/main.go's cobra command tree does.
package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// RateLimit is a parsed "N/unit" rate string, e.g. "30/minute".
type RateLimit struct {
	Requests int
	Per      time.Duration
}

// Config is the single process-wide configuration object, assembled from
// CLI flags, environment variables, and defaults via viper.
type Config struct {
	Mode string // "dev" or "prod"
	Addr string
	Port int

	DatabaseURL string

	QdrantURL            string
	QdrantAPIKey         string
	QdrantCollectionName string
	QdrantVectorSize     int
	QdrantDistance       string

	CORSOrigins []string
	AdminAPIKey string
	ChatRateLimit RateLimit
	BotTimezone   string

	LogLevel string
	LogDir   string

	CredentialEncryptionKey string

	TelegramBotToken      string
	WhatsAppAccessToken   string
	WhatsAppAppSecret     string
	WhatsAppVerifyToken   string
	WhatsAppPhoneNumberID string

	LLMProvider       string
	LLMAPIKey         string
	LLMBaseURL        string
	LLMModel          string
	LLMEmbeddingModel string
	LLMDimensions     int
	LLMTimeoutSeconds int

	AppointmentWebhookURL    string
	AppointmentWebhookSecret string
}

// BindFlags registers the flags and defaults SetDefaults relies on, and
// binds each to its viper key. cmd/queryon/main.go calls this once on the
// root command before Execute.
func BindFlags(v *viper.Viper, bind func(key, flag string)) {
	v.SetDefault("mode", "dev")
	v.SetDefault("addr", "")
	v.SetDefault("port", 8088)
	v.SetDefault("log-level", "info")
	v.SetDefault("bot-timezone", "Europe/Istanbul")
	v.SetDefault("chat-rate-limit", "30/minute")
	v.SetDefault("qdrant-vector-size", 1536)
	v.SetDefault("qdrant-distance", "Cosine")
	v.SetDefault("llm-timeout-seconds", 30)

	for _, key := range []string{
		"mode", "addr", "port", "database-url",
		"qdrant-url", "qdrant-api-key", "qdrant-collection-name", "qdrant-vector-size", "qdrant-distance",
		"cors-origins", "admin-api-key", "chat-rate-limit", "bot-timezone",
		"log-level", "log-dir", "credential-encryption-key",
		"telegram-bot-token", "whatsapp-access-token", "whatsapp-app-secret", "whatsapp-verify-token", "whatsapp-phone-number-id",
		"llm-provider", "llm-api-key", "llm-base-url", "llm-model", "llm-embedding-model", "llm-dimensions", "llm-timeout-seconds",
		"appointment-webhook-url", "appointment-webhook-secret",
	} {
		bind(key, key)
	}

	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	envAliases := map[string]string{
		"database-url":               "DATABASE_URL",
		"qdrant-url":                 "QDRANT_URL",
		"qdrant-api-key":             "QDRANT_API_KEY",
		"qdrant-collection-name":     "QDRANT_COLLECTION_NAME",
		"qdrant-vector-size":         "QDRANT_VECTOR_SIZE",
		"qdrant-distance":            "QDRANT_DISTANCE",
		"cors-origins":               "CORS_ORIGINS",
		"admin-api-key":              "ADMIN_API_KEY",
		"chat-rate-limit":            "CHAT_RATE_LIMIT",
		"bot-timezone":               "BOT_TIMEZONE",
		"log-level":                  "LOG_LEVEL",
		"log-dir":                    "LOG_DIR",
		"credential-encryption-key":  "CREDENTIAL_ENCRYPTION_KEY",
		"telegram-bot-token":         "TELEGRAM_BOT_TOKEN",
		"whatsapp-access-token":      "WHATSAPP_ACCESS_TOKEN",
		"whatsapp-app-secret":        "WHATSAPP_APP_SECRET",
		"whatsapp-verify-token":      "WHATSAPP_VERIFY_TOKEN",
		"whatsapp-phone-number-id":   "WHATSAPP_PHONE_NUMBER_ID",
	}
	for key, env := range envAliases {
		_ = v.BindEnv(key, env)
	}
}

// Load reads the bound viper keys into a Config and parses derived fields
// (CORS origin list, rate limit).
func Load(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Mode:                     v.GetString("mode"),
		Addr:                     v.GetString("addr"),
		Port:                     v.GetInt("port"),
		DatabaseURL:              v.GetString("database-url"),
		QdrantURL:                v.GetString("qdrant-url"),
		QdrantAPIKey:             v.GetString("qdrant-api-key"),
		QdrantCollectionName:     v.GetString("qdrant-collection-name"),
		QdrantVectorSize:         v.GetInt("qdrant-vector-size"),
		QdrantDistance:           v.GetString("qdrant-distance"),
		AdminAPIKey:              v.GetString("admin-api-key"),
		BotTimezone:              v.GetString("bot-timezone"),
		LogLevel:                 v.GetString("log-level"),
		LogDir:                   v.GetString("log-dir"),
		CredentialEncryptionKey:  v.GetString("credential-encryption-key"),
		TelegramBotToken:         v.GetString("telegram-bot-token"),
		WhatsAppAccessToken:      v.GetString("whatsapp-access-token"),
		WhatsAppAppSecret:        v.GetString("whatsapp-app-secret"),
		WhatsAppVerifyToken:      v.GetString("whatsapp-verify-token"),
		WhatsAppPhoneNumberID:    v.GetString("whatsapp-phone-number-id"),
		LLMProvider:              v.GetString("llm-provider"),
		LLMAPIKey:                v.GetString("llm-api-key"),
		LLMBaseURL:               v.GetString("llm-base-url"),
		LLMModel:                 v.GetString("llm-model"),
		LLMEmbeddingModel:        v.GetString("llm-embedding-model"),
		LLMDimensions:            v.GetInt("llm-dimensions"),
		LLMTimeoutSeconds:        v.GetInt("llm-timeout-seconds"),
		AppointmentWebhookURL:    v.GetString("appointment-webhook-url"),
		AppointmentWebhookSecret: v.GetString("appointment-webhook-secret"),
	}

	if origins := v.GetString("cors-origins"); origins != "" {
		for _, o := range strings.Split(origins, ",") {
			o = strings.TrimSpace(o)
			if o != "" {
				cfg.CORSOrigins = append(cfg.CORSOrigins, o)
			}
		}
	}

	rate, err := parseRateLimit(v.GetString("chat-rate-limit"))
	if err != nil {
		return nil, errors.Wrap(err, "config: parse chat-rate-limit")
	}
	cfg.ChatRateLimit = rate

	return cfg, nil
}

// parseRateLimit parses "N/unit" strings like "30/minute" or "5/second".
func parseRateLimit(spec string) (RateLimit, error) {
	parts := strings.SplitN(spec, "/", 2)
	if len(parts) != 2 {
		return RateLimit{}, fmt.Errorf("expected format N/unit, got %q", spec)
	}
	n, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return RateLimit{}, fmt.Errorf("invalid request count in %q: %w", spec, err)
	}
	var per time.Duration
	switch strings.ToLower(strings.TrimSpace(parts[1])) {
	case "second", "sec", "s":
		per = time.Second
	case "minute", "min", "m":
		per = time.Minute
	case "hour", "h":
		per = time.Hour
	default:
		return RateLimit{}, fmt.Errorf("unknown rate unit in %q", spec)
	}
	return RateLimit{Requests: n, Per: per}, nil
}

// IsDev reports whether the deployment is running in development mode.
func (c *Config) IsDev() bool { return c.Mode != "prod" }

// AdminEnabled reports whether the admin API surface should be mounted.
func (c *Config) AdminEnabled() bool { return c.AdminAPIKey != "" }

// Validate checks required fields are present for the configured mode.
func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return errors.New("config: DATABASE_URL is required")
	}
	if c.LLMAPIKey == "" {
		return errors.New("config: LLM_API_KEY is required")
	}
	if c.CredentialEncryptionKey != "" && len(c.CredentialEncryptionKey) < 16 {
		return errors.New("config: CREDENTIAL_ENCRYPTION_KEY must be at least 16 bytes")
	}
	return nil
}
