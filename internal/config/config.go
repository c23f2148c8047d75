package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds runtime configuration values for the API service and the operator CLI.
type Config struct {
	AppName        string
	AppEnv         string
	HTTPHost       string
	HTTPPort       string
	AllowedOrigins string

	LogLevel      string
	LogFile       string
	LogMaxSizeMB  int
	LogMaxBackups int
	LogMaxAgeDays int

	DatabaseDriver string
	DatabaseURL    string
	RedisURL       string
	HistoryTTL     time.Duration
	OverviewTTL    time.Duration
	NATSURL        string
	EventsChannel  string

	AIProvider       string
	AIProtocol       string
	AITimeout        time.Duration
	AIMaxConcurrency int
	AIBaseURL        string
	OpenAIAPIKey     string
	AnalysisModel    string
	QuizModel        string
	AnthropicAPIKey  string
	AnthropicModel   string
	GeminiAPIKey     string
	GeminiModel      string

	AdminPassword     string
	AdminPasswordHash string
	AdminTokenSecret  string
	AdminTokenTTL     time.Duration

	GithubWebhookSecret string
	UploadMaxBytes      int64

	CloudinaryCloudName string
	CloudinaryAPIKey    string
	CloudinaryAPISecret string
	CloudinaryFolder    string

	RateLimitMax    int
	RateLimitWindow time.Duration
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.HTTPPort, ":") {
		return c.HTTPHost + c.HTTPPort
	}
	return fmt.Sprintf("%s:%s", c.HTTPHost, c.HTTPPort)
}

// IsTest reports whether the service runs under the test environment.
func (c Config) IsTest() bool {
	return strings.EqualFold(c.AppEnv, "test")
}

// AIAPIKey returns the credential of the selected generation provider.
func (c Config) AIAPIKey() string {
	switch c.AIProvider {
	case "anthropic":
		return c.AnthropicAPIKey
	case "gemini":
		return c.GeminiAPIKey
	default:
		return c.OpenAIAPIKey
	}
}

// ArchiveEnabled reports whether generated PDFs are archived to Cloudinary.
func (c Config) ArchiveEnabled() bool {
	return c.CloudinaryCloudName != "" && c.CloudinaryAPIKey != "" && c.CloudinaryAPISecret != ""
}

// Load reads configuration values from environment variables and an optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("CODECHECK")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	setDefaults(v)

	durations := map[string]time.Duration{}
	for _, key := range []string{"redis.history_ttl", "redis.overview_ttl", "ai.timeout", "admin.token_ttl", "rate_limit.window"} {
		d, err := time.ParseDuration(v.GetString(key))
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", key, err)
		}
		durations[key] = d
	}

	cfg := Config{
		AppName:        v.GetString("app.name"),
		AppEnv:         v.GetString("app.env"),
		HTTPHost:       v.GetString("http.host"),
		HTTPPort:       v.GetString("http.port"),
		AllowedOrigins: v.GetString("http.allowed_origins"),

		LogLevel:      strings.ToLower(v.GetString("log.level")),
		LogFile:       v.GetString("log.file"),
		LogMaxSizeMB:  v.GetInt("log.max_size_mb"),
		LogMaxBackups: v.GetInt("log.max_backups"),
		LogMaxAgeDays: v.GetInt("log.max_age_days"),

		DatabaseDriver: strings.ToLower(v.GetString("database.driver")),
		DatabaseURL:    v.GetString("database.url"),
		RedisURL:       v.GetString("redis.url"),
		HistoryTTL:     durations["redis.history_ttl"],
		OverviewTTL:    durations["redis.overview_ttl"],
		NATSURL:        v.GetString("nats.url"),
		EventsChannel:  v.GetString("events.channel"),

		AIProvider:       strings.ToLower(v.GetString("ai.provider")),
		AIProtocol:       strings.ToLower(v.GetString("ai.protocol")),
		AITimeout:        durations["ai.timeout"],
		AIMaxConcurrency: v.GetInt("ai.max_concurrency"),
		AIBaseURL:        v.GetString("ai.base_url"),
		OpenAIAPIKey:     v.GetString("openai.api_key"),
		AnalysisModel:    v.GetString("openai.analysis_model"),
		QuizModel:        v.GetString("openai.quiz_model"),
		AnthropicAPIKey:  v.GetString("anthropic.api_key"),
		AnthropicModel:   v.GetString("anthropic.model"),
		GeminiAPIKey:     v.GetString("gemini.api_key"),
		GeminiModel:      v.GetString("gemini.model"),

		AdminPassword:     v.GetString("admin.password"),
		AdminPasswordHash: v.GetString("admin.password_hash"),
		AdminTokenSecret:  v.GetString("admin.token_secret"),
		AdminTokenTTL:     durations["admin.token_ttl"],

		GithubWebhookSecret: v.GetString("webhook.github_secret"),
		UploadMaxBytes:      v.GetInt64("upload.max_bytes"),

		CloudinaryCloudName: v.GetString("cloudinary.cloud_name"),
		CloudinaryAPIKey:    v.GetString("cloudinary.api_key"),
		CloudinaryAPISecret: v.GetString("cloudinary.api_secret"),
		CloudinaryFolder:    v.GetString("cloudinary.folder"),

		RateLimitMax:    v.GetInt("rate_limit.max"),
		RateLimitWindow: durations["rate_limit.window"],
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "codecheck")
	v.SetDefault("app.env", "development")
	v.SetDefault("http.host", "")
	v.SetDefault("http.port", "8000")
	v.SetDefault("http.allowed_origins", "*")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", 50)
	v.SetDefault("log.max_backups", 5)
	v.SetDefault("log.max_age_days", 28)
	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.url", "")
	v.SetDefault("redis.url", "")
	v.SetDefault("redis.history_ttl", "10m")
	v.SetDefault("redis.overview_ttl", "1m")
	v.SetDefault("nats.url", "")
	v.SetDefault("events.channel", "codecheck")
	v.SetDefault("ai.provider", "openai")
	v.SetDefault("ai.protocol", "modern")
	v.SetDefault("ai.timeout", "60s")
	v.SetDefault("ai.max_concurrency", 4)
	v.SetDefault("ai.base_url", "")
	v.SetDefault("openai.api_key", "")
	v.SetDefault("openai.analysis_model", "gpt-4o")
	v.SetDefault("openai.quiz_model", "gpt-4o-mini")
	v.SetDefault("anthropic.api_key", "")
	v.SetDefault("anthropic.model", "")
	v.SetDefault("gemini.api_key", "")
	v.SetDefault("gemini.model", "")
	v.SetDefault("admin.password", "")
	v.SetDefault("admin.password_hash", "")
	v.SetDefault("admin.token_secret", "")
	v.SetDefault("admin.token_ttl", "12h")
	v.SetDefault("webhook.github_secret", "")
	v.SetDefault("upload.max_bytes", 1<<20)
	v.SetDefault("cloudinary.cloud_name", "")
	v.SetDefault("cloudinary.api_key", "")
	v.SetDefault("cloudinary.api_secret", "")
	v.SetDefault("cloudinary.folder", "codecheck/quiz-pdfs")
	v.SetDefault("rate_limit.max", 120)
	v.SetDefault("rate_limit.window", "1m")
}

func (c Config) validate() error {
	switch c.DatabaseDriver {
	case "postgres", "mysql", "sqlite":
	default:
		return fmt.Errorf("unsupported database driver %q", c.DatabaseDriver)
	}
	switch c.AIProvider {
	case "openai", "anthropic", "gemini":
	default:
		return fmt.Errorf("unsupported ai provider %q", c.AIProvider)
	}
	if c.AdminPassword == "" && c.AdminPasswordHash == "" && !c.IsTest() {
		return fmt.Errorf("admin password or password hash must be provided")
	}
	if c.UploadMaxBytes <= 0 {
		return fmt.Errorf("upload max bytes must be positive")
	}
	return nil
}
