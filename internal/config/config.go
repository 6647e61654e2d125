package config

import (
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	Resend     ResendConfig     `yaml:"resend"`
	SES        SESConfig        `yaml:"ses"`
	SMTP       SMTPConfig       `yaml:"smtp"`
	Cin7       Cin7Config       `yaml:"cin7"`
	Woo        WooConfig        `yaml:"woocommerce"`
	Klaviyo    KlaviyoConfig    `yaml:"klaviyo"`
	GoogleAds  GoogleAdsConfig  `yaml:"google_ads"`
	LLM        LLMConfig        `yaml:"llm"`
	Outreach   OutreachConfig   `yaml:"outreach"`
	Automation AutomationConfig `yaml:"automation"`
	Dormant    DormantConfig    `yaml:"dormant"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port int    `yaml:"port"`
	Host string `yaml:"host"`
}

// GetHost returns the server host, with container detection.
func (c ServerConfig) GetHost() string {
	// In a container, listen on all interfaces
	if os.Getenv("ECS_CONTAINER_METADATA_URI") != "" || os.Getenv("AWS_EXECUTION_ENV") != "" {
		return "0.0.0.0"
	}
	if host := os.Getenv("SERVER_HOST"); host != "" {
		return host
	}
	return c.Host
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	URL          string `yaml:"url"`
	MaxOpenConns int    `yaml:"max_open_conns"`
	MaxIdleConns int    `yaml:"max_idle_conns"`
}

// RedisConfig holds the dashboard cache settings.
type RedisConfig struct {
	Addr            string `yaml:"addr"`
	Password        string `yaml:"password"`
	DB              int    `yaml:"db"`
	Enabled         bool   `yaml:"enabled"`
	CacheTTLSeconds int    `yaml:"cache_ttl_seconds"`
}

// CacheTTL returns the dashboard cache TTL as a duration.
func (c RedisConfig) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLSeconds) * time.Second
}

// ResendConfig holds the primary transactional-email provider settings.
type ResendConfig struct {
	APIKey         string `yaml:"api_key"`
	BaseURL        string `yaml:"base_url"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	WebhookSecret  string `yaml:"webhook_secret"`
	Enabled        bool   `yaml:"enabled"`
}

// Timeout returns the configured timeout as a duration.
func (c ResendConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// SESConfig holds the AWS SES fallback provider settings.
type SESConfig struct {
	Region         string `yaml:"region"`
	AccessKey      string `yaml:"access_key"`
	SecretKey      string `yaml:"secret_key"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	Enabled        bool   `yaml:"enabled"`
}

// Timeout returns the configured timeout as a duration.
func (c SESConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// SMTPConfig holds the self-hosted relay provider settings.
type SMTPConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Enabled  bool   `yaml:"enabled"`
}

// Cin7Config holds the ERP API settings.
type Cin7Config struct {
	BaseURL        string `yaml:"base_url"`
	Username       string `yaml:"username"`
	APIKey         string `yaml:"api_key"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	PageSize       int    `yaml:"page_size"`
	Enabled        bool   `yaml:"enabled"`
}

// Timeout returns the configured timeout as a duration.
func (c Cin7Config) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// WooConfig holds the WooCommerce store API settings.
type WooConfig struct {
	BaseURL          string `yaml:"base_url"`
	ConsumerKey      string `yaml:"consumer_key"`
	ConsumerSecret   string `yaml:"consumer_secret"`
	TimeoutSeconds   int    `yaml:"timeout_seconds"`
	CredentialTTLMin int    `yaml:"credential_ttl_minutes"`
	Enabled          bool   `yaml:"enabled"`
}

// Timeout returns the configured timeout as a duration.
func (c WooConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// CredentialTTL returns how long fetched store credentials stay fresh.
func (c WooConfig) CredentialTTL() time.Duration {
	return time.Duration(c.CredentialTTLMin) * time.Minute
}

// KlaviyoConfig holds the marketing platform settings for dormant sync.
type KlaviyoConfig struct {
	APIKey         string `yaml:"api_key"`
	BaseURL        string `yaml:"base_url"`
	ListID         string `yaml:"list_id"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	Enabled        bool   `yaml:"enabled"`
}

// Timeout returns the configured timeout as a duration.
func (c KlaviyoConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// GoogleAdsConfig holds OAuth and reporting settings.
type GoogleAdsConfig struct {
	ClientID       string `yaml:"client_id"`
	ClientSecret   string `yaml:"client_secret"`
	RefreshToken   string `yaml:"refresh_token"`
	DeveloperToken string `yaml:"developer_token"`
	CustomerID     string `yaml:"customer_id"`
	BaseURL        string `yaml:"base_url"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	Enabled        bool   `yaml:"enabled"`
}

// Timeout returns the configured timeout as a duration.
func (c GoogleAdsConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// LLMConfig holds the chat-completion API settings for the chat widget.
type LLMConfig struct {
	APIKey         string `yaml:"api_key"`
	BaseURL        string `yaml:"base_url"`
	Model          string `yaml:"model"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	Enabled        bool   `yaml:"enabled"`
}

// Timeout returns the configured timeout as a duration.
func (c LLMConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// OutreachConfig holds campaign sending defaults.
type OutreachConfig struct {
	Provider          string `yaml:"provider"` // "resend", "ses", "smtp"
	BatchSize         int    `yaml:"batch_size"`
	DefaultDelayMS    int    `yaml:"default_delay_ms"`
	DryRunLatencyMS   int    `yaml:"dry_run_latency_ms"`
	DefaultFromName   string `yaml:"default_from_name"`
	DefaultFromEmail  string `yaml:"default_from_email"`
	AttributionDomain string `yaml:"attribution_domain"`
}

// DryRunLatency returns the simulated per-email latency for dry runs.
func (c OutreachConfig) DryRunLatency() time.Duration {
	return time.Duration(c.DryRunLatencyMS) * time.Millisecond
}

// AutomationConfig holds the order-automation scheduler settings.
type AutomationConfig struct {
	Enabled             bool `yaml:"enabled"`
	TickIntervalSeconds int  `yaml:"tick_interval_seconds"`
	MaxPerRun           int  `yaml:"max_per_run"`
	QuoteMaxReminders   int  `yaml:"quote_max_reminders"`
}

// TickInterval returns the scan/process cadence for the worker loop.
func (c AutomationConfig) TickInterval() time.Duration {
	return time.Duration(c.TickIntervalSeconds) * time.Second
}

// DormantConfig holds the dormant-customer sync settings.
type DormantConfig struct {
	ThresholdDays   int `yaml:"threshold_days"`
	PageSize        int `yaml:"page_size"`
	ProfileDelayMS  int `yaml:"profile_delay_ms"`
}

// ProfileDelay returns the inter-profile pause used to respect rate limits.
func (c DormantConfig) ProfileDelay() time.Duration {
	return time.Duration(c.ProfileDelayMS) * time.Millisecond
}

// Load reads and parses the configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 25
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Redis.Addr == "" {
		cfg.Redis.Addr = "localhost:6379"
	}
	if cfg.Redis.CacheTTLSeconds == 0 {
		cfg.Redis.CacheTTLSeconds = 60
	}
	if cfg.Resend.BaseURL == "" {
		cfg.Resend.BaseURL = "https://api.resend.com"
	}
	if cfg.Resend.TimeoutSeconds == 0 {
		cfg.Resend.TimeoutSeconds = 30
	}
	if cfg.SES.Region == "" {
		cfg.SES.Region = "ap-southeast-2"
	}
	if cfg.SES.TimeoutSeconds == 0 {
		cfg.SES.TimeoutSeconds = 30
	}
	if cfg.SMTP.Port == 0 {
		cfg.SMTP.Port = 587
	}
	if cfg.Cin7.BaseURL == "" {
		cfg.Cin7.BaseURL = "https://api.cin7.com/api"
	}
	if cfg.Cin7.TimeoutSeconds == 0 {
		cfg.Cin7.TimeoutSeconds = 60
	}
	if cfg.Cin7.PageSize == 0 {
		cfg.Cin7.PageSize = 250
	}
	if cfg.Woo.TimeoutSeconds == 0 {
		cfg.Woo.TimeoutSeconds = 30
	}
	if cfg.Woo.CredentialTTLMin == 0 {
		cfg.Woo.CredentialTTLMin = 10
	}
	if cfg.Klaviyo.BaseURL == "" {
		cfg.Klaviyo.BaseURL = "https://a.klaviyo.com/api"
	}
	if cfg.Klaviyo.TimeoutSeconds == 0 {
		cfg.Klaviyo.TimeoutSeconds = 30
	}
	if cfg.GoogleAds.BaseURL == "" {
		cfg.GoogleAds.BaseURL = "https://googleads.googleapis.com"
	}
	if cfg.GoogleAds.TimeoutSeconds == 0 {
		cfg.GoogleAds.TimeoutSeconds = 30
	}
	if cfg.LLM.BaseURL == "" {
		cfg.LLM.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.LLM.Model == "" {
		cfg.LLM.Model = "gpt-4o-mini"
	}
	if cfg.LLM.TimeoutSeconds == 0 {
		cfg.LLM.TimeoutSeconds = 60
	}
	if cfg.Outreach.Provider == "" {
		cfg.Outreach.Provider = "resend"
	}
	if cfg.Outreach.BatchSize == 0 {
		cfg.Outreach.BatchSize = 10
	}
	if cfg.Outreach.DefaultDelayMS == 0 {
		cfg.Outreach.DefaultDelayMS = 2000
	}
	if cfg.Outreach.DryRunLatencyMS == 0 {
		cfg.Outreach.DryRunLatencyMS = 150
	}
	if cfg.Outreach.AttributionDomain == "" {
		cfg.Outreach.AttributionDomain = "mact.au"
	}
	if cfg.Automation.TickIntervalSeconds == 0 {
		cfg.Automation.TickIntervalSeconds = 300
	}
	if cfg.Automation.MaxPerRun == 0 {
		cfg.Automation.MaxPerRun = 25
	}
	if cfg.Automation.QuoteMaxReminders == 0 {
		cfg.Automation.QuoteMaxReminders = 10
	}
	if cfg.Dormant.ThresholdDays == 0 {
		cfg.Dormant.ThresholdDays = 365
	}
	if cfg.Dormant.PageSize == 0 {
		cfg.Dormant.PageSize = 250
	}
	if cfg.Dormant.ProfileDelayMS == 0 {
		cfg.Dormant.ProfileDelayMS = 300
	}
}

// LoadFromEnv loads configuration with environment variable overrides.
// It automatically loads a .env file (if present) before reading env vars,
// so secrets can live in .env locally and in real env vars in production.
func LoadFromEnv(path string) (*Config, error) {
	// Load .env file if it exists (no error if missing)
	_ = godotenv.Load()

	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		cfg.Database.URL = dbURL
	}
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		cfg.Redis.Addr = addr
		cfg.Redis.Enabled = true
	}
	if apiKey := os.Getenv("RESEND_API_KEY"); apiKey != "" {
		cfg.Resend.APIKey = apiKey
		cfg.Resend.Enabled = true
	}
	if secret := os.Getenv("RESEND_WEBHOOK_SECRET"); secret != "" {
		cfg.Resend.WebhookSecret = secret
	}
	if accessKey := os.Getenv("AWS_SES_ACCESS_KEY"); accessKey != "" {
		cfg.SES.AccessKey = accessKey
	}
	if secretKey := os.Getenv("AWS_SES_SECRET_KEY"); secretKey != "" {
		cfg.SES.SecretKey = secretKey
	}
	if region := os.Getenv("AWS_SES_REGION"); region != "" {
		cfg.SES.Region = region
	}
	if v := os.Getenv("CIN7_USERNAME"); v != "" {
		cfg.Cin7.Username = v
	}
	if v := os.Getenv("CIN7_API_KEY"); v != "" {
		cfg.Cin7.APIKey = v
		cfg.Cin7.Enabled = true
	}
	if v := os.Getenv("WOO_BASE_URL"); v != "" {
		cfg.Woo.BaseURL = v
	}
	if v := os.Getenv("WOO_CONSUMER_KEY"); v != "" {
		cfg.Woo.ConsumerKey = v
	}
	if v := os.Getenv("WOO_CONSUMER_SECRET"); v != "" {
		cfg.Woo.ConsumerSecret = v
		cfg.Woo.Enabled = true
	}
	if v := os.Getenv("KLAVIYO_API_KEY"); v != "" {
		cfg.Klaviyo.APIKey = v
		cfg.Klaviyo.Enabled = true
	}
	if v := os.Getenv("GOOGLE_ADS_CLIENT_ID"); v != "" {
		cfg.GoogleAds.ClientID = v
	}
	if v := os.Getenv("GOOGLE_ADS_CLIENT_SECRET"); v != "" {
		cfg.GoogleAds.ClientSecret = v
	}
	if v := os.Getenv("GOOGLE_ADS_REFRESH_TOKEN"); v != "" {
		cfg.GoogleAds.RefreshToken = v
		cfg.GoogleAds.Enabled = true
	}
	if v := os.Getenv("GOOGLE_ADS_DEVELOPER_TOKEN"); v != "" {
		cfg.GoogleAds.DeveloperToken = v
	}
	if v := os.Getenv("LLM_API_KEY"); v != "" {
		cfg.LLM.APIKey = v
		cfg.LLM.Enabled = true
	}
	if v := os.Getenv("SMTP_HOST"); v != "" {
		cfg.SMTP.Host = v
	}
	if v := os.Getenv("SMTP_USERNAME"); v != "" {
		cfg.SMTP.Username = v
	}
	if v := os.Getenv("SMTP_PASSWORD"); v != "" {
		cfg.SMTP.Password = v
	}

	return cfg, nil
}
