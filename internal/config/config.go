package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/ini.v1"
)

// Config holds all configuration
type Config struct {
	MySQL         MySQLConfig
	Redis         RedisConfig
	JWT           JWTConfig
	OpenProvider  OpenProviderConfig
	Stripe        StripeConfig
	Zoho          ZohoConfig
	AWS           AWSConfig
	CronSecret    string
	AppOrigin     string
	Migrate       bool
	HTTPAddr      string
	RenewalSweep  RenewalSweepConfig
	TransferSweep TransferSweepConfig
}

// MySQLConfig holds MySQL configuration
type MySQLConfig struct {
	DSN string
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// JWTConfig holds JWT configuration
type JWTConfig struct {
	Secret        string
	ExpireMinutes int
	Issuer        string
}

// OpenProviderConfig holds registrar API credentials
type OpenProviderConfig struct {
	Username string
	Password string
	Handle   string
	Sandbox  bool
}

// StripeConfig holds Stripe API configuration.
// Prices maps plan name -> billing interval -> Stripe price ID.
type StripeConfig struct {
	SecretKey     string
	WebhookSecret string
	Prices        map[string]map[string]string
}

// ZohoConfig holds Zoho Mail API credentials
type ZohoConfig struct {
	ClientID     string
	ClientSecret string
	RefreshToken string
	OrgID        string
}

// AWSConfig holds AWS credentials and resource names
type AWSConfig struct {
	Region      string
	AccessKey   string
	SecretKey   string
	SitesBucket string
	SESFrom     string
}

// RenewalSweepConfig holds renewal sweep worker configuration
type RenewalSweepConfig struct {
	Enabled     bool
	IntervalSec int
	WindowDays  int
}

// TransferSweepConfig holds transfer sweep worker configuration
type TransferSweepConfig struct {
	Enabled     bool
	IntervalSec int
}

var planNames = []string{"basic", "pro", "business"}
var intervalNames = []string{"monthly", "yearly"}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if exists (ignore error if not found)
	_ = godotenv.Load()

	cfg := &Config{
		MySQL: MySQLConfig{
			DSN: getEnv("MYSQL_DSN", ""),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASS", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		JWT: JWTConfig{
			Secret:        os.Getenv("JWT_SECRET"),
			ExpireMinutes: getEnvInt("JWT_EXPIRE_MINUTES", 10080),
			Issuer:        getEnv("JWT_ISSUER", "ion7"),
		},
		OpenProvider: OpenProviderConfig{
			Username: getEnv("OPENPROVIDER_USERNAME", ""),
			Password: getEnv("OPENPROVIDER_PASSWORD", ""),
			Handle:   getEnv("OPENPROVIDER_HANDLE", ""),
			Sandbox:  getEnv("OPENPROVIDER_SANDBOX", "0") == "1",
		},
		Stripe: StripeConfig{
			SecretKey:     getEnv("STRIPE_SECRET_KEY", ""),
			WebhookSecret: getEnv("STRIPE_WEBHOOK_SECRET", ""),
			Prices:        loadStripePrices(),
		},
		Zoho: ZohoConfig{
			ClientID:     getEnv("ZOHO_CLIENT_ID", ""),
			ClientSecret: getEnv("ZOHO_CLIENT_SECRET", ""),
			RefreshToken: getEnv("ZOHO_REFRESH_TOKEN", ""),
			OrgID:        getEnv("ZOHO_ORG_ID", ""),
		},
		AWS: AWSConfig{
			Region:      getEnv("AWS_REGION", "eu-west-1"),
			AccessKey:   getEnv("AWS_ACCESS_KEY_ID", ""),
			SecretKey:   getEnv("AWS_SECRET_ACCESS_KEY", ""),
			SitesBucket: getEnv("S3_SITES_BUCKET", ""),
			SESFrom:     getEnv("SES_FROM_EMAIL", ""),
		},
		CronSecret: getEnv("CRON_SECRET", ""),
		AppOrigin:  getEnv("APP_ORIGIN", "http://localhost:8080"),
		Migrate:    getEnv("MIGRATE", "0") == "1",
		HTTPAddr:   getEnv("HTTP_ADDR", ":8080"),
		RenewalSweep: RenewalSweepConfig{
			Enabled:     getEnv("RENEWAL_SWEEP_ENABLED", "1") == "1",
			IntervalSec: getEnvInt("RENEWAL_SWEEP_INTERVAL_SEC", 3600),
			WindowDays:  getEnvInt("RENEWAL_SWEEP_WINDOW_DAYS", 30),
		},
		TransferSweep: TransferSweepConfig{
			Enabled:     getEnv("TRANSFER_SWEEP_ENABLED", "1") == "1",
			IntervalSec: getEnvInt("TRANSFER_SWEEP_INTERVAL_SEC", 600),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func loadStripePrices() map[string]map[string]string {
	prices := make(map[string]map[string]string, len(planNames))
	for _, plan := range planNames {
		prices[plan] = make(map[string]string, len(intervalNames))
		for _, interval := range intervalNames {
			// e.g. STRIPE_PRICE_BASIC_MONTHLY
			key := fmt.Sprintf("STRIPE_PRICE_%s_%s", upper(plan), upper(interval))
			prices[plan][interval] = os.Getenv(key)
		}
	}
	return prices
}

func (c *Config) validate() error {
	if c.MySQL.DSN == "" {
		return fmt.Errorf("MYSQL_DSN is required")
	}
	if c.JWT.Secret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.Stripe.SecretKey == "" {
		return fmt.Errorf("STRIPE_SECRET_KEY is required")
	}
	if c.Stripe.WebhookSecret == "" {
		return fmt.Errorf("STRIPE_WEBHOOK_SECRET is required")
	}
	for _, plan := range planNames {
		for _, interval := range intervalNames {
			if c.Stripe.Prices[plan][interval] == "" {
				return fmt.Errorf("STRIPE_PRICE_%s_%s is required", upper(plan), upper(interval))
			}
		}
	}
	if c.CronSecret == "" {
		return fmt.Errorf("CRON_SECRET is required")
	}
	return nil
}

func upper(s string) string {
	b := []byte(s)
	for i := range b {
		if b[i] >= 'a' && b[i] <= 'z' {
			b[i] -= 'a' - 'A'
		}
	}
	return string(b)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// LoadFromINI loads configuration from INI file with environment variable override
func LoadFromINI(iniPath string) (*Config, error) {
	cfgFile, err := ini.Load(iniPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load INI file: %w", err)
	}

	// Helper function: get value with priority: ENV > INI > default
	getValue := func(envKey, iniSection, iniKey, defaultValue string) string {
		if value := os.Getenv(envKey); value != "" {
			return value
		}
		if value := cfgFile.Section(iniSection).Key(iniKey).String(); value != "" {
			return value
		}
		return defaultValue
	}

	getValueInt := func(envKey, iniSection, iniKey string, defaultValue int) int {
		if value := os.Getenv(envKey); value != "" {
			if intValue, err := strconv.Atoi(value); err == nil {
				return intValue
			}
		}
		if cfgFile.Section(iniSection).HasKey(iniKey) {
			if value, err := cfgFile.Section(iniSection).Key(iniKey).Int(); err == nil {
				return value
			}
		}
		return defaultValue
	}

	getValueBool := func(envKey, iniSection, iniKey string, defaultValue bool) bool {
		if value := os.Getenv(envKey); value != "" {
			return value == "1" || value == "true"
		}
		if value, err := cfgFile.Section(iniSection).Key(iniKey).Bool(); err == nil {
			return value
		}
		return defaultValue
	}

	prices := make(map[string]map[string]string, len(planNames))
	for _, plan := range planNames {
		prices[plan] = make(map[string]string, len(intervalNames))
		for _, interval := range intervalNames {
			envKey := fmt.Sprintf("STRIPE_PRICE_%s_%s", upper(plan), upper(interval))
			iniKey := fmt.Sprintf("price_%s_%s", plan, interval)
			prices[plan][interval] = getValue(envKey, "stripe", iniKey, "")
		}
	}

	cfg := &Config{
		MySQL: MySQLConfig{
			DSN: getValue("MYSQL_DSN", "mysql", "dsn", ""),
		},
		Redis: RedisConfig{
			Addr:     getValue("REDIS_ADDR", "redis", "addr", "localhost:6379"),
			Password: getValue("REDIS_PASS", "redis", "pass", ""),
			DB:       getValueInt("REDIS_DB", "redis", "db", 0),
		},
		JWT: JWTConfig{
			Secret:        getValue("JWT_SECRET", "jwt", "secret", ""),
			ExpireMinutes: getValueInt("JWT_EXPIRE_MINUTES", "jwt", "expire_minutes", 10080),
			Issuer:        getValue("JWT_ISSUER", "jwt", "issuer", "ion7"),
		},
		OpenProvider: OpenProviderConfig{
			Username: getValue("OPENPROVIDER_USERNAME", "openprovider", "username", ""),
			Password: getValue("OPENPROVIDER_PASSWORD", "openprovider", "password", ""),
			Handle:   getValue("OPENPROVIDER_HANDLE", "openprovider", "handle", ""),
			Sandbox:  getValueBool("OPENPROVIDER_SANDBOX", "openprovider", "sandbox", false),
		},
		Stripe: StripeConfig{
			SecretKey:     getValue("STRIPE_SECRET_KEY", "stripe", "secret_key", ""),
			WebhookSecret: getValue("STRIPE_WEBHOOK_SECRET", "stripe", "webhook_secret", ""),
			Prices:        prices,
		},
		Zoho: ZohoConfig{
			ClientID:     getValue("ZOHO_CLIENT_ID", "zoho", "client_id", ""),
			ClientSecret: getValue("ZOHO_CLIENT_SECRET", "zoho", "client_secret", ""),
			RefreshToken: getValue("ZOHO_REFRESH_TOKEN", "zoho", "refresh_token", ""),
			OrgID:        getValue("ZOHO_ORG_ID", "zoho", "org_id", ""),
		},
		AWS: AWSConfig{
			Region:      getValue("AWS_REGION", "aws", "region", "eu-west-1"),
			AccessKey:   getValue("AWS_ACCESS_KEY_ID", "aws", "access_key", ""),
			SecretKey:   getValue("AWS_SECRET_ACCESS_KEY", "aws", "secret_key", ""),
			SitesBucket: getValue("S3_SITES_BUCKET", "aws", "sites_bucket", ""),
			SESFrom:     getValue("SES_FROM_EMAIL", "aws", "ses_from", ""),
		},
		CronSecret: getValue("CRON_SECRET", "app", "cron_secret", ""),
		AppOrigin:  getValue("APP_ORIGIN", "app", "origin", "http://localhost:8080"),
		Migrate:    getValueBool("MIGRATE", "app", "migrate", false),
		HTTPAddr:   getValue("HTTP_ADDR", "http", "addr", ":8080"),
		RenewalSweep: RenewalSweepConfig{
			Enabled:     getValueBool("RENEWAL_SWEEP_ENABLED", "renewal_sweep", "enabled", true),
			IntervalSec: getValueInt("RENEWAL_SWEEP_INTERVAL_SEC", "renewal_sweep", "interval_sec", 3600),
			WindowDays:  getValueInt("RENEWAL_SWEEP_WINDOW_DAYS", "renewal_sweep", "window_days", 30),
		},
		TransferSweep: TransferSweepConfig{
			Enabled:     getValueBool("TRANSFER_SWEEP_ENABLED", "transfer_sweep", "enabled", true),
			IntervalSec: getValueInt("TRANSFER_SWEEP_INTERVAL_SEC", "transfer_sweep", "interval_sec", 600),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}
