package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/jekabolt/grbpwr-crm/internal/aggregate"
	httpapi "github.com/jekabolt/grbpwr-crm/internal/api/http"
	"github.com/jekabolt/grbpwr-crm/internal/apisrv/auth"
	"github.com/jekabolt/grbpwr-crm/internal/bucket"
	"github.com/jekabolt/grbpwr-crm/internal/changefeed"
	"github.com/jekabolt/grbpwr-crm/internal/mail"
	"github.com/jekabolt/grbpwr-crm/internal/ratelimit"
	"github.com/jekabolt/grbpwr-crm/internal/recompute"
	"github.com/jekabolt/grbpwr-crm/internal/report"
	"github.com/jekabolt/grbpwr-crm/internal/store"
	"github.com/jekabolt/grbpwr-crm/log"
	"github.com/spf13/viper"
)

// ReportsConfig holds aggregation settings plus the grid locale.
type ReportsConfig struct {
	aggregate.Config `mapstructure:",squash"`
	Grid             report.Config `mapstructure:",squash"`
}

// Config represents the global configuration for the service.
type Config struct {
	DB         store.Config      `mapstructure:"mysql"`
	Logger     log.Config        `mapstructure:"logger"`
	HTTP       httpapi.Config    `mapstructure:"http"`
	Auth       auth.Config       `mapstructure:"auth"`
	Bucket     bucket.Config     `mapstructure:"bucket"`
	Mailer     mail.Config       `mapstructure:"mailer"`
	Reports    ReportsConfig     `mapstructure:"reports"`
	Recompute  recompute.Config  `mapstructure:"recompute"`
	ChangeFeed changefeed.Config `mapstructure:"changefeed"`
	RateLimit  ratelimit.Config  `mapstructure:"ratelimit"`
}

// LoadConfig loads the configuration from a file and/or environment variables.
// Environment variables take precedence over config file values.
// Env vars use underscores and uppercase, e.g., MYSQL_DSN, AUTH_JWT_SECRET
// Nested config keys use double underscore, e.g., MYSQL__DSN for mysql.dsn
func LoadConfig(cfgFile string) (*Config, error) {
	viper.SetConfigType("toml")

	// Enable environment variable support
	// Viper will automatically read env vars and override config file values
	viper.AutomaticEnv()
	// Replace dots and dashes with underscores in env var names
	// e.g., mysql.dsn -> MYSQL__DSN, auth.jwt_secret -> AUTH__JWT_SECRET
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "__", "-", "__"))

	// Bind common environment variables to config keys
	// This allows using simpler env var names that match app.yaml
	bindEnvVars()

	// Try to read config file (optional - can work with env vars only)
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
		if err := viper.ReadInConfig(); err != nil {
			// If config file doesn't exist, continue with env vars only
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to read config file: %v", err)
			}
		}
	} else {
		viper.SetConfigName("config")
		viper.AddConfigPath("./config")
		viper.AddConfigPath("$HOME/config/grbpwr-crm")
		viper.AddConfigPath("/etc/grbpwr-crm")
		// Try to read config, but don't fail if it doesn't exist
		_ = viper.ReadInConfig()
	}

	setDefaults()

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config into struct: %v", err)
	}

	// Handle MySQL DSN construction from individual env vars if DSN is not set
	// Supports both MYSQL_* env vars and DigitalOcean's db.* env vars
	if config.DB.DSN == "" {
		var mysqlHost, mysqlPort, mysqlUser, mysqlPassword, mysqlDatabase string

		// Check for DigitalOcean's db.* env vars first
		if dbHost := os.Getenv("db.HOSTNAME"); dbHost != "" {
			mysqlHost = dbHost
			mysqlPort = os.Getenv("db.PORT")
			mysqlUser = os.Getenv("db.USERNAME")
			mysqlPassword = os.Getenv("db.PASSWORD")
			mysqlDatabase = os.Getenv("db.DATABASE")
		} else {
			// Fall back to MYSQL_* env vars
			mysqlHost = os.Getenv("MYSQL_HOST")
			mysqlPort = os.Getenv("MYSQL_PORT")
			mysqlUser = os.Getenv("MYSQL_USER")
			mysqlPassword = os.Getenv("MYSQL_PASSWORD")
			mysqlDatabase = os.Getenv("MYSQL_DATABASE")
		}

		if mysqlHost != "" {
			if mysqlPort == "" {
				mysqlPort = "3306"
			}
			if mysqlUser != "" && mysqlPassword != "" && mysqlDatabase != "" {
				// Construct DSN for DO managed database (with TLS)
				config.DB.DSN = fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8&parseTime=true&tls=custom",
					mysqlUser, mysqlPassword, mysqlHost, mysqlPort, mysqlDatabase)
			}
		}
	}

	return &config, nil
}

func setDefaults() {
	ag := aggregate.DefaultConfig()
	viper.SetDefault("reports.timezone", ag.Timezone)
	viper.SetDefault("reports.low_stock_threshold", ag.LowStockThreshold)
	viper.SetDefault("reports.top_n", ag.TopN)
	viper.SetDefault("reports.granularity", ag.Granularity)
	viper.SetDefault("reports.locale", report.DefaultConfig().Locale)

	rc := recompute.DefaultConfig()
	viper.SetDefault("recompute.debounce", rc.Debounce)
	viper.SetDefault("recompute.fetch_timeout", rc.FetchTimeout)
	viper.SetDefault("recompute.default_days", rc.DefaultDays)

	cf := changefeed.DefaultConfig()
	viper.SetDefault("changefeed.enabled", cf.Enabled)
	viper.SetDefault("changefeed.poll_interval", cf.PollInterval)

	rl := ratelimit.DefaultConfig()
	viper.SetDefault("ratelimit.enabled", rl.Enabled)
	viper.SetDefault("ratelimit.rps", rl.RPS)
	viper.SetDefault("ratelimit.burst", rl.Burst)
	viper.SetDefault("ratelimit.idle_ttl", rl.IdleTTL)

	viper.SetDefault("http.port", "8081")
	viper.SetDefault("logger.level", 0)
}

// bindEnvVars binds environment variables to config keys
// This allows using both nested keys (MYSQL__DSN) and flat keys (MYSQL_DSN)
func bindEnvVars() {
	// MySQL
	viper.BindEnv("mysql.dsn", "MYSQL_DSN")
	viper.BindEnv("mysql.automigrate", "MYSQL_AUTOMIGRATE")
	viper.BindEnv("mysql.max_open_connections", "MYSQL_MAX_OPEN_CONNECTIONS")
	viper.BindEnv("mysql.max_idle_connections", "MYSQL_MAX_IDLE_CONNECTIONS")
	viper.BindEnv("mysql.tls_ca_path", "MYSQL_TLS_CA_PATH")

	// Logger
	viper.BindEnv("logger.level", "LOG_LEVEL")
	viper.BindEnv("logger.add_source", "LOG_ADD_SOURCE")

	// HTTP
	viper.BindEnv("http.port", "HTTP_PORT")
	viper.BindEnv("http.address", "HTTP_ADDRESS")
	viper.BindEnv("http.allowed_origins", "HTTP_ALLOWED_ORIGINS")
	viper.BindEnv("http.trusted_proxies", "HTTP_TRUSTED_PROXIES")

	// Auth
	viper.BindEnv("auth.jwt_secret", "AUTH_JWT_SECRET")
	viper.BindEnv("auth.master_password", "AUTH_MASTER_PASSWORD")
	viper.BindEnv("auth.jwt_ttl", "AUTH_JWT_TTL")

	// Bucket
	viper.BindEnv("bucket.s3AccessKey", "BUCKET_S3_ACCESS_KEY")
	viper.BindEnv("bucket.s3SecretAccessKey", "BUCKET_S3_SECRET_ACCESS_KEY")
	viper.BindEnv("bucket.s3Endpoint", "BUCKET_S3_ENDPOINT")
	viper.BindEnv("bucket.s3BucketName", "BUCKET_S3_BUCKET_NAME")
	viper.BindEnv("bucket.s3BucketLocation", "BUCKET_S3_BUCKET_LOCATION")
	viper.BindEnv("bucket.baseFolder", "BUCKET_BASE_FOLDER")
	viper.BindEnv("bucket.linkExpiry", "BUCKET_LINK_EXPIRY")

	// Mailer
	viper.BindEnv("mailer.sendgrid_api_key", "MAILER_SENDGRID_API_KEY")
	viper.BindEnv("mailer.from_email", "MAILER_FROM_EMAIL")
	viper.BindEnv("mailer.from_email_name", "MAILER_FROM_EMAIL_NAME")
	viper.BindEnv("mailer.reply_to", "MAILER_REPLY_TO")
	viper.BindEnv("mailer.to", "MAILER_TO")

	// Reports
	viper.BindEnv("reports.timezone", "REPORTS_TIMEZONE")
	viper.BindEnv("reports.low_stock_threshold", "REPORTS_LOW_STOCK_THRESHOLD")
	viper.BindEnv("reports.top_n", "REPORTS_TOP_N")
	viper.BindEnv("reports.granularity", "REPORTS_GRANULARITY")
	viper.BindEnv("reports.locale", "REPORTS_LOCALE")

	// Recompute
	viper.BindEnv("recompute.debounce", "RECOMPUTE_DEBOUNCE")
	viper.BindEnv("recompute.fetch_timeout", "RECOMPUTE_FETCH_TIMEOUT")
	viper.BindEnv("recompute.default_days", "RECOMPUTE_DEFAULT_DAYS")

	// Change feed
	viper.BindEnv("changefeed.enabled", "CHANGEFEED_ENABLED")
	viper.BindEnv("changefeed.poll_interval", "CHANGEFEED_POLL_INTERVAL")

	// Rate limit
	viper.BindEnv("ratelimit.enabled", "RATELIMIT_ENABLED")
	viper.BindEnv("ratelimit.rps", "RATELIMIT_RPS")
	viper.BindEnv("ratelimit.burst", "RATELIMIT_BURST")
}
