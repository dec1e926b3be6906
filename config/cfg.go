package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/withindevelopment-activate/within-the-app-sub000/internal/analytics/ga4"
	httpapi "github.com/withindevelopment-activate/within-the-app-sub000/internal/api/http"
	"github.com/withindevelopment-activate/within-the-app-sub000/internal/auth/jwt"
	"github.com/withindevelopment-activate/within-the-app-sub000/internal/bucket"
	"github.com/withindevelopment-activate/within-the-app-sub000/internal/cache"
	"github.com/withindevelopment-activate/within-the-app-sub000/internal/identity"
	"github.com/withindevelopment-activate/within-the-app-sub000/internal/landing"
	"github.com/withindevelopment-activate/within-the-app-sub000/internal/orderbackfill"
	"github.com/withindevelopment-activate/within-the-app-sub000/internal/ratelimit"
	"github.com/withindevelopment-activate/within-the-app-sub000/internal/report"
	"github.com/withindevelopment-activate/within-the-app-sub000/internal/store"
	"github.com/withindevelopment-activate/within-the-app-sub000/internal/tracking"
	"github.com/withindevelopment-activate/within-the-app-sub000/internal/warehouse"
	"github.com/withindevelopment-activate/within-the-app-sub000/log"
)

// Config represents the global configuration for the service.
type Config struct {
	DB        store.Config         `mapstructure:"mysql"`
	Logger    log.Config           `mapstructure:"logger"`
	HTTP      httpapi.Config       `mapstructure:"http"`
	JWT       jwt.Config           `mapstructure:"jwt"`
	RateLimit ratelimit.Config     `mapstructure:"rate_limit"`
	Tracking  tracking.Config      `mapstructure:"tracking"`
	Identity  identity.Config      `mapstructure:"identity"`
	Report    report.Config        `mapstructure:"report"`
	Landing   landing.Config       `mapstructure:"landing"`
	Redis     cache.Config         `mapstructure:"redis"`
	GA4       ga4.Config           `mapstructure:"ga4"`
	Bucket    bucket.Config        `mapstructure:"bucket"`
	Warehouse warehouse.Config     `mapstructure:"warehouse"`
	Backfill  orderbackfill.Config `mapstructure:"order_backfill"`
}

// Default returns the configuration used for keys absent from both the
// file and the environment.
func Default() Config {
	return Config{
		HTTP:      httpapi.DefaultConfig(),
		JWT:       jwt.Config{TTL: 24 * time.Hour},
		RateLimit: ratelimit.DefaultConfig(),
		Tracking:  tracking.DefaultConfig(),
		Identity:  identity.DefaultConfig(),
		Report:    report.DefaultConfig(),
		Landing:   landing.DefaultConfig(),
		Backfill:  orderbackfill.DefaultConfig(),
	}
}

// LoadConfig loads the configuration from a file and/or environment variables.
// Environment variables take precedence over config file values.
// Nested config keys use double underscore, e.g., MYSQL__DSN for mysql.dsn
func LoadConfig(cfgFile string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("toml")

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "__", "-", "__"))
	bindEnvVars(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to read config file: %v", err)
			}
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath("./config")
		v.AddConfigPath("$HOME/config/attribution")
		v.AddConfigPath("/etc/attribution")
		_ = v.ReadInConfig()
	}

	config := Default()
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config into struct: %v", err)
	}

	// Build the DSN from individual MYSQL_* env vars when no DSN is given.
	if config.DB.DSN == "" {
		mysqlHost := os.Getenv("MYSQL_HOST")
		mysqlPort := os.Getenv("MYSQL_PORT")
		mysqlUser := os.Getenv("MYSQL_USER")
		mysqlPassword := os.Getenv("MYSQL_PASSWORD")
		mysqlDatabase := os.Getenv("MYSQL_DATABASE")

		if mysqlHost != "" {
			if mysqlPort == "" {
				mysqlPort = "3306"
			}
			if mysqlUser != "" && mysqlPassword != "" && mysqlDatabase != "" {
				config.DB.DSN = fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=true",
					mysqlUser, mysqlPassword, mysqlHost, mysqlPort, mysqlDatabase)
			}
		}
	}

	return &config, nil
}

// bindEnvVars binds environment variables to config keys
// This allows using both nested keys (MYSQL__DSN) and flat keys (MYSQL_DSN)
func bindEnvVars(v *viper.Viper) {
	bind := func(key, env string) {
		_ = v.BindEnv(key, env)
	}

	// MySQL
	bind("mysql.dsn", "MYSQL_DSN")
	bind("mysql.automigrate", "MYSQL_AUTOMIGRATE")
	bind("mysql.max_open_connections", "MYSQL_MAX_OPEN_CONNECTIONS")
	bind("mysql.max_idle_connections", "MYSQL_MAX_IDLE_CONNECTIONS")
	bind("mysql.tls_ca_path", "MYSQL_TLS_CA_PATH")

	// Logger
	bind("logger.level", "LOG_LEVEL")
	bind("logger.add_source", "LOG_ADD_SOURCE")

	// HTTP
	bind("http.port", "HTTP_PORT")
	bind("http.address", "HTTP_ADDRESS")
	bind("http.allowed_origins", "HTTP_ALLOWED_ORIGINS")
	bind("http.max_upload_mb", "HTTP_MAX_UPLOAD_MB")

	// JWT
	bind("jwt.secret", "JWT_SECRET")
	bind("jwt.ttl", "JWT_TTL")

	// Tracking
	bind("tracking.store_url", "TRACKING_STORE_URL")

	// Identity sync
	bind("identity.enabled", "IDENTITY_ENABLED")
	bind("identity.worker_interval", "IDENTITY_WORKER_INTERVAL")
	bind("identity.batch_size", "IDENTITY_BATCH_SIZE")

	// Report
	bind("report.archive_uploads", "REPORT_ARCHIVE_UPLOADS")
	bind("report.export_products", "REPORT_EXPORT_PRODUCTS")
	bind("report.sku.excluded_region", "REPORT_EXCLUDED_REGION")

	// Landing pages
	bind("landing.base_url", "LANDING_BASE_URL")
	bind("landing.concurrency", "LANDING_CONCURRENCY")

	// Redis
	bind("redis.url", "REDIS_URL")
	bind("redis.key_prefix", "REDIS_KEY_PREFIX")

	// GA4
	bind("ga4.enabled", "GA4_ENABLED")
	bind("ga4.property_id", "GA4_PROPERTY_ID")
	bind("ga4.credentials_json", "GA4_CREDENTIALS_JSON")

	// Bucket
	bind("bucket.s3AccessKey", "BUCKET_S3_ACCESS_KEY")
	bind("bucket.s3SecretAccessKey", "BUCKET_S3_SECRET_ACCESS_KEY")
	bind("bucket.s3Endpoint", "BUCKET_S3_ENDPOINT")
	bind("bucket.s3BucketName", "BUCKET_S3_BUCKET_NAME")
	bind("bucket.s3BucketLocation", "BUCKET_S3_BUCKET_LOCATION")
	bind("bucket.baseFolder", "BUCKET_BASE_FOLDER")
	bind("bucket.subdomainEndpoint", "BUCKET_SUBDOMAIN_ENDPOINT")

	// Warehouse
	bind("warehouse.enabled", "WAREHOUSE_ENABLED")
	bind("warehouse.project_id", "WAREHOUSE_PROJECT_ID")
	bind("warehouse.dataset", "WAREHOUSE_DATASET")
	bind("warehouse.credentials_json", "WAREHOUSE_CREDENTIALS_JSON")

	// Order backfill
	bind("order_backfill.base_url", "ORDER_BACKFILL_BASE_URL")
	bind("order_backfill.token", "ORDER_BACKFILL_TOKEN")
}
