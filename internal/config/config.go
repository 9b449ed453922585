// Package config loads lookupd configuration from flags, environment
// variables, and optional .env files. Every key is readable as
// LOOKUPD_<KEY> with dashes mapped to underscores.
package config

import (
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/refdata-io/lookupd"
)

// Config is the full runtime configuration.
type Config struct {
	ListenAddr string
	LogLevel   string
	Dev        bool

	Storage            lookupd.BackendConfig
	StorageAccessKey   string
	StorageSecretKey   string
	StorageCredentials string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	AMQPURL      string
	AMQPExchange string
	Originator   string

	JWTSecret string
	AuthOff   bool

	RequestTimeout time.Duration
}

// Init loads .env files and binds the LOOKUPD_ environment prefix. Call
// once before Load.
func Init() {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	viper.SetEnvPrefix("lookupd")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

// SetupFlags registers configuration flags on the root command and binds
// them into viper so environment variables and flags share key names.
func SetupFlags(cmd *cobra.Command) {
	f := cmd.PersistentFlags()

	f.String("listen", ":8080", "HTTP listen address")
	f.String("log-level", "info", "minimum log level (debug, info, warn, error)")
	f.Bool("dev", false, "development mode: console logging, auth optional")

	f.String("storage-type", "filesystem", "primary store backend (filesystem, s3, minio, gcs, postgres)")
	f.String("storage-bucket", "./data", "bucket name, or base directory for the filesystem backend")
	f.String("storage-region", "", "region for S3-compatible backends")
	f.String("storage-endpoint", "", "endpoint override for MinIO")
	f.String("storage-dsn", "", "connection string for the postgres backend")
	f.String("storage-access-key", "", "access key for MinIO")
	f.String("storage-secret-key", "", "secret key for MinIO")
	f.String("storage-credentials-file", "", "service account file for GCS")

	f.String("redis-addr", "localhost:6379", "Redis address for the search index")
	f.String("redis-password", "", "Redis password")
	f.Int("redis-db", 0, "Redis database number")

	f.String("amqp-url", "", "RabbitMQ URL for the event bus; empty disables events")
	f.String("amqp-exchange", "lookups.events", "event bus exchange name")
	f.String("originator", "lookupd", "originator name stamped on published events")

	f.String("jwt-secret", "", "HMAC secret for bearer token verification")
	f.Bool("auth-off", false, "disable authentication (development only)")

	f.Duration("request-timeout", 30*time.Second, "per-request timeout")

	_ = viper.BindPFlags(f)
}

// Load reads the bound configuration into a Config.
func Load() *Config {
	return &Config{
		ListenAddr: viper.GetString("listen"),
		LogLevel:   viper.GetString("log-level"),
		Dev:        viper.GetBool("dev"),
		Storage: lookupd.BackendConfig{
			Type:     viper.GetString("storage-type"),
			Bucket:   viper.GetString("storage-bucket"),
			Region:   viper.GetString("storage-region"),
			Endpoint: viper.GetString("storage-endpoint"),
			DSN:      viper.GetString("storage-dsn"),
		},
		StorageAccessKey:   viper.GetString("storage-access-key"),
		StorageSecretKey:   viper.GetString("storage-secret-key"),
		StorageCredentials: viper.GetString("storage-credentials-file"),

		RedisAddr:      viper.GetString("redis-addr"),
		RedisPassword:  viper.GetString("redis-password"),
		RedisDB:        viper.GetInt("redis-db"),
		AMQPURL:        viper.GetString("amqp-url"),
		AMQPExchange:   viper.GetString("amqp-exchange"),
		Originator:     viper.GetString("originator"),
		JWTSecret:      viper.GetString("jwt-secret"),
		AuthOff:        viper.GetBool("auth-off"),
		RequestTimeout: viper.GetDuration("request-timeout"),
	}
}

// Validate checks the configuration for fatal misconfiguration.
func (c *Config) Validate() error {
	if err := c.Storage.Validate(); err != nil {
		return err
	}
	if c.JWTSecret == "" && !c.AuthOff && !c.Dev {
		return lookupd.WithMessage(lookupd.ErrInvalidConfig, "jwt-secret is required unless auth-off or dev is set")
	}
	return nil
}
