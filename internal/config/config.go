package config

import (
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"

	"github.com/RMahshie/zsweep/pkg/models"
)

// Config holds all configuration for the application
type Config struct {
	Database DatabaseConfig
	Server   ServerConfig
	Storage  StorageConfig
	Device   DeviceConfig
	Output   OutputConfig
	Sweep    models.SweepConfig
	LogLevel string
}

// DatabaseConfig holds database configuration. An empty URL keeps sweeps in memory.
type DatabaseConfig struct {
	URL string
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port           string
	Env            string
	AllowedOrigins []string
}

// StorageConfig holds S3/MinIO configuration. An empty bucket disables uploads.
type StorageConfig struct {
	Backend         string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
	Endpoint        string
	UseSSL          bool
}

// DeviceConfig selects and tunes the analyzer
type DeviceConfig struct {
	Library         string
	Index           int
	Simulate        bool
	PollTimeout     time.Duration
	PollInterval    time.Duration
	ConfigureSettle time.Duration
}

// OutputConfig controls the result files
type OutputConfig struct {
	Dir     string
	Formats string
	Header  bool
	Plot    bool
}

// SetDefaults registers the default values on v
func SetDefaults(v *viper.Viper) {
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("PORT", "8080")
	v.SetDefault("ENVIRONMENT", "dev")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("ALLOWED_ORIGINS", "http://localhost:8080,http://localhost:5173")

	v.SetDefault("STORAGE_BACKEND", "s3")
	v.SetDefault("AWS_REGION", "us-east-1")
	v.SetDefault("AWS_ACCESS_KEY_ID", "")
	v.SetDefault("AWS_SECRET_ACCESS_KEY", "")
	v.SetDefault("S3_BUCKET", "")
	v.SetDefault("S3_ENDPOINT", "")
	v.SetDefault("S3_USE_SSL", false)

	v.SetDefault("DWF_LIBRARY", "")
	v.SetDefault("DEVICE_INDEX", -1)
	v.SetDefault("SIMULATE", false)
	v.SetDefault("POLL_TIMEOUT", 10*time.Second)
	v.SetDefault("POLL_INTERVAL", time.Duration(0))
	v.SetDefault("CONFIGURE_SETTLE", time.Second)

	v.SetDefault("OUTPUT_DIR", "results")
	v.SetDefault("OUTPUT_FORMATS", "txt")
	v.SetDefault("OUTPUT_HEADER", false)
	v.SetDefault("OUTPUT_PLOT", false)

	d := models.DefaultSweepConfig()
	v.SetDefault("FREQ_START", d.FreqStart)
	v.SetDefault("FREQ_END", d.FreqEnd)
	v.SetDefault("FREQ_STEP", d.FreqStep)
	v.SetDefault("FREQ_POINTS", 101)
	v.SetDefault("SCALE", d.Scale)
	v.SetDefault("AMP_START", d.AmpStart)
	v.SetDefault("AMP_END", d.AmpEnd)
	v.SetDefault("AMP_STEP", d.AmpStep)
	v.SetDefault("REFERENCE", d.Reference)
	v.SetDefault("DECREASE", d.Decrease)
	v.SetDefault("MODE", d.Mode)
	v.SetDefault("SETTLE_MS", d.SettleMS)
}

// Load loads configuration from environment variables and .env files
func Load() (*Config, error) {
	return LoadFrom(viper.GetViper(), ".")
}

// LoadFrom loads configuration into v, reading .env.<environment> from dir
func LoadFrom(v *viper.Viper, dir string) (*Config, error) {
	SetDefaults(v)

	// Environment variables override .env file values
	v.AutomaticEnv()

	env := v.GetString("ENVIRONMENT")
	if env == "" {
		env = "dev"
	}

	v.SetConfigName(".env." + env)
	v.SetConfigType("env")
	v.AddConfigPath(dir)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var config Config
	config.Database.URL = v.GetString("DATABASE_URL")
	config.Server.Port = v.GetString("PORT")
	config.Server.Env = env
	config.Server.AllowedOrigins = splitList(v.GetString("ALLOWED_ORIGINS"))
	config.LogLevel = v.GetString("LOG_LEVEL")

	config.Storage.Backend = v.GetString("STORAGE_BACKEND")
	config.Storage.Region = v.GetString("AWS_REGION")
	config.Storage.AccessKeyID = v.GetString("AWS_ACCESS_KEY_ID")
	config.Storage.SecretAccessKey = v.GetString("AWS_SECRET_ACCESS_KEY")
	config.Storage.Bucket = v.GetString("S3_BUCKET")
	config.Storage.Endpoint = v.GetString("S3_ENDPOINT")
	config.Storage.UseSSL = v.GetBool("S3_USE_SSL")

	config.Device.Library = v.GetString("DWF_LIBRARY")
	config.Device.Index = v.GetInt("DEVICE_INDEX")
	config.Device.Simulate = v.GetBool("SIMULATE")
	config.Device.PollTimeout = v.GetDuration("POLL_TIMEOUT")
	config.Device.PollInterval = v.GetDuration("POLL_INTERVAL")
	config.Device.ConfigureSettle = v.GetDuration("CONFIGURE_SETTLE")

	config.Output.Dir = v.GetString("OUTPUT_DIR")
	config.Output.Formats = v.GetString("OUTPUT_FORMATS")
	config.Output.Header = v.GetBool("OUTPUT_HEADER")
	config.Output.Plot = v.GetBool("OUTPUT_PLOT")

	if err := v.Unmarshal(&config.Sweep); err != nil {
		return nil, err
	}

	log.Debug().
		Str("env", env).
		Strs("allowed_origins", config.Server.AllowedOrigins).
		Bool("simulate", config.Device.Simulate).
		Bool("database", config.Database.URL != "").
		Bool("storage", config.Storage.Bucket != "").
		Msg("Configuration loaded")

	return &config, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
