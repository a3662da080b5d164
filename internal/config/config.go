package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

const (
	BackendMemory   = "memory"
	BackendDynamoDB = "dynamodb"
	BackendPostgres = "postgres"
)

// PathEnv names the variable pointing at an optional YAML config file.
const PathEnv = "CONFIG_PATH"

type Config struct {
	Port    string `yaml:"port" env:"PORT"`
	Debug   bool   `yaml:"debug" env:"DEBUG"`
	Backend string `yaml:"backend" env:"STORE_BACKEND"`

	Region      string `yaml:"region" env:"AWS_REGION"`
	Table       string `yaml:"table" env:"DYNAMODB_TABLE"`
	DDBEndpoint string `yaml:"ddb_endpoint" env:"DYNAMODB_ENDPOINT"`

	DatabaseDSN string `yaml:"database_dsn" env:"DATABASE_DSN"`

	HomeURL        string   `yaml:"home_url" env:"HOME_URL"`
	SecretsDir     string   `yaml:"secrets_dir" env:"SECRETS_DIR"`
	AllowedOrigins []string `yaml:"allowed_origins" env:"ALLOWED_ORIGINS"`

	ReadTimeout     time.Duration `yaml:"read_timeout" env:"READ_TIMEOUT"`
	WriteTimeout    time.Duration `yaml:"write_timeout" env:"WRITE_TIMEOUT"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" env:"IDLE_TIMEOUT"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`
}

func defaults() *Config {
	return &Config{
		Port:            "5000",
		Backend:         BackendMemory,
		Region:          "us-east-1",
		Table:           "slugger",
		ReadTimeout:     5 * time.Second,
		WriteTimeout:    10 * time.Second,
		IdleTimeout:     time.Minute,
		ShutdownTimeout: 30 * time.Second,
	}
}

// Load builds the configuration from defaults, the YAML file named by
// CONFIG_PATH, the environment and finally args, each layer overriding the
// previous one.
func Load(args []string) (*Config, error) {
	cfg := defaults()

	if path := os.Getenv(PathEnv); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment variables: %w", err)
	}

	fs := flag.NewFlagSet("slugger", flag.ContinueOnError)
	fs.StringVar(&cfg.Port, "port", cfg.Port, "port to listen on")
	fs.StringVar(&cfg.Region, "region", cfg.Region, "AWS region")
	fs.StringVar(&cfg.Table, "table", cfg.Table, "DynamoDB table name")
	fs.StringVar(&cfg.DDBEndpoint, "ddb-endpoint", cfg.DDBEndpoint, "DynamoDB endpoint URL")
	fs.BoolVar(&cfg.Debug, "debug", cfg.Debug, "Enable debug mode")
	fs.StringVar(&cfg.Backend, "backend", cfg.Backend, "storage backend: memory, dynamodb or postgres")
	fs.StringVar(&cfg.DatabaseDSN, "database-dsn", cfg.DatabaseDSN, "PostgreSQL connection string")
	fs.StringVar(&cfg.HomeURL, "home-url", cfg.HomeURL, "redirect target for /")
	fs.StringVar(&cfg.SecretsDir, "secrets-dir", cfg.SecretsDir, "directory holding secret files")

	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("failed to parse flags: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	// An empty file decodes to io.EOF and leaves the defaults in place.
	if err := yaml.NewDecoder(f).Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("failed to decode config file: %w", err)
	}

	return nil
}

func (c *Config) Validate() error {
	if c.Port == "" {
		return errors.New("port cannot be empty")
	}

	switch c.Backend {
	case BackendMemory, BackendDynamoDB:
	case BackendPostgres:
		if c.DatabaseDSN == "" {
			return errors.New("database dsn is required for the postgres backend")
		}
	default:
		return fmt.Errorf("unknown backend %q", c.Backend)
	}

	return nil
}

func (c *Config) Addr() string {
	return ":" + c.Port
}
