// Package config loads the generator settings from a YAML file and the
// connection secrets from environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultDBUpdateIntervalMinutes = 10
	defaultWorkers                 = 10
	defaultPacingMinMs             = 100
	defaultPacingMaxMs             = 500
	defaultDBDriver                = DriverPGX
)

// Supported database drivers.
const (
	DriverPGX  = "pgx"
	DriverSQLX = "sqlx"
)

var (
	// ErrMissingEndpoint is returned when tinybird_api_endpoint is not set.
	ErrMissingEndpoint = errors.New("tinybird_api_endpoint must be set")

	// ErrInvalidCustomerCount is returned when num_customers is not positive.
	ErrInvalidCustomerCount = errors.New("num_customers must be positive")

	// ErrInvalidDuplicatePercentage is returned when duplicate_data_percentage is outside 0..100.
	ErrInvalidDuplicatePercentage = errors.New("duplicate_data_percentage must be between 0 and 100")

	// ErrMissingWeights is returned when event_type_weights is empty.
	ErrMissingWeights = errors.New("event_type_weights must not be empty")

	// ErrInvalidPacing is returned when the pacing window is invalid.
	ErrInvalidPacing = errors.New("pacing_min_ms must be positive and not exceed pacing_max_ms")

	// ErrUnknownDriver is returned for an unsupported db_driver value.
	ErrUnknownDriver = errors.New("db_driver must be pgx or sqlx")

	// ErrMissingToken is returned when TINYBIRD_TARGET_TOKEN is not set.
	ErrMissingToken = errors.New("TINYBIRD_TARGET_TOKEN must be set")

	// ErrMissingPostgresSecret is returned when a Postgres connection variable is not set.
	ErrMissingPostgresSecret = errors.New("postgres connection environment variables must be set")
)

// Config holds all generator settings from the YAML file plus the secrets
// loaded from the environment.
type Config struct {
	TinybirdAPIEndpoint     string             `yaml:"tinybird_api_endpoint"`
	DBUpdateIntervalMinutes int                `yaml:"db_update_interval_minutes"`
	NumCustomers            int                `yaml:"num_customers"`
	DuplicateDataPercentage int                `yaml:"duplicate_data_percentage"`
	EventTypeWeights        map[string]float64 `yaml:"event_type_weights"`
	Workers                 int                `yaml:"workers"`
	PacingMinMs             int                `yaml:"pacing_min_ms"`
	PacingMaxMs             int                `yaml:"pacing_max_ms"`
	MaxEventsPerSecond      float64            `yaml:"max_events_per_second"`
	SeedProducts            int                `yaml:"seed_products"`
	DBDriver                string             `yaml:"db_driver"`
	ConnectToPostgres       *bool              `yaml:"connect_to_postgres"`

	Secrets Secrets `yaml:"-"`
}

// Secrets holds the environment-supplied tokens and connection parameters.
type Secrets struct {
	TinybirdToken          string
	TinybirdSecondaryToken string
	PostgresHost           string
	PostgresPort           int
	PostgresName           string
	PostgresUser           string
	PostgresPassword       string
}

// Load reads the YAML settings file, applies defaults, loads secrets from the
// environment and validates everything. Any validation failure is fatal at
// startup.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("reading settings file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parsing settings file: %w", err)
	}

	cfg.applyDefaults()
	cfg.Secrets = loadSecrets()

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.DBUpdateIntervalMinutes == 0 {
		c.DBUpdateIntervalMinutes = defaultDBUpdateIntervalMinutes
	}
	if c.Workers == 0 {
		c.Workers = defaultWorkers
	}
	if c.PacingMinMs == 0 {
		c.PacingMinMs = defaultPacingMinMs
	}
	if c.PacingMaxMs == 0 {
		c.PacingMaxMs = defaultPacingMaxMs
	}
	if c.DBDriver == "" {
		c.DBDriver = defaultDBDriver
	}
}

func loadSecrets() Secrets {
	port, _ := strconv.Atoi(os.Getenv("POSTGRES_DATABASE_PORT"))

	return Secrets{
		TinybirdToken:          os.Getenv("TINYBIRD_TARGET_TOKEN"),
		TinybirdSecondaryToken: os.Getenv("TINYBIRD_TARGET_TOKEN_2"),
		PostgresHost:           os.Getenv("POSTGRES_DATABASE_HOST"),
		PostgresPort:           port,
		PostgresName:           os.Getenv("POSTGRES_DATABASE_NAME"),
		PostgresUser:           os.Getenv("POSTGRES_DATABASE_USER"),
		PostgresPassword:       os.Getenv("POSTGRES_DATABASE_PASSWORD"),
	}
}

func (c Config) validate() error {
	if c.TinybirdAPIEndpoint == "" {
		return ErrMissingEndpoint
	}
	if c.NumCustomers <= 0 {
		return ErrInvalidCustomerCount
	}
	if c.DuplicateDataPercentage < 0 || c.DuplicateDataPercentage > 100 {
		return ErrInvalidDuplicatePercentage
	}
	if len(c.EventTypeWeights) == 0 {
		return ErrMissingWeights
	}
	if c.PacingMinMs <= 0 || c.PacingMinMs > c.PacingMaxMs {
		return ErrInvalidPacing
	}
	if c.DBDriver != DriverPGX && c.DBDriver != DriverSQLX {
		return ErrUnknownDriver
	}
	if c.Secrets.TinybirdToken == "" {
		return ErrMissingToken
	}
	if c.Secrets.PostgresHost == "" || c.Secrets.PostgresPort == 0 ||
		c.Secrets.PostgresName == "" || c.Secrets.PostgresUser == "" ||
		c.Secrets.PostgresPassword == "" {
		return ErrMissingPostgresSecret
	}

	return nil
}

// DBUpdateInterval returns the aggregator tick period.
func (c Config) DBUpdateInterval() time.Duration {
	return time.Duration(c.DBUpdateIntervalMinutes) * time.Minute
}

// PacingMin returns the lower bound of the randomized cycle delay.
func (c Config) PacingMin() time.Duration {
	return time.Duration(c.PacingMinMs) * time.Millisecond
}

// PacingMax returns the upper bound of the randomized cycle delay.
func (c Config) PacingMax() time.Duration {
	return time.Duration(c.PacingMaxMs) * time.Millisecond
}

// PersistTotals reports whether aggregate totals and stock counts are written
// back to Postgres, controlled by the connect_to_postgres option (default on).
// The catalog load is not affected; products always come from Postgres.
func (c Config) PersistTotals() bool {
	return c.ConnectToPostgres == nil || *c.ConnectToPostgres
}

// PostgresDSN renders the connection string for the configured database.
func (s Secrets) PostgresDSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		s.PostgresUser, s.PostgresPassword, s.PostgresHost, s.PostgresPort, s.PostgresName)
}
