package config

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config captures all tunable parameters for the dispatch and tracking
// processes. Values are loaded from environment variables with sane
// defaults so the binaries can run locally without excessive setup.
type Config struct {
	Database struct {
		Host     string
		Port     int
		User     string
		Password string
		Name     string
	}
	RabbitMQ struct {
		Host     string
		Port     int
		User     string
		Password string
	}
	Redis struct {
		Addr     string
		Password string
		GeoKey   string
	}
	Services struct {
		DispatchServicePort int
		TrackingServicePort int
	}
	JWT struct {
		SecretKey string
	}
	Google struct {
		MapsAPIKey string // empty disables reverse geocoding
	}

	// Pricing and dispatch policy. Prices are GNF.
	Policy struct {
		BaseFare           float64
		PerKMRate          float64
		MinutesPerKM       float64
		AvgSpeedKMH        float64
		BoardRadiusKM      float64
		BoardLimit         int
		ProximityThreshold time.Duration
		PositionStaleAfter time.Duration
	}
}

// Load reads configuration from the environment, applies defaults, and
// validates required fields.
func Load() (*Config, error) {
	cfg := defaults()
	var errs []error

	setStringFromEnv(&cfg.Database.Host, "DB_HOST")
	setIntFromEnv(&cfg.Database.Port, "DB_PORT", &errs)
	setStringFromEnv(&cfg.Database.User, "DB_USER")
	setStringFromEnv(&cfg.Database.Password, "DB_PASSWORD")
	setStringFromEnv(&cfg.Database.Name, "DB_NAME")

	setStringFromEnv(&cfg.RabbitMQ.Host, "RABBITMQ_HOST")
	setIntFromEnv(&cfg.RabbitMQ.Port, "RABBITMQ_PORT", &errs)
	setStringFromEnv(&cfg.RabbitMQ.User, "RABBITMQ_USER")
	setStringFromEnv(&cfg.RabbitMQ.Password, "RABBITMQ_PASSWORD")

	setStringFromEnv(&cfg.Redis.Addr, "REDIS_ADDR")
	cfg.Redis.Password = os.Getenv("REDIS_PASSWORD")
	setStringFromEnv(&cfg.Redis.GeoKey, "REDIS_GEO_KEY")

	setIntFromEnv(&cfg.Services.DispatchServicePort, "DISPATCH_SERVICE_PORT", &errs)
	setIntFromEnv(&cfg.Services.TrackingServicePort, "TRACKING_SERVICE_PORT", &errs)

	setStringFromEnv(&cfg.JWT.SecretKey, "JWT_SECRET")
	setStringFromEnv(&cfg.Google.MapsAPIKey, "GOOGLE_MAPS_API_KEY")

	setFloatFromEnv(&cfg.Policy.BaseFare, "POLICY_BASE_FARE", &errs)
	setFloatFromEnv(&cfg.Policy.PerKMRate, "POLICY_PER_KM_RATE", &errs)
	setFloatFromEnv(&cfg.Policy.MinutesPerKM, "POLICY_MINUTES_PER_KM", &errs)
	setFloatFromEnv(&cfg.Policy.AvgSpeedKMH, "POLICY_AVG_SPEED_KMH", &errs)
	setFloatFromEnv(&cfg.Policy.BoardRadiusKM, "POLICY_BOARD_RADIUS_KM", &errs)
	setIntFromEnv(&cfg.Policy.BoardLimit, "POLICY_BOARD_LIMIT", &errs)
	setDurationFromEnv(&cfg.Policy.ProximityThreshold, "POLICY_PROXIMITY_THRESHOLD", &errs)
	setDurationFromEnv(&cfg.Policy.PositionStaleAfter, "POLICY_POSITION_STALE_AFTER", &errs)

	if cfg.JWT.SecretKey == "" {
		cfg.JWT.SecretKey = randomSecret()
	}

	if err := cfg.validate(); err != nil {
		errs = append(errs, err)
	}
	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func defaults() *Config {
	var cfg Config

	cfg.Database.Host = "localhost"
	cfg.Database.Port = 5432
	cfg.Database.User = "postgres"
	cfg.Database.Password = "postgres"
	cfg.Database.Name = "dispatch"

	cfg.RabbitMQ.Host = "localhost"
	cfg.RabbitMQ.Port = 5672
	cfg.RabbitMQ.User = "guest"
	cfg.RabbitMQ.Password = "guest"

	cfg.Redis.Addr = "localhost:6379"
	cfg.Redis.GeoKey = "workers_geo"

	cfg.Services.DispatchServicePort = 3000
	cfg.Services.TrackingServicePort = 3001

	cfg.Policy.BaseFare = 5000
	cfg.Policy.PerKMRate = 2000
	cfg.Policy.MinutesPerKM = 2.5
	cfg.Policy.AvgSpeedKMH = 24
	cfg.Policy.BoardRadiusKM = 5
	cfg.Policy.BoardLimit = 20
	cfg.Policy.ProximityThreshold = 2 * time.Minute
	cfg.Policy.PositionStaleAfter = 10 * time.Minute

	return &cfg
}

// validate checks required fields and basic ranges.
func (c *Config) validate() error {
	var problems []string

	if c.Database.Port <= 0 || c.Database.Port > 65535 {
		problems = append(problems, "DB_PORT must be in 1..65535")
	}
	if c.Database.User == "" {
		problems = append(problems, "DB_USER is required")
	}
	if c.Database.Name == "" {
		problems = append(problems, "DB_NAME is required")
	}

	if c.RabbitMQ.Port <= 0 || c.RabbitMQ.Port > 65535 {
		problems = append(problems, "RABBITMQ_PORT must be in 1..65535")
	}
	if c.RabbitMQ.User == "" {
		problems = append(problems, "RABBITMQ_USER is required")
	}

	if c.Redis.Addr == "" {
		problems = append(problems, "REDIS_ADDR is required")
	}

	if c.Services.DispatchServicePort <= 0 || c.Services.DispatchServicePort > 65535 {
		problems = append(problems, "DISPATCH_SERVICE_PORT must be in 1..65535")
	}
	if c.Services.TrackingServicePort <= 0 || c.Services.TrackingServicePort > 65535 {
		problems = append(problems, "TRACKING_SERVICE_PORT must be in 1..65535")
	}

	if c.Policy.BaseFare < 0 || c.Policy.PerKMRate < 0 {
		problems = append(problems, "pricing rates cannot be negative")
	}
	if c.Policy.MinutesPerKM <= 0 {
		problems = append(problems, "POLICY_MINUTES_PER_KM must be > 0")
	}
	if c.Policy.AvgSpeedKMH <= 0 {
		problems = append(problems, "POLICY_AVG_SPEED_KMH must be > 0")
	}
	if c.Policy.BoardRadiusKM <= 0 {
		problems = append(problems, "POLICY_BOARD_RADIUS_KM must be > 0")
	}
	if c.Policy.BoardLimit <= 0 {
		problems = append(problems, "POLICY_BOARD_LIMIT must be > 0")
	}
	if c.Policy.ProximityThreshold <= 0 {
		problems = append(problems, "POLICY_PROXIMITY_THRESHOLD must be > 0")
	}
	if c.Policy.PositionStaleAfter <= 0 {
		problems = append(problems, "POLICY_POSITION_STALE_AFTER must be > 0")
	}

	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

func randomSecret() string {
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		key = []byte(fmt.Sprintf("%d", time.Now().UnixNano()))
	}
	return base64.StdEncoding.EncodeToString(key)
}

func setDurationFromEnv(target *time.Duration, key string, errs *[]error) {
	if v := os.Getenv(key); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
			return
		}
		*target = d
	}
}

func setFloatFromEnv(target *float64, key string, errs *[]error) {
	if v := os.Getenv(key); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
			return
		}
		*target = f
	}
}

func setIntFromEnv(target *int, key string, errs *[]error) {
	if v := os.Getenv(key); v != "" {
		i, err := strconv.Atoi(v)
		if err != nil {
			*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
			return
		}
		*target = i
	}
}

func setStringFromEnv(target *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*target = v
	}
}
