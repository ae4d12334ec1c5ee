package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"telephone-billing/internal/tariff"

	"github.com/joho/godotenv"
)

// Config holds all configuration required by the api and worker processes.
// Values come from env; a .env file in the working directory is loaded
// first if present and never overrides variables already set.
type Config struct {
	App    AppConfig
	DB     DBConfig
	Redis  RedisConfig
	Tariff tariff.RateSchedule
	Worker WorkerConfig
}

type AppConfig struct {
	Env         string
	Port        int
	MetricsPort int
}

type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string

	// Accepts: disable, require, verify-ca, verify-full
	SSLMode string
}

type RedisConfig struct {
	Host string
	Port int
}

type WorkerConfig struct {
	Concurrency int
	// RatePerSec caps stage runs per second; 0 means unlimited.
	RatePerSec float64
}

func Load() (Config, error) {
	_ = godotenv.Load()

	c := Config{}
	var parseErrs []error

	c.App.Env = strings.TrimSpace(os.Getenv("APP_ENV"))
	{
		n, err := mustInt("APP_PORT")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.App.Port = n
	}
	{
		n, err := optionalInt("METRICS_PORT")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.App.MetricsPort = n
	}

	c.DB.Host = strings.TrimSpace(os.Getenv("DB_HOST"))
	{
		n, err := mustInt("DB_PORT")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.DB.Port = n
	}
	c.DB.User = strings.TrimSpace(os.Getenv("DB_USER"))
	c.DB.Password = os.Getenv("DB_PASSWORD")
	c.DB.Name = strings.TrimSpace(os.Getenv("DB_NAME"))
	c.DB.SSLMode = strings.TrimSpace(os.Getenv("DB_SSLMODE"))

	c.Redis.Host = strings.TrimSpace(os.Getenv("REDIS_HOST"))
	{
		n, err := mustInt("REDIS_PORT")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.Redis.Port = n
	}

	c.Tariff = tariff.DefaultSchedule()
	if v := strings.TrimSpace(os.Getenv("TARIFF_STANDING_CHARGE")); v != "" {
		minor, err := ParseMinor(v)
		if err != nil {
			parseErrs = append(parseErrs, fmt.Errorf("TARIFF_STANDING_CHARGE: %w", err))
		}
		c.Tariff.StandingChargeMinor = minor
	}
	if v := strings.TrimSpace(os.Getenv("TARIFF_MINUTE_CHARGE")); v != "" {
		minor, err := ParseMinor(v)
		if err != nil {
			parseErrs = append(parseErrs, fmt.Errorf("TARIFF_MINUTE_CHARGE: %w", err))
		}
		c.Tariff.MinuteChargeMinor = minor
	}

	{
		n, err := optionalInt("WORKER_CONCURRENCY")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.Worker.Concurrency = n
	}
	if v := strings.TrimSpace(os.Getenv("WORKER_RATE_PER_SEC")); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			parseErrs = append(parseErrs, fmt.Errorf("WORKER_RATE_PER_SEC must be a number, got %q", v))
		}
		c.Worker.RatePerSec = f
	}

	if err := joinErrors(parseErrs); err != nil {
		return Config{}, err
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate checks the config and fills defaults in place.
func (c *Config) Validate() error {
	var errs []error

	if c.App.Env == "" {
		errs = append(errs, errors.New("APP_ENV is required"))
	} else if !isValidEnv(c.App.Env) {
		errs = append(errs, fmt.Errorf("APP_ENV must be one of local, dev, staging, production, got %q", c.App.Env))
	}
	if c.App.Port <= 0 || c.App.Port > 65535 {
		errs = append(errs, fmt.Errorf("APP_PORT must be a valid port, got %d", c.App.Port))
	}
	if c.App.MetricsPort == 0 {
		c.App.MetricsPort = 9090
	}
	if c.App.MetricsPort < 0 || c.App.MetricsPort > 65535 {
		errs = append(errs, fmt.Errorf("METRICS_PORT must be a valid port, got %d", c.App.MetricsPort))
	}

	if c.DB.Host == "" {
		errs = append(errs, errors.New("DB_HOST is required"))
	}
	if c.DB.Port <= 0 || c.DB.Port > 65535 {
		errs = append(errs, fmt.Errorf("DB_PORT must be a valid port, got %d", c.DB.Port))
	}
	if c.DB.User == "" {
		errs = append(errs, errors.New("DB_USER is required"))
	}
	if c.DB.Name == "" {
		errs = append(errs, errors.New("DB_NAME is required"))
	}
	if c.DB.SSLMode == "" {
		if c.IsProduction() {
			errs = append(errs, errors.New("DB_SSLMODE is required in production"))
		} else {
			c.DB.SSLMode = "disable"
		}
	}
	if c.DB.SSLMode != "" && !isValidSSLMode(c.DB.SSLMode) {
		errs = append(errs, fmt.Errorf("DB_SSLMODE must be one of disable, require, verify-ca, verify-full, got %q", c.DB.SSLMode))
	}

	if c.Redis.Host == "" {
		errs = append(errs, errors.New("REDIS_HOST is required"))
	}
	if c.Redis.Port <= 0 || c.Redis.Port > 65535 {
		errs = append(errs, fmt.Errorf("REDIS_PORT must be a valid port, got %d", c.Redis.Port))
	}

	if err := c.Tariff.Validate(); err != nil {
		errs = append(errs, err)
	}

	if c.Worker.Concurrency == 0 {
		c.Worker.Concurrency = 4
	}
	if c.Worker.Concurrency < 0 {
		errs = append(errs, fmt.Errorf("WORKER_CONCURRENCY must be > 0, got %d", c.Worker.Concurrency))
	}
	if c.Worker.RatePerSec < 0 {
		errs = append(errs, fmt.Errorf("WORKER_RATE_PER_SEC must be >= 0, got %v", c.Worker.RatePerSec))
	}

	return joinErrors(errs)
}

func (c Config) IsProduction() bool {
	return c.App.Env == "production"
}

func (c Config) HTTPAddr() string {
	return fmt.Sprintf(":%d", c.App.Port)
}

func (c Config) MetricsAddr() string {
	return fmt.Sprintf(":%d", c.App.MetricsPort)
}

func (c Config) PostgresDSN() string {
	// Avoid logging this string; it contains secrets.
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.DB.Host,
		c.DB.Port,
		c.DB.User,
		c.DB.Password,
		c.DB.Name,
		c.DB.SSLMode,
	)
}

func (c Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}

// ParseMinor converts a decimal amount with up to two fractional digits
// ("0.36", "1", "0,09") to minor units without going through floats.
func ParseMinor(v string) (int64, error) {
	v = strings.ReplaceAll(strings.TrimSpace(v), ",", ".")
	whole, frac, hasFrac := strings.Cut(v, ".")
	if whole == "" || strings.HasPrefix(whole, "-") || strings.HasPrefix(whole, "+") {
		return 0, fmt.Errorf("invalid amount %q", v)
	}
	if hasFrac && (len(frac) == 0 || len(frac) > 2) {
		return 0, fmt.Errorf("invalid amount %q: at most 2 decimal places", v)
	}
	for len(frac) < 2 {
		frac += "0"
	}
	w, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q", v)
	}
	f, err := strconv.ParseInt(frac, 10, 64)
	if err != nil || strings.HasPrefix(frac, "-") || strings.HasPrefix(frac, "+") {
		return 0, fmt.Errorf("invalid amount %q", v)
	}
	return w*100 + f, nil
}

func mustInt(key string) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0, fmt.Errorf("%s is required", key)
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer, got %q", key, v)
	}
	return n, nil
}

func optionalInt(key string) (int, error) {
	if strings.TrimSpace(os.Getenv(key)) == "" {
		return 0, nil
	}
	return mustInt(key)
}

func appendParseErr(errs []error, n int, err error) (int, []error) {
	if err != nil {
		errs = append(errs, err)
	}
	return n, errs
}

func isValidEnv(v string) bool {
	switch v {
	case "local", "dev", "staging", "production":
		return true
	default:
		return false
	}
}

func isValidSSLMode(v string) bool {
	switch v {
	case "disable", "require", "verify-ca", "verify-full":
		return true
	default:
		return false
	}
}

func joinErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	if len(errs) == 1 {
		return errs[0]
	}
	var b strings.Builder
	b.WriteString("config errors:\n")
	for _, e := range errs {
		b.WriteString("- ")
		b.WriteString(e.Error())
		b.WriteString("\n")
	}
	return errors.New(strings.TrimSpace(b.String()))
}
