package config // package config loads application configuration from environment variables

import (
	"errors"
	"fmt"
	"log" // log is used to report configuration errors and halt execution
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable.
type Config struct {
	Env  string // application environment (e.g. "dev", "prod")
	Port string // HTTP port to listen on

	StoreDriver string // "mongo", "mysql" or "memory"
	MongoURI    string // MongoDB connection string (mongo driver)
	MongoDB     string // MongoDB database name (mongo driver)
	DBUser      string // MySQL username (mysql driver)
	DBPass      string // MySQL password, empty allowed
	DBHost      string // MySQL host
	DBPort      string // MySQL port
	DBName      string // MySQL database name

	AccessTokenSecret string // HMAC secret used to sign bearer credentials

	PaymentProvider   string // "stripe" or "midtrans"
	PaymentSecretKey  string // processor secret/server key
	PaymentCurrency   string // ISO currency code used for intents and records
	PaymentProduction bool   // midtrans production environment

	ReconcileSchedule string        // cron spec for the reconcile sweep, empty disables it
	ReconcileGrace    time.Duration // minimum age of a pending payment before the sweep retries it
	RabbitMQURL       string        // broker URL, empty disables events
}

// Load reads an optional .env file and then the environment.  Missing
// required variables cause the program to exit with a fatal log message.
func Load() Config {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("config: could not read .env: %v", err)
	}
	cfg, err := load(os.LookupEnv)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	return cfg
}

// load builds a Config from lookup.  Which variables are required depends
// on the selected store driver.
func load(lookup func(string) (string, bool)) (Config, error) {
	e := env{lookup: lookup}
	cfg := Config{
		Env:               e.str("APP_ENV", "dev"),
		Port:              e.must("APP_PORT"),
		StoreDriver:       strings.ToLower(e.str("STORE_DRIVER", "mongo")),
		AccessTokenSecret: e.must("ACCESS_TOKEN_SECRET"),
		PaymentProvider:   strings.ToLower(e.str("PAYMENT_PROVIDER", "stripe")),
		PaymentSecretKey:  e.must("PAYMENT_SECRET_KEY"),
		PaymentCurrency:   strings.ToLower(e.str("PAYMENT_CURRENCY", "usd")),
		PaymentProduction: e.boolean("PAYMENT_PRODUCTION", false),
		ReconcileSchedule: e.str("RECONCILE_SCHEDULE", "@every 5m"),
		ReconcileGrace:    e.duration("RECONCILE_GRACE", 2*time.Minute),
		RabbitMQURL:       e.str("RABBITMQ_URL", ""),
	}

	switch cfg.StoreDriver {
	case "mongo":
		cfg.MongoURI = e.must("MONGO_URI")
		cfg.MongoDB = e.str("MONGO_DB", "enrollment")
	case "mysql":
		cfg.DBUser = e.must("DB_USER")
		cfg.DBPass, _ = lookup("DB_PASS")
		cfg.DBHost = e.must("DB_HOST")
		cfg.DBPort = e.str("DB_PORT", "3306")
		cfg.DBName = e.must("DB_NAME")
	case "memory":
	default:
		e.fail(fmt.Errorf("invalid STORE_DRIVER %q", cfg.StoreDriver))
	}

	switch cfg.PaymentProvider {
	case "stripe", "midtrans":
	default:
		e.fail(fmt.Errorf("invalid PAYMENT_PROVIDER %q", cfg.PaymentProvider))
	}
	return cfg, errors.Join(e.errs...)
}

// env collects every problem instead of stopping at the first, so one run
// reports all missing variables.
type env struct {
	lookup func(string) (string, bool)
	errs   []error
}

func (e *env) fail(err error) { e.errs = append(e.errs, err) }

// must retrieves the value of a required environment variable.
func (e *env) must(key string) string {
	v, ok := e.lookup(key)
	if !ok || strings.TrimSpace(v) == "" {
		e.fail(fmt.Errorf("missing required env var: %s", key))
	}
	return v
}

func (e *env) str(key, def string) string {
	if v, ok := e.lookup(key); ok && v != "" {
		return v
	}
	return def
}

func (e *env) boolean(key string, def bool) bool {
	v, ok := e.lookup(key)
	if !ok || v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		e.fail(fmt.Errorf("invalid bool for %s: %q", key, v))
		return def
	}
	return b
}

func (e *env) duration(key string, def time.Duration) time.Duration {
	v, ok := e.lookup(key)
	if !ok || v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		e.fail(fmt.Errorf("invalid duration for %s: %q", key, v))
		return def
	}
	return d
}
