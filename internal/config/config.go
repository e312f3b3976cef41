package config // package config loads application configuration from environment variables

import (
	"log"     // log is used to report configuration errors and halt execution
	"os"      // os provides access to environment variables

	"github.com/joho/godotenv"
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable.  Per-concern settings (Redis, catalog cache,
// slot polling, broker, edit throttle) have their own loaders with defaults.
type Config struct {
	Env          string      // application environment (e.g. "dev", "prod")
	Port         string      // HTTP port to listen on
	LogLevel     string      // logrus level name
	JWTSecret    string      // secret used to verify staff JWTs
	AccessTTLMin int         // access token time‑to‑live in minutes
	BookingStore string      // "sql" or "mongo"
	DB           DBConfig    // SQL catalog/booking database
	Mongo        MongoConfig // booking store when BookingStore is "mongo"
}

// DBConfig describes the SQL database connection.
type DBConfig struct {
	Driver  string // "mysql" or "postgres"
	User    string
	Pass    string
	Host    string
	Port    string
	Name    string
	SSLMode string // postgres only
}

// MongoConfig describes the MongoDB booking store.
type MongoConfig struct {
	URI      string
	Database string
}

// Load reads an optional .env file and then the environment, returning a
// Config.  Required variables are enforced by must() and missing values
// cause the program to exit with a fatal log message.
func Load() Config {
	// .env is optional; real environment variables win over it
	_ = godotenv.Load()

	cfg := Config{
		Env:          must("APP_ENV"),                     // environment (dev/test/prod)
		Port:         must("APP_PORT"),                    // port to bind the HTTP server
		LogLevel:     getenv("LOG_LEVEL", "info"),         // logrus level
		JWTSecret:    must("JWT_SECRET"),                  // secret used for verifying JWTs
		AccessTTLMin: envInt("ACCESS_TOKEN_TTL_MIN", 480), // TTL for issued staff tokens
		BookingStore: getenv("BOOKING_STORE", "sql"),      // where bookings live
		DB: DBConfig{
			Driver:  getenv("DB_DRIVER", "mysql"),
			User:    must("DB_USER"),
			Pass:    os.Getenv("DB_PASS"), // empty allowed
			Host:    must("DB_HOST"),
			Port:    must("DB_PORT"),
			Name:    must("DB_NAME"),
			SSLMode: getenv("DB_SSLMODE", "disable"),
		},
	}
	if cfg.BookingStore == "mongo" {
		cfg.Mongo = MongoConfig{
			URI:      must("MONGO_URI"),
			Database: getenv("MONGO_DB", cfg.DB.Name),
		}
	}
	return cfg
}

// must retrieves the value of a required environment variable.  If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}
