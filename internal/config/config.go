package config // package config loads application configuration from environment variables

import (
	"log"     // log is used to report configuration errors and halt execution
	"os"      // os provides access to environment variables
	"time"
)

// Store drivers accepted by STORE_DRIVER.
const (
	DriverMySQL  = "mysql"
	DriverMemory = "memory"
)

// Config holds all runtime configuration values. Each field corresponds to
// an environment variable.
type Config struct {
	Env               string        // application environment (e.g. "dev", "prod")
	Port              string        // HTTP port to listen on
	StoreDriver       string        // mysql or memory
	DBUser            string        // database username
	DBPass            string        // database password (optional)
	DBHost            string        // database host address
	DBPort            string        // database port number
	DBName            string        // database name
	DBMaxOpenConns    int           // pool size cap
	DBMaxIdleConns    int           // idle connections kept open
	DBConnMaxLifetime time.Duration // recycle connections older than this
	JWTSecret         string        // secret used to verify actor tokens
	GuestTTL          time.Duration // lifetime of a guest token minted from a table QR
	RabbitURL         string        // broker for ledger events; empty logs events instead

	Ordering OrderingConfig
	Realtime RealtimeConfig
}

// OrderingConfig carries restaurant capabilities the order lifecycle needs.
type OrderingConfig struct {
	KitchenEnabled bool // confirmed items go through preparing/ready when true
}

// RealtimeConfig tunes the sync coordinator.
type RealtimeConfig struct {
	Debounce  time.Duration // quiet period before a snapshot refresh
	DedupeTTL time.Duration // window in which a repeated notification is dropped
	Prefix    string        // redis key/channel prefix
}

// Load reads configuration values from environment variables and returns a
// Config. Required variables are enforced by must() and missing values
// cause the program to exit with a fatal log message. Database settings
// are only required for the mysql driver.
func Load() Config {
	cfg := Config{
		Env:         must("APP_ENV"),
		Port:        must("APP_PORT"),
		StoreDriver: envStr("STORE_DRIVER", DriverMySQL),
		JWTSecret:   must("JWT_SECRET"),
		GuestTTL:    envDur("GUEST_TOKEN_TTL", 4*time.Hour),
		RabbitURL:   rabbitURL(),
		Ordering: OrderingConfig{
			KitchenEnabled: envBool("KITCHEN_ENABLED", true),
		},
		Realtime: RealtimeConfig{
			Debounce:  envDur("REALTIME_DEBOUNCE", 500*time.Millisecond),
			DedupeTTL: envDur("REALTIME_DEDUPE_TTL", 2*time.Second),
			Prefix:    envStr("REALTIME_PREFIX", "menu3d"),
		},
	}
	switch cfg.StoreDriver {
	case DriverMySQL:
		cfg.DBUser = must("DB_USER")
		cfg.DBPass = os.Getenv("DB_PASS") // empty allowed
		cfg.DBHost = must("DB_HOST")
		cfg.DBPort = must("DB_PORT")
		cfg.DBName = must("DB_NAME")
		cfg.DBMaxOpenConns = envInt("DB_MAX_OPEN_CONNS", 25)
		cfg.DBMaxIdleConns = envInt("DB_MAX_IDLE_CONNS", 25)
		cfg.DBConnMaxLifetime = envDur("DB_CONN_MAX_LIFETIME", 30*time.Minute)
	case DriverMemory:
	default:
		log.Fatalf("invalid STORE_DRIVER: %q", cfg.StoreDriver)
	}
	return cfg
}

func rabbitURL() string {
	if v := os.Getenv("RABBITMQ_URL"); v != "" {
		return v
	}
	return os.Getenv("AMQP_URL")
}

// must retrieves the value of a required environment variable. If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}
