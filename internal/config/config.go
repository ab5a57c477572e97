package config // package config loads application configuration from environment variables

import (
	"log"     // log is used to report configuration errors and halt execution
	"os"      // os provides access to environment variables
	"strconv" // strconv converts strings to other types
)

// Config holds all runtime configuration values. Each field
// corresponds to an environment variable. Checkout and receipt
// policy knobs (expiry day counts, check-in base URL) live here and
// are injected into the services explicitly; nothing reads them from
// ambient global state.
type Config struct {
	Env                    string // application environment (e.g. "dev", "prod")
	Port                   string // HTTP port to listen on
	DBUser                 string // database username
	DBPass                 string // database password (optional)
	DBHost                 string // database host address
	DBPort                 string // database port number
	DBName                 string // database name
	JWTSecret              string // secret used to sign JWTs
	AccessTTLMin           int    // access token time-to-live in minutes
	BcryptCost             int    // bcrypt cost for password hashing
	ExpiryDaysTransfer     int    // days until unpaid GBP tickets expire
	ExpiryDaysTransferEuro int    // days until unpaid EUR tickets expire
	CheckinBase            string // base URL prepended to check-in codes in QR payloads
	ReceiptBaseURL         string // base URL for resolving relative links in rendered receipts
	SessionTTLHours        int    // checkout session lifetime in Redis
}

// Load reads configuration values from environment variables and
// returns a Config. Required variables are enforced by must() and
// missing values cause the program to exit with a fatal log message.
func Load() Config {
	return Config{
		Env:                    must("APP_ENV"),
		Port:                   must("APP_PORT"),
		DBUser:                 must("DB_USER"),
		DBPass:                 os.Getenv("DB_PASS"), // empty allowed
		DBHost:                 must("DB_HOST"),
		DBPort:                 must("DB_PORT"),
		DBName:                 must("DB_NAME"),
		JWTSecret:              must("JWT_SECRET"),
		AccessTTLMin:           mustInt("ACCESS_TOKEN_TTL_MIN"),
		BcryptCost:             mustInt("BCRYPT_COST"),
		ExpiryDaysTransfer:     mustInt("EXPIRY_DAYS_TRANSFER"),
		ExpiryDaysTransferEuro: mustInt("EXPIRY_DAYS_TRANSFER_EURO"),
		CheckinBase:            must("CHECKIN_BASE"),
		ReceiptBaseURL:         must("RECEIPT_BASE_URL"),
		SessionTTLHours:        intOr("SESSION_TTL_HOURS", 24),
	}
}

// must retrieves the value of a required environment variable. If
// the variable is unset or empty, the application logs a fatal error
// and exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}

// mustInt is like must() but converts the retrieved string into an
// integer. If conversion fails, the application exits.
func mustInt(key string) int {
	s := must(key)
	n, err := strconv.Atoi(s)
	if err != nil {
		log.Fatalf("invalid int for %s: %q", key, s)
	}
	return n
}

// intOr reads an optional integer variable, falling back to the
// given default when unset or malformed.
func intOr(key string, def int) int {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}
