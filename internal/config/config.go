package config // package config loads application configuration from environment variables

import (
	"log"     // log is used to report configuration errors and halt execution
	"os"      // os provides access to environment variables
	"strconv" // strconv converts strings to other types
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable.  The types reflect how the values are used in
// the application: strings for identifiers and secrets, ints for durations and costs.
type Config struct {
	Env            string // application environment (e.g. "dev", "prod")
	Port           string // HTTP port to listen on
	DBUser         string // database username
	DBPass         string // database password (optional)
	DBHost         string // database host address
	DBPort         string // database port number
	DBName         string // database name
	JWTSecret      string // secret used to sign JWTs
	AccessTTLMin   int    // access token time‑to‑live in minutes
	RefreshTTLDays int    // refresh token time‑to‑live in days
	BcryptCost     int    // bcrypt cost for password hashing

	// GitHub OAuth application credentials.  These are optional: when empty
	// the OAuth login routes respond with an explanatory error instead of
	// redirecting to GitHub, but password auth keeps working.
	GitHubClientID     string // OAuth app client id
	GitHubClientSecret string // OAuth app client secret
	GitHubRedirectURI  string // callback URL registered with GitHub
	FrontendCallback   string // frontend URL receiving the token pair after OAuth

	WebhookBaseURL string // public base URL GitHub delivers webhooks to

	SyncIntervalMin  int // minutes between scheduler cycles
	SyncWorkers      int // max concurrent repository syncs within one cycle
	CleanupEveryMin  int // minutes between session cleanup sweeps
	SessionIdleDays  int // sessions inactive longer than this are deactivated
}

// Load reads configuration values from environment variables and returns a
// Config.  Required variables are enforced by must() and missing values
// cause the program to exit with a fatal log message.
func Load() Config {
	return Config{
		Env:            must("APP_ENV"),  // environment (dev/test/prod)
		Port:           must("APP_PORT"), // port to bind the HTTP server
		DBUser:         must("DB_USER"),
		DBPass:         os.Getenv("DB_PASS"), // empty allowed
		DBHost:         must("DB_HOST"),
		DBPort:         must("DB_PORT"),
		DBName:         must("DB_NAME"),
		JWTSecret:      must("JWT_SECRET"),
		AccessTTLMin:   mustInt("ACCESS_TOKEN_TTL_MIN"),
		RefreshTTLDays: mustInt("REFRESH_TOKEN_TTL_DAYS"),
		BcryptCost:     mustInt("BCRYPT_COST"),

		GitHubClientID:     os.Getenv("GITHUB_CLIENT_ID"),
		GitHubClientSecret: os.Getenv("GITHUB_CLIENT_SECRET"),
		GitHubRedirectURI:  os.Getenv("GITHUB_REDIRECT_URI"),
		FrontendCallback:   getenv("FRONTEND_CALLBACK_URL", "http://localhost:3000/auth/callback"),

		WebhookBaseURL: os.Getenv("WEBHOOK_BASE_URL"),

		SyncIntervalMin: atoiDefault("SYNC_INTERVAL_MIN", 15),
		SyncWorkers:     atoiDefault("SYNC_WORKERS", 4),
		CleanupEveryMin: atoiDefault("SESSION_CLEANUP_EVERY_MIN", 60),
		SessionIdleDays: atoiDefault("SESSION_IDLE_DAYS", 7),
	}
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

// mustInt is like must() but converts the retrieved string into an integer.
// If conversion fails, the application logs a fatal error and exits.
func mustInt(key string) int {
	s := must(key)
	n, err := strconv.Atoi(s)
	if err != nil {
		log.Fatalf("invalid int for %s: %q", key, s)
	}
	return n
}

// getenv reads an optional string variable, falling back to def when unset
// or empty.
func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// atoiDefault reads an optional integer variable, falling back to def when
// unset or unparsable.
func atoiDefault(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
