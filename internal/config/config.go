package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

// Durable backends.
const (
	BackendNone     = "none"
	BackendRedis    = "redis"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
)

var ErrUnknownBackend = errors.New("unknown durable backend")

type Config struct {
	ListenPort      string        // ex: ":8080"
	ShutdownTimeout time.Duration // ex: 5s

	LogLevel  string // "debug" | "info" | "warn" | "error"
	PrettyLog bool   // true => zap dev (color), false => zap prod (JSON)

	// Ingest
	ManifestFile  string        // path to the sources manifest (yaml)
	FetchTimeout  time.Duration // per-document HTTP timeout
	UserAgent     string        // sent on every guide fetch
	UntitledLabel string        // title of programmes without one
	ExternalLabel string        // title of placeholders for externally guided channels
	Timezone      string        // wall clock of "# ch: title (HH:MM-HH:MM)" comments, "Local" by default

	// Matching
	MinSimilarity float64 // fuzzy acceptance threshold, 0..1
	CountryAttr   string  // playlist attribute compared with the guide channel country

	// Store
	CacheTTL       time.Duration // lifetime of a channel's programme list
	PruneInterval  time.Duration // janitor period, 0 disables
	DurableBackend string        // none | redis | sqlite | postgres
	SQLitePath     string
	PostgresDSN    string

	// Redis
	RedisAddr             string        // ex: "localhost:6379"
	RedisUser             string        // optional
	RedisPassword         string        // optional
	RedisPasswordRequired bool          // true => require password, false => allow empty password
	RedisDB               int           // Redis DB number
	RedisKeyTTL           time.Duration // expiry of durable keys
	RedisDT               time.Duration // Redis dial timeout (ex: 5s)
	RedisRT               time.Duration // Redis read timeout (ex: 3s)
	RedisWT               time.Duration // Redis write timeout (ex: 3s)
	RedisMaxWait          time.Duration // max wait between retries (ex: 10s)
	RedisPingTimeout      time.Duration // timeout for each ping attempt (ex: 5s)
	RedisPoolSize         int           // Redis connection pool size
	RedisConnectTimeout   time.Duration // Total time to retry connecting (ex: 30s)
	RedisRetryInterval    time.Duration // Initial wait between retries (ex: 2s, grows exponentially)
	RedisWarnThreshold    int           // warn after this many attempts

	// Access restrictions
	AllowedCIDRS      []string // optional, restrict /reload and /infra to these networks
	TrustProxy        bool     // true => trust X-Forwarded-For headers (e.g. cloudflared)
	MatchBurst        int      // POST /api/match token bucket size
	MatchRefillPerMin int      // POST /api/match tokens added per minute
}

func Load() *Config {
	cfg := &Config{
		// Server settings
		ListenPort:      getenv("GUIDE_LISTEN_PORT", ":8080"),
		ShutdownTimeout: mustDuration("GUIDE_SHUTDOWN_TIMEOUT", 5*time.Second),

		// Logging
		LogLevel:  getenv("GUIDE_LOG_LEVEL", "info"),
		PrettyLog: mustBool("GUIDE_PRETTY_LOG", true),

		// Ingest
		ManifestFile:  requireEnv("GUIDE_MANIFEST_FILE"),
		FetchTimeout:  mustDuration("GUIDE_FETCH_TIMEOUT", 60*time.Second),
		UserAgent:     getenv("GUIDE_USER_AGENT", ""),
		UntitledLabel: getenv("GUIDE_UNTITLED_LABEL", "Untitled"),
		ExternalLabel: getenv("GUIDE_EXTERNAL_LABEL", "Guide available externally"),
		Timezone:      getenv("GUIDE_TIMEZONE", "Local"),

		// Matching
		MinSimilarity: mustFloat("GUIDE_MIN_SIMILARITY", 0.6),
		CountryAttr:   getenv("GUIDE_COUNTRY_ATTR", "tvg-country"),

		// Store
		CacheTTL:       mustDuration("GUIDE_CACHE_TTL", 120*time.Minute),
		PruneInterval:  mustDuration("GUIDE_PRUNE_INTERVAL", 15*time.Minute),
		DurableBackend: strings.ToLower(getenv("GUIDE_DURABLE_BACKEND", BackendNone)),
		SQLitePath:     getenv("GUIDE_SQLITE_PATH", "/data/guide.db"),
		PostgresDSN:    getenv("GUIDE_POSTGRES_DSN", ""),

		// Redis settings
		RedisAddr:             getenv("GUIDE_REDIS_ADDR", "localhost:6379"),
		RedisUser:             getenv("GUIDE_REDIS_USERNAME", "default"),
		RedisPasswordRequired: mustBool("GUIDE_REDIS_PASSWORD_REQUIRED", false),
		RedisPassword:         getenv("GUIDE_REDIS_PASSWORD", ""),
		RedisDB:               getenvInt("GUIDE_REDIS_DB", 0),
		RedisKeyTTL:           mustDuration("GUIDE_REDIS_KEY_TTL", 48*time.Hour),
		RedisDT:               mustDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
		RedisRT:               mustDuration("REDIS_READ_TIMEOUT", 3*time.Second),
		RedisWT:               mustDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		RedisMaxWait:          mustDuration("REDIS_MAX_WAIT", 10*time.Second),
		RedisPingTimeout:      mustDuration("REDIS_PING_TIMEOUT", 5*time.Second),
		RedisPoolSize:         getenvInt("REDIS_POOL_SIZE", 10),
		RedisConnectTimeout:   mustDuration("REDIS_CONNECT_TIMEOUT", 30*time.Second),
		RedisRetryInterval:    mustDuration("REDIS_RETRY_INTERVAL", 2*time.Second),
		RedisWarnThreshold:    getenvInt("REDIS_WARN_THRESHOLD", 3),

		// Access restrictions
		AllowedCIDRS:      splitAndTrim(getenv("GUIDE_ALLOWED_CIDRS", "")),
		TrustProxy:        mustBool("GUIDE_TRUST_PROXY", true),
		MatchBurst:        getenvInt("GUIDE_MATCH_BURST", 10),
		MatchRefillPerMin: getenvInt("GUIDE_MATCH_REFILL_PER_MIN", 30),
	}

	if err := cfg.Validate(); err != nil {
		panic(fmt.Sprintf("❌ FATAL: %v", err))
	}

	// Log config only in debug mode with redacted sensitive fields
	if cfg.LogLevel == "debug" {
		log.Printf("[DEBUG] cfg: %+v\n", cfg.Redacted())
	}

	return cfg
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	var errs []error

	switch c.DurableBackend {
	case BackendNone, BackendRedis, BackendSQLite:
	case BackendPostgres:
		if c.PostgresDSN == "" {
			errs = append(errs, errors.New("GUIDE_POSTGRES_DSN is required when GUIDE_DURABLE_BACKEND=postgres"))
		}
	default:
		errs = append(errs, fmt.Errorf("%w: %q", ErrUnknownBackend, c.DurableBackend))
	}

	if c.DurableBackend == BackendRedis && c.RedisPasswordRequired && c.RedisPassword == "" {
		errs = append(errs, errors.New("GUIDE_REDIS_PASSWORD is required when GUIDE_REDIS_PASSWORD_REQUIRED=true"))
	}
	if c.MinSimilarity < 0 || c.MinSimilarity > 1 {
		errs = append(errs, fmt.Errorf("GUIDE_MIN_SIMILARITY must be within [0,1], got %v", c.MinSimilarity))
	}
	if c.CacheTTL <= 0 {
		errs = append(errs, fmt.Errorf("GUIDE_CACHE_TTL must be > 0, got %v", c.CacheTTL))
	}

	return errors.Join(errs...)
}

// Redacted returns a copy safe to print.
func (c *Config) Redacted() Config {
	cp := *c
	if cp.RedisPassword != "" {
		cp.RedisPassword = "***REDACTED***"
	}
	if cp.RedisUser != "" {
		cp.RedisUser = "***REDACTED***"
	}
	if cp.PostgresDSN != "" {
		cp.PostgresDSN = "***REDACTED***"
	}
	return cp
}

// helpers
func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func requireEnv(key string) string {
	v := os.Getenv(key)
	if v == "" {
		panic(fmt.Sprintf("❌ FATAL: Required environment variable %s is not set", key))
	}
	return v
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func mustBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func mustDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func mustFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func splitAndTrim(s string) []string {
	if s == "" {
		return nil
	}
	raw := strings.Split(s, ",")
	parts := make([]string, 0, len(raw))
	for _, part := range raw {
		trimmed := strings.TrimSpace(part)
		// Remove surrounding quotes if present
		trimmed = strings.Trim(trimmed, `"'`)
		if trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return parts
}
