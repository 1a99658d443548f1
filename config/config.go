package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration loaded from environment
// variables. Each component receives its own typed section at construction;
// nothing reads the environment after Load returns.
type Config struct {
	Postgres  PostgresConfig
	Browser   BrowserConfig
	Collector CollectorConfig
	Analyzer  AnalyzerConfig
	Cache     CacheConfig
	Scheduler SchedulerConfig
	Logging   LoggingConfig
}

// LoggingConfig drives log verbosity.
type LoggingConfig struct {
	Debug bool
}

// PostgresConfig describes the persistence collaborator connection.
type PostgresConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Database string
	SSLMode  string
}

// DSN returns the PostgreSQL connection string.
func (c PostgresConfig) DSN() string {
	return "host=" + c.Host +
		" port=" + c.Port +
		" user=" + c.User +
		" password=" + c.Password +
		" dbname=" + c.Database +
		" sslmode=" + c.SSLMode
}

// BrowserConfig drives the automation harness.
type BrowserConfig struct {
	Headless        bool
	UseProxies      bool
	ProxyListPath   string
	ChromeBin       string
	DisableImages   bool
	MaxSessions     int
	PageLoadTimeout time.Duration
	CaptchaBackoff  time.Duration
}

// CollectorConfig drives the incremental scroll/extract loop.
type CollectorConfig struct {
	MaxResults     int
	StallSteps     int
	ScrollDelayMin time.Duration
	ScrollDelayMax time.Duration
	// JobTimeout is the hard wall-clock bound on one collection job,
	// independent of the harness page-load timeout.
	JobTimeout time.Duration
}

// AnalyzerConfig drives the website analysis engine.
type AnalyzerConfig struct {
	RequestTimeout       time.Duration
	MaxContentBytes      int64
	CacheTTL             time.Duration
	HighQualityThreshold float64
	LoadTimeSamples      int
}

// CacheConfig drives the two-tier cache layer.
type CacheConfig struct {
	// PromoteTTL bounds how long a shared-tier hit lives in the local tier.
	PromoteTTL time.Duration
}

// SchedulerConfig drives job queues, retries and the optimization pass.
type SchedulerConfig struct {
	MaxRetries         int
	RetryDelay         time.Duration
	BatchSize          int
	BatchDelay         time.Duration
	CollectionWorkers  int
	AnalysisWorkers    int
	ReportingWorkers   int
	MaintenanceWorkers int
	// StaleAfter marks a keyword eligible for automatic rescheduling when
	// its last run is older than this.
	StaleAfter time.Duration
	Tick       time.Duration
}

// Load reads the .env file and returns a populated Config struct.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("[config] No .env file found, falling back to system env vars")
	}

	return &Config{
		Postgres: PostgresConfig{
			Host:     getEnv("POSTGRES_HOST", "localhost"),
			Port:     getEnv("POSTGRES_PORT", "5432"),
			User:     getEnv("POSTGRES_USER", "mapscout"),
			Password: getEnv("POSTGRES_PASSWORD", "mapscout123"),
			Database: getEnv("POSTGRES_DB", "mapscout_db"),
			SSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),
		},
		Browser: BrowserConfig{
			Headless:        getEnvBool("HEADLESS_BROWSER", true),
			UseProxies:      getEnvBool("USE_PROXIES", false),
			ProxyListPath:   getEnv("PROXY_LIST_PATH", "proxies.txt"),
			ChromeBin:       getEnv("CHROME_BIN", ""),
			DisableImages:   getEnvBool("DISABLE_IMAGES", true),
			MaxSessions:     getEnvInt("MAX_CONCURRENT_SESSIONS", 3),
			PageLoadTimeout: getEnvDuration("PAGE_LOAD_TIMEOUT_SEC", 60*time.Second),
			CaptchaBackoff:  getEnvDuration("CAPTCHA_BACKOFF_SEC", 30*time.Second),
		},
		Collector: CollectorConfig{
			MaxResults:     getEnvInt("MAX_RESULTS", 100),
			StallSteps:     getEnvInt("STALL_STEPS", 3),
			ScrollDelayMin: getEnvDuration("SCROLL_DELAY_MIN_SEC", 2*time.Second),
			ScrollDelayMax: getEnvDuration("SCROLL_DELAY_MAX_SEC", 4*time.Second),
			JobTimeout:     getEnvDuration("COLLECTION_JOB_TIMEOUT_SEC", 600*time.Second),
		},
		Analyzer: AnalyzerConfig{
			RequestTimeout:       getEnvDuration("ANALYSIS_TIMEOUT_SEC", 15*time.Second),
			MaxContentBytes:      int64(getEnvInt("MAX_CONTENT_SIZE_MB", 5)) * 1024 * 1024,
			CacheTTL:             getEnvDuration("ANALYSIS_CACHE_SEC", 3600*time.Second),
			HighQualityThreshold: float64(getEnvInt("HIGH_QUALITY_THRESHOLD", 80)),
			LoadTimeSamples:      getEnvInt("LOAD_TIME_SAMPLES", 3),
		},
		Cache: CacheConfig{
			PromoteTTL: getEnvDuration("CACHE_PROMOTE_TTL_SEC", 300*time.Second),
		},
		Scheduler: SchedulerConfig{
			MaxRetries:         getEnvInt("RETRY_ATTEMPTS", 3),
			RetryDelay:         getEnvDuration("RETRY_DELAY_SEC", 60*time.Second),
			BatchSize:          getEnvInt("BATCH_SIZE", 5),
			BatchDelay:         getEnvDuration("BATCH_DELAY_MIN", 30*time.Minute),
			CollectionWorkers:  getEnvInt("COLLECTION_WORKERS", 2),
			AnalysisWorkers:    getEnvInt("ANALYSIS_WORKERS", 8),
			ReportingWorkers:   getEnvInt("REPORTING_WORKERS", 2),
			MaintenanceWorkers: getEnvInt("MAINTENANCE_WORKERS", 1),
			StaleAfter:         getEnvDuration("STALE_AFTER_SEC", 7*24*time.Hour),
			Tick:               getEnvDuration("SCHEDULER_TICK_SEC", 60*time.Second),
		},
		Logging: LoggingConfig{
			Debug: getEnvBool("DEBUG_LOG", false),
		},
	}
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		n, err := strconv.Atoi(val)
		if err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		b, err := strconv.ParseBool(val)
		if err == nil {
			return b
		}
	}
	return fallback
}

// getEnvDuration reads a duration expressed in the unit named by the key
// suffix (SEC or MIN).
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	n, err := strconv.Atoi(val)
	if err != nil || n < 0 {
		return fallback
	}
	unit := time.Second
	if len(key) > 4 && key[len(key)-4:] == "_MIN" {
		unit = time.Minute
	}
	return time.Duration(n) * unit
}
