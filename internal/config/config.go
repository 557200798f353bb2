// Package config provides environment-aware configuration management for
// the trackfusion worker, following the teacher repository's loader shape:
// MARBLE_ENV-style environment selection, a per-environment .env file, and
// getEnv/getIntEnv/getBoolEnv helpers.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"

	tfruntime "github.com/twmsh/trackfusion/internal/runtime"
)

// Environment is the deployment environment.
type Environment = tfruntime.Environment

const (
	Development = tfruntime.Development
	Testing     = tfruntime.Testing
	Production  = tfruntime.Production
)

// Config holds all worker configuration.
type Config struct {
	Env Environment

	// HTTP
	ListenAddr string
	DashboardWSRoomPrefix string

	// Logging
	LogLevel  string
	LogFormat string
	LogOutput string

	// Database
	DatabaseDSN      string
	DBMaxConnections int
	DBIdleTimeout    time.Duration

	// Recognition / analysis back-ends
	RecognitionBaseURL string
	AnalysisBaseURL    string
	BackendTimeout     time.Duration

	// Image store
	ImageRoot string
	ImageURLPrefix string

	// Coalescer tuning
	FaceReadyDelay    time.Duration
	FaceClearDelay    time.Duration
	FaceCountMin      int
	FaceQualityMin    float64
	FaceFastMode      bool
	VehicleReadyDelay time.Duration
	VehicleClearDelay time.Duration
	VehicleFastMode   bool

	// Face search
	SearchWorkers int
	SearchBatch   int

	// Alarm policy
	WLAlarm bool // true=white-list mode, false=black-list mode

	// Dashboard
	DashboardWindowBatch int

	// Disk GC
	GCIntervalMinutes int
	GCAvailSizeMB     int64
	GCCleanFTBatch    int
	GCCleanCTBatch    int

	// Rate limiting
	RateLimitEnabled  bool
	RateLimitRequests float64
	RateLimitBurst    int

	// Bulk enrollment (cmd/bulkenroll)
	EnrollDir                string
	EnrollExtensions         []string
	EnrollFilenameRegex      string
	EnrollCaptureGroups      []string
	EnrollSizeThresholdBytes int64
	EnrollLibraryID          string
	EnrollDetectWorkers      int
	EnrollCreateWorkers      int
	EnrollCreateBatch        int
	EnrollSaveBatch          int
	EnrollTestMode           bool
}

// Load loads configuration based on the TRACKFUSION_ENV environment
// variable, falling back to a per-environment .env file the way the
// teacher's config loader does.
func Load() (*Config, error) {
	envStr := os.Getenv("TRACKFUSION_ENV")
	if envStr == "" {
		envStr = string(Development)
	}

	env, ok := tfruntime.ParseEnvironment(envStr)
	if !ok {
		return nil, fmt.Errorf("invalid TRACKFUSION_ENV: %s (must be development, testing, or production)", envStr)
	}

	configFile := filepath.Join("config", fmt.Sprintf("%s.env", env))
	if err := godotenv.Load(configFile); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			fmt.Printf("warning: could not load %s: %v\n", configFile, err)
		}
	}

	cfg := &Config{Env: env}
	if err := cfg.loadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}

func (c *Config) loadFromEnv() error {
	var err error

	c.ListenAddr = getEnv("LISTEN_ADDR", ":8080")
	c.DashboardWSRoomPrefix = getEnv("DASHBOARD_WS_ROOM_PREFIX", "dashboard")

	c.LogLevel = getEnv("LOG_LEVEL", "info")
	c.LogFormat = getEnv("LOG_FORMAT", "json")
	c.LogOutput = getEnv("LOG_OUTPUT", "stdout")

	c.DatabaseDSN = getEnv("DATABASE_DSN", "postgres://localhost:5432/trackfusion?sslmode=disable")
	c.DBMaxConnections = getIntEnv("DB_MAX_CONNECTIONS", 20)
	c.DBIdleTimeout, err = time.ParseDuration(getEnv("DB_IDLE_TIMEOUT", "5m"))
	if err != nil {
		return fmt.Errorf("invalid DB_IDLE_TIMEOUT: %w", err)
	}

	c.RecognitionBaseURL = getEnv("RECOGNITION_BASE_URL", "http://127.0.0.1:9001")
	c.AnalysisBaseURL = getEnv("ANALYSIS_BASE_URL", "http://127.0.0.1:9002")
	c.BackendTimeout, err = time.ParseDuration(getEnv("BACKEND_TIMEOUT", "5s"))
	if err != nil {
		return fmt.Errorf("invalid BACKEND_TIMEOUT: %w", err)
	}

	c.ImageRoot = getEnv("IMAGE_ROOT", "./data/images")
	c.ImageURLPrefix = getEnv("IMAGE_URL_PREFIX", "/getsingleimg")

	c.FaceReadyDelay, err = time.ParseDuration(getEnv("FACE_READY_DELAY", "3s"))
	if err != nil {
		return fmt.Errorf("invalid FACE_READY_DELAY: %w", err)
	}
	c.FaceClearDelay, err = time.ParseDuration(getEnv("FACE_CLEAR_DELAY", "30s"))
	if err != nil {
		return fmt.Errorf("invalid FACE_CLEAR_DELAY: %w", err)
	}
	c.FaceCountMin = getIntEnv("FACE_COUNT_MIN", 1)
	c.FaceQualityMin = getFloatEnv("FACE_QUALITY_MIN", 0.6)
	c.FaceFastMode = getBoolEnv("FACE_FAST_MODE", false)

	c.VehicleReadyDelay, err = time.ParseDuration(getEnv("VEHICLE_READY_DELAY", "3s"))
	if err != nil {
		return fmt.Errorf("invalid VEHICLE_READY_DELAY: %w", err)
	}
	c.VehicleClearDelay, err = time.ParseDuration(getEnv("VEHICLE_CLEAR_DELAY", "30s"))
	if err != nil {
		return fmt.Errorf("invalid VEHICLE_CLEAR_DELAY: %w", err)
	}
	c.VehicleFastMode = getBoolEnv("VEHICLE_FAST_MODE", false)

	c.SearchWorkers = getIntEnv("SEARCH_WORKERS", 4)
	c.SearchBatch = getIntEnv("SEARCH_BATCH", 16)

	c.WLAlarm = getBoolEnv("WL_ALARM", false)

	c.DashboardWindowBatch = getIntEnv("DASHBOARD_WINDOW_BATCH", 50)

	c.GCIntervalMinutes = getIntEnv("GC_INTERVAL_MINUTES", 10)
	c.GCAvailSizeMB = int64(getIntEnv("GC_AVAIL_SIZE_MB", 5120))
	c.GCCleanFTBatch = getIntEnv("GC_CLEAN_FT_BATCH", 100)
	c.GCCleanCTBatch = getIntEnv("GC_CLEAN_CT_BATCH", 100)

	c.RateLimitEnabled = getBoolEnv("RATE_LIMIT_ENABLED", true)
	c.RateLimitRequests = getFloatEnv("RATE_LIMIT_REQUESTS_PER_SECOND", 200)
	c.RateLimitBurst = getIntEnv("RATE_LIMIT_BURST", 400)

	c.EnrollDir = getEnv("ENROLL_DIR", "./data/enroll")
	c.EnrollExtensions = getListEnv("ENROLL_EXTENSIONS", []string{".jpg", ".jpeg", ".png"})
	c.EnrollFilenameRegex = getEnv("ENROLL_FILENAME_REGEX", `^(.+)_(男|女)_(\d+)$`)
	c.EnrollCaptureGroups = getListEnv("ENROLL_CAPTURE_GROUPS", []string{"name", "sex", "idcard"})
	c.EnrollSizeThresholdBytes = int64(getIntEnv("ENROLL_SIZE_THRESHOLD_BYTES", 1024))
	c.EnrollLibraryID = getEnv("ENROLL_LIBRARY_ID", "")
	c.EnrollDetectWorkers = getIntEnv("ENROLL_DETECT_WORKERS", 4)
	c.EnrollCreateWorkers = getIntEnv("ENROLL_CREATE_WORKERS", 2)
	c.EnrollCreateBatch = getIntEnv("ENROLL_CREATE_BATCH", 20)
	c.EnrollSaveBatch = getIntEnv("ENROLL_SAVE_BATCH", 50)
	c.EnrollTestMode = getBoolEnv("ENROLL_TEST_MODE", false)

	return nil
}

// IsDevelopment reports whether the worker is running in development mode.
func (c *Config) IsDevelopment() bool { return c.Env == Development }

// IsProduction reports whether the worker is running in production mode.
func (c *Config) IsProduction() bool { return c.Env == Production }

// IsTesting reports whether the worker is running in testing mode.
func (c *Config) IsTesting() bool { return c.Env == Testing }

// Validate checks production-mode and range constraints.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.DatabaseDSN) == "" {
		return fmt.Errorf("DATABASE_DSN is required")
	}
	if c.SearchWorkers < 1 {
		return fmt.Errorf("SEARCH_WORKERS must be >= 1")
	}
	if c.IsProduction() && c.RecognitionBaseURL == "" {
		return fmt.Errorf("RECOGNITION_BASE_URL is required in production")
	}
	return nil
}

// ValidateEnroll checks the constraints cmd/bulkenroll additionally
// requires beyond Validate.
func (c *Config) ValidateEnroll() error {
	if strings.TrimSpace(c.EnrollDir) == "" {
		return fmt.Errorf("ENROLL_DIR is required")
	}
	if !c.EnrollTestMode && strings.TrimSpace(c.EnrollLibraryID) == "" {
		return fmt.Errorf("ENROLL_LIBRARY_ID is required unless ENROLL_TEST_MODE is set")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		var n int
		if _, err := fmt.Sscanf(v, "%d", &n); err == nil {
			return n
		}
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if v := os.Getenv(key); v != "" {
		var f float64
		if _, err := fmt.Sscanf(v, "%g", &f); err == nil {
			return f
		}
	}
	return defaultValue
}

func getListEnv(key string, defaultValue []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}

func getBoolEnv(key string, defaultValue bool) bool {
	if v := os.Getenv(key); v != "" {
		switch strings.ToLower(v) {
		case "1", "t", "true", "yes":
			return true
		case "0", "f", "false", "no":
			return false
		}
	}
	return defaultValue
}
