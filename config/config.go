package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Browser   BrowserConfig
	Scraper   ScraperConfig
	Engine    EngineConfig
	Cache     CacheConfig
	RateLimit RateLimitConfig
	Extract   ExtractConfig
	Log       LogConfig
}

// ServerConfig controls the HTTP server.
type ServerConfig struct {
	Host string // default: "0.0.0.0"
	Port int    // default: 3000
	Mode string // "debug", "release", "test"; default: "release"
}

// BrowserConfig controls the shared browser session.
type BrowserConfig struct {
	// Headless controls whether the browser runs headless.
	Headless bool // default: true

	// NoSandbox disables Chrome's sandbox (needed in containers).
	NoSandbox bool // default: true

	// BrowserBin overrides the Chromium binary path.
	BrowserBin string

	// DefaultProxy is the proxy URL for all browser traffic.
	DefaultProxy string

	// Stealth injects the stealth script into every page.
	Stealth bool // default: true

	// MaxPages caps concurrently open pages. Zero means unbounded.
	MaxPages int // default: 8

	// UserAgent is the desktop identity presented upstream.
	UserAgent string

	// Locale and Region pin the upstream interface language and country.
	Locale string // default: "en"
	Region string // default: "US"
}

// ScraperConfig controls one page render.
type ScraperConfig struct {
	// NavigationTimeout is the hard deadline for page.Navigate.
	NavigationTimeout time.Duration // default: 20s

	// ReadyTimeout bounds the wait for the in-page data object. Soft.
	ReadyTimeout time.Duration // default: 12s

	// CardsTimeout bounds the wait for rendered cards when the data object
	// never showed up. Soft.
	CardsTimeout time.Duration // default: 10s

	// BlockedResourceTypes lists resource types to block.
	// default: ["Image", "Stylesheet", "Font", "Media"]
	BlockedResourceTypes []string

	// BlockAds drops requests to known ad and tracking hosts.
	BlockAds bool // default: true

	// TotalTimeout bounds one whole render, page slot wait included. Zero
	// derives it from the phase timeouts.
	TotalTimeout time.Duration // default: nav + ready + cards + 5s

	// ReadTimeout bounds each in-page read after navigation.
	ReadTimeout time.Duration // default: 5s
}

// EngineConfig selects and tunes the page source provider.
type EngineConfig struct {
	// Mode is "browser", "http" or "auto".
	Mode string // default: "browser"

	// HTTPTimeout is the deadline for the raw fetch engine.
	HTTPTimeout time.Duration // default: 10s

	// EscalationDelays is the staged start delay per engine in auto mode.
	EscalationDelays []time.Duration // default: [0s, 2s]

	// PreferenceTTL is how long auto mode keeps trying the last winner first.
	PreferenceTTL time.Duration // default: 10m
}

// CacheConfig controls the result cache.
type CacheConfig struct {
	// TTL is how long a result is served from cache.
	TTL time.Duration // default: 5m

	// MaxEntries bounds the in-memory cache. Zero means unbounded.
	MaxEntries int // default: 0

	// SweepInterval is how often expired in-memory entries are dropped.
	// Zero disables sweeping.
	SweepInterval time.Duration // default: 1m

	// RedisURL enables the shared second-level cache when set.
	RedisURL string
}

// RateLimitConfig controls per-client rate limiting.
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained rate per client IP. Zero or
	// negative disables limiting.
	RequestsPerSecond float64 // default: 5

	// Burst is the maximum burst size per client IP.
	Burst int // default: 10
}

// ExtractConfig controls extraction output.
type ExtractConfig struct {
	// MaxItems caps returned recommendations; never above 12.
	MaxItems int // default: 12
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string // default: "info"
	Format string // "json" or "text"; default: "json"
}

// Load reads configuration from environment variables with sane defaults.
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Host: envOr("HOST", "0.0.0.0"),
			Port: envIntOr("PORT", 3000),
			Mode: envOr("UPNEXT_MODE", "release"),
		},
		Browser: BrowserConfig{
			Headless:     envBoolOr("UPNEXT_HEADLESS", true),
			NoSandbox:    envBoolOr("UPNEXT_NO_SANDBOX", true),
			BrowserBin:   os.Getenv("UPNEXT_BROWSER_BIN"),
			DefaultProxy: os.Getenv("UPNEXT_PROXY"),
			Stealth:      envBoolOr("UPNEXT_STEALTH", true),
			MaxPages:     envIntOr("UPNEXT_MAX_PAGES", 8),
			UserAgent:    os.Getenv("UPNEXT_USER_AGENT"),
			Locale:       envOr("UPNEXT_LOCALE", "en"),
			Region:       envOr("UPNEXT_REGION", "US"),
		},
		Scraper: ScraperConfig{
			NavigationTimeout: envDurationOr("UPNEXT_NAV_TIMEOUT", 20*time.Second),
			ReadyTimeout:      envDurationOr("UPNEXT_READY_TIMEOUT", 12*time.Second),
			CardsTimeout:      envDurationOr("UPNEXT_CARDS_TIMEOUT", 10*time.Second),
			BlockedResourceTypes: envSliceOr("UPNEXT_BLOCKED_RESOURCES", []string{
				"Image", "Stylesheet", "Font", "Media",
			}),
			BlockAds:     envBoolOr("UPNEXT_BLOCK_ADS", true),
			TotalTimeout: envDurationOr("UPNEXT_SCRAPE_TIMEOUT", 0),
			ReadTimeout:  envDurationOr("UPNEXT_READ_TIMEOUT", 5*time.Second),
		},
		Engine: EngineConfig{
			Mode:             strings.ToLower(envOr("UPNEXT_ENGINE", "browser")),
			HTTPTimeout:      envDurationOr("UPNEXT_HTTP_TIMEOUT", 10*time.Second),
			EscalationDelays: envDurationSliceOr("UPNEXT_ESCALATION_DELAYS", []time.Duration{0, 2 * time.Second}),
			PreferenceTTL:    envDurationOr("UPNEXT_PREFERENCE_TTL", 10*time.Minute),
		},
		Cache: CacheConfig{
			TTL:           envDurationOr("UPNEXT_CACHE_TTL", 5*time.Minute),
			MaxEntries:    envIntOr("UPNEXT_CACHE_MAX_ENTRIES", 0),
			SweepInterval: envDurationOr("UPNEXT_CACHE_SWEEP", time.Minute),
			RedisURL:      os.Getenv("UPNEXT_REDIS_URL"),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: envFloatOr("UPNEXT_RATE_RPS", 5.0),
			Burst:             envIntOr("UPNEXT_RATE_BURST", 10),
		},
		Extract: ExtractConfig{
			MaxItems: envIntOr("UPNEXT_MAX_ITEMS", 12),
		},
		Log: LogConfig{
			Level:  envOr("UPNEXT_LOG_LEVEL", "info"),
			Format: envOr("UPNEXT_LOG_FORMAT", "json"),
		},
	}
}

// --- helper functions ---

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBoolOr(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envFloatOr(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envSliceOr(key string, fallback []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		return result
	}
	return fallback
}

func envDurationSliceOr(key string, fallback []time.Duration) []time.Duration {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]time.Duration, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				if d, err := time.ParseDuration(trimmed); err == nil {
					result = append(result, d)
				}
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return fallback
}
