// Package config loads the static source registry from YAML and the runtime
// knobs from the environment. Registry problems are fatal at startup; a
// malformed keyword pattern would silently change matching semantics for the
// whole run, so it is surfaced, never swallowed.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Adapter kinds understood by the source registry.
const (
	KindFeed       = "feed"
	KindGraphQL    = "graphql"
	KindAJAX       = "ajax"
	KindCookieHTML = "cookiehtml"
	KindListing    = "listing"
)

var knownKinds = map[string]bool{
	KindFeed:       true,
	KindGraphQL:    true,
	KindAJAX:       true,
	KindCookieHTML: true,
	KindListing:    true,
}

// SourceSpec maps one source key to its endpoints and adapter kind.
type SourceSpec struct {
	Key       string   `yaml:"key"`
	Kind      string   `yaml:"kind"`
	Endpoints []string `yaml:"endpoints"`

	// MaxPages bounds pagination for paged kinds; 0 means the default.
	MaxPages int `yaml:"max_pages"`
	// PageDelaySeconds overrides the pause between paginated requests.
	PageDelaySeconds int `yaml:"page_delay_seconds"`
	// Slow marks proxied sources that need longer read timeouts and a
	// more patient retry policy.
	Slow bool `yaml:"slow"`
	// CookieEnv names the environment variable holding the cookie string
	// for authenticated sources. Absent credentials soft-disable the source.
	CookieEnv string `yaml:"cookie_env"`
	// KeepFilter marks sources whose scraping already guarantees topical
	// relevance; their records bypass the relevance threshold.
	KeepFilter bool `yaml:"keep_filter"`
	// KeepLimit exempts the source's records from the per-source cap.
	KeepLimit bool `yaml:"keep_limit"`
	// DetailLookups caps per-page detail-page fetches for listing sources.
	DetailLookups int `yaml:"detail_lookups"`
}

// GoogleNews configures the per-source fallback backfill.
type GoogleNews struct {
	Enabled      bool     `yaml:"enabled"`
	BaseKeywords []string `yaml:"base_keywords"`
	PerDomain    bool     `yaml:"per_domain"`
}

// Harvest is the per-source volume policy.
type Harvest struct {
	MinPerSource    int  `yaml:"min_per_source"`
	MaxPerSource    int  `yaml:"max_per_source"`
	FallbackEnabled bool `yaml:"fallback_enabled"`
}

// Relevance holds the positive/negative keyword pattern sets.
type Relevance struct {
	Positive []string `yaml:"positive"`
	Negative []string `yaml:"negative"`
}

// CategoryRule assigns a topical category by keyword patterns.
type CategoryRule struct {
	Name     string   `yaml:"name"`
	Patterns []string `yaml:"patterns"`
}

// Registry is the full static configuration, loaded once and immutable for
// the duration of a run.
type Registry struct {
	Sources    []SourceSpec   `yaml:"sources"`
	GoogleNews GoogleNews     `yaml:"google_news"`
	Harvest    Harvest        `yaml:"harvest_policy"`
	Relevance  Relevance      `yaml:"relevance"`
	Categories []CategoryRule `yaml:"categories"`
}

// LoadRegistry reads and validates the registry YAML.
func LoadRegistry(path string) (*Registry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open registry: %w", err)
	}
	defer f.Close()

	var reg Registry
	dec := yaml.NewDecoder(f)
	if err := dec.Decode(&reg); err != nil {
		return nil, fmt.Errorf("parse registry %s: %w", path, err)
	}
	if err := reg.Validate(); err != nil {
		return nil, fmt.Errorf("registry %s: %w", path, err)
	}
	return &reg, nil
}

// Validate checks structural invariants. Keyword pattern compilation happens
// where the patterns are used (relevance, classify) and is equally fatal.
func (r *Registry) Validate() error {
	if len(r.Sources) == 0 {
		return fmt.Errorf("no sources configured")
	}
	seen := make(map[string]bool, len(r.Sources))
	for i, s := range r.Sources {
		if s.Key == "" {
			return fmt.Errorf("source %d: missing key", i)
		}
		if seen[s.Key] {
			return fmt.Errorf("source %q: duplicate key", s.Key)
		}
		seen[s.Key] = true
		if !knownKinds[s.Kind] {
			return fmt.Errorf("source %q: unknown adapter kind %q", s.Key, s.Kind)
		}
		if len(s.Endpoints) == 0 {
			return fmt.Errorf("source %q: no endpoints", s.Key)
		}
	}
	if r.Harvest.MaxPerSource < 0 || r.Harvest.MinPerSource < 0 {
		return fmt.Errorf("harvest policy: negative per-source bound")
	}
	for _, c := range r.Categories {
		if c.Name == "" {
			return fmt.Errorf("category rule with empty name")
		}
	}
	return nil
}

// Source returns the spec for key, if present.
func (r *Registry) Source(key string) (SourceSpec, bool) {
	for _, s := range r.Sources {
		if s.Key == key {
			return s, true
		}
	}
	return SourceSpec{}, false
}

// Config carries the runtime knobs loaded from the environment.
type Config struct {
	RegistryPath string

	// HTTP settings
	ConnectTimeout  time.Duration
	ReadTimeout     time.Duration
	SlowReadTimeout time.Duration
	RetryAttempts   int
	RetryDelay      time.Duration
	PageDelay       time.Duration

	// Trending settings
	SimilarityThreshold float64
	TrendingMinOutlets  int
	TrendingTopN        int

	// Relevance settings
	RelevanceThreshold float64
	MaxPagesDefault    int

	// Semantic judge / classifier credentials
	GeminiAPIKey string
	OpenAIAPIKey string
	OpenAIModel  string

	// Budget settings
	BudgetFilePath string
	BudgetPerDay   int

	// Export settings
	OutputDir     string
	SeenStorePath string

	Debug bool
}

// Load reads runtime configuration from the environment with defaults.
func Load() (*Config, error) {
	cfg := &Config{
		RegistryPath:        "configs/sources.yaml",
		ConnectTimeout:      10 * time.Second,
		ReadTimeout:         30 * time.Second,
		SlowReadTimeout:     90 * time.Second,
		RetryAttempts:       3,
		RetryDelay:          2 * time.Second,
		PageDelay:           time.Second,
		SimilarityThreshold: 0.55,
		TrendingMinOutlets:  2,
		TrendingTopN:        3,
		RelevanceThreshold:  0.6,
		MaxPagesDefault:     5,
		OpenAIModel:         "gpt-4o-mini",
		BudgetFilePath:      "api_budget.json",
		BudgetPerDay:        100,
		OutputDir:           "out",
		SeenStorePath:       "seen_urls.json",
	}

	if v := os.Getenv("REGISTRY_PATH"); v != "" {
		cfg.RegistryPath = v
	}
	cfg.GeminiAPIKey = os.Getenv("GEMINI_API_KEY")
	cfg.OpenAIAPIKey = os.Getenv("OPENAI_API_KEY")
	if v := os.Getenv("OPENAI_MODEL"); v != "" {
		cfg.OpenAIModel = v
	}
	if v := os.Getenv("BUDGET_FILE_PATH"); v != "" {
		cfg.BudgetFilePath = v
	}
	if v := getEnvInt("BUDGET_PER_DAY"); v > 0 {
		cfg.BudgetPerDay = v
	}
	if v := getEnvInt("RETRY_ATTEMPTS"); v > 0 {
		cfg.RetryAttempts = v
	}
	if v := getEnvInt("MAX_PAGES"); v > 0 {
		cfg.MaxPagesDefault = v
	}
	if v := getEnvInt("TRENDING_MIN_OUTLETS"); v > 1 {
		cfg.TrendingMinOutlets = v
	}
	if v := getEnvInt("TRENDING_TOP_N"); v > 0 {
		cfg.TrendingTopN = v
	}
	if v := getEnvFloat("SIMILARITY_THRESHOLD"); v > 0 {
		cfg.SimilarityThreshold = v
	}
	if v := getEnvFloat("RELEVANCE_THRESHOLD"); v > 0 {
		cfg.RelevanceThreshold = v
	}
	if v := os.Getenv("OUTPUT_DIR"); v != "" {
		cfg.OutputDir = v
	}
	if v := os.Getenv("SEEN_STORE_PATH"); v != "" {
		cfg.SeenStorePath = v
	}
	if os.Getenv("CHINAWIRE_DEBUG") == "true" {
		cfg.Debug = true
	}

	return cfg, cfg.Validate()
}

func (c *Config) Validate() error {
	if c.RetryAttempts < 1 {
		return fmt.Errorf("RETRY_ATTEMPTS must be >= 1")
	}
	if c.SimilarityThreshold <= 0 || c.SimilarityThreshold > 1 {
		return fmt.Errorf("SIMILARITY_THRESHOLD must be in (0,1]")
	}
	if c.RelevanceThreshold < 0 {
		return fmt.Errorf("RELEVANCE_THRESHOLD must be >= 0")
	}
	if c.TrendingMinOutlets < 2 {
		return fmt.Errorf("TRENDING_MIN_OUTLETS must be >= 2")
	}
	return nil
}

func getEnvInt(key string) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return 0
}

func getEnvFloat(key string) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return 0
}
