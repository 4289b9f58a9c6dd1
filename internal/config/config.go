// Package config loads and validates crawler configuration via Viper.
package config

import (
	"fmt"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix namespaces environment overrides, e.g. A11Y_CRAWLER_MAX_PAGES.
const EnvPrefix = "A11Y"

// Sink kinds.
const (
	SinkMemory   = "memory"
	SinkLocal    = "local"
	SinkGCS      = "gcs"
	SinkPostgres = "postgres"
	SinkPubSub   = "pubsub"
)

var knownSinks = []string{SinkMemory, SinkLocal, SinkGCS, SinkPostgres, SinkPubSub}

// Config captures every knob of a crawl run.
type Config struct {
	Crawler    CrawlerConfig    `mapstructure:"crawler"`
	Proxy      ProxyConfig      `mapstructure:"proxy"`
	Browser    BrowserConfig    `mapstructure:"browser"`
	Evaluation EvaluationConfig `mapstructure:"evaluation"`
	Report     ReportConfig     `mapstructure:"report"`
	Sink       SinkConfig       `mapstructure:"sink"`
	Preflight  PreflightConfig  `mapstructure:"preflight"`
	Server     ServerConfig     `mapstructure:"server"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// CrawlerConfig governs the frontier and worker pool.
type CrawlerConfig struct {
	Seeds        []string `mapstructure:"seeds"`
	EnqueueLinks bool     `mapstructure:"enqueue_links"`
	MaxPages     int      `mapstructure:"max_pages"`
	Concurrency  int      `mapstructure:"concurrency"`
	SameHostOnly bool     `mapstructure:"same_host_only"`
	ExcludeHosts []string `mapstructure:"exclude_hosts"`
	DomainQPS    float64  `mapstructure:"domain_qps"`
	UserAgent    string   `mapstructure:"user_agent"`
}

// ProxyConfig is handed to the browser unchanged.
type ProxyConfig struct {
	Residential bool   `mapstructure:"residential"`
	URL         string `mapstructure:"url"`
}

// BrowserConfig configures the headless browser.
type BrowserConfig struct {
	MaxParallel int           `mapstructure:"max_parallel"`
	NavTimeout  time.Duration `mapstructure:"nav_timeout"`
	LoadTimeout time.Duration `mapstructure:"load_timeout"`
	Headless    bool          `mapstructure:"headless"`
	LibraryPath string        `mapstructure:"library_path"`
}

// EvaluationConfig selects the audit and its timing.
type EvaluationConfig struct {
	Ruleset           string        `mapstructure:"ruleset"`
	Level             string        `mapstructure:"level"`
	Scope             string        `mapstructure:"scope"`
	RuleList          []string      `mapstructure:"rule_list"`
	CapabilityTimeout time.Duration `mapstructure:"capability_timeout"`
	PollInterval      time.Duration `mapstructure:"poll_interval"`
	SettleDelay       time.Duration `mapstructure:"settle_delay"`
	MaxUnwrapLayers   int           `mapstructure:"max_unwrap_layers"`
}

// ReportConfig toggles legacy compatibility behaviors.
type ReportConfig struct {
	DestructiveCleanup bool `mapstructure:"destructive_cleanup"`
	URLEncodingParity  bool `mapstructure:"url_encoding_parity"`
	WrapResults        bool `mapstructure:"wrap_results"`
}

// SinkConfig selects and configures result backends.
type SinkConfig struct {
	// Kind is one backend or a comma separated list for fan-out.
	Kind          string        `mapstructure:"kind"`
	Path          string        `mapstructure:"path"`
	GCSBucket     string        `mapstructure:"gcs_bucket"`
	GCSPrefix     string        `mapstructure:"gcs_prefix"`
	PostgresDSN   string        `mapstructure:"postgres_dsn"`
	PostgresTable string        `mapstructure:"postgres_table"`
	PubSubProject string        `mapstructure:"pubsub_project"`
	PubSubTopic   string        `mapstructure:"pubsub_topic"`
	MaxRetries    uint64        `mapstructure:"max_retries"`
	RetryBackoff  time.Duration `mapstructure:"retry_backoff"`
}

// PreflightConfig controls the HTTP check ahead of the browser.
type PreflightConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	RespectRobots bool          `mapstructure:"respect_robots"`
	Timeout       time.Duration `mapstructure:"timeout"`
}

// ServerConfig controls the status and metrics listener.
type ServerConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// LoggingConfig selects the zap encoder and minimum level.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// Kinds splits Sink.Kind into backend names.
func (s SinkConfig) Kinds() []string {
	var out []string
	for _, k := range strings.Split(s.Kind, ",") {
		if k = strings.ToLower(strings.TrimSpace(k)); k != "" && !slices.Contains(out, k) {
			out = append(out, k)
		}
	}
	return out
}

// Load builds a Config from defaults, an optional file, the environment and
// overrides (typically CLI flags), in increasing precedence.
func Load(path string, overrides map[string]any) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}
	for key, val := range overrides {
		v.Set(key, val)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("crawler.seeds", []string{})
	v.SetDefault("crawler.enqueue_links", true)
	v.SetDefault("crawler.max_pages", 200)
	v.SetDefault("crawler.concurrency", 2)
	v.SetDefault("crawler.same_host_only", true)
	v.SetDefault("crawler.exclude_hosts", []string{})
	v.SetDefault("crawler.domain_qps", 0)
	v.SetDefault("crawler.user_agent", "a11y-crawler/0.1")
	v.SetDefault("proxy.residential", false)
	v.SetDefault("proxy.url", "")
	v.SetDefault("browser.max_parallel", 2)
	v.SetDefault("browser.nav_timeout", "30s")
	v.SetDefault("browser.load_timeout", "10s")
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.library_path", "")
	v.SetDefault("evaluation.ruleset", "WCAG21")
	v.SetDefault("evaluation.level", "AA")
	v.SetDefault("evaluation.scope", "")
	v.SetDefault("evaluation.rule_list", []string{})
	v.SetDefault("evaluation.capability_timeout", "10s")
	v.SetDefault("evaluation.poll_interval", "250ms")
	v.SetDefault("evaluation.settle_delay", "2s")
	v.SetDefault("evaluation.max_unwrap_layers", 1)
	v.SetDefault("report.destructive_cleanup", false)
	v.SetDefault("report.url_encoding_parity", false)
	v.SetDefault("report.wrap_results", false)
	v.SetDefault("sink.kind", SinkLocal)
	v.SetDefault("sink.path", "data/reports.jsonl")
	v.SetDefault("sink.gcs_prefix", "a11y")
	v.SetDefault("sink.postgres_table", "page_reports")
	v.SetDefault("sink.max_retries", 3)
	v.SetDefault("sink.retry_backoff", "250ms")
	v.SetDefault("preflight.enabled", true)
	v.SetDefault("preflight.respect_robots", true)
	v.SetDefault("preflight.timeout", "10s")
	v.SetDefault("server.enabled", false)
	v.SetDefault("server.port", 9090)
	v.SetDefault("logging.development", false)
	v.SetDefault("logging.level", "info")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if len(c.Crawler.Seeds) == 0 {
		return fmt.Errorf("crawler.seeds must list at least one url")
	}
	for _, s := range c.Crawler.Seeds {
		u, err := url.Parse(s)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("crawler.seeds: %q is not an absolute http(s) url", s)
		}
	}
	if c.Crawler.Concurrency <= 0 {
		return fmt.Errorf("crawler.concurrency must be > 0")
	}
	if c.Crawler.MaxPages < 0 {
		return fmt.Errorf("crawler.max_pages must be >= 0")
	}
	if c.Crawler.DomainQPS < 0 {
		return fmt.Errorf("crawler.domain_qps must be >= 0")
	}
	if c.Proxy.Residential && c.Proxy.URL == "" {
		return fmt.Errorf("proxy.url must be set when proxy.residential is enabled")
	}
	if c.Browser.MaxParallel <= 0 {
		return fmt.Errorf("browser.max_parallel must be > 0")
	}
	if c.Evaluation.CapabilityTimeout <= 0 {
		return fmt.Errorf("evaluation.capability_timeout must be > 0")
	}
	if c.Evaluation.PollInterval <= 0 {
		return fmt.Errorf("evaluation.poll_interval must be > 0")
	}
	if c.Evaluation.MaxUnwrapLayers < 0 {
		return fmt.Errorf("evaluation.max_unwrap_layers must be >= 0")
	}
	if err := c.Sink.validate(); err != nil {
		return err
	}
	if c.Server.Enabled && c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0 when server is enabled")
	}
	return nil
}

func (s SinkConfig) validate() error {
	kinds := s.Kinds()
	if len(kinds) == 0 {
		return fmt.Errorf("sink.kind must name at least one backend")
	}
	for _, k := range kinds {
		switch k {
		case SinkMemory:
		case SinkLocal:
			if s.Path == "" {
				return fmt.Errorf("sink.path is required for the local sink")
			}
		case SinkGCS:
			if s.GCSBucket == "" {
				return fmt.Errorf("sink.gcs_bucket is required for the gcs sink")
			}
		case SinkPostgres:
			if s.PostgresDSN == "" {
				return fmt.Errorf("sink.postgres_dsn is required for the postgres sink")
			}
		case SinkPubSub:
			if s.PubSubProject == "" || s.PubSubTopic == "" {
				return fmt.Errorf("sink.pubsub_project and sink.pubsub_topic are required for the pubsub sink")
			}
		default:
			return fmt.Errorf("sink.kind: unknown backend %q (want one of %s)", k, strings.Join(knownSinks, ", "))
		}
	}
	return nil
}
