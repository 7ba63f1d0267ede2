package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/newsmill/newsmill/internal/classify"
	"github.com/newsmill/newsmill/internal/dedup"
	"github.com/newsmill/newsmill/internal/ingest"
	"github.com/newsmill/newsmill/internal/rank"
)

//go:embed default.yaml
var DefaultConfigYAML []byte

type Config struct {
	Sources    []Feed              `yaml:"sources"`
	Taxonomy   []classify.Category `yaml:"taxonomy"`
	Classifier Classifier          `yaml:"classifier"`
	Ingest     Ingest              `yaml:"ingest"`
	Dedup      Dedup               `yaml:"dedup"`
	Ranking    Ranking             `yaml:"ranking"`
	Output     Output              `yaml:"output"`
	Server     Server              `yaml:"server"`
	Logging    Logging             `yaml:"logging"`
}

type Feed struct {
	URL      string `yaml:"url"`
	Name     string `yaml:"name"`
	Country  string `yaml:"country"`
	Language string `yaml:"language"`
}

type Classifier struct {
	ModelPath string `yaml:"model_path"`
}

type Ingest struct {
	Workers          int    `yaml:"workers"`
	FetchTimeoutSecs int    `yaml:"fetch_timeout_seconds"`
	MinBodyLength    int    `yaml:"min_body_length"`
	UserAgent        string `yaml:"user_agent"`
	RefreshMinutes   int    `yaml:"refresh_minutes"`
}

type Dedup struct {
	WindowHours           int `yaml:"window_hours"`
	HammingThreshold      int `yaml:"hamming_threshold"`
	PublishProximityHours int `yaml:"publish_proximity_hours"`
}

type Ranking struct {
	AffinityWeight   float64 `yaml:"affinity_weight"`
	RecencyWeight    float64 `yaml:"recency_weight"`
	PopularityWeight float64 `yaml:"popularity_weight"`
	HalfLifeHours    float64 `yaml:"half_life_hours"`
}

type Output struct {
	DataDir string `yaml:"data_dir"`
}

type Server struct {
	Port int `yaml:"port"`
}

type Logging struct {
	Level string `yaml:"level"`
}

// ConfigDir returns the XDG config directory for newsmill.
func ConfigDir() string {
	return filepath.Join(homeDir(), ".config", "newsmill")
}

// DataDir returns the XDG data directory for newsmill.
func DataDir() string {
	return filepath.Join(homeDir(), ".local", "share", "newsmill")
}

// ResolveConfigPath finds the config file following priority:
// explicit path > ~/.config/newsmill/config.yaml > ./config.yaml
func ResolveConfigPath(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	xdgConfig := filepath.Join(ConfigDir(), "config.yaml")
	if _, err := os.Stat(xdgConfig); err == nil {
		return xdgConfig, nil
	}

	cwdConfig := "config.yaml"
	if _, err := os.Stat(cwdConfig); err == nil {
		return cwdConfig, nil
	}

	return "", fmt.Errorf(
		"no config file found; searched:\n  %s\n  ./config.yaml\n\nRun 'newsmill init' to create a default config",
		xdgConfig,
	)
}

// Load reads and parses a config YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return parse(data)
}

// parse parses YAML bytes into a Config, applying defaults.
func parse(data []byte) (*Config, error) {
	cfg := &Config{
		Ingest: Ingest{
			Workers:          ingest.DefaultWorkers,
			FetchTimeoutSecs: 20,
			MinBodyLength:    200,
			UserAgent:        "newsmill/1.0 (+https://github.com/newsmill/newsmill)",
			RefreshMinutes:   30,
		},
		Dedup: Dedup{
			WindowHours:           72,
			HammingThreshold:      3,
			PublishProximityHours: 72,
		},
		Ranking: Ranking{
			AffinityWeight:   1.0,
			RecencyWeight:    1.0,
			PopularityWeight: 0.5,
			HalfLifeHours:    24,
		},
		Server:  Server{Port: 8000},
		Logging: Logging{Level: "INFO"},
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	return cfg, nil
}

// GetDataDir returns the effective data directory from config or XDG default.
func (c *Config) GetDataDir() string {
	if c.Output.DataDir != "" {
		return c.Output.DataDir
	}
	return DataDir()
}

// DBPath returns the sqlite database location inside the data directory.
func (c *Config) DBPath() string {
	return filepath.Join(c.GetDataDir(), "newsmill.db")
}

// FetchTimeout returns the per-feed network timeout.
func (c *Config) FetchTimeout() time.Duration {
	return time.Duration(c.Ingest.FetchTimeoutSecs) * time.Second
}

// RefreshInterval returns how often the server re-runs ingestion.
func (c *Config) RefreshInterval() time.Duration {
	return time.Duration(c.Ingest.RefreshMinutes) * time.Minute
}

// DedupOptions converts the dedup section into index options.
func (c *Config) DedupOptions() dedup.Options {
	return dedup.Options{
		Window:           time.Duration(c.Dedup.WindowHours) * time.Hour,
		HammingThreshold: c.Dedup.HammingThreshold,
		PublishProximity: time.Duration(c.Dedup.PublishProximityHours) * time.Hour,
	}
}

// IngestOptions converts the ingest and dedup sections into pipeline options.
func (c *Config) IngestOptions() ingest.Options {
	return ingest.Options{
		Workers: c.Ingest.Workers,
		Dedup:   c.DedupOptions(),
	}
}

// RankOptions converts the ranking section into engine options.
func (c *Config) RankOptions() rank.Options {
	return rank.Options{
		AffinityWeight:   c.Ranking.AffinityWeight,
		RecencyWeight:    c.Ranking.RecencyWeight,
		PopularityWeight: c.Ranking.PopularityWeight,
		HalfLife:         time.Duration(c.Ranking.HalfLifeHours * float64(time.Hour)),
	}
}

// BuildTaxonomy returns the configured taxonomy, or the built-in default
// when the config does not override it.
func (c *Config) BuildTaxonomy() (*classify.Taxonomy, error) {
	if len(c.Taxonomy) == 0 {
		return classify.DefaultTaxonomy(), nil
	}
	return classify.NewTaxonomy(c.Taxonomy)
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
