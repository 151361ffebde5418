package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"dario.cat/mergo"
	"github.com/sirupsen/logrus"
	"github.com/titanous/json5"

	yaml "gopkg.in/yaml.v2"
)

// DefaultPosition is the search query used when none is configured.
const DefaultPosition = "Data Scientist, Business Analyst, Data Engineer, Python Developer, " +
	"Full Stack Developer, Machine Learning Engineer, Software Engineer, Backend Developer, " +
	"Frontend Developer, AI Engineer, DevOps Engineer"

// QueryConfig is the input handed to the scraping actor.
type QueryConfig struct {
	Country              string `yaml:"country" json:"country"`
	MaxItems             int    `yaml:"max_items" json:"max_items"`
	Position             string `yaml:"position" json:"position"`
	SaveOnlyUniqueItems  bool   `yaml:"save_only_unique_items" json:"save_only_unique_items"`
	FollowApplyRedirects bool   `yaml:"follow_apply_redirects" json:"follow_apply_redirects"`
	ParseCompanyDetails  bool   `yaml:"parse_company_details" json:"parse_company_details"`
}

type CollectorConfig struct {
	BaseURL string `yaml:"base_url" json:"base_url"`
	Token   string `yaml:"token" json:"token"`
	ActorID string `yaml:"actor_id" json:"actor_id"`
	// WaitSeconds is the long-poll window used while waiting for the actor
	// run to finish (the API caps it at 60).
	WaitSeconds int         `yaml:"wait_seconds" json:"wait_seconds"`
	Input       QueryConfig `yaml:"input" json:"input"`
}

type NormalizerConfig struct {
	// Mode is either "builtin" or "command".
	Mode string `yaml:"mode" json:"mode"`
	// Command is the argv of the external formatter; input and output paths
	// are appended as the last two arguments.
	Command []string `yaml:"command" json:"command"`
}

type StorageConfig struct {
	Type   string `yaml:"type" json:"type"`
	Table  string `yaml:"table" json:"table"`
	SQLite struct {
		Path string `yaml:"path" json:"path"`
	} `yaml:"sqlite" json:"sqlite"`
	LibSQL struct {
		URL string `yaml:"url" json:"url"`
	} `yaml:"libsql" json:"libsql"`
	Supabase struct {
		URL string `yaml:"url" json:"url"`
		Key string `yaml:"key" json:"key"`
	} `yaml:"supabase" json:"supabase"`
}

// PathsConfig locates the file handoffs between stages.
type PathsConfig struct {
	Scraped   string `yaml:"scraped" json:"scraped"`
	Formatted string `yaml:"formatted" json:"formatted"`
}

type ReportConfig struct {
	// OutputDir receives one CSV per run. Empty disables the report.
	OutputDir string `yaml:"output_dir" json:"output_dir"`
}

type LogConfig struct {
	Level string `yaml:"level" json:"level"`
}

type APIConfig struct {
	Port string `yaml:"port" json:"port"`
}

type Config struct {
	Collector  CollectorConfig  `yaml:"collector" json:"collector"`
	Normalizer NormalizerConfig `yaml:"normalizer" json:"normalizer"`
	Storage    StorageConfig    `yaml:"storage" json:"storage"`
	Paths      PathsConfig      `yaml:"paths" json:"paths"`
	Report     ReportConfig     `yaml:"report" json:"report"`
	Log        LogConfig        `yaml:"log" json:"log"`
	API        APIConfig        `yaml:"api" json:"api"`
}

// Default returns the configuration used when a key is absent from the file.
func Default() Config {
	return Config{
		Collector: CollectorConfig{
			BaseURL:     "https://api.apify.com",
			ActorID:     "hMvNSpz3JnHgl5jkh",
			WaitSeconds: 60,
			Input: QueryConfig{
				Country:              "IN",
				MaxItems:             15,
				Position:             DefaultPosition,
				SaveOnlyUniqueItems:  true,
				FollowApplyRedirects: true,
				ParseCompanyDetails:  true,
			},
		},
		Normalizer: NormalizerConfig{Mode: "builtin"},
		Storage: func() StorageConfig {
			s := StorageConfig{Type: "sqlite", Table: "jobs"}
			s.SQLite.Path = "jobs.db"
			return s
		}(),
		Paths: PathsConfig{
			Scraped:   "scraped_jobs.json",
			Formatted: "formatted_jobs.json",
		},
		Log: LogConfig{Level: "info"},
		API: APIConfig{Port: "8080"},
	}
}

// Load reads the configuration file located at the given path, overlays
// <name>.local.<ext> when present and applies environment overrides for
// secrets. Files ending in .json or .json5 are decoded as JSON5, anything
// else as YAML.
//
// The local overlay can only set values; a zero value in it (false, 0, "")
// leaves the base value untouched.
func Load(path string) (*Config, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		return nil, err
	}

	cfg := Default()
	if err := decode(absPath, data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", absPath, err)
	}

	localPath := localVariant(absPath)
	localData, err := os.ReadFile(localPath)
	switch {
	case err == nil:
		var override Config
		if err := decode(localPath, localData, &override); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", localPath, err)
		}
		if err := mergo.Merge(&cfg, override, mergo.WithOverride); err != nil {
			return nil, err
		}
		logrus.Infof("merged local config overrides from %s", localPath)
	case !os.IsNotExist(err):
		return nil, err
	}

	applyEnv(&cfg)

	// Relative handoff paths are resolved against the config file directory.
	cfgDir := filepath.Dir(absPath)
	cfg.Paths.Scraped = resolve(cfgDir, cfg.Paths.Scraped)
	cfg.Paths.Formatted = resolve(cfgDir, cfg.Paths.Formatted)
	if cfg.Storage.Type == "sqlite" {
		cfg.Storage.SQLite.Path = resolve(cfgDir, cfg.Storage.SQLite.Path)
	}
	if cfg.Report.OutputDir != "" {
		cfg.Report.OutputDir = resolve(cfgDir, cfg.Report.OutputDir)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the settings every entry point depends on. Collector
// credentials are checked when the collector is built since the upload-only
// commands never need them.
func (c *Config) Validate() error {
	switch c.Storage.Type {
	case "sqlite":
		if c.Storage.SQLite.Path == "" {
			return fmt.Errorf("storage.sqlite.path is required when storage type is sqlite")
		}
	case "libsql":
		if c.Storage.LibSQL.URL == "" {
			return fmt.Errorf("storage.libsql.url is required when storage type is libsql")
		}
	case "supabase":
		if c.Storage.Supabase.URL == "" || c.Storage.Supabase.Key == "" {
			return fmt.Errorf("storage.supabase.url and storage.supabase.key are required when storage type is supabase")
		}
	case "memory":
	default:
		return fmt.Errorf("unsupported storage type: %s", c.Storage.Type)
	}
	if c.Storage.Table == "" {
		return fmt.Errorf("storage.table is required")
	}

	switch c.Normalizer.Mode {
	case "builtin":
	case "command":
		if len(c.Normalizer.Command) == 0 {
			return fmt.Errorf("normalizer.command is required when normalizer mode is command")
		}
	default:
		return fmt.Errorf("unsupported normalizer mode: %s", c.Normalizer.Mode)
	}

	if c.Paths.Scraped == "" || c.Paths.Formatted == "" {
		return fmt.Errorf("paths.scraped and paths.formatted are required")
	}
	if c.Collector.Input.MaxItems < 0 {
		return fmt.Errorf("collector.input.max_items must not be negative")
	}
	if _, err := logrus.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("invalid log.level: %w", err)
	}
	return nil
}

func decode(path string, data []byte, out *Config) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".json5":
		return json5.Unmarshal(data, out)
	default:
		return yaml.Unmarshal(data, out)
	}
}

func localVariant(path string) string {
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + ".local" + ext
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("APIFY_TOKEN"); v != "" {
		cfg.Collector.Token = v
	}
	if v := os.Getenv("SUPABASE_URL"); v != "" {
		cfg.Storage.Supabase.URL = v
	}
	if v := os.Getenv("SUPABASE_KEY"); v != "" {
		cfg.Storage.Supabase.Key = v
	}
	if v := os.Getenv("LIBSQL_URL"); v != "" {
		cfg.Storage.LibSQL.URL = v
	}
	if v := os.Getenv("API_PORT"); v != "" {
		cfg.API.Port = v
	}
}

func resolve(dir, p string) string {
	if p == "" || filepath.IsAbs(p) || strings.HasPrefix(p, ":") || strings.HasPrefix(p, "file:") {
		return p
	}
	return filepath.Join(dir, p)
}
