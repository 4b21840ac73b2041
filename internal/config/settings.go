package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable.
const EnvPrefix = "MOT_SEARCH"

// Auth type constants
const (
	AuthTypeNone   = "none"
	AuthTypeBasic  = "basic"
	AuthTypeAPIKey = "apikey"
)

// Cluster modes
const (
	ClusterModeLocal = "local"
	ClusterModeNATS  = "nats"
)

// AuthSettings configuration for authentication
type AuthSettings struct {
	Type    string            `mapstructure:"type"` // AuthTypeNone, AuthTypeBasic, or AuthTypeAPIKey
	Basic   BasicAuthSettings `mapstructure:"basic"`
	APIKeys []string          `mapstructure:"api_keys"`
}

// BasicAuthSettings configuration for basic auth
type BasicAuthSettings struct {
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

// ClusterSettings configures the coordinator and its workers.
type ClusterSettings struct {
	Mode            string        `mapstructure:"mode"` // ClusterModeLocal or ClusterModeNATS
	Workers         int           `mapstructure:"workers"`
	Strategy        string        `mapstructure:"strategy"`     // static or dynamic
	Partitioning    string        `mapstructure:"partitioning"` // striped or block_cyclic
	BlocksPerWorker int           `mapstructure:"blocks_per_worker"`
	ResultTimeout   time.Duration `mapstructure:"result_timeout"`
	NATSURL         string        `mapstructure:"nats_url"`
	SubjectPrefix   string        `mapstructure:"subject_prefix"`
}

// DatasetSettings configures where the dataset is read from and cached.
type DatasetSettings struct {
	SourceDir       string        `mapstructure:"source_dir"`
	DataDir         string        `mapstructure:"data_dir"`
	MaxRowsPerFile  int           `mapstructure:"max_rows_per_file"`
	LoadParallelism int           `mapstructure:"load_parallelism"`
	BuildTimeout    time.Duration `mapstructure:"build_timeout"`
}

// SearchSettings configures how results are presented.
type SearchSettings struct {
	MaxDisplayRows int `mapstructure:"max_display_rows"`
}

// Settings application settings
type Settings struct {
	Transport string          `mapstructure:"transport"`
	Host      string          `mapstructure:"host"`
	Port      int             `mapstructure:"port"`
	Auth      AuthSettings    `mapstructure:"auth"`
	Cluster   ClusterSettings `mapstructure:"cluster"`
	Dataset   DatasetSettings `mapstructure:"dataset"`
	Search    SearchSettings  `mapstructure:"search"`
}

// flagBindings maps setting keys to CLI flag names.
var flagBindings = map[string]string{
	"transport":                 "transport",
	"host":                      "host",
	"port":                      "port",
	"auth.type":                 "auth-type",
	"auth.basic.username":       "auth-basic-username",
	"auth.basic.password":       "auth-basic-password",
	"auth.api_keys":             "auth-api-keys",
	"cluster.mode":              "cluster-mode",
	"cluster.workers":           "workers",
	"cluster.strategy":          "strategy",
	"cluster.partitioning":      "partitioning",
	"cluster.blocks_per_worker": "blocks-per-worker",
	"cluster.result_timeout":    "result-timeout",
	"cluster.nats_url":          "nats-url",
	"cluster.subject_prefix":    "subject-prefix",
	"dataset.source_dir":        "source-dir",
	"dataset.data_dir":          "data-dir",
	"dataset.max_rows_per_file": "max-rows-per-file",
	"dataset.load_parallelism":  "load-parallelism",
	"dataset.build_timeout":     "build-timeout",
	"search.max_display_rows":   "max-display-rows",
}

// LoadSettings loads settings from environment variables and optional .env file
func LoadSettings() (*Settings, error) {
	return LoadSettingsWithFlags(nil)
}

// LoadSettingsWithFlags loads settings with optional CLI flag overrides.
// Priority: CLI flags > environment variables > .env file > defaults.
// Flags missing from the set are skipped, so subcommands can register only
// the flags they use.
func LoadSettingsWithFlags(flags *pflag.FlagSet) (*Settings, error) {
	v := viper.New()

	v.SetDefault("transport", "stdio")
	v.SetDefault("host", "0.0.0.0")
	v.SetDefault("port", 8080)
	v.SetDefault("auth.type", AuthTypeNone)

	v.SetDefault("cluster.mode", ClusterModeLocal)
	v.SetDefault("cluster.workers", 4)
	v.SetDefault("cluster.strategy", "static")
	v.SetDefault("cluster.partitioning", "striped")
	v.SetDefault("cluster.blocks_per_worker", 4)
	v.SetDefault("cluster.result_timeout", 30*time.Second)
	v.SetDefault("cluster.nats_url", "nats://127.0.0.1:4222")
	v.SetDefault("cluster.subject_prefix", "mot")

	v.SetDefault("dataset.source_dir", "")
	v.SetDefault("dataset.data_dir", defaultDataDir())
	v.SetDefault("dataset.max_rows_per_file", 0)
	v.SetDefault("dataset.load_parallelism", 0)
	v.SetDefault("dataset.build_timeout", 10*time.Minute)

	v.SetDefault("search.max_display_rows", 50)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key := range flagBindings {
		_ = v.BindEnv(key, envName(key))
	}

	if flags != nil {
		for key, name := range flagBindings {
			if f := flags.Lookup(name); f != nil {
				_ = v.BindPFlag(key, f)
			}
		}
	}

	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	_ = v.ReadInConfig() // Ignore error if .env doesn't exist

	var settings Settings
	if err := v.Unmarshal(&settings); err != nil {
		return nil, err
	}

	// A comma separated env value arrives as a single element.
	if apiKeysEnv := os.Getenv(envName("auth.api_keys")); apiKeysEnv != "" {
		if len(settings.Auth.APIKeys) == 0 || (len(settings.Auth.APIKeys) == 1 && strings.Contains(settings.Auth.APIKeys[0], ",")) {
			settings.Auth.APIKeys = strings.Split(apiKeysEnv, ",")
		}
	}
	for i := range settings.Auth.APIKeys {
		settings.Auth.APIKeys[i] = strings.TrimSpace(settings.Auth.APIKeys[i])
	}

	settings.Dataset.SourceDir = expandHomeDir(settings.Dataset.SourceDir)
	settings.Dataset.DataDir = expandHomeDir(settings.Dataset.DataDir)

	return &settings, nil
}

func envName(key string) string {
	return EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

// defaultDataDir returns the default directory for the snapshot and catalog
func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".mot-search"
	}
	return filepath.Join(home, ".mot-search")
}

// expandHomeDir expands ~ to the user's home directory
func expandHomeDir(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path[1:], "/"))
}

// ValidateSettings checks for conflicting configurations.
func ValidateSettings(s *Settings) error {
	switch s.Transport {
	case "stdio", "sse":
	default:
		return errors.New("transport must be 'stdio' or 'sse', got: " + s.Transport)
	}

	if err := validateAuth(&s.Auth); err != nil {
		return err
	}
	if err := ValidateCluster(&s.Cluster); err != nil {
		return err
	}
	if err := ValidateDataset(&s.Dataset); err != nil {
		return err
	}
	if s.Search.MaxDisplayRows <= 0 {
		return errors.New("max-display-rows must be positive")
	}
	return nil
}

func validateAuth(a *AuthSettings) error {
	hasBasicCreds := a.Basic.Username != "" || a.Basic.Password != ""
	hasAPIKeys := len(a.APIKeys) > 0

	switch a.Type {
	case AuthTypeNone, "":
		if hasBasicCreds || hasAPIKeys {
			return errors.New("auth-type 'none' is incompatible with auth credentials")
		}
	case AuthTypeBasic:
		if hasAPIKeys {
			return errors.New("auth-type 'basic' is mutually exclusive with auth-api-keys")
		}
		if a.Basic.Username == "" || a.Basic.Password == "" {
			return errors.New("auth-type 'basic' requires both username and password")
		}
	case AuthTypeAPIKey:
		if hasBasicCreds {
			return errors.New("auth-type 'apikey' is mutually exclusive with basic auth credentials")
		}
		if !hasAPIKeys {
			return errors.New("auth-type 'apikey' requires at least one API key")
		}
	default:
		return errors.New("unknown auth-type: " + a.Type)
	}
	return nil
}

// ValidateCluster checks the cluster settings on their own, for processes
// that only run workers.
func ValidateCluster(c *ClusterSettings) error {
	switch c.Mode {
	case ClusterModeLocal, ClusterModeNATS:
	default:
		return fmt.Errorf("cluster-mode must be '%s' or '%s', got: %s", ClusterModeLocal, ClusterModeNATS, c.Mode)
	}
	if c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got: %d", c.Workers)
	}
	switch c.Strategy {
	case "static", "dynamic":
	default:
		return errors.New("strategy must be 'static' or 'dynamic', got: " + c.Strategy)
	}
	switch c.Partitioning {
	case "striped", "block_cyclic":
	default:
		return errors.New("partitioning must be 'striped' or 'block_cyclic', got: " + c.Partitioning)
	}
	if c.BlocksPerWorker < 1 {
		return errors.New("blocks-per-worker must be at least 1")
	}
	if c.ResultTimeout <= 0 {
		return errors.New("result-timeout must be positive")
	}
	if c.Mode == ClusterModeNATS && c.NATSURL == "" {
		return errors.New("cluster-mode 'nats' requires nats-url")
	}
	if c.SubjectPrefix == "" || strings.ContainsAny(c.SubjectPrefix, " \t*>") {
		return fmt.Errorf("subject-prefix must be a non-empty NATS token, got: %q", c.SubjectPrefix)
	}
	return nil
}

// ValidateDataset checks the dataset settings.
func ValidateDataset(d *DatasetSettings) error {
	if d.DataDir == "" {
		return errors.New("data-dir cannot be empty")
	}
	if d.MaxRowsPerFile < 0 {
		return errors.New("max-rows-per-file cannot be negative")
	}
	if d.LoadParallelism < 0 {
		return errors.New("load-parallelism cannot be negative")
	}
	if d.BuildTimeout <= 0 {
		return errors.New("build-timeout must be positive")
	}
	return nil
}
