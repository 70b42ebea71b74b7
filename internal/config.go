package internal

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/viper"
)

type AppConfig struct {
	APIURL          string `mapstructure:"api_url"`
	LoginURL        string `mapstructure:"login_url"`
	APIKey          string `mapstructure:"api_key"`
	UserAgent       string `mapstructure:"user_agent"`
	StateFile       string `mapstructure:"state_file"`
	CredentialsFile string `mapstructure:"credentials_file"`
	ChunkSize       uint64 `mapstructure:"chunk_size"`
	ChunkThreshold  uint64 `mapstructure:"chunk_threshold"`
	MaxRetries      uint   `mapstructure:"max_retries"`
	RetryBackoffMs  uint   `mapstructure:"retry_backoff_ms"`
	PathSeparator   string `mapstructure:"path_separator"`
	ClientUuid      string `mapstructure:"client_uuid"`
	LogLevel        string `mapstructure:"log_level"`
}

func LoadAppConfig(configPath string) (*AppConfig, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}

	v, err := initViper(configPath, filepath.Join(home, ".degoo"), "cli_config", "toml", "DEGOO_CLI")
	if err != nil {
		return nil, err
	}

	// Defaults
	v.SetDefault("api_url", "https://production-appsync.degoo.com/graphql")
	v.SetDefault("login_url", "https://rest-api.degoo.com/login")
	v.SetDefault("api_key", "da2-vs6twz5vnjdavpqndtbzg3prra")
	v.SetDefault("user_agent", "Degoo-client/0.3")
	v.SetDefault("state_file", filepath.Join(home, ".degoo", "state.toml"))
	v.SetDefault("credentials_file", filepath.Join(home, ".degoo", "credentials.toml"))
	v.SetDefault("chunk_size", uint64(4<<20))
	v.SetDefault("chunk_threshold", uint64(4<<20))
	v.SetDefault("max_retries", 3)
	v.SetDefault("retry_backoff_ms", 500)
	v.SetDefault("path_separator", string(os.PathSeparator))
	v.SetDefault("client_uuid", uuid.New().String())
	v.SetDefault("log_level", "info")

	var cfg AppConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	// expand paths
	cfg.StateFile = expandPath(cfg.StateFile)
	cfg.CredentialsFile = expandPath(cfg.CredentialsFile)

	// Create-on-first-run ONLY (no config file exists yet).
	writePath := configPath
	if writePath == "" {
		writePath = filepath.Join(home, ".degoo", "cli_config.toml")
	}
	if _, statErr := os.Stat(writePath); errors.Is(statErr, os.ErrNotExist) {
		if _, err := cfg.Save(writePath); err != nil {
			return nil, fmt.Errorf("persist default app config: %w", err)
		}
		Info("client config written", Fields{
			ConfigPath: writePath,
		})
	}

	return &cfg, nil
}

func (cfg *AppConfig) Save(path string) (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	if path == "" {
		path = filepath.Join(home, ".degoo", "cli_config.toml")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", err
	}

	v := viper.New()
	v.SetConfigType("toml")
	v.Set("api_url", cfg.APIURL)
	v.Set("login_url", cfg.LoginURL)
	v.Set("api_key", cfg.APIKey)
	v.Set("user_agent", cfg.UserAgent)
	v.Set("state_file", cfg.StateFile)
	v.Set("credentials_file", cfg.CredentialsFile)
	v.Set("chunk_size", cfg.ChunkSize)
	v.Set("chunk_threshold", cfg.ChunkThreshold)
	v.Set("max_retries", cfg.MaxRetries)
	v.Set("retry_backoff_ms", cfg.RetryBackoffMs)
	v.Set("path_separator", cfg.PathSeparator)
	v.Set("client_uuid", cfg.ClientUuid)
	v.Set("log_level", cfg.LogLevel)

	if err := v.WriteConfigAs(path); err != nil {
		return "", fmt.Errorf("write app config: %w", err)
	}
	_ = os.Chmod(path, 0o600)
	return path, nil
}

func initViper(configPath, defaultDir, defaultName, defaultType, envPrefix string) (*viper.Viper, error) {
	v := viper.New()
	v.SetConfigType(defaultType)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(defaultDir)
		v.AddConfigPath(".")
		v.SetConfigName(defaultName)
	}

	if err := v.ReadInConfig(); err != nil {
		// A missing file means first run; anything else is a real problem.
		_, notFound := err.(viper.ConfigFileNotFoundError)
		if !notFound && !os.IsNotExist(err) {
			Error("failed to read config file", Fields{
				ConfigPath: configPath,
			})
			return nil, fmt.Errorf("read config: %w", err)
		}
	}
	return v, nil
}

func expandPath(p string) string {
	if p == "" {
		return p
	}
	p = os.ExpandEnv(p)
	if strings.HasPrefix(p, "~") {
		if home, err := os.UserHomeDir(); err == nil {
			p = filepath.Join(home, strings.TrimPrefix(p, "~"))
		}
	}
	return p
}
