package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
)

// TLSConfig holds TLS configuration options
type TLSConfig struct {
	Enabled      bool
	CertFile     string
	KeyFile      string
	GenerateCert bool
	WatchCert    bool
	Hosts        []string // names a generated certificate is valid for
}

// CORSConfig holds CORS configuration options
type CORSConfig struct {
	Enabled          bool
	AllowOrigins     string
	AllowMethods     string
	AllowHeaders     string
	AllowCredentials bool
	MaxAge           int
}

// GitHubConfig identifies the relayed file and how to reach it
type GitHubConfig struct {
	Owner    string
	Repo     string
	FilePath string
	Branch   string
	Token    string
	APIURL   string
	Timeout  time.Duration
}

// Config holds the application configuration
type Config struct {
	Port            int
	LogLevel        string
	ShutdownTimeout time.Duration
	GitHub          GitHubConfig
	TLS             TLSConfig
	CORS            CORSConfig
}

// Options carries command line values that take precedence over the
// config file and the environment
type Options struct {
	ConfigPath string
	EnvFile    string
	Port       int
	LogLevel   string
}

// Load builds the configuration from defaults, the YAML file, the .env
// file, the process environment and finally the command line, in that order
// of increasing precedence. The result is not validated.
func Load(opts Options, logger log.Logger) (*Config, error) {
	if err := LoadEnvFile(opts.EnvFile, logger); err != nil {
		return nil, err
	}

	// Only an absent file falls back to defaults
	config, err := LoadConfig(opts.ConfigPath)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		level.Warn(logger).Log("msg", "config file not found, using default configuration", "path", opts.ConfigPath)
		config, _ = LoadConfig("")
	case err != nil:
		return nil, err
	}

	if err := config.ApplyEnv(os.Getenv); err != nil {
		return nil, err
	}

	if opts.Port != 0 {
		config.Port = opts.Port
	}
	if opts.LogLevel != "" {
		config.LogLevel = opts.LogLevel
	}

	return config, nil
}

// Validate reports every required setting that is missing
func (c *Config) Validate() error {
	var missing []string
	if c.GitHub.Owner == "" {
		missing = append(missing, EnvOwner)
	}
	if c.GitHub.Repo == "" {
		missing = append(missing, EnvRepo)
	}
	if c.GitHub.FilePath == "" {
		missing = append(missing, EnvFilePath)
	}
	if c.GitHub.Token == "" {
		missing = append(missing, EnvToken)
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required environment variables: %s", strings.Join(missing, ", "))
	}

	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.GitHub.Timeout < 0 {
		return errors.New("github timeout must not be negative")
	}
	return nil
}

// LogSummary logs the resolved file identity. The token is only reported
// as loaded or missing.
func (c *Config) LogSummary(logger log.Logger) {
	token := "missing"
	if c.GitHub.Token != "" {
		token = "loaded"
	}
	logger.Log(
		"msg", "github configuration",
		"owner", c.GitHub.Owner,
		"repo", c.GitHub.Repo,
		"filepath", c.GitHub.FilePath,
		"branch", c.GitHub.Branch,
		"token", token,
	)
}
