package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultAPIURL is the public GitHub REST endpoint
const DefaultAPIURL = "https://api.github.com/"

// FileConfig represents the structure of the configuration file.
// The access token is only read from the environment.
type FileConfig struct {
	Server struct {
		Port            int    `yaml:"port"`
		LogLevel        string `yaml:"log_level"`
		ShutdownTimeout string `yaml:"shutdown_timeout"`
	} `yaml:"server"`

	GitHub struct {
		Owner    string `yaml:"owner"`
		Repo     string `yaml:"repo"`
		FilePath string `yaml:"file_path"`
		Branch   string `yaml:"branch"`
		APIURL   string `yaml:"api_url"`
		Timeout  string `yaml:"timeout"`
	} `yaml:"github"`

	TLS struct {
		Enabled      bool   `yaml:"enabled"`
		CertFile     string `yaml:"cert_file"`
		KeyFile      string `yaml:"key_file"`
		GenerateCert bool   `yaml:"generate_cert"`
		WatchCert    *bool    `yaml:"watch_cert"`
		Hosts        []string `yaml:"hosts"`
	} `yaml:"tls"`

	CORS struct {
		Enabled          bool   `yaml:"enabled"`
		AllowOrigins     string `yaml:"allow_origins"`
		AllowMethods     string `yaml:"allow_methods"`
		AllowHeaders     string `yaml:"allow_headers"`
		AllowCredentials bool   `yaml:"allow_credentials"`
		MaxAge           int    `yaml:"max_age"`
	} `yaml:"cors"`
}

// defaultConfig returns the configuration used when no file is present
func defaultConfig() *Config {
	return &Config{
		Port:            3000,
		LogLevel:        "info",
		ShutdownTimeout: 10 * time.Second,
		GitHub: GitHubConfig{
			APIURL: DefaultAPIURL,
		},
		TLS: TLSConfig{
			Enabled:      false,
			CertFile:     "cert/cert.pem",
			KeyFile:      "cert/key.pem",
			GenerateCert: false,
			WatchCert:    true,
			Hosts:        []string{"localhost", "127.0.0.1"},
		},
		CORS: CORSConfig{
			Enabled:          false,
			AllowOrigins:     "*",
			AllowMethods:     "GET, POST, OPTIONS",
			AllowHeaders:     "Content-Type, Authorization, X-Request-Id",
			AllowCredentials: false,
			MaxAge:           86400,
		},
	}
}

// LoadConfig loads configuration from a YAML file
func LoadConfig(filePath string) (*Config, error) {
	config := defaultConfig()

	// If no config file specified, return default config
	if filePath == "" {
		return config, nil
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	var fileConfig FileConfig
	if err := yaml.Unmarshal(data, &fileConfig); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	// Server settings
	if fileConfig.Server.Port != 0 {
		config.Port = fileConfig.Server.Port
	}
	if fileConfig.Server.LogLevel != "" {
		config.LogLevel = fileConfig.Server.LogLevel
	}
	if fileConfig.Server.ShutdownTimeout != "" {
		timeout, err := time.ParseDuration(fileConfig.Server.ShutdownTimeout)
		if err != nil {
			return nil, fmt.Errorf("invalid shutdown_timeout: %w", err)
		}
		config.ShutdownTimeout = timeout
	}

	// GitHub settings
	config.GitHub.Owner = fileConfig.GitHub.Owner
	config.GitHub.Repo = fileConfig.GitHub.Repo
	config.GitHub.FilePath = strings.Trim(fileConfig.GitHub.FilePath, "/")
	config.GitHub.Branch = fileConfig.GitHub.Branch
	if fileConfig.GitHub.APIURL != "" {
		if _, err := url.Parse(fileConfig.GitHub.APIURL); err != nil {
			return nil, fmt.Errorf("invalid api_url: %w", err)
		}
		config.GitHub.APIURL = fileConfig.GitHub.APIURL
	}
	if fileConfig.GitHub.Timeout != "" {
		timeout, err := time.ParseDuration(fileConfig.GitHub.Timeout)
		if err != nil {
			return nil, fmt.Errorf("invalid github timeout: %w", err)
		}
		config.GitHub.Timeout = timeout
	}

	// TLS settings
	config.TLS.Enabled = fileConfig.TLS.Enabled
	if fileConfig.TLS.CertFile != "" {
		config.TLS.CertFile = fileConfig.TLS.CertFile
	}
	if fileConfig.TLS.KeyFile != "" {
		config.TLS.KeyFile = fileConfig.TLS.KeyFile
	}
	config.TLS.GenerateCert = fileConfig.TLS.GenerateCert
	if fileConfig.TLS.WatchCert != nil {
		config.TLS.WatchCert = *fileConfig.TLS.WatchCert
	}
	if len(fileConfig.TLS.Hosts) > 0 {
		config.TLS.Hosts = fileConfig.TLS.Hosts
	}

	// CORS settings
	config.CORS.Enabled = fileConfig.CORS.Enabled
	if fileConfig.CORS.AllowOrigins != "" {
		config.CORS.AllowOrigins = fileConfig.CORS.AllowOrigins
	}
	if fileConfig.CORS.AllowMethods != "" {
		config.CORS.AllowMethods = fileConfig.CORS.AllowMethods
	}
	if fileConfig.CORS.AllowHeaders != "" {
		config.CORS.AllowHeaders = fileConfig.CORS.AllowHeaders
	}
	config.CORS.AllowCredentials = fileConfig.CORS.AllowCredentials
	if fileConfig.CORS.MaxAge != 0 {
		config.CORS.MaxAge = fileConfig.CORS.MaxAge
	}

	return config, nil
}

// SaveDefaultConfig saves a default configuration file
func SaveDefaultConfig(filePath string) error {
	defaults := defaultConfig()
	var fileConfig FileConfig

	// Server settings
	fileConfig.Server.Port = defaults.Port
	fileConfig.Server.LogLevel = defaults.LogLevel
	fileConfig.Server.ShutdownTimeout = defaults.ShutdownTimeout.String()

	// GitHub settings, identity is usually supplied through the environment
	fileConfig.GitHub.APIURL = defaults.GitHub.APIURL

	// TLS settings
	fileConfig.TLS.Enabled = defaults.TLS.Enabled
	fileConfig.TLS.CertFile = defaults.TLS.CertFile
	fileConfig.TLS.KeyFile = defaults.TLS.KeyFile
	fileConfig.TLS.GenerateCert = defaults.TLS.GenerateCert
	fileConfig.TLS.WatchCert = &defaults.TLS.WatchCert
	fileConfig.TLS.Hosts = defaults.TLS.Hosts

	// CORS settings
	fileConfig.CORS.Enabled = defaults.CORS.Enabled
	fileConfig.CORS.AllowOrigins = defaults.CORS.AllowOrigins
	fileConfig.CORS.AllowMethods = defaults.CORS.AllowMethods
	fileConfig.CORS.AllowHeaders = defaults.CORS.AllowHeaders
	fileConfig.CORS.AllowCredentials = defaults.CORS.AllowCredentials
	fileConfig.CORS.MaxAge = defaults.CORS.MaxAge

	data, err := yaml.Marshal(fileConfig)
	if err != nil {
		return fmt.Errorf("error creating default config: %w", err)
	}

	yamlWithComments := "# File Relay Configuration\n" +
		"# GITHUB_OWNER, GITHUB_REPO, GITHUB_FILEPATH and GITHUB_TOKEN are read from the\n" +
		"# environment (or a .env file) and override the github section below.\n\n" +
		string(data)

	if err := os.WriteFile(filePath, []byte(yamlWithComments), 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}
