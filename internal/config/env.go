package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/joho/godotenv"
)

// Environment variables read at startup
const (
	EnvOwner    = "GITHUB_OWNER"
	EnvRepo     = "GITHUB_REPO"
	EnvFilePath = "GITHUB_FILEPATH"
	EnvToken    = "GITHUB_TOKEN"
	EnvBranch   = "GITHUB_BRANCH"
	EnvAPIURL   = "GITHUB_API_URL"
	EnvTimeout  = "GITHUB_TIMEOUT"
)

// LoadEnvFile loads variables from a .env file into the process
// environment. Variables that are already set are left alone and a missing
// file is not an error.
func LoadEnvFile(path string, logger log.Logger) error {
	if path == "" {
		return nil
	}

	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			level.Debug(logger).Log("msg", "no env file found", "path", path)
			return nil
		}
		return fmt.Errorf("error loading env file %s: %w", path, err)
	}

	level.Debug(logger).Log("msg", "loaded env file", "path", path)
	return nil
}

// ApplyEnv overrides GitHub settings with non-empty environment values
func (c *Config) ApplyEnv(getenv func(string) string) error {
	lookup := func(key string) string {
		return strings.TrimSpace(getenv(key))
	}

	if v := lookup(EnvOwner); v != "" {
		c.GitHub.Owner = v
	}
	if v := lookup(EnvRepo); v != "" {
		c.GitHub.Repo = v
	}
	if v := lookup(EnvFilePath); v != "" {
		c.GitHub.FilePath = strings.Trim(v, "/")
	}
	if v := lookup(EnvToken); v != "" {
		c.GitHub.Token = v
	}
	if v := lookup(EnvBranch); v != "" {
		c.GitHub.Branch = v
	}
	if v := lookup(EnvAPIURL); v != "" {
		c.GitHub.APIURL = v
	}
	if v := lookup(EnvTimeout); v != "" {
		timeout, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvTimeout, err)
		}
		c.GitHub.Timeout = timeout
	}

	return nil
}
