package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-kit/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func environ(vars map[string]string) func(string) string {
	return func(key string) string {
		return vars[key]
	}
}

func completeEnv() map[string]string {
	return map[string]string{
		EnvOwner:    "octo",
		EnvRepo:     "notes",
		EnvFilePath: "data/database.json",
		EnvToken:    "ghp_secret",
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		unset   []string
		wantErr string
	}{
		{name: "all present"},
		{name: "owner missing", unset: []string{EnvOwner}, wantErr: "GITHUB_OWNER"},
		{name: "repo missing", unset: []string{EnvRepo}, wantErr: "GITHUB_REPO"},
		{name: "path missing", unset: []string{EnvFilePath}, wantErr: "GITHUB_FILEPATH"},
		{name: "token missing", unset: []string{EnvToken}, wantErr: "GITHUB_TOKEN"},
		{
			name:    "several missing",
			unset:   []string{EnvOwner, EnvToken},
			wantErr: "missing required environment variables: GITHUB_OWNER, GITHUB_TOKEN",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := completeEnv()
			for _, key := range tt.unset {
				delete(env, key)
			}

			cfg, err := LoadConfig("")
			require.NoError(t, err)
			require.NoError(t, cfg.ApplyEnv(environ(env)))

			err = cfg.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidateRejectsBadPort(t *testing.T) {
	cfg, _ := LoadConfig("")
	require.NoError(t, cfg.ApplyEnv(environ(completeEnv())))
	cfg.Port = 70000
	require.Error(t, cfg.Validate())
}

func TestApplyEnv(t *testing.T) {
	env := completeEnv()
	env[EnvFilePath] = "/data/database.json"
	env[EnvBranch] = "staging"
	env[EnvAPIURL] = "https://ghe.example.com/api/v3/"
	env[EnvTimeout] = "15s"

	cfg, _ := LoadConfig("")
	require.NoError(t, cfg.ApplyEnv(environ(env)))

	assert.Equal(t, GitHubConfig{
		Owner:    "octo",
		Repo:     "notes",
		FilePath: "data/database.json",
		Branch:   "staging",
		Token:    "ghp_secret",
		APIURL:   "https://ghe.example.com/api/v3/",
		Timeout:  15 * time.Second,
	}, cfg.GitHub)
}

func TestApplyEnvInvalidTimeout(t *testing.T) {
	env := completeEnv()
	env[EnvTimeout] = "soon"

	cfg, _ := LoadConfig("")
	require.Error(t, cfg.ApplyEnv(environ(env)))
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, 3000, cfg.Port)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, DefaultAPIURL, cfg.GitHub.APIURL)
	assert.Zero(t, cfg.GitHub.Timeout)
	assert.False(t, cfg.TLS.Enabled)
	assert.True(t, cfg.TLS.WatchCert)
	assert.Equal(t, []string{"localhost", "127.0.0.1"}, cfg.TLS.Hosts)
	assert.False(t, cfg.CORS.Enabled)
}

func TestLoadConfigFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 8080
  log_level: debug
  shutdown_timeout: 3s
github:
  owner: octo
  repo: notes
  file_path: /db.json
  branch: main
  timeout: 20s
tls:
  enabled: true
  cert_file: /etc/relay/cert.pem
  watch_cert: false
  hosts: [relay.example.com, 10.0.0.7]
cors:
  enabled: true
  allow_origins: https://app.example.com
`), 0644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 3*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, "octo", cfg.GitHub.Owner)
	assert.Equal(t, "notes", cfg.GitHub.Repo)
	assert.Equal(t, "db.json", cfg.GitHub.FilePath)
	assert.Equal(t, "main", cfg.GitHub.Branch)
	assert.Equal(t, 20*time.Second, cfg.GitHub.Timeout)
	assert.Equal(t, DefaultAPIURL, cfg.GitHub.APIURL)
	assert.True(t, cfg.TLS.Enabled)
	assert.Equal(t, "/etc/relay/cert.pem", cfg.TLS.CertFile)
	assert.Equal(t, "cert/key.pem", cfg.TLS.KeyFile)
	assert.False(t, cfg.TLS.WatchCert)
	assert.Equal(t, []string{"relay.example.com", "10.0.0.7"}, cfg.TLS.Hosts)
	assert.True(t, cfg.CORS.Enabled)
	assert.Equal(t, "https://app.example.com", cfg.CORS.AllowOrigins)
	assert.Equal(t, "GET, POST, OPTIONS", cfg.CORS.AllowMethods)
}

func TestLoadConfigErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := LoadConfig(filepath.Join(dir, "missing.yml"))
	require.Error(t, err)

	bad := filepath.Join(dir, "bad.yml")
	require.NoError(t, os.WriteFile(bad, []byte("server: [1, 2"), 0644))
	_, err = LoadConfig(bad)
	require.Error(t, err)

	badTimeout := filepath.Join(dir, "timeout.yml")
	require.NoError(t, os.WriteFile(badTimeout, []byte("github:\n  timeout: later\n"), 0644))
	_, err = LoadConfig(badTimeout)
	require.Error(t, err)
}

func TestSaveDefaultConfigRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, SaveDefaultConfig(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "# File Relay Configuration")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, defaultConfig(), cfg)
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envFile, []byte(
		"GITHUB_OWNER=octo\nGITHUB_REPO=notes\nGITHUB_FILEPATH=database.json\nGITHUB_TOKEN=from-dotenv\n",
	), 0600))

	for _, key := range []string{EnvOwner, EnvRepo, EnvFilePath, EnvBranch, EnvAPIURL, EnvTimeout} {
		unsetEnv(t, key)
	}
	// Values already in the environment win over the .env file
	t.Setenv(EnvToken, "from-env")

	cfg, err := Load(Options{
		ConfigPath: filepath.Join(dir, "absent.yml"),
		EnvFile:    envFile,
		Port:       9090,
		LogLevel:   "warn",
	}, log.NewNopLogger())
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, "from-env", cfg.GitHub.Token)
	assert.Equal(t, "octo", cfg.GitHub.Owner)
	assert.Equal(t, "notes", cfg.GitHub.Repo)
	assert.Equal(t, "database.json", cfg.GitHub.FilePath)
	require.NoError(t, cfg.Validate())
}

func TestLoadRejectsBrokenConfigFile(t *testing.T) {
	dir := t.TempDir()
	for _, key := range []string{EnvOwner, EnvRepo, EnvFilePath, EnvToken, EnvBranch, EnvAPIURL, EnvTimeout} {
		unsetEnv(t, key)
	}

	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{name: "unparsable yaml", content: "tls:\n  enabled: [true\n", wantErr: "error parsing config file"},
		{name: "wrong type", content: "tls:\n  enabled: yes please\n", wantErr: "error parsing config file"},
		{name: "bad duration", content: "server:\n  shutdown_timeout: soon\n", wantErr: "invalid shutdown_timeout"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, strings.ReplaceAll(tt.name, " ", "_")+".yml")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0644))

			cfg, err := Load(Options{ConfigPath: path, EnvFile: filepath.Join(dir, ".env")}, log.NewNopLogger())
			require.Error(t, err)
			assert.Nil(t, cfg)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

// unsetEnv clears key for the duration of the test
func unsetEnv(t *testing.T, key string) {
	t.Helper()
	prev, ok := os.LookupEnv(key)
	require.NoError(t, os.Unsetenv(key))
	t.Cleanup(func() {
		if ok {
			os.Setenv(key, prev)
		} else {
			os.Unsetenv(key)
		}
	})
}

func TestLoadEnvFileMissing(t *testing.T) {
	require.NoError(t, LoadEnvFile(filepath.Join(t.TempDir(), ".env"), log.NewNopLogger()))
	require.NoError(t, LoadEnvFile("", log.NewNopLogger()))
}

func TestLogSummaryHidesToken(t *testing.T) {
	cfg, _ := LoadConfig("")
	require.NoError(t, cfg.ApplyEnv(environ(completeEnv())))

	var buf bytes.Buffer
	cfg.LogSummary(log.NewLogfmtLogger(&buf))

	out := buf.String()
	assert.Contains(t, out, "owner=octo")
	assert.Contains(t, out, "filepath=data/database.json")
	assert.Contains(t, out, "token=loaded")
	assert.NotContains(t, out, "ghp_secret")
}
