package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"gihan9a/filerelay/internal/config"
	"gihan9a/filerelay/internal/logging"
	"gihan9a/filerelay/internal/remote"
	"gihan9a/filerelay/internal/server"
	relaytls "gihan9a/filerelay/internal/tls"
)

var rootCmd = &cobra.Command{
	Use:          "filerelay",
	Short:        "Relay GET/POST /file to a single file in a GitHub repository",
	Args:         cobra.NoArgs,
	SilenceUsage: true,
	RunE:         runServe,
}

var generateConfigCmd = &cobra.Command{
	Use:   "generate-config",
	Short: "Write a default configuration file",
	Args:  cobra.NoArgs,
	RunE:  runGenerateConfig,
}

var (
	configPath string
	envFile    string
	port       int
	logLevel   string
	outputPath string
)

func init() {
	rootCmd.Flags().StringVarP(&configPath, "config", "c", "config.yml", "Path to configuration file")
	rootCmd.Flags().StringVar(&envFile, "env-file", ".env", "Path to a .env file with GITHUB_* variables")
	rootCmd.Flags().IntVarP(&port, "port", "p", 0, "Port to listen on (overrides config)")
	rootCmd.Flags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn or error (overrides config)")

	generateConfigCmd.Flags().StringVarP(&outputPath, "output", "o", "config.yml", "Path where the config file should be written")

	rootCmd.AddCommand(generateConfigCmd)
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	bootLogger, err := logging.New(os.Stderr, "info")
	if err != nil {
		return err
	}

	cfg, err := config.Load(config.Options{
		ConfigPath: configPath,
		EnvFile:    envFile,
		Port:       port,
		LogLevel:   logLevel,
	}, bootLogger)
	if err != nil {
		return err
	}

	logger, err := logging.New(os.Stderr, cfg.LogLevel)
	if err != nil {
		return err
	}

	// Refuse to start without the file identity and token
	if err := cfg.Validate(); err != nil {
		level.Error(logger).Log("msg", "invalid configuration", "err", err)
		cfg.LogSummary(level.Error(logger))
		return err
	}
	cfg.LogSummary(level.Info(logger))

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return run(ctx, cfg, logger)
}

func runGenerateConfig(cmd *cobra.Command, args []string) error {
	if err := config.SaveDefaultConfig(outputPath); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Configuration file generated at %s\n", outputPath)
	return nil
}

// run serves the relay until ctx is cancelled, then shuts down gracefully
func run(ctx context.Context, cfg *config.Config, logger log.Logger) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	store, err := remote.NewGitHubStore(remote.GitHubOptions{
		Token:   cfg.GitHub.Token,
		APIURL:  cfg.GitHub.APIURL,
		Timeout: cfg.GitHub.Timeout,
	}, logger, reg)
	if err != nil {
		return fmt.Errorf("failed to create GitHub client: %w", err)
	}

	relay := server.NewRelayServer(cfg, store, logger, reg)
	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           relay.SetupRoutes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	// Set up the TLS certificate if needed
	scheme := "http"
	if cfg.TLS.Enabled {
		scheme = "https"
		if cfg.TLS.GenerateCert {
			certOpts := relaytls.CertificateOptions{
				CertFile: cfg.TLS.CertFile,
				KeyFile:  cfg.TLS.KeyFile,
				Hosts:    cfg.TLS.Hosts,
			}
			if err := relaytls.EnsureCertificate(certOpts, logger); err != nil {
				return fmt.Errorf("failed to set up TLS certificate: %w", err)
			}
		}

		reloader, err := relaytls.NewCertReloader(cfg.TLS.CertFile, cfg.TLS.KeyFile, logger)
		if err != nil {
			return fmt.Errorf("failed to load TLS certificate: %w", err)
		}
		httpServer.TLSConfig = reloader.TLSConfig()

		if cfg.TLS.WatchCert {
			g.Go(func() error {
				return reloader.Watch(gctx)
			})
		}
	}

	listener, err := net.Listen("tcp", httpServer.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", httpServer.Addr, err)
	}

	g.Go(func() error {
		level.Info(logger).Log("msg", fmt.Sprintf("File relay running at %s://localhost%s", scheme, httpServer.Addr))
		level.Info(logger).Log("msg", "relaying file", "owner", cfg.GitHub.Owner, "repo", cfg.GitHub.Repo, "path", cfg.GitHub.FilePath)

		var err error
		if cfg.TLS.Enabled {
			err = httpServer.ServeTLS(listener, "", "")
		} else {
			err = httpServer.Serve(listener)
		}
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})

	g.Go(func() error {
		<-gctx.Done()
		level.Info(logger).Log("msg", "shutting down", "timeout", cfg.ShutdownTimeout)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
