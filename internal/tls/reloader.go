package tls

import (
	"context"
	cryptotls "crypto/tls"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
)

// CertReloader serves the most recently loaded key pair and reloads it when
// the certificate or key file changes on disk
type CertReloader struct {
	certFile string
	keyFile  string
	logger   log.Logger

	mu   sync.RWMutex
	cert *cryptotls.Certificate
}

// NewCertReloader loads the key pair once and returns a reloader for it
func NewCertReloader(certFile, keyFile string, logger log.Logger) (*CertReloader, error) {
	r := &CertReloader{
		certFile: filepath.Clean(certFile),
		keyFile:  filepath.Clean(keyFile),
		logger:   logger,
	}
	if err := r.reload(); err != nil {
		return nil, err
	}
	return r, nil
}

// GetCertificate implements the crypto/tls certificate callback
func (r *CertReloader) GetCertificate(*cryptotls.ClientHelloInfo) (*cryptotls.Certificate, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.cert, nil
}

// TLSConfig returns a server TLS configuration backed by the reloader
func (r *CertReloader) TLSConfig() *cryptotls.Config {
	return &cryptotls.Config{
		MinVersion:     cryptotls.VersionTLS12,
		GetCertificate: r.GetCertificate,
	}
}

// Watch reloads the key pair whenever either file is written or replaced.
// It blocks until ctx is cancelled.
func (r *CertReloader) Watch(ctx context.Context) error {
	watcher, err := r.newWatcher()
	if err != nil {
		return err
	}
	r.run(ctx, watcher)
	return nil
}

func (r *CertReloader) reload() error {
	cert, err := cryptotls.LoadX509KeyPair(r.certFile, r.keyFile)
	if err != nil {
		return fmt.Errorf("failed to load key pair: %w", err)
	}

	r.mu.Lock()
	r.cert = &cert
	r.mu.Unlock()
	return nil
}

// newWatcher watches the directories holding the key pair, so that files
// replaced by rename are still noticed
func (r *CertReloader) newWatcher() (*fsnotify.Watcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	dirs := map[string]struct{}{
		filepath.Dir(r.certFile): {},
		filepath.Dir(r.keyFile):  {},
	}
	for dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			watcher.Close()
			return nil, fmt.Errorf("failed to watch %s: %w", dir, err)
		}
	}
	return watcher, nil
}

func (r *CertReloader) run(ctx context.Context, watcher *fsnotify.Watcher) {
	defer watcher.Close()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}

			// Only writes and creates of the key pair matter
			if !r.isKeyPairFile(event.Name) || !(event.Has(fsnotify.Write) || event.Has(fsnotify.Create)) {
				continue
			}

			// A half-rotated pair fails to load; the next event retries
			if err := r.reload(); err != nil {
				level.Warn(r.logger).Log("msg", "keeping previous certificate", "file", event.Name, "err", err)
				continue
			}
			level.Info(r.logger).Log("msg", "reloaded certificate", "file", event.Name)

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			level.Error(r.logger).Log("msg", "watcher error", "err", err)
		}
	}
}

func (r *CertReloader) isKeyPairFile(name string) bool {
	name = filepath.Clean(name)
	return name == r.certFile || name == r.keyFile
}
