package tls

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"errors"
	"fmt"
	"io/fs"
	"math/big"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
)

const (
	certDirMode  fs.FileMode = 0755
	certFileMode fs.FileMode = 0644
	keyFileMode  fs.FileMode = 0600

	defaultValidity = 365 * 24 * time.Hour
)

// DefaultHosts are the names a generated certificate is valid for when none are configured
var DefaultHosts = []string{"localhost", "127.0.0.1"}

// CertificateOptions describes the key pair served by the relay
type CertificateOptions struct {
	CertFile string
	KeyFile  string
	// Hosts become the certificate's DNS and IP subject alternative names.
	// The first one is also the common name.
	Hosts    []string
	ValidFor time.Duration
}

func (o CertificateOptions) hosts() []string {
	if len(o.Hosts) == 0 {
		return DefaultHosts
	}
	return o.Hosts
}

// EnsureCertificate keeps an existing key pair and otherwise writes a new
// self-signed one for opts.Hosts
func EnsureCertificate(opts CertificateOptions, logger log.Logger) error {
	certExists, err := fileExists(opts.CertFile)
	if err != nil {
		return err
	}
	keyExists, err := fileExists(opts.KeyFile)
	if err != nil {
		return err
	}

	if certExists && keyExists {
		level.Info(logger).Log("msg", "using existing certificate files", "cert", opts.CertFile, "key", opts.KeyFile)
		return nil
	}
	return generateSelfSignedCert(opts, logger)
}

func fileExists(path string) (bool, error) {
	_, err := os.Stat(path)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	default:
		return false, fmt.Errorf("failed to stat %s: %w", path, err)
	}
}

// generateSelfSignedCert writes a fresh ECDSA P-256 key and a certificate
// signed by it. The key is written first so a watcher that sees the
// certificate change can load a matching pair.
func generateSelfSignedCert(opts CertificateOptions, logger log.Logger) error {
	hosts := opts.hosts()
	level.Info(logger).Log("msg", "generating self-signed certificate", "hosts", fmt.Sprint(hosts))

	privateKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return fmt.Errorf("failed to generate private key: %w", err)
	}

	template, err := certificateTemplate(hosts, opts.ValidFor)
	if err != nil {
		return err
	}

	derBytes, err := x509.CreateCertificate(rand.Reader, template, template, &privateKey.PublicKey, privateKey)
	if err != nil {
		return fmt.Errorf("failed to create certificate: %w", err)
	}

	keyBytes, err := x509.MarshalPKCS8PrivateKey(privateKey)
	if err != nil {
		return fmt.Errorf("failed to encode private key: %w", err)
	}

	if err := writePEM(opts.KeyFile, keyFileMode, &pem.Block{Type: "PRIVATE KEY", Bytes: keyBytes}); err != nil {
		return err
	}
	if err := writePEM(opts.CertFile, certFileMode, &pem.Block{Type: "CERTIFICATE", Bytes: derBytes}); err != nil {
		return err
	}

	level.Info(logger).Log("msg", "generated self-signed certificate", "cert", opts.CertFile, "key", opts.KeyFile, "expires", template.NotAfter.Format(time.RFC3339))
	return nil
}

// certificateTemplate builds a server certificate valid for hosts, which may
// mix DNS names and IP addresses
func certificateTemplate(hosts []string, validFor time.Duration) (*x509.Certificate, error) {
	if validFor <= 0 {
		validFor = defaultValidity
	}

	serialNumber, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return nil, fmt.Errorf("failed to generate serial number: %w", err)
	}

	notBefore := time.Now()
	template := &x509.Certificate{
		SerialNumber: serialNumber,
		Subject: pkix.Name{
			Organization: []string{"File Relay"},
			CommonName:   hosts[0],
		},
		NotBefore:             notBefore,
		NotAfter:              notBefore.Add(validFor),
		KeyUsage:              x509.KeyUsageDigitalSignature,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
	}

	for _, host := range hosts {
		if ip := net.ParseIP(host); ip != nil {
			template.IPAddresses = append(template.IPAddresses, ip)
		} else {
			template.DNSNames = append(template.DNSNames, host)
		}
	}

	return template, nil
}

// writePEM replaces path with block, creating the parent directory if needed
func writePEM(path string, mode fs.FileMode, block *pem.Block) error {
	if err := os.MkdirAll(filepath.Dir(path), certDirMode); err != nil {
		return fmt.Errorf("failed to create certificate directory: %w", err)
	}

	out, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode)
	if err != nil {
		return fmt.Errorf("failed to open %s for writing: %w", path, err)
	}

	if err := pem.Encode(out, block); err != nil {
		out.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return out.Close()
}
