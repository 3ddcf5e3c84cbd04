// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package server

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"net"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"codeberg.org/oliverandrich/donations/internal/config"
	"golang.org/x/crypto/acme/autocert"
)

// TLSMode is the resolved way the API terminates TLS.
type TLSMode string

const (
	TLSModeOff        TLSMode = "off"
	TLSModeACME       TLSMode = "acme"
	TLSModeSelfSigned TLSMode = "selfsigned"
	TLSModeManual     TLSMode = "manual"
)

// certRenewWindow is how long before expiry a self-signed certificate is
// regenerated.
const certRenewWindow = 30 * 24 * time.Hour

var (
	errACMEEmail     = errors.New("acme mode requires tls.email")
	errManualFiles   = errors.New("manual mode requires tls.cert_file and tls.key_file")
	errACMEPortInUse = errors.New("acme mode requires ports 80 and 443")
)

// portAvailable reports whether a TCP port can be bound. Replaced in tests.
var portAvailable = func(port int) bool {
	lc := &net.ListenConfig{}
	ln, err := lc.Listen(context.Background(), "tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return false
	}
	_ = ln.Close()
	return true
}

// TLSResult is the listener configuration for the resolved mode.
type TLSResult struct {
	TLSConfig   *tls.Config
	CertManager *autocert.Manager // acme only
	HTTPHandler http.Handler      // acme only, answers HTTP-01 challenges and redirects
	Mode        TLSMode
}

// SetupTLS resolves the TLS mode and loads or creates the certificate.
func SetupTLS(cfg *config.Config) (*TLSResult, error) {
	mode := resolveTLSMode(cfg)
	slog.Info("tls_mode", "mode", mode, "host", cfg.Server.Host)

	switch mode {
	case TLSModeOff:
		return &TLSResult{Mode: TLSModeOff}, nil
	case TLSModeACME:
		if err := validateACME(cfg); err != nil {
			return nil, err
		}
		return setupACME(cfg)
	case TLSModeSelfSigned:
		return setupSelfSigned(cfg)
	case TLSModeManual:
		return setupManual(cfg)
	default:
		return nil, fmt.Errorf("unknown TLS mode: %s", mode)
	}
}

// resolveTLSMode applies an explicit tls.mode, or picks one for "auto":
// localhost runs plain HTTP, configured files mean manual, a public DNS name
// with an ACME e-mail and free ports means Let's Encrypt, anything else a
// self-signed certificate.
func resolveTLSMode(cfg *config.Config) TLSMode {
	switch mode := strings.ToLower(strings.TrimSpace(cfg.TLS.Mode)); mode {
	case "off":
		return TLSModeOff
	case "acme":
		return TLSModeACME
	case "selfsigned":
		return TLSModeSelfSigned
	case "manual":
		return TLSModeManual
	case "auto", "":
	default:
		slog.Warn("tls_mode_unknown", "mode", mode, "fallback", "auto")
	}

	host := cfg.Server.Host
	switch {
	case config.IsLocalhost(host):
		return TLSModeOff
	case cfg.TLS.CertFile != "" && cfg.TLS.KeyFile != "":
		return TLSModeManual
	case canUseACME(cfg):
		return TLSModeACME
	default:
		return TLSModeSelfSigned
	}
}

func validateACME(cfg *config.Config) error {
	if cfg.Server.Port != 443 {
		slog.Warn("acme_port_ignored", "configured_port", cfg.Server.Port)
	}
	if cfg.TLS.Email == "" {
		return errACMEEmail
	}
	if !portAvailable(80) || !portAvailable(443) {
		return errACMEPortInUse
	}
	return nil
}

// canUseACME rejects IP addresses, which Let's Encrypt does not certify.
func canUseACME(cfg *config.Config) bool {
	host := cfg.Server.Host
	if config.IsLocalhost(host) || net.ParseIP(host) != nil || cfg.TLS.Email == "" {
		return false
	}
	return portAvailable(80) && portAvailable(443)
}

// acmeHosts lists the names certificates are issued for: the listen host and
// the host of the public base URL when it differs.
func acmeHosts(cfg *config.Config) []string {
	hosts := []string{cfg.Server.Host}
	if u, err := url.Parse(cfg.Server.BaseURL); err == nil {
		if h := u.Hostname(); h != "" && h != cfg.Server.Host {
			hosts = append(hosts, h)
		}
	}
	return hosts
}

func setupACME(cfg *config.Config) (*TLSResult, error) {
	certDir := filepath.Join(cfg.TLS.CertDir, "acme")
	if err := os.MkdirAll(certDir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create ACME cert directory: %w", err)
	}

	hosts := acmeHosts(cfg)
	manager := &autocert.Manager{
		Prompt:     autocert.AcceptTOS,
		Email:      cfg.TLS.Email,
		Cache:      autocert.DirCache(certDir),
		HostPolicy: autocert.HostWhitelist(hosts...),
	}

	tlsConfig := manager.TLSConfig()
	tlsConfig.MinVersion = tls.VersionTLS12

	slog.Info("acme_enabled", "hosts", hosts, "email", cfg.TLS.Email)
	return &TLSResult{
		Mode:        TLSModeACME,
		TLSConfig:   tlsConfig,
		CertManager: manager,
		HTTPHandler: manager.HTTPHandler(nil),
	}, nil
}

// setupSelfSigned reuses the certificate in <cert_dir>/selfsigned until it
// is close to expiry.
func setupSelfSigned(cfg *config.Config) (*TLSResult, error) {
	certDir := filepath.Join(cfg.TLS.CertDir, "selfsigned")
	if err := os.MkdirAll(certDir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create self-signed cert directory: %w", err)
	}
	certFile := filepath.Join(certDir, "cert.pem")
	keyFile := filepath.Join(certDir, "key.pem")

	cert, err := tls.LoadX509KeyPair(certFile, keyFile)
	switch {
	case err == nil && !expiresWithin(&cert, certRenewWindow):
		slog.Info("selfsigned_cert_reused", "sha256", fingerprint(&cert))
		return &TLSResult{Mode: TLSModeSelfSigned, TLSConfig: newTLSConfig(&cert)}, nil
	case err == nil:
		slog.Info("selfsigned_cert_expiring", "file", certFile)
	case !errors.Is(err, os.ErrNotExist):
		slog.Warn("selfsigned_cert_invalid", "error", err)
	}

	generated, err := generateSelfSignedCert(cfg.Server.Host, certFile, keyFile)
	if err != nil {
		return nil, err
	}
	slog.Warn("selfsigned_cert_created",
		"sha256", fingerprint(generated),
		"hint", "API clients must trust this certificate",
	)
	return &TLSResult{Mode: TLSModeSelfSigned, TLSConfig: newTLSConfig(generated)}, nil
}

func setupManual(cfg *config.Config) (*TLSResult, error) {
	certFile, keyFile := cfg.TLS.CertFile, cfg.TLS.KeyFile
	if certFile == "" || keyFile == "" {
		return nil, errManualFiles
	}

	cert, err := tls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load certificate: %w", err)
	}

	if leaf, parseErr := x509.ParseCertificate(cert.Certificate[0]); parseErr == nil {
		if hostErr := leaf.VerifyHostname(cfg.Server.Host); hostErr != nil {
			slog.Warn("manual_cert_host_mismatch", "host", cfg.Server.Host, "error", hostErr)
		}
	}

	slog.Info("manual_cert_loaded", "cert", certFile, "sha256", fingerprint(&cert))
	return &TLSResult{Mode: TLSModeManual, TLSConfig: newTLSConfig(&cert)}, nil
}

// generateSelfSignedCert writes a one year ECDSA P-256 certificate for host
// and localhost to certFile and keyFile.
func generateSelfSignedCert(host, certFile, keyFile string) (*tls.Certificate, error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate private key: %w", err)
	}
	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return nil, fmt.Errorf("failed to generate serial number: %w", err)
	}

	now := time.Now()
	template := x509.Certificate{
		SerialNumber:          serial,
		Subject:               pkix.Name{Organization: []string{"Donations API"}, CommonName: host},
		NotBefore:             now,
		NotAfter:              now.Add(365 * 24 * time.Hour),
		KeyUsage:              x509.KeyUsageKeyEncipherment | x509.KeyUsageDigitalSignature,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
		DNSNames:              []string{"localhost"},
		IPAddresses:           []net.IP{net.ParseIP("127.0.0.1"), net.ParseIP("::1")},
	}
	if ip := net.ParseIP(host); ip != nil {
		template.IPAddresses = append(template.IPAddresses, ip)
	} else if host != "" && host != "localhost" {
		template.DNSNames = append(template.DNSNames, host)
	}

	der, err := x509.CreateCertificate(rand.Reader, &template, &template, &key.PublicKey, key)
	if err != nil {
		return nil, fmt.Errorf("failed to create certificate: %w", err)
	}
	keyDER, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal private key: %w", err)
	}

	if err := writePEM(certFile, "CERTIFICATE", der); err != nil {
		return nil, err
	}
	if err := writePEM(keyFile, "EC PRIVATE KEY", keyDER); err != nil {
		return nil, err
	}

	cert, err := tls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load generated cert: %w", err)
	}
	return &cert, nil
}

func writePEM(path, blockType string, der []byte) error {
	data := pem.EncodeToMemory(&pem.Block{Type: blockType, Bytes: der})
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

func expiresWithin(cert *tls.Certificate, window time.Duration) bool {
	if len(cert.Certificate) == 0 {
		return true
	}
	leaf, err := x509.ParseCertificate(cert.Certificate[0])
	if err != nil {
		return true
	}
	return time.Until(leaf.NotAfter) < window
}

// fingerprint returns the colon separated SHA-256 of the leaf certificate.
func fingerprint(cert *tls.Certificate) string {
	if len(cert.Certificate) == 0 {
		return ""
	}
	sum := sha256.Sum256(cert.Certificate[0])
	parts := make([]string, len(sum))
	for i, b := range sum {
		parts[i] = fmt.Sprintf("%02X", b)
	}
	return strings.Join(parts, ":")
}

func newTLSConfig(cert *tls.Certificate) *tls.Config {
	return &tls.Config{
		Certificates: []tls.Certificate{*cert},
		MinVersion:   tls.VersionTLS12,
	}
}
