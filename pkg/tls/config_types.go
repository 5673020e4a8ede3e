package tls

import (
	"crypto/tls"
	"time"
)

// Config selects how the HTTP listener obtains its certificate.
type Config struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`

	// AutoGenerate creates an in-memory self-signed certificate when no
	// files are given. Intended for local use only.
	AutoGenerate bool          `yaml:"auto_generate"`
	Hosts        []string      `yaml:"hosts"`
	ValidFor     time.Duration `yaml:"valid_for" validate:"gte=0"`
}

// DefaultConfig returns TLS disabled with self-signed fallback for localhost.
func DefaultConfig() Config {
	return Config{
		AutoGenerate: true,
		Hosts:        []string{"localhost", "127.0.0.1"},
		ValidFor:     90 * 24 * time.Hour,
	}
}

// CertificateInfo holds certificate metadata
type CertificateInfo struct {
	Subject    string
	Issuer     string
	NotBefore  time.Time
	NotAfter   time.Time
	DNSNames   []string
	SelfSigned bool
}

// ExpiresIn returns the time from now until expiry.
func (ci *CertificateInfo) ExpiresIn(now time.Time) time.Duration {
	return ci.NotAfter.Sub(now)
}

// SecureCipherSuites returns the TLS 1.2 suites offered. TLS 1.3 suites
// are not configurable.
func SecureCipherSuites() []uint16 {
	return []uint16{
		tls.TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256,
		tls.TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256,
		tls.TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384,
		tls.TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384,
		tls.TLS_ECDHE_ECDSA_WITH_CHACHA20_POLY1305_SHA256,
		tls.TLS_ECDHE_RSA_WITH_CHACHA20_POLY1305_SHA256,
	}
}
