package tls

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
)

// ErrNoCertificate is returned when TLS is enabled without certificate
// files and auto-generation is off.
var ErrNoCertificate = errors.New("tls: enabled but no certificate provided and auto-generation disabled")

// LoadTLSConfig builds the listener config. It returns nil, nil when TLS
// is disabled.
func LoadTLSConfig(cfg Config) (*tls.Config, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	var (
		cert tls.Certificate
		err  error
	)
	switch {
	case cfg.CertFile != "" && cfg.KeyFile != "":
		cert, err = tls.LoadX509KeyPair(cfg.CertFile, cfg.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("load TLS certificate: %w", err)
		}
	case cfg.AutoGenerate:
		cert, err = GenerateSelfSignedCert(cfg.Hosts, cfg.ValidFor)
		if err != nil {
			return nil, fmt.Errorf("generate self-signed certificate: %w", err)
		}
	default:
		return nil, ErrNoCertificate
	}

	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
		CipherSuites: SecureCipherSuites(),
	}, nil
}

// Info describes the first certificate in tc.
func Info(tc *tls.Config) (*CertificateInfo, error) {
	if tc == nil || len(tc.Certificates) == 0 || len(tc.Certificates[0].Certificate) == 0 {
		return nil, ErrNoCertificate
	}
	leaf := tc.Certificates[0].Leaf
	if leaf == nil {
		var err error
		leaf, err = x509.ParseCertificate(tc.Certificates[0].Certificate[0])
		if err != nil {
			return nil, fmt.Errorf("parse certificate: %w", err)
		}
	}
	return &CertificateInfo{
		Subject:    leaf.Subject.String(),
		Issuer:     leaf.Issuer.String(),
		NotBefore:  leaf.NotBefore,
		NotAfter:   leaf.NotAfter,
		DNSNames:   leaf.DNSNames,
		SelfSigned: leaf.Subject.String() == leaf.Issuer.String(),
	}, nil
}
