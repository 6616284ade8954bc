// Package tlsutil builds TLS configurations for authenticated broker
// connections.
package tlsutil

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"

	"github.com/neuroacq/sigstreams/errors"
)

// ClientConfig builds a tls.Config for a client connection. certFile and
// keyFile load the client certificate pair and must be given together;
// caFile adds a trusted CA on top of the system pool. Empty paths skip
// their part.
func ClientConfig(certFile, keyFile, caFile string) (*tls.Config, error) {
	if (certFile == "") != (keyFile == "") {
		return nil, errors.WrapInvalid(errors.ErrInvalidConfig, "tlsutil", "ClientConfig",
			"cert and key files must be set together")
	}

	cfg := &tls.Config{MinVersion: tls.VersionTLS12}

	if certFile != "" {
		cert, err := tls.LoadX509KeyPair(certFile, keyFile)
		if err != nil {
			return nil, errors.WrapFatal(err, "tlsutil", "ClientConfig", "load client certificate")
		}
		cfg.Certificates = []tls.Certificate{cert}
	}

	rootCAs, err := x509.SystemCertPool()
	if err != nil {
		rootCAs = x509.NewCertPool()
	}
	if caFile != "" {
		caPEM, err := os.ReadFile(caFile)
		if err != nil {
			return nil, errors.WrapFatal(err, "tlsutil", "ClientConfig",
				fmt.Sprintf("read CA file %s", caFile))
		}
		if !rootCAs.AppendCertsFromPEM(caPEM) {
			return nil, errors.WrapFatal(fmt.Errorf("invalid PEM data"),
				"tlsutil", "ClientConfig",
				fmt.Sprintf("parse CA certificate from %s", caFile))
		}
	}
	cfg.RootCAs = rootCAs

	return cfg, nil
}
