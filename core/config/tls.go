package config

import (
	"crypto/tls"
	"crypto/x509"
	"encoding/base64"
	"errors"
	"fmt"
)

// ClientConfig materializes the certificate material into a *tls.Config
// usable by client transports.
func (t *TLS) ClientConfig() (*tls.Config, error) {
	tlsConfig := &tls.Config{MinVersion: tls.VersionTLS12}

	if t.CACertsBase64 != "" {
		caCerts, err := base64.StdEncoding.DecodeString(t.CACertsBase64)
		if err != nil {
			return nil, fmt.Errorf("decoding CA certificates: %w", err)
		}

		pool := x509.NewCertPool()
		if ok := pool.AppendCertsFromPEM(caCerts); !ok {
			return nil, errors.New("no CA certificates parsed from PEM")
		}
		tlsConfig.RootCAs = pool
	}

	if t.CertBase64 != "" || t.KeyBase64 != "" {
		certPEM, err := base64.StdEncoding.DecodeString(t.CertBase64)
		if err != nil {
			return nil, fmt.Errorf("decoding client certificate: %w", err)
		}
		keyPEM, err := base64.StdEncoding.DecodeString(t.KeyBase64)
		if err != nil {
			return nil, fmt.Errorf("decoding client key: %w", err)
		}

		cert, err := tls.X509KeyPair(certPEM, keyPEM)
		if err != nil {
			return nil, fmt.Errorf("loading client key pair: %w", err)
		}
		tlsConfig.Certificates = []tls.Certificate{cert}
	}

	return tlsConfig, nil
}
