package telemetry

import (
	"crypto/tls"
	"crypto/x509"
	"encoding/base64"
	"errors"
	"fmt"
)

func collectorTLSConfig(caCertsBase64 string) (*tls.Config, error) {
	caCertsBytes, err := base64.StdEncoding.DecodeString(caCertsBase64)
	if err != nil {
		return nil, fmt.Errorf("decoding collector CA certificates: %w", err)
	}

	caCertPool := x509.NewCertPool()
	if ok := caCertPool.AppendCertsFromPEM(caCertsBytes); !ok {
		return nil, errors.New("no CA certificates parsed from PEM")
	}

	return &tls.Config{
		RootCAs: caCertPool,
	}, nil
}
