package rest

import (
	"context"
	"crypto/tls"
	"net"
	"net/http"

	"golang.org/x/net/http2"

	"github.com/strataline/dispatch/core/config"
)

// BuildHTTP2Client returns an HTTP/2 client. With certificate material the
// connection is TLS; without it the client speaks h2c for plaintext
// endpoints.
func BuildHTTP2Client(settings *config.TLS) (*http.Client, error) {
	if !settings.Defined() {
		return &http.Client{
			Transport: &http2.Transport{
				AllowHTTP: true,
				DialTLSContext: func(ctx context.Context, network, addr string, _ *tls.Config) (net.Conn, error) {
					var d net.Dialer
					return d.DialContext(ctx, network, addr)
				},
			},
		}, nil
	}

	tlsConfig, err := settings.ClientConfig()
	if err != nil {
		return nil, err
	}

	return &http.Client{
		Transport: &http2.Transport{TLSClientConfig: tlsConfig},
	}, nil
}
