package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFromBytesJSON(t *testing.T) {
	raw := []byte(`{
		"endpoint": "https://api.example.com",
		"api_version": "2013-02-01",
		"identity": "acme",
		"credential": "secret",
		"default_timeout": "45s",
		"timeouts": {"NodeAPI.Reboot": "2m"}
	}`)

	cfg, err := FromBytes(raw)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	require.Equal(t, "https://api.example.com", cfg.Endpoint)
	require.Equal(t, "2013-02-01", cfg.APIVersion)
	require.Equal(t, "acme", cfg.Identity)
	require.Equal(t, 45*time.Second, cfg.DefaultTimeout.Std())
	require.Equal(t, 2*time.Minute, cfg.Timeout("NodeAPI.Reboot"))
	require.Equal(t, 45*time.Second, cfg.Timeout("NodeAPI.List"))
}

func TestFromBytesYAML(t *testing.T) {
	raw := []byte(`
endpoint: https://api.example.com
default_timeout: 10s
timeouts:
  DiskAPI.Create: 1m30s
tls:
  ca_certs: dGVzdA==
trace:
  endpoint: collector:4318
`)

	cfg, err := FromBytes(raw)
	require.NoError(t, err)

	require.Equal(t, 10*time.Second, cfg.DefaultTimeout.Std())
	require.Equal(t, 90*time.Second, cfg.Timeout("DiskAPI.Create"))
	require.True(t, cfg.TLS.Defined())
	require.Equal(t, "collector:4318", cfg.Trace.Endpoint)
}

func TestFromBytesEmpty(t *testing.T) {
	_, err := FromBytes(nil)
	require.ErrorIs(t, err, ErrCfgBytesEmpty)
}

func TestFromBytesBadDuration(t *testing.T) {
	_, err := FromBytes([]byte(`{"default_timeout": "soon"}`))
	require.Error(t, err)
	require.Contains(t, err.Error(), `"soon"`)
}

func TestFromBytesDefaultTimeout(t *testing.T) {
	cfg, err := FromBytes([]byte(`{"endpoint": "https://api.example.com"}`))
	require.NoError(t, err)
	require.Equal(t, DefaultTimeout.Std(), cfg.DefaultTimeout.Std())
}

func TestValidate(t *testing.T) {
	cfg := &Config{}
	require.ErrorIs(t, cfg.Validate(), ErrEndpointEmpty)

	cfg = &Config{
		Endpoint:       "https://api.example.com",
		DefaultTimeout: Duration(time.Second),
		Timeouts:       map[string]Duration{"NodeAPI.Get": 0},
	}
	err := cfg.Validate()
	require.ErrorIs(t, err, ErrBadTimeout)
	require.Contains(t, err.Error(), "NodeAPI.Get")
}

func TestFromEnv(t *testing.T) {
	t.Setenv(EnvEndpoint, "https://env.example.com")
	t.Setenv(EnvAPIVersion, "2014-06-15")
	t.Setenv(EnvTimeout, "5s")
	t.Setenv(EnvTraceEndpoint, "collector:4318")

	cfg, err := FromEnv()
	require.NoError(t, err)

	require.Equal(t, "https://env.example.com", cfg.Endpoint)
	require.Equal(t, "2014-06-15", cfg.APIVersion)
	require.Equal(t, 5*time.Second, cfg.DefaultTimeout.Std())
	require.Equal(t, "collector:4318", cfg.Trace.Endpoint)
}

func TestFromEnvBadTimeout(t *testing.T) {
	t.Setenv(EnvTimeout, "whenever")

	_, err := FromEnv()
	require.Error(t, err)
	require.Contains(t, err.Error(), EnvTimeout)
}

func TestFromEnvConfigFileWins(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dispatch.yaml")
	require.NoError(t, os.WriteFile(path, []byte("endpoint: https://file.example.com\n"), 0o600))

	t.Setenv(EnvConfigFile, path)
	t.Setenv(EnvEndpoint, "https://env.example.com")

	cfg, err := FromEnv()
	require.NoError(t, err)
	require.Equal(t, "https://file.example.com", cfg.Endpoint)
}

func TestFromFileMissing(t *testing.T) {
	_, err := FromFile(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}

func TestDurationRoundTrip(t *testing.T) {
	d := Duration(90 * time.Second)

	raw, err := d.MarshalJSON()
	require.NoError(t, err)
	require.Equal(t, `"1m30s"`, string(raw))

	var back Duration
	require.NoError(t, back.UnmarshalJSON(raw))
	require.Equal(t, d, back)
}

func TestWatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dispatch.yaml")
	require.NoError(t, os.WriteFile(path, []byte("endpoint: https://one.example.com\n"), 0o600))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changes := make(chan *Config, 4)
	err := Watch(ctx, path, func(cfg *Config, err error) {
		if err == nil {
			changes <- cfg
		}
	})
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte("endpoint: https://two.example.com\n"), 0o600))

	select {
	case cfg := <-changes:
		require.Equal(t, "https://two.example.com", cfg.Endpoint)
	case <-time.After(5 * time.Second):
		t.Fatal("no reload observed")
	}
}
