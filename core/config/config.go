// Package config carries client configuration: endpoint, credentials,
// per-operation deadlines and the TLS/trace material invokers consume.
// Configuration arrives as JSON or YAML bytes, a file, or environment
// variables.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment variables read by FromEnv.
const (
	EnvConfigFile    = "DISPATCH_CONFIG_FILE"
	EnvEndpoint      = "DISPATCH_ENDPOINT"
	EnvAPIVersion    = "DISPATCH_API_VERSION"
	EnvIdentity      = "DISPATCH_IDENTITY"
	EnvCredential    = "DISPATCH_CREDENTIAL"
	EnvTimeout       = "DISPATCH_TIMEOUT"
	EnvTraceEndpoint = "DISPATCH_TRACE_ENDPOINT"
	EnvTraceCACerts  = "DISPATCH_TRACE_CA_CERTS"
)

// DefaultTimeout bounds synchronous waits when no deadline is configured.
const DefaultTimeout = Duration(30 * time.Second)

var (
	ErrCfgBytesEmpty = errors.New("config bytes is empty")
	ErrEndpointEmpty = errors.New("'endpoint' is empty")
	ErrBadTimeout    = errors.New("timeout must be positive")
)

// Duration is time.Duration that travels as a string ("30s", "1m30s") in
// JSON and YAML.
type Duration time.Duration

// Std returns the value as time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

func (d Duration) String() string {
	return time.Duration(d).String()
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Duration) UnmarshalJSON(raw []byte) error {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return err
	}

	return d.parse(s)
}

func (d Duration) MarshalYAML() (any, error) {
	return d.String(), nil
}

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}

	return d.parse(s)
}

func (d *Duration) parse(s string) error {
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("parsing duration %q: %w", s, err)
	}
	*d = Duration(parsed)

	return nil
}

// TLS carries client certificate material, PEM blocks base64 encoded the
// way they travel in configuration.
type TLS struct {
	CertBase64    string `json:"cert,omitempty" yaml:"cert,omitempty"`
	KeyBase64     string `json:"key,omitempty" yaml:"key,omitempty"`
	CACertsBase64 string `json:"ca_certs,omitempty" yaml:"ca_certs,omitempty"`
}

// Defined reports whether any certificate material is present.
func (t *TLS) Defined() bool {
	return t != nil && (t.CertBase64 != "" || t.KeyBase64 != "" || t.CACertsBase64 != "")
}

// Trace configures the OTLP collector exported spans are shipped to.
type Trace struct {
	Endpoint      string `json:"endpoint" yaml:"endpoint"`
	CACertsBase64 string `json:"ca_certs,omitempty" yaml:"ca_certs,omitempty"`
}

// Config is the client configuration.
type Config struct {
	// Endpoint is where the capability listens, e.g. "https://api.example.com".
	Endpoint string `json:"endpoint" yaml:"endpoint"`

	// APIVersion gates operations carrying a since constraint.
	APIVersion string `json:"api_version,omitempty" yaml:"api_version,omitempty"`

	Identity   string `json:"identity,omitempty" yaml:"identity,omitempty"`
	Credential string `json:"credential,omitempty" yaml:"credential,omitempty"`

	// DefaultTimeout bounds synchronous waits unless Timeouts overrides it
	// for a specific operation.
	DefaultTimeout Duration `json:"default_timeout,omitempty" yaml:"default_timeout,omitempty"`

	// Timeouts overrides the deadline per operation, keyed "Contract.Name".
	Timeouts map[string]Duration `json:"timeouts,omitempty" yaml:"timeouts,omitempty"`

	TLS   *TLS   `json:"tls,omitempty" yaml:"tls,omitempty"`
	Trace *Trace `json:"trace,omitempty" yaml:"trace,omitempty"`
}

// FromBytes parses JSON or YAML configuration. The format is sniffed:
// valid JSON is decoded as JSON, anything else goes to the YAML decoder.
func FromBytes(raw []byte) (*Config, error) {
	if len(raw) == 0 {
		return nil, ErrCfgBytesEmpty
	}

	cfg := new(Config)
	if json.Valid(raw) {
		if err := json.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("parsing json config: %w", err)
		}
	} else {
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("parsing yaml config: %w", err)
		}
	}

	cfg.normalize()

	return cfg, nil
}

// FromFile reads and parses the configuration file at path.
func FromFile(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	return FromBytes(raw)
}

// FromEnv assembles configuration from environment variables. When
// DISPATCH_CONFIG_FILE is set the named file wins and the other variables
// are ignored.
func FromEnv() (*Config, error) {
	if path := os.Getenv(EnvConfigFile); path != "" {
		return FromFile(path)
	}

	cfg := &Config{
		Endpoint:   os.Getenv(EnvEndpoint),
		APIVersion: os.Getenv(EnvAPIVersion),
		Identity:   os.Getenv(EnvIdentity),
		Credential: os.Getenv(EnvCredential),
	}

	if raw := os.Getenv(EnvTimeout); raw != "" {
		var d Duration
		if err := d.parse(raw); err != nil {
			return nil, fmt.Errorf("%s: %w", EnvTimeout, err)
		}
		cfg.DefaultTimeout = d
	}

	if endpoint := os.Getenv(EnvTraceEndpoint); endpoint != "" {
		cfg.Trace = &Trace{
			Endpoint:      endpoint,
			CACertsBase64: os.Getenv(EnvTraceCACerts),
		}
	}

	cfg.normalize()

	return cfg, nil
}

func (cfg *Config) normalize() {
	if cfg.DefaultTimeout == 0 {
		cfg.DefaultTimeout = DefaultTimeout
	}
}

// Validate checks the configuration is usable.
func (cfg *Config) Validate() error {
	if cfg.Endpoint == "" {
		return ErrEndpointEmpty
	}
	if cfg.DefaultTimeout <= 0 {
		return fmt.Errorf("%w: default_timeout %s", ErrBadTimeout, cfg.DefaultTimeout)
	}
	for op, d := range cfg.Timeouts {
		if d <= 0 {
			return fmt.Errorf("%w: timeouts[%s] %s", ErrBadTimeout, op, d)
		}
	}

	return nil
}

// Timeout returns the deadline for the named operation, falling back to
// the default.
func (cfg *Config) Timeout(op string) time.Duration {
	if d, ok := cfg.Timeouts[op]; ok {
		return d.Std()
	}

	return cfg.DefaultTimeout.Std()
}
