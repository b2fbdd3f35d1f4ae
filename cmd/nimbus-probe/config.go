package main

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/nimbusdb/nimbus-go/pkg/auth"
)

// Config is the probe's YAML configuration.
type Config struct {
	// Address is the server address (host:port).
	Address string `yaml:"address"`

	// Timeout bounds each operation, as a Go duration string ("10s").
	Timeout string `yaml:"timeout"`

	TLS        TLSConfig        `yaml:"tls"`
	Credential CredentialConfig `yaml:"credential"`
}

// TLSConfig configures the client side of TLS.
type TLSConfig struct {
	Enabled            bool   `yaml:"enabled"`
	ServerName         string `yaml:"serverName"`
	CAFile             string `yaml:"caFile"`
	InsecureSkipVerify bool   `yaml:"insecureSkipVerify"`
}

// CredentialConfig holds the credential to authenticate with.
type CredentialConfig struct {
	Source    string `yaml:"source"`
	Mechanism string `yaml:"mechanism"`
	Username  string `yaml:"username"`
	Password  string `yaml:"password"`
}

// LoadConfig reads and validates a config file, applying defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Address == "" {
		return fmt.Errorf("address must be set")
	}
	if c.Timeout == "" {
		c.Timeout = "10s"
	}
	if _, err := time.ParseDuration(c.Timeout); err != nil {
		return fmt.Errorf("invalid timeout %q: %w", c.Timeout, err)
	}
	if c.Credential.Source == "" {
		c.Credential.Source = "admin"
	}
	if c.Credential.Mechanism == "" {
		c.Credential.Mechanism = auth.MechanismScramSHA256
	}
	return nil
}

// OperationTimeout returns the parsed timeout.
func (c *Config) OperationTimeout() time.Duration {
	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return 10 * time.Second
	}
	return d
}

// AuthCredential converts the config into an auth credential.
func (c *Config) AuthCredential() auth.Credential {
	return auth.Credential{
		Source:    c.Credential.Source,
		Mechanism: c.Credential.Mechanism,
		Username:  c.Credential.Username,
		Password:  c.Credential.Password,
	}
}

// TLSClientConfig builds the tls.Config, or nil when TLS is disabled.
func (c *Config) TLSClientConfig() (*tls.Config, error) {
	if !c.TLS.Enabled {
		return nil, nil
	}

	tlsCfg := &tls.Config{
		ServerName:         c.TLS.ServerName,
		InsecureSkipVerify: c.TLS.InsecureSkipVerify,
	}
	if c.TLS.CAFile != "" {
		pem, err := os.ReadFile(c.TLS.CAFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read CA file: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("no certificates found in %s", c.TLS.CAFile)
		}
		tlsCfg.RootCAs = pool
	}
	return tlsCfg, nil
}
