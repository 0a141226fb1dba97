// Package config holds the catalog service configuration.
package config

import (
	"fmt"
	"strings"

	"github.com/abgdnv/gocatalog/pkg/config"
	"github.com/abgdnv/gocatalog/pkg/config/configloader"
)

// ServiceName prefixes the service environment variables, e.g. CATALOG_SERVER_PORT.
const ServiceName = "catalog"

var _ configloader.Validator = (*Config)(nil)

// EnvAliases maps the well-known unprefixed environment variables to config keys.
var EnvAliases = map[string]string{
	"ADMIN_SECRET":      "admin.secret",
	"ADMIN_PASSWORD":    "admin.password",
	"ADMIN_SECRET_HASH": "admin.secrethash",
	"ADMIN_EMAIL":       "admin.email",
	"TOKEN_SIGNING_KEY": "token.signingkey",
	"TOKEN_TTL":         "token.ttl",
	"STORAGE_LOCATION":  "storage.location",
}

type Config struct {
	HTTPServer config.HTTPConfig       `koanf:"server"`
	Storage    config.StorageConfig    `koanf:"storage"`
	Admin      config.AdminConfig      `koanf:"admin"`
	Token      config.TokenConfig      `koanf:"token"`
	Log        config.LogConfig        `koanf:"log"`
	PProf      config.PProfConfig      `koanf:"pprof"`
	GRPC       config.GrpcServerConfig `koanf:"grpc"`
	Shutdown   config.ShutdownConfig   `koanf:"shutdown"`
	NATS       config.NATSConfig       `koanf:"nats"`
	Telemetry  config.TelemetryConfig  `koanf:"telemetry"`
}

// Load reads the configuration from config.yaml, .env and the environment.
func Load(opts ...configloader.Option) (*Config, error) {
	opts = append([]configloader.Option{configloader.WithAliases(EnvAliases)}, opts...)
	return configloader.Load[*Config](ServiceName, opts...)
}

func (c *Config) String() string {
	var b strings.Builder

	b.WriteString(c.HTTPServer.String())
	b.WriteString(c.Storage.String())
	b.WriteString(c.Admin.String())
	b.WriteString(c.Token.String())
	b.WriteString(c.GRPC.String())
	b.WriteString(c.NATS.String())
	b.WriteString(c.Telemetry.String())

	b.WriteString("\n--- Observability & Logging ---\n")
	b.WriteString(fmt.Sprintf("  log.level: %s\n", c.Log.Level))
	b.WriteString(fmt.Sprintf("  pprof.enabled: %t\n", c.PProf.Enabled))
	b.WriteString(fmt.Sprintf("  pprof.address: %s\n", c.PProf.Addr))

	b.WriteString("\n--- Application Behavior ---\n")
	b.WriteString(fmt.Sprintf("  shutdown.timeout: %s\n", c.Shutdown.Timeout))

	return b.String()
}

// Validate checks if the configuration values are valid
func (c *Config) Validate() error {
	validators := []configloader.Validator{
		&c.HTTPServer, &c.Storage, &c.Admin, &c.Token, &c.Log,
		&c.PProf, &c.Shutdown, &c.GRPC, &c.NATS, &c.Telemetry,
	}
	for _, v := range validators {
		if err := v.Validate(); err != nil {
			return err
		}
	}
	return nil
}
