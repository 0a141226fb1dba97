package config

import (
	"fmt"
	"strings"
	"time"
)

const defaultConnectTimeout = 5 * time.Second

// StorageConfig locates the durable catalog medium.
// Location is either a file path or a postgres URL.
type StorageConfig struct {
	Location       string        `koanf:"location"`
	ConnectTimeout time.Duration `koanf:"connecttimeout"`
}

// String returns a string representation of the storage configuration.
func (c *StorageConfig) String() string {
	var b strings.Builder
	b.WriteString("\n--- Storage ---\n")
	b.WriteString(fmt.Sprintf("  location: %s\n", MaskURL(c.Location)))
	b.WriteString(fmt.Sprintf("  connecttimeout: %s\n", c.ConnectTimeout))
	return b.String()
}

func (c *StorageConfig) Validate() error {
	if strings.TrimSpace(c.Location) == "" {
		return fmt.Errorf("storage location is not configured")
	}
	if c.ConnectTimeout < 0 {
		return fmt.Errorf("storage connect timeout must not be negative: %v", c.ConnectTimeout)
	}
	if c.ConnectTimeout == 0 {
		c.ConnectTimeout = defaultConnectTimeout
	}
	return nil
}

// IsPostgres reports whether the location points to a postgres database.
func (c *StorageConfig) IsPostgres() bool {
	return IsPostgresURL(c.Location)
}

// IsPostgresURL checks if the provided URL is a valid PostgreSQL URL
func IsPostgresURL(url string) bool {
	return strings.HasPrefix(url, "postgres://") ||
		strings.HasPrefix(url, "postgresql://")
}

// MaskURL hides credentials embedded in a connection URL.
// Plain file paths are returned unchanged.
func MaskURL(url string) string {
	if url == "" {
		return "<not configured>"
	}
	if !IsPostgresURL(url) {
		return url
	}
	// Mask the URL by replacing the username and password with "****"
	parts := strings.Split(url, "@")
	if len(parts) == 2 {
		return "****@" + parts[1]
	}
	return "****"
}
