package configloader

import (
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Validator interface {
	Validate() error
}

type options struct {
	configFile string
	envFile    string
	aliases    map[string]string
}

// Option customizes Load.
type Option func(*options)

// WithConfigFile overrides the default config.yaml location.
func WithConfigFile(path string) Option {
	return func(o *options) {
		o.configFile = path
	}
}

// WithEnvFile overrides the default .env location.
func WithEnvFile(path string) Option {
	return func(o *options) {
		o.envFile = path
	}
}

// WithAliases maps well-known unprefixed environment variables (e.g. ADMIN_SECRET)
// to config keys (e.g. admin.secret). Prefixed variables still take precedence.
func WithAliases(aliases map[string]string) Option {
	return func(o *options) {
		o.aliases = aliases
	}
}

// Load reads the configuration in increasing priority order:
// config.yaml, .env, unprefixed aliases, <SERVICE>_ prefixed environment variables.
func Load[T Validator](serviceName string, opts ...Option) (T, error) {
	var cfg T
	o := options{configFile: "config.yaml", envFile: ".env"}
	for _, opt := range opts {
		opt(&o)
	}
	// Create a new Koanf instance
	k := koanf.New(".")

	envPrefix := fmt.Sprintf("%s_", strings.ToUpper(serviceName))

	// 1. Load configuration from yaml file
	if err := k.Load(file.Provider(o.configFile), yaml.Parser()); err != nil {
		if !os.IsNotExist(err) {
			log.Printf("WARN: error loading YAML config file '%s': %v", o.configFile, err)
		}
	}

	// 2. Load environment variables from .env file
	envTransformer := func(key string) string {
		key = strings.ToLower(key)
		key = strings.TrimPrefix(key, strings.ToLower(envPrefix))
		return strings.ReplaceAll(key, "_", ".")
	}
	if envFileMap, err := godotenv.Read(o.envFile); err == nil {
		envMap := make(map[string]any)
		prefixed := make(map[string]any)
		for key, value := range envFileMap {
			if alias, ok := o.aliases[key]; ok {
				envMap[alias] = value
				continue
			}
			prefixed[envTransformer(key)] = value
		}
		// aliases first so that prefixed keys from the same file win
		for key, value := range prefixed {
			envMap[key] = value
		}
		// Load the envMap into Koanf
		if err := k.Load(confmap.Provider(envMap, "."), nil); err != nil {
			log.Printf("WARN: error loading .env config: %v", err)
		}
	} else if !os.IsNotExist(err) {
		log.Printf("WARN: error reading .env file: %v", err)
	}

	// 3. Load well-known unprefixed variables from the system
	if len(o.aliases) > 0 {
		aliasMap := make(map[string]any)
		for name, key := range o.aliases {
			if value, ok := os.LookupEnv(name); ok {
				aliasMap[key] = value
			}
		}
		if err := k.Load(confmap.Provider(aliasMap, "."), nil); err != nil {
			log.Printf("WARN: error loading env aliases: %v", err)
		}
	}

	// 4. Load environment variables from the system, the highest priority
	if err := k.Load(env.Provider(envPrefix, ".", envTransformer), nil); err != nil {
		log.Printf("WARN: error loading system env vars: %v", err)
	}

	// 5. Unmarshal the configuration into the Config struct
	if err := k.Unmarshal("", &cfg); err != nil {
		return cfg, fmt.Errorf("error unmarshalling config: %w", err)
	}

	// 6. Validate the configuration
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}
