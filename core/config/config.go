package config

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"zotero-sync/core/database"
	"zotero-sync/core/logger"
	"zotero-sync/core/server"
	"zotero-sync/core/storage"
	"zotero-sync/core/zotero"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
type Config struct {
	// Server holds configuration for the HTTP server.
	Server server.Config `mapstructure:"server"`
	// Log holds configuration for the logger.
	Log logger.Config `mapstructure:"log"`
	// Zotero holds configuration for the remote library API.
	Zotero zotero.Config `mapstructure:"zotero"`
	// Storage holds configuration for the snapshot archive (S3, MinIO).
	Storage storage.Config `mapstructure:"storage"`
	// Database holds configuration for the sync history database.
	Database database.Config `mapstructure:"database"`
	// Cache holds configuration for the dependent cache.
	Cache CacheConfig `mapstructure:"cache"`
}

// CacheConfig holds configuration for the in-memory cache.
type CacheConfig struct {
	// TTLSeconds expires entries after this many seconds; 0 keeps them until invalidated.
	TTLSeconds int `mapstructure:"ttl_seconds" default:"0"`
	// ArchiveSnapshots persists snapshots to object storage after each sync.
	ArchiveSnapshots bool `mapstructure:"archive_snapshots" default:"false"`
}

// TTL returns the cache expiry as a duration.
func (c CacheConfig) TTL() time.Duration {
	return time.Duration(c.TTLSeconds) * time.Second
}

// LoadConfig loads configuration from environment variables and .env file.
func LoadConfig(path string) (*Config, error) {
	envPath := path + "/.env"
	if path == "." {
		envPath = ".env"
	}

	// A missing .env is fine; production passes plain environment variables
	_ = godotenv.Overload(envPath)

	v := viper.New()

	bindValues(v, Config{}, "")

	// ZOTERO_API_KEY -> zotero.api_key
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// Validate checks values that would otherwise fail late, on the first request.
func (c *Config) Validate() error {
	if c.Log.Format != "" && c.Log.Format != "json" && c.Log.Format != "console" {
		return fmt.Errorf("log.format must be json or console, got %q", c.Log.Format)
	}
	if c.Zotero.Library != "" {
		if _, err := zotero.ParseLibrary(c.Zotero.Library); err != nil {
			return fmt.Errorf("zotero.library: %w", err)
		}
	}
	if c.Cache.TTLSeconds < 0 {
		return fmt.Errorf("cache.ttl_seconds must not be negative")
	}
	return nil
}

// bindValues walks the struct and registers every 'mapstructure' key in Viper
// with the value of its 'default' tag. Nested structs become dotted prefixes.
func bindValues(v *viper.Viper, iface any, prefix string) {
	t := reflect.TypeOf(iface)

	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		tag := field.Tag.Get("mapstructure")

		if tag == "" {
			continue
		}

		key := tag
		if prefix != "" {
			key = prefix + "." + tag
		}

		if field.Type.Kind() == reflect.Struct {
			bindValues(v, reflect.New(field.Type).Elem().Interface(), key)
			continue
		}

		defaultValue := field.Tag.Get("default")
		// Registering every key, even with an empty default, is what lets AutomaticEnv see it
		v.SetDefault(key, defaultValue)
	}
}
