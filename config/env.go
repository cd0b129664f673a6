package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"k8s.io/klog/v2"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "CONTRACTPDF_"

// LoadEnv loads .env files into the process environment without replacing
// variables that are already set. Missing files are skipped.
func LoadEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, path := range paths {
		if err := godotenv.Load(path); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				klog.V(4).InfoS("No env file", "path", path)
				continue
			}
			return fmt.Errorf("failed to load env file %s: %w", path, err)
		}
		klog.V(2).InfoS("Loaded env file", "path", path)
	}
	return nil
}

// ApplyEnv overrides config values from CONTRACTPDF_* variables. lookup is
// usually os.LookupEnv.
func ApplyEnv(config *AppConfig, lookup func(string) (string, bool)) error {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	strs := []struct {
		name   string
		target *string
	}{
		{"STORAGE_TYPE", &config.Storage.Type},
		{"STORAGE_BUCKET", &config.Storage.Bucket},
		{"STORAGE_ROOT", &config.Storage.Root},
		{"STORAGE_REGION", &config.Storage.Region},
		{"STORAGE_ENDPOINT", &config.Storage.Endpoint},
		{"REDIS_ADDR", &config.Storage.RedisAddr},
		{"REDIS_PASSWORD", &config.Storage.RedisPassword},
		{"AZURE_CONNECTION_STRING", &config.Storage.AzureConnectionString},
		{"DATABASE_DRIVER", &config.Database.Driver},
		{"DATABASE_DSN", &config.Database.DSN},
		{"SERVER_ADDR", &config.Server.Addr},
		{"JWT_SECRET", &config.Server.JWTSecret},
		{"LOG_LEVEL", &config.Logging.Level},
	}
	for _, s := range strs {
		if v, ok := lookup(EnvPrefix + s.name); ok && v != "" {
			*s.target = v
		}
	}

	if v, ok := lookup(EnvPrefix + "LOG_VERBOSITY"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return &ConfigError{Field: EnvPrefix + "LOG_VERBOSITY", Message: "must be an integer", Err: err}
		}
		config.Logging.Verbosity = n
	}
	if v, ok := lookup(EnvPrefix + "SERVICE_TIMEOUT"); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return &ConfigError{Field: EnvPrefix + "SERVICE_TIMEOUT", Message: "must be a duration", Err: err}
		}
		config.Service.Timeout = d
	}

	// A changed backend may need its own defaults.
	config.Storage.SetDefaults()
	config.Database.SetDefaults()
	return nil
}
