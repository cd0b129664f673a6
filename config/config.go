// Package config loads the application configuration from YAML, .env files
// and CONTRACTPDF_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Common errors
var (
	ErrConfigurationError   = errors.New("configuration error")
	ErrMissingRequiredField = errors.New("missing required field")
	ErrUnexpectedField      = errors.New("unexpected field in configuration")
	ErrInvalidConfigType    = errors.New("configuration must be a dictionary")
)

// ConfigError represents a configuration error with context.
type ConfigError struct {
	Field   string
	Message string
	Err     error
}

func (e *ConfigError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("config error in '%s': %s", e.Field, e.Message)
	}
	return fmt.Sprintf("config error: %s", e.Message)
}

func (e *ConfigError) Unwrap() error {
	if e.Err == nil {
		return ErrConfigurationError
	}
	return e.Err
}

// NewConfigError creates a new ConfigError.
func NewConfigError(field, message string) *ConfigError {
	return &ConfigError{Field: field, Message: message}
}

// missingField reports a required field that is empty.
func missingField(field string) *ConfigError {
	return &ConfigError{Field: field, Message: "required field is missing", Err: ErrMissingRequiredField}
}

// AppConfig contains the complete application configuration.
type AppConfig struct {
	Logging  LoggingConfig  `yaml:"logging" json:"logging"`
	Layout   LayoutConfig   `yaml:"layout" json:"layout"`
	Fields   FieldsConfig   `yaml:"fields" json:"fields"`
	Fonts    FontsConfig    `yaml:"fonts" json:"fonts"`
	Storage  StorageConfig  `yaml:"storage" json:"storage"`
	Database DatabaseConfig `yaml:"database" json:"database"`
	Server   ServerConfig   `yaml:"server" json:"server"`
	Service  ServiceConfig  `yaml:"service" json:"service"`
}

// Default returns a configuration with every default applied.
func Default() *AppConfig {
	var config AppConfig
	config.SetDefaults()
	return &config
}

// SetDefaults fills every section's unset values.
func (c *AppConfig) SetDefaults() {
	c.Logging.SetDefaults()
	c.Layout.SetDefaults()
	c.Fields.SetDefaults()
	c.Fonts.SetDefaults()
	c.Storage.SetDefaults()
	c.Database.SetDefaults()
	c.Server.SetDefaults()
	c.Service.SetDefaults()
}

// Validate checks every section.
func (c *AppConfig) Validate() error {
	validators := []struct {
		section string
		fn      func() error
	}{
		{"logging", c.Logging.Validate},
		{"layout", c.Layout.Validate},
		{"fields", c.Fields.Validate},
		{"fonts", c.Fonts.Validate},
		{"storage", c.Storage.Validate},
		{"database", c.Database.Validate},
		{"server", c.Server.Validate},
		{"service", c.Service.Validate},
	}
	for _, v := range validators {
		if err := v.fn(); err != nil {
			var cfgErr *ConfigError
			if errors.As(err, &cfgErr) {
				cfgErr.Field = v.section + "." + cfgErr.Field
			}
			return err
		}
	}
	return nil
}

// LoadConfig loads a configuration from a YAML file. Defaults are applied
// and environment overrides win over the file.
func LoadConfig(filename string) (*AppConfig, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	config, err := ParseConfig(data)
	if err != nil {
		return nil, err
	}
	if err := ApplyEnv(config, os.LookupEnv); err != nil {
		return nil, err
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// ParseConfig parses configuration from YAML data. Unknown keys are
// rejected. Environment overrides are not applied.
func ParseConfig(data []byte) (*AppConfig, error) {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := checkKeys("config", reflect.TypeOf(AppConfig{}), raw); err != nil {
		return nil, err
	}

	var config AppConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	config.SetDefaults()
	return &config, nil
}

// CheckConfigKeys checks if all provided keys are valid for a given configuration type.
func CheckConfigKeys(configName string, expectedKeys, suppliedKeys []string) error {
	expectedSet := make(map[string]bool)
	for _, k := range expectedKeys {
		// Normalize to use dashes
		expectedSet[normalizeKey(k)] = true
	}

	var unexpected []string
	for _, k := range suppliedKeys {
		normalized := normalizeKey(k)
		if !expectedSet[normalized] {
			unexpected = append(unexpected, k)
		}
	}

	if len(unexpected) > 0 {
		keyWord := "key"
		if len(unexpected) > 1 {
			keyWord = "keys"
		}
		return fmt.Errorf("%w: unexpected %s in configuration for %s: %s",
			ErrUnexpectedField, keyWord, configName, strings.Join(unexpected, ", "))
	}

	return nil
}

// normalizeKey normalizes a configuration key (underscores to dashes).
func normalizeKey(key string) string {
	return strings.ReplaceAll(key, "_", "-")
}

// checkKeys walks raw alongside t and rejects keys with no yaml field.
func checkKeys(name string, t reflect.Type, raw map[string]any) error {
	fields := yamlFields(t)
	supplied := make([]string, 0, len(raw))
	for k := range raw {
		supplied = append(supplied, k)
	}
	sort.Strings(supplied)

	expected := make([]string, 0, len(fields))
	for k := range fields {
		expected = append(expected, k)
	}
	if err := CheckConfigKeys(name, expected, supplied); err != nil {
		return err
	}

	for _, k := range supplied {
		ft := fields[normalizeKey(k)]
		for ft.Kind() == reflect.Pointer {
			ft = ft.Elem()
		}
		switch {
		case ft.Kind() == reflect.Struct:
			sub, ok := raw[k].(map[string]any)
			if !ok {
				if raw[k] == nil {
					continue
				}
				return &ConfigError{Field: name + "." + k, Message: "must be a dictionary", Err: ErrInvalidConfigType}
			}
			if err := checkKeys(name+"."+k, ft, sub); err != nil {
				return err
			}
		case ft.Kind() == reflect.Map && ft.Elem().Kind() == reflect.Struct:
			entries, _ := raw[k].(map[string]any)
			for entry, v := range entries {
				sub, ok := v.(map[string]any)
				if !ok {
					return &ConfigError{Field: name + "." + k + "." + entry, Message: "must be a dictionary", Err: ErrInvalidConfigType}
				}
				if err := checkKeys(name+"."+k+"."+entry, ft.Elem(), sub); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// yamlFields maps the yaml keys of struct t to their field types, following
// inline embeddings.
func yamlFields(t reflect.Type) map[string]reflect.Type {
	fields := make(map[string]reflect.Type)
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		tag := f.Tag.Get("yaml")
		name, opts, _ := strings.Cut(tag, ",")
		if name == "-" {
			continue
		}
		if strings.Contains(opts, "inline") {
			inner := f.Type
			for inner.Kind() == reflect.Pointer {
				inner = inner.Elem()
			}
			for k, v := range yamlFields(inner) {
				fields[k] = v
			}
			continue
		}
		if name == "" {
			name = strings.ToLower(f.Name)
		}
		fields[name] = f.Type
	}
	return fields
}
