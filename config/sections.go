package config

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/georgepadayatti/contractpdf/contract"
	"github.com/georgepadayatti/contractpdf/layout"
)

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	// Level is the log level (debug, info, warn, error).
	Level string `yaml:"level" json:"level,omitempty"`

	// Verbosity is the klog -v value.
	Verbosity int `yaml:"verbosity" json:"verbosity,omitempty"`
}

// SetDefaults sets default values for logging configuration.
func (c *LoggingConfig) SetDefaults() {
	if c.Level == "" {
		c.Level = "info"
	}
}

// Validate validates the logging configuration.
func (c *LoggingConfig) Validate() error {
	if !slices.Contains([]string{"debug", "info", "warn", "error"}, c.Level) {
		return NewConfigError("level", fmt.Sprintf("unknown log level %q", c.Level))
	}
	if c.Verbosity < 0 {
		return NewConfigError("verbosity", "must not be negative")
	}
	return nil
}

// KlogVerbosity returns the effective -v value. The debug level implies at
// least 4.
func (c *LoggingConfig) KlogVerbosity() int {
	if c.Level == "debug" && c.Verbosity < 4 {
		return 4
	}
	return c.Verbosity
}

// PageConfig is a page size, either by name or by dimensions in points.
type PageConfig struct {
	Size   string  `yaml:"size" json:"size,omitempty"`
	Width  float64 `yaml:"width" json:"width,omitempty"`
	Height float64 `yaml:"height" json:"height,omitempty"`
}

// PageSize resolves the configured size.
func (c PageConfig) PageSize() (layout.PageSize, error) {
	if c.Width > 0 && c.Height > 0 {
		return layout.PageSize{Width: c.Width, Height: c.Height}, nil
	}
	size, ok := layout.PageSizeByName(c.Size)
	if !ok {
		return layout.PageSize{}, NewConfigError("blank-page.size", fmt.Sprintf("unknown page size %q", c.Size))
	}
	return size, nil
}

// LayoutConfig holds the placement calibration. Unset values take the stock
// calibration; per-template entries override the base.
type LayoutConfig struct {
	layout.CalibrationOverride `yaml:",inline"`

	BlankPage PageConfig                            `yaml:"blank-page" json:"blank_page"`
	Templates map[string]layout.CalibrationOverride `yaml:"templates" json:"templates,omitempty"`
}

// SetDefaults sets default values for layout configuration.
func (c *LayoutConfig) SetDefaults() {
	def := layout.DefaultCalibration()
	o := &c.CalibrationOverride
	setDefault(&o.SignatureCorrectionY, def.SignatureCorrectionY)
	setDefault(&o.TextCorrectionY, def.TextCorrectionY)
	setDefault(&o.TextBaselineInset, def.TextBaselineInset)
	setDefault(&o.FallbackSignature, def.FallbackSignature)
	setDefault(&o.FallbackTextDrop, def.FallbackTextDrop)
	setDefault(&o.MainScale, def.MainScale)
	setDefault(&o.LateralScale, def.LateralScale)
	setDefault(&o.LateralAnchor, def.LateralAnchor)

	if c.BlankPage.Size == "" && c.BlankPage.Width == 0 && c.BlankPage.Height == 0 {
		c.BlankPage.Size = "letter"
	}
}

func setDefault[T any](p **T, v T) {
	if *p == nil {
		*p = &v
	}
}

// Validate validates the layout configuration.
func (c *LayoutConfig) Validate() error {
	if _, err := c.BlankPage.PageSize(); err != nil {
		return err
	}
	check := func(prefix string, cal layout.Calibration) error {
		if cal.MainScale <= 0 {
			return NewConfigError(prefix+"main-scale", "must be positive")
		}
		if cal.LateralScale <= 0 {
			return NewConfigError(prefix+"lateral-scale", "must be positive")
		}
		return nil
	}
	if err := check("", c.Calibration("")); err != nil {
		return err
	}
	for key := range c.Templates {
		if err := check("templates."+key+".", c.Calibration(key)); err != nil {
			return err
		}
	}
	return nil
}

// Calibration returns the calibration for templateKey, falling back to the
// base calibration for unknown keys.
func (c *LayoutConfig) Calibration(templateKey string) layout.Calibration {
	base := c.CalibrationOverride.Apply(layout.DefaultCalibration())
	if override, ok := c.Templates[templateKey]; ok {
		return override.Apply(base)
	}
	return base
}

// TemplateCalibrations resolves every per-template calibration.
func (c *LayoutConfig) TemplateCalibrations() map[string]layout.Calibration {
	if len(c.Templates) == 0 {
		return nil
	}
	out := make(map[string]layout.Calibration, len(c.Templates))
	for key := range c.Templates {
		out[key] = c.Calibration(key)
	}
	return out
}

// FieldsConfig maps contract values to template field names. Unset names
// take the stock names.
type FieldsConfig struct {
	LegalName     string `yaml:"legal-name" json:"legal_name,omitempty"`
	IDNumber      string `yaml:"id-number" json:"id_number,omitempty"`
	Street        string `yaml:"street" json:"street,omitempty"`
	PostalCode    string `yaml:"postal-code" json:"postal_code,omitempty"`
	City          string `yaml:"city" json:"city,omitempty"`
	Province      string `yaml:"province" json:"province,omitempty"`
	SignatureDate string `yaml:"signature-date" json:"signature_date,omitempty"`
	BirthDate     string `yaml:"birth-date" json:"birth_date,omitempty"`
	Nationality   string `yaml:"nationality" json:"nationality,omitempty"`

	SignatureBox string `yaml:"signature-box" json:"signature_box,omitempty"`
	DataBox      string `yaml:"data-box" json:"data_box,omitempty"`
}

func (c *FieldsConfig) targets() map[contract.Key]*string {
	return map[contract.Key]*string{
		contract.KeyLegalName:     &c.LegalName,
		contract.KeyIDNumber:      &c.IDNumber,
		contract.KeyStreet:        &c.Street,
		contract.KeyPostalCode:    &c.PostalCode,
		contract.KeyCity:          &c.City,
		contract.KeyProvince:      &c.Province,
		contract.KeySignatureDate: &c.SignatureDate,
		contract.KeyBirthDate:     &c.BirthDate,
		contract.KeyNationality:   &c.Nationality,
	}
}

// SetDefaults sets default values for the field mapping.
func (c *FieldsConfig) SetDefaults() {
	defaults := contract.DefaultFieldNames()
	for key, target := range c.targets() {
		if *target == "" {
			*target = defaults[key]
		}
	}
	if c.SignatureBox == "" {
		c.SignatureBox = contract.DefaultSignatureBox
	}
	if c.DataBox == "" {
		c.DataBox = contract.DefaultDataBox
	}
}

// Validate rejects two values mapped to the same field.
func (c *FieldsConfig) Validate() error {
	seen := make(map[string]contract.Key)
	for _, key := range contract.Keys {
		name := *c.targets()[key]
		if name == "" {
			continue
		}
		if other, dup := seen[name]; dup {
			return NewConfigError(string(key), fmt.Sprintf("field %q is already mapped to %s", name, other))
		}
		seen[name] = key
	}
	return nil
}

// Names returns the key to field name mapping.
func (c *FieldsConfig) Names() map[contract.Key]string {
	names := make(map[contract.Key]string)
	for key, target := range c.targets() {
		if *target != "" {
			names[key] = *target
		}
	}
	return names
}

// FontsConfig names the font programs in the blob store.
type FontsConfig struct {
	RegularKey string  `yaml:"regular-key" json:"regular_key,omitempty"`
	BoldKey    string  `yaml:"bold-key" json:"bold_key,omitempty"`
	TextSize   float64 `yaml:"text-size" json:"text_size,omitempty"`
}

// SetDefaults sets default values for fonts configuration.
func (c *FontsConfig) SetDefaults() {
	if c.RegularKey == "" {
		c.RegularKey = "fonts/regular.ttf"
	}
	if c.BoldKey == "" {
		c.BoldKey = "fonts/bold.ttf"
	}
	if c.TextSize == 0 {
		c.TextSize = 10
	}
}

// Validate validates the fonts configuration.
func (c *FontsConfig) Validate() error {
	if c.TextSize <= 0 {
		return NewConfigError("text-size", "must be positive")
	}
	return nil
}

// Storage backend types.
const (
	StorageFilesystem = "filesystem"
	StorageMemory     = "memory"
	StorageS3         = "s3"
	StorageGCS        = "gcs"
	StorageAzure      = "azure"
	StorageRedis      = "redis"
)

// RetryConfig configures storage retries.
type RetryConfig struct {
	Attempts     int           `yaml:"attempts" json:"attempts,omitempty"`
	InitialDelay time.Duration `yaml:"initial-delay" json:"initial_delay,omitempty"`
	Multiplier   float64       `yaml:"multiplier" json:"multiplier,omitempty"`
}

// StorageConfig selects and configures the blob store.
type StorageConfig struct {
	Type     string `yaml:"type" json:"type"`
	Root     string `yaml:"root" json:"root,omitempty"`
	Bucket   string `yaml:"bucket" json:"bucket,omitempty"`
	Region   string `yaml:"region" json:"region,omitempty"`
	Endpoint string `yaml:"endpoint" json:"endpoint,omitempty"`
	Prefix   string `yaml:"prefix" json:"prefix,omitempty"`

	AccessKeyID     string `yaml:"access-key-id" json:"-"`
	SecretAccessKey string `yaml:"secret-access-key" json:"-"`

	// PresignExpiry is the lifetime of presigned links.
	PresignExpiry time.Duration `yaml:"presign-expiry" json:"presign_expiry,omitempty"`

	RedisAddr     string `yaml:"redis-addr" json:"redis_addr,omitempty"`
	RedisPassword string `yaml:"redis-password" json:"-"`
	RedisDB       int    `yaml:"redis-db" json:"redis_db,omitempty"`

	AzureAccount          string `yaml:"azure-account" json:"azure_account,omitempty"`
	AzureConnectionString string `yaml:"azure-connection-string" json:"-"`

	GCSCredentialsFile string `yaml:"gcs-credentials-file" json:"gcs_credentials_file,omitempty"`

	Retry RetryConfig `yaml:"retry" json:"retry"`
}

// SetDefaults sets default values for storage configuration.
func (c *StorageConfig) SetDefaults() {
	if c.Type == "" {
		c.Type = StorageFilesystem
	}
	if c.Type == StorageFilesystem && c.Root == "" {
		c.Root = "./data"
	}
	if c.PresignExpiry == 0 {
		// The SigV4 maximum.
		c.PresignExpiry = 7 * 24 * time.Hour
	}
	if c.Retry.Attempts == 0 {
		c.Retry.Attempts = 3
	}
	if c.Retry.InitialDelay == 0 {
		c.Retry.InitialDelay = 200 * time.Millisecond
	}
	if c.Retry.Multiplier == 0 {
		c.Retry.Multiplier = 2
	}
}

// Validate validates the storage configuration.
func (c *StorageConfig) Validate() error {
	switch c.Type {
	case StorageFilesystem:
		if c.Root == "" {
			return missingField("root")
		}
	case StorageMemory:
	case StorageS3, StorageGCS:
		if c.Bucket == "" {
			return missingField("bucket")
		}
	case StorageAzure:
		if c.Bucket == "" {
			return missingField("bucket")
		}
		if c.AzureAccount == "" && c.AzureConnectionString == "" {
			return missingField("azure-account")
		}
	case StorageRedis:
		if c.RedisAddr == "" {
			return missingField("redis-addr")
		}
	default:
		return NewConfigError("type", fmt.Sprintf("unknown storage type %q", c.Type))
	}
	if c.Retry.Attempts < 1 {
		return NewConfigError("retry.attempts", "must be at least 1")
	}
	return nil
}

// DatabaseConfig configures the contract record store.
type DatabaseConfig struct {
	Driver string `yaml:"driver" json:"driver"`
	DSN    string `yaml:"dsn" json:"-"`
}

// SetDefaults sets default values for database configuration.
func (c *DatabaseConfig) SetDefaults() {
	if c.Driver == "" {
		c.Driver = "sqlite"
	}
	if c.DSN == "" && c.Driver == "sqlite" {
		c.DSN = "contractpdf.db"
	}
}

// Validate validates the database configuration.
func (c *DatabaseConfig) Validate() error {
	if !slices.Contains([]string{"sqlite", "postgres", "mysql"}, strings.ToLower(c.Driver)) {
		return NewConfigError("driver", fmt.Sprintf("unsupported driver %q", c.Driver))
	}
	if c.DSN == "" {
		return missingField("dsn")
	}
	return nil
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Addr         string        `yaml:"addr" json:"addr"`
	Mode         string        `yaml:"mode" json:"mode"`
	ReadTimeout  time.Duration `yaml:"read-timeout" json:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write-timeout" json:"write_timeout"`
	// JWTSecret enables bearer authentication when set.
	JWTSecret string `yaml:"jwt-secret" json:"-"`
	// MaxUploadBytes bounds multipart compose requests.
	MaxUploadBytes int64 `yaml:"max-upload-bytes" json:"max_upload_bytes"`
	// ComposeTimeout bounds one inline composition.
	ComposeTimeout time.Duration `yaml:"compose-timeout" json:"compose_timeout"`
}

// SetDefaults sets default values for server configuration.
func (c *ServerConfig) SetDefaults() {
	if c.Addr == "" {
		c.Addr = ":8080"
	}
	if c.Mode == "" {
		c.Mode = "release"
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = 15 * time.Second
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = 60 * time.Second
	}
	if c.MaxUploadBytes == 0 {
		c.MaxUploadBytes = 32 << 20
	}
	if c.ComposeTimeout == 0 {
		c.ComposeTimeout = 30 * time.Second
	}
}

// Validate validates the server configuration.
func (c *ServerConfig) Validate() error {
	if !slices.Contains([]string{"debug", "release", "test"}, c.Mode) {
		return NewConfigError("mode", fmt.Sprintf("unknown mode %q", c.Mode))
	}
	if c.Addr == "" {
		return missingField("addr")
	}
	if c.ComposeTimeout < 0 {
		return NewConfigError("compose-timeout", "must not be negative")
	}
	return nil
}

// ServiceConfig configures the generation service.
type ServiceConfig struct {
	// Timeout bounds one generation, I/O included.
	Timeout        time.Duration `yaml:"timeout" json:"timeout"`
	TemplatePrefix string        `yaml:"template-prefix" json:"template_prefix"`
}

// SetDefaults sets default values for service configuration.
func (c *ServiceConfig) SetDefaults() {
	if c.Timeout == 0 {
		c.Timeout = 30 * time.Second
	}
	if c.TemplatePrefix == "" {
		c.TemplatePrefix = "templates/"
	}
}

// Validate validates the service configuration.
func (c *ServiceConfig) Validate() error {
	if c.Timeout <= 0 {
		return NewConfigError("timeout", "must be positive")
	}
	return nil
}

// Engine builds the engine configuration.
func (c *AppConfig) Engine() (contract.Config, error) {
	blank, err := c.Layout.BlankPage.PageSize()
	if err != nil {
		return contract.Config{}, err
	}
	cfg := contract.DefaultConfig()
	cfg.FieldNames = c.Fields.Names()
	cfg.SignatureBox = c.Fields.SignatureBox
	cfg.DataBox = c.Fields.DataBox
	cfg.Calibration = c.Layout.Calibration("")
	cfg.Templates = c.Layout.TemplateCalibrations()
	cfg.BlankPage = blank
	cfg.TextSize = c.Fonts.TextSize
	return cfg, nil
}
