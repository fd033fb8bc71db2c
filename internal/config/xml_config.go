// Package config provides XML-based configuration management with
// environment overrides for secrets and deployment paths.
package config

import (
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Credentials environment variables. Keys are never written to the XML file.
const (
	EnvPublicKey = "ILOVE_PUBLIC_KEY"
	EnvSecretKey = "ILOVE_SECRET_KEY"
)

// AppConfig represents the root XML configuration structure
type AppConfig struct {
	XMLName xml.Name `xml:"PDFToolbox"`

	Server     ServerConfig     `xml:"Server"`
	Storage    StorageConfig    `xml:"Storage"`
	Limits     LimitsConfig     `xml:"Limits"`
	Vendor     VendorConfig     `xml:"Vendor"`
	Processing ProcessingConfig `xml:"Processing"`
	Advanced   AdvancedConfig   `xml:"Advanced"`

	// Credentials are loaded from the environment only.
	Credentials Credentials `xml:"-"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Port         int    `xml:"Port"`
	BindAddress  string `xml:"BindAddress"`
	EnableCORS   bool   `xml:"EnableCORS"`
	AllowOrigins string `xml:"AllowOrigins"`
	ReadTimeout  int    `xml:"ReadTimeoutSeconds"`
	WriteTimeout int    `xml:"WriteTimeoutSeconds"`
	IdleTimeout  int    `xml:"IdleTimeoutSeconds"`
	BodyLimit    string `xml:"BodyLimit"`
}

// StorageConfig contains spool and catalog locations
type StorageConfig struct {
	DataDirectory string `xml:"DataDirectory"`
	TempDirectory string `xml:"TempDirectory"`
	// CatalogFile is an optional YAML file of tool overrides.
	CatalogFile string `xml:"CatalogFile"`
}

// LimitsConfig contains upload limits
type LimitsConfig struct {
	MaxFileSizeMB int `xml:"MaxFileSizeMB"`
}

// VendorConfig contains iLovePDF connection and plan settings
type VendorConfig struct {
	BaseURL           string  `xml:"BaseURL"`
	Region            string  `xml:"Region"`
	TimeoutSeconds    int     `xml:"TimeoutSeconds"`
	RequestsPerSecond float64 `xml:"RequestsPerSecond"`
	TotalCredits      int     `xml:"TotalCredits"`
	Plan              string  `xml:"Plan"`
	Price             string  `xml:"Price"`
	Preflight         bool    `xml:"PreflightPDF"`
}

// ProcessingConfig contains temp file housekeeping settings
type ProcessingConfig struct {
	SweepIntervalMinutes int `xml:"SweepIntervalMinutes"`
	MaxTempAgeMinutes    int `xml:"MaxTempAgeMinutes"`
}

// AdvancedConfig contains advanced/tuning options
type AdvancedConfig struct {
	LogLevel             string `xml:"LogLevel"`
	LogFormat            string `xml:"LogFormat"`
	EnableRequestLogging bool   `xml:"EnableRequestLogging"`
}

// Credentials is the vendor key pair.
type Credentials struct {
	PublicKey string
	SecretKey string
}

// Configured reports whether both keys are present.
func (c Credentials) Configured() bool {
	return c.PublicKey != "" && c.SecretKey != ""
}

// DefaultConfig returns the default configuration
func DefaultConfig() *AppConfig {
	return &AppConfig{
		Server: ServerConfig{
			Port:         3000,
			BindAddress:  "0.0.0.0",
			EnableCORS:   true,
			AllowOrigins: "*",
			ReadTimeout:  300,
			WriteTimeout: 300,
			IdleTimeout:  120,
			BodyLimit:    "600M",
		},
		Storage: StorageConfig{
			DataDirectory: "./data",
			TempDirectory: "./data/tmp",
		},
		Limits: LimitsConfig{
			MaxFileSizeMB: 100,
		},
		Vendor: VendorConfig{
			BaseURL:           "https://api.ilovepdf.com",
			Region:            "us",
			TimeoutSeconds:    300,
			RequestsPerSecond: 5,
			TotalCredits:      2500,
			Plan:              "Free Tier",
			Price:             "$0",
			Preflight:         false,
		},
		Processing: ProcessingConfig{
			SweepIntervalMinutes: 5,
			MaxTempAgeMinutes:    60,
		},
		Advanced: AdvancedConfig{
			LogLevel:             "info",
			LogFormat:            "text",
			EnableRequestLogging: true,
		},
	}
}

// LoadConfig loads configuration from XML file, creating it with defaults
// on first run.
func LoadConfig(configPath string) (*AppConfig, error) {
	config := DefaultConfig()

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		if err := config.Save(configPath); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
	} else {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := xml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	config.applyEnvironmentOverrides()
	config.resolvePaths(filepath.Dir(configPath))

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Save saves the configuration to XML file
func (c *AppConfig) Save(configPath string) error {
	output, err := xml.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte(xml.Header + "\n<!-- PDF Toolbox Configuration -->\n<!-- Set ILOVE_PUBLIC_KEY and ILOVE_SECRET_KEY in the environment -->\n\n")
	content := append(header, output...)

	if err := os.WriteFile(configPath, content, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate rejects settings the server cannot run with.
func (c *AppConfig) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Server.Port)
	}
	if c.Limits.MaxFileSizeMB <= 0 {
		return fmt.Errorf("MaxFileSizeMB must be positive, got %d", c.Limits.MaxFileSizeMB)
	}
	switch strings.ToLower(c.Vendor.Region) {
	case "us", "eu":
	default:
		return fmt.Errorf("unknown vendor region %q", c.Vendor.Region)
	}
	// Spooled uploads must outlive the longest request that can hold them.
	longest := max(c.VendorTimeout(), time.Duration(c.Server.WriteTimeout)*time.Second)
	if c.MaxTempAge() <= longest {
		return fmt.Errorf("MaxTempAgeMinutes (%d) must be longer than the request timeout (%s)",
			c.Processing.MaxTempAgeMinutes, longest)
	}
	return nil
}

// applyEnvironmentOverrides allows environment variables to override config values
func (c *AppConfig) applyEnvironmentOverrides() {
	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			c.Server.Port = p
		}
	}

	if dataDir := os.Getenv("DATA_DIR"); dataDir != "" {
		c.Storage.DataDirectory = dataDir
	}

	if tempDir := os.Getenv("TEMP_DIR"); tempDir != "" {
		c.Storage.TempDirectory = tempDir
	}

	if level := os.Getenv("LOG_LEVEL"); level != "" {
		c.Advanced.LogLevel = level
	}

	if region := os.Getenv("ILOVE_REGION"); region != "" {
		c.Vendor.Region = region
	}

	c.Credentials = Credentials{
		PublicKey: strings.TrimSpace(os.Getenv(EnvPublicKey)),
		SecretKey: strings.TrimSpace(os.Getenv(EnvSecretKey)),
	}
}

// resolvePaths converts relative paths to absolute based on config file location
func (c *AppConfig) resolvePaths(configDir string) {
	resolve := func(p *string) {
		if *p != "" && !filepath.IsAbs(*p) {
			*p = filepath.Join(configDir, *p)
		}
	}
	resolve(&c.Storage.DataDirectory)
	resolve(&c.Storage.TempDirectory)
	resolve(&c.Storage.CatalogFile)
}

// GetServerAddr returns the server bind address
func (c *AppConfig) GetServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.BindAddress, c.Server.Port)
}

// MaxFileSize returns the per-file upload limit in bytes.
func (c *AppConfig) MaxFileSize() int64 {
	return int64(c.Limits.MaxFileSizeMB) * 1024 * 1024
}

// VendorTimeout returns the vendor HTTP timeout.
func (c *AppConfig) VendorTimeout() time.Duration {
	return time.Duration(c.Vendor.TimeoutSeconds) * time.Second
}

// relayMargin is the part of the write timeout reserved for sending the
// response after the relay finishes.
const relayMargin = 10 * time.Second

// RelayTimeout bounds a whole request, upload included, so a slow vendor
// produces an error response before the server's write deadline. Zero means
// no deadline.
func (c *AppConfig) RelayTimeout() time.Duration {
	write := time.Duration(c.Server.WriteTimeout) * time.Second
	switch {
	case write <= 0:
		return 0
	case write <= 2*relayMargin:
		return write / 2
	}
	return write - relayMargin
}

// SweepInterval returns how often stale temp files are removed.
func (c *AppConfig) SweepInterval() time.Duration {
	return time.Duration(c.Processing.SweepIntervalMinutes) * time.Minute
}

// MaxTempAge returns the age after which a temp file is considered orphaned.
func (c *AppConfig) MaxTempAge() time.Duration {
	return time.Duration(c.Processing.MaxTempAgeMinutes) * time.Minute
}

// EnsureDirectories creates all necessary directories
func (c *AppConfig) EnsureDirectories() error {
	for _, dir := range []string{c.Storage.DataDirectory, c.Storage.TempDirectory} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}
