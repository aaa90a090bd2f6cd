package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/rflorenc/wordpress-node/internal/models"
)

// CredentialConfig represents a pre-configured WordPress site in the config file.
type CredentialConfig struct {
	Name           string `yaml:"name"`
	BaseURL        string `yaml:"base_url"`
	Authentication string `yaml:"authentication"` // basicAuth, oauth2 or applicationPassword
	Username       string `yaml:"username"`
	Password       string `yaml:"password"`
	ClientID       string `yaml:"client_id"`
	ClientSecret   string `yaml:"client_secret"`
	Insecure       bool   `yaml:"insecure"`
	CACert         string `yaml:"ca_cert"`
}

// Credential converts the entry into a credential record.
func (cc CredentialConfig) Credential() *models.Credential {
	return &models.Credential{
		Name:           cc.Name,
		BaseURL:        cc.BaseURL,
		Authentication: models.AuthMode(cc.Authentication),
		Username:       cc.Username,
		Password:       cc.Password,
		ClientID:       cc.ClientID,
		ClientSecret:   cc.ClientSecret,
		Insecure:       cc.Insecure,
		CACert:         cc.CACert,
	}
}

// Config holds all configuration (CLI flags + config file).
type Config struct {
	Listen          string             `yaml:"listen"`
	LogLevel        string             `yaml:"log_level"`
	DBPath          string             `yaml:"db_path"`
	OptionsTTL      time.Duration      `yaml:"options_ttl"`
	ResolveRESTBase *bool              `yaml:"resolve_rest_base"` // nil when neither flag nor file set it
	ContinueOnFail  *bool              `yaml:"continue_on_fail"`
	Timeout         time.Duration      `yaml:"timeout"`
	Credentials     []CredentialConfig `yaml:"credentials"`
}

const (
	DefaultListen     = ":8080"
	DefaultLogLevel   = "info"
	DefaultOptionsTTL = 5 * time.Minute
	DefaultTimeout    = 30 * time.Second
)

// Load overlays the config file at path (if any) beneath the values already
// set on c, then applies defaults. Values set on c come from CLI flags and
// take precedence over the file.
func (c *Config) Load(path string) error {
	if path != "" {
		if err := c.loadFile(path); err != nil {
			return err
		}
	}
	c.applyDefaults()
	return c.validate()
}

// loadFile reads a YAML config file. Values from the file are only applied
// if the corresponding CLI flag was not explicitly set.
func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}

	var file Config
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}

	if c.Listen == "" {
		c.Listen = file.Listen
	}
	if c.LogLevel == "" {
		c.LogLevel = file.LogLevel
	}
	if c.DBPath == "" {
		c.DBPath = file.DBPath
	}
	if c.OptionsTTL == 0 {
		c.OptionsTTL = file.OptionsTTL
	}
	if c.Timeout == 0 {
		c.Timeout = file.Timeout
	}
	if c.ResolveRESTBase == nil {
		c.ResolveRESTBase = file.ResolveRESTBase
	}
	if c.ContinueOnFail == nil {
		c.ContinueOnFail = file.ContinueOnFail
	}

	// Credentials always come from config file
	c.Credentials = file.Credentials

	return nil
}

func (c *Config) applyDefaults() {
	if c.Listen == "" {
		c.Listen = DefaultListen
	}
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
	if c.OptionsTTL <= 0 {
		c.OptionsTTL = DefaultOptionsTTL
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	for i := range c.Credentials {
		if c.Credentials[i].Authentication == "" {
			c.Credentials[i].Authentication = string(models.AuthBasic)
		}
	}
}

func (c *Config) validate() error {
	if _, err := parseLevel(c.LogLevel); err != nil {
		return err
	}
	seen := make(map[string]bool, len(c.Credentials))
	for i, cc := range c.Credentials {
		if cc.Name == "" {
			return fmt.Errorf("credentials[%d]: name is required", i)
		}
		if seen[cc.Name] {
			return fmt.Errorf("credentials[%d]: duplicate name %q", i, cc.Name)
		}
		seen[cc.Name] = true
		if err := cc.Credential().Validate(); err != nil {
			return fmt.Errorf("credentials[%d] (%s): %w", i, cc.Name, err)
		}
	}
	return nil
}

// ResolvesRESTBase reports whether post types are called by their rest_base.
func (c *Config) ResolvesRESTBase() bool {
	return c.ResolveRESTBase != nil && *c.ResolveRESTBase
}

// ContinuesOnFail is the continue-on-fail default for batches that omit it.
func (c *Config) ContinuesOnFail() bool {
	return c.ContinueOnFail != nil && *c.ContinueOnFail
}

// FindCredential returns the configured credential with the given name.
func (c *Config) FindCredential(name string) (CredentialConfig, bool) {
	for _, cc := range c.Credentials {
		if cc.Name == name {
			return cc, true
		}
	}
	return CredentialConfig{}, false
}

// SlogLevel returns the configured log level, info when unparseable.
func (c *Config) SlogLevel() slog.Level {
	lvl, err := parseLevel(c.LogLevel)
	if err != nil {
		return slog.LevelInfo
	}
	return lvl
}

func parseLevel(s string) (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return slog.LevelInfo, fmt.Errorf("log_level: %w", err)
	}
	return lvl, nil
}
