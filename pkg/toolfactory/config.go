package toolfactory

import (
	"os"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/agenttools/tools/airtable"
	"github.com/effective-security/agenttools/tools/imagedesc"
	"github.com/effective-security/x/configloader"
	"github.com/effective-security/x/values"
	"github.com/go-playground/validator/v10"
)

// Environment variables used when the configuration omits the Airtable credentials
const (
	EnvAirtableToken = "AIRTABLE_TOKEN"
	EnvAirtableBase  = "AIRTABLE_BASE"
)

// Config specifies the tools to register
type Config struct {
	OpenLibrary      *OpenLibraryConfig      `json:"open_library,omitempty" yaml:"open_library,omitempty"`
	Airtable         *AirtableConfig         `json:"airtable,omitempty" yaml:"airtable,omitempty"`
	ImageDescription *ImageDescriptionConfig `json:"image_description,omitempty" yaml:"image_description,omitempty"`
	HelloWorld       *HelloWorldConfig       `json:"hello_world,omitempty" yaml:"hello_world,omitempty"`
	// Store specifies where the tool snapshots are saved
	Store *StoreConfig `json:"store,omitempty" yaml:"store,omitempty"`
}

type OpenLibraryConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	BaseURL string `json:"base_url,omitempty" yaml:"base_url,omitempty" validate:"omitempty,url"`
}

type AirtableConfig struct {
	Enabled    bool   `json:"enabled" yaml:"enabled"`
	APIToken   string `json:"api_token,omitempty" yaml:"api_token,omitempty" validate:"required_if=Enabled true"`
	BaseID     string `json:"base_id,omitempty" yaml:"base_id,omitempty" validate:"required_if=Enabled true"`
	Endpoint   string `json:"endpoint,omitempty" yaml:"endpoint,omitempty" validate:"omitempty,url"`
	MaxRecords int    `json:"max_records,omitempty" yaml:"max_records,omitempty" validate:"gte=0"`
	PageSize   int    `json:"page_size,omitempty" yaml:"page_size,omitempty" validate:"gte=0,lte=100"`
}

type ImageDescriptionConfig struct {
	Enabled     bool   `json:"enabled" yaml:"enabled"`
	Endpoint    string `json:"endpoint,omitempty" yaml:"endpoint,omitempty" validate:"required_if=Enabled true"`
	ModelID     string `json:"model_id,omitempty" yaml:"model_id,omitempty" validate:"required_if=Enabled true"`
	APIKey      string `json:"api_key,omitempty" yaml:"api_key,omitempty"`
	InlineImage bool   `json:"inline_image,omitempty" yaml:"inline_image,omitempty"`
}

type HelloWorldConfig struct {
	Enabled bool `json:"enabled" yaml:"enabled"`
}

// StoreConfig specifies the snapshot store
type StoreConfig struct {
	// RedisURL specifies the Redis server, in redis://host:port/db format.
	// The snapshots are kept in memory when empty.
	RedisURL string `json:"redis_url,omitempty" yaml:"redis_url,omitempty" validate:"omitempty,url"`
	// Prefix is the keys namespace
	Prefix string `json:"prefix,omitempty" yaml:"prefix,omitempty"`
}

// DefaultConfig returns the configuration built from the environment:
// Open Library and HelloWorld are always enabled,
// Airtable and ImageDescription are enabled when their environment is set.
func DefaultConfig() *Config {
	cfg := &Config{
		OpenLibrary: &OpenLibraryConfig{Enabled: true},
		HelloWorld:  &HelloWorldConfig{Enabled: true},
	}

	if os.Getenv(EnvAirtableToken) != "" && os.Getenv(EnvAirtableBase) != "" {
		cfg.Airtable = &AirtableConfig{Enabled: true}
	}
	if env := imagedesc.FromEnv(); env.Endpoint != "" && env.ModelID != "" {
		cfg.ImageDescription = &ImageDescriptionConfig{Enabled: true}
	}
	cfg.expandEnv()
	return cfg
}

// LoadConfig from file, or the default configuration if file is empty
func LoadConfig(file string) (*Config, error) {
	if file == "" {
		return DefaultConfig(), nil
	}

	cfg := new(Config)
	err := configloader.UnmarshalAndExpand(file, cfg)
	if err != nil {
		return nil, err
	}
	cfg.expandEnv()

	if err = cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate returns error if the configuration is invalid
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return errors.Wrap(err, "invalid tools configuration")
	}
	return nil
}

// expandEnv fills the credentials omitted in the configuration
func (c *Config) expandEnv() {
	if c.Airtable != nil {
		c.Airtable.APIToken = values.StringsCoalesce(c.Airtable.APIToken, os.Getenv(EnvAirtableToken))
		c.Airtable.BaseID = values.StringsCoalesce(c.Airtable.BaseID, os.Getenv(EnvAirtableBase))
	}
	if c.ImageDescription != nil {
		env := imagedesc.FromEnv()
		c.ImageDescription.Endpoint = values.StringsCoalesce(c.ImageDescription.Endpoint, env.Endpoint)
		c.ImageDescription.ModelID = values.StringsCoalesce(c.ImageDescription.ModelID, env.ModelID)
		c.ImageDescription.APIKey = values.StringsCoalesce(c.ImageDescription.APIKey, env.APIKey)
	}
}

func (c *AirtableConfig) options() *airtable.Options {
	return &airtable.Options{
		APIToken:   c.APIToken,
		BaseID:     c.BaseID,
		Endpoint:   c.Endpoint,
		MaxRecords: c.MaxRecords,
		PageSize:   c.PageSize,
	}
}

func (c *ImageDescriptionConfig) config() *imagedesc.Config {
	return &imagedesc.Config{
		Endpoint:    c.Endpoint,
		ModelID:     c.ModelID,
		APIKey:      c.APIKey,
		InlineImage: c.InlineImage,
	}
}
