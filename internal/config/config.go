// Package config loads the YAML configuration of the timeline service.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/penwyp/go-ha-timeline/internal/core/model"
)

const (
	DefaultListen  = ":8099"
	DefaultTimeout = 30 * time.Second
	DefaultLevel   = "info"

	FormatText = "text"
	FormatJSON = "json"
)

// Config is the top-level configuration file.
type Config struct {
	HomeAssistant HomeAssistant     `yaml:"home_assistant"`
	Log           Log               `yaml:"log"`
	Server        Server            `yaml:"server"`
	Timezone      string            `yaml:"timezone"`
	Card          *model.CardConfig `yaml:"card"`
}

// HomeAssistant holds the connection settings.
type HomeAssistant struct {
	URL     string        `yaml:"url"`
	Token   string        `yaml:"token"`
	Timeout time.Duration `yaml:"timeout"`
}

type Log struct {
	Level  string `yaml:"level"`
	File   string `yaml:"file"`
	Format string `yaml:"format"`
}

type Server struct {
	Listen string `yaml:"listen"`
}

// Load reads path, loads a .env file next to it, applies the HASS_URL and
// HASS_TOKEN overrides and validates the result.
func Load(path string) (*Config, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	// godotenv never overrides variables that are already set.
	if err := godotenv.Load(filepath.Join(filepath.Dir(path), ".env")); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg, err := Parse(content)
	if err != nil {
		return nil, err
	}
	cfg.ApplyEnv(os.Getenv)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse decodes a configuration document without validating it.
func Parse(content []byte) (*Config, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(content, &doc); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	root := documentRoot(&doc)
	if root == nil || root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("%w: configuration must be a mapping", model.ErrInvalidConfig)
	}
	card := mappingValue(root, "card")
	if card == nil {
		return nil, fmt.Errorf("%w: card section is required", model.ErrInvalidConfig)
	}
	if err := checkEntities(card); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := root.Decode(cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrInvalidConfig, err)
	}
	return cfg, nil
}

// ParseCard decodes and validates a standalone card configuration.
func ParseCard(content []byte) (*model.CardConfig, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(content, &doc); err != nil {
		return nil, fmt.Errorf("parse card: %w", err)
	}
	root := documentRoot(&doc)
	if root == nil {
		return nil, fmt.Errorf("%w: please define 'entities' as a list", model.ErrInvalidConfig)
	}
	if err := checkEntities(root); err != nil {
		return nil, err
	}

	card := &model.CardConfig{}
	if err := root.Decode(card); err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrInvalidConfig, err)
	}
	if err := card.Validate(); err != nil {
		return nil, err
	}
	return card, nil
}

// ApplyEnv overrides connection settings from the environment.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if v := strings.TrimSpace(getenv("HASS_URL")); v != "" {
		c.HomeAssistant.URL = v
	}
	if v := strings.TrimSpace(getenv("HASS_TOKEN")); v != "" {
		c.HomeAssistant.Token = v
	}
}

// Validate checks the configuration and fills defaults
func (c *Config) Validate() error {
	if c.HomeAssistant.URL == "" {
		return fmt.Errorf("%w: home_assistant.url is required (or set HASS_URL)", model.ErrInvalidConfig)
	}
	if c.HomeAssistant.Token == "" {
		return fmt.Errorf("%w: home_assistant.token is required (or set HASS_TOKEN)", model.ErrInvalidConfig)
	}
	if c.HomeAssistant.Timeout < 0 {
		return fmt.Errorf("%w: home_assistant.timeout must not be negative", model.ErrInvalidConfig)
	}
	if c.HomeAssistant.Timeout == 0 {
		c.HomeAssistant.Timeout = DefaultTimeout
	}

	if c.Log.Level == "" {
		c.Log.Level = DefaultLevel
	}
	c.Log.Level = strings.ToLower(c.Log.Level)
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("%w: unknown log level %q", model.ErrInvalidConfig, c.Log.Level)
	}
	switch c.Log.Format {
	case "":
		c.Log.Format = FormatText
	case FormatText, FormatJSON:
	default:
		return fmt.Errorf("%w: log.format must be %q or %q", model.ErrInvalidConfig, FormatText, FormatJSON)
	}

	if c.Server.Listen == "" {
		c.Server.Listen = DefaultListen
	}
	if c.Timezone == "" {
		c.Timezone = "Local"
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("%w: invalid timezone %q: %v", model.ErrInvalidConfig, c.Timezone, err)
	}

	if c.Card == nil {
		return fmt.Errorf("%w: card section is required", model.ErrInvalidConfig)
	}
	return c.Card.Validate()
}

// Location returns the configured display time zone.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

func documentRoot(doc *yaml.Node) *yaml.Node {
	if doc.Kind == yaml.DocumentNode {
		if len(doc.Content) == 0 {
			return nil
		}
		return doc.Content[0]
	}
	return doc
}

func mappingValue(m *yaml.Node, key string) *yaml.Node {
	if m.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == key {
			return m.Content[i+1]
		}
	}
	return nil
}

// checkEntities rejects cards whose entities are missing or not a list.
func checkEntities(card *yaml.Node) error {
	if card.Kind != yaml.MappingNode {
		return fmt.Errorf("%w: card configuration must be a mapping", model.ErrInvalidConfig)
	}
	entities := mappingValue(card, "entities")
	if entities == nil || entities.Kind != yaml.SequenceNode {
		return fmt.Errorf("%w: please define 'entities' as a list", model.ErrInvalidConfig)
	}
	return nil
}
