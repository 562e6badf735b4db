// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"regexp"
	"slices"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment represents the deployment environment.
type Environment string

const (
	// Development is for local use against a developer's token server.
	Development Environment = "development"
	// Production is for packaged clients.
	Production Environment = "production"
)

// Config is the complete client configuration.
type Config struct {
	// Environment selects which override section applies.
	Environment Environment `yaml:"environment"`

	// Issuer configures the credential issuer endpoint.
	Issuer IssuerConfig `yaml:"issuer"`

	// Signaling configures the SDP exchange endpoint.
	Signaling SignalingConfig `yaml:"signaling"`

	// Transport configures the peer connection and data channel.
	Transport TransportConfig `yaml:"transport"`

	// Tools configures the function tool overlay.
	Tools ToolsConfig `yaml:"tools"`

	// Logging configures the slog handler built by the binary.
	Logging LoggingConfig `yaml:"logging"`

	Development *ConfigOverrides `yaml:"development,omitempty"`
	Production  *ConfigOverrides `yaml:"production,omitempty"`
}

// ConfigOverrides contains the fields that can be overridden per
// environment. Zero values leave the base value in place.
type ConfigOverrides struct {
	Issuer    *IssuerConfig    `yaml:"issuer,omitempty"`
	Signaling *SignalingConfig `yaml:"signaling,omitempty"`
	Transport *TransportConfig `yaml:"transport,omitempty"`
	Logging   *LoggingConfig   `yaml:"logging,omitempty"`
}

// IssuerConfig configures the credential issuer.
type IssuerConfig struct {
	// URL is fetched with GET and must return
	// {"client_secret":{"value":"..."}}.
	// Default: http://localhost:3000/token
	URL string `yaml:"url"`

	// Timeout bounds the issuer request.
	// Default: 10s
	Timeout time.Duration `yaml:"timeout"`
}

// SignalingConfig configures the SDP offer/answer endpoint.
type SignalingConfig struct {
	// BaseURL receives the offer via POST.
	// Default: https://api.openai.com/v1/realtime
	BaseURL string `yaml:"base_url"`

	// Model is sent as the model query parameter.
	// Default: gpt-4o-realtime-preview-2024-12-17
	Model string `yaml:"model"`
}

// TransportConfig configures the WebRTC peer connection.
type TransportConfig struct {
	// DataChannelLabel names the event data channel.
	// Default: oai-events
	DataChannelLabel string `yaml:"data_channel_label"`

	// NegotiationTimeout bounds the whole Start chain, from credential
	// fetch to remote description. Zero disables the bound.
	// Default: 30s (development), 20s (production)
	NegotiationTimeout time.Duration `yaml:"negotiation_timeout"`

	// ICEGatherTimeout bounds candidate gathering before the offer is sent.
	// Default: 15s
	ICEGatherTimeout time.Duration `yaml:"ice_gather_timeout"`

	// ICEServers lists STUN/TURN servers. Empty means host candidates only.
	ICEServers []ICEServerConfig `yaml:"ice_servers"`
}

// ICEServerConfig is one STUN or TURN server entry.
type ICEServerConfig struct {
	URLs       []string `yaml:"urls"`
	Username   string   `yaml:"username,omitempty"`
	Credential string   `yaml:"credential,omitempty"`
}

// ToolsConfig configures the function tool overlay.
type ToolsConfig struct {
	// FeedbackDelay is how long after a palette tool call the feedback
	// request is sent.
	// Default: 500ms
	FeedbackDelay time.Duration `yaml:"feedback_delay"`

	// SessionUpdateFile is a JSONC file replacing the built-in
	// session.update payload. Empty uses the embedded definition.
	SessionUpdateFile string `yaml:"session_update_file"`
}

// LoggingConfig configures log output.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error.
	// Default: info (development), warn (production)
	Level string `yaml:"level"`

	// Format is auto, text, or json. Auto picks text for terminals.
	// Default: auto
	Format string `yaml:"format"`

	// File receives log records instead of stderr. The terminal overlay
	// needs this because stderr belongs to the UI.
	File string `yaml:"file"`
}

// Default returns the development defaults.
func Default() *Config {
	return &Config{
		Environment: Development,
		Issuer: IssuerConfig{
			URL:     "http://localhost:3000/token",
			Timeout: 10 * time.Second,
		},
		Signaling: SignalingConfig{
			BaseURL: "https://api.openai.com/v1/realtime",
			Model:   "gpt-4o-realtime-preview-2024-12-17",
		},
		Transport: TransportConfig{
			DataChannelLabel:   "oai-events",
			NegotiationTimeout: 30 * time.Second,
			ICEGatherTimeout:   15 * time.Second,
		},
		Tools: ToolsConfig{
			FeedbackDelay: 500 * time.Millisecond,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "auto",
		},
	}
}

// Load loads configuration from the file named by PARLEY_CONFIG.
func Load() (*Config, error) {
	configPath := os.Getenv("PARLEY_CONFIG")
	if configPath == "" {
		return nil, fmt.Errorf("PARLEY_CONFIG environment variable not set; " +
			"set it to the path of your parley.yaml config file, or use --config flag")
	}
	return LoadFile(configPath)
}

// LoadFile loads configuration from path on top of Default, applies the
// environment section, and expands path variables.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	cfg.applyEnvironmentOverrides()
	cfg.expandVariables()
	return cfg, nil
}

// applyEnvironmentOverrides applies the section matching Environment.
func (c *Config) applyEnvironmentOverrides() {
	var overrides *ConfigOverrides

	switch c.Environment {
	case Development:
		overrides = c.Development
	case Production:
		overrides = c.Production
		if overrides == nil {
			overrides = &ConfigOverrides{
				Transport: &TransportConfig{NegotiationTimeout: 20 * time.Second},
				Logging:   &LoggingConfig{Level: "warn"},
			}
		}
	}

	if overrides == nil {
		return
	}

	if overrides.Issuer != nil {
		if overrides.Issuer.URL != "" {
			c.Issuer.URL = overrides.Issuer.URL
		}
		if overrides.Issuer.Timeout != 0 {
			c.Issuer.Timeout = overrides.Issuer.Timeout
		}
	}

	if overrides.Signaling != nil {
		if overrides.Signaling.BaseURL != "" {
			c.Signaling.BaseURL = overrides.Signaling.BaseURL
		}
		if overrides.Signaling.Model != "" {
			c.Signaling.Model = overrides.Signaling.Model
		}
	}

	if overrides.Transport != nil {
		if overrides.Transport.DataChannelLabel != "" {
			c.Transport.DataChannelLabel = overrides.Transport.DataChannelLabel
		}
		if overrides.Transport.NegotiationTimeout != 0 {
			c.Transport.NegotiationTimeout = overrides.Transport.NegotiationTimeout
		}
		if overrides.Transport.ICEGatherTimeout != 0 {
			c.Transport.ICEGatherTimeout = overrides.Transport.ICEGatherTimeout
		}
		if len(overrides.Transport.ICEServers) > 0 {
			c.Transport.ICEServers = overrides.Transport.ICEServers
		}
	}

	if overrides.Logging != nil {
		if overrides.Logging.Level != "" {
			c.Logging.Level = overrides.Logging.Level
		}
		if overrides.Logging.Format != "" {
			c.Logging.Format = overrides.Logging.Format
		}
		if overrides.Logging.File != "" {
			c.Logging.File = overrides.Logging.File
		}
	}
}

// expandVariables expands ${VAR} and ${VAR:-default} in path fields.
func (c *Config) expandVariables() {
	vars := map[string]string{
		"HOME": os.Getenv("HOME"),
	}
	c.Tools.SessionUpdateFile = expandVars(c.Tools.SessionUpdateFile, vars)
	c.Logging.File = expandVars(c.Logging.File, vars)
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}
		name := parts[1]
		defaultValue := ""
		if len(parts) >= 3 {
			defaultValue = parts[2]
		}
		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

// Validate checks the configuration and returns every problem found.
func (c *Config) Validate() error {
	var errs []error

	if c.Environment != Development && c.Environment != Production {
		errs = append(errs, fmt.Errorf("invalid environment: %s", c.Environment))
	}

	if err := validateURL(c.Issuer.URL); err != nil {
		errs = append(errs, fmt.Errorf("issuer.url: %w", err))
	}
	if err := validateURL(c.Signaling.BaseURL); err != nil {
		errs = append(errs, fmt.Errorf("signaling.base_url: %w", err))
	}
	if c.Signaling.Model == "" {
		errs = append(errs, fmt.Errorf("signaling.model is required"))
	}

	if c.Transport.DataChannelLabel == "" {
		errs = append(errs, fmt.Errorf("transport.data_channel_label is required"))
	}
	if c.Transport.NegotiationTimeout < 0 {
		errs = append(errs, fmt.Errorf("transport.negotiation_timeout must not be negative"))
	}
	if c.Transport.ICEGatherTimeout <= 0 {
		errs = append(errs, fmt.Errorf("transport.ice_gather_timeout must be positive"))
	}
	for index, server := range c.Transport.ICEServers {
		if len(server.URLs) == 0 {
			errs = append(errs, fmt.Errorf("transport.ice_servers[%d].urls is required", index))
		}
	}

	if c.Tools.FeedbackDelay < 0 {
		errs = append(errs, fmt.Errorf("tools.feedback_delay must not be negative"))
	}

	levels := []string{"debug", "info", "warn", "error"}
	if !slices.Contains(levels, c.Logging.Level) {
		errs = append(errs, fmt.Errorf("logging.level must be one of: %v", levels))
	}
	formats := []string{"auto", "text", "json"}
	if !slices.Contains(formats, c.Logging.Format) {
		errs = append(errs, fmt.Errorf("logging.format must be one of: %v", formats))
	}

	return errors.Join(errs...)
}

func validateURL(raw string) error {
	if raw == "" {
		return errors.New("is required")
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("scheme must be http or https, got %q", parsed.Scheme)
	}
	if parsed.Host == "" {
		return errors.New("host is required")
	}
	return nil
}
