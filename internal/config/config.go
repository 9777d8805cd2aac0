package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v9"

	"github.com/bcnelson/portainer-stack-deploy/internal/domain"
	"github.com/bcnelson/portainer-stack-deploy/internal/render"
	"github.com/bcnelson/portainer-stack-deploy/internal/validation"
)

// DefaultEndpointID is used when the endpoint input is missing or not a
// positive number.
const DefaultEndpointID = 1

// Config holds all configuration for a deployment run.
type Config struct {
	Portainer PortainerConfig
	Stack     StackConfig
	Workspace WorkspaceConfig
	Log       LogConfig
}

// PortainerConfig holds the remote API configuration.
type PortainerConfig struct {
	Host     string        `env:"INPUT_PORTAINER-HOST"`
	Token    string        `env:"INPUT_TOKEN"`
	Timeout  time.Duration `env:"PORTAINER_TIMEOUT" envDefault:"30s"`
	FileShim string        `env:"PORTAINER_FILE_SHIM"` // Path to file for testing shim (disables real API)
}

// StackConfig holds the action inputs describing the stack.
type StackConfig struct {
	SwarmID           string `env:"INPUT_SWARM-ID"`
	EndpointID        string `env:"INPUT_ENDPOINT-ID"`
	Name              string `env:"INPUT_STACK-NAME"`
	Definition        string `env:"INPUT_STACK-DEFINITION"`
	TemplateVariables string `env:"INPUT_TEMPLATE-VARIABLES"`
	TagReplacements   string `env:"INPUT_TAG-REPLACEMENTS"`
}

// WorkspaceConfig holds the checkout location definitions are read from.
type WorkspaceConfig struct {
	Root string `env:"GITHUB_WORKSPACE" envDefault:"."`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level string `env:"LOG_LEVEL" envDefault:"info"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(&cfg.Portainer); err != nil {
		return nil, fmt.Errorf("parsing portainer config: %w", err)
	}
	if err := env.Parse(&cfg.Stack); err != nil {
		return nil, fmt.Errorf("parsing stack config: %w", err)
	}
	if err := env.Parse(&cfg.Workspace); err != nil {
		return nil, fmt.Errorf("parsing workspace config: %w", err)
	}
	if err := env.Parse(&cfg.Log); err != nil {
		return nil, fmt.Errorf("parsing log config: %w", err)
	}

	return cfg, nil
}

// ParsedEndpointID returns the endpoint id, falling back to
// DefaultEndpointID when the input is blank, malformed or not positive.
func (c *StackConfig) ParsedEndpointID() int {
	id, err := strconv.Atoi(strings.TrimSpace(c.EndpointID))
	if err != nil || id <= 0 {
		return DefaultEndpointID
	}
	return id
}

// Validate checks if the configuration is valid. Failures are reported as
// validation.ValidationErrors keyed by input name.
func (c *Config) Validate() error {
	var errs validation.ValidationErrors

	// If using file shim, Portainer credentials are not required
	if c.Portainer.FileShim == "" {
		if err := validation.ValidateHost(c.Portainer.Host); err != nil {
			errs.Add(validation.FieldHost, c.Portainer.Host, err.Error())
		}
		if c.Portainer.Token == "" {
			errs.Add(validation.FieldToken, "", "token is required (or set PORTAINER_FILE_SHIM for testing)")
		}
	}
	if c.Stack.Name == "" {
		errs.Add(validation.FieldStackName, "", "stack-name is required")
	}
	if c.Portainer.Timeout < 0 {
		errs.Add(validation.FieldTimeout, c.Portainer.Timeout.String(), "PORTAINER_TIMEOUT must not be negative")
	}
	return errs.Err()
}

// UseFileShim returns true if the file shim should be used instead of the real API.
func (c *Config) UseFileShim() bool {
	return c.Portainer.FileShim != ""
}

// DeploymentRequest builds the reconciler input from the configuration.
func (c *Config) DeploymentRequest() (domain.DeploymentRequest, error) {
	vars, err := render.ParseVariables(c.Stack.TemplateVariables)
	if err != nil {
		return domain.DeploymentRequest{}, err
	}
	return domain.DeploymentRequest{
		Host:              c.Portainer.Host,
		Token:             c.Portainer.Token,
		SwarmID:           c.Stack.SwarmID,
		EndpointID:        c.Stack.ParsedEndpointID(),
		StackName:         c.Stack.Name,
		Definition:        c.Stack.Definition,
		TemplateVariables: vars,
		TagReplacements:   c.Stack.TagReplacements,
	}, nil
}
