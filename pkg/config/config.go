package config

import (
	"os"
	"time"

	"github.com/core-tools/hsu-nginx-agent/pkg/errors"

	"gopkg.in/yaml.v3"
)

// AgentConfig represents the top-level agent configuration file structure
type AgentConfig struct {
	Agent      AgentOptions     `yaml:"agent,omitempty"`
	Containers ContainersConfig `yaml:"containers"`
	Nginx      NginxOverrides   `yaml:"nginx,omitempty"`
	EventSink  *EventSinkConfig `yaml:"event_sink,omitempty"`
	Registry   *RegistryConfig  `yaml:"registry,omitempty"`
}

// AgentOptions represents agent-level options
type AgentOptions struct {
	LogLevel string `yaml:"log_level,omitempty"`
}

// ContainersConfig holds per-instance-type deployment defaults
type ContainersConfig struct {
	Nginx NginxContainerConfig `yaml:"nginx"`
}

// NginxContainerConfig holds deployment-wide defaults for nginx instances
type NginxContainerConfig struct {
	PollIntervals map[string]time.Duration `yaml:"poll_intervals,omitempty"`
	UploadConfig  bool                     `yaml:"upload_config,omitempty"`
	RunTest       bool                     `yaml:"run_test,omitempty"`
	UploadSSL     bool                     `yaml:"upload_ssl,omitempty"`
}

// NginxOverrides holds operator-supplied status URL overrides.
// The plus_status override applies to the internal candidate list only.
type NginxOverrides struct {
	StubStatus string `yaml:"stub_status,omitempty"`
	PlusStatus string `yaml:"plus_status,omitempty"`
}

// EventSinkConfig configures the AMQP event sink; nil means log-only events
type EventSinkConfig struct {
	URL        string `yaml:"url"`
	Exchange   string `yaml:"exchange,omitempty"`
	RoutingKey string `yaml:"routing_key,omitempty"`
}

// RegistryConfig configures the local instance registry; nil disables it
type RegistryConfig struct {
	Path string `yaml:"path"`
}

// DefaultPollInterval is used when poll_intervals has no entry for a category
// and no "default" entry either
const DefaultPollInterval = 10 * time.Second

// LoadFromFile loads agent configuration from a YAML file
func LoadFromFile(filename string) (*AgentConfig, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, errors.NewIOError("failed to read configuration file", err).WithContext("filename", filename)
	}

	var config AgentConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, errors.NewConfigParseError("failed to parse YAML configuration", err).WithContext("filename", filename)
	}

	setDefaults(&config)

	if err := Validate(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

// Default returns a configuration with all defaults applied
func Default() *AgentConfig {
	config := &AgentConfig{}
	setDefaults(config)
	return config
}

func setDefaults(config *AgentConfig) {
	if config.Agent.LogLevel == "" {
		config.Agent.LogLevel = "info"
	}
	if config.Containers.Nginx.PollIntervals == nil {
		config.Containers.Nginx.PollIntervals = map[string]time.Duration{
			"default": DefaultPollInterval,
		}
	}
	if config.EventSink != nil && config.EventSink.Exchange == "" {
		config.EventSink.Exchange = "agent-events"
	}
}

// Validate validates the configuration structure
func Validate(config *AgentConfig) error {
	if config == nil {
		return errors.NewValidationError("configuration cannot be nil", nil)
	}
	for category, interval := range config.Containers.Nginx.PollIntervals {
		if interval <= 0 {
			return errors.NewValidationError("poll interval must be positive", nil).
				WithContext("category", category).
				WithContext("interval", interval.String())
		}
	}
	if config.EventSink != nil && config.EventSink.URL == "" {
		return errors.NewValidationError("event sink URL is required when event_sink is set", nil)
	}
	if config.Registry != nil && config.Registry.Path == "" {
		return errors.NewValidationError("registry path is required when registry is set", nil)
	}
	return nil
}
