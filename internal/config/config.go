package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

const (
	// ConfigFileName is the name of the config file looked up next to the
	// document being served
	ConfigFileName = "livesync.yaml"

	// DefaultAttributeName is the attribute carrying tag identifiers in
	// instrumented markup
	DefaultAttributeName = "data-tracking-id"

	DefaultAddr     = "localhost:8080"
	DefaultDebounce = 50 * time.Millisecond
)

// Config represents the livesync configuration
type Config struct {
	// Incremental enables partial re-parses; when false every edit is a full rebuild
	Incremental bool `yaml:"incremental"`

	// AttributeName is injected into every element of instrumented markup
	AttributeName string `yaml:"attribute_name" validate:"required,startswith=data-,max=64"`

	// MinifyInjection minifies the fragment injected into the head
	MinifyInjection bool `yaml:"minify_injection"`

	// Addr is the development server listen address
	Addr string `yaml:"addr" validate:"required,hostname_port"`

	// Debounce collapses bursts of file events
	Debounce time.Duration `yaml:"debounce" validate:"gte=0s,lte=10s"`

	Debug bool `yaml:"debug,omitempty"`
}

var validate = validator.New()

// DefaultConfig returns a new Config with default values
func DefaultConfig() *Config {
	return &Config{
		Incremental:     true,
		AttributeName:   DefaultAttributeName,
		MinifyInjection: true,
		Addr:            DefaultAddr,
		Debounce:        DefaultDebounce,
	}
}

// Load loads the configuration from path. If the file doesn't exist, returns
// a default config. Keys missing from the file keep their defaults.
func Load(path string) (*Config, error) {
	config := DefaultConfig()

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return config, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", path, err)
	}
	return config, nil
}

// Save writes the configuration to path, creating its directory if needed
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Validate checks every field, returning a MultiError listing the failures
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		if fieldErrors := ValidationToMultiError(err); len(fieldErrors) > 0 {
			return fieldErrors
		}
		return err
	}
	return nil
}

// FieldError represents a validation error for a specific field
type FieldError struct {
	Field   string
	Message string
}

func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// MultiError is a collection of field errors (implements error interface)
type MultiError []FieldError

func (m MultiError) Error() string {
	if len(m) == 0 {
		return ""
	}
	var msgs []string
	for _, err := range m {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// ValidationToMultiError converts go-playground/validator errors to MultiError
func ValidationToMultiError(err error) MultiError {
	var fieldErrors MultiError

	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return fieldErrors
	}

	for _, e := range validationErrs {
		var message string
		switch e.Tag() {
		case "required":
			message = "is required"
		case "startswith":
			message = fmt.Sprintf("must start with %q", e.Param())
		case "max":
			message = fmt.Sprintf("must be at most %s characters", e.Param())
		case "hostname_port":
			message = "must be a host:port address"
		case "gte", "lte":
			message = fmt.Sprintf("is out of range (%s %s)", e.Tag(), e.Param())
		default:
			message = "is invalid"
		}

		fieldErrors = append(fieldErrors, FieldError{
			Field:   strings.ToLower(e.Field()),
			Message: message,
		})
	}

	return fieldErrors
}
