// Package config loads YAML configuration files with environment
// variable expansion ($VAR and ${VAR} in any value).
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Validator is implemented by configuration types that check themselves
// after decoding.
type Validator interface {
	Validate() error
}

// Load reads filename, expands environment references, decodes the YAML
// into target and, when target implements Validator, validates it.
// Unknown keys are rejected so typos fail loudly instead of silently
// falling back to defaults.
func Load[T any](filename string, target *T) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("read config file %s: %w", filename, err)
	}

	expanded := os.ExpandEnv(string(data))

	dec := yaml.NewDecoder(strings.NewReader(expanded))
	dec.KnownFields(true)
	if err := dec.Decode(target); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("parse config file %s: %w", filename, err)
	}

	if v, ok := any(target).(Validator); ok {
		if err := v.Validate(); err != nil {
			return fmt.Errorf("config validation: %w", err)
		}
	}

	return nil
}

// LoadIfExists loads filename when present and leaves target untouched
// otherwise, so callers can layer a file over compiled-in defaults.
func LoadIfExists[T any](filename string, target *T) error {
	if _, err := os.Stat(filename); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return Load(filename, target)
}
