package config

import (
	"errors"
	"fmt"
	"net/url"

	"github.com/go-playground/validator/v10"
)

// validate is the singleton validator instance
var validate *validator.Validate

func init() {
	validate = validator.New()
}

// Validate validates the configuration using struct tags and custom rules.
//
// Validation accepts both uppercase and lowercase log levels; normalization
// happens in ApplyDefaults.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return formatValidationError(err)
	}

	if err := validateCustomRules(cfg); err != nil {
		return err
	}

	return nil
}

// validateCustomRules performs validation beyond struct tags.
func validateCustomRules(cfg *Config) error {
	if !cfg.Adapters.FTP.Enabled {
		return fmt.Errorf("adapters: at least one adapter must be enabled")
	}

	if err := cfg.Adapters.FTP.Validate(); err != nil {
		return fmt.Errorf("adapters.ftp: %w", err)
	}

	for name, raw := range map[string]string{
		"remote.filesystem_url":  cfg.Remote.FileSystemURL,
		"remote.filehandler_url": cfg.Remote.FileHandlerURL,
	} {
		u, err := url.Parse(raw)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return fmt.Errorf("%s: scheme must be http or https, got %q", name, u.Scheme)
		}
	}

	if cfg.Journal.Type == "memory" && !cfg.Server.Metrics.Enabled {
		return fmt.Errorf("journal.type: the memory journal is only readable at /journal on the metrics server; " +
			"enable server.metrics or use badger or s3")
	}

	return validateJournal(&cfg.Journal)
}

// validateJournal checks that the section of the selected type carries the
// options its store cannot default.
func validateJournal(cfg *JournalConfig) error {
	required := map[string][]string{
		"badger": {"path"},
		"s3":     {"bucket", "region"},
	}

	var section map[string]any
	switch cfg.Type {
	case "badger":
		section = cfg.Badger
	case "s3":
		section = cfg.S3
	}

	for _, key := range required[cfg.Type] {
		if v, ok := section[key]; !ok || v == "" {
			return fmt.Errorf("journal.%s: %s is required when journal.type is %q", cfg.Type, key, cfg.Type)
		}
	}
	return nil
}

// formatValidationError converts validator errors into user-friendly messages.
func formatValidationError(err error) error {
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) && len(validationErrs) > 0 {
		e := validationErrs[0]
		return fmt.Errorf("%s: validation failed on '%s' tag (value: %v)",
			e.Namespace(), e.Tag(), e.Value())
	}
	return err
}
