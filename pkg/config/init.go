package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const configHeader = `# FTPFighter Configuration File
#
# Every key can be overridden with an environment variable prefixed with
# FTPFIGHTER_, e.g. FTPFIGHTER_REMOTE_FILESYSTEM_URL. The FTP_SERVICE_*
# variables of earlier deployments are honored as well.
`

var sectionComments = map[string]string{
	"logging":  "Log level (DEBUG, INFO, WARN, ERROR), format (text, json) and output (stdout, stderr, file path)",
	"server":   "Process-wide settings and the Prometheus endpoint",
	"remote":   "FileFighter services. request_timeout bounds metadata calls only",
	"journal":  "Operation journal: none, memory, badger or s3. Only the section of the selected type is used. memory is read at /journal on the metrics server; badger and s3 with `ftpfighter journal`",
	"adapters": "Protocol adapters",
}

// InitConfig writes the default configuration to GetDefaultConfigPath and
// returns that path. An existing file is only replaced when force is set.
func InitConfig(force bool) (string, error) {
	path := GetDefaultConfigPath()
	if err := InitConfigToPath(path, force); err != nil {
		return "", err
	}
	return path, nil
}

// InitConfigToPath writes the default configuration to path, creating parent
// directories as needed.
func InitConfigToPath(path string, force bool) error {
	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("config file already exists at %s (use --force to overwrite)", path)
	}

	content, err := generateYAMLWithComments(GetDefaultConfig())
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// generateYAMLWithComments renders cfg as YAML with a header and a comment
// above each top-level section. Durations are written in their string form
// so the file stays readable.
func generateYAMLWithComments(cfg *Config) (string, error) {
	var doc yaml.Node
	if err := doc.Encode(cfg); err != nil {
		return "", fmt.Errorf("failed to encode config: %w", err)
	}

	humanizeDurations(&doc)

	for i := 0; i+1 < len(doc.Content); i += 2 {
		key := doc.Content[i]
		if comment, ok := sectionComments[key.Value]; ok {
			key.HeadComment = comment
		}
	}

	var buf bytes.Buffer
	buf.WriteString(configHeader)
	buf.WriteString("\n")

	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(&doc); err != nil {
		return "", fmt.Errorf("failed to render config: %w", err)
	}
	if err := enc.Close(); err != nil {
		return "", fmt.Errorf("failed to render config: %w", err)
	}

	return buf.String(), nil
}

// humanizeDurations rewrites integer values of *_timeout keys, which yaml.v3
// encodes as nanoseconds, into duration strings.
func humanizeDurations(n *yaml.Node) {
	if n.Kind == yaml.MappingNode {
		for i := 0; i+1 < len(n.Content); i += 2 {
			key, value := n.Content[i], n.Content[i+1]
			if strings.HasSuffix(key.Value, "timeout") && value.Tag == "!!int" {
				if ns, err := strconv.ParseInt(value.Value, 10, 64); err == nil {
					value.Value = time.Duration(ns).String()
					value.Tag = "!!str"
				}
			}
		}
	}
	for _, child := range n.Content {
		humanizeDurations(child)
	}
}
