package config

import (
	"bytes"
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// envRef matches ${VAR} and ${VAR:-default} references in the raw YAML.
var envRef = regexp.MustCompile(`\$\{(\w+)(?::-([^}]*))?\}`)

// Load reads the YAML file at path, expands environment references, fills
// defaults, and validates. The returned config is ready to use.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	expanded, err := expandEnv(raw)
	if err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(expanded, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	cfg.Defaults()
	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// expandEnv substitutes every ${VAR} reference with its environment value.
// A reference with a :-default falls back to the default when the variable
// is unset; a reference without one is an error. All missing variables are
// reported in a single error so a broken deployment surfaces them at once.
func expandEnv(raw []byte) ([]byte, error) {
	var (
		out     bytes.Buffer
		missing []string
	)

	last := 0
	for _, m := range envRef.FindAllSubmatchIndex(raw, -1) {
		out.Write(raw[last:m[0]])
		last = m[1]

		name := string(raw[m[2]:m[3]])
		if value, ok := os.LookupEnv(name); ok {
			out.WriteString(value)
			continue
		}
		if m[4] >= 0 {
			out.Write(raw[m[4]:m[5]])
			continue
		}
		missing = append(missing, name)
	}
	out.Write(raw[last:])

	if len(missing) > 0 {
		return nil, fmt.Errorf("unresolved variables: %s", strings.Join(missing, ", "))
	}
	return out.Bytes(), nil
}
