package config

import (
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ajitpratap0/logpress/pkg/errors"
)

// FileConfig is the on-disk (YAML) form of a LogConfig
type FileConfig struct {
	Comparator      string            `yaml:"comparator" json:"comparator"`
	SchemaOverrides map[string]string `yaml:"schema_overrides,omitempty" json:"schema_overrides,omitempty"`
	PreferredOrder  []string          `yaml:"preferred_order,omitempty" json:"preferred_order,omitempty"`
}

// Load reads a LogConfig from a YAML file
func Load(filePath string) (LogConfig, error) {
	fc, err := LoadFile(filePath)
	if err != nil {
		return LogConfig{}, err
	}
	return fc.LogConfig()
}

// LoadFile reads the raw FileConfig from a YAML file
func LoadFile(filePath string) (FileConfig, error) {
	data, err := os.ReadFile(filePath) //nolint:gosec // G304: path is supplied by the operator
	if err != nil {
		return FileConfig{}, errors.Wrap(err, errors.ErrorTypeConfig, "failed to read config file").
			WithDetail("path", filePath)
	}

	content := substituteEnvVars(string(data))

	var fc FileConfig
	if err := yaml.Unmarshal([]byte(content), &fc); err != nil {
		return FileConfig{}, errors.Wrap(err, errors.ErrorTypeConfig, "failed to parse YAML").
			WithDetail("path", filePath)
	}
	return fc, nil
}

// Save writes a FileConfig as YAML
func Save(filePath string, fc FileConfig) error {
	data, err := yaml.Marshal(fc)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeConfig, "failed to marshal YAML")
	}
	if err := os.WriteFile(filePath, data, 0o644); err != nil { //nolint:gosec
		return errors.Wrap(err, errors.ErrorTypeConfig, "failed to write config file").
			WithDetail("path", filePath)
	}
	return nil
}

// LogConfig converts the file form, parsing every declared type
func (fc FileConfig) LogConfig() (LogConfig, error) {
	var overrides map[string]DataType
	if len(fc.SchemaOverrides) > 0 {
		overrides = make(map[string]DataType, len(fc.SchemaOverrides))
		for field, typ := range fc.SchemaOverrides {
			dt, err := ParseDataType(typ)
			if err != nil {
				return LogConfig{}, errors.Wrap(err, errors.ErrorTypeConfig, "invalid schema override").
					WithDetail("field", field)
			}
			overrides[field] = dt
		}
	}
	return New(fc.Comparator,
		WithSchemaOverrides(overrides),
		WithPreferredOrder(fc.PreferredOrder...),
	), nil
}

// ToFileConfig converts a LogConfig back to its file form
func ToFileConfig(c LogConfig) FileConfig {
	fc := FileConfig{
		Comparator:     c.Comparator(),
		PreferredOrder: c.PreferredOrder(),
	}
	if overrides := c.SchemaOverrides(); overrides != nil {
		fc.SchemaOverrides = make(map[string]string, len(overrides))
		for k, v := range overrides {
			fc.SchemaOverrides[k] = v.String()
		}
	}
	return fc
}

// ParseOverrides parses field=type pairs such as "level=enum[INFO,ERROR]".
func ParseOverrides(pairs []string) (map[string]DataType, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	out := make(map[string]DataType, len(pairs))
	for _, pair := range pairs {
		field, typ, ok := strings.Cut(pair, "=")
		field = strings.TrimSpace(field)
		if !ok || field == "" {
			return nil, errors.Newf(errors.ErrorTypeConfig, "override %q must look like field=type", pair)
		}
		dt, err := ParseDataType(typ)
		if err != nil {
			return nil, err
		}
		out[field] = dt
	}
	return out, nil
}

// OverrideFields returns the override field names in sorted order
func OverrideFields(overrides map[string]DataType) []string {
	names := make([]string, 0, len(overrides))
	for k := range overrides {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// substituteEnvVars replaces ${VAR_NAME} with environment variable values
func substituteEnvVars(content string) string {
	var b strings.Builder
	for {
		start := strings.Index(content, "${")
		if start == -1 {
			break
		}
		end := strings.Index(content[start:], "}")
		if end == -1 {
			break
		}
		end += start

		b.WriteString(content[:start])
		b.WriteString(os.Getenv(content[start+2 : end]))
		content = content[end+1:]
	}
	b.WriteString(content)
	return b.String()
}
