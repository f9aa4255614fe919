package config

// LogConfig carries the information a LogParser needs to interpret a log.
// It is a value type; accessors return copies so a LogConfig cannot be
// changed after construction.
type LogConfig struct {
	comparator      string
	schemaOverrides map[string]DataType
	preferredOrder  []string
}

// Option configures a LogConfig
type Option func(*LogConfig)

// New creates a LogConfig. It never fails: the comparator is checked
// against a real schema only when the config is bound to a log.
func New(comparator string, opts ...Option) LogConfig {
	c := LogConfig{comparator: comparator}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// WithSchemaOverrides declares explicit types for fields of JSON logs.
// A nil or empty map leaves type inference to the engine.
func WithSchemaOverrides(overrides map[string]DataType) Option {
	return func(c *LogConfig) {
		if len(overrides) == 0 {
			c.schemaOverrides = nil
			return
		}
		c.schemaOverrides = make(map[string]DataType, len(overrides))
		for k, v := range overrides {
			c.schemaOverrides[k] = v
		}
	}
}

// WithPreferredOrder sets the leading output columns
func WithPreferredOrder(fields ...string) Option {
	return func(c *LogConfig) {
		if len(fields) == 0 {
			c.preferredOrder = nil
			return
		}
		c.preferredOrder = append([]string(nil), fields...)
	}
}

// Comparator returns the field used for ordering records
func (c LogConfig) Comparator() string {
	return c.comparator
}

// SchemaOverrides returns a copy of the declared field types, or nil
func (c LogConfig) SchemaOverrides() map[string]DataType {
	if c.schemaOverrides == nil {
		return nil
	}
	out := make(map[string]DataType, len(c.schemaOverrides))
	for k, v := range c.schemaOverrides {
		out[k] = v
	}
	return out
}

// PreferredOrder returns a copy of the preferred leading columns, or nil
func (c LogConfig) PreferredOrder() []string {
	if c.preferredOrder == nil {
		return nil
	}
	return append([]string(nil), c.preferredOrder...)
}
