package main

import (
	"context"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/ajitpratap0/logpress/pkg/config"
	"github.com/ajitpratap0/logpress/pkg/logger"
	"github.com/ajitpratap0/logpress/pkg/logparser"
	"github.com/ajitpratap0/logpress/pkg/memlimit"
	"github.com/ajitpratap0/logpress/pkg/metrics"
	"github.com/ajitpratap0/logpress/pkg/observability"
)

const (
	envPrefix         = "LOGPRESS"
	defaultComparator = "timestamp"
	cliComponent      = "logpress-cli"
)

// app holds the state shared by every command of one invocation
type app struct {
	v        *viper.Viper
	logger   *zap.Logger
	registry *prometheus.Registry
	metrics  *metrics.Collector
	shutdown func(context.Context) error
}

func newApp(v *viper.Viper) *app {
	return &app{v: v, logger: zap.NewNop()}
}

func (a *app) rootCmd() *cobra.Command {
	v := a.v
	root := &cobra.Command{
		Use:   "logpress",
		Short: "Summarize, filter and compress structured logs",
		Long: `logpress reads line-delimited JSON or parquet logs lazily.
It prints compact summaries, filters entries with CEL expressions and
rewrites logs as parquet, JSON, CSV or tab separated text.

Every flag can also be set through a LOGPRESS_ environment variable,
for example LOGPRESS_MEMORY_LIMIT=auto. List settings separate items
with commas, except LOGPRESS_OVERRIDE which uses semicolons.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init()
		},
		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			a.logMetrics()
		},
	}

	pf := root.PersistentFlags()
	pf.String("config", "", "YAML log configuration file")
	pf.String("comparator", defaultComparator, "Field that orders log entries")
	pf.StringArray("override", nil, "Schema override as field=type, repeatable (e.g. level=enum[INFO,ERROR])")
	pf.StringSlice("order", nil, "Preferred column order, comma separated")
	pf.String("log-level", "warn", "Log level (debug, info, warn, error)")
	pf.String("log-format", "console", "Log encoding (json, console)")
	pf.String("memory-limit", "0", "Memory budget for match results: auto, 0 for none, or a size in MB or GB")
	pf.Bool("trace", false, "Export OpenTelemetry spans of each operation to stderr")

	_ = v.BindPFlags(pf)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	root.AddCommand(
		newSummaryCmd(a),
		newSchemaCmd(a),
		newMatchCmd(a),
		newSaveCmd(a),
		newCompressCmd(a),
		newInitConfigCmd(a),
		newFormatsCmd(),
		newVersionCmd(),
	)
	return root
}

func (a *app) init() error {
	if err := logger.Init(logger.Config{
		Level:    a.v.GetString("log-level"),
		Encoding: a.v.GetString("log-format"),
	}); err != nil {
		return err
	}
	a.logger = logger.Get().With(zap.String("component", cliComponent))

	if a.v.GetBool("trace") {
		cfg := observability.DefaultTracingConfig()
		cfg.ServiceVersion = version
		shutdown, err := observability.Init(cfg)
		if err != nil {
			return err
		}
		a.shutdown = shutdown
	}

	a.registry = prometheus.NewRegistry()
	collector, err := metrics.NewCollector(a.registry)
	if err != nil {
		return err
	}
	a.metrics = collector
	return nil
}

// close flushes pending spans
func (a *app) close(ctx context.Context) error {
	if a.shutdown == nil {
		return nil
	}
	err := a.shutdown(ctx)
	a.shutdown = nil
	return err
}

// logConfig layers flags and LOGPRESS_ variables over the --config file
func (a *app) logConfig(cmd *cobra.Command) (config.LogConfig, error) {
	cfg := config.New(defaultComparator)
	if path := a.v.GetString("config"); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return config.LogConfig{}, err
		}
		cfg = loaded
		a.logger.Debug("loaded log configuration", zap.String("path", path))
	}

	comparator := cfg.Comparator()
	if comparator == "" || a.v.IsSet("comparator") {
		comparator = a.v.GetString("comparator")
	}

	overrides := make(map[string]config.DataType, len(cfg.SchemaOverrides()))
	for field, dt := range cfg.SchemaOverrides() {
		overrides[field] = dt
	}
	extra, err := config.ParseOverrides(a.list(cmd, "override", ";"))
	if err != nil {
		return config.LogConfig{}, err
	}
	for field, dt := range extra {
		overrides[field] = dt
	}

	order := cfg.PreferredOrder()
	if flagged := a.list(cmd, "order", ","); len(flagged) > 0 {
		order = flagged
	}

	return config.New(comparator,
		config.WithSchemaOverrides(overrides),
		config.WithPreferredOrder(order...),
	), nil
}

// list reads a list setting from its flag, falling back to a sep separated
// environment value.
func (a *app) list(cmd *cobra.Command, key, sep string) []string {
	flags := cmd.Flags()
	if f := flags.Lookup(key); f != nil && f.Changed {
		var values []string
		if f.Value.Type() == "stringArray" {
			values, _ = flags.GetStringArray(key)
		} else {
			values, _ = flags.GetStringSlice(key)
		}
		return values
	}
	if !a.v.IsSet(key) {
		return nil
	}
	raw, ok := a.v.Get(key).(string)
	if !ok {
		return nil
	}
	var values []string
	for _, item := range strings.Split(raw, sep) {
		if item = strings.TrimSpace(item); item != "" {
			values = append(values, item)
		}
	}
	return values
}

// open tags the command context with the log and the command name, then
// builds the parser for path.
func (a *app) open(cmd *cobra.Command, path string) (*logparser.LogParser, error) {
	ctx := logger.ContextWithOperation(logger.ContextWithSource(cmd.Context(), path), cmd.Name())
	cmd.SetContext(ctx)
	a.logger = logger.WithContext(ctx).With(zap.String("component", cliComponent))

	cfg, err := a.logConfig(cmd)
	if err != nil {
		return nil, err
	}
	limit, err := memlimit.Resolve(a.v.GetString("memory-limit"))
	if err != nil {
		return nil, err
	}

	return logparser.New(path, cfg,
		logparser.WithLogger(a.logger),
		logparser.WithMetrics(a.metrics),
		logparser.WithMemoryLimit(limit),
	)
}

// logMetrics reports the collected counters at debug level
func (a *app) logMetrics() {
	if a.registry == nil || !a.logger.Core().Enabled(zap.DebugLevel) {
		return
	}
	families, err := a.registry.Gather()
	if err != nil {
		a.logger.Debug("failed to gather metrics", zap.Error(err))
		return
	}
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			fields := []zap.Field{zap.String("metric", mf.GetName())}
			for _, lp := range m.GetLabel() {
				fields = append(fields, zap.String(lp.GetName(), lp.GetValue()))
			}
			switch {
			case m.GetCounter() != nil:
				fields = append(fields, zap.Float64("value", m.GetCounter().GetValue()))
			case m.GetHistogram() != nil:
				fields = append(fields,
					zap.Uint64("count", m.GetHistogram().GetSampleCount()),
					zap.Float64("sum_seconds", m.GetHistogram().GetSampleSum()))
			}
			a.logger.Debug("metric", fields...)
		}
	}
}
