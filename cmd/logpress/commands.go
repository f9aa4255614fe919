package main

import (
	"fmt"
	"os"
	"runtime"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ajitpratap0/logpress/pkg/config"
	"github.com/ajitpratap0/logpress/pkg/errors"
	"github.com/ajitpratap0/logpress/pkg/expr"
	"github.com/ajitpratap0/logpress/pkg/formats"
	"github.com/ajitpratap0/logpress/pkg/frame"
	"github.com/ajitpratap0/logpress/pkg/logparser"
)

func newSummaryCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "summary <log>",
		Short: "Show the entry count and the first and last entries of a log",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := a.open(cmd, args[0])
			if err != nil {
				return err
			}
			out, err := p.Summary(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), out)
			return nil
		},
	}
}

func newSchemaCmd(a *app) *cobra.Command {
	var explain bool

	cmd := &cobra.Command{
		Use:   "schema <log>",
		Short: "Print the resolved columns and their types",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := a.open(cmd, args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			for _, f := range p.Schema().Fields() {
				fmt.Fprintf(tw, "%s\t%s\n", f.Name, frame.TypeLabel(f))
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			if explain {
				fmt.Fprintf(out, "\n%s\n", p.LazyFrame().Explain())
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&explain, "explain", false, "Also print the scan plan")
	return cmd
}

func newMatchCmd(a *app) *cobra.Command {
	var (
		where     string
		ordered   bool
		output    string
		overwrite bool
	)

	cmd := &cobra.Command{
		Use:   "match <log>",
		Short: "Print or write the entries matching a CEL expression",
		Long: `Print or write the entries matching a CEL expression.

Columns are variables of the expression. Columns whose names are not
identifiers are reachable through the row map.

Example:
  logpress match app.json --where 'level == "ERROR" && happiness > 10' --ordered
  logpress match app.json --where 'row["request-id"] == "abc"' --output errors.parquet`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := a.open(cmd, args[0])
			if err != nil {
				return err
			}
			pred, err := expr.CEL(where, p.Schema())
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			df, err := p.Match(ctx, pred, ordered)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if df == nil {
				fmt.Fprintln(out, "no matching log entries")
				return nil
			}
			defer df.Release()

			if output == "" {
				fmt.Fprint(out, df.String())
				return nil
			}
			rows, err := logparser.WriteFile(ctx, df.Lazy(), output, overwrite)
			if err != nil {
				return err
			}
			a.logger.Info("matches written", zap.String("output", output), zap.Int64("rows", rows))
			fmt.Fprintf(out, "wrote %d rows to %s\n", rows, output)
			return nil
		},
	}

	cmd.Flags().StringVarP(&where, "where", "w", "", "CEL boolean expression over the log columns (required)")
	cmd.Flags().BoolVar(&ordered, "ordered", false, "Sort matches by the comparator")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Write matches to this file; the extension selects the format")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Replace an existing output file")
	_ = cmd.MarkFlagRequired("where")
	return cmd
}

func newSaveCmd(a *app) *cobra.Command {
	var (
		to        string
		overwrite bool
	)

	cmd := &cobra.Command{
		Use:   "save <log>",
		Short: "Rewrite a log next to itself in another format",
		Long: `Rewrite a log next to itself in another format.

The destination keeps the log's path and swaps the extension:
parquet (zstd), json (line-delimited), csv (with header) or log
(tab separated, no header).`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := a.open(cmd, args[0])
			if err != nil {
				return err
			}
			dest, err := p.Save(cmd.Context(), to, overwrite)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), dest)
			return nil
		},
	}

	cmd.Flags().StringVarP(&to, "to", "t", "", "Destination extension: parquet, json, csv or log (required)")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Replace an existing destination")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}

func newCompressCmd(a *app) *cobra.Command {
	var overwrite bool

	cmd := &cobra.Command{
		Use:   "compress <log>",
		Short: "Write a maximally compressed parquet copy of a log",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := a.open(cmd, args[0])
			if err != nil {
				return err
			}
			dest, err := p.SaveCompressedLog(cmd.Context(), overwrite)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			src, serr := os.Stat(p.Path())
			dst, derr := os.Stat(dest)
			if serr != nil || derr != nil || dst.Size() == 0 {
				fmt.Fprintln(out, dest)
				return nil
			}
			fmt.Fprintf(out, "%s (%d -> %d bytes, %.1fx)\n",
				dest, src.Size(), dst.Size(), float64(src.Size())/float64(dst.Size()))
			return nil
		},
	}

	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Replace an existing parquet file")
	return cmd
}

func newFormatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "formats",
		Short: "List the log encodings logpress reads and writes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "EXTENSION\tNAME\tREAD\tWRITE\tDESCRIPTION")
			for _, f := range formats.All() {
				info := formats.GetFormatInfo(f)
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
					info.FileExtension, info.Name, yesNo(info.Readable), yesNo(f.Writable()), info.Description)
			}
			return tw.Flush()
		},
	}
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func newInitConfigCmd(a *app) *cobra.Command {
	var overwrite bool

	cmd := &cobra.Command{
		Use:   "init-config <file>",
		Short: "Write the effective log configuration to a YAML file",
		Long: `Write the effective log configuration to a YAML file.

The file combines --config, the flags and LOGPRESS_ variables, and can be
passed back with --config.

Example:
  logpress init-config logpress.yaml --override level=enum[INFO,WARN,ERROR] --order timestamp,level`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			cfg, err := a.logConfig(cmd)
			if err != nil {
				return err
			}
			if _, err := os.Stat(path); err == nil && !overwrite {
				return errors.New(errors.ErrorTypeDestinationExists, "config file already exists").
					WithDetail("path", path)
			}
			if err := config.Save(path, config.ToFileConfig(cfg)); err != nil {
				return err
			}
			a.logger.Info("log configuration written", zap.String("path", path))
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}

	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Replace an existing file")
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "logpress v%s\n", version)
			fmt.Fprintf(out, "Go version: %s\n", runtime.Version())
			fmt.Fprintf(out, "OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	}
}
