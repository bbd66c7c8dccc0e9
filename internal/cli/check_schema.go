package cli

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/crocs-muni/scrutiny-viz/internal/compare"
	"github.com/crocs-muni/scrutiny-viz/internal/schema"
)

// SectionInfo is the effective configuration of one section as printed by
// check-schema.
type SectionInfo struct {
	*schema.Section
	// ResolvedComparator is the comparator that will run, after fallback.
	ResolvedComparator string `json:"resolved_comparator"`
	Warning            string `json:"warning,omitempty"`
}

// SchemaInfo is the JSON payload of check-schema.
type SchemaInfo struct {
	Path     string        `json:"path"`
	Version  string        `json:"schema_version"`
	Sections []SectionInfo `json:"sections"`
	Warnings []string      `json:"warnings,omitempty"`
}

// NewCheckSchemaCommand creates the check-schema command.
func NewCheckSchemaCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check-schema [schema-file]",
		Short: "Resolve a schema and print its effective configuration",
		Long: `Resolve a schema file and print the effective configuration of every
section after defaults have been merged in.

The schema is taken from the argument, else from --schema or the config file.
Comparator names that are not registered are reported with the comparator
that will run instead.

Example:
  scrutiny check-schema schema.yml
  scrutiny check-schema schema.cue --format json`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if len(args) == 1 {
				path = args[0]
			} else if rootOpts.Config != nil {
				path = rootOpts.Config.Schema
			}
			return runCheckSchema(rootOpts, compare.Default(), path, cmd)
		},
	}
	cmd.Flags().StringP("schema", "s", "", "schema file (.yml, .yaml, .json or .cue)")
	return cmd
}

func runCheckSchema(opts *RootOptions, reg *compare.Registry, path string, cmd *cobra.Command) error {
	out := opts.formatter(cmd)
	if path == "" {
		return out.fail(CodeConfig, ExitCommandError, "a schema file is required", nil)
	}

	sch, err := schema.LoadFile(path, schema.WithLogger(opts.logger()))
	if err != nil {
		return out.fail(CodeSchema, ExitCommandError, "failed to load schema", err)
	}

	info := SchemaInfo{Path: path, Version: sch.Version, Warnings: sch.Warnings}
	for _, sec := range sch.Sections {
		si := SectionInfo{Section: sec}
		res, err := reg.Resolve(sec.Component.Comparator)
		switch {
		case err != nil:
			si.Warning = err.Error()
		case res.Warning != nil:
			si.ResolvedComparator = res.Name
			si.Warning = res.Warning.Error()
		default:
			si.ResolvedComparator = res.Name
		}
		info.Sections = append(info.Sections, si)
	}

	if out.Format == "json" {
		return out.Success(info)
	}
	renderSchemaInfo(out.Writer, info, NewStyles(out.Writer))
	return nil
}

func renderSchemaInfo(w io.Writer, info SchemaInfo, styles *Styles) {
	fmt.Fprintf(w, "%s %s (schema_version %s)\n\n", styles.Header.Render("Schema:"), info.Path, info.Version)

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Section", "Comparator", "Match key", "Fields", "Thresholds", "Matches", "Theme"})
	for _, si := range info.Sections {
		comp := si.ResolvedComparator
		if comp != si.Component.Comparator {
			comp = fmt.Sprintf("%s (requested %s)", comp, si.Component.Comparator)
		}
		t.AppendRow(table.Row{
			si.Name,
			comp,
			si.Component.MatchKey,
			strings.Join(fieldSummaries(si.Data.RecordSchema), ", "),
			thresholdSummary(si.Component),
			si.Component.IncludeMatches,
			si.Report.Theme,
		})
	}
	t.Render()

	for _, si := range info.Sections {
		if si.Warning != "" {
			fmt.Fprintf(w, "%s %s\n", styles.Warn.Render("warning:"), si.Name+": "+si.Warning)
		}
	}
	for _, warning := range info.Warnings {
		fmt.Fprintf(w, "%s %s\n", styles.Warn.Render("warning:"), warning)
	}
}

func fieldSummaries(rs schema.RecordSchema) []string {
	out := make([]string, 0, len(rs.Fields))
	for _, f := range rs.Fields {
		s := f.Name + ":" + f.DType
		if f.Required {
			s += "!"
		}
		out = append(out, s)
	}
	return out
}

func thresholdSummary(c schema.ComponentConfig) string {
	var parts []string
	if c.ThresholdRatio != nil {
		parts = append(parts, "ratio="+strconv.FormatFloat(*c.ThresholdRatio, 'f', -1, 64))
	}
	if c.ThresholdCount != nil {
		parts = append(parts, "count="+strconv.Itoa(*c.ThresholdCount))
	}
	if len(parts) == 0 {
		return "-"
	}
	return strings.Join(parts, " ")
}
