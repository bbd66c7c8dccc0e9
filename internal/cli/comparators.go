package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/crocs-muni/scrutiny-viz/internal/compare"
)

// NewComparatorsCommand creates the comparators command.
func NewComparatorsCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "comparators",
		Short:         "List registered comparators",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runComparators(rootOpts, compare.Default(), cmd)
		},
	}
}

func runComparators(opts *RootOptions, reg *compare.Registry, cmd *cobra.Command) error {
	out := opts.formatter(cmd)
	names := reg.Names()
	if out.Format == "json" {
		return out.Success(names)
	}
	var b strings.Builder
	for _, name := range names {
		if name == compare.Fallback {
			fmt.Fprintf(&b, "%s (fallback)\n", name)
			continue
		}
		fmt.Fprintln(&b, name)
	}
	_, err := fmt.Fprint(out.Writer, b.String())
	return err
}

// NewVersionCommand creates the version command.
func NewVersionCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "version",
		Short:         "Print the scrutiny version",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := rootOpts.formatter(cmd)
			if out.Format == "json" {
				return out.Success(map[string]string{"version": Version})
			}
			return out.Success("scrutiny " + Version)
		},
	}
}
