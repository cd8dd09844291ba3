package commands

import (
	"errors"
	"fmt"
	"runtime"

	"github.com/conduit-lang/pim/internal/cli/ui"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	// Version information - set at build time
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// options are the persistent flags shared by every command
type options struct {
	configFile string
	noColor    bool
	lang       string
	format     string
}

// NewRootCommand creates the root command
func NewRootCommand() *cobra.Command {
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:   "pim",
		Short: "Query a product-information schema and its things",
		Long: color.CyanString(`pim - product information client

pim loads the schema of a product-information store and queries its things,
either from the remote service or from local JSON files evaluated in memory.
The same files can be served over HTTP with "pim serve".`),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if opts.noColor {
				color.NoColor = true
			}
		},
	}

	rootCmd.PersistentFlags().StringVarP(&opts.configFile, "config", "c", "", "Config file (default: pim.yml in the working directory)")
	rootCmd.PersistentFlags().BoolVar(&opts.noColor, "no-color", false, "Disable colored output")
	rootCmd.PersistentFlags().StringVar(&opts.lang, "lang", "", "Language for labels and translatable fields")
	rootCmd.PersistentFlags().StringVar(&opts.format, "format", "table", "Output format: table or json")

	rootCmd.AddCommand(NewVersionCommand())
	rootCmd.AddCommand(newSchemaCommand(opts))
	rootCmd.AddCommand(newThingsCommand(opts))
	rootCmd.AddCommand(newRelationCommand(opts))
	rootCmd.AddCommand(newServeCommand(opts))

	return rootCmd
}

// NewVersionCommand creates the version command
func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			titleColor := color.New(color.FgCyan, color.Bold)
			out := cmd.OutOrStdout()

			titleColor.Fprint(out, "pim version: ")
			fmt.Fprintln(out, Version)
			titleColor.Fprint(out, "Git commit: ")
			fmt.Fprintln(out, GitCommit)
			titleColor.Fprint(out, "Build date: ")
			fmt.Fprintln(out, BuildDate)
			titleColor.Fprint(out, "Go version: ")
			fmt.Fprintln(out, runtime.Version())
		},
	}
}

// Execute runs the root command
func Execute() error {
	rootCmd := NewRootCommand()
	if err := rootCmd.Execute(); err != nil {
		var lookup *lookupError
		if errors.As(err, &lookup) {
			fmt.Fprint(rootCmd.ErrOrStderr(), lookup.msg)
		} else {
			ui.WriteError(rootCmd.ErrOrStderr(), err, color.NoColor)
		}
		return err
	}
	return nil
}
