package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	cashier "github.com/mattkeenan/cashier/pkg"
)

const (
	exitOK        = 0
	exitError     = 1
	exitCancelled = 130
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// globalOptions holds the persistent flags shared by every command
type globalOptions struct {
	configPath string
	overrides  []string
	verbose    int
	debug      string
	workers    int
}

func run(args []string, stdout, stderr io.Writer) int {
	cashier.SetLogger(cashier.NewConsoleLogger(stderr))
	defer func() {
		cashier.SetLogger(nil)
		cashier.SetVerboseLevel(0)
		cashier.SetDebugFlags("")
	}()

	ctx, stop := setupSignalContext(context.Background())
	defer stop()

	// cobra falls back to os.Args for a nil slice
	if args == nil {
		args = []string{}
	}
	cmd := newRootCmd(stdout)
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		if errors.Is(err, context.Canceled) {
			return exitCancelled
		}
		return exitError
	}
	return exitOK
}

func newRootCmd(stdout io.Writer) *cobra.Command {
	g := &globalOptions{}

	rootCmd := &cobra.Command{
		Use:   "cashier [flags] <rootDir> [clean]",
		Short: "Incremental content fingerprint of a directory tree",
		Long: `cashier prints a single fingerprint for a directory tree. Each directory
keeps a .cash_file record so unchanged subtrees are not re-read on the next run.

Examples:
  cashier /data/photos              # print the tree fingerprint
  cashier /data/photos clean        # remove every .cash_file under the tree
  cashier export /data/photos -o a.json
  cashier compare a.json b.json`,
		Args:          cobra.RangeArgs(1, 2),
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			clean := false
			if len(args) == 2 {
				if args[1] != "clean" {
					return fmt.Errorf("unknown mode %q (expected \"clean\")", args[1])
				}
				clean = true
			}

			engine, err := g.newEngine(args[0])
			if err != nil {
				return err
			}

			if clean {
				_, err := engine.Clean(cmd.Context())
				return err
			}

			result, err := engine.Hash(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(stdout, result.Fingerprint)
			return nil
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&g.configPath, "config", "", "config file (default <rootDir>/.cashier/config)")
	flags.StringArrayVarP(&g.overrides, "override", "O", nil, "override a config value, key:value (repeatable)")
	flags.CountVarP(&g.verbose, "verbose", "v", "increase diagnostic output (repeatable)")
	flags.StringVar(&g.debug, "debug", "", "comma separated debug flags (walk,record)")
	flags.IntVar(&g.workers, "workers", 0, "concurrent file reads (default from config)")

	rootCmd.AddCommand(
		newExportCmd(g, stdout),
		newCompareCmd(stdout),
		newConfigCmd(g, stdout),
	)
	return rootCmd
}

// loadConfig reads the config for root and applies -O overrides
func (g *globalOptions) loadConfig(root string) (*cashier.Config, error) {
	configPath := g.configPath
	if configPath == "" {
		configPath = cashier.DefaultConfigPath(root)
	}
	cfg, err := cashier.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyOverrides(g.overrides); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newEngine resolves config, verbosity and ignore rules for root
func (g *globalOptions) newEngine(root string) (*cashier.Engine, error) {
	if err := cashier.ValidateRoot(root); err != nil {
		return nil, err
	}

	cfg, err := g.loadConfig(root)
	if err != nil {
		return nil, err
	}
	opts, err := cashier.OptionsFromConfig(cfg)
	if err != nil {
		return nil, err
	}

	verboseConfig := cfg.GetVerboseConfig()
	level := verboseConfig.Level
	if g.verbose > level {
		level = g.verbose
	}
	cashier.SetVerboseLevel(level)
	debug := verboseConfig.Debug
	if g.debug != "" {
		debug = g.debug
	}
	cashier.SetDebugFlags(debug)

	if g.workers > 0 {
		opts.HashWorkers = g.workers
	}

	ignore := cashier.NewIgnoreManager(root)
	if err := ignore.LoadIgnorePatterns(); err != nil {
		return nil, err
	}
	opts.Ignore = ignore

	return cashier.NewEngine(root, opts)
}

func newExportCmd(g *globalOptions, stdout io.Writer) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "export <rootDir>",
		Short: "Hash the tree and write it as a nested JSON document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := g.newEngine(args[0])
			if err != nil {
				return err
			}
			result, err := engine.Export(cmd.Context())
			if err != nil {
				return err
			}
			if output == "" || output == "-" {
				return cashier.WriteTree(stdout, result.Tree)
			}
			return cashier.WriteTreeFile(output, result.Tree)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "write the document to a file instead of stdout")
	return cmd
}

func newCompareCmd(stdout io.Writer) *cobra.Command {
	var details bool

	cmd := &cobra.Command{
		Use:   "compare <tree1.json> <tree2.json>",
		Short: "Print the differences between two exported trees",
		Long: `compare walks two exported trees by name and prints every path whose digests
differ. Entries only in the first tree are marked ">>>!", entries only in the
second "!<<<"; directories carry a trailing "/".`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			first, err := cashier.LoadTree(args[0])
			if err != nil {
				return err
			}
			second, err := cashier.LoadTree(args[1])
			if err != nil {
				return err
			}
			return cashier.WriteDifferences(stdout, cashier.CompareTrees(first, second), details)
		},
	}
	cmd.Flags().BoolVar(&details, "details", false, "show digest pairs and a unified diff of each directory listing")
	return cmd
}

func newConfigCmd(g *globalOptions, stdout io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "config <rootDir> [key:value ...]",
		Short: "Show the effective configuration, or persist changes to it",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root := args[0]
			if err := cashier.ValidateRoot(root); err != nil {
				return err
			}
			cfg, err := g.loadConfig(root)
			if err != nil {
				return err
			}

			if changes := args[1:]; len(changes) > 0 {
				if err := cfg.ApplyOverrides(changes); err != nil {
					return err
				}
				if err := cfg.Validate(); err != nil {
					return err
				}
				if err := cfg.Save(); err != nil {
					return fmt.Errorf("failed to save %s: %w", cfg.Path(), err)
				}
				cashier.VerboseLog(1, "saved %s", cfg.Path())
			}

			fmt.Fprint(stdout, cfg.String())
			return nil
		},
	}
}
