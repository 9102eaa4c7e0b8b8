package main

import (
	"github.com/spf13/cobra"
)

func buildRootCmd() *cobra.Command {
	var logLevel string
	root := &cobra.Command{
		Use:           "linkconv",
		Short:         "Convert shopping-agent and marketplace links",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			setupLogging(cmd.ErrOrStderr(), logLevel)
		},
	}
	root.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")
	root.AddCommand(
		buildConvertCmd(),
		buildGenerateCmd(),
		buildAgentsCmd(),
		buildResolveCmd(),
		buildMigrateCmd(),
	)
	return root
}

func buildConvertCmd() *cobra.Command {
	var opts convertOptions
	cmd := &cobra.Command{
		Use:   "convert [link...]",
		Short: "Resolve links to the canonical marketplace link",
		Long: `Resolve each input (a marketplace URL, an agent URL, a short link or
free text containing a link) and print one JSON result per line.

Inputs come from the arguments, or one per line from stdin with --stdin.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConvert(cmd, args, opts)
		},
	}
	cmd.Flags().StringVarP(&opts.agent, "agent", "a", "", "Also generate a link for this agent")
	cmd.Flags().BoolVar(&opts.stdin, "stdin", false, "Read inputs from stdin, one per line")
	cmd.Flags().BoolVar(&opts.offline, "offline", false, "Skip steps that need network access")
	cmd.Flags().IntVar(&opts.concurrency, "concurrency", 8, "Parallel conversions")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", 0, "Per-input timeout (default CONVERT_TIMEOUT)")
	return cmd
}

func buildGenerateCmd() *cobra.Command {
	var opts generateOptions
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Build agent links for a product",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGenerate(cmd, opts)
		},
	}
	cmd.Flags().StringVarP(&opts.agent, "agent", "a", "", "Agent key; empty prints links for every agent")
	cmd.Flags().StringVarP(&opts.platform, "platform", "p", "", "Marketplace (taobao, weidian, 1688)")
	cmd.Flags().StringVar(&opts.id, "id", "", "Product id")
	cmd.Flags().StringVar(&opts.code, "code", "", "Affiliate code override; produces the short link form")
	cmd.Flags().BoolVar(&opts.compact, "compact", false, "Print the compact /s/ code instead")
	_ = cmd.MarkFlagRequired("platform")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}

func buildAgentsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "agents",
		Short: "List supported agents and their affiliate codes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAgents(cmd)
		},
	}
}

func buildResolveCmd() *cobra.Command {
	var marketplace string
	cmd := &cobra.Command{
		Use:   "resolve [item]",
		Short: "Resolve a link or product id to marketplace and id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runResolve(cmd, marketplace, args[0])
		},
	}
	cmd.Flags().StringVarP(&marketplace, "marketplace", "m", "", "Marketplace hint for bare product ids")
	return cmd
}

func buildMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the stats database schema",
	}
	var (
		dir    string
		dryRun bool
	)
	up := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrateUp(cmd, dir, dryRun)
		},
	}
	up.Flags().StringVar(&dir, "dir", "", "Migrations directory (default MIGRATIONS_DIR or ./migrations)")
	up.Flags().BoolVar(&dryRun, "dry-run", false, "List pending migrations without applying them")
	cmd.AddCommand(up)
	return cmd
}
