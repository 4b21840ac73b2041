package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/sha1n/mot-search/internal/app"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var (
	// Version is injected at build time
	Version = "dev"
	// Build is injected at build time
	Build = "unknown"
	// ProgramName is injected at build time
	ProgramName = "mot-search"
)

func main() {
	runMain(os.Args, os.Exit)
}

func runMain(args []string, exit func(int)) {
	if err := Execute(Version, Build, ProgramName, args[1:]); err != nil {
		exit(1)
	}
}

// Execute is the entry point for the CLI, extracted for testing
func Execute(version, build, programName string, args []string) error {
	rootCmd := &cobra.Command{
		Use:     programName,
		Short:   "MOT search MCP server",
		Long:    "Searches UK MOT test records and computes pass rates, distributing each search over a pool of workers.",
		Version: version,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithFlags(cmd.Flags(), version)
		},
	}
	rootCmd.SetVersionTemplate(`{{.Version}}
`)
	app.RegisterFlags(rootCmd.Flags())

	workerCmd := &cobra.Command{
		Use:   "worker",
		Short: "Run a search worker process connected over NATS",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return app.RunWorkerWithFlags(ctx, cmd.Flags(), version)
		},
	}
	app.RegisterWorkerFlags(workerCmd.Flags())

	buildCmd := &cobra.Command{
		Use:   "build",
		Short: "Rebuild the dataset snapshot and catalog from the CSV files",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return app.RunBuild(ctx, cmd.Flags())
		},
	}
	app.RegisterDatasetFlags(buildCmd.Flags())

	rootCmd.AddCommand(workerCmd, buildCmd)
	rootCmd.SetArgs(args)

	return rootCmd.ExecuteContext(context.Background())
}

func runWithFlags(flags *pflag.FlagSet, version string) error {
	return app.RunWithDeps(context.Background(), app.DefaultRunParams(), flags, version)
}
