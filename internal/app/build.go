package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sha1n/mot-search/internal/config"
	"github.com/sha1n/mot-search/internal/service"
	"github.com/spf13/pflag"
)

// RunBuild rebuilds the dataset snapshot and catalog from the CSV sources.
func RunBuild(ctx context.Context, flags *pflag.FlagSet) error {
	settings, err := config.LoadSettingsWithFlags(flags)
	if err != nil {
		return fmt.Errorf("failed to load settings: %w", err)
	}
	if err := config.ValidateDataset(&settings.Dataset); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if settings.Dataset.SourceDir == "" {
		return fmt.Errorf("invalid configuration: source-dir is required to build")
	}

	setupLogging()
	slog.Info("Rebuilding dataset", "source_dir", settings.Dataset.SourceDir, "data_dir", settings.Dataset.DataDir)

	stats, err := service.Rebuild(ctx, settings)
	if err != nil {
		return err
	}
	slog.Info("Dataset rebuilt", "vehicles", stats.Vehicles, "tests", stats.Tests, "built_at", stats.BuiltAt)
	return nil
}
