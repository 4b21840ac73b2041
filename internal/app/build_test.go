package app

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sha1n/mot-search/internal/catalog"
	"github.com/sha1n/mot-search/internal/store"
	"github.com/spf13/pflag"
)

func TestRunBuild(t *testing.T) {
	settings := testSettings(t)

	flags := pflag.NewFlagSet("build", pflag.ContinueOnError)
	RegisterDatasetFlags(flags)
	if err := flags.Parse([]string{"--source-dir", settings.Dataset.SourceDir, "--data-dir", settings.Dataset.DataDir}); err != nil {
		t.Fatal(err)
	}

	if err := RunBuild(context.Background(), flags); err != nil {
		t.Fatalf("RunBuild failed: %v", err)
	}
	for _, name := range []string{store.SnapshotFilename, store.ManifestFilename, catalog.IndexDirname} {
		if _, err := os.Stat(filepath.Join(settings.Dataset.DataDir, name)); err != nil {
			t.Errorf("Expected %s to exist: %v", name, err)
		}
	}
}

func TestRunBuild_RequiresSourceDir(t *testing.T) {
	t.Setenv("MOT_SEARCH_DATASET_SOURCE_DIR", "")

	flags := pflag.NewFlagSet("build", pflag.ContinueOnError)
	RegisterDatasetFlags(flags)
	if err := flags.Parse([]string{"--data-dir", t.TempDir()}); err != nil {
		t.Fatal(err)
	}

	err := RunBuild(context.Background(), flags)
	if err == nil || !strings.Contains(err.Error(), "source-dir") {
		t.Errorf("Expected source-dir error, got %v", err)
	}
}
