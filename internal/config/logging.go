package config

import (
	"context"
	"log/slog"
)

// Log logs the resolved settings in a granular way, skipping irrelevant ones
func Log(s *Settings) {
	LogWithLogger(s, slog.Default())
}

// LogWithLogger logs the resolved settings using the provided logger
func LogWithLogger(s *Settings, logger *slog.Logger) {
	ctx := context.Background()
	logger.InfoContext(ctx, "Config: transport", "value", s.Transport)
	if s.Transport == "sse" {
		logger.InfoContext(ctx, "Config: host", "value", s.Host)
		logger.InfoContext(ctx, "Config: port", "value", s.Port)
	}

	logger.InfoContext(ctx, "Config: auth.type", "value", s.Auth.Type)
	switch s.Auth.Type {
	case AuthTypeBasic:
		logger.InfoContext(ctx, "Config: auth.basic.username", "value", s.Auth.Basic.Username)
		logger.InfoContext(ctx, "Config: auth.basic.password", "value", "****")
	case AuthTypeAPIKey:
		logger.InfoContext(ctx, "Config: auth.api_keys", "count", len(s.Auth.APIKeys))
	}

	LogCluster(&s.Cluster, logger)

	logger.InfoContext(ctx, "Config: dataset.source_dir", "value", s.Dataset.SourceDir)
	logger.InfoContext(ctx, "Config: dataset.data_dir", "value", s.Dataset.DataDir)
	if s.Dataset.MaxRowsPerFile > 0 {
		logger.InfoContext(ctx, "Config: dataset.max_rows_per_file", "value", s.Dataset.MaxRowsPerFile)
	}
	logger.InfoContext(ctx, "Config: search.max_display_rows", "value", s.Search.MaxDisplayRows)
}

// LogCluster logs the cluster settings. NATS details are only logged in
// NATS mode.
func LogCluster(c *ClusterSettings, logger *slog.Logger) {
	ctx := context.Background()
	logger.InfoContext(ctx, "Config: cluster.mode", "value", c.Mode)
	logger.InfoContext(ctx, "Config: cluster.workers", "value", c.Workers)
	logger.InfoContext(ctx, "Config: cluster.strategy", "value", c.Strategy)
	switch c.Strategy {
	case "static":
		logger.InfoContext(ctx, "Config: cluster.partitioning", "value", c.Partitioning)
		if c.Partitioning == "block_cyclic" {
			logger.InfoContext(ctx, "Config: cluster.blocks_per_worker", "value", c.BlocksPerWorker)
		}
	case "dynamic":
		logger.InfoContext(ctx, "Config: cluster.blocks_per_worker", "value", c.BlocksPerWorker)
	}
	logger.InfoContext(ctx, "Config: cluster.result_timeout", "value", c.ResultTimeout)
	if c.Mode == ClusterModeNATS {
		logger.InfoContext(ctx, "Config: cluster.nats_url", "value", c.NATSURL)
		logger.InfoContext(ctx, "Config: cluster.subject_prefix", "value", c.SubjectPrefix)
	}
}

// AuthSettingsLogValue returns a slog.Value for AuthSettings with masked data
func AuthSettingsLogValue(s AuthSettings) slog.Value {
	keys := make([]string, len(s.APIKeys))
	for i := range s.APIKeys {
		keys[i] = "****"
	}
	return slog.GroupValue(
		slog.String("type", s.Type),
		slog.Any("basic", BasicAuthSettingsLogValue(s.Basic)),
		slog.Any("api_keys", keys),
	)
}

// BasicAuthSettingsLogValue returns a slog.Value for BasicAuthSettings with masked data
func BasicAuthSettingsLogValue(s BasicAuthSettings) slog.Value {
	return slog.GroupValue(
		slog.String("username", s.Username),
		slog.String("password", "****"),
	)
}

// ClusterSettingsLogValue returns a slog.Value for ClusterSettings
func ClusterSettingsLogValue(s ClusterSettings) slog.Value {
	return slog.GroupValue(
		slog.String("mode", s.Mode),
		slog.Int("workers", s.Workers),
		slog.String("strategy", s.Strategy),
		slog.String("partitioning", s.Partitioning),
		slog.Int("blocks_per_worker", s.BlocksPerWorker),
		slog.Duration("result_timeout", s.ResultTimeout),
	)
}

// SettingsLogValue returns a slog.Value for Settings with masked data
func SettingsLogValue(s Settings) slog.Value {
	return slog.GroupValue(
		slog.String("transport", s.Transport),
		slog.String("host", s.Host),
		slog.Int("port", s.Port),
		slog.Any("auth", AuthSettingsLogValue(s.Auth)),
		slog.Any("cluster", ClusterSettingsLogValue(s.Cluster)),
		slog.String("data_dir", s.Dataset.DataDir),
	)
}
