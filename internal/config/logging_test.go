package config

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func TestLog(t *testing.T) {
	// Just verify it doesn't panic
	s := &Settings{
		Transport: "sse",
		Host:      "localhost",
		Port:      8080,
		Auth:      AuthSettings{Type: AuthTypeNone},
		Cluster:   ClusterSettings{Mode: ClusterModeLocal, Workers: 2, Strategy: "static", Partitioning: "striped"},
	}
	Log(s)
}

func TestLogWithLogger_StdioTransport(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	s := &Settings{
		Transport: "stdio",
		Host:      "localhost",
		Port:      8080,
		Auth:      AuthSettings{Type: AuthTypeNone},
	}

	LogWithLogger(s, logger)

	output := buf.String()
	if !strings.Contains(output, "transport") {
		t.Error("Expected 'transport' in log output")
	}
	// stdio transport should not log host/port
	if strings.Contains(output, "host") {
		t.Error("Expected no 'host' in log output for stdio transport")
	}
}

func TestLogWithLogger_SSETransport(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	s := &Settings{
		Transport: "sse",
		Host:      "localhost",
		Port:      8080,
		Auth:      AuthSettings{Type: AuthTypeNone},
	}

	LogWithLogger(s, logger)

	output := buf.String()
	if !strings.Contains(output, "host") {
		t.Error("Expected 'host' in log output for SSE transport")
	}
	if !strings.Contains(output, "port") {
		t.Error("Expected 'port' in log output for SSE transport")
	}
}

func TestLogWithLogger_BasicAuth(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	s := &Settings{
		Transport: "stdio",
		Auth: AuthSettings{
			Type:  AuthTypeBasic,
			Basic: BasicAuthSettings{Username: "admin", Password: "secret"},
		},
	}

	LogWithLogger(s, logger)

	output := buf.String()
	if !strings.Contains(output, "admin") {
		t.Error("Expected username in log output")
	}
	if strings.Contains(output, "secret") {
		t.Error("Password should be masked, not shown in plain text")
	}
}

func TestLogWithLogger_APIKeyAuth(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	s := &Settings{
		Transport: "stdio",
		Auth: AuthSettings{
			Type:    AuthTypeAPIKey,
			APIKeys: []string{"key1", "key2", "key3"},
		},
	}

	LogWithLogger(s, logger)

	if output := buf.String(); !strings.Contains(output, "count=3") {
		t.Errorf("Expected 'count=3' in log output, got: %s", output)
	}
}

func TestLogCluster(t *testing.T) {
	tests := []struct {
		name     string
		settings ClusterSettings
		want     []string
		notWant  []string
	}{
		{
			name:     "local striped",
			settings: ClusterSettings{Mode: ClusterModeLocal, Workers: 3, Strategy: "static", Partitioning: "striped", BlocksPerWorker: 4},
			want:     []string{"cluster.partitioning", "value=striped"},
			notWant:  []string{"blocks_per_worker", "nats_url"},
		},
		{
			name:     "local block cyclic",
			settings: ClusterSettings{Mode: ClusterModeLocal, Workers: 3, Strategy: "static", Partitioning: "block_cyclic", BlocksPerWorker: 2},
			want:     []string{"cluster.blocks_per_worker"},
		},
		{
			name:     "nats dynamic",
			settings: ClusterSettings{Mode: ClusterModeNATS, Workers: 3, Strategy: "dynamic", BlocksPerWorker: 8, NATSURL: "nats://nats:4222", SubjectPrefix: "mot"},
			want:     []string{"cluster.blocks_per_worker", "nats://nats:4222", "cluster.subject_prefix"},
			notWant:  []string{"cluster.partitioning"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			LogCluster(&tt.settings, slog.New(slog.NewTextHandler(&buf, nil)))
			output := buf.String()
			for _, w := range tt.want {
				if !strings.Contains(output, w) {
					t.Errorf("Expected %q in log output, got: %s", w, output)
				}
			}
			for _, w := range tt.notWant {
				if strings.Contains(output, w) {
					t.Errorf("Expected no %q in log output, got: %s", w, output)
				}
			}
		})
	}
}

func TestSettingsLogValue(t *testing.T) {
	s := Settings{
		Transport: "sse",
		Host:      "localhost",
		Port:      8080,
		Auth: AuthSettings{
			Type:    AuthTypeAPIKey,
			APIKeys: []string{"key1"},
		},
		Cluster: ClusterSettings{Mode: ClusterModeLocal, ResultTimeout: time.Second},
	}

	val := SettingsLogValue(s)
	if val.Kind() != slog.KindGroup {
		t.Errorf("Expected group kind, got %v", val.Kind())
	}
	var buf bytes.Buffer
	slog.New(slog.NewTextHandler(&buf, nil)).Info("settings", "settings", val)
	if strings.Contains(buf.String(), "key1") {
		t.Errorf("API key should be masked, got: %s", buf.String())
	}
}

func TestAuthSettingsLogValue(t *testing.T) {
	s := AuthSettings{
		Type:    AuthTypeAPIKey,
		APIKeys: []string{"key1", "key2"},
		Basic:   BasicAuthSettings{Username: "user", Password: "pass"},
	}

	val := AuthSettingsLogValue(s)
	if val.Kind() != slog.KindGroup {
		t.Errorf("Expected group kind, got %v", val.Kind())
	}
}

func TestBasicAuthSettingsLogValue(t *testing.T) {
	val := BasicAuthSettingsLogValue(BasicAuthSettings{Username: "admin", Password: "secret"})
	if val.Kind() != slog.KindGroup {
		t.Errorf("Expected group kind, got %v", val.Kind())
	}
}
