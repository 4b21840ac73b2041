package integration

import (
	"context"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sha1n/mot-search/internal/app"
	"github.com/sha1n/mot-search/internal/config"
	"github.com/sha1n/mot-search/tests/integration/testkit"
)

var motRows = map[string][]string{
	"mot_2020.csv": {
		"T1,V1,2020-05-01,4,NT,P,15000,AB,FORD,FOCUS,BLUE,PETROL,1600,2018-03-01",
		"T3,V2,2020-06-01,4,NT,P,5000,CD,AUDI,A3,BLACK,DIESEL,2000,2019-01-01",
	},
	"mot_2021.csv": {
		"T2,V1,2021-05-01,4,NT,F,25000,AB,FORD,FOCUS,BLUE,PETROL,1600,2018-03-01",
		"T4,V3,2021-01-01,4,NT,P,8000,EF,FORD,FIESTA,RED,PETROL,1200,2020-01-01",
		"T5,V4,2021-02-01,4,RT,PRS,,GH,VOLKSWAGEN,GOLF,WHITE,PETROL,1400,2017-07-01",
	},
}

// startCluster brings up NATS, the CSV dataset and worker processes.
func startCluster(t *testing.T, workers int, prefix string) (natsURL, sourceDir string) {
	t.Helper()
	nats := testkit.NewNATSService()
	dataset := &testkit.DatasetService{Dir: filepath.Join(t.TempDir(), "src"), Files: motRows}
	pool := &testkit.WorkerService{NATS: nats, Workers: workers, SubjectPrefix: prefix}

	env := testkit.NewTestEnv(nats, dataset, pool)
	props, err := env.Start()
	if err != nil {
		_ = env.Stop()
		t.Fatalf("Failed to start test environment: %v", err)
	}
	t.Cleanup(func() {
		if err := env.Stop(); err != nil {
			t.Errorf("Failed to stop test environment: %v", err)
		}
	})
	return props[testkit.PropNATSURL].(string), props[testkit.PropSourceDir].(string)
}

// connectServer creates the MCP server from flags, serves it over SSE and
// returns a connected client session.
func connectServer(t *testing.T, opts *testkit.FlagOptions) *mcp.ClientSession {
	t.Helper()
	flags := testkit.NewTestFlags(t, opts)
	settings, err := config.LoadSettingsWithFlags(flags)
	if err != nil {
		t.Fatal(err)
	}
	if err := config.ValidateSettings(settings); err != nil {
		t.Fatal(err)
	}

	server, cleanup, err := app.CreateMCPServer(settings)
	if err != nil {
		t.Fatalf("CreateMCPServer failed: %v", err)
	}
	t.Cleanup(cleanup)

	srv, err := app.NewSSEServer(server, settings)
	if err != nil {
		t.Fatal(err)
	}
	ts := httptest.NewServer(srv.Handler)
	t.Cleanup(ts.Close)

	// The SSE stream is bound to the connect context, so keep it alive
	// until the test finishes.
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	client := mcp.NewClient(&mcp.Implementation{Name: "integration", Version: "1.0"}, nil)
	cs, err := client.Connect(ctx, &mcp.SSEClientTransport{Endpoint: ts.URL + "/sse"}, nil)
	if err != nil {
		t.Fatalf("Failed to connect: %v", err)
	}
	t.Cleanup(func() { _ = cs.Close() })
	return cs
}

func callTool(t *testing.T, cs *mcp.ClientSession, name string, args map[string]any) (string, bool) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	result, err := cs.CallTool(ctx, &mcp.CallToolParams{Name: name, Arguments: args})
	if err != nil {
		t.Fatalf("CallTool %s failed: %v", name, err)
	}
	return extractTextContent(result), result.IsError
}

func TestMCPServer_ToolsRegistered(t *testing.T) {
	src := t.TempDir()
	ds := &testkit.DatasetService{Dir: src, Files: motRows}
	if _, err := ds.Start(); err != nil {
		t.Fatal(err)
	}
	cs := connectServer(t, &testkit.FlagOptions{SourceDir: src})

	result, err := cs.ListTools(context.Background(), nil)
	if err != nil {
		t.Fatal(err)
	}
	names := map[string]bool{}
	for _, tool := range result.Tools {
		names[tool.Name] = true
	}
	for _, want := range []string{"search_mot_tests", "pass_rate", "vehicle_catalog"} {
		if !names[want] {
			t.Errorf("Expected tool %s to be registered", want)
		}
	}
}

func TestDistributedSearch(t *testing.T) {
	for _, strategy := range []string{"static", "dynamic"} {
		t.Run(strategy, func(t *testing.T) {
			prefix := "it-" + strategy
			natsURL, src := startCluster(t, 2, prefix)
			cs := connectServer(t, &testkit.FlagOptions{
				SourceDir:     src,
				NATSURL:       natsURL,
				SubjectPrefix: prefix,
				Workers:       2,
				Strategy:      strategy,
			})

			text, isErr := callTool(t, cs, "search_mot_tests", map[string]any{"make": "ford", "model": "focus"})
			if isErr {
				t.Fatalf("Search failed: %s", text)
			}
			for _, want := range []string{"Found 2 MOT tests", "| T1 | V1 |", "| T2 | V1 |"} {
				if !strings.Contains(text, want) {
					t.Errorf("Expected %q in:\n%s", want, text)
				}
			}
			if strings.Contains(text, "FIESTA") {
				t.Errorf("Unexpected model in:\n%s", text)
			}

			text, isErr = callTool(t, cs, "search_mot_tests", map[string]any{"make": "ford", "min_mileage": 0, "max_mileage": 10000})
			if isErr || !strings.Contains(text, "| T4 | V3 |") || strings.Contains(text, "| T1 |") {
				t.Errorf("Unexpected mileage search result:\n%s", text)
			}

			text, _ = callTool(t, cs, "search_mot_tests", map[string]any{"make": "tesla"})
			if !strings.Contains(text, "No MOT tests found") {
				t.Errorf("Expected no results, got:\n%s", text)
			}
		})
	}
}

func TestPassRateAndCatalog(t *testing.T) {
	natsURL, src := startCluster(t, 3, "it-analysis")
	cs := connectServer(t, &testkit.FlagOptions{
		SourceDir:     src,
		NATSURL:       natsURL,
		SubjectPrefix: "it-analysis",
		Workers:       3,
		Strategy:      "dynamic",
	})

	text, isErr := callTool(t, cs, "pass_rate", map[string]any{"make": "ford", "model": "focus", "dimension": "age"})
	if isErr {
		t.Fatalf("Pass rate failed: %s", text)
	}
	for _, want := range []string{"- age 2: 100.0% (1/1)", "- age 3: 0.0% (0/1)"} {
		if !strings.Contains(text, want) {
			t.Errorf("Expected %q in:\n%s", want, text)
		}
	}

	text, isErr = callTool(t, cs, "pass_rate", map[string]any{"make": "ford", "dimension": "colour"})
	if !isErr {
		t.Errorf("Expected error for unknown dimension, got:\n%s", text)
	}

	text, isErr = callTool(t, cs, "vehicle_catalog", map[string]any{})
	if isErr {
		t.Fatalf("Catalog failed: %s", text)
	}
	if !strings.Contains(text, "- FORD (2 vehicles)") {
		t.Errorf("Expected FORD with 2 vehicles in:\n%s", text)
	}

	text, _ = callTool(t, cs, "vehicle_catalog", map[string]any{"make": "ford"})
	if !strings.Contains(text, "Models of FORD") || !strings.Contains(text, "- FOCUS (1 vehicles)") {
		t.Errorf("Unexpected model listing:\n%s", text)
	}
}

func extractTextContent(result *mcp.CallToolResult) string {
	var sb strings.Builder
	for _, c := range result.Content {
		if tc, ok := c.(*mcp.TextContent); ok {
			sb.WriteString(tc.Text)
		}
	}
	return sb.String()
}
