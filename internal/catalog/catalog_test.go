package catalog

import (
	"path/filepath"
	"testing"

	"github.com/sha1n/mot-search/internal/domain"
)

func fixtureVehicles() []domain.Vehicle {
	return []domain.Vehicle{
		{VehicleID: "V1", Make: "FORD", Model: "FOCUS"},
		{VehicleID: "V2", Make: "FORD", Model: "FIESTA"},
		{VehicleID: "V3", Make: "FORD", Model: "FOCUS"},
		{VehicleID: "V4", Make: "FIAT", Model: "PANDA"},
		{VehicleID: "V5", Make: "VAUXHALL", Model: "CORSA"},
		{VehicleID: "V6", Make: "", Model: "MYSTERY"},
		{VehicleID: "V7", Make: "FORD", Model: "FOCUS"},
		{VehicleID: "V8", Make: "VAUXHALL", Model: ""},
	}
}

func buildCatalog(t *testing.T) *Catalog {
	t.Helper()
	path := filepath.Join(t.TempDir(), IndexDirname)
	c, err := Build(path, fixtureVehicles())
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func names(entries []Entry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Name
	}
	return out
}

func TestMakes(t *testing.T) {
	c := buildCatalog(t)

	tests := []struct {
		prefix string
		limit  int
		want   []Entry
	}{
		{"", 0, []Entry{{"FORD", 4}, {"VAUXHALL", 2}, {"FIAT", 1}}},
		{"f", 0, []Entry{{"FORD", 4}, {"FIAT", 1}}},
		{" Fi", 0, []Entry{{"FIAT", 1}}},
		{"", 1, []Entry{{"FORD", 4}}},
		{"SAAB", 0, []Entry{}},
	}
	for _, tt := range tests {
		got, err := c.Makes(tt.prefix, tt.limit)
		if err != nil {
			t.Fatalf("Makes(%q) failed: %v", tt.prefix, err)
		}
		if len(got) != len(tt.want) {
			t.Errorf("Makes(%q, %d) = %v, want %v", tt.prefix, tt.limit, got, tt.want)
			continue
		}
		for i := range tt.want {
			if got[i] != tt.want[i] {
				t.Errorf("Makes(%q, %d) = %v, want %v", tt.prefix, tt.limit, got, tt.want)
				break
			}
		}
	}
}

func TestModels(t *testing.T) {
	c := buildCatalog(t)

	got, err := c.Models("ford", "", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0] != (Entry{"FOCUS", 3}) || got[1] != (Entry{"FIESTA", 1}) {
		t.Errorf("Unexpected models %v", got)
	}

	got, err = c.Models("FORD", "fi", 0)
	if err != nil {
		t.Fatal(err)
	}
	if n := names(got); len(n) != 1 || n[0] != "FIESTA" {
		t.Errorf("Expected [FIESTA], got %v", n)
	}

	got, err = c.Models("VAUXHALL", "", 0)
	if err != nil {
		t.Fatal(err)
	}
	if n := names(got); len(n) != 1 || n[0] != "CORSA" {
		t.Errorf("Expected blank models to be skipped, got %v", n)
	}

	if _, err := c.Models(" ", "", 0); err == nil {
		t.Error("Expected error without make")
	}
}

func TestOpenOrBuild(t *testing.T) {
	path := filepath.Join(t.TempDir(), IndexDirname)
	c, err := Build(path, fixtureVehicles())
	if err != nil {
		t.Fatal(err)
	}
	if err := c.Close(); err != nil {
		t.Fatal(err)
	}

	reopened, err := OpenOrBuild(path, nil, false)
	if err != nil {
		t.Fatal(err)
	}
	makes, err := reopened.Makes("", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(makes) != 3 {
		t.Errorf("Expected existing index to be reused, got %v", makes)
	}
	if err := reopened.Close(); err != nil {
		t.Fatal(err)
	}

	rebuilt, err := OpenOrBuild(path, []domain.Vehicle{{Make: "SAAB", Model: "9-3"}}, true)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = rebuilt.Close() }()
	makes, err = rebuilt.Makes("", 0)
	if err != nil {
		t.Fatal(err)
	}
	if n := names(makes); len(n) != 1 || n[0] != "SAAB" {
		t.Errorf("Expected rebuilt index, got %v", n)
	}
}

func TestOpenOrBuild_Missing(t *testing.T) {
	path := filepath.Join(t.TempDir(), IndexDirname)
	c, err := OpenOrBuild(path, fixtureVehicles(), false)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = c.Close() }()
	makes, _ := c.Makes("V", 0)
	if n := names(makes); len(n) != 1 || n[0] != "VAUXHALL" {
		t.Errorf("Expected VAUXHALL, got %v", n)
	}
}

func TestBuild_Empty(t *testing.T) {
	c, err := Build(filepath.Join(t.TempDir(), IndexDirname), nil)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = c.Close() }()
	makes, err := c.Makes("", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(makes) != 0 {
		t.Errorf("Expected no makes, got %v", makes)
	}
}
