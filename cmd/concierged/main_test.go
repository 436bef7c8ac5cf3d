package main

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"
)

func TestBuildRootCmdIncludesSubcommands(t *testing.T) {
	cmd := buildRootCmd()
	names := map[string]bool{}
	for _, sub := range cmd.Commands() {
		names[sub.Name()] = true
	}

	required := []string{"run", "doctor"}
	for _, name := range required {
		if !names[name] {
			t.Fatalf("expected subcommand %q to be registered", name)
		}
	}
}

func TestDoctorReportsFailuresOnUnconfiguredStore(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "concierge.db")
	cmd := buildRootCmd()
	cmd.SetArgs([]string{"doctor", "--store", dbPath})
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)

	if err := cmd.ExecuteContext(context.Background()); err == nil {
		t.Fatalf("expected doctor to report failure on an unconfigured store")
	}
	report := out.String()
	if !strings.Contains(report, "store") || !strings.Contains(report, "llm_config") {
		t.Fatalf("expected report to mention store and llm_config checks, got: %s", report)
	}
}

func TestParsePins(t *testing.T) {
	got := parsePins(" 21, 22 ,, 5")
	want := []int{21, 22, 5}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}
