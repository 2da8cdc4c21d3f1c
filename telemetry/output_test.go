package telemetry

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewTrajectorySinkEmptyPathDisables(t *testing.T) {
	sink, err := NewTrajectorySink("", 10)
	if err != nil {
		t.Fatalf("NewTrajectorySink: %v", err)
	}
	if sink != nil {
		t.Fatal("expected a nil sink for an empty path")
	}
	if err := sink.WriteRows([]TrajectoryRow{{Step: 1}}); err != nil {
		t.Errorf("WriteRows on nil sink: %v", err)
	}
	if err := sink.Close(); err != nil {
		t.Errorf("Close on nil sink: %v", err)
	}
}

func TestTrajectorySinkWritesHeaderOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trajectory.csv")
	sink, err := NewTrajectorySink(path, 1)
	if err != nil {
		t.Fatalf("NewTrajectorySink: %v", err)
	}

	if err := sink.WriteRows([]TrajectoryRow{{Step: 0, AgentID: 1, X: 1.5, Y: 2.5, Active: true}}); err != nil {
		t.Fatalf("WriteRows: %v", err)
	}
	if err := sink.WriteRows([]TrajectoryRow{{Step: 1, AgentID: 1, X: 1.6, Y: 2.4, Active: true}}); err != nil {
		t.Fatalf("WriteRows: %v", err)
	}
	if err := sink.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected 1 header + 2 data lines, got %d: %q", len(lines), lines)
	}
	if !strings.Contains(lines[0], "step") || !strings.Contains(lines[0], "agent_id") {
		t.Errorf("header line missing expected columns: %q", lines[0])
	}
}
