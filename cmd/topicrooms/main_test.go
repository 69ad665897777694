package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeTestConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "nba.txt"), []byte("#Lakers\n#Celtics\n"), 0o600); err != nil {
		t.Fatalf("write topics: %v", err)
	}
	cfg := `
default_room: nba
rooms:
  - id: nba
    label: NBA
    topics_file: nba.txt
  - id: rust
    label: Rust
    topics: ["Rust", "async-std"]
`
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(cfg), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestClassifyArgs(t *testing.T) {
	path := writeTestConfig(t)

	out, err := execute(t, "", "classify", "--config", path, "#lakers", "ship", "Rust")
	if err != nil {
		t.Fatalf("classify: %v", err)
	}
	if strings.TrimSpace(out) != "nba,rust" {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestClassifyStdin(t *testing.T) {
	path := writeTestConfig(t)

	out, err := execute(t, "Go #Celtics\n\nnothing here\nTrusty crate\n", "classify", "--config", path)
	if err != nil {
		t.Fatalf("classify: %v", err)
	}
	want := "nba\n-\n-\n"
	if out != want {
		t.Fatalf("got %q, want %q", out, want)
	}
}

func TestRoomsCommand(t *testing.T) {
	path := writeTestConfig(t)

	out, err := execute(t, "", "rooms", "--config", path)
	if err != nil {
		t.Fatalf("rooms: %v", err)
	}
	if !strings.Contains(out, "nba\tNBA\t2 topics") || !strings.Contains(out, "  async-std") {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestInvalidDefaultRoom(t *testing.T) {
	path := writeTestConfig(t)

	if _, err := execute(t, "", "rooms", "--config", path, "--default-room", "cricket"); err == nil {
		t.Fatalf("expected error for unknown default room")
	}
}
