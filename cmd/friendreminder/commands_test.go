package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestSeedThenTick(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeFile(t, dir, "config.yaml", "database:\n  driver: sqlite\n  dsn: "+filepath.Join(dir, "friends.db")+"\nlogging:\n  level: error\n")
	seedPath := writeFile(t, dir, "seed.yaml", `
people:
  - id: sam
    name: Sam
    priority: high
    lastContact: 2026-10-13
    events:
      - id: sam-bday
        type: birthday
        date: 2026-10-21
`)

	out, err := run(t, "--config", cfgPath, "seed", "--file", seedPath)
	if err != nil {
		t.Fatalf("seed: %v (%s)", err, out)
	}
	if !strings.Contains(out, "seeded 1 people, 1 events, 0 situations") {
		t.Fatalf("unexpected seed output %q", out)
	}

	out, err = run(t, "--config", cfgPath, "tick", "--date", "2026-10-14", "--dry-run")
	if err != nil {
		t.Fatalf("tick: %v (%s)", err, out)
	}
	if !strings.Contains(out, `"event:sam-bday:1week"`) {
		t.Fatalf("expected 1week milestone in report, got %s", out)
	}

	out, err = run(t, "--config", cfgPath, "migrate")
	if err != nil || !strings.Contains(out, "applied migrations: [1]") {
		t.Fatalf("migrate: %v (%s)", err, out)
	}
}

func TestTickRejectsBadDate(t *testing.T) {
	if _, err := run(t, "tick", "--date", "14/10/2026"); err == nil {
		t.Fatalf("expected error for malformed date")
	}
}

func TestSeedRequiresFile(t *testing.T) {
	if _, err := run(t, "seed"); err == nil {
		t.Fatalf("expected error without --file")
	}
}
