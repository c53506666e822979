package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/afero"

	"github.com/modoterra/hookscope/internal/testsupport"
	"github.com/modoterra/hookscope/pkg/config"
	"github.com/modoterra/hookscope/pkg/daemon"
	"github.com/modoterra/hookscope/pkg/logdir"
)

// execute runs the root command with fresh flag state and returns stdout
// and stderr.
func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()

	socketPath = ""
	configPath = filepath.Join(t.TempDir(), "missing.yaml")
	outputJSON = false
	followDate = ""
	queryFlags.date, queryFlags.event, queryFlags.tool, queryFlags.search = "", "", "", ""
	queryFlags.limit = 0
	extractFlags.format = "jsonl"
	extractFlags.stats = false
	extractFlags.event, extractFlags.tool, extractFlags.search = "", "", ""
	extractFlags.limit = 0
	configInitForce = false

	stdout, stderr := &bytes.Buffer{}, &bytes.Buffer{}
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return stdout.String(), stderr.String(), err
}

func lines(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}

func TestVersionCommand(t *testing.T) {
	out, _, err := execute(t, "version")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(out, "hookscope dev") {
		t.Errorf("unexpected version output %q", out)
	}
}

func TestConfigInitAndValidate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hookscope.yaml")

	if _, _, err := execute(t, "config", "init", path); err != nil {
		t.Fatalf("init: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("config not written: %v", err)
	}
	if _, _, err := execute(t, "config", "init", path); err == nil {
		t.Error("expected init to refuse overwriting")
	}

	out, _, err := execute(t, "config", "validate", path)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if !strings.Contains(out, "valid") {
		t.Errorf("unexpected validate output %q", out)
	}
}

func TestConfigValidateInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	content := []byte("version: 1\npoll_interval: 0s\nlog_format: xml\n")
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatal(err)
	}

	_, errOut, err := execute(t, "config", "validate", path)
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !strings.Contains(errOut, "poll_interval") || !strings.Contains(errOut, "log_format") {
		t.Errorf("expected both problems reported, got %q", errOut)
	}
}

func TestExtractCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hooks-2026-02-01.json")
	if err := os.WriteFile(path, []byte(testsupport.CorruptedLog), 0o644); err != nil {
		t.Fatal(err)
	}

	out, errOut, err := execute(t, "extract", path, "--stats")
	if err != nil {
		t.Fatal(err)
	}
	got := lines(out)
	if len(got) != 2 {
		t.Fatalf("expected 2 records, got %d: %q", len(got), out)
	}
	if !strings.Contains(got[0], `"PreToolUse"`) || !strings.Contains(got[1], `"PostToolUse"`) {
		t.Errorf("records out of file order: %q", out)
	}
	if !strings.Contains(errOut, "records=2") {
		t.Errorf("missing stats: %q", errOut)
	}

	out, _, err = execute(t, "extract", path, "--tool", "Read")
	if err != nil {
		t.Fatal(err)
	}
	if got := lines(out); len(got) != 1 || !strings.Contains(got[0], `"Read"`) {
		t.Errorf("expected only the Read record, got %q", out)
	}

	if _, _, err := execute(t, "extract", path, "--format", "xml"); err == nil {
		t.Error("expected error for unknown format")
	}
}

func TestQueryCommand(t *testing.T) {
	fs := afero.NewMemMapFs()
	testsupport.WriteDayFile(t, fs, "/logs", testsupport.SampleDate, testsupport.SampleLog())

	cfg := config.Default()
	cfg.Socket = filepath.Join(t.TempDir(), "d.sock")
	d := daemon.New(daemon.Options{
		Config: cfg,
		Dir:    logdir.Dir{FS: fs, Root: "/logs"},
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go d.Run(ctx)
	defer d.Shutdown()

	select {
	case <-d.Server().Ready():
	case <-time.After(2 * time.Second):
		t.Fatal("daemon did not start")
	}

	out, _, err := execute(t, "query", "--socket", cfg.Socket, "--date", testsupport.SampleDate)
	if err != nil {
		t.Fatal(err)
	}
	got := lines(out)
	if len(got) != 5 {
		t.Fatalf("expected 5 records, got %d: %q", len(got), out)
	}
	if !strings.Contains(got[0], `"Stop"`) {
		t.Errorf("expected newest record first, got %s", got[0])
	}

	out, _, err = execute(t, "query", "--socket", cfg.Socket, "--search", "HELLO")
	if err != nil {
		t.Fatal(err)
	}
	if got := lines(out); len(got) != 2 {
		t.Errorf("expected 2 search matches, got %d", len(got))
	}

	out, _, err = execute(t, "show", "0", "--socket", cfg.Socket, "--event", "Notification")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "idle_prompt") {
		t.Errorf("show printed %q", out)
	}

	if _, _, err := execute(t, "show", "-1", "--socket", cfg.Socket); err == nil {
		t.Error("expected error for negative index")
	}
}
