package service

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
)

func TestUnitContents(t *testing.T) {
	got := UnitContents("/usr/local/bin/hookscoped")

	if !strings.Contains(got, "ExecStart=/usr/local/bin/hookscoped") {
		t.Error("unit file missing ExecStart with binary path")
	}
	if !strings.Contains(got, "Type=notify") {
		t.Error("unit file missing Type=notify")
	}
	if !strings.Contains(got, "Restart=on-failure") {
		t.Error("unit file missing Restart=on-failure")
	}
	if !strings.Contains(got, "[Install]") {
		t.Error("unit file missing [Install] section")
	}
}

func TestUnitPath(t *testing.T) {
	path, err := UnitPath()
	if err != nil {
		t.Fatalf("UnitPath() error: %v", err)
	}
	if !strings.HasSuffix(path, "systemd/user/hookscoped.service") {
		t.Errorf("UnitPath() = %q, want suffix systemd/user/hookscoped.service", path)
	}
}

func TestStatusNoSocket(t *testing.T) {
	// Use a path that doesn't exist
	got := Status(context.Background(), "/tmp/hookscope-test-nonexistent.sock")
	if !strings.Contains(got, "socket: inactive") {
		t.Errorf("Status() should report inactive socket, got: %s", got)
	}
}

func TestStatusWithSocket(t *testing.T) {
	// Create a temporary file to simulate a socket
	f, err := os.CreateTemp("", "hookscope-test-*.sock")
	if err != nil {
		t.Fatal(err)
	}
	defer os.Remove(f.Name())
	f.Close()

	got := Status(context.Background(), f.Name())
	if !strings.Contains(got, "socket: active") {
		t.Errorf("Status() should report active socket, got: %s", got)
	}
}

func TestDescribeState(t *testing.T) {
	tests := []struct {
		active, sub, want string
	}{
		{"active", "running", "active (running)"},
		{"inactive", "dead", "inactive (dead)"},
		{"failed", "failed", "failed"},
		{"activating", "", "activating"},
		{"", "", "unknown"},
	}
	for _, tt := range tests {
		if got := describeState(tt.active, tt.sub); got != tt.want {
			t.Errorf("describeState(%q, %q) = %q, want %q", tt.active, tt.sub, got, tt.want)
		}
	}
}

func TestRunJob(t *testing.T) {
	ctx := context.Background()

	err := runJob(ctx, "start", func(ch chan<- string) (int, error) {
		ch <- "done"
		return 1, nil
	})
	if err != nil {
		t.Errorf("done job: %v", err)
	}

	err = runJob(ctx, "start", func(ch chan<- string) (int, error) {
		ch <- "failed"
		return 1, nil
	})
	if err == nil || !strings.Contains(err.Error(), `job result "failed"`) {
		t.Errorf("failed job: got %v", err)
	}

	boom := errors.New("boom")
	err = runJob(ctx, "stop", func(chan<- string) (int, error) { return 0, boom })
	if !errors.Is(err, boom) {
		t.Errorf("start error: got %v", err)
	}
}
