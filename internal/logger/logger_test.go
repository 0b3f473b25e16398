package logger

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func capture(t *testing.T, level Level) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prevLevel := GetLevel()
	prevNow := out.now
	SetOutput(&buf)
	SetLevel(level)
	out.now = func() time.Time { return time.Date(2026, 3, 2, 9, 15, 4, 120e6, time.UTC) }
	t.Cleanup(func() {
		SetOutput(os.Stderr)
		SetLevel(prevLevel)
		out.now = prevNow
		Close()
	})
	return &buf
}

func TestLevelFiltering(t *testing.T) {
	buf := capture(t, LevelWarn)
	c := For("redmine")

	c.Debug("hidden %d", 1)
	c.Info("hidden %d", 2)
	c.Warn("shown %d", 3)
	c.Error("shown %d", 4)

	got := buf.String()
	if strings.Contains(got, "hidden") {
		t.Errorf("output contains filtered lines: %q", got)
	}
	if !strings.Contains(got, `level=warn component=redmine msg="shown 3"`) {
		t.Errorf("missing warn line in %q", got)
	}
	if !strings.Contains(got, `level=error component=redmine msg="shown 4"`) {
		t.Errorf("missing error line in %q", got)
	}
}

func TestLineFormat(t *testing.T) {
	tests := []struct {
		name string
		log  func()
		want string
	}{
		{
			name: "cli default",
			log:  func() { Info("ready") },
			want: "ts=2026-03-02T09:15:04.120Z level=info component=cli msg=ready\n",
		},
		{
			name: "quoted message",
			log:  func() { For("remote").Info("POST %s", "time_entries") },
			want: "ts=2026-03-02T09:15:04.120Z level=info component=remote msg=\"POST time_entries\"\n",
		},
		{
			name: "embedded quotes",
			log:  func() { For("remote").Warn(`payload {"hours":2}`) },
			want: `ts=2026-03-02T09:15:04.120Z level=warn component=remote msg="payload {\"hours\":2}"` + "\n",
		},
		{
			name: "empty message",
			log:  func() { For("sync").Debug("") },
			want: "ts=2026-03-02T09:15:04.120Z level=debug component=sync msg=\"\"\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := capture(t, LevelDebug)
			tt.log()
			if got := buf.String(); got != tt.want {
				t.Errorf("line = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSetLogFile(t *testing.T) {
	capture(t, LevelDebug)
	path := filepath.Join(t.TempDir(), "redtime.log")

	if err := SetLogFile(path); err != nil {
		t.Fatalf("SetLogFile: %v", err)
	}
	For("remote").Info("upload time_entries/7")
	Close()
	For("remote").Info("after close")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading log file: %v", err)
	}
	if !strings.Contains(string(data), `component=remote msg="upload time_entries/7"`) {
		t.Errorf("log file = %q", data)
	}
	if strings.Contains(string(data), "after close") {
		t.Errorf("log file written after Close: %q", data)
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    Level
		wantErr bool
	}{
		{"debug", LevelDebug, false},
		{" INFO ", LevelInfo, false},
		{"", LevelInfo, false},
		{"warning", LevelWarn, false},
		{"error", LevelError, false},
		{"verbose", LevelInfo, true},
	}

	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseLevel(%q) err = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestLevelString(t *testing.T) {
	if got := LevelWarn.String(); got != "warn" {
		t.Errorf("LevelWarn.String() = %q", got)
	}
	if got := Level(9).String(); got != "level(9)" {
		t.Errorf("Level(9).String() = %q", got)
	}
}
