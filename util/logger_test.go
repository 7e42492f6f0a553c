package util_test

import (
	"bytes"
	"os"
	"strings"
	"testing"

	"github.com/downfa11-org/go-relay/util"
	"gopkg.in/yaml.v3"
)

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	util.SetOutput(&buf)
	defer util.SetOutput(os.Stderr)
	defer util.SetLevel(util.LogLevelInfo)

	util.SetLevel(util.LogLevelWarn)
	util.Info("hidden %d", 1)
	util.Warn("shown %d", 2)

	out := buf.String()
	if strings.Contains(out, "hidden 1") {
		t.Errorf("info line should be filtered at warn level: %q", out)
	}
	if !strings.Contains(out, "shown 2") {
		t.Errorf("warn line missing: %q", out)
	}
}

func TestLogLevelUnmarshal(t *testing.T) {
	var cfg struct {
		Level util.LogLevel `yaml:"log_level"`
	}
	if err := yaml.Unmarshal([]byte("log_level: debug"), &cfg); err != nil {
		t.Fatalf("unmarshal string level: %v", err)
	}
	if cfg.Level != util.LogLevelDebug {
		t.Errorf("expected debug, got %v", cfg.Level)
	}

	if err := yaml.Unmarshal([]byte("log_level: 3"), &cfg); err != nil {
		t.Fatalf("unmarshal int level: %v", err)
	}
	if cfg.Level != util.LogLevelError {
		t.Errorf("expected error, got %v", cfg.Level)
	}

	var l util.LogLevel
	if err := l.UnmarshalJSON([]byte(`"warning"`)); err != nil || l != util.LogLevelWarn {
		t.Errorf("json warning -> %v, %v", l, err)
	}
	if got := util.ParseLogLevel("bogus"); got != util.LogLevelInfo {
		t.Errorf("ParseLogLevel fallback = %v", got)
	}
}
