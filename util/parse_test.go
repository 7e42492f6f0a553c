package util_test

import (
	"testing"

	"github.com/downfa11-org/go-relay/util"
)

func TestParseIntEnvValues(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		fallback int
		want     int
	}{
		{"HTTP_PORT", "8080", 3000, 8080},
		{"STORE_CAPACITY", "250", 100, 250},
		{"METRICS_PORT unset", "", 9100, 9100},
		{"STORE_CAPACITY typo", "1OO", 100, 100},
		{"HTTP_PORT with unit", "3000/tcp", 3000, 3000},
	}

	for _, tt := range tests {
		if got := util.ParseInt(tt.input, tt.fallback); got != tt.want {
			t.Errorf("%s: ParseInt(%q, %d) = %d; want %d", tt.name, tt.input, tt.fallback, got, tt.want)
		}
	}
}

func TestParseInt64Milliseconds(t *testing.T) {
	// LAG_UPDATE_INTERVAL accepts bare milliseconds
	if got := util.ParseInt64("30000", -1); got != 30000 {
		t.Errorf("ParseInt64 = %d; want 30000", got)
	}
	if got := util.ParseInt64("30s", -1); got != -1 {
		t.Errorf("ParseInt64 fallback = %d; want -1", got)
	}
}

func TestParseBool(t *testing.T) {
	if !util.ParseBool("true", false) || util.ParseBool("0", true) {
		t.Errorf("ParseBool misread a canonical value")
	}
	if !util.ParseBool("enabled", true) {
		t.Errorf("ParseBool should keep the fallback for unknown input")
	}
}

func TestSplitListBrokers(t *testing.T) {
	got := util.SplitList(" kafka-1:9092, ,kafka-2:9092 ,")
	if len(got) != 2 || got[0] != "kafka-1:9092" || got[1] != "kafka-2:9092" {
		t.Errorf("SplitList returned %v", got)
	}
	if got := util.SplitList(""); len(got) != 0 {
		t.Errorf("SplitList(\"\") returned %v", got)
	}
}
