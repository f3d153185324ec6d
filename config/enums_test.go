package config_test

import (
	"testing"

	yaml "gopkg.in/yaml.v3"

	"stylo/config"
)

func TestParseEngineMode(t *testing.T) {
	cases := []struct {
		in   string
		want config.EngineMode
		ok   bool
	}{
		{"same-process", config.EngineModeSameProcess, true},
		{"worker-process", config.EngineModeWorkerProcess, true},
		{"inprocess", 0, false},
		{"", 0, false},
	}
	for _, tc := range cases {
		got, err := config.ParseEngineMode(tc.in)
		if tc.ok && (err != nil || got != tc.want) {
			t.Errorf("ParseEngineMode(%q) = %v, %v", tc.in, got, err)
		}
		if !tc.ok && err == nil {
			t.Errorf("ParseEngineMode(%q): expected error", tc.in)
		}
	}
}

func TestEngineMode_YAMLRoundTrip(t *testing.T) {
	data, err := yaml.Marshal(config.EngineModeWorkerProcess)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var mode config.EngineMode
	if err := yaml.Unmarshal(data, &mode); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if mode != config.EngineModeWorkerProcess {
		t.Errorf("round trip = %v", mode)
	}

	if err := yaml.Unmarshal([]byte("bogus"), &mode); err == nil {
		t.Error("expected unknown mode to fail")
	}
}

func TestEngineMode_String(t *testing.T) {
	if got := config.EngineModeSameProcess.String(); got != "same-process" {
		t.Errorf("String = %q", got)
	}
	if got := config.EngineMode(42).String(); got == "" {
		t.Error("unknown modes still need a diagnostic name")
	}
}
