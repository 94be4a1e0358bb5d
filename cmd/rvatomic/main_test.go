package main

import (
	"bytes"
	"strings"
	"testing"
)

// ========================================
// demo
// ========================================

// TestRunDemo verifies the reference sequence reproduces its checksum.
func TestRunDemo(t *testing.T) {
	var buf bytes.Buffer
	if err := runDemo(&buf, true); err != nil {
		t.Fatalf("runDemo() error: %v\n%s", err, buf.String())
	}

	out := buf.String()
	if strings.Contains(out, "FAIL") {
		t.Errorf("demo output contains a failed step:\n%s", out)
	}
	for _, want := range []string{
		"amoswap.w shared, 200",
		"cas shared, 100, 300",
		"counter = 23, result = 829",
		"machine report",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("demo output missing %q", want)
		}
	}
}

// ========================================
// stress
// ========================================

// TestParseStressArgs verifies flag parsing and validation.
func TestParseStressArgs(t *testing.T) {
	cfg, err := parseStressArgs([]string{"--harts", "4", "-k", "10", "--spurious=3", "--backoff", "yield", "--report=false"})
	if err != nil {
		t.Fatalf("parseStressArgs() error: %v", err)
	}
	if cfg.harts != 4 || cfg.iters != 10 || cfg.spurious != 3 || cfg.backoff != "yield" || cfg.report {
		t.Errorf("parsed config = %+v", cfg)
	}

	def, err := parseStressArgs(nil)
	if err != nil {
		t.Fatalf("parseStressArgs(nil) error: %v", err)
	}
	if def.harts != 8 || def.iters != 2000 || def.backoff != "exponential" || !def.report {
		t.Errorf("default config = %+v", def)
	}

	for _, args := range [][]string{
		{"--harts", "0"},
		{"--harts", "2000"},
		{"--iters", "-1"},
		{"extra"},
		{"--bogus"},
	} {
		if _, err := parseStressArgs(args); err == nil {
			t.Errorf("parseStressArgs(%v) succeeded, want error", args)
		}
	}
}

// TestRunStress verifies every property passes, with spurious failures on.
func TestRunStress(t *testing.T) {
	for _, backoff := range []string{"spin", "yield", "exponential"} {
		t.Run(backoff, func(t *testing.T) {
			var buf bytes.Buffer
			cfg := stressConfig{harts: 4, iters: 200, spurious: 3, backoff: backoff, report: true}
			if err := runStress(&buf, cfg); err != nil {
				t.Fatalf("runStress() error: %v\n%s", err, buf.String())
			}
			if n := strings.Count(buf.String(), "PASS"); n != len(properties) {
				t.Errorf("%d properties passed, want %d", n, len(properties))
			}
		})
	}
}

// TestRunStress_BadBackoff verifies configuration errors surface.
func TestRunStress_BadBackoff(t *testing.T) {
	var buf bytes.Buffer
	err := runStress(&buf, stressConfig{harts: 1, iters: 1, backoff: "sleep"})
	if err == nil {
		t.Fatal("runStress with unknown backoff succeeded")
	}
}

// ========================================
// version
// ========================================

// TestRunVersion verifies version output and requirement checks.
func TestRunVersion(t *testing.T) {
	var buf bytes.Buffer
	if err := runVersion(&buf, ""); err != nil {
		t.Fatalf("runVersion() error: %v", err)
	}
	if !strings.Contains(buf.String(), "amomaxu.w") {
		t.Errorf("version output missing op list:\n%s", buf.String())
	}

	if err := runVersion(&buf, "v0.1.0"); err != nil {
		t.Errorf("--require v0.1.0 error: %v", err)
	}
	if err := runVersion(&buf, "v9.0.0"); err == nil {
		t.Error("--require v9.0.0 succeeded")
	}
	if err := runVersion(&buf, "not-a-version"); err == nil {
		t.Error("--require not-a-version succeeded")
	}
}
