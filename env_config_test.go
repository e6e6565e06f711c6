// env_config_test.go: Tests for environment variable support
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package cascade

import (
	"path/filepath"
	"testing"
	"time"
)

var cascadeEnvVars = []string{
	EnvDevelopment, EnvOverwrite, EnvInlineDepth, EnvIndent, EnvLenient,
	EnvAuditEnabled, EnvAuditOutputFile, EnvAuditMinLevel, EnvAuditBufferSize, EnvAuditFlushInterval,
}

// clearCascadeEnv blanks every CASCADE_* variable for the test; empty
// values count as unset.
func clearCascadeEnv(t *testing.T) {
	t.Helper()
	for _, key := range cascadeEnvVars {
		t.Setenv(key, "")
	}
}

func TestLoadOptionsFromEnv(t *testing.T) {
	clearCascadeEnv(t)
	auditFile := filepath.Join(t.TempDir(), "cascade-test.jsonl")

	t.Setenv(EnvDevelopment, "yes")
	t.Setenv(EnvOverwrite, "on")
	t.Setenv(EnvInlineDepth, "2")
	t.Setenv(EnvIndent, " 2 ")
	t.Setenv(EnvLenient, "enabled")
	t.Setenv(EnvAuditEnabled, "true")
	t.Setenv(EnvAuditOutputFile, auditFile)
	t.Setenv(EnvAuditMinLevel, "warn")
	t.Setenv(EnvAuditBufferSize, "50")
	t.Setenv(EnvAuditFlushInterval, "3s")

	opts, err := LoadOptionsFromEnv()
	if err != nil {
		t.Fatalf("Failed to load options from env: %v", err)
	}

	if !opts.DevelopmentMode || !opts.Overwrite || !opts.Lenient {
		t.Errorf("boolean options not loaded: %+v", opts)
	}
	if opts.InlineDepth != 2 || opts.Indentation != 2 {
		t.Errorf("Expected inline 2 and indent 2, got %d and %d", opts.InlineDepth, opts.Indentation)
	}
	if !opts.Audit.Enabled || opts.Audit.OutputFile != auditFile {
		t.Errorf("audit output not loaded: %+v", opts.Audit)
	}
	if opts.Audit.MinLevel != AuditWarn {
		t.Errorf("Expected audit level WARN, got %v", opts.Audit.MinLevel)
	}
	if opts.Audit.BufferSize != 50 || opts.Audit.FlushInterval != 3*time.Second {
		t.Errorf("audit buffering not loaded: %+v", opts.Audit)
	}
}

func TestLoadOptionsFromEnv_Defaults(t *testing.T) {
	clearCascadeEnv(t)

	opts, err := LoadOptionsFromEnv()
	if err != nil {
		t.Fatal(err)
	}
	if opts.DevelopmentMode || opts.Overwrite || opts.Lenient || opts.Audit.Enabled {
		t.Errorf("unexpected options without environment: %+v", opts)
	}
	if opts.InlineDepth != DefaultInlineDepth || opts.Indentation != DefaultIndentation {
		t.Errorf("defaults not applied: %+v", opts)
	}
}

func TestApplyEnv_KeepsUnsetFields(t *testing.T) {
	clearCascadeEnv(t)
	t.Setenv(EnvOverwrite, "false")

	opts, err := Options{DevelopmentMode: true, Overwrite: true, Indentation: 8}.ApplyEnv()
	if err != nil {
		t.Fatal(err)
	}
	if !opts.DevelopmentMode {
		t.Error("unset variable must not reset DevelopmentMode")
	}
	if opts.Overwrite {
		t.Error("CASCADE_OVERWRITE=false should clear Overwrite")
	}
	if opts.Indentation != 8 {
		t.Errorf("Indentation changed to %d", opts.Indentation)
	}
}

func TestLoadOptionsFromEnv_InvalidValues(t *testing.T) {
	tests := map[string]string{
		EnvInlineDepth:        "deep",
		EnvIndent:             "4.5",
		EnvAuditMinLevel:      "loud",
		EnvAuditBufferSize:    "many",
		EnvAuditFlushInterval: "soon",
	}
	for key, value := range tests {
		t.Run(key, func(t *testing.T) {
			clearCascadeEnv(t)
			t.Setenv(key, value)

			_, err := LoadOptionsFromEnv()
			assertErrorCode(t, err, ErrCodeInvalidOptions)
		})
	}
}

func TestParseBool(t *testing.T) {
	for _, v := range []string{"true", "TRUE", "1", "yes", "On", " enabled "} {
		if !parseBool(v) {
			t.Errorf("parseBool(%q) should be true", v)
		}
	}
	for _, v := range []string{"false", "0", "no", "off", "disabled", "", "maybe"} {
		if parseBool(v) {
			t.Errorf("parseBool(%q) should be false", v)
		}
	}
}
