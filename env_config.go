// env_config.go: Environment variable support for Cascade options
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package cascade

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/agilira/go-errors"
)

// Environment variables read by LoadOptionsFromEnv.
const (
	EnvDevelopment        = "CASCADE_DEVELOPMENT"
	EnvOverwrite          = "CASCADE_OVERWRITE"
	EnvInlineDepth        = "CASCADE_INLINE_DEPTH"
	EnvIndent             = "CASCADE_INDENT"
	EnvLenient            = "CASCADE_LENIENT"
	EnvAuditEnabled       = "CASCADE_AUDIT_ENABLED"
	EnvAuditOutputFile    = "CASCADE_AUDIT_OUTPUT_FILE"
	EnvAuditMinLevel      = "CASCADE_AUDIT_MIN_LEVEL"
	EnvAuditBufferSize    = "CASCADE_AUDIT_BUFFER_SIZE"
	EnvAuditFlushInterval = "CASCADE_AUDIT_FLUSH_INTERVAL"
)

// LoadOptionsFromEnv builds options from CASCADE_* environment variables
// on top of the defaults.
func LoadOptionsFromEnv() (Options, error) {
	opts, err := Options{}.ApplyEnv()
	if err != nil {
		return Options{}, err
	}
	return opts.WithDefaults(), nil
}

// ApplyEnv overrides the options with every CASCADE_* variable that is set.
// Malformed values fail with ErrCodeInvalidOptions naming the variable.
func (o Options) ApplyEnv() (Options, error) {
	if v, ok := lookupEnv(EnvDevelopment); ok {
		o.DevelopmentMode = parseBool(v)
	}
	if v, ok := lookupEnv(EnvOverwrite); ok {
		o.Overwrite = parseBool(v)
	}
	if v, ok := lookupEnv(EnvLenient); ok {
		o.Lenient = parseBool(v)
	}
	if err := envInt(EnvInlineDepth, &o.InlineDepth); err != nil {
		return o, err
	}
	if err := envInt(EnvIndent, &o.Indentation); err != nil {
		return o, err
	}
	return o, loadAuditEnv(&o.Audit)
}

func loadAuditEnv(audit *AuditConfig) error {
	if v, ok := lookupEnv(EnvAuditEnabled); ok {
		audit.Enabled = parseBool(v)
	}
	if v, ok := lookupEnv(EnvAuditOutputFile); ok {
		audit.OutputFile = v
	}
	if v, ok := lookupEnv(EnvAuditMinLevel); ok {
		level, err := parseAuditLevel(v)
		if err != nil {
			return errors.Wrap(err, ErrCodeInvalidOptions, fmt.Sprintf("invalid %s", EnvAuditMinLevel))
		}
		audit.MinLevel = level
	}
	if err := envInt(EnvAuditBufferSize, &audit.BufferSize); err != nil {
		return err
	}
	if v, ok := lookupEnv(EnvAuditFlushInterval); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return errors.New(ErrCodeInvalidOptions, fmt.Sprintf("invalid %s format", EnvAuditFlushInterval))
		}
		audit.FlushInterval = d
	}
	return nil
}

func lookupEnv(key string) (string, bool) {
	v, ok := os.LookupEnv(key)
	v = strings.TrimSpace(v)
	return v, ok && v != ""
}

func envInt(key string, dst *int) error {
	v, ok := lookupEnv(key)
	if !ok {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return errors.New(ErrCodeInvalidOptions, fmt.Sprintf("invalid %s value", key))
	}
	*dst = n
	return nil
}

// parseBool parses boolean values from environment variables
// Supports: true/false, 1/0, yes/no, on/off, enabled/disabled
func parseBool(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "true", "1", "yes", "on", "enabled":
		return true
	default:
		return false
	}
}
