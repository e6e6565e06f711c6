// flags_test.go: Tests for command-line flag support
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package cascade

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFlags(t *testing.T) {
	clearCascadeEnv(t)

	opts, files, err := ParseFlags("app", []string{
		"--dev",
		"--inline", "2",
		"--indent", "2",
		"--config", "base.yml,local.yml",
	})
	require.NoError(t, err)

	assert.True(t, opts.DevelopmentMode)
	assert.False(t, opts.Overwrite)
	assert.False(t, opts.Lenient)
	assert.Equal(t, 2, opts.InlineDepth)
	assert.Equal(t, 2, opts.Indentation)
	assert.Equal(t, []string{"base.yml", "local.yml"}, files)
}

func TestParseFlags_EnvironmentProvidesDefaults(t *testing.T) {
	clearCascadeEnv(t)
	t.Setenv(EnvOverwrite, "true")
	t.Setenv(EnvIndent, "8")

	opts, files, err := ParseFlags("app", []string{"--indent", "3"})
	require.NoError(t, err)

	assert.True(t, opts.Overwrite, "environment value should survive when the flag is absent")
	assert.Equal(t, 3, opts.Indentation, "flag should win over environment")
	assert.Equal(t, DefaultInlineDepth, opts.InlineDepth)
	assert.Empty(t, files)
}

func TestParseFlags_Errors(t *testing.T) {
	clearCascadeEnv(t)

	_, _, err := ParseFlags("app", []string{"--inline", "many"})
	assertErrorCode(t, err, ErrCodeInvalidOptions)

	_, _, err = ParseFlags("app", []string{"--indent", "0"})
	assertErrorCode(t, err, ErrCodeInvalidOptions)

	t.Setenv(EnvInlineDepth, "x")
	_, _, err = ParseFlags("app", nil)
	assertErrorCode(t, err, ErrCodeInvalidOptions)
}

func TestNewSessionFromArgs(t *testing.T) {
	clearCascadeEnv(t)
	dir := t.TempDir()
	base := writeTestFile(t, dir, "base.yml", sessionBase)
	local := writeTestFile(t, dir, "local.yml", sessionLocal)

	s, err := NewSessionFromArgs("app", []string{"--dev", "--config", base + "," + local})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	assert.Equal(t, []string{base, local}, s.Sources())
	assert.Equal(t, true, mustGet(t, s, "debug"))
	assert.Equal(t, "demo", mustGet(t, s, "app.name"))

	_, err = NewSessionFromArgs("app", []string{"--config", base + "," + dir + "/missing.yml"})
	assertErrorCode(t, err, ErrCodeFileNotFound)
}
