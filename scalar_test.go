// scalar_test.go: Tests for scalar classification and quoting
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package cascade

import (
	"math"
	"testing"
	"time"
)

type testPort int
type testLabel string

func TestDumpScalar(t *testing.T) {
	tests := []struct {
		name     string
		input    any
		expected string
	}{
		// literals
		{"null", nil, "null"},
		{"true", true, "true"},
		{"false", false, "false"},
		{"plain string", "hello", "hello"},
		{"integer", 42, "42"},
		{"float", 3.14, "3.14"},

		// source type decides quoting of digits
		{"digit string", "123", "'123'"},
		{"int64", int64(-7), "-7"},
		{"uint64", uint64(18446744073709551615), "18446744073709551615"},
		{"named int", testPort(8080), "8080"},
		{"numeric string", "1.5", "'1.5'"},
		{"signed numeric string", "-2", "'-2'"},
		{"exponent string", "1e3", "'1e3'"},

		// floats always reparse as floats
		{"whole float", 2.0, "2.0"},
		{"negative float", -0.5, "-0.5"},
		{"large float", 1e20, "1e+20"},
		{"float32", float32(1.5), "1.5"},
		{"positive infinity", math.Inf(1), ".Inf"},
		{"negative infinity", math.Inf(-1), "-.Inf"},
		{"not a number", math.NaN(), ".NaN"},

		// double-quoted escapes
		{"newline", "line\nbreak", `"line\nbreak"`},
		{"tab", "a\tb", `"a\tb"`},
		{"carriage return", "a\rb", `"a\rb"`},
		{"nul byte", "a\x00b", `"a\0b"`},
		{"escape char", "\x1b[0m", `"\e[0m"`},
		{"quote with control", "say \"hi\"\n", `"say \"hi\"\n"`},
		{"backslash with control", "c:\\\n", `"c:\\\n"`},
		{"next line", "a\u0085b", `"a\Nb"`},
		{"line separator", "a\u2028b", `"a\Lb"`},
		{"delete", "a\x7fb", `"a\x7Fb"`},
		{"c1 control", "a\u0090b", `"a\x90b"`},
		{"noncharacter", "a\uFFFEb", `"a\uFFFEb"`},
		{"invalid utf-8", "\xffab", "\uFFFDab"},
		{"invalid utf-8 with control", "\xff\n", "\"\uFFFD\\n\""},

		// single-quoted
		{"colon space", "key: value", "'key: value'"},
		{"spaces", "two words", "'two words'"},
		{"apostrophe", "it's", "'it''s'"},
		{"comment char", "a#b", "'a#b'"},
		{"flow chars", "[x]", "'[x]'"},
		{"leading dash", "- item", "'- item'"},
		{"leading at", "@handle", "'@handle'"},
		{"leading pipe", "|literal", "'|literal'"},
		{"leading percent", "%TAG", "'%TAG'"},
		{"anchor", "&anchor", "'&anchor'"},
		{"named string", testLabel("a b"), "'a b'"},

		// empty
		{"empty", "", "''"},

		// reserved literals
		{"null text", "null", "'null'"},
		{"null upper", "NULL", "'NULL'"},
		{"tilde", "~", "'~'"},
		{"true text", "true", "'true'"},
		{"false mixed", "False", "'False'"},
		{"date", "2025-01-02", "'2025-01-02'"},
		{"timestamp", "2025-01-02T03:04:05Z", "'2025-01-02T03:04:05Z'"},
		{"hex", "0x1F", "'0x1F'"},
		{"octal", "0o17", "'0o17'"},
		{"underscored", "1_000", "'1_000'"},
		{"inf text", ".inf", "'.inf'"},
		{"nan text", ".NaN", "'.NaN'"},
		{"document end", "...", "'...'"},
		{"document start", "---", "'---'"},

		// safe plain strings
		{"path", "assets/css/main", "assets/css/main"},
		{"dotted", "example.com", "example.com"},
		{"directive key", "db|important", "db|important"},
		{"unicode", "caffè", "caffè"},
		{"yes stays plain", "yes", "yes"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DumpScalar(tt.input)
			if err != nil {
				t.Fatalf("DumpScalar(%#v) unexpected error: %v", tt.input, err)
			}
			if got != tt.expected {
				t.Errorf("DumpScalar(%#v) = %s, want %s", tt.input, got, tt.expected)
			}
		})
	}
}

func TestDumpScalar_Time(t *testing.T) {
	ts := time.Date(2025, 1, 2, 3, 4, 5, 600, time.UTC)
	got, err := DumpScalar(ts)
	if err != nil {
		t.Fatal(err)
	}
	if got != "2025-01-02T03:04:05.0000006Z" {
		t.Errorf("got %s", got)
	}
}

func TestDumpScalar_Unserializable(t *testing.T) {
	inputs := []any{
		struct{ A int }{1},
		make(chan int),
		func() {},
		complex(1, 2),
		map[string]any{"a": 1},
	}
	for _, input := range inputs {
		_, err := DumpScalar(input)
		assertErrorCode(t, err, ErrCodeUnserializable)
	}
}

func TestDumpKey(t *testing.T) {
	tests := map[string]string{
		"0":     "0",
		"42":    "42",
		"-3":    "-3",
		"007":   "'007'",
		"name":  "name",
		"a b":   "'a b'",
		"true":  "'true'",
		"":      "''",
		"1.5":   "'1.5'",
		"+1":    "'+1'",
		"d/e/f": "d/e/f",
	}
	for key, want := range tests {
		if got := dumpKey(key); got != want {
			t.Errorf("dumpKey(%q) = %s, want %s", key, got, want)
		}
	}
}
