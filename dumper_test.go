// dumper_test.go: Tests for the block and flow style dumper
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package cascade

import (
	"testing"

	"go.yaml.in/yaml/v3"
)

func TestDump_ListVersusMapping(t *testing.T) {
	tests := []struct {
		name     string
		input    any
		expected string
	}{
		{"sequence", []any{"x", "y"}, "[x, y]"},
		{"mapping", map[string]any{"k": "v"}, "{ k: v }"},
		{"consecutive integer keys", MapSlice{{"0", "a"}, {"1", "b"}}, "[a, b]"},
		{"integer keys out of order", MapSlice{{"1", "b"}, {"0", "a"}}, "{ 1: b, 0: a }"},
		{"integer keys with gap", MapSlice{{"0", "a"}, {"2", "b"}}, "{ 0: a, 2: b }"},
		{"typed integer map", map[int]string{1: "b", 0: "a"}, "[a, b]"},
		{"string map sorted", map[string]any{"b": 2, "a": 1}, "{ a: 1, b: 2 }"},
		{"string integer keys sort numerically", map[string]any{
			"0": 0, "1": 1, "2": 2, "3": 3, "4": 4, "5": 5, "6": 6, "7": 7, "8": 8, "9": 9, "10": 10,
		}, "[0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10]"},
		{"typed string map with integer keys", map[string]string{"10": "k", "2": "c", "0": "a", "1": "b"}, "{ 0: a, 1: b, 2: c, 10: k }"},
		{"mixed keys sort lexically", map[string]any{"10": "x", "9": "y", "a": "z"}, "{ 10: x, 9: y, a: z }"},
		{"nested", map[string]any{"a": []any{1, map[string]any{"b": nil}}}, "{ a: [1, { b: null }] }"},
		{"empty sequence", []any{}, "[]"},
		{"empty mapping", map[string]any{}, "{}"},
		{"scalar", "two words", "'two words'"},
		{"nil", nil, "null"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Dump(tt.input, 0)
			if err != nil {
				t.Fatalf("Dump(%s) unexpected error: %v", spewConfig.Sdump(tt.input), err)
			}
			if got != tt.expected {
				t.Errorf("Dump(%s) = %q, want %q", spewConfig.Sdump(tt.input), got, tt.expected)
			}
		})
	}
}

func TestDump_BlockVersusInlineThreshold(t *testing.T) {
	input := map[string]any{
		"a": map[string]any{"b": 1, "c": 2},
		"d": "e",
	}

	got, err := Dump(input, 1)
	if err != nil {
		t.Fatal(err)
	}
	want := "a: { b: 1, c: 2 }\nd: e\n"
	if got != want {
		t.Errorf("inline=1:\ngot:\n%s\nwant:\n%s", got, want)
	}

	got, err = Dump(input, 2)
	if err != nil {
		t.Fatal(err)
	}
	want = "a:\n    b: 1\n    c: 2\nd: e\n"
	if got != want {
		t.Errorf("inline=2:\ngot:\n%s\nwant:\n%s", got, want)
	}
}

func TestDump_BlockDocument(t *testing.T) {
	input := MapSlice{
		{"app", MapSlice{
			{"name", "demo"},
			{"tags", []any{"web", "api"}},
		}},
		{"servers", []any{
			MapSlice{{"host", "a.example.com"}, {"port", 80}},
			MapSlice{{"host", "b.example.com"}, {"port", 8080}},
		}},
		{"empty", map[string]any{}},
		{"none", nil},
	}

	got, err := Dump(input, 2)
	if err != nil {
		t.Fatal(err)
	}
	want := "" +
		"app:\n" +
		"    name: demo\n" +
		"    tags: [web, api]\n" +
		"servers:\n" +
		"    - { host: a.example.com, port: 80 }\n" +
		"    - { host: b.example.com, port: 8080 }\n" +
		"empty: {}\n" +
		"none: null\n"
	if got != want {
		t.Errorf("got:\n%s\nwant:\n%s", got, want)
	}

	got, err = Dump(input, 3)
	if err != nil {
		t.Fatal(err)
	}
	want = "" +
		"app:\n" +
		"    name: demo\n" +
		"    tags:\n" +
		"        - web\n" +
		"        - api\n" +
		"servers:\n" +
		"    -\n" +
		"        host: a.example.com\n" +
		"        port: 80\n" +
		"    -\n" +
		"        host: b.example.com\n" +
		"        port: 8080\n" +
		"empty: {}\n" +
		"none: null\n"
	if got != want {
		t.Errorf("got:\n%s\nwant:\n%s", got, want)
	}
}

func TestDump_IndentAndIndentation(t *testing.T) {
	d := NewDumper(DumperOptions{Indentation: 2})
	if d.Indentation() != 2 {
		t.Fatalf("Indentation() = %d", d.Indentation())
	}

	got, err := d.Dump(map[string]any{"a": map[string]any{"b": 1}}, 4, 2)
	if err != nil {
		t.Fatal(err)
	}
	want := "  a:\n    b: 1\n"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}

	if NewDumper(DumperOptions{}).Indentation() != DefaultIndentation {
		t.Error("zero indentation should default")
	}
}

func TestDump_Unserializable(t *testing.T) {
	input := map[string]any{"handler": func() {}, "name": "x"}

	_, err := Dump(input, 4)
	assertErrorCode(t, err, ErrCodeUnserializable)

	got, err := DumpString(input, 4, DumperOptions{Lenient: true})
	if err != nil {
		t.Fatalf("lenient dump failed: %v", err)
	}
	if got != "handler: null\nname: x\n" {
		t.Errorf("lenient dump = %q", got)
	}

	_, err = Inline(make(chan int))
	assertErrorCode(t, err, ErrCodeUnserializable)
}

func TestDump_NodeInputKeepsDocumentOrder(t *testing.T) {
	doc := parseYAMLDoc(t, `
zeta: 1
alpha|important:
  beta: true
`)
	got, err := Dump(doc, 4)
	if err != nil {
		t.Fatal(err)
	}
	want := "zeta: 1\nalpha|important:\n    beta: true\n"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestInline(t *testing.T) {
	got, err := Inline(map[string]any{"list": []any{"a b", 1.0, true}, "k": "null"})
	if err != nil {
		t.Fatal(err)
	}
	want := "{ k: 'null', list: ['a b', 1.0, true] }"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestDump_ReparsesWithStandardYAML(t *testing.T) {
	input := map[string]any{
		"version":  "1.10",
		"count":    10,
		"ratio":    2.0,
		"enabled":  false,
		"missing":  nil,
		"empty":    "",
		"literal":  "null",
		"date":     "2025-01-02",
		"hex":      "0x10",
		"message":  "line one\nline two: \"quoted\"",
		"path":     "assets/css/main",
		"d/e/f":    "flat",
		"list":     []any{"- dash", "#hash", "it's"},
		"nested":   map[string]any{"deep": map[string]any{"deeper": []any{1, 2}}},
		"unicode":  "caffè \u2028 ok",
		"negative": -3,
		"delete":   "a\x7fb",
		"c1":       "a\u0086b",
		"ellipsis": "...",
		"dashes":   "---",
	}

	for _, inline := range []int{0, 1, 2, 4} {
		out, err := Dump(input, inline)
		if err != nil {
			t.Fatalf("inline=%d: %v", inline, err)
		}

		var reparsed map[string]any
		if err := yaml.Unmarshal([]byte(out), &reparsed); err != nil {
			t.Fatalf("inline=%d: output does not parse: %v\n%s", inline, err, out)
		}
		if got, want := spewConfig.Sdump(reparsed), spewConfig.Sdump(input); got != want {
			t.Errorf("inline=%d: round trip mismatch\noutput:\n%s\ngot:\n%s\nwant:\n%s", inline, out, got, want)
		}
	}
}

func TestDump_InvalidUTF8IsReplaced(t *testing.T) {
	out, err := Dump(map[string]any{"k": "\xffab", "\xfek": "v"}, 1)
	if err != nil {
		t.Fatal(err)
	}

	var reparsed map[string]any
	if err := yaml.Unmarshal([]byte(out), &reparsed); err != nil {
		t.Fatalf("output does not parse: %v\n%s", err, out)
	}
	if reparsed["k"] != "\uFFFDab" || reparsed["\uFFFDk"] != "v" {
		t.Errorf("unexpected reparse %s", spewConfig.Sdump(reparsed))
	}
}
