// helpers_test.go: Shared helpers for the Cascade test suite
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package cascade

import (
	goerrors "errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/agilira/go-errors"
	"github.com/davecgh/go-spew/spew"
)

// spewConfig renders values deterministically for comparisons and
// failure messages.
var spewConfig = spew.ConfigState{
	Indent:                  "  ",
	SortKeys:                true,
	DisablePointerAddresses: true,
	DisableCapacities:       true,
}

// parseYAMLDoc parses a YAML document or fails the test.
func parseYAMLDoc(t testing.TB, text string) *Node {
	t.Helper()
	doc, err := ParseDocument([]byte(text), FormatYAML)
	if err != nil {
		t.Fatalf("failed to parse test document: %v\n%s", err, text)
	}
	return doc
}

// writeTestFile writes content to name inside dir and returns the path.
func writeTestFile(t testing.TB, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
	return path
}

// errorCode returns the code of the outermost coded error in err's chain.
func errorCode(err error) string {
	var coder errors.ErrorCoder
	if goerrors.As(err, &coder) {
		return string(coder.ErrorCode())
	}
	return ""
}

// assertErrorCode fails the test unless err carries the given code.
func assertErrorCode(t testing.TB, err error, code string) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected error with code %s, got nil", code)
	}
	if got := errorCode(err); got != code {
		t.Fatalf("expected error code %s, got %q (%v)", code, got, err)
	}
}

// recordingObserver collects merge decisions for assertions.
type recordingObserver struct {
	skipped   []string
	forced    []string
	flattened []string
}

func (r *recordingObserver) KeySkipped(path string, d Directive) {
	r.skipped = append(r.skipped, path+"|"+d.Token)
}

func (r *recordingObserver) KeyForced(path string) {
	r.forced = append(r.forced, path)
}

func (r *recordingObserver) SubtreeFlattened(path string) {
	r.flattened = append(r.flattened, path)
}
