// merge_test.go: Tests for the directive-aware merge engine
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

func mergeYAML(t *testing.T, target map[string]any, text string, ctx MergeContext) map[string]any {
	t.Helper()
	Merge(target, parseYAMLDoc(t, text), ctx)
	return target
}

func TestMerge_IdempotentReMerge(t *testing.T) {
	doc := parseYAMLDoc(t, `
app:
  name: demo
  ports: [80, 443]
cache|flat:
  redis:
    host: localhost
`)
	once := map[string]any{}
	Merge(once, doc, MergeContext{})

	twice := map[string]any{}
	Merge(twice, doc, MergeContext{})
	Merge(twice, doc, MergeContext{})

	assert.Equal(t, once, twice)
}

func TestMerge_OverwritePrecedence(t *testing.T) {
	forced := mergeYAML(t, map[string]any{"a": 1}, `a|important: 2`, MergeContext{})
	assert.Equal(t, map[string]any{"a": 2}, forced)

	kept := mergeYAML(t, map[string]any{"a": 1}, `a: 2`, MergeContext{})
	assert.Equal(t, map[string]any{"a": 1}, kept)

	ambient := mergeYAML(t, map[string]any{"a": 1}, `a: 2`, MergeContext{Overwrite: true})
	assert.Equal(t, map[string]any{"a": 2}, ambient)
}

func TestMerge_Disabled(t *testing.T) {
	got := mergeYAML(t, map[string]any{}, `b|disabled: 5`, MergeContext{})
	assert.Empty(t, got)

	got = mergeYAML(t, map[string]any{}, `
b|disabled:
  nested: 1
c: 2
`, MergeContext{})
	assert.Equal(t, map[string]any{"c": 2}, got)
}

func TestMerge_Development(t *testing.T) {
	off := mergeYAML(t, map[string]any{}, `c|development: 1`, MergeContext{})
	assert.Empty(t, off)

	on := mergeYAML(t, map[string]any{}, `c|development: 1`, MergeContext{DevelopmentMode: true})
	assert.Equal(t, map[string]any{"c": 1}, on)
}

func TestMerge_FlattenPath(t *testing.T) {
	got := mergeYAML(t, map[string]any{}, `
d|flat:
  e:
    f: 7
`, MergeContext{})
	assert.Equal(t, map[string]any{"d/e/f": 7}, got)
}

func TestMerge_FlattenScopeRestored(t *testing.T) {
	got := mergeYAML(t, map[string]any{}, `
d|flat:
  e: 1
g:
  h: 2
`, MergeContext{})
	assert.Equal(t, map[string]any{
		"d/e": 1,
		"g":   map[string]any{"h": 2},
	}, got)
}

func TestMerge_FlattenSiblingsDeclaredBefore(t *testing.T) {
	got := mergeYAML(t, map[string]any{}, `
a:
  b: 1
d|flat:
  e:
    f: 2
  g: 3
z:
  y: 4
`, MergeContext{})
	assert.Equal(t, map[string]any{
		"a":     map[string]any{"b": 1},
		"d/e/f": 2,
		"d/g":   3,
		"z":     map[string]any{"y": 4},
	}, got)
}

func TestMerge_NestedFlatKeepsPrefix(t *testing.T) {
	got := mergeYAML(t, map[string]any{}, `
a|flat:
  b|flat:
    c: 1
`, MergeContext{})
	assert.Equal(t, map[string]any{"a/b/c": 1}, got)
}

func TestMerge_FlatInsideNestedMapping(t *testing.T) {
	got := mergeYAML(t, map[string]any{}, `
web:
  assets|flat:
    css:
      main: app.css
  port: 80
`, MergeContext{})
	assert.Equal(t, map[string]any{
		"web": map[string]any{
			"assets/css/main": "app.css",
			"port":            80,
		},
	}, got)
}

func TestMerge_FlatWritesUnconditionally(t *testing.T) {
	target := map[string]any{"d/e": 1}
	mergeYAML(t, target, `
d|flat:
  e: 2
`, MergeContext{})
	assert.Equal(t, map[string]any{"d/e": 2}, target)
}

func TestMerge_FlatSequencesAreLeaves(t *testing.T) {
	got := mergeYAML(t, map[string]any{}, `
a|flat:
  list: [1, 2]
  empty: {}
`, MergeContext{})
	assert.Equal(t, map[string]any{"a/list": []any{1, 2}}, got)
}

func TestMerge_DirectivesInsideFlatSubtree(t *testing.T) {
	got := mergeYAML(t, map[string]any{}, `
a|flat:
  x|disabled: 1
  y|development: 2
  z: 3
`, MergeContext{})
	assert.Equal(t, map[string]any{"a/z": 3}, got)
}

func TestMerge_ImportantReachesDescendants(t *testing.T) {
	target := map[string]any{
		"db": map[string]any{"host": "old", "port": 5432},
	}
	mergeYAML(t, target, `
db|important:
  host: new
  options:
    ssl: true
`, MergeContext{})

	assert.Equal(t, map[string]any{
		"db": map[string]any{
			"host":    "new",
			"port":    5432,
			"options": map[string]any{"ssl": true},
		},
	}, target)
}

func TestMerge_ImportantDoesNotLeakToSiblings(t *testing.T) {
	target := map[string]any{"a": 0, "b": 0}
	mergeYAML(t, target, `
a|important: 1
b: 2
`, MergeContext{})
	assert.Equal(t, map[string]any{"a": 1, "b": 0}, target)
}

func TestMerge_ExistingMappingWithoutOverwrite(t *testing.T) {
	target := map[string]any{"db": map[string]any{"host": "a"}}
	mergeYAML(t, target, `
db:
  port: 1
`, MergeContext{})
	assert.Equal(t, map[string]any{"db": map[string]any{"host": "a"}}, target)

	mergeYAML(t, target, `
db:
  port: 1
`, MergeContext{Overwrite: true})
	assert.Equal(t, map[string]any{"db": map[string]any{"host": "a", "port": 1}}, target)
}

func TestMerge_MappingReplacesScalar(t *testing.T) {
	target := map[string]any{"db": "sqlite"}
	mergeYAML(t, target, `
db|important:
  driver: postgres
`, MergeContext{})
	assert.Equal(t, map[string]any{"db": map[string]any{"driver": "postgres"}}, target)
}

func TestMerge_NullNeverClobbers(t *testing.T) {
	target := map[string]any{"a": 1}
	mergeYAML(t, target, `
a: ~
b: null
`, MergeContext{Overwrite: true})

	assert.Equal(t, 1, target["a"])
	v, ok := target["b"]
	assert.True(t, ok, "absent key should be created")
	assert.Nil(t, v)
}

func TestMerge_NullPlaceholderFilledByLaterDocument(t *testing.T) {
	target := map[string]any{}
	mergeYAML(t, target, `
a: ~
db: null
`, MergeContext{})
	mergeYAML(t, target, `
a: 5
db:
  host: prod-db
`, MergeContext{})

	assert.Equal(t, 5, target["a"])
	assert.Equal(t, map[string]any{"host": "prod-db"}, target["db"])

	// a later null still leaves the filled value alone
	mergeYAML(t, target, `a: ~`, MergeContext{})
	assert.Equal(t, 5, target["a"])
}

func TestMerge_SequencesReplaceWholesale(t *testing.T) {
	target := map[string]any{"list": []any{1, 2, 3}}
	mergeYAML(t, target, `list: [9]`, MergeContext{Overwrite: true})
	assert.Equal(t, []any{9}, target["list"])

	mergeYAML(t, target, `list: [7, 8]`, MergeContext{})
	assert.Equal(t, []any{9}, target["list"], "existing sequence kept without overwrite")
}

func TestMerge_SequenceItemsHonourDirectives(t *testing.T) {
	got := mergeYAML(t, map[string]any{}, `
servers:
  - name: a
    debug|disabled: true
  - name: b
    trace|development: true
`, MergeContext{})
	assert.Equal(t, map[string]any{
		"servers": []any{
			map[string]any{"name": "a"},
			map[string]any{"name": "b"},
		},
	}, got)
}

func TestMerge_UnknownDirectiveIsInert(t *testing.T) {
	got := mergeYAML(t, map[string]any{}, `k|bogus: 1`, MergeContext{})
	assert.Equal(t, map[string]any{"k": 1}, got)
}

func TestMerge_DirectiveOrder(t *testing.T) {
	obs := &recordingObserver{}
	got := mergeYAML(t, map[string]any{"k": 0}, `
k|disabled|important: 1
`, MergeContext{Observer: obs})
	assert.Equal(t, map[string]any{"k": 0}, got)
	assert.Equal(t, []string{"k|disabled"}, obs.skipped)
	assert.Empty(t, obs.forced)

	obs = &recordingObserver{}
	got = mergeYAML(t, map[string]any{"k": 0}, `
k|important|disabled: 1
`, MergeContext{Observer: obs})
	assert.Equal(t, map[string]any{"k": 0}, got)
	assert.Equal(t, []string{"k"}, obs.forced)
	assert.Equal(t, []string{"k|disabled"}, obs.skipped)
}

func TestMerge_NonMappingRootIsIgnored(t *testing.T) {
	target := map[string]any{"a": 1}
	Merge(target, Scalar("text"), MergeContext{Overwrite: true})
	Merge(target, Sequence(Scalar(1)), MergeContext{Overwrite: true})
	Merge(target, nil, MergeContext{Overwrite: true})
	Merge(target, Scalar(nil), MergeContext{Overwrite: true})
	assert.Equal(t, map[string]any{"a": 1}, target)

	assert.NotPanics(t, func() {
		Merge(nil, Mapping(KV("a", Scalar(1))), MergeContext{})
	})
}

func TestMerge_DoesNotModifyDocument(t *testing.T) {
	doc := parseYAMLDoc(t, `
a|important:
  b: [1, {c: 2}]
d|flat:
  e: 3
`)
	before := doc.Interface()

	target := map[string]any{"a": map[string]any{"b": "x"}}
	Merge(target, doc, MergeContext{Overwrite: true})

	require.Equal(t, before, doc.Interface())

	// the target must not share containers with the document
	list := target["a"].(map[string]any)["b"].([]any)
	list[1].(map[string]any)["c"] = 99
	assert.Equal(t, before, doc.Interface())
}

func TestMerge_Observer(t *testing.T) {
	obs := &recordingObserver{}
	mergeYAML(t, map[string]any{}, `
a|disabled: 1
b|development: 1
c|important:
  d|flat:
    e: 1
`, MergeContext{Observer: obs})

	assert.Equal(t, []string{"a|disabled", "b|development"}, obs.skipped)
	assert.Equal(t, []string{"c"}, obs.forced)
	assert.Equal(t, []string{"c.d"}, obs.flattened)
}

func TestMerge_MultipleDocumentsInOrder(t *testing.T) {
	target := map[string]any{}
	mergeYAML(t, target, `
app:
  name: base
  debug: false
`, MergeContext{})
	mergeYAML(t, target, `
app|important:
  debug: true
`, MergeContext{})
	mergeYAML(t, target, `
app:
  name: ignored
extra: 1
`, MergeContext{})

	assert.Equal(t, map[string]any{
		"app":   map[string]any{"name": "base", "debug": true},
		"extra": 1,
	}, target)
}
