// merge.go: Directive-aware document merge engine for Cascade
//
// Merge walks a document and writes it into a target map. For every key it
// evaluates the key's directives left to right, then either descends into
// target[key] (nested mode) or, inside a `flat` subtree, writes scalars under
// a single '/'-joined key. The flatten prefix travels down the recursion as a
// value, so leaving a subtree restores nested mode for its siblings.
//
// Policies:
//   - a key already present is only replaced when overwrite is on
//     (ambient flag, or `important` on the key or an ancestor)
//   - null values never replace existing values; an absent key is created
//     holding nil
//   - sequences replace the target value wholesale; mapping items inside a
//     sequence are merged into fresh maps so their directives still apply
//   - in flat mode writes are unconditional and sequences are leaves
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package cascade

import (
	"slices"
	"strconv"
	"strings"
)

// FlatSeparator joins path segments of a flattened subtree.
const FlatSeparator = "/"

// MergeObserver is notified of directive decisions taken during a merge.
// Paths are dotted base-key paths from the document root.
type MergeObserver interface {
	KeySkipped(path string, directive Directive)
	KeyForced(path string)
	SubtreeFlattened(path string)
}

// MergeContext carries the per-call merge settings.
type MergeContext struct {
	// DevelopmentMode enables keys marked `development`.
	DevelopmentMode bool

	// Overwrite is the ambient overwrite flag.
	Overwrite bool

	// Observer receives directive decisions. Optional.
	Observer MergeObserver
}

// Merge merges doc into target in place.
//
// The root of doc must be a mapping; nil, null, scalar and sequence roots
// leave target untouched. Merge never modifies doc. Target must not be
// merged into concurrently.
func Merge(target map[string]any, doc *Node, ctx MergeContext) {
	if target == nil || doc == nil || doc.Kind != MappingNode {
		return
	}
	m := merger{ctx: ctx}
	m.mergeMapping(target, doc, ctx.Overwrite, nil, "")
}

type merger struct {
	ctx MergeContext
}

// mergeMapping merges the pairs of src into target. A non-nil prefix means
// flat mode: children are written into target under prefix-joined keys.
func (m *merger) mergeMapping(target map[string]any, src *Node, overwrite bool, prefix []string, path string) {
pairs:
	for _, pair := range src.Pairs {
		name, directives := ParseKey(pair.Key)
		childPath := joinPath(path, name)
		childOverwrite := overwrite
		childPrefix := prefix

		for _, d := range directives {
			switch d.Kind {
			case DirectiveDisabled:
				m.skipped(childPath, d)
				continue pairs
			case DirectiveDevelopment:
				if !m.ctx.DevelopmentMode {
					m.skipped(childPath, d)
					continue pairs
				}
			case DirectiveImportant:
				childOverwrite = true
				if m.ctx.Observer != nil {
					m.ctx.Observer.KeyForced(childPath)
				}
			case DirectiveFlat:
				// a nested flat keeps the prefix already in force
				if childPrefix == nil {
					childPrefix = []string{}
					if m.ctx.Observer != nil {
						m.ctx.Observer.SubtreeFlattened(childPath)
					}
				}
			}
		}

		if childPrefix != nil {
			segments := append(slices.Clip(childPrefix), name)
			m.mergeFlat(target, pair.Value, childOverwrite, segments, childPath)
			continue
		}

		// a key holding null counts as unset
		if existing, exists := target[name]; exists && existing != nil && !childOverwrite {
			continue
		}
		m.mergeNested(target, name, pair.Value, childOverwrite, childPath)
	}
}

// mergeNested merges src into target[key].
func (m *merger) mergeNested(target map[string]any, key string, src *Node, overwrite bool, path string) {
	switch {
	case src.IsNull():
		if _, exists := target[key]; !exists {
			target[key] = nil
		}
	case src.Kind == ScalarNode:
		target[key] = src.Value
	case src.Kind == SequenceNode:
		target[key] = m.materializeItems(src.Items, overwrite, path)
	case src.Kind == MappingNode:
		child, ok := target[key].(map[string]any)
		if !ok {
			child = make(map[string]any, len(src.Pairs))
			target[key] = child
		}
		m.mergeMapping(child, src, overwrite, nil, path)
	}
}

// mergeFlat writes src into target under the joined segments.
func (m *merger) mergeFlat(target map[string]any, src *Node, overwrite bool, segments []string, path string) {
	key := strings.Join(segments, FlatSeparator)
	switch {
	case src.IsNull():
		if _, exists := target[key]; !exists {
			target[key] = nil
		}
	case src.Kind == ScalarNode:
		target[key] = src.Value
	case src.Kind == SequenceNode:
		target[key] = m.materializeItems(src.Items, overwrite, path)
	case src.Kind == MappingNode:
		m.mergeMapping(target, src, overwrite, segments, path)
	}
}

// materializeItems builds the []any stored for a sequence.
func (m *merger) materializeItems(items []*Node, overwrite bool, path string) []any {
	out := make([]any, 0, len(items))
	for i, item := range items {
		out = append(out, m.materialize(item, overwrite, joinPath(path, strconv.Itoa(i))))
	}
	return out
}

func (m *merger) materialize(n *Node, overwrite bool, path string) any {
	switch {
	case n.IsNull():
		return nil
	case n.Kind == SequenceNode:
		return m.materializeItems(n.Items, overwrite, path)
	case n.Kind == MappingNode:
		child := make(map[string]any, len(n.Pairs))
		m.mergeMapping(child, n, overwrite, nil, path)
		return child
	default:
		return n.Value
	}
}

func (m *merger) skipped(path string, d Directive) {
	if m.ctx.Observer != nil {
		m.ctx.Observer.KeySkipped(path, d)
	}
}

func joinPath(parent, name string) string {
	if parent == "" {
		return name
	}
	return parent + "." + name
}
