// inline.go: Flow-style rendering for the Cascade dumper
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package cascade

import "strings"

// Inline renders v in flow style with default options.
func Inline(v any) (string, error) {
	return NewDumper(DumperOptions{}).Inline(v)
}

// writeInline renders n on one line: [a, b] for lists, { k: v } for mappings.
func writeInline(b *strings.Builder, n *Node) error {
	if !n.IsContainer() {
		var v any
		if n != nil {
			v = n.Value
		}
		s, err := DumpScalar(v)
		if err != nil {
			return err
		}
		b.WriteString(s)
		return nil
	}

	if n.Len() == 0 {
		if n.Kind == SequenceNode {
			b.WriteString("[]")
		} else {
			b.WriteString("{}")
		}
		return nil
	}

	if n.isList() {
		b.WriteString("[")
		for i, entry := range n.entries() {
			if i > 0 {
				b.WriteString(", ")
			}
			if err := writeInline(b, entry.Value); err != nil {
				return err
			}
		}
		b.WriteString("]")
		return nil
	}

	b.WriteString("{ ")
	for i, p := range n.Pairs {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(dumpKey(p.Key))
		b.WriteString(": ")
		if err := writeInline(b, p.Value); err != nil {
			return err
		}
	}
	b.WriteString(" }")
	return nil
}
