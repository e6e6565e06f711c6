// dumper.go: Block-style YAML dumper for Cascade
//
// The dumper renders containers as indented blocks down to a chosen depth and
// switches to flow style below it. Mappings whose keys are exactly 0..n-1 in
// order are rendered as lists.
//
// Example Usage:
//   d := cascade.NewDumper(cascade.DumperOptions{Indentation: 2})
//   out, err := d.Dump(session.Config(), 4, 0)
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package cascade

import "strings"

// DumperOptions configures a Dumper.
type DumperOptions struct {
	// Indentation is the number of spaces added per block level.
	// Default: 4
	Indentation int

	// Lenient emits null for unserialisable values instead of failing.
	Lenient bool
}

// Dumper converts configuration values to YAML text.
// A Dumper holds no mutable state and is safe for concurrent use.
type Dumper struct {
	opts DumperOptions
}

// NewDumper creates a dumper, applying defaults to unset options.
func NewDumper(opts DumperOptions) *Dumper {
	if opts.Indentation <= 0 {
		opts.Indentation = DefaultIndentation
	}
	return &Dumper{opts: opts}
}

// Indentation returns the number of spaces per block level.
func (d *Dumper) Indentation() int {
	return d.opts.Indentation
}

// Dump renders v as YAML.
//
// Containers nested deeper than inline levels are rendered in flow style.
// indent is the number of spaces prefixed to every block line; pass 0 for a
// top-level document.
func (d *Dumper) Dump(v any, inline, indent int) (string, error) {
	n, err := toNode(v, d.opts.Lenient)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	if err := d.dumpNode(&b, n, inline, indent); err != nil {
		return "", err
	}
	return b.String(), nil
}

// Inline renders v on a single line in flow style.
func (d *Dumper) Inline(v any) (string, error) {
	n, err := toNode(v, d.opts.Lenient)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	if err := writeInline(&b, n); err != nil {
		return "", err
	}
	return b.String(), nil
}

func (d *Dumper) dumpNode(b *strings.Builder, n *Node, inline, indent int) error {
	prefix := strings.Repeat(" ", indent)
	if inline <= 0 || !n.IsContainer() || n.Len() == 0 {
		b.WriteString(prefix)
		return writeInline(b, n)
	}

	list := n.isList()
	for _, entry := range n.entries() {
		child := entry.Value
		willBeInlined := inline-1 <= 0 || !child.IsContainer() || child.Len() == 0

		b.WriteString(prefix)
		if list {
			b.WriteString("-")
		} else {
			b.WriteString(dumpKey(entry.Key))
			b.WriteString(":")
		}

		childIndent := 0
		if willBeInlined {
			b.WriteString(" ")
		} else {
			b.WriteString("\n")
			childIndent = indent + d.opts.Indentation
		}
		if err := d.dumpNode(b, child, inline-1, childIndent); err != nil {
			return err
		}
		if willBeInlined {
			b.WriteString("\n")
		}
	}
	return nil
}

// Dump renders v with default options.
func Dump(v any, inline int) (string, error) {
	return NewDumper(DumperOptions{}).Dump(v, inline, 0)
}

// DumpString renders v as a top-level document using opts.
func DumpString(v any, inline int, opts DumperOptions) (string, error) {
	return NewDumper(opts).Dump(v, inline, 0)
}
