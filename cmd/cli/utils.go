// Utility functions for the Cascade CLI
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package cli

import (
	"fmt"
	"sort"
	"strings"

	"github.com/agilira/cascade"
	"github.com/agilira/go-errors"
	"github.com/agilira/orpheus/pkg/orpheus"
)

// maxArgs bounds the positional arguments a command reads.
const maxArgs = 1024

// collectArgs returns the positional arguments starting at index from.
func collectArgs(ctx *orpheus.Context, from int) []string {
	var args []string
	for i := from; i < maxArgs; i++ {
		arg := ctx.GetArg(i)
		if arg == "" {
			break
		}
		args = append(args, arg)
	}
	return args
}

// requireFiles fails when no document was named.
func requireFiles(files []string) error {
	if len(files) == 0 {
		return errors.New(cascade.ErrCodeInvalidOptions, "at least one document is required")
	}
	return nil
}

// buildOptions combines CASCADE_* environment variables with command flags.
// Boolean flags can only switch a behaviour on; numeric flags win when they
// differ from their defaults.
func buildOptions(ctx *orpheus.Context) (cascade.Options, error) {
	opts, err := cascade.LoadOptionsFromEnv()
	if err != nil {
		return cascade.Options{}, err
	}
	opts.Audit = cascade.AuditConfig{}

	opts.DevelopmentMode = opts.DevelopmentMode || ctx.GetFlagBool("dev")
	opts.Overwrite = opts.Overwrite || ctx.GetFlagBool("overwrite")
	opts.Lenient = opts.Lenient || ctx.GetFlagBool("lenient")
	if n := ctx.GetFlagInt("inline"); n != 0 && n != cascade.DefaultInlineDepth {
		opts.InlineDepth = n
	}
	if n := ctx.GetFlagInt("indent"); n != 0 && n != cascade.DefaultIndentation {
		opts.Indentation = n
	}
	return opts, nil
}

// mergeFiles creates a session from the command flags and merges files in order.
func (m *Manager) mergeFiles(ctx *orpheus.Context, files []string) (*cascade.Session, error) {
	if err := requireFiles(files); err != nil {
		return nil, err
	}
	opts, err := buildOptions(ctx)
	if err != nil {
		return nil, err
	}
	session, err := cascade.NewSession(opts)
	if err != nil {
		return nil, err
	}
	if m.auditLogger != nil {
		if err := session.UseAudit(m.auditLogger); err != nil {
			_ = session.Close()
			return nil, err
		}
	}
	if err := session.AddFiles(files...); err != nil {
		_ = session.Close()
		return nil, err
	}
	return session, nil
}

// formatValue renders a merged value for display: strings raw, other
// scalars as YAML scalars, containers as a YAML block.
func formatValue(v any, opts cascade.Options) (string, error) {
	switch val := v.(type) {
	case string:
		return val, nil
	case map[string]any, []any:
		d := cascade.NewDumper(cascade.DumperOptions{Indentation: opts.Indentation, Lenient: opts.Lenient})
		out, err := d.Dump(val, opts.InlineDepth, 0)
		if err != nil {
			return "", err
		}
		return strings.TrimRight(out, "\n"), nil
	default:
		return cascade.DumpScalar(val)
	}
}

// directiveUse is one key carrying directives.
type directiveUse struct {
	path       string
	directives []cascade.Directive
}

// collectDirectives walks a document and returns every key carrying
// directives, in document order.
func collectDirectives(n *cascade.Node, prefix string, out []directiveUse) []directiveUse {
	if n == nil {
		return out
	}
	switch n.Kind {
	case cascade.MappingNode:
		for _, p := range n.Pairs {
			base, directives := cascade.ParseKey(p.Key)
			path := base
			if prefix != "" {
				path = prefix + "." + base
			}
			if len(directives) > 0 {
				out = append(out, directiveUse{path: path, directives: directives})
			}
			out = collectDirectives(p.Value, path, out)
		}
	case cascade.SequenceNode:
		for i, item := range n.Items {
			out = collectDirectives(item, fmt.Sprintf("%s.%d", prefix, i), out)
		}
	}
	return out
}

// describeDirectives renders directive tokens, marking unknown ones.
func describeDirectives(directives []cascade.Directive) string {
	parts := make([]string, len(directives))
	for i, d := range directives {
		if d.Kind == cascade.DirectiveUnknown {
			parts[i] = fmt.Sprintf("%s (unknown, ignored)", d.Token)
		} else {
			parts[i] = d.Token
		}
	}
	return strings.Join(parts, ", ")
}

// sortedCounts renders a count map as "a=1 b=2".
func sortedCounts(counts map[string]int64) string {
	names := make([]string, 0, len(counts))
	for name := range counts {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, len(names))
	for i, name := range names {
		parts[i] = fmt.Sprintf("%s=%d", name, counts[name])
	}
	return strings.Join(parts, " ")
}
