// Command handlers for the Cascade CLI
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package cli

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/agilira/cascade"
	clutil "github.com/agilira/cascade/internal/cli"
	"github.com/agilira/go-errors"
	"github.com/agilira/orpheus/pkg/orpheus"
)

// handleMerge merges documents in order and prints or writes the result.
func (m *Manager) handleMerge(ctx *orpheus.Context) error {
	files := collectArgs(ctx, 0)
	output := ctx.GetFlagString("output")

	if output != "" {
		if err := clutil.CheckFileWriteable(output); err != nil {
			return errors.Wrap(err, cascade.ErrCodeIOError, "cannot write output file")
		}
	}

	session, err := m.mergeFiles(ctx, files)
	if err != nil {
		return err
	}
	defer func() { _ = session.Close() }()

	if output != "" {
		if err := session.WriteFile(output); err != nil {
			return err
		}
		fmt.Fprintf(m.out, "Merged %d documents into %s\n", len(files), output)
		return nil
	}

	out, err := session.Dump()
	if err != nil {
		return err
	}
	fmt.Fprint(m.out, out)
	return nil
}

// handleDump re-emits a single document without merging it, so the
// directives stay in its keys.
func (m *Manager) handleDump(ctx *orpheus.Context) error {
	filePath := ctx.GetArg(0)
	if err := requireFiles(collectArgs(ctx, 0)); err != nil {
		return err
	}

	opts, err := buildOptions(ctx)
	if err != nil {
		return err
	}
	doc, err := cascade.LoadFile(filePath)
	if err != nil {
		return err
	}

	dumper := cascade.NewDumper(cascade.DumperOptions{Indentation: opts.Indentation, Lenient: opts.Lenient})
	out, err := dumper.Dump(doc, opts.InlineDepth, 0)
	if err != nil {
		return err
	}
	fmt.Fprint(m.out, out)
	return nil
}

// handleGet prints the merged value at a dotted key.
func (m *Manager) handleGet(ctx *orpheus.Context) error {
	key := ctx.GetArg(0)
	if key == "" {
		return errors.New(cascade.ErrCodeInvalidOptions, "a key is required")
	}

	session, err := m.mergeFiles(ctx, collectArgs(ctx, 1))
	if err != nil {
		return err
	}
	defer func() { _ = session.Close() }()

	value, err := session.MustGet(key)
	if err != nil {
		return err
	}
	text, err := formatValue(value, session.Options())
	if err != nil {
		return err
	}
	fmt.Fprintln(m.out, text)
	return nil
}

// handleKeys lists the leaf keys of the merged configuration.
func (m *Manager) handleKeys(ctx *orpheus.Context) error {
	session, err := m.mergeFiles(ctx, collectArgs(ctx, 0))
	if err != nil {
		return err
	}
	defer func() { _ = session.Close() }()

	prefix := ctx.GetFlagString("prefix")
	keys := session.Keys(prefix)
	if len(keys) == 0 {
		fmt.Fprintln(m.out, "No keys found")
		return nil
	}
	for _, key := range keys {
		fmt.Fprintln(m.out, key)
	}
	return nil
}

// handleCheck parses every document, lists the keys carrying directives
// and prints the fingerprint of the merged result.
func (m *Manager) handleCheck(ctx *orpheus.Context) error {
	files := collectArgs(ctx, 0)
	if err := requireFiles(files); err != nil {
		return err
	}

	for _, file := range files {
		doc, err := cascade.LoadFile(file)
		if err != nil {
			return err
		}
		if !doc.IsNull() && doc.Kind != cascade.MappingNode {
			return errors.New(cascade.ErrCodeInvalidDocument,
				fmt.Sprintf("%s: document root must be a mapping, got %s", file, doc.Kind))
		}

		uses := collectDirectives(doc, "", nil)
		fmt.Fprintf(m.out, "%s: %d top-level keys, %d with directives\n", file, doc.Len(), len(uses))
		for _, use := range uses {
			fmt.Fprintf(m.out, "  %s: %s\n", use.path, describeDirectives(use.directives))
		}
	}

	session, err := m.mergeFiles(ctx, files)
	if err != nil {
		return err
	}
	defer func() { _ = session.Close() }()

	fmt.Fprintf(m.out, "fingerprint: %016x\n", session.Fingerprint())
	return nil
}

// handleAuditQuery prints the events of an audit trail matching the flags.
func (m *Manager) handleAuditQuery(ctx *orpheus.Context) error {
	path := ctx.GetArg(0)
	if path == "" {
		return errors.New(cascade.ErrCodeInvalidOptions, "an audit database path is required")
	}

	query := cascade.AuditQuery{
		Event:  ctx.GetFlagString("event"),
		Source: ctx.GetFlagString("source"),
		Key:    ctx.GetFlagString("key"),
		Limit:  ctx.GetFlagInt("limit"),
	}
	if since := ctx.GetFlagString("since"); since != "" {
		d, err := clutil.ParseExtendedDuration(since)
		if err != nil {
			return errors.Wrap(err, cascade.ErrCodeInvalidOptions, fmt.Sprintf("invalid --since value %q", since))
		}
		query.Since = time.Now().Add(-d)
	}

	events, err := cascade.QueryAuditLog(path, query)
	if err != nil {
		return err
	}
	if len(events) == 0 {
		fmt.Fprintln(m.out, "No audit events found")
		return nil
	}

	for _, e := range events {
		line := fmt.Sprintf("%s %-8s %-18s %s", e.Timestamp.Format(time.RFC3339), e.Level, e.Event, e.Source)
		if e.Key != "" {
			line += " " + e.Key
		}
		if len(e.Context) > 0 {
			if ctxJSON, err := json.Marshal(e.Context); err == nil {
				line += " " + string(ctxJSON)
			}
		}
		if !e.VerifyChecksum() {
			line += " [checksum mismatch]"
		}
		fmt.Fprintln(m.out, line)
	}
	return nil
}

// handleAuditStats prints a summary of an audit trail.
func (m *Manager) handleAuditStats(ctx *orpheus.Context) error {
	path := ctx.GetArg(0)
	if path == "" {
		return errors.New(cascade.ErrCodeInvalidOptions, "an audit database path is required")
	}

	stats, err := cascade.AuditLogStats(path)
	if err != nil {
		return err
	}

	fmt.Fprintf(m.out, "Total events: %d\n", stats.TotalEvents)
	fmt.Fprintf(m.out, "By level: %s\n", sortedCounts(stats.EventsByLevel))
	fmt.Fprintf(m.out, "By event: %s\n", sortedCounts(stats.EventsByName))
	if stats.OldestEvent != nil && stats.NewestEvent != nil {
		fmt.Fprintf(m.out, "Range: %s .. %s\n",
			stats.OldestEvent.Format(time.RFC3339), stats.NewestEvent.Format(time.RFC3339))
	}
	if stats.SchemaVersion > 0 {
		fmt.Fprintf(m.out, "Schema version: %d\n", stats.SchemaVersion)
	}
	fmt.Fprintf(m.out, "Size: %d bytes\n", stats.DatabaseSize)
	return nil
}
