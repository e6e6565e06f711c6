// Package cli provides the command-line interface for Cascade.
//
// The CLI is built on the Orpheus framework and exposes the library
// operations as git-style commands: merging layered documents, dumping a
// single document through the Cascade dumper, reading merged keys, watching
// documents for changes and inspecting the audit trail.
//
// Architecture:
// - Manager: command registration and routing
// - Handlers: one handler per command, writing to the manager's output
// - Utils: argument collection, option building and duration parsing
// - Watch: polling reload until interrupted
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package cli

import (
	"io"
	"os"

	"github.com/agilira/cascade"
	"github.com/agilira/orpheus/pkg/orpheus"
)

// Version is reported by --version.
const Version = "1.0.0"

// Manager routes Cascade CLI commands.
type Manager struct {
	app         *orpheus.App
	out         io.Writer
	auditLogger *cascade.AuditLogger // optional

	// stop ends the watch command; nil waits for SIGINT or SIGTERM
	stop <-chan struct{}
}

// NewManager creates a CLI manager writing to standard output.
func NewManager() *Manager {
	app := orpheus.New("cascade").
		SetDescription("Layered YAML configuration with key directives").
		SetVersion(Version)

	manager := &Manager{
		app: app,
		out: os.Stdout,
	}

	manager.setupMergeCommands()
	manager.setupInspectCommands()
	manager.setupWatchCommands()
	manager.setupAuditCommands()

	return manager
}

// WithOutput redirects command output to w.
func (m *Manager) WithOutput(w io.Writer) *Manager {
	m.out = w
	return m
}

// WithAudit records merge decisions of every command in auditLogger.
func (m *Manager) WithAudit(auditLogger *cascade.AuditLogger) *Manager {
	m.auditLogger = auditLogger
	return m
}

// Run executes the command named by args.
func (m *Manager) Run(args []string) error {
	return m.app.Run(args)
}

// addMergeFlags registers the flags read by buildOptions.
func addMergeFlags(cmd *orpheus.Command) {
	cmd.AddBoolFlag("dev", "d", false, "Enable keys marked |development")
	cmd.AddBoolFlag("overwrite", "w", false, "Let later documents overwrite existing keys")
	cmd.AddIntFlag("inline", "i", cascade.DefaultInlineDepth, "Nesting level at which output switches to flow style")
	cmd.AddIntFlag("indent", "", cascade.DefaultIndentation, "Spaces per block level")
	cmd.AddBoolFlag("lenient", "", false, "Dump unserialisable values as null")
}

// setupMergeCommands registers the commands producing YAML output.
func (m *Manager) setupMergeCommands() {
	// merge <files...> [--dev] [--overwrite] [--inline=4] [--indent=4] [--output=]
	mergeCmd := orpheus.NewCommand("merge", "Merge documents in order and dump the result")
	mergeCmd.SetHandler(m.handleMerge)
	addMergeFlags(mergeCmd)
	mergeCmd.AddFlag("output", "o", "", "Write the result to this file instead of standard output")
	m.app.AddCommand(mergeCmd)

	// dump <file> [--inline=4] [--indent=4]
	dumpCmd := orpheus.NewCommand("dump", "Re-emit one document through the Cascade dumper")
	dumpCmd.SetHandler(m.handleDump)
	addMergeFlags(dumpCmd)
	m.app.AddCommand(dumpCmd)
}

// setupInspectCommands registers read-only commands over merged documents.
func (m *Manager) setupInspectCommands() {
	// get <key> <files...> [--dev] [--overwrite]
	getCmd := orpheus.NewCommand("get", "Print one key of the merged configuration")
	getCmd.SetHandler(m.handleGet)
	addMergeFlags(getCmd)
	m.app.AddCommand(getCmd)

	// keys <files...> [--prefix=] [--dev] [--overwrite]
	keysCmd := orpheus.NewCommand("keys", "List the leaf keys of the merged configuration")
	keysCmd.SetHandler(m.handleKeys)
	addMergeFlags(keysCmd)
	keysCmd.AddFlag("prefix", "p", "", "Key prefix filter")
	m.app.AddCommand(keysCmd)

	// check <files...> [--dev]
	checkCmd := orpheus.NewCommand("check", "Parse documents and report their directives")
	checkCmd.SetHandler(m.handleCheck)
	addMergeFlags(checkCmd)
	m.app.AddCommand(checkCmd)
}

// setupWatchCommands registers the long-running reload command.
func (m *Manager) setupWatchCommands() {
	// watch <files...> [--interval=5s] [--output=] [--dev] [--overwrite]
	watchCmd := orpheus.NewCommand("watch", "Re-merge documents whenever one of them changes")
	watchCmd.SetHandler(m.handleWatch)
	addMergeFlags(watchCmd)
	watchCmd.AddFlag("interval", "n", "5s", "Polling interval")
	watchCmd.AddFlag("output", "o", "", "Rewrite this file on every change instead of printing")
	m.app.AddCommand(watchCmd)
}

// setupAuditCommands registers the audit trail commands.
func (m *Manager) setupAuditCommands() {
	auditCmd := orpheus.NewCommand("audit", "Audit trail inspection")

	// audit query <db> [--event=] [--source=] [--key=] [--since=7d] [--limit=100]
	queryCmd := auditCmd.Subcommand("query", "Query recorded merge decisions", m.handleAuditQuery)
	queryCmd.AddFlag("event", "e", "", "Event name filter")
	queryCmd.AddFlag("source", "s", "", "Source document filter")
	queryCmd.AddFlag("key", "k", "", "Key path prefix filter")
	queryCmd.AddFlag("since", "", "", "Time range (e.g., 24h, 7d, 2w)")
	queryCmd.AddIntFlag("limit", "l", 100, "Maximum results")

	// audit stats <db>
	auditCmd.Subcommand("stats", "Show audit trail statistics", m.handleAuditStats)

	m.app.AddCommand(auditCmd)
}
