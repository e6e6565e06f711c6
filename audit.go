// audit.go: Audit trail of merge decisions for Cascade
//
// Every directive decision taken while merging (a skipped key, a forced
// overwrite, a flattened subtree) and every written configuration can be
// recorded, so a surprising value in the merged result can be traced back to
// the document and key that produced it.
//
// Features:
// - Buffered logging with background flushing
// - Tamper detection checksums
// - SQLite or JSONL storage selected by the output file extension
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package cascade

import (
	"crypto/sha256"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/agilira/go-errors"
	"github.com/agilira/go-timecache"
)

// Audit event names
const (
	EventDocumentMerged   = "document_merged"
	EventKeySkipped       = "key_skipped"
	EventKeyForced        = "key_forced"
	EventSubtreeFlattened = "subtree_flattened"
	EventConfigWritten    = "config_written"
	EventConfigReloaded   = "config_reloaded"
)

const auditComponent = "cascade"

// AuditLevel represents the severity of audit events
type AuditLevel int

const (
	AuditInfo AuditLevel = iota
	AuditWarn
	AuditCritical
)

func (al AuditLevel) String() string {
	switch al {
	case AuditInfo:
		return "INFO"
	case AuditWarn:
		return "WARN"
	case AuditCritical:
		return "CRITICAL"
	default:
		return "UNKNOWN"
	}
}

// parseAuditLevel parses a level name such as "info" or "CRITICAL".
func parseAuditLevel(s string) (AuditLevel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "info":
		return AuditInfo, nil
	case "warn", "warning":
		return AuditWarn, nil
	case "critical", "error":
		return AuditCritical, nil
	default:
		return AuditInfo, errors.New(ErrCodeInvalidOptions, fmt.Sprintf("invalid audit level %q", s))
	}
}

// AuditEvent represents a single auditable event
type AuditEvent struct {
	Timestamp   time.Time      `json:"timestamp"`
	Level       AuditLevel     `json:"level"`
	Event       string         `json:"event"`
	Component   string         `json:"component"`
	Source      string         `json:"source,omitempty"` // document the event came from
	Key         string         `json:"key,omitempty"`    // dotted base-key path
	ProcessID   int            `json:"process_id"`
	ProcessName string         `json:"process_name"`
	Context     map[string]any `json:"context,omitempty"`
	Checksum    string         `json:"checksum"`
}

// AuditConfig configures the audit system
type AuditConfig struct {
	Enabled bool `json:"enabled"`

	// OutputFile selects the backend: .jsonl for JSON lines, anything else
	// is a SQLite database.
	// Default: $TMPDIR/cascade/audit.db
	OutputFile string `json:"output_file"`

	MinLevel AuditLevel `json:"min_level"`

	// Default: 500
	BufferSize int `json:"buffer_size" validate:"gte=0"`

	// Zero disables the background flusher; events are then written when
	// the buffer fills and on Flush or Close.
	// Default: 5s
	FlushInterval time.Duration `json:"flush_interval" validate:"gte=0"`
}

// DefaultAuditConfig returns an enabled audit configuration writing to the
// default SQLite database.
func DefaultAuditConfig() AuditConfig {
	return AuditConfig{Enabled: true}.withDefaults()
}

func (c AuditConfig) withDefaults() AuditConfig {
	if c.OutputFile == "" {
		c.OutputFile = filepath.Join(os.TempDir(), "cascade", "audit.db")
	}
	if c.BufferSize == 0 {
		c.BufferSize = 500
	}
	if c.FlushInterval == 0 {
		c.FlushInterval = 5 * time.Second
	}
	return c
}

func (c AuditConfig) validate() error {
	if c.OutputFile != "" && strings.HasSuffix(c.OutputFile, string(os.PathSeparator)) {
		return errors.New(ErrCodeInvalidOptions, fmt.Sprintf("audit output file %q is a directory", c.OutputFile))
	}
	if c.MinLevel < AuditInfo || c.MinLevel > AuditCritical {
		return errors.New(ErrCodeInvalidOptions, fmt.Sprintf("unknown audit level %d", c.MinLevel))
	}
	return nil
}

// AuditLogger buffers audit events and writes them to a backend.
type AuditLogger struct {
	config      AuditConfig
	backend     auditBackend
	buffer      []AuditEvent
	bufferMu    sync.Mutex
	flushTicker *time.Ticker
	stopCh      chan struct{}
	closeOnce   sync.Once
	processID   int
	processName string
}

// NewAuditLogger creates an audit logger and starts its background flusher.
func NewAuditLogger(config AuditConfig) (*AuditLogger, error) {
	config = config.withDefaults()
	backend, err := createAuditBackend(config)
	if err != nil {
		return nil, errors.Wrap(err, ErrCodeAuditError, "failed to initialize audit backend")
	}

	logger := &AuditLogger{
		config:      config,
		backend:     backend,
		buffer:      make([]AuditEvent, 0, config.BufferSize),
		stopCh:      make(chan struct{}),
		processID:   os.Getpid(),
		processName: getProcessName(),
	}

	if config.FlushInterval > 0 {
		logger.flushTicker = time.NewTicker(config.FlushInterval)
		go logger.flushLoop()
	}

	return logger, nil
}

// Log records an audit event. It is a no-op on a nil logger.
func (al *AuditLogger) Log(level AuditLevel, event, source, key string, context map[string]any) {
	if al == nil || al.backend == nil || !al.config.Enabled || level < al.config.MinLevel {
		return
	}

	auditEvent := AuditEvent{
		Timestamp:   timecache.CachedTime(),
		Level:       level,
		Event:       event,
		Component:   auditComponent,
		Source:      source,
		Key:         key,
		ProcessID:   al.processID,
		ProcessName: al.processName,
		Context:     context,
	}
	auditEvent.Checksum = generateChecksum(auditEvent)

	al.bufferMu.Lock()
	al.buffer = append(al.buffer, auditEvent)
	if len(al.buffer) >= al.config.BufferSize {
		_ = al.flushBufferUnsafe() // retried on the next flush
	}
	al.bufferMu.Unlock()
}

// LogDocumentMerged records a completed merge of one document.
func (al *AuditLogger) LogDocumentMerged(source string, keys int) {
	al.Log(AuditInfo, EventDocumentMerged, source, "", map[string]any{"keys": keys})
}

// LogConfigWritten records a configuration written to disk.
func (al *AuditLogger) LogConfigWritten(path string, keys int) {
	al.Log(AuditCritical, EventConfigWritten, path, "", map[string]any{"keys": keys})
}

// LogConfigReloaded records a configuration rebuilt after its files changed.
func (al *AuditLogger) LogConfigReloaded(changed []string, keys int) {
	al.Log(AuditWarn, EventConfigReloaded, "", "", map[string]any{"changed": changed, "keys": keys})
}

// Observer returns a MergeObserver recording decisions for the given source.
func (al *AuditLogger) Observer(source string) MergeObserver {
	return &auditObserver{logger: al, source: source}
}

// Query flushes pending events and searches the backend.
func (al *AuditLogger) Query(q AuditQuery) ([]AuditEvent, error) {
	if err := al.Flush(); err != nil {
		return nil, err
	}
	return al.backend.Query(q)
}

// Stats returns backend statistics.
func (al *AuditLogger) Stats() (*AuditDatabaseStats, error) {
	if err := al.Flush(); err != nil {
		return nil, err
	}
	return al.backend.GetStats()
}

// Maintenance applies the backend's retention policy.
func (al *AuditLogger) Maintenance() error {
	if err := al.Flush(); err != nil {
		return err
	}
	return al.backend.Maintenance()
}

// Flush immediately writes all buffered events
func (al *AuditLogger) Flush() error {
	if al == nil {
		return nil
	}
	al.bufferMu.Lock()
	defer al.bufferMu.Unlock()
	return al.flushBufferUnsafe()
}

// Close stops the flusher, writes pending events and releases the backend.
// It is safe to call more than once.
func (al *AuditLogger) Close() error {
	if al == nil {
		return nil
	}
	var err error
	al.closeOnce.Do(func() {
		close(al.stopCh)
		if al.flushTicker != nil {
			al.flushTicker.Stop()
		}
		if flushErr := al.Flush(); flushErr != nil {
			err = flushErr
		}
		if closeErr := al.backend.Close(); closeErr != nil && err == nil {
			err = errors.Wrap(closeErr, ErrCodeAuditError, "failed to close audit backend")
		}
	})
	return err
}

func (al *AuditLogger) flushLoop() {
	for {
		select {
		case <-al.flushTicker.C:
			_ = al.Flush() // retried on the next tick
		case <-al.stopCh:
			return
		}
	}
}

// flushBufferUnsafe writes the buffer to the backend (caller must hold bufferMu).
func (al *AuditLogger) flushBufferUnsafe() error {
	if len(al.buffer) == 0 {
		return nil
	}
	if err := al.backend.Write(al.buffer); err != nil {
		return errors.Wrap(err, ErrCodeAuditError, "failed to write audit events to backend")
	}
	al.buffer = al.buffer[:0]
	return nil
}

// generateChecksum creates a tamper-detection checksum using SHA-256
func generateChecksum(event AuditEvent) string {
	data := fmt.Sprintf("%s:%s:%s:%s:%s:%v",
		event.Timestamp.Format(time.RFC3339Nano),
		event.Event, event.Component, event.Source, event.Key, event.Context)
	hash := sha256.Sum256([]byte(data))
	return fmt.Sprintf("%x", hash)
}

// VerifyChecksum reports whether the event matches its checksum.
func (e AuditEvent) VerifyChecksum() bool {
	return e.Checksum == generateChecksum(e)
}

func getProcessName() string {
	if len(os.Args) > 0 {
		return filepath.Base(os.Args[0])
	}
	return auditComponent
}

// auditObserver adapts an AuditLogger to MergeObserver.
type auditObserver struct {
	logger *AuditLogger
	source string
}

func (o *auditObserver) KeySkipped(path string, directive Directive) {
	o.logger.Log(AuditInfo, EventKeySkipped, o.source, path, map[string]any{"directive": directive.Token})
}

func (o *auditObserver) KeyForced(path string) {
	o.logger.Log(AuditWarn, EventKeyForced, o.source, path, nil)
}

func (o *auditObserver) SubtreeFlattened(path string) {
	o.logger.Log(AuditInfo, EventSubtreeFlattened, o.source, path, nil)
}
