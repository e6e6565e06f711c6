// audit_backend.go: Storage backends for the Cascade audit trail
//
// Two backends share one interface: SQLite (queryable, the default) and
// JSONL (append-only, grep-able). The backend is chosen from the output file
// extension.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package cascade

import (
	"bufio"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/agilira/go-errors"
	_ "github.com/mattn/go-sqlite3" // SQLite driver registration
)

// auditBackend abstracts audit storage.
type auditBackend interface {
	// Write persists a batch of events. Implementations must be safe for
	// concurrent use.
	Write(events []AuditEvent) error

	// Query returns stored events matching q, oldest first.
	Query(q AuditQuery) ([]AuditEvent, error)

	// Flush commits pending writes to storage.
	Flush() error

	// Close releases all resources. The backend must not be used afterwards.
	Close() error

	// Maintenance applies retention and optimisation.
	Maintenance() error

	// GetStats returns statistics about stored events.
	GetStats() (*AuditDatabaseStats, error)
}

// AuditQuery filters stored audit events. Zero fields match everything.
type AuditQuery struct {
	Event  string
	Source string
	Key    string    // prefix match on the dotted key path
	Since  time.Time // inclusive
	Limit  int       // 0 means no limit
}

func (q AuditQuery) matches(e AuditEvent) bool {
	if q.Event != "" && e.Event != q.Event {
		return false
	}
	if q.Source != "" && e.Source != q.Source {
		return false
	}
	if q.Key != "" && !strings.HasPrefix(e.Key, q.Key) {
		return false
	}
	if !q.Since.IsZero() && e.Timestamp.Before(q.Since) {
		return false
	}
	return true
}

// AuditDatabaseStats describes the stored audit trail.
type AuditDatabaseStats struct {
	TotalEvents   int64            `json:"total_events"`
	EventsByLevel map[string]int64 `json:"events_by_level"`
	EventsByName  map[string]int64 `json:"events_by_name"`
	OldestEvent   *time.Time       `json:"oldest_event"`
	NewestEvent   *time.Time       `json:"newest_event"`
	DatabaseSize  int64            `json:"database_size_bytes"`
	SchemaVersion int              `json:"schema_version"`
}

func newAuditStats() *AuditDatabaseStats {
	return &AuditDatabaseStats{
		EventsByLevel: make(map[string]int64),
		EventsByName:  make(map[string]int64),
	}
}

// createAuditBackend picks the backend from the output file extension.
func createAuditBackend(config AuditConfig) (auditBackend, error) {
	if config.OutputFile == "" {
		return nil, errors.New(ErrCodeAuditError, "audit output file is required")
	}
	if err := os.MkdirAll(filepath.Dir(config.OutputFile), 0750); err != nil {
		return nil, errors.Wrap(err, ErrCodeAuditError, "failed to create audit directory")
	}
	if strings.EqualFold(filepath.Ext(config.OutputFile), ".jsonl") {
		return newJSONLBackend(config.OutputFile)
	}
	return newSQLiteBackend(config.OutputFile)
}

// QueryAuditLog opens the audit trail at path, runs q and closes it.
func QueryAuditLog(path string, q AuditQuery) ([]AuditEvent, error) {
	backend, err := openExistingAuditBackend(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = backend.Close() }()
	return backend.Query(q)
}

// AuditLogStats opens the audit trail at path and returns its statistics.
func AuditLogStats(path string) (*AuditDatabaseStats, error) {
	backend, err := openExistingAuditBackend(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = backend.Close() }()
	return backend.GetStats()
}

func openExistingAuditBackend(path string) (auditBackend, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrap(err, ErrCodeFileNotFound, fmt.Sprintf("audit log not found: %s", path))
		}
		return nil, errors.Wrap(err, ErrCodeIOError, fmt.Sprintf("cannot access audit log %s", path))
	}
	return createAuditBackend(AuditConfig{OutputFile: path})
}

// sqliteAuditBackend stores events in a SQLite database.
type sqliteAuditBackend struct {
	db         *sql.DB
	dbPath     string
	insertStmt *sql.Stmt
	mu         sync.RWMutex
	closed     bool
}

func newSQLiteBackend(dbPath string) (*sqliteAuditBackend, error) {
	db, err := openSQLiteDatabase(dbPath)
	if err != nil {
		return nil, err
	}
	backend := &sqliteAuditBackend{db: db, dbPath: dbPath}

	if err := backend.ensureSchemaVersion(); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, ErrCodeAuditError, "failed to initialize audit schema")
	}
	if err := backend.prepareStatements(); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, ErrCodeAuditError, "failed to prepare audit statements")
	}
	// retention is best effort
	_ = backend.performMaintenance()

	return backend, nil
}

// openSQLiteDatabase opens the database in WAL mode so readers such as the
// CLI never block a writing session.
func openSQLiteDatabase(dbPath string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL&_cache_size=1000", dbPath))
	if err != nil {
		return nil, errors.Wrap(err, ErrCodeAuditError, "failed to open audit database")
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, ErrCodeAuditError, "failed to ping audit database")
	}
	return db, nil
}

const auditSchemaVersion = 2

// ensureSchemaVersion creates or migrates the schema.
//   - v1: audit_events table
//   - v2: query indexes
func (s *sqliteAuditBackend) ensureSchemaVersion() error {
	if _, err := s.db.Exec(`
	CREATE TABLE IF NOT EXISTS schema_info (
		version INTEGER PRIMARY KEY,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);`); err != nil {
		return fmt.Errorf("failed to create schema_info table: %w", err)
	}

	var version int
	err := s.db.QueryRow("SELECT version FROM schema_info ORDER BY version DESC LIMIT 1").Scan(&version)
	if err != nil && err != sql.ErrNoRows {
		return fmt.Errorf("failed to check schema version: %w", err)
	}
	if version >= auditSchemaVersion {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin migration transaction: %w", err)
	}
	for v := version; v < auditSchemaVersion; v++ {
		var migrateErr error
		switch v {
		case 0:
			migrateErr = migrateToV1(tx)
		case 1:
			migrateErr = migrateToV2(tx)
		}
		if migrateErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration to v%d failed: %w", v+1, migrateErr)
		}
	}
	if _, err := tx.Exec("INSERT OR REPLACE INTO schema_info (version, updated_at) VALUES (?, CURRENT_TIMESTAMP)", auditSchemaVersion); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("failed to update schema version: %w", err)
	}
	return tx.Commit()
}

func migrateToV1(tx *sql.Tx) error {
	_, err := tx.Exec(`
	CREATE TABLE IF NOT EXISTS audit_events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		timestamp TEXT NOT NULL,
		level TEXT NOT NULL,
		event TEXT NOT NULL,
		component TEXT NOT NULL,
		source TEXT,
		key_path TEXT,
		process_id INTEGER NOT NULL,
		process_name TEXT NOT NULL,
		context TEXT, -- JSON object
		checksum TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);`)
	return err
}

func migrateToV2(tx *sql.Tx) error {
	indexes := []string{
		"CREATE INDEX IF NOT EXISTS idx_audit_event_time ON audit_events(event, timestamp)",
		"CREATE INDEX IF NOT EXISTS idx_audit_source ON audit_events(source)",
		"CREATE INDEX IF NOT EXISTS idx_audit_created_at ON audit_events(created_at)",
	}
	for _, stmt := range indexes {
		if _, err := tx.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// performMaintenance drops events older than the retention window.
func (s *sqliteAuditBackend) performMaintenance() error {
	const retentionDays = 90

	if _, err := s.db.Exec(`DELETE FROM audit_events WHERE created_at < datetime('now', '-' || ? || ' days')`, retentionDays); err != nil {
		return fmt.Errorf("failed to cleanup old audit events: %w", err)
	}
	_, _ = s.db.Exec("PRAGMA optimize")
	return nil
}

func (s *sqliteAuditBackend) prepareStatements() error {
	stmt, err := s.db.Prepare(`
	INSERT INTO audit_events (
		timestamp, level, event, component, source, key_path,
		process_id, process_name, context, checksum
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	s.insertStmt = stmt
	return nil
}

// Write inserts the batch in one transaction.
func (s *sqliteAuditBackend) Write(events []AuditEvent) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return errors.New(ErrCodeAuditError, "cannot write to closed SQLite audit backend")
	}
	if len(events) == 0 {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin audit transaction: %w", err)
	}
	txStmt := tx.Stmt(s.insertStmt)
	defer func() { _ = txStmt.Close() }()

	for _, event := range events {
		if err := insertEvent(txStmt, event); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to insert audit event: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit audit transaction: %w", err)
	}
	return nil
}

func insertEvent(stmt *sql.Stmt, event AuditEvent) error {
	contextJSON := ""
	if event.Context != nil {
		data, err := json.Marshal(event.Context)
		if err != nil {
			return fmt.Errorf("failed to serialize context: %w", err)
		}
		contextJSON = string(data)
	}
	_, err := stmt.Exec(
		event.Timestamp.Format(time.RFC3339Nano),
		event.Level.String(),
		event.Event,
		event.Component,
		event.Source,
		event.Key,
		event.ProcessID,
		event.ProcessName,
		contextJSON,
		event.Checksum,
	)
	return err
}

// Query selects matching events in insertion order.
func (s *sqliteAuditBackend) Query(q AuditQuery) ([]AuditEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, errors.New(ErrCodeAuditError, "cannot query closed SQLite audit backend")
	}

	var (
		where []string
		args  []any
	)
	if q.Event != "" {
		where = append(where, "event = ?")
		args = append(args, q.Event)
	}
	if q.Source != "" {
		where = append(where, "source = ?")
		args = append(args, q.Source)
	}
	if q.Key != "" {
		where = append(where, "substr(key_path, 1, ?) = ?")
		args = append(args, len(q.Key), q.Key)
	}
	query := `SELECT timestamp, level, event, component, source, key_path,
		process_id, process_name, context, checksum FROM audit_events`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY id"

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, errors.Wrap(err, ErrCodeAuditError, "failed to query audit events")
	}
	defer func() { _ = rows.Close() }()

	var events []AuditEvent
	for rows.Next() {
		var (
			e                        AuditEvent
			ts, level                string
			source, key, ctx, chksum sql.NullString
		)
		if err := rows.Scan(&ts, &level, &e.Event, &e.Component, &source, &key,
			&e.ProcessID, &e.ProcessName, &ctx, &chksum); err != nil {
			return nil, errors.Wrap(err, ErrCodeAuditError, "failed to scan audit event")
		}
		e.Timestamp, _ = time.Parse(time.RFC3339Nano, ts)
		e.Level, _ = parseAuditLevel(level)
		e.Source = source.String
		e.Key = key.String
		e.Checksum = chksum.String
		if ctx.String != "" {
			if err := json.Unmarshal([]byte(ctx.String), &e.Context); err != nil {
				return nil, errors.Wrap(err, ErrCodeAuditError, "failed to decode audit context")
			}
		}
		// Since compares parsed timestamps so zones are honoured
		if !q.matches(e) {
			continue
		}
		events = append(events, e)
		if q.Limit > 0 && len(events) >= q.Limit {
			break
		}
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, ErrCodeAuditError, "failed to read audit events")
	}
	return events, nil
}

// Flush checkpoints the WAL.
func (s *sqliteAuditBackend) Flush() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil
	}
	if _, err := s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		return fmt.Errorf("failed to flush SQLite audit backend: %w", err)
	}
	return nil
}

func (s *sqliteAuditBackend) Maintenance() error {
	return s.performMaintenance()
}

func (s *sqliteAuditBackend) GetStats() (*AuditDatabaseStats, error) {
	stats := newAuditStats()
	if err := s.db.QueryRow("SELECT COUNT(*) FROM audit_events").Scan(&stats.TotalEvents); err != nil {
		return nil, errors.Wrap(err, ErrCodeAuditError, "failed to count audit events")
	}
	if err := s.groupCount("level", stats.EventsByLevel); err != nil {
		return nil, err
	}
	if err := s.groupCount("event", stats.EventsByName); err != nil {
		return nil, err
	}

	var oldest, newest sql.NullString
	if err := s.db.QueryRow("SELECT MIN(timestamp), MAX(timestamp) FROM audit_events").Scan(&oldest, &newest); err != nil && err != sql.ErrNoRows {
		return nil, errors.Wrap(err, ErrCodeAuditError, "failed to read audit time range")
	}
	if t, err := time.Parse(time.RFC3339Nano, oldest.String); oldest.Valid && err == nil {
		stats.OldestEvent = &t
	}
	if t, err := time.Parse(time.RFC3339Nano, newest.String); newest.Valid && err == nil {
		stats.NewestEvent = &t
	}

	if err := s.db.QueryRow("SELECT version FROM schema_info ORDER BY version DESC LIMIT 1").Scan(&stats.SchemaVersion); err != nil && err != sql.ErrNoRows {
		return nil, errors.Wrap(err, ErrCodeAuditError, "failed to read schema version")
	}
	if info, err := os.Stat(s.dbPath); err == nil {
		stats.DatabaseSize = info.Size()
	}
	return stats, nil
}

// groupCount fills counts with COUNT(*) grouped by column. column is
// always a constant from this file.
func (s *sqliteAuditBackend) groupCount(column string, counts map[string]int64) error {
	rows, err := s.db.Query("SELECT " + column + ", COUNT(*) FROM audit_events GROUP BY " + column) // #nosec G202
	if err != nil {
		return errors.Wrap(err, ErrCodeAuditError, "failed to group audit events")
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var name string
		var count int64
		if err := rows.Scan(&name, &count); err != nil {
			return errors.Wrap(err, ErrCodeAuditError, "failed to scan audit stats")
		}
		counts[name] = count
	}
	return rows.Err()
}

// Close flushes the WAL and closes the database. Safe to call twice.
func (s *sqliteAuditBackend) Close() error {
	if err := s.Flush(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	var errs []string
	if s.insertStmt != nil {
		if err := s.insertStmt.Close(); err != nil {
			errs = append(errs, err.Error())
		}
	}
	if err := s.db.Close(); err != nil {
		errs = append(errs, err.Error())
	}
	if len(errs) > 0 {
		return errors.New(ErrCodeAuditError, "errors closing SQLite audit backend: "+strings.Join(errs, "; "))
	}
	return nil
}

// jsonlAuditBackend appends one JSON object per line.
type jsonlAuditBackend struct {
	file   *os.File
	path   string
	mu     sync.Mutex
	closed bool
}

func newJSONLBackend(path string) (*jsonlAuditBackend, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600) // #nosec G304
	if err != nil {
		return nil, errors.Wrap(err, ErrCodeAuditError, "failed to open JSONL audit log")
	}
	return &jsonlAuditBackend{file: file, path: path}, nil
}

func (j *jsonlAuditBackend) Write(events []AuditEvent) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return errors.New(ErrCodeAuditError, "cannot write to closed JSONL audit backend")
	}

	w := bufio.NewWriter(j.file)
	for _, event := range events {
		data, err := json.Marshal(event)
		if err != nil {
			return fmt.Errorf("failed to serialize audit event: %w", err)
		}
		_, _ = w.Write(data)
		_ = w.WriteByte('\n')
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("failed to write audit events to JSONL: %w", err)
	}
	return nil
}

// Query scans the whole file; JSONL trails are meant to stay small.
func (j *jsonlAuditBackend) Query(q AuditQuery) ([]AuditEvent, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	f, err := os.Open(j.path)
	if err != nil {
		return nil, errors.Wrap(err, ErrCodeAuditError, "failed to open JSONL audit log")
	}
	defer func() { _ = f.Close() }()

	var events []AuditEvent
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var e AuditEvent
		if err := json.Unmarshal(line, &e); err != nil {
			return nil, errors.Wrap(err, ErrCodeAuditError, "corrupt JSONL audit line")
		}
		if !q.matches(e) {
			continue
		}
		events = append(events, e)
		if q.Limit > 0 && len(events) >= q.Limit {
			break
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, ErrCodeAuditError, "failed to read JSONL audit log")
	}
	return events, nil
}

func (j *jsonlAuditBackend) Flush() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return nil
	}
	return j.file.Sync()
}

// Maintenance is a no-op; rotation is left to the host's log tooling.
func (j *jsonlAuditBackend) Maintenance() error {
	return nil
}

func (j *jsonlAuditBackend) GetStats() (*AuditDatabaseStats, error) {
	events, err := j.Query(AuditQuery{})
	if err != nil {
		return nil, err
	}
	stats := newAuditStats()
	stats.SchemaVersion = 1
	for i := range events {
		e := &events[i]
		stats.TotalEvents++
		stats.EventsByLevel[e.Level.String()]++
		stats.EventsByName[e.Event]++
		if stats.OldestEvent == nil || e.Timestamp.Before(*stats.OldestEvent) {
			stats.OldestEvent = &e.Timestamp
		}
		if stats.NewestEvent == nil || e.Timestamp.After(*stats.NewestEvent) {
			stats.NewestEvent = &e.Timestamp
		}
	}
	if info, err := os.Stat(j.path); err == nil {
		stats.DatabaseSize = info.Size()
	}
	return stats, nil
}

func (j *jsonlAuditBackend) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return nil
	}
	j.closed = true
	return j.file.Close()
}
