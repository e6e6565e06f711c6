// session.go: Merge session lifecycle for Cascade
//
// A Session owns one merge target. Documents are added in caller order and
// merged with the session options; consumers then read the result by dotted
// key, decode it into structs, or dump it back to YAML.
//
// Session follows a single-writer contract: Add* calls must not run
// concurrently with each other, while readers may run alongside a writer.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package cascade

import (
	"fmt"
	"sync"

	"github.com/agilira/go-errors"
	"github.com/go-viper/mapstructure/v2"
)

// Session merges configuration documents into one target.
type Session struct {
	opts   Options
	dumper *Dumper

	audit     *AuditLogger
	ownsAudit bool

	mu      sync.RWMutex
	target  map[string]any
	sources []string
	writers map[string]*ConfigWriter
	closed  bool
}

// NewSession creates a session with an empty target.
// Unset options are defaulted and the result validated.
func NewSession(opts Options) (*Session, error) {
	opts = opts.WithDefaults()
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	s := &Session{
		opts:    opts,
		dumper:  NewDumper(opts.dumperOptions()),
		target:  make(map[string]any),
		writers: make(map[string]*ConfigWriter),
	}

	if opts.Audit.Enabled {
		logger, err := NewAuditLogger(opts.Audit)
		if err != nil {
			return nil, err
		}
		s.audit = logger
		s.ownsAudit = true
	}
	return s, nil
}

// Options returns the effective options.
func (s *Session) Options() Options {
	return s.opts
}

// Seed copies values into the target, replacing keys already present.
// It is meant for defaults set before the first document is added.
func (s *Session) Seed(values map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, v := range values {
		s.target[k] = deepCopyValue(v)
	}
}

// AddDocument merges doc into the target. source names the document in
// audit events and error messages.
//
// A nil or null document is a no-op. Any other non-mapping root fails with
// ErrCodeInvalidDocument and leaves the target untouched.
func (s *Session) AddDocument(doc *Node, source string) error {
	if doc.IsNull() {
		return nil
	}
	if doc.Kind != MappingNode {
		return s.fail(errors.New(ErrCodeInvalidDocument,
			fmt.Sprintf("document root must be a mapping, got %s", doc.Kind)), source)
	}

	s.mu.Lock()
	audit := s.audit
	var observer MergeObserver
	if audit != nil {
		observer = audit.Observer(source)
	}
	Merge(s.target, doc, s.opts.mergeContext(observer))
	s.sources = append(s.sources, source)
	s.mu.Unlock()

	audit.LogDocumentMerged(source, doc.Len())
	return nil
}

// AddBytes parses data in the given format and merges it.
func (s *Session) AddBytes(data []byte, format Format, source string) error {
	doc, err := ParseDocument(data, format)
	if err != nil {
		return s.fail(err, source)
	}
	return s.AddDocument(doc, source)
}

// AddValue converts a Go value with NodeOf and merges it.
func (s *Session) AddValue(v any, source string) error {
	doc, err := NodeOf(v)
	if err != nil {
		return s.fail(err, source)
	}
	return s.AddDocument(doc, source)
}

// AddFile loads and merges the document at path.
func (s *Session) AddFile(path string) error {
	doc, err := LoadFile(path)
	if err != nil {
		return s.fail(err, path)
	}
	return s.AddDocument(doc, path)
}

// AddFiles merges the given files in order, stopping at the first failure.
// Files merged before the failure stay merged.
func (s *Session) AddFiles(paths ...string) error {
	for _, path := range paths {
		if err := s.AddFile(path); err != nil {
			return err
		}
	}
	return nil
}

func (s *Session) fail(err error, source string) error {
	if s.opts.ErrorHandler != nil {
		s.opts.ErrorHandler(err, source)
	}
	return err
}

// Config returns the merged target itself. Callers must treat it as
// read-only; use Snapshot for a private copy.
func (s *Session) Config() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.target
}

// Snapshot returns a deep copy of the merged target.
func (s *Session) Snapshot() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return deepCopy(s.target)
}

// Sources returns the documents merged so far, in order.
func (s *Session) Sources() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, len(s.sources))
	copy(out, s.sources)
	return out
}

// Get returns the value at a dotted key such as "database.host".
// Flattened keys are single segments: Get("assets/css/main").
// List elements are addressed by index: Get("servers.0.name").
func (s *Session) Get(key string) (any, bool) {
	if key == "" {
		return nil, false
	}
	path := parseDotNotation(key, make([]string, 0, 4))

	s.mu.RLock()
	defer s.mu.RUnlock()
	if v, ok := s.target[key]; ok {
		return v, true
	}
	return getNestedValue(s.target, path)
}

// MustGet is like Get but fails with ErrCodeKeyNotFound for missing keys.
func (s *Session) MustGet(key string) (any, error) {
	v, ok := s.Get(key)
	if !ok {
		return nil, errors.New(ErrCodeKeyNotFound, fmt.Sprintf("key not found: %s", key))
	}
	return v, nil
}

// Keys returns the sorted dotted paths of all leaves starting with prefix.
func (s *Session) Keys(prefix string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedKeys(s.target, prefix)
}

// Fingerprint returns a hash of the merged target that changes whenever
// its content does.
func (s *Session) Fingerprint() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return hashConfig(s.target)
}

// Unmarshal decodes the merged target into v using `config` struct tags.
// Durations accept strings such as "5s"; types implementing
// encoding.TextUnmarshaler are decoded from strings.
func (s *Session) Unmarshal(v any) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return decodeConfig(s.target, v)
}

// UnmarshalKey decodes the value at key into v.
func (s *Session) UnmarshalKey(key string, v any) error {
	value, err := s.MustGet(key)
	if err != nil {
		return err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return decodeConfig(value, v)
}

func decodeConfig(input, v any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName: "config",
		Result:  v,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.TextUnmarshallerHookFunc(),
		),
	})
	if err != nil {
		return errors.Wrap(err, ErrCodeDecodeError, "invalid decode target")
	}
	if err := dec.Decode(input); err != nil {
		return errors.Wrap(err, ErrCodeDecodeError, "failed to decode configuration")
	}
	return nil
}

// Dump renders the merged target as YAML, switching to flow style at the
// configured inline depth.
func (s *Session) Dump() (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dumper.Dump(s.target, s.opts.InlineDepth, 0)
}

// WriteFile dumps the merged target to path atomically. Writing an
// unchanged target to the same path again is skipped.
func (s *Session) WriteFile(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.writers[path]
	if !ok {
		var err error
		w, err = NewConfigWriter(path, s.dumper, s.opts.InlineDepth, s.audit)
		if err != nil {
			return err
		}
		s.writers[path] = w
	}
	_, err := w.Write(s.target)
	return err
}

// UseAudit records later merge decisions in logger instead of the logger
// created from the options, which is closed. The session never closes a
// logger passed here.
func (s *Session) UseAudit(logger *AuditLogger) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ownsAudit {
		if err := s.audit.Close(); err != nil {
			return err
		}
	}
	s.audit = logger
	s.ownsAudit = false
	// writers hold the previous logger
	clear(s.writers)
	return nil
}

// Audit returns the session's audit logger, or nil when auditing is off.
func (s *Session) Audit() *AuditLogger {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.audit
}

// Close flushes and releases the audit logger. It is safe to call twice.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if !s.ownsAudit {
		return nil
	}
	return s.audit.Close()
}
