// config_writer.go: Merged configuration access and atomic writing for Cascade
//
// This file holds the helpers a Session uses to read the merged target by
// dotted key and to persist it: a ConfigWriter dumps a configuration to YAML
// and replaces the destination file atomically.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package cascade

import (
	"fmt"
	"hash"
	"hash/fnv"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/agilira/go-errors"
)

// ConfigWriter writes configurations to a YAML file.
// Writes go to a temporary file in the same directory that is then renamed
// over the destination, so readers never observe a partial file.
type ConfigWriter struct {
	filePath    string
	dumper      *Dumper
	inline      int
	auditLogger *AuditLogger // optional
	lastHash    uint64
}

// NewConfigWriter creates a writer for filePath. auditLogger may be nil.
func NewConfigWriter(filePath string, dumper *Dumper, inline int, auditLogger *AuditLogger) (*ConfigWriter, error) {
	if filePath == "" {
		return nil, errors.New(ErrCodeIOError, "filePath cannot be empty")
	}
	if dumper == nil {
		dumper = NewDumper(DumperOptions{})
	}
	return &ConfigWriter{
		filePath:    filePath,
		dumper:      dumper,
		inline:      inline,
		auditLogger: auditLogger,
	}, nil
}

// Path returns the destination file.
func (w *ConfigWriter) Path() string {
	return w.filePath
}

// Write dumps config and atomically replaces the destination file.
// It reports whether the file was written: a config identical to the last
// one written is skipped.
func (w *ConfigWriter) Write(config map[string]any) (bool, error) {
	current := hashConfig(config)
	if w.lastHash != 0 && current == w.lastHash {
		return false, nil
	}

	out, err := w.dumper.Dump(config, w.inline, 0)
	if err != nil {
		return false, err
	}
	if err := atomicWrite(w.filePath, []byte(out)); err != nil {
		return false, errors.Wrap(err, ErrCodeIOError, "atomic write failed")
	}
	w.lastHash = current

	if w.auditLogger != nil {
		w.auditLogger.LogConfigWritten(w.filePath, len(config))
	}
	return true, nil
}

// atomicWrite writes data to a temporary file next to path, then renames it.
func atomicWrite(path string, data []byte) error {
	dir := filepath.Dir(path)
	base := filepath.Base(path)
	tempPath := filepath.Join(dir, "."+base+".tmp."+strconv.FormatInt(time.Now().UnixNano(), 10))

	if err := os.WriteFile(tempPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}

// parseDotNotation splits a dotted key into its non-empty segments.
func parseDotNotation(key string, buffer []string) []string {
	if !strings.Contains(key, ".") {
		return append(buffer, key)
	}
	for _, part := range strings.Split(key, ".") {
		part = strings.TrimSpace(part)
		if part != "" {
			buffer = append(buffer, part)
		}
	}
	return buffer
}

// getNestedValue walks keyPath through maps and lists. At each map level a
// key containing the remaining dotted path is tried first, so keys that
// contain dots stay reachable.
func getNestedValue(value any, keyPath []string) (any, bool) {
	if len(keyPath) == 0 {
		return value, true
	}
	switch node := value.(type) {
	case map[string]any:
		if len(keyPath) > 1 {
			if v, ok := node[strings.Join(keyPath, ".")]; ok {
				return v, true
			}
		}
		next, ok := node[keyPath[0]]
		if !ok {
			return nil, false
		}
		return getNestedValue(next, keyPath[1:])
	case []any:
		i, err := strconv.Atoi(keyPath[0])
		if err != nil || i < 0 || i >= len(node) {
			return nil, false
		}
		return getNestedValue(node[i], keyPath[1:])
	default:
		return nil, false
	}
}

// collectKeys appends the dotted paths of all leaves below config that
// start with filterPrefix. Empty maps count as leaves.
func collectKeys(config map[string]any, currentPrefix, filterPrefix string, keys *[]string) {
	for key, value := range config {
		fullKey := key
		if currentPrefix != "" {
			fullKey = currentPrefix + "." + key
		}

		nested, isMap := value.(map[string]any)
		if isMap && len(nested) > 0 {
			// descend only where a match is still possible
			if filterPrefix == "" || strings.HasPrefix(fullKey, filterPrefix) || strings.HasPrefix(filterPrefix, fullKey+".") {
				collectKeys(nested, fullKey, filterPrefix, keys)
			}
			continue
		}
		if filterPrefix == "" || strings.HasPrefix(fullKey, filterPrefix) {
			*keys = append(*keys, fullKey)
		}
	}
}

// sortedKeys returns the sorted leaf keys of config below prefix.
func sortedKeys(config map[string]any, prefix string) []string {
	keys := make([]string, 0, len(config))
	collectKeys(config, "", prefix, &keys)
	slices.Sort(keys)
	return keys
}

// deepCopy copies nested maps and lists; scalars are shared.
func deepCopy(src map[string]any) map[string]any {
	if src == nil {
		return nil
	}
	dst := make(map[string]any, len(src))
	for k, v := range src {
		dst[k] = deepCopyValue(v)
	}
	return dst
}

func deepCopyValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return deepCopy(val)
	case []any:
		if val == nil {
			return val
		}
		dst := make([]any, len(val))
		for i, item := range val {
			dst[i] = deepCopyValue(item)
		}
		return dst
	default:
		return val
	}
}

// hashConfig computes an order-independent FNV-1a fingerprint of config.
func hashConfig(config map[string]any) uint64 {
	h := fnv.New64a()
	hashValue(h, config)
	return h.Sum64()
}

func hashValue(h hash.Hash64, v any) {
	switch val := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		slices.Sort(keys)
		_, _ = h.Write([]byte{'{'})
		for _, k := range keys {
			_, _ = h.Write([]byte(strconv.Quote(k)))
			_, _ = h.Write([]byte{':'})
			hashValue(h, val[k])
		}
		_, _ = h.Write([]byte{'}'})
	case []any:
		_, _ = h.Write([]byte{'['})
		for _, item := range val {
			hashValue(h, item)
			_, _ = h.Write([]byte{','})
		}
		_, _ = h.Write([]byte{']'})
	default:
		// type name keeps "1" and 1 apart
		_, _ = fmt.Fprintf(h, "%T=%v;", val, val)
	}
}
