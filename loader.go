// loader.go: Document loading for Cascade
//
// This file turns raw YAML or JSON text into Node trees. Key order is kept
// as written, aliases are resolved, and `<<` merge keys are applied, so the
// merge engine sees the document exactly as the author laid it out.
//
// Parser Architecture:
// - Built-in parsers: YAML on go.yaml.in/yaml/v3, JSON on encoding/json tokens
// - Custom parsers: registered with RegisterParser and tried first
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package cascade

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/agilira/go-errors"
	"go.yaml.in/yaml/v3"
)

// maxAliasDepth bounds nested alias expansion.
const maxAliasDepth = 64

// Format identifies a document format.
type Format int

const (
	FormatYAML Format = iota
	FormatJSON
	FormatUnknown
)

// String returns the format name for debugging and error messages.
func (f Format) String() string {
	switch f {
	case FormatYAML:
		return "YAML"
	case FormatJSON:
		return "JSON"
	default:
		return "Unknown"
	}
}

// DocumentParser parses raw bytes into a document tree.
//
// Custom parsers are registered at startup, usually from an init function:
//
//	cascade.RegisterParser(&MyStrictYAMLParser{})
type DocumentParser interface {
	// Parse parses a whole document
	Parse(data []byte) (*Node, error)

	// Supports returns true if this parser can handle the given format
	Supports(format Format) bool

	// Name returns a human-readable name for this parser (for debugging)
	Name() string
}

var (
	customParsers []DocumentParser
	parserMutex   sync.RWMutex
)

// RegisterParser registers a custom parser. Custom parsers are tried in
// registration order before the built-in ones.
func RegisterParser(parser DocumentParser) {
	parserMutex.Lock()
	defer parserMutex.Unlock()
	customParsers = append(customParsers, parser)
}

// DetectFormat detects the document format from the file extension.
func DetectFormat(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yml", ".yaml":
		return FormatYAML
	case ".json":
		return FormatJSON
	default:
		return FormatUnknown
	}
}

// ParseDocument parses data in the given format.
// An empty YAML document yields a null node.
func ParseDocument(data []byte, format Format) (*Node, error) {
	parserMutex.RLock()
	for _, parser := range customParsers {
		if parser.Supports(format) {
			parserMutex.RUnlock()
			n, err := parser.Parse(data)
			if err != nil {
				return nil, errors.Wrap(err, ErrCodeParseError, fmt.Sprintf("parser %s failed", parser.Name()))
			}
			return n, nil
		}
	}
	parserMutex.RUnlock()

	switch format {
	case FormatYAML:
		return parseYAML(data)
	case FormatJSON:
		return parseJSON(data)
	default:
		return nil, errors.New(ErrCodeUnsupportedFormat, fmt.Sprintf("unsupported format: %s", format))
	}
}

// LoadFile reads and parses the document at path, detecting its format
// from the extension.
func LoadFile(path string) (*Node, error) {
	format := DetectFormat(path)
	if format == FormatUnknown {
		return nil, errors.New(ErrCodeUnsupportedFormat, fmt.Sprintf("cannot detect format of %s", path))
	}
	data, err := os.ReadFile(path) // #nosec G304 -- path is caller-provided by contract
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrap(err, ErrCodeFileNotFound, fmt.Sprintf("config file not found: %s", path))
		}
		return nil, errors.Wrap(err, ErrCodeIOError, fmt.Sprintf("failed to read %s", path))
	}
	n, err := ParseDocument(data, format)
	if err != nil {
		return nil, errors.Wrap(err, ErrCodeParseError, fmt.Sprintf("failed to parse %s", path))
	}
	return n, nil
}

func parseYAML(data []byte) (*Node, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrap(err, ErrCodeParseError, "invalid YAML")
	}
	if doc.Kind == 0 {
		return Scalar(nil), nil
	}
	c := converter{active: make(map[*yaml.Node]bool)}
	return c.convert(&doc, 0)
}

// parseJSON reads a JSON document token by token so object key order is
// kept. Integers become int (int64 when they overflow it) and other numbers
// float64, as the YAML decoder does.
func parseJSON(data []byte) (*Node, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	n, err := decodeJSONValue(dec)
	if err != nil {
		return nil, errors.Wrap(err, ErrCodeParseError, "invalid JSON")
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, errors.New(ErrCodeParseError, "invalid JSON: trailing data after document")
	}
	return n, nil
}

func decodeJSONValue(dec *json.Decoder) (*Node, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			out := Mapping()
			for dec.More() {
				keyTok, err := dec.Token()
				if err != nil {
					return nil, err
				}
				key, ok := keyTok.(string)
				if !ok {
					return nil, fmt.Errorf("object key %v is not a string", keyTok)
				}
				value, err := decodeJSONValue(dec)
				if err != nil {
					return nil, err
				}
				out.Set(key, value)
			}
			_, err := dec.Token()
			return out, err
		case '[':
			out := Sequence()
			for dec.More() {
				item, err := decodeJSONValue(dec)
				if err != nil {
					return nil, err
				}
				out.Items = append(out.Items, item)
			}
			_, err := dec.Token()
			return out, err
		}
		return nil, fmt.Errorf("unexpected delimiter %q", t)
	case json.Number:
		return Scalar(jsonNumber(t)), nil
	default:
		// nil, bool or string
		return Scalar(t), nil
	}
}

func jsonNumber(num json.Number) any {
	s := num.String()
	if !strings.ContainsAny(s, ".eE") {
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			if int64(int(i)) == i {
				return int(i)
			}
			return i
		}
		if u, err := strconv.ParseUint(s, 10, 64); err == nil {
			return u
		}
	}
	f, _ := num.Float64()
	return f
}

// converter turns a yaml.Node tree into a Node tree.
type converter struct {
	active map[*yaml.Node]bool // anchors being expanded
}

func (c *converter) convert(n *yaml.Node, depth int) (*Node, error) {
	switch n.Kind {
	case yaml.DocumentNode:
		if len(n.Content) == 0 {
			return Scalar(nil), nil
		}
		return c.convert(n.Content[0], depth)
	case yaml.AliasNode:
		return c.alias(n, depth)
	case yaml.ScalarNode:
		return c.scalar(n)
	case yaml.SequenceNode:
		out := &Node{Kind: SequenceNode, Items: make([]*Node, 0, len(n.Content))}
		for _, item := range n.Content {
			child, err := c.convert(item, depth)
			if err != nil {
				return nil, err
			}
			out.Items = append(out.Items, child)
		}
		return out, nil
	case yaml.MappingNode:
		return c.mapping(n, depth)
	}
	return nil, errors.New(ErrCodeParseError, fmt.Sprintf("unexpected YAML node kind %d at line %d", n.Kind, n.Line))
}

func (c *converter) alias(n *yaml.Node, depth int) (*Node, error) {
	if n.Alias == nil {
		return nil, errors.New(ErrCodeParseError, fmt.Sprintf("unknown alias *%s at line %d", n.Value, n.Line))
	}
	if depth >= maxAliasDepth {
		return nil, errors.New(ErrCodeParseError, fmt.Sprintf("alias nesting exceeds %d at line %d", maxAliasDepth, n.Line))
	}
	if c.active[n.Alias] {
		return nil, errors.New(ErrCodeParseError, fmt.Sprintf("alias *%s refers to itself at line %d", n.Value, n.Line))
	}
	c.active[n.Alias] = true
	defer delete(c.active, n.Alias)
	return c.convert(n.Alias, depth+1)
}

func (c *converter) scalar(n *yaml.Node) (*Node, error) {
	switch n.ShortTag() {
	case "!!null":
		return Scalar(nil), nil
	case "!!str", "!!timestamp":
		return Scalar(n.Value), nil
	}
	var v any
	if err := n.Decode(&v); err != nil {
		return nil, errors.Wrap(err, ErrCodeParseError, fmt.Sprintf("invalid scalar %q at line %d", n.Value, n.Line))
	}
	return Scalar(v), nil
}

// mapping converts a mapping. Duplicate keys keep the position of the first
// occurrence and the value of the last; `<<` merge keys only add keys the
// mapping does not define itself.
func (c *converter) mapping(n *yaml.Node, depth int) (*Node, error) {
	out := &Node{Kind: MappingNode, Pairs: make([]Pair, 0, len(n.Content)/2)}
	var merged []Pair
	for i := 0; i+1 < len(n.Content); i += 2 {
		keyNode, valueNode := n.Content[i], n.Content[i+1]

		if keyNode.Kind == yaml.ScalarNode && keyNode.ShortTag() == "!!merge" {
			pairs, err := c.mergeKey(valueNode, depth)
			if err != nil {
				return nil, err
			}
			merged = append(merged, pairs...)
			continue
		}

		key, err := c.key(keyNode, depth)
		if err != nil {
			return nil, err
		}
		value, err := c.convert(valueNode, depth)
		if err != nil {
			return nil, err
		}
		out.Set(key, value)
	}
	for _, p := range merged {
		if _, exists := out.Lookup(p.Key); !exists {
			out.Pairs = append(out.Pairs, p)
		}
	}
	return out, nil
}

func (c *converter) key(n *yaml.Node, depth int) (string, error) {
	if n.Kind == yaml.AliasNode {
		resolved, err := c.alias(n, depth)
		if err != nil {
			return "", err
		}
		if resolved.Kind == ScalarNode {
			return fmt.Sprint(resolved.Value), nil
		}
	}
	if n.Kind != yaml.ScalarNode {
		return "", errors.New(ErrCodeParseError, fmt.Sprintf("mapping key at line %d is not a scalar", n.Line))
	}
	return n.Value, nil
}

// mergeKey resolves the value of a `<<` key: a mapping or a sequence of
// mappings. Earlier mappings in a sequence take precedence.
func (c *converter) mergeKey(n *yaml.Node, depth int) ([]Pair, error) {
	src, err := c.convert(n, depth)
	if err != nil {
		return nil, err
	}
	switch src.Kind {
	case MappingNode:
		return src.Pairs, nil
	case SequenceNode:
		acc := Mapping()
		for _, item := range src.Items {
			if item.Kind != MappingNode {
				return nil, errors.New(ErrCodeParseError, fmt.Sprintf("merge key at line %d must reference mappings", n.Line))
			}
			for _, p := range item.Pairs {
				if _, exists := acc.Lookup(p.Key); !exists {
					acc.Pairs = append(acc.Pairs, p)
				}
			}
		}
		return acc.Pairs, nil
	}
	return nil, errors.New(ErrCodeParseError, fmt.Sprintf("merge key at line %d must reference a mapping", n.Line))
}
