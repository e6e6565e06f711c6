// node.go: Document model for Cascade
//
// A Node is the decoded shape of a configuration document: a scalar, an
// ordered sequence, or an ordered mapping of string keys. Scalars keep their
// Go type so the dumper can tell the string "42" from the integer 42.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package cascade

import (
	"fmt"
	"reflect"
	"slices"
	"sort"
	"strconv"
	"time"

	"github.com/agilira/go-errors"
)

// Kind identifies the shape of a Node.
type Kind int

const (
	ScalarNode Kind = iota
	SequenceNode
	MappingNode
)

// String returns the kind name for debugging and error messages.
func (k Kind) String() string {
	switch k {
	case ScalarNode:
		return "scalar"
	case SequenceNode:
		return "sequence"
	case MappingNode:
		return "mapping"
	default:
		return "unknown"
	}
}

// Pair is one key/value entry of a mapping node.
type Pair struct {
	Key   string
	Value *Node
}

// Node is a recursive configuration value.
//
// Only the field matching Kind is meaningful: Value for scalars, Items for
// sequences, Pairs for mappings. Mapping keys are unique within one node.
type Node struct {
	Kind  Kind
	Value any
	Items []*Node
	Pairs []Pair
}

// Scalar returns a scalar node holding v.
func Scalar(v any) *Node {
	return &Node{Kind: ScalarNode, Value: v}
}

// Sequence returns a sequence node of the given items.
func Sequence(items ...*Node) *Node {
	return &Node{Kind: SequenceNode, Items: items}
}

// Mapping returns a mapping node of the given pairs, in order.
func Mapping(pairs ...Pair) *Node {
	return &Node{Kind: MappingNode, Pairs: pairs}
}

// KV is shorthand for building mapping pairs.
func KV(key string, value *Node) Pair {
	return Pair{Key: key, Value: value}
}

// IsNull reports whether the node is absent or a null scalar.
func (n *Node) IsNull() bool {
	return n == nil || (n.Kind == ScalarNode && n.Value == nil)
}

// IsContainer reports whether the node is a sequence or a mapping.
func (n *Node) IsContainer() bool {
	return n != nil && (n.Kind == SequenceNode || n.Kind == MappingNode)
}

// Len returns the number of entries of a container, 0 for scalars.
func (n *Node) Len() int {
	if n == nil {
		return 0
	}
	switch n.Kind {
	case SequenceNode:
		return len(n.Items)
	case MappingNode:
		return len(n.Pairs)
	default:
		return 0
	}
}

// Lookup returns the value stored under the raw key of a mapping node.
func (n *Node) Lookup(key string) (*Node, bool) {
	if n == nil || n.Kind != MappingNode {
		return nil, false
	}
	for _, p := range n.Pairs {
		if p.Key == key {
			return p.Value, true
		}
	}
	return nil, false
}

// Set stores value under key, replacing an existing entry in place
// or appending a new one.
func (n *Node) Set(key string, value *Node) {
	for i := range n.Pairs {
		if n.Pairs[i].Key == key {
			n.Pairs[i].Value = value
			return
		}
	}
	n.Pairs = append(n.Pairs, Pair{Key: key, Value: value})
}

// Keys returns the raw keys of a mapping node in document order.
func (n *Node) Keys() []string {
	if n == nil || n.Kind != MappingNode {
		return nil
	}
	keys := make([]string, len(n.Pairs))
	for i, p := range n.Pairs {
		keys[i] = p.Key
	}
	return keys
}

// Interface converts the node to plain Go values: map[string]any, []any
// and scalars. Raw keys are kept verbatim, directives included.
func (n *Node) Interface() any {
	if n == nil {
		return nil
	}
	switch n.Kind {
	case SequenceNode:
		out := make([]any, len(n.Items))
		for i, item := range n.Items {
			out[i] = item.Interface()
		}
		return out
	case MappingNode:
		out := make(map[string]any, len(n.Pairs))
		for _, p := range n.Pairs {
			out[p.Key] = p.Value.Interface()
		}
		return out
	default:
		return n.Value
	}
}

// entries returns the children of a container as key/value pairs;
// sequence items are keyed by their index.
func (n *Node) entries() []Pair {
	if n.Kind == MappingNode {
		return n.Pairs
	}
	out := make([]Pair, len(n.Items))
	for i, item := range n.Items {
		out[i] = Pair{Key: strconv.Itoa(i), Value: item}
	}
	return out
}

// isList reports whether a container dumps as a list: a sequence, or a
// mapping whose keys are exactly 0..n-1 in order.
func (n *Node) isList() bool {
	switch n.Kind {
	case SequenceNode:
		return true
	case MappingNode:
		if len(n.Pairs) == 0 {
			return false
		}
		for i, p := range n.Pairs {
			if p.Key != strconv.Itoa(i) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// MapItem is one entry of a MapSlice.
type MapItem struct {
	Key   string
	Value any
}

// MapSlice is an ordered mapping for dumping Go values whose key order matters.
type MapSlice []MapItem

// NodeOf converts a Go value into a Node.
//
// Supported inputs are *Node, Node, MapSlice, maps with string, integer or
// boolean keys (sorted), slices and arrays, pointers to those, and scalars
// (nil, bool, integers, floats, strings, time.Time). Anything else fails
// with ErrCodeUnserializable.
func NodeOf(v any) (*Node, error) {
	return toNode(v, false)
}

func toNode(v any, lenient bool) (*Node, error) {
	switch val := v.(type) {
	case nil:
		return Scalar(nil), nil
	case *Node:
		if val == nil {
			return Scalar(nil), nil
		}
		return val, nil
	case Node:
		return &val, nil
	case MapSlice:
		n := &Node{Kind: MappingNode, Pairs: make([]Pair, 0, len(val))}
		for _, item := range val {
			child, err := toNode(item.Value, lenient)
			if err != nil {
				return nil, err
			}
			n.Pairs = append(n.Pairs, Pair{Key: item.Key, Value: child})
		}
		return n, nil
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sortMappingKeys(keys)
		n := &Node{Kind: MappingNode, Pairs: make([]Pair, 0, len(val))}
		for _, k := range keys {
			child, err := toNode(val[k], lenient)
			if err != nil {
				return nil, err
			}
			n.Pairs = append(n.Pairs, Pair{Key: k, Value: child})
		}
		return n, nil
	case []any:
		n := &Node{Kind: SequenceNode, Items: make([]*Node, 0, len(val))}
		for _, item := range val {
			child, err := toNode(item, lenient)
			if err != nil {
				return nil, err
			}
			n.Items = append(n.Items, child)
		}
		return n, nil
	case bool, int, int64, uint64, float64, string, time.Time:
		return Scalar(val), nil
	case []byte:
		return Scalar(string(val)), nil
	}
	return reflectNode(reflect.ValueOf(v), lenient)
}

// reflectNode handles typed maps, slices, pointers and named scalar types.
func reflectNode(rv reflect.Value, lenient bool) (*Node, error) {
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return Scalar(nil), nil
		}
		return toNode(rv.Elem().Interface(), lenient)
	case reflect.Bool:
		return Scalar(rv.Bool()), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return Scalar(rv.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return Scalar(rv.Uint()), nil
	case reflect.Float32:
		return Scalar(float32(rv.Float())), nil
	case reflect.Float64:
		return Scalar(rv.Float()), nil
	case reflect.String:
		return Scalar(rv.String()), nil
	case reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Slice && rv.IsNil() {
			return Scalar(nil), nil
		}
		n := &Node{Kind: SequenceNode, Items: make([]*Node, 0, rv.Len())}
		for i := 0; i < rv.Len(); i++ {
			child, err := toNode(rv.Index(i).Interface(), lenient)
			if err != nil {
				return nil, err
			}
			n.Items = append(n.Items, child)
		}
		return n, nil
	case reflect.Map:
		return reflectMapping(rv, lenient)
	}
	return unserializable(rv, lenient)
}

func reflectMapping(rv reflect.Value, lenient bool) (*Node, error) {
	if rv.IsNil() {
		return Scalar(nil), nil
	}
	type entry struct {
		key    string
		intKey int64
		value  reflect.Value
	}
	numeric := true
	entries := make([]entry, 0, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		k := iter.Key()
		for k.Kind() == reflect.Interface && !k.IsNil() {
			k = k.Elem()
		}
		e := entry{value: iter.Value()}
		switch k.Kind() {
		case reflect.String:
			e.key = k.String()
			if i, ok := canonicalInt(e.key); ok {
				e.intKey = i
			} else {
				numeric = false
			}
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			e.intKey = k.Int()
			e.key = strconv.FormatInt(e.intKey, 10)
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			e.intKey = int64(k.Uint())
			e.key = strconv.FormatUint(k.Uint(), 10)
		case reflect.Bool:
			e.key = strconv.FormatBool(k.Bool())
			numeric = false
		default:
			return unserializable(rv, lenient)
		}
		entries = append(entries, e)
	}
	// integer keys sort numerically so 0..n-1 maps still dump as lists
	sort.Slice(entries, func(i, j int) bool {
		if numeric {
			return entries[i].intKey < entries[j].intKey
		}
		return entries[i].key < entries[j].key
	})
	n := &Node{Kind: MappingNode, Pairs: make([]Pair, 0, len(entries))}
	for _, e := range entries {
		child, err := toNode(e.value.Interface(), lenient)
		if err != nil {
			return nil, err
		}
		n.Pairs = append(n.Pairs, Pair{Key: e.key, Value: child})
	}
	return n, nil
}

// canonicalInt parses key when it is written exactly as strconv would write
// the integer, so "7" qualifies and "07" or "+7" do not.
func canonicalInt(key string) (int64, bool) {
	i, err := strconv.ParseInt(key, 10, 64)
	if err != nil || strconv.FormatInt(i, 10) != key {
		return 0, false
	}
	return i, true
}

// sortMappingKeys orders keys numerically when all of them are canonical
// integers and lexically otherwise.
func sortMappingKeys(keys []string) {
	ints := make([]int64, len(keys))
	for i, k := range keys {
		n, ok := canonicalInt(k)
		if !ok {
			slices.Sort(keys)
			return
		}
		ints[i] = n
	}
	sort.Sort(intKeys{keys: keys, ints: ints})
}

// intKeys sorts string keys by their parsed integer values.
type intKeys struct {
	keys []string
	ints []int64
}

func (k intKeys) Len() int           { return len(k.keys) }
func (k intKeys) Less(i, j int) bool { return k.ints[i] < k.ints[j] }
func (k intKeys) Swap(i, j int) {
	k.keys[i], k.keys[j] = k.keys[j], k.keys[i]
	k.ints[i], k.ints[j] = k.ints[j], k.ints[i]
}

func unserializable(rv reflect.Value, lenient bool) (*Node, error) {
	if lenient {
		return Scalar(nil), nil
	}
	typeName := "invalid value"
	if rv.IsValid() {
		typeName = rv.Type().String()
	}
	return nil, errors.New(ErrCodeUnserializable, fmt.Sprintf("cannot serialise value of type %s", typeName))
}
