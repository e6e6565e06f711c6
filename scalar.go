// scalar.go: Scalar classification and quoting for the YAML dumper
//
// DumpScalar decides the literal form of a scalar. The checks run in a fixed
// order and the first match wins:
//
//  1. nil                          -> null
//  2. booleans                     -> true / false
//  3. all-digit text               -> '123' for strings, 123 for integers
//  4. other numbers                -> plain text; '1.5' for strings; .Inf, -.Inf, .NaN
//  5. control and break characters -> double-quoted with escapes
//  6. indicator characters         -> single-quoted, quotes doubled
//  7. empty string                 -> ''
//  8. reserved literals            -> single-quoted (null, ~, true, false, timestamps, ...)
//  9. everything else              -> plain
//
// Numbers are formatted with strconv and therefore always use a decimal
// point regardless of the process locale. Invalid UTF-8 sequences in strings
// are replaced with U+FFFD before classification.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package cascade

import (
	"fmt"
	"math"
	"reflect"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/agilira/go-errors"
)

var (
	numericPattern = regexp.MustCompile(`^[+-]?(?:[0-9]+(?:\.[0-9]*)?|\.[0-9]+)(?:[eE][+-]?[0-9]+)?$`)

	timestampPattern = regexp.MustCompile(`^[0-9]{4}-[0-9]{1,2}-[0-9]{1,2}` +
		`(?:(?:[Tt]|[ \t]+)[0-9]{1,2}:[0-9]{2}:[0-9]{2}(?:\.[0-9]*)?` +
		`(?:[ \t]*(?:Z|[-+][0-9]{1,2}(?::[0-9]{2})?))?)?$`)

	singleQuotePattern = regexp.MustCompile("[\\s'\":{}\\[\\],&*#?]|^[-?|<>=!%@`]")

	// forms a YAML 1.2 parser resolves to non-string values
	typedLiteralPattern = regexp.MustCompile(`^(?:[-+]?(?:0x[0-9a-fA-F_]+|0o[0-7_]+|0b[01_]+|[0-9][0-9_]*)|[-+]?\.(?:inf|Inf|INF)|\.(?:nan|NaN|NAN))$`)
)

// DumpScalar returns the YAML literal for a scalar value.
// Containers and unsupported types fail with ErrCodeUnserializable.
func DumpScalar(v any) (string, error) {
	switch val := v.(type) {
	case nil:
		return "null", nil
	case bool:
		if val {
			return "true", nil
		}
		return "false", nil
	case string:
		return dumpString(val), nil
	case int:
		return strconv.Itoa(val), nil
	case int64:
		return strconv.FormatInt(val, 10), nil
	case uint64:
		return strconv.FormatUint(val, 10), nil
	case float64:
		return dumpFloat(val, 64), nil
	case float32:
		return dumpFloat(float64(val), 32), nil
	case time.Time:
		return val.Format(time.RFC3339Nano), nil
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Bool:
		return DumpScalar(rv.Bool())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(rv.Int(), 10), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return strconv.FormatUint(rv.Uint(), 10), nil
	case reflect.Float32:
		return dumpFloat(rv.Float(), 32), nil
	case reflect.Float64:
		return dumpFloat(rv.Float(), 64), nil
	case reflect.String:
		return dumpString(rv.String()), nil
	}
	return "", errors.New(ErrCodeUnserializable, fmt.Sprintf("cannot dump %T as a scalar", v))
}

// dumpFloat formats a float so that it reparses as a float.
func dumpFloat(f float64, bitSize int) string {
	switch {
	case math.IsInf(f, 1):
		return ".Inf"
	case math.IsInf(f, -1):
		return "-.Inf"
	case math.IsNaN(f):
		return ".NaN"
	}
	s := strconv.FormatFloat(f, 'g', -1, bitSize)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return s
}

func dumpString(s string) string {
	s = strings.ToValidUTF8(s, "\uFFFD")
	switch {
	case isDigits(s):
		return "'" + s + "'"
	case numericPattern.MatchString(s):
		return "'" + s + "'"
	case requiresDoubleQuoting(s):
		return escapeWithDoubleQuotes(s)
	case singleQuotePattern.MatchString(s):
		return escapeWithSingleQuotes(s)
	case s == "":
		return "''"
	case isReservedLiteral(s):
		return "'" + s + "'"
	default:
		return s
	}
}

// dumpKey dumps a mapping key. Canonical integers are emitted bare since
// they denote integer keys.
func dumpKey(key string) string {
	if _, ok := canonicalInt(key); ok {
		return key
	}
	return dumpString(key)
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

func isReservedLiteral(s string) bool {
	switch strings.ToLower(s) {
	case "null", "~", "true", "false", "---", "...":
		return true
	}
	return timestampPattern.MatchString(s) || typedLiteralPattern.MatchString(s)
}

// requiresDoubleQuoting reports whether s holds characters that only a
// double-quoted scalar can represent.
func requiresDoubleQuoting(s string) bool {
	for _, r := range s {
		if isNonPrintable(r) || r == 0x85 || r == 0xA0 || r == 0x2028 || r == 0x2029 {
			return true
		}
	}
	return false
}

// isNonPrintable reports characters outside the YAML printable set, which
// must be escaped. Tab, line feed and carriage return are included since
// plain and single-quoted scalars cannot keep them either.
func isNonPrintable(r rune) bool {
	return r < 0x20 || r == 0x7F || (r >= 0x80 && r <= 0x9F) || r == 0xFFFE || r == 0xFFFF
}

func escapeWithDoubleQuotes(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 8)
	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '\\':
			b.WriteString(`\\`)
		case '"':
			b.WriteString(`\"`)
		case 0x00:
			b.WriteString(`\0`)
		case 0x07:
			b.WriteString(`\a`)
		case 0x08:
			b.WriteString(`\b`)
		case '\t':
			b.WriteString(`\t`)
		case '\n':
			b.WriteString(`\n`)
		case 0x0B:
			b.WriteString(`\v`)
		case 0x0C:
			b.WriteString(`\f`)
		case '\r':
			b.WriteString(`\r`)
		case 0x1B:
			b.WriteString(`\e`)
		case 0x85:
			b.WriteString(`\N`)
		case 0xA0:
			b.WriteString(`\_`)
		case 0x2028:
			b.WriteString(`\L`)
		case 0x2029:
			b.WriteString(`\P`)
		default:
			switch {
			case r <= 0xFF && isNonPrintable(r):
				fmt.Fprintf(&b, `\x%02X`, r)
			case isNonPrintable(r):
				fmt.Fprintf(&b, `\u%04X`, r)
			default:
				b.WriteRune(r)
			}
		}
	}
	b.WriteByte('"')
	return b.String()
}

func escapeWithSingleQuotes(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
