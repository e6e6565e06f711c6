// cascade.go: Error codes and engine options for Cascade
//
// Cascade merges layered configuration documents into a single target,
// honouring per-key directives (disabled, development, important, flat),
// and dumps configuration values back to YAML text.
//
// Example Usage:
//   session, err := cascade.NewSession(cascade.Options{DevelopmentMode: true})
//   if err != nil {
//       log.Fatal(err)
//   }
//   defer session.Close()
//
//   if err := session.AddFiles("config/defaults.yml", "config/app.yml"); err != nil {
//       log.Fatal(err)
//   }
//   host, _ := session.Get("database.host")
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package cascade

// Error codes for Cascade operations
const (
	ErrCodeInvalidDocument   = "CASCADE_INVALID_DOCUMENT"
	ErrCodeParseError        = "CASCADE_PARSE_ERROR"
	ErrCodeUnsupportedFormat = "CASCADE_UNSUPPORTED_FORMAT"
	ErrCodeFileNotFound      = "CASCADE_FILE_NOT_FOUND"
	ErrCodeIOError           = "CASCADE_IO_ERROR"
	ErrCodeUnserializable    = "CASCADE_UNSERIALIZABLE"
	ErrCodeInvalidOptions    = "CASCADE_INVALID_OPTIONS"
	ErrCodeKeyNotFound       = "CASCADE_KEY_NOT_FOUND"
	ErrCodeDecodeError       = "CASCADE_DECODE_ERROR"
	ErrCodeAuditError        = "CASCADE_AUDIT_ERROR"
)

const (
	// DefaultInlineDepth is the nesting level at which the dumper switches to flow style.
	DefaultInlineDepth = 4

	// DefaultIndentation is the number of spaces per block nesting level.
	DefaultIndentation = 4
)

// ErrorHandler is called when loading a configuration source fails.
// It receives the error and the source (usually a file path) that caused it.
type ErrorHandler func(err error, source string)

// Options configures a Session and the dumper it uses.
type Options struct {
	// DevelopmentMode enables keys carrying the `development` directive.
	// Set once at startup; merges read it but never change it.
	DevelopmentMode bool

	// Overwrite is the ambient overwrite flag. When false, keys already
	// present in the target are left untouched unless marked `important`.
	Overwrite bool

	// InlineDepth is the nesting level at which Dump switches to flow style.
	// Default: 4
	InlineDepth int `validate:"gte=0,lte=64"`

	// Indentation is the number of spaces added per block level.
	// Default: 4
	Indentation int `validate:"gte=1,lte=16"`

	// Lenient makes the dumper emit null for values it cannot serialise
	// instead of failing with ErrCodeUnserializable.
	Lenient bool

	// Audit configures the merge audit trail. Zero value disables it.
	Audit AuditConfig

	// ErrorHandler is notified of load failures before they are returned.
	ErrorHandler ErrorHandler `validate:"-"`
}

// WithDefaults returns a copy of the options with unset values defaulted.
func (o Options) WithDefaults() Options {
	if o.InlineDepth == 0 {
		o.InlineDepth = DefaultInlineDepth
	}
	if o.Indentation == 0 {
		o.Indentation = DefaultIndentation
	}
	if o.Audit.Enabled {
		o.Audit = o.Audit.withDefaults()
	}
	return o
}

// mergeContext derives the per-call merge context from the options.
func (o Options) mergeContext(observer MergeObserver) MergeContext {
	return MergeContext{
		DevelopmentMode: o.DevelopmentMode,
		Overwrite:       o.Overwrite,
		Observer:        observer,
	}
}

// dumperOptions derives the dumper configuration from the options.
func (o Options) dumperOptions() DumperOptions {
	return DumperOptions{
		Indentation: o.Indentation,
		Lenient:     o.Lenient,
	}
}
