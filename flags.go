// flags.go: Command-line flag support for Cascade options
//
// Precedence, lowest first: defaults, CASCADE_* environment variables,
// command-line flags.
//
// Example Usage:
//   session, err := cascade.NewSessionFromArgs("myapp", os.Args[1:])
//   // myapp --dev --config config/defaults.yml,config/local.yml
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package cascade

import (
	flashflags "github.com/agilira/flash-flags"
	"github.com/agilira/go-errors"
)

// Flag names registered by ParseFlags.
const (
	FlagDevelopment = "dev"
	FlagOverwrite   = "overwrite"
	FlagInline      = "inline"
	FlagIndent      = "indent"
	FlagLenient     = "lenient"
	FlagConfig      = "config"
)

// ParseFlags parses args into options and the list of configuration files
// given with --config, in order.
func ParseFlags(appName string, args []string) (Options, []string, error) {
	base, err := Options{}.ApplyEnv()
	if err != nil {
		return Options{}, nil, err
	}
	base = base.WithDefaults()

	// env-derived values become the flag defaults
	fs := flashflags.New(appName)
	fs.SetDescription("Layered configuration with key directives")
	fs.Bool(FlagDevelopment, base.DevelopmentMode, "Enable keys marked |development")
	fs.Bool(FlagOverwrite, base.Overwrite, "Let later documents overwrite existing keys")
	fs.Int(FlagInline, base.InlineDepth, "Nesting level at which dumps switch to flow style")
	fs.Int(FlagIndent, base.Indentation, "Spaces per block level in dumps")
	fs.Bool(FlagLenient, base.Lenient, "Dump unserialisable values as null instead of failing")
	fs.StringSlice(FlagConfig, []string{}, "Configuration files, merged in the order given")

	if err := fs.Parse(args); err != nil {
		return Options{}, nil, errors.Wrap(err, ErrCodeInvalidOptions, "failed to parse command-line flags")
	}

	opts := base
	opts.DevelopmentMode = fs.GetBool(FlagDevelopment)
	opts.Overwrite = fs.GetBool(FlagOverwrite)
	opts.InlineDepth = fs.GetInt(FlagInline)
	opts.Indentation = fs.GetInt(FlagIndent)
	opts.Lenient = fs.GetBool(FlagLenient)

	if err := opts.Validate(); err != nil {
		return Options{}, nil, err
	}
	return opts, fs.GetStringSlice(FlagConfig), nil
}

// NewSessionFromArgs parses args with ParseFlags, creates a session and
// merges the --config files in order.
func NewSessionFromArgs(appName string, args []string) (*Session, error) {
	opts, files, err := ParseFlags(appName, args)
	if err != nil {
		return nil, err
	}
	session, err := NewSession(opts)
	if err != nil {
		return nil, err
	}
	if err := session.AddFiles(files...); err != nil {
		_ = session.Close()
		return nil, err
	}
	return session, nil
}
