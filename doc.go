// Package cascade merges layered configuration documents into a single
// configuration and dumps configuration values back to YAML.
//
// Applications typically ship a default configuration and let deployments
// override parts of it: config/defaults.yml, then config/app.yml, then a
// local file that never leaves the developer's machine. Cascade merges those
// documents in order and lets every key say how it wants to be merged.
//
// # Key Directives
//
// A key may carry directives after its name, separated by '|':
//
//	database|important:
//	  host: prod-db
//	debug|development: true
//	legacy|disabled:
//	  enabled: true
//	assets|flat:
//	  css:
//	    main: app.css
//
// Directives are evaluated left to right and are case-sensitive:
//   - disabled: the key and its subtree are ignored
//   - development: the key is ignored unless development mode is on
//   - important: the key and its subtree replace existing values
//   - flat: the subtree is stored under '/'-joined keys, e.g. "assets/css/main"
//
// Unknown directives are ignored. The stored key is always the base name
// before the first '|'.
//
// # Merge Policy
//
// A document is merged into the target key by key. Keys already present are
// only replaced when overwrite is in force, either from Options.Overwrite or
// from an `important` key on the path. Null values never replace existing
// values, sequences replace the target value as a whole, and writes inside a
// flat subtree are unconditional.
//
//	session, err := cascade.NewSession(cascade.Options{DevelopmentMode: true})
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer session.Close()
//
//	if err := session.AddFiles("config/defaults.yml", "config/app.yml"); err != nil {
//		log.Fatal(err)
//	}
//	host, _ := session.Get("database.host")
//
// Merge can also be used directly on a map[string]any with a MergeContext.
//
// # Dumping
//
// Dump renders Go values and Nodes as YAML. Containers nested deeper than the
// inline level are written in flow style ({ a: 1 } and [1, 2]); shallower
// ones use block style. Mappings whose keys are exactly 0..n-1 in order are
// written as lists. DumpScalar exposes the scalar classifier used for every
// leaf so strings that look like numbers, booleans, nulls or timestamps are
// quoted.
//
//	out, err := cascade.Dump(map[string]any{"version": "1.10", "ports": []any{80, 443}}, 1)
//	// ports: [80, 443]
//	// version: '1.10'
//
// # Options
//
// Options come from code, from CASCADE_* environment variables
// (LoadOptionsFromEnv) or from command-line flags (ParseFlags,
// NewSessionFromArgs), each layer overriding the previous one.
//
// # Audit Trail
//
// With Options.Audit enabled every directive decision and every written file
// is recorded in a SQLite database or a JSONL file, so a surprising value in
// the merged configuration can be traced to the document and key that
// produced it. QueryAuditLog and AuditLogStats read an existing trail.
//
// # Reloading
//
// A Reloader polls the files of one merge and rebuilds the configuration
// when any of them changes. The callback only sees configurations whose
// fingerprint differs from the previous one; failed rebuilds keep the last
// good configuration and are reported to Options.ErrorHandler.
//
// # Error Handling
//
// Errors carry go-errors codes (ErrCodeParseError, ErrCodeInvalidDocument,
// ErrCodeUnserializable and others) so callers can branch on the failure
// without matching messages.
//
// Repository: https://github.com/agilira/cascade
package cascade
