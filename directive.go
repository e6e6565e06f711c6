// directive.go: Key directives for Cascade
//
// A mapping key may carry directives after its name, separated by '|':
//
//	database|important:
//	  host: db.internal
//	debug_toolbar|development|flat:
//	  panel: sql
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package cascade

import "strings"

// DirectiveSeparator separates a key name from its directives.
const DirectiveSeparator = "|"

// DirectiveKind enumerates the directives the merge engine understands.
type DirectiveKind int

const (
	// DirectiveUnknown is any token the engine does not recognise. It is inert.
	DirectiveUnknown DirectiveKind = iota

	// DirectiveDisabled skips the key and its whole subtree.
	DirectiveDisabled

	// DirectiveDevelopment skips the key unless development mode is on.
	DirectiveDevelopment

	// DirectiveImportant forces overwrite for the key and everything below it.
	DirectiveImportant

	// DirectiveFlat merges the subtree as '/'-joined keys instead of nested maps.
	DirectiveFlat
)

// String returns the directive token for the kind.
func (k DirectiveKind) String() string {
	switch k {
	case DirectiveDisabled:
		return "disabled"
	case DirectiveDevelopment:
		return "development"
	case DirectiveImportant:
		return "important"
	case DirectiveFlat:
		return "flat"
	default:
		return "unknown"
	}
}

// Directive is one parsed directive token.
type Directive struct {
	Kind  DirectiveKind
	Token string // raw token as written, trimmed
}

// String returns the raw token.
func (d Directive) String() string {
	return d.Token
}

// ParseDirective classifies a single token. Matching is exact and
// case-sensitive; anything else is DirectiveUnknown.
func ParseDirective(token string) Directive {
	token = strings.TrimSpace(token)
	d := Directive{Kind: DirectiveUnknown, Token: token}
	switch token {
	case "disabled":
		d.Kind = DirectiveDisabled
	case "development":
		d.Kind = DirectiveDevelopment
	case "important":
		d.Kind = DirectiveImportant
	case "flat":
		d.Kind = DirectiveFlat
	}
	return d
}

// ParseKey splits a raw mapping key into its base name and its directives,
// in the order written. Empty tokens are dropped. A key without a
// separator is returned unchanged with no directives.
func ParseKey(raw string) (string, []Directive) {
	if !strings.Contains(raw, DirectiveSeparator) {
		return raw, nil
	}
	parts := strings.Split(raw, DirectiveSeparator)
	directives := make([]Directive, 0, len(parts)-1)
	for _, token := range parts[1:] {
		if strings.TrimSpace(token) == "" {
			continue
		}
		directives = append(directives, ParseDirective(token))
	}
	return strings.TrimSpace(parts[0]), directives
}

// HasDirective reports whether the raw key carries a directive of the given kind.
func HasDirective(raw string, kind DirectiveKind) bool {
	_, directives := ParseKey(raw)
	for _, d := range directives {
		if d.Kind == kind {
			return true
		}
	}
	return false
}
