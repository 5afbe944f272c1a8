// Copyright 2026 The Capsule Authors
// SPDX-License-Identifier: Apache-2.0

// Package schema provides the fixed-subset structural validator the
// protocol applies to every artifact before it is trusted, plus the
// embedded schema documents for the three artifact kinds.
//
// The validator intentionally implements only a narrow keyword set:
// type, const, enum, pattern, format (date-time), minimum, minItems,
// required, properties with additionalProperties enforcement, and
// items. It is not a general JSON Schema engine, and it must not be
// replaced by one: the protocol's fail-closed guarantees depend on
// this exact accept/reject behavior, and a general engine's leniency
// or strictness on keywords outside this list would change it.
//
// [Validate] returns a list of path-qualified human-readable issues;
// an empty list means the document is valid. Callers treat any issue
// as fatal to the current operation.
//
// The artifact schemas ([Frame], [Anchor], [Binding]) are authored as
// embedded JSONC and parsed once at init. A malformed embedded schema
// is a programmer error and panics at startup.
package schema
