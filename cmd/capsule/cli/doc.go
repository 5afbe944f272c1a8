// Copyright 2026 The Capsule Authors
// SPDX-License-Identifier: Apache-2.0

// Package cli provides the command framework for the capsule CLI:
// a nested [Command] tree with lazy pflag flag sets, struct-tag flag
// binding ([FlagsFromParams]), typo suggestions for unknown commands
// and flags, categorized errors ([ToolError]), and conditional JSON
// output ([JSONOutput]).
//
// Commands write human-readable progress to stderr and reserve
// stdout for machine output behind --json, so pipelines can consume
// command output without scraping log lines.
package cli
