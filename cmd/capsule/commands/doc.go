// Copyright 2026 The Capsule Authors
// SPDX-License-Identifier: Apache-2.0

// Package commands defines the capsule CLI command tree: seal,
// verify, keygen, registry, bundle, and broadcast. Each command file
// owns one top-level command and its parameter struct; Root
// assembles the tree for main.
package commands
