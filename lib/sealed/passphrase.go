// Copyright 2026 The Capsule Authors
// SPDX-License-Identifier: Apache-2.0

package sealed

import (
	"fmt"
	"os"

	"golang.org/x/term"
)

// ReadPassphrase prompts for a passphrase on the controlling terminal with
// echo disabled. When confirm is true the passphrase is read twice and the
// two entries must match. The prompt goes to stderr so stdout stays clean
// for artifact output.
func ReadPassphrase(confirm bool) (string, error) {
	stdinFileDescriptor := int(os.Stdin.Fd())
	if !term.IsTerminal(stdinFileDescriptor) {
		return "", fmt.Errorf("no terminal available for interactive passphrase prompt (use --passphrase-file)")
	}

	fmt.Fprint(os.Stderr, "Passphrase: ")
	first, err := term.ReadPassword(stdinFileDescriptor)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("reading passphrase: %w", err)
	}
	if len(first) == 0 {
		return "", fmt.Errorf("passphrase is empty")
	}

	if confirm {
		fmt.Fprint(os.Stderr, "Confirm passphrase: ")
		second, err := term.ReadPassword(stdinFileDescriptor)
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", fmt.Errorf("reading passphrase confirmation: %w", err)
		}
		if string(first) != string(second) {
			return "", fmt.Errorf("passphrases do not match")
		}
	}
	return string(first), nil
}

// ReadPassphraseFile reads a passphrase from a file, stripping trailing
// newlines (common with echo/printf pipelines).
func ReadPassphraseFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", path, err)
	}
	for len(data) > 0 && (data[len(data)-1] == '\n' || data[len(data)-1] == '\r') {
		data = data[:len(data)-1]
	}
	if len(data) == 0 {
		return "", fmt.Errorf("passphrase file %s is empty", path)
	}
	return string(data), nil
}
