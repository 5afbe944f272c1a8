// Copyright 2026 The Capsule Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// stderrRenderer styles the human-readable reports on stderr. The
// renderer detects the terminal's color profile; on a pipe it
// degrades to plain text.
var stderrRenderer = lipgloss.NewRenderer(os.Stderr, termenv.WithColorCache(true))

var (
	passStyle   = stderrRenderer.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	failStyle   = stderrRenderer.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	labelStyle  = stderrRenderer.NewStyle().Foreground(lipgloss.Color("12"))
	digestStyle = stderrRenderer.NewStyle().Faint(true)
)

// reportLine prints an aligned "label: value" detail line to stderr.
func reportLine(label, value string) {
	fmt.Fprintf(os.Stderr, "  %s %s\n", labelStyle.Render(label+":"), digestStyle.Render(value))
}

// reportPass prints the success banner.
func reportPass(message string) {
	fmt.Fprintf(os.Stderr, "%s %s\n", passStyle.Render("PASS"), message)
}

// reportFail prints the failure banner.
func reportFail(message string) {
	fmt.Fprintf(os.Stderr, "%s %s\n", failStyle.Render("FAIL"), message)
}
