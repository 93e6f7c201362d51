// SPDX-FileCopyrightText: 2025 blackjack contributors
//
// SPDX-License-Identifier: Apache-2.0

// Package reporter renders a run's per-test outcomes as one line each and
// computes the process exit code. Grounded on the reference
// implementation's result_formatting.rs; colored's green/red/bold is
// replaced with raw ANSI codes gated by golang.org/x/term.IsTerminal,
// since no example repo in the corpus carries a terminal-color
// dependency to justify adding one solely for this cosmetic concern.
package reporter

import (
	"fmt"
	"io"

	"golang.org/x/term"

	"blackjack.io/blackjack/internal/taxonomy"
	"blackjack.io/blackjack/internal/testrunner"
)

const (
	ansiGreenBold = "\x1b[1;32m"
	ansiRedBold   = "\x1b[1;31m"
	ansiReset     = "\x1b[0m"
)

// Exit codes per the specification's aggregate-exit-code contract.
const (
	ExitAllPassed    = 0
	ExitSomeFailed   = 1
	ExitInvalidInput = 2
)

// Reporter accumulates outcomes and writes one line per test as they
// arrive, followed by a final summary.
type Reporter struct {
	w      io.Writer
	color  bool
	passed int
	failed int
}

// New builds a Reporter writing to w; color is auto-detected via
// term.IsTerminal against fd, matching the common pattern of disabling
// color when output is redirected to a file or pipe.
func New(w io.Writer, fd uintptr) *Reporter {
	return &Reporter{w: w, color: term.IsTerminal(int(fd))}
}

// Report appends one test's outcome and prints its one-line verdict
// immediately, matching the spec's "per-test one-line verdict" contract
// rather than buffering for a final batch print.
func (r *Reporter) Report(o testrunner.Outcome) {
	if o.Passed {
		r.passed++
		fmt.Fprintln(r.w, r.colorize(ansiGreenBold, "Test passed")+"  "+o.TestName)
		return
	}
	r.failed++
	line := r.colorize(ansiRedBold, "Test failed") + "  " + o.TestName + ": " + o.FailedAt
	if o.Err != nil {
		line += fmt.Sprintf("  [%s] %s", taxonomy.CategoryOf(o.Err), o.Err.Error())
	}
	fmt.Fprintln(r.w, line)
}

func (r *Reporter) colorize(code, text string) string {
	if !r.color {
		return text
	}
	return code + text + ansiReset
}

// Summary prints the aggregate pass/fail counts and returns the process
// exit code: 0 if every test passed, 1 if at least one failed.
func (r *Reporter) Summary() int {
	fmt.Fprintf(r.w, "\n%d passed, %d failed\n", r.passed, r.failed)
	if r.failed > 0 {
		return ExitSomeFailed
	}
	return ExitAllPassed
}
