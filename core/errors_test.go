package core

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

// TestDiagnosticsBestEffort tests that downgradable faults become flags
func TestDiagnosticsBestEffort(t *testing.T) {
	diag := &Diagnostics{}

	err := diag.Error(ErrFlagBadNumber, fmt.Errorf("%w: bad digit", ErrSyntax))
	if err != nil {
		t.Errorf("best-effort mode propagated a syntax error: %v", err)
	}
	if diag.Errors&ErrFlagBadNumber == 0 {
		t.Error("flag not recorded")
	}
}

// TestDiagnosticsStrict tests that strict mode propagates every fault
func TestDiagnosticsStrict(t *testing.T) {
	diag := &Diagnostics{Strict: true}

	err := diag.Error(ErrFlagBadNumber, fmt.Errorf("%w: bad digit", ErrSyntax))
	if !errors.Is(err, ErrSyntax) {
		t.Errorf("strict mode swallowed the error: %v", err)
	}
	if diag.Errors&ErrFlagBadNumber == 0 {
		t.Error("flag not recorded alongside the error")
	}
}

// TestDiagnosticsHardFaults tests that I/O and allocation failures propagate
// even in best-effort mode
func TestDiagnosticsHardFaults(t *testing.T) {
	diag := &Diagnostics{}

	for _, sentinel := range []error{ErrIO, ErrVM} {
		err := diag.Error(ErrFlagBadXref, fmt.Errorf("%w: disk gone", sentinel))
		if !errors.Is(err, sentinel) {
			t.Errorf("%v was downgraded", sentinel)
		}
	}
}

// TestDiagnosticsFlagOnly tests recording a flag with no error to propagate
func TestDiagnosticsFlagOnly(t *testing.T) {
	diag := &Diagnostics{Strict: true}
	if err := diag.Error(ErrFlagNoHeader, nil); err != nil {
		t.Errorf("nil error was propagated: %v", err)
	}
	if diag.Errors&ErrFlagNoHeader == 0 {
		t.Error("flag not recorded")
	}
}

// TestDiagnosticsMerge tests folding one accumulator into another
func TestDiagnosticsMerge(t *testing.T) {
	a := &Diagnostics{Errors: ErrFlagBadXref, Warnings: WarnUnknownOperator}
	b := &Diagnostics{Errors: ErrFlagNoHeader, Warnings: WarnBadOperands}

	a.Merge(b)
	if a.Errors != ErrFlagBadXref|ErrFlagNoHeader {
		t.Errorf("errors = %v", a.Errors)
	}
	if a.Warnings != WarnUnknownOperator|WarnBadOperands {
		t.Errorf("warnings = %v", a.Warnings)
	}

	a.Merge(nil) // tolerated
}

// TestFlagStrings tests the human-readable flag rendering
func TestFlagStrings(t *testing.T) {
	flags := ErrFlagNoHeader | ErrFlagBadTrailer
	got := flags.Strings()
	if len(got) != 2 {
		t.Fatalf("got %d strings, want 2", len(got))
	}
	if got[0] != "missing document header" {
		t.Errorf("first = %q", got[0])
	}

	joined := flags.String()
	if !strings.Contains(joined, "missing or invalid trailer") {
		t.Errorf("joined = %q", joined)
	}

	warns := WarnUnbalancedSave | WarnUnbalancedTextBlock
	if s := warns.String(); !strings.Contains(s, "unbalanced graphics state save/restore") ||
		!strings.Contains(s, "unbalanced text block") {
		t.Errorf("warning string = %q", s)
	}

	if s := ErrorFlags(0).String(); s != "" {
		t.Errorf("empty flags rendered as %q", s)
	}
}
