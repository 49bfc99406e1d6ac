package core

import (
	"errors"
	"strings"
)

// Error taxonomy. Every fault the core raises wraps one of these sentinels,
// so callers can classify with errors.Is regardless of the message text.
var (
	// ErrSyntax indicates a malformed token stream.
	ErrSyntax = errors.New("syntax error")
	// ErrType indicates the wrong object variant where a specific one was
	// required.
	ErrType = errors.New("type error")
	// ErrRange indicates an index or offset outside valid bounds.
	ErrRange = errors.New("range error")
	// ErrIO indicates a stream read or seek failure. Never downgraded.
	ErrIO = errors.New("io error")
	// ErrVM indicates an allocation failure. Never downgraded.
	ErrVM = errors.New("allocation failure")
	// ErrCircular indicates an object that directly or indirectly
	// dereferences itself.
	ErrCircular = errors.New("circular reference")
	// ErrUndefined indicates a requested object number or key that does not
	// exist. Often a "not present" signal rather than a fault.
	ErrUndefined = errors.New("undefined object")
	// ErrStackUnderflow indicates an operator found fewer operands than it
	// requires.
	ErrStackUnderflow = errors.New("operand stack underflow")
	// ErrEncrypted indicates an encrypted document, which is not supported.
	ErrEncrypted = errors.New("encrypted document not supported")
)

// ErrorFlags accumulates the distinct error kinds seen while processing a
// document. One bit per kind; the count of occurrences is not tracked.
type ErrorFlags uint32

const (
	ErrFlagNoHeader ErrorFlags = 1 << iota
	ErrFlagBadStartxref
	ErrFlagBadXref
	ErrFlagBadXrefStream
	ErrFlagMissingEndstream
	ErrFlagMissingEndobj
	ErrFlagUnknownFilter
	ErrFlagBadNumber
	ErrFlagBadString
	ErrFlagBadName
	ErrFlagBadToken
	ErrFlagBadStreamLength
	ErrFlagCircularRef
	ErrFlagBadReference
	ErrFlagBadObjStream
	ErrFlagBadPageTree
	ErrFlagBadTrailer
	ErrFlagRepaired
)

var errorFlagNames = []struct {
	flag ErrorFlags
	name string
}{
	{ErrFlagNoHeader, "missing document header"},
	{ErrFlagBadStartxref, "missing or invalid startxref"},
	{ErrFlagBadXref, "invalid cross-reference table"},
	{ErrFlagBadXrefStream, "invalid cross-reference stream"},
	{ErrFlagMissingEndstream, "missing endstream"},
	{ErrFlagMissingEndobj, "missing endobj"},
	{ErrFlagUnknownFilter, "unknown decompression filter"},
	{ErrFlagBadNumber, "malformed number"},
	{ErrFlagBadString, "unterminated or malformed string"},
	{ErrFlagBadName, "malformed name"},
	{ErrFlagBadToken, "malformed token"},
	{ErrFlagBadStreamLength, "incorrect stream length"},
	{ErrFlagCircularRef, "circular reference"},
	{ErrFlagBadReference, "reference to bad object number"},
	{ErrFlagBadObjStream, "invalid object stream"},
	{ErrFlagBadPageTree, "invalid page tree"},
	{ErrFlagBadTrailer, "missing or invalid trailer"},
	{ErrFlagRepaired, "cross-reference table rebuilt by repair"},
}

// Strings returns a human-readable description of every set flag.
func (f ErrorFlags) Strings() []string {
	var out []string
	for _, e := range errorFlagNames {
		if f&e.flag != 0 {
			out = append(out, e.name)
		}
	}
	return out
}

func (f ErrorFlags) String() string {
	return strings.Join(f.Strings(), "; ")
}

// WarningFlags accumulates the distinct warning kinds seen while processing
// a document.
type WarningFlags uint32

const (
	WarnUnbalancedSave WarningFlags = 1 << iota
	WarnStackGarbage
	WarnUnterminatedMarkedContent
	WarnTextOutsideBlock
	WarnUnbalancedTextBlock
	WarnUnknownOperator
	WarnSplitOperator
	WarnBadOperands
	WarnUnmatchedClose
	WarnBadInlineImage
	WarnBadDictKey
)

var warningFlagNames = []struct {
	flag WarningFlags
	name string
}{
	{WarnUnbalancedSave, "unbalanced graphics state save/restore"},
	{WarnStackGarbage, "operands left on stack after content stream"},
	{WarnUnterminatedMarkedContent, "unterminated marked content"},
	{WarnTextOutsideBlock, "text operator outside text block"},
	{WarnUnbalancedTextBlock, "unbalanced text block"},
	{WarnUnknownOperator, "unknown content stream operator"},
	{WarnSplitOperator, "concatenated operators split"},
	{WarnBadOperands, "operator with bad operands"},
	{WarnUnmatchedClose, "unmatched closing delimiter"},
	{WarnBadInlineImage, "malformed inline image"},
	{WarnBadDictKey, "dictionary key is not a name"},
}

// Strings returns a human-readable description of every set flag.
func (f WarningFlags) Strings() []string {
	var out []string
	for _, w := range warningFlagNames {
		if f&w.flag != 0 {
			out = append(out, w.name)
		}
	}
	return out
}

func (f WarningFlags) String() string {
	return strings.Join(f.Strings(), "; ")
}

// Diagnostics accumulates error and warning kinds across a whole document
// and carries the session's propagation policy. When Strict is set, every
// recorded error is returned to the caller immediately; otherwise parsing
// faults are downgraded to a flag and a best-effort substitute, and only
// I/O and allocation failures propagate.
type Diagnostics struct {
	Errors   ErrorFlags
	Warnings WarningFlags
	Strict   bool
}

// Error records an error kind. It returns err when the fault must abort the
// current operation (strict mode, or a non-downgradable fault), nil when
// processing should continue with a substitute value.
func (d *Diagnostics) Error(flag ErrorFlags, err error) error {
	d.Errors |= flag
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrIO) || errors.Is(err, ErrVM) {
		return err
	}
	if d.Strict {
		return err
	}
	return nil
}

// Warn records a warning kind. Warnings never abort processing.
func (d *Diagnostics) Warn(flag WarningFlags) {
	d.Warnings |= flag
}

// Merge folds the flags of other into d.
func (d *Diagnostics) Merge(other *Diagnostics) {
	if other == nil {
		return
	}
	d.Errors |= other.Errors
	d.Warnings |= other.Warnings
}
