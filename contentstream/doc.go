// Package contentstream interprets page content streams, dispatching each
// operator to a caller-supplied Device.
//
// The interpreter is deliberately forgiving: unknown operators are warned
// about and skipped (and run-together keywords like "BTTf" are split when
// both halves are known operators), bad operands discard the operator, and
// unbalanced q/Q, BT/ET and marked-content nesting is reported through the
// shared diagnostics rather than aborting the walk. Strict mode turns the
// recoverable faults into hard errors.
//
// Devices that only care about a slice of the operator surface can embed
// NopDevice and override the methods they need.
package contentstream
