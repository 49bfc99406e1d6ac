// Package core provides the low-level document parsing primitives: the
// lexer, the reference-counted object model, the operand stack, the object
// and stream parsers, object streams, and the cross-reference table.
//
// # Object types
//
// All object variants satisfy the Object interface:
//
//   - [Null] - the null object; [NullValue] is the shared singleton
//   - [Bool], [Int], [Real], [String], [Name], [Keyword] - immutable scalars
//   - [Array], [Dict] - reference-counted containers
//   - [Stream] - a dictionary plus raw bytes
//   - [IndirectRef] - a lazy (number, generation) handle
//   - [XRefTable] - the cross-reference index
//
// # Ownership
//
// Composite objects are reference counted: [Retain] adds an ownership share,
// [Release] drops one, and the last release tears the object down, releasing
// every child it owns. Scalars are plain values; retaining or releasing them
// is a no-op. Objects returned by the parsers carry one share owned by the
// caller.
//
// # Parsing
//
// [Lexer] turns bytes into tokens, promoting the grammar keywords to typed
// tokens. [Parser] builds objects on an operand [Stack]: open delimiters
// push [Mark] sentinels, close delimiters unwind to the matching mark and
// replace it with the finished composite.
//
// # Cross-reference index
//
// [XRefTable] is a dense table of [XRefEntry] records indexed by object
// number. [XRefParser] loads classic tables, cross-reference streams, and
// hybrid files, following /Prev chains across incremental updates.
// [ObjectStream] extracts the members of compressed object containers.
//
// # Diagnostics
//
// Faults encountered while parsing are accumulated on a [Diagnostics] value
// as one bit per distinct kind. Under the default best-effort policy most
// parsing faults are recorded and substituted; in strict mode they abort.
// I/O and allocation failures always abort.
package core
