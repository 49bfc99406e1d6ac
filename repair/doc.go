// Package repair reconstructs a usable cross-reference table for damaged
// files whose stored tables are missing, truncated, or lie about offsets.
//
// The scan makes two passes over the raw bytes. The first finds every
// "N G obj" header, skipping stream payloads so embedded bytes cannot fake
// a header; later definitions of an object number shadow earlier ones. The
// second pass re-parses each discovered object to capture the document
// catalog and to expand object streams into compressed entries. A trailer
// is recovered from the file when one survives, or synthesized around the
// captured catalog when none does.
package repair
