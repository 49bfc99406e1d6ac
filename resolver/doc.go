// Package resolver dereferences indirect object references against a loaded
// cross-reference table.
//
// Resolution is backed by a bounded most-recently-used object cache laid out
// as a slot arena. Cross-reference entries carry the slot index of their
// cached object, so a hit costs one array access and no hashing. Each
// dereference saves and restores the file cursor, which makes resolution
// safe to invoke from inside another parse, such as a stream whose /Length
// is itself an indirect reference.
//
// Damaged references degrade to null under the best-effort policy: out of
// range numbers, freed entries, and generation mismatches record a
// diagnostic flag and resolve to null instead of failing the document.
package resolver
