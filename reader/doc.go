// Package reader ties the document-interpretation core together into a
// session: header and version parse, cross-reference load with a one-shot
// repair fallback, catalog and page-tree access, content interpretation,
// and the end-of-session diagnostics report.
//
// A Document is single-goroutine; open one Document per goroutine to
// process files in parallel.
package reader
