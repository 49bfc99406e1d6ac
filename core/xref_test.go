package core

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"testing"
)

// xrefFixture builds a document fragment while tracking byte offsets, so
// sections can point at each other without hand-counted positions.
type xrefFixture struct {
	buf bytes.Buffer
}

func (f *xrefFixture) pos() int64 {
	return int64(f.buf.Len())
}

func (f *xrefFixture) add(s string) int64 {
	off := f.pos()
	f.buf.WriteString(s)
	return off
}

func (f *xrefFixture) finish(startxref int64) io.ReadSeeker {
	fmt.Fprintf(&f.buf, "startxref\n%d\n%%%%EOF\n", startxref)
	return bytes.NewReader(f.buf.Bytes())
}

// TestXRefTableOps tests the entry table operations directly
func TestXRefTableOps(t *testing.T) {
	table := NewXRefTable(2)
	Retain(table)

	if table.Len() != 2 {
		t.Fatalf("len = %d, want 2", table.Len())
	}
	if table.Entry(-1) != nil || table.Entry(2) != nil {
		t.Error("out-of-bounds entry lookup did not return nil")
	}
	if e := table.Entry(0); e.Kind != EntryNone || e.CacheSlot != -1 {
		t.Errorf("fresh entry = %+v", e)
	}

	table.SetFree(0, 65535, 0)
	table.SetUncompressed(5, 0, 123) // grows the table
	table.SetCompressed(4, 9, 2)

	if table.Len() != 6 {
		t.Errorf("len after grow = %d, want 6", table.Len())
	}
	if e := table.Entry(0); e.Kind != EntryFree || e.Generation != 65535 {
		t.Errorf("entry 0 = %+v", e)
	}
	if e := table.Entry(3); e.Kind != EntryNone || e.CacheSlot != -1 {
		t.Errorf("grown entry 3 = %+v", e)
	}
	if e := table.Entry(4); e.Kind != EntryCompressed || e.Container != 9 || e.Index != 2 {
		t.Errorf("entry 4 = %+v", e)
	}
	if e := table.Entry(5); e.Kind != EntryUncompressed || e.Offset != 123 {
		t.Errorf("entry 5 = %+v", e)
	}

	first := NewDict(1)
	table.SetTrailer(first)
	if RefCount(first) != 1 {
		t.Errorf("trailer count = %d, want 1", RefCount(first))
	}
	second := NewDict(1)
	table.SetTrailer(second)
	if RefCount(first) != 0 {
		t.Error("replaced trailer was not released")
	}

	Release(table)
	if RefCount(second) != 0 {
		t.Error("teardown did not release the trailer")
	}
}

// TestLoadClassicTable tests a single classic cross-reference section
func TestLoadClassicTable(t *testing.T) {
	f := &xrefFixture{}
	f.add("%PDF-1.7\n")
	xoff := f.add("xref\n" +
		"0 3\n" +
		"0000000000 65535 f \n" +
		"0000000015 00000 n \n" +
		"0000000100 00002 n \n" +
		"trailer\n<< /Size 3 /Root 1 0 R >>\n")

	table, err := NewXRefParser(f.finish(xoff), nil).Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	defer Release(table)

	if table.Len() != 3 {
		t.Fatalf("len = %d, want 3", table.Len())
	}
	if e := table.Entry(0); e.Kind != EntryFree || e.Generation != 65535 {
		t.Errorf("entry 0 = %+v", e)
	}
	if e := table.Entry(1); e.Kind != EntryUncompressed || e.Offset != 15 {
		t.Errorf("entry 1 = %+v", e)
	}
	if e := table.Entry(2); e.Kind != EntryUncompressed || e.Offset != 100 || e.Generation != 2 {
		t.Errorf("entry 2 = %+v", e)
	}

	if table.Trailer == nil {
		t.Fatal("trailer not retained")
	}
	if ref, ok := table.Trailer.GetRef("Root"); !ok || ref.Number != 1 {
		t.Errorf("trailer Root = %v", table.Trailer.Get("Root"))
	}
}

// TestLoadPrevChain tests that incremental updates are applied newest first
func TestLoadPrevChain(t *testing.T) {
	f := &xrefFixture{}
	f.add("%PDF-1.7\n")
	oldOff := f.add("xref\n" +
		"0 3\n" +
		"0000000000 65535 f \n" +
		"0000000010 00000 n \n" +
		"0000000020 00000 n \n" +
		"trailer\n<< /Size 3 >>\n")
	newOff := f.add(fmt.Sprintf("xref\n"+
		"1 1\n"+
		"0000000111 00000 n \n"+
		"trailer\n<< /Size 3 /Prev %d /Root 1 0 R >>\n", oldOff))

	table, err := NewXRefParser(f.finish(newOff), nil).Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	defer Release(table)

	// The update's entry wins; the older section fills the rest.
	if e := table.Entry(1); e.Offset != 111 {
		t.Errorf("entry 1 offset = %d, want 111", e.Offset)
	}
	if e := table.Entry(2); e.Kind != EntryUncompressed || e.Offset != 20 {
		t.Errorf("entry 2 = %+v", e)
	}

	// The table keeps the newest trailer.
	if _, ok := table.Trailer.GetRef("Root"); !ok {
		t.Error("trailer is not the newest section's")
	}
}

// TestLoadPrevCycle tests best-effort recovery from a /Prev loop
func TestLoadPrevCycle(t *testing.T) {
	f := &xrefFixture{}
	f.add("%PDF-1.7\n")
	off := f.pos()
	f.add(fmt.Sprintf("xref\n"+
		"0 1\n"+
		"0000000000 65535 f \n"+
		"trailer\n<< /Size 1 /Prev %d >>\n", off))

	diag := &Diagnostics{}
	table, err := NewXRefParser(f.finish(off), diag).Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	defer Release(table)

	if diag.Errors&ErrFlagBadXref == 0 {
		t.Error("cycle flag not set")
	}
}

// xrefStreamBody renders binary rows for a /W [1 2 1] stream.
func xrefStreamBody(rows [][3]int64) []byte {
	var buf bytes.Buffer
	for _, r := range rows {
		buf.WriteByte(byte(r[0]))
		buf.WriteByte(byte(r[1] >> 8))
		buf.WriteByte(byte(r[1]))
		buf.WriteByte(byte(r[2]))
	}
	return buf.Bytes()
}

// addXRefStream writes an indirect cross-reference stream object and returns
// its offset.
func (f *xrefFixture) addXRefStream(num int, dictExtra string, rows [][3]int64) int64 {
	body := xrefStreamBody(rows)
	off := f.pos()
	fmt.Fprintf(&f.buf, "%d 0 obj << /Type /XRef /W [1 2 1] /Length %d%s >> stream\n", num, len(body), dictExtra)
	f.buf.Write(body)
	f.buf.WriteString("\nendstream endobj\n")
	return off
}

// TestLoadXRefStream tests the binary cross-reference stream format
func TestLoadXRefStream(t *testing.T) {
	f := &xrefFixture{}
	f.add("%PDF-1.7\n")
	off := f.addXRefStream(1, " /Size 4", [][3]int64{
		{0, 0, 255},  // free
		{1, 64, 0},   // uncompressed at offset 64
		{2, 5, 3},    // member 3 of object stream 5
		{9, 0, 0},    // reserved row type, skipped
	})

	table, err := NewXRefParser(f.finish(off), nil).Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	defer Release(table)

	if e := table.Entry(0); e.Kind != EntryFree || e.Generation != 255 {
		t.Errorf("entry 0 = %+v", e)
	}
	if e := table.Entry(1); e.Kind != EntryUncompressed || e.Offset != 64 {
		t.Errorf("entry 1 = %+v", e)
	}
	if e := table.Entry(2); e.Kind != EntryCompressed || e.Container != 5 || e.Index != 3 {
		t.Errorf("entry 2 = %+v", e)
	}
	if e := table.Entry(3); e.Kind != EntryNone {
		t.Errorf("entry 3 = %+v, want unclaimed", e)
	}

	// The stream dictionary doubles as the trailer.
	if typ, _ := table.Trailer.GetName("Type"); typ != "XRef" {
		t.Errorf("trailer Type = %q", typ)
	}
}

// TestLoadXRefStreamIndex tests explicit /Index subsections
func TestLoadXRefStreamIndex(t *testing.T) {
	f := &xrefFixture{}
	f.add("%PDF-1.7\n")
	off := f.addXRefStream(1, " /Size 10 /Index [5 2]", [][3]int64{
		{1, 40, 0},
		{1, 80, 0},
	})

	table, err := NewXRefParser(f.finish(off), nil).Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	defer Release(table)

	if table.Len() != 10 {
		t.Errorf("len = %d, want 10", table.Len())
	}
	if e := table.Entry(5); e.Kind != EntryUncompressed || e.Offset != 40 {
		t.Errorf("entry 5 = %+v", e)
	}
	if e := table.Entry(6); e.Kind != EntryUncompressed || e.Offset != 80 {
		t.Errorf("entry 6 = %+v", e)
	}
	if e := table.Entry(0); e.Kind != EntryNone {
		t.Errorf("entry 0 = %+v, want unclaimed", e)
	}
}

// TestLoadXRefStreamTruncated tests best-effort handling of short row data
func TestLoadXRefStreamTruncated(t *testing.T) {
	f := &xrefFixture{}
	f.add("%PDF-1.7\n")
	// /Size promises four rows but only one is present.
	off := f.addXRefStream(1, " /Size 4", [][3]int64{
		{1, 32, 0},
	})

	diag := &Diagnostics{}
	table, err := NewXRefParser(f.finish(off), diag).Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	defer Release(table)

	if diag.Errors&ErrFlagBadXrefStream == 0 {
		t.Error("truncation flag not set")
	}
	if e := table.Entry(0); e.Kind != EntryUncompressed || e.Offset != 32 {
		t.Errorf("entry 0 = %+v", e)
	}
	if e := table.Entry(1); e.Kind != EntryNone {
		t.Errorf("entry 1 = %+v, want unclaimed", e)
	}
}

// TestLoadHybrid tests the /XRefStm pointer in a classic trailer
func TestLoadHybrid(t *testing.T) {
	f := &xrefFixture{}
	f.add("%PDF-1.7\n")
	stmOff := f.addXRefStream(8, " /Size 4", [][3]int64{
		{0, 0, 65535},
		{1, 16, 0}, // also claimed by the classic section below
		{2, 5, 0},
		{1, 153, 0},
	})
	xoff := f.add(fmt.Sprintf("xref\n"+
		"1 1\n"+
		"0000000111 00000 n \n"+
		"trailer\n<< /Size 4 /XRefStm %d /Root 1 0 R >>\n", stmOff))

	table, err := NewXRefParser(f.finish(xoff), nil).Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	defer Release(table)

	// The classic entry takes precedence over the stream's.
	if e := table.Entry(1); e.Offset != 111 {
		t.Errorf("entry 1 offset = %d, want 111", e.Offset)
	}
	// Entries only the stream knows about are filled from it.
	if e := table.Entry(2); e.Kind != EntryCompressed || e.Container != 5 {
		t.Errorf("entry 2 = %+v", e)
	}
	if e := table.Entry(3); e.Kind != EntryUncompressed || e.Offset != 153 {
		t.Errorf("entry 3 = %+v", e)
	}
	// The classic trailer remains the document trailer.
	if _, ok := table.Trailer.GetRef("Root"); !ok {
		t.Error("trailer is not the classic section's")
	}
}

// TestLoadMissingStartxref tests the failure path when no index exists
func TestLoadMissingStartxref(t *testing.T) {
	diag := &Diagnostics{}
	parser := NewXRefParser(bytes.NewReader([]byte("no index in here")), diag)
	if _, err := parser.Load(); err == nil {
		t.Fatal("Load succeeded without a startxref")
	}
	if diag.Errors&ErrFlagBadStartxref == 0 {
		t.Error("bad-startxref flag not set")
	}
}

// TestFindStartXref tests tail scanning for the index offset
func TestFindStartXref(t *testing.T) {
	f := &xrefFixture{}
	f.add("%PDF-1.7\n")
	f.add(strings.Repeat("% padding\n", 20))

	rs := f.finish(42)
	off, err := NewXRefParser(rs, nil).FindStartXref()
	if err != nil {
		t.Fatalf("FindStartXref: %v", err)
	}
	if off != 42 {
		t.Errorf("offset = %d, want 42", off)
	}
}
