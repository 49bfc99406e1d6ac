package core

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// EntryKind is the storage state of a cross-reference entry.
type EntryKind int

const (
	// EntryNone marks a slot no index section has claimed.
	EntryNone EntryKind = iota
	// EntryFree is an explicitly freed (tombstoned) object number.
	EntryFree
	// EntryUncompressed locates the object at a byte offset in the file.
	EntryUncompressed
	// EntryCompressed locates the object inside an object stream.
	EntryCompressed
)

// XRefEntry is the per object-number record of the cross-reference table.
type XRefEntry struct {
	Kind       EntryKind
	Offset     int64 // byte offset (uncompressed) or next free object (free)
	Generation int
	Container  int // containing object stream number (compressed)
	Index      int // index within the object stream (compressed)
	CacheSlot  int // object cache slot holding the resolved object, or -1
}

// XRefTable maps object numbers to storage locations. It is a dense array
// indexed by object number, sized to the declared object count and grown by
// reallocation when repair discovers higher numbers. The table is itself an
// object variant so a session can own it like any other value.
type XRefTable struct {
	refcount
	entries []XRefEntry
	Trailer *Dict
}

// NewXRefTable creates a table with size entry slots, all unclaimed.
func NewXRefTable(size int) *XRefTable {
	if size < 0 {
		size = 0
	}
	t := &XRefTable{entries: make([]XRefEntry, size)}
	for i := range t.entries {
		t.entries[i].CacheSlot = -1
	}
	return t
}

func (x *XRefTable) Type() ObjectType { return ObjXRef }
func (x *XRefTable) String() string {
	return fmt.Sprintf("xref[%d]", len(x.entries))
}

// Len returns the number of entry slots.
func (x *XRefTable) Len() int {
	return len(x.entries)
}

// Entry returns the entry for objNum, or nil when the number is out of the
// table's bounds.
func (x *XRefTable) Entry(objNum int) *XRefEntry {
	if objNum < 0 || objNum >= len(x.entries) {
		return nil
	}
	return &x.entries[objNum]
}

// Grow reallocates the table so it has at least size slots, copying the
// existing entries.
func (x *XRefTable) Grow(size int) {
	if size <= len(x.entries) {
		return
	}
	grown := make([]XRefEntry, size)
	copy(grown, x.entries)
	for i := len(x.entries); i < size; i++ {
		grown[i].CacheSlot = -1
	}
	x.entries = grown
}

// SetUncompressed records objNum at a byte offset, growing the table when
// repair discovers numbers beyond the declared count.
func (x *XRefTable) SetUncompressed(objNum, gen int, offset int64) {
	if objNum < 0 {
		return
	}
	x.Grow(objNum + 1)
	x.entries[objNum] = XRefEntry{
		Kind:       EntryUncompressed,
		Offset:     offset,
		Generation: gen,
		CacheSlot:  -1,
	}
}

// SetCompressed records objNum as member index of the object stream
// container.
func (x *XRefTable) SetCompressed(objNum, container, index int) {
	if objNum < 0 {
		return
	}
	x.Grow(objNum + 1)
	x.entries[objNum] = XRefEntry{
		Kind:      EntryCompressed,
		Container: container,
		Index:     index,
		CacheSlot: -1,
	}
}

// SetFree tombstones objNum.
func (x *XRefTable) SetFree(objNum, gen int, nextFree int64) {
	if objNum < 0 {
		return
	}
	x.Grow(objNum + 1)
	x.entries[objNum] = XRefEntry{
		Kind:       EntryFree,
		Offset:     nextFree,
		Generation: gen,
		CacheSlot:  -1,
	}
}

// SetTrailer replaces the table's trailer dictionary, taking an ownership
// share.
func (x *XRefTable) SetTrailer(d *Dict) {
	old := x.Trailer
	x.Trailer = d
	Retain(d)
	Release(old)
}

func (x *XRefTable) teardown() {
	x.torn = true
	trailer := x.Trailer
	x.Trailer = nil
	x.entries = nil
	Release(trailer)
}

// pendingEntry buffers a parsed index row until the section's declared size
// is known.
type pendingEntry struct {
	objNum    int
	kind      EntryKind
	offset    int64
	gen       int
	container int
	index     int
}

// XRefParser locates and parses the document's cross-reference index:
// classic tables, cross-reference streams, hybrid files, and /Prev chains
// from incremental updates.
type XRefParser struct {
	rs   io.ReadSeeker
	diag *Diagnostics
}

// NewXRefParser creates a parser over the document bytes. diag may be nil.
func NewXRefParser(rs io.ReadSeeker, diag *Diagnostics) *XRefParser {
	if diag == nil {
		diag = &Diagnostics{}
	}
	return &XRefParser{rs: rs, diag: diag}
}

// FindStartXref finds the byte offset of the index by scanning the file tail
// for the startxref keyword.
func (x *XRefParser) FindStartXref() (int64, error) {
	fileSize, err := x.rs.Seek(0, io.SeekEnd)
	if err != nil {
		return 0, fmt.Errorf("%w: seek to end: %v", ErrIO, err)
	}

	readSize := int64(1024)
	if fileSize < readSize {
		readSize = fileSize
	}

	if _, err := x.rs.Seek(fileSize-readSize, io.SeekStart); err != nil {
		return 0, fmt.Errorf("%w: seek to startxref area: %v", ErrIO, err)
	}

	buf := make([]byte, readSize)
	n, err := io.ReadFull(x.rs, buf)
	if err != nil && err != io.ErrUnexpectedEOF {
		return 0, fmt.Errorf("%w: read startxref area: %v", ErrIO, err)
	}
	buf = buf[:n]

	idx := bytes.LastIndex(buf, []byte("startxref"))
	if idx == -1 {
		return 0, fmt.Errorf("%w: startxref not found", ErrSyntax)
	}

	rest := strings.TrimSpace(string(buf[idx+len("startxref"):]))
	fields := strings.Fields(rest)
	if len(fields) == 0 {
		return 0, fmt.Errorf("%w: startxref with no offset", ErrSyntax)
	}
	offset, err := strconv.ParseInt(fields[0], 10, 64)
	if err != nil || offset < 0 || offset >= fileSize {
		return 0, fmt.Errorf("%w: invalid startxref offset %q", ErrRange, fields[0])
	}

	return offset, nil
}

// Load locates the index via startxref and follows the /Prev chain through
// every incremental update, newest first. Entries from older sections never
// override newer ones. The returned table owns the newest trailer.
func (x *XRefParser) Load() (*XRefTable, error) {
	offset, err := x.FindStartXref()
	if err != nil {
		x.diag.Errors |= ErrFlagBadStartxref
		return nil, err
	}

	var table *XRefTable
	visited := make(map[int64]bool)

	for offset > 0 {
		if visited[offset] {
			if derr := x.diag.Error(ErrFlagBadXref, fmt.Errorf("%w: cross-reference sections form a cycle at offset %d", ErrCircular, offset)); derr != nil {
				releaseTable(table)
				return nil, derr
			}
			break
		}
		visited[offset] = true

		trailer, err := x.parseSection(offset, &table)
		if err != nil {
			releaseTable(table)
			return nil, err
		}

		if table.Trailer == nil {
			table.SetTrailer(trailer)
		}

		offset = 0
		if prev, ok := trailer.GetInt("Prev"); ok {
			offset = int64(prev)
		}
		Release(trailer)
	}

	if table == nil {
		return nil, fmt.Errorf("%w: no cross-reference section found", ErrSyntax)
	}
	return table, nil
}

func releaseTable(t *XRefTable) {
	if t != nil {
		Release(t)
	}
}

// parseSection parses one index section at offset, classic or stream,
// allocating *table on first use and filling unclaimed slots. It returns the
// section's trailer dictionary with one caller-owned share.
func (x *XRefParser) parseSection(offset int64, table **XRefTable) (*Dict, error) {
	if _, err := x.rs.Seek(offset, io.SeekStart); err != nil {
		return nil, fmt.Errorf("%w: seek to xref at %d: %v", ErrIO, offset, err)
	}

	parser := NewParser(x.rs, x.diag)
	tok := parser.CurrentToken()
	if tok == nil {
		return nil, fmt.Errorf("%w: empty cross-reference section at %d", ErrSyntax, offset)
	}

	switch tok.Type {
	case TokenXref:
		return x.parseClassicSection(parser, table)
	case TokenInteger:
		return x.parseStreamSection(parser, table)
	default:
		x.diag.Errors |= ErrFlagBadXref
		return nil, fmt.Errorf("%w: cross-reference section at %d starts with %q", ErrSyntax, offset, tok.Value)
	}
}

// parseClassicSection parses "xref" subsections followed by a trailer.
// A hybrid-file /XRefStm pointer is followed after the classic entries are
// applied, so its entries land at lower precedence.
func (x *XRefParser) parseClassicSection(parser *Parser, table **XRefTable) (*Dict, error) {
	parser.nextToken() // consume the xref keyword

	var pending []pendingEntry

	for {
		tok := parser.CurrentToken()
		if tok == nil || tok.Type == TokenEOF {
			x.diag.Errors |= ErrFlagBadXref
			return nil, fmt.Errorf("%w: cross-reference table without trailer", ErrSyntax)
		}
		if tok.Type == TokenTrailer {
			parser.nextToken()
			break
		}
		if tok.Type != TokenInteger {
			x.diag.Errors |= ErrFlagBadXref
			return nil, fmt.Errorf("%w: bad subsection header token %q", ErrSyntax, tok.Value)
		}

		first, err := parser.intFromToken(tok)
		if err != nil {
			return nil, err
		}
		parser.nextToken()

		tok = parser.CurrentToken()
		if tok == nil || tok.Type != TokenInteger {
			x.diag.Errors |= ErrFlagBadXref
			return nil, fmt.Errorf("%w: subsection header missing count", ErrSyntax)
		}
		count, err := parser.intFromToken(tok)
		if err != nil {
			return nil, err
		}
		parser.nextToken()

		for i := 0; i < int(count); i++ {
			entry, err := x.parseClassicEntry(parser, int(first)+i)
			if err != nil {
				return nil, err
			}
			pending = append(pending, entry)
		}
	}

	trailerObj, err := parser.ParseObject()
	if err != nil {
		x.diag.Errors |= ErrFlagBadTrailer
		return nil, fmt.Errorf("failed to parse trailer dictionary: %w", err)
	}
	trailer, ok := trailerObj.(*Dict)
	if !ok {
		Release(trailerObj)
		x.diag.Errors |= ErrFlagBadTrailer
		return nil, fmt.Errorf("%w: trailer is not a dictionary, got %v", ErrType, trailerObj.Type())
	}

	x.applyPending(trailer, table, pending)

	// Hybrid file: the trailer names a cross-reference stream whose entries
	// fill anything the classic section did not claim.
	if stmOff, ok := trailer.GetInt("XRefStm"); ok {
		if _, err := x.rs.Seek(int64(stmOff), io.SeekStart); err == nil {
			sub := NewParser(x.rs, x.diag)
			if hybridTrailer, err := x.parseStreamSection(sub, table); err != nil {
				if derr := x.diag.Error(ErrFlagBadXrefStream, err); derr != nil {
					Release(trailer)
					return nil, derr
				}
			} else {
				Release(hybridTrailer)
			}
		}
	}

	return trailer, nil
}

// parseClassicEntry reads one "offset generation n|f" row.
func (x *XRefParser) parseClassicEntry(parser *Parser, objNum int) (pendingEntry, error) {
	tok := parser.CurrentToken()
	if tok == nil || tok.Type != TokenInteger {
		x.diag.Errors |= ErrFlagBadXref
		return pendingEntry{}, fmt.Errorf("%w: xref entry for object %d missing offset", ErrSyntax, objNum)
	}
	offset, err := parser.intFromToken(tok)
	if err != nil {
		return pendingEntry{}, err
	}
	parser.nextToken()

	tok = parser.CurrentToken()
	if tok == nil || tok.Type != TokenInteger {
		x.diag.Errors |= ErrFlagBadXref
		return pendingEntry{}, fmt.Errorf("%w: xref entry for object %d missing generation", ErrSyntax, objNum)
	}
	gen, err := parser.intFromToken(tok)
	if err != nil {
		return pendingEntry{}, err
	}
	parser.nextToken()

	tok = parser.CurrentToken()
	if tok == nil || tok.Type != TokenKeyword || len(tok.Value) != 1 {
		x.diag.Errors |= ErrFlagBadXref
		return pendingEntry{}, fmt.Errorf("%w: xref entry for object %d missing in-use flag", ErrSyntax, objNum)
	}
	var kind EntryKind
	switch tok.Value[0] {
	case 'n':
		kind = EntryUncompressed
	case 'f':
		kind = EntryFree
	default:
		x.diag.Errors |= ErrFlagBadXref
		return pendingEntry{}, fmt.Errorf("%w: invalid in-use flag %q for object %d", ErrSyntax, tok.Value, objNum)
	}
	parser.nextToken()

	return pendingEntry{
		objNum: objNum,
		kind:   kind,
		offset: int64(offset),
		gen:    int(gen),
	}, nil
}

// parseStreamSection parses a cross-reference stream: an indirect stream
// object whose decoded data is fixed-width binary rows.
func (x *XRefParser) parseStreamSection(parser *Parser, table **XRefTable) (*Dict, error) {
	indirect, err := parser.ParseIndirectObject()
	if err != nil {
		x.diag.Errors |= ErrFlagBadXrefStream
		return nil, fmt.Errorf("failed to parse cross-reference stream object: %w", err)
	}
	stream, ok := indirect.Object.(*Stream)
	if !ok {
		Release(indirect.Object)
		x.diag.Errors |= ErrFlagBadXrefStream
		return nil, fmt.Errorf("%w: cross-reference stream is %v", ErrType, indirect.Object.Type())
	}
	defer Release(stream)

	dict := stream.Dict
	if typ, _ := dict.GetName("Type"); typ != "XRef" {
		x.diag.Errors |= ErrFlagBadXrefStream
		return nil, fmt.Errorf("%w: cross-reference stream has type %q", ErrType, typ)
	}

	size, ok := dict.GetInt("Size")
	if !ok || size < 0 {
		x.diag.Errors |= ErrFlagBadXrefStream
		return nil, fmt.Errorf("%w: cross-reference stream missing /Size", ErrSyntax)
	}

	wArr, ok := dict.GetArray("W")
	if !ok || wArr.Len() < 3 {
		x.diag.Errors |= ErrFlagBadXrefStream
		return nil, fmt.Errorf("%w: cross-reference stream missing /W", ErrSyntax)
	}
	var widths [3]int
	for i := 0; i < 3; i++ {
		w, ok := wArr.GetInt(i)
		if !ok || w < 0 || w > 8 {
			x.diag.Errors |= ErrFlagBadXrefStream
			return nil, fmt.Errorf("%w: bad /W entry at %d", ErrRange, i)
		}
		widths[i] = int(w)
	}
	rowLen := widths[0] + widths[1] + widths[2]
	if rowLen == 0 {
		x.diag.Errors |= ErrFlagBadXrefStream
		return nil, fmt.Errorf("%w: zero-width cross-reference rows", ErrRange)
	}

	// Subsection ranges; the default is the whole table.
	var ranges []int
	if idxArr, ok := dict.GetArray("Index"); ok {
		if idxArr.Len()%2 != 0 {
			x.diag.Errors |= ErrFlagBadXrefStream
			return nil, fmt.Errorf("%w: /Index with odd length", ErrRange)
		}
		for i := 0; i < idxArr.Len(); i++ {
			v, ok := idxArr.GetInt(i)
			if !ok || v < 0 {
				x.diag.Errors |= ErrFlagBadXrefStream
				return nil, fmt.Errorf("%w: bad /Index entry", ErrRange)
			}
			ranges = append(ranges, int(v))
		}
	} else {
		ranges = []int{0, int(size)}
	}

	data, err := stream.Decode()
	if err != nil {
		x.diag.Errors |= ErrFlagBadXrefStream
		return nil, fmt.Errorf("failed to decode cross-reference stream: %w", err)
	}

	var pending []pendingEntry
	pos := 0
	for r := 0; r < len(ranges); r += 2 {
		start, count := ranges[r], ranges[r+1]
		for i := 0; i < count; i++ {
			if pos+rowLen > len(data) {
				if derr := x.diag.Error(ErrFlagBadXrefStream, fmt.Errorf("%w: cross-reference stream data truncated", ErrRange)); derr != nil {
					return nil, derr
				}
				break
			}
			row := data[pos : pos+rowLen]
			pos += rowLen

			// A zero-width first field defaults the row type to 1.
			typ := int64(1)
			if widths[0] > 0 {
				typ = beInt(row[:widths[0]])
			}
			f2 := beInt(row[widths[0] : widths[0]+widths[1]])
			f3 := beInt(row[widths[0]+widths[1]:])

			entry := pendingEntry{objNum: start + i}
			switch typ {
			case 0:
				entry.kind = EntryFree
				entry.offset = f2
				entry.gen = int(f3)
			case 1:
				entry.kind = EntryUncompressed
				entry.offset = f2
				entry.gen = int(f3)
			case 2:
				entry.kind = EntryCompressed
				entry.container = int(f2)
				entry.index = int(f3)
			default:
				// Unknown row types are reserved; skip them.
				continue
			}
			pending = append(pending, entry)
		}
	}

	trailer := stream.Dict
	Retain(trailer)
	x.applyPending(trailer, table, pending)
	return trailer, nil
}

// applyPending allocates the table on first use and fills every slot not
// already claimed by a newer section.
func (x *XRefParser) applyPending(trailer *Dict, table **XRefTable, pending []pendingEntry) {
	if *table == nil {
		size := 0
		if s, ok := trailer.GetInt("Size"); ok && s > 0 {
			size = int(s)
		} else {
			for _, e := range pending {
				if e.objNum+1 > size {
					size = e.objNum + 1
				}
			}
		}
		*table = NewXRefTable(size)
		Retain(*table)
	}

	t := *table
	for _, e := range pending {
		if e.objNum >= t.Len() {
			t.Grow(e.objNum + 1)
		}
		slot := t.Entry(e.objNum)
		if slot.Kind != EntryNone {
			continue // a newer section already claimed this number
		}
		*slot = XRefEntry{
			Kind:       e.kind,
			Offset:     e.offset,
			Generation: e.gen,
			Container:  e.container,
			Index:      e.index,
			CacheSlot:  -1,
		}
	}
}

// beInt decodes a big-endian unsigned integer of up to 8 bytes.
func beInt(b []byte) int64 {
	var v int64
	for _, x := range b {
		v = v<<8 | int64(x)
	}
	return v
}
