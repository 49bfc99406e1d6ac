package repair

import (
	"bytes"
	"fmt"
	"io"
	"strconv"

	"github.com/mblythe/vellum/core"
	"github.com/mblythe/vellum/logger"
	"github.com/mblythe/vellum/resolver"
)

// headerWindow bounds how far into the file the %PDF- signature may sit.
// Leading junk before the signature is tolerated within this window.
const headerWindow = 1024

// ReconstructXRef rebuilds a cross-reference table for a file whose stored
// tables are missing or unusable. The whole file is scanned for object
// headers ("N G obj"); when the same object number appears more than once
// the later occurrence wins, matching the incremental-update rule that the
// newest definition shadows older ones. Stream bodies are skipped so their
// payload bytes cannot fake an object header.
//
// A second pass re-parses each discovered object once, to capture the
// document catalog and to expand object streams into compressed entries.
// The recovered trailer (the file's last trailer dictionary, or a synthetic
// one built around the catalog) is attached to the returned table.
//
// The returned table carries one caller-owned share. maxScan bounds the
// bytes read; 0 means no bound.
func ReconstructXRef(rs io.ReadSeeker, maxScan int64, diag *core.Diagnostics) (*core.XRefTable, error) {
	data, err := readAll(rs, maxScan)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty file", core.ErrSyntax)
	}

	if err := checkHeader(data, diag); err != nil {
		return nil, err
	}

	offsets, maxNum := scanObjectHeaders(data)
	if len(offsets) == 0 {
		return nil, fmt.Errorf("%w: no object headers found", core.ErrSyntax)
	}

	table := core.NewXRefTable(maxNum + 1)
	core.Retain(table)
	for num, loc := range offsets {
		table.SetUncompressed(num, loc.gen, loc.offset)
	}

	rootRef, surveyErr := surveyObjects(data, table, diag)
	if surveyErr != nil {
		core.Release(table)
		return nil, surveyErr
	}

	if err := recoverTrailer(data, table, rootRef, diag); err != nil {
		core.Release(table)
		return nil, err
	}

	diag.Errors |= core.ErrFlagRepaired
	logger.Debug("cross-reference table reconstructed", "objects", len(offsets), "size", table.Len())
	return table, nil
}

func readAll(rs io.ReadSeeker, maxScan int64) ([]byte, error) {
	size, err := rs.Seek(0, io.SeekEnd)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrIO, err)
	}
	if maxScan > 0 && size > maxScan {
		return nil, fmt.Errorf("%w: file of %d bytes exceeds repair scan limit %d", core.ErrVM, size, maxScan)
	}
	if _, err := rs.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrIO, err)
	}
	data := make([]byte, size)
	if _, err := io.ReadFull(rs, data); err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrIO, err)
	}
	return data, nil
}

// checkHeader looks for the %PDF- signature inside the leading window.
func checkHeader(data []byte, diag *core.Diagnostics) error {
	window := data
	if len(window) > headerWindow {
		window = window[:headerWindow]
	}
	if bytes.Index(window, []byte("%PDF-")) < 0 {
		return diag.Error(core.ErrFlagNoHeader,
			fmt.Errorf("%w: no %%PDF- signature in first %d bytes", core.ErrSyntax, headerWindow))
	}
	return nil
}

type objectLocation struct {
	offset int64
	gen    int
}

// scanObjectHeaders finds every "N G obj" header in data. The header's
// offset is the start of its line, so a later parse begins at the object
// number. Bodies of stream objects are jumped over by searching for the
// literal endstream keyword.
func scanObjectHeaders(data []byte) (map[int]objectLocation, int) {
	offsets := make(map[int]objectLocation)
	maxNum := 0

	objMarker := []byte(" obj")
	search := 0
	for search < len(data) {
		idx := bytes.Index(data[search:], objMarker)
		if idx < 0 {
			break
		}
		pos := search + idx
		search = pos + len(objMarker)

		// The keyword must stand alone, not be a suffix of a longer token.
		if end := pos + len(objMarker); end < len(data) && !isObjBoundary(data[end]) {
			continue
		}

		// Walk back over "N G" so the recorded offset lands exactly on the
		// object number, even when the line carries other text before it.
		genStart, genEnd := tokenBefore(data, pos)
		if genStart < 0 {
			continue
		}
		numStart, numEnd := tokenBefore(data, genStart)
		if numStart < 0 {
			continue
		}
		num, err1 := strconv.Atoi(string(data[numStart:numEnd]))
		gen, err2 := strconv.Atoi(string(data[genStart:genEnd]))
		if err1 != nil || err2 != nil || num <= 0 || gen < 0 {
			continue
		}

		// Last writer wins: a later definition of the same number shadows
		// the earlier one.
		offsets[num] = objectLocation{offset: int64(numStart), gen: gen}
		if num > maxNum {
			maxNum = num
		}

		search = skipStreamBody(data, search)
	}
	return offsets, maxNum
}

// tokenBefore walks backwards from end over whitespace and then over one
// run of digits, returning the digit run's bounds. start is -1 when no
// digit run precedes end.
func tokenBefore(data []byte, end int) (start, stop int) {
	i := end
	for i > 0 && isSpace(data[i-1]) {
		i--
	}
	stop = i
	for i > 0 && data[i-1] >= '0' && data[i-1] <= '9' {
		i--
	}
	if i == stop {
		return -1, stop
	}
	return i, stop
}

func isSpace(b byte) bool {
	switch b {
	case ' ', '\t', '\r', '\n', '\f', 0:
		return true
	}
	return false
}

func isObjBoundary(b byte) bool {
	switch b {
	case ' ', '\t', '\r', '\n', '\f', 0, '<', '[', '/', '(', '%':
		return true
	}
	return false
}

// skipStreamBody advances past a stream payload when the object starting
// near from turns out to be a stream, so payload bytes are never mistaken
// for object headers. It returns from unchanged for non-stream objects.
func skipStreamBody(data []byte, from int) int {
	segment := data[from:]
	idxEnd := bytes.Index(segment, []byte("endobj"))
	idxStream := bytes.Index(segment, []byte("stream"))

	// An "endstream" before any plain "stream" means we are already past
	// the body; so does an endobj arriving first.
	if idxStream < 0 {
		return from
	}
	if idxStream >= 3 && bytes.Equal(segment[idxStream-3:idxStream], []byte("end")) {
		return from
	}
	if idxEnd >= 0 && idxEnd < idxStream {
		return from
	}

	after := from + idxStream + len("stream")
	idx := bytes.Index(data[after:], []byte("endstream"))
	if idx < 0 {
		return len(data)
	}
	return after + idx + len("endstream")
}

// surveyObjects re-parses each recovered object once. It captures the
// document catalog for trailer synthesis and expands object streams into
// compressed entries, which override the offsets guessed in the first pass
// for their members.
func surveyObjects(data []byte, table *core.XRefTable, diag *core.Diagnostics) (core.IndirectRef, error) {
	var rootRef core.IndirectRef

	res := resolver.New(bytes.NewReader(data), table, diag)
	defer res.Close()

	for num := 1; num < table.Len(); num++ {
		entry := table.Entry(num)
		if entry.Kind != core.EntryUncompressed {
			continue
		}

		parser := core.NewParser(bytes.NewReader(data[entry.Offset:]), diag)
		parser.SetReferenceResolver(res)
		ind, err := parser.ParseIndirectObject()
		if err != nil {
			// A header the scan misread is dropped rather than trusted.
			logger.Debug("repair: dropping unparseable object", "num", num, "err", err)
			table.SetFree(num, 0, 0)
			continue
		}

		switch obj := ind.Object.(type) {
		case *core.Dict:
			if typ, ok := obj.GetName("Type"); ok && typ == "Catalog" {
				rootRef = ind.Ref
			}
		case *core.Stream:
			if typ, ok := obj.Dict.GetName("Type"); ok && typ == "ObjStm" {
				if err := expandObjectStream(obj, num, table, diag); err != nil {
					if derr := diag.Error(core.ErrFlagBadObjStream, err); derr != nil {
						core.Release(ind.Object)
						return rootRef, derr
					}
				}
			}
		}
		core.Release(ind.Object)
	}
	return rootRef, nil
}

// expandObjectStream records Compressed entries for every member of the
// object stream stored under containerNum.
func expandObjectStream(stream *core.Stream, containerNum int, table *core.XRefTable, diag *core.Diagnostics) error {
	os, err := core.NewObjectStream(stream, diag)
	if err != nil {
		return err
	}
	defer os.Close()

	nums, err := os.ObjectNumbers()
	if err != nil {
		return err
	}
	for i, num := range nums {
		if num <= 0 {
			continue
		}
		if num >= table.Len() {
			table.Grow(num + 1)
		}
		table.SetCompressed(num, containerNum, i)
	}
	return nil
}

// recoverTrailer attaches a trailer dictionary to the reconstructed table.
// The last trailer keyword in the file is preferred; without one, a
// synthetic trailer is built around the captured catalog.
func recoverTrailer(data []byte, table *core.XRefTable, rootRef core.IndirectRef, diag *core.Diagnostics) error {
	if idx := bytes.LastIndex(data, []byte("trailer")); idx >= 0 {
		parser := core.NewParser(bytes.NewReader(data[idx+len("trailer"):]), diag)
		if obj, err := parser.ParseObject(); err == nil {
			if dict, ok := obj.(*core.Dict); ok && dict.Has("Root") {
				table.SetTrailer(dict)
				core.Release(dict)
				return nil
			}
			core.Release(obj)
		}
	}

	if rootRef.Number == 0 {
		// Without a root the table is unusable; this fails the repair even
		// under the best-effort policy.
		err := fmt.Errorf("%w: no trailer and no catalog found", core.ErrSyntax)
		diag.Error(core.ErrFlagBadTrailer, err)
		return err
	}

	trailer := core.NewDict(2)
	core.Retain(trailer)
	trailer.Set("Size", core.Int(table.Len()))
	trailer.Set("Root", rootRef)
	table.SetTrailer(trailer)
	core.Release(trailer)
	return nil
}
