package core

import (
	"bytes"
	"fmt"
)

// ObjectStream represents an object stream (Type /ObjStm): a container
// holding multiple member objects back-to-back in its decoded data, preceded
// by N pairs of (object number, byte offset). Members carry no "obj" header
// of their own; the extractor stamps them with their identity.
type ObjectStream struct {
	stream  *Stream              // underlying stream object
	n       int                  // declared member count
	first   int                  // byte offset of the first member in the decoded data
	offsets []objectStreamOffset // parsed header pairs
	decoded []byte               // decoded stream data, cached
	diag    *Diagnostics
}

// objectStreamOffset pairs an object number with its byte offset within the
// decoded data, relative to First.
type objectStreamOffset struct {
	ObjNum int
	Offset int
}

// NewObjectStream creates an ObjectStream from a stream object. The stream
// must have Type /ObjStm and the required /N and /First entries. The
// container keeps its own share of the stream.
func NewObjectStream(stream *Stream, diag *Diagnostics) (*ObjectStream, error) {
	if stream == nil {
		return nil, fmt.Errorf("%w: nil stream", ErrType)
	}
	if diag == nil {
		diag = &Diagnostics{}
	}

	typeName, ok := stream.Dict.GetName("Type")
	if !ok || typeName != "ObjStm" {
		return nil, fmt.Errorf("%w: stream is not an object stream, type %q", ErrType, typeName)
	}

	n, ok := stream.Dict.GetInt("N")
	if !ok || n < 0 {
		return nil, fmt.Errorf("%w: object stream with bad /N", ErrRange)
	}

	first, ok := stream.Dict.GetInt("First")
	if !ok || first < 0 {
		return nil, fmt.Errorf("%w: object stream with bad /First", ErrRange)
	}

	Retain(stream)
	return &ObjectStream{
		stream: stream,
		n:      int(n),
		first:  int(first),
		diag:   diag,
	}, nil
}

// Close releases the container's share of the underlying stream.
func (os *ObjectStream) Close() {
	s := os.stream
	os.stream = nil
	os.decoded = nil
	os.offsets = nil
	Release(s)
}

// N returns the declared number of member objects.
func (os *ObjectStream) N() int {
	return os.n
}

// decode decodes the stream data and parses the header pairs. Called lazily
// on first access.
func (os *ObjectStream) decode() error {
	if os.decoded != nil {
		return nil
	}

	decoded, err := os.stream.Decode()
	if err != nil {
		return fmt.Errorf("failed to decode object stream: %w", err)
	}
	if os.first > len(decoded) {
		return fmt.Errorf("%w: /First %d exceeds decoded length %d", ErrRange, os.first, len(decoded))
	}
	os.decoded = decoded

	// The header is N plain-text integer pairs before the First offset.
	parser := NewParser(bytes.NewReader(decoded[:os.first]), os.diag)
	os.offsets = make([]objectStreamOffset, 0, os.n)
	for i := 0; i < os.n; i++ {
		objNumObj, err := parser.ParseObject()
		if err != nil {
			return fmt.Errorf("failed to parse header pair %d: %w", i, err)
		}
		objNum, ok := objNumObj.(Int)
		if !ok {
			return fmt.Errorf("%w: header object number %d is %v", ErrType, i, objNumObj.Type())
		}

		offsetObj, err := parser.ParseObject()
		if err != nil {
			return fmt.Errorf("failed to parse header pair %d: %w", i, err)
		}
		offset, ok := offsetObj.(Int)
		if !ok {
			return fmt.Errorf("%w: header offset %d is %v", ErrType, i, offsetObj.Type())
		}

		os.offsets = append(os.offsets, objectStreamOffset{
			ObjNum: int(objNum),
			Offset: int(offset),
		})
	}

	return nil
}

// Members returns the (object number, offset) header pairs.
func (os *ObjectStream) Members() ([]objectStreamOffset, error) {
	if err := os.decode(); err != nil {
		return nil, err
	}
	return os.offsets, nil
}

// ObjectNumbers returns the object numbers stored in this stream, in header
// order.
func (os *ObjectStream) ObjectNumbers() ([]int, error) {
	if err := os.decode(); err != nil {
		return nil, err
	}
	nums := make([]int, len(os.offsets))
	for i, entry := range os.offsets {
		nums[i] = entry.ObjNum
	}
	return nums, nil
}

// GetObjectByIndex extracts the member at index (0-based header position),
// stamping it with its object number. The returned object carries one
// caller-owned share.
func (os *ObjectStream) GetObjectByIndex(index int) (Object, int, error) {
	if err := os.decode(); err != nil {
		return nil, 0, err
	}

	if index < 0 || index >= len(os.offsets) {
		return nil, 0, fmt.Errorf("%w: member index %d outside [0, %d)", ErrRange, index, len(os.offsets))
	}

	offset := os.first + os.offsets[index].Offset
	if offset >= len(os.decoded) {
		return nil, 0, fmt.Errorf("%w: member offset %d exceeds decoded length %d", ErrRange, offset, len(os.decoded))
	}

	// A member extends to the next member's offset, or to end of data.
	endOffset := len(os.decoded)
	if index+1 < len(os.offsets) {
		endOffset = os.first + os.offsets[index+1].Offset
		if endOffset > len(os.decoded) {
			endOffset = len(os.decoded)
		}
	}

	parser := NewParser(bytes.NewReader(os.decoded[offset:endOffset]), os.diag)
	obj, err := parser.ParseObject()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to parse member %d: %w", index, err)
	}

	objNum := os.offsets[index].ObjNum
	switch v := obj.(type) {
	case *Array:
		v.SetIndirect(objNum, 0)
	case *Dict:
		v.SetIndirect(objNum, 0)
	}
	return obj, objNum, nil
}

// GetObjectByNumber finds and extracts a member by its object number.
func (os *ObjectStream) GetObjectByNumber(objNum int) (Object, int, error) {
	if err := os.decode(); err != nil {
		return nil, 0, err
	}
	for i, entry := range os.offsets {
		if entry.ObjNum == objNum {
			obj, _, err := os.GetObjectByIndex(i)
			return obj, i, err
		}
	}
	return nil, 0, fmt.Errorf("%w: object %d not in object stream", ErrUndefined, objNum)
}
