package core

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/mblythe/vellum/logger"
)

// Object represents a PDF object
type Object interface {
	Type() ObjectType
	String() string
}

// ObjectType represents the type of PDF object
type ObjectType int

const (
	ObjNull ObjectType = iota
	ObjBool
	ObjInt
	ObjReal
	ObjString
	ObjName
	ObjKeyword
	ObjArray
	ObjDict
	ObjStream
	ObjIndirect
	ObjMark
	ObjXRef
)

// String returns the string representation of the object type
func (t ObjectType) String() string {
	switch t {
	case ObjNull:
		return "Null"
	case ObjBool:
		return "Bool"
	case ObjInt:
		return "Int"
	case ObjReal:
		return "Real"
	case ObjString:
		return "String"
	case ObjName:
		return "Name"
	case ObjKeyword:
		return "Keyword"
	case ObjArray:
		return "Array"
	case ObjDict:
		return "Dict"
	case ObjStream:
		return "Stream"
	case ObjIndirect:
		return "IndirectRef"
	case ObjMark:
		return "Mark"
	case ObjXRef:
		return "XRefTable"
	default:
		return "Unknown"
	}
}

// Null represents a PDF null object
type Null struct{}

func (n Null) Type() ObjectType { return ObjNull }
func (n Null) String() string   { return "null" }

// NullValue is the shared null singleton. Freshly allocated array slots are
// pre-filled with it so a parse that fails part way through never leaves an
// unset element behind.
var NullValue = Null{}

// Bool represents a PDF boolean
type Bool bool

func (b Bool) Type() ObjectType { return ObjBool }
func (b Bool) String() string {
	if b {
		return "true"
	}
	return "false"
}

// Int represents a PDF integer
type Int int64

func (i Int) Type() ObjectType { return ObjInt }
func (i Int) String() string   { return strconv.FormatInt(int64(i), 10) }

// Real represents a PDF real number
type Real float64

func (r Real) Type() ObjectType { return ObjReal }
func (r Real) String() string   { return strconv.FormatFloat(float64(r), 'f', -1, 64) }

// String represents a PDF string
type String string

func (s String) Type() ObjectType { return ObjString }
func (s String) String() string   { return string(s) }

// Name represents a PDF name
type Name string

func (n Name) Type() ObjectType { return ObjName }
func (n Name) String() string   { return "/" + string(n) }

// Keyword represents a bare identifier that is not part of the object grammar
// proper, such as a content stream operator.
type Keyword string

func (k Keyword) Type() ObjectType { return ObjKeyword }
func (k Keyword) String() string   { return string(k) }

// IndirectRef represents an indirect object reference
type IndirectRef struct {
	Number     int
	Generation int
}

func (r IndirectRef) Type() ObjectType { return ObjIndirect }
func (r IndirectRef) String() string {
	return fmt.Sprintf("%d %d R", r.Number, r.Generation)
}

// IndirectObject represents an indirect object with its reference
type IndirectObject struct {
	Ref    IndirectRef
	Object Object
}

// refcount is embedded in every heap-allocated (composite) object. Scalars
// are immutable Go values and carry no count; Retain and Release on them are
// no-ops. The count is the number of live owners: stack slots, container
// slots, cache slots, and caller-held handles.
type refcount struct {
	refs int32
	num  int
	gen  int
	torn bool
}

func (rc *refcount) retain()      { rc.refs++ }
func (rc *refcount) count() int32 { return rc.refs }

// SetIndirect stamps the object with the (number, generation) identity under
// which it was written as a top-level indirect object.
func (rc *refcount) SetIndirect(num, gen int) {
	rc.num = num
	rc.gen = gen
}

// Indirect returns the object's indirect identity, or (0, 0) if the object
// was never written as a top-level indirect object.
func (rc *refcount) Indirect() (int, int) { return rc.num, rc.gen }

// decrement lowers the count and reports whether teardown should run. A
// release against a zero count is a caller bug; it is clamped and recorded
// rather than letting the count go negative.
func (rc *refcount) decrement() bool {
	if rc.refs <= 0 {
		logger.Error("release of object with zero reference count", "object", rc.num)
		return false
	}
	rc.refs--
	return rc.refs == 0 && !rc.torn
}

// counted is satisfied by every composite object.
type counted interface {
	retain()
	count() int32
	decrement() bool
	teardown()
}

// asCounted returns obj's counted handle, or nil for scalars and for typed
// nil composites. A nil *Dict stored in an Object interface would pass a bare
// type assertion and panic on the first count access, so each composite kind
// is checked explicitly.
func asCounted(obj Object) counted {
	switch v := obj.(type) {
	case *Array:
		if v == nil {
			return nil
		}
		return v
	case *Dict:
		if v == nil {
			return nil
		}
		return v
	case *Stream:
		if v == nil {
			return nil
		}
		return v
	case *XRefTable:
		if v == nil {
			return nil
		}
		return v
	}
	return nil
}

// Ownership contract: every constructor (NewArray, NewDict, NewStream,
// NewXRefTable) returns its object with a reference count of zero, and the
// first owner must Retain it. Container insertion (Array.Set, Dict.Set,
// Stack pushes, cache insertion, SetTrailer) retains on behalf of the
// container; operations that hand an object out (Stack.Pop, Resolve,
// ParseObject) transfer one caller-owned share.

// Retain adds an ownership share to obj and returns it. Scalar objects and
// nil composites pass through unchanged.
func Retain(obj Object) Object {
	if c := asCounted(obj); c != nil {
		c.retain()
	}
	return obj
}

// Release gives up one ownership share. When the last share is released the
// object is torn down: every child it owns is released recursively and its
// backing storage is dropped. Teardown runs at most once even if a child
// cycle re-enters the releasing object. Scalars and nil composites are
// ignored.
func Release(obj Object) {
	if c := asCounted(obj); c != nil {
		if c.decrement() {
			c.teardown()
		}
	}
}

// RefCount reports the object's current reference count. Scalars and nil
// composites report 0.
func RefCount(obj Object) int {
	if c := asCounted(obj); c != nil {
		return int(c.count())
	}
	return 0
}

// Array represents a PDF array. Arrays are allocated at their final size
// with every slot owned and pre-filled with NullValue.
type Array struct {
	refcount
	elems []Object
}

// NewArray allocates an array of n slots, each holding the null singleton.
// The returned array has a reference count of zero; the first owner must
// retain it.
func NewArray(n int) *Array {
	a := &Array{elems: make([]Object, n)}
	for i := range a.elems {
		a.elems[i] = NullValue
	}
	return a
}

func (a *Array) Type() ObjectType { return ObjArray }
func (a *Array) String() string {
	parts := make([]string, 0, len(a.elems))
	for _, obj := range a.elems {
		parts = append(parts, obj.String())
	}
	return "[" + strings.Join(parts, " ") + "]"
}

// Len returns the length of the array
func (a *Array) Len() int {
	return len(a.elems)
}

// Get retrieves an element at the given index. Out-of-range indexes yield
// the null singleton, never nil.
func (a *Array) Get(index int) Object {
	if index < 0 || index >= len(a.elems) {
		return NullValue
	}
	return a.elems[index]
}

// Set stores obj at index, retaining it and releasing the previous occupant.
func (a *Array) Set(index int, obj Object) {
	if index < 0 || index >= len(a.elems) {
		return
	}
	old := a.elems[index]
	a.elems[index] = Retain(obj)
	Release(old)
}

// GetInt retrieves an integer at the given index
func (a *Array) GetInt(index int) (Int, bool) {
	i, ok := a.Get(index).(Int)
	return i, ok
}

// GetReal retrieves a real number at the given index
func (a *Array) GetReal(index int) (Real, bool) {
	r, ok := a.Get(index).(Real)
	return r, ok
}

// GetNumber retrieves an integer or real at the given index as a float64
func (a *Array) GetNumber(index int) (float64, bool) {
	switch v := a.Get(index).(type) {
	case Int:
		return float64(v), true
	case Real:
		return float64(v), true
	}
	return 0, false
}

// GetName retrieves a name at the given index
func (a *Array) GetName(index int) (Name, bool) {
	n, ok := a.Get(index).(Name)
	return n, ok
}

// GetRef retrieves an indirect reference at the given index
func (a *Array) GetRef(index int) (IndirectRef, bool) {
	r, ok := a.Get(index).(IndirectRef)
	return r, ok
}

// Elems returns the backing slice. The caller must not hold it across a
// mutation of the array.
func (a *Array) Elems() []Object {
	return a.elems
}

func (a *Array) teardown() {
	a.torn = true
	elems := a.elems
	a.elems = nil
	for _, e := range elems {
		Release(e)
	}
}

// Dict represents a PDF dictionary. Keys are names stored without the
// leading slash. Absent keys read as nil, so callers can distinguish "not
// present" from a stored null.
type Dict struct {
	refcount
	m map[string]Object
}

// NewDict allocates a dictionary with room for n entries. The returned dict
// has a reference count of zero; the first owner must retain it.
func NewDict(n int) *Dict {
	return &Dict{m: make(map[string]Object, n)}
}

func (d *Dict) Type() ObjectType { return ObjDict }
func (d *Dict) String() string {
	parts := make([]string, 0, len(d.m))
	for key, val := range d.m {
		parts = append(parts, fmt.Sprintf("/%s %s", key, val.String()))
	}
	return "<<" + strings.Join(parts, " ") + ">>"
}

// Get retrieves a value from the dictionary, or nil if the key is absent.
func (d *Dict) Get(key string) Object {
	return d.m[key]
}

// GetName retrieves a name value
func (d *Dict) GetName(key string) (Name, bool) {
	name, ok := d.m[key].(Name)
	return name, ok
}

// GetInt retrieves an integer value
func (d *Dict) GetInt(key string) (Int, bool) {
	i, ok := d.m[key].(Int)
	return i, ok
}

// GetReal retrieves a real number value
func (d *Dict) GetReal(key string) (Real, bool) {
	r, ok := d.m[key].(Real)
	return r, ok
}

// GetNumber retrieves an integer or real value as a float64
func (d *Dict) GetNumber(key string) (float64, bool) {
	switch v := d.m[key].(type) {
	case Int:
		return float64(v), true
	case Real:
		return float64(v), true
	}
	return 0, false
}

// GetDict retrieves a dictionary value
func (d *Dict) GetDict(key string) (*Dict, bool) {
	dict, ok := d.m[key].(*Dict)
	return dict, ok
}

// GetArray retrieves an array value
func (d *Dict) GetArray(key string) (*Array, bool) {
	arr, ok := d.m[key].(*Array)
	return arr, ok
}

// GetString retrieves a string value
func (d *Dict) GetString(key string) (String, bool) {
	s, ok := d.m[key].(String)
	return s, ok
}

// GetBool retrieves a boolean value
func (d *Dict) GetBool(key string) (Bool, bool) {
	b, ok := d.m[key].(Bool)
	return b, ok
}

// GetStream retrieves a stream value
func (d *Dict) GetStream(key string) (*Stream, bool) {
	s, ok := d.m[key].(*Stream)
	return s, ok
}

// GetRef retrieves an indirect reference
func (d *Dict) GetRef(key string) (IndirectRef, bool) {
	ref, ok := d.m[key].(IndirectRef)
	return ref, ok
}

// Has checks if a key exists in the dictionary
func (d *Dict) Has(key string) bool {
	_, ok := d.m[key]
	return ok
}

// Set stores a value, retaining it and releasing any previous occupant.
func (d *Dict) Set(key string, value Object) {
	old := d.m[key]
	d.m[key] = Retain(value)
	Release(old)
}

// Delete removes a key from the dictionary, releasing its value.
func (d *Dict) Delete(key string) {
	if old, ok := d.m[key]; ok {
		delete(d.m, key)
		Release(old)
	}
}

// Keys returns all keys in the dictionary
func (d *Dict) Keys() []string {
	keys := make([]string, 0, len(d.m))
	for k := range d.m {
		keys = append(keys, k)
	}
	return keys
}

// Len returns the number of entries in the dictionary
func (d *Dict) Len() int {
	return len(d.m)
}

func (d *Dict) teardown() {
	d.torn = true
	m := d.m
	d.m = nil
	for _, v := range m {
		Release(v)
	}
}

// Stream represents a PDF stream object: a dictionary plus raw bytes.
type Stream struct {
	refcount
	Dict    *Dict
	Raw     []byte
	decoded []byte
}

// NewStream builds a stream around dict, retaining the dictionary.
func NewStream(dict *Dict, raw []byte) *Stream {
	Retain(dict)
	return &Stream{Dict: dict, Raw: raw}
}

func (s *Stream) Type() ObjectType { return ObjStream }
func (s *Stream) String() string {
	return fmt.Sprintf("stream %s (%d bytes)", s.Dict.String(), len(s.Raw))
}

func (s *Stream) teardown() {
	s.torn = true
	dict := s.Dict
	s.Dict = nil
	s.Raw = nil
	s.decoded = nil
	Release(dict)
}
