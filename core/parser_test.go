package core

import (
	"errors"
	"strings"
	"testing"
)

// parseOne parses a single object from input in best-effort mode.
func parseOne(t *testing.T, input string) (Object, *Diagnostics) {
	t.Helper()
	diag := &Diagnostics{}
	p := NewParser(strings.NewReader(input), diag)
	obj, err := p.ParseObject()
	if err != nil {
		t.Fatalf("ParseObject(%q): %v", input, err)
	}
	return obj, diag
}

// TestParseScalars tests the scalar object types
func TestParseScalars(t *testing.T) {
	tests := []struct {
		input string
		want  Object
	}{
		{"null", NullValue},
		{"true", Bool(true)},
		{"false", Bool(false)},
		{"42", Int(42)},
		{"-7", Int(-7)},
		{"2.5", Real(2.5)},
		{"(hello)", String("hello")},
		{"<48656C6C6F>", String("Hello")},
		{"/Type", Name("Type")},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			obj, _ := parseOne(t, tt.input)
			if obj != tt.want {
				t.Errorf("got %v (%v), want %v", obj, obj.Type(), tt.want)
			}
		})
	}
}

// TestParseIndirectReference tests the "num gen R" lookahead
func TestParseIndirectReference(t *testing.T) {
	obj, _ := parseOne(t, "12 3 R")
	ref, ok := obj.(IndirectRef)
	if !ok {
		t.Fatalf("got %T, want IndirectRef", obj)
	}
	if ref.Number != 12 || ref.Generation != 3 {
		t.Errorf("ref = %v", ref)
	}
}

// TestParseTwoIntegers tests that "1 2" is two integers, not a reference
func TestParseTwoIntegers(t *testing.T) {
	p := NewParser(strings.NewReader("1 2"), nil)

	first, err := p.ParseObject()
	if err != nil {
		t.Fatalf("first ParseObject: %v", err)
	}
	if first != Int(1) {
		t.Errorf("first = %v", first)
	}

	second, err := p.ParseObject()
	if err != nil {
		t.Fatalf("second ParseObject: %v", err)
	}
	if second != Int(2) {
		t.Errorf("second = %v", second)
	}
}

// TestParseArray tests array parsing including nesting
func TestParseArray(t *testing.T) {
	obj, _ := parseOne(t, "[1 2.5 /N (s) [true null]]")
	arr, ok := obj.(*Array)
	if !ok {
		t.Fatalf("got %T, want *Array", obj)
	}
	defer Release(arr)

	if arr.Len() != 5 {
		t.Fatalf("len = %d, want 5", arr.Len())
	}
	if arr.Get(0) != Int(1) || arr.Get(1) != Real(2.5) || arr.Get(2) != Name("N") || arr.Get(3) != String("s") {
		t.Errorf("elements = %v", arr)
	}

	inner, ok := arr.Get(4).(*Array)
	if !ok {
		t.Fatalf("inner = %T, want *Array", arr.Get(4))
	}
	if inner.Len() != 2 || inner.Get(0) != Bool(true) || inner.Get(1) != NullValue {
		t.Errorf("inner = %v", inner)
	}
}

// TestParseDict tests dictionary parsing
func TestParseDict(t *testing.T) {
	obj, _ := parseOne(t, "<< /Type /Page /Count 3 /Kids [4 0 R] >>")
	dict, ok := obj.(*Dict)
	if !ok {
		t.Fatalf("got %T, want *Dict", obj)
	}
	defer Release(dict)

	if n, _ := dict.GetName("Type"); n != "Page" {
		t.Errorf("Type = %q", n)
	}
	if c, _ := dict.GetInt("Count"); c != 3 {
		t.Errorf("Count = %v", c)
	}
	kids, ok := dict.GetArray("Kids")
	if !ok || kids.Len() != 1 {
		t.Fatalf("Kids = %v", dict.Get("Kids"))
	}
	if ref, ok := kids.GetRef(0); !ok || ref.Number != 4 {
		t.Errorf("Kids[0] = %v", kids.Get(0))
	}
}

// TestParseReferenceInComposite tests that R reduces its two integer
// operands in place inside a composite
func TestParseReferenceInComposite(t *testing.T) {
	obj, _ := parseOne(t, "[10 0 R 2 8 1 R]")
	arr := obj.(*Array)
	defer Release(arr)

	if arr.Len() != 3 {
		t.Fatalf("len = %d, want 3", arr.Len())
	}
	if ref, ok := arr.GetRef(0); !ok || ref.Number != 10 || ref.Generation != 0 {
		t.Errorf("element 0 = %v", arr.Get(0))
	}
	if arr.Get(1) != Int(2) {
		t.Errorf("element 1 = %v", arr.Get(1))
	}
	if ref, ok := arr.GetRef(2); !ok || ref.Number != 8 || ref.Generation != 1 {
		t.Errorf("element 2 = %v", arr.Get(2))
	}
}

// TestParseProcedure tests that procedure literals collect like arrays
func TestParseProcedure(t *testing.T) {
	obj, _ := parseOne(t, "{0 1}")
	arr, ok := obj.(*Array)
	if !ok {
		t.Fatalf("got %T, want *Array", obj)
	}
	defer Release(arr)
	if arr.Len() != 2 || arr.Get(0) != Int(0) || arr.Get(1) != Int(1) {
		t.Errorf("proc = %v", arr)
	}
}

// TestParseBadDictKey tests the null substitute for a dictionary with a
// non-name key
func TestParseBadDictKey(t *testing.T) {
	obj, diag := parseOne(t, "<< (junk) 5 >>")
	defer Release(obj)

	if obj != NullValue {
		t.Errorf("got %v, want the null substitute", obj)
	}
	if diag.Warnings&WarnBadDictKey == 0 {
		t.Error("bad-dict-key warning not recorded")
	}
	if diag.Errors&ErrFlagBadToken == 0 {
		t.Error("bad-token flag not set")
	}
}

// TestParseBadDictKeyStrict tests that strict mode aborts on the same input
func TestParseBadDictKeyStrict(t *testing.T) {
	p := NewParser(strings.NewReader("<< (junk) 5 >>"), &Diagnostics{Strict: true})
	if _, err := p.ParseObject(); err == nil {
		t.Error("strict parser accepted a non-name dictionary key")
	}
}

// TestParseUnmatchedClose tests that a stray close delimiter inside a
// composite is dropped with a warning
func TestParseUnmatchedClose(t *testing.T) {
	obj, diag := parseOne(t, "[1 >> 2]")
	arr := obj.(*Array)
	defer Release(arr)

	if arr.Len() != 2 || arr.Get(0) != Int(1) || arr.Get(1) != Int(2) {
		t.Errorf("array = %v", arr)
	}
	if diag.Warnings&WarnUnmatchedClose == 0 {
		t.Error("unmatched-close warning not recorded")
	}
}

// TestParseIndirectObject tests "num gen obj ... endobj" and the identity
// stamp on the result
func TestParseIndirectObject(t *testing.T) {
	p := NewParser(strings.NewReader("5 0 obj << /A 1 >> endobj"), nil)
	iobj, err := p.ParseIndirectObject()
	if err != nil {
		t.Fatalf("ParseIndirectObject: %v", err)
	}
	defer Release(iobj.Object)

	if iobj.Ref.Number != 5 || iobj.Ref.Generation != 0 {
		t.Errorf("ref = %v", iobj.Ref)
	}
	dict, ok := iobj.Object.(*Dict)
	if !ok {
		t.Fatalf("object = %T", iobj.Object)
	}
	if num, gen := dict.Indirect(); num != 5 || gen != 0 {
		t.Errorf("identity = (%d, %d), want (5, 0)", num, gen)
	}
}

// TestParseStream tests stream parsing with a correct declared length
func TestParseStream(t *testing.T) {
	input := "4 0 obj << /Length 5 >> stream\nHello\nendstream endobj"
	p := NewParser(strings.NewReader(input), nil)
	iobj, err := p.ParseIndirectObject()
	if err != nil {
		t.Fatalf("ParseIndirectObject: %v", err)
	}
	stream, ok := iobj.Object.(*Stream)
	if !ok {
		t.Fatalf("object = %T, want *Stream", iobj.Object)
	}
	defer Release(stream)

	if string(stream.Raw) != "Hello" {
		t.Errorf("data = %q", stream.Raw)
	}
	if num, _ := stream.Indirect(); num != 4 {
		t.Errorf("identity = %d, want 4", num)
	}
}

// TestParseStreamWrongLength tests resynchronization when the declared
// length does not reach the endstream keyword
func TestParseStreamWrongLength(t *testing.T) {
	input := "4 0 obj << /Length 3 >> stream\nHello\nendstream endobj"
	diag := &Diagnostics{}
	p := NewParser(strings.NewReader(input), diag)
	iobj, err := p.ParseIndirectObject()
	if err != nil {
		t.Fatalf("ParseIndirectObject: %v", err)
	}
	stream := iobj.Object.(*Stream)
	defer Release(stream)

	// The declared bytes are kept; the rest is skipped.
	if string(stream.Raw) != "Hel" {
		t.Errorf("data = %q", stream.Raw)
	}
	if diag.Errors&ErrFlagMissingEndstream == 0 {
		t.Error("missing-endstream flag not set")
	}
}

// TestParseStreamMissingLength tests recovery by scanning for endstream
func TestParseStreamMissingLength(t *testing.T) {
	input := "4 0 obj << /Filter /FlateDecode >> stream\nHello\nendstream endobj"
	diag := &Diagnostics{}
	p := NewParser(strings.NewReader(input), diag)
	iobj, err := p.ParseIndirectObject()
	if err != nil {
		t.Fatalf("ParseIndirectObject: %v", err)
	}
	stream := iobj.Object.(*Stream)
	defer Release(stream)

	if string(stream.Raw) != "Hello" {
		t.Errorf("data = %q", stream.Raw)
	}
	if diag.Errors&ErrFlagBadStreamLength == 0 {
		t.Error("bad-stream-length flag not set")
	}
}

// lengthResolver resolves every reference to a fixed integer.
type lengthResolver struct {
	length Int
}

func (r *lengthResolver) ResolveReference(ref IndirectRef) (Object, error) {
	return r.length, nil
}

// TestParseStreamIndirectLength tests resolving /Length through a resolver
func TestParseStreamIndirectLength(t *testing.T) {
	input := "4 0 obj << /Length 9 0 R >> stream\nHello\nendstream endobj"
	p := NewParser(strings.NewReader(input), nil)
	p.SetReferenceResolver(&lengthResolver{length: 5})

	iobj, err := p.ParseIndirectObject()
	if err != nil {
		t.Fatalf("ParseIndirectObject: %v", err)
	}
	stream := iobj.Object.(*Stream)
	defer Release(stream)

	if string(stream.Raw) != "Hello" {
		t.Errorf("data = %q", stream.Raw)
	}
}

// TestParseMissingEndobj tests best-effort acceptance of a truncated
// indirect object
func TestParseMissingEndobj(t *testing.T) {
	diag := &Diagnostics{}
	p := NewParser(strings.NewReader("7 0 obj 42"), diag)
	iobj, err := p.ParseIndirectObject()
	if err != nil {
		t.Fatalf("ParseIndirectObject: %v", err)
	}
	if iobj.Object != Int(42) {
		t.Errorf("object = %v", iobj.Object)
	}
	if diag.Errors&ErrFlagMissingEndobj == 0 {
		t.Error("missing-endobj flag not set")
	}

	strict := NewParser(strings.NewReader("7 0 obj 42"), &Diagnostics{Strict: true})
	if _, err := strict.ParseIndirectObject(); err == nil {
		t.Error("strict parser accepted a missing endobj")
	}
}

// TestParseStreamAfterNonDict tests that stream data after a non-dictionary
// object is rejected
func TestParseStreamAfterNonDict(t *testing.T) {
	p := NewParser(strings.NewReader("4 0 obj 7 stream\nxx\nendstream endobj"), nil)
	_, err := p.ParseIndirectObject()
	if !errors.Is(err, ErrType) {
		t.Errorf("err = %v, want ErrType", err)
	}
}

// TestParseDoubleDecimal tests that a second decimal point starts a new
// number
func TestParseDoubleDecimal(t *testing.T) {
	// "1.2.3" is the real 1.2 followed by the real .3.
	p := NewParser(strings.NewReader("1.2.3"), nil)
	obj, err := p.ParseObject()
	if err != nil {
		t.Fatalf("ParseObject: %v", err)
	}
	if obj != Real(1.2) {
		t.Errorf("got %v, want 1.2", obj)
	}
	obj, err = p.ParseObject()
	if err != nil {
		t.Fatalf("second ParseObject: %v", err)
	}
	if obj != Real(0.3) {
		t.Errorf("got %v, want 0.3", obj)
	}
}
