package core

import (
	"bytes"
	"compress/zlib"
	"encoding/hex"
	"errors"
	"testing"
)

// filterStream wraps raw bytes in a stream with the given Filter entry.
func filterStream(t *testing.T, filter Object, raw []byte) *Stream {
	t.Helper()
	dict := NewDict(2)
	Retain(dict)
	dict.Set("Filter", filter)
	stream := NewStream(dict, raw)
	Retain(stream)
	Release(dict)
	return stream
}

// TestDecodeNoFilter tests that unfiltered streams pass through
func TestDecodeNoFilter(t *testing.T) {
	dict := NewDict(1)
	Retain(dict)
	stream := NewStream(dict, []byte("plain"))
	Retain(stream)
	Release(dict)
	defer Release(stream)

	data, err := stream.Decode()
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if string(data) != "plain" {
		t.Errorf("data = %q", data)
	}
}

// TestDecodeSingleFilter tests a single named filter
func TestDecodeSingleFilter(t *testing.T) {
	raw := []byte("48656C6C6F>")
	stream := filterStream(t, Name("ASCIIHexDecode"), raw)
	defer Release(stream)

	data, err := stream.Decode()
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if string(data) != "Hello" {
		t.Errorf("data = %q", data)
	}

	// The decoded bytes are cached; a second call returns the same slice.
	again, err := stream.Decode()
	if err != nil {
		t.Fatalf("second Decode: %v", err)
	}
	if &again[0] != &data[0] {
		t.Error("second decode was not served from the cache")
	}
}

// TestDecodeFilterChain tests a two-stage chain applied in order
func TestDecodeFilterChain(t *testing.T) {
	original := []byte("chained stream content")

	var compressed bytes.Buffer
	zw := zlib.NewWriter(&compressed)
	if _, err := zw.Write(original); err != nil {
		t.Fatalf("zlib write: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("zlib close: %v", err)
	}
	raw := []byte(hex.EncodeToString(compressed.Bytes()) + ">")

	chain := NewArray(2)
	Retain(chain)
	chain.Set(0, Name("ASCIIHexDecode"))
	chain.Set(1, Name("FlateDecode"))
	stream := filterStream(t, chain, raw)
	Release(chain)
	defer Release(stream)

	data, err := stream.Decode()
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !bytes.Equal(data, original) {
		t.Errorf("data = %q, want %q", data, original)
	}
}

// TestDecodeAbbreviatedFilter tests the inline-image filter spellings
func TestDecodeAbbreviatedFilter(t *testing.T) {
	stream := filterStream(t, Name("AHx"), []byte("4869>"))
	defer Release(stream)

	data, err := stream.Decode()
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if string(data) != "Hi" {
		t.Errorf("data = %q", data)
	}
}

// TestDecodeImageCodecPassThrough tests that image codec filters leave the
// bytes for the renderer
func TestDecodeImageCodecPassThrough(t *testing.T) {
	raw := []byte{0xff, 0xd8, 0xff, 0xe0}
	stream := filterStream(t, Name("DCTDecode"), raw)
	defer Release(stream)

	data, err := stream.Decode()
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !bytes.Equal(data, raw) {
		t.Errorf("data = %v", data)
	}
}

// TestDecodeUnknownFilter tests rejection of an unrecognized filter name
func TestDecodeUnknownFilter(t *testing.T) {
	stream := filterStream(t, Name("LZWDecode"), []byte{0x80})
	defer Release(stream)

	if _, err := stream.Decode(); !errors.Is(err, ErrUndefined) {
		t.Errorf("err = %v, want ErrUndefined", err)
	}
}

// TestDecodeBadFilterType tests rejection of a non-name Filter entry
func TestDecodeBadFilterType(t *testing.T) {
	stream := filterStream(t, Int(9), []byte("x"))
	defer Release(stream)

	if _, err := stream.Decode(); !errors.Is(err, ErrType) {
		t.Errorf("err = %v, want ErrType", err)
	}
}
