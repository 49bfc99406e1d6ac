package filters

import (
	"bytes"
	"fmt"
)

// ASCIIHexDecode decodes hexadecimal-encoded data. Whitespace is ignored,
// '>' ends the data, and a trailing odd digit is padded with zero.
func ASCIIHexDecode(data []byte) ([]byte, error) {
	var result bytes.Buffer
	var hi byte
	haveHi := false

	for i := 0; i < len(data); i++ {
		c := data[i]
		if isWhitespace(c) {
			continue
		}
		if c == '>' {
			break
		}
		v, err := hexDigit(c)
		if err != nil {
			return nil, err
		}
		if haveHi {
			result.WriteByte(hi<<4 | v)
			haveHi = false
		} else {
			hi = v
			haveHi = true
		}
	}
	if haveHi {
		result.WriteByte(hi << 4)
	}

	return result.Bytes(), nil
}

// ASCII85Decode decodes base-85 encoded data. Five characters in '!'..'u'
// encode four bytes; 'z' abbreviates four zero bytes; "~>" ends the data.
// A trailing partial group of n characters yields n-1 bytes.
func ASCII85Decode(data []byte) ([]byte, error) {
	var result bytes.Buffer
	var group [5]byte
	n := 0

	flush := func(count int) {
		for i := count; i < 5; i++ {
			group[i] = 84 // pad with 'u'
		}
		value := uint32(0)
		for _, d := range group {
			value = value*85 + uint32(d)
		}
		out := count - 1
		if out > 4 {
			out = 4
		}
		for j := 0; j < out; j++ {
			result.WriteByte(byte(value >> (24 - j*8)))
		}
	}

	for i := 0; i < len(data); i++ {
		c := data[i]
		if isWhitespace(c) {
			continue
		}
		if c == '~' {
			break // ~> end of data
		}
		if c == 'z' && n == 0 {
			result.Write([]byte{0, 0, 0, 0})
			continue
		}
		if c < '!' || c > 'u' {
			return nil, fmt.Errorf("invalid base-85 character %q", c)
		}
		group[n] = c - '!'
		n++
		if n == 5 {
			flush(5)
			n = 0
		}
	}
	if n > 0 {
		flush(n)
	}

	return result.Bytes(), nil
}

// RunLengthDecode decodes run-length encoded data: a length byte 0-127
// means copy the next length+1 bytes literally, 129-255 means repeat the
// next byte 257-length times, and 128 ends the data.
func RunLengthDecode(data []byte) ([]byte, error) {
	var result bytes.Buffer

	i := 0
	for i < len(data) {
		length := int(data[i])
		i++
		switch {
		case length == 128:
			return result.Bytes(), nil
		case length < 128:
			if i+length+1 > len(data) {
				return nil, fmt.Errorf("truncated literal run at %d", i)
			}
			result.Write(data[i : i+length+1])
			i += length + 1
		default:
			if i >= len(data) {
				return nil, fmt.Errorf("truncated repeat run at %d", i)
			}
			result.Write(bytes.Repeat(data[i:i+1], 257-length))
			i++
		}
	}

	return result.Bytes(), nil
}

// hexDigit converts a hexadecimal character to its value.
func hexDigit(c byte) (byte, error) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', nil
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, nil
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, nil
	}
	return 0, fmt.Errorf("invalid hex digit %q", c)
}

// isWhitespace reports whether c is a PDF whitespace character.
func isWhitespace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\r' || c == '\n' || c == '\f' || c == 0
}
