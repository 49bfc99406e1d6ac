package core

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
)

// TokenType represents the type of token
type TokenType int

const (
	TokenEOF TokenType = iota
	TokenComment
	TokenKeyword     // bare identifier not in the promoted set
	TokenInteger     // 123
	TokenReal        // 3.14
	TokenString      // (hello)
	TokenHexString   // <48656C6C6F>
	TokenName        // /Type
	TokenArrayStart  // [
	TokenArrayEnd    // ]
	TokenDictStart   // <<
	TokenDictEnd     // >>
	TokenProcStart   // {
	TokenProcEnd     // }
	TokenIndirectRef // R (after two numbers)

	// Keyword spellings the grammar needs immediately are promoted to typed
	// tokens so the parser never string-compares on the hot path.
	TokenObj
	TokenEndObj
	TokenStream
	TokenEndStream
	TokenStartXref
	TokenTrailer
	TokenXref
	TokenTrue
	TokenFalse
	TokenNull
)

// maxKeywordLen bounds bare identifiers. Anything longer is malformed input
// and gets truncated with a diagnostic.
const maxKeywordLen = 255

// promotedKeywords maps the grammar keyword spellings to their typed tokens.
var promotedKeywords = map[string]TokenType{
	"obj":       TokenObj,
	"endobj":    TokenEndObj,
	"stream":    TokenStream,
	"endstream": TokenEndStream,
	"startxref": TokenStartXref,
	"trailer":   TokenTrailer,
	"xref":      TokenXref,
	"true":      TokenTrue,
	"false":     TokenFalse,
	"null":      TokenNull,
}

// Token represents a lexical token
type Token struct {
	Type  TokenType
	Value []byte
	Pos   int64 // Position in stream
}

// Lexer performs lexical analysis of PDF content. Malformed input is
// recorded on the attached Diagnostics and recovered from where the format
// allows, rather than aborting the scan.
type Lexer struct {
	reader *bufio.Reader
	pos    int64
	diag   *Diagnostics
}

// NewLexer creates a new lexer. diag may be nil, in which case faults are
// accumulated on a throwaway sink.
func NewLexer(r io.Reader, diag *Diagnostics) *Lexer {
	if diag == nil {
		diag = &Diagnostics{}
	}
	return &Lexer{
		reader: bufio.NewReader(r),
		diag:   diag,
	}
}

// Pos returns the byte position of the next unread byte.
func (l *Lexer) Pos() int64 {
	return l.pos
}

// NextToken returns the next token from the input. Comments are skipped.
func (l *Lexer) NextToken() (*Token, error) {
	for {
		tok, err := l.nextRaw()
		if err != nil {
			return nil, err
		}
		if tok.Type == TokenComment {
			continue
		}
		return tok, nil
	}
}

func (l *Lexer) nextRaw() (*Token, error) {
	if err := l.skipWhitespace(); err != nil && err != io.EOF {
		return nil, fmt.Errorf("%w: %v", ErrIO, err)
	}

	b, err := l.peek()
	if err == io.EOF {
		return &Token{Type: TokenEOF, Pos: l.pos}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIO, err)
	}

	if b == '%' {
		return l.readComment()
	}

	switch b {
	case '[':
		l.readByte()
		return &Token{Type: TokenArrayStart, Value: []byte{'['}, Pos: l.pos - 1}, nil
	case ']':
		l.readByte()
		return &Token{Type: TokenArrayEnd, Value: []byte{']'}, Pos: l.pos - 1}, nil
	case '{':
		l.readByte()
		return &Token{Type: TokenProcStart, Value: []byte{'{'}, Pos: l.pos - 1}, nil
	case '}':
		l.readByte()
		return &Token{Type: TokenProcEnd, Value: []byte{'}'}, Pos: l.pos - 1}, nil
	case '(':
		return l.readString()
	case '<':
		// Could be << (dict start) or <hex string>
		next, err := l.peekN(2)
		if err == nil && len(next) == 2 && next[1] == '<' {
			l.readByte()
			l.readByte()
			return &Token{Type: TokenDictStart, Value: []byte{'<', '<'}, Pos: l.pos - 2}, nil
		}
		return l.readHexString()
	case '>':
		next, err := l.peekN(2)
		if err == nil && len(next) == 2 && next[1] == '>' {
			l.readByte()
			l.readByte()
			return &Token{Type: TokenDictEnd, Value: []byte{'>', '>'}, Pos: l.pos - 2}, nil
		}
		// A lone '>' is junk. Swallow it and report.
		l.readByte()
		if err := l.diag.Error(ErrFlagBadToken, fmt.Errorf("%w: unexpected '>' at %d", ErrSyntax, l.pos-1)); err != nil {
			return nil, err
		}
		return l.nextRaw()
	case ')':
		// Unescaped closing parenthesis outside a string.
		l.readByte()
		if err := l.diag.Error(ErrFlagBadString, fmt.Errorf("%w: unexpected ')' at %d", ErrSyntax, l.pos-1)); err != nil {
			return nil, err
		}
		return l.nextRaw()
	case '/':
		return l.readName()
	}

	if isDigit(b) || b == '-' || b == '+' || b == '.' {
		return l.readNumber()
	}

	if isRegular(b) {
		return l.readKeyword()
	}

	l.readByte()
	if err := l.diag.Error(ErrFlagBadToken, fmt.Errorf("%w: unexpected character %#x at %d", ErrSyntax, b, l.pos-1)); err != nil {
		return nil, err
	}
	return l.nextRaw()
}

// readByte reads a single byte and advances position
func (l *Lexer) readByte() (byte, error) {
	b, err := l.reader.ReadByte()
	if err != nil {
		return 0, err
	}
	l.pos++
	return b, nil
}

// peek looks at the next byte without consuming it
func (l *Lexer) peek() (byte, error) {
	buf, err := l.reader.Peek(1)
	if err != nil {
		return 0, err
	}
	return buf[0], nil
}

// peekN looks at the next n bytes without consuming them
func (l *Lexer) peekN(n int) ([]byte, error) {
	return l.reader.Peek(n)
}

// skipWhitespace skips all whitespace characters
// PDF whitespace: space (0x20), tab (0x09), LF (0x0A), CR (0x0D), FF (0x0C), null (0x00)
func (l *Lexer) skipWhitespace() error {
	for {
		b, err := l.peek()
		if err != nil {
			return err
		}
		if !isWhitespace(b) {
			return nil
		}
		l.readByte()
	}
}

// readComment reads a comment (% to end of line)
func (l *Lexer) readComment() (*Token, error) {
	startPos := l.pos
	var buf bytes.Buffer

	b, _ := l.readByte()
	buf.WriteByte(b)

	for {
		b, err := l.peek()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrIO, err)
		}
		if b == '\r' || b == '\n' {
			break
		}
		b, _ = l.readByte()
		buf.WriteByte(b)
	}

	return &Token{Type: TokenComment, Value: buf.Bytes(), Pos: startPos}, nil
}

// readString reads a literal string: balanced parenthesis nesting, backslash
// escapes, octal escapes up to three digits, and line-continuation elision.
// EOF before the closing parenthesis closes the string with a diagnostic.
func (l *Lexer) readString() (*Token, error) {
	startPos := l.pos
	var buf bytes.Buffer

	l.readByte() // opening (

	depth := 1
	for depth > 0 {
		b, err := l.readByte()
		if err == io.EOF {
			if derr := l.diag.Error(ErrFlagBadString, fmt.Errorf("%w: unterminated string at %d", ErrSyntax, startPos)); derr != nil {
				return nil, derr
			}
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrIO, err)
		}

		switch b {
		case '(':
			depth++
			buf.WriteByte(b)
		case ')':
			depth--
			if depth > 0 {
				buf.WriteByte(b)
			}
		case '\\':
			next, err := l.readByte()
			if err != nil {
				if derr := l.diag.Error(ErrFlagBadString, fmt.Errorf("%w: dangling escape at %d", ErrSyntax, l.pos)); derr != nil {
					return nil, derr
				}
				depth = 0
				break
			}
			switch next {
			case 'n':
				buf.WriteByte('\n')
			case 'r':
				buf.WriteByte('\r')
			case 't':
				buf.WriteByte('\t')
			case 'b':
				buf.WriteByte('\b')
			case 'f':
				buf.WriteByte('\f')
			case '(', ')', '\\':
				buf.WriteByte(next)
			case '\r', '\n':
				// Line continuation: the backslash-newline pair vanishes.
				if next == '\r' {
					if p, err := l.peek(); err == nil && p == '\n' {
						l.readByte()
					}
				}
			case '0', '1', '2', '3', '4', '5', '6', '7':
				// Octal escape \ddd, up to three digits
				val := next - '0'
				for i := 0; i < 2; i++ {
					p, err := l.peek()
					if err != nil || !isOctalDigit(p) {
						break
					}
					d, _ := l.readByte()
					val = val*8 + (d - '0')
				}
				buf.WriteByte(val)
			default:
				// Unknown escape: the backslash is dropped
				buf.WriteByte(next)
			}
		default:
			buf.WriteByte(b)
		}
	}

	return &Token{Type: TokenString, Value: buf.Bytes(), Pos: startPos}, nil
}

// readHexString reads a hexadecimal string <48656C6C6F>. Non-hex bytes are
// skipped with a diagnostic; an odd digit count is padded with zero.
func (l *Lexer) readHexString() (*Token, error) {
	startPos := l.pos
	var digits bytes.Buffer

	l.readByte() // opening <

	for {
		b, err := l.readByte()
		if err == io.EOF {
			if derr := l.diag.Error(ErrFlagBadString, fmt.Errorf("%w: unterminated hex string at %d", ErrSyntax, startPos)); derr != nil {
				return nil, derr
			}
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrIO, err)
		}
		if b == '>' {
			break
		}
		if isWhitespace(b) {
			continue
		}
		if !isHexDigit(b) {
			if derr := l.diag.Error(ErrFlagBadString, fmt.Errorf("%w: invalid hex digit %q at %d", ErrSyntax, b, l.pos-1)); derr != nil {
				return nil, derr
			}
			continue
		}
		digits.WriteByte(b)
	}

	if digits.Len()%2 != 0 {
		digits.WriteByte('0')
	}

	raw := digits.Bytes()
	decoded := make([]byte, len(raw)/2)
	for i := 0; i < len(raw); i += 2 {
		decoded[i/2] = hexValue(raw[i])*16 + hexValue(raw[i+1])
	}

	return &Token{Type: TokenHexString, Value: decoded, Pos: startPos}, nil
}

// readName reads a name object /Type, decoding #XX hex escapes.
func (l *Lexer) readName() (*Token, error) {
	startPos := l.pos
	var buf bytes.Buffer

	l.readByte() // the /

	for {
		b, err := l.peek()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrIO, err)
		}
		if isWhitespace(b) || isDelimiter(b) {
			break
		}

		b, _ = l.readByte()

		if b == '#' {
			h1, err1 := l.readByte()
			h2, err2 := l.readByte()
			if err1 != nil || err2 != nil || !isHexDigit(h1) || !isHexDigit(h2) {
				if derr := l.diag.Error(ErrFlagBadName, fmt.Errorf("%w: invalid hex escape in name at %d", ErrSyntax, l.pos)); derr != nil {
					return nil, derr
				}
				// Keep the raw bytes so the name is still usable.
				buf.WriteByte('#')
				if err1 == nil {
					buf.WriteByte(h1)
				}
				if err2 == nil {
					buf.WriteByte(h2)
				}
				continue
			}
			buf.WriteByte(hexValue(h1)*16 + hexValue(h2))
		} else {
			buf.WriteByte(b)
		}
	}

	return &Token{Type: TokenName, Value: buf.Bytes(), Pos: startPos}, nil
}

// readNumber reads an integer or real number. Malformed spellings are left
// for the parser, which substitutes zero and records a diagnostic.
func (l *Lexer) readNumber() (*Token, error) {
	startPos := l.pos
	var buf bytes.Buffer
	hasDecimal := false

	for {
		b, err := l.peek()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrIO, err)
		}

		if b == '.' {
			if hasDecimal {
				break // second decimal point is not part of this number
			}
			hasDecimal = true
			b, _ = l.readByte()
			buf.WriteByte(b)
		} else if isDigit(b) || (buf.Len() == 0 && (b == '-' || b == '+')) {
			b, _ = l.readByte()
			buf.WriteByte(b)
		} else {
			break
		}
	}

	tokenType := TokenInteger
	if hasDecimal {
		tokenType = TokenReal
	}

	return &Token{Type: tokenType, Value: buf.Bytes(), Pos: startPos}, nil
}

// readKeyword reads a bare identifier. Recognized grammar spellings are
// promoted to their typed tokens; a single R becomes TokenIndirectRef.
func (l *Lexer) readKeyword() (*Token, error) {
	startPos := l.pos
	var buf bytes.Buffer

	for {
		b, err := l.peek()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrIO, err)
		}
		if isWhitespace(b) || isDelimiter(b) {
			break
		}
		b, _ = l.readByte()
		if buf.Len() >= maxKeywordLen {
			if derr := l.diag.Error(ErrFlagBadToken, fmt.Errorf("%w: keyword longer than %d bytes at %d", ErrSyntax, maxKeywordLen, startPos)); derr != nil {
				return nil, derr
			}
			continue // keep consuming, drop the excess
		}
		buf.WriteByte(b)
	}

	value := buf.Bytes()

	if len(value) == 1 && value[0] == 'R' {
		return &Token{Type: TokenIndirectRef, Value: value, Pos: startPos}, nil
	}
	if tt, ok := promotedKeywords[string(value)]; ok {
		return &Token{Type: tt, Value: value, Pos: startPos}, nil
	}

	return &Token{Type: TokenKeyword, Value: value, Pos: startPos}, nil
}

// Helper classification functions

func isWhitespace(b byte) bool {
	// PDF whitespace: space, tab, LF, CR, FF, null
	return b == ' ' || b == '\t' || b == '\n' || b == '\r' || b == '\f' || b == 0
}

func isDelimiter(b byte) bool {
	return b == '(' || b == ')' || b == '<' || b == '>' || b == '[' || b == ']' ||
		b == '{' || b == '}' || b == '/' || b == '%'
}

// isRegular reports whether b can start a bare keyword.
func isRegular(b byte) bool {
	return !isWhitespace(b) && !isDelimiter(b)
}

func isDigit(b byte) bool {
	return b >= '0' && b <= '9'
}

func isOctalDigit(b byte) bool {
	return b >= '0' && b <= '7'
}

func isHexDigit(b byte) bool {
	return (b >= '0' && b <= '9') || (b >= 'a' && b <= 'f') || (b >= 'A' && b <= 'F')
}

func hexValue(b byte) byte {
	switch {
	case b >= '0' && b <= '9':
		return b - '0'
	case b >= 'a' && b <= 'f':
		return b - 'a' + 10
	case b >= 'A' && b <= 'F':
		return b - 'A' + 10
	}
	return 0
}

// ReadBytes reads exactly n bytes from the underlying reader. Used for
// binary stream data, which is not tokenizable.
func (l *Lexer) ReadBytes(n int) ([]byte, error) {
	data := make([]byte, n)
	totalRead := 0

	for totalRead < n {
		bytesRead, err := l.reader.Read(data[totalRead:])
		totalRead += bytesRead
		l.pos += int64(bytesRead)

		if err == io.EOF && totalRead < n {
			return data[:totalRead], fmt.Errorf("%w: unexpected EOF, expected %d bytes, got %d", ErrIO, n, totalRead)
		}
		if err != nil && err != io.EOF {
			return data[:totalRead], fmt.Errorf("%w: %v", ErrIO, err)
		}
		if err == io.EOF {
			break
		}
	}

	return data, nil
}

// SkipStreamEOL consumes the single LF or CR+LF that the format requires
// after the stream keyword, before the raw data begins.
func (l *Lexer) SkipStreamEOL() error {
	b, err := l.peek()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrIO, err)
	}
	if b == '\r' {
		l.readByte()
		b, err = l.peek()
		if err != nil {
			return nil
		}
	}
	if b == '\n' {
		l.readByte()
	}
	return nil
}

// ScanUntil consumes bytes until the literal needle has been read, returning
// everything before it. Used to recover stream data when the declared length
// is wrong or missing.
func (l *Lexer) ScanUntil(needle []byte) ([]byte, error) {
	var buf bytes.Buffer
	window := make([]byte, 0, len(needle))
	for {
		b, err := l.readByte()
		if err == io.EOF {
			return buf.Bytes(), io.EOF
		}
		if err != nil {
			return buf.Bytes(), fmt.Errorf("%w: %v", ErrIO, err)
		}
		window = append(window, b)
		if len(window) > len(needle) {
			buf.WriteByte(window[0])
			window = window[1:]
		}
		if len(window) == len(needle) && bytes.Equal(window, needle) {
			return buf.Bytes(), nil
		}
	}
}

// Peek returns the next byte without consuming it
func (l *Lexer) Peek() (byte, error) {
	return l.peek()
}

// ReadByte reads and returns a single byte
func (l *Lexer) ReadByte() (byte, error) {
	return l.readByte()
}
