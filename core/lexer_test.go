package core

import (
	"bytes"
	"io"
	"strings"
	"testing"
)

// lexAll tokenizes the whole input, failing the test on any error.
func lexAll(t *testing.T, input string) []*Token {
	t.Helper()
	lexer := NewLexer(strings.NewReader(input), nil)
	var toks []*Token
	for {
		tok, err := lexer.NextToken()
		if err != nil {
			t.Fatalf("NextToken: %v", err)
		}
		if tok.Type == TokenEOF {
			return toks
		}
		toks = append(toks, tok)
	}
}

// TestLexerEOF tests that end of input is a token, not an error
func TestLexerEOF(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty input", ""},
		{"whitespace only", " \t\r\n\f\x00 "},
		{"comment only", "% just a comment"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lexer := NewLexer(strings.NewReader(tt.input), nil)
			tok, err := lexer.NextToken()
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tok.Type != TokenEOF {
				t.Errorf("got %v, want TokenEOF", tok.Type)
			}
		})
	}
}

// TestLexerNumbers tests integer and real tokenization
func TestLexerNumbers(t *testing.T) {
	tests := []struct {
		input    string
		wantType TokenType
		want     string
	}{
		{"123", TokenInteger, "123"},
		{"-17", TokenInteger, "-17"},
		{"+5", TokenInteger, "+5"},
		{"0", TokenInteger, "0"},
		{"3.14", TokenReal, "3.14"},
		{"-.5", TokenReal, "-.5"},
		{"4.", TokenReal, "4."},
		{".25", TokenReal, ".25"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			toks := lexAll(t, tt.input)
			if len(toks) != 1 {
				t.Fatalf("got %d tokens, want 1", len(toks))
			}
			if toks[0].Type != tt.wantType {
				t.Errorf("type = %v, want %v", toks[0].Type, tt.wantType)
			}
			if string(toks[0].Value) != tt.want {
				t.Errorf("value = %q, want %q", toks[0].Value, tt.want)
			}
		})
	}
}

// TestLexerStrings tests literal string escapes and nesting
func TestLexerStrings(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain", "(hello)", "hello"},
		{"nested parens", "(a (b) c)", "a (b) c"},
		{"escapes", `(\n\r\t\b\f\(\)\\)`, "\n\r\t\b\f()\\"},
		{"octal", `(\101\102)`, "AB"},
		{"short octal", `(\53)`, "+"},
		{"unknown escape drops backslash", `(\q)`, "q"},
		{"line continuation", "(ab\\\ncd)", "abcd"},
		{"crlf continuation", "(ab\\\r\ncd)", "abcd"},
		{"empty", "()", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			toks := lexAll(t, tt.input)
			if len(toks) != 1 || toks[0].Type != TokenString {
				t.Fatalf("got %v", toks)
			}
			if string(toks[0].Value) != tt.want {
				t.Errorf("value = %q, want %q", toks[0].Value, tt.want)
			}
		})
	}
}

// TestLexerUnterminatedString tests best-effort recovery at EOF inside a
// string
func TestLexerUnterminatedString(t *testing.T) {
	diag := &Diagnostics{}
	lexer := NewLexer(strings.NewReader("(never ends"), diag)

	tok, err := lexer.NextToken()
	if err != nil {
		t.Fatalf("NextToken: %v", err)
	}
	if tok.Type != TokenString || string(tok.Value) != "never ends" {
		t.Errorf("got %v %q", tok.Type, tok.Value)
	}
	if diag.Errors&ErrFlagBadString == 0 {
		t.Error("bad-string flag not set")
	}

	// Strict mode turns the same input into a hard error.
	strict := NewLexer(strings.NewReader("(never ends"), &Diagnostics{Strict: true})
	if _, err := strict.NextToken(); err == nil {
		t.Error("strict lexer accepted an unterminated string")
	}
}

// TestLexerHexStrings tests hex string decoding
func TestLexerHexStrings(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain", "<48656C6C6F>", "Hello"},
		{"whitespace ignored", "<48 65\n6C6C 6F>", "Hello"},
		{"odd digits padded", "<48652>", "He "},
		{"empty", "<>", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			toks := lexAll(t, tt.input)
			if len(toks) != 1 || toks[0].Type != TokenHexString {
				t.Fatalf("got %v", toks)
			}
			if string(toks[0].Value) != tt.want {
				t.Errorf("value = %q, want %q", toks[0].Value, tt.want)
			}
		})
	}
}

// TestLexerHexStringBadDigit tests that junk bytes inside a hex string are
// skipped with a diagnostic
func TestLexerHexStringBadDigit(t *testing.T) {
	diag := &Diagnostics{}
	lexer := NewLexer(strings.NewReader("<48x65>"), diag)
	tok, err := lexer.NextToken()
	if err != nil {
		t.Fatalf("NextToken: %v", err)
	}
	if string(tok.Value) != "He" {
		t.Errorf("value = %q, want %q", tok.Value, "He")
	}
	if diag.Errors&ErrFlagBadString == 0 {
		t.Error("bad-string flag not set")
	}
}

// TestLexerNames tests name tokenization and #XX escapes
func TestLexerNames(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"/Type", "Type"},
		{"/A#42C", "ABC"},
		{"/Lime#20Green", "Lime Green"},
		{"/", ""},
		{"/Name1/Name2", "Name1"}, // delimiter ends the name
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			lexer := NewLexer(strings.NewReader(tt.input), nil)
			tok, err := lexer.NextToken()
			if err != nil {
				t.Fatalf("NextToken: %v", err)
			}
			if tok.Type != TokenName {
				t.Fatalf("type = %v", tok.Type)
			}
			if string(tok.Value) != tt.want {
				t.Errorf("value = %q, want %q", tok.Value, tt.want)
			}
		})
	}
}

// TestLexerDelimiters tests the structural tokens
func TestLexerDelimiters(t *testing.T) {
	toks := lexAll(t, "[ ] << >> { }")
	wantTypes := []TokenType{
		TokenArrayStart, TokenArrayEnd,
		TokenDictStart, TokenDictEnd,
		TokenProcStart, TokenProcEnd,
	}
	if len(toks) != len(wantTypes) {
		t.Fatalf("got %d tokens, want %d", len(toks), len(wantTypes))
	}
	for i, want := range wantTypes {
		if toks[i].Type != want {
			t.Errorf("token %d = %v, want %v", i, toks[i].Type, want)
		}
	}
}

// TestLexerPromotedKeywords tests the grammar keyword promotion
func TestLexerPromotedKeywords(t *testing.T) {
	tests := []struct {
		input string
		want  TokenType
	}{
		{"obj", TokenObj},
		{"endobj", TokenEndObj},
		{"stream", TokenStream},
		{"endstream", TokenEndStream},
		{"startxref", TokenStartXref},
		{"trailer", TokenTrailer},
		{"xref", TokenXref},
		{"true", TokenTrue},
		{"false", TokenFalse},
		{"null", TokenNull},
		{"R", TokenIndirectRef},
		{"BT", TokenKeyword},
		{"f*", TokenKeyword},
		{"'", TokenKeyword},
		{"\"", TokenKeyword},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			toks := lexAll(t, tt.input)
			if len(toks) != 1 {
				t.Fatalf("got %d tokens", len(toks))
			}
			if toks[0].Type != tt.want {
				t.Errorf("type = %v, want %v", toks[0].Type, tt.want)
			}
		})
	}
}

// TestLexerCommentsSkipped tests that comments vanish between tokens
func TestLexerCommentsSkipped(t *testing.T) {
	toks := lexAll(t, "1 % ignore to end of line\n2")
	if len(toks) != 2 {
		t.Fatalf("got %d tokens, want 2", len(toks))
	}
	if string(toks[0].Value) != "1" || string(toks[1].Value) != "2" {
		t.Errorf("tokens = %q, %q", toks[0].Value, toks[1].Value)
	}
}

// TestLexerPositions tests byte position tracking
func TestLexerPositions(t *testing.T) {
	toks := lexAll(t, "12 /N (s)")
	wantPos := []int64{0, 3, 6}
	for i, want := range wantPos {
		if toks[i].Pos != want {
			t.Errorf("token %d pos = %d, want %d", i, toks[i].Pos, want)
		}
	}
}

// TestScanUntil tests the raw-scan recovery primitive
func TestScanUntil(t *testing.T) {
	lexer := NewLexer(strings.NewReader("some raw data ENDMARK tail"), nil)
	data, err := lexer.ScanUntil([]byte("ENDMARK"))
	if err != nil {
		t.Fatalf("ScanUntil: %v", err)
	}
	if string(data) != "some raw data " {
		t.Errorf("data = %q", data)
	}

	// The needle itself is consumed.
	tok, err := lexer.NextToken()
	if err != nil {
		t.Fatalf("NextToken: %v", err)
	}
	if string(tok.Value) != "tail" {
		t.Errorf("next token = %q, want %q", tok.Value, "tail")
	}
}

// TestScanUntilNotFound tests the io.EOF contract when the needle is absent
func TestScanUntilNotFound(t *testing.T) {
	lexer := NewLexer(strings.NewReader("nothing here"), nil)
	data, err := lexer.ScanUntil([]byte("ENDMARK"))
	if err != io.EOF {
		t.Fatalf("err = %v, want io.EOF", err)
	}
	if len(data) == 0 {
		t.Error("partial data was discarded")
	}
}

// TestSkipStreamEOL tests the stream-keyword EOL variants
func TestSkipStreamEOL(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string // bytes remaining after the skip
	}{
		{"lf", "\ndata", "data"},
		{"crlf", "\r\ndata", "data"},
		{"cr only", "\rdata", "data"},
		{"no eol", "data", "data"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lexer := NewLexer(strings.NewReader(tt.input), nil)
			if err := lexer.SkipStreamEOL(); err != nil {
				t.Fatalf("SkipStreamEOL: %v", err)
			}
			rest, err := lexer.ReadBytes(len(tt.want))
			if err != nil {
				t.Fatalf("ReadBytes: %v", err)
			}
			if string(rest) != tt.want {
				t.Errorf("remaining = %q, want %q", rest, tt.want)
			}
		})
	}
}

// TestReadBytes tests exact binary reads and the short-read error
func TestReadBytes(t *testing.T) {
	lexer := NewLexer(bytes.NewReader([]byte{0, 1, 2, 3}), nil)
	data, err := lexer.ReadBytes(3)
	if err != nil {
		t.Fatalf("ReadBytes: %v", err)
	}
	if !bytes.Equal(data, []byte{0, 1, 2}) {
		t.Errorf("data = %v", data)
	}
	if lexer.Pos() != 3 {
		t.Errorf("pos = %d, want 3", lexer.Pos())
	}

	if _, err := lexer.ReadBytes(5); err == nil {
		t.Error("short read did not error")
	}
}

// TestLexerJunkRecovery tests that stray delimiter bytes are swallowed with
// a diagnostic in best-effort mode
func TestLexerJunkRecovery(t *testing.T) {
	diag := &Diagnostics{}
	lexer := NewLexer(strings.NewReader("> ) 7"), diag)
	tok, err := lexer.NextToken()
	if err != nil {
		t.Fatalf("NextToken: %v", err)
	}
	if tok.Type != TokenInteger || string(tok.Value) != "7" {
		t.Errorf("got %v %q, want the integer after the junk", tok.Type, tok.Value)
	}
	if diag.Errors&ErrFlagBadToken == 0 {
		t.Error("bad-token flag not set")
	}
	if diag.Errors&ErrFlagBadString == 0 {
		t.Error("bad-string flag not set for the stray ')'")
	}
}
