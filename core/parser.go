package core

import (
	"errors"
	"fmt"
	"io"
	"strconv"
)

// ReferenceResolver is an interface for resolving indirect references.
// This allows the parser to resolve indirect stream lengths when needed.
type ReferenceResolver interface {
	ResolveReference(ref IndirectRef) (Object, error)
}

// Parser parses PDF objects from an io.Reader using a Lexer for
// tokenization. Composite objects are built on an operand stack bounded by
// mark sentinels: an open delimiter pushes a mark, the matching close
// delimiter unwinds to it and replaces it with the finished array or
// dictionary.
//
// Objects returned by the parser carry one ownership share belonging to the
// caller; scalar objects are plain values and carry none.
type Parser struct {
	lexer        *Lexer
	stack        *Stack
	diag         *Diagnostics
	currentToken *Token // Current token being processed
	peekToken    *Token // Next token (lookahead)
	resolver     ReferenceResolver
}

// NewParser creates a new PDF parser for the given reader. diag may be nil.
// It initializes the lexer and loads the first two tokens for lookahead.
func NewParser(r io.Reader, diag *Diagnostics) *Parser {
	if diag == nil {
		diag = &Diagnostics{}
	}
	p := &Parser{
		lexer: NewLexer(r, diag),
		stack: NewStack(),
		diag:  diag,
	}
	p.nextToken()
	p.nextToken()
	return p
}

// SetReferenceResolver sets the reference resolver used for indirect stream
// lengths.
func (p *Parser) SetReferenceResolver(resolver ReferenceResolver) {
	p.resolver = resolver
}

// Stack exposes the parser's operand stack.
func (p *Parser) Stack() *Stack {
	return p.stack
}

// CurrentToken returns the token the parser is positioned on.
func (p *Parser) CurrentToken() *Token {
	return p.currentToken
}

// nextToken advances the parser to the next token by shifting the lookahead.
func (p *Parser) nextToken() error {
	p.currentToken = p.peekToken

	// If we just moved "stream" into currentToken, don't try to read the
	// next token: what follows is binary data that cannot be tokenized.
	// parseStream reads it directly off the lexer.
	if p.currentToken != nil && p.currentToken.Type == TokenStream {
		p.peekToken = nil
		return nil
	}

	token, err := p.lexer.NextToken()
	if err != nil {
		return err
	}
	p.peekToken = token
	return nil
}

// intFromToken parses an integer token, substituting zero for a malformed
// spelling and recording a diagnostic.
func (p *Parser) intFromToken(tok *Token) (Int, error) {
	v, err := strconv.ParseInt(string(tok.Value), 10, 64)
	if err != nil {
		if derr := p.diag.Error(ErrFlagBadNumber, fmt.Errorf("%w: malformed integer %q at %d", ErrSyntax, tok.Value, tok.Pos)); derr != nil {
			return 0, derr
		}
		return 0, nil
	}
	return Int(v), nil
}

// realFromToken parses a real token, substituting zero for a malformed
// spelling and recording a diagnostic.
func (p *Parser) realFromToken(tok *Token) (Real, error) {
	v, err := strconv.ParseFloat(string(tok.Value), 64)
	if err != nil {
		if derr := p.diag.Error(ErrFlagBadNumber, fmt.Errorf("%w: malformed number %q at %d", ErrSyntax, tok.Value, tok.Pos)); derr != nil {
			return 0, derr
		}
		return 0, nil
	}
	return Real(v), nil
}

// ParseObject parses and returns the next PDF object from the input.
// It handles all object types: null, boolean, integer, real, string, name,
// array, dictionary, and indirect references.
func (p *Parser) ParseObject() (Object, error) {
	if p.currentToken == nil {
		return nil, fmt.Errorf("%w: unexpected end of input", ErrSyntax)
	}

	switch p.currentToken.Type {
	case TokenEOF:
		return nil, io.EOF

	case TokenNull:
		p.nextToken()
		return NullValue, nil
	case TokenTrue:
		p.nextToken()
		return Bool(true), nil
	case TokenFalse:
		p.nextToken()
		return Bool(false), nil

	case TokenInteger:
		// Could be an integer or the start of an indirect reference
		return p.parseNumber()

	case TokenReal:
		val, err := p.realFromToken(p.currentToken)
		if err != nil {
			return nil, err
		}
		p.nextToken()
		return val, nil

	case TokenString, TokenHexString:
		val := String(p.currentToken.Value)
		p.nextToken()
		return val, nil

	case TokenName:
		val := Name(p.currentToken.Value)
		p.nextToken()
		return val, nil

	case TokenArrayStart, TokenDictStart, TokenProcStart:
		return p.parseComposite()

	default:
		return nil, fmt.Errorf("%w: unexpected token type %v at position %d", ErrSyntax, p.currentToken.Type, p.currentToken.Pos)
	}
}

// parseNumber parses an integer or an indirect reference at top level.
// Indirect references are detected by lookahead: "num gen R".
func (p *Parser) parseNumber() (Object, error) {
	first, err := p.intFromToken(p.currentToken)
	if err != nil {
		return nil, err
	}

	if p.peekToken != nil && p.peekToken.Type == TokenInteger {
		second, err := p.intFromToken(p.peekToken)
		if err != nil {
			return nil, err
		}
		p.nextToken() // move to the second integer
		if p.peekToken != nil && p.peekToken.Type == TokenIndirectRef {
			p.nextToken() // move to R
			p.nextToken() // move past R
			return IndirectRef{
				Number:     int(first),
				Generation: int(second),
			}, nil
		}
		// Not a reference. The parser is now positioned on the second
		// integer; return the first.
		return first, nil
	}

	p.nextToken()
	return first, nil
}

// parseComposite drives the operand stack until the composite opened by the
// current token is complete, then pops and returns it.
func (p *Parser) parseComposite() (Object, error) {
	depth := 0

	for {
		if p.currentToken == nil {
			return nil, fmt.Errorf("%w: unexpected end of input in composite", ErrSyntax)
		}

		switch p.currentToken.Type {
		case TokenEOF:
			p.stack.Clear()
			return nil, fmt.Errorf("%w: unexpected EOF inside composite object", ErrSyntax)

		case TokenArrayStart:
			p.stack.PushMark(MarkArray)
			depth++

		case TokenProcStart:
			// Procedure literals only occur inside function definitions;
			// they are collected like arrays.
			p.stack.PushMark(MarkProc)
			depth++

		case TokenDictStart:
			p.stack.PushMark(MarkDict)
			depth++

		case TokenArrayEnd:
			if _, err := p.stack.CloseArray(); err != nil {
				if errors.Is(err, ErrNoMark) {
					p.diag.Warn(WarnUnmatchedClose)
					break
				}
				return nil, err
			}
			depth--

		case TokenProcEnd:
			if err := p.closeProc(); err != nil {
				if errors.Is(err, ErrNoMark) {
					p.diag.Warn(WarnUnmatchedClose)
					break
				}
				return nil, err
			}
			depth--

		case TokenDictEnd:
			if _, err := p.stack.CloseDict(); err != nil {
				if errors.Is(err, ErrNoMark) {
					p.diag.Warn(WarnUnmatchedClose)
					break
				}
				// CloseDict consumed the operands and pushed a null
				// substitute, so the stack is balanced either way.
				if errors.Is(err, ErrType) {
					p.diag.Warn(WarnBadDictKey)
				}
				if derr := p.diag.Error(ErrFlagBadToken, err); derr != nil {
					p.stack.Clear()
					return nil, derr
				}
			}
			depth--

		case TokenInteger:
			v, err := p.intFromToken(p.currentToken)
			if err != nil {
				p.stack.Clear()
				return nil, err
			}
			p.stack.Push(v)

		case TokenReal:
			v, err := p.realFromToken(p.currentToken)
			if err != nil {
				p.stack.Clear()
				return nil, err
			}
			p.stack.Push(v)

		case TokenString, TokenHexString:
			p.stack.Push(String(p.currentToken.Value))

		case TokenName:
			p.stack.Push(Name(p.currentToken.Value))

		case TokenNull:
			p.stack.Push(NullValue)
		case TokenTrue:
			p.stack.Push(Bool(true))
		case TokenFalse:
			p.stack.Push(Bool(false))

		case TokenIndirectRef:
			// R consumes the two preceding integer operands in place.
			if err := p.reduceReference(); err != nil {
				p.stack.Clear()
				return nil, err
			}

		default:
			// A grammar keyword has no business inside a composite.
			if derr := p.diag.Error(ErrFlagBadToken, fmt.Errorf("%w: unexpected keyword %q inside composite at %d", ErrSyntax, p.currentToken.Value, p.currentToken.Pos)); derr != nil {
				p.stack.Clear()
				return nil, derr
			}
		}

		if err := p.nextToken(); err != nil {
			p.stack.Clear()
			return nil, err
		}

		if depth == 0 {
			obj, err := p.stack.Pop()
			if err != nil {
				return nil, err
			}
			return obj, nil
		}
	}
}

// closeProc collects a procedure literal into an array by rewriting the
// procedure mark and reusing the array unwind.
func (p *Parser) closeProc() error {
	if _, err := p.stack.countToMark(MarkProc); err != nil {
		return err
	}
	for i := len(p.stack.items) - 1; i >= 0; i-- {
		if m, ok := p.stack.items[i].(Mark); ok && m.Kind == MarkProc {
			p.stack.items[i] = Mark{Kind: MarkArray}
			break
		}
	}
	_, err := p.stack.CloseArray()
	return err
}

// reduceReference replaces the two integers below the R token with an
// indirect reference object.
func (p *Parser) reduceReference() error {
	gen, err := p.stack.Pop()
	if err != nil {
		return p.diag.Error(ErrFlagBadToken, fmt.Errorf("%w: R with empty stack", ErrSyntax))
	}
	num, err := p.stack.Pop()
	if err != nil {
		Release(gen)
		return p.diag.Error(ErrFlagBadToken, fmt.Errorf("%w: R with a single operand", ErrSyntax))
	}
	genInt, ok1 := gen.(Int)
	numInt, ok2 := num.(Int)
	if !ok1 || !ok2 {
		// Put the operands back; the R is dropped.
		p.stack.Push(num)
		p.stack.Push(gen)
		Release(num)
		Release(gen)
		return p.diag.Error(ErrFlagBadToken, fmt.Errorf("%w: R preceded by %v and %v, expected integers", ErrType, num.Type(), gen.Type()))
	}
	Release(num)
	Release(gen)
	p.stack.Push(IndirectRef{Number: int(numInt), Generation: int(genInt)})
	return nil
}

// ParseIndirectObject parses an indirect object definition.
// Format: "num gen obj <object> endobj" or
// "num gen obj <dict> stream ... endstream endobj".
// Composite results are stamped with their (number, generation) identity.
func (p *Parser) ParseIndirectObject() (*IndirectObject, error) {
	if p.currentToken == nil || p.currentToken.Type != TokenInteger {
		return nil, fmt.Errorf("%w: expected object number, got %v", ErrSyntax, p.tokenDesc())
	}
	num, err := p.intFromToken(p.currentToken)
	if err != nil {
		return nil, err
	}
	p.nextToken()

	if p.currentToken == nil || p.currentToken.Type != TokenInteger {
		return nil, fmt.Errorf("%w: expected generation number, got %v", ErrSyntax, p.tokenDesc())
	}
	gen, err := p.intFromToken(p.currentToken)
	if err != nil {
		return nil, err
	}
	p.nextToken()

	if p.currentToken == nil || p.currentToken.Type != TokenObj {
		return nil, fmt.Errorf("%w: expected 'obj' keyword, got %v", ErrSyntax, p.tokenDesc())
	}
	p.nextToken()

	obj, err := p.ParseObject()
	if err != nil {
		return nil, fmt.Errorf("error parsing indirect object value: %w", err)
	}

	if p.currentToken != nil && p.currentToken.Type == TokenStream {
		dict, ok := obj.(*Dict)
		if !ok {
			Release(obj)
			return nil, fmt.Errorf("%w: stream must follow a dictionary, got %v", ErrType, obj.Type())
		}
		stream, err := p.parseStream(dict)
		if err != nil {
			Release(dict)
			return nil, fmt.Errorf("error parsing stream: %w", err)
		}
		Release(dict) // the stream holds its own share now
		obj = stream
	}

	if p.currentToken != nil && p.currentToken.Type == TokenEndObj {
		p.nextToken()
	} else {
		if derr := p.diag.Error(ErrFlagMissingEndobj, fmt.Errorf("%w: expected 'endobj', got %v", ErrSyntax, p.tokenDesc())); derr != nil {
			Release(obj)
			return nil, derr
		}
	}

	ref := IndirectRef{Number: int(num), Generation: int(gen)}
	switch v := obj.(type) {
	case *Array:
		v.SetIndirect(ref.Number, ref.Generation)
	case *Dict:
		v.SetIndirect(ref.Number, ref.Generation)
	case *Stream:
		v.SetIndirect(ref.Number, ref.Generation)
	}

	return &IndirectObject{Ref: ref, Object: obj}, nil
}

func (p *Parser) tokenDesc() string {
	if p.currentToken == nil {
		return "<none>"
	}
	return fmt.Sprintf("%v %q at %d", p.currentToken.Type, p.currentToken.Value, p.currentToken.Pos)
}

// parseStream parses a stream object after the "stream" keyword. The data
// length comes from the /Length dictionary entry; when that is missing or
// wrong the data is recovered by scanning for the endstream keyword.
// The returned stream carries one caller-owned share.
func (p *Parser) parseStream(dict *Dict) (*Stream, error) {
	if p.currentToken == nil || p.currentToken.Type != TokenStream {
		return nil, fmt.Errorf("%w: expected 'stream' keyword", ErrSyntax)
	}

	length := -1
	switch v := dict.Get("Length").(type) {
	case Int:
		if v >= 0 {
			length = int(v)
		} else if derr := p.diag.Error(ErrFlagBadStreamLength, fmt.Errorf("%w: negative stream length %d", ErrRange, v)); derr != nil {
			return nil, derr
		}
	case IndirectRef:
		if p.resolver == nil {
			if derr := p.diag.Error(ErrFlagBadStreamLength, fmt.Errorf("%w: indirect stream length with no resolver", ErrUndefined)); derr != nil {
				return nil, derr
			}
			break
		}
		resolved, err := p.resolver.ResolveReference(v)
		if err != nil {
			if derr := p.diag.Error(ErrFlagBadStreamLength, fmt.Errorf("failed to resolve stream length: %w", err)); derr != nil {
				return nil, derr
			}
			break
		}
		if n, ok := resolved.(Int); ok && n >= 0 {
			length = int(n)
		} else if derr := p.diag.Error(ErrFlagBadStreamLength, fmt.Errorf("%w: stream length resolved to %v", ErrType, resolved.Type())); derr != nil {
			Release(resolved)
			return nil, derr
		}
		Release(resolved)
	case nil:
		// Missing /Length: skip length verification, scan for endstream.
		if derr := p.diag.Error(ErrFlagBadStreamLength, fmt.Errorf("%w: stream dictionary missing /Length", ErrUndefined)); derr != nil {
			return nil, derr
		}
	default:
		if derr := p.diag.Error(ErrFlagBadStreamLength, fmt.Errorf("%w: invalid stream length type %T", ErrType, v)); derr != nil {
			return nil, derr
		}
	}

	// The stream keyword is followed by a single LF or CRLF, then the data.
	if err := p.lexer.SkipStreamEOL(); err != nil {
		return nil, err
	}

	var data []byte
	if length >= 0 {
		var err error
		data, err = p.lexer.ReadBytes(length)
		if err != nil {
			return nil, err
		}
		token, err := p.lexer.NextToken()
		if err != nil {
			return nil, err
		}
		if token.Type != TokenEndStream {
			// Declared length was wrong. Keep the declared bytes and
			// resynchronize on the endstream keyword.
			if derr := p.diag.Error(ErrFlagMissingEndstream, fmt.Errorf("%w: expected 'endstream' after %d bytes, got %q", ErrSyntax, length, token.Value)); derr != nil {
				return nil, derr
			}
			if _, err := p.lexer.ScanUntil([]byte("endstream")); err != nil && err != io.EOF {
				return nil, err
			}
		}
	} else {
		raw, err := p.lexer.ScanUntil([]byte("endstream"))
		if err != nil && err != io.EOF {
			return nil, err
		}
		data = trimStreamEOL(raw)
	}

	// Reload the token pipeline so the caller can continue normally.
	p.currentToken = nil
	p.peekToken = nil
	p.nextToken()
	p.nextToken()

	stream := NewStream(dict, data)
	Retain(stream)
	return stream, nil
}

// trimStreamEOL drops the end-of-line bytes that separate stream data from
// the endstream keyword.
func trimStreamEOL(data []byte) []byte {
	if n := len(data); n > 0 && data[n-1] == '\n' {
		data = data[:n-1]
	}
	if n := len(data); n > 0 && data[n-1] == '\r' {
		data = data[:n-1]
	}
	return data
}
