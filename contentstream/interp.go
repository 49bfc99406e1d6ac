package contentstream

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"

	"github.com/mblythe/vellum/core"
)

// Interpreter executes a content stream against a Device. Operands are
// accumulated on the shared operand stack machinery; each operator takes
// the operands pushed since the previous one. Damage is absorbed under the
// best-effort policy: bad operands, unknown operators, and unbalanced
// nesting are recorded as warnings and execution continues.
type Interpreter struct {
	dev  Device
	diag *core.Diagnostics

	lexer *core.Lexer
	stack *core.Stack

	saveDepth   int
	textDepth   int
	markedDepth int
	compatDepth int
}

// New creates an interpreter driving dev.
func New(dev Device, diag *core.Diagnostics) *Interpreter {
	if diag == nil {
		diag = &core.Diagnostics{}
	}
	return &Interpreter{dev: dev, diag: diag}
}

// Run interprets one content stream. Page content split across multiple
// stream parts must be concatenated by the caller first, since operators
// may straddle part boundaries.
func (it *Interpreter) Run(data []byte) error {
	it.lexer = core.NewLexer(bytes.NewReader(data), it.diag)
	it.stack = core.NewStack()
	it.saveDepth, it.textDepth, it.markedDepth, it.compatDepth = 0, 0, 0, 0
	defer it.stack.Clear()

	for {
		tok, err := it.lexer.NextToken()
		if err != nil {
			return err
		}

		switch tok.Type {
		case core.TokenEOF, core.TokenEndStream, core.TokenEndObj:
			it.finish()
			return nil

		case core.TokenInteger:
			n, err := strconv.ParseInt(string(tok.Value), 10, 64)
			if err != nil {
				if derr := it.diag.Error(core.ErrFlagBadNumber,
					fmt.Errorf("%w: bad integer %q", core.ErrSyntax, tok.Value)); derr != nil {
					return derr
				}
				n = 0
			}
			it.stack.Push(core.Int(n))

		case core.TokenReal:
			f, err := strconv.ParseFloat(string(tok.Value), 64)
			if err != nil {
				if derr := it.diag.Error(core.ErrFlagBadNumber,
					fmt.Errorf("%w: bad number %q", core.ErrSyntax, tok.Value)); derr != nil {
					return derr
				}
				f = 0
			}
			it.stack.Push(core.Real(f))

		case core.TokenString, core.TokenHexString:
			it.stack.Push(core.String(tok.Value))

		case core.TokenName:
			it.stack.Push(core.Name(tok.Value))

		case core.TokenTrue:
			it.stack.Push(core.Bool(true))
		case core.TokenFalse:
			it.stack.Push(core.Bool(false))
		case core.TokenNull:
			it.stack.Push(core.NullValue)

		case core.TokenArrayStart:
			it.stack.PushMark(core.MarkArray)
		case core.TokenArrayEnd:
			if _, err := it.stack.CloseArray(); err != nil {
				it.diag.Warn(core.WarnUnmatchedClose)
			}

		case core.TokenDictStart:
			it.stack.PushMark(core.MarkDict)
		case core.TokenDictEnd:
			if _, err := it.stack.CloseDict(); err != nil {
				if errors.Is(err, core.ErrNoMark) {
					it.diag.Warn(core.WarnUnmatchedClose)
					continue
				}
				// A null substitute was pushed in the dictionary's place.
				if errors.Is(err, core.ErrType) {
					it.diag.Warn(core.WarnBadDictKey)
				}
				if derr := it.diag.Error(core.ErrFlagBadToken, err); derr != nil {
					return derr
				}
			}

		case core.TokenKeyword:
			if err := it.operator(string(tok.Value)); err != nil {
				return err
			}

		default:
			// Body-grammar keywords like obj or xref have no place in a
			// content stream.
			it.diag.Warn(core.WarnUnknownOperator)
			it.stack.Clear()
		}
	}
}

// finish applies the end-of-stream balance checks.
func (it *Interpreter) finish() {
	if it.stack.Depth() > 0 {
		it.diag.Warn(core.WarnStackGarbage)
		it.stack.Clear()
	}
	if it.saveDepth > 0 {
		it.diag.Warn(core.WarnUnbalancedSave)
	}
	if it.textDepth > 0 {
		it.diag.Warn(core.WarnUnbalancedTextBlock)
	}
	if it.markedDepth > 0 {
		it.diag.Warn(core.WarnUnterminatedMarkedContent)
	}
}

// operator dispatches one operator keyword against the operand stack.
func (it *Interpreter) operator(name string) error {
	h, ok := operators[name]
	if !ok {
		return it.unknownOperator(name)
	}
	return it.execute(name, h)
}

func (it *Interpreter) execute(name string, h handler) error {
	args, ok := it.takeOperands(h.arity)
	defer releaseAll(args)
	// Any operands beyond what the operator consumes are discarded.
	it.stack.Clear()
	if !ok {
		return it.badOperands(name)
	}

	if err := h.fn(it, args); err != nil {
		if err == errBadOperands {
			return it.badOperands(name)
		}
		return err
	}
	return nil
}

// takeOperands pops arity operands, returning them in push order. A
// negative arity takes the whole stack.
func (it *Interpreter) takeOperands(arity int) ([]core.Object, bool) {
	if arity < 0 {
		arity = it.stack.Depth()
	}
	if it.stack.Depth() < arity {
		return nil, false
	}
	args := make([]core.Object, arity)
	for i := arity - 1; i >= 0; i-- {
		obj, err := it.stack.Pop()
		if err != nil {
			return args, false
		}
		args[i] = obj
	}
	return args, true
}

func releaseAll(args []core.Object) {
	for _, a := range args {
		core.Release(a)
	}
}

// unknownOperator applies the recovery ladder: ignore inside BX/EX, then
// try splitting a run-together keyword into two known operators, then warn.
func (it *Interpreter) unknownOperator(name string) error {
	if it.compatDepth > 0 {
		it.stack.Clear()
		return nil
	}

	if len(name) > 3 {
		for i := 1; i < len(name); i++ {
			first, okFirst := operators[name[:i]]
			second, okSecond := operators[name[i:]]
			if okFirst && okSecond {
				it.diag.Warn(core.WarnSplitOperator)
				if err := it.execute(name[:i], first); err != nil {
					return err
				}
				return it.execute(name[i:], second)
			}
		}
	}

	it.diag.Warn(core.WarnUnknownOperator)
	it.stack.Clear()
	return nil
}

func (it *Interpreter) badOperands(name string) error {
	it.diag.Warn(core.WarnBadOperands)
	if it.diag.Strict {
		return fmt.Errorf("%w: bad operands for %q", core.ErrType, name)
	}
	return nil
}

// errBadOperands is the handlers' internal signal for an operand type
// mismatch; execute translates it into the policy outcome.
var errBadOperands = fmt.Errorf("bad operands")

type handler struct {
	arity int // -1 consumes the whole stack
	fn    func(it *Interpreter, args []core.Object) error
}

func number(obj core.Object) (float64, bool) {
	switch v := obj.(type) {
	case core.Int:
		return float64(v), true
	case core.Real:
		return float64(v), true
	}
	return 0, false
}

func numbers(args []core.Object) ([]float64, bool) {
	out := make([]float64, len(args))
	for i, a := range args {
		n, ok := number(a)
		if !ok {
			return nil, false
		}
		out[i] = n
	}
	return out, true
}

func integer(obj core.Object) (int, bool) {
	n, ok := obj.(core.Int)
	return int(n), ok
}

func name(obj core.Object) (core.Name, bool) {
	n, ok := obj.(core.Name)
	return n, ok
}

func str(obj core.Object) (core.String, bool) {
	s, ok := obj.(core.String)
	return s, ok
}

func matrixFrom(args []core.Object) (Matrix, bool) {
	var m Matrix
	ns, ok := numbers(args)
	if !ok {
		return m, false
	}
	copy(m[:], ns)
	return m, true
}

// numericHandler adapts an all-numeric operator.
func numericHandler(arity int, fn func(it *Interpreter, ns []float64)) handler {
	return handler{arity: arity, fn: func(it *Interpreter, args []core.Object) error {
		ns, ok := numbers(args)
		if !ok {
			return errBadOperands
		}
		fn(it, ns)
		return nil
	}}
}

func paintHandler(op PaintOp) handler {
	return handler{arity: 0, fn: func(it *Interpreter, args []core.Object) error {
		it.dev.Paint(op)
		return nil
	}}
}

var operators map[string]handler

func init() {
	operators = map[string]handler{
		// Graphics state.
		"q": {0, func(it *Interpreter, args []core.Object) error {
			it.saveDepth++
			it.dev.Save()
			return nil
		}},
		"Q": {0, func(it *Interpreter, args []core.Object) error {
			if it.saveDepth == 0 {
				it.diag.Warn(core.WarnUnbalancedSave)
				return nil
			}
			it.saveDepth--
			it.dev.Restore()
			return nil
		}},
		"cm": {6, func(it *Interpreter, args []core.Object) error {
			m, ok := matrixFrom(args)
			if !ok {
				return errBadOperands
			}
			it.dev.Concat(m)
			return nil
		}},
		"w": numericHandler(1, func(it *Interpreter, ns []float64) { it.dev.SetLineWidth(ns[0]) }),
		"J": {1, func(it *Interpreter, args []core.Object) error {
			c, ok := integer(args[0])
			if !ok {
				return errBadOperands
			}
			it.dev.SetLineCap(c)
			return nil
		}},
		"j": {1, func(it *Interpreter, args []core.Object) error {
			j, ok := integer(args[0])
			if !ok {
				return errBadOperands
			}
			it.dev.SetLineJoin(j)
			return nil
		}},
		"M": numericHandler(1, func(it *Interpreter, ns []float64) { it.dev.SetMiterLimit(ns[0]) }),
		"d": {2, func(it *Interpreter, args []core.Object) error {
			arr, ok := args[0].(*core.Array)
			if !ok {
				return errBadOperands
			}
			phase, ok := number(args[1])
			if !ok {
				return errBadOperands
			}
			pattern := make([]float64, 0, arr.Len())
			for i := 0; i < arr.Len(); i++ {
				n, ok := arr.GetNumber(i)
				if !ok {
					return errBadOperands
				}
				pattern = append(pattern, n)
			}
			it.dev.SetDash(pattern, phase)
			return nil
		}},
		"ri": {1, func(it *Interpreter, args []core.Object) error {
			n, ok := name(args[0])
			if !ok {
				return errBadOperands
			}
			it.dev.SetRenderingIntent(n)
			return nil
		}},
		"i": numericHandler(1, func(it *Interpreter, ns []float64) { it.dev.SetFlatness(ns[0]) }),
		"gs": {1, func(it *Interpreter, args []core.Object) error {
			n, ok := name(args[0])
			if !ok {
				return errBadOperands
			}
			it.dev.SetExtGState(n)
			return nil
		}},

		// Path construction.
		"m": numericHandler(2, func(it *Interpreter, ns []float64) { it.dev.MoveTo(ns[0], ns[1]) }),
		"l": numericHandler(2, func(it *Interpreter, ns []float64) { it.dev.LineTo(ns[0], ns[1]) }),
		"c": numericHandler(6, func(it *Interpreter, ns []float64) {
			it.dev.CurveTo(ns[0], ns[1], ns[2], ns[3], ns[4], ns[5])
		}),
		"v": numericHandler(4, func(it *Interpreter, ns []float64) {
			// The first control point coincides with the current point.
			it.dev.CurveTo(ns[0], ns[1], ns[0], ns[1], ns[2], ns[3])
		}),
		"y": numericHandler(4, func(it *Interpreter, ns []float64) {
			it.dev.CurveTo(ns[0], ns[1], ns[2], ns[3], ns[2], ns[3])
		}),
		"re": numericHandler(4, func(it *Interpreter, ns []float64) { it.dev.Rect(ns[0], ns[1], ns[2], ns[3]) }),
		"h":  {0, func(it *Interpreter, args []core.Object) error { it.dev.ClosePath(); return nil }},

		// Painting.
		"S":  paintHandler(PaintStroke),
		"s":  paintHandler(PaintCloseStroke),
		"f":  paintHandler(PaintFill),
		"F":  paintHandler(PaintFill),
		"f*": paintHandler(PaintFillEvenOdd),
		"B":  paintHandler(PaintFillStroke),
		"B*": paintHandler(PaintFillStrokeEO),
		"b":  paintHandler(PaintCloseFillStroke),
		"b*": paintHandler(PaintCloseFillStrokeEO),
		"n":  paintHandler(PaintNone),

		// Clipping.
		"W":  {0, func(it *Interpreter, args []core.Object) error { it.dev.Clip(false); return nil }},
		"W*": {0, func(it *Interpreter, args []core.Object) error { it.dev.Clip(true); return nil }},

		// Color.
		"g":  numericHandler(1, func(it *Interpreter, ns []float64) { it.dev.SetFillColor(ns, "") }),
		"G":  numericHandler(1, func(it *Interpreter, ns []float64) { it.dev.SetStrokeColor(ns, "") }),
		"rg": numericHandler(3, func(it *Interpreter, ns []float64) { it.dev.SetFillColor(ns, "") }),
		"RG": numericHandler(3, func(it *Interpreter, ns []float64) { it.dev.SetStrokeColor(ns, "") }),
		"k":  numericHandler(4, func(it *Interpreter, ns []float64) { it.dev.SetFillColor(ns, "") }),
		"K":  numericHandler(4, func(it *Interpreter, ns []float64) { it.dev.SetStrokeColor(ns, "") }),
		"cs": {1, func(it *Interpreter, args []core.Object) error {
			n, ok := name(args[0])
			if !ok {
				return errBadOperands
			}
			it.dev.SetFillColorSpace(n)
			return nil
		}},
		"CS": {1, func(it *Interpreter, args []core.Object) error {
			n, ok := name(args[0])
			if !ok {
				return errBadOperands
			}
			it.dev.SetStrokeColorSpace(n)
			return nil
		}},
		"sc":  {-1, func(it *Interpreter, args []core.Object) error { return it.setColor(args, false, false) }},
		"scn": {-1, func(it *Interpreter, args []core.Object) error { return it.setColor(args, false, true) }},
		"SC":  {-1, func(it *Interpreter, args []core.Object) error { return it.setColor(args, true, false) }},
		"SCN": {-1, func(it *Interpreter, args []core.Object) error { return it.setColor(args, true, true) }},

		// Text blocks.
		"BT": {0, func(it *Interpreter, args []core.Object) error {
			if it.textDepth > 0 {
				it.diag.Warn(core.WarnUnbalancedTextBlock)
			}
			it.textDepth++
			it.dev.BeginText()
			return nil
		}},
		"ET": {0, func(it *Interpreter, args []core.Object) error {
			if it.textDepth == 0 {
				it.diag.Warn(core.WarnUnbalancedTextBlock)
				return nil
			}
			it.textDepth--
			it.dev.EndText()
			return nil
		}},

		// Text state.
		"Tc": numericHandler(1, func(it *Interpreter, ns []float64) { it.dev.SetCharSpacing(ns[0]) }),
		"Tw": numericHandler(1, func(it *Interpreter, ns []float64) { it.dev.SetWordSpacing(ns[0]) }),
		"Tz": numericHandler(1, func(it *Interpreter, ns []float64) { it.dev.SetHorizontalScale(ns[0]) }),
		"TL": numericHandler(1, func(it *Interpreter, ns []float64) { it.dev.SetLeading(ns[0]) }),
		"Ts": numericHandler(1, func(it *Interpreter, ns []float64) { it.dev.SetTextRise(ns[0]) }),
		"Tr": {1, func(it *Interpreter, args []core.Object) error {
			mode, ok := integer(args[0])
			if !ok {
				return errBadOperands
			}
			it.dev.SetRenderMode(mode)
			return nil
		}},
		"Tf": {2, func(it *Interpreter, args []core.Object) error {
			fontName, ok := name(args[0])
			if !ok {
				return errBadOperands
			}
			size, ok := number(args[1])
			if !ok {
				return errBadOperands
			}
			it.dev.SetFont(fontName, size)
			return nil
		}},

		// Text positioning.
		"Td": numericHandler(2, func(it *Interpreter, ns []float64) {
			it.textCheck()
			it.dev.TextMove(ns[0], ns[1])
		}),
		"TD": numericHandler(2, func(it *Interpreter, ns []float64) {
			it.textCheck()
			it.dev.SetLeading(-ns[1])
			it.dev.TextMove(ns[0], ns[1])
		}),
		"Tm": {6, func(it *Interpreter, args []core.Object) error {
			m, ok := matrixFrom(args)
			if !ok {
				return errBadOperands
			}
			it.textCheck()
			it.dev.SetTextMatrix(m)
			return nil
		}},
		"T*": {0, func(it *Interpreter, args []core.Object) error {
			it.textCheck()
			it.dev.NextLine()
			return nil
		}},

		// Text showing.
		"Tj": {1, func(it *Interpreter, args []core.Object) error {
			s, ok := str(args[0])
			if !ok {
				return errBadOperands
			}
			it.textCheck()
			it.dev.ShowText(s)
			return nil
		}},
		"TJ": {1, func(it *Interpreter, args []core.Object) error {
			arr, ok := args[0].(*core.Array)
			if !ok {
				return errBadOperands
			}
			items := make([]TextItem, 0, arr.Len())
			for i := 0; i < arr.Len(); i++ {
				elem := arr.Get(i)
				if s, ok := elem.(core.String); ok {
					items = append(items, TextItem{Text: s, IsText: true})
					continue
				}
				if n, ok := number(elem); ok {
					items = append(items, TextItem{Adjust: n})
					continue
				}
				return errBadOperands
			}
			it.textCheck()
			it.dev.ShowTextAdjusted(items)
			return nil
		}},
		"'": {1, func(it *Interpreter, args []core.Object) error {
			s, ok := str(args[0])
			if !ok {
				return errBadOperands
			}
			it.textCheck()
			it.dev.NextLine()
			it.dev.ShowText(s)
			return nil
		}},
		"\"": {3, func(it *Interpreter, args []core.Object) error {
			aw, ok1 := number(args[0])
			ac, ok2 := number(args[1])
			s, ok3 := str(args[2])
			if !ok1 || !ok2 || !ok3 {
				return errBadOperands
			}
			it.textCheck()
			it.dev.SetWordSpacing(aw)
			it.dev.SetCharSpacing(ac)
			it.dev.NextLine()
			it.dev.ShowText(s)
			return nil
		}},

		// XObjects and inline images.
		"Do": {1, func(it *Interpreter, args []core.Object) error {
			n, ok := name(args[0])
			if !ok {
				return errBadOperands
			}
			it.dev.XObject(n)
			return nil
		}},
		"BI": {0, func(it *Interpreter, args []core.Object) error {
			return it.inlineImage()
		}},

		// Marked content.
		"BMC": {1, func(it *Interpreter, args []core.Object) error {
			tag, ok := name(args[0])
			if !ok {
				return errBadOperands
			}
			it.markedDepth++
			it.dev.BeginMarkedContent(tag, nil)
			return nil
		}},
		"BDC": {2, func(it *Interpreter, args []core.Object) error {
			tag, ok := name(args[0])
			if !ok {
				return errBadOperands
			}
			switch args[1].(type) {
			case core.Name, *core.Dict:
			default:
				return errBadOperands
			}
			it.markedDepth++
			it.dev.BeginMarkedContent(tag, args[1])
			return nil
		}},
		"EMC": {0, func(it *Interpreter, args []core.Object) error {
			if it.markedDepth == 0 {
				it.diag.Warn(core.WarnUnterminatedMarkedContent)
				return nil
			}
			it.markedDepth--
			it.dev.EndMarkedContent()
			return nil
		}},
		"MP": {1, func(it *Interpreter, args []core.Object) error {
			tag, ok := name(args[0])
			if !ok {
				return errBadOperands
			}
			it.dev.BeginMarkedContent(tag, nil)
			it.dev.EndMarkedContent()
			return nil
		}},
		"DP": {2, func(it *Interpreter, args []core.Object) error {
			tag, ok := name(args[0])
			if !ok {
				return errBadOperands
			}
			it.dev.BeginMarkedContent(tag, args[1])
			it.dev.EndMarkedContent()
			return nil
		}},

		// Compatibility sections.
		"BX": {0, func(it *Interpreter, args []core.Object) error { it.compatDepth++; return nil }},
		"EX": {0, func(it *Interpreter, args []core.Object) error {
			if it.compatDepth > 0 {
				it.compatDepth--
			}
			return nil
		}},

		// Type 3 glyph metrics.
		"d0": numericHandler(2, func(it *Interpreter, ns []float64) { it.dev.SetCharWidth(ns[0], ns[1]) }),
		"d1": numericHandler(6, func(it *Interpreter, ns []float64) {
			it.dev.SetCacheDevice(ns[0], ns[1], ns[2], ns[3], ns[4], ns[5])
		}),

		// sh paints a shading pattern directly.
		"sh": {1, func(it *Interpreter, args []core.Object) error {
			n, ok := name(args[0])
			if !ok {
				return errBadOperands
			}
			it.dev.Shading(n)
			return nil
		}},
	}
}

// textCheck warns when a text operator runs outside BT/ET. The operator is
// still forwarded; viewers tolerate this and so does the walk.
func (it *Interpreter) textCheck() {
	if it.textDepth == 0 {
		it.diag.Warn(core.WarnTextOutsideBlock)
	}
}

// setColor handles the variable-arity color operators. With the pattern
// form (scn/SCN) the last operand may be a pattern name.
func (it *Interpreter) setColor(args []core.Object, stroke, patternOK bool) error {
	var pattern core.Name
	if patternOK && len(args) > 0 {
		if n, ok := name(args[len(args)-1]); ok {
			pattern = n
			args = args[:len(args)-1]
		}
	}
	components, ok := numbers(args)
	if !ok {
		return errBadOperands
	}
	if stroke {
		it.dev.SetStrokeColor(components, pattern)
	} else {
		it.dev.SetFillColor(components, pattern)
	}
	return nil
}

// inlineImage handles BI .. ID .. EI: key/value pairs up to ID, then raw
// bytes up to EI.
func (it *Interpreter) inlineImage() error {
	params := core.NewDict(4)
	core.Retain(params)
	defer core.Release(params)

	for {
		tok, err := it.lexer.NextToken()
		if err != nil {
			return err
		}
		if tok.Type == core.TokenEOF {
			it.diag.Warn(core.WarnBadInlineImage)
			return nil
		}
		if tok.Type == core.TokenKeyword && string(tok.Value) == "ID" {
			break
		}
		if tok.Type != core.TokenName {
			it.diag.Warn(core.WarnBadInlineImage)
			continue
		}
		key := string(tok.Value)

		value, err := it.imageValue()
		if err != nil {
			return err
		}
		if value == nil {
			it.diag.Warn(core.WarnBadInlineImage)
			return nil
		}
		params.Set(key, value)
		core.Release(value)
	}

	// A single whitespace byte separates ID from the data.
	if b, err := it.lexer.Peek(); err == nil && isWhitespaceByte(b) {
		it.lexer.ReadByte()
	}

	data, err := it.lexer.ScanUntil([]byte("EI"))
	if err != nil {
		it.diag.Warn(core.WarnBadInlineImage)
		if len(data) == 0 {
			return nil
		}
	}
	data = trimImageTail(data)

	it.dev.InlineImage(params, data)
	return nil
}

// imageValue reads one inline-image parameter value, which may itself be an
// array or dictionary. nil means the stream ended inside the header.
func (it *Interpreter) imageValue() (core.Object, error) {
	depth := 0
	start := it.stack.Depth()
	for {
		tok, err := it.lexer.NextToken()
		if err != nil {
			return nil, err
		}
		switch tok.Type {
		case core.TokenEOF:
			return nil, nil
		case core.TokenInteger:
			n, _ := strconv.ParseInt(string(tok.Value), 10, 64)
			it.stack.Push(core.Int(n))
		case core.TokenReal:
			f, _ := strconv.ParseFloat(string(tok.Value), 64)
			it.stack.Push(core.Real(f))
		case core.TokenString, core.TokenHexString:
			it.stack.Push(core.String(tok.Value))
		case core.TokenName:
			it.stack.Push(core.Name(tok.Value))
		case core.TokenTrue:
			it.stack.Push(core.Bool(true))
		case core.TokenFalse:
			it.stack.Push(core.Bool(false))
		case core.TokenNull:
			it.stack.Push(core.NullValue)
		case core.TokenArrayStart:
			it.stack.PushMark(core.MarkArray)
			depth++
			continue
		case core.TokenArrayEnd:
			if _, err := it.stack.CloseArray(); err != nil {
				return nil, nil
			}
			depth--
		case core.TokenDictStart:
			it.stack.PushMark(core.MarkDict)
			depth++
			continue
		case core.TokenDictEnd:
			if _, err := it.stack.CloseDict(); err != nil {
				if errors.Is(err, core.ErrNoMark) {
					return nil, nil
				}
				// The null substitute stands in for the bad dictionary.
			}
			depth--
		default:
			return nil, nil
		}

		if depth == 0 && it.stack.Depth() > start {
			return it.stack.Pop()
		}
	}
}

func isWhitespaceByte(b byte) bool {
	switch b {
	case ' ', '\t', '\r', '\n', '\f', 0:
		return true
	}
	return false
}

// trimImageTail drops the whitespace that separates the image data from the
// EI keyword.
func trimImageTail(data []byte) []byte {
	for len(data) > 0 && isWhitespaceByte(data[len(data)-1]) {
		data = data[:len(data)-1]
	}
	return data
}
