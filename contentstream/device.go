package contentstream

import (
	"github.com/mblythe/vellum/core"
)

// Matrix is a transformation matrix [a b c d e f].
type Matrix [6]float64

// IdentityMatrix is the no-op transform.
var IdentityMatrix = Matrix{1, 0, 0, 1, 0, 0}

// Mul returns the matrix product m × n.
func (m Matrix) Mul(n Matrix) Matrix {
	return Matrix{
		m[0]*n[0] + m[1]*n[2],
		m[0]*n[1] + m[1]*n[3],
		m[2]*n[0] + m[3]*n[2],
		m[2]*n[1] + m[3]*n[3],
		m[4]*n[0] + m[5]*n[2] + n[4],
		m[4]*n[1] + m[5]*n[3] + n[5],
	}
}

// PaintOp identifies which painting operator closed the current path.
type PaintOp int

const (
	PaintStroke          PaintOp = iota // S
	PaintCloseStroke                    // s
	PaintFill                           // f, F
	PaintFillEvenOdd                    // f*
	PaintFillStroke                     // B
	PaintFillStrokeEO                   // B*
	PaintCloseFillStroke                // b
	PaintCloseFillStrokeEO              // b*
	PaintNone                           // n
)

// TextItem is one element of a TJ array: either a string to show or a
// position adjustment in thousandths of text space units.
type TextItem struct {
	Text   core.String
	Adjust float64
	IsText bool
}

// Device receives the interpreted content of a stream. The interpreter
// validates operands and tracks nesting; the device only sees well-formed
// calls. Implementations usually embed NopDevice and override what they
// consume.
type Device interface {
	// Graphics state.
	Save()
	Restore()
	Concat(m Matrix)
	SetLineWidth(w float64)
	SetLineCap(cap int)
	SetLineJoin(join int)
	SetMiterLimit(limit float64)
	SetDash(pattern []float64, phase float64)
	SetRenderingIntent(intent core.Name)
	SetFlatness(tolerance float64)
	SetExtGState(name core.Name)

	// Path construction and painting.
	MoveTo(x, y float64)
	LineTo(x, y float64)
	CurveTo(x1, y1, x2, y2, x3, y3 float64)
	ClosePath()
	Rect(x, y, w, h float64)
	Paint(op PaintOp)
	Clip(evenOdd bool)

	// Color.
	SetStrokeColorSpace(name core.Name)
	SetFillColorSpace(name core.Name)
	SetStrokeColor(components []float64, pattern core.Name)
	SetFillColor(components []float64, pattern core.Name)

	// Text.
	BeginText()
	EndText()
	SetCharSpacing(spacing float64)
	SetWordSpacing(spacing float64)
	SetHorizontalScale(percent float64)
	SetLeading(leading float64)
	SetTextRise(rise float64)
	SetRenderMode(mode int)
	SetFont(name core.Name, size float64)
	SetTextMatrix(m Matrix)
	TextMove(tx, ty float64)
	NextLine()
	ShowText(s core.String)
	ShowTextAdjusted(items []TextItem)

	// External and inline objects.
	XObject(name core.Name)
	Shading(name core.Name)
	InlineImage(params *core.Dict, data []byte)

	// Marked content.
	BeginMarkedContent(tag core.Name, props core.Object)
	EndMarkedContent()

	// Type 3 glyph metrics.
	SetCharWidth(wx, wy float64)
	SetCacheDevice(wx, wy, llx, lly, urx, ury float64)
}

// NopDevice implements Device with no-ops, for embedding and for callers
// that only want the interpreter's validation and diagnostics.
type NopDevice struct{}

var _ Device = (*NopDevice)(nil)

func (NopDevice) Save()                                          {}
func (NopDevice) Restore()                                       {}
func (NopDevice) Concat(Matrix)                                  {}
func (NopDevice) SetLineWidth(float64)                           {}
func (NopDevice) SetLineCap(int)                                 {}
func (NopDevice) SetLineJoin(int)                                {}
func (NopDevice) SetMiterLimit(float64)                          {}
func (NopDevice) SetDash([]float64, float64)                     {}
func (NopDevice) SetRenderingIntent(core.Name)                   {}
func (NopDevice) SetFlatness(float64)                            {}
func (NopDevice) SetExtGState(core.Name)                         {}
func (NopDevice) MoveTo(x, y float64)                            {}
func (NopDevice) LineTo(x, y float64)                            {}
func (NopDevice) CurveTo(x1, y1, x2, y2, x3, y3 float64)         {}
func (NopDevice) ClosePath()                                     {}
func (NopDevice) Rect(x, y, w, h float64)                        {}
func (NopDevice) Paint(PaintOp)                                  {}
func (NopDevice) Clip(bool)                                      {}
func (NopDevice) SetStrokeColorSpace(core.Name)                  {}
func (NopDevice) SetFillColorSpace(core.Name)                    {}
func (NopDevice) SetStrokeColor([]float64, core.Name)            {}
func (NopDevice) SetFillColor([]float64, core.Name)              {}
func (NopDevice) BeginText()                                     {}
func (NopDevice) EndText()                                       {}
func (NopDevice) SetCharSpacing(float64)                         {}
func (NopDevice) SetWordSpacing(float64)                         {}
func (NopDevice) SetHorizontalScale(float64)                     {}
func (NopDevice) SetLeading(float64)                             {}
func (NopDevice) SetTextRise(float64)                            {}
func (NopDevice) SetRenderMode(int)                              {}
func (NopDevice) SetFont(core.Name, float64)                     {}
func (NopDevice) SetTextMatrix(Matrix)                           {}
func (NopDevice) TextMove(tx, ty float64)                        {}
func (NopDevice) NextLine()                                      {}
func (NopDevice) ShowText(core.String)                           {}
func (NopDevice) ShowTextAdjusted([]TextItem)                    {}
func (NopDevice) XObject(core.Name)                              {}
func (NopDevice) Shading(core.Name)                              {}
func (NopDevice) InlineImage(*core.Dict, []byte)                 {}
func (NopDevice) BeginMarkedContent(core.Name, core.Object)      {}
func (NopDevice) EndMarkedContent()                              {}
func (NopDevice) SetCharWidth(wx, wy float64)                    {}
func (NopDevice) SetCacheDevice(wx, wy, llx, lly, urx, ury float64) {}
