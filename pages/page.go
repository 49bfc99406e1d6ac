package pages

import (
	"fmt"

	"github.com/mblythe/vellum/core"
)

// Page is one located page. Its dictionary is a merged copy: inheritable
// attributes have already been pulled down from the ancestors, so the
// accessors never reach back into the tree.
type Page struct {
	dict *core.Dict
	res  Resolver
	diag *core.Diagnostics
}

// Close releases the merged dictionary.
func (p *Page) Close() {
	core.Release(p.dict)
	p.dict = nil
}

// Dict exposes the merged page dictionary without transferring ownership.
func (p *Page) Dict() *core.Dict {
	return p.dict
}

// Ref returns the page object's identity as stamped when it was parsed.
func (p *Page) Ref() core.IndirectRef {
	num, gen := p.dict.Indirect()
	return core.IndirectRef{Number: num, Generation: gen}
}

// MediaBox returns the page media box as [x1 y1 x2 y2].
func (p *Page) MediaBox() ([4]float64, error) {
	return p.box("MediaBox")
}

// CropBox returns the crop box, falling back to the media box when the
// page does not carry one.
func (p *Page) CropBox() ([4]float64, error) {
	box, err := p.box("CropBox")
	if err != nil {
		return p.MediaBox()
	}
	return box, nil
}

func (p *Page) box(key string) ([4]float64, error) {
	var box [4]float64

	obj, err := p.res.Resolve(p.dict.Get(key))
	if err != nil {
		return box, err
	}
	defer core.Release(obj)

	arr, ok := obj.(*core.Array)
	if !ok {
		return box, fmt.Errorf("%w: /%s is %v, not an array", core.ErrType, key, typeName(obj))
	}
	if arr.Len() != 4 {
		return box, fmt.Errorf("%w: /%s has %d elements, want 4", core.ErrRange, key, arr.Len())
	}
	for i := 0; i < 4; i++ {
		n, ok := arr.GetNumber(i)
		if !ok {
			return box, fmt.Errorf("%w: /%s[%d] is not a number", core.ErrType, key, i)
		}
		box[i] = n
	}
	return box, nil
}

// Rotate returns the page rotation normalized to 0, 90, 180, or 270.
func (p *Page) Rotate() int {
	obj, err := p.res.Resolve(p.dict.Get("Rotate"))
	if err != nil {
		return 0
	}
	defer core.Release(obj)
	n, ok := obj.(core.Int)
	if !ok {
		return 0
	}
	r := int(n) % 360
	if r < 0 {
		r += 360
	}
	return r - r%90
}

// Resources resolves the page resource dictionary. The caller owns the
// returned share; a page without resources yields nil.
func (p *Page) Resources() (*core.Dict, error) {
	obj, err := p.res.Resolve(p.dict.Get("Resources"))
	if err != nil {
		return nil, err
	}
	if obj == nil || obj.Type() == core.ObjNull {
		core.Release(obj)
		return nil, nil
	}
	dict, ok := obj.(*core.Dict)
	if !ok {
		core.Release(obj)
		return nil, fmt.Errorf("%w: /Resources is %v, not a dictionary", core.ErrType, typeName(obj))
	}
	return dict, nil
}

// Contents resolves the page content into a slice of streams, whether the
// page stores a single stream or an array of parts. The caller owns one
// share of each returned stream. A page without contents yields nil.
func (p *Page) Contents() ([]*core.Stream, error) {
	obj, err := p.res.Resolve(p.dict.Get("Contents"))
	if err != nil {
		return nil, err
	}
	if obj == nil || obj.Type() == core.ObjNull {
		core.Release(obj)
		return nil, nil
	}

	switch v := obj.(type) {
	case *core.Stream:
		return []*core.Stream{v}, nil
	case *core.Array:
		defer core.Release(v)
		streams := make([]*core.Stream, 0, v.Len())
		for i := 0; i < v.Len(); i++ {
			elem, err := p.res.Resolve(v.Get(i))
			if err != nil {
				releaseStreams(streams)
				return nil, err
			}
			stream, ok := elem.(*core.Stream)
			if !ok {
				core.Release(elem)
				if derr := p.diag.Error(core.ErrFlagBadPageTree,
					fmt.Errorf("%w: /Contents[%d] is %v, not a stream", core.ErrType, i, elem.Type())); derr != nil {
					releaseStreams(streams)
					return nil, derr
				}
				continue
			}
			streams = append(streams, stream)
		}
		return streams, nil
	default:
		core.Release(obj)
		return nil, fmt.Errorf("%w: /Contents is %v", core.ErrType, typeName(obj))
	}
}

func releaseStreams(streams []*core.Stream) {
	for _, s := range streams {
		core.Release(s)
	}
}
