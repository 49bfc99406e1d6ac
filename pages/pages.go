package pages

import (
	"fmt"

	"github.com/mblythe/vellum/core"
)

// Resolver is the dereference surface the page walker needs.
type Resolver interface {
	Resolve(obj core.Object) (core.Object, error)
	ResolveReference(ref core.IndirectRef) (core.Object, error)
}

// typeName describes an object for error text, tolerating a missing value.
func typeName(obj core.Object) string {
	if obj == nil {
		return "missing"
	}
	return obj.Type().String()
}

// inheritableKeys are the page attributes a leaf inherits from its
// ancestors when it does not carry them itself. The closest ancestor wins.
var inheritableKeys = [...]string{"Resources", "MediaBox", "CropBox", "Rotate"}

// Catalog wraps the document catalog dictionary. It owns one share of the
// dictionary until Close.
type Catalog struct {
	dict *core.Dict
	res  Resolver
	diag *core.Diagnostics
}

// NewCatalog wraps dict, retaining it. A wrong or missing /Type is recorded
// but tolerated under the best-effort policy.
func NewCatalog(dict *core.Dict, res Resolver, diag *core.Diagnostics) (*Catalog, error) {
	if typ, ok := dict.GetName("Type"); !ok || typ != "Catalog" {
		if err := diag.Error(core.ErrFlagBadPageTree,
			fmt.Errorf("%w: document root is not a catalog", core.ErrType)); err != nil {
			return nil, err
		}
	}
	core.Retain(dict)
	return &Catalog{dict: dict, res: res, diag: diag}, nil
}

// Close releases the catalog's dictionary share.
func (c *Catalog) Close() {
	core.Release(c.dict)
	c.dict = nil
}

// Dict exposes the underlying dictionary without transferring ownership.
func (c *Catalog) Dict() *core.Dict {
	return c.dict
}

// Pages resolves the page tree root. The caller owns the returned share.
func (c *Catalog) Pages() (*core.Dict, error) {
	obj, err := c.res.Resolve(c.dict.Get("Pages"))
	if err != nil {
		return nil, fmt.Errorf("resolving /Pages: %w", err)
	}
	root, ok := obj.(*core.Dict)
	if !ok {
		core.Release(obj)
		return nil, fmt.Errorf("%w: /Pages is %v, not a dictionary", core.ErrType, typeName(obj))
	}
	return root, nil
}

// Metadata returns the reference to the document metadata stream, if the
// catalog carries one.
func (c *Catalog) Metadata() (core.IndirectRef, bool) {
	return c.dict.GetRef("Metadata")
}

// Version returns the catalog /Version override, or the empty string.
func (c *Catalog) Version() string {
	if v, ok := c.dict.GetName("Version"); ok {
		return string(v)
	}
	return ""
}

// PageTree walks the page tree rooted at a /Pages dictionary. It owns one
// share of the root until Close.
type PageTree struct {
	root *core.Dict
	res  Resolver
	diag *core.Diagnostics
}

// NewPageTree wraps root, retaining it.
func NewPageTree(root *core.Dict, res Resolver, diag *core.Diagnostics) *PageTree {
	core.Retain(root)
	return &PageTree{root: root, res: res, diag: diag}
}

// Close releases the tree's root share.
func (t *PageTree) Close() {
	core.Release(t.root)
	t.root = nil
}

// Count returns the declared page count from the root node. A missing or
// malformed /Count is recorded and reported as zero.
func (t *PageTree) Count() int {
	n, err := t.nodeCount(t.root)
	if err != nil {
		t.diag.Error(core.ErrFlagBadPageTree, err)
		return 0
	}
	return n
}

func (t *PageTree) nodeCount(node *core.Dict) (int, error) {
	obj, err := t.res.Resolve(node.Get("Count"))
	if err != nil {
		return 0, err
	}
	defer core.Release(obj)
	n, ok := obj.(core.Int)
	if !ok {
		return 0, fmt.Errorf("%w: /Count is %v, not an integer", core.ErrType, typeName(obj))
	}
	return int(n), nil
}

// Page locates the page with the given zero-based ordinal. Intermediate
// nodes are skipped wholesale using their declared /Count, so finding page
// N does not resolve the N-1 pages before it in other subtrees.
//
// The returned Page owns a merged copy of the leaf dictionary with the four
// inheritable attributes filled in from the closest carrying ancestor; the
// leaf stored in the file is never modified. After a leaf is first visited
// its /Kids slot is swapped for a small stub recording the reference, so a
// revisit resolves through the stub instead of holding the leaf alive.
func (t *PageTree) Page(ordinal int) (*Page, error) {
	if ordinal < 0 {
		return nil, fmt.Errorf("%w: page ordinal %d", core.ErrRange, ordinal)
	}

	inh := newInherited()
	defer inh.release()

	page, remaining, err := t.walk(t.root, ordinal, inh, 0)
	if err != nil {
		return nil, err
	}
	if page == nil {
		return nil, fmt.Errorf("%w: page %d of %d", core.ErrRange, ordinal, ordinal-remaining)
	}
	return page, nil
}

// maxTreeDepth bounds descent so a malformed tree with a self-referential
// /Kids cannot recurse forever.
const maxTreeDepth = 64

// walk descends node looking for the remaining'th leaf underneath it. It
// returns the page when found, or the number of leaves still to skip when
// the subtree is exhausted.
func (t *PageTree) walk(node *core.Dict, remaining int, inh *inherited, depth int) (*Page, int, error) {
	if depth > maxTreeDepth {
		return nil, remaining, fmt.Errorf("%w: page tree deeper than %d", core.ErrCircular, maxTreeDepth)
	}

	inh.capture(node)

	kidsObj, err := t.res.Resolve(node.Get("Kids"))
	if err != nil {
		return nil, remaining, err
	}
	defer core.Release(kidsObj)
	kids, ok := kidsObj.(*core.Array)
	if !ok {
		if derr := t.diag.Error(core.ErrFlagBadPageTree,
			fmt.Errorf("%w: /Kids is %v, not an array", core.ErrType, typeName(kidsObj))); derr != nil {
			return nil, remaining, derr
		}
		return nil, remaining, nil
	}

	for i := 0; i < kids.Len(); i++ {
		kidObj := kids.Get(i)

		ref, isRef := kidObj.(core.IndirectRef)
		var kid *core.Dict
		if isRef {
			resolved, err := t.res.ResolveReference(ref)
			if err != nil {
				return nil, remaining, err
			}
			kid, ok = resolved.(*core.Dict)
			if !ok {
				core.Release(resolved)
				if derr := t.diag.Error(core.ErrFlagBadPageTree,
					fmt.Errorf("%w: page tree kid %d is %v", core.ErrType, i, resolved.Type())); derr != nil {
					return nil, remaining, derr
				}
				continue
			}
		} else if kid, ok = kidObj.(*core.Dict); !ok {
			if derr := t.diag.Error(core.ErrFlagBadPageTree,
				fmt.Errorf("%w: page tree kid %d is %v", core.ErrType, i, kidObj.Type())); derr != nil {
				return nil, remaining, derr
			}
			continue
		}

		page, rem, err := t.visitKid(kid, kids, i, ref, isRef, remaining, inh, depth)
		if isRef {
			core.Release(kid)
		}
		if err != nil {
			return nil, rem, err
		}
		if page != nil {
			return page, 0, nil
		}
		remaining = rem
	}
	return nil, remaining, nil
}

// visitKid handles one /Kids slot: a subtree, a leaf, or a stub left by an
// earlier visit.
func (t *PageTree) visitKid(kid *core.Dict, kids *core.Array, slot int, ref core.IndirectRef, isRef bool,
	remaining int, inh *inherited, depth int) (*Page, int, error) {

	typ, _ := kid.GetName("Type")
	switch typ {
	case "Pages":
		count, err := t.nodeCount(kid)
		if err != nil {
			if derr := t.diag.Error(core.ErrFlagBadPageTree, err); derr != nil {
				return nil, remaining, derr
			}
			return nil, remaining, nil
		}
		if remaining >= count {
			return nil, remaining - count, nil
		}
		saved := inh.snapshot()
		page, rem, err := t.walk(kid, remaining, inh, depth+1)
		inh.restore(saved)
		return page, rem, err

	case "PageRef":
		// Stub from an earlier visit: counts as one leaf, and holds the
		// reference to the real page.
		if remaining > 0 {
			return nil, remaining - 1, nil
		}
		pref, ok := kid.GetRef("PageRef")
		if !ok {
			return nil, remaining, fmt.Errorf("%w: stub without page reference", core.ErrUndefined)
		}
		resolved, err := t.res.ResolveReference(pref)
		if err != nil {
			return nil, remaining, err
		}
		leaf, ok := resolved.(*core.Dict)
		if !ok {
			core.Release(resolved)
			return nil, remaining, fmt.Errorf("%w: stub resolves to %v", core.ErrType, resolved.Type())
		}
		page := t.assemble(leaf, inh)
		core.Release(leaf)
		return page, 0, nil

	case "Page":
		if remaining > 0 {
			return nil, remaining - 1, nil
		}
		page := t.assemble(kid, inh)
		if isRef {
			stub := core.NewDict(2)
			core.Retain(stub)
			stub.Set("Type", core.Name("PageRef"))
			stub.Set("PageRef", ref)
			kids.Set(slot, stub)
			core.Release(stub)
		}
		return page, 0, nil

	default:
		if derr := t.diag.Error(core.ErrFlagBadPageTree,
			fmt.Errorf("%w: page tree node of type %q", core.ErrType, typ)); derr != nil {
			return nil, remaining, derr
		}
		return nil, remaining, nil
	}
}

// assemble builds the merged page dictionary: a copy of the leaf with any
// missing inheritable attribute filled from the closest ancestor.
func (t *PageTree) assemble(leaf *core.Dict, inh *inherited) *Page {
	merged := core.NewDict(leaf.Len() + len(inheritableKeys))
	core.Retain(merged)
	for _, key := range leaf.Keys() {
		merged.Set(key, leaf.Get(key))
	}
	for i, key := range inheritableKeys {
		if merged.Has(key) {
			continue
		}
		if v := inh.values[i]; v != nil {
			merged.Set(key, v)
		}
	}
	if num, gen := leaf.Indirect(); num != 0 {
		merged.SetIndirect(num, gen)
	}
	return &Page{dict: merged, res: t.res, diag: t.diag}
}

// inherited accumulates the closest seen value of each inheritable key
// during descent. It owns one share per held value.
type inherited struct {
	values [len(inheritableKeys)]core.Object
}

func newInherited() *inherited { return &inherited{} }

// capture overwrites the held values with those node carries; deeper nodes
// call capture later, so the closest value wins.
func (h *inherited) capture(node *core.Dict) {
	for i, key := range inheritableKeys {
		if v := node.Get(key); v != nil {
			core.Retain(v)
			core.Release(h.values[i])
			h.values[i] = v
		}
	}
}

// snapshot and restore bracket a subtree descent so values captured inside
// one subtree do not leak into its siblings.
func (h *inherited) snapshot() [len(inheritableKeys)]core.Object {
	var s [len(inheritableKeys)]core.Object
	for i, v := range h.values {
		s[i] = v
		core.Retain(v)
	}
	return s
}

func (h *inherited) restore(s [len(inheritableKeys)]core.Object) {
	for i := range h.values {
		core.Release(h.values[i])
		h.values[i] = s[i]
	}
}

func (h *inherited) release() {
	for i := range h.values {
		core.Release(h.values[i])
		h.values[i] = nil
	}
}
