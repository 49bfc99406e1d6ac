package resolver

import (
	"fmt"
	"io"

	"github.com/mblythe/vellum/core"
)

// Resolver turns indirect references into objects. It owns the bounded
// object cache and the file cursor discipline: every dereference saves the
// current read position and restores it before returning, so a resolver
// call is safe in the middle of another parse (a stream /Length that is
// itself indirect, for example).
//
// A Resolver is not safe for concurrent use.
type Resolver struct {
	rs    io.ReadSeeker
	table *core.XRefTable
	diag  *core.Diagnostics
	cache *objectCache

	// containers holds decoded object streams keyed by their object
	// number, so extracting several members of one stream decodes it once.
	containers map[int]*core.ObjectStream

	// active tracks object numbers on the current resolution path for
	// cycle detection.
	active   map[int]bool
	maxDepth int
	depth    int
}

// Option configures the resolver.
type Option func(*Resolver)

// WithCacheCapacity bounds the resolved-object cache (default: 32 slots).
func WithCacheCapacity(n int) Option {
	return func(r *Resolver) {
		if n > 0 {
			r.cache = newObjectCache(n)
		}
	}
}

// WithMaxDepth sets the maximum reference-chain depth (default: 100).
func WithMaxDepth(depth int) Option {
	return func(r *Resolver) {
		if depth > 0 {
			r.maxDepth = depth
		}
	}
}

// New creates a resolver over the given file and cross-reference table.
// The resolver retains the table for its lifetime.
func New(rs io.ReadSeeker, table *core.XRefTable, diag *core.Diagnostics, opts ...Option) *Resolver {
	r := &Resolver{
		rs:         rs,
		table:      (core.Retain(table)).(*core.XRefTable),
		diag:       diag,
		cache:      newObjectCache(32),
		containers: make(map[int]*core.ObjectStream),
		active:     make(map[int]bool),
		maxDepth:   100,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Table returns the cross-reference table the resolver reads from.
func (r *Resolver) Table() *core.XRefTable {
	return r.table
}

// CacheLen reports the number of objects currently cached.
func (r *Resolver) CacheLen() int {
	return r.cache.len()
}

// Close releases the cached objects, the decoded object streams, and the
// table share. The resolver must not be used afterwards.
func (r *Resolver) Close() {
	// Clear back-pointers before the slots are released.
	for i := 0; i < r.table.Len(); i++ {
		r.table.Entry(i).CacheSlot = -1
	}
	r.cache.drain()
	for _, os := range r.containers {
		os.Close()
	}
	r.containers = nil
	core.Release(r.table)
	r.table = nil
}

// ResolveReference dereferences ref and returns the object with one
// reference share transferred to the caller. Missing, free, out-of-range,
// and generation-mismatched entries resolve to null rather than failing, so
// a damaged file degrades instead of aborting; the condition is recorded in
// the diagnostics. Reference cycles and chains beyond the depth limit stop
// with ErrCircular.
func (r *Resolver) ResolveReference(ref core.IndirectRef) (core.Object, error) {
	num := ref.Number

	if num <= 0 || num >= r.table.Len() {
		if err := r.diag.Error(core.ErrFlagBadReference,
			fmt.Errorf("%w: object number %d outside table of %d", core.ErrRange, num, r.table.Len())); err != nil {
			return nil, err
		}
		return core.NullValue, nil
	}

	entry := r.table.Entry(num)
	if entry.Kind == core.EntryNone || entry.Kind == core.EntryFree {
		return core.NullValue, nil
	}

	// Generation must match before the cache is consulted; a stale
	// reference resolves to null even when the live object is cached.
	wantGen := entry.Generation
	if entry.Kind == core.EntryCompressed {
		// Compressed members are always generation 0.
		wantGen = 0
	}
	if ref.Generation != wantGen {
		if err := r.diag.Error(core.ErrFlagBadReference,
			fmt.Errorf("%w: object %d is generation %d, reference wants %d",
				core.ErrUndefined, num, wantGen, ref.Generation)); err != nil {
			return nil, err
		}
		return core.NullValue, nil
	}

	if r.active[num] {
		if err := r.diag.Error(core.ErrFlagCircularRef,
			fmt.Errorf("%w: object %d references itself through its own definition", core.ErrCircular, num)); err != nil {
			return nil, err
		}
		return core.NullValue, nil
	}
	if r.depth >= r.maxDepth {
		return nil, fmt.Errorf("%w: reference chain deeper than %d at object %d", core.ErrCircular, r.maxDepth, num)
	}

	if entry.CacheSlot >= 0 {
		obj := r.cache.get(entry.CacheSlot)
		return core.Retain(obj), nil
	}

	r.active[num] = true
	r.depth++
	defer func() {
		delete(r.active, num)
		r.depth--
	}()

	var (
		obj core.Object
		err error
	)
	switch entry.Kind {
	case core.EntryUncompressed:
		obj, err = r.loadUncompressed(num, entry.Offset)
	case core.EntryCompressed:
		obj, err = r.loadCompressed(num, entry.Container)
	}
	if err != nil {
		return nil, err
	}
	if obj == nil {
		obj = core.NullValue
	}

	// Only composites are worth a cache slot; scalars are cheap to re-read
	// and carry no identity.
	switch obj.(type) {
	case *core.Array, *core.Dict, *core.Stream:
		slot, evicted := r.cache.insert(num, obj)
		if evicted >= 0 && evicted < r.table.Len() {
			r.table.Entry(evicted).CacheSlot = -1
		}
		entry.CacheSlot = slot
	}
	return obj, nil
}

// Resolve follows obj through any chain of indirect references and returns
// the terminal object with one share transferred to the caller. Direct
// objects are retained and returned as-is.
func (r *Resolver) Resolve(obj core.Object) (core.Object, error) {
	for i := 0; i < r.maxDepth; i++ {
		ref, ok := obj.(core.IndirectRef)
		if !ok {
			return core.Retain(obj), nil
		}
		resolved, err := r.ResolveReference(ref)
		if err != nil {
			return nil, err
		}
		if _, again := resolved.(core.IndirectRef); !again {
			return resolved, nil
		}
		obj = resolved
	}
	return nil, fmt.Errorf("%w: reference chain deeper than %d", core.ErrCircular, r.maxDepth)
}

// ResolveDictKey looks up key in dict and resolves it if indirect. The
// returned object carries one caller-owned share. Absent keys yield nil.
func (r *Resolver) ResolveDictKey(dict *core.Dict, key string) (core.Object, error) {
	obj := dict.Get(key)
	if obj == nil {
		return nil, nil
	}
	return r.Resolve(obj)
}

// loadUncompressed reads the object stored at offset. The file cursor is
// restored no matter how parsing goes.
func (r *Resolver) loadUncompressed(num int, offset int64) (core.Object, error) {
	saved, err := r.rs.Seek(0, io.SeekCurrent)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrIO, err)
	}
	defer r.rs.Seek(saved, io.SeekStart)

	if _, err := r.rs.Seek(offset, io.SeekStart); err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrIO, err)
	}

	parser := core.NewParser(r.rs, r.diag)
	parser.SetReferenceResolver(r)
	ind, err := parser.ParseIndirectObject()
	if err != nil {
		if derr := r.diag.Error(core.ErrFlagBadReference,
			fmt.Errorf("object %d at offset %d: %w", num, offset, err)); derr != nil {
			return nil, derr
		}
		return core.NullValue, nil
	}

	if ind.Ref.Number != num {
		core.Release(ind.Object)
		if derr := r.diag.Error(core.ErrFlagBadReference,
			fmt.Errorf("%w: offset %d holds object %d, table says %d",
				core.ErrUndefined, offset, ind.Ref.Number, num)); derr != nil {
			return nil, derr
		}
		return core.NullValue, nil
	}
	return ind.Object, nil
}

// loadCompressed extracts object num from the object stream stored under
// containerNum, decoding the container on first use.
func (r *Resolver) loadCompressed(num, containerNum int) (core.Object, error) {
	os, err := r.container(containerNum)
	if err != nil {
		if derr := r.diag.Error(core.ErrFlagBadObjStream, err); derr != nil {
			return nil, derr
		}
		return core.NullValue, nil
	}

	obj, _, err := os.GetObjectByNumber(num)
	if err != nil {
		if derr := r.diag.Error(core.ErrFlagBadObjStream,
			fmt.Errorf("object %d in stream %d: %w", num, containerNum, err)); derr != nil {
			return nil, derr
		}
		return core.NullValue, nil
	}
	return obj, nil
}

// container returns the decoded object stream with the given object number,
// resolving and decoding it on first request.
func (r *Resolver) container(containerNum int) (*core.ObjectStream, error) {
	if os, ok := r.containers[containerNum]; ok {
		return os, nil
	}

	obj, err := r.ResolveReference(core.IndirectRef{Number: containerNum})
	if err != nil {
		return nil, err
	}
	stream, ok := obj.(*core.Stream)
	if !ok {
		core.Release(obj)
		return nil, fmt.Errorf("%w: container %d is %v, not a stream", core.ErrType, containerNum, obj.Type())
	}

	os, err := core.NewObjectStream(stream, r.diag)
	core.Release(stream) // the object stream holds its own share now
	if err != nil {
		return nil, err
	}
	r.containers[containerNum] = os
	return os, nil
}
