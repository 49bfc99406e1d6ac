package resolver

import (
	"github.com/mblythe/vellum/core"
)

// cacheSlot is one arena entry of the resolved-object cache. Recency is
// threaded through prev/next slot indices rather than pointers, so the
// arena never reallocates and slot numbers stay stable for the lifetime of
// the cache. Stable slot numbers are what the cross-reference entries store
// as back-pointers.
type cacheSlot struct {
	obj    core.Object
	objNum int
	prev   int // more recently used neighbor, -1 at head
	next   int // less recently used neighbor, -1 at tail
}

// objectCache is a bounded most-recently-used cache over resolved
// composites. The cache owns one reference share per occupied slot.
type objectCache struct {
	slots []cacheSlot
	head  int // most recently used, -1 when empty
	tail  int // least recently used, -1 when empty
	free  []int
}

func newObjectCache(capacity int) *objectCache {
	if capacity < 1 {
		capacity = 1
	}
	c := &objectCache{
		slots: make([]cacheSlot, capacity),
		head:  -1,
		tail:  -1,
		free:  make([]int, 0, capacity),
	}
	for i := capacity - 1; i >= 0; i-- {
		c.slots[i].objNum = -1
		c.free = append(c.free, i)
	}
	return c
}

// get returns the object in slot without transferring ownership and marks
// the slot most recently used.
func (c *objectCache) get(slot int) core.Object {
	c.promote(slot)
	return c.slots[slot].obj
}

// objNumAt reports which object number occupies slot.
func (c *objectCache) objNumAt(slot int) int {
	return c.slots[slot].objNum
}

// promote unlinks slot from the recency list and relinks it at the head.
func (c *objectCache) promote(slot int) {
	if c.head == slot {
		return
	}
	c.unlink(slot)
	c.linkFront(slot)
}

func (c *objectCache) unlink(slot int) {
	s := &c.slots[slot]
	if s.prev >= 0 {
		c.slots[s.prev].next = s.next
	} else if c.head == slot {
		c.head = s.next
	}
	if s.next >= 0 {
		c.slots[s.next].prev = s.prev
	} else if c.tail == slot {
		c.tail = s.prev
	}
	s.prev, s.next = -1, -1
}

func (c *objectCache) linkFront(slot int) {
	s := &c.slots[slot]
	s.prev = -1
	s.next = c.head
	if c.head >= 0 {
		c.slots[c.head].prev = slot
	}
	c.head = slot
	if c.tail < 0 {
		c.tail = slot
	}
}

// insert stores obj under objNum, retaining one share for the cache, and
// returns the slot index it now occupies. When the arena is full the least
// recently used slot is recycled; its previous occupant is released and its
// object number returned as evicted so the caller can clear the stale
// back-pointer. evicted is -1 when nothing was displaced.
func (c *objectCache) insert(objNum int, obj core.Object) (slot, evicted int) {
	evicted = -1
	if n := len(c.free); n > 0 {
		slot = c.free[n-1]
		c.free = c.free[:n-1]
	} else {
		slot = c.tail
		evicted = c.slots[slot].objNum
		core.Release(c.slots[slot].obj)
		c.unlink(slot)
	}

	c.slots[slot].obj = core.Retain(obj)
	c.slots[slot].objNum = objNum
	c.linkFront(slot)
	return slot, evicted
}

// evict releases the occupant of slot and returns the slot to the free
// list. Used when a stale entry must be dropped without replacement.
func (c *objectCache) evict(slot int) {
	core.Release(c.slots[slot].obj)
	c.slots[slot].obj = nil
	c.slots[slot].objNum = -1
	c.unlink(slot)
	c.free = append(c.free, slot)
}

// len reports the number of occupied slots.
func (c *objectCache) len() int {
	return len(c.slots) - len(c.free)
}

// drain releases every cached share. The cache is unusable afterwards.
func (c *objectCache) drain() {
	for i := range c.slots {
		if c.slots[i].obj != nil {
			core.Release(c.slots[i].obj)
			c.slots[i].obj = nil
			c.slots[i].objNum = -1
		}
	}
	c.head, c.tail = -1, -1
	c.free = c.free[:0]
	for i := len(c.slots) - 1; i >= 0; i-- {
		c.free = append(c.free, i)
	}
}
