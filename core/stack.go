package core

import (
	"errors"
	"fmt"
)

// MarkKind distinguishes the three mark sentinels.
type MarkKind int

const (
	MarkArray MarkKind = iota
	MarkDict
	MarkProc
)

// Mark is a pseudo-object pushed when an open delimiter is seen. The
// matching close delimiter unwinds the stack down to the most recent mark of
// the right kind and replaces it with the collected composite.
type Mark struct {
	Kind MarkKind
}

func (m Mark) Type() ObjectType { return ObjMark }
func (m Mark) String() string {
	switch m.Kind {
	case MarkArray:
		return "-arraymark-"
	case MarkDict:
		return "-dictmark-"
	default:
		return "-procmark-"
	}
}

// ErrNoMark is returned by the Close operations when no matching mark is on
// the stack. Callers treat an unmatched close delimiter as a no-op.
var ErrNoMark = errors.New("no matching mark on stack")

// Stack is the operand stack used while building composite objects and while
// interpreting content streams. The stack owns one reference to every object
// it holds.
type Stack struct {
	items []Object
}

// NewStack returns an empty operand stack.
func NewStack() *Stack {
	return &Stack{}
}

// Depth returns the number of objects on the stack.
func (s *Stack) Depth() int {
	return len(s.items)
}

// Push places obj on the stack, taking an ownership share.
func (s *Stack) Push(obj Object) {
	s.items = append(s.items, Retain(obj))
}

// PushMark pushes a mark sentinel of the given kind.
func (s *Stack) PushMark(kind MarkKind) {
	s.items = append(s.items, Mark{Kind: kind})
}

// Pop removes and returns the top object. The stack's ownership share
// transfers to the caller, who must eventually release it.
func (s *Stack) Pop() (Object, error) {
	if len(s.items) == 0 {
		return nil, ErrStackUnderflow
	}
	obj := s.items[len(s.items)-1]
	s.items = s.items[:len(s.items)-1]
	return obj, nil
}

// Peek returns the top object without removing it.
func (s *Stack) Peek() (Object, error) {
	if len(s.items) == 0 {
		return nil, ErrStackUnderflow
	}
	return s.items[len(s.items)-1], nil
}

// Clear releases everything on the stack.
func (s *Stack) Clear() {
	for _, obj := range s.items {
		Release(obj)
	}
	s.items = s.items[:0]
}

// countToMark returns the number of objects above the topmost mark of the
// given kind, or ErrNoMark.
func (s *Stack) countToMark(kind MarkKind) (int, error) {
	for i := len(s.items) - 1; i >= 0; i-- {
		if m, ok := s.items[i].(Mark); ok && m.Kind == kind {
			return len(s.items) - 1 - i, nil
		}
	}
	return 0, ErrNoMark
}

// CloseArray unwinds the stack to the most recent array mark, collects the
// operands above it in order into a freshly allocated array, and pushes the
// array in the mark's place.
func (s *Stack) CloseArray() (*Array, error) {
	n, err := s.countToMark(MarkArray)
	if err != nil {
		return nil, err
	}

	arr := NewArray(n)
	base := len(s.items) - n
	for i := 0; i < n; i++ {
		arr.Set(i, s.items[base+i])
		Release(s.items[base+i])
	}
	s.items = s.items[:base-1] // drop operands and the mark
	s.Push(arr)
	return arr, nil
}

// CloseDict unwinds the stack to the most recent dictionary mark, pairing
// alternating name keys and values into a freshly allocated dictionary, and
// pushes the dictionary in the mark's place. A non-name key is a type error;
// an odd operand count is a syntax error. On error the operands and mark are
// still consumed so the stack is left balanced.
func (s *Stack) CloseDict() (*Dict, error) {
	n, err := s.countToMark(MarkDict)
	if err != nil {
		return nil, err
	}

	base := len(s.items) - n
	popAll := func() {
		for i := base; i < len(s.items); i++ {
			Release(s.items[i])
		}
		s.items = s.items[:base-1]
	}

	if n%2 != 0 {
		popAll()
		s.Push(NullValue)
		return nil, fmt.Errorf("%w: dictionary literal with odd operand count %d", ErrSyntax, n)
	}

	// Keys are checked before the dictionary is allocated so the error path
	// never holds a partially built dictionary.
	for i := base; i < len(s.items); i += 2 {
		if _, ok := s.items[i].(Name); !ok {
			got := s.items[i].Type()
			popAll()
			s.Push(NullValue)
			return nil, fmt.Errorf("%w: dictionary key must be a name, got %v", ErrType, got)
		}
	}

	dict := NewDict(n / 2)
	for i := base; i < len(s.items); i += 2 {
		dict.Set(string(s.items[i].(Name)), s.items[i+1])
	}
	popAll()
	s.Push(dict)
	return dict, nil
}
