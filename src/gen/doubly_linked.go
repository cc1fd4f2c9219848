package gen

import (
	"github.com/cheekybits/genny/generic"
)

//go:generate genny -in=$GOFILE -out=../joy/slot_list.go -pkg=joy gen "Generic=Slot"

type Generic generic.Type

// GenericNodeDL is one link in a GenericDoublyLinkedList.  The value is
// held directly, not through a pointer, so small values like indices can be
// queued without allocating a separate object.
type GenericNodeDL struct {
	prev  *GenericNodeDL
	next  *GenericNodeDL
	owner *GenericDoublyLinkedList
	value Generic
}

// GenericDoublyLinkedList is a FIFO-capable doubly linked list that is not
// concurrent safe.  Callers hold whatever lock protects the owner.
type GenericDoublyLinkedList struct {
	first *GenericNodeDL
	last  *GenericNodeDL
	size  int
}

// Next returns the next node, or nil for the last node in the list.
func (g *GenericNodeDL) Next() *GenericNodeDL {
	return g.next
}

// Prev returns the previous node, or nil for the first node in the list.
func (g *GenericNodeDL) Prev() *GenericNodeDL {
	return g.prev
}

func (g *GenericNodeDL) Value() Generic {
	return g.value
}

// NewGenericDoublyLinkedList returns an empty list.
func NewGenericDoublyLinkedList() GenericDoublyLinkedList {
	return GenericDoublyLinkedList{}
}

// Empty returns true if the list is empty.
func (g *GenericDoublyLinkedList) Empty() bool {
	if g.first == nil {
		if g.last != nil || g.size != 0 {
			panic("invariant violated checking for Empty")
		}
		return true
	}
	return false
}

// Length returns the number of elements in the list.
func (g *GenericDoublyLinkedList) Length() int {
	return g.size
}

// First returns the first node in the list or nil if the list is empty.
func (g *GenericDoublyLinkedList) First() *GenericNodeDL {
	if g.first != nil && g.first.prev != nil {
		panic("invariant of first node violated (First())")
	}
	return g.first
}

// Last returns the last node in the list or nil if the list is empty.
func (g *GenericDoublyLinkedList) Last() *GenericNodeDL {
	if g.last != nil && g.last.next != nil {
		panic("invariant of last node violated (Last())")
	}
	return g.last
}

// Push puts v at the front of the list and returns its node.
func (g *GenericDoublyLinkedList) Push(v Generic) *GenericNodeDL {
	n := &GenericNodeDL{value: v}
	g.InsertBefore(g.first, n)
	return n
}

// Append puts v at the end of the list and returns its node.
func (g *GenericDoublyLinkedList) Append(v Generic) *GenericNodeDL {
	n := &GenericNodeDL{value: v}
	g.InsertAfter(g.last, n)
	return n
}

// InsertBefore links n in front of target.  A nil target means the end of
// the list, so InsertBefore(nil, n) appends.
func (g *GenericDoublyLinkedList) InsertBefore(target *GenericNodeDL, n *GenericNodeDL) {
	g.checkFree(n)
	if target == nil {
		g.link(g.last, nil, n)
		return
	}
	g.checkMember(target)
	g.link(target.prev, target, n)
}

// InsertAfter links n after target.  A nil target means the front of the
// list, so InsertAfter(nil, n) pushes.
func (g *GenericDoublyLinkedList) InsertAfter(target *GenericNodeDL, n *GenericNodeDL) {
	g.checkFree(n)
	if target == nil {
		g.link(nil, g.first, n)
		return
	}
	g.checkMember(target)
	g.link(target, target.next, n)
}

func (g *GenericDoublyLinkedList) link(prev, next, n *GenericNodeDL) {
	n.prev = prev
	n.next = next
	n.owner = g
	if prev == nil {
		g.first = n
	} else {
		prev.next = n
	}
	if next == nil {
		g.last = n
	} else {
		next.prev = n
	}
	g.size++
}

func (g *GenericDoublyLinkedList) checkFree(n *GenericNodeDL) {
	if n.owner != nil || n.next != nil || n.prev != nil {
		panic("attempt to insert node that is a member of another list")
	}
}

func (g *GenericDoublyLinkedList) checkMember(n *GenericNodeDL) {
	if n.owner != g {
		panic("node is not a member of this list")
	}
}

// Remove takes a node out of the list.
func (g *GenericDoublyLinkedList) Remove(n *GenericNodeDL) {
	g.checkMember(n)
	if n.prev == nil {
		g.first = n.next
	} else {
		n.prev.next = n.next
	}
	if n.next == nil {
		g.last = n.prev
	} else {
		n.next.prev = n.prev
	}
	n.prev = nil
	n.next = nil
	n.owner = nil
	g.size--
}

// Pop removes the first node and returns its value.  The bool is false
// when the list was empty.
func (g *GenericDoublyLinkedList) Pop() (Generic, bool) {
	f := g.First()
	if f == nil {
		var zero Generic
		return zero, false
	}
	g.Remove(f)
	return f.value, true
}

// Dequeue removes the last node and returns its value.
func (g *GenericDoublyLinkedList) Dequeue() (Generic, bool) {
	l := g.Last()
	if l == nil {
		var zero Generic
		return zero, false
	}
	g.Remove(l)
	return l.value, true
}

// Nth returns the node that is the Nth element of the list, or nil if there
// are not enough nodes.
func (g *GenericDoublyLinkedList) Nth(i int) *GenericNodeDL {
	if i < 0 || i >= g.size {
		return nil
	}
	curr := g.first
	for ; i > 0; i-- {
		curr = curr.next
	}
	return curr
}

// TraverseGeneric walks the values front to back.  If fn returns an error
// the walk stops and that error is returned.
func (g *GenericDoublyLinkedList) TraverseGeneric(fn func(v Generic) error) error {
	for curr := g.first; curr != nil; curr = curr.next {
		if err := fn(curr.value); err != nil {
			return err
		}
	}
	return nil
}

// TraverseNodesGeneric walks the nodes front to back.  fn may remove the
// node it is given but nothing after it.
func (g *GenericDoublyLinkedList) TraverseNodesGeneric(fn func(n *GenericNodeDL) error) error {
	curr := g.first
	for curr != nil {
		next := curr.next
		if err := fn(curr); err != nil {
			return err
		}
		curr = next
	}
	return nil
}

// TraverseBackwardsGeneric walks the values back to front.
func (g *GenericDoublyLinkedList) TraverseBackwardsGeneric(fn func(v Generic) error) error {
	for curr := g.last; curr != nil; curr = curr.prev {
		if err := fn(curr.value); err != nil {
			return err
		}
	}
	return nil
}
