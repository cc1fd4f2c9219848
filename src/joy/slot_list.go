// This file was automatically generated by genny.
// Any changes will be lost if this file is regenerated.
// see https://github.com/cheekybits/genny

package joy

// SlotNodeDL is one link in a SlotDoublyLinkedList.  The value is
// held directly, not through a pointer, so small values like indices can be
// queued without allocating a separate object.
type SlotNodeDL struct {
	prev  *SlotNodeDL
	next  *SlotNodeDL
	owner *SlotDoublyLinkedList
	value Slot
}

// SlotDoublyLinkedList is a FIFO-capable doubly linked list that is not
// concurrent safe.  Callers hold whatever lock protects the owner.
type SlotDoublyLinkedList struct {
	first *SlotNodeDL
	last  *SlotNodeDL
	size  int
}

// Next returns the next node, or nil for the last node in the list.
func (g *SlotNodeDL) Next() *SlotNodeDL {
	return g.next
}

// Prev returns the previous node, or nil for the first node in the list.
func (g *SlotNodeDL) Prev() *SlotNodeDL {
	return g.prev
}

func (g *SlotNodeDL) Value() Slot {
	return g.value
}

// NewSlotDoublyLinkedList returns an empty list.
func NewSlotDoublyLinkedList() SlotDoublyLinkedList {
	return SlotDoublyLinkedList{}
}

// Empty returns true if the list is empty.
func (g *SlotDoublyLinkedList) Empty() bool {
	if g.first == nil {
		if g.last != nil || g.size != 0 {
			panic("invariant violated checking for Empty")
		}
		return true
	}
	return false
}

// Length returns the number of elements in the list.
func (g *SlotDoublyLinkedList) Length() int {
	return g.size
}

// First returns the first node in the list or nil if the list is empty.
func (g *SlotDoublyLinkedList) First() *SlotNodeDL {
	if g.first != nil && g.first.prev != nil {
		panic("invariant of first node violated (First())")
	}
	return g.first
}

// Last returns the last node in the list or nil if the list is empty.
func (g *SlotDoublyLinkedList) Last() *SlotNodeDL {
	if g.last != nil && g.last.next != nil {
		panic("invariant of last node violated (Last())")
	}
	return g.last
}

// Push puts v at the front of the list and returns its node.
func (g *SlotDoublyLinkedList) Push(v Slot) *SlotNodeDL {
	n := &SlotNodeDL{value: v}
	g.InsertBefore(g.first, n)
	return n
}

// Append puts v at the end of the list and returns its node.
func (g *SlotDoublyLinkedList) Append(v Slot) *SlotNodeDL {
	n := &SlotNodeDL{value: v}
	g.InsertAfter(g.last, n)
	return n
}

// InsertBefore links n in front of target.  A nil target means the end of
// the list, so InsertBefore(nil, n) appends.
func (g *SlotDoublyLinkedList) InsertBefore(target *SlotNodeDL, n *SlotNodeDL) {
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
func (g *SlotDoublyLinkedList) InsertAfter(target *SlotNodeDL, n *SlotNodeDL) {
	g.checkFree(n)
	if target == nil {
		g.link(nil, g.first, n)
		return
	}
	g.checkMember(target)
	g.link(target, target.next, n)
}

func (g *SlotDoublyLinkedList) link(prev, next, n *SlotNodeDL) {
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

func (g *SlotDoublyLinkedList) checkFree(n *SlotNodeDL) {
	if n.owner != nil || n.next != nil || n.prev != nil {
		panic("attempt to insert node that is a member of another list")
	}
}

func (g *SlotDoublyLinkedList) checkMember(n *SlotNodeDL) {
	if n.owner != g {
		panic("node is not a member of this list")
	}
}

// Remove takes a node out of the list.
func (g *SlotDoublyLinkedList) Remove(n *SlotNodeDL) {
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
func (g *SlotDoublyLinkedList) Pop() (Slot, bool) {
	f := g.First()
	if f == nil {
		var zero Slot
		return zero, false
	}
	g.Remove(f)
	return f.value, true
}

// Dequeue removes the last node and returns its value.
func (g *SlotDoublyLinkedList) Dequeue() (Slot, bool) {
	l := g.Last()
	if l == nil {
		var zero Slot
		return zero, false
	}
	g.Remove(l)
	return l.value, true
}

// Nth returns the node that is the Nth element of the list, or nil if there
// are not enough nodes.
func (g *SlotDoublyLinkedList) Nth(i int) *SlotNodeDL {
	if i < 0 || i >= g.size {
		return nil
	}
	curr := g.first
	for ; i > 0; i-- {
		curr = curr.next
	}
	return curr
}

// TraverseSlot walks the values front to back.  If fn returns an error
// the walk stops and that error is returned.
func (g *SlotDoublyLinkedList) TraverseSlot(fn func(v Slot) error) error {
	for curr := g.first; curr != nil; curr = curr.next {
		if err := fn(curr.value); err != nil {
			return err
		}
	}
	return nil
}

// TraverseNodesSlot walks the nodes front to back.  fn may remove the
// node it is given but nothing after it.
func (g *SlotDoublyLinkedList) TraverseNodesSlot(fn func(n *SlotNodeDL) error) error {
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

// TraverseBackwardsSlot walks the values back to front.
func (g *SlotDoublyLinkedList) TraverseBackwardsSlot(fn func(v Slot) error) error {
	for curr := g.last; curr != nil; curr = curr.prev {
		if err := fn(curr.value); err != nil {
			return err
		}
	}
	return nil
}
