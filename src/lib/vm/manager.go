package vm

import (
	"errors"
	"fmt"
	"sync"

	"waemom/src/lib/trust"
	"waemom/src/lib/upbeat"
)

var (
	ErrAlreadyMapped = errors.New("address already mapped")
	ErrNotMapped     = errors.New("address not mapped")
	ErrBadRoot       = errors.New("not a page table root")
	ErrBadAddress    = errors.New("address outside the permitted half")
)

// FrameSource is where the manager gets page frames, both for page tables
// and for the memory they map.
type FrameSource interface {
	Allocate() (upbeat.Frame, error)
	Bytes(f upbeat.Frame) []byte
	Owns(f upbeat.Frame) bool
}

// Manager builds and edits page table trees.  A tree is named by the physical
// address of its top level table, its root.  Every root shares the kernel
// half of the kernel root by reference.
type Manager struct {
	lock       sync.Mutex
	frames     FrameSource
	kernelRoot upbeat.PhysAddr
	active     upbeat.PhysAddr
	log        *trust.Logger
}

// NewManager builds the kernel root.  All kernel half PML4 slots get a table
// up front so later kernel mappings are seen through every root.  The first
// kernelPages pages at KernelBase are mapped as the kernel image.
func NewManager(frames FrameSource, kernelPages int, log *trust.Logger) (*Manager, error) {
	if log == nil {
		log = trust.Default().Named("vm")
	}
	m := &Manager{frames: frames, log: log}
	root, err := m.newTable()
	if err != nil {
		return nil, fmt.Errorf("kernel root: %w", err)
	}
	top := m.table(root)
	for i := kernelHalfFirstSlot; i < entriesPerTable; i++ {
		t, err := m.newTable()
		if err != nil {
			return nil, fmt.Errorf("kernel half slot %d: %w", i, err)
		}
		top.set(i, makePTE(t, Present|Writable))
	}
	m.kernelRoot = root
	m.active = root
	if kernelPages > 0 {
		if _, err := m.mapPages(root, KernelBase, uint64(kernelPages), Present|Writable); err != nil {
			return nil, fmt.Errorf("kernel image: %w", err)
		}
	}
	m.log.Infof("kernel root at %#x, %d image pages at %#x", uint64(root), kernelPages, KernelBase)
	return m, nil
}

func (m *Manager) KernelRoot() upbeat.PhysAddr {
	return m.kernelRoot
}

// Active returns the root currently installed (the CR3 value).
func (m *Manager) Active() upbeat.PhysAddr {
	m.lock.Lock()
	defer m.lock.Unlock()
	return m.active
}

// Activate installs root as the active address space.
func (m *Manager) Activate(root upbeat.PhysAddr) error {
	if err := m.checkRoot(root); err != nil {
		return err
	}
	m.lock.Lock()
	prev := m.active
	m.active = root
	m.lock.Unlock()
	if prev != root {
		m.log.Debugf("cr3 %#x -> %#x", uint64(prev), uint64(root))
	}
	return nil
}

// CreateRoot returns a new root with an empty user half and the kernel half
// entries of the active root.
func (m *Manager) CreateRoot() (upbeat.PhysAddr, error) {
	m.lock.Lock()
	defer m.lock.Unlock()
	root, err := m.newTable()
	if err != nil {
		return 0, err
	}
	src, dst := m.table(m.active), m.table(root)
	for i := kernelHalfFirstSlot; i < entriesPerTable; i++ {
		dst.set(i, src.get(i))
	}
	m.log.Debugf("new root %#x", uint64(root))
	return root, nil
}

// MapRegion maps fresh frames over [pagedown(vaddr), pageup(vaddr+length))
// in root as present and user accessible.  The frames are returned in
// address order.  If frames run out part way through, the pages already
// mapped stay mapped.
func (m *Manager) MapRegion(root upbeat.PhysAddr, vaddr, length uint64, writable bool) ([]upbeat.Frame, error) {
	if length == 0 {
		return nil, nil
	}
	if vaddr >= UserLimit || length > UserLimit-vaddr {
		return nil, fmt.Errorf("map %#x+%#x: %w", vaddr, length, ErrBadAddress)
	}
	if err := m.checkRoot(root); err != nil {
		return nil, err
	}
	start := upbeat.PageDown(vaddr)
	pages := (upbeat.PageUp(vaddr+length) - start) >> upbeat.PageShift
	flags := Present | User
	if writable {
		flags |= Writable
	}
	m.lock.Lock()
	defer m.lock.Unlock()
	return m.mapPages(root, start, pages, flags)
}

// MapStack maps pages writable pages that end at top.
func (m *Manager) MapStack(root upbeat.PhysAddr, top uint64, pages int) ([]upbeat.Frame, error) {
	size := uint64(pages) << upbeat.PageShift
	if top&(upbeat.PageSize-1) != 0 || size > top {
		return nil, fmt.Errorf("stack top %#x: %w", top, ErrBadAddress)
	}
	return m.MapRegion(root, top-size, size, true)
}

// MapKernelRegion maps fresh frames into the kernel half.  Because kernel
// half tables are shared, the mapping shows up in every root.
func (m *Manager) MapKernelRegion(vaddr, length uint64, writable bool) ([]upbeat.Frame, error) {
	if length == 0 {
		return nil, nil
	}
	if vaddr < KernelBase || length > upbeat.PageDown(^uint64(0))-vaddr {
		return nil, fmt.Errorf("kernel map %#x+%#x: %w", vaddr, length, ErrBadAddress)
	}
	start := upbeat.PageDown(vaddr)
	pages := (upbeat.PageUp(vaddr+length) - start) >> upbeat.PageShift
	flags := Present
	if writable {
		flags |= Writable
	}
	m.lock.Lock()
	defer m.lock.Unlock()
	return m.mapPages(m.kernelRoot, start, pages, flags)
}

// Translate walks root for vaddr and returns the physical address and the
// leaf flags.
func (m *Manager) Translate(root upbeat.PhysAddr, vaddr uint64) (upbeat.PhysAddr, uint64, error) {
	if err := m.checkRoot(root); err != nil {
		return 0, 0, err
	}
	m.lock.Lock()
	defer m.lock.Unlock()
	leaf, err := m.leaf(root, vaddr)
	if err != nil {
		return 0, 0, err
	}
	return leaf.addr() + upbeat.PhysAddr(vaddr&(upbeat.PageSize-1)), leaf.flags(), nil
}

// FrameBytes returns the contents of a frame handed out to this manager.
func (m *Manager) FrameBytes(f upbeat.Frame) []byte {
	return m.frames.Bytes(f)
}

func (m *Manager) checkRoot(root upbeat.PhysAddr) error {
	if !root.PageAligned() || !m.frames.Owns(upbeat.FrameFromAddress(root)) {
		return fmt.Errorf("%#x: %w", uint64(root), ErrBadRoot)
	}
	return nil
}

// newTable allocates and zeroes a frame for a page table.
func (m *Manager) newTable() (upbeat.PhysAddr, error) {
	f, err := m.frames.Allocate()
	if err != nil {
		return 0, err
	}
	b := m.frames.Bytes(f)
	for i := range b {
		b[i] = 0
	}
	return f.Address(), nil
}

func (m *Manager) table(addr upbeat.PhysAddr) table {
	return table(m.frames.Bytes(upbeat.FrameFromAddress(addr)))
}

// walk returns the last level table for vaddr, creating missing tables on
// the way when create is set.  Caller holds the lock.
func (m *Manager) walk(root upbeat.PhysAddr, vaddr uint64, create bool, user bool) (table, error) {
	t := m.table(root)
	for level := levels - 1; level > 0; level-- {
		i := index(vaddr, level)
		e := t.get(i)
		if !e.present() {
			if !create {
				return nil, fmt.Errorf("%#x: %w", vaddr, ErrNotMapped)
			}
			next, err := m.newTable()
			if err != nil {
				return nil, err
			}
			flags := Present | Writable
			if user {
				flags |= User
			}
			e = makePTE(next, flags)
			t.set(i, e)
		}
		t = m.table(e.addr())
	}
	return t, nil
}

func (m *Manager) leaf(root upbeat.PhysAddr, vaddr uint64) (pte, error) {
	if !canonical(vaddr) {
		return 0, fmt.Errorf("%#x: %w", vaddr, ErrBadAddress)
	}
	t, err := m.walk(root, vaddr, false, false)
	if err != nil {
		return 0, err
	}
	e := t.get(index(vaddr, 0))
	if !e.present() {
		return 0, fmt.Errorf("%#x: %w", vaddr, ErrNotMapped)
	}
	return e, nil
}

// mapPages installs pages fresh frames starting at the page aligned vaddr.
// Caller holds the lock.
func (m *Manager) mapPages(root upbeat.PhysAddr, vaddr uint64, pages uint64, flags uint64) ([]upbeat.Frame, error) {
	result := make([]upbeat.Frame, 0, pages)
	for p := uint64(0); p < pages; p++ {
		va := vaddr + p<<upbeat.PageShift
		t, err := m.walk(root, va, true, flags&User != 0)
		if err != nil {
			return result, fmt.Errorf("map %#x: %w", va, err)
		}
		i := index(va, 0)
		if t.get(i).present() {
			return result, fmt.Errorf("map %#x: %w", va, ErrAlreadyMapped)
		}
		f, err := m.frames.Allocate()
		if err != nil {
			m.log.Warnf("out of frames mapping %#x in root %#x (%d of %d pages done)",
				va, uint64(root), p, pages)
			return result, fmt.Errorf("map %#x: %w", va, err)
		}
		t.set(i, makePTE(f.Address(), flags))
		result = append(result, f)
	}
	return result, nil
}
