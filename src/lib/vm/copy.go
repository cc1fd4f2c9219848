package vm

import (
	"fmt"

	"waemom/src/lib/upbeat"
)

// CopyIn reads n bytes at the user address vaddr through root.  Every page
// touched must be mapped user accessible.
func (m *Manager) CopyIn(root upbeat.PhysAddr, vaddr uint64, n uint64) ([]byte, error) {
	var out []byte
	err := m.eachUserPage(root, vaddr, n, false, func(page []byte) {
		out = append(out, page...)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// CopyOut writes data at the user address vaddr through root.  Every page
// touched must be mapped user accessible and writable.  Pages before a bad
// one have already been written when an error comes back.
func (m *Manager) CopyOut(root upbeat.PhysAddr, vaddr uint64, data []byte) error {
	return m.eachUserPage(root, vaddr, uint64(len(data)), true, func(page []byte) {
		n := copy(page, data)
		data = data[n:]
	})
}

// eachUserPage calls fn with the in-frame slice for each piece of
// [vaddr, vaddr+n) in order.
func (m *Manager) eachUserPage(root upbeat.PhysAddr, vaddr, n uint64, write bool, fn func([]byte)) error {
	if n == 0 {
		return nil
	}
	if vaddr >= UserLimit || n > UserLimit-vaddr {
		return fmt.Errorf("user range %#x+%#x: %w", vaddr, n, ErrBadAddress)
	}
	if err := m.checkRoot(root); err != nil {
		return err
	}
	need := Present | User
	if write {
		need |= Writable
	}
	m.lock.Lock()
	defer m.lock.Unlock()
	for n > 0 {
		leaf, err := m.leaf(root, vaddr)
		if err != nil {
			return err
		}
		if leaf.flags()&need != need {
			return fmt.Errorf("%#x (%s): %w", vaddr, leaf, ErrNotMapped)
		}
		off := vaddr & (upbeat.PageSize - 1)
		chunk := upbeat.PageSize - off
		if chunk > n {
			chunk = n
		}
		page := m.frames.Bytes(upbeat.FrameFromAddress(leaf.addr()))
		fn(page[off : off+chunk])
		vaddr += chunk
		n -= chunk
	}
	return nil
}
