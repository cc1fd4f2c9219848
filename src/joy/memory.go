package joy

import (
	"fmt"

	"waemom/src/lib/upbeat"
	"waemom/src/lib/vm"
)

// kernel half layout
const (
	kernelTextBase  = vm.KernelBase + 0x1000
	kernelStackBase = vm.KernelBase + 0x10_0000_0000
	funcPtrStride   = 16
)

// FuncPtr is the address a kernel context starts at.  Hosted entry points
// are given addresses in the kernel text so contexts carry a real looking
// RIP.
type FuncPtr uint64

// registerFuncLocked records fn and returns the address it answers to.
func (k *Kernel) registerFuncLocked(fn func()) FuncPtr {
	k.funcs = append(k.funcs, fn)
	return FuncPtr(kernelTextBase + uint64(len(k.funcs)-1)*funcPtrStride)
}

// allocKernelStackLocked maps a kernel stack in the shared kernel half,
// leaving an unmapped guard page below it, and returns its top.  The
// address range is used up even when the mapping fails part way, since
// some of its pages may be mapped.
func (k *Kernel) allocKernelStackLocked() (uint64, error) {
	base := k.kstackNext + upbeat.PageSize // guard
	k.kstackNext = base + k.cfg.KernelStackSize
	if _, err := k.vm.MapKernelRegion(base, k.cfg.KernelStackSize, true); err != nil {
		return 0, fmt.Errorf("kernel stack at %#x: %w", base, err)
	}
	return k.kstackNext, nil
}
