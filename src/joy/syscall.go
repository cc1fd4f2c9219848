package joy

import (
	"errors"
	"fmt"
	"unicode/utf8"

	"waemom/src/lib/loader"
	"waemom/src/lib/upbeat"
)

// system call numbers
const (
	SysWrite        = 0
	SysSleep        = 1
	SysExit         = 2
	SysSpawnUserELF = 3
)

// SyscallFailure is what every failing system call returns (-1).
const SyscallFailure = ^uint64(0)

const stdout = 1

// TrapFrame is the register state at the syscall instruction.  RCX and R11
// hold the user RIP and RFLAGS for sysret.
type TrapFrame struct {
	RAX uint64
	RDI uint64
	RSI uint64
	RDX uint64
	R10 uint64
	R8  uint64
	R9  uint64
	RCX uint64
	R11 uint64
}

// SyscallEntry is the user to kernel fast path.  The result replaces RAX;
// RCX and R11 are handed back as they came in.
func (k *Kernel) SyscallEntry(tf *TrapFrame) {
	rip, rflags := tf.RCX, tf.R11
	tf.RAX = k.HandleSyscall(tf.RAX, tf.RDI, tf.RSI, tf.RDX, tf.R10, tf.R8)
	tf.RCX, tf.R11 = rip, rflags
}

// HandleSyscall is the dispatch table.  It never faults; every failure is
// SyscallFailure.
func (k *Kernel) HandleSyscall(nr, a1, a2, a3, a4, a5 uint64) uint64 {
	var result uint64
	var err error
	switch nr {
	case SysWrite:
		result, err = k.sysWrite(a1, a2, a3)
	case SysSleep:
		k.SleepCurrent(a1)
	case SysExit:
		// nothing is reclaimed, the task keeps its slot
	case SysSpawnUserELF:
		result, err = k.sysSpawnUserELF(a1, a2)
	default:
		err = k.MakeError(ErrorSyscallUnknown)
	}
	if err != nil {
		k.log.Debugf("syscall %d(%#x, %#x, %#x, %#x, %#x) failed: %v", nr, a1, a2, a3, a4, a5, err)
		return SyscallFailure
	}
	return result
}

func (k *Kernel) sysWrite(fd, ptr, n uint64) (uint64, error) {
	if fd != stdout {
		return 0, k.MakeError(ErrorSyscallBadFd)
	}
	text, err := k.userString(ptr, n)
	if err != nil {
		return 0, err
	}
	k.console.Println(text)
	return n, nil
}

func (k *Kernel) sysSpawnUserELF(ptr, n uint64) (uint64, error) {
	path, err := k.userString(ptr, n)
	if err != nil {
		return 0, err
	}
	pid, err := k.SpawnUserELF(path)
	if err != nil {
		return 0, err
	}
	return uint64(pid), nil
}

// userString copies n bytes of text out of the active address space.
func (k *Kernel) userString(ptr, n uint64) (string, error) {
	b, err := k.vm.CopyIn(k.vm.Active(), ptr, n)
	if err != nil {
		return "", fmt.Errorf("%w: %w", k.MakeError(ErrorMemoryBadUserBuffer), err)
	}
	if !utf8.Valid(b) {
		return "", k.MakeError(ErrorSyscallNotText)
	}
	return string(b), nil
}

// SpawnUserELF loads the executable at path into a new address space and
// creates a task that enters it in user mode.  Nothing is added to the task
// table unless every step works.
func (k *Kernel) SpawnUserELF(path string) (Pid, error) {
	data, err := k.files.Read(path)
	if err != nil {
		return 0, fmt.Errorf("spawn %s: %w: %w", path, k.MakeError(ErrorLoaderFileNotFound), err)
	}
	img, err := loader.Parse(k.log.Named("loader"), data)
	if err != nil {
		return 0, fmt.Errorf("spawn %s: %w: %w", path, k.MakeError(ErrorLoaderBadImage), err)
	}
	root, err := k.vm.CreateRoot()
	if err != nil {
		return 0, k.mapFailure(path, err)
	}
	if err := loader.MapInto(k.vm, root, img); err != nil {
		return 0, k.mapFailure(path, err)
	}
	if _, err := k.vm.MapStack(root, loader.UserStackTop, loader.UserStackPages); err != nil {
		return 0, k.mapFailure(path, err)
	}

	k.lock.Lock()
	defer k.lock.Unlock()
	pid, err := k.familyCopyLocked(path, root, &PendingEntry{RIP: img.Entry, RSP: loader.UserStackTop}, k.userTrampoline)
	if err != nil {
		return 0, fmt.Errorf("spawn %s: %w", path, err)
	}
	k.log.Infof("spawned %s as pid %d (entry %#x, %d segments, root %#x)",
		path, pid, img.Entry, len(img.Segments), uint64(root))
	return pid, nil
}

func (k *Kernel) mapFailure(path string, err error) error {
	raw := ErrorMemoryMapFailed
	if errors.Is(err, upbeat.ErrFramesExhausted) {
		raw = ErrorMemoryExhausted
	}
	return fmt.Errorf("spawn %s: %w: %w", path, k.MakeError(raw), err)
}
