package joy

import (
	"fmt"
	"sync"
)

// user mode selectors, RPL 3
const (
	UserCodeSelector = 0x1b
	UserDataSelector = 0x23
)

// IretFrame is what iretq pops to drop into user mode.
type IretFrame struct {
	RIP    uint64
	CS     uint64
	RFLAGS uint64
	RSP    uint64
	SS     uint64
}

func (f IretFrame) String() string {
	return fmt.Sprintf("rip=%#x cs=%#x rflags=%#x rsp=%#x ss=%#x", f.RIP, f.CS, f.RFLAGS, f.RSP, f.SS)
}

// BuildIretFrame returns the frame for a first entry to user code at entry
// with the stack at rsp.
func BuildIretFrame(entry, rsp uint64) IretFrame {
	return IretFrame{
		RIP:    entry,
		CS:     UserCodeSelector,
		RFLAGS: rflagsInterruptsOn,
		RSP:    rsp,
		SS:     UserDataSelector,
	}
}

// UserGate performs the privilege drop.  EnterUser never returns to its
// caller; the kernel is only re-entered by a later trap or syscall.
type UserGate interface {
	EnterUser(frame IretFrame)
}

type kernelBinder interface {
	bind(k *Kernel)
}

// userTrampoline is the first code every user task runs.  It takes the
// pending entry, which can only happen once, and drops to user mode.
func (k *Kernel) userTrampoline() {
	k.lock.Lock()
	slot := k.current
	t := k.taskLocked(slot)
	var p *PendingEntry
	if t != nil {
		p = t.pending
		t.pending = nil
	}
	k.lock.Unlock()
	if p == nil {
		k.halt("user trampoline ran in slot %d with no pending entry", slot)
	}
	frame := BuildIretFrame(p.RIP, p.RSP)
	k.log.Debugf("pid %d entering user mode: %s", t.Pid, frame)
	k.gate.EnterUser(frame)
	k.halt("enter-user gate returned for pid %d", t.Pid)
}

// UserProgram is hosted code standing in for the machine code at an entry
// address.  It talks to the kernel only through its UserThread.
type UserProgram func(u *UserThread)

// UserThread is the user mode view of the CPU for a UserProgram.
type UserThread struct {
	Frame IretFrame
	k     *Kernel
}

// Syscall issues the syscall instruction: nr in RAX, arguments in RDI, RSI,
// RDX, R10, R8.  The result comes back in RAX.
func (u *UserThread) Syscall(nr uint64, args ...uint64) uint64 {
	var a [5]uint64
	copy(a[:], args)
	tf := &TrapFrame{
		RAX: nr,
		RDI: a[0],
		RSI: a[1],
		RDX: a[2],
		R10: a[3],
		R8:  a[4],
		RCX: u.Frame.RIP,
		R11: u.Frame.RFLAGS,
	}
	u.k.SyscallEntry(tf)
	if tf.RCX != u.Frame.RIP || tf.R11 != u.Frame.RFLAGS {
		u.k.halt("sysret state clobbered: rcx=%#x r11=%#x", tf.RCX, tf.R11)
	}
	return tf.RAX
}

// Preempt is a point where the timer can take the CPU away.
func (u *UserThread) Preempt() {
	u.k.Safepoint()
}

// Pause waits in user mode for the next timer tick.  A task that just
// asked to sleep comes back from here once it has been woken.
func (u *UserThread) Pause() {
	u.k.WaitForInterrupt()
}

// Spin loops in user mode forever, giving the timer every chance to
// schedule something else.
func (u *UserThread) Spin() {
	for {
		u.Pause()
	}
}

// ProgramGate enters user mode by running the UserProgram registered for
// the entry address.  When the program finishes, or when nothing is
// registered, the task spins in user mode.
type ProgramGate struct {
	lock     sync.Mutex
	k        *Kernel
	programs map[uint64]UserProgram
}

func NewProgramGate() *ProgramGate {
	return &ProgramGate{programs: make(map[uint64]UserProgram)}
}

func (g *ProgramGate) bind(k *Kernel) {
	g.k = k
}

// Register makes p the code at entry.
func (g *ProgramGate) Register(entry uint64, p UserProgram) {
	g.lock.Lock()
	defer g.lock.Unlock()
	g.programs[entry] = p
}

func (g *ProgramGate) EnterUser(frame IretFrame) {
	g.lock.Lock()
	p := g.programs[frame.RIP]
	g.lock.Unlock()
	u := &UserThread{Frame: frame, k: g.k}
	if p == nil {
		g.k.log.Warnf("no user program at %#x, spinning", frame.RIP)
	} else {
		p(u)
	}
	u.Spin()
}
