package joy

import "sync"

// Context is the saved state of a task that is not on the CPU: the
// callee-saved registers plus the hosted continuation that stands in for
// the stack they point at.
type Context struct {
	RIP    uint64
	RSP    uint64
	RFLAGS uint64
	RBX    uint64
	RBP    uint64
	R12    uint64
	R13    uint64
	R14    uint64
	R15    uint64

	entry   func()
	resume  chan struct{}
	started bool
}

// initial RFLAGS for every new context: IF set, reserved bit 1 set
const rflagsInterruptsOn = 0x202

func newContext(rip, rsp uint64, entry func()) Context {
	return Context{
		RIP:    rip,
		RSP:    rsp,
		RFLAGS: rflagsInterruptsOn,
		entry:  entry,
		resume: make(chan struct{}),
	}
}

// adoptContext is for a task whose code is already running on the calling
// goroutine (the boot path becoming idle).
func adoptContext() Context {
	c := newContext(0, 0, nil)
	c.started = true
	return c
}

// Switcher saves the running state into save and resumes load.  Switch does
// not return until something switches back to save.  It must be called with
// no kernel locks held.
type Switcher interface {
	Switch(save, load *Context)
}

// GoroutineSwitcher runs every task on its own goroutine.  A task that is
// not running is parked on its resume channel, so exactly one task goroutine
// is runnable at a time.
type GoroutineSwitcher struct{}

func (GoroutineSwitcher) Switch(save, load *Context) {
	if save == load {
		return //safety
	}
	if !load.started {
		load.started = true
		go load.entry()
	} else {
		load.resume <- struct{}{}
	}
	<-save.resume
}

// SwitchRecord is one call to RecordingSwitcher.Switch.
type SwitchRecord struct {
	From *Context
	To   *Context
}

// RecordingSwitcher notes each switch and returns at once, leaving the
// caller in charge of what runs.  Used to drive the scheduler by hand.
type RecordingSwitcher struct {
	lock     sync.Mutex
	switches []SwitchRecord
}

func (r *RecordingSwitcher) Switch(save, load *Context) {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.switches = append(r.switches, SwitchRecord{From: save, To: load})
}

func (r *RecordingSwitcher) Switches() []SwitchRecord {
	r.lock.Lock()
	defer r.lock.Unlock()
	return append([]SwitchRecord(nil), r.switches...)
}
