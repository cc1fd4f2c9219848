package joy

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"waemom/src/lib/trust"
	"waemom/src/lib/upbeat"
	"waemom/src/lib/vm"
)

// Config is everything Boot needs.  Zero fields get defaults.
type Config struct {
	TickHz           uint64
	MemoryMap        []upbeat.Region
	KernelImagePages int
	KernelStackSize  uint64

	Switcher Switcher  // default GoroutineSwitcher
	Gate     UserGate  // default a ProgramGate with nothing registered
	Console  Console   // default discards
	Files    FileStore // default has no files
	Logger   *trust.Logger
}

const (
	DefaultTickHz           = 100
	DefaultKernelImagePages = 16
	DefaultKernelStackSize  = 16 * 1024
)

// HaltError is the panic value used when the kernel finds its own state
// broken and stops.
type HaltError struct {
	Reason string
}

func (h *HaltError) Error() string {
	return "kernel halted: " + h.Reason
}

// Kernel holds all shared kernel state.  Boot builds one; everything else
// hangs off it.
type Kernel struct {
	lock sync.Mutex // task table, ready queue, current, ticks

	cfg    Config
	log    *trust.Logger
	bootID uuid.UUID

	frames *upbeat.FrameAllocator
	vm     *vm.Manager

	tasks   []*Task
	ready   SlotDoublyLinkedList
	current Slot
	nextPid Pid
	ticks   uint64

	kstackNext uint64
	funcs      []func()

	tickPending chan struct{}

	switcher Switcher
	gate     UserGate
	console  Console
	files    FileStore
}

type noFiles struct{}

var errNoFiles = errors.New("no file store")

func (noFiles) Read(path string) ([]byte, error) {
	return nil, fmt.Errorf("%s: %w", path, errNoFiles)
}

// Boot builds the kernel.  The order matters: frames first, then the
// kernel address space on top of them, then the task table whose idle task
// is the caller.  On return the calling goroutine is the idle task, it is
// Running and the ready queue is empty.
func Boot(cfg Config) (*Kernel, error) {
	if cfg.TickHz == 0 {
		cfg.TickHz = DefaultTickHz
	}
	if cfg.KernelImagePages == 0 {
		cfg.KernelImagePages = DefaultKernelImagePages
	}
	if cfg.KernelStackSize == 0 {
		cfg.KernelStackSize = DefaultKernelStackSize
	}
	cfg.KernelStackSize = upbeat.PageUp(cfg.KernelStackSize)
	if cfg.Logger == nil {
		cfg.Logger = trust.Default()
	}
	k := &Kernel{
		cfg:         cfg,
		log:         cfg.Logger.Named("joy"),
		bootID:      uuid.New(),
		ready:       NewSlotDoublyLinkedList(),
		current:     noSlot,
		kstackNext:  kernelStackBase,
		tickPending: make(chan struct{}, 1),
		switcher:    cfg.Switcher,
		gate:        cfg.Gate,
		console:     cfg.Console,
		files:       cfg.Files,
	}
	if k.switcher == nil {
		k.switcher = GoroutineSwitcher{}
	}
	if k.gate == nil {
		k.gate = NewProgramGate()
	}
	if b, ok := k.gate.(kernelBinder); ok {
		b.bind(k)
	}
	if k.console == nil {
		k.console = discardConsole{}
	}
	if k.files == nil {
		k.files = noFiles{}
	}

	k.frames = upbeat.NewFrameAllocator(cfg.MemoryMap, cfg.Logger.Named("upbeat"))
	m, err := vm.NewManager(k.frames, cfg.KernelImagePages, cfg.Logger.Named("vm"))
	if err != nil {
		return nil, fmt.Errorf("boot: %w", err)
	}
	k.vm = m

	idle := &Task{
		Pid:   k.nextPid,
		Name:  "idle",
		State: TaskRunning,
		Root:  m.KernelRoot(),
		ctx:   adoptContext(),
	}
	k.nextPid++
	k.tasks = append(k.tasks, idle)
	k.current = 0

	k.log.Infof("booted %s: %d Hz tick, kernel root %#x", k.bootID, cfg.TickHz, uint64(m.KernelRoot()))
	k.frames.LogStats()
	return k, nil
}

func (k *Kernel) BootID() uuid.UUID {
	return k.bootID
}

func (k *Kernel) Logger() *trust.Logger {
	return k.log
}

func (k *Kernel) VM() *vm.Manager {
	return k.vm
}

func (k *Kernel) Frames() *upbeat.FrameAllocator {
	return k.frames
}

// halt logs and stops the kernel.  It never returns.  Callers must not hold
// k.lock.
func (k *Kernel) halt(format string, params ...interface{}) {
	reason := fmt.Sprintf(format, params...)
	k.log.Errorf("HALT: %s", reason)
	panic(&HaltError{Reason: reason})
}

// taskLocked returns the task in slot s, or nil for a slot with no task.
func (k *Kernel) taskLocked(s Slot) *Task {
	if s < 0 || int(s) >= len(k.tasks) {
		return nil
	}
	return k.tasks[s]
}

// CurrentPid returns the pid of the running task.
func (k *Kernel) CurrentPid() Pid {
	k.lock.Lock()
	defer k.lock.Unlock()
	if t := k.taskLocked(k.current); t != nil {
		return t.Pid
	}
	return 0
}
