package joy

import (
	"errors"
	"testing"

	"waemom/src/lib/loader"
	"waemom/src/lib/upbeat"
	"waemom/src/lib/vm"
)

const userBufferAddr = 0x1000_0000

// userBuffer puts data into a fresh user address space and makes it the
// active one, as if a user task had the data in its memory.
func userBuffer(t *testing.T, k *Kernel, data []byte) uint64 {
	t.Helper()
	root, err := k.VM().CreateRoot()
	if err != nil {
		t.Fatal(err)
	}
	if _, err := k.VM().MapRegion(root, userBufferAddr, uint64(len(data))+1, true); err != nil {
		t.Fatal(err)
	}
	if err := k.VM().CopyOut(root, userBufferAddr, data); err != nil {
		t.Fatal(err)
	}
	if err := k.VM().Activate(root); err != nil {
		t.Fatal(err)
	}
	return userBufferAddr
}

func helloImage() []byte {
	return loader.Build(0x400000,
		loader.Segment{Data: []byte{0x90, 0x90, 0xc3}, Vaddr: 0x400000},
		loader.Segment{Data: []byte("hello from user space"), Vaddr: 0x600000},
	)
}

func TestWriteToStdout(t *testing.T) {
	r := newRig(t)
	ptr := userBuffer(t, r.k, []byte("hi"))
	if got := r.k.HandleSyscall(SysWrite, 1, ptr, 2, 0, 0); got != 2 {
		t.Errorf("write returned %d, want 2", got)
	}
	lines := r.console.Lines()
	if len(lines) != 1 || lines[0] != "hi" {
		t.Errorf("console got %q", lines)
	}
}

func TestWriteFailures(t *testing.T) {
	r := newRig(t)
	ptr := userBuffer(t, r.k, []byte{'h', 'i', 0xff, 0xfe})
	cases := []struct {
		name         string
		fd, buf, len uint64
	}{
		{"stderr", 2, ptr, 2},
		{"unmapped buffer", 1, 0x2000_0000, 2},
		{"kernel buffer", 1, vm.KernelBase, 2},
		{"not utf8", 1, ptr, 4},
	}
	for _, c := range cases {
		if got := r.k.HandleSyscall(SysWrite, c.fd, c.buf, c.len, 0, 0); got != SyscallFailure {
			t.Errorf("%s: expected failure, got %d", c.name, got)
		}
	}
	if lines := r.console.Lines(); len(lines) != 0 {
		t.Errorf("failed writes reached the console: %q", lines)
	}
}

func TestUnknownSyscallFails(t *testing.T) {
	r := newRig(t)
	for _, nr := range []uint64{4, 60, ^uint64(0)} {
		if got := r.k.HandleSyscall(nr, 1, 2, 3, 4, 5); got != SyscallFailure {
			t.Errorf("syscall %d returned %d", nr, got)
		}
	}
}

func TestExitIsANoOp(t *testing.T) {
	r := newRig(t)
	before := r.k.Tasks()
	if got := r.k.HandleSyscall(SysExit, 0, 0, 0, 0, 0); got != 0 {
		t.Errorf("exit returned %d", got)
	}
	after := r.k.Tasks()
	if len(after) != len(before) || after[0].State != TaskRunning {
		t.Errorf("exit changed the task table")
	}
}

func TestSleepSyscall(t *testing.T) {
	r := newRig(t)
	if got := r.k.HandleSyscall(SysSleep, 300, 0, 0, 0, 0); got != 0 {
		t.Errorf("sleep returned %d", got)
	}
	if info := r.k.Current(); info.State != TaskSleeping || info.WakeAt != 3 {
		t.Errorf("sleep syscall did not put the caller to sleep: %+v", info)
	}
}

func TestSyscallEntryPreservesReturnState(t *testing.T) {
	r := newRig(t)
	ptr := userBuffer(t, r.k, []byte("hi"))
	tf := &TrapFrame{RAX: SysWrite, RDI: 1, RSI: ptr, RDX: 2, RCX: 0x401234, R11: 0x246}
	r.k.SyscallEntry(tf)
	if tf.RAX != 2 {
		t.Errorf("RAX = %d, want 2", tf.RAX)
	}
	if tf.RCX != 0x401234 || tf.R11 != 0x246 {
		t.Errorf("RCX/R11 clobbered: %#x %#x", tf.RCX, tf.R11)
	}
	tf = &TrapFrame{RAX: 77, RCX: 1, R11: 2}
	r.k.SyscallEntry(tf)
	if tf.RAX != SyscallFailure {
		t.Errorf("unknown syscall through the trap path returned %d", tf.RAX)
	}
}

func TestSpawnMissingPathLeavesTableAlone(t *testing.T) {
	r := newRig(t)
	if _, err := r.k.SpawnKernel("A", noop); err != nil {
		t.Fatal(err)
	}
	beforeTasks, beforeQueue := r.k.Tasks(), r.k.ReadyQueue()

	path := []byte("/bin/missing")
	ptr := userBuffer(t, r.k, path)
	if got := r.k.HandleSyscall(SysSpawnUserELF, ptr, uint64(len(path)), 0, 0, 0); got != SyscallFailure {
		t.Errorf("spawn of a missing file returned %d", got)
	}
	_, err := r.k.SpawnUserELF("/bin/missing")
	if !errors.Is(err, ErrorLoaderFileNotFound) {
		t.Errorf("expected file not found, got %v", err)
	}

	afterTasks, afterQueue := r.k.Tasks(), r.k.ReadyQueue()
	if len(afterTasks) != len(beforeTasks) || len(afterQueue) != len(beforeQueue) {
		t.Errorf("failed spawn changed the table (%d -> %d) or queue (%v -> %v)",
			len(beforeTasks), len(afterTasks), beforeQueue, afterQueue)
	}
}

func TestSpawnBadImage(t *testing.T) {
	r := newRig(t)
	img := helloImage()
	img[4] = 1
	r.files["/bin/bad"] = img
	_, err := r.k.SpawnUserELF("/bin/bad")
	if !errors.Is(err, ErrorLoaderBadImage) || !errors.Is(err, loader.LoaderNotClass64) {
		t.Errorf("expected a bad image error, got %v", err)
	}
	if len(r.k.Tasks()) != 1 || len(r.k.ReadyQueue()) != 0 {
		t.Errorf("failed spawn added a task")
	}
}

func TestSpawnOutOfMemory(t *testing.T) {
	// enough for the kernel root and its tables and little else
	r := newRig(t, func(c *Config) {
		c.KernelImagePages = 1
		c.MemoryMap = []upbeat.Region{{Start: 0x100000, Length: 264 * upbeat.PageSize, Kind: upbeat.RegionUsable}}
	})
	r.files["/bin/hello"] = helloImage()
	_, err := r.k.SpawnUserELF("/bin/hello")
	if !errors.Is(err, ErrorMemoryExhausted) || !errors.Is(err, upbeat.ErrFramesExhausted) {
		t.Errorf("expected exhaustion, got %v", err)
	}
	if len(r.k.Tasks()) != 1 || len(r.k.ReadyQueue()) != 0 {
		t.Errorf("failed spawn added a task")
	}
}

func TestSpawnUserELFAndEnterUser(t *testing.T) {
	r := newRig(t)
	r.files["/bin/hello"] = helloImage()
	path := []byte("/bin/hello")
	ptr := userBuffer(t, r.k, path)
	got := r.k.HandleSyscall(SysSpawnUserELF, ptr, uint64(len(path)), 0, 0, 0)
	if got != 1 {
		t.Fatalf("spawn returned %d, want pid 1", got)
	}

	task := r.k.tasks[1]
	if task.Name != "/bin/hello" || task.State != TaskReady {
		t.Errorf("unexpected task %+v", task.info())
	}
	if task.Root == r.k.VM().KernelRoot() {
		t.Errorf("user task needs its own root")
	}
	data, err := r.k.VM().CopyIn(task.Root, 0x600000, 21)
	if err != nil || string(data) != "hello from user space" {
		t.Errorf("data segment not loaded: %q %v", data, err)
	}
	if _, _, err := r.k.VM().Translate(task.Root, loader.UserStackTop-1); err != nil {
		t.Errorf("user stack not mapped: %v", err)
	}
	if q := r.k.ReadyQueue(); len(q) != 1 || q[0] != 1 {
		t.Errorf("user task not queued: %v", q)
	}

	r.k.Tick()
	if r.k.Current().Pid != 1 {
		t.Fatalf("user task should be running")
	}
	if r.k.VM().Active() != task.Root {
		t.Errorf("scheduler did not switch to the task's root")
	}

	// what the new context would run first
	func() {
		defer func() {
			if rec := recover(); rec != errGateEntered {
				t.Fatalf("expected the gate to be entered, got %v", rec)
			}
		}()
		r.k.userTrampoline()
	}()
	if len(r.gate.frames) != 1 {
		t.Fatalf("expected one user entry, got %d", len(r.gate.frames))
	}
	want := IretFrame{RIP: 0x400000, CS: 0x1b, RFLAGS: 0x202, RSP: loader.UserStackTop, SS: 0x23}
	if r.gate.frames[0] != want {
		t.Errorf("iret frame %s, want %s", r.gate.frames[0], want)
	}
	if task.pending != nil {
		t.Errorf("pending entry should be consumed")
	}

	// a second run has nothing to consume
	expectHalt(t, r.k.userTrampoline)
	if len(r.gate.frames) != 1 {
		t.Errorf("gate entered twice")
	}
}

func TestKernelHalfVisibleFromUserRoot(t *testing.T) {
	r := newRig(t)
	r.files["/bin/hello"] = helloImage()
	if _, err := r.k.SpawnUserELF("/bin/hello"); err != nil {
		t.Fatal(err)
	}
	// a kernel task created after the user root still has its stack visible there
	if _, err := r.k.SpawnKernel("late", noop); err != nil {
		t.Fatal(err)
	}
	late := r.k.tasks[2]
	if _, _, err := r.k.VM().Translate(r.k.tasks[1].Root, late.stackTop-8); err != nil {
		t.Errorf("kernel stack mapped later is not visible from the user root: %v", err)
	}
}

func TestSpawnKernelWithoutMemory(t *testing.T) {
	r := newRig(t, func(c *Config) {
		c.KernelImagePages = 1
		c.MemoryMap = []upbeat.Region{{Start: 0x100000, Length: 260 * upbeat.PageSize, Kind: upbeat.RegionUsable}}
	})
	_, err := r.k.SpawnKernel("A", noop)
	if !errors.Is(err, ErrorMemoryExhausted) {
		t.Errorf("expected exhaustion, got %v", err)
	}
	if len(r.k.Tasks()) != 1 || len(r.k.ReadyQueue()) != 0 {
		t.Errorf("failed spawn added a task")
	}
}
