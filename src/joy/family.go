package joy

import (
	"errors"
	"fmt"
	"strings"

	"waemom/src/lib/upbeat"
)

// SpawnKernel creates a kernel task that runs entry on its own kernel stack
// in the currently active address space.  The task is Ready and at the
// tail of the ready queue when this returns.  If entry ever returns the
// kernel halts.
func (k *Kernel) SpawnKernel(name string, entry func(k *Kernel)) (Pid, error) {
	k.lock.Lock()
	defer k.lock.Unlock()
	return k.familyCopyLocked(name, k.vm.Active(), nil, func() {
		entry(k)
		k.halt("kernel task %q returned from its entry", name)
	})
}

// familyCopyLocked builds a complete task and only then puts it in the table
// and the ready queue, so a failure leaves both untouched.
func (k *Kernel) familyCopyLocked(name string, root upbeat.PhysAddr, pending *PendingEntry, entry func()) (Pid, error) {
	top, err := k.allocKernelStackLocked()
	if err != nil {
		k.log.Warnf("spawn %q: %v", name, err)
		raw := ErrorFamilyNoStack
		if errors.Is(err, upbeat.ErrFramesExhausted) {
			raw = ErrorMemoryExhausted
		}
		return 0, fmt.Errorf("%w: %w", makeError(raw, k.currentPidLocked()), err)
	}
	t := &Task{
		Pid:      k.nextPid,
		Name:     name,
		State:    TaskReady,
		Root:     root,
		pending:  pending,
		stackTop: top,
	}
	t.ctx = newContext(uint64(k.registerFuncLocked(entry)), top, entry)
	k.nextPid++
	slot := Slot(len(k.tasks))
	k.tasks = append(k.tasks, t)
	k.ready.Append(slot)
	k.log.Debugf("family copied: pid %d %q in slot %d (RIP=%#x, RSP=%#x, root %#x)",
		t.Pid, name, slot, t.ctx.RIP, t.ctx.RSP, uint64(root))
	return t.Pid, nil
}

func (k *Kernel) currentPidLocked() Pid {
	if t := k.taskLocked(k.current); t != nil {
		return t.Pid
	}
	return 0
}

// Tasks returns a snapshot of the task table in slot order.
func (k *Kernel) Tasks() []TaskInfo {
	k.lock.Lock()
	defer k.lock.Unlock()
	result := make([]TaskInfo, 0, len(k.tasks))
	for _, t := range k.tasks {
		result = append(result, t.info())
	}
	return result
}

// ReadyQueue returns the pids in the ready queue, head first.
func (k *Kernel) ReadyQueue() []Pid {
	k.lock.Lock()
	defer k.lock.Unlock()
	var result []Pid
	k.ready.TraverseSlot(func(s Slot) error {
		if t := k.taskLocked(s); t != nil {
			result = append(result, t.Pid)
		}
		return nil
	})
	return result
}

// Current returns the running task.
func (k *Kernel) Current() TaskInfo {
	k.lock.Lock()
	defer k.lock.Unlock()
	return k.taskLocked(k.current).info()
}

// FormatTasks renders a task listing as a table.
func FormatTasks(tasks []TaskInfo) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%-5s %-20s %-9s %-8s %s\n", "PID", "NAME", "STATE", "WAKE", "ROOT")
	for _, t := range tasks {
		wake := "-"
		if t.State == TaskSleeping {
			wake = fmt.Sprintf("%ds", t.WakeAt)
		}
		fmt.Fprintf(&b, "%-5d %-20s %-9s %-8s %#x\n", t.Pid, t.Name, t.State, wake, uint64(t.Root))
	}
	return b.String()
}
