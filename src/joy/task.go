package joy

import (
	"fmt"

	"waemom/src/lib/upbeat"
)

// Pid identifies a task.  Pids count up from 0 (idle) and are never reused.
type Pid uint64

// Slot is a task's index in the task table.  It never changes once given
// out and is what the ready queue holds.
type Slot int

const noSlot = Slot(-1)

type TaskState int

const (
	TaskReady TaskState = iota
	TaskRunning
	TaskSleeping
	TaskZombie // exit does not reclaim anything yet, so nothing gets here
)

func (s TaskState) String() string {
	switch s {
	case TaskReady:
		return "ready"
	case TaskRunning:
		return "running"
	case TaskSleeping:
		return "sleeping"
	case TaskZombie:
		return "zombie"
	}
	return fmt.Sprintf("TaskState(%d)", int(s))
}

// PendingEntry is where a user task starts.  It is consumed the first time
// the task runs.
type PendingEntry struct {
	RIP uint64
	RSP uint64
}

// Task is one entry in the task table.
type Task struct {
	Pid      Pid
	Name     string
	State    TaskState
	WakeAt   uint64 // uptime in seconds, when State is TaskSleeping
	Root     upbeat.PhysAddr
	Priority int // round robin ignores this
	ctx      Context
	pending  *PendingEntry
	stackTop uint64
}

// TaskInfo is a copy of the externally interesting fields of a task.
type TaskInfo struct {
	Pid    Pid
	Name   string
	State  TaskState
	WakeAt uint64
	Root   upbeat.PhysAddr
}

func (t *Task) info() TaskInfo {
	return TaskInfo{Pid: t.Pid, Name: t.Name, State: t.State, WakeAt: t.WakeAt, Root: t.Root}
}
