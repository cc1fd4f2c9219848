package joy

// Tick is the timer interrupt.  It advances the tick count and then picks
// the next task round robin:
//
//  1. sleepers whose deadline has passed become Ready and join the queue
//  2. the Running task, if any, becomes Ready and joins the queue
//  3. the head of the queue is taken; an empty queue means nothing changes
//  4. the taken task becomes Running
//  5. its address space is activated if it is not the active one
//  6. the CPU is switched to it
//
// Tick must be called on the running task (see Safepoint).  The switch
// happens with the lock released.
func (k *Kernel) Tick() {
	k.lock.Lock()
	k.ticks++
	now := k.uptimeLocked()

	for i, t := range k.tasks {
		if t.State == TaskSleeping && now >= t.WakeAt {
			t.State = TaskReady
			k.ready.Append(Slot(i))
			k.log.Debugf("pid %d woke at %ds", t.Pid, now)
		}
	}

	prevSlot := k.current
	prev := k.taskLocked(prevSlot)
	if prev != nil && prev.State == TaskRunning {
		prev.State = TaskReady
		k.ready.Append(prevSlot)
	}

	nextSlot, ok := k.ready.Pop()
	if !ok {
		k.lock.Unlock()
		return
	}
	next := k.taskLocked(nextSlot)
	if next == nil {
		k.lock.Unlock()
		k.halt("ready queue holds slot %d but the task table has %d entries", nextSlot, len(k.tasks))
	}
	next.State = TaskRunning
	k.current = nextSlot

	if next.Root != k.vm.Active() {
		if err := k.vm.Activate(next.Root); err != nil {
			k.lock.Unlock()
			k.halt("pid %d has unusable root: %v", next.Pid, err)
		}
	}
	if prevSlot == nextSlot || prev == nil {
		k.lock.Unlock()
		return
	}
	save, load := &prev.ctx, &next.ctx
	k.log.Debugf("switch pid %d -> pid %d (RIP=%#x RSP=%#x)", prev.Pid, next.Pid, load.RIP, load.RSP)
	k.lock.Unlock()

	k.switcher.Switch(save, load)
}

// SleepCurrent puts the running task to sleep for ticks timer ticks,
// rounded down to whole seconds.  The task keeps running until the next
// tick takes it off the CPU.
func (k *Kernel) SleepCurrent(ticks uint64) {
	k.lock.Lock()
	defer k.lock.Unlock()
	t := k.taskLocked(k.current)
	if t == nil {
		return
	}
	now := k.uptimeLocked()
	deadline := now + ticks/k.cfg.TickHz
	if deadline < now {
		deadline = ^uint64(0)
	}
	t.State = TaskSleeping
	t.WakeAt = deadline
	k.log.Debugf("pid %d sleeping until %ds (now %ds)", t.Pid, deadline, now)
}

// RaiseTick marks a timer interrupt as pending.  Ticks raised while one is
// already pending are merged into it, the way a masked interrupt line only
// remembers one edge.  Safe to call from any goroutine.
func (k *Kernel) RaiseTick() {
	select {
	case k.tickPending <- struct{}{}:
	default:
	}
}

// Safepoint delivers a pending tick, if there is one.  Running code calls
// this where it could be interrupted.
func (k *Kernel) Safepoint() {
	select {
	case <-k.tickPending:
		k.Tick()
	default:
	}
}

// WaitForInterrupt blocks until a tick is raised and then delivers it.
func (k *Kernel) WaitForInterrupt() {
	<-k.tickPending
	k.Tick()
}

// Idle is the body of the idle task: wait for ticks forever.
func (k *Kernel) Idle() {
	for {
		k.WaitForInterrupt()
	}
}
