package joy

import (
	"context"
	"fmt"
	"time"
)

func (k *Kernel) Ticks() uint64 {
	k.lock.Lock()
	defer k.lock.Unlock()
	return k.ticks
}

// Uptime is whole seconds since boot, counted in ticks.
func (k *Kernel) Uptime() uint64 {
	k.lock.Lock()
	defer k.lock.Unlock()
	return k.uptimeLocked()
}

func (k *Kernel) uptimeLocked() uint64 {
	return k.ticks / k.cfg.TickHz
}

func (k *Kernel) TickHz() uint64 {
	return k.cfg.TickHz
}

// RunTimer raises a tick at the configured rate until ctx is done.  It is
// the interrupt source; it never runs scheduler code itself.
func (k *Kernel) RunTimer(ctx context.Context) {
	ticker := time.NewTicker(time.Second / time.Duration(k.cfg.TickHz))
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			k.RaiseTick()
		}
	}
}

// FormatUptime renders seconds as HH:MM:SS.
func FormatUptime(seconds uint64) string {
	h := seconds / 3600
	m := (seconds / 60) % 60
	s := seconds % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}
