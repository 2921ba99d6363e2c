package kernel

import (
	"github.com/GriffinCanCode/AgentOS/microkernel/internal/itc"
)

// Event selects what EventWait waits for.
type Event int

const (
	// EventThreadExit polls whether a thread has finished.
	EventThreadExit Event = iota + 1
	// EventInterrupt blocks until the numbered interrupt is raised.
	EventInterrupt
)

// EventWait waits for ev. For EventThreadExit it does not block: it returns
// nil if thread num has exited and ErrHoldOn if it is still running.
func (t *Thread) EventWait(ev Event, num uint64) error {
	if err := t.check(); err != nil {
		return err
	}

	switch ev {
	case EventThreadExit:
		target, ok := t.k.Thread(itc.Tid(num))
		if !ok || target == t {
			return itc.ErrInvalidArgument
		}
		select {
		case <-target.Done():
			return nil
		default:
			return itc.ErrHoldOn
		}
	case EventInterrupt:
		select {
		case <-t.k.irq(num):
			return nil
		case <-t.dead:
			return itc.ErrThreadDestroyed
		}
	default:
		return itc.ErrInvalidArgument
	}
}
