package kernel

import (
	"fmt"
	"runtime/debug"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/microkernel/internal/itc"
	"github.com/GriffinCanCode/AgentOS/microkernel/internal/logging"
)

// Corruption is kernel state that can no longer be trusted, such as a server
// whose Receive failed while it was still alive. It is never retried.
type Corruption struct {
	Tid   itc.Tid
	Op    string
	Err   error
	Stack []byte
}

func (c *Corruption) Error() string {
	return fmt.Sprintf("kernel corruption on thread %d during %s: %v", c.Tid, c.Op, c.Err)
}

func (c *Corruption) Unwrap() error {
	return c.Err
}

// SetPanicHandler replaces the corruption handler. The default logs and
// re-panics, aborting the whole process.
func (k *Kernel) SetPanicHandler(fn func(*Corruption)) {
	k.panicMu.Lock()
	defer k.panicMu.Unlock()
	if fn == nil {
		fn = k.defaultPanic
	}
	k.panicHandler = fn
}

func (k *Kernel) corrupted(c *Corruption) {
	if c.Stack == nil {
		c.Stack = debug.Stack()
	}
	k.panicMu.Lock()
	fn := k.panicHandler
	k.panicMu.Unlock()
	fn(c)
}

func (k *Kernel) defaultPanic(c *Corruption) {
	k.log.Error("kernel corruption", logging.Tid(c.Tid), zap.String("op", c.Op), zap.Error(c.Err), zap.ByteString("stack", c.Stack))
	panic(c)
}
