// Package servertest boots just enough of the system to exercise servers
// and the programs that talk to them.
package servertest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/GriffinCanCode/AgentOS/microkernel/internal/itc"
	"github.com/GriffinCanCode/AgentOS/microkernel/internal/kernel"
	"github.com/GriffinCanCode/AgentOS/microkernel/internal/process"
	"github.com/GriffinCanCode/AgentOS/microkernel/internal/server/mm"
	"github.com/GriffinCanCode/AgentOS/microkernel/internal/vm"
)

// Timeout bounds every wait in this package.
const Timeout = 5 * time.Second

// Kernel creates a kernel with the default layout that is shut down when
// the test ends.
func Kernel(t *testing.T) *kernel.Kernel {
	t.Helper()
	layout := vm.DefaultLayout()
	k, err := kernel.New(kernel.Config{
		Frames:    4096,
		PhysBase:  0x4000_0000,
		UserLimit: layout.UserLimit,
	}, zaptest.NewLogger(t), nil)
	require.NoError(t, err)

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), Timeout)
		defer cancel()
		assert.NoError(t, k.Shutdown(ctx))
	})
	return k
}

// System creates a kernel with the memory manager running, which every
// untrusted process needs to bootstrap its heap.
func System(t *testing.T) *kernel.Kernel {
	t.Helper()
	k := Kernel(t)
	Start(t, k, itc.ServiceMM, mm.Program)
	return k
}

// Start runs prog as a trusted process and waits until svc is registered.
func Start(t *testing.T, k *kernel.Kernel, svc itc.ServiceID, prog process.Program, opts ...process.Option) *kernel.Thread {
	t.Helper()
	as, err := k.NewAddressSpace(true)
	require.NoError(t, err)

	opts = append([]process.Option{process.Trusted(), process.WithMetrics(k.Metrics())}, opts...)
	rt := process.NewRuntime(svc.String(), vm.DefaultLayout(), opts...)
	th, err := k.Spawn(as, svc.String(), rt.Main(prog), 0)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		for _, b := range k.Services() {
			if b.Service == svc {
				return true
			}
		}
		return false
	}, Timeout, time.Millisecond, "%s never registered", svc)
	return th
}

// Run executes prog as an untrusted process and returns what it returned.
func Run(t *testing.T, k *kernel.Kernel, prog process.Program, arg uint64) error {
	t.Helper()
	as, err := k.NewAddressSpace(false)
	require.NoError(t, err)

	rt := process.NewRuntime("test", vm.DefaultLayout(), process.WithMetrics(k.Metrics()))
	th, err := k.Spawn(as, "test", rt.Main(prog), arg)
	require.NoError(t, err)

	Wait(t, th)
	return th.Err()
}

// Wait blocks until th has finished.
func Wait(t *testing.T, th *kernel.Thread) {
	t.Helper()
	select {
	case <-th.Done():
	case <-time.After(Timeout):
		t.Fatalf("thread %d did not finish", th.Tid())
	}
}
