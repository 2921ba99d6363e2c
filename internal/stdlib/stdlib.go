// Package stdlib wraps every system service in a typed function. Each
// function builds one request, sends it through the call loop and decodes
// the reply; a refusal by the server comes back as *client.ServiceError.
package stdlib

import (
	"errors"
	"fmt"

	"github.com/GriffinCanCode/AgentOS/microkernel/internal/client"
	"github.com/GriffinCanCode/AgentOS/microkernel/internal/itc"
	"github.com/GriffinCanCode/AgentOS/microkernel/internal/mmu"
	"github.com/GriffinCanCode/AgentOS/microkernel/internal/proto"
	"github.com/GriffinCanCode/AgentOS/microkernel/internal/vm"
)

var ErrPathLength = errors.New("path length out of range")

// Client issues service requests for one thread.
type Client struct {
	caller *client.Caller
	mem    vm.Memory
	alloc  *vm.Allocator
	buf    *vm.Buffer
}

// New creates a client. Payload buffers are valloc'ed from alloc on first
// use and read and written through mem.
func New(caller *client.Caller, mem vm.Memory, alloc *vm.Allocator) *Client {
	return &Client{caller: caller, mem: mem, alloc: alloc}
}

// Caller returns the underlying call loop.
func (c *Client) Caller() *client.Caller {
	return c.caller
}

// scratch returns an empty payload buffer of at least n bytes.
func (c *Client) scratch(n int) (*vm.Buffer, error) {
	if c.buf == nil || c.buf.Cap() < n {
		pages := max(1, int(mmu.Pages(uint64(n))))
		buf, err := c.alloc.NewBuffer(c.mem, pages)
		if err != nil {
			return nil, err
		}
		c.buf = buf
	}
	c.buf.Reset()
	return c.buf, nil
}

func (c *Client) path(path string) (*vm.Buffer, error) {
	if len(path) == 0 || len(path) > proto.MaxPathLen {
		return nil, fmt.Errorf("%w: %q", ErrPathLength, path)
	}
	buf, err := c.scratch(len(path))
	if err != nil {
		return nil, err
	}
	if _, err := buf.WriteString(path); err != nil {
		return nil, err
	}
	return buf, nil
}

// PageAlloc asks the memory manager to back the page containing va.
func (c *Client) PageAlloc(va uint64) error {
	_, err := c.caller.Request(itc.ServiceMM, itc.NewMessage(proto.MMAlloc, va, 0, 0))
	return err
}
