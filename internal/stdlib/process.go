package stdlib

import (
	"github.com/GriffinCanCode/AgentOS/microkernel/internal/itc"
	"github.com/GriffinCanCode/AgentOS/microkernel/internal/proto"
)

// Spawn starts the program at path with argument arg and returns its pid.
func (c *Client) Spawn(path string, arg uint64) (uint64, error) {
	buf, err := c.path(path)
	if err != nil {
		return 0, err
	}
	reply, err := c.caller.Request(itc.ServicePM, itc.NewMessage(proto.PMSpawn, buf.Addr(), uint64(buf.Len()), arg))
	if err != nil {
		return 0, err
	}
	return reply.B, nil
}

// Wait blocks until process pid has exited. The process manager answers
// hold-on while it runs, which the call loop retries.
func (c *Client) Wait(pid uint64) error {
	_, err := c.caller.Request(itc.ServicePM, itc.NewMessage(proto.PMWait, pid, 0, 0))
	return err
}

// PS has the process manager log its table and returns the process count.
func (c *Client) PS() (int, error) {
	reply, err := c.caller.Request(itc.ServicePM, itc.NewMessage(proto.PMPS, 0, 0, 0))
	if err != nil {
		return 0, err
	}
	return int(reply.B), nil
}
