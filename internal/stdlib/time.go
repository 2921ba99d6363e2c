package stdlib

import (
	"github.com/GriffinCanCode/AgentOS/microkernel/internal/itc"
	"github.com/GriffinCanCode/AgentOS/microkernel/internal/proto"
)

// Timestamp reads the clock in seconds since the epoch.
func (c *Client) Timestamp() (uint64, error) {
	reply, err := c.caller.Invoke(itc.ServiceRTC, itc.Message{})
	if err != nil {
		return 0, err
	}
	return reply.A, nil
}

// Now reads the clock as a calendar time.
func (c *Client) Now() (proto.RTCTime, error) {
	ts, err := c.Timestamp()
	if err != nil {
		return proto.RTCTime{}, err
	}
	return proto.FromTimestamp(ts), nil
}
