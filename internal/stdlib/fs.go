package stdlib

import (
	"github.com/GriffinCanCode/AgentOS/microkernel/internal/itc"
	"github.com/GriffinCanCode/AgentOS/microkernel/internal/proto"
)

// Open opens path with proto.Open* flags and returns a descriptor.
func (c *Client) Open(path string, flags uint64) (uint64, error) {
	buf, err := c.path(path)
	if err != nil {
		return 0, err
	}
	reply, err := c.caller.Request(itc.ServiceFS, itc.NewMessage(proto.FSOpen, buf.Addr(), uint64(buf.Len()), flags))
	if err != nil {
		return 0, err
	}
	return reply.B, nil
}

// Read reads up to n bytes from fd at its current offset.
func (c *Client) Read(fd uint64, n int) ([]byte, error) {
	buf, err := c.scratch(n)
	if err != nil {
		return nil, err
	}
	reply, err := c.caller.Request(itc.ServiceFS, itc.NewMessage(proto.FSRead, fd, buf.Addr(), uint64(n)))
	if err != nil {
		return nil, err
	}
	return buf.Bytes(int(reply.B))
}

// Write writes data to fd at its current offset.
func (c *Client) Write(fd uint64, data []byte) (int, error) {
	buf, err := c.scratch(len(data))
	if err != nil {
		return 0, err
	}
	if _, err := buf.Write(data); err != nil {
		return 0, err
	}
	reply, err := c.caller.Request(itc.ServiceFS, itc.NewMessage(proto.FSWrite, fd, buf.Addr(), uint64(len(data))))
	if err != nil {
		return 0, err
	}
	return int(reply.B), nil
}

// Close releases fd.
func (c *Client) Close(fd uint64) error {
	_, err := c.caller.Request(itc.ServiceFS, itc.NewMessage(proto.FSClose, fd, 0, 0))
	return err
}

// Stat returns the size of the file behind fd.
func (c *Client) Stat(fd uint64) (uint64, error) {
	reply, err := c.caller.Request(itc.ServiceFS, itc.NewMessage(proto.FSStat, fd, 0, 0))
	if err != nil {
		return 0, err
	}
	return reply.B, nil
}
