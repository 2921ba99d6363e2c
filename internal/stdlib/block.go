package stdlib

import (
	"fmt"

	"github.com/GriffinCanCode/AgentOS/microkernel/internal/itc"
	"github.com/GriffinCanCode/AgentOS/microkernel/internal/proto"
)

// BlockSize returns the size of the block device in bytes.
func (c *Client) BlockSize() (uint64, error) {
	reply, err := c.caller.Request(itc.ServiceBlk, itc.NewMessage(proto.BlkSize, 0, 0, 0))
	if err != nil {
		return 0, err
	}
	return reply.B, nil
}

// ReadBlocks reads count sectors starting at sector.
func (c *Client) ReadBlocks(sector uint64, count int) ([]byte, error) {
	if count < 1 {
		return nil, fmt.Errorf("read %d sectors: count must be positive", count)
	}
	n := count * proto.SectorSize
	buf, err := c.scratch(n)
	if err != nil {
		return nil, err
	}
	if _, err := c.caller.Request(itc.ServiceBlk, itc.NewMessage(proto.BlkRead, sector, uint64(count), buf.Addr())); err != nil {
		return nil, err
	}
	return buf.Bytes(n)
}

// WriteBlocks writes data, a whole number of sectors, starting at sector.
func (c *Client) WriteBlocks(sector uint64, data []byte) error {
	if len(data) == 0 || len(data)%proto.SectorSize != 0 {
		return fmt.Errorf("write of %d bytes is not a whole number of sectors", len(data))
	}
	buf, err := c.scratch(len(data))
	if err != nil {
		return err
	}
	if _, err := buf.Write(data); err != nil {
		return err
	}
	count := uint64(len(data) / proto.SectorSize)
	_, err = c.caller.Request(itc.ServiceBlk, itc.NewMessage(proto.BlkWrite, sector, count, buf.Addr()))
	return err
}
