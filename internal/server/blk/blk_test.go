package blk_test

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/AgentOS/microkernel/internal/client"
	"github.com/GriffinCanCode/AgentOS/microkernel/internal/itc"
	"github.com/GriffinCanCode/AgentOS/microkernel/internal/process"
	"github.com/GriffinCanCode/AgentOS/microkernel/internal/proto"
	"github.com/GriffinCanCode/AgentOS/microkernel/internal/server/blk"
	"github.com/GriffinCanCode/AgentOS/microkernel/internal/server/servertest"
)

func TestDiskRanges(t *testing.T) {
	d := blk.NewDiskFrom([]byte("boot"))
	assert.Equal(t, uint64(proto.SectorSize), d.Size())

	data, err := d.ReadSectors(0, 1)
	require.NoError(t, err)
	assert.Equal(t, "boot", string(data[:4]))

	tests := []struct {
		name          string
		sector, count uint64
	}{
		{"zero count", 0, 0},
		{"past end", 1, 1},
		{"overlong", 0, 2},
		{"wraps", 0, ^uint64(0)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := d.ReadSectors(tt.sector, tt.count)
			assert.True(t, errors.Is(err, blk.ErrOutOfRange))
		})
	}

	assert.Error(t, d.WriteSectors(0, []byte("short")))
}

func TestReadWriteThroughServer(t *testing.T) {
	k := servertest.System(t)
	disk := blk.NewDisk(16)
	servertest.Start(t, k, itc.ServiceBlk, blk.Program(disk))

	payload := bytes.Repeat([]byte("0123456789abcdef"), 3*proto.SectorSize/16)
	err := servertest.Run(t, k, func(ctx *process.Context, _ uint64) error {
		size, err := ctx.Sys.BlockSize()
		require.NoError(t, err)
		assert.Equal(t, uint64(16*proto.SectorSize), size)

		require.NoError(t, ctx.Sys.WriteBlocks(6, payload))
		got, err := ctx.Sys.ReadBlocks(6, 3)
		require.NoError(t, err)
		assert.Equal(t, payload, got)

		_, err = ctx.Sys.ReadBlocks(15, 2)
		var svcErr *client.ServiceError
		require.True(t, errors.As(err, &svcErr))
		assert.Equal(t, uint64(proto.BlkErr), svcErr.Status)
		return nil
	}, 0)
	require.NoError(t, err)

	onDisk, err := disk.ReadSectors(6, 3)
	require.NoError(t, err)
	assert.Equal(t, payload, onDisk)
}

func TestReadIntoUnmappedBuffer(t *testing.T) {
	k := servertest.System(t)
	servertest.Start(t, k, itc.ServiceBlk, blk.Program(blk.NewDisk(4)))

	err := servertest.Run(t, k, func(ctx *process.Context, _ uint64) error {
		reply, err := ctx.Caller.Invoke(itc.ServiceBlk, itc.NewMessage(proto.BlkRead, 0, 1, 0x30_0000_0000))
		require.NoError(t, err)
		assert.Equal(t, uint64(proto.BlkErr), reply.A)
		return nil
	}, 0)
	require.NoError(t, err)
}
