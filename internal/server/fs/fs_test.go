package fs_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/AgentOS/microkernel/internal/client"
	"github.com/GriffinCanCode/AgentOS/microkernel/internal/itc"
	"github.com/GriffinCanCode/AgentOS/microkernel/internal/process"
	"github.com/GriffinCanCode/AgentOS/microkernel/internal/proto"
	"github.com/GriffinCanCode/AgentOS/microkernel/internal/server/fs"
	"github.com/GriffinCanCode/AgentOS/microkernel/internal/server/servertest"
)

func TestStore(t *testing.T) {
	s := fs.NewStore()
	s.Seed("/etc/motd", []byte("hello"))

	_, err := s.Open(1, "/missing", 0)
	assert.True(t, errors.Is(err, fs.ErrNotFound))

	fd, err := s.Open(1, "/etc/motd", proto.OpenAppend)
	require.NoError(t, err)
	assert.Equal(t, uint64(fs.FirstFD), fd)

	_, err = s.Read(2, fd, 10)
	assert.True(t, errors.Is(err, fs.ErrBadFD), "descriptors belong to their opener")

	n, err := s.Write(1, fd, []byte(" world"))
	require.NoError(t, err)
	assert.Equal(t, 6, n)
	size, err := s.Stat(1, fd)
	require.NoError(t, err)
	assert.Equal(t, 11, size)

	other, err := s.Open(1, "/etc/motd", 0)
	require.NoError(t, err)
	data, err := s.Read(1, other, 5)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
	data, err = s.Read(1, other, 100)
	require.NoError(t, err)
	assert.Equal(t, " world", string(data))
	data, err = s.Read(1, other, 100)
	require.NoError(t, err)
	assert.Empty(t, data)

	assert.Equal(t, []fs.FileInfo{{Path: "/etc/motd", Size: 11, Open: 2}}, s.Files())
	require.NoError(t, s.Close(1, other))
	assert.True(t, errors.Is(s.Close(1, other), fs.ErrBadFD))
	assert.Equal(t, 1, s.Release(1))
	assert.Equal(t, 0, s.Files()[0].Open)
}

func TestStoreCreateAndTruncate(t *testing.T) {
	s := fs.NewStore()
	fd, err := s.Open(1, "/tmp/log", proto.OpenCreate)
	require.NoError(t, err)
	_, err = s.Write(1, fd, []byte("abcdef"))
	require.NoError(t, err)

	fd, err = s.Open(1, "/tmp/log", proto.OpenTruncate)
	require.NoError(t, err)
	size, err := s.Stat(1, fd)
	require.NoError(t, err)
	assert.Zero(t, size)
}

func TestFilesThroughServer(t *testing.T) {
	k := servertest.System(t)
	store := fs.NewStore()
	store.Seed("/etc/motd", []byte("welcome"))
	servertest.Start(t, k, itc.ServiceFS, fs.Program(store))

	err := servertest.Run(t, k, func(ctx *process.Context, _ uint64) error {
		fd, err := ctx.Sys.Open("/etc/motd", 0)
		require.NoError(t, err)
		data, err := ctx.Sys.Read(fd, 64)
		require.NoError(t, err)
		assert.Equal(t, "welcome", string(data))
		require.NoError(t, ctx.Sys.Close(fd))

		fd, err = ctx.Sys.Open("/home/notes", proto.OpenCreate)
		require.NoError(t, err)
		n, err := ctx.Sys.Write(fd, []byte("remember the milk"))
		require.NoError(t, err)
		assert.Equal(t, 17, n)
		size, err := ctx.Sys.Stat(fd)
		require.NoError(t, err)
		assert.Equal(t, uint64(17), size)

		_, err = ctx.Sys.Open("/nope", 0)
		var svcErr *client.ServiceError
		require.True(t, errors.As(err, &svcErr))
		assert.Equal(t, uint64(proto.FSNotFound), svcErr.Status)

		err = ctx.Sys.Close(1234)
		require.True(t, errors.As(err, &svcErr))
		assert.Equal(t, uint64(proto.FSInvArg), svcErr.Status)
		return nil
	}, 0)
	require.NoError(t, err)

	files := store.Files()
	require.Len(t, files, 2)
	assert.Contains(t, files, fs.FileInfo{Path: "/home/notes", Size: 17, Open: 1})
}
