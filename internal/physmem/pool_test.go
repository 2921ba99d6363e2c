package physmem

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewValidation(t *testing.T) {
	_, err := New(0x4000_0001, 4)
	assert.Error(t, err)

	_, err = New(0x4000_0000, 0)
	assert.Error(t, err)
}

func TestAllocZeroedAndExhaustion(t *testing.T) {
	p, err := New(0x4000_0000, 2)
	require.NoError(t, err)

	a, err := p.AllocFrame()
	require.NoError(t, err)
	assert.Equal(t, uint64(0x4000_0000), a)

	p.Frame(a)[0] = 0xff

	b, err := p.AllocFrame()
	require.NoError(t, err)
	assert.Equal(t, uint64(0x4000_1000), b)

	_, err = p.AllocFrame()
	assert.True(t, errors.Is(err, ErrOutOfMemory))

	p.FreeFrame(a)
	c, err := p.AllocFrame()
	require.NoError(t, err)
	assert.Equal(t, a, c)
	assert.Equal(t, byte(0), p.Frame(c)[0], "recycled frames are zeroed")
}

func TestRefCounting(t *testing.T) {
	p, err := New(0x4000_0000, 1)
	require.NoError(t, err)

	pa, err := p.AllocFrame()
	require.NoError(t, err)
	require.NoError(t, p.Ref(pa))
	assert.Equal(t, 2, p.Refs(pa))

	p.FreeFrame(pa)
	assert.Equal(t, 1, p.Refs(pa))
	assert.NotNil(t, p.Frame(pa))

	p.FreeFrame(pa)
	assert.Equal(t, 0, p.Refs(pa))
	assert.Nil(t, p.Frame(pa))

	assert.True(t, errors.Is(p.Ref(pa), ErrBadFrame))
}

func TestConcurrentAlloc(t *testing.T) {
	p, err := New(0, 256)
	require.NoError(t, err)

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		seen = make(map[uint64]bool)
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 32; j++ {
				pa, err := p.AllocFrame()
				if !assert.NoError(t, err) {
					return
				}
				mu.Lock()
				assert.False(t, seen[pa])
				seen[pa] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Len(t, seen, 256)
	assert.Equal(t, Stats{Total: 256, InUse: 256, Free: 0}, p.Stats())
}
