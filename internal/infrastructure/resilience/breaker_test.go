package resilience

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/AgentOS/microkernel/internal/itc"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func ok() itc.Message { return itc.NewMessage(0, 1, 2, 3) }

func boom() itc.Message { panic("handler bug") }

func TestGuardRetriesPanickingHandler(t *testing.T) {
	tests := []struct {
		name        string
		panics      int
		attempts    int
		wantErr     error
		wantInvoked int
	}{
		{"no panic", 0, 3, nil, 1},
		{"recovers on second attempt", 1, 3, nil, 2},
		{"recovers on last attempt", 2, 3, nil, 3},
		{"persistent failure", 3, 3, ErrPersistentFailure, 3},
		{"single attempt", 1, 1, ErrPersistentFailure, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var recovered []int
			g := New("test", Settings{
				Attempts: tt.attempts,
				OnPanic: func(_ string, attempt int, _ any) {
					recovered = append(recovered, attempt)
				},
			})

			invoked := 0
			reply, err := g.Execute(func() itc.Message {
				invoked++
				if invoked <= tt.panics {
					panic("flaky")
				}
				return ok()
			})

			assert.Equal(t, tt.wantInvoked, invoked)
			if tt.wantErr != nil {
				assert.True(t, errors.Is(err, tt.wantErr))
			} else {
				require.NoError(t, err)
				assert.Equal(t, ok(), reply)
			}
			assert.Len(t, recovered, min(tt.panics, tt.attempts))
			assert.Equal(t, uint32(len(recovered)), g.Counts().Panics)
		})
	}
}

func TestGuardOpensAfterThreshold(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	var transitions []string
	g := New("blk", Settings{
		Attempts:  2,
		Threshold: 2,
		Cooldown:  time.Second,
		Now:       clock.Now,
		OnStateChange: func(name string, from, to State) {
			transitions = append(transitions, name+":"+from.String()+"->"+to.String())
		},
	})

	for i := 0; i < 2; i++ {
		_, err := g.Execute(boom)
		assert.True(t, errors.Is(err, ErrPersistentFailure))
	}
	assert.Equal(t, StateOpen, g.State())

	_, err := g.Execute(ok)
	assert.Equal(t, ErrCircuitOpen, err)

	clock.Advance(time.Second)
	assert.Equal(t, StateHalfOpen, g.State())

	_, err = g.Execute(boom)
	assert.True(t, errors.Is(err, ErrPersistentFailure))
	assert.Equal(t, StateOpen, g.State())

	clock.Advance(time.Second)
	reply, err := g.Execute(ok)
	require.NoError(t, err)
	assert.Equal(t, ok(), reply)
	assert.Equal(t, StateClosed, g.State())

	assert.Equal(t, []string{
		"blk:closed->open",
		"blk:open->half-open",
		"blk:half-open->open",
		"blk:open->half-open",
		"blk:half-open->closed",
	}, transitions)

	counts := g.Counts()
	assert.Equal(t, uint32(4), counts.Requests)
	assert.Equal(t, uint32(3), counts.Failures)
	assert.Equal(t, uint32(0), counts.ConsecutiveFailures)
}

func TestGuardWithoutThresholdStaysClosed(t *testing.T) {
	g := New("mm", Settings{})
	for i := 0; i < 10; i++ {
		_, err := g.Execute(boom)
		assert.True(t, errors.Is(err, ErrPersistentFailure))
	}
	assert.Equal(t, StateClosed, g.State())
	assert.Equal(t, uint32(30), g.Counts().Panics)
	assert.Equal(t, "mm", g.Name())
}
