package proto

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/GriffinCanCode/AgentOS/microkernel/internal/itc"
)

func TestIsHoldOn(t *testing.T) {
	tests := []struct {
		name  string
		svc   itc.ServiceID
		reply itc.Message
		want  bool
	}{
		{"pm hold on", itc.ServicePM, itc.NewMessage(PMHoldOn, 0, 0, 0), true},
		{"pm ok", itc.ServicePM, itc.NewMessage(PMOK, 0, 0, 0), false},
		{"mm err shares the code", itc.ServiceMM, itc.NewMessage(MMErr, 0, 0, 0), false},
		{"blk err shares the code", itc.ServiceBlk, itc.NewMessage(BlkErr, 0, 0, 0), false},
		{"clock reading of one", itc.ServiceRTC, itc.NewMessage(1, 0, 0, 0), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsHoldOn(tt.svc, tt.reply))
		})
	}
}

func TestStatusText(t *testing.T) {
	assert.Equal(t, "spawn failed", StatusText(itc.ServicePM, PMSpawnFailed))
	assert.Equal(t, "unknown action", StatusText(itc.ServiceMM, MMUnknownAction))
	assert.Equal(t, "not found", StatusText(itc.ServiceFS, FSNotFound))
	assert.Equal(t, "persistent server failure", StatusText(itc.ServiceBlk, PersistentFailure))
	assert.Equal(t, "status 0x7", StatusText(itc.ServiceFS, 7))
}

func TestFromTimestamp(t *testing.T) {
	rt := FromTimestamp(1_700_000_000)
	assert.Equal(t, RTCTime{Year: 2023, Month: 11, Day: 14, Hour: 22, Minute: 13, Second: 20, Weekday: 2}, rt)
	assert.Equal(t, "2023-11-14 22:13:20 Tue", rt.String())

	assert.Equal(t, "1970-01-01 00:00:00 Thu", FromTimestamp(0).String())
}

func TestHasStatus(t *testing.T) {
	for _, svc := range itc.Services() {
		assert.Equal(t, svc != itc.ServiceRTC, HasStatus(svc), svc.String())
	}
}
