package client

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/GriffinCanCode/AgentOS/microkernel/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/AgentOS/microkernel/internal/itc"
	"github.com/GriffinCanCode/AgentOS/microkernel/internal/itc/itctest"
	"github.com/GriffinCanCode/AgentOS/microkernel/internal/proto"
)

const serverTid itc.Tid = 7

type retryLog struct {
	reasons []Reason
}

func (r *retryLog) observe(_ itc.ServiceID, reason Reason) {
	r.reasons = append(r.reasons, reason)
}

func (r *retryLog) count(reason Reason) int {
	n := 0
	for _, got := range r.reasons {
		if got == reason {
			n++
		}
	}
	return n
}

func TestInvokeReturnsReply(t *testing.T) {
	tr := itctest.NewMockTransport(1)
	req := itc.NewMessage(proto.MMAlloc, 0x1000_0000, 0, 0)
	tr.Serve(itc.ServiceMM, serverTid, req, itc.NewMessage(proto.MMOK, 0, 0, 0))

	var log retryLog
	reply, err := New(tr, WithObserver(log.observe)).Invoke(itc.ServiceMM, req)
	require.NoError(t, err)
	assert.Equal(t, uint64(proto.MMOK), reply.A)
	assert.Empty(t, log.reasons)
	tr.AssertExpectations(t)
}

func TestInvokeRetryTransparency(t *testing.T) {
	for _, k := range []int{1, 2, 5, 20} {
		tr := itctest.NewMockTransport(1).AllowYield()
		req := itc.NewMessage(42, 1, 2, 3)
		want := itc.NewMessage(0, 9, 9, 9)

		tr.On("ServerTid", itc.ServiceTest).Return(serverTid, nil).Once()
		tr.On("Call", serverTid, req).Return(itc.Message{}, itc.ErrHoldOn).Times(k)
		tr.On("Call", serverTid, req).Return(want, nil).Once()

		var log retryLog
		reply, err := New(tr, WithObserver(log.observe)).Invoke(itc.ServiceTest, req)
		require.NoError(t, err)
		assert.Equal(t, want, reply)
		assert.Len(t, log.reasons, k)
		assert.Equal(t, k, log.count(ReasonHoldOn))
		tr.AssertNumberOfCalls(t, "Call", k+1)
		tr.AssertNumberOfCalls(t, "Yield", k)
	}
}

func TestInvokeWaitsForRegistration(t *testing.T) {
	tr := itctest.NewMockTransport(1).AllowYield()
	req := itc.NewMessage(0, 0, 0, 0)

	tr.On("ServerTid", itc.ServiceRTC).Return(itc.Tid(0), itc.ErrNotRegistered).Times(3)
	tr.On("ServerTid", itc.ServiceRTC).Return(serverTid, nil).Once()
	tr.On("Call", serverTid, req).Return(itc.NewMessage(1_700_000_000, 0, 0, 0), nil).Once()

	var log retryLog
	reply, err := New(tr, WithObserver(log.observe)).Invoke(itc.ServiceRTC, req)
	require.NoError(t, err)
	assert.Equal(t, uint64(1_700_000_000), reply.A)
	assert.Equal(t, 3, log.count(ReasonNotRegistered))
	tr.AssertExpectations(t)
}

func TestInvokeRetriesServiceHoldOn(t *testing.T) {
	tr := itctest.NewMockTransport(1).AllowYield()
	req := itc.NewMessage(proto.PMSpawn, 0x4_0000_0000, 10, 0)

	tr.On("ServerTid", itc.ServicePM).Return(serverTid, nil).Once()
	tr.On("Call", serverTid, req).Return(itc.NewMessage(proto.PMHoldOn, 0, 0, 0), nil).Once()
	tr.On("Call", serverTid, req).Return(itc.NewMessage(proto.PMOK, 200, 0, 0), nil).Once()

	var log retryLog
	reply, err := New(tr, WithObserver(log.observe)).Invoke(itc.ServicePM, req)
	require.NoError(t, err)
	assert.Equal(t, uint64(proto.PMOK), reply.A)
	assert.Equal(t, uint64(200), reply.B)
	assert.Equal(t, []Reason{ReasonServiceHoldOn}, log.reasons)
}

func TestInvokeDoesNotRetryOtherFailures(t *testing.T) {
	tests := []struct {
		name string
		svc  itc.ServiceID
		err  error
	}{
		{"invalid argument", itc.ServiceFS, itc.ErrInvalidArgument},
		{"denied", itc.ServiceBlk, itc.ErrDenied},
		{"destroyed", itc.ServiceMM, itc.ErrThreadDestroyed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := itctest.NewMockTransport(1)
			req := itc.NewMessage(1, 0, 0, 0)
			tr.On("ServerTid", tt.svc).Return(serverTid, nil).Once()
			tr.On("Call", serverTid, req).Return(itc.Message{}, tt.err).Once()

			_, err := New(tr).Invoke(tt.svc, req)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.err))

			var callErr *CallError
			require.True(t, errors.As(err, &callErr))
			assert.Equal(t, "call", callErr.Op)
			assert.Equal(t, tt.svc, callErr.Service)
			tr.AssertNotCalled(t, "Yield")
		})
	}
}

func TestInvokeApplicationErrorIsAReply(t *testing.T) {
	tr := itctest.NewMockTransport(1)
	req := itc.NewMessage(proto.MMAlloc, 0x1000_0000, 0, 0)
	tr.Serve(itc.ServiceMM, serverTid, req, itc.NewMessage(proto.MMErr, 0, 0, 0))

	reply, err := New(tr).Invoke(itc.ServiceMM, req)
	require.NoError(t, err)
	assert.Equal(t, uint64(proto.MMErr), reply.A)
}

func TestResolveFailure(t *testing.T) {
	tr := itctest.NewMockTransport(1)
	tr.On("ServerTid", itc.ServiceID(42)).Return(itc.Tid(0), itc.ErrInvalidArgument).Once()

	_, err := New(tr).Invoke(itc.ServiceID(42), itc.Message{})
	var callErr *CallError
	require.True(t, errors.As(err, &callErr))
	assert.Equal(t, "resolve", callErr.Op)
	tr.AssertNotCalled(t, "Call", serverTid, itc.Message{})
}

func TestDestroyedThreadLeavesLoop(t *testing.T) {
	tr := itctest.NewMockTransport(1)
	tr.On("ServerTid", itc.ServicePM).Return(itc.Tid(0), itc.ErrNotRegistered)
	tr.On("Yield").Return(nil).Twice()
	tr.On("Yield").Return(itc.ErrThreadDestroyed).Once()

	_, err := New(tr).Invoke(itc.ServicePM, itc.Message{})
	assert.True(t, errors.Is(err, itc.ErrThreadDestroyed))
	tr.AssertNumberOfCalls(t, "ServerTid", 3)
}

func TestRetryMetricsAndSampledLogs(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	metrics := monitoring.NewMetrics()

	tr := itctest.NewMockTransport(1).AllowYield()
	req := itc.NewMessage(1, 0, 0, 0)
	tr.On("ServerTid", itc.ServiceFS).Return(serverTid, nil).Once()
	tr.On("Call", serverTid, req).Return(itc.Message{}, itc.ErrHoldOn).Times(10)
	tr.On("Call", serverTid, req).Return(itc.NewMessage(proto.FSOK, 0, 0, 0), nil).Once()

	_, err := New(tr, WithMetrics(metrics), WithLogger(zap.New(core))).Invoke(itc.ServiceFS, req)
	require.NoError(t, err)

	assert.Equal(t, int64(10), metrics.GetSnapshot().Retries)
	assert.Equal(t, 3, logs.FilterMessage("retrying invoke").Len())
}

func TestRequestReportsServiceError(t *testing.T) {
	tr := itctest.NewMockTransport(1)
	req := itc.NewMessage(proto.PMSpawn, 0x4_0000_0000, 8, 0)
	tr.Serve(itc.ServicePM, serverTid, req, itc.NewMessage(proto.PMSpawnFailed, 0, 0, 0))

	_, err := New(tr).Request(itc.ServicePM, req)
	var svcErr *ServiceError
	require.True(t, errors.As(err, &svcErr))
	assert.Equal(t, uint64(proto.PMSpawnFailed), svcErr.Status)
	assert.Equal(t, "pm action 1: spawn failed", err.Error())
}
