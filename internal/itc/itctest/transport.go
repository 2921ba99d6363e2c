// Package itctest provides test doubles for the messaging primitives.
package itctest

import (
	"github.com/stretchr/testify/mock"

	"github.com/GriffinCanCode/AgentOS/microkernel/internal/itc"
)

// MockTransport is a mock implementation of itc.Transport.
type MockTransport struct {
	mock.Mock
	tid itc.Tid
}

var _ itc.Transport = (*MockTransport)(nil)

// NewMockTransport creates a mock transport for thread tid.
func NewMockTransport(tid itc.Tid) *MockTransport {
	return &MockTransport{tid: tid}
}

// AllowYield lets Yield succeed any number of times.
func (m *MockTransport) AllowYield() *MockTransport {
	m.On("Yield").Return(nil).Maybe()
	return m
}

// Tid returns the tid the mock was created with.
func (m *MockTransport) Tid() itc.Tid {
	return m.tid
}

// Send mocks the Send method.
func (m *MockTransport) Send(tid itc.Tid, msg itc.Message) error {
	return m.Called(tid, msg).Error(0)
}

// Receive mocks the Receive method.
func (m *MockTransport) Receive() (itc.Tid, itc.Message, error) {
	args := m.Called()
	return args.Get(0).(itc.Tid), args.Get(1).(itc.Message), args.Error(2)
}

// Call mocks the Call method.
func (m *MockTransport) Call(tid itc.Tid, msg itc.Message) (itc.Message, error) {
	args := m.Called(tid, msg)
	return args.Get(0).(itc.Message), args.Error(1)
}

// ServerTid mocks the ServerTid method.
func (m *MockTransport) ServerTid(svc itc.ServiceID) (itc.Tid, error) {
	args := m.Called(svc)
	return args.Get(0).(itc.Tid), args.Error(1)
}

// ServerRegister mocks the ServerRegister method.
func (m *MockTransport) ServerRegister(svc itc.ServiceID) error {
	return m.Called(svc).Error(0)
}

// Yield mocks the Yield method.
func (m *MockTransport) Yield() error {
	return m.Called().Error(0)
}

// Serve expects tid to be registered for svc and to answer msg with reply.
func (m *MockTransport) Serve(svc itc.ServiceID, tid itc.Tid, msg, reply itc.Message) {
	m.On("ServerTid", svc).Return(tid, nil)
	m.On("Call", tid, msg).Return(reply, nil)
}
