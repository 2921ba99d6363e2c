package server

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/microkernel/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/AgentOS/microkernel/internal/infrastructure/resilience"
	"github.com/GriffinCanCode/AgentOS/microkernel/internal/itc"
	"github.com/GriffinCanCode/AgentOS/microkernel/internal/kernel"
	"github.com/GriffinCanCode/AgentOS/microkernel/internal/logging"
	"github.com/GriffinCanCode/AgentOS/microkernel/internal/process"
	"github.com/GriffinCanCode/AgentOS/microkernel/internal/proto"
)

// Request is one decoded incoming message.
type Request struct {
	From itc.Tid
	// ASID is the sender's address space, where any buffer it passed lives.
	ASID uint16
	Msg  itc.Message
}

// Handler produces the reply to a request.
type Handler interface {
	Handle(req Request) itc.Message
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(req Request) itc.Message

func (f HandlerFunc) Handle(req Request) itc.Message {
	return f(req)
}

// Reply builds a reply with status a.
func Reply(status uint64, words ...uint64) itc.Message {
	var w [3]uint64
	copy(w[:], words)
	return itc.NewMessage(status, w[0], w[1], w[2])
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(log *zap.Logger) Option {
	return func(s *Server) {
		s.log = log
	}
}

// WithMetrics records every request.
func WithMetrics(m *monitoring.Metrics) Option {
	return func(s *Server) {
		s.metrics = m
	}
}

// WithGuard replaces the default guard settings.
func WithGuard(settings resilience.Settings) Option {
	return func(s *Server) {
		s.guardSettings = settings
	}
}

// FromContext takes the logger and metrics of a process context.
func FromContext(ctx *process.Context) []Option {
	return []Option{WithLogger(ctx.Log), WithMetrics(ctx.Metrics)}
}

// Server is a registered request loop.
type Server struct {
	svc           itc.ServiceID
	handler       Handler
	log           *zap.Logger
	metrics       *monitoring.Metrics
	guardSettings resilience.Settings
	guard         *resilience.Guard
}

// New creates a server for svc.
func New(svc itc.ServiceID, h Handler, opts ...Option) *Server {
	s := &Server{
		svc:     svc,
		handler: h,
		log:     zap.NewNop(),
		guardSettings: resilience.Settings{
			Attempts:  3,
			Threshold: 5,
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.With(logging.Service(svc))

	settings := s.guardSettings
	settings.OnPanic = func(name string, attempt int, recovered any) {
		s.log.Error("request handler panicked", zap.Int("attempt", attempt), zap.Any("panic", recovered))
	}
	settings.OnStateChange = func(name string, from, to resilience.State) {
		s.log.Warn("server circuit changed", zap.Stringer("from", from), zap.Stringer("to", to))
	}
	s.guard = resilience.New(svc.String(), settings)
	return s
}

// Guard returns the guard requests run under.
func (s *Server) Guard() *resilience.Guard {
	return s.guard
}

// Serve registers the service on th and handles requests until th is
// destroyed.
func (s *Server) Serve(th *kernel.Thread) error {
	if err := th.ServerRegister(s.svc); err != nil {
		return fmt.Errorf("register %s: %w", s.svc, err)
	}
	s.log.Info("server registered", logging.Tid(th.Tid()))

	for {
		from, msg, ok := th.MustReceive()
		if !ok {
			s.log.Info("server stopped", logging.Tid(th.Tid()))
			return nil
		}

		reply := s.handle(th, from, msg)
		if err := th.Send(from, reply); err != nil {
			s.log.Debug("reply dropped", logging.Tid(from), zap.Error(err))
		}
	}
}

func (s *Server) handle(th *kernel.Thread, from itc.Tid, msg itc.Message) itc.Message {
	timer := monitoring.NewTimer(s.metrics, s.svc)

	asid, err := th.GetASID(from)
	if err != nil {
		timer.Stop("gone")
		return Reply(proto.PersistentFailure)
	}
	req := Request{From: from, ASID: asid, Msg: msg}

	reply, err := s.guard.Execute(func() itc.Message {
		return s.handler.Handle(req)
	})
	switch {
	case errors.Is(err, resilience.ErrCircuitOpen):
		timer.Stop("circuit_open")
		return Reply(proto.PersistentFailure)
	case err != nil:
		s.log.Error("request failed persistently", logging.Message(msg), zap.Error(err))
		timer.Stop("persistent_failure")
		return Reply(proto.PersistentFailure)
	}

	status := "ok"
	if proto.HasStatus(s.svc) {
		status = proto.StatusText(s.svc, reply.A)
	}
	timer.Stop(status)
	return reply
}
