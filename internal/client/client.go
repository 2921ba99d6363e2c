package client

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/GriffinCanCode/AgentOS/microkernel/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/AgentOS/microkernel/internal/itc"
	"github.com/GriffinCanCode/AgentOS/microkernel/internal/logging"
	"github.com/GriffinCanCode/AgentOS/microkernel/internal/proto"
)

// Reason says why the call loop retried.
type Reason string

const (
	// ReasonNotRegistered: nothing serves the service yet.
	ReasonNotRegistered Reason = "not_registered"
	// ReasonHoldOn: the kernel refused the call because the server was busy.
	ReasonHoldOn Reason = "hold_on"
	// ReasonServiceHoldOn: the server itself replied with its hold-on status.
	ReasonServiceHoldOn Reason = "service_hold_on"
)

// Observer is notified before every retry.
type Observer func(svc itc.ServiceID, reason Reason)

// CallError is a non-transient failure of Invoke.
type CallError struct {
	Service itc.ServiceID
	Op      string
	Err     error
}

func (e *CallError) Error() string {
	return fmt.Sprintf("invoke %s: %s: %v", e.Service, e.Op, e.Err)
}

func (e *CallError) Unwrap() error {
	return e.Err
}

// Option configures a Caller.
type Option func(*Caller)

// WithLogger sets the logger retries are sampled into.
func WithLogger(log *zap.Logger) Option {
	return func(c *Caller) {
		c.log = log
	}
}

// WithObserver adds a retry observer.
func WithObserver(fn Observer) Option {
	return func(c *Caller) {
		c.observers = append(c.observers, fn)
	}
}

// WithMetrics counts retries in metrics.
func WithMetrics(m *monitoring.Metrics) Option {
	return WithObserver(func(svc itc.ServiceID, reason Reason) {
		m.RecordRetry(svc, string(reason))
	})
}

// Caller runs the client call loop on behalf of one thread.
type Caller struct {
	tr        itc.Transport
	log       *zap.Logger
	observers []Observer
	sampled   rate.Sometimes
}

// New creates a call loop over tr.
func New(tr itc.Transport, opts ...Option) *Caller {
	c := &Caller{
		tr:      tr,
		log:     zap.NewNop(),
		sampled: rate.Sometimes{First: 3, Interval: time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Transport returns the underlying transport.
func (c *Caller) Transport() itc.Transport {
	return c.tr
}

// Resolve returns the thread serving svc, yielding until one registers.
func (c *Caller) Resolve(svc itc.ServiceID) (itc.Tid, error) {
	for {
		tid, err := c.tr.ServerTid(svc)
		if err == nil {
			return tid, nil
		}
		if !errors.Is(err, itc.ErrNotRegistered) {
			return 0, &CallError{Service: svc, Op: "resolve", Err: err}
		}
		if err := c.retry(svc, ReasonNotRegistered); err != nil {
			return 0, err
		}
	}
}

// Invoke sends msg to svc and returns its reply. Not-registered and hold-on
// are retried indefinitely by yielding; any other failure is returned.
func (c *Caller) Invoke(svc itc.ServiceID, msg itc.Message) (itc.Message, error) {
	tid, err := c.Resolve(svc)
	if err != nil {
		return itc.Message{}, err
	}

	for {
		reply, err := c.tr.Call(tid, msg)
		var reason Reason
		switch {
		case errors.Is(err, itc.ErrHoldOn):
			reason = ReasonHoldOn
		case err != nil:
			return itc.Message{}, &CallError{Service: svc, Op: "call", Err: err}
		case proto.IsHoldOn(svc, reply):
			reason = ReasonServiceHoldOn
		default:
			return reply, nil
		}
		if err := c.retry(svc, reason); err != nil {
			return itc.Message{}, err
		}
	}
}

func (c *Caller) retry(svc itc.ServiceID, reason Reason) error {
	for _, fn := range c.observers {
		fn(svc, reason)
	}
	c.sampled.Do(func() {
		c.log.Debug("retrying invoke",
			logging.Tid(c.tr.Tid()),
			logging.Service(svc),
			zap.String("reason", string(reason)),
		)
	})
	if err := c.tr.Yield(); err != nil {
		return &CallError{Service: svc, Op: "yield", Err: err}
	}
	return nil
}
