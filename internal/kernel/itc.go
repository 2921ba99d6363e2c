package kernel

import (
	"fmt"

	"github.com/GriffinCanCode/AgentOS/microkernel/internal/itc"
)

type deliverMode int

const (
	deliverRequest deliverMode = iota
	deliverReply
	deliverAny
)

// deliver hands msg to t if t is in a state that accepts it. A reply is
// accepted only from the thread t is calling.
func (t *Thread) deliver(from itc.Tid, msg itc.Message, mode deliverMode) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	switch {
	case t.status == StatusDead:
		return itc.ErrInvalidArgument
	case mode != deliverRequest && t.status == StatusWaitForReply && t.peer == from:
	case mode != deliverReply && t.status == StatusWaitForRequest:
	default:
		return itc.ErrHoldOn
	}
	t.status = StatusRunnable
	t.inbox <- delivery{from: from, msg: msg}
	return nil
}

// wait parks t until a message arrives or t is destroyed. The caller has
// already set the waiting status.
func (t *Thread) wait() (itc.Tid, itc.Message, error) {
	select {
	case d := <-t.inbox:
		return d.from, d.msg, nil
	case <-t.dead:
		return 0, itc.Message{}, itc.ErrThreadDestroyed
	}
}

// enterWait moves a runnable thread into a waiting status.
func (t *Thread) enterWait(status Status, peer itc.Tid) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	switch t.status {
	case StatusDead:
		return itc.ErrThreadDestroyed
	case StatusRunnable:
		t.status = status
		t.peer = peer
		return nil
	default:
		return fmt.Errorf("%w: thread %d already %s", itc.ErrInternal, t.tid, t.status)
	}
}

func (t *Thread) target(tid itc.Tid) (*Thread, error) {
	target, ok := t.k.Thread(tid)
	if !ok || target == t {
		return nil, itc.ErrInvalidArgument
	}
	return target, nil
}

// Send delivers msg to tid. The target must be waiting for a reply from the
// caller or waiting for a request; otherwise Send fails with ErrHoldOn.
func (t *Thread) Send(tid itc.Tid, msg itc.Message) error {
	err := t.send(tid, msg)
	t.k.metrics.RecordITC("send", err)
	return err
}

func (t *Thread) send(tid itc.Tid, msg itc.Message) error {
	if err := t.check(); err != nil {
		return err
	}
	target, err := t.target(tid)
	if err != nil {
		return err
	}
	return target.deliver(t.tid, msg, deliverAny)
}

// Receive blocks until a request arrives.
func (t *Thread) Receive() (itc.Tid, itc.Message, error) {
	from, msg, err := t.receive()
	t.k.metrics.RecordITC("receive", err)
	return from, msg, err
}

func (t *Thread) receive() (itc.Tid, itc.Message, error) {
	if err := t.enterWait(StatusWaitForRequest, 0); err != nil {
		return 0, itc.Message{}, err
	}
	return t.wait()
}

// MustReceive is Receive for server loops. It reports false when the thread
// has been destroyed and panics with a Corruption on any other failure.
func (t *Thread) MustReceive() (itc.Tid, itc.Message, bool) {
	from, msg, err := t.Receive()
	switch {
	case err == nil:
		return from, msg, true
	case t.Destroyed():
		return 0, itc.Message{}, false
	default:
		panic(&Corruption{Tid: t.tid, Op: "receive", Err: err})
	}
}

// Call sends msg to tid and blocks until tid replies. The target must be
// waiting for a request; otherwise Call fails with ErrHoldOn.
func (t *Thread) Call(tid itc.Tid, msg itc.Message) (itc.Message, error) {
	reply, err := t.call(tid, msg)
	t.k.metrics.RecordITC("call", err)
	return reply, err
}

func (t *Thread) call(tid itc.Tid, msg itc.Message) (itc.Message, error) {
	if err := t.check(); err != nil {
		return itc.Message{}, err
	}
	target, err := t.target(tid)
	if err != nil {
		return itc.Message{}, err
	}
	if err := t.enterWait(StatusWaitForReply, tid); err != nil {
		return itc.Message{}, err
	}
	if err := target.deliver(t.tid, msg, deliverRequest); err != nil {
		t.mu.Lock()
		switch t.status {
		case StatusWaitForReply:
			t.status = StatusRunnable
		case StatusRunnable:
			// The target sent to us before taking the request; drop it.
			select {
			case <-t.inbox:
			default:
			}
		}
		t.mu.Unlock()
		return itc.Message{}, err
	}
	_, reply, err := t.wait()
	return reply, err
}

// ReplyRecv replies to tid and waits for the next request. The caller is
// already receiving when the reply is delivered, so a client that calls again
// immediately does not see ErrHoldOn. A reply to a thread that is no longer
// waiting for it is dropped.
func (t *Thread) ReplyRecv(tid itc.Tid, reply itc.Message) (itc.Tid, itc.Message, error) {
	if err := t.enterWait(StatusWaitForRequest, 0); err != nil {
		t.k.metrics.RecordITC("reply_recv", err)
		return 0, itc.Message{}, err
	}
	if target, err := t.target(tid); err == nil {
		t.k.metrics.RecordITC("reply", target.deliver(t.tid, reply, deliverReply))
	}
	from, msg, err := t.wait()
	t.k.metrics.RecordITC("reply_recv", err)
	return from, msg, err
}

// ServerRegister binds svc to the calling thread.
func (t *Thread) ServerRegister(svc itc.ServiceID) error {
	if err := t.check(); err != nil {
		return err
	}
	if !svc.Valid() {
		return fmt.Errorf("%w: unknown service %d", itc.ErrInvalidArgument, uint64(svc))
	}
	if err := t.k.services.Register(svc, t.tid); err != nil {
		return fmt.Errorf("%w: %w", itc.ErrDenied, err)
	}
	t.k.metrics.SetServicesRegistered(len(t.k.services.List()))
	return nil
}

// ServerTid resolves svc to its serving thread.
func (t *Thread) ServerTid(svc itc.ServiceID) (itc.Tid, error) {
	if err := t.check(); err != nil {
		return 0, err
	}
	return t.k.services.Lookup(svc)
}
