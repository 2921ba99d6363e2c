package client

import (
	"fmt"

	"github.com/GriffinCanCode/AgentOS/microkernel/internal/itc"
	"github.com/GriffinCanCode/AgentOS/microkernel/internal/proto"
)

// ServiceError is a server's refusal of a request. It is an ordinary
// reply, so the call loop never retries it.
type ServiceError struct {
	Service itc.ServiceID
	Action  uint64
	Status  uint64
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("%s action %d: %s", e.Service, e.Action, proto.StatusText(e.Service, e.Status))
}

// Request invokes svc and turns any non-zero reply status into a
// *ServiceError. It must not be used for services whose reply word a is not
// a status, such as the clock.
func (c *Caller) Request(svc itc.ServiceID, msg itc.Message) (itc.Message, error) {
	reply, err := c.Invoke(svc, msg)
	if err != nil {
		return itc.Message{}, err
	}
	if reply.A != 0 {
		return reply, &ServiceError{Service: svc, Action: msg.A, Status: reply.A}
	}
	return reply, nil
}
