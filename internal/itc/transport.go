package itc

// Transport is the per-thread view of the kernel messaging primitives.
//
// Send, Receive and Call block the calling thread. Nothing else in the
// messaging path does.
type Transport interface {
	// Tid returns the calling thread's id.
	Tid() Tid
	// Send delivers msg to tid.
	Send(tid Tid, msg Message) error
	// Receive blocks until a request arrives and returns it with its sender.
	Receive() (Tid, Message, error)
	// Call sends msg to tid and blocks until tid replies.
	Call(tid Tid, msg Message) (Message, error)
	// ServerTid resolves a service to the thread currently serving it.
	ServerTid(svc ServiceID) (Tid, error)
	// ServerRegister binds svc to the calling thread.
	ServerRegister(svc ServiceID) error
	// Yield gives up the processor. It fails only if the calling thread has
	// been destroyed.
	Yield() error
}
