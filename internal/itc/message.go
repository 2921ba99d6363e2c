package itc

import "fmt"

// Tid identifies a kernel thread.
type Tid uint32

// Message is the fixed-size unit of every request and reply.
type Message struct {
	A uint64
	B uint64
	C uint64
	D uint64
}

// NewMessage builds a message from its four words.
func NewMessage(a, b, c, d uint64) Message {
	return Message{A: a, B: b, C: c, D: d}
}

// Words returns the message as an array in a, b, c, d order.
func (m Message) Words() [4]uint64 {
	return [4]uint64{m.A, m.B, m.C, m.D}
}

func (m Message) String() string {
	return fmt.Sprintf("{a:%#x b:%#x c:%#x d:%#x}", m.A, m.B, m.C, m.D)
}
