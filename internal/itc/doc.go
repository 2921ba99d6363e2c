// Package itc defines the inter-thread communication vocabulary shared by the
// kernel and every userspace component.
//
// A Message is exactly four machine words. The first word carries the action
// code on the way in and the status code on the way out, unless a service
// documents otherwise. Payloads larger than three words travel through a
// page-aligned buffer owned by the sender, whose address is passed in one of
// the words.
//
// Kernel failures are reported as Errno values so callers can branch with
// errors.Is:
//
//	reply, err := t.Call(tid, itc.NewMessage(1, va, 0, 0))
//	if errors.Is(err, itc.ErrHoldOn) {
//		// the server is not waiting for a request yet
//	}
package itc
