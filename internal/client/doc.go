// Package client implements the call loop every service request goes
// through.
//
// Invoke resolves a service to its thread and calls it. Two conditions are
// transient: the service is not registered yet, and the server is not ready
// (the kernel's hold-on error or the service's own hold-on reply). Both are
// retried by yielding and trying the same step again, with no backoff, no
// limit and no timeout. Everything else ends the loop.
//
// A Caller belongs to one thread and must not be shared.
package client
