// Package server runs the request loop shared by every system server.
//
// A server registers its service identifier once, then receives requests
// forever. Each request is decoded by a Handler, usually a Mux keyed on the
// action code in word a, and answered with a single Send. Handlers run under
// a resilience.Guard: a handler that panics is re-run and, if it keeps
// panicking, the client gets proto.PersistentFailure instead of a dead
// server.
//
// A Receive that fails while the server thread is alive means the kernel is
// corrupt; MustReceive aborts in that case and the loop never retries it.
//
// Example Usage:
//
//	mux := server.NewMux(proto.MMUnknownAction)
//	mux.On(proto.MMAlloc, "alloc", h.alloc)
//	return server.New(itc.ServiceMM, mux, server.FromContext(ctx)...).Serve(ctx.Thread)
package server
