// Package kernel is a hosted microkernel: threads are goroutines, physical
// memory is a pool of frames and page tables are software radix trees in the
// build target's descriptor format.
//
// Code running on a kernel thread reaches the kernel only through the
// *Thread it was started with. Those methods are the system calls:
//
//   - messaging: Send, Receive, Call, ReplyRecv, ServerRegister, ServerTid
//   - memory: MemAlloc, MemMap, MemUnmap, Query, Load, Store
//   - threads and spaces: ThreadAlloc, ThreadSetStatus, ThreadDestroy,
//     GetASID, AddressSpaceAlloc, AddressSpaceDestroy, Yield
//   - faults and events: SetExceptionHandler, EventWait
//
// Messaging is synchronous. Call succeeds only while the target sits in
// Receive; otherwise it fails with itc.ErrHoldOn and the caller is expected
// to yield and retry.
//
// Load and Store raise page faults. A fault is dispatched to the handler the
// thread installed with SetExceptionHandler; if there is none, if the
// exception stack is unmapped, or if the handler fails, the thread is
// terminated with a *FaultError. Termination never unwinds other threads.
package kernel
