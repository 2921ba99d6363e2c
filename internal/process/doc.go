// Package process is the user-side runtime every process starts in.
//
// A Runtime holds what the threads of one process share. Its Main entry
// gives the first thread a call loop, a page allocator and a fault handler,
// bootstraps the heap exactly once and then runs the program. Threads
// started with Context.Go get their own call loop and fault handler but
// share the valloc cursor and the heap.
package process
