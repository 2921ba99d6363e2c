// Package vm manages a process's virtual address space from user code.
//
// A Space is the process-wide valloc cursor, shared by every thread of the
// process. An Allocator hands out fresh page ranges from it and backs each
// page through a PageAllocator, which is either the memory manager server or,
// for trusted servers, the kernel directly. FaultHandler services demand
// paging for one thread and Heap is the fixed heap region bootstrapped once
// per process.
package vm
