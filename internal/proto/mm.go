package proto

// Memory manager actions.
const (
	MMAlloc = 1 // b = virtual address of the page to back
)

// Memory manager replies.
const (
	MMOK            = 0
	MMErr           = 1
	MMUnknownAction = 2
)
