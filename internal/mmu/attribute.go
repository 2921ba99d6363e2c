package mmu

import "strings"

// Attribute is the permission set of one mapped page.
type Attribute uint8

const (
	Writable Attribute = 1 << iota
	UserReadable
	Device
	KernelExec
	UserExec
	CopyOnWrite
	Shared
)

// Common attribute sets.
const (
	KernelDevice   = Writable | Device
	UserDefault    = Writable | UserReadable | UserExec
	UserReadonly   = UserReadable
	UserExecutable = UserReadable | UserExec
	UserData       = Writable | UserReadable
	UserDevice     = Writable | UserReadable | Device
)

// Has reports whether every bit of flag is set.
func (a Attribute) Has(flag Attribute) bool {
	return a&flag == flag
}

// Filter reduces a to the bits a user thread may request: the page becomes
// user-visible and loses device and kernel-exec.
func (a Attribute) Filter() Attribute {
	return (a & (Writable | UserExec | CopyOnWrite | Shared)) | UserReadable
}

// String renders the attribute as a fixed-width flag string such as "WU-----".
func (a Attribute) String() string {
	flags := [...]struct {
		bit  Attribute
		char byte
	}{
		{Writable, 'W'},
		{UserReadable, 'U'},
		{Device, 'D'},
		{KernelExec, 'X'},
		{UserExec, 'x'},
		{CopyOnWrite, 'C'},
		{Shared, 'S'},
	}
	var sb strings.Builder
	for _, f := range flags {
		if a.Has(f.bit) {
			sb.WriteByte(f.char)
		} else {
			sb.WriteByte('-')
		}
	}
	return sb.String()
}
