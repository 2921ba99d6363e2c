package mmu

// VMSAv8-64 stage-1 descriptor fields.
const (
	a64Valid      = 1 << 0
	a64Type       = 1 << 1
	a64AttrShift  = 2
	a64AttrNormal = 0
	a64AttrDevice = 1
	a64APShift    = 6
	a64APRWEL1    = 0
	a64APRWEL0    = 1
	a64APROEL1    = 2
	a64APROEL0    = 3
	a64SHShift    = 8
	a64SHOuter    = 2
	a64SHInner    = 3
	a64AF         = 1 << 10
	a64PXN        = 1 << 53
	a64UXN        = 1 << 54
	// Bits 55-58 are reserved for software use.
	a64COW  = 1 << 55
	a64LIB  = 1 << 56
	a64Addr = 0x0000_ffff_ffff_f000
)

type aarch64Format struct{}

// AArch64 is the 4 KiB granule, three-level, 39-bit VMSAv8-64 format.
var AArch64 Format = aarch64Format{}

func (aarch64Format) Name() string { return "aarch64" }
func (aarch64Format) Levels() int  { return 3 }
func (aarch64Format) VABits() uint { return 39 }

func (aarch64Format) TableDescriptor(pa uint64) uint64 {
	return (pa & a64Addr) | a64Type | a64Valid
}

func (aarch64Format) NextTable(desc uint64) (uint64, bool) {
	if desc&(a64Valid|a64Type) != a64Valid|a64Type {
		return 0, false
	}
	return desc & a64Addr, true
}

func (aarch64Format) LeafDescriptor(pa uint64, attr Attribute) uint64 {
	desc := (pa & a64Addr) | a64AF | a64Type | a64Valid
	if attr.Has(Shared) {
		desc |= a64LIB
	}
	if attr.Has(CopyOnWrite) {
		desc |= a64COW
	}
	if !attr.Has(UserExec) {
		desc |= a64UXN
	}
	if !attr.Has(KernelExec) {
		desc |= a64PXN
	}
	if attr.Has(Device) {
		desc |= a64SHOuter<<a64SHShift | a64AttrDevice<<a64AttrShift
	} else {
		desc |= a64SHInner<<a64SHShift | a64AttrNormal<<a64AttrShift
	}
	var ap uint64
	switch {
	case attr.Has(Writable) && attr.Has(UserReadable):
		ap = a64APRWEL0
	case attr.Has(Writable):
		ap = a64APRWEL1
	case attr.Has(UserReadable):
		ap = a64APROEL0
	default:
		ap = a64APROEL1
	}
	return desc | ap<<a64APShift
}

func (aarch64Format) DecodeLeaf(desc uint64) (Entry, bool) {
	if desc&(a64Valid|a64Type) != a64Valid|a64Type {
		return Entry{}, false
	}
	var attr Attribute
	switch (desc >> a64APShift) & 3 {
	case a64APRWEL0:
		attr |= Writable | UserReadable
	case a64APRWEL1:
		attr |= Writable
	case a64APROEL0:
		attr |= UserReadable
	}
	if (desc>>a64AttrShift)&7 == a64AttrDevice {
		attr |= Device
	}
	if desc&a64PXN == 0 {
		attr |= KernelExec
	}
	if desc&a64UXN == 0 {
		attr |= UserExec
	}
	if desc&a64COW != 0 {
		attr |= CopyOnWrite
	}
	if desc&a64LIB != 0 {
		attr |= Shared
	}
	return Entry{PA: desc & a64Addr, Attr: attr}, true
}
