package mmu

// Sv39 PTE fields.
const (
	rvValid = 1 << 0
	rvRead  = 1 << 1
	rvWrite = 1 << 2
	rvExec  = 1 << 3
	rvUser  = 1 << 4
	rvAcc   = 1 << 6
	rvDirty = 1 << 7
	// RSW bits.
	rvCOW = 1 << 8
	rvLIB = 1 << 9
	// Svpbmt memory type, bits 61-62.
	rvPBMTShift = 61
	rvPBMTIO    = 2

	rvPPNShift = 10
	rvPPNMask  = (1 << 44) - 1
)

type riscv64Format struct{}

// RISCV64Sv39 is the three-level, 39-bit Sv39 format.
var RISCV64Sv39 Format = riscv64Format{}

func (riscv64Format) Name() string { return "riscv64-sv39" }
func (riscv64Format) Levels() int  { return 3 }
func (riscv64Format) VABits() uint { return 39 }

func rvPPN(pa uint64) uint64 {
	return ((pa >> PageShift) & rvPPNMask) << rvPPNShift
}

func rvPA(desc uint64) uint64 {
	return ((desc >> rvPPNShift) & rvPPNMask) << PageShift
}

func (riscv64Format) TableDescriptor(pa uint64) uint64 {
	return rvPPN(pa) | rvValid
}

func (riscv64Format) NextTable(desc uint64) (uint64, bool) {
	if desc&rvValid == 0 || desc&(rvRead|rvWrite|rvExec) != 0 {
		return 0, false
	}
	return rvPA(desc), true
}

func (riscv64Format) LeafDescriptor(pa uint64, attr Attribute) uint64 {
	desc := rvPPN(pa) | rvValid | rvRead | rvAcc | rvDirty
	if attr.Has(Writable) {
		desc |= rvWrite
	}
	if attr.Has(UserReadable) {
		desc |= rvUser
	}
	if attr.Has(UserExec) || attr.Has(KernelExec) {
		desc |= rvExec
	}
	if attr.Has(Device) {
		desc |= rvPBMTIO << rvPBMTShift
	}
	if attr.Has(CopyOnWrite) {
		desc |= rvCOW
	}
	if attr.Has(Shared) {
		desc |= rvLIB
	}
	return desc
}

func (riscv64Format) DecodeLeaf(desc uint64) (Entry, bool) {
	if desc&rvValid == 0 || desc&(rvRead|rvWrite|rvExec) == 0 {
		return Entry{}, false
	}
	var attr Attribute
	if desc&rvWrite != 0 {
		attr |= Writable
	}
	user := desc&rvUser != 0
	if user {
		attr |= UserReadable
	}
	if desc&rvExec != 0 {
		// Sv39 has a single X bit; the U bit decides who may execute.
		if user {
			attr |= UserExec
		} else {
			attr |= KernelExec
		}
	}
	if (desc>>rvPBMTShift)&3 == rvPBMTIO {
		attr |= Device
	}
	if desc&rvCOW != 0 {
		attr |= CopyOnWrite
	}
	if desc&rvLIB != 0 {
		attr |= Shared
	}
	return Entry{PA: rvPA(desc), Attr: attr}, true
}
