package proto

// Block device actions. Transfers use b = first sector, c = sector count and
// d = buffer address in the caller's space.
const (
	BlkRead  = 0
	BlkWrite = 1
	BlkSize  = 2 // reply b = device size in bytes
)

// Block device replies.
const (
	BlkOK  = 0
	BlkErr = 1
)

// SectorSize is the block device transfer unit.
const SectorSize = 512
