package blk

import (
	"errors"
	"fmt"
	"sync"

	"github.com/GriffinCanCode/AgentOS/microkernel/internal/proto"
)

// ErrOutOfRange is returned for a transfer past the end of the disk.
var ErrOutOfRange = errors.New("sector range beyond end of disk")

// Disk is a RAM-backed block device.
type Disk struct {
	mu   sync.RWMutex
	data []byte
}

// NewDisk creates a zeroed disk of the given number of sectors.
func NewDisk(sectors int) *Disk {
	return &Disk{data: make([]byte, sectors*proto.SectorSize)}
}

// NewDiskFrom creates a disk holding image, padded to a whole sector.
func NewDiskFrom(image []byte) *Disk {
	n := (len(image) + proto.SectorSize - 1) / proto.SectorSize * proto.SectorSize
	data := make([]byte, n)
	copy(data, image)
	return &Disk{data: data}
}

// Size returns the disk size in bytes.
func (d *Disk) Size() uint64 {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return uint64(len(d.data))
}

func (d *Disk) span(sector, count uint64) (uint64, uint64, error) {
	size := uint64(len(d.data)) / proto.SectorSize
	if count == 0 || sector >= size || count > size-sector {
		return 0, 0, fmt.Errorf("%w: sectors %d+%d of %d", ErrOutOfRange, sector, count, size)
	}
	return sector * proto.SectorSize, (sector + count) * proto.SectorSize, nil
}

// ReadSectors returns a copy of count sectors starting at sector.
func (d *Disk) ReadSectors(sector, count uint64) ([]byte, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	lo, hi, err := d.span(sector, count)
	if err != nil {
		return nil, err
	}
	out := make([]byte, hi-lo)
	copy(out, d.data[lo:hi])
	return out, nil
}

// WriteSectors stores data, a whole number of sectors, starting at sector.
func (d *Disk) WriteSectors(sector uint64, data []byte) error {
	if len(data)%proto.SectorSize != 0 {
		return fmt.Errorf("write of %d bytes is not sector aligned", len(data))
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	lo, hi, err := d.span(sector, uint64(len(data)/proto.SectorSize))
	if err != nil {
		return err
	}
	copy(d.data[lo:hi], data)
	return nil
}
