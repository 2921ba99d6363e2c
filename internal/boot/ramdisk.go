package boot

import (
	"bytes"
	"fmt"
	"os"

	"github.com/klauspost/compress/zstd"

	"github.com/GriffinCanCode/AgentOS/microkernel/internal/proto"
	"github.com/GriffinCanCode/AgentOS/microkernel/internal/server/blk"
)

var zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}

// LoadRamdisk builds the block device. The image at path may be raw or
// zstd-compressed; without a path the disk is blank. The disk is at least
// sectors long.
func LoadRamdisk(path string, sectors int) (*blk.Disk, error) {
	var image []byte
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read ramdisk: %w", err)
		}
		if image, err = DecodeImage(raw); err != nil {
			return nil, fmt.Errorf("ramdisk %s: %w", path, err)
		}
	}
	if size := sectors * proto.SectorSize; len(image) < size {
		image = append(image, make([]byte, size-len(image))...)
	}
	return blk.NewDiskFrom(image), nil
}

// DecodeImage decompresses a zstd image and passes anything else through.
func DecodeImage(raw []byte) ([]byte, error) {
	if !bytes.HasPrefix(raw, zstdMagic) {
		return raw, nil
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, err
	}
	defer dec.Close()
	return dec.DecodeAll(raw, nil)
}

// EncodeImage compresses a disk image.
func EncodeImage(image []byte) ([]byte, error) {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedBetterCompression))
	if err != nil {
		return nil, err
	}
	defer enc.Close()
	return enc.EncodeAll(image, nil), nil
}
