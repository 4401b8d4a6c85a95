package rmsnorm

import (
	"github.com/23skdu/longbow-rmsnorm/internal/device"
	"github.com/23skdu/longbow-rmsnorm/internal/tensor"
)

// maxVecWidth is the widest pack any element type uses (four float32).
const maxVecWidth = 4

// Config is the launch shape chosen for one call.
type Config struct {
	device.LaunchConfig

	// VecWidth is the number of contiguous elements moved per pack access.
	VecWidth int
	// Groups is cols / VecWidth: the packs in one row, strided over the block's lanes.
	Groups int
	DType  tensor.DType
}

// Vectorized reports whether the row is processed in packs wider than one element.
func (c Config) Vectorized() bool {
	return c.VecWidth > 1
}

// VecWidthFor returns the pack width for dtype: four 32-bit or two 16-bit values.
func VecWidthFor(dtype tensor.DType) int {
	if dtype == tensor.Float16 {
		return 2
	}
	return maxVecWidth
}

// SelectConfig picks one block per row and enough lanes to cover the row's
// packs, rounded up to whole warps and capped by the device. A row whose length
// is not a multiple of the pack width is processed one element at a time.
func SelectConfig(dtype tensor.DType, rows, cols int, dev *device.Device) Config {
	width := VecWidthFor(dtype)
	if cols%width != 0 {
		width = 1
	}
	groups := cols / width

	lanes := (groups + dev.WarpSize - 1) / dev.WarpSize * dev.WarpSize
	if lanes > dev.MaxThreadsPerBlock {
		lanes = dev.MaxThreadsPerBlock
	}
	if lanes < dev.WarpSize {
		lanes = dev.WarpSize
	}

	return Config{
		LaunchConfig: device.LaunchConfig{Grid: rows, Block: lanes},
		VecWidth:     width,
		Groups:       groups,
		DType:        dtype,
	}
}
