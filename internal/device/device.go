package device

import (
	"fmt"
	"runtime"

	"github.com/klauspost/cpuid/v2"
)

const (
	// DefaultWarpSize is the number of lanes reduced together in the first tree level.
	DefaultWarpSize = 32
	// DefaultMaxThreadsPerBlock caps the lanes cooperating on one block.
	DefaultMaxThreadsPerBlock = 1024
)

// Device describes the execution hardware kernels are launched on.
// Blocks are spread over Workers goroutines; lanes of one block run inside a
// single worker, so a block never migrates mid-kernel.
type Device struct {
	Name               string
	Workers            int
	MaxThreadsPerBlock int
	WarpSize           int
}

// Default returns a device sized to the host's physical cores.
func Default() *Device {
	workers := cpuid.CPU.PhysicalCores
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	name := cpuid.CPU.BrandName
	if name == "" {
		name = "CPU"
	}
	return &Device{
		Name:               name,
		Workers:            workers,
		MaxThreadsPerBlock: DefaultMaxThreadsPerBlock,
		WarpSize:           DefaultWarpSize,
	}
}

// New returns a device with explicit limits. Zero values take the defaults.
func New(workers, maxThreadsPerBlock int) (*Device, error) {
	d := Default()
	if workers > 0 {
		d.Workers = workers
	}
	if maxThreadsPerBlock > 0 {
		d.MaxThreadsPerBlock = maxThreadsPerBlock
	}
	if err := d.Validate(); err != nil {
		return nil, err
	}
	return d, nil
}

// Validate checks the device limits are usable by the reduction tree.
func (d *Device) Validate() error {
	if d.Workers <= 0 {
		return fmt.Errorf("device: workers must be positive, got %d", d.Workers)
	}
	if d.WarpSize <= 0 || d.WarpSize&(d.WarpSize-1) != 0 {
		return fmt.Errorf("device: warp size must be a power of two, got %d", d.WarpSize)
	}
	if d.MaxThreadsPerBlock < d.WarpSize || d.MaxThreadsPerBlock%d.WarpSize != 0 {
		return fmt.Errorf("device: max threads per block %d must be a positive multiple of warp size %d",
			d.MaxThreadsPerBlock, d.WarpSize)
	}
	return nil
}

// Features lists the host SIMD features, for diagnostics.
func (d *Device) Features() []string {
	return cpuid.CPU.FeatureSet()
}

// LaunchConfig is a one-dimensional grid of Grid blocks, each with Block lanes.
type LaunchConfig struct {
	Grid  int
	Block int
}

func (c LaunchConfig) String() string {
	return fmt.Sprintf("grid=%d block=%d", c.Grid, c.Block)
}

// Validate rejects configurations the device cannot run.
func (c LaunchConfig) Validate(d *Device) error {
	if c.Grid <= 0 {
		return fmt.Errorf("%w: grid %d", ErrInvalidConfig, c.Grid)
	}
	if c.Block <= 0 || c.Block > d.MaxThreadsPerBlock {
		return fmt.Errorf("%w: block %d outside (0, %d]", ErrInvalidConfig, c.Block, d.MaxThreadsPerBlock)
	}
	return nil
}

// Kernel is the per-block body of a launch. It is called once per grid index.
type Kernel func(b *Block)
