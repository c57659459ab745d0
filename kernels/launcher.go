package kernels

import (
	"fmt"

	"github.com/notargets/gocca"
	"github.com/notargets/wem/device"
)

var (
	DefaultGrid  = device.Dim3{X: 64, Y: 1, Z: 1}
	DefaultBlock = device.Dim3{X: 256, Y: 1, Z: 1}
)

// Launcher binds a compiled kernel to a launch configuration. Every kernel
// takes (nblocks, nthreads) as its first two arguments and walks its index
// space with a grid-stride loop, so any grid/block covers any count.
type Launcher struct {
	Name  string
	Grid  device.Dim3
	Block device.Dim3

	dev    *device.Device
	kernel *gocca.OCCAKernel
}

// NewLauncher compiles name out of body (preamble prepended) once per device
func NewLauncher(dev *device.Device, name, body string, grid, block device.Dim3) (*Launcher, error) {
	kernel, err := dev.BuildKernel(Preamble(DefaultPreamble())+body, name)
	if err != nil {
		return nil, err
	}
	if grid.IsZero() {
		grid = DefaultGrid
	}
	if block.IsZero() {
		block = DefaultBlock
	}
	return &Launcher{
		Name:   name,
		Grid:   grid,
		Block:  block,
		dev:    dev,
		kernel: kernel,
	}, nil
}

// Run launches the kernel with the launch extents prepended to args
func (l *Launcher) Run(args ...interface{}) error {
	expandedArgs := make([]interface{}, 0, len(args)+2)
	expandedArgs = append(expandedArgs, int32(l.Grid.Size()), int32(l.Block.Size()))
	expandedArgs = append(expandedArgs, args...)

	if err := l.dev.Run(l.kernel, expandedArgs...); err != nil {
		return fmt.Errorf("kernel %s: %w", l.Name, err)
	}
	return nil
}

// SetLaunch updates grid and block; zero values keep the current setting
func (l *Launcher) SetLaunch(grid, block device.Dim3) {
	if !grid.IsZero() {
		l.Grid = grid
	}
	if !block.IsZero() {
		l.Block = block
	}
}

func boolArg(b bool) int32 {
	if b {
		return 1
	}
	return 0
}
