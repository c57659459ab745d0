// Package cvec holds device-resident complex buffers. Host data is
// complex128; the device stores interleaved float32 pairs. Transfers go
// through a pinned complex64 staging copy of the buffer, which is where the
// conversion happens.
package cvec

import (
	"errors"
	"fmt"
	"unsafe"

	"github.com/notargets/gocca"
	"github.com/notargets/wem/device"
	"github.com/notargets/wem/hypercube"
	"github.com/notargets/wem/kernels"
)

// ElemBytes is the device size of one complex element
const ElemBytes = 8

// MaxElements is the largest buffer the kernels can index. Kernel indices
// are 32-bit and address the real and imaginary parts separately.
const MaxElements = 1<<30 - 1

// ErrTooLarge is returned for buffers over MaxElements
var ErrTooLarge = errors.New("buffer exceeds the 32-bit kernel index range")

// ComplexVector owns a device complex array shaped by a hypercube, along with
// device mirrors of the axis counts, origins, and samplings.
type ComplexVector struct {
	Mat   *gocca.OCCAMemory
	NElem int
	N     *Array[int32]
	O     *Array[float32]
	D     *Array[float32]

	dev       *device.Device
	hyper     *hypercube.Hypercube
	vk        *kernels.Vector
	grid      device.Dim3
	block     device.Dim3
	allocated bool

	stage  []complex64
	pinned *device.Pinned
}

// New allocates a zeroed device buffer for hyper. Zero grid/block select the
// launcher defaults.
func New(dev *device.Device, hyper *hypercube.Hypercube, grid, block device.Dim3) (*ComplexVector, error) {
	if hyper == nil {
		return nil, fmt.Errorf("nil hypercube")
	}
	if hyper.N123() > MaxElements {
		return nil, fmt.Errorf("%v holds %d elements, limit %d: %w", hyper, hyper.N123(), MaxElements, ErrTooLarge)
	}
	v := &ComplexVector{
		NElem: hyper.N123(),
		dev:   dev,
		hyper: hyper.Clone(),
		grid:  grid,
		block: block,
	}

	var err error
	if v.vk, err = kernels.NewVector(dev, grid, block); err != nil {
		return nil, err
	}
	if v.Mat, err = dev.Malloc(int64(v.NElem)*ElemBytes, nil); err != nil {
		return nil, err
	}
	v.allocated = true
	v.stage = make([]complex64, v.NElem)
	v.pinned = device.PinSlice(v.stage)

	ns := make([]int32, hyper.NDim())
	os := make([]float32, hyper.NDim())
	ds := make([]float32, hyper.NDim())
	for i, ax := range hyper.Axes() {
		ns[i], os[i], ds[i] = int32(ax.N), float32(ax.O), float32(ax.D)
	}
	if v.N, err = NewArray(dev, ns); err != nil {
		v.Free()
		return nil, err
	}
	if v.O, err = NewArray(dev, os); err != nil {
		v.Free()
		return nil, err
	}
	if v.D, err = NewArray(dev, ds); err != nil {
		v.Free()
		return nil, err
	}

	if err = v.Zero(); err != nil {
		v.Free()
		return nil, err
	}
	return v, nil
}

func (v *ComplexVector) Hyper() *hypercube.Hypercube {
	return v.hyper
}

func (v *ComplexVector) Device() *device.Device {
	return v.dev
}

// SizeInBytes is the device footprint of the data array
func (v *ComplexVector) SizeInBytes() int64 {
	return int64(v.NElem) * ElemBytes
}

func (v *ComplexVector) Allocated() bool {
	return v.allocated
}

func (v *ComplexVector) Grid() device.Dim3 {
	return v.grid
}

func (v *ComplexVector) Block() device.Dim3 {
	return v.block
}

// SetLaunch changes the launch configuration of the elementwise kernels
func (v *ComplexVector) SetLaunch(grid, block device.Dim3) {
	v.grid, v.block = grid, block
	v.vk.SetLaunch(grid, block)
}

func (v *ComplexVector) check(op string) error {
	if !v.allocated {
		return fmt.Errorf("%s on freed vector", op)
	}
	return nil
}

func (v *ComplexVector) checkRange(op string, off, count int) error {
	if err := v.check(op); err != nil {
		return err
	}
	if off < 0 || count < 0 || off+count > v.NElem {
		return fmt.Errorf("%s: range [%d, %d) outside [0, %d)", op, off, off+count, v.NElem)
	}
	return nil
}

func (v *ComplexVector) Zero() error {
	return v.ZeroRange(0, v.NElem)
}

// ZeroRange clears count elements starting at off
func (v *ComplexVector) ZeroRange(off, count int) error {
	if err := v.checkRange("ZeroRange", off, count); err != nil {
		return err
	}
	if count == 0 {
		return nil
	}
	return v.vk.Zero(v.Mat, off, count)
}

// Clone allocates a new vector with the same shape and a device copy of the data
func (v *ComplexVector) Clone() (*ComplexVector, error) {
	if err := v.check("Clone"); err != nil {
		return nil, err
	}
	c, err := New(v.dev, v.hyper, v.grid, v.block)
	if err != nil {
		return nil, err
	}
	if err = c.CopyFrom(v); err != nil {
		c.Free()
		return nil, err
	}
	return c, nil
}

func (v *ComplexVector) sameShape(op string, other *ComplexVector) error {
	if err := v.check(op); err != nil {
		return err
	}
	if other == nil {
		return fmt.Errorf("%s: nil operand", op)
	}
	if err := other.check(op); err != nil {
		return err
	}
	if other.NElem != v.NElem {
		return fmt.Errorf("%s: size mismatch %d != %d", op, v.NElem, other.NElem)
	}
	return nil
}

// CopyFrom overwrites v with other on the device
func (v *ComplexVector) CopyFrom(other *ComplexVector) error {
	if err := v.sameShape("CopyFrom", other); err != nil {
		return err
	}
	return v.vk.Copy(v.Mat, other.Mat, v.NElem)
}

// Add sets v += other
func (v *ComplexVector) Add(other *ComplexVector) error {
	if err := v.sameShape("Add", other); err != nil {
		return err
	}
	return v.vk.Add(v.Mat, other.Mat, v.NElem)
}

// Scale multiplies every element by c
func (v *ComplexVector) Scale(c complex128) error {
	if err := v.check("Scale"); err != nil {
		return err
	}
	return v.vk.Scale(v.Mat, v.NElem, complex64(c))
}

// Upload copies src into elements [off, off+len(src)), narrowing to
// complex64, and returns once the copy is complete
func (v *ComplexVector) Upload(src []complex128, off int) error {
	if err := v.UploadAsync(src, off); err != nil {
		return err
	}
	return v.dev.Sync()
}

// UploadAsync stages src and queues the copy on the current stream. The
// staged range must not be uploaded again before the stream is synchronized.
func (v *ComplexVector) UploadAsync(src []complex128, off int) error {
	if err := v.checkRange("Upload", off, len(src)); err != nil {
		return err
	}
	if len(src) == 0 {
		return nil
	}
	buf := v.stage[off : off+len(src)]
	for i, c := range src {
		buf[i] = complex64(c)
	}
	return v.dev.CopyFromAsync(v.Mat, unsafe.Pointer(&buf[0]),
		int64(len(buf))*ElemBytes, int64(off)*ElemBytes)
}

// Download copies elements [off, off+len(dst)) into dst, widening to complex128
func (v *ComplexVector) Download(dst []complex128, off int) error {
	if err := v.DownloadAsync(off, len(dst)); err != nil {
		return err
	}
	if err := v.dev.Sync(); err != nil {
		return err
	}
	return v.Collect(dst, off)
}

// DownloadAsync queues a copy of elements [off, off+count) into the staging
// buffer on the current stream. Collect reads them once the stream is
// synchronized.
func (v *ComplexVector) DownloadAsync(off, count int) error {
	if err := v.checkRange("Download", off, count); err != nil {
		return err
	}
	if count == 0 {
		return nil
	}
	return v.dev.CopyToAsync(v.Mat, unsafe.Pointer(&v.stage[off]),
		int64(count)*ElemBytes, int64(off)*ElemBytes)
}

// Collect widens staged elements [off, off+len(dst)) into dst
func (v *ComplexVector) Collect(dst []complex128, off int) error {
	if err := v.checkRange("Collect", off, len(dst)); err != nil {
		return err
	}
	for i, c := range v.stage[off : off+len(dst)] {
		dst[i] = complex128(c)
	}
	return nil
}

// Free releases all device memory once; later calls do nothing
func (v *ComplexVector) Free() {
	if v == nil {
		return
	}
	v.N.Free()
	v.O.Free()
	v.D.Free()
	if !v.allocated {
		return
	}
	v.dev.FreeMemory(v.Mat)
	v.Mat = nil
	v.allocated = false
	v.pinned.Release()
	v.stage = nil
}
